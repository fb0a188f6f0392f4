package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/focusdeck/focusdeck/internal/analytics"
	"github.com/focusdeck/focusdeck/internal/db"
	"github.com/focusdeck/focusdeck/internal/timeutil"
)

// defaultDateRange returns (from, to) defaulting to the last
// 30 days if not provided.
func defaultDateRange(from, to string) (string, string) {
	now := time.Now().UTC()
	if to == "" {
		to = now.Format("2006-01-02")
	}
	if from == "" {
		t, err := timeutil.ParseDate(to)
		if err != nil {
			t = now
		}
		from = t.AddDate(0, 0, -30).Format("2006-01-02")
	}
	return from, to
}

// parseLocation reads the optional timezone query param.
func parseLocation(
	w http.ResponseWriter, r *http.Request,
) (*time.Location, bool) {
	tz := r.URL.Query().Get("timezone")
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		writeError(w, http.StatusBadRequest,
			"invalid timezone: "+tz)
		return nil, false
	}
	return loc, true
}

// parseRange validates the from/to query params against the range
// rules of the analytics core. Invalid ranges are a 400, never
// silently clamped.
func (s *Server) parseRange(
	w http.ResponseWriter, r *http.Request,
) (analytics.Range, bool) {
	q := r.URL.Query()
	from, to := defaultDateRange(q.Get("from"), q.Get("to"))

	rng, err := analytics.NewRange(from, to, s.cfg.Analytics)
	if err != nil {
		if errors.Is(err, analytics.ErrInvalidRange) {
			writeError(w, http.StatusBadRequest, err.Error())
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return analytics.Range{}, false
	}
	return rng, true
}

// loadRangeSessions is the shared fetch for range-based handlers.
func (s *Server) loadRangeSessions(
	w http.ResponseWriter, r *http.Request, rng analytics.Range,
) ([]db.Session, bool) {
	sessions, err := s.db.SessionsInRange(r.Context(), rng.From, rng.To)
	if err != nil {
		if handleContextError(w, err) {
			return nil, false
		}
		log.Printf("analytics error: %v", err)
		writeError(w, http.StatusInternalServerError,
			"internal server error")
		return nil, false
	}
	return sessions, true
}

func (s *Server) handleDistribution(
	w http.ResponseWriter, r *http.Request,
) {
	rng, ok := s.parseRange(w, r)
	if !ok {
		return
	}
	sessions, ok := s.loadRangeSessions(w, r, rng)
	if !ok {
		return
	}
	categories, err := s.db.Categories(r.Context())
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK,
		analytics.TimeByCategory(sessions, categories))
}

func (s *Server) handleHeatmap(
	w http.ResponseWriter, r *http.Request,
) {
	loc, ok := parseLocation(w, r)
	if !ok {
		return
	}
	rng, ok := s.parseRange(w, r)
	if !ok {
		return
	}
	sessions, ok := s.loadRangeSessions(w, r, rng)
	if !ok {
		return
	}

	grid := analytics.HourWeekdayGrid(sessions, loc)
	analytics.ScoreGrid(grid, s.cfg.Analytics)
	writeJSON(w, http.StatusOK, grid)
}

func (s *Server) handleDurations(
	w http.ResponseWriter, r *http.Request,
) {
	rng, ok := s.parseRange(w, r)
	if !ok {
		return
	}
	sessions, ok := s.loadRangeSessions(w, r, rng)
	if !ok {
		return
	}

	buckets := analytics.DurationDistribution(sessions, nil)
	writeJSON(w, http.StatusOK, map[string]any{
		"buckets": buckets,
		"recommendation": analytics.OptimalSessionLength(
			buckets, sessions, s.cfg.Analytics,
		),
	})
}

func (s *Server) handleSuggestions(
	w http.ResponseWriter, r *http.Request,
) {
	loc, ok := parseLocation(w, r)
	if !ok {
		return
	}
	rng, ok := s.parseRange(w, r)
	if !ok {
		return
	}
	sessions, ok := s.loadRangeSessions(w, r, rng)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK,
		analytics.PeakHours(sessions, loc, s.cfg.Analytics))
}

func (s *Server) handleGoals(
	w http.ResponseWriter, r *http.Request,
) {
	loc, ok := parseLocation(w, r)
	if !ok {
		return
	}

	today := timeutil.Date(time.Now().In(loc))
	weekStart := timeutil.WeekStart(today)
	from := timeutil.AddDays(weekStart, -7*12)

	sessions, err := s.db.SessionsInRange(r.Context(), from, today)
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	categories, err := s.db.Categories(r.Context())
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, analytics.GoalProgressForWeek(
		sessions, categories, weekStart, loc,
	))
}

func (s *Server) handleStreak(
	w http.ResponseWriter, r *http.Request,
) {
	state, err := s.db.LoadStreakState(r.Context())
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if state == nil {
		state = &db.StreakState{StreakDates: []string{}}
	}
	writeJSON(w, http.StatusOK, analytics.SummarizeStreak(*state))
}

func (s *Server) handleStreakRecover(
	w http.ResponseWriter, r *http.Request,
) {
	var req struct {
		Date string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	days, err := s.db.StreakDays(r.Context())
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	today := timeutil.Date(time.Now().UTC())
	result := analytics.EvaluateRecovery(
		days, req.Date, today, s.cfg.Analytics,
	)
	// Ineligible recoveries are an expected user action, not a
	// client error: report them as a 200 with success=false.
	if !result.Success {
		writeJSON(w, http.StatusOK, result)
		return
	}

	// Mark the day recovered, keeping any minutes it already had,
	// then rebuild the chain so the recovery takes effect.
	day := db.DayRecord{Date: req.Date, Recovered: true}
	for _, d := range days {
		if d.Date == req.Date {
			day.Minutes = d.Minutes
			day.Met = d.Met
			break
		}
	}
	err = s.db.Update(func(tx *sql.Tx) error {
		return db.UpsertStreakDay(tx, day)
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.engine.RebuildStreaks(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	state, err := s.db.LoadStreakState(r.Context())
	if err != nil || state == nil {
		writeJSON(w, http.StatusOK, result)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": result.Success,
		"message": result.Message,
		"streak":  analytics.SummarizeStreak(*state),
	})
}

// parsePeriod validates the period query param for compare/report.
func parsePeriod(
	w http.ResponseWriter, r *http.Request,
) (string, bool) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = analytics.PeriodWeek
	}
	if period != analytics.PeriodWeek && period != analytics.PeriodMonth {
		writeError(w, http.StatusBadRequest,
			"period must be week or month")
		return "", false
	}
	return period, true
}

func (s *Server) handleCompare(
	w http.ResponseWriter, r *http.Request,
) {
	loc, ok := parseLocation(w, r)
	if !ok {
		return
	}
	period, ok := parsePeriod(w, r)
	if !ok {
		return
	}

	rng, err := analytics.PeriodRange(
		period, r.URL.Query().Get("anchor"), time.Now(), loc,
	)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	prev := rng.Previous()

	current, ok := s.loadRangeSessions(w, r, rng)
	if !ok {
		return
	}
	previous, err := s.db.SessionsInRange(r.Context(), prev.From, prev.To)
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, analytics.ComparePeriods(
		period, current, previous, rng, prev, loc, s.cfg.Analytics,
	))
}

func (s *Server) handleReport(
	w http.ResponseWriter, r *http.Request,
) {
	report, ok := s.buildReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// buildReport is shared by the report and export handlers.
func (s *Server) buildReport(
	w http.ResponseWriter, r *http.Request,
) (*analytics.Report, bool) {
	loc, ok := parseLocation(w, r)
	if !ok {
		return nil, false
	}
	period, ok := parsePeriod(w, r)
	if !ok {
		return nil, false
	}

	report, err := analytics.BuildReport(
		r.Context(), s.db, period, r.URL.Query().Get("anchor"),
		time.Now(), loc, s.cfg.Analytics,
	)
	if err != nil {
		if handleContextError(w, err) {
			return nil, false
		}
		if errors.Is(err, analytics.ErrInvalidRange) {
			writeError(w, http.StatusBadRequest, err.Error())
			return nil, false
		}
		log.Printf("report error: %v", err)
		writeError(w, http.StatusInternalServerError,
			"internal server error")
		return nil, false
	}
	return report, true
}
