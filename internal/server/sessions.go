package server

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/focusdeck/focusdeck/internal/analytics"
	"github.com/focusdeck/focusdeck/internal/db"
	"github.com/focusdeck/focusdeck/internal/timeutil"
)

func (s *Server) handleListCategories(
	w http.ResponseWriter, r *http.Request,
) {
	categories, err := s.db.Categories(r.Context())
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (s *Server) handleListTasks(
	w http.ResponseWriter, r *http.Request,
) {
	q := r.URL.Query()
	filter := db.TaskFilter{
		Status:     q.Get("status"),
		CategoryID: q.Get("category"),
	}
	if filter.Status != "" && !db.ValidStatus(filter.Status) {
		writeError(w, http.StatusBadRequest,
			"status must be active, completed, or archived")
		return
	}

	tasks, err := s.db.Tasks(r.Context(), filter)
	if err != nil {
		if handleContextError(w, err) {
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleListSessions(
	w http.ResponseWriter, r *http.Request,
) {
	rng, ok := s.parseRange(w, r)
	if !ok {
		return
	}

	if categoryID := r.URL.Query().Get("category"); categoryID != "" {
		sessions, err := s.db.SessionsForCategory(
			r.Context(), categoryID, rng.From, rng.To,
		)
		if err != nil {
			if handleContextError(w, err) {
				return
			}
			writeError(w, http.StatusInternalServerError,
				"internal server error")
			return
		}
		writeJSON(w, http.StatusOK, sessions)
		return
	}

	sessions, ok := s.loadRangeSessions(w, r, rng)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// createSessionRequest is the POST /api/v1/sessions body.
type createSessionRequest struct {
	ID                string  `json:"id"`
	TaskID            *string `json:"task_id"`
	CategoryID        string  `json:"category_id"`
	Category          string  `json:"category"`
	StartedAt         string  `json:"started_at"`
	DurationMinutes   int     `json:"duration_minutes"`
	QualityRating     *int    `json:"quality_rating"`
	InterruptionCount *int    `json:"interruption_count"`
	Completed         *bool   `json:"completed"`
}

func (s *Server) handleCreateSession(
	w http.ResponseWriter, r *http.Request,
) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.DurationMinutes <= 0 {
		writeError(w, http.StatusBadRequest,
			"duration_minutes must be positive")
		return
	}
	if _, err := time.Parse(time.RFC3339, req.StartedAt); err != nil {
		writeError(w, http.StatusBadRequest,
			"started_at must be an RFC3339 timestamp")
		return
	}
	if req.QualityRating != nil &&
		(*req.QualityRating < 1 || *req.QualityRating > 5) {
		writeError(w, http.StatusBadRequest,
			"quality_rating must be 1-5")
		return
	}
	if req.InterruptionCount != nil && *req.InterruptionCount < 0 {
		writeError(w, http.StatusBadRequest,
			"interruption_count must not be negative")
		return
	}
	if req.CategoryID == "" && req.Category == "" {
		writeError(w, http.StatusBadRequest,
			"category_id or category is required")
		return
	}

	// Records are immutable, so an explicit ID that already exists
	// is a conflict rather than a silent no-op insert.
	if req.ID != "" {
		exists, err := s.db.HasSession(r.Context(), req.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError,
				"internal server error")
			return
		}
		if exists {
			writeError(w, http.StatusConflict,
				"session already exists")
			return
		}
	}

	categoryID := req.CategoryID
	if categoryID == "" {
		id, err := s.db.EnsureCategory(r.Context(), req.Category)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		categoryID = id
	}

	session := db.Session{
		ID:                req.ID,
		TaskID:            req.TaskID,
		CategoryID:        categoryID,
		StartedAt:         req.StartedAt,
		DurationMinutes:   req.DurationMinutes,
		QualityRating:     req.QualityRating,
		InterruptionCount: req.InterruptionCount,
		Completed:         true,
	}
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if req.Completed != nil {
		session.Completed = *req.Completed
	}

	err := s.db.Update(func(tx *sql.Tx) error {
		if err := db.InsertSession(tx, session); err != nil {
			return err
		}
		if session.TaskID != nil && session.Completed {
			return db.ApplySessionToTask(
				tx, *session.TaskID, session.DurationMinutes,
			)
		}
		return nil
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if session.Completed {
		if err := s.advanceStreak(r, session); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusCreated, session)
}

// advanceStreak folds the new session's day into the cached streak
// state. Backdated sessions before the last counted day invalidate
// the incremental fold, so those fall back to a full rebuild.
func (s *Server) advanceStreak(r *http.Request, session db.Session) error {
	ctx := r.Context()
	loc := time.UTC
	t, err := time.Parse(time.RFC3339, session.StartedAt)
	if err != nil {
		return err
	}
	date := timeutil.Date(t.In(loc))

	sessions, err := s.db.SessionsInRange(ctx, date, date)
	if err != nil {
		return err
	}
	minutes := 0
	for _, sess := range sessions {
		minutes += sess.DurationMinutes
	}

	day := db.DayRecord{
		Date:    date,
		Minutes: minutes,
		Met:     minutes >= s.cfg.Analytics.MinimumFocusMinutes,
	}
	existing, err := s.db.StreakDays(ctx)
	if err != nil {
		return err
	}
	for _, d := range existing {
		if d.Date == date && d.Recovered {
			day.Recovered = true
		}
	}

	state, err := s.db.LoadStreakState(ctx)
	if err != nil {
		return err
	}
	if state != nil && len(state.StreakDates) > 0 &&
		date < state.StreakDates[len(state.StreakDates)-1] {
		if err := s.db.Update(func(tx *sql.Tx) error {
			return db.UpsertStreakDay(tx, day)
		}); err != nil {
			return err
		}
		return s.engine.RebuildStreaks(ctx)
	}
	if state == nil {
		state = &db.StreakState{StreakDates: []string{}}
	}

	next := analytics.Advance(*state, day, s.cfg.Analytics)
	return s.db.Update(func(tx *sql.Tx) error {
		if err := db.UpsertStreakDay(tx, day); err != nil {
			return err
		}
		return db.SaveStreakState(tx, next)
	})
}
