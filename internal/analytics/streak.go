package analytics

import (
	"sort"
	"time"

	"github.com/focusdeck/focusdeck/internal/db"
	"github.com/focusdeck/focusdeck/internal/timeutil"
)

// The streak tracker is a state machine over calendar days. A day
// is met when its focus minutes reach the configured threshold (or
// it was manually recovered). Consecutive met days extend the
// streak; up to GracePeriodDays consecutive missed days can be
// bridged by a later met day without breaking it; one further
// missed day expires the grace and resets the streak to zero.

// BuildDayRecords buckets session minutes per local calendar date
// and marks each day met or missed against the threshold. Output is
// sorted by date.
func BuildDayRecords(
	sessions []db.Session, s Settings, loc *time.Location,
) []db.DayRecord {
	minutes := make(map[string]int)
	for _, sess := range sessions {
		date := sessionDate(sess, loc)
		if date == "" {
			continue
		}
		minutes[date] += sess.DurationMinutes
	}

	days := make([]db.DayRecord, 0, len(minutes))
	for date, mins := range minutes {
		days = append(days, db.DayRecord{
			Date:    date,
			Minutes: mins,
			Met:     mins >= s.MinimumFocusMinutes,
		})
	}
	sort.Slice(days, func(i, j int) bool {
		return days[i].Date < days[j].Date
	})
	return days
}

// MergeRecovered carries manual-recovery flags from existing day
// records onto freshly computed ones, so a rebuild from session
// history never erases a recovery.
func MergeRecovered(
	computed, existing []db.DayRecord,
) []db.DayRecord {
	recovered := make(map[string]bool)
	for _, d := range existing {
		if d.Recovered {
			recovered[d.Date] = true
		}
	}
	if len(recovered) == 0 {
		return computed
	}

	byDate := make(map[string]int, len(computed))
	for i, d := range computed {
		byDate[d.Date] = i
	}
	out := append([]db.DayRecord(nil), computed...)
	for date := range recovered {
		if i, ok := byDate[date]; ok {
			out[i].Recovered = true
		} else {
			out = append(out, db.DayRecord{
				Date: date, Recovered: true,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date < out[j].Date
	})
	return out
}

// dayMet reports whether a day counts toward the streak.
func dayMet(d db.DayRecord) bool {
	return d.Met || d.Recovered
}

// Advance folds one calendar day into the cached streak state. This
// is the incremental daily-update path; replaying it over the full
// history must be equivalent to RebuildFromHistory.
func Advance(
	st db.StreakState, day db.DayRecord, s Settings,
) db.StreakState {
	if dayMet(day) {
		switch {
		case len(st.StreakDates) == 0:
			st.CurrentStreak = 1
			st.StreakDates = []string{day.Date}
		default:
			last := st.StreakDates[len(st.StreakDates)-1]
			gap := timeutil.DaysBetween(last, day.Date)
			switch {
			case gap <= 0:
				// Replay of an already-counted date.
				return st
			case gap == 1:
				st.CurrentStreak++
				st.StreakDates = append(st.StreakDates, day.Date)
			case s.GraceRecoveryEnabled && gap-1 <= s.GracePeriodDays:
				// Missed days bridged by grace; they do not
				// increment the streak themselves.
				st.CurrentStreak++
				st.StreakDates = append(st.StreakDates, day.Date)
			default:
				st.CurrentStreak = 1
				st.StreakDates = []string{day.Date}
			}
		}
		if st.CurrentStreak > st.LongestStreak {
			st.LongestStreak = st.CurrentStreak
		}
		st.GraceActive = false
		st.GraceEndsAt = nil
		return st
	}

	// Missed day.
	if st.CurrentStreak == 0 {
		return st
	}
	last := st.StreakDates[len(st.StreakDates)-1]
	missedRun := timeutil.DaysBetween(last, day.Date)
	if s.GraceRecoveryEnabled && missedRun <= s.GracePeriodDays {
		ends := timeutil.AddDays(last, s.GracePeriodDays+1)
		st.GraceActive = true
		st.GraceEndsAt = &ends
		return st
	}

	// Grace expired (or recovery disabled): the streak resets.
	st.CurrentStreak = 0
	st.StreakDates = []string{}
	st.GraceActive = false
	st.GraceEndsAt = nil
	return st
}

// RebuildFromHistory recomputes the streak state by replaying every
// calendar day from the first recorded day through today, treating
// gaps as missed days. It is idempotent and is the authoritative
// fallback whenever historical data changes.
func RebuildFromHistory(
	days []db.DayRecord, s Settings, today string,
) db.StreakState {
	st := db.StreakState{StreakDates: []string{}}
	if len(days) == 0 {
		return st
	}

	byDate := make(map[string]db.DayRecord, len(days))
	first := days[0].Date
	for _, d := range days {
		byDate[d.Date] = d
		if d.Date < first {
			first = d.Date
		}
	}
	if today < first {
		today = first
	}

	for date := first; date <= today; date = timeutil.AddDays(date, 1) {
		day, ok := byDate[date]
		if !ok {
			day = db.DayRecord{Date: date}
		}
		st = Advance(st, day, s)
	}
	return st
}

// --- Manual recovery ---

// RecoveryResult is the outcome of a manual streak recovery. An
// ineligible date is an expected user condition, reported as a
// structured failure rather than an error.
type RecoveryResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// EvaluateRecovery decides whether a missed date may be recovered:
// recovery must be enabled, the date must be a real past date that
// was not already met, and it must fall within GracePeriodDays of a
// preceding met day. The caller applies the recovery (marking the
// day recovered and rebuilding the chain) only on success; state is
// never mutated on failure.
func EvaluateRecovery(
	days []db.DayRecord, date, today string, s Settings,
) RecoveryResult {
	if !s.GraceRecoveryEnabled {
		return RecoveryResult{
			Message: "grace recovery is disabled in settings",
		}
	}
	if !timeutil.ValidDate(date) {
		return RecoveryResult{
			Message: "date must be YYYY-MM-DD",
		}
	}
	if date > today {
		return RecoveryResult{
			Message: "cannot recover a future date",
		}
	}

	var lastMetBefore string
	for _, d := range days {
		if d.Date == date && dayMet(d) {
			return RecoveryResult{
				Message: "date already met the focus goal",
			}
		}
		if d.Date < date && dayMet(d) && d.Date > lastMetBefore {
			lastMetBefore = d.Date
		}
	}
	if lastMetBefore == "" {
		return RecoveryResult{
			Message: "no met day precedes this date",
		}
	}
	if timeutil.DaysBetween(lastMetBefore, date) > s.GracePeriodDays {
		return RecoveryResult{
			Message: "date is outside the grace window",
		}
	}
	return RecoveryResult{Success: true, Message: "day recovered"}
}

// --- Weekly goal progress ---

// GoalProgress is one category's progress against its weekly goal.
// Percentage is capped at 100 for display; IsCompleted is true only
// at a real 100%, uncapped.
type GoalProgress struct {
	CategoryID        string  `json:"category_id"`
	CategoryName      string  `json:"category_name"`
	WeeklyGoalMinutes int     `json:"weekly_goal_minutes"`
	CurrentMinutes    int     `json:"current_minutes"`
	Percentage        float64 `json:"percentage"`
	IsCompleted       bool    `json:"is_completed"`
	StreakWeeks       int     `json:"streak_weeks"`
}

// GoalProgressForWeek evaluates each goal-bearing category for the
// week starting at weekStart (a Monday). Categories without a
// configured goal (WeeklyGoalMinutes == 0) are excluded. The
// sessions slice should span enough prior weeks to count
// StreakWeeks: consecutive goal-met weeks ending with this week
// when it is already complete, otherwise with the previous week.
func GoalProgressForWeek(
	sessions []db.Session, categories []db.Category,
	weekStart string, loc *time.Location,
) []GoalProgress {
	// category -> week start -> minutes
	weekMinutes := make(map[string]map[string]int)
	for _, s := range sessions {
		date := sessionDate(s, loc)
		if date == "" {
			continue
		}
		week := timeutil.WeekStart(date)
		if weekMinutes[s.CategoryID] == nil {
			weekMinutes[s.CategoryID] = make(map[string]int)
		}
		weekMinutes[s.CategoryID][week] += s.DurationMinutes
	}

	progress := []GoalProgress{}
	for _, c := range categories {
		if c.WeeklyGoalMinutes <= 0 {
			continue
		}
		cur := weekMinutes[c.ID][weekStart]
		goal := c.WeeklyGoalMinutes
		pct := safeRatio(float64(cur)*100, float64(goal))
		if pct > 100 {
			pct = 100
		}
		completed := cur >= goal

		streakWeeks := 0
		start := weekStart
		if !completed {
			start = timeutil.AddDays(weekStart, -7)
		}
		for w := start; weekMinutes[c.ID][w] >= goal; w = timeutil.AddDays(w, -7) {
			streakWeeks++
		}

		progress = append(progress, GoalProgress{
			CategoryID:        c.ID,
			CategoryName:      c.Name,
			WeeklyGoalMinutes: goal,
			CurrentMinutes:    cur,
			Percentage:        round1(pct),
			IsCompleted:       completed,
			StreakWeeks:       streakWeeks,
		})
	}

	sort.Slice(progress, func(i, j int) bool {
		return progress[i].CategoryName < progress[j].CategoryName
	})
	return progress
}
