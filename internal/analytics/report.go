package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/focusdeck/focusdeck/internal/db"
	"github.com/focusdeck/focusdeck/internal/timeutil"
)

// Report periods.
const (
	PeriodWeek  = "week"
	PeriodMonth = "month"
)

// goalLookbackWeeks is how far back the goal tracker reads sessions
// to count consecutive goal-met weeks.
const goalLookbackWeeks = 12

// Report is the assembled periodic summary: every analytics section
// computed over one week or month, plus the comparison against the
// preceding period of equal length.
type Report struct {
	Period       string               `json:"period"`
	Range        Range                `json:"range"`
	GeneratedAt  string               `json:"generated_at"`
	Distribution TimeDistribution     `json:"distribution"`
	Heatmap      *Grid                `json:"heatmap"`
	Durations    []DurationBucket     `json:"durations"`
	Length       LengthRecommendation `json:"length_recommendation"`
	Suggestion   TimeSuggestion       `json:"time_suggestion"`
	Goals        []GoalProgress       `json:"goals"`
	Streak       StreakSummary        `json:"streak"`
	Comparison   PeriodComparison     `json:"comparison"`
}

// StreakSummary is the streak section of a report or the standalone
// streak endpoint.
type StreakSummary struct {
	CurrentStreak int     `json:"current_streak"`
	LongestStreak int     `json:"longest_streak"`
	GraceActive   bool    `json:"grace_active"`
	GraceEndsAt   *string `json:"grace_ends_at,omitempty"`
	LastMetDate   string  `json:"last_met_date,omitempty"`
}

// PeriodRange resolves a named period to its calendar range: the
// Monday-to-Sunday week containing anchor, or anchor's calendar
// month. An empty anchor means today in loc.
func PeriodRange(period, anchor string, now time.Time, loc *time.Location) (Range, error) {
	if anchor == "" {
		anchor = timeutil.Date(now.In(loc))
	}
	if !timeutil.ValidDate(anchor) {
		return Range{}, fmt.Errorf(
			"%w: anchor must be YYYY-MM-DD", ErrInvalidRange,
		)
	}

	switch period {
	case PeriodWeek:
		start := timeutil.WeekStart(anchor)
		return Range{From: start, To: timeutil.AddDays(start, 6)}, nil
	case PeriodMonth:
		start := timeutil.MonthStart(anchor)
		t, err := timeutil.ParseDate(start)
		if err != nil {
			return Range{}, fmt.Errorf("%w: %v", ErrInvalidRange, err)
		}
		end := t.AddDate(0, 1, -1)
		return Range{From: start, To: timeutil.Date(end)}, nil
	default:
		return Range{}, fmt.Errorf(
			"%w: period must be week or month", ErrInvalidRange,
		)
	}
}

// BuildReport assembles the full periodic report. Each section reads
// its own snapshot from src; a write landing between two reads can
// leave sections observing slightly different data, which is accepted
// for a local single-user store.
func BuildReport(
	ctx context.Context, src RecordSource,
	period, anchor string,
	now time.Time, loc *time.Location, s Settings,
) (*Report, error) {
	r, err := PeriodRange(period, anchor, now, loc)
	if err != nil {
		return nil, err
	}
	prev := r.Previous()

	sessions, err := src.SessionsInRange(ctx, r.From, r.To)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	prevSessions, err := src.SessionsInRange(ctx, prev.From, prev.To)
	if err != nil {
		return nil, fmt.Errorf("load previous sessions: %w", err)
	}
	categories, err := src.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}

	grid := HourWeekdayGrid(sessions, loc)
	ScoreGrid(grid, s)
	durations := DurationDistribution(sessions, nil)
	length := OptimalSessionLength(durations, sessions, s)

	weekStart := timeutil.WeekStart(r.To)
	goalFrom := timeutil.AddDays(weekStart, -7*goalLookbackWeeks)
	goalSessions, err := src.SessionsInRange(ctx, goalFrom, r.To)
	if err != nil {
		return nil, fmt.Errorf("load goal sessions: %w", err)
	}

	days, err := src.StreakDays(ctx)
	if err != nil {
		return nil, fmt.Errorf("load streak days: %w", err)
	}
	streak := RebuildFromHistory(days, s, r.To)

	return &Report{
		Period:       period,
		Range:        r,
		GeneratedAt:  now.UTC().Format(time.RFC3339),
		Distribution: TimeByCategory(sessions, categories),
		Heatmap:      grid,
		Durations:    durations,
		Length:       length,
		Suggestion:   SuggestSessionTimes(grid, length, s),
		Goals: GoalProgressForWeek(
			goalSessions, categories, weekStart, loc,
		),
		Streak:     SummarizeStreak(streak),
		Comparison: ComparePeriods(period, sessions, prevSessions, r, prev, loc, s),
	}, nil
}

// SummarizeStreak projects the stored state into its API shape.
func SummarizeStreak(st db.StreakState) StreakSummary {
	sum := StreakSummary{
		CurrentStreak: st.CurrentStreak,
		LongestStreak: st.LongestStreak,
		GraceActive:   st.GraceActive,
		GraceEndsAt:   st.GraceEndsAt,
	}
	if len(st.StreakDates) > 0 {
		sum.LastMetDate = st.StreakDates[len(st.StreakDates)-1]
	}
	return sum
}
