// Package analytics computes the dashboard statistics: time
// distribution, productivity heatmaps, session-length distributions,
// goal progress, streak tracking, and period-over-period comparison.
// Every function is a pure computation over an immutable snapshot of
// session records; concurrent queries need no locking.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/focusdeck/focusdeck/internal/db"
	"github.com/focusdeck/focusdeck/internal/timeutil"
)

// ErrInvalidRange marks a date-range validation failure. Handlers
// map it to a 400 response; it is never silently clamped.
var ErrInvalidRange = errors.New("invalid date range")

// Settings are the tunable constants of the analytics core. The
// score weights and thresholds are heuristics, so they are carried
// as configuration rather than hard constants.
type Settings struct {
	// MinimumFocusMinutes is the daily focus-time threshold a day
	// must reach to count toward the streak.
	MinimumFocusMinutes int `json:"minimum_focus_minutes"`
	// GracePeriodDays is how many consecutive missed days a streak
	// can survive when a met day follows in time.
	GracePeriodDays int `json:"grace_period_days"`
	// GraceRecoveryEnabled gates both automatic grace bridging and
	// manual recovery of missed days.
	GraceRecoveryEnabled bool `json:"grace_recovery_enabled"`

	// QualityWeight and VolumeWeight blend the two normalized
	// components of a heatmap cell's focus score.
	QualityWeight float64 `json:"quality_weight"`
	VolumeWeight  float64 `json:"volume_weight"`

	// SuggestionCount is how many time slots a suggestion returns.
	SuggestionCount int `json:"suggestion_count"`
	// QualitySmoothing is the pseudo-count pulling sparse duration
	// buckets toward the global mean quality, so one lucky session
	// cannot outrank a well-tested bucket.
	QualitySmoothing float64 `json:"quality_smoothing"`

	// TrendDeadBandPct is the +/- percentage band classified as a
	// stable trend.
	TrendDeadBandPct float64 `json:"trend_dead_band_pct"`

	// MaxRangeDays caps the span of a single analytics query.
	MaxRangeDays int `json:"max_range_days"`
}

// DefaultSettings returns the stock analytics configuration.
func DefaultSettings() Settings {
	return Settings{
		MinimumFocusMinutes:  25,
		GracePeriodDays:      1,
		GraceRecoveryEnabled: true,
		QualityWeight:        0.7,
		VolumeWeight:         0.3,
		SuggestionCount:      2,
		QualitySmoothing:     3,
		TrendDeadBandPct:     5,
		MaxRangeDays:         365,
	}
}

// Range is an inclusive ISO calendar-date range.
type Range struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Days returns the number of calendar days the range spans.
func (r Range) Days() int {
	return timeutil.DaysBetween(r.From, r.To) + 1
}

// Previous returns the range of equal length immediately preceding r.
func (r Range) Previous() Range {
	n := r.Days()
	return Range{
		From: timeutil.AddDays(r.From, -n),
		To:   timeutil.AddDays(r.To, -n),
	}
}

// NewRange validates and builds an inclusive date range. Rejected
// before any aggregation runs: malformed dates, from after to, and
// spans over s.MaxRangeDays.
func NewRange(from, to string, s Settings) (Range, error) {
	if !timeutil.ValidDate(from) || !timeutil.ValidDate(to) {
		return Range{}, fmt.Errorf(
			"%w: dates must be YYYY-MM-DD", ErrInvalidRange,
		)
	}
	if from > to {
		return Range{}, fmt.Errorf(
			"%w: from must not be after to", ErrInvalidRange,
		)
	}
	if days := timeutil.DaysBetween(from, to) + 1; days > s.MaxRangeDays {
		return Range{}, fmt.Errorf(
			"%w: span of %d days exceeds %d-day cap",
			ErrInvalidRange, days, s.MaxRangeDays,
		)
	}
	return Range{From: from, To: to}, nil
}

// RecordSource is the read interface the analytics core consumes
// from the record store. Every read is a snapshot; two calls within
// one report may observe different data, which is accepted.
type RecordSource interface {
	SessionsInRange(ctx context.Context, from, to string) ([]db.Session, error)
	Categories(ctx context.Context) ([]db.Category, error)
	StreakDays(ctx context.Context) ([]db.DayRecord, error)
}

// round1 rounds to one decimal place.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// round2 rounds to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// safeRatio returns num/den, or 0 for a zero denominator. Every
// ratio in the package goes through here or an equivalent guard so
// empty inputs yield defined finite numbers, never NaN.
func safeRatio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

// localStart parses a session's UTC start timestamp into loc.
func localStart(s db.Session, loc *time.Location) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339Nano, s.StartedAt)
	if err != nil {
		t, err = time.Parse("2006-01-02T15:04:05", s.StartedAt)
		if err != nil {
			return time.Time{}, false
		}
	}
	return t.In(loc), true
}

// sessionDate returns the local calendar date of a session start.
func sessionDate(s db.Session, loc *time.Location) string {
	t, ok := localStart(s, loc)
	if !ok {
		if len(s.StartedAt) >= 10 {
			return s.StartedAt[:10]
		}
		return ""
	}
	return timeutil.Date(t)
}
