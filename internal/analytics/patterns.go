package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/focusdeck/focusdeck/internal/db"
)

// Confidence tiers for time suggestions.
const (
	ConfidenceHigh    = "High"
	ConfidenceMedium  = "Medium"
	ConfidenceLow     = "Low"
	ConfidenceVeryLow = "Very Low"
)

// confidenceLabel maps a focus score to its tier.
func confidenceLabel(score float64) string {
	switch {
	case score >= 0.8:
		return ConfidenceHigh
	case score >= 0.6:
		return ConfidenceMedium
	case score >= 0.4:
		return ConfidenceLow
	default:
		return ConfidenceVeryLow
	}
}

// ScoreGrid fills each cell's FocusScore: a blend of quality and
// volume, each max-normalized against the best cell in this query.
// The top cell therefore always has component 1.0; when all cells
// are empty or equal at zero, components stay 0 instead of
// dividing by zero.
func ScoreGrid(g *Grid, s Settings) {
	var maxQuality, maxVolume float64
	for i := range g.Cells {
		c := &g.Cells[i]
		if c.AverageQuality > maxQuality {
			maxQuality = c.AverageQuality
		}
		if float64(c.TotalMinutes) > maxVolume {
			maxVolume = float64(c.TotalMinutes)
		}
	}

	for i := range g.Cells {
		c := &g.Cells[i]
		q := safeRatio(c.AverageQuality, maxQuality)
		v := safeRatio(float64(c.TotalMinutes), maxVolume)
		c.FocusScore = round2(s.QualityWeight*q + s.VolumeWeight*v)
	}
}

// --- Optimal session length ---

// LengthRecommendation is the suggested focus-session duration
// derived from the duration histogram.
type LengthRecommendation struct {
	SuggestedMinutes int     `json:"suggested_minutes"`
	BucketLabel      string  `json:"bucket_label"`
	WeightedQuality  float64 `json:"weighted_quality"`
	Reason           string  `json:"reason"`
}

// meanSessionMinutes returns the historical mean session length.
func meanSessionMinutes(sessions []db.Session) float64 {
	total := 0
	for _, s := range sessions {
		total += s.DurationMinutes
	}
	return safeRatio(float64(total), float64(len(sessions)))
}

// ratingMidpoint is the neutral point of the 1-5 quality scale,
// used as the smoothing prior for sparsely rated buckets.
const ratingMidpoint = 3.0

// OptimalSessionLength picks the duration bucket with the best
// count-weighted quality. Each bucket's mean rating is smoothed
// toward the neutral midpoint of the rating scale with
// s.QualitySmoothing pseudo-ratings: a bucket holding one lucky 5
// scores well below a bucket averaging 4.5 over fifty sessions,
// whose mean barely moves. Ties prefer the bucket whose midpoint is
// closest to the historical mean session length.
func OptimalSessionLength(
	buckets []DurationBucket, sessions []db.Session, s Settings,
) LengthRecommendation {
	ratedTotal := 0
	for _, b := range buckets {
		ratedTotal += b.RatedCount
	}
	if ratedTotal == 0 {
		return LengthRecommendation{
			SuggestedMinutes: 25,
			Reason:           "not enough rated sessions yet",
		}
	}
	histMean := meanSessionMinutes(sessions)

	best := -1
	var bestScore, bestDist float64
	prevWidth := 0
	for i, b := range buckets {
		width := b.MaxMinutes - b.MinMinutes
		if b.RatedCount > 0 {
			n := float64(b.RatedCount)
			score := (b.AverageQuality*n +
				ratingMidpoint*s.QualitySmoothing) /
				(n + s.QualitySmoothing)
			dist := float64(b.midpoint(prevWidth)) - histMean
			if dist < 0 {
				dist = -dist
			}
			if best < 0 || score > bestScore ||
				(score == bestScore && dist < bestDist) {
				best = i
				bestScore = score
				bestDist = dist
			}
		}
		if b.MaxMinutes > 0 {
			prevWidth = width
		}
	}

	prevWidth = 0
	for i := 0; i < best; i++ {
		if buckets[i].MaxMinutes > 0 {
			prevWidth = buckets[i].MaxMinutes - buckets[i].MinMinutes
		}
	}
	b := buckets[best]
	return LengthRecommendation{
		SuggestedMinutes: b.midpoint(prevWidth),
		BucketLabel:      b.Label,
		WeightedQuality:  round2(bestScore),
		Reason: fmt.Sprintf(
			"%d rated sessions in the %s minute range average %.1f/5",
			b.RatedCount, b.Label, b.AverageQuality,
		),
	}
}

// --- Session-time suggestion ---

// AlternativeTime is one suggested (day-of-week, hour) slot.
type AlternativeTime struct {
	DayOfWeek int     `json:"day_of_week"`
	Hour      int     `json:"hour"`
	Score     float64 `json:"score"`
}

// TimeSuggestion is the "best times to focus" recommendation.
type TimeSuggestion struct {
	SuggestedDurationMinutes int               `json:"suggested_duration_minutes"`
	Confidence               string            `json:"confidence"`
	Reason                   string            `json:"reason"`
	Alternatives             []AlternativeTime `json:"alternative_times"`
}

var weekdayNames = [7]string{
	"Monday", "Tuesday", "Wednesday", "Thursday",
	"Friday", "Saturday", "Sunday",
}

// SuggestSessionTimes returns the top-N slots by focus score,
// skipping untested slots (zero sessions). Fewer than N qualifying
// cells are returned as-is, never padded. The grid must already be
// scored.
func SuggestSessionTimes(
	g *Grid, rec LengthRecommendation, s Settings,
) TimeSuggestion {
	n := s.SuggestionCount
	if n <= 0 {
		n = 2
	}

	candidates := make([]HeatmapCell, 0, len(g.Cells))
	for _, c := range g.Cells {
		if c.SessionCount > 0 {
			candidates = append(candidates, c)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].FocusScore != candidates[j].FocusScore {
			return candidates[i].FocusScore > candidates[j].FocusScore
		}
		if candidates[i].DayOfWeek != candidates[j].DayOfWeek {
			return candidates[i].DayOfWeek < candidates[j].DayOfWeek
		}
		return candidates[i].Hour < candidates[j].Hour
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}

	suggestion := TimeSuggestion{
		SuggestedDurationMinutes: rec.SuggestedMinutes,
		Confidence:               ConfidenceVeryLow,
		Reason:                   "no sessions recorded yet",
		Alternatives:             []AlternativeTime{},
	}
	if len(candidates) == 0 {
		return suggestion
	}

	top := candidates[0]
	suggestion.Confidence = confidenceLabel(top.FocusScore)
	suggestion.Reason = fmt.Sprintf(
		"%s at %02d:00 scores %.2f across %d sessions",
		weekdayNames[top.DayOfWeek], top.Hour,
		top.FocusScore, top.SessionCount,
	)
	for _, c := range candidates {
		suggestion.Alternatives = append(suggestion.Alternatives,
			AlternativeTime{
				DayOfWeek: c.DayOfWeek,
				Hour:      c.Hour,
				Score:     c.FocusScore,
			})
	}
	return suggestion
}

// PeakHours is a convenience over ScoreGrid + SuggestSessionTimes
// for callers that only have raw sessions.
func PeakHours(
	sessions []db.Session, loc *time.Location, s Settings,
) TimeSuggestion {
	g := HourWeekdayGrid(sessions, loc)
	ScoreGrid(g, s)
	rec := OptimalSessionLength(
		DurationDistribution(sessions, nil), sessions, s,
	)
	return SuggestSessionTimes(g, rec, s)
}
