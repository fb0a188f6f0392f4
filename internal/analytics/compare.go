package analytics

import (
	"math"
	"time"

	"github.com/focusdeck/focusdeck/internal/db"
	"github.com/focusdeck/focusdeck/internal/timeutil"
)

// Trend classifications for period-over-period metrics.
const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendStable = "stable"
)

// MetricComparison is one metric's paired-period delta.
type MetricComparison struct {
	Metric     string  `json:"metric"`
	Current    float64 `json:"current"`
	Previous   float64 `json:"previous"`
	Change     float64 `json:"change"`
	ChangePct  float64 `json:"change_percentage"`
	Trend      string  `json:"trend"`
}

// PeriodComparison is the week-over-week or month-over-month report.
type PeriodComparison struct {
	Period           string             `json:"period"`
	CurrentRange     Range              `json:"current_range"`
	PreviousRange    Range              `json:"previous_range"`
	Metrics          []MetricComparison `json:"metrics"`
	OverallTrend     string             `json:"overall_trend"`
	ConsistencyScore float64            `json:"consistency_score"`
}

// classifyTrend applies the dead band: small fluctuations are
// stable, not noise-driven ups and downs.
func classifyTrend(changePct, deadBand float64) string {
	switch {
	case changePct > deadBand:
		return TrendUp
	case changePct < -deadBand:
		return TrendDown
	default:
		return TrendStable
	}
}

// Delta computes one paired-period metric. A zero previous value
// yields 100% when anything appeared and 0% when nothing did, never
// a division by zero.
func Delta(metric string, current, previous float64, s Settings) MetricComparison {
	change := current - previous
	var pct float64
	switch {
	case previous == 0 && current > 0:
		pct = 100
	case previous == 0:
		pct = 0
	default:
		pct = 100 * change / previous
	}
	return MetricComparison{
		Metric:    metric,
		Current:   round2(current),
		Previous:  round2(previous),
		Change:    round2(change),
		ChangePct: round2(pct),
		Trend:     classifyTrend(pct, s.TrendDeadBandPct),
	}
}

// overallTrend is the majority classification across metrics; ties
// default to stable.
func overallTrend(metrics []MetricComparison) string {
	counts := map[string]int{}
	for _, m := range metrics {
		counts[m.Trend]++
	}
	best := TrendStable
	bestCount := 0
	tie := false
	for _, trend := range []string{TrendUp, TrendDown, TrendStable} {
		switch {
		case counts[trend] > bestCount:
			best = trend
			bestCount = counts[trend]
			tie = false
		case counts[trend] == bestCount && counts[trend] > 0 && trend != best:
			tie = true
		}
	}
	if tie {
		return TrendStable
	}
	return best
}

// ConsistencyScore measures how evenly focus time is spread across
// days: 100*(1 - stddev/mean), clamped to [0,100], 0 for an empty
// period.
func ConsistencyScore(dailyTotals []float64) float64 {
	if len(dailyTotals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range dailyTotals {
		sum += v
	}
	mean := sum / float64(len(dailyTotals))
	if mean == 0 {
		return 0
	}

	var variance float64
	for _, v := range dailyTotals {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(dailyTotals))

	score := 100 * (1 - math.Sqrt(variance)/mean)
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return round1(score)
}

// periodStats holds the metric inputs for one period.
type periodStats struct {
	totalMinutes int
	sessions     int
	qualitySum   int
	qualityCount int
	activeDays   map[string]bool
}

func collectPeriodStats(
	sessions []db.Session, loc *time.Location,
) periodStats {
	st := periodStats{activeDays: make(map[string]bool)}
	for _, s := range sessions {
		st.totalMinutes += s.DurationMinutes
		st.sessions++
		if s.QualityRating != nil {
			st.qualitySum += *s.QualityRating
			st.qualityCount++
		}
		if date := sessionDate(s, loc); date != "" {
			st.activeDays[date] = true
		}
	}
	return st
}

// dailyTotals returns focus minutes for every calendar day of the
// range, zero-filled for inactive days, so the consistency score
// reflects the whole period rather than only active days.
func dailyTotals(
	sessions []db.Session, r Range, loc *time.Location,
) []float64 {
	perDay := make(map[string]int)
	for _, s := range sessions {
		if date := sessionDate(s, loc); date != "" {
			perDay[date] += s.DurationMinutes
		}
	}
	var totals []float64
	for date := r.From; date <= r.To; date = timeutil.AddDays(date, 1) {
		totals = append(totals, float64(perDay[date]))
	}
	return totals
}

// ComparePeriods computes the paired-period comparison between two
// equal-length session snapshots. The two snapshots are fetched
// separately; a torn read between them is accepted, not resolved.
func ComparePeriods(
	period string,
	current, previous []db.Session,
	curRange, prevRange Range,
	loc *time.Location, s Settings,
) PeriodComparison {
	cur := collectPeriodStats(current, loc)
	prev := collectPeriodStats(previous, loc)

	metrics := []MetricComparison{
		Delta("total_minutes",
			float64(cur.totalMinutes), float64(prev.totalMinutes), s),
		Delta("sessions",
			float64(cur.sessions), float64(prev.sessions), s),
		Delta("avg_session_minutes",
			safeRatio(float64(cur.totalMinutes), float64(cur.sessions)),
			safeRatio(float64(prev.totalMinutes), float64(prev.sessions)), s),
		Delta("avg_quality",
			safeRatio(float64(cur.qualitySum), float64(cur.qualityCount)),
			safeRatio(float64(prev.qualitySum), float64(prev.qualityCount)), s),
		Delta("active_days",
			float64(len(cur.activeDays)), float64(len(prev.activeDays)), s),
	}

	return PeriodComparison{
		Period:           period,
		CurrentRange:     curRange,
		PreviousRange:    prevRange,
		Metrics:          metrics,
		OverallTrend:     overallTrend(metrics),
		ConsistencyScore: ConsistencyScore(dailyTotals(current, curRange, loc)),
	}
}
