package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focusdeck/focusdeck/internal/db"
)

func TestScoreGridNormalization(t *testing.T) {
	s := DefaultSettings()
	sessions := []db.Session{
		session("s1", "c1", "2024-06-03T09:00:00Z", 60, ptr(5)),
		session("s2", "c1", "2024-06-04T14:00:00Z", 30, ptr(3)),
	}

	g := HourWeekdayGrid(sessions, time.UTC)
	ScoreGrid(g, s)

	// The best cell maxes both components: 0.7*1 + 0.3*1.
	best := g.Cell(0, 9)
	assert.Equal(t, 1.0, best.FocusScore)

	other := g.Cell(1, 14)
	assert.Greater(t, other.FocusScore, 0.0)
	assert.Less(t, other.FocusScore, 1.0)
}

func TestScoreGridEmptyNoNaN(t *testing.T) {
	g := HourWeekdayGrid(nil, time.UTC)
	ScoreGrid(g, DefaultSettings())
	for i := range g.Cells {
		assert.Equal(t, 0.0, g.Cells[i].FocusScore)
	}
}

func TestOptimalSessionLengthSmoothing(t *testing.T) {
	s := DefaultSettings()

	// One lucky 5-star session in 60-90 must not outrank ten
	// 4.5-average sessions in 30-45 once smoothing pulls the sparse
	// bucket toward the neutral midpoint.
	var sessions []db.Session
	for i := 0; i < 5; i++ {
		sessions = append(sessions,
			session("", "c1", "2024-06-03T09:00:00Z", 35, ptr(4)),
			session("", "c1", "2024-06-03T10:00:00Z", 40, ptr(5)),
			session("", "c1", "2024-06-03T11:00:00Z", 10, ptr(2)),
		)
	}
	sessions = append(sessions,
		session("", "c1", "2024-06-03T12:00:00Z", 70, ptr(5)),
	)

	buckets := DurationDistribution(sessions, nil)
	rec := OptimalSessionLength(buckets, sessions, s)
	assert.Equal(t, "30-45", rec.BucketLabel)
	assert.Equal(t, 37, rec.SuggestedMinutes)
	assert.NotEmpty(t, rec.Reason)
}

func TestOptimalSessionLengthCountWeighting(t *testing.T) {
	s := DefaultSettings()

	// Fifty sessions averaging 4.5 sit near the global mean, so a
	// prior built from that mean would barely dent the lone 5-star
	// bucket. The neutral prior must still rank the deep bucket
	// first.
	var sessions []db.Session
	for i := 0; i < 25; i++ {
		sessions = append(sessions,
			session("", "c1", "2024-06-03T09:00:00Z", 35, ptr(4)),
			session("", "c1", "2024-06-03T10:00:00Z", 40, ptr(5)),
		)
	}
	sessions = append(sessions,
		session("", "c1", "2024-06-03T12:00:00Z", 70, ptr(5)),
	)

	buckets := DurationDistribution(sessions, nil)
	rec := OptimalSessionLength(buckets, sessions, s)
	assert.Equal(t, "30-45", rec.BucketLabel)
	// (4.5*50 + 3*3) / 53, well under the bucket's raw 4.5 average
	// and above the sparse bucket's (5 + 3*3) / 4 = 3.5.
	assert.InDelta(t, 4.42, rec.WeightedQuality, 0.01)
}

func TestOptimalSessionLengthNoRatedSessions(t *testing.T) {
	sessions := []db.Session{
		session("s1", "c1", "2024-06-03T09:00:00Z", 50, nil),
	}
	buckets := DurationDistribution(sessions, nil)

	rec := OptimalSessionLength(buckets, sessions, DefaultSettings())
	assert.Equal(t, 25, rec.SuggestedMinutes)
	assert.Equal(t, "not enough rated sessions yet", rec.Reason)
}

func TestSuggestSessionTimesTopSlots(t *testing.T) {
	s := DefaultSettings()
	sessions := []db.Session{
		session("s1", "c1", "2024-06-03T09:00:00Z", 60, ptr(5)),
		session("s2", "c1", "2024-06-10T09:00:00Z", 60, ptr(5)),
		session("s3", "c1", "2024-06-04T14:00:00Z", 30, ptr(3)),
		session("s4", "c1", "2024-06-05T20:00:00Z", 15, ptr(2)),
	}

	g := HourWeekdayGrid(sessions, time.UTC)
	ScoreGrid(g, s)
	rec := OptimalSessionLength(
		DurationDistribution(sessions, nil), sessions, s,
	)
	suggestion := SuggestSessionTimes(g, rec, s)

	require.Len(t, suggestion.Alternatives, s.SuggestionCount)
	top := suggestion.Alternatives[0]
	assert.Equal(t, 0, top.DayOfWeek)
	assert.Equal(t, 9, top.Hour)
	assert.Equal(t, ConfidenceHigh, suggestion.Confidence)
	assert.Contains(t, suggestion.Reason, "Monday at 09:00")
}

func TestSuggestSessionTimesSkipsUntestedSlots(t *testing.T) {
	s := DefaultSettings()
	sessions := []db.Session{
		session("s1", "c1", "2024-06-03T09:00:00Z", 60, ptr(5)),
	}

	g := HourWeekdayGrid(sessions, time.UTC)
	ScoreGrid(g, s)
	suggestion := SuggestSessionTimes(g, LengthRecommendation{}, s)

	// Only one slot has data; never padded with empty cells.
	require.Len(t, suggestion.Alternatives, 1)
}

func TestSuggestSessionTimesEmpty(t *testing.T) {
	g := HourWeekdayGrid(nil, time.UTC)
	ScoreGrid(g, DefaultSettings())
	suggestion := SuggestSessionTimes(
		g, LengthRecommendation{SuggestedMinutes: 25},
		DefaultSettings(),
	)

	assert.Empty(t, suggestion.Alternatives)
	assert.Equal(t, ConfidenceVeryLow, suggestion.Confidence)
	assert.Equal(t, "no sessions recorded yet", suggestion.Reason)
}

func TestConfidenceLabel(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0.9, ConfidenceHigh},
		{0.8, ConfidenceHigh},
		{0.7, ConfidenceMedium},
		{0.5, ConfidenceLow},
		{0.2, ConfidenceVeryLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, confidenceLabel(tt.score),
			"score %.2f", tt.score)
	}
}
