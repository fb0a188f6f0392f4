package analytics

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focusdeck/focusdeck/internal/db"
)

func day(date string, minutes int, met bool) db.DayRecord {
	return db.DayRecord{Date: date, Minutes: minutes, Met: met}
}

func TestBuildDayRecords(t *testing.T) {
	s := DefaultSettings()
	sessions := []db.Session{
		session("s1", "c1", "2024-06-03T09:00:00Z", 15, nil),
		session("s2", "c1", "2024-06-03T14:00:00Z", 15, nil),
		session("s3", "c1", "2024-06-04T09:00:00Z", 20, nil),
	}

	days := BuildDayRecords(sessions, s, time.UTC)
	require.Len(t, days, 2)

	// Two short sessions add up past the 25-minute threshold.
	assert.Equal(t, "2024-06-03", days[0].Date)
	assert.Equal(t, 30, days[0].Minutes)
	assert.True(t, days[0].Met)

	assert.Equal(t, "2024-06-04", days[1].Date)
	assert.False(t, days[1].Met)
}

func TestAdvanceConsecutiveDays(t *testing.T) {
	s := DefaultSettings()
	st := db.StreakState{StreakDates: []string{}}

	st = Advance(st, day("2024-06-03", 30, true), s)
	st = Advance(st, day("2024-06-04", 40, true), s)
	st = Advance(st, day("2024-06-05", 25, true), s)

	assert.Equal(t, 3, st.CurrentStreak)
	assert.Equal(t, 3, st.LongestStreak)
	assert.False(t, st.GraceActive)
}

func TestAdvanceGraceBridge(t *testing.T) {
	s := DefaultSettings()
	st := db.StreakState{StreakDates: []string{}}

	st = Advance(st, day("2024-06-03", 30, true), s)
	afterFirst := st.CurrentStreak

	st = Advance(st, day("2024-06-04", 0, false), s)
	assert.Equal(t, afterFirst, st.CurrentStreak,
		"grace keeps the streak alive")
	assert.True(t, st.GraceActive)
	require.NotNil(t, st.GraceEndsAt)
	assert.Equal(t, "2024-06-05", *st.GraceEndsAt)

	st = Advance(st, day("2024-06-05", 30, true), s)
	assert.Equal(t, afterFirst+1, st.CurrentStreak,
		"bridged day continues the streak without counting the gap")
	assert.False(t, st.GraceActive)
	assert.Nil(t, st.GraceEndsAt)
}

func TestAdvanceGraceExpires(t *testing.T) {
	s := DefaultSettings()
	st := db.StreakState{StreakDates: []string{}}

	st = Advance(st, day("2024-06-03", 30, true), s)
	st = Advance(st, day("2024-06-04", 0, false), s)
	st = Advance(st, day("2024-06-05", 0, false), s)

	assert.Equal(t, 0, st.CurrentStreak)
	assert.False(t, st.GraceActive)
	assert.Equal(t, 1, st.LongestStreak)

	// A later met day starts over at 1.
	st = Advance(st, day("2024-06-06", 30, true), s)
	assert.Equal(t, 1, st.CurrentStreak)
}

func TestAdvanceGraceDisabled(t *testing.T) {
	s := DefaultSettings()
	s.GraceRecoveryEnabled = false
	st := db.StreakState{StreakDates: []string{}}

	st = Advance(st, day("2024-06-03", 30, true), s)
	st = Advance(st, day("2024-06-04", 0, false), s)

	assert.Equal(t, 0, st.CurrentStreak)
	assert.False(t, st.GraceActive)
}

func TestAdvanceLongestStreakMonotonic(t *testing.T) {
	s := DefaultSettings()
	st := db.StreakState{StreakDates: []string{}}

	dates := []struct {
		date string
		met  bool
	}{
		{"2024-06-03", true},
		{"2024-06-04", true},
		{"2024-06-05", false},
		{"2024-06-06", false},
		{"2024-06-07", true},
		{"2024-06-08", false},
	}
	prev := 0
	for _, d := range dates {
		st = Advance(st, day(d.date, 0, d.met), s)
		assert.GreaterOrEqual(t, st.LongestStreak, prev,
			"longest streak regressed at %s", d.date)
		assert.GreaterOrEqual(t, st.LongestStreak, st.CurrentStreak)
		prev = st.LongestStreak
	}
	assert.Equal(t, 2, st.LongestStreak)
}

func TestRebuildMatchesIncrementalAdvance(t *testing.T) {
	s := DefaultSettings()
	days := []db.DayRecord{
		day("2024-06-03", 30, true),
		day("2024-06-04", 40, true),
		day("2024-06-05", 10, false),
		day("2024-06-06", 30, true),
		day("2024-06-08", 25, true), // 06-07 missing entirely
		day("2024-06-10", 60, true), // 06-09 missing
		day("2024-06-11", 0, false),
		day("2024-06-12", 0, false),
		day("2024-06-13", 30, true),
	}

	incremental := db.StreakState{StreakDates: []string{}}
	for _, d := range days {
		incremental = Advance(incremental, d, s)
	}

	rebuilt := RebuildFromHistory(days, s, "2024-06-13")
	if diff := cmp.Diff(rebuilt, incremental); diff != "" {
		t.Errorf("rebuild and incremental fold disagree (-rebuilt +incremental):\n%s", diff)
	}
}

func TestRebuildFromHistoryEmpty(t *testing.T) {
	st := RebuildFromHistory(nil, DefaultSettings(), "2024-06-13")
	assert.Equal(t, 0, st.CurrentStreak)
	assert.Equal(t, 0, st.LongestStreak)
	assert.Empty(t, st.StreakDates)
}

func TestRebuildTreatsTrailingGapAsMissed(t *testing.T) {
	s := DefaultSettings()
	days := []db.DayRecord{
		day("2024-06-03", 30, true),
	}

	// Three days of silence after the last met day expire the grace.
	st := RebuildFromHistory(days, s, "2024-06-06")
	assert.Equal(t, 0, st.CurrentStreak)
	assert.Equal(t, 1, st.LongestStreak)
}

func TestMergeRecoveredPreservesFlags(t *testing.T) {
	computed := []db.DayRecord{
		day("2024-06-03", 30, true),
		day("2024-06-04", 10, false),
	}
	existing := []db.DayRecord{
		{Date: "2024-06-04", Recovered: true},
		{Date: "2024-06-05", Recovered: true},
	}

	merged := MergeRecovered(computed, existing)
	require.Len(t, merged, 3)
	assert.True(t, merged[1].Recovered)
	assert.Equal(t, 10, merged[1].Minutes, "recompute keeps minutes")
	assert.True(t, merged[2].Recovered)
}

func TestEvaluateRecovery(t *testing.T) {
	s := DefaultSettings()
	days := []db.DayRecord{
		day("2024-06-03", 30, true),
		day("2024-06-04", 10, false),
		day("2024-06-05", 30, true),
	}
	today := "2024-06-10"

	t.Run("eligible missed day", func(t *testing.T) {
		res := EvaluateRecovery(days, "2024-06-04", today, s)
		assert.True(t, res.Success)
	})

	t.Run("already met", func(t *testing.T) {
		res := EvaluateRecovery(days, "2024-06-05", today, s)
		assert.False(t, res.Success)
		assert.Equal(t, "date already met the focus goal", res.Message)
	})

	t.Run("future date", func(t *testing.T) {
		res := EvaluateRecovery(days, "2024-06-11", today, s)
		assert.False(t, res.Success)
	})

	t.Run("malformed date", func(t *testing.T) {
		res := EvaluateRecovery(days, "June 4th", today, s)
		assert.False(t, res.Success)
	})

	t.Run("outside grace window", func(t *testing.T) {
		// 06-07 is two days after the last met day before it.
		res := EvaluateRecovery(days, "2024-06-07", today, s)
		assert.False(t, res.Success)
		assert.Equal(t, "date is outside the grace window", res.Message)
	})

	t.Run("no preceding met day", func(t *testing.T) {
		res := EvaluateRecovery(days, "2024-06-01", today, s)
		assert.False(t, res.Success)
	})

	t.Run("recovery disabled", func(t *testing.T) {
		off := s
		off.GraceRecoveryEnabled = false
		res := EvaluateRecovery(days, "2024-06-04", today, off)
		assert.False(t, res.Success)
	})
}

func TestGoalProgressForWeek(t *testing.T) {
	categories := []db.Category{
		{ID: "c1", Name: "Writing", WeeklyGoalMinutes: 120},
		{ID: "c2", Name: "Reading", WeeklyGoalMinutes: 60},
		{ID: "c3", Name: "Inbox"}, // no goal configured
	}
	// Week of Monday 2024-06-03.
	sessions := []db.Session{
		session("s1", "c1", "2024-06-03T09:00:00Z", 90, nil),
		session("s2", "c1", "2024-06-05T09:00:00Z", 60, nil),
		session("s3", "c2", "2024-06-04T09:00:00Z", 30, nil),
		// Previous week, both goals met.
		session("s4", "c1", "2024-05-27T09:00:00Z", 120, nil),
		session("s5", "c2", "2024-05-28T09:00:00Z", 60, nil),
	}

	progress := GoalProgressForWeek(
		sessions, categories, "2024-06-03", time.UTC,
	)
	require.Len(t, progress, 2, "categories without goals are excluded")

	reading := progress[0]
	assert.Equal(t, "Reading", reading.CategoryName)
	assert.Equal(t, 30, reading.CurrentMinutes)
	assert.Equal(t, 50.0, reading.Percentage)
	assert.False(t, reading.IsCompleted)
	assert.Equal(t, 1, reading.StreakWeeks,
		"incomplete week counts back from the previous week")

	writing := progress[1]
	assert.Equal(t, 150, writing.CurrentMinutes)
	assert.Equal(t, 100.0, writing.Percentage, "capped at 100")
	assert.True(t, writing.IsCompleted)
	assert.Equal(t, 2, writing.StreakWeeks)
}
