package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/focusdeck/focusdeck/internal/db"
)

// --- Time distribution ---

// TimeDistributionEntry is one category's share of focused time.
type TimeDistributionEntry struct {
	CategoryID   string  `json:"category_id"`
	CategoryName string  `json:"category_name"`
	Color        string  `json:"color"`
	TotalMinutes int     `json:"total_minutes"`
	Percentage   float64 `json:"percentage"`
}

// TimeDistribution is the breakdown of focused minutes by category
// over a date range. Percentages sum to ~100 whenever TotalMinutes
// is positive; both are zero for an empty range.
type TimeDistribution struct {
	Entries      []TimeDistributionEntry `json:"entries"`
	TotalMinutes int                     `json:"total_minutes"`
}

// TimeByCategory buckets sessions into per-category totals, sorted
// by descending time. Categories without sessions in the input are
// omitted; unknown category IDs keep their ID as a display name so
// a torn catalog snapshot never drops minutes.
func TimeByCategory(
	sessions []db.Session, categories []db.Category,
) TimeDistribution {
	catalog := make(map[string]db.Category, len(categories))
	for _, c := range categories {
		catalog[c.ID] = c
	}

	minutes := make(map[string]int)
	var order []string
	total := 0
	for _, s := range sessions {
		if _, seen := minutes[s.CategoryID]; !seen {
			order = append(order, s.CategoryID)
		}
		minutes[s.CategoryID] += s.DurationMinutes
		total += s.DurationMinutes
	}

	dist := TimeDistribution{
		Entries:      []TimeDistributionEntry{},
		TotalMinutes: total,
	}
	for _, id := range order {
		e := TimeDistributionEntry{
			CategoryID:   id,
			CategoryName: id,
			TotalMinutes: minutes[id],
			Percentage: round2(safeRatio(
				float64(minutes[id])*100, float64(total),
			)),
		}
		if c, ok := catalog[id]; ok {
			e.CategoryName = c.Name
			e.Color = c.Color
		}
		dist.Entries = append(dist.Entries, e)
	}

	sort.Slice(dist.Entries, func(i, j int) bool {
		if dist.Entries[i].TotalMinutes != dist.Entries[j].TotalMinutes {
			return dist.Entries[i].TotalMinutes > dist.Entries[j].TotalMinutes
		}
		return dist.Entries[i].CategoryName < dist.Entries[j].CategoryName
	})
	return dist
}

// --- Hour-of-week grid ---

// HeatmapCell is aggregated session statistics for one
// (day-of-week, hour) slot. FocusScore is filled by ScoreGrid.
type HeatmapCell struct {
	DayOfWeek      int     `json:"day_of_week"` // 0=Mon, 6=Sun
	Hour           int     `json:"hour"`        // 0-23
	SessionCount   int     `json:"session_count"`
	TotalMinutes   int     `json:"total_minutes"`
	AverageMinutes float64 `json:"average_minutes"`
	AverageQuality float64 `json:"average_quality"`
	FocusScore     float64 `json:"focus_score"`
}

// Grid is the dense 7x24 hour-of-week grid. All 168 cells are
// always present; zero-session cells carry zeros, they are never
// absent.
type Grid struct {
	Cells []HeatmapCell `json:"cells"`
}

// Cell returns the cell for (dayOfWeek, hour).
func (g *Grid) Cell(dayOfWeek, hour int) *HeatmapCell {
	return &g.Cells[dayOfWeek*24+hour]
}

// HourWeekdayGrid buckets every session into its local
// (day-of-week, hour) slot based on the session start time. This is
// the shared substrate for the heatmap and the time suggestion.
func HourWeekdayGrid(
	sessions []db.Session, loc *time.Location,
) *Grid {
	g := &Grid{Cells: make([]HeatmapCell, 7*24)}
	for d := 0; d < 7; d++ {
		for h := 0; h < 24; h++ {
			c := g.Cell(d, h)
			c.DayOfWeek = d
			c.Hour = h
		}
	}

	var qualitySum [7 * 24]int
	var qualityCount [7 * 24]int

	for _, s := range sessions {
		t, ok := localStart(s, loc)
		if !ok {
			continue
		}
		dow := (int(t.Weekday()) + 6) % 7 // ISO Mon=0
		idx := dow*24 + t.Hour()
		c := &g.Cells[idx]
		c.SessionCount++
		c.TotalMinutes += s.DurationMinutes
		if s.QualityRating != nil {
			qualitySum[idx] += *s.QualityRating
			qualityCount[idx]++
		}
	}

	for i := range g.Cells {
		c := &g.Cells[i]
		c.AverageMinutes = round1(safeRatio(
			float64(c.TotalMinutes), float64(c.SessionCount),
		))
		c.AverageQuality = round2(safeRatio(
			float64(qualitySum[i]), float64(qualityCount[i]),
		))
	}
	return g
}

// --- Duration distribution ---

// DefaultDurationBoundaries are the stock session-length bucket
// edges in minutes; the last bucket is open-ended.
var DefaultDurationBoundaries = []int{0, 15, 30, 45, 60, 90}

// DurationBucket is one session-length histogram bucket.
// MaxMinutes of 0 marks the open-ended final bucket. Sessions
// without a quality rating are excluded from the quality mean, not
// treated as zero.
type DurationBucket struct {
	Label          string  `json:"label"`
	MinMinutes     int     `json:"min_minutes"`
	MaxMinutes     int     `json:"max_minutes,omitempty"`
	Count          int     `json:"count"`
	RatedCount     int     `json:"rated_count"`
	AverageQuality float64 `json:"average_quality"`
}

// DurationDistribution counts sessions per length bucket given
// ascending boundaries. A session of exactly a boundary value falls
// into the bucket starting at that boundary.
func DurationDistribution(
	sessions []db.Session, boundaries []int,
) []DurationBucket {
	if len(boundaries) == 0 {
		boundaries = DefaultDurationBoundaries
	}

	buckets := make([]DurationBucket, len(boundaries))
	qualitySums := make([]int, len(boundaries))
	for i, lo := range boundaries {
		buckets[i].MinMinutes = lo
		if i+1 < len(boundaries) {
			buckets[i].MaxMinutes = boundaries[i+1]
			buckets[i].Label = fmt.Sprintf(
				"%d-%d", lo, boundaries[i+1],
			)
		} else {
			buckets[i].Label = fmt.Sprintf("%d+", lo)
		}
	}

	bucketFor := func(minutes int) int {
		for i := len(boundaries) - 1; i >= 0; i-- {
			if minutes >= boundaries[i] {
				return i
			}
		}
		return 0
	}

	for _, s := range sessions {
		i := bucketFor(s.DurationMinutes)
		buckets[i].Count++
		if s.QualityRating != nil {
			qualitySums[i] += *s.QualityRating
			buckets[i].RatedCount++
		}
	}

	for i := range buckets {
		buckets[i].AverageQuality = round2(safeRatio(
			float64(qualitySums[i]), float64(buckets[i].RatedCount),
		))
	}
	return buckets
}

// midpoint returns the representative minute value of a bucket. The
// open-ended bucket extends by half the width of its predecessor.
func (b DurationBucket) midpoint(prevWidth int) int {
	if b.MaxMinutes > 0 {
		return (b.MinMinutes + b.MaxMinutes) / 2
	}
	if prevWidth <= 0 {
		prevWidth = 30
	}
	return b.MinMinutes + prevWidth/2
}
