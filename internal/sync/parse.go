package sync

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/focusdeck/focusdeck/internal/db"
)

const (
	initialScanBufSize = 64 * 1024       // 64KB
	maxScanTokenSize   = 4 * 1024 * 1024 // 4MB
)

// ParsedLog is the result of parsing one session log file.
type ParsedLog struct {
	Sessions []db.Session
	// Categories holds the category name referenced by each
	// session, aligned by index. Names are resolved to IDs at
	// import time.
	Categories []string
	// Malformed counts lines dropped for invalid JSON or missing
	// required fields.
	Malformed int
}

// ParseSessionLog reads a JSONL session log. Each line is one focus
// session; lines that are blank, invalid JSON, or missing a start
// time or duration are counted and skipped, never fatal, so one bad
// line cannot block the rest of the file.
func ParseSessionLog(path string) (ParsedLog, error) {
	f, err := os.Open(path)
	if err != nil {
		return ParsedLog{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var out ParsedLog
	scanner := bufio.NewScanner(f)
	scanner.Buffer(
		make([]byte, 0, initialScanBufSize), maxScanTokenSize,
	)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !gjson.Valid(line) {
			out.Malformed++
			continue
		}

		s, category, ok := parseSessionLine(line)
		if !ok {
			out.Malformed++
			continue
		}
		out.Sessions = append(out.Sessions, s)
		out.Categories = append(out.Categories, category)
	}
	if err := scanner.Err(); err != nil {
		return ParsedLog{}, fmt.Errorf("read %s: %w", path, err)
	}
	return out, nil
}

// parseSessionLine extracts one session from a log line. The
// session ID is generated when the line carries none, so re-importing
// the same file stays idempotent only for lines with explicit IDs.
func parseSessionLine(line string) (db.Session, string, bool) {
	startedAt := gjson.Get(line, "started_at").Str
	if parseLogTimestamp(startedAt).IsZero() {
		return db.Session{}, "", false
	}
	duration := gjson.Get(line, "duration_minutes")
	if !duration.Exists() || duration.Int() <= 0 {
		return db.Session{}, "", false
	}

	s := db.Session{
		ID:              gjson.Get(line, "id").Str,
		DurationMinutes: int(duration.Int()),
		StartedAt:       startedAt,
		Completed:       true,
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if tid := gjson.Get(line, "task_id").Str; tid != "" {
		s.TaskID = &tid
	}
	if q := gjson.Get(line, "quality"); q.Exists() {
		v := int(q.Int())
		if v >= 1 && v <= 5 {
			s.QualityRating = &v
		}
	}
	if n := gjson.Get(line, "interruptions"); n.Exists() && n.Int() >= 0 {
		v := int(n.Int())
		s.InterruptionCount = &v
	}
	if c := gjson.Get(line, "completed"); c.Exists() {
		s.Completed = c.Bool()
	}

	category := gjson.Get(line, "category").Str
	if category == "" {
		category = "Uncategorized"
	}
	return s, category, true
}

// parseLogTimestamp accepts RFC3339 with or without sub-second
// precision, plus the zoneless local form some timers write.
func parseLogTimestamp(s string) time.Time {
	for _, layout := range []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
