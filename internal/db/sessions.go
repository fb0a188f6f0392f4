package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/focusdeck/focusdeck/internal/timeutil"
)

// scanSessions reads session rows into a slice.
func scanSessions(rows *sql.Rows) ([]Session, error) {
	var sessions []Session
	for rows.Next() {
		var s Session
		var completed int
		if err := rows.Scan(
			&s.ID, &s.TaskID, &s.CategoryID, &s.StartedAt,
			&s.DurationMinutes, &s.QualityRating,
			&s.InterruptionCount, &completed,
		); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		s.Completed = completed != 0
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

const sessionCols = `id, task_id, category_id, started_at,
	duration_minutes, quality_rating, interruption_count, completed`

// SessionsInRange returns completed sessions whose start date falls
// within [from, to], both inclusive ISO calendar dates, ordered by
// start time. Sessions are stored with UTC timestamps, so the date
// comparison is a plain string range on the RFC3339 column.
func (db *DB) SessionsInRange(
	ctx context.Context, from, to string,
) ([]Session, error) {
	query := `SELECT ` + sessionCols + `
		FROM sessions
		WHERE completed = 1
		  AND started_at >= ? AND started_at < ?
		ORDER BY started_at`

	rows, err := db.reader.QueryContext(ctx, query,
		from+"T00:00:00", timeutil.AddDays(to, 1)+"T00:00:00",
	)
	if err != nil {
		return nil, fmt.Errorf("querying sessions in range: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

// SessionsForCategory returns completed sessions for one category
// within the inclusive date range.
func (db *DB) SessionsForCategory(
	ctx context.Context, categoryID, from, to string,
) ([]Session, error) {
	query := `SELECT ` + sessionCols + `
		FROM sessions
		WHERE completed = 1 AND category_id = ?
		  AND started_at >= ? AND started_at < ?
		ORDER BY started_at`

	rows, err := db.reader.QueryContext(ctx, query, categoryID,
		from+"T00:00:00", timeutil.AddDays(to, 1)+"T00:00:00",
	)
	if err != nil {
		return nil, fmt.Errorf("querying category sessions: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

// AllSessions returns every completed session ordered by start time.
// Used by streak rebuilds, which replay the full history.
func (db *DB) AllSessions(ctx context.Context) ([]Session, error) {
	rows, err := db.reader.QueryContext(ctx,
		`SELECT `+sessionCols+` FROM sessions
		 WHERE completed = 1 ORDER BY started_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying all sessions: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

// HasSession reports whether a session with the given ID exists.
func (db *DB) HasSession(
	ctx context.Context, id string,
) (bool, error) {
	var n int
	err := db.reader.QueryRowContext(ctx,
		"SELECT count(*) FROM sessions WHERE id = ?", id,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking session %s: %w", id, err)
	}
	return n > 0, nil
}

// InsertSession writes a session record inside tx. Records are
// immutable: conflicting IDs are ignored, never updated.
func InsertSession(tx *sql.Tx, s Session) error {
	completed := 0
	if s.Completed {
		completed = 1
	}
	_, err := tx.Exec(
		`INSERT OR IGNORE INTO sessions
		 (id, task_id, category_id, started_at, duration_minutes,
		  quality_rating, interruption_count, completed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.TaskID, s.CategoryID, s.StartedAt,
		s.DurationMinutes, s.QualityRating,
		s.InterruptionCount, completed,
	)
	if err != nil {
		return fmt.Errorf("inserting session %s: %w", s.ID, err)
	}
	return nil
}
