package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// LoadStreakState returns the cached streak summary, or nil when no
// state has been materialized yet.
func (db *DB) LoadStreakState(
	ctx context.Context,
) (*StreakState, error) {
	var s StreakState
	var dates string
	var graceActive int
	err := db.reader.QueryRowContext(ctx,
		`SELECT current_streak, longest_streak, streak_dates,
		        grace_active, grace_ends_at, updated_at
		 FROM streak_state WHERE id = 1`,
	).Scan(
		&s.CurrentStreak, &s.LongestStreak, &dates,
		&graceActive, &s.GraceEndsAt, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying streak state: %w", err)
	}
	s.GraceActive = graceActive != 0
	if err := json.Unmarshal([]byte(dates), &s.StreakDates); err != nil {
		return nil, fmt.Errorf("decoding streak dates: %w", err)
	}
	return &s, nil
}

// SaveStreakState upserts the cached streak summary inside tx.
func SaveStreakState(tx *sql.Tx, s StreakState) error {
	dates, err := json.Marshal(s.StreakDates)
	if err != nil {
		return fmt.Errorf("encoding streak dates: %w", err)
	}
	graceActive := 0
	if s.GraceActive {
		graceActive = 1
	}
	if s.UpdatedAt == "" {
		s.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err = tx.Exec(
		`INSERT INTO streak_state
		 (id, current_streak, longest_streak, streak_dates,
		  grace_active, grace_ends_at, updated_at)
		 VALUES (1, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   current_streak = excluded.current_streak,
		   longest_streak = excluded.longest_streak,
		   streak_dates = excluded.streak_dates,
		   grace_active = excluded.grace_active,
		   grace_ends_at = excluded.grace_ends_at,
		   updated_at = excluded.updated_at`,
		s.CurrentStreak, s.LongestStreak, string(dates),
		graceActive, s.GraceEndsAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("saving streak state: %w", err)
	}
	return nil
}

// StreakDays returns all materialized day records in date order.
func (db *DB) StreakDays(ctx context.Context) ([]DayRecord, error) {
	rows, err := db.reader.QueryContext(ctx,
		`SELECT date, minutes, met, recovered
		 FROM streak_days ORDER BY date`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying streak days: %w", err)
	}
	defer rows.Close()

	var days []DayRecord
	for rows.Next() {
		var d DayRecord
		var met, recovered int
		if err := rows.Scan(
			&d.Date, &d.Minutes, &met, &recovered,
		); err != nil {
			return nil, fmt.Errorf("scanning streak day: %w", err)
		}
		d.Met = met != 0
		d.Recovered = recovered != 0
		days = append(days, d)
	}
	return days, rows.Err()
}

// UpsertStreakDay writes one day record inside tx. The recovered
// flag is sticky: a recompute of a day's minutes must not erase a
// manual recovery.
func UpsertStreakDay(tx *sql.Tx, d DayRecord) error {
	met := 0
	if d.Met {
		met = 1
	}
	recovered := 0
	if d.Recovered {
		recovered = 1
	}
	_, err := tx.Exec(
		`INSERT INTO streak_days (date, minutes, met, recovered)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(date) DO UPDATE SET
		   minutes = excluded.minutes,
		   met = excluded.met,
		   recovered = MAX(recovered, excluded.recovered)`,
		d.Date, d.Minutes, met, recovered,
	)
	if err != nil {
		return fmt.Errorf("upserting streak day %s: %w", d.Date, err)
	}
	return nil
}
