package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Categories returns the full category catalog ordered by name.
func (db *DB) Categories(ctx context.Context) ([]Category, error) {
	rows, err := db.reader.QueryContext(ctx,
		`SELECT id, name, color, icon, description,
		        weekly_goal_minutes, created_at
		 FROM categories ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying categories: %w", err)
	}
	defer rows.Close()

	var cats []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Color, &c.Icon, &c.Description,
			&c.WeeklyGoalMinutes, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// CategoryByName looks a category up by its unique name. Returns
// nil when no such category exists.
func (db *DB) CategoryByName(
	ctx context.Context, name string,
) (*Category, error) {
	var c Category
	err := db.reader.QueryRowContext(ctx,
		`SELECT id, name, color, icon, description,
		        weekly_goal_minutes, created_at
		 FROM categories WHERE name = ?`, name,
	).Scan(
		&c.ID, &c.Name, &c.Color, &c.Icon, &c.Description,
		&c.WeeklyGoalMinutes, &c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying category %q: %w", name, err)
	}
	return &c, nil
}

// InsertCategory writes a category inside tx, generating an ID when
// the caller did not supply one.
func InsertCategory(tx *sql.Tx, c Category) (string, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Color == "" {
		c.Color = "#808080"
	}
	if c.CreatedAt == "" {
		c.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := tx.Exec(
		`INSERT INTO categories
		 (id, name, color, icon, description,
		  weekly_goal_minutes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Color, c.Icon, c.Description,
		c.WeeklyGoalMinutes, c.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("inserting category %q: %w", c.Name, err)
	}
	return c.ID, nil
}

// EnsureCategory returns the ID of the named category, creating it
// with defaults when it does not exist yet. The import engine uses
// this for session logs that reference unknown categories.
func (db *DB) EnsureCategory(
	ctx context.Context, name string,
) (string, error) {
	existing, err := db.CategoryByName(ctx, name)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.ID, nil
	}

	var id string
	err = db.Update(func(tx *sql.Tx) error {
		var txErr error
		id, txErr = InsertCategory(tx, Category{Name: name})
		return txErr
	})
	if err != nil {
		return "", err
	}
	return id, nil
}
