// Package dbtest provides database helpers for tests.
package dbtest

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/focusdeck/focusdeck/internal/db"
)

// New opens a fresh database in a test temp dir and closes it when
// the test finishes.
func New(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() {
		if err := database.Close(); err != nil {
			t.Errorf("closing test database: %v", err)
		}
	})
	return database
}

// SeedCategory inserts a category and returns its ID.
func SeedCategory(t *testing.T, database *db.DB, c db.Category) string {
	t.Helper()
	var id string
	err := database.Update(func(tx *sql.Tx) error {
		var txErr error
		id, txErr = db.InsertCategory(tx, c)
		return txErr
	})
	if err != nil {
		t.Fatalf("seeding category %q: %v", c.Name, err)
	}
	return id
}

// SeedTask inserts a task and returns its ID.
func SeedTask(t *testing.T, database *db.DB, task db.Task) string {
	t.Helper()
	var id string
	err := database.Update(func(tx *sql.Tx) error {
		var txErr error
		id, txErr = db.InsertTask(tx, task)
		return txErr
	})
	if err != nil {
		t.Fatalf("seeding task %q: %v", task.Title, err)
	}
	return id
}

// SeedSession inserts a completed session, generating an ID when
// none is set, and returns the ID.
func SeedSession(t *testing.T, database *db.DB, s db.Session) string {
	t.Helper()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.Completed = true
	err := database.Update(func(tx *sql.Tx) error {
		return db.InsertSession(tx, s)
	})
	if err != nil {
		t.Fatalf("seeding session %s: %v", s.ID, err)
	}
	return s.ID
}

// Ptr returns a pointer to v, for optional fields in seed literals.
func Ptr[T any](v T) *T {
	return &v
}
