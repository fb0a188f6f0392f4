package db

import (
	"database/sql"
	"fmt"
	"time"
)

// LoadImportedFiles returns the import skip cache: path -> mtime at
// the time the file was last imported. Files whose mtime changed
// are re-imported; session IDs keep the operation idempotent.
func (db *DB) LoadImportedFiles() (map[string]int64, error) {
	rows, err := db.reader.Query(
		"SELECT path, mtime FROM imported_files",
	)
	if err != nil {
		return nil, fmt.Errorf("querying imported files: %w", err)
	}
	defer rows.Close()

	files := make(map[string]int64)
	for rows.Next() {
		var path string
		var mtime int64
		if err := rows.Scan(&path, &mtime); err != nil {
			return nil, fmt.Errorf("scanning imported file: %w", err)
		}
		files[path] = mtime
	}
	return files, rows.Err()
}

// MarkImported records that a log file was imported at its current
// mtime inside tx.
func MarkImported(tx *sql.Tx, path string, mtime int64) error {
	_, err := tx.Exec(
		`INSERT INTO imported_files (path, mtime, imported_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		   mtime = excluded.mtime,
		   imported_at = excluded.imported_at`,
		path, mtime, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("marking %s imported: %w", path, err)
	}
	return nil
}
