// Package sync imports focus sessions from JSONL log files into the
// record store and keeps the cached streak state consistent with the
// imported history.
package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	gosync "sync"
	"time"

	"github.com/focusdeck/focusdeck/internal/analytics"
	"github.com/focusdeck/focusdeck/internal/db"
)

// Stats summarizes an import run.
type Stats struct {
	Files     int      `json:"files"`
	Imported  int      `json:"imported"`
	Skipped   int      `json:"skipped"`
	Malformed int      `json:"malformed"`
	Failed    int      `json:"failed"`
	Warnings  []string `json:"warnings,omitempty"`
}

// Engine orchestrates session log discovery and import.
type Engine struct {
	db       *db.DB
	logsDir  string
	settings analytics.Settings
	loc      *time.Location

	importMu gosync.Mutex // serializes full import runs
	mu       gosync.RWMutex
	lastSync time.Time
	lastStat Stats

	// skipCache maps imported paths to the file mtime at import
	// time. A file is re-read only when its mtime changes;
	// InsertSession's conflict handling makes the re-read safe.
	skipMu    gosync.RWMutex
	skipCache map[string]int64
}

// NewEngine creates an import engine. The skip cache is pre-populated
// from the database so files imported in a prior run are not
// re-parsed on startup.
func NewEngine(
	database *db.DB, logsDir string,
	settings analytics.Settings, loc *time.Location,
) *Engine {
	skipCache := make(map[string]int64)
	if loaded, err := database.LoadImportedFiles(); err == nil {
		skipCache = loaded
	} else {
		log.Printf("loading import cache: %v", err)
	}

	if loc == nil {
		loc = time.UTC
	}
	return &Engine{
		db:        database,
		logsDir:   logsDir,
		settings:  settings,
		loc:       loc,
		skipCache: skipCache,
	}
}

// LastSync returns the time of the last completed import.
func (e *Engine) LastSync() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastSync
}

// LastStats returns statistics from the last import.
func (e *Engine) LastStats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastStat
}

// ImportAll discovers every session log under the logs directory and
// imports the new or changed ones, then rebuilds the streak state
// once at the end.
func (e *Engine) ImportAll(ctx context.Context) Stats {
	e.importMu.Lock()
	defer e.importMu.Unlock()

	paths, err := e.discover()
	if err != nil {
		log.Printf("sync: discovering logs: %v", err)
		return e.finish(Stats{
			Warnings: []string{err.Error()},
		})
	}
	return e.finish(e.importPaths(ctx, paths))
}

// ImportPaths imports only the given changed paths. Non-log paths
// are ignored. This is the watcher's incremental entry point.
func (e *Engine) ImportPaths(ctx context.Context, paths []string) Stats {
	e.importMu.Lock()
	defer e.importMu.Unlock()

	var logs []string
	for _, p := range paths {
		if strings.HasSuffix(p, ".jsonl") {
			logs = append(logs, p)
		}
	}
	if len(logs) == 0 {
		return e.LastStats()
	}
	return e.finish(e.importPaths(ctx, logs))
}

// discover lists the .jsonl files directly under the logs
// directory. A missing directory is an empty import, not an error.
func (e *Engine) discover() ([]string, error) {
	entries, err := os.ReadDir(e.logsDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", e.logsDir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		paths = append(paths, filepath.Join(e.logsDir, entry.Name()))
	}
	return paths, nil
}

func (e *Engine) importPaths(ctx context.Context, paths []string) Stats {
	var stats Stats
	imported := false
	for _, path := range paths {
		stats.Files++
		switch n, malformed, err := e.importFile(ctx, path); {
		case err == errUnchanged:
			stats.Skipped++
		case err != nil:
			stats.Failed++
			stats.Warnings = append(
				stats.Warnings,
				fmt.Sprintf("%s: %v", filepath.Base(path), err),
			)
		default:
			stats.Imported += n
			stats.Malformed += malformed
			imported = true
		}
	}

	if imported {
		if err := e.RebuildStreaks(ctx); err != nil {
			log.Printf("sync: rebuilding streaks: %v", err)
			stats.Warnings = append(stats.Warnings, err.Error())
		}
	}
	return stats
}

// errUnchanged marks a file whose mtime matches the skip cache.
var errUnchanged = errors.New("file unchanged")

func (e *Engine) importFile(
	ctx context.Context, path string,
) (int, int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, 0, fmt.Errorf("stat: %w", err)
	}
	mtime := info.ModTime().Unix()

	e.skipMu.RLock()
	cached, ok := e.skipCache[path]
	e.skipMu.RUnlock()
	if ok && cached == mtime {
		return 0, 0, errUnchanged
	}

	parsed, err := ParseSessionLog(path)
	if err != nil {
		return 0, 0, err
	}

	// Resolve category names outside the write transaction;
	// EnsureCategory takes its own.
	categoryIDs := make([]string, len(parsed.Sessions))
	for i, name := range parsed.Categories {
		id, err := e.db.EnsureCategory(ctx, name)
		if err != nil {
			return 0, 0, fmt.Errorf("category %q: %w", name, err)
		}
		categoryIDs[i] = id
	}

	err = e.db.Update(func(tx *sql.Tx) error {
		for i, s := range parsed.Sessions {
			s.CategoryID = categoryIDs[i]
			if err := db.InsertSession(tx, s); err != nil {
				return err
			}
			if s.TaskID != nil && s.Completed {
				err := db.ApplySessionToTask(
					tx, *s.TaskID, s.DurationMinutes,
				)
				if err != nil {
					return err
				}
			}
		}
		return db.MarkImported(tx, path, mtime)
	})
	if err != nil {
		return 0, 0, err
	}

	e.skipMu.Lock()
	e.skipCache[path] = mtime
	e.skipMu.Unlock()
	return len(parsed.Sessions), parsed.Malformed, nil
}

// RebuildStreaks recomputes day records and the cached streak state
// from the full session history, preserving manual recoveries.
func (e *Engine) RebuildStreaks(ctx context.Context) error {
	sessions, err := e.db.AllSessions(ctx)
	if err != nil {
		return fmt.Errorf("loading sessions: %w", err)
	}
	existing, err := e.db.StreakDays(ctx)
	if err != nil {
		return fmt.Errorf("loading streak days: %w", err)
	}

	days := analytics.MergeRecovered(
		analytics.BuildDayRecords(sessions, e.settings, e.loc),
		existing,
	)
	today := time.Now().In(e.loc).Format("2006-01-02")
	state := analytics.RebuildFromHistory(days, e.settings, today)

	return e.db.Update(func(tx *sql.Tx) error {
		for _, d := range days {
			if err := db.UpsertStreakDay(tx, d); err != nil {
				return err
			}
		}
		return db.SaveStreakState(tx, state)
	})
}

func (e *Engine) finish(stats Stats) Stats {
	e.mu.Lock()
	e.lastSync = time.Now()
	e.lastStat = stats
	e.mu.Unlock()

	if stats.Imported > 0 {
		log.Printf("sync: %d session(s) imported", stats.Imported)
	}
	return stats
}
