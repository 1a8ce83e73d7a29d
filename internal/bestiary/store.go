// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bestiary persists extracted creature records and indexes their
// entries for full-text retrieval. The database lives at
// <dir>/bestiary.db and is built with the sqlite_fts5 tag.
package bestiary

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/bestiary/pkg/types"
)

const dbFile = "bestiary.db"

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// Store manages the bestiary SQLite database.
type Store struct {
	db         *sql.DB
	dir        string
	maxResults int
}

// NewStore opens or creates the bestiary database under cfg.Dir and
// creates the schema if it does not exist.
func NewStore(cfg types.StoreConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	s := &Store{db: db, dir: cfg.Dir, maxResults: maxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dir returns the directory holding the database and exports.
func (s *Store) Dir() string { return s.dir }

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS creatures (
			source_path TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			mod_time INTEGER NOT NULL,
			sections TEXT,
			fields TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_creatures_name ON creatures(name)`,
		`CREATE TABLE IF NOT EXISTS entries (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			source_path TEXT NOT NULL REFERENCES creatures(source_path) ON DELETE CASCADE,
			field TEXT NOT NULL,
			position INTEGER NOT NULL,
			name TEXT,
			text TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_source ON entries(source_path)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_field ON entries(field)`,
		`CREATE TABLE IF NOT EXISTS scan_runs (
			id TEXT PRIMARY KEY,
			started TEXT NOT NULL,
			finished TEXT,
			queued INTEGER,
			processed INTEGER,
			updated INTEGER,
			deleted INTEGER
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table over entry names and text, kept in sync by triggers.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='entries_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE entries_fts USING fts5(name, text, content=entries, content_rowid=rowid)`,
			`CREATE TRIGGER entries_ai AFTER INSERT ON entries BEGIN
				INSERT INTO entries_fts(rowid, name, text) VALUES (new.rowid, new.name, new.text);
			END`,
			`CREATE TRIGGER entries_ad AFTER DELETE ON entries BEGIN
				INSERT INTO entries_fts(entries_fts, rowid, name, text) VALUES('delete', old.rowid, old.name, old.text);
			END`,
			`CREATE TRIGGER entries_au AFTER UPDATE ON entries BEGIN
				INSERT INTO entries_fts(entries_fts, rowid, name, text) VALUES('delete', old.rowid, old.name, old.text);
				INSERT INTO entries_fts(rowid, name, text) VALUES (new.rowid, new.name, new.text);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}

	return nil
}

// Save stores records, replacing any earlier record from the same note.
// All records are written in one transaction. Save is the host's batch sink.
func (s *Store) Save(ctx context.Context, records []*types.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	entryStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO entries (source_path, field, position, name, text) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing entry insert: %w", err)
	}
	defer entryStmt.Close()

	for _, rec := range records {
		if err := saveRecord(ctx, tx, entryStmt, rec); err != nil {
			return fmt.Errorf("saving %s: %w", rec.SourcePath, err)
		}
	}
	return tx.Commit()
}

func saveRecord(ctx context.Context, tx *sql.Tx, entryStmt *sql.Stmt, rec *types.Record) error {
	fieldsJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("encoding fields: %w", err)
	}
	sectionsJSON, _ := json.Marshal(rec.Sections)

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE source_path = ?`, rec.SourcePath); err != nil {
		return fmt.Errorf("deleting old entries: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO creatures (source_path, name, mod_time, sections, fields)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(source_path) DO UPDATE SET
			name=excluded.name, mod_time=excluded.mod_time,
			sections=excluded.sections, fields=excluded.fields`,
		rec.SourcePath, rec.Name, rec.ModTime, string(sectionsJSON), string(fieldsJSON),
	)
	if err != nil {
		return fmt.Errorf("upserting creature: %w", err)
	}

	for _, field := range rec.Sections {
		for i, e := range rec.Entries(field) {
			if _, err := entryStmt.ExecContext(ctx, rec.SourcePath, field, i, e.Name, e.Text); err != nil {
				return fmt.Errorf("inserting %s entry %d: %w", field, i, err)
			}
		}
	}
	return nil
}

// Delete removes the creature stored for a note path, if any. It reports
// whether a creature was removed.
func (s *Store) Delete(ctx context.Context, path string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE source_path = ?`, path); err != nil {
		return false, fmt.Errorf("deleting entries for %s: %w", path, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM creatures WHERE source_path = ?`, path)
	if err != nil {
		return false, fmt.Errorf("deleting creature %s: %w", path, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, tx.Commit()
}

// ModTimes returns the stored modification time of every creature, keyed
// by note path. Incremental scans skip notes whose time is unchanged.
func (s *Store) ModTimes(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT source_path, mod_time FROM creatures`)
	if err != nil {
		return nil, fmt.Errorf("querying modification times: %w", err)
	}
	defer rows.Close()

	times := make(map[string]int64)
	for rows.Next() {
		var (
			path string
			mt   int64
		)
		if err := rows.Scan(&path, &mt); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		times[path] = mt
	}
	return times, rows.Err()
}

// RunSummary holds the counts recorded for one scan run.
type RunSummary struct {
	ID        string
	Started   time.Time
	Finished  time.Time
	Queued    int
	Processed int
	Updated   int
	Deleted   int
}

// BeginRun records the start of a scan and returns its run ID.
func (s *Store) BeginRun(ctx context.Context) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scan_runs (id, started) VALUES (?, ?)`,
		id, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("recording scan start: %w", err)
	}
	return id, nil
}

// FinishRun records the outcome of the scan started by BeginRun.
func (s *Store) FinishRun(ctx context.Context, sum RunSummary) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scan_runs SET finished = ?, queued = ?, processed = ?, updated = ?, deleted = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		sum.Queued, sum.Processed, sum.Updated, sum.Deleted, sum.ID,
	)
	if err != nil {
		return fmt.Errorf("recording scan finish: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("scan run %s not found", sum.ID)
	}
	return nil
}

// LastRun returns the most recently started scan run.
func (s *Store) LastRun(ctx context.Context) (RunSummary, error) {
	var (
		sum      RunSummary
		started  string
		finished sql.NullString
		counts   [4]sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, started, finished, queued, processed, updated, deleted
		 FROM scan_runs ORDER BY started DESC LIMIT 1`,
	).Scan(&sum.ID, &started, &finished, &counts[0], &counts[1], &counts[2], &counts[3])
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunSummary{}, fmt.Errorf("no scan runs recorded: %w", ErrNotFound)
		}
		return RunSummary{}, fmt.Errorf("looking up last run: %w", err)
	}

	sum.Started, _ = time.Parse(time.RFC3339Nano, started)
	if finished.Valid {
		sum.Finished, _ = time.Parse(time.RFC3339Nano, finished.String)
	}
	sum.Queued = int(counts[0].Int64)
	sum.Processed = int(counts[1].Int64)
	sum.Updated = int(counts[2].Int64)
	sum.Deleted = int(counts[3].Int64)
	return sum, nil
}
