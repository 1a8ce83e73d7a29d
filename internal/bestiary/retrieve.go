// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bestiary

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/bestiary/pkg/types"
)

// QueryOptions holds parameters for entry queries.
type QueryOptions struct {
	// Query is the FTS5 full-text search string over entry names and text.
	Query string

	// Field restricts results to one nested field, such as "actions".
	Field string

	// Name filters by creature name, case-insensitive substring.
	Name string

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// IsEmpty reports whether the query has no search terms or filters.
func (q QueryOptions) IsEmpty() bool {
	return q.Query == "" && q.Field == "" && q.Name == ""
}

// QueryResult is one stored entry together with the creature it belongs to.
type QueryResult struct {
	Creature   string `json:"creature" yaml:"creature"`
	SourcePath string `json:"source_path" yaml:"source_path"`
	Field      string `json:"field" yaml:"field"`
	Position   int    `json:"position" yaml:"position"`
	Name       string `json:"name" yaml:"name"`
	Text       string `json:"text" yaml:"text"`
}

// Retrieve queries stored entries with optional full-text search and
// filters. Full-text results are ranked by relevance; filter-only results
// are sorted by creature, field, and position.
func (s *Store) Retrieve(ctx context.Context, opts QueryOptions) ([]QueryResult, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = opts.Query != ""
	)

	if useFTS {
		qb.WriteString(
			`SELECT c.name, e.source_path, e.field, e.position, e.name, e.text
			FROM entries_fts
			JOIN entries e ON e.rowid = entries_fts.rowid
			JOIN creatures c ON c.source_path = e.source_path
			WHERE entries_fts MATCH ?`)
		args = append(args, opts.Query)
	} else {
		qb.WriteString(
			`SELECT c.name, e.source_path, e.field, e.position, e.name, e.text
			FROM entries e
			JOIN creatures c ON c.source_path = e.source_path
			WHERE 1=1`)
	}

	if opts.Field != "" {
		qb.WriteString(` AND e.field = ?`)
		args = append(args, opts.Field)
	}

	if opts.Name != "" {
		qb.WriteString(` AND c.name LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(opts.Name)+"%")
	}

	if useFTS {
		qb.WriteString(` ORDER BY entries_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY c.name, e.source_path, e.field, e.position`)
	}

	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying bestiary: %w", err)
	}
	defer rows.Close()

	var results []QueryResult
	for rows.Next() {
		var (
			qr         QueryResult
			name, text sql.NullString
		)
		if err := rows.Scan(&qr.Creature, &qr.SourcePath, &qr.Field, &qr.Position, &name, &text); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		qr.Name = name.String
		qr.Text = text.String
		results = append(results, qr)
	}

	return results, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Get returns the creature stored for a note path.
func (s *Store) Get(ctx context.Context, path string) (*types.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT source_path, name, mod_time, sections, fields FROM creatures WHERE source_path = ?`, path)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("creature %s: %w", path, ErrNotFound)
	}
	return rec, err
}

// Creatures returns every stored creature whose name contains name, sorted
// by name. An empty name matches all creatures.
func (s *Store) Creatures(ctx context.Context, name string) ([]*types.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_path, name, mod_time, sections, fields FROM creatures
		 WHERE name LIKE ? ESCAPE '\'
		 ORDER BY name, source_path`,
		"%"+escapeLike(name)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("listing creatures: %w", err)
	}
	defer rows.Close()

	records := make([]*types.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*types.Record, error) {
	var (
		rec          types.Record
		sectionsJSON sql.NullString
		fieldsJSON   string
	)
	if err := row.Scan(&rec.SourcePath, &rec.Name, &rec.ModTime, &sectionsJSON, &fieldsJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning creature: %w", err)
	}
	if sectionsJSON.Valid {
		json.Unmarshal([]byte(sectionsJSON.String), &rec.Sections)
	}
	if err := json.Unmarshal([]byte(fieldsJSON), &rec.Fields); err != nil {
		return nil, fmt.Errorf("decoding fields of %s: %w", rec.SourcePath, err)
	}
	return &rec, nil
}
