// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract decides whether a note's frontmatter describes a creature
// and builds the canonical record for it.
package extract

import (
	"github.com/pdiddy/bestiary/internal/normalize"
	"github.com/pdiddy/bestiary/pkg/types"
)

// Extractor builds records from note metadata. It holds no per-note state
// and is safe for concurrent use.
type Extractor struct {
	marker     string
	nameField  string
	nested     []string
	normalizer *normalize.Normalizer
}

// New returns an Extractor for cfg. Empty settings fall back to the
// defaults of types.DefaultConfig.
func New(cfg types.ExtractConfig, n *normalize.Normalizer) *Extractor {
	def := types.DefaultConfig().Extract
	if cfg.MarkerField == "" {
		cfg.MarkerField = def.MarkerField
	}
	if cfg.NameField == "" {
		cfg.NameField = def.NameField
	}
	if cfg.NestedFields == nil {
		cfg.NestedFields = def.NestedFields
	}
	if n == nil {
		n = normalize.Default()
	}
	return &Extractor{
		marker:     cfg.MarkerField,
		nameField:  cfg.NameField,
		nested:     append([]string(nil), cfg.NestedFields...),
		normalizer: n,
	}
}

// Extract returns the record described by meta, or false when meta is nil
// or lacks a truthy marker or name field. The returned record owns a deep
// copy of meta; nothing in it aliases the caller's metadata.
func (x *Extractor) Extract(file types.FileAttrs, meta types.Metadata) (*types.Record, bool) {
	if meta == nil {
		return nil, false
	}
	if v, ok := meta.Get(x.marker); !ok || !v.Truthy() {
		return nil, false
	}
	name, ok := meta.Get(x.nameField)
	if !ok || !name.Truthy() {
		return nil, false
	}

	fields := meta.Clone()
	rec := &types.Record{
		Name:       name.Text(),
		SourcePath: file.Path,
		ModTime:    file.ModTime,
	}

	for _, field := range x.nested {
		raw, ok := fields.Get(field)
		if !ok {
			continue
		}
		fields.Set(field, types.EntriesValue(x.normalizer.Normalize(nil, raw)))
		rec.Sections = append(rec.Sections, field)
	}
	rec.Fields = fields

	return rec, true
}
