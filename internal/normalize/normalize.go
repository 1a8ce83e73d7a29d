// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package normalize turns a loosely structured nested frontmatter field,
// such as a creature's traits or actions, into an ordered list of entries.
//
// Normalization is best effort: shapes that cannot be read as entries
// degrade to nothing rather than failing.
package normalize

import (
	"strings"

	"github.com/pdiddy/bestiary/pkg/types"
)

// Normalizer converts raw nested field values into entries.
type Normalizer struct {
	labels *LabelSplitter
}

// New returns a Normalizer using the label rules in cfg.
func New(cfg types.NormalizeConfig) (*Normalizer, error) {
	labels, err := NewLabelSplitter(cfg)
	if err != nil {
		return nil, err
	}
	return &Normalizer{labels: labels}, nil
}

// Default returns a Normalizer with the bold label heuristic.
func Default() *Normalizer {
	n, _ := New(types.NormalizeConfig{LabelStyle: types.LabelBold})
	return n
}

// Normalize appends the entries read from raw to existing and returns the
// result. Dispatch is on raw's kind:
//
//   - sequence: each item becomes at most one entry, in order
//   - string: one entry, with a leading label split off when recognized
//   - mapping: one entry per key, in document order
//   - anything else: no entries
//
// Output encoded with types.EntriesValue normalizes back to itself.
func (n *Normalizer) Normalize(existing []types.Entry, raw types.Value) []types.Entry {
	out := existing[:len(existing):len(existing)]

	switch raw.Kind {
	case types.KindSequence:
		for _, item := range raw.Items {
			if e, ok := n.item(item); ok {
				out = append(out, e)
			}
		}
	case types.KindScalar:
		if s, ok := raw.Str(); ok {
			out = append(out, n.fromString(s))
		}
	case types.KindMapping:
		for _, p := range raw.Pairs {
			out = append(out, types.Entry{Name: p.Key, Text: p.Value.Text()})
		}
	}

	if out == nil {
		out = []types.Entry{}
	}
	return out
}

// item reads one sequence element as an entry.
func (n *Normalizer) item(v types.Value) (types.Entry, bool) {
	switch v.Kind {
	case types.KindMapping:
		if e, ok := v.AsEntry(); ok {
			return e, true
		}
		// {"Keen Senses": "..."} written as a one-key mapping.
		if len(v.Pairs) == 1 {
			return types.Entry{Name: v.Pairs[0].Key, Text: v.Pairs[0].Value.Text()}, true
		}
	case types.KindSequence:
		// [name, text...] array form.
		if len(v.Items) == 0 {
			return types.Entry{}, false
		}
		parts := make([]string, 0, len(v.Items)-1)
		for _, part := range v.Items[1:] {
			parts = append(parts, part.Text())
		}
		return types.Entry{Name: v.Items[0].Text(), Text: strings.Join(parts, "")}, true
	case types.KindScalar:
		if s, ok := v.Str(); ok {
			return n.fromString(s), true
		}
	}
	return types.Entry{}, false
}

func (n *Normalizer) fromString(s string) types.Entry {
	name, text := n.labels.Split(s)
	return types.Entry{Name: name, Text: text}
}
