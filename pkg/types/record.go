// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"bytes"
	"encoding/json"
	"fmt"

	"go.yaml.in/yaml/v3"
)

// Metadata is the ordered set of top-level frontmatter fields of one note.
// A nil Metadata means the note carries no metadata block at all.
type Metadata []Pair

// Get returns the value of the first field named key.
func (m Metadata) Get(key string) (Value, bool) {
	for _, p := range m {
		if p.Key == key {
			return p.Value, true
		}
	}
	return Value{}, false
}

// Has reports whether a field named key is present.
func (m Metadata) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Set replaces the value of key in place, or appends the field when it is
// not present yet.
func (m *Metadata) Set(key string, v Value) {
	for i := range *m {
		if (*m)[i].Key == key {
			(*m)[i].Value = v
			return
		}
	}
	*m = append(*m, Pair{Key: key, Value: v})
}

// Keys returns the field names in order.
func (m Metadata) Keys() []string {
	keys := make([]string, len(m))
	for i, p := range m {
		keys[i] = p.Key
	}
	return keys
}

// Clone returns a deep copy of m. Mutating the copy never affects m.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for i, p := range m {
		out[i] = Pair{Key: p.Key, Value: p.Value.Clone()}
	}
	return out
}

// Value returns m as a mapping Value.
func (m Metadata) Value() Value {
	if m == nil {
		return Null()
	}
	return Mapping(m...)
}

// MarshalJSON writes m as an ordered JSON object, or null when m is nil.
func (m Metadata) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	if err := writePairsJSON(&buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an ordered JSON object. null yields nil metadata.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var v Value
	if err := v.UnmarshalJSON(data); err != nil {
		return err
	}
	return m.fromValue(v)
}

// MarshalYAML implements yaml.Marshaler.
func (m Metadata) MarshalYAML() (any, error) {
	return m.Value().Node(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *Metadata) UnmarshalYAML(n *yaml.Node) error {
	return m.fromValue(FromNode(n))
}

func (m *Metadata) fromValue(v Value) error {
	switch v.Kind {
	case KindNull:
		*m = nil
	case KindMapping:
		*m = append(Metadata{}, v.Pairs...)
	default:
		return fmt.Errorf("metadata must be a mapping, got %s", v.Kind)
	}
	return nil
}

// FileAttrs describes the note a metadata block belongs to.
type FileAttrs struct {
	// Path is the vault-relative, slash-separated note path.
	Path string `json:"path" yaml:"path"`

	// Basename is the note file name without its extension.
	Basename string `json:"basename" yaml:"basename"`

	// ModTime is the note's modification time in Unix milliseconds.
	ModTime int64 `json:"mtime" yaml:"mtime"`
}

// Entry is one normalized sub-record of a creature, such as a single trait
// or action.
type Entry struct {
	Name string
	Text string

	// Extra carries any additional keys of a structured entry, in order.
	Extra []Pair
}

// Entry field keys used when an Entry is encoded as a mapping.
const (
	EntryNameKey = "name"
	EntryTextKey = "text"
	EntryDescKey = "desc"
)

// Value encodes e as a mapping with name and text first, then Extra.
func (e Entry) Value() Value {
	pairs := make([]Pair, 0, 2+len(e.Extra))
	pairs = append(pairs, P(EntryNameKey, String(e.Name)), P(EntryTextKey, String(e.Text)))
	for _, p := range e.Extra {
		pairs = append(pairs, Pair{Key: p.Key, Value: p.Value.Clone()})
	}
	return Mapping(pairs...)
}

// EntriesValue encodes entries as a sequence of entry mappings.
func EntriesValue(entries []Entry) Value {
	items := make([]Value, len(entries))
	for i, e := range entries {
		items[i] = e.Value()
	}
	return Sequence(items...)
}

// AsEntry decodes a structured entry mapping: a mapping carrying a name,
// text or desc key. text takes precedence over desc; every other key is
// kept in Extra.
func (v Value) AsEntry() (Entry, bool) {
	if v.Kind != KindMapping {
		return Entry{}, false
	}
	_, hasName := v.Get(EntryNameKey)
	_, hasText := v.Get(EntryTextKey)
	_, hasDesc := v.Get(EntryDescKey)
	if !hasName && !hasText && !hasDesc {
		return Entry{}, false
	}

	var e Entry
	for _, p := range v.Pairs {
		switch {
		case p.Key == EntryNameKey:
			e.Name = p.Value.Text()
		case p.Key == EntryTextKey:
			e.Text = p.Value.Text()
		case p.Key == EntryDescKey && !hasText:
			e.Text = p.Value.Text()
		default:
			e.Extra = append(e.Extra, Pair{Key: p.Key, Value: p.Value.Clone()})
		}
	}
	return e, true
}

// Record is the canonical creature extracted from one note.
type Record struct {
	// Name is the creature name taken from the name field.
	Name string `json:"name" yaml:"name"`

	// SourcePath is the vault path of the note the record came from.
	SourcePath string `json:"source_path" yaml:"source_path"`

	// ModTime is the note's modification time in Unix milliseconds.
	ModTime int64 `json:"mtime" yaml:"mtime"`

	// Sections lists the nested fields that were normalized into entries.
	Sections []string `json:"sections,omitempty" yaml:"sections,omitempty"`

	// Fields is the note's frontmatter with nested fields replaced by
	// entry sequences.
	Fields Metadata `json:"fields" yaml:"fields"`
}

// Entries returns the normalized entries stored under a nested field.
func (r *Record) Entries(field string) []Entry {
	v, ok := r.Fields.Get(field)
	if !ok || v.Kind != KindSequence {
		return nil
	}
	entries := make([]Entry, 0, len(v.Items))
	for _, item := range v.Items {
		if e, ok := item.AsEntry(); ok {
			entries = append(entries, e)
		}
	}
	return entries
}

// String implements fmt.Stringer for log output.
func (r *Record) String() string {
	return fmt.Sprintf("%s (%s)", r.Name, r.SourcePath)
}

var (
	_ json.Marshaler   = Metadata(nil)
	_ json.Unmarshaler = (*Metadata)(nil)
	_ yaml.Marshaler   = Value{}
	_ yaml.Unmarshaler = (*Value)(nil)
)
