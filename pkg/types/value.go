// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the bestiary worker and
// its host: loosely typed frontmatter values, extracted records, the worker
// message envelope, and configuration.
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"
)

// Kind tags the shape held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindScalar
	KindSequence
	KindMapping
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindScalar:
		return "scalar"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is a loosely typed metadata value as it appears in a note's
// frontmatter. Exactly one of Scalar, Items or Pairs is meaningful,
// selected by Kind. Mappings keep their keys in document order.
type Value struct {
	Kind Kind

	// Scalar holds a string, bool, int64 or float64 when Kind is KindScalar.
	Scalar any

	// Items holds the elements of a sequence.
	Items []Value

	// Pairs holds the ordered key/value pairs of a mapping.
	Pairs []Pair
}

// Pair is one key/value entry of an ordered mapping.
type Pair struct {
	Key   string
	Value Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// String returns a string scalar.
func String(s string) Value { return Value{Kind: KindScalar, Scalar: s} }

// Bool returns a boolean scalar.
func Bool(b bool) Value { return Value{Kind: KindScalar, Scalar: b} }

// Int returns an integer scalar.
func Int(n int64) Value { return Value{Kind: KindScalar, Scalar: n} }

// Float returns a floating point scalar.
func Float(f float64) Value { return Value{Kind: KindScalar, Scalar: f} }

// Sequence returns a sequence of the given items.
func Sequence(items ...Value) Value { return Value{Kind: KindSequence, Items: items} }

// Mapping returns an ordered mapping of the given pairs.
func Mapping(pairs ...Pair) Value { return Value{Kind: KindMapping, Pairs: pairs} }

// P is shorthand for building a Pair.
func P(key string, v Value) Pair { return Pair{Key: key, Value: v} }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Str returns the string held by a string scalar.
func (v Value) Str() (string, bool) {
	if v.Kind != KindScalar {
		return "", false
	}
	s, ok := v.Scalar.(string)
	return s, ok
}

// Get returns the value stored under key in a mapping. The first matching
// key wins.
func (v Value) Get(key string) (Value, bool) {
	if v.Kind != KindMapping {
		return Value{}, false
	}
	for _, p := range v.Pairs {
		if p.Key == key {
			return p.Value, true
		}
	}
	return Value{}, false
}

// Truthy reports whether v counts as set: null, false, zero and the empty
// string are falsy, every sequence and mapping is truthy.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindNull:
		return false
	case KindScalar:
		switch s := v.Scalar.(type) {
		case string:
			return s != ""
		case bool:
			return s
		case int64:
			return s != 0
		case float64:
			return s != 0
		}
		return v.Scalar != nil
	}
	return true
}

// Text renders v as display text. Scalars render plainly, null renders
// empty, and sequences and mappings render as compact YAML flow text.
func (v Value) Text() string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindScalar:
		return scalarText(v.Scalar)
	}
	n := v.Node()
	setFlow(n)
	out, err := yaml.Marshal(n)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func scalarText(s any) string {
	switch t := s.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case nil:
		return ""
	}
	return fmt.Sprint(s)
}

func setFlow(n *yaml.Node) {
	n.Style |= yaml.FlowStyle
	for _, c := range n.Content {
		setFlow(c)
	}
}

// Clone returns a deep copy of v that shares no slices with it.
func (v Value) Clone() Value {
	out := Value{Kind: v.Kind, Scalar: v.Scalar}
	if v.Items != nil {
		out.Items = make([]Value, len(v.Items))
		for i, item := range v.Items {
			out.Items[i] = item.Clone()
		}
	}
	if v.Pairs != nil {
		out.Pairs = make([]Pair, len(v.Pairs))
		for i, p := range v.Pairs {
			out.Pairs[i] = Pair{Key: p.Key, Value: p.Value.Clone()}
		}
	}
	return out
}

// --- YAML ---

// FromNode converts a decoded YAML node into a Value. Aliases are resolved
// and document nodes unwrap to their single child.
func FromNode(n *yaml.Node) Value {
	if n == nil {
		return Null()
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return Null()
		}
		return FromNode(n.Content[0])
	case yaml.AliasNode:
		return FromNode(n.Alias)
	case yaml.SequenceNode:
		items := make([]Value, 0, len(n.Content))
		for _, c := range n.Content {
			items = append(items, FromNode(c))
		}
		return Sequence(items...)
	case yaml.MappingNode:
		pairs := make([]Pair, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			pairs = append(pairs, Pair{Key: n.Content[i].Value, Value: FromNode(n.Content[i+1])})
		}
		return Mapping(pairs...)
	case yaml.ScalarNode:
		return scalarFromNode(n)
	}
	return Null()
}

func scalarFromNode(n *yaml.Node) Value {
	switch n.ShortTag() {
	case "!!null":
		return Null()
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err == nil {
			return Bool(b)
		}
	case "!!int":
		var i int64
		if err := n.Decode(&i); err == nil {
			return Int(i)
		}
	case "!!float":
		var f float64
		if err := n.Decode(&f); err == nil {
			return Float(f)
		}
	}
	return String(n.Value)
}

// Node converts v into a YAML node tree.
func (v Value) Node() *yaml.Node {
	switch v.Kind {
	case KindScalar:
		n := &yaml.Node{Kind: yaml.ScalarNode, Value: scalarText(v.Scalar)}
		switch s := v.Scalar.(type) {
		case bool:
			n.Tag = "!!bool"
		case int64:
			n.Tag = "!!int"
		case float64:
			n.Tag = "!!float"
			n.Value = yamlFloat(s)
		default:
			n.Tag = "!!str"
		}
		return n
	case KindSequence:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range v.Items {
			n.Content = append(n.Content, item.Node())
		}
		return n
	case KindMapping:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, p := range v.Pairs {
			n.Content = append(n.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: p.Key},
				p.Value.Node())
		}
		return n
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
}

func yamlFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return ".nan"
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	}
	return scalarText(f)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (v *Value) UnmarshalYAML(n *yaml.Node) error {
	*v = FromNode(n)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (v Value) MarshalYAML() (any, error) {
	return v.Node(), nil
}

// --- JSON ---

// MarshalJSON implements json.Marshaler. Mapping keys are written in order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) writeJSON(buf *bytes.Buffer) error {
	switch v.Kind {
	case KindNull:
		buf.WriteString("null")
	case KindScalar:
		// JSON has no NaN or Inf; write them as their text form.
		if f, ok := v.Scalar.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			data, _ := json.Marshal(scalarText(f))
			buf.Write(data)
			return nil
		}
		data, err := json.Marshal(v.Scalar)
		if err != nil {
			return fmt.Errorf("encoding scalar: %w", err)
		}
		buf.Write(data)
	case KindSequence:
		buf.WriteByte('[')
		for i, item := range v.Items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMapping:
		return writePairsJSON(buf, v.Pairs)
	}
	return nil
}

func writePairsJSON(buf *bytes.Buffer, pairs []Pair) error {
	buf.WriteByte('{')
	for i, p := range pairs {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p.Key)
		if err != nil {
			return fmt.Errorf("encoding key %q: %w", p.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		if err := p.Value.writeJSON(buf); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// UnmarshalJSON implements json.Unmarshaler. Object keys keep the order in
// which they appear in the input.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	out, err := decodeJSON(dec)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

func decodeJSON(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("decoding number %q: %w", t, err)
		}
		return Float(f), nil
	case json.Delim:
		switch t {
		case '[':
			items := []Value{}
			for dec.More() {
				item, err := decodeJSON(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Sequence(items...), nil
		case '{':
			pairs := []Pair{}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Value{}, fmt.Errorf("unexpected object key %v", keyTok)
				}
				val, err := decodeJSON(dec)
				if err != nil {
					return Value{}, err
				}
				pairs = append(pairs, Pair{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return Mapping(pairs...), nil
		}
	}
	return Value{}, fmt.Errorf("unexpected JSON token %v", tok)
}
