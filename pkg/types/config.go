// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// WorkerConfig holds settings for the background extraction worker.
type WorkerConfig struct {
	// ReplyTimeout bounds the wait for a metadata reply. Zero waits forever;
	// a positive value skips the path when the host does not answer in time.
	ReplyTimeout time.Duration `json:"reply_timeout" yaml:"reply_timeout"`

	// Debug starts the worker with verbose diagnostics enabled.
	Debug bool `json:"debug" yaml:"debug"`
}

// ExtractConfig names the frontmatter fields that drive extraction.
type ExtractConfig struct {
	// MarkerField marks a note as carrying a stat block (default "statblock").
	MarkerField string `json:"marker_field" yaml:"marker_field"`

	// NameField holds the creature name (default "name").
	NameField string `json:"name_field" yaml:"name_field"`

	// NestedFields lists the fields normalized into entry sequences.
	NestedFields []string `json:"nested_fields" yaml:"nested_fields"`
}

// LabelStyle selects how a plain-string entry is split into name and text.
type LabelStyle string

const (
	// LabelBold splits a leading bold segment: "**Keen Senses.** text".
	LabelBold LabelStyle = "bold"

	// LabelColon splits a short leading title ending in a colon: "Keen Senses: text".
	LabelColon LabelStyle = "colon"

	// LabelNone never splits; the whole string is the entry text.
	LabelNone LabelStyle = "none"
)

// NormalizeConfig holds the label splitting rules for plain-string entries.
type NormalizeConfig struct {
	// LabelStyle picks a built-in heuristic (default bold).
	LabelStyle LabelStyle `json:"label_style" yaml:"label_style"`

	// LabelPattern overrides LabelStyle with a regular expression that
	// defines the named groups "name" and "text".
	LabelPattern string `json:"label_pattern,omitempty" yaml:"label_pattern,omitempty"`
}

// VaultConfig describes the directory of notes the host serves.
type VaultConfig struct {
	// Root is the vault directory.
	Root string `json:"root" yaml:"root"`

	// Ignore lists directory names skipped while listing and watching.
	Ignore []string `json:"ignore" yaml:"ignore"`

	// Debounce is how long the watcher waits for a burst of changes to settle.
	Debounce time.Duration `json:"debounce" yaml:"debounce"`
}

// StoreConfig holds settings for the bestiary record store.
type StoreConfig struct {
	// Dir is the directory holding bestiary.db and exports.
	Dir string `json:"dir" yaml:"dir"`

	// MaxResults is the default maximum number of query results (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// Config groups the settings of every component.
type Config struct {
	Worker    WorkerConfig    `json:"worker" yaml:"worker"`
	Extract   ExtractConfig   `json:"extract" yaml:"extract"`
	Normalize NormalizeConfig `json:"normalize" yaml:"normalize"`
	Vault     VaultConfig     `json:"vault" yaml:"vault"`
	Store     StoreConfig     `json:"store" yaml:"store"`
}

// DefaultNestedFields are the stat block sections normalized into entries.
var DefaultNestedFields = []string{
	"traits",
	"actions",
	"bonus_actions",
	"reactions",
	"legendary_actions",
}

// DefaultConfig returns the configuration used when no file or flag
// overrides a setting.
func DefaultConfig() Config {
	return Config{
		Extract: ExtractConfig{
			MarkerField:  "statblock",
			NameField:    "name",
			NestedFields: append([]string(nil), DefaultNestedFields...),
		},
		Normalize: NormalizeConfig{
			LabelStyle: LabelBold,
		},
		Vault: VaultConfig{
			Root:     ".",
			Ignore:   []string{".obsidian", ".trash", ".git"},
			Debounce: 250 * time.Millisecond,
		},
		Store: StoreConfig{
			Dir:        ".bestiary",
			MaxResults: 20,
		},
	}
}
