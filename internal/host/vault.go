// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package host

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pdiddy/bestiary/pkg/types"
)

const noteExt = ".md"

// Vault is a directory of Markdown notes addressed by vault-relative,
// slash-separated paths.
type Vault struct {
	root   string
	ignore []string
}

// NewVault returns a Vault rooted at cfg.Root. The root must be an
// existing directory.
func NewVault(cfg types.VaultConfig) (*Vault, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving vault root %s: %w", cfg.Root, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("opening vault: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vault root %s is not a directory", root)
	}
	return &Vault{root: root, ignore: cfg.Ignore}, nil
}

// Root returns the absolute vault directory.
func (v *Vault) Root() string { return v.root }

// List returns the paths of every note in the vault, sorted. Ignored
// directories are not descended into.
func (v *Vault) List() ([]string, error) {
	var notes []string
	err := filepath.WalkDir(v.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != v.root && v.IgnoredDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if rel, ok := v.Rel(p); ok && IsNote(rel) {
			notes = append(notes, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing vault %s: %w", v.root, err)
	}
	slices.Sort(notes)
	return notes, nil
}

// Read loads the frontmatter and file attributes of the note at rel.
func (v *Vault) Read(rel string) (types.Metadata, types.FileAttrs, error) {
	file := types.FileAttrs{
		Path:     rel,
		Basename: strings.TrimSuffix(path.Base(rel), path.Ext(rel)),
	}

	abs := v.Abs(rel)
	info, err := os.Stat(abs)
	if err != nil {
		return nil, file, fmt.Errorf("reading note %s: %w", rel, err)
	}
	file.ModTime = info.ModTime().UnixMilli()

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, file, fmt.Errorf("reading note %s: %w", rel, err)
	}
	meta, err := ParseFrontmatter(data)
	if err != nil {
		return nil, file, fmt.Errorf("note %s: %w", rel, err)
	}
	return meta, file, nil
}

// ModTime returns the modification time of the note at rel in Unix
// milliseconds.
func (v *Vault) ModTime(rel string) (int64, error) {
	info, err := os.Stat(v.Abs(rel))
	if err != nil {
		return 0, err
	}
	return info.ModTime().UnixMilli(), nil
}

// Abs converts a vault path to an absolute file system path.
func (v *Vault) Abs(rel string) string {
	return filepath.Join(v.root, filepath.FromSlash(rel))
}

// Rel converts an absolute file system path inside the vault to a vault
// path. It reports false for paths outside the vault or inside an ignored
// directory.
func (v *Vault) Rel(abs string) (string, bool) {
	rel, err := filepath.Rel(v.root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	dirs := strings.Split(rel, "/")
	for _, dir := range dirs[:len(dirs)-1] {
		if v.IgnoredDir(dir) {
			return "", false
		}
	}
	return rel, true
}

// IgnoredDir reports whether a directory with this name is skipped.
func (v *Vault) IgnoredDir(name string) bool {
	return slices.Contains(v.ignore, name)
}

// IsNote reports whether a vault path names a Markdown note.
func IsNote(rel string) bool {
	return strings.EqualFold(path.Ext(rel), noteExt)
}
