// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package host

import (
	"bytes"
	"errors"
	"fmt"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/bestiary/pkg/types"
)

const fence = "---"

// ErrUnterminatedFrontmatter is returned when a note opens a frontmatter
// block but never closes it.
var ErrUnterminatedFrontmatter = errors.New("frontmatter block is not closed")

// ParseFrontmatter extracts the YAML block delimited by "---" lines at the
// very start of a note. It returns nil metadata when the note has no block
// or the block is empty. Key order is preserved.
func ParseFrontmatter(content []byte) (types.Metadata, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))

	first, rest, _ := cutLine(content)
	if string(first) != fence {
		return nil, nil
	}

	bodyStart := len(content) - len(rest)
	for len(rest) > 0 {
		lineStart := len(content) - len(rest)
		var line []byte
		line, rest, _ = cutLine(rest)
		if string(line) != fence {
			continue
		}

		var meta types.Metadata
		if err := yaml.Unmarshal(content[bodyStart:lineStart], &meta); err != nil {
			return nil, fmt.Errorf("parsing frontmatter: %w", err)
		}
		return meta, nil
	}
	return nil, ErrUnterminatedFrontmatter
}

// cutLine splits off the first line of b, dropping the line ending.
func cutLine(b []byte) (line, rest []byte, found bool) {
	line, rest, found = bytes.Cut(b, []byte("\n"))
	return bytes.TrimSuffix(line, []byte("\r")), rest, found
}
