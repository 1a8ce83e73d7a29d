// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pdiddy/bestiary/pkg/types"
)

// Built-in label patterns. Each defines the named groups "name" and "text".
var (
	// boldLabelRe matches "**Name.** text", "***Name.*** text" and
	// "__Name__: text".
	boldLabelRe = regexp.MustCompile(`(?s)^\s*(?:\*{2,3}|_{2})(?P<name>[^*_\n]+?)[.:]?(?:\*{2,3}|_{2})[.:]?\s*(?P<text>.*)$`)

	// colonLabelRe matches a short title followed by a colon: "Name: text".
	colonLabelRe = regexp.MustCompile(`(?s)^\s*(?P<name>[^:.!?\n]{1,64}?)\s*:\s+(?P<text>.*)$`)
)

// LabelSplitter separates a leading label from the body of a plain-string
// entry. A nil pattern never splits.
type LabelSplitter struct {
	re      *regexp.Regexp
	nameIdx int
	textIdx int
}

// NewLabelSplitter returns the splitter for cfg. A non-empty LabelPattern
// takes precedence over LabelStyle and must define the groups "name" and
// "text".
func NewLabelSplitter(cfg types.NormalizeConfig) (*LabelSplitter, error) {
	if cfg.LabelPattern != "" {
		re, err := regexp.Compile(cfg.LabelPattern)
		if err != nil {
			return nil, fmt.Errorf("compiling label pattern: %w", err)
		}
		return newSplitter(re)
	}

	switch cfg.LabelStyle {
	case types.LabelBold, "":
		return newSplitter(boldLabelRe)
	case types.LabelColon:
		return newSplitter(colonLabelRe)
	case types.LabelNone:
		return &LabelSplitter{}, nil
	}
	return nil, fmt.Errorf("unknown label style %q", cfg.LabelStyle)
}

func newSplitter(re *regexp.Regexp) (*LabelSplitter, error) {
	s := &LabelSplitter{re: re, nameIdx: re.SubexpIndex("name"), textIdx: re.SubexpIndex("text")}
	if s.nameIdx < 0 || s.textIdx < 0 {
		return nil, fmt.Errorf("label pattern %q must define groups \"name\" and \"text\"", re.String())
	}
	return s, nil
}

// Split returns the label and body of s. When no label is recognized the
// label is empty and the body is s unchanged.
func (l *LabelSplitter) Split(s string) (name, text string) {
	if l == nil || l.re == nil {
		return "", s
	}
	m := l.re.FindStringSubmatch(s)
	if m == nil {
		return "", s
	}
	name = strings.TrimSpace(m[l.nameIdx])
	if name == "" {
		return "", s
	}
	return name, strings.TrimSpace(m[l.textIdx])
}
