package pathresolver

import (
	"fmt"
	pathpkg "path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// excludePattern represents a single parsed exclude pattern. It follows the
// same negation/directory-only/leaf-match conventions as the teacher's
// ignore pattern parser, but is scoped to the simpler "is this path
// excluded" question rather than full ignore-list layering.
type excludePattern struct {
	negated       bool
	directoryOnly bool
	matchLeaf     bool
	pattern       string
}

// newExcludePattern validates and parses a single exclude pattern.
func newExcludePattern(pattern string) (*excludePattern, error) {
	if pattern == "" || pattern == "!" {
		return nil, fmt.Errorf("empty pattern")
	} else if pattern == "/" || pattern == "!/" {
		return nil, fmt.Errorf("root pattern")
	}

	negated := false
	if pattern[0] == '!' {
		negated = true
		pattern = pattern[1:]
	}

	absolute := false
	if pattern[0] == '/' {
		absolute = true
		pattern = pattern[1:]
	}

	directoryOnly := false
	if pattern[len(pattern)-1] == '/' {
		directoryOnly = true
		pattern = pattern[:len(pattern)-1]
	}

	containsSlash := strings.IndexByte(pattern, '/') >= 0

	if _, err := doublestar.Match(pattern, "a"); err != nil {
		return nil, fmt.Errorf("unable to validate pattern: %w", err)
	}

	return &excludePattern{
		negated:       negated,
		directoryOnly: directoryOnly,
		matchLeaf:     !absolute && !containsSlash,
		pattern:       pattern,
	}, nil
}

// matches reports whether the pattern applies to path, and if so whether the
// match was negated.
func (p *excludePattern) matches(path string) (matched, negated bool) {
	if match, _ := doublestar.Match(p.pattern, path); match {
		return true, p.negated
	}
	if p.matchLeaf && path != "" {
		if match, _ := doublestar.Match(p.pattern, pathpkg.Base(path)); match {
			return true, p.negated
		}
	}
	return false, false
}

// ExcludeSet is an ordered collection of exclude patterns. Later patterns can
// negate the effect of earlier ones, exactly as in the teacher's ignore
// layering.
type ExcludeSet struct {
	patterns []*excludePattern
}

// NewExcludeSet parses a list of exclude patterns in priority order.
func NewExcludeSet(patterns []string) (*ExcludeSet, error) {
	parsed := make([]*excludePattern, 0, len(patterns))
	for _, raw := range patterns {
		p, err := newExcludePattern(raw)
		if err != nil {
			return nil, fmt.Errorf("unable to parse exclude pattern %q: %w", raw, err)
		}
		parsed = append(parsed, p)
	}
	return &ExcludeSet{patterns: parsed}, nil
}

// Excluded reports whether relpath should be excluded.
func (s *ExcludeSet) Excluded(relpath string) bool {
	if s == nil {
		return false
	}
	excluded := false
	for _, p := range s.patterns {
		if match, negated := p.matches(relpath); match {
			excluded = !negated
		}
	}
	return excluded
}
