package builder

import (
	"fmt"
	"regexp"

	"github.com/bmatcuk/doublestar/v4"
)

// matcher abstracts over the two supported pattern kinds.
type matcher interface {
	match(relpath string) bool
}

// globMatcher matches using doublestar glob syntax.
type globMatcher struct {
	pattern string
}

func (g globMatcher) match(relpath string) bool {
	matched, _ := doublestar.Match(g.pattern, relpath)
	return matched
}

// regexMatcher matches using a compiled regular expression.
type regexMatcher struct {
	re *regexp.Regexp
}

func (r regexMatcher) match(relpath string) bool {
	return r.re.MatchString(relpath)
}

// newMatcher compiles pattern according to kind, validating it up front so
// that registration fails fast on a bad pattern rather than at first match.
func newMatcher(pattern string, kind PatternKind) (matcher, error) {
	switch kind {
	case PatternGlob:
		if _, err := doublestar.Match(pattern, "a"); err != nil {
			return nil, fmt.Errorf("invalid glob pattern: %w", err)
		}
		return globMatcher{pattern: pattern}, nil
	case PatternRegex:
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern: %w", err)
		}
		return regexMatcher{re: re}, nil
	default:
		return nil, fmt.Errorf("unknown pattern kind %d", kind)
	}
}
