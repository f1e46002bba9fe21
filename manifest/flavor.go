package manifest

import (
	"encoding/json"
	"regexp"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"
)

// MatcherKind tags the persisted form of a Matcher.
type MatcherKind string

// Recognized matcher kinds, per spec §9: a flavor predicate is modeled as a
// tagged variant over {glob, regex, literal-set} so it can be serialized
// alongside the flavor spec it came from.
const (
	KindGlob    MatcherKind = "glob"
	KindRegex   MatcherKind = "regex"
	KindLiteral MatcherKind = "literal"
)

// Matcher is a predicate over logical file paths, persistable in its source
// form (the glob/regex text, or the literal set) rather than as compiled
// state.
type Matcher struct {
	Kind MatcherKind `json:"kind"`
	Expr string      `json:"expr,omitempty"`
	Set  []string    `json:"set,omitempty"`

	compiled glob.Glob
	re       *regexp.Regexp
	literals map[string]struct{}
}

// NewGlobMatcher builds a Matcher from a shell-style glob pattern.
func NewGlobMatcher(pattern string) (*Matcher, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, errors.Wrapf(err, "invalid glob pattern %q", pattern)
	}
	return &Matcher{Kind: KindGlob, Expr: pattern, compiled: g}, nil
}

// NewRegexMatcher builds a Matcher from a regular expression.
func NewRegexMatcher(pattern string) (*Matcher, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid regex pattern %q", pattern)
	}
	return &Matcher{Kind: KindRegex, Expr: pattern, re: re}, nil
}

// NewLiteralMatcher builds a Matcher that matches exactly the given set of
// paths.
func NewLiteralMatcher(paths []string) *Matcher {
	set := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		set[p] = struct{}{}
	}
	return &Matcher{Kind: KindLiteral, Set: paths, literals: set}
}

// Match reports whether path satisfies the predicate.
func (m *Matcher) Match(path string) bool {
	switch m.Kind {
	case KindGlob:
		if m.compiled == nil {
			g, err := glob.Compile(m.Expr, '/')
			if err != nil {
				return false
			}
			m.compiled = g
		}
		return m.compiled.Match(path)
	case KindRegex:
		if m.re == nil {
			re, err := regexp.Compile(m.Expr)
			if err != nil {
				return false
			}
			m.re = re
		}
		return m.re.MatchString(path)
	case KindLiteral:
		if m.literals == nil {
			m.literals = make(map[string]struct{}, len(m.Set))
			for _, p := range m.Set {
				m.literals[p] = struct{}{}
			}
		}
		_, ok := m.literals[path]
		return ok
	default:
		return false
	}
}

// UnmarshalJSON lets a Matcher round-trip through its tagged-variant form.
func (m *Matcher) UnmarshalJSON(b []byte) error {
	type alias Matcher
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	*m = Matcher(a)
	return nil
}

// Flavor names a subset-variant selector: a name, and the predicate that
// decides which files belong to it.
type Flavor struct {
	Name  string  `json:"name"`
	Match Matcher `json:"match"`
}

// FlavorSpec is an ordered list of flavors to evaluate against every scanned
// file during a publish (spec §4.I step 5).
type FlavorSpec []Flavor

// Assign returns the names of every flavor in the spec whose predicate
// matches path.
func (s FlavorSpec) Assign(path string) []string {
	var matched []string
	for _, f := range s {
		if f.Match.Match(path) {
			matched = append(matched, f.Name)
		}
	}
	return matched
}
