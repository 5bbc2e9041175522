// Package glob compiles key-listing patterns where only `*` is special.
//
// `*` matches any run of characters, including none; every other
// character is literal. The lone pattern `*` short-circuits to an
// accept-all matcher with no regexp behind it.
package glob

import (
	"regexp"
	"strings"
)

var starRuns = regexp.MustCompile(`\*{2,}`)

// Matcher matches keys against one compiled pattern. Safe for
// concurrent use.
type Matcher struct {
	all bool
	re  *regexp.Regexp
}

// Compile builds a Matcher for p. Runs of `*` collapse to one, all
// regexp metacharacters other than `*` are escaped, and the expression
// is anchored at both ends. The constructed expression is always valid,
// so Compile cannot fail.
func Compile(p string) *Matcher {
	if p == "*" {
		return &Matcher{all: true}
	}
	p = starRuns.ReplaceAllString(p, "*")
	parts := strings.Split(p, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	// (?s) so `*` crosses newlines; keys are opaque strings.
	re := regexp.MustCompile(`(?s)\A` + strings.Join(parts, ".*") + `\z`)
	return &Matcher{re: re}
}

// Match reports whether s matches the pattern.
func (m *Matcher) Match(s string) bool {
	if m.all {
		return true
	}
	return m.re.MatchString(s)
}
