package router

import (
	"regexp"
	"strings"
)

// Pattern decides whether the router is applicable to the path. Patterns are anchored at the
// path start. The first capture group, when matched and non-empty, becomes the remainder.
type Pattern struct {
	expr    *regexp.Regexp
	literal bool
}

// Compile builds the pattern out of a shorthand. Trailing /* captures the rest of the path
// including its leading slash, so /static/* matches /static/css/main.css with the remainder
// of /css/main.css, but doesn't match /staticfile. Anything else is a literal, matching only
// itself and leaving an empty remainder.
func Compile(pattern string) Pattern {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		return Pattern{expr: regexp.MustCompile("^" + regexp.QuoteMeta(prefix) + "(/.*)$")}
	}

	return Pattern{expr: regexp.MustCompile("^" + regexp.QuoteMeta(pattern) + "$"), literal: true}
}

// Raw wraps an already compiled expression. It's used as is, so it's up to the caller to
// anchor it.
func Raw(expr *regexp.Regexp) Pattern {
	return Pattern{expr: expr}
}

// Match reports whether the path complies with the pattern. If so, the remainder is empty for
// literals, otherwise it's the first captured group, even an empty one. Expressions without
// groups leave the path unchanged.
func (p Pattern) Match(path string) (remainder string, ok bool) {
	if p.expr == nil {
		return path, false
	}

	groups := p.expr.FindStringSubmatch(path)
	if groups == nil {
		return "", false
	}

	if p.literal {
		return "", true
	}

	if len(groups) > 1 {
		return groups[1], true
	}

	return path, true
}

func (p Pattern) String() string {
	if p.expr == nil {
		return ""
	}

	return p.expr.String()
}

// Exact matches the path only as a whole.
func Exact(path string) Pattern {
	return Pattern{expr: regexp.MustCompile("^" + regexp.QuoteMeta(path) + "$")}
}
