package oui

import (
	"strings"
	"unicode"

	"github.com/pkg/errors"

	"github.com/XC-/bluing"
)

// Policy decides whether an organization name matches a query. All policies
// ignore case and collapse runs of white space.
type Policy int

const (
	// Substring matches when the query occurs anywhere in the name.
	Substring Policy = iota
	// Prefix matches when the name starts with the query.
	Prefix
	// Exact matches the whole name.
	Exact
	// Word matches when every word of the query is a word of the name.
	Word
)

var policyName = [...]string{"substring", "prefix", "exact", "word"}

func (p Policy) String() string {
	if p >= 0 && int(p) < len(policyName) {
		return policyName[p]
	}
	return "unknown"
}

// ParsePolicy accepts the names returned by String. The empty string is
// Substring.
func ParsePolicy(s string) (Policy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Substring, nil
	}
	for i, n := range policyName {
		if n == s {
			return Policy(i), nil
		}
	}
	return 0, errors.Wrapf(bluing.ErrInvalid, "match policy %q", s)
}

func (p Policy) match(name, q string) bool {
	switch p {
	case Prefix:
		return strings.HasPrefix(name, q)
	case Exact:
		return name == q
	case Word:
		have := make(map[string]bool)
		for _, w := range words(name) {
			have[w] = true
		}
		qw := words(q)
		for _, w := range qw {
			if !have[w] {
				return false
			}
		}
		return len(qw) > 0
	}
	return strings.Contains(name, q)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
}
