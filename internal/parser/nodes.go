package parser

import (
	"regexp"

	"golang.org/x/net/html"

	"github.com/IshaanNene/DocScrape/internal/schema"
	"github.com/IshaanNene/DocScrape/internal/types"
)

// innermost drops every node that is an ancestor of another node in the
// set. Base selectors such as div:has(h2 button) also match the wrappers
// around the whole result list; only the listing cards are kept.
func innermost(nodes []*html.Node) []*html.Node {
	if len(nodes) < 2 {
		return nodes
	}
	matched := make(map[*html.Node]bool, len(nodes))
	for _, n := range nodes {
		matched[n] = true
	}
	wrapper := make(map[*html.Node]bool)
	for _, n := range nodes {
		for p := n.Parent; p != nil; p = p.Parent {
			if matched[p] {
				wrapper[p] = true
			}
		}
	}
	out := make([]*html.Node, 0, len(nodes))
	for _, n := range nodes {
		if !wrapper[n] {
			out = append(out, n)
		}
	}
	return out
}

// compilePatterns compiles the regex rules of a schema, indexed like
// s.Fields. Non-regex fields get a nil entry.
func compilePatterns(s *schema.Schema) ([]*regexp.Regexp, error) {
	patterns := make([]*regexp.Regexp, len(s.Fields))
	for i, f := range s.Fields {
		if f.Type != schema.TypeRegex {
			continue
		}
		re, err := regexp.Compile(f.Pattern)
		if err != nil {
			return nil, &types.ParseError{Selector: f.Pattern, Err: err}
		}
		patterns[i] = re
	}
	return patterns, nil
}

// matchPattern returns the first capture group of re in s, or the whole
// match when re has no groups.
func matchPattern(re *regexp.Regexp, s string) types.Field {
	if re == nil {
		return types.Absent()
	}
	m := re.FindStringSubmatch(s)
	if m == nil {
		return types.Absent()
	}
	v := m[0]
	if len(m) > 1 {
		v = m[1]
	}
	if v = CleanText(v); v == "" {
		return types.Absent()
	}
	return types.Matched(v)
}

func textField(s string) types.Field {
	if s = CleanText(s); s == "" {
		return types.Absent()
	}
	return types.Matched(s)
}
