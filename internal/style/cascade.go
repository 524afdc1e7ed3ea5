package style

import (
	"sort"
	"strings"

	"github.com/gompdf/jsonpdf/internal/parser/css"
)

// Node is what stylesheet selectors are matched against.
type Node interface {
	// Tag is the element kind name, e.g. "p", "h2", "td" or "h-container".
	Tag() string
	ID() string
	Classes() []string
	Parent() Node
}

// Specificity represents the specificity of a CSS selector
type Specificity struct {
	ID      int
	Class   int
	Element int
}

// Sheet is a parsed document stylesheet.
type Sheet struct {
	rules []*css.Rule
}

// NewSheet parses a document stylesheet.
func NewSheet(source string) (*Sheet, error) {
	parsed, err := css.NewParser().ParseString(source)
	if err != nil {
		return nil, err
	}
	return &Sheet{rules: parsed.Rules}, nil
}

type match struct {
	decl        *css.Declaration
	specificity Specificity
	order       int
}

// Match returns the declarations of all rules matching node, cascaded by
// importance, specificity and source order. Important declarations come
// back in the second style and are meant to be layered over inline styles.
func (s *Sheet) Match(node Node) (normal, important Style) {
	normal, important = Style{}, Style{}
	if s == nil || node == nil {
		return normal, important
	}

	var matches []match
	for _, rule := range s.rules {
		best, matched := Specificity{}, false
		for _, selector := range rule.Selectors {
			if !selectorMatches(node, selector) {
				continue
			}
			if sp := calculateSpecificity(selector); !matched || compareSpecificity(sp, best) > 0 {
				best = sp
			}
			matched = true
		}
		if !matched {
			continue
		}
		for _, decl := range rule.Declarations {
			matches = append(matches, match{decl: decl, specificity: best, order: rule.Order})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if c := compareSpecificity(matches[i].specificity, matches[j].specificity); c != 0 {
			return c < 0
		}
		return matches[i].order < matches[j].order
	})

	for _, m := range matches {
		target := normal
		if m.decl.Important {
			target = important
		}
		for k, v := range (Style{m.decl.Property: m.decl.Value}).Expand() {
			target[k] = v
		}
	}
	return normal, important
}

// selectorMatches checks the last compound selector against the node and the
// remaining ones against its ancestors (descendant combinator only).
func selectorMatches(node Node, selector string) bool {
	parts := strings.Fields(selector)
	if len(parts) == 0 || node == nil {
		return false
	}
	if !matchCompoundSelector(node, parts[len(parts)-1]) {
		return false
	}

	current := node.Parent()
	for i := len(parts) - 2; i >= 0; i-- {
		found := false
		for anc := current; anc != nil; anc = anc.Parent() {
			if matchCompoundSelector(anc, parts[i]) {
				found = true
				current = anc.Parent()
				break
			}
		}
		if !found {
			return false
		}
	}

	return true
}

// matchCompoundSelector matches a single compound selector against a node.
// Compound selectors can be forms like:
//   - tag
//   - .class
//   - #id
//   - tag.class
//   - tag#id.class1.class2
//
// It does not support attributes, pseudo-classes, or combinators.
func matchCompoundSelector(node Node, sel string) bool {
	if node == nil || sel == "" {
		return false
	}

	var wantTag string
	var wantID string
	var wantClasses []string

	i := 0
	if sel[i] != '.' && sel[i] != '#' {
		j := i
		for j < len(sel) && sel[j] != '#' && sel[j] != '.' {
			j++
		}
		wantTag = sel[i:j]
		i = j
	}
	for i < len(sel) {
		j := i + 1
		for j < len(sel) && sel[j] != '.' && sel[j] != '#' {
			j++
		}
		switch sel[i] {
		case '#':
			wantID = sel[i+1 : j]
		case '.':
			wantClasses = append(wantClasses, sel[i+1:j])
		}
		i = j
	}

	if wantTag != "" && wantTag != "*" && !tagMatches(node.Tag(), wantTag) {
		return false
	}
	if wantID != "" && node.ID() != wantID {
		return false
	}
	if len(wantClasses) > 0 {
		have := make(map[string]struct{}, len(node.Classes()))
		for _, c := range node.Classes() {
			have[c] = struct{}{}
		}
		for _, need := range wantClasses {
			if _, ok := have[need]; !ok {
				return false
			}
		}
	}
	return true
}

// tagMatches lets "h" select headings of any level.
func tagMatches(tag, want string) bool {
	if strings.EqualFold(tag, want) {
		return true
	}
	return want == "h" && len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6'
}

func calculateSpecificity(selector string) Specificity {
	specificity := Specificity{}
	for _, part := range strings.Fields(selector) {
		specificity.ID += strings.Count(part, "#")
		specificity.Class += strings.Count(part, ".")
		if part[0] != '.' && part[0] != '#' && part[0] != '*' {
			specificity.Element++
		}
	}
	return specificity
}

func compareSpecificity(a, b Specificity) int {
	if a.ID != b.ID {
		return a.ID - b.ID
	}
	if a.Class != b.Class {
		return a.Class - b.Class
	}
	return a.Element - b.Element
}
