// Package css reads document stylesheets and inline style declarations.
// Only plain rulesets are kept; at-rules are skipped with their blocks.
package css

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	parse "github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// ErrUnbalanced is returned for a stylesheet that ends inside a block.
var ErrUnbalanced = errors.New("unbalanced braces in stylesheet")

// Rule is a ruleset: a selector group and its declarations.
type Rule struct {
	Selectors    []string
	Declarations []*Declaration
	// Order is the position of the rule in its stylesheet.
	Order int
}

// Declaration is a single property: value pair.
type Declaration struct {
	Property  string
	Value     string
	Important bool
}

// Stylesheet is an ordered list of rules.
type Stylesheet struct {
	Rules []*Rule
}

// Parser reads stylesheets.
type Parser struct{}

// NewParser creates a new CSS parser.
func NewParser() *Parser {
	return &Parser{}
}

// ParseString parses a stylesheet held in a string.
func (p *Parser) ParseString(content string) (*Stylesheet, error) {
	return p.parse(parse.NewInputString(content))
}

// Parse parses a stylesheet from r.
func (p *Parser) Parse(r io.Reader) (*Stylesheet, error) {
	return p.parse(parse.NewInput(r))
}

func (p *Parser) parse(input *parse.Input) (*Stylesheet, error) {
	sheet := &Stylesheet{Rules: []*Rule{}}
	parser := css.NewParser(input, false)

	var current *Rule
	for {
		gt, _, data := parser.Next()
		switch gt {
		case css.ErrorGrammar:
			if err := parser.Err(); err != nil {
				if !errors.Is(err, io.EOF) {
					return nil, fmt.Errorf("unable to parse stylesheet: %w", err)
				}
				if current != nil {
					return nil, ErrUnbalanced
				}
				return sheet, nil
			}
			// malformed declaration or rule, parser already skipped it

		case css.BeginAtRuleGrammar:
			if err := skipBlock(parser); err != nil {
				return nil, err
			}

		case css.BeginRulesetGrammar:
			selectors := splitSelectors(tokenText(data, parser.Values()))
			current = &Rule{Selectors: selectors}

		case css.DeclarationGrammar:
			if current != nil {
				if d := declaration(data, parser.Values()); d != nil {
					current.Declarations = append(current.Declarations, d)
				}
			}

		case css.EndRulesetGrammar:
			if current != nil && len(current.Selectors) > 0 {
				current.Order = len(sheet.Rules)
				sheet.Rules = append(sheet.Rules, current)
			}
			current = nil
		}
	}
}

// skipBlock consumes grammar up to the end of the at-rule block just opened.
func skipBlock(parser *css.Parser) error {
	depth := 1
	for depth > 0 {
		gt, _, _ := parser.Next()
		switch gt {
		case css.ErrorGrammar:
			if err := parser.Err(); err != nil {
				if errors.Is(err, io.EOF) {
					return ErrUnbalanced
				}
				return fmt.Errorf("unable to parse stylesheet: %w", err)
			}
		case css.BeginAtRuleGrammar, css.BeginRulesetGrammar:
			depth++
		case css.EndAtRuleGrammar, css.EndRulesetGrammar:
			depth--
		}
	}
	return nil
}

// ParseDeclarations parses a declaration block body such as
// "margin: 4 8; color: #333333". Malformed entries are skipped.
func ParseDeclarations(declarations string) []*Declaration {
	parser := css.NewParser(parse.NewInputString(declarations), true)

	var result []*Declaration
	for {
		gt, _, data := parser.Next()
		switch gt {
		case css.ErrorGrammar:
			if parser.Err() != nil {
				return result
			}
		case css.DeclarationGrammar:
			if d := declaration(data, parser.Values()); d != nil {
				result = append(result, d)
			}
		}
	}
}

var importantSuffix = regexp.MustCompile(`(?i)\s*!\s*important\s*$`)

func declaration(property []byte, values []css.Token) *Declaration {
	name := strings.ToLower(strings.TrimSpace(string(property)))
	if name == "" {
		return nil
	}
	value := tokenText(nil, values)
	d := &Declaration{Property: name, Value: value}
	if loc := importantSuffix.FindStringIndex(value); loc != nil {
		d.Important = true
		d.Value = strings.TrimSpace(value[:loc[0]])
	}
	return d
}

func tokenText(data []byte, values []css.Token) string {
	var sb strings.Builder
	sb.Write(data)
	for _, v := range values {
		sb.Write(v.Data)
	}
	return strings.Trim(sb.String(), "{ \t\r\n")
}

func splitSelectors(group string) []string {
	var selectors []string
	for s := range strings.SplitSeq(group, ",") {
		if s = strings.Join(strings.Fields(s), " "); s != "" {
			selectors = append(selectors, s)
		}
	}
	return selectors
}
