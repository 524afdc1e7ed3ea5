package jsondoc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/gompdf/jsonpdf/internal/layout"
	"github.com/gompdf/jsonpdf/internal/style"
	"github.com/gompdf/jsonpdf/internal/vars"
)

type elementType int

const (
	typeHeading elementType = iota
	typeParagraph
	typeTable
	typeObjectTable
	typeAutoTable
	typeHorizontalContainer
	typeVerticalContainer
	typeImage
)

var elementTypes = map[string]elementType{
	"heading":              typeHeading,
	"h":                    typeHeading,
	"paragraph":            typeParagraph,
	"p":                    typeParagraph,
	"table":                typeTable,
	"t":                    typeTable,
	"object-table":         typeObjectTable,
	"o-table":              typeObjectTable,
	"obj-table":            typeObjectTable,
	"auto-table":           typeAutoTable,
	"a-table":              typeAutoTable,
	"horizontal-container": typeHorizontalContainer,
	"h-container":          typeHorizontalContainer,
	"vertical-container":   typeVerticalContainer,
	"v-container":          typeVerticalContainer,
	"image":                typeImage,
	"img":                  typeImage,
}

// rawElement is the union of the fields of every element type.
type rawElement struct {
	Type  string      `json:"type"`
	ID    string      `json:"id"`
	Class string      `json:"class"`
	Style style.Style `json:"style"`

	Text  flexString `json:"text"`
	Level *int       `json:"level"`

	Elements []json.RawMessage `json:"elements"`
	Widths   []flexString      `json:"widths"`

	Data             json.RawMessage `json:"data"`
	HeaderRows       int             `json:"headerRows"`
	HeadersPlacement string          `json:"headersPlacement"`
	HideHeaders      bool            `json:"hideHeaders"`
	HeaderStyle      style.Style     `json:"headerStyle"`
	CellStyle        style.Style     `json:"cellStyle"`
	ColumnWidths     []float64       `json:"columnWidths"`
	Schema           *record         `json:"schema"`
	TableDataKey     string          `json:"tableDataKey"`

	Src    string  `json:"src"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type parser struct {
	ctx     context.Context
	opts    options
	log     *zap.Logger
	resolve *vars.Resolver
	sheet   *style.Sheet
}

// selNode is the view of an element stylesheet selectors match against.
type selNode struct {
	tag     string
	id      string
	classes []string
	parent  *selNode
}

func (n *selNode) Tag() string       { return n.tag }
func (n *selNode) ID() string        { return n.id }
func (n *selNode) Classes() []string { return n.classes }

func (n *selNode) Parent() style.Node {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func newSelNode(tag, id, class string, parent *selNode) *selNode {
	return &selNode{tag: tag, id: id, classes: strings.Fields(class), parent: parent}
}

// styleFor bakes the matching stylesheet rules into an element style:
// normal declarations lose to the element's own style, important ones win.
func (p *parser) styleFor(n *selNode, own style.Style) style.Style {
	if p.sheet == nil {
		return own
	}
	normal, important := p.sheet.Match(n)
	if len(normal) == 0 && len(important) == 0 {
		return own
	}
	return style.Layer(normal, own, important)
}

func (p *parser) elements(list []json.RawMessage, path string, parent *selNode) ([]layout.Element, error) {
	out := make([]layout.Element, 0, len(list))
	for i, raw := range list {
		el, err := p.element(raw, fmt.Sprintf("%s[%d]", path, i), parent)
		if err != nil {
			return nil, err
		}
		out = append(out, el)
	}
	return out, nil
}

func (p *parser) element(data json.RawMessage, path string, parent *selNode) (layout.Element, error) {
	var e rawElement
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	typ, ok := elementTypes[strings.ToLower(strings.TrimSpace(e.Type))]
	if !ok {
		if e.Type == "" {
			return nil, fmt.Errorf("%w: %s.type", ErrMissingField, path)
		}
		return nil, fmt.Errorf("%w: %q at %s", ErrUnknownElementType, e.Type, path)
	}

	switch typ {
	case typeHeading:
		return p.heading(&e, path, parent)
	case typeParagraph:
		if !e.Text.set {
			return nil, fmt.Errorf("%w: %s.text", ErrMissingField, path)
		}
		n := newSelNode("p", e.ID, e.Class, parent)
		return layout.NewParagraph(p.resolve.Resolve(e.Text.value), p.styleFor(n, e.Style)), nil
	case typeTable:
		return p.table(&e, path, parent)
	case typeObjectTable:
		return p.objectTable(&e, path, parent)
	case typeAutoTable:
		return p.autoTable(&e, path, parent)
	case typeHorizontalContainer:
		return p.horizontal(&e, path, parent)
	case typeVerticalContainer:
		if e.Elements == nil {
			return nil, fmt.Errorf("%w: %s.elements", ErrMissingField, path)
		}
		n := newSelNode("v-container", e.ID, e.Class, parent)
		children, err := p.elements(e.Elements, path+".elements", n)
		if err != nil {
			return nil, err
		}
		return layout.NewVerticalContainer(p.styleFor(n, e.Style), children...), nil
	case typeImage:
		return p.image(&e, path, parent)
	}
	panic("unreachable")
}

func (p *parser) heading(e *rawElement, path string, parent *selNode) (layout.Element, error) {
	if e.Level == nil {
		return nil, fmt.Errorf("%w: %s.level", ErrMissingField, path)
	}
	if !e.Text.set {
		return nil, fmt.Errorf("%w: %s.text", ErrMissingField, path)
	}
	h := layout.NewHeading(*e.Level, p.resolve.Resolve(e.Text.value), nil)
	n := newSelNode(fmt.Sprintf("h%d", h.Level()), e.ID, e.Class, parent)
	if err := h.SetStyle(p.styleFor(n, e.Style)); err != nil {
		return nil, err
	}
	return h, nil
}

func (p *parser) horizontal(e *rawElement, path string, parent *selNode) (layout.Element, error) {
	if e.Elements == nil {
		return nil, fmt.Errorf("%w: %s.elements", ErrMissingField, path)
	}
	n := newSelNode("h-container", e.ID, e.Class, parent)
	children, err := p.elements(e.Elements, path+".elements", n)
	if err != nil {
		return nil, err
	}

	widths := make([]*layout.WidthSpec, len(e.Widths))
	for i, w := range e.Widths {
		v := strings.TrimSpace(w.value)
		if !w.set || v == "" || strings.EqualFold(v, "auto") {
			continue
		}
		spec, err := layout.ParseWidthSpec(v)
		if err != nil {
			return nil, fmt.Errorf("%s.widths[%d]: %w", path, i, err)
		}
		widths[i] = &spec
	}
	if len(widths) > len(children) {
		p.log.Warn("Container has more widths than elements", zap.String("path", path),
			zap.Int("widths", len(widths)), zap.Int("elements", len(children)))
	}
	return layout.NewHorizontalContainer(p.styleFor(n, e.Style), widths, children...), nil
}

func (p *parser) image(e *rawElement, path string, parent *selNode) (layout.Element, error) {
	if e.Src == "" {
		return nil, fmt.Errorf("%w: %s.src", ErrMissingField, path)
	}
	if p.opts.images == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoImageLoader, path)
	}
	if e.Width < 0 || e.Height < 0 {
		return nil, fmt.Errorf("%w: %s has a negative size", ErrInvalidField, path)
	}
	src := p.resolve.Resolve(e.Src)
	img, err := p.opts.images.LoadImage(p.ctx, src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	bmp := &layout.Bitmap{Name: img.Name, Type: img.Type, Data: img.Data, Width: img.Width, Height: img.Height}
	n := newSelNode("image", e.ID, e.Class, parent)
	return layout.NewImage(bmp, p.styleFor(n, e.Style), e.Width, e.Height), nil
}
