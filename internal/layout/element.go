// Package layout implements the element tree of a document: box model
// geometry, text wrapping, tables and containers, and splitting of elements
// across pages.
//
// Every element follows the same lifecycle. Init binds it to a rendering
// environment and its parent and computes its style; it runs exactly once.
// PreRender fixes the element position and available width and lays out
// its content. Render draws it on the surface. Coordinates are PDF page
// coordinates: origin at the bottom-left corner, y growing upward, and the
// y of an element is the top edge of its margin box.
package layout

import (
	"errors"

	"go.uber.org/zap"

	"github.com/gompdf/jsonpdf/internal/style"
)

var (
	// ErrAlreadyInitialized is returned by a second Init call.
	ErrAlreadyInitialized = errors.New("element is already initialized")
	// ErrNotInitialized is returned when PreRender or Render run before Init.
	ErrNotInitialized = errors.New("element is not initialized")
	// ErrNotPrepared is returned when Render runs before PreRender.
	ErrNotPrepared = errors.New("element is not pre-rendered")
	// ErrStyleLocked is returned by SetStyle once initialization started.
	ErrStyleLocked = errors.New("style cannot change after initialization")
	// ErrInvalidWidth is returned when an element gets no room for content.
	ErrInvalidWidth = errors.New("invalid element width")
	// ErrColumnMismatch is returned when a table row does not have the
	// column count of the first row.
	ErrColumnMismatch = errors.New("table row column count mismatch")
)

// Kind identifies a concrete element type.
type Kind int

const (
	KindParagraph Kind = iota
	KindHeading
	KindTableCell
	KindTable
	KindHorizontalContainer
	KindVerticalContainer
	KindImage
)

var kindNames = [...]string{
	KindParagraph:           "p",
	KindHeading:             "h",
	KindTableCell:           "td",
	KindTable:               "table",
	KindHorizontalContainer: "h-container",
	KindVerticalContainer:   "v-container",
	KindImage:               "image",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// kindDefaults are layered below the element's own style.
var kindDefaults = map[Kind]style.Style{
	KindHeading: {"font-weight": "bold", "padding": "4 0"},
}

// Placement is the flow position and available width offered by a parent.
type Placement struct {
	X        float64
	Y        float64
	MaxWidth float64
}

// Env carries what elements need from the document being rendered.
type Env struct {
	Surface Surface
	Fonts   style.FontResolver
	// Defaults is the document wide style. Its inheritable part seeds the
	// root of every element tree, the rest is layered under every element.
	Defaults  style.Style
	ShowBoxes bool
	Log       *zap.Logger

	root *style.Computed
}

func (e *Env) page() style.Page {
	w, h := e.Surface.PageSize()
	return style.Page{Width: w, Height: h}
}

func (e *Env) logger() *zap.Logger {
	if e.Log == nil {
		e.Log = zap.NewNop()
	}
	return e.Log
}

// rootStyle is the computed style top level elements inherit from.
func (e *Env) rootStyle() (*style.Computed, error) {
	if e.root != nil {
		return e.root, nil
	}
	c, err := style.Compute(e.Defaults.TextOnly(), e.page(), nil, e.Fonts)
	if err != nil {
		return nil, err
	}
	if c.FontSubstituted {
		e.logger().Warn("Font not found, using fallback", zap.String("family", c.FontFamily))
	}
	e.root = c
	return c, nil
}

// Element is a node of the document tree. The set of implementations is
// closed: Paragraph, Heading, TableCell, Table, HorizontalContainer,
// VerticalContainer and Image.
type Element interface {
	Kind() Kind
	Style() style.Style
	// SetStyle replaces the element style. It fails with ErrStyleLocked
	// once Init was called.
	SetStyle(s style.Style) error
	// Computed is nil before Init.
	Computed() *style.Computed

	Init(env *Env, parent Element) error
	PreRender(p Placement) error
	Render() error

	X() float64
	Y() float64
	Width() float64
	Height() float64
	ContentWidth() float64
	ContentHeight() float64
	// SetWidth and SetHeight force the outer size. The difference to the
	// natural size is kept as a delta on top of the content size.
	SetWidth(w float64)
	SetHeight(h float64)
	// Move shifts the element and all its descendants.
	Move(dx, dy float64)

	// Clone returns an uninitialized deep copy of the element definition.
	Clone() Element
	// Split cuts a pre-rendered element so that head fits in avail points
	// of height. Both fragments are uninitialized. A nil head means the
	// element cannot be split at that height.
	Split(avail float64) (head, tail Element, err error)

	box() *Box
}

// MapText rewrites the text of every text element of an uninitialized tree.
func MapText(el Element, fn func(string) string) {
	switch e := el.(type) {
	case *Paragraph:
		e.text = fn(e.text)
	case *Heading:
		e.text = fn(e.text)
	case *TableCell:
		e.text = fn(e.text)
	case *Table:
		for _, row := range e.rows {
			for _, cell := range row.cells {
				MapText(cell, fn)
			}
		}
	case *HorizontalContainer:
		for _, c := range e.items {
			MapText(c, fn)
		}
	case *VerticalContainer:
		for _, c := range e.items {
			MapText(c, fn)
		}
	}
}

// Walk calls fn for el and all its descendants, parents first.
func Walk(el Element, fn func(Element)) {
	fn(el)
	switch e := el.(type) {
	case *Table:
		for _, row := range e.rows {
			for _, cell := range row.cells {
				Walk(cell, fn)
			}
		}
	case *HorizontalContainer:
		for _, c := range e.items {
			Walk(c, fn)
		}
	case *VerticalContainer:
		for _, c := range e.items {
			Walk(c, fn)
		}
	}
}

// IsFixed reports an initialized element positioned against the page.
func IsFixed(el Element) bool {
	c := el.Computed()
	return c != nil && c.Position == style.PositionFixed
}
