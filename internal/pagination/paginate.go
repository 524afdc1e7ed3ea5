// Package pagination distributes laid out elements over pages, splitting
// the ones that cross the bottom margin.
package pagination

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/gompdf/jsonpdf/internal/layout"
)

// ErrNoRoom is returned when the margins leave no room for content.
var ErrNoRoom = errors.New("page margins leave no room for content")

// epsilon absorbs floating point noise when comparing heights.
const epsilon = 1e-6

// Page represents a single page in the document
type Page struct {
	Number int
	Width  float64
	Height float64
	// Elements are the body elements placed on the page.
	Elements []layout.Element
	// Template holds the page's own copy of the running template.
	Template []layout.Element

	flow int
}

// PageSize represents standard page sizes
type PageSize struct {
	Width  float64
	Height float64
	Name   string
}

// Standard page sizes in points (1/72 inch)
var (
	PageSizeA4     = PageSize{Width: 595.28, Height: 841.89, Name: "A4"}
	PageSizeLetter = PageSize{Width: 612.00, Height: 792.00, Name: "Letter"}
	PageSizeLegal  = PageSize{Width: 612.00, Height: 1008.00, Name: "Legal"}
	PageSizeA3     = PageSize{Width: 841.89, Height: 1190.55, Name: "A3"}
	PageSizeA5     = PageSize{Width: 419.53, Height: 595.28, Name: "A5"}
)

// LookupPageSize finds a standard page size by name, ignoring case.
func LookupPageSize(name string) (PageSize, bool) {
	for _, s := range []PageSize{PageSizeA4, PageSizeLetter, PageSizeLegal, PageSizeA3, PageSizeA5} {
		if strings.EqualFold(s.Name, strings.TrimSpace(name)) {
			return s, true
		}
	}
	return PageSize{}, false
}

// Landscape returns the size with the long side horizontal.
func (s PageSize) Landscape() PageSize {
	if s.Width < s.Height {
		s.Width, s.Height = s.Height, s.Width
	}
	return s
}

// Portrait returns the size with the long side vertical.
func (s PageSize) Portrait() PageSize {
	if s.Width > s.Height {
		s.Width, s.Height = s.Height, s.Width
	}
	return s
}

// Margins represents page margins
type Margins struct {
	Top    float64
	Right  float64
	Bottom float64
	Left   float64
}

// Paginator handles breaking content into pages
type Paginator struct {
	PageSize PageSize
	Margins  Margins
	Env      *layout.Env
	Log      *zap.Logger
}

// NewPaginator creates a new paginator
func NewPaginator(pageSize PageSize, margins Margins, env *layout.Env) *Paginator {
	log := env.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Paginator{
		PageSize: pageSize,
		Margins:  margins,
		Env:      env,
		Log:      log.Named("pagination"),
	}
}

func (p *Paginator) contentWidth() float64 {
	return p.PageSize.Width - p.Margins.Left - p.Margins.Right
}

func (p *Paginator) newPage(number int) *Page {
	return &Page{Number: number, Width: p.PageSize.Width, Height: p.PageSize.Height}
}

// Paginate initializes the top level elements and places them top down from
// the top margin. An element crossing the bottom margin is split; when it
// cannot be split it moves to the next page, or overflows when it is alone
// on its page. Fixed elements stay on the page they are reached on and take
// no room.
func (p *Paginator) Paginate(elements []layout.Element) ([]*Page, error) {
	top := p.PageSize.Height - p.Margins.Top
	bottom := p.Margins.Bottom
	width := p.contentWidth()
	if width <= 0 || top <= bottom {
		return nil, fmt.Errorf("%w: page %.2fx%.2f, margins %+v", ErrNoRoom, p.PageSize.Width, p.PageSize.Height, p.Margins)
	}

	page := p.newPage(1)
	pages := []*Page{page}
	cursor := top
	breakPage := func() {
		page = p.newPage(len(pages) + 1)
		pages = append(pages, page)
		cursor = top
	}
	place := func(el layout.Element) {
		page.Elements = append(page.Elements, el)
		page.flow++
		cursor -= el.Height()
	}

	queue := append([]layout.Element(nil), elements...)
	for len(queue) > 0 {
		el := queue[0]
		queue = queue[1:]

		if err := p.prepare(el, cursor, width); err != nil {
			return nil, err
		}
		if layout.IsFixed(el) {
			page.Elements = append(page.Elements, el)
			continue
		}

		remaining := cursor - bottom
		if el.Height() <= remaining+epsilon {
			place(el)
			continue
		}

		head, tail, err := el.Split(remaining)
		if err != nil {
			return nil, fmt.Errorf("unable to split %s on page %d: %w", el.Kind(), page.Number, err)
		}
		switch {
		case head != nil:
			if err := p.prepare(head, cursor, width); err != nil {
				return nil, err
			}
			place(head)
			queue = append([]layout.Element{tail}, queue...)
			p.Log.Debug("Element split across pages",
				zap.Stringer("element", el.Kind()), zap.Int("page", page.Number), zap.Float64("available", remaining))
			breakPage()
		case page.flow == 0:
			p.Log.Warn("Element does not fit on an empty page and overflows",
				zap.Stringer("element", el.Kind()), zap.Int("page", page.Number),
				zap.Float64("height", el.Height()), zap.Float64("available", remaining))
			place(el)
		default:
			breakPage()
			queue = append([]layout.Element{el}, queue...)
		}
	}
	return pages, nil
}

// prepare initializes el on first sight and lays it out at cursor.
func (p *Paginator) prepare(el layout.Element, cursor, width float64) error {
	if el.Computed() == nil {
		if err := el.Init(p.Env, nil); err != nil {
			return err
		}
	}
	return el.PreRender(layout.Placement{X: p.Margins.Left, Y: cursor, MaxWidth: width})
}
