package layout

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/gompdf/jsonpdf/internal/style"
)

// ErrInvalidWidthFormat is returned for malformed width specifications.
var ErrInvalidWidthFormat = errors.New("invalid width format")

// WidthSpec is a child width in a horizontal container: a percentage of the
// container content width plus a signed number of points.
type WidthSpec struct {
	Percent float64
	Points  float64
}

// Resolve returns the width for avail points of container content width.
func (w WidthSpec) Resolve(avail float64) float64 {
	return avail*w.Percent/100 + w.Points
}

func (w WidthSpec) String() string {
	switch {
	case w.Percent == 0:
		return strconv.FormatFloat(w.Points, 'f', -1, 64)
	case w.Points == 0:
		return strconv.FormatFloat(w.Percent, 'f', -1, 64) + "%"
	default:
		return fmt.Sprintf("%s%%%+g", strconv.FormatFloat(w.Percent, 'f', -1, 64), w.Points)
	}
}

var widthTerm = regexp.MustCompile(`^\s*([+-]?)\s*(\d+(?:\.\d+)?)(%?)\s*`)

// ParseWidthSpec parses "120", "50%", "100%-50", "50%+10" and "10+20%".
func ParseWidthSpec(s string) (WidthSpec, error) {
	var (
		spec                   WidthSpec
		rest                   = s
		seenPercent, seenPoint bool
	)
	for i := 0; strings.TrimSpace(rest) != ""; i++ {
		m := widthTerm.FindStringSubmatch(rest)
		if m == nil || i > 1 || (i == 0 && m[1] != "") || (i == 1 && m[1] == "") {
			return WidthSpec{}, fmt.Errorf("%w: %q", ErrInvalidWidthFormat, s)
		}
		n, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return WidthSpec{}, fmt.Errorf("%w: %q", ErrInvalidWidthFormat, s)
		}
		if m[1] == "-" {
			n = -n
		}
		if m[3] == "%" {
			if seenPercent {
				return WidthSpec{}, fmt.Errorf("%w: %q", ErrInvalidWidthFormat, s)
			}
			if n < 0 || n > 100 {
				return WidthSpec{}, fmt.Errorf("%w: %w: %q", ErrInvalidWidthFormat, style.ErrInvalidPercentage, s)
			}
			spec.Percent, seenPercent = n, true
		} else {
			if seenPoint {
				return WidthSpec{}, fmt.Errorf("%w: %q", ErrInvalidWidthFormat, s)
			}
			spec.Points, seenPoint = n, true
		}
		rest = rest[len(m[0]):]
	}
	if !seenPercent && !seenPoint {
		return WidthSpec{}, fmt.Errorf("%w: %q", ErrInvalidWidthFormat, s)
	}
	return spec, nil
}

// container owns an ordered list of children.
type container struct {
	Box
	items []Element
}

// Children returns the child elements.
func (c *container) Children() []Element { return c.items }

func (c *container) initContent() error    { return nil }
func (c *container) children() []Element   { return c.items }
func (c *container) cloneItems() []Element { return cloneAll(c.items) }

func (c *container) drawContent() error {
	for _, child := range c.items {
		if err := child.Render(); err != nil {
			return err
		}
	}
	return nil
}

func cloneAll(items []Element) []Element {
	out := make([]Element, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}

// VerticalContainer stacks children top to bottom, each getting the full
// content width. Fixed children take no vertical room.
type VerticalContainer struct {
	container
}

// NewVerticalContainer creates a vertical container.
func NewVerticalContainer(s style.Style, children ...Element) *VerticalContainer {
	v := &VerticalContainer{}
	v.setup(KindVerticalContainer, v, s)
	v.items = children
	return v
}

func (v *VerticalContainer) layoutContent(inner float64) error {
	ox, oy := v.startOrigin()
	v.laidX, v.laidY = ox, oy

	cursor, width := oy, 0.0
	for _, child := range v.items {
		if err := child.PreRender(Placement{X: ox, Y: cursor, MaxWidth: inner}); err != nil {
			return err
		}
		if IsFixed(child) {
			continue
		}
		cursor -= child.Height()
		width = max(width, child.Width())
	}
	v.contentW = width
	v.contentH = oy - cursor
	return nil
}

func (v *VerticalContainer) Clone() Element {
	return NewVerticalContainer(v.style, v.cloneItems()...)
}

// Split keeps as many children as fit in avail, cutting the first child
// that does not fit when it can be split itself.
func (v *VerticalContainer) Split(avail float64) (Element, Element, error) {
	if !v.prepared {
		return nil, nil, nil
	}
	budget := avail - v.vbox()

	used := 0.0
	for i, child := range v.items {
		if IsFixed(child) {
			continue
		}
		if used+child.Height() <= budget+epsilon {
			used += child.Height()
			continue
		}

		head, tail, err := child.Split(budget - used)
		if err != nil {
			return nil, nil, err
		}
		var before, after []Element
		switch {
		case head != nil:
			before = append(cloneAll(v.items[:i]), head)
			after = append([]Element{tail}, cloneAll(v.items[i+1:])...)
		case i > 0:
			before = cloneAll(v.items[:i])
			after = cloneAll(v.items[i:])
		default:
			return nil, nil, nil
		}
		return NewVerticalContainer(v.style, before...), NewVerticalContainer(v.style, after...), nil
	}
	return nil, nil, nil
}

// HorizontalContainer places children left to right. Each child gets the
// width of its spec; children without one share what is left evenly. All
// children are forced to the height of the tallest.
type HorizontalContainer struct {
	container
	widths []*WidthSpec
	alloc  []float64
}

// NewHorizontalContainer creates a horizontal container. widths may be
// shorter than children and may hold nil entries.
func NewHorizontalContainer(s style.Style, widths []*WidthSpec, children ...Element) *HorizontalContainer {
	h := &HorizontalContainer{widths: widths}
	h.setup(KindHorizontalContainer, h, s)
	h.items = children
	return h
}

// Allocations returns the width given to every child, available after
// PreRender.
func (h *HorizontalContainer) Allocations() []float64 { return h.alloc }

func (h *HorizontalContainer) allocate(inner float64) []float64 {
	out := make([]float64, len(h.items))
	shared, used := 0, 0.0
	for i := range h.items {
		if i < len(h.widths) && h.widths[i] != nil {
			out[i] = h.widths[i].Resolve(inner)
			used += out[i]
		} else {
			shared++
		}
	}
	if shared > 0 {
		each := max(inner-used, 0) / float64(shared)
		for i := range h.items {
			if i >= len(h.widths) || h.widths[i] == nil {
				out[i] = each
			}
		}
	}
	return out
}

func (h *HorizontalContainer) layoutContent(inner float64) error {
	ox, oy := h.startOrigin()
	h.laidX, h.laidY = ox, oy
	h.alloc = h.allocate(inner)

	x, tallest := ox, 0.0
	for i, child := range h.items {
		if err := child.PreRender(Placement{X: x, Y: oy, MaxWidth: h.alloc[i]}); err != nil {
			return fmt.Errorf("child %d of %s wide: %w", i+1, strconv.FormatFloat(h.alloc[i], 'f', 2, 64), err)
		}
		if !IsFixed(child) {
			tallest = max(tallest, child.Height())
		}
		x += h.alloc[i]
	}
	for _, child := range h.items {
		if !IsFixed(child) {
			child.SetHeight(tallest)
		}
	}
	h.contentW = x - ox
	h.contentH = tallest
	return nil
}

func (h *HorizontalContainer) Clone() Element {
	return NewHorizontalContainer(h.style, h.widths, h.cloneItems()...)
}

// Split never cuts a horizontal container.
func (h *HorizontalContainer) Split(float64) (Element, Element, error) {
	return nil, nil, nil
}
