package layout

import (
	"github.com/gompdf/jsonpdf/internal/fonts"
	"github.com/gompdf/jsonpdf/internal/style"
	"github.com/gompdf/jsonpdf/internal/text"
)

// lineSpacing is added to ascent plus descent to get the line height.
const lineSpacing = 2

// headingFactors scale the font size of heading levels 1 to 6.
var headingFactors = [6]float64{2, 1.5, 1.17, 1, 0.83, 0.75}

// textBlock is the wrapped text content shared by paragraphs, headings and
// table cells.
type textBlock struct {
	Box
	text       string
	lines      []text.Line
	lineHeight float64
}

// Text returns the source text.
func (t *textBlock) Text() string { return t.text }

// Lines returns the wrapped lines, available after PreRender.
func (t *textBlock) Lines() []text.Line { return t.lines }

// LineHeight returns the height of one line, available after PreRender.
func (t *textBlock) LineHeight() float64 { return t.lineHeight }

func (t *textBlock) initContent() error {
	return t.env.Surface.EmbedFont(t.computed.Face)
}

func (t *textBlock) children() []Element { return nil }

func (t *textBlock) layoutContent(inner float64) error {
	return t.withFallback(func(face *fonts.Face) error {
		size := t.computed.FontSize
		lines, err := text.Wrap(t.text, inner, func(s string) (float64, error) {
			return t.env.Surface.Measure(face, size, s)
		})
		if err != nil {
			return err
		}
		ascent, descent := face.Metrics(size)
		t.lines = lines
		t.lineHeight = ascent + descent + lineSpacing
		t.contentH = float64(len(lines)) * t.lineHeight
		t.contentW = 0
		for _, l := range lines {
			t.contentW = max(t.contentW, l.Width)
		}
		return nil
	})
}

func (t *textBlock) drawContent() error {
	return t.withFallback(func(face *fonts.Face) error {
		for _, l := range t.lines {
			if err := face.CanEncode(l.Text); err != nil {
				return err
			}
		}

		c := t.computed
		_, top := t.contentOrigin()
		left := t.x + c.Margin.Left + c.Border.Left + c.Padding.Left
		inner := t.Width() - t.hbox()
		ascent, _ := face.Metrics(c.FontSize)

		for i, l := range t.lines {
			if l.Text == "" {
				continue
			}
			align := c.HAlign
			if t.rtl(l.Text) {
				align = flip(align)
			}
			x := left + alignOffset(align, 0, inner, l.Width)
			baseline := top - float64(i)*t.lineHeight - ascent - 1
			if err := t.env.Surface.Text(face, c.FontSize, x, baseline, l.Text, c.Color); err != nil {
				return err
			}
		}
		return nil
	})
}

func (t *textBlock) rtl(line string) bool {
	switch t.computed.Direction {
	case style.DirectionRTL:
		return true
	case style.DirectionAuto:
		return text.IsRTL(line)
	}
	return false
}

func flip(a style.Align) style.Align {
	switch a {
	case style.AlignStart:
		return style.AlignEnd
	case style.AlignEnd:
		return style.AlignStart
	}
	return a
}

// splitLines divides the wrapped lines so the first part fits in avail.
func (t *textBlock) splitLines(avail float64) (head, tail string, ok bool) {
	if !t.prepared || t.lineHeight <= 0 {
		return "", "", false
	}
	n := int((avail - t.vbox() + epsilon) / t.lineHeight)
	if n <= 0 || n >= len(t.lines) {
		return "", "", false
	}
	return text.Join(t.lines[:n]), text.Join(t.lines[n:]), true
}

// Paragraph is a block of wrapped text.
type Paragraph struct {
	textBlock
}

// NewParagraph creates a paragraph.
func NewParagraph(text string, s style.Style) *Paragraph {
	p := &Paragraph{}
	p.setup(KindParagraph, p, s)
	p.text = text
	return p
}

func (p *Paragraph) Clone() Element {
	return NewParagraph(p.text, p.style)
}

// Split cuts the paragraph between lines.
func (p *Paragraph) Split(avail float64) (Element, Element, error) {
	head, tail, ok := p.splitLines(avail)
	if !ok {
		return nil, nil, nil
	}
	return NewParagraph(head, p.style), NewParagraph(tail, p.style), nil
}

// Heading is a bold paragraph whose font size is scaled by its level.
type Heading struct {
	textBlock
	level int
}

// NewHeading creates a heading. Levels outside 1..6 are clamped.
func NewHeading(level int, text string, s style.Style) *Heading {
	h := &Heading{level: min(max(level, 1), 6)}
	h.setup(KindHeading, h, s)
	h.text = text
	return h
}

// Level returns the heading level.
func (h *Heading) Level() int { return h.level }

func (h *Heading) initContent() error {
	if _, explicit := h.style.Expand()["font-size"]; !explicit {
		c := *h.computed
		c.FontSize *= headingFactors[h.level-1]
		h.computed = &c
	}
	return h.textBlock.initContent()
}

func (h *Heading) Clone() Element {
	return NewHeading(h.level, h.text, h.style)
}

// Split cuts the heading between lines.
func (h *Heading) Split(avail float64) (Element, Element, error) {
	head, tail, ok := h.splitLines(avail)
	if !ok {
		return nil, nil, nil
	}
	return NewHeading(h.level, head, h.style), NewHeading(h.level, tail, h.style), nil
}

// TableCell is a text element placed in a table row. Its height is forced
// to the row height by the table.
type TableCell struct {
	textBlock
}

// NewTableCell creates a cell.
func NewTableCell(text string, s style.Style) *TableCell {
	c := &TableCell{}
	c.setup(KindTableCell, c, s)
	c.text = text
	return c
}

func (c *TableCell) Clone() Element {
	return NewTableCell(c.text, c.style)
}

// Split never cuts a cell; tables split between rows.
func (c *TableCell) Split(float64) (Element, Element, error) {
	return nil, nil, nil
}
