package layout

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/gompdf/jsonpdf/internal/fonts"
	"github.com/gompdf/jsonpdf/internal/style"
)

// epsilon absorbs floating point noise when comparing heights.
const epsilon = 1e-6

// hooks are the kind specific parts of the element lifecycle.
type hooks interface {
	// initContent runs once the computed style is known.
	initContent() error
	// layoutContent lays content out within inner points of width and sets
	// the content size.
	layoutContent(inner float64) error
	drawContent() error
	// children lists owned elements, nil for leaves.
	children() []Element
}

type node interface {
	Element
	hooks
}

// Box holds the geometry and lifecycle state shared by all elements.
type Box struct {
	self  node
	kind  Kind
	style style.Style

	env      *Env
	parent   Element
	computed *style.Computed
	log      *zap.Logger

	initialized bool
	prepared    bool
	placement   Placement

	// x and y are the top-left corner of the margin box.
	x, y float64
	// contentW and contentH are the natural content size.
	contentW, contentH float64
	// dw and dh are the size overrides set by parents.
	dw, dh float64
	// laidX and laidY are the content origin children were placed at.
	laidX, laidY float64
}

func (b *Box) setup(kind Kind, self node, s style.Style) {
	b.kind = kind
	b.self = self
	b.style = s.Clone()
	if b.style == nil {
		b.style = style.Style{}
	}
}

func (b *Box) box() *Box { return b }

// Kind returns the element kind.
func (b *Box) Kind() Kind { return b.kind }

// Style returns the element's own style.
func (b *Box) Style() style.Style { return b.style }

// SetStyle replaces the element's own style before Init.
func (b *Box) SetStyle(s style.Style) error {
	if b.initialized {
		return fmt.Errorf("%w: %s", ErrStyleLocked, b.kind)
	}
	b.style = s.Clone()
	return nil
}

// Computed returns the computed style, nil before Init.
func (b *Box) Computed() *style.Computed { return b.computed }

func (b *Box) X() float64             { return b.x }
func (b *Box) Y() float64             { return b.y }
func (b *Box) ContentWidth() float64  { return b.contentW }
func (b *Box) ContentHeight() float64 { return b.contentH }

// Width returns the outer width.
func (b *Box) Width() float64 {
	return b.naturalWidth() + b.dw
}

// Height returns the outer height.
func (b *Box) Height() float64 {
	return b.contentH + b.vbox() + b.dh
}

func (b *Box) naturalWidth() float64 {
	fit := b.contentW + b.hbox()
	if b.computed != nil && b.computed.Width == style.WidthFitContent {
		return fit
	}
	return max(b.placement.MaxWidth, fit)
}

// hbox is the horizontal space taken by margin, border and padding.
func (b *Box) hbox() float64 {
	if b.computed == nil {
		return 0
	}
	c := b.computed
	return c.Margin.Horizontal() + c.Border.Horizontal() + c.Padding.Horizontal()
}

// vbox is the vertical space taken by margin, border and padding.
func (b *Box) vbox() float64 {
	if b.computed == nil {
		return 0
	}
	c := b.computed
	return c.Margin.Vertical() + c.Border.Vertical() + c.Padding.Vertical()
}

func (b *Box) logger() *zap.Logger {
	if b.log == nil {
		return zap.NewNop()
	}
	return b.log
}

// Init computes the style of the element against its parent and
// initializes its children.
func (b *Box) Init(env *Env, parent Element) error {
	if b.initialized {
		return fmt.Errorf("%w: %s", ErrAlreadyInitialized, b.kind)
	}
	b.initialized = true
	b.env, b.parent = env, parent
	b.log = env.logger().With(zap.Stringer("element", b.kind))

	inherited, err := b.inherited()
	if err != nil {
		return err
	}
	raw := style.Layer(env.Defaults.BoxOnly(), kindDefaults[b.kind], b.style)
	c, err := style.Compute(raw, env.page(), inherited, env.Fonts)
	if err != nil {
		return fmt.Errorf("%s: %w", b.kind, err)
	}
	if c.FontSubstituted && (inherited == nil || inherited.FontFamily != c.FontFamily) {
		b.log.Warn("Font not found, using fallback", zap.String("family", c.FontFamily))
	}
	b.computed = c

	if err := b.self.initContent(); err != nil {
		return err
	}
	for _, child := range b.self.children() {
		if err := child.Init(env, b.self); err != nil {
			return err
		}
	}
	return nil
}

func (b *Box) inherited() (*style.Computed, error) {
	if b.parent != nil && b.parent.Computed() != nil {
		return b.parent.Computed(), nil
	}
	return b.env.rootStyle()
}

// PreRender fixes position and available width and lays out the content.
// Calling it again with the same placement does nothing.
func (b *Box) PreRender(p Placement) error {
	if !b.initialized {
		return fmt.Errorf("%w: %s", ErrNotInitialized, b.kind)
	}
	if b.prepared && p == b.placement {
		return nil
	}
	inner := p.MaxWidth - b.hbox()
	if inner <= 0 {
		return fmt.Errorf("%w: %s has %.2f points for content out of %.2f", ErrInvalidWidth, b.kind, inner, p.MaxWidth)
	}

	b.placement = p
	b.prepared = false
	b.dw, b.dh = 0, 0
	b.relocate()
	if err := b.self.layoutContent(inner); err != nil {
		return err
	}
	b.prepared = true
	b.relocate()
	return nil
}

// Render draws background, debug boxes, content and border in that order.
func (b *Box) Render() error {
	if !b.initialized {
		return fmt.Errorf("%w: %s", ErrNotInitialized, b.kind)
	}
	if !b.prepared {
		return fmt.Errorf("%w: %s", ErrNotPrepared, b.kind)
	}
	b.drawBackground()
	if b.env.ShowBoxes {
		b.drawDebugBoxes()
	}
	if err := b.self.drawContent(); err != nil {
		return fmt.Errorf("%s: %w", b.kind, err)
	}
	b.drawBorder()
	return nil
}

// SetHeight forces the outer height. Going below the natural height is
// allowed but logged; the content height is never cut.
func (b *Box) SetHeight(h float64) {
	natural := b.contentH + b.vbox()
	d := h - natural
	if d < -epsilon {
		b.logger().Warn("Element height set below its natural height",
			zap.Float64("height", h), zap.Float64("natural", natural))
		d = max(d, -b.vbox())
	}
	b.dh = d
	b.relocate()
}

// SetWidth forces the outer width. The content width is never cut.
func (b *Box) SetWidth(w float64) {
	natural := b.naturalWidth()
	d := w - natural
	if d < -epsilon {
		b.logger().Warn("Element width set below its natural width",
			zap.Float64("width", w), zap.Float64("natural", natural))
		d = max(d, b.contentW-natural)
	}
	b.dw = d
	b.relocate()
}

// Move shifts the element and its descendants.
func (b *Box) Move(dx, dy float64) {
	b.placement.X += dx
	b.placement.Y += dy
	b.relocate()
}

// relocate derives the element position from its flow placement and
// position mode, then moves children along with the content origin.
func (b *Box) relocate() {
	if b.computed == nil {
		return
	}
	x, y := b.placement.X, b.placement.Y
	o := b.computed.Offsets
	switch b.computed.Position {
	case style.PositionRelative:
		if o.Left != nil {
			x += *o.Left
		} else if o.Right != nil {
			x -= *o.Right
		}
		if o.Top != nil {
			y -= *o.Top
		} else if o.Bottom != nil {
			y += *o.Bottom
		}
	case style.PositionFixed:
		pageW, pageH := b.env.Surface.PageSize()
		if o.Left != nil {
			x = *o.Left
		} else if o.Right != nil {
			x = pageW - *o.Right - b.Width()
		}
		if o.Top != nil {
			y = pageH - *o.Top
		} else if o.Bottom != nil {
			y = *o.Bottom + b.Height()
		}
	}
	b.x, b.y = x, y
	if b.prepared {
		b.sync()
	}
}

// sync moves children so they follow the current content origin.
func (b *Box) sync() {
	kids := b.self.children()
	if len(kids) == 0 {
		return
	}
	nx, ny := b.contentOrigin()
	dx, dy := nx-b.laidX, ny-b.laidY
	if dx == 0 && dy == 0 {
		return
	}
	for _, child := range kids {
		child.Move(dx, dy)
	}
	b.laidX, b.laidY = nx, ny
}

// startOrigin is the content origin with start alignment on both axes.
func (b *Box) startOrigin() (x, y float64) {
	c := b.computed
	return b.x + c.Margin.Left + c.Border.Left + c.Padding.Left,
		b.y - c.Margin.Top - c.Border.Top - c.Padding.Top
}

// contentOrigin is the top-left corner of the content box after alignment.
func (b *Box) contentOrigin() (x, y float64) {
	c := b.computed
	innerW := b.Width() - b.hbox()
	innerH := b.Height() - b.vbox()
	x = b.x + alignOffset(c.HAlign, c.Margin.Left+c.Border.Left+c.Padding.Left, innerW, b.contentW)
	y = b.y - alignOffset(c.VAlign, c.Margin.Top+c.Border.Top+c.Padding.Top, innerH, b.contentH)
	return x, y
}

// alignOffset returns the distance from the outer edge to the content for
// an inner box of size inner whose content starts after start points.
func alignOffset(a style.Align, start, inner, content float64) float64 {
	switch a {
	case style.AlignEnd:
		return start + inner - content
	case style.AlignCenter:
		return max(start, start+(inner-content)/2)
	default:
		return start
	}
}

// borderBox returns the rectangle inside the margins.
func (b *Box) borderBox() (x, y, w, h float64) {
	c := b.computed
	return b.x + c.Margin.Left, b.y - c.Margin.Top,
		b.Width() - c.Margin.Horizontal(), b.Height() - c.Margin.Vertical()
}

func (b *Box) drawBackground() {
	c := b.computed
	if !c.HasBackground || c.Background.IsWhite() {
		return
	}
	x, y, w, h := b.borderBox()
	b.env.Surface.FillRect(x, y, w, h, c.Background)
}

var (
	debugMargin  = style.RGB{R: 0.95, G: 0.6, B: 0.2}
	debugBorder  = style.RGB{R: 0.9, G: 0.1, B: 0.1}
	debugPadding = style.RGB{R: 0.2, G: 0.7, B: 0.3}
	debugContent = style.RGB{R: 0.2, G: 0.4, B: 1}
)

// drawDebugBoxes outlines the margin, border, padding and content boxes.
func (b *Box) drawDebugBoxes() {
	const line = 0.3
	c := b.computed
	s := b.env.Surface

	s.StrokeRect(b.x, b.y, b.Width(), b.Height(), line, debugMargin)
	x, y, w, h := b.borderBox()
	s.StrokeRect(x, y, w, h, line, debugBorder)
	x, y = x+c.Border.Left, y-c.Border.Top
	w, h = w-c.Border.Horizontal(), h-c.Border.Vertical()
	s.StrokeRect(x, y, w, h, line, debugPadding)
	cx, cy := b.contentOrigin()
	s.StrokeRect(cx, cy, b.contentW, b.contentH, line, debugContent)
}

// drawBorder paints every side as a filled strip inside the border box.
func (b *Box) drawBorder() {
	c := b.computed
	if c.Border == (style.Sides{}) {
		return
	}
	s := b.env.Surface
	x, y, w, h := b.borderBox()
	if c.Border.Top > 0 {
		s.FillRect(x, y, w, c.Border.Top, c.BorderColor)
	}
	if c.Border.Bottom > 0 {
		s.FillRect(x, y-h+c.Border.Bottom, w, c.Border.Bottom, c.BorderColor)
	}
	if c.Border.Left > 0 {
		s.FillRect(x, y, c.Border.Left, h, c.BorderColor)
	}
	if c.Border.Right > 0 {
		s.FillRect(x+w-c.Border.Right, y, c.Border.Right, h, c.BorderColor)
	}
}

// withFallback runs fn with the element face. When the face cannot encode
// the text, the element switches to the fallback face and fn runs once more;
// a second failure is returned.
func (b *Box) withFallback(fn func(face *fonts.Face) error) error {
	err := fn(b.computed.Face)
	if err == nil || !errors.Is(err, fonts.ErrEncoding) {
		return err
	}
	fallback := b.env.Fonts.Fallback(b.computed.Bold)
	if fallback == b.computed.Face {
		return err
	}
	b.logger().Warn("Font cannot encode text, switching to fallback",
		zap.String("family", b.computed.Face.Family), zap.Error(err))
	if err := b.env.Surface.EmbedFont(fallback); err != nil {
		return err
	}
	c := *b.computed
	c.Face = fallback
	c.FontSubstituted = true
	b.computed = &c
	return fn(fallback)
}
