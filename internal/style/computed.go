package style

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gompdf/jsonpdf/internal/fonts"
)

var (
	// ErrConflictingOffsets is returned when a positioned element sets both
	// offsets of the same axis.
	ErrConflictingOffsets = errors.New("conflicting position offsets")
	// ErrInvalidPercentage is returned for percentages outside 0..100.
	ErrInvalidPercentage = errors.New("invalid percentage")
	// ErrInvalidValue is returned for values that cannot be parsed.
	ErrInvalidValue = errors.New("invalid style value")
)

// Defaults used when neither the element nor its ancestors set a property.
const (
	DefaultFontFamily = "Helvetica"
	DefaultFontSize   = 12.0
)

// Align is a content alignment along one axis.
type Align int

const (
	AlignStart Align = iota
	AlignCenter
	AlignEnd
)

// Position is the positioning mode of an element.
type Position int

const (
	PositionStatic Position = iota
	PositionRelative
	PositionFixed
)

// WidthMode tells how an element uses the width offered by its parent.
type WidthMode int

const (
	WidthAuto WidthMode = iota
	WidthFitContent
	WidthMax
)

// Direction is the inline text direction.
type Direction int

const (
	DirectionLTR Direction = iota
	DirectionRTL
	DirectionAuto
)

// RGB is a color with components in 0..1.
type RGB struct {
	R, G, B float64
}

var (
	Black = RGB{}
	White = RGB{1, 1, 1}
)

// IsWhite reports pure white.
func (c RGB) IsWhite() bool {
	return c == White
}

// Bytes returns the color as 0..255 components.
func (c RGB) Bytes() (r, g, b int) {
	return int(c.R*255 + 0.5), int(c.G*255 + 0.5), int(c.B*255 + 0.5)
}

// Sides holds one value per box side.
type Sides struct {
	Top, Right, Bottom, Left float64
}

// Horizontal returns Left+Right.
func (s Sides) Horizontal() float64 { return s.Left + s.Right }

// Vertical returns Top+Bottom.
func (s Sides) Vertical() float64 { return s.Top + s.Bottom }

// Offsets holds position offsets; nil means unset.
type Offsets struct {
	Top, Right, Bottom, Left *float64
}

// Page carries page dimensions percentages resolve against.
type Page struct {
	Width  float64
	Height float64
}

// FontResolver finds font faces for computed styles.
type FontResolver interface {
	Lookup(family string, bold bool) (*fonts.Face, error)
	Fallback(bold bool) *fonts.Face
}

// Computed is the fully resolved form of a Style.
type Computed struct {
	FontFamily string
	FontSize   float64
	Bold       bool
	Face       *fonts.Face
	// FontSubstituted is set when the requested family was not available
	// and the fallback face was selected instead.
	FontSubstituted bool

	Color         RGB
	Background    RGB
	HasBackground bool
	BorderColor   RGB

	Margin  Sides
	Padding Sides
	Border  Sides

	HAlign    Align
	VAlign    Align
	Direction Direction

	Position Position
	Offsets  Offsets
	Width    WidthMode

	// ColumnWidth is a relative column weight set on table cells, 0 if unset.
	ColumnWidth float64
}

// Compute resolves raw against the inherited computed style of the parent.
// raw must already hold every layer that applies to the element; only
// inheritable properties are taken from inherited. Compute is pure.
func Compute(raw Style, page Page, inherited *Computed, resolver FontResolver) (*Computed, error) {
	s := raw.Expand()
	c := &Computed{
		FontFamily:  DefaultFontFamily,
		FontSize:    DefaultFontSize,
		Color:       Black,
		BorderColor: Black,
	}
	if inherited != nil {
		c.FontFamily = inherited.FontFamily
		c.FontSize = inherited.FontSize
		c.Bold = inherited.Bold
		c.Color = inherited.Color
		c.HAlign = inherited.HAlign
		c.VAlign = inherited.VAlign
		c.Direction = inherited.Direction
	}

	var err error
	if v, ok := s["font-family"]; ok && strings.TrimSpace(v) != "" {
		c.FontFamily = strings.TrimSpace(v)
	}
	if v, ok := s["font-size"]; ok {
		if c.FontSize, err = parseLength(v, page); err != nil {
			return nil, fmt.Errorf("font-size: %w", err)
		}
		if c.FontSize <= 0 {
			return nil, fmt.Errorf("font-size: %w: %q", ErrInvalidValue, v)
		}
	}
	if v, ok := s["font-weight"]; ok {
		if c.Bold, err = parseWeight(v); err != nil {
			return nil, err
		}
	}
	if v, ok := s["color"]; ok {
		if c.Color, err = ParseColor(v); err != nil {
			return nil, fmt.Errorf("color: %w", err)
		}
	}
	if v, ok := s["background-color"]; ok && !isNone(v) {
		if c.Background, err = ParseColor(v); err != nil {
			return nil, fmt.Errorf("background-color: %w", err)
		}
		c.HasBackground = true
	}
	if v, ok := s["border-color"]; ok {
		if c.BorderColor, err = ParseColor(v); err != nil {
			return nil, fmt.Errorf("border-color: %w", err)
		}
	}

	if c.Margin, err = sidesOf(s, "margin-%s", page); err != nil {
		return nil, err
	}
	if c.Padding, err = sidesOf(s, "padding-%s", page); err != nil {
		return nil, err
	}
	if c.Border, err = sidesOf(s, "border-%s-width", page); err != nil {
		return nil, err
	}

	if v, ok := s["align-horizontal"]; ok {
		if c.HAlign, err = parseAlign(v); err != nil {
			return nil, err
		}
	}
	if v, ok := s["align-vertical"]; ok {
		if c.VAlign, err = parseAlign(v); err != nil {
			return nil, err
		}
	}
	if v, ok := s["direction"]; ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "ltr":
			c.Direction = DirectionLTR
		case "rtl":
			c.Direction = DirectionRTL
		case "auto":
			c.Direction = DirectionAuto
		default:
			return nil, fmt.Errorf("direction: %w: %q", ErrInvalidValue, v)
		}
	}
	if v, ok := s["width"]; ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "auto", "":
			c.Width = WidthAuto
		case "fit-content":
			c.Width = WidthFitContent
		case "max-width", "max":
			c.Width = WidthMax
		default:
			return nil, fmt.Errorf("width: %w: %q", ErrInvalidValue, v)
		}
	}
	if v, ok := s["column-width"]; ok {
		if c.ColumnWidth, err = strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil || c.ColumnWidth < 0 {
			return nil, fmt.Errorf("column-width: %w: %q", ErrInvalidValue, v)
		}
	}

	if err = c.resolvePosition(s, page); err != nil {
		return nil, err
	}

	if c.Face, err = resolver.Lookup(c.FontFamily, c.Bold); err != nil {
		if !errors.Is(err, fonts.ErrFontNotFound) {
			return nil, err
		}
		c.Face = resolver.Fallback(c.Bold)
		c.FontSubstituted = true
	}
	return c, nil
}

func (c *Computed) resolvePosition(s Style, page Page) error {
	if v, ok := s["position"]; ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "static", "":
			c.Position = PositionStatic
		case "relative":
			c.Position = PositionRelative
		case "fixed", "absolute":
			c.Position = PositionFixed
		default:
			return fmt.Errorf("position: %w: %q", ErrInvalidValue, v)
		}
	}
	if c.Position == PositionStatic {
		return nil
	}

	targets := map[string]**float64{
		"top":    &c.Offsets.Top,
		"right":  &c.Offsets.Right,
		"bottom": &c.Offsets.Bottom,
		"left":   &c.Offsets.Left,
	}
	for _, side := range sides {
		v, ok := s[side]
		if !ok || strings.TrimSpace(v) == "" || strings.TrimSpace(v) == "auto" {
			continue
		}
		n, err := parseLength(v, page)
		if err != nil {
			return fmt.Errorf("%s: %w", side, err)
		}
		*targets[side] = &n
	}
	if c.Offsets.Top != nil && c.Offsets.Bottom != nil {
		return fmt.Errorf("%w: both top and bottom are set", ErrConflictingOffsets)
	}
	if c.Offsets.Left != nil && c.Offsets.Right != nil {
		return fmt.Errorf("%w: both left and right are set", ErrConflictingOffsets)
	}
	return nil
}

func sidesOf(s Style, pattern string, page Page) (Sides, error) {
	var out Sides
	targets := [4]*float64{&out.Top, &out.Right, &out.Bottom, &out.Left}
	for i, side := range sides {
		key := fmt.Sprintf(pattern, side)
		v, ok := s[key]
		if !ok {
			continue
		}
		n, err := parseLength(v, page)
		if err != nil {
			return Sides{}, fmt.Errorf("%s: %w", key, err)
		}
		*targets[i] = n
	}
	return out, nil
}

// parseLength parses a length in points. Percentages are relative to the
// page width.
func parseLength(value string, page Page) (float64, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" || v == "auto" || v == "none" {
		return 0, nil
	}
	if strings.HasSuffix(v, "%") {
		n, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(v, "%")), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidValue, value)
		}
		if n < 0 || n > 100 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidPercentage, value)
		}
		return page.Width * n / 100, nil
	}
	v = strings.TrimSuffix(strings.TrimSuffix(v, "px"), "pt")
	n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidValue, value)
	}
	return n, nil
}

func parseWeight(value string) (bool, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	switch v {
	case "bold", "bolder":
		return true, nil
	case "normal", "lighter", "":
		return false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return false, fmt.Errorf("font-weight: %w: %q", ErrInvalidValue, value)
	}
	return n >= 600, nil
}

func parseAlign(value string) (Align, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "start", "left", "top", "":
		return AlignStart, nil
	case "center", "middle":
		return AlignCenter, nil
	case "end", "right", "bottom":
		return AlignEnd, nil
	}
	return AlignStart, fmt.Errorf("alignment: %w: %q", ErrInvalidValue, value)
}

func isNone(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	return v == "" || v == "none" || v == "transparent"
}

// ParseColor parses #RRGGBB, #RGB and rgb(r,g,b) colors.
func ParseColor(value string) (RGB, error) {
	v := strings.TrimSpace(value)
	if strings.HasPrefix(v, "#") {
		if r, g, b, ok := parseHexColor(v); ok {
			return RGB{float64(r) / 255, float64(g) / 255, float64(b) / 255}, nil
		}
		return RGB{}, fmt.Errorf("%w: %q", ErrInvalidValue, value)
	}

	var r, g, b int
	compact := strings.ReplaceAll(v, " ", "")
	if _, err := fmt.Sscanf(compact, "rgb(%d,%d,%d)", &r, &g, &b); err == nil {
		return RGB{clamp255(r), clamp255(g), clamp255(b)}, nil
	}
	switch strings.ToLower(v) {
	case "black":
		return Black, nil
	case "white":
		return White, nil
	}
	return RGB{}, fmt.Errorf("%w: %q", ErrInvalidValue, value)
}

func clamp255(v int) float64 {
	return float64(max(0, min(255, v))) / 255
}

// parseHexColor parses #RRGGBB or #RGB into r,g,b
func parseHexColor(s string) (int, int, int, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return 0, 0, 0, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff), true
}
