package style

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/gompdf/jsonpdf/internal/parser/css"
)

// Style is a sparse set of named style properties as written in a document.
type Style map[string]string

var sides = [4]string{"top", "right", "bottom", "left"}

// inherited lists the properties children take from their parent when they
// do not set them.
var inherited = map[string]bool{
	"font-family":      true,
	"font-size":        true,
	"font-weight":      true,
	"color":            true,
	"align-horizontal": true,
	"align-vertical":   true,
	"direction":        true,
}

var aliases = map[string]string{
	"text-align":     "align-horizontal",
	"vertical-align": "align-vertical",
	"background":     "background-color",
	"halign":         "align-horizontal",
	"valign":         "align-vertical",
	"font":           "font-family",
}

// UnmarshalJSON accepts either an object of properties, whose values may be
// strings, numbers or booleans, or a CSS declaration string.
func (s *Style) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var decl string
		if err := json.Unmarshal(data, &decl); err != nil {
			return err
		}
		*s = Parse(decl)
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("style must be an object or a declaration string: %w", err)
	}
	out := make(Style, len(raw))
	for key, value := range raw {
		var v any
		if err := json.Unmarshal(value, &v); err != nil {
			return err
		}
		switch tv := v.(type) {
		case string:
			out[NormalizeKey(key)] = tv
		case float64:
			out[NormalizeKey(key)] = strconv.FormatFloat(tv, 'f', -1, 64)
		case bool:
			out[NormalizeKey(key)] = strconv.FormatBool(tv)
		case nil:
		default:
			return fmt.Errorf("style property %q has unsupported value %s", key, value)
		}
	}
	*s = out
	return nil
}

// Parse converts a CSS declaration string into a Style.
func Parse(decl string) Style {
	out := Style{}
	for _, d := range css.ParseDeclarations(decl) {
		out[NormalizeKey(d.Property)] = d.Value
	}
	return out
}

// NormalizeKey turns camelCase keys into their kebab-case form and maps
// property aliases to canonical names.
func NormalizeKey(key string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(key) {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('-')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	k := b.String()
	if a, ok := aliases[k]; ok {
		return a
	}
	return k
}

// Clone returns a copy of s.
func (s Style) Clone() Style {
	if s == nil {
		return nil
	}
	out := make(Style, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Expand replaces shorthand properties with their longhands. Longhands
// present in s win over those derived from a shorthand.
func (s Style) Expand() Style {
	out := make(Style, len(s))
	for key, value := range s {
		key = NormalizeKey(key)
		switch key {
		case "margin", "padding":
			for i, v := range boxShorthand(value) {
				out[key+"-"+sides[i]] = v
			}
		case "border-width":
			for i, v := range boxShorthand(value) {
				out["border-"+sides[i]+"-width"] = v
			}
		case "border":
			width, color := borderShorthand(value)
			if width != "" {
				for _, side := range sides {
					out["border-"+side+"-width"] = width
				}
			}
			if color != "" {
				out["border-color"] = color
			}
		}
	}
	for key, value := range s {
		switch key = NormalizeKey(key); key {
		case "margin", "padding", "border-width", "border":
		default:
			out[key] = value
		}
	}
	return out
}

// Layer expands every style and overlays them in order, later styles win.
func Layer(styles ...Style) Style {
	out := Style{}
	for _, s := range styles {
		for k, v := range s.Expand() {
			out[k] = v
		}
	}
	return out
}

// TextOnly returns the inheritable subset of the expanded style.
func (s Style) TextOnly() Style {
	out := Style{}
	for k, v := range s.Expand() {
		if inherited[k] {
			out[k] = v
		}
	}
	return out
}

// BoxOnly returns the non-inheritable subset of the expanded style.
func (s Style) BoxOnly() Style {
	out := Style{}
	for k, v := range s.Expand() {
		if !inherited[k] {
			out[k] = v
		}
	}
	return out
}

// boxShorthand splits a CSS like shorthand:
//   - "10"
//   - "10 20"
//   - "10 15 8"
//   - "10 12 8 6"
//
// into (top, right, bottom, left) values.
func boxShorthand(value string) [4]string {
	parts := strings.Fields(value)
	switch len(parts) {
	case 0:
		return [4]string{}
	case 1:
		return [4]string{parts[0], parts[0], parts[0], parts[0]}
	case 2:
		return [4]string{parts[0], parts[1], parts[0], parts[1]}
	case 3:
		return [4]string{parts[0], parts[1], parts[2], parts[1]}
	default:
		return [4]string{parts[0], parts[1], parts[2], parts[3]}
	}
}

// borderShorthand understands "<width> [solid] [<color>]" in any order.
func borderShorthand(value string) (width, color string) {
	for _, part := range strings.Fields(value) {
		switch {
		case strings.HasPrefix(part, "#") || strings.HasPrefix(part, "rgb("):
			color = part
		case part == "solid" || part == "none":
			if part == "none" {
				width = "0"
			}
		default:
			width = part
		}
	}
	return width, color
}
