// Package fonts keeps the set of font faces a document may use: the PDF core
// fonts, custom TrueType fonts registered at run time and the Unicode
// fallback face substituted when a requested font cannot be used.
package fonts

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/golang/freetype/truetype"
	"github.com/h2non/filetype"
	"go.uber.org/multierr"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/text/encoding/charmap"
)

var (
	// ErrFontNotFound is returned by Lookup when neither a core font nor a
	// registered custom family matches the request.
	ErrFontNotFound = errors.New("font not found")
	// ErrEncoding is returned when a face has no glyphs for some of the
	// requested text.
	ErrEncoding = errors.New("text cannot be encoded with font")
)

// FallbackFamily is the family name the fallback face is embedded under.
const FallbackFamily = "GoFallback"

// Face is a concrete font variant ready to be embedded and measured.
type Face struct {
	// Family is the name the face is known by inside the PDF.
	Family string
	// Style is "" for regular and "B" for bold, as fpdf expects.
	Style string
	// Builtin reports a PDF core font, which needs no embedding.
	Builtin bool
	// Data holds TrueType bytes for custom faces.
	Data []byte

	// ascent and descent are fractions of the em size, both positive.
	ascent  float64
	descent float64
	ttf     *truetype.Font
}

// Key identifies the face among all faces of a document.
func (f *Face) Key() string {
	return f.Family + "/" + f.Style
}

// Bold reports whether the face is a bold variant.
func (f *Face) Bold() bool {
	return f.Style == "B"
}

// Metrics returns ascent and descent in points at the given size.
func (f *Face) Metrics(size float64) (ascent, descent float64) {
	return f.ascent * size, f.descent * size
}

// CanEncode checks that every rune of s can be drawn with the face.
func (f *Face) CanEncode(s string) error {
	if f.Builtin {
		if _, err := charmap.Windows1252.NewEncoder().String(s); err != nil {
			return fmt.Errorf("%w: %s %q", ErrEncoding, f.Family, s)
		}
		return nil
	}
	for _, r := range s {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			continue
		}
		if f.ttf.Index(r) == 0 {
			return fmt.Errorf("%w: %s has no glyph for %q", ErrEncoding, f.Family, r)
		}
	}
	return nil
}

// Encode converts s to the byte representation the PDF writer expects for
// this face: Windows-1252 for core fonts, UTF-8 otherwise.
func (f *Face) Encode(s string) (string, error) {
	if !f.Builtin {
		return s, f.CanEncode(s)
	}
	out, err := charmap.Windows1252.NewEncoder().String(s)
	if err != nil {
		return "", fmt.Errorf("%w: %s %q", ErrEncoding, f.Family, s)
	}
	return out, nil
}

type family struct {
	regular *Face
	bold    *Face
}

// Registry maps family names to faces. It is safe for concurrent use; clone
// it to give a single generation its own set of per-document fonts.
type Registry struct {
	mu       sync.RWMutex
	families map[string]*family
	// fallback is nil while the default Go faces are in use.
	fallback *[2]*Face
}

// NewRegistry returns a registry holding the PDF core fonts and their common
// aliases.
func NewRegistry() *Registry {
	r := &Registry{families: make(map[string]*family)}

	helvetica := builtinFamily("Helvetica", 0.718, 0.207)
	times := builtinFamily("Times", 0.683, 0.217)
	courier := builtinFamily("Courier", 0.629, 0.157)

	for _, name := range []string{"helvetica", "arial", "sans-serif"} {
		r.families[name] = helvetica
	}
	for _, name := range []string{"times", "times new roman", "serif"} {
		r.families[name] = times
	}
	for _, name := range []string{"courier", "courier new", "monospace"} {
		r.families[name] = courier
	}
	return r
}

func builtinFamily(name string, ascent, descent float64) *family {
	return &family{
		regular: &Face{Family: name, Builtin: true, ascent: ascent, descent: descent},
		bold:    &Face{Family: name, Style: "B", Builtin: true, ascent: ascent, descent: descent},
	}
}

// Clone returns an independent copy of the registry. Faces are shared since
// they are immutable.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := &Registry{families: make(map[string]*family, len(r.families)), fallback: r.fallback}
	for name, fam := range r.families {
		cp := *fam
		out.families[name] = &cp
	}
	return out
}

// Register adds a TrueType face under family. Registering the same family
// and weight twice replaces the earlier face.
func (r *Registry) Register(name string, bold bool, data []byte) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("font family name is empty")
	}
	if err := checkTrueType(data); err != nil {
		return fmt.Errorf("font %q: %w", name, err)
	}
	face, err := newTrueTypeFace(name, bold, data)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(name)
	fam, ok := r.families[key]
	if !ok || fam.regular != nil && fam.regular.Builtin {
		fam = &family{}
		r.families[key] = fam
	}
	if bold {
		fam.bold = face
	} else {
		fam.regular = face
	}
	return nil
}

// RegisterAll registers several faces and reports every failure.
func (r *Registry) RegisterAll(specs []Spec) (err error) {
	for _, s := range specs {
		if e := r.Register(s.Family, s.Bold, s.Data); e != nil {
			err = multierr.Append(err, fmt.Errorf("unable to register font %q: %w", s.Family, e))
		}
	}
	return err
}

// Spec describes a font to register.
type Spec struct {
	Family string
	Bold   bool
	Data   []byte
}

// Lookup resolves a family and weight to a face. A bold request falls back to
// the regular variant when no bold face was registered.
func (r *Registry) Lookup(name string, bold bool) (*Face, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, candidate := range strings.Split(name, ",") {
		key := strings.ToLower(strings.Trim(strings.TrimSpace(candidate), `'"`))
		fam, ok := r.families[key]
		if !ok {
			continue
		}
		if bold && fam.bold != nil {
			return fam.bold, nil
		}
		if fam.regular != nil {
			return fam.regular, nil
		}
		if fam.bold != nil {
			return fam.bold, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrFontNotFound, name)
}

var (
	defaultFallbackOnce  sync.Once
	defaultFallbackFaces [2]*Face
)

func defaultFallback() [2]*Face {
	defaultFallbackOnce.Do(func() {
		var err error
		if defaultFallbackFaces[0], err = newTrueTypeFace(FallbackFamily, false, goregular.TTF); err != nil {
			panic(fmt.Sprintf("embedded fallback font is broken: %v", err))
		}
		if defaultFallbackFaces[1], err = newTrueTypeFace(FallbackFamily, true, gobold.TTF); err != nil {
			panic(fmt.Sprintf("embedded fallback font is broken: %v", err))
		}
	})
	return defaultFallbackFaces
}

// SetFallback replaces the fallback faces. The Go fonts used by default
// cover Latin, Greek and Cyrillic only; scripts such as Arabic or Hebrew
// need a face supplied here. bold may be empty, the regular face is then
// used for bold text too.
func (r *Registry) SetFallback(regular, bold []byte) error {
	if err := checkTrueType(regular); err != nil {
		return fmt.Errorf("fallback font: %w", err)
	}
	rf, err := newTrueTypeFace(FallbackFamily, false, regular)
	if err != nil {
		return err
	}
	bf := &Face{}
	if len(bold) == 0 {
		*bf = *rf
		bf.Style = "B"
	} else {
		if err := checkTrueType(bold); err != nil {
			return fmt.Errorf("bold fallback font: %w", err)
		}
		if bf, err = newTrueTypeFace(FallbackFamily, true, bold); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = &[2]*Face{rf, bf}
	return nil
}

// Fallback returns the Unicode covering face used when a requested font is
// missing or cannot encode the text.
func (r *Registry) Fallback(bold bool) *Face {
	r.mu.RLock()
	faces := r.fallback
	r.mu.RUnlock()

	if faces == nil {
		d := defaultFallback()
		faces = &d
	}
	if bold {
		return faces[1]
	}
	return faces[0]
}

func checkTrueType(data []byte) error {
	switch {
	case filetype.Is(data, "ttf"):
		return nil
	case filetype.Is(data, "otf"):
		return errors.New("OpenType fonts with CFF outlines are not supported")
	}
	return errors.New("not a TrueType font")
}

func newTrueTypeFace(name string, bold bool, data []byte) (*Face, error) {
	ttf, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("unable to parse font %q: %w", name, err)
	}

	const probe = 1000
	m := truetype.NewFace(ttf, &truetype.Options{Size: probe, DPI: 72}).Metrics()

	face := &Face{
		Family:  name,
		Data:    data,
		ascent:  float64(m.Ascent) / 64 / probe,
		descent: float64(m.Descent) / 64 / probe,
		ttf:     ttf,
	}
	if bold {
		face.Style = "B"
	}
	return face, nil
}
