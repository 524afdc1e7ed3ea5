package layout

import (
	"testing"
	"unicode/utf8"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gompdf/jsonpdf/internal/fonts"
	"github.com/gompdf/jsonpdf/internal/style"
)

type drawnText struct {
	family string
	size   float64
	x, y   float64
	text   string
}

type drawnRect struct {
	x, y, w, h float64
	color      style.RGB
}

// fakeSurface measures every rune as half the font size wide.
type fakeSurface struct {
	width, height float64

	ops      []string
	texts    []drawnText
	fills    []drawnRect
	embedded map[string]bool
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{width: 600, height: 800, embedded: map[string]bool{}}
}

func (s *fakeSurface) PageSize() (float64, float64) { return s.width, s.height }

func (s *fakeSurface) EmbedFont(face *fonts.Face) error {
	s.embedded[face.Key()] = true
	return nil
}

func (s *fakeSurface) Measure(face *fonts.Face, size float64, str string) (float64, error) {
	if err := face.CanEncode(str); err != nil {
		return 0, err
	}
	return float64(utf8.RuneCountInString(str)) * size * 0.5, nil
}

func (s *fakeSurface) FillRect(x, y, w, h float64, c style.RGB) {
	s.ops = append(s.ops, "fill")
	s.fills = append(s.fills, drawnRect{x, y, w, h, c})
}

func (s *fakeSurface) StrokeRect(x, y, w, h, lineWidth float64, c style.RGB) {
	s.ops = append(s.ops, "stroke")
}

func (s *fakeSurface) Text(face *fonts.Face, size, x, y float64, str string, c style.RGB) error {
	s.ops = append(s.ops, "text")
	s.texts = append(s.texts, drawnText{face.Family, size, x, y, str})
	return nil
}

func (s *fakeSurface) Image(img *Bitmap, x, y, w, h float64) error {
	s.ops = append(s.ops, "image")
	return nil
}

func newEnv(t *testing.T) (*Env, *fakeSurface) {
	t.Helper()
	s := newFakeSurface()
	return &Env{Surface: s, Fonts: fonts.NewRegistry(), Log: zaptest.NewLogger(t)}, s
}

func newObservedEnv() (*Env, *fakeSurface, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.WarnLevel)
	s := newFakeSurface()
	return &Env{Surface: s, Fonts: fonts.NewRegistry(), Log: zap.New(core)}, s, logs
}

// prepare runs Init and PreRender at the top-left corner of the page.
func prepare(t *testing.T, env *Env, el Element, width float64) {
	t.Helper()
	if err := el.Init(env, nil); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := el.PreRender(Placement{X: 0, Y: 800, MaxWidth: width}); err != nil {
		t.Fatalf("pre-render: %v", err)
	}
}

// Helvetica line height at 12 points.
const line12 = (0.718+0.207)*12 + lineSpacing

func paragraphTexts(els []Element) []string {
	out := make([]string, 0, len(els))
	for _, el := range els {
		switch e := el.(type) {
		case *Paragraph:
			out = append(out, e.Text())
		case *Heading:
			out = append(out, e.Text())
		}
	}
	return out
}
