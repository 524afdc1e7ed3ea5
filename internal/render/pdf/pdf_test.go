package pdf

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/color"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/gompdf/jsonpdf/internal/fonts"
	"github.com/gompdf/jsonpdf/internal/parser/jsondoc"
	"github.com/gompdf/jsonpdf/internal/res"
	"github.com/gompdf/jsonpdf/internal/style"
)

var fixedNow = time.Date(2024, 3, 7, 10, 30, 0, 0, time.UTC)

func newBuilder(t *testing.T, log *zap.Logger) (*Builder, *res.Loader) {
	t.Helper()
	if log == nil {
		log = zaptest.NewLogger(t)
	}
	loader := res.NewLoader("", time.Second, log)
	return &Builder{
		Fonts:    fonts.NewRegistry(),
		Loader:   loader,
		Log:      log,
		Now:      func() time.Time { return fixedNow },
		Producer: "jsonpdf test",
	}, loader
}

func build(t *testing.T, src string) *Result {
	t.Helper()
	b, loader := newBuilder(t, nil)
	doc, err := jsondoc.Parse([]byte(src), jsondoc.WithLogger(zaptest.NewLogger(t)), jsondoc.WithImageLoader(loader))
	require.NoError(t, err)
	result, err := b.Build(context.Background(), doc)
	require.NoError(t, err)
	return result
}

const report = `{
	"fileName": "report",
	"metadata": {"title": "Report", "author": "QA"},
	"elements": [
		{"type": "heading", "level": 1, "text": "Report"},
		{"type": "paragraph", "text": "This paragraph is long enough to wrap over more than one line of the page, so the layout has to break it at word boundaries before the table follows."},
		{"type": "table", "headerRows": 1, "data": [["Name", "Value"], ["alpha", "1"]]}
	]
}`

func TestBuildSinglePageReport(t *testing.T) {
	result := build(t, report)

	assert.True(t, bytes.HasPrefix(result.Bytes, []byte("%PDF")))
	require.Len(t, result.Pages, 1)

	boxes := result.Pages[0].Boxes
	require.Len(t, boxes, 3)
	assert.Equal(t, []string{"h", "p", "table"}, []string{boxes[0].Kind, boxes[1].Kind, boxes[2].Kind})

	// A4 with the default 40 point margins.
	assert.InDelta(t, 40, boxes[0].X, 1e-9)
	assert.InDelta(t, 841.89-40, boxes[0].Y, 1e-9)
	assert.InDelta(t, 595.28-80, boxes[1].Width, 1e-9)
	for i := 1; i < len(boxes); i++ {
		assert.InDelta(t, boxes[i-1].Y-boxes[i-1].Height, boxes[i].Y, 1e-9, "box %d", i)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	first := build(t, report)
	second := build(t, report)
	assert.Equal(t, first.Bytes, second.Bytes)
}

func TestBuildPaginatesWithRunningTemplate(t *testing.T) {
	var paragraphs []string
	for i := range 120 {
		paragraphs = append(paragraphs, fmt.Sprintf(`{"type":"p","text":"Line %d"}`, i))
	}
	src := fmt.Sprintf(`{
		"fileName": "long",
		"pageOptions": {"size": "A5", "marginTop": 60},
		"template": {"elements": [{"type":"p","text":"Page ${pageNumber} of ${totalPages}, ${date}"}]},
		"elements": [%s]
	}`, strings.Join(paragraphs, ","))

	result := build(t, src)
	require.Greater(t, len(result.Pages), 1)

	total := 0
	for i, page := range result.Pages {
		assert.Equal(t, i+1, page.Number)
		total += len(page.Boxes)
		for _, box := range page.Boxes {
			assert.LessOrEqual(t, box.Y, 595.28-60+1e-9)
			assert.GreaterOrEqual(t, box.Y-box.Height, 40-1e-9)
		}
	}
	assert.Equal(t, 120, total)
}

func TestBuildFallsBackForUnencodableText(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	b, _ := newBuilder(t, zap.New(core))
	doc, err := jsondoc.Parse([]byte(`{"fileName":"u","elements":[{"type":"p","text":"Grüße, привет"}]}`))
	require.NoError(t, err)

	result, err := b.Build(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(result.Bytes, []byte("%PDF")))
	assert.Positive(t, logs.FilterMessage("Font cannot encode text, switching to fallback").Len())
}

func TestBuildUsesConfiguredFallbackFont(t *testing.T) {
	const src = `{"fileName":"leave","elements":[{"type":"p","text":"طلب إجازة سنوية"}]}`

	b, _ := newBuilder(t, nil)
	doc, err := jsondoc.Parse([]byte(src))
	require.NoError(t, err)
	_, err = b.Build(context.Background(), doc)
	require.ErrorIs(t, err, fonts.ErrEncoding, "the built-in fallback has no Arabic glyphs")

	dejavu, err := os.ReadFile("../../fonts/testdata/DejaVuSansCondensed.ttf")
	require.NoError(t, err)
	core, logs := observer.New(zapcore.WarnLevel)
	b, _ = newBuilder(t, zap.New(core))
	require.NoError(t, b.Fonts.SetFallback(dejavu, nil))

	doc, err = jsondoc.Parse([]byte(src))
	require.NoError(t, err)
	result, err := b.Build(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(result.Bytes, []byte("%PDF")))
	assert.Contains(t, string(result.Bytes), "/FontFile2")
	assert.Positive(t, logs.FilterMessage("Font cannot encode text, switching to fallback").Len())
}

func TestBuildEmbedsDocumentFonts(t *testing.T) {
	font := "data:font/ttf;base64," + base64.StdEncoding.EncodeToString(goregular.TTF)
	src := fmt.Sprintf(`{
		"fileName": "fonts",
		"fonts": [{"family": "Go", "url": %q}],
		"styles": {"font-family": "Go"},
		"elements": [{"type":"p","text":"Κείμενο"}]
	}`, font)

	result := build(t, src)
	assert.True(t, bytes.HasPrefix(result.Bytes, []byte("%PDF")))
	assert.Contains(t, string(result.Bytes), "/FontFile2")
}

func TestBuildReportsMissingFonts(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	b, _ := newBuilder(t, zap.New(core))
	doc, err := jsondoc.Parse([]byte(`{
		"fileName": "fonts",
		"fonts": [{"family": "Nope", "url": "/nonexistent/nope.ttf"}],
		"styles": {"font-family": "Nope"},
		"elements": [{"type":"p","text":"text"}]
	}`))
	require.NoError(t, err)

	_, err = b.Build(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("Some document fonts are not available").Len())
}

func TestBuildPlacesImages(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, imaging.Encode(buf, imaging.New(20, 10, color.NRGBA{0, 128, 255, 255}), imaging.PNG))
	src := fmt.Sprintf(`{"fileName":"img","elements":[{"type":"image","src":"data:image/png;base64,%s","width":100}]}`,
		base64.StdEncoding.EncodeToString(buf.Bytes()))

	result := build(t, src)
	require.Len(t, result.Pages, 1)
	require.Len(t, result.Pages[0].Boxes, 1)
	assert.Equal(t, "image", result.Pages[0].Boxes[0].Kind)
	assert.Contains(t, string(result.Bytes), "/Subtype /Image")
}

func TestBuildUsesPageTemplate(t *testing.T) {
	background := NewSurface(300, 400, fixedNow, zaptest.NewLogger(t))
	background.AddPage()
	background.FillRect(10, 390, 50, 50, style.RGB{R: 1})
	var tpl bytes.Buffer
	_, err := background.WriteTo(&tpl)
	require.NoError(t, err)

	src := fmt.Sprintf(`{
		"fileName": "tpl",
		"pageOptions": {"width": 300, "height": 400, "template": "data:application/pdf;base64,%s"},
		"elements": [{"type":"p","text":"On top of the background"}]
	}`, base64.StdEncoding.EncodeToString(tpl.Bytes()))

	result := build(t, src)
	require.Len(t, result.Pages, 1)
	assert.Contains(t, string(result.Bytes), "/XObject")
}

func TestBuildStopsOnCancelledContext(t *testing.T) {
	b, _ := newBuilder(t, nil)
	doc, err := jsondoc.Parse([]byte(report))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = b.Build(ctx, doc)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSurfaceRejectsUnencodableCoreFontText(t *testing.T) {
	s := NewSurface(200, 200, fixedNow, zaptest.NewLogger(t))
	face, err := fonts.NewRegistry().Lookup("Helvetica", false)
	require.NoError(t, err)

	w, err := s.Measure(face, 10, "abc")
	require.NoError(t, err)
	assert.Greater(t, w, 0.0)

	_, err = s.Measure(face, 10, "привет")
	require.ErrorIs(t, err, fonts.ErrEncoding)
	require.NoError(t, s.Err())
}
