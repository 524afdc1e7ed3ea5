package res

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/image/bmp"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/text/encoding/charmap"
)

const testSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 40 20">` +
	`<rect x="0" y="0" width="40" height="20" fill="#336699"/></svg>`

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	require.NoError(t, imaging.Encode(buf, imaging.New(w, h, color.NRGBA{200, 10, 10, 255}), imaging.PNG))
	return buf.Bytes()
}

func newTestLoader(t *testing.T, base string) *Loader {
	return NewLoader(base, 0, zaptest.NewLogger(t))
}

func TestLoadDataURL(t *testing.T) {
	l := newTestLoader(t, "")

	res, err := l.Load(context.Background(), "data:text/plain,Hello%20World")
	require.NoError(t, err)
	assert.Equal(t, "Hello World", string(res.Data))
	assert.Equal(t, KindDocument, res.Kind)

	encoded := base64.StdEncoding.EncodeToString(pngBytes(t, 2, 2))
	res, err = l.Load(context.Background(), "data:image/png;base64,"+encoded)
	require.NoError(t, err)
	assert.Equal(t, KindImage, res.Kind)
	assert.Equal(t, "image/png", res.MimeType)

	_, err = l.Load(context.Background(), "data:image/png;base64,@@@")
	require.Error(t, err)
}

func TestLoadLocalRelativeAndSearchPath(t *testing.T) {
	dir := t.TempDir()
	fontDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.json"), []byte(`{"fileName":"x"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(fontDir, "regular.ttf"), goregular.TTF, 0o644))

	l := newTestLoader(t, filepath.Join(dir, "doc.json"))
	l.AddSearchPath(fontDir)

	doc, err := l.LoadDocument(context.Background(), "doc.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"fileName":"x"}`, string(doc))

	font, err := l.LoadFont(context.Background(), "fonts/regular.ttf")
	require.NoError(t, err)
	assert.Equal(t, goregular.TTF, font)

	_, err = l.Load(context.Background(), "missing.png")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLoadRemoteAndCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/font.ttf":
			_, _ = w.Write(goregular.TTF)
		case "/latin1.json":
			w.Header().Set("Content-Type", "application/json; charset=iso-8859-1")
			data, _ := charmap.ISO8859_1.NewEncoder().Bytes([]byte(`{"name":"Müller"}`))
			_, _ = w.Write(data)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l := newTestLoader(t, srv.URL+"/docs/index.json")
	ctx := context.Background()

	font, err := l.LoadFont(ctx, "/font.ttf")
	require.NoError(t, err)
	assert.Equal(t, goregular.TTF, font)
	_, err = l.LoadFont(ctx, "/font.ttf")
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load(), "second load is served from cache")

	doc, err := l.LoadDocument(ctx, srv.URL+"/latin1.json")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Müller"}`, string(doc))

	_, err = l.Load(ctx, srv.URL+"/nothing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLoadRemoteHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestLoader(t, "").Load(ctx, srv.URL+"/slow.ttf")
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoadKindMismatch(t *testing.T) {
	l := newTestLoader(t, "")
	_, err := l.LoadFont(context.Background(), "data:text/plain,abc")
	require.ErrorIs(t, err, ErrUnexpectedType)

	encoded := base64.StdEncoding.EncodeToString(pngBytes(t, 1, 1))
	_, err = l.LoadTemplate(context.Background(), "data:image/png;base64,"+encoded)
	require.ErrorIs(t, err, ErrUnexpectedType)
}

func TestLoadFontRejectsCFFOutlines(t *testing.T) {
	l := newTestLoader(t, "")
	otf := append([]byte("OTTO\x00\x0a\x00\x80"), make([]byte, 56)...)
	_, err := l.LoadFont(context.Background(), "data:font/otf;base64,"+base64.StdEncoding.EncodeToString(otf))
	require.ErrorIs(t, err, ErrUnexpectedType)
	assert.Contains(t, err.Error(), "CFF outlines")

	font, err := l.LoadFont(context.Background(), "data:font/ttf;base64,"+base64.StdEncoding.EncodeToString(goregular.TTF))
	require.NoError(t, err)
	assert.Equal(t, goregular.TTF, font)
}

func TestPrepareImageKeepsPNG(t *testing.T) {
	data := pngBytes(t, 30, 10)
	img, err := PrepareImage(data, "image/png", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, "png", img.Type)
	assert.Equal(t, data, img.Data)
	assert.Equal(t, 30, img.Width)
	assert.Equal(t, 10, img.Height)

	again, err := PrepareImage(data, "image/png", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, img.Name, again.Name, "names are derived from content")
}

func TestPrepareImageDownscales(t *testing.T) {
	img, err := PrepareImage(pngBytes(t, 400, 100), "image/png", 200, nil)
	require.NoError(t, err)
	assert.Equal(t, 200, img.Width)
	assert.Equal(t, 50, img.Height)

	decoded, _, err := image.Decode(bytes.NewReader(img.Data))
	require.NoError(t, err)
	assert.Equal(t, 200, decoded.Bounds().Dx())
}

func TestPrepareImageConvertsBMP(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, bmp.Encode(buf, imaging.New(8, 4, color.White)))

	l := newTestLoader(t, "")
	img, err := l.LoadImage(context.Background(), "data:image/bmp;base64,"+base64.StdEncoding.EncodeToString(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "png", img.Type)
	assert.Equal(t, 8, img.Width)
	assert.Equal(t, 4, img.Height)
}

func TestPrepareImageRasterizesSVG(t *testing.T) {
	l := newTestLoader(t, "")
	img, err := l.LoadImage(context.Background(), "data:image/svg+xml,"+testSVG)
	require.NoError(t, err)
	assert.Equal(t, "png", img.Type)
	assert.Equal(t, 40, img.Width)
	assert.Equal(t, 20, img.Height)
}

func TestPrepareImageRejectsGarbage(t *testing.T) {
	_, err := PrepareImage([]byte("not an image"), "image/png", 0, nil)
	require.ErrorIs(t, err, ErrUnsupportedImage)
}
