// Package res loads external resources referenced by documents: fonts, page
// templates, images and documents themselves. Resources are addressed by
// http(s) URL, file path or data: URL and cached for the life of a Loader.
package res

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/h2non/filetype"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
)

var (
	// ErrNotFound is returned when a resource cannot be located.
	ErrNotFound = errors.New("resource not found")
	// ErrUnexpectedType is returned when a resource is not of the requested kind.
	ErrUnexpectedType = errors.New("unexpected resource type")
)

// Kind represents the type of resource
type Kind int

const (
	// KindUnknown is an unknown resource type
	KindUnknown Kind = iota
	// KindImage is a raster or SVG image
	KindImage
	// KindFont is a font file of any format
	KindFont
	// KindPDF is a PDF document used as page template
	KindPDF
	// KindDocument is a textual document, JSON or plain text
	KindDocument
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindFont:
		return "font"
	case KindPDF:
		return "pdf"
	case KindDocument:
		return "document"
	}
	return "unknown"
}

// Resource represents a loaded resource
type Resource struct {
	URL      string
	Kind     Kind
	Data     []byte
	MimeType string
}

// Reader returns a reader over the resource data.
func (r *Resource) Reader() *bytes.Reader {
	return bytes.NewReader(r.Data)
}

// Loader handles loading resources
type Loader struct {
	// Base URL or file path for resolving relative URLs
	BaseURL string
	// MaxImageSize bounds the larger pixel dimension of loaded images,
	// bigger images are downscaled. 0 keeps images as they are.
	MaxImageSize int

	cache     map[string]*Resource
	cacheLock sync.RWMutex

	searchPaths []string
	client      *http.Client
	log         *zap.Logger
}

// NewLoader creates a new resource loader. A zero timeout leaves remote
// requests bounded by their context only.
func NewLoader(baseURL string, timeout time.Duration, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{
		BaseURL: baseURL,
		cache:   make(map[string]*Resource),
		client:  &http.Client{Timeout: timeout},
		log:     log.Named("res"),
	}
}

// AddSearchPath adds a directory to search for local resources
func (l *Loader) AddSearchPath(path string) {
	l.searchPaths = append(l.searchPaths, path)
}

// Load loads a resource from a URL or file path
func (l *Loader) Load(ctx context.Context, urlStr string) (*Resource, error) {
	l.cacheLock.RLock()
	if res, ok := l.cache[urlStr]; ok {
		l.cacheLock.RUnlock()
		return res, nil
	}
	l.cacheLock.RUnlock()

	var (
		res *Resource
		err error
	)
	switch {
	case strings.HasPrefix(urlStr, "data:"):
		res, err = parseDataURL(urlStr)
	default:
		var resolved string
		if resolved, err = l.resolveURL(urlStr); err != nil {
			return nil, err
		}
		if isRemote(resolved) {
			res, err = l.loadRemote(ctx, resolved)
		} else {
			res, err = l.loadLocal(resolved)
		}
	}
	if err != nil {
		return nil, err
	}
	l.log.Debug("Resource loaded", zap.String("url", res.URL), zap.Stringer("kind", res.Kind), zap.Int("size", len(res.Data)))

	l.cacheLock.Lock()
	l.cache[urlStr] = res
	l.cacheLock.Unlock()
	return res, nil
}

func isRemote(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// parseDataURL parses a data URL (RFC 2397) and returns a Resource.
// Examples:
//
//	data:image/png;base64,<base64>
//	data:text/plain,Hello%20World
func parseDataURL(u string) (*Resource, error) {
	s := strings.TrimPrefix(u, "data:")
	meta, payload, ok := strings.Cut(s, ",")
	if !ok {
		return nil, fmt.Errorf("invalid data URL")
	}

	mime := "application/octet-stream"
	isBase64 := false
	comps := strings.Split(meta, ";")
	if comps[0] != "" {
		mime = comps[0]
	}
	for _, c := range comps[1:] {
		if strings.EqualFold(strings.TrimSpace(c), "base64") {
			isBase64 = true
		}
	}

	var data []byte
	if isBase64 {
		var err error
		if data, err = base64.StdEncoding.DecodeString(payload); err != nil {
			return nil, fmt.Errorf("invalid base64 data URL: %w", err)
		}
	} else if d, err := url.PathUnescape(payload); err == nil {
		data = []byte(d)
	} else {
		data = []byte(payload)
	}

	r := &Resource{URL: "data:" + mime, Data: data}
	r.Kind, r.MimeType = classify(data, mime, "")
	return r, nil
}

// resolveURL resolves a URL relative to the base URL
func (l *Loader) resolveURL(urlStr string) (string, error) {
	if isRemote(urlStr) {
		return urlStr, nil
	}
	if !isRemote(l.BaseURL) {
		if filepath.IsAbs(urlStr) {
			return urlStr, nil
		}
		return filepath.Join(filepath.Dir(l.BaseURL), urlStr), nil
	}

	baseURL, err := url.Parse(l.BaseURL)
	if err != nil {
		return "", err
	}
	relURL, err := url.Parse(urlStr)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(relURL).String(), nil
}

// loadRemote loads a resource from a remote URL
func (l *Loader) loadRemote(ctx context.Context, urlStr string) (*Resource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to fetch %s: %w", urlStr, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, urlStr)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unable to fetch %s: HTTP error: %s", urlStr, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", urlStr, err)
	}

	res := &Resource{URL: urlStr, Data: data}
	res.Kind, res.MimeType = classify(data, resp.Header.Get("Content-Type"), urlStr)
	return res, nil
}

// loadLocal loads a resource from a local file
func (l *Loader) loadLocal(path string) (*Resource, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return l.loadFromSearchPaths(path)
	}
	if err != nil {
		return nil, err
	}
	res := &Resource{URL: path, Data: data}
	res.Kind, res.MimeType = classify(data, "", path)
	return res, nil
}

// loadFromSearchPaths tries to load a resource from the search paths
func (l *Loader) loadFromSearchPaths(filename string) (*Resource, error) {
	base := filepath.Base(filename)
	for _, searchPath := range l.searchPaths {
		path := filepath.Join(searchPath, base)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		res := &Resource{URL: path, Data: data}
		res.Kind, res.MimeType = classify(data, "", path)
		return res, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, filename)
}

// classify sniffs the content first and falls back to the declared MIME
// type and the file extension.
func classify(data []byte, mimeHint, path string) (Kind, string) {
	if t, err := filetype.Match(data); err == nil && t != filetype.Unknown {
		switch {
		case t.MIME.Type == "image":
			return KindImage, t.MIME.Value
		case t.Extension == "ttf" || t.Extension == "otf" || t.Extension == "woff" || t.Extension == "woff2":
			return KindFont, "font/" + t.Extension
		case t.Extension == "pdf":
			return KindPDF, t.MIME.Value
		}
	}
	if isSVG(data) {
		return KindImage, "image/svg+xml"
	}

	mime, _, _ := strings.Cut(mimeHint, ";")
	mime = strings.TrimSpace(strings.ToLower(mime))
	if mime == "application/json" || strings.HasPrefix(mime, "text/") {
		// parameters are kept for charset detection
		return KindDocument, mimeHint
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".txt":
		return KindDocument, "application/json"
	}
	if mime == "" {
		mime = "application/octet-stream"
	}
	return KindUnknown, mime
}

func isSVG(data []byte) bool {
	head := data[:min(len(data), 1024)]
	return bytes.Contains(head, []byte("<svg"))
}

func (l *Loader) loadKind(ctx context.Context, urlStr string, kind Kind) (*Resource, error) {
	res, err := l.Load(ctx, urlStr)
	if err != nil {
		return nil, err
	}
	if res.Kind != kind {
		return nil, fmt.Errorf("%w: %s is %s (%s), expected %s", ErrUnexpectedType, urlStr, res.Kind, res.MimeType, kind)
	}
	return res, nil
}

// LoadFont loads a TrueType font. OpenType fonts with CFF outlines (OTTO)
// and compressed web fonts cannot be embedded and are rejected.
func (l *Loader) LoadFont(ctx context.Context, urlStr string) ([]byte, error) {
	res, err := l.loadKind(ctx, urlStr, KindFont)
	if err != nil {
		return nil, err
	}
	switch res.MimeType {
	case "font/ttf":
		return res.Data, nil
	case "font/otf":
		return nil, fmt.Errorf("%w: %s is an OpenType font with CFF outlines, only TrueType outlines can be embedded", ErrUnexpectedType, urlStr)
	default:
		return nil, fmt.Errorf("%w: %s is %s, only TrueType fonts can be embedded", ErrUnexpectedType, urlStr, res.MimeType)
	}
}

// LoadTemplate loads a PDF whose first page backs every generated page.
func (l *Loader) LoadTemplate(ctx context.Context, urlStr string) ([]byte, error) {
	res, err := l.loadKind(ctx, urlStr, KindPDF)
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

// LoadDocument loads a textual document and returns it as UTF-8. Content
// that is not valid UTF-8 is decoded from the charset it declares.
func (l *Loader) LoadDocument(ctx context.Context, urlStr string) ([]byte, error) {
	res, err := l.Load(ctx, urlStr)
	if err != nil {
		return nil, err
	}
	if res.Kind != KindDocument && res.Kind != KindUnknown {
		return nil, fmt.Errorf("%w: %s is %s, expected %s", ErrUnexpectedType, urlStr, res.Kind, KindDocument)
	}
	if utf8.Valid(res.Data) {
		return res.Data, nil
	}
	r, err := charset.NewReader(res.Reader(), res.MimeType)
	if err != nil {
		return nil, fmt.Errorf("unable to decode %s: %w", urlStr, err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("unable to decode %s: %w", urlStr, err)
	}
	l.log.Debug("Document converted to UTF-8", zap.String("url", urlStr), zap.String("content-type", res.MimeType))
	return out, nil
}
