// Package jsondoc turns JSON document descriptions into element trees ready
// for pagination.
package jsondoc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/gompdf/jsonpdf/internal/layout"
	"github.com/gompdf/jsonpdf/internal/pagination"
	"github.com/gompdf/jsonpdf/internal/res"
	"github.com/gompdf/jsonpdf/internal/style"
	"github.com/gompdf/jsonpdf/internal/vars"
)

var (
	// ErrUnknownElementType is returned for an unrecognized element type.
	ErrUnknownElementType = errors.New("unknown element type")
	// ErrMissingField is returned when a required field is absent.
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidField is returned when a field has an unusable value.
	ErrInvalidField = errors.New("invalid field value")
	// ErrInvalidWidthFormat is returned for a malformed container width.
	ErrInvalidWidthFormat = layout.ErrInvalidWidthFormat
	// ErrNoImageLoader is returned when a document has images but the
	// parser was given no way to load them.
	ErrNoImageLoader = errors.New("image elements need a resource loader")
)

// Document is a parsed document description.
type Document struct {
	FileName string
	Page     PageOptions
	// Styles is the document wide default style.
	Styles   style.Style
	Metadata Metadata
	Fonts    []FontSource
	// Variables are the flattened document variables after data and input
	// were merged in.
	Variables map[string]any
	// Template is the running header and footer, drawn on every page from a
	// fresh clone.
	Template  []layout.Element
	Elements  []layout.Element
	ShowBoxes bool
}

// Metadata is written to the PDF information dictionary.
type Metadata struct {
	Title    string `json:"title"`
	Author   string `json:"author"`
	Subject  string `json:"subject"`
	Keywords string `json:"keywords"`
	Creator  string `json:"creator"`
}

// FontSource registers a custom font family face from a URL.
type FontSource struct {
	Family string `json:"family"`
	URL    string `json:"url"`
	Bold   bool   `json:"bold"`
}

// PageOptions describe page geometry. Zero values are replaced by the
// parser defaults.
type PageOptions struct {
	Size         string   `json:"size"`
	Width        float64  `json:"width"`
	Height       float64  `json:"height"`
	MarginTop    *float64 `json:"marginTop"`
	MarginRight  *float64 `json:"marginRight"`
	MarginBottom *float64 `json:"marginBottom"`
	MarginLeft   *float64 `json:"marginLeft"`
	Orientation  string   `json:"orientation"`
	// Template is the URL of a PDF whose first page is the background of
	// every page.
	Template string `json:"template"`

	resolvedSize    pagination.PageSize
	resolvedMargins pagination.Margins
}

// PageSize returns the resolved page size.
func (o PageOptions) PageSize() pagination.PageSize { return o.resolvedSize }

// Margins returns the resolved page margins.
func (o PageOptions) Margins() pagination.Margins { return o.resolvedMargins }

func (o *PageOptions) resolve(defSize pagination.PageSize, defMargins pagination.Margins) error {
	size := defSize
	if o.Size != "" {
		named, ok := pagination.LookupPageSize(o.Size)
		if !ok {
			return fmt.Errorf("%w: pageOptions.size %q", ErrInvalidField, o.Size)
		}
		size = named
	}
	if o.Width > 0 {
		size.Width, size.Name = o.Width, ""
	}
	if o.Height > 0 {
		size.Height, size.Name = o.Height, ""
	}
	switch strings.ToLower(strings.TrimSpace(o.Orientation)) {
	case "":
	case "portrait", "p":
		size = size.Portrait()
	case "landscape", "l":
		size = size.Landscape()
	default:
		return fmt.Errorf("%w: pageOptions.orientation %q", ErrInvalidField, o.Orientation)
	}

	m := defMargins
	for _, side := range []struct {
		src *float64
		dst *float64
	}{
		{o.MarginTop, &m.Top}, {o.MarginRight, &m.Right}, {o.MarginBottom, &m.Bottom}, {o.MarginLeft, &m.Left},
	} {
		if side.src == nil {
			continue
		}
		if *side.src < 0 {
			return fmt.Errorf("%w: negative page margin %v", ErrInvalidField, *side.src)
		}
		*side.dst = *side.src
	}
	o.resolvedSize, o.resolvedMargins = size, m
	return nil
}

// ImageLoader loads images referenced by image elements.
type ImageLoader interface {
	LoadImage(ctx context.Context, url string) (*res.Image, error)
}

type options struct {
	log      *zap.Logger
	pipes    *vars.Pipes
	images   ImageLoader
	data     map[string]any
	input    map[string]any
	pageSize pagination.PageSize
	margins  pagination.Margins
}

// Option configures parsing.
type Option func(*options)

// WithLogger sets the logger unresolved variables and table data problems
// are reported to.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithPipes sets the pipe registry used by {{}} placeholders.
func WithPipes(p *vars.Pipes) Option {
	return func(o *options) { o.pipes = p }
}

// WithImageLoader enables image elements.
func WithImageLoader(l ImageLoader) Option {
	return func(o *options) { o.images = l }
}

// WithData merges data into the document variables.
func WithData(data map[string]any) Option {
	return func(o *options) { o.data = data }
}

// WithInput exposes input to the document as input.* variables.
func WithInput(input map[string]any) Option {
	return func(o *options) { o.input = input }
}

// WithPageDefaults sets the page size and margins used when the document
// does not specify them.
func WithPageDefaults(size pagination.PageSize, margins pagination.Margins) Option {
	return func(o *options) { o.pageSize, o.margins = size, margins }
}

// rawDocument mirrors the top level of the JSON description.
type rawDocument struct {
	FileName   string            `json:"fileName"`
	Page       PageOptions       `json:"pageOptions"`
	Styles     style.Style       `json:"styles"`
	Stylesheet string            `json:"stylesheet"`
	Variables  map[string]any    `json:"variables"`
	Template   *rawTemplate      `json:"template"`
	Elements   []json.RawMessage `json:"elements"`
	ShowBoxes  bool              `json:"showBoxes"`
	Metadata   Metadata          `json:"metadata"`
	Fonts      []FontSource      `json:"fonts"`
}

type rawTemplate struct {
	Elements []json.RawMessage `json:"elements"`
	Styles   style.Style       `json:"styles"`
}

// Parse parses a document description.
func Parse(data []byte, opts ...Option) (*Document, error) {
	return ParseContext(context.Background(), data, opts...)
}

// ParseContext parses a document description. The context bounds image
// loading.
func ParseContext(ctx context.Context, data []byte, opts ...Option) (*Document, error) {
	o := options{
		pageSize: pagination.PageSizeA4,
		margins:  pagination.Margins{Top: 40, Right: 40, Bottom: 40, Left: 40},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	if o.pipes == nil {
		o.pipes = vars.NewPipes("en")
	}

	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unable to decode document: %w", err)
	}
	if strings.TrimSpace(raw.FileName) == "" {
		return nil, fmt.Errorf("%w: fileName", ErrMissingField)
	}
	if err := raw.Page.resolve(o.pageSize, o.margins); err != nil {
		return nil, err
	}
	for i, f := range raw.Fonts {
		if f.Family == "" || f.URL == "" {
			return nil, fmt.Errorf("%w: fonts[%d] needs family and url", ErrMissingField, i)
		}
	}

	variables := vars.Merge(raw.Variables, o.data)
	if o.input != nil {
		variables = vars.Merge(variables, map[string]any{"input": o.input})
	}
	flat := vars.Flatten(variables)

	p := &parser{
		ctx:     ctx,
		opts:    o,
		log:     o.log.Named("jsondoc"),
		resolve: vars.NewResolver(flat, o.pipes, o.log.Named("vars")),
	}
	if raw.Stylesheet != "" {
		sheet, err := style.NewSheet(raw.Stylesheet)
		if err != nil {
			return nil, fmt.Errorf("stylesheet: %w", err)
		}
		p.sheet = sheet
	}

	doc := &Document{
		FileName:  p.resolve.Resolve(raw.FileName),
		Page:      raw.Page,
		Styles:    raw.Styles,
		Metadata:  raw.Metadata,
		Fonts:     raw.Fonts,
		Variables: flat,
		ShowBoxes: raw.ShowBoxes,
	}
	doc.Metadata.Title = p.resolve.Resolve(doc.Metadata.Title)
	doc.Metadata.Subject = p.resolve.Resolve(doc.Metadata.Subject)

	if raw.Template != nil {
		tmpl, err := p.elements(raw.Template.Elements, "template.elements", nil)
		if err != nil {
			return nil, err
		}
		if len(raw.Template.Styles) > 0 {
			for _, el := range tmpl {
				if err := el.SetStyle(style.Layer(raw.Template.Styles, el.Style())); err != nil {
					return nil, err
				}
			}
		}
		doc.Template = tmpl
	}

	body, err := p.elements(raw.Elements, "elements", nil)
	if err != nil {
		return nil, err
	}
	doc.Elements = body

	p.log.Debug("Document parsed",
		zap.String("file", doc.FileName), zap.Int("elements", len(doc.Elements)), zap.Int("template", len(doc.Template)))
	return doc, nil
}
