// Package api is the public entry point of jsonpdf: it turns JSON document
// descriptions into PDF files.
package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/gompdf/jsonpdf/internal/fonts"
	"github.com/gompdf/jsonpdf/internal/pagination"
	"github.com/gompdf/jsonpdf/internal/parser/jsondoc"
	"github.com/gompdf/jsonpdf/internal/render/pdf"
	"github.com/gompdf/jsonpdf/internal/res"
	"github.com/gompdf/jsonpdf/internal/vars"
)

// Errors a document description can fail with.
var (
	ErrUnknownElementType = jsondoc.ErrUnknownElementType
	ErrMissingField       = jsondoc.ErrMissingField
	ErrInvalidField       = jsondoc.ErrInvalidField
	ErrInvalidWidthFormat = jsondoc.ErrInvalidWidthFormat
)

type (
	// Pipe formats a placeholder value, see RegisterPipe.
	Pipe = vars.Pipe
	// PageInfo lists the element boxes placed on a page.
	PageInfo = pdf.PageInfo
	// BoxInfo is the layout box of a top level element.
	BoxInfo = pdf.BoxInfo
)

// Request is a document description with the values merged into its
// variables.
type Request struct {
	Document []byte
	// Data is merged into the document variables.
	Data map[string]any
	// Input is exposed to the document as input.* variables.
	Input map[string]any
}

// Result is a generated document.
type Result struct {
	// FileName is the resolved fileName of the description.
	FileName string
	Bytes    []byte
	Pages    []PageInfo
}

// Converter is the main API for converting JSON document descriptions to
// PDF. It is safe for concurrent use; every generation gets its own
// resource cache and font set.
type Converter struct {
	options Options
	log     *zap.Logger
	pipes   *vars.Pipes
	fonts   *fonts.Registry
}

// New creates a new converter with default options modified by opts
func New(opts ...Option) *Converter {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return NewWithOptions(options)
}

// NewWithOptions creates a new converter with the specified options. Fonts
// that cannot be registered are logged and left out.
func NewWithOptions(options Options) *Converter {
	log := options.Logger
	if log == nil {
		log = zap.NewNop()
	}
	c := &Converter{
		options: options,
		log:     log,
		pipes:   vars.NewPipes(options.Locale),
		fonts:   fonts.NewRegistry(),
	}
	if err := c.registerFonts(); err != nil {
		log.Warn("Some fonts could not be registered", zap.Error(err))
	}
	return c
}

func (c *Converter) registerFonts() error {
	var errs error
	specs := make([]fonts.Spec, 0, len(c.options.Fonts))
	for _, f := range c.options.Fonts {
		data, err := f.load()
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		specs = append(specs, fonts.Spec{Family: f.Family, Bold: f.Bold, Data: data})
	}
	errs = multierr.Append(errs, c.fonts.RegisterAll(specs))

	if fb := c.options.Fallback; fb != nil {
		regular, err := fb.Regular.load()
		if err != nil {
			return multierr.Append(errs, err)
		}
		var bold []byte
		if fb.Bold != nil {
			if bold, err = fb.Bold.load(); err != nil {
				return multierr.Append(errs, err)
			}
		}
		if err := c.fonts.SetFallback(regular, bold); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("unable to set fallback font: %w", err))
		}
	}
	return errs
}

func (f Font) load() ([]byte, error) {
	if len(f.Data) > 0 {
		return f.Data, nil
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		name := f.Family
		if name == "" {
			name = fonts.FallbackFamily
		}
		return nil, fmt.Errorf("unable to read font %q: %w", name, err)
	}
	return data, nil
}

// RegisterPipe adds or replaces a pipe usable in {{value|name:args}}
// placeholders of every later generation.
func (c *Converter) RegisterPipe(name string, fn Pipe) {
	c.pipes.Register(name, fn)
}

func (c *Converter) pageDefaults() (pagination.PageSize, pagination.Margins) {
	size := pagination.PageSize{Width: c.options.PageWidth, Height: c.options.PageHeight}
	switch c.options.PageOrientation {
	case PageOrientationLandscape:
		size = size.Landscape()
	case PageOrientationPortrait:
		size = size.Portrait()
	}
	margins := pagination.Margins{
		Top:    c.options.MarginTop,
		Right:  c.options.MarginRight,
		Bottom: c.options.MarginBottom,
		Left:   c.options.MarginLeft,
	}
	return size, margins
}

// Render parses and renders a document description.
func (c *Converter) Render(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	loader := res.NewLoader(c.options.BaseURL, c.options.HTTPTimeout, c.log)
	loader.MaxImageSize = c.options.MaxImageSize
	for _, path := range c.options.ResourcePaths {
		loader.AddSearchPath(path)
	}

	size, margins := c.pageDefaults()
	doc, err := jsondoc.ParseContext(ctx, req.Document,
		jsondoc.WithLogger(c.log),
		jsondoc.WithPipes(c.pipes),
		jsondoc.WithImageLoader(loader),
		jsondoc.WithData(req.Data),
		jsondoc.WithInput(req.Input),
		jsondoc.WithPageDefaults(size, margins),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	if c.options.ShowBoxes {
		doc.ShowBoxes = true
	}

	builder := &pdf.Builder{
		Fonts:       c.fonts,
		Loader:      loader,
		Log:         c.log,
		Now:         c.options.Clock,
		DatePattern: c.options.DatePattern,
		Producer:    c.options.Producer,
	}
	out, err := builder.Build(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}

	c.log.Debug("Document generated", zap.String("file", doc.FileName),
		zap.Int("pages", len(out.Pages)), zap.Duration("elapsed", time.Since(start)))
	return &Result{FileName: doc.FileName, Bytes: out.Bytes, Pages: out.Pages}, nil
}

// Generate renders a document description and writes the PDF to output
func (c *Converter) Generate(ctx context.Context, document []byte, output io.Writer) error {
	result, err := c.Render(ctx, Request{Document: document})
	if err != nil {
		return err
	}
	if _, err := io.Copy(output, bytes.NewReader(result.Bytes)); err != nil {
		return fmt.Errorf("failed to copy PDF to output: %w", err)
	}
	return nil
}

// GenerateBytes renders a document description to PDF bytes
func (c *Converter) GenerateBytes(ctx context.Context, document []byte) ([]byte, error) {
	result, err := c.Render(ctx, Request{Document: document})
	if err != nil {
		return nil, err
	}
	return result.Bytes, nil
}

// GenerateFile renders a document description into dir, naming the file
// after the document fileName. It returns the path written.
func (c *Converter) GenerateFile(ctx context.Context, document []byte, dir string) (string, error) {
	result, err := c.Render(ctx, Request{Document: document})
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, OutputName(result.FileName))
	if err := os.WriteFile(path, result.Bytes, 0644); err != nil {
		return "", fmt.Errorf("failed to write PDF: %w", err)
	}
	return path, nil
}

// OutputName turns a document fileName into a safe file name with the pdf
// extension.
func OutputName(fileName string) string {
	base := strings.TrimSpace(fileName)
	if strings.EqualFold(filepath.Ext(base), ".pdf") {
		base = base[:len(base)-len(".pdf")]
	}
	name := slug.Make(base)
	if name == "" {
		name = "document"
	}
	return name + ".pdf"
}
