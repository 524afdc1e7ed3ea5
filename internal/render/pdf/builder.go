package pdf

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/gompdf/jsonpdf/internal/fonts"
	"github.com/gompdf/jsonpdf/internal/layout"
	"github.com/gompdf/jsonpdf/internal/pagination"
	"github.com/gompdf/jsonpdf/internal/parser/jsondoc"
	"github.com/gompdf/jsonpdf/internal/res"
	"github.com/gompdf/jsonpdf/internal/vars"
)

// Builder turns parsed documents into PDF files. A Builder serves a single
// generation at a time: its loader cache belongs to that generation.
type Builder struct {
	// Fonts holds the faces every document starts with. It is cloned
	// before document fonts are registered.
	Fonts  *fonts.Registry
	Loader *res.Loader
	Log    *zap.Logger
	// Now is the clock behind ${date} and the document dates.
	Now func() time.Time
	// DatePattern formats ${date}, see vars.FormatDate.
	DatePattern string
	Producer    string
}

// BoxInfo is the layout box of a top level element.
type BoxInfo struct {
	Kind   string  `json:"kind"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PageInfo lists the boxes of the body elements placed on a page.
type PageInfo struct {
	Number int       `json:"number"`
	Boxes  []BoxInfo `json:"boxes"`
}

// Result is a generated document.
type Result struct {
	Bytes []byte
	Pages []PageInfo
}

func (b *Builder) logger() *zap.Logger {
	if b.Log == nil {
		return zap.NewNop()
	}
	return b.Log
}

// Build lays out doc and renders it. Any drawing error aborts the build,
// no partial document is returned.
func (b *Builder) Build(ctx context.Context, doc *jsondoc.Document) (*Result, error) {
	log := b.logger()
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	pattern := b.DatePattern
	if pattern == "" {
		pattern = vars.DefaultDatePattern
	}
	created := now()

	registry := b.documentFonts(ctx, doc.Fonts)
	size := doc.Page.PageSize()
	surface := NewSurface(size.Width, size.Height, created, log.Named("pdf"))

	if doc.Page.Template != "" {
		if b.Loader == nil {
			return nil, fmt.Errorf("page template %s: no resource loader", doc.Page.Template)
		}
		data, err := b.Loader.LoadTemplate(ctx, doc.Page.Template)
		if err != nil {
			return nil, fmt.Errorf("page template: %w", err)
		}
		if err := surface.SetTemplate(data); err != nil {
			return nil, err
		}
	}

	env := &layout.Env{
		Surface:   surface,
		Fonts:     registry,
		Defaults:  doc.Styles,
		ShowBoxes: doc.ShowBoxes,
		Log:       log.Named("layout"),
	}
	paginator := pagination.NewPaginator(size, doc.Page.Margins(), env)
	pages, err := paginator.Paginate(doc.Elements)
	if err != nil {
		return nil, err
	}
	if err := paginator.Decorate(pages, doc.Template, vars.FormatDate(created, pattern)); err != nil {
		return nil, fmt.Errorf("template: %w", err)
	}

	result := &Result{Pages: make([]PageInfo, 0, len(pages))}
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		surface.AddPage()
		for _, el := range page.Template {
			if err := el.Render(); err != nil {
				return nil, fmt.Errorf("page %d template: %w", page.Number, err)
			}
		}
		info := PageInfo{Number: page.Number, Boxes: make([]BoxInfo, 0, len(page.Elements))}
		for _, el := range page.Elements {
			if err := el.Render(); err != nil {
				return nil, fmt.Errorf("page %d: %w", page.Number, err)
			}
			info.Boxes = append(info.Boxes, BoxInfo{
				Kind:   el.Kind().String(),
				X:      el.X(),
				Y:      el.Y(),
				Width:  el.Width(),
				Height: el.Height(),
			})
		}
		result.Pages = append(result.Pages, info)
	}

	surface.SetMetadata(Metadata{
		Title:    doc.Metadata.Title,
		Author:   doc.Metadata.Author,
		Subject:  doc.Metadata.Subject,
		Keywords: doc.Metadata.Keywords,
		Creator:  doc.Metadata.Creator,
		Producer: b.Producer,
	})

	var buf bytes.Buffer
	if _, err := surface.WriteTo(&buf); err != nil {
		return nil, err
	}
	result.Bytes = buf.Bytes()

	log.Debug("Document rendered", zap.String("file", doc.FileName),
		zap.Int("pages", len(pages)), zap.Int("bytes", len(result.Bytes)))
	return result, nil
}

// documentFonts registers the document fonts on a copy of the base
// registry. Fonts that cannot be loaded are reported and left out; text
// asking for them uses the fallback face.
func (b *Builder) documentFonts(ctx context.Context, sources []jsondoc.FontSource) *fonts.Registry {
	var registry *fonts.Registry
	if b.Fonts != nil {
		registry = b.Fonts.Clone()
	} else {
		registry = fonts.NewRegistry()
	}
	if len(sources) == 0 {
		return registry
	}

	var errs error
	specs := make([]fonts.Spec, 0, len(sources))
	for _, src := range sources {
		if b.Loader == nil {
			errs = multierr.Append(errs, fmt.Errorf("font %q: no resource loader", src.Family))
			continue
		}
		data, err := b.Loader.LoadFont(ctx, src.URL)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("font %q: %w", src.Family, err))
			continue
		}
		specs = append(specs, fonts.Spec{Family: src.Family, Bold: src.Bold, Data: data})
	}
	errs = multierr.Append(errs, registry.RegisterAll(specs))
	if errs != nil {
		b.logger().Warn("Some document fonts are not available", zap.Error(errs))
	}
	return registry
}
