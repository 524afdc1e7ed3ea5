package api

import (
	"time"

	"go.uber.org/zap"
)

// Options represents configuration options for the JSON to PDF converter.
// Page values are defaults for documents that do not set them.
type Options struct {
	// Page dimensions
	PageWidth  float64
	PageHeight float64
	// Page orientation: portrait or landscape
	PageOrientation PageOrientation

	// Page margins
	MarginTop    float64
	MarginRight  float64
	MarginBottom float64
	MarginLeft   float64

	// Locale drives number grouping of the number pipe (BCP 47 tag).
	Locale string
	// DatePattern formats ${date} in running templates, e.g. "dd/MM/yyyy".
	DatePattern string
	// ShowBoxes outlines element boxes in every document.
	ShowBoxes bool

	// Resource loading
	BaseURL       string
	ResourcePaths []string
	HTTPTimeout   time.Duration
	// MaxImageSize bounds the longer image side in pixels, 0 keeps images
	// as they are.
	MaxImageSize int

	// Fonts are registered for every document.
	Fonts []Font
	// Fallback replaces the built-in Go fallback faces, which cover Latin,
	// Greek and Cyrillic only. Family is ignored.
	Fallback *FallbackFont

	Producer string

	Logger *zap.Logger
	// Clock replaces time.Now, mostly for reproducible output.
	Clock func() time.Time
}

// Font is a TrueType face available to all documents.
type Font struct {
	Family string
	Bold   bool
	// Path is read when Data is empty.
	Path string
	Data []byte
}

// FallbackFont is the face used for text no requested font can encode.
// Bold is optional.
type FallbackFont struct {
	Regular Font
	Bold    *Font
}

// Option is a function that modifies Options
type Option func(*Options)

// PageOrientation represents page orientation
type PageOrientation string

const (
	// PageOrientationPortrait sets the page to portrait orientation
	PageOrientationPortrait PageOrientation = "portrait"
	// PageOrientationLandscape sets the page to landscape orientation
	PageOrientationLandscape PageOrientation = "landscape"
)

// DefaultOptions returns the default options
func DefaultOptions() Options {
	return Options{
		// Default to A4 paper size (595.28 x 841.89 points)
		PageWidth:       PageSizeA4Width,
		PageHeight:      PageSizeA4Height,
		PageOrientation: PageOrientationPortrait,

		MarginTop:    40,
		MarginRight:  40,
		MarginBottom: 40,
		MarginLeft:   40,

		Locale:      "en",
		DatePattern: "dd/MM/yyyy",

		HTTPTimeout:  30 * time.Second,
		MaxImageSize: 2048,

		Producer: "jsonpdf",
	}
}

// WithPageSize sets the page size
func WithPageSize(width, height float64) Option {
	return func(o *Options) {
		o.PageWidth = width
		o.PageHeight = height
	}
}

// WithMargins sets the page margins
func WithMargins(top, right, bottom, left float64) Option {
	return func(o *Options) {
		o.MarginTop = top
		o.MarginRight = right
		o.MarginBottom = bottom
		o.MarginLeft = left
	}
}

// WithPageOrientation sets the page orientation
func WithPageOrientation(orientation PageOrientation) Option {
	return func(o *Options) {
		o.PageOrientation = orientation
	}
}

// WithLocale sets the locale of the number pipe
func WithLocale(locale string) Option {
	return func(o *Options) {
		o.Locale = locale
	}
}

// WithDatePattern sets the ${date} pattern
func WithDatePattern(pattern string) Option {
	return func(o *Options) {
		o.DatePattern = pattern
	}
}

// WithShowBoxes enables box outlines
func WithShowBoxes(show bool) Option {
	return func(o *Options) {
		o.ShowBoxes = show
	}
}

// WithBaseURL sets the base relative resource URLs are resolved against
func WithBaseURL(base string) Option {
	return func(o *Options) {
		o.BaseURL = base
	}
}

// WithResourcePath adds a path to search for resources
func WithResourcePath(path string) Option {
	return func(o *Options) {
		o.ResourcePaths = append(o.ResourcePaths, path)
	}
}

// WithHTTPTimeout limits remote resource fetches
func WithHTTPTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.HTTPTimeout = timeout
	}
}

// WithMaxImageSize sets the image downscaling bound
func WithMaxImageSize(pixels int) Option {
	return func(o *Options) {
		o.MaxImageSize = pixels
	}
}

// WithFont registers a TrueType face for every document
func WithFont(family string, bold bool, data []byte) Option {
	return func(o *Options) {
		o.Fonts = append(o.Fonts, Font{Family: family, Bold: bold, Data: data})
	}
}

// WithFontFile registers a TrueType file for every document
func WithFontFile(family string, bold bool, path string) Option {
	return func(o *Options) {
		o.Fonts = append(o.Fonts, Font{Family: family, Bold: bold, Path: path})
	}
}

// WithFallbackFont replaces the fallback faces, bold may be nil
func WithFallbackFont(regular, bold []byte) Option {
	return func(o *Options) {
		o.Fallback = &FallbackFont{Regular: Font{Data: regular}}
		if len(bold) > 0 {
			o.Fallback.Bold = &Font{Bold: true, Data: bold}
		}
	}
}

// WithFallbackFontFile replaces the fallback faces with TrueType files,
// boldPath may be empty
func WithFallbackFontFile(regularPath, boldPath string) Option {
	return func(o *Options) {
		o.Fallback = &FallbackFont{Regular: Font{Path: regularPath}}
		if boldPath != "" {
			o.Fallback.Bold = &Font{Bold: true, Path: boldPath}
		}
	}
}

// WithProducer sets the producer written to the document information
func WithProducer(producer string) Option {
	return func(o *Options) {
		o.Producer = producer
	}
}

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(o *Options) {
		o.Logger = log
	}
}

// WithClock sets the clock used for ${date} and document dates
func WithClock(clock func() time.Time) Option {
	return func(o *Options) {
		o.Clock = clock
	}
}

// Standard page sizes in points (1/72 inch)
const (
	PageSizeA3Width  = 841.89
	PageSizeA3Height = 1190.55
	PageSizeA4Width  = 595.28
	PageSizeA4Height = 841.89
	PageSizeA5Width  = 419.53
	PageSizeA5Height = 595.28

	// US Letter and Legal
	PageSizeLetterWidth  = 612
	PageSizeLetterHeight = 792
	PageSizeLegalWidth   = 612
	PageSizeLegalHeight  = 1008
)

// WithPageSizeA4 sets the page size to A4
func WithPageSizeA4() Option {
	return WithPageSize(PageSizeA4Width, PageSizeA4Height)
}

// WithPageSizeLetter sets the page size to US Letter
func WithPageSizeLetter() Option {
	return WithPageSize(PageSizeLetterWidth, PageSizeLetterHeight)
}

// WithPageSizeLegal sets the page size to US Legal
func WithPageSizeLegal() Option {
	return WithPageSize(PageSizeLegalWidth, PageSizeLegalHeight)
}
