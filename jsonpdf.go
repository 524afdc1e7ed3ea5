// Package jsonpdf renders JSON document descriptions to paginated PDF.
package jsonpdf

import (
	"github.com/gompdf/jsonpdf/pkg/api"
)

type Converter = api.Converter
type Options = api.Options
type Option = api.Option
type Request = api.Request
type Result = api.Result
type PageOrientation = api.PageOrientation
type Pipe = api.Pipe
type Font = api.Font
type FallbackFont = api.FallbackFont

func New(opts ...Option) *Converter             { return api.New(opts...) }
func NewWithOptions(options Options) *Converter { return api.NewWithOptions(options) }
func DefaultOptions() Options                   { return api.DefaultOptions() }
func OutputName(fileName string) string         { return api.OutputName(fileName) }

var (
	WithPageSize         = api.WithPageSize
	WithMargins          = api.WithMargins
	WithPageOrientation  = api.WithPageOrientation
	WithLocale           = api.WithLocale
	WithDatePattern      = api.WithDatePattern
	WithShowBoxes        = api.WithShowBoxes
	WithBaseURL          = api.WithBaseURL
	WithResourcePath     = api.WithResourcePath
	WithHTTPTimeout      = api.WithHTTPTimeout
	WithMaxImageSize     = api.WithMaxImageSize
	WithFont             = api.WithFont
	WithFontFile         = api.WithFontFile
	WithFallbackFont     = api.WithFallbackFont
	WithFallbackFontFile = api.WithFallbackFontFile
	WithProducer         = api.WithProducer
	WithLogger           = api.WithLogger
	WithClock            = api.WithClock
	WithPageSizeA4       = api.WithPageSizeA4
	WithPageSizeLetter   = api.WithPageSizeLetter
	WithPageSizeLegal    = api.WithPageSizeLegal
)

var (
	ErrUnknownElementType = api.ErrUnknownElementType
	ErrMissingField       = api.ErrMissingField
	ErrInvalidField       = api.ErrInvalidField
	ErrInvalidWidthFormat = api.ErrInvalidWidthFormat
)

const (
	PageSizeA3Width  = api.PageSizeA3Width
	PageSizeA3Height = api.PageSizeA3Height
	PageSizeA4Width  = api.PageSizeA4Width
	PageSizeA4Height = api.PageSizeA4Height
	PageSizeA5Width  = api.PageSizeA5Width
	PageSizeA5Height = api.PageSizeA5Height

	PageSizeLetterWidth  = api.PageSizeLetterWidth
	PageSizeLetterHeight = api.PageSizeLetterHeight
	PageSizeLegalWidth   = api.PageSizeLegalWidth
	PageSizeLegalHeight  = api.PageSizeLegalHeight

	PageOrientationPortrait  = api.PageOrientationPortrait
	PageOrientationLandscape = api.PageOrientationLandscape
)
