package layout

import (
	"github.com/gompdf/jsonpdf/internal/fonts"
	"github.com/gompdf/jsonpdf/internal/style"
)

// Surface is the page elements measure text on and draw to. All coordinates
// are PDF page coordinates. Rectangles are given by their top-left corner
// and extend downward.
type Surface interface {
	PageSize() (width, height float64)

	// EmbedFont makes face available for measuring and drawing.
	EmbedFont(face *fonts.Face) error
	// Measure returns the width of s at size. It fails with
	// fonts.ErrEncoding when the face cannot draw s.
	Measure(face *fonts.Face, size float64, s string) (float64, error)

	FillRect(x, y, w, h float64, c style.RGB)
	StrokeRect(x, y, w, h, lineWidth float64, c style.RGB)
	// Text draws s with its baseline at y.
	Text(face *fonts.Face, size, x, y float64, s string, c style.RGB) error
	Image(img *Bitmap, x, y, w, h float64) error
}

// Bitmap is raster image data ready to be placed on a page.
type Bitmap struct {
	// Name identifies the image data within a document.
	Name string
	// Type is the image format understood by the surface, "png" or "jpg".
	Type   string
	Data   []byte
	Width  int
	Height int
}
