package layout

import (
	"github.com/gompdf/jsonpdf/internal/style"
)

// Image places a raster image. Without an explicit size the image is drawn
// one point per pixel, scaled down to the available width.
type Image struct {
	Box
	bitmap *Bitmap
	// requested size in points, 0 derives it from the other one or from
	// the bitmap
	width, height float64
}

// NewImage creates an image element.
func NewImage(bmp *Bitmap, s style.Style, width, height float64) *Image {
	img := &Image{bitmap: bmp, width: width, height: height}
	img.setup(KindImage, img, s)
	return img
}

// Bitmap returns the image data.
func (img *Image) Bitmap() *Bitmap { return img.bitmap }

func (img *Image) initContent() error  { return nil }
func (img *Image) children() []Element { return nil }

func (img *Image) layoutContent(inner float64) error {
	w, h := img.width, img.height
	aspect := 1.0
	if img.bitmap.Width > 0 && img.bitmap.Height > 0 {
		aspect = float64(img.bitmap.Height) / float64(img.bitmap.Width)
	}
	switch {
	case w == 0 && h == 0:
		w = float64(img.bitmap.Width)
		h = w * aspect
	case w == 0:
		w = h / aspect
	case h == 0:
		h = w * aspect
	}
	if w > inner {
		h *= inner / w
		w = inner
	}
	img.contentW, img.contentH = w, h
	return nil
}

func (img *Image) drawContent() error {
	x, y := img.contentOrigin()
	return img.env.Surface.Image(img.bitmap, x, y, img.contentW, img.contentH)
}

func (img *Image) Clone() Element {
	return NewImage(img.bitmap, img.style, img.width, img.height)
}

// Split never cuts an image.
func (img *Image) Split(float64) (Element, Element, error) {
	return nil, nil, nil
}
