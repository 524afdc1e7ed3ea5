package res

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	// Register a broad set of image decoders so image.Decode can handle
	// many formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"go.uber.org/zap"
)

// ErrUnsupportedImage is returned for image data that cannot be decoded.
var ErrUnsupportedImage = errors.New("unsupported image")

// defaultSVGSize is used when an SVG has no usable viewBox.
const defaultSVGSize = 512

// maxRasterDim bounds SVG rasterization.
const maxRasterDim = 4096

// Image is image data in a format the PDF writer embeds directly.
type Image struct {
	// Name is derived from the content, equal data gets equal names.
	Name string
	// Type is "png" or "jpg".
	Type   string
	Data   []byte
	Width  int
	Height int
}

// LoadImage loads an image and converts it for embedding. PNG and JPEG data
// is kept as is unless it needs downscaling; other raster formats and SVG
// are converted to PNG.
func (l *Loader) LoadImage(ctx context.Context, urlStr string) (*Image, error) {
	res, err := l.loadKind(ctx, urlStr, KindImage)
	if err != nil {
		return nil, err
	}
	img, err := PrepareImage(res.Data, res.MimeType, l.MaxImageSize, l.log)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", urlStr, err)
	}
	return img, nil
}

// PrepareImage converts raw image data into an embeddable Image.
func PrepareImage(data []byte, mimeType string, maxSize int, log *zap.Logger) (*Image, error) {
	if log == nil {
		log = zap.NewNop()
	}
	name := uuid.NewSHA1(uuid.NameSpaceOID, data).String()

	if mimeType == "image/svg+xml" {
		img, err := rasterizeSVG(data, maxSize)
		if err != nil {
			return nil, fmt.Errorf("%w: svg: %w", ErrUnsupportedImage, err)
		}
		log.Debug("SVG rasterized", zap.String("name", name), zap.Int("width", img.Bounds().Dx()), zap.Int("height", img.Bounds().Dy()))
		return encodeImage(name, img, "png")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedImage, err)
	}
	tooBig := maxSize > 0 && max(cfg.Width, cfg.Height) > maxSize
	if (format == "png" || format == "jpeg") && !tooBig {
		typ := "png"
		if format == "jpeg" {
			typ = "jpg"
		}
		return &Image{Name: name, Type: typ, Data: data, Width: cfg.Width, Height: cfg.Height}, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedImage, err)
	}
	if tooBig {
		img = imaging.Fit(img, maxSize, maxSize, imaging.Lanczos)
		log.Debug("Image downscaled", zap.String("name", name),
			zap.Int("from", max(cfg.Width, cfg.Height)), zap.Int("to", maxSize))
	}
	out := "png"
	if format == "jpeg" {
		out = "jpg"
	}
	return encodeImage(name, img, out)
}

func encodeImage(name string, img image.Image, typ string) (*Image, error) {
	buf := new(bytes.Buffer)
	var err error
	switch typ {
	case "jpg":
		err = imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(90))
	default:
		err = imaging.Encode(buf, img, imaging.PNG)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to encode %s image: %w", typ, err)
	}
	b := img.Bounds()
	return &Image{Name: name, Type: typ, Data: buf.Bytes(), Width: b.Dx(), Height: b.Dy()}, nil
}

// rasterizeSVG renders an SVG on white at its viewBox size, fitted into
// maxSize when set.
func rasterizeSVG(data []byte, maxSize int) (image.Image, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	w := int(math.Ceil(icon.ViewBox.W))
	h := int(math.Ceil(icon.ViewBox.H))
	if w <= 0 || h <= 0 {
		w, h = defaultSVGSize, defaultSVGSize
	}
	limit := maxRasterDim
	if maxSize > 0 {
		limit = min(limit, maxSize)
	}
	if w > limit || h > limit {
		s := min(float64(limit)/float64(w), float64(limit)/float64(h))
		w = max(int(math.Round(float64(w)*s)), 1)
		h = max(int(math.Round(float64(h)*s)), 1)
	}

	icon.SetTarget(0, 0, float64(w), float64(h))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.RGBA{255, 255, 255, 255}}, image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(w, h, dst, dst.Bounds())
	dasher := rasterx.NewDasher(w, h, scanner)
	icon.Draw(dasher, 1.0)
	return dst, nil
}
