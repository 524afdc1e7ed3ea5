// Package pdf draws paginated element trees with fpdf and serializes the
// result.
package pdf

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"codeberg.org/go-pdf/fpdf"
	"codeberg.org/go-pdf/fpdf/contrib/gofpdi"
	"go.uber.org/zap"

	"github.com/gompdf/jsonpdf/internal/fonts"
	"github.com/gompdf/jsonpdf/internal/layout"
	"github.com/gompdf/jsonpdf/internal/style"
)

// Surface implements layout.Surface on top of an fpdf document. fpdf
// measures from the top-left corner with y growing downward, so every
// vertical coordinate is flipped against the page height.
type Surface struct {
	pdf    *fpdf.Fpdf
	width  float64
	height float64

	fonts  map[string]bool
	images map[string]bool

	template int
	importer *gofpdi.Importer

	log *zap.Logger
}

var _ layout.Surface = (*Surface)(nil)

// NewSurface creates an empty document with pages of the given size in
// points. created is written as creation and modification date.
func NewSurface(width, height float64, created time.Time, log *zap.Logger) *Surface {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: width, Ht: height},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(created)
	pdf.SetModificationDate(created)

	if log == nil {
		log = zap.NewNop()
	}
	return &Surface{
		pdf:      pdf,
		width:    width,
		height:   height,
		fonts:    make(map[string]bool),
		images:   make(map[string]bool),
		template: -1,
		log:      log,
	}
}

// PageSize returns the size of every page of the document.
func (s *Surface) PageSize() (float64, float64) {
	return s.width, s.height
}

// Err returns the first error fpdf recorded, if any.
func (s *Surface) Err() error {
	if s.pdf.Err() {
		return s.pdf.Error()
	}
	return nil
}

// EmbedFont adds a TrueType face to the document. Core fonts need nothing.
func (s *Surface) EmbedFont(face *fonts.Face) error {
	if face.Builtin || s.fonts[face.Key()] {
		return nil
	}
	s.pdf.AddUTF8FontFromBytes(face.Family, face.Style, face.Data)
	if err := s.Err(); err != nil {
		return fmt.Errorf("unable to embed font %q: %w", face.Family, err)
	}
	s.fonts[face.Key()] = true
	s.log.Debug("Font embedded", zap.String("family", face.Family), zap.String("style", face.Style))
	return nil
}

func (s *Surface) useFont(face *fonts.Face, size float64) error {
	if err := s.EmbedFont(face); err != nil {
		return err
	}
	s.pdf.SetFont(face.Family, face.Style, size)
	return s.Err()
}

// Measure returns the advance width of str. Text a face cannot encode is
// rejected before it reaches fpdf, whose error state is sticky.
func (s *Surface) Measure(face *fonts.Face, size float64, str string) (float64, error) {
	enc, err := face.Encode(str)
	if err != nil {
		return 0, err
	}
	if err := s.useFont(face, size); err != nil {
		return 0, err
	}
	return s.pdf.GetStringWidth(enc), nil
}

// FillRect paints a rectangle whose top-left corner is at (x, y).
func (s *Surface) FillRect(x, y, w, h float64, c style.RGB) {
	r, g, b := c.Bytes()
	s.pdf.SetFillColor(r, g, b)
	s.pdf.Rect(x, s.height-y, w, h, "F")
}

// StrokeRect outlines a rectangle whose top-left corner is at (x, y).
func (s *Surface) StrokeRect(x, y, w, h, lineWidth float64, c style.RGB) {
	r, g, b := c.Bytes()
	s.pdf.SetDrawColor(r, g, b)
	s.pdf.SetLineWidth(lineWidth)
	s.pdf.Rect(x, s.height-y, w, h, "D")
}

// Text draws str with its baseline at y.
func (s *Surface) Text(face *fonts.Face, size, x, y float64, str string, c style.RGB) error {
	enc, err := face.Encode(str)
	if err != nil {
		return err
	}
	if err := s.useFont(face, size); err != nil {
		return err
	}
	r, g, b := c.Bytes()
	s.pdf.SetTextColor(r, g, b)
	s.pdf.Text(x, s.height-y, enc)
	return s.Err()
}

// Image places img with its top-left corner at (x, y). Image data is
// registered once per document under the image name.
func (s *Surface) Image(img *layout.Bitmap, x, y, w, h float64) error {
	opts := fpdf.ImageOptions{ImageType: img.Type}
	if !s.images[img.Name] {
		s.pdf.RegisterImageOptionsReader(img.Name, opts, bytes.NewReader(img.Data))
		if err := s.Err(); err != nil {
			return fmt.Errorf("unable to register image %s: %w", img.Name, err)
		}
		s.images[img.Name] = true
	}
	s.pdf.ImageOptions(img.Name, x, s.height-y, w, h, false, opts, 0, "")
	return s.Err()
}

// SetTemplate imports the first page of a PDF to be drawn beneath the
// content of every page added afterwards.
func (s *Surface) SetTemplate(data []byte) (err error) {
	defer func() {
		// gofpdi panics on some malformed sources
		if r := recover(); r != nil {
			err = fmt.Errorf("unable to import page template: %v", r)
		}
	}()

	s.importer = gofpdi.NewImporter()
	rs := io.ReadSeeker(bytes.NewReader(data))
	id := s.importer.ImportPageFromStream(s.pdf, &rs, 1, "/MediaBox")
	if err := s.Err(); err != nil {
		return fmt.Errorf("unable to import page template: %w", err)
	}
	s.template = id
	return nil
}

// AddPage starts a new page, drawing the imported template first.
func (s *Surface) AddPage() {
	s.pdf.AddPageFormat("P", fpdf.SizeType{Wd: s.width, Ht: s.height})
	if s.template >= 0 {
		s.importer.UseImportedTemplate(s.pdf, s.template, 0, 0, s.width, s.height)
	}
}

// Metadata is written to the document information dictionary.
type Metadata struct {
	Title    string
	Author   string
	Subject  string
	Keywords string
	Creator  string
	Producer string
}

// SetMetadata fills the information dictionary. Empty values are omitted.
func (s *Surface) SetMetadata(m Metadata) {
	for _, f := range []struct {
		value string
		set   func(string, bool)
	}{
		{m.Title, s.pdf.SetTitle},
		{m.Author, s.pdf.SetAuthor},
		{m.Subject, s.pdf.SetSubject},
		{m.Keywords, s.pdf.SetKeywords},
		{m.Creator, s.pdf.SetCreator},
		{m.Producer, s.pdf.SetProducer},
	} {
		if f.value != "" {
			f.set(f.value, true)
		}
	}
}

// WriteTo serializes the document. Nothing is written once fpdf recorded
// an error.
func (s *Surface) WriteTo(w io.Writer) (int64, error) {
	if err := s.Err(); err != nil {
		return 0, err
	}
	var buf bytes.Buffer
	if err := s.pdf.Output(&buf); err != nil {
		return 0, fmt.Errorf("unable to serialize document: %w", err)
	}
	return buf.WriteTo(w)
}
