package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/dvloznov/statement-parser/internal/logger"
)

// Loader converts raw bytes into a Document.
type Loader struct {
	rasterizer Rasterizer
}

// NewLoader creates a loader. A nil rasterizer leaves PDF pages without
// images; their text layer is still read.
func NewLoader(r Rasterizer) *Loader {
	return &Loader{rasterizer: r}
}

// Load sniffs data and produces its page images. Input that is not a
// readable PDF or image fails with *UnsupportedFormatError.
func (l *Loader) Load(ctx context.Context, data []byte, name string) (*Document, error) {
	format, mimeType, err := Sniff(data, name)
	if err != nil {
		return nil, err
	}

	doc := &Document{Name: name, Format: format, MIMEType: mimeType, Raw: data}

	if format == FormatImage {
		doc.Pages = []PageImage{{Index: 0, Data: data, MIMEType: mimeType}}
		return doc, nil
	}

	pages, err := readPDFPages(data)
	if err != nil {
		return nil, &UnsupportedFormatError{Name: name, Detected: mimePDF, Err: err}
	}

	log := logger.FromContext(ctx)
	if l.rasterizer != nil {
		images, err := l.rasterizer.Rasterize(ctx, data)
		if err != nil {
			log.Warn().Err(err).Str("document", name).Msg("page rendering failed; continuing with text layer only")
		}
		for _, img := range images {
			if img.Index >= 0 && img.Index < len(pages) {
				pages[img.Index].Data = img.Data
				pages[img.Index].MIMEType = img.MIMEType
			}
		}
	}

	doc.Pages = pages
	log.Debug().Str("document", name).Int("pages", len(pages)).Msg("document loaded")
	return doc, nil
}

// readPDFPages lists the pages of a PDF with their rotation and text layer.
// pdfcpu is used for the page count when the text reader cannot parse the
// file; the pages then carry no text layer.
func readPDFPages(data []byte) ([]PageImage, error) {
	pages, err := readTextLayer(data)
	if err == nil && len(pages) > 0 {
		return pages, nil
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, cerr := api.PageCount(bytes.NewReader(data), conf)
	if cerr != nil {
		return nil, errors.Join(err, cerr)
	}
	if n == 0 {
		return nil, errors.New("pdf has no pages")
	}

	pages = make([]PageImage, n)
	for i := range pages {
		pages[i].Index = i
	}
	return pages, nil
}

func readTextLayer(data []byte) (pages []PageImage, err error) {
	// The reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("read pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	n := r.NumPage()
	pages = make([]PageImage, n)
	for i := 1; i <= n; i++ {
		pages[i-1].Index = i - 1
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		pages[i-1].Rotation = normalizeRotation(int(p.V.Key("Rotate").Int64()))
		if text, err := p.GetPlainText(nil); err == nil {
			pages[i-1].TextLayer = text
		}
	}
	return pages, nil
}

func normalizeRotation(deg int) int {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	return deg
}
