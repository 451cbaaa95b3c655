// Package tesseract implements ocr.Recognizer with the Tesseract engine.
// It requires cgo and the tesseract/leptonica libraries.
package tesseract

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"

	"github.com/dvloznov/statement-parser/internal/ocr"
)

// Recognizer runs Tesseract on in-memory page images.
type Recognizer struct {
	Language       string
	TessdataPrefix string
}

// New creates a recognizer for the given language (e.g. "eng").
func New(language, tessdataPrefix string) *Recognizer {
	if language == "" {
		language = "eng"
	}
	return &Recognizer{Language: language, TessdataPrefix: tessdataPrefix}
}

// Recognize returns the page text and the mean word confidence scaled to [0,1].
func (r *Recognizer) Recognize(ctx context.Context, img []byte) (ocr.Recognition, error) {
	if err := ctx.Err(); err != nil {
		return ocr.Recognition{}, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if r.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(r.TessdataPrefix); err != nil {
			return ocr.Recognition{}, fmt.Errorf("tesseract: set tessdata prefix: %w", err)
		}
	}
	if err := client.SetLanguage(r.Language); err != nil {
		return ocr.Recognition{}, fmt.Errorf("tesseract: set language: %w", err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_AUTO); err != nil {
		return ocr.Recognition{}, fmt.Errorf("tesseract: set page segmentation: %w", err)
	}
	if err := client.SetImageFromBytes(img); err != nil {
		return ocr.Recognition{}, fmt.Errorf("tesseract: set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return ocr.Recognition{}, fmt.Errorf("tesseract: recognize: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return ocr.Recognition{Text: text}, nil
	}
	total := 0.0
	for _, b := range boxes {
		total += b.Confidence
	}
	conf := 0.0
	if len(boxes) > 0 {
		conf = total / float64(len(boxes)) / 100
	}

	return ocr.Recognition{Text: text, Confidence: conf}, nil
}
