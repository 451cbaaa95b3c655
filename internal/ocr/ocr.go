// Package ocr recovers text from page images when the remote model is not
// available. Recognition fails soft: a page that cannot be read yields empty
// text with zero confidence and a note.
package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/dvloznov/statement-parser/internal/document"
	"github.com/dvloznov/statement-parser/internal/logger"
)

// Recognizer reads text from a single page image. Confidence is in [0,1].
type Recognizer interface {
	Recognize(ctx context.Context, img []byte) (Recognition, error)
}

// Recognition is the raw output of a Recognizer.
type Recognition struct {
	Text       string
	Confidence float64
}

// Page sources.
const (
	SourceTextLayer = "text_layer"
	SourceOCR       = "ocr"
	SourceNone      = "none"
)

// PageResult is the recognized text of one page.
type PageResult struct {
	Index      int
	Text       string
	Confidence float64
	Source     string
}

// Result is the recognized text of a whole document.
type Result struct {
	Pages []PageResult
	// Confidence is the mean page confidence, 0 for a document without pages.
	Confidence       float64
	RotationWarnings []int
	Notes            []string
}

// Text joins the page texts in page order.
func (r Result) Text() string {
	parts := make([]string, 0, len(r.Pages))
	for _, p := range r.Pages {
		if p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Options tunes the Engine.
type Options struct {
	Concurrency int
	// MinTextDensity is the alphanumeric runes per KiB of image data under
	// which an OCR'd page is reported as possibly rotated.
	MinTextDensity float64
}

// Engine runs recognition over all pages of a document.
type Engine struct {
	recognizer Recognizer
	opts       Options
}

// NewEngine creates an engine. A nil recognizer limits it to PDF text layers.
func NewEngine(r Recognizer, opts Options) *Engine {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Engine{recognizer: r, opts: opts}
}

// RecognizePages recognizes every page, concurrently up to the configured
// limit. Results keep page order.
func (e *Engine) RecognizePages(ctx context.Context, pages []document.PageImage) Result {
	log := logger.FromContext(ctx)
	start := time.Now()

	results := make([]PageResult, len(pages))
	notes := make([][]string, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)
	for i, p := range pages {
		g.Go(func() error {
			res, note := e.recognizePage(gctx, p)
			results[i] = res
			if note != "" {
				notes[i] = append(notes[i], note)
			}
			return nil
		})
	}
	_ = g.Wait()

	out := Result{Pages: results}
	total := 0.0
	for i, p := range pages {
		total += results[i].Confidence
		out.Notes = append(out.Notes, notes[i]...)
		if e.possiblyRotated(p, results[i]) {
			out.RotationWarnings = append(out.RotationWarnings, p.Index)
		}
	}
	if len(pages) > 0 {
		out.Confidence = total / float64(len(pages))
	}

	log.Info().
		Int("pages", len(pages)).
		Float64("confidence", out.Confidence).
		Ints("rotation_warnings", out.RotationWarnings).
		Int64("elapsed_ms", time.Since(start).Milliseconds()).
		Msg("local recognition finished")

	return out
}

func (e *Engine) recognizePage(ctx context.Context, p document.PageImage) (PageResult, string) {
	res := PageResult{Index: p.Index, Source: SourceNone}

	if IsReadableText(p.TextLayer) {
		res.Text = Normalize(p.TextLayer)
		res.Confidence = 1
		res.Source = SourceTextLayer
		return res, ""
	}

	if len(p.Data) == 0 || e.recognizer == nil {
		return res, fmt.Sprintf("page %d: no image available for recognition", p.Index+1)
	}
	if err := ctx.Err(); err != nil {
		return res, fmt.Sprintf("page %d: recognition skipped: %v", p.Index+1, err)
	}

	rec, err := e.recognizer.Recognize(ctx, p.Data)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Int("page", p.Index+1).Msg("page recognition failed")
		return res, fmt.Sprintf("page %d: no recognizable text", p.Index+1)
	}

	res.Text = Normalize(rec.Text)
	res.Confidence = clamp01(rec.Confidence)
	res.Source = SourceOCR
	if res.Text == "" {
		res.Confidence = 0
		return res, fmt.Sprintf("page %d: no recognizable text", p.Index+1)
	}
	if res.Confidence == 0 {
		return res, fmt.Sprintf("page %d: no data (zero recognition confidence)", p.Index+1)
	}
	return res, ""
}

// possiblyRotated flags pages declared rotated, and OCR'd pages whose text
// density is far below what an upright page of that size would produce.
func (e *Engine) possiblyRotated(p document.PageImage, res PageResult) bool {
	if p.Rotation != 0 {
		return true
	}
	if res.Source != SourceOCR || e.opts.MinTextDensity <= 0 {
		return false
	}
	alnum := 0
	for _, r := range res.Text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
	}
	kib := float64(len(p.Data)) / 1024
	if kib < 1 {
		kib = 1
	}
	return float64(alnum)/kib < e.opts.MinTextDensity
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
