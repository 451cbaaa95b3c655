package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/dvloznov/statement-parser/internal/logger"
)

// Rasterizer renders PDF pages to images. Implementations may return images
// for a subset of pages; PageImage.Index identifies each one.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdf []byte) ([]PageImage, error)
}

// PopplerRasterizer renders every page with pdftoppm.
type PopplerRasterizer struct {
	Path   string
	DPI    int
	Runner Runner
}

// NewPopplerRasterizer creates a rasterizer that shells out to pdftoppm.
func NewPopplerRasterizer(path string, dpi int) *PopplerRasterizer {
	if path == "" {
		path = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = 200
	}
	return &PopplerRasterizer{Path: path, DPI: dpi, Runner: ExecRunner{}}
}

var ppmPageRe = regexp.MustCompile(`-(\d+)\.png$`)

func (r *PopplerRasterizer) Rasterize(ctx context.Context, pdf []byte) ([]PageImage, error) {
	dir, err := os.MkdirTemp("", "statement-pages-")
	if err != nil {
		return nil, fmt.Errorf("poppler rasterize: create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "in.pdf")
	if err := os.WriteFile(in, pdf, 0o600); err != nil {
		return nil, fmt.Errorf("poppler rasterize: write input: %w", err)
	}

	prefix := filepath.Join(dir, "page")
	if _, _, err := r.Runner.Run(ctx, r.Path, "-r", strconv.Itoa(r.DPI), "-png", in, prefix); err != nil {
		return nil, fmt.Errorf("poppler rasterize: %s: %w", r.Path, err)
	}

	files, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, fmt.Errorf("poppler rasterize: list pages: %w", err)
	}

	pages := make([]PageImage, 0, len(files))
	for _, f := range files {
		m := ppmPageRe.FindStringSubmatch(f)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("poppler rasterize: read page %d: %w", n, err)
		}
		pages = append(pages, PageImage{Index: n - 1, Data: data, MIMEType: "image/png"})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })

	if len(pages) == 0 {
		return nil, errors.New("poppler rasterize: no pages rendered")
	}
	return pages, nil
}

// PdfcpuRasterizer uses the largest embedded image of each page. Scanned
// statements usually carry one full-page image per page; text-only pages
// yield nothing.
type PdfcpuRasterizer struct{}

var pdfcpuImageTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"webp": "image/webp",
}

func (PdfcpuRasterizer) Rasterize(ctx context.Context, pdf []byte) ([]PageImage, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	best := map[int]PageImage{}
	digest := func(img model.Image, _ bool, _ int) error {
		mimeType, ok := pdfcpuImageTypes[img.FileType]
		if !ok {
			return nil
		}
		data, err := io.ReadAll(img)
		if err != nil {
			return err
		}
		idx := img.PageNr - 1
		if cur, ok := best[idx]; !ok || len(data) > len(cur.Data) {
			best[idx] = PageImage{Index: idx, Data: data, MIMEType: mimeType}
		}
		return nil
	}

	if err := api.ExtractImages(bytes.NewReader(pdf), nil, digest, conf); err != nil {
		return nil, fmt.Errorf("pdfcpu rasterize: extract images: %w", err)
	}
	if len(best) == 0 {
		return nil, errors.New("pdfcpu rasterize: no embedded page images")
	}

	pages := make([]PageImage, 0, len(best))
	for _, p := range best {
		pages = append(pages, p)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })

	log := logger.FromContext(ctx)

	log.Debug().Int("pages", len(pages)).Msg("extracted embedded page images")
	return pages, nil
}

// Chain tries rasterizers in order and returns the first non-empty result.
type Chain []Rasterizer

func (c Chain) Rasterize(ctx context.Context, pdf []byte) ([]PageImage, error) {
	var errs []error
	for _, r := range c {
		pages, err := r.Rasterize(ctx, pdf)
		if err == nil && len(pages) > 0 {
			return pages, nil
		}
		if err != nil {
			errs = append(errs, err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	if len(errs) == 0 {
		return nil, errors.New("no rasterizer configured")
	}
	return nil, errors.Join(errs...)
}
