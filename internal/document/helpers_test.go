package document

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"
)

type testPage struct {
	text     string
	rotation int
}

// buildPDF writes a small, well-formed PDF with one text line per page.
func buildPDF(t *testing.T, pages ...testPage) []byte {
	t.Helper()

	var objs []string
	add := func(body string) int {
		objs = append(objs, body)
		return len(objs)
	}

	add("<< /Type /Catalog /Pages 2 0 R >>")
	add("") // pages tree, filled below
	font := add("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")

	var kids []string
	for _, p := range pages {
		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", p.text)
		content := add(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
		page := add(fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Rotate %d /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>",
			p.rotation, font, content))
		kids = append(kids, fmt.Sprintf("%d 0 R", page))
	}
	objs[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", joinSpace(kids), len(kids))

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, body := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

func joinSpace(parts []string) string {
	var b bytes.Buffer
	for i, p := range parts {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p)
	}
	return b.String()
}

func buildPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		img.Set(x, x, color.Black)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// MockRasterizer is a test double for Rasterizer.
type MockRasterizer struct {
	RasterizeFunc func(ctx context.Context, pdf []byte) ([]PageImage, error)
	calls         int
}

func (m *MockRasterizer) Rasterize(ctx context.Context, pdf []byte) ([]PageImage, error) {
	m.calls++
	if m.RasterizeFunc != nil {
		return m.RasterizeFunc(ctx, pdf)
	}
	return nil, nil
}

// MockRunner is a test double for Runner.
type MockRunner struct {
	RunFunc func(ctx context.Context, name string, args ...string) ([]byte, []byte, error)
}

func (m *MockRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	if m.RunFunc != nil {
		return m.RunFunc(ctx, name, args...)
	}
	return nil, nil, nil
}
