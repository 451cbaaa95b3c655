package document

import (
	"bytes"
	"errors"
	"image"
	"path/filepath"
	"strings"

	// Raster decoders used to validate image input.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/gabriel-vasile/mimetype"
)

const mimePDF = "application/pdf"

var imageMIMETypes = []string{
	"image/png",
	"image/jpeg",
	"image/gif",
	"image/webp",
	"image/tiff",
	"image/bmp",
}

var imageExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".webp": true, ".tif": true, ".tiff": true, ".bmp": true,
}

// Sniff identifies the format of data. The name is consulted only when the
// content signature is inconclusive, and even then the bytes must decode.
func Sniff(data []byte, name string) (Format, string, error) {
	if len(data) == 0 {
		return "", "", &UnsupportedFormatError{Name: name, Err: errors.New("empty input")}
	}

	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	if bytes.Contains(head, []byte("%PDF-")) {
		return FormatPDF, mimePDF, nil
	}

	detected := mimetype.Detect(data)
	if detected.Is(mimePDF) {
		return FormatPDF, mimePDF, nil
	}
	for _, m := range imageMIMETypes {
		if detected.Is(m) {
			if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
				return "", detected.String(), &UnsupportedFormatError{Name: name, Detected: detected.String(), Err: err}
			}
			return FormatImage, m, nil
		}
	}

	if imageExtensions[strings.ToLower(filepath.Ext(name))] {
		if _, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			return FormatImage, "image/" + format, nil
		}
	}

	return "", detected.String(), &UnsupportedFormatError{Name: name, Detected: detected.String()}
}
