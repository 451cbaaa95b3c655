// Package document turns raw statement bytes into an ordered list of page
// images. It sniffs the format from content, never from the file name alone.
package document

import (
	"fmt"
)

// Format is the container format of an input document.
type Format string

const (
	FormatPDF   Format = "pdf"
	FormatImage Format = "image"
)

// PageImage is one rendered page. Data may be empty when no renderer could
// produce an image for the page; the page is still listed so page numbering
// stays intact.
type PageImage struct {
	Index    int
	Data     []byte
	MIMEType string
	// Rotation is the page's declared rotation in degrees (PDF /Rotate).
	Rotation int
	// TextLayer is the embedded PDF text for the page, if any.
	TextLayer string
}

// Document is a loaded input.
type Document struct {
	Name     string
	Format   Format
	MIMEType string
	Raw      []byte
	Pages    []PageImage
}

// UnsupportedFormatError is returned for input that is not a readable PDF or
// raster image. It is the only fatal error of a run.
type UnsupportedFormatError struct {
	Name     string
	Detected string
	Err      error
}

func (e *UnsupportedFormatError) Error() string {
	msg := fmt.Sprintf("unsupported document %q", e.Name)
	if e.Detected != "" {
		msg += fmt.Sprintf(" (detected %s)", e.Detected)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UnsupportedFormatError) Unwrap() error { return e.Err }
