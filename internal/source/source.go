// Package source reads statement input from a local path or a gs:// URI.
package source

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dvloznov/statement-parser/internal/config"
	"github.com/dvloznov/statement-parser/internal/logger"
)

const gcsScheme = "gs://"

// ObjectReader reads a whole object from a bucket.
type ObjectReader interface {
	ReadObject(ctx context.Context, bucket, object string) ([]byte, error)
}

// File is input read from a location.
type File struct {
	// Name is the base file name, used for format hints and output naming.
	Name string
	Data []byte
}

// Reader opens locations. The object reader is only used for gs:// URIs.
type Reader struct {
	objects ObjectReader
}

// NewReader creates a Reader backed by Cloud Storage for gs:// URIs.
func NewReader(cfg config.StorageConfig) *Reader {
	return &Reader{objects: NewGCSObjectReader(cfg)}
}

// NewReaderWith creates a Reader with a custom object reader.
func NewReaderWith(objects ObjectReader) *Reader {
	return &Reader{objects: objects}
}

// Read loads the file at location, a local path or gs://bucket/object.
func (r *Reader) Read(ctx context.Context, location string) (File, error) {
	log := logger.FromContext(ctx)

	if IsGCSURI(location) {
		bucket, object, err := ParseGCSURI(location)
		if err != nil {
			return File{}, err
		}
		data, err := r.objects.ReadObject(ctx, bucket, object)
		if err != nil {
			return File{}, fmt.Errorf("read %s: %w", location, err)
		}
		log.Debug().Str("bucket", bucket).Str("object", object).Int("bytes", len(data)).Msg("object read")
		return File{Name: FilenameFromGCSURI(location), Data: data}, nil
	}

	data, err := os.ReadFile(location)
	if err != nil {
		return File{}, fmt.Errorf("read %s: %w", location, err)
	}
	log.Debug().Str("path", location).Int("bytes", len(data)).Msg("file read")
	return File{Name: filepath.Base(location), Data: data}, nil
}

// IsGCSURI reports whether location uses the gs:// scheme.
func IsGCSURI(location string) bool {
	return strings.HasPrefix(location, gcsScheme)
}

// ParseGCSURI splits gs://bucket/path/to/object into its bucket and object.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !IsGCSURI(uri) {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, gcsScheme), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// FilenameFromGCSURI extracts the file name from a GCS URI.
// e.g., "gs://bucket/folder/file.pdf" → "file.pdf"
func FilenameFromGCSURI(uri string) string {
	trimmed := strings.TrimPrefix(uri, gcsScheme)
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}
	return path.Base(parts[1])
}
