// Package output writes artifacts to disk as JSON and, optionally, as an
// Excel workbook.
package output

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dvloznov/statement-parser/internal/domain"
	"github.com/dvloznov/statement-parser/internal/logger"
)

const timestampLayout = "20060102_150405"

// Paths lists the files written for one artifact.
type Paths struct {
	JSON string
	XLSX string
}

// Writer saves artifacts next to each other in Dir.
type Writer struct {
	Dir  string
	XLSX bool
	// Now is used for file name timestamps; nil means time.Now.
	Now func() time.Time
}

// Marshal renders an artifact as indented JSON without HTML escaping.
func Marshal(a domain.Artifact) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(a); err != nil {
		return nil, fmt.Errorf("marshal artifact: %w", err)
	}
	return buf.Bytes(), nil
}

// Stem returns the input file name without directory and extension.
func Stem(name string) string {
	base := filepath.Base(name)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		return "statement"
	}
	return stem
}

// FileName builds "<stem>_parsed_<YYYYMMDD_HHMMSS><ext>".
func FileName(inputName string, ts time.Time, ext string) string {
	return fmt.Sprintf("%s_parsed_%s%s", Stem(inputName), ts.Format(timestampLayout), ext)
}

// Write saves the artifact for inputName and returns the written paths.
func (w *Writer) Write(ctx context.Context, inputName string, a domain.Artifact) (Paths, error) {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	ts := now()

	dir := w.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("create output dir %s: %w", dir, err)
	}

	data, err := Marshal(a)
	if err != nil {
		return Paths{}, err
	}
	var paths Paths
	paths.JSON = filepath.Join(dir, FileName(inputName, ts, ".json"))
	if err := os.WriteFile(paths.JSON, data, 0o644); err != nil {
		return Paths{}, fmt.Errorf("write %s: %w", paths.JSON, err)
	}

	if w.XLSX {
		book, err := Workbook(a)
		if err != nil {
			return paths, err
		}
		paths.XLSX = filepath.Join(dir, FileName(inputName, ts, ".xlsx"))
		if err := os.WriteFile(paths.XLSX, book, 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", paths.XLSX, err)
		}
	}

	log := logger.FromContext(ctx)

	log.Info().
		Str("json", paths.JSON).
		Str("xlsx", paths.XLSX).
		Msg("artifact written")
	return paths, nil
}
