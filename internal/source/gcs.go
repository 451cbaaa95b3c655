package source

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/dvloznov/statement-parser/internal/config"
)

const (
	userAgent   = "statement-parser"
	readTimeout = 2 * time.Minute
)

// GCSObjectReader reads objects from Cloud Storage. Credentials come from
// the configured file or Application Default Credentials.
type GCSObjectReader struct {
	opts []option.ClientOption
}

// NewGCSObjectReader creates a reader for the given storage configuration.
func NewGCSObjectReader(cfg config.StorageConfig) *GCSObjectReader {
	opts := []option.ClientOption{option.WithUserAgent(userAgent)}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	return &GCSObjectReader{opts: opts}
}

// ReadObject downloads the object bytes.
func (g *GCSObjectReader) ReadObject(ctx context.Context, bucket, object string) ([]byte, error) {
	client, err := storage.NewClient(ctx, g.opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	rc, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read object %s/%s: %w", bucket, object, err)
	}
	return data, nil
}
