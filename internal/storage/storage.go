// Package storage selects where the finished document is written.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	gcsclient "cloud.google.com/go/storage"

	"github.com/JakeFAU/tabelog2kml/internal/storage/gcs"
	"github.com/JakeFAU/tabelog2kml/internal/storage/local"
)

// ContentTypeKML is the registered media type for KML documents.
const ContentTypeKML = "application/vnd.google-earth.kml+xml"

const gcsScheme = "gs://"

// BlobStore persists one named object.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Target is a parsed output location.
type Target struct {
	// Bucket is set for gs:// outputs.
	Bucket string
	// Dir is the local directory for filesystem outputs.
	Dir string
	// Object is the object name inside Bucket or Dir.
	Object string
}

// Remote reports whether the target lives in GCS.
func (t Target) Remote() bool { return t.Bucket != "" }

// ParseTarget splits an output setting into a bucket/object pair for
// gs://bucket/object values or a directory/file pair for local paths.
func ParseTarget(output string) (Target, error) {
	output = strings.TrimSpace(output)
	if output == "" {
		return Target{}, errors.New("output is empty")
	}
	if rest, ok := strings.CutPrefix(output, gcsScheme); ok {
		bucket, object, found := strings.Cut(rest, "/")
		if !found || bucket == "" || strings.Trim(object, "/") == "" {
			return Target{}, fmt.Errorf("output %q must look like gs://bucket/object", output)
		}
		return Target{Bucket: bucket, Object: object}, nil
	}
	if strings.HasSuffix(output, string(filepath.Separator)) {
		return Target{}, fmt.Errorf("output %q names a directory", output)
	}
	return Target{Dir: filepath.Dir(output), Object: filepath.Base(output)}, nil
}

// Open builds the BlobStore for t. The returned close function releases any
// client the store holds.
func Open(ctx context.Context, t Target) (BlobStore, func() error, error) {
	if !t.Remote() {
		store, err := local.New(local.Config{BaseDir: t.Dir})
		if err != nil {
			return nil, nil, fmt.Errorf("open local output: %w", err)
		}
		return store, func() error { return nil }, nil
	}

	client, err := gcsclient.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	store, err := gcs.New(client, gcs.Config{Bucket: t.Bucket})
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("open gcs output: %w", err)
	}
	return store, client.Close, nil
}
