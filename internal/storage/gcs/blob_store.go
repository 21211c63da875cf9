// Package gcs writes finished documents to Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/JakeFAU/tabelog2kml/internal/hash/sha256"
)

// MetadataSHA256 is the custom metadata key holding the hex SHA-256 of the
// uploaded document.
const MetadataSHA256 = "sha256"

// MetadataGenerator names the tool that produced the object.
const MetadataGenerator = "generator"

const generator = "tabelog2kml"

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
	// CacheControl is sent with every object; empty means "no-cache".
	CacheControl string
}

// BlobStore uploads documents to a configured GCS bucket.
type BlobStore struct {
	client       *storage.Client
	bucket       string
	cacheControl string
}

// New creates a GCS-backed blob store.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, errors.New("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	cacheControl := cfg.CacheControl
	if cacheControl == "" {
		cacheControl = "no-cache"
	}
	return &BlobStore{
		client:       client,
		bucket:       cfg.Bucket,
		cacheControl: cacheControl,
	}, nil
}

// PutObject uploads the document as a downloadable attachment. The upload
// carries a CRC32C checksum, so GCS rejects a body corrupted in transit, and
// the document digest is stored under MetadataSHA256.
func (s *BlobStore) PutObject(ctx context.Context, name string, contentType string, r io.Reader) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", errors.New("path is required")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}

	writer := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	writer.ContentType = contentType
	writer.ContentDisposition = fmt.Sprintf("attachment; filename=%q", path.Base(name))
	writer.CacheControl = s.cacheControl
	writer.CRC32C = crc32.Checksum(data, castagnoli)
	writer.SendCRC32C = true
	writer.Metadata = map[string]string{
		MetadataSHA256:    sha256.Digest(data),
		MetadataGenerator: generator,
	}

	if _, err := writer.Write(data); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return "", fmt.Errorf("upload %s: %w (close writer: %v)", name, err, closeErr)
		}
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalize %s: %w", name, err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, name), nil
}
