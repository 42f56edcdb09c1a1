package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/docflowlabs/docproc/internal/models"
)

// GCSStore stores blobs as objects in a single GCS bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore wraps an existing storage client. The caller owns the client's
// lifecycle.
func NewGCSStore(client *storage.Client, bucket string) (*GCSStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client must be provided")
	}
	if bucket == "" {
		return nil, fmt.Errorf("bucket name must not be empty")
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

// Put writes the object only if it doesn't already exist. A repeated put of
// the same key is treated as success: document ids are unique, so an existing
// object can only be the result of a retried ingest.
func (s *GCSStore) Put(ctx context.Context, key string, data []byte, mediaType models.MediaType) error {
	writer := s.client.Bucket(s.bucket).Object(key).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = string(mediaType)

	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write blob %s: %w", key, err)
	}
	if err := writer.Close(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == 412 {
			slog.Info("Blob already exists, skipping write.", "key", key)
			return nil
		}
		return fmt.Errorf("failed to finalize blob write for %s: %w", key, err)
	}
	return nil
}

func (s *GCSStore) Get(ctx context.Context, key string) ([]byte, error) {
	reader, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to open blob %s: %w", key, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", key, err)
	}
	return data, nil
}
