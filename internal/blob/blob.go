// Package blob holds the byte storage contract for raw documents, with a GCS
// backend for deployment and a filesystem backend for the local server.
package blob

import (
	"context"
	"errors"

	"github.com/docflowlabs/docproc/internal/models"
)

// ErrNotFound is returned by Get for an unknown key.
var ErrNotFound = errors.New("blob not found")

// Store is the raw-bytes storage contract consumed by the pipeline. Keys are
// opaque to the stages; ingest derives them from the document id.
type Store interface {
	// Put stores data under key. Writing the same key twice must not fail, so
	// ingest stays safe under platform-level request retries.
	Put(ctx context.Context, key string, data []byte, mediaType models.MediaType) error

	// Get returns the bytes stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
}
