// Package store defines the durable record store the pipeline shares, and its
// Firestore and Badger backends. The conditional update is the only mutation
// path after creation; it is what makes duplicate stage invocations harmless.
package store

import (
	"context"
	"errors"

	"github.com/docflowlabs/docproc/internal/models"
)

var (
	// ErrNotFound is returned when no record exists for a document id.
	ErrNotFound = errors.New("document record not found")
	// ErrAlreadyExists is returned by Create when the document id is taken.
	ErrAlreadyExists = errors.New("document record already exists")
	// ErrPreconditionFailed is returned by UpdateIf when the stored status does
	// not match the expected status. Callers treat it as a no-op signal, not a
	// failure.
	ErrPreconditionFailed = errors.New("record status does not match precondition")
)

// Fields is the set of named record fields a stage writes on success,
// alongside the status transition.
type Fields map[string]any

// RecordStore is the durable keyed store holding one DocumentRecord per
// submitted document. Implementations must make UpdateIf atomic with respect
// to concurrent updates of the same record.
type RecordStore interface {
	// Create persists a new record. Returns ErrAlreadyExists if the id is taken.
	Create(ctx context.Context, rec *models.DocumentRecord) error

	// UpdateIf applies fields and advances the status to next, but only when
	// the stored status equals expected. A mismatch returns
	// ErrPreconditionFailed and leaves the record untouched.
	UpdateIf(ctx context.Context, documentID string, expected models.Status, fields Fields, next models.Status) error

	// Get returns the record for the given id, or ErrNotFound.
	Get(ctx context.Context, documentID string) (*models.DocumentRecord, error)

	// ScanAll returns every record. Order is not guaranteed.
	ScanAll(ctx context.Context) ([]*models.DocumentRecord, error)
}
