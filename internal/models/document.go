package models

import (
	"fmt"
	"time"
)

// MediaType identifies the format of a submitted document. Only the three
// types below are accepted at ingest.
type MediaType string

const (
	MediaTypeJPEG MediaType = "image/jpeg"
	MediaTypePNG  MediaType = "image/png"
	MediaTypePDF  MediaType = "application/pdf"
)

// Valid reports whether the media type is one of the supported formats.
func (m MediaType) Valid() bool {
	switch m {
	case MediaTypeJPEG, MediaTypePNG, MediaTypePDF:
		return true
	}
	return false
}

// Status is the lifecycle state of a document record. It only moves forward
// through the chain below; COMPLETED and FAILED are terminal.
type Status string

const (
	StatusReceived   Status = "RECEIVED"
	StatusExtracted  Status = "EXTRACTED"
	StatusClassified Status = "CLASSIFIED"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Terminal reports whether no further transitions are permitted from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// successor maps each non-terminal status to the only status a successful
// stage run may advance it to.
var successor = map[Status]Status{
	StatusReceived:   StatusExtracted,
	StatusExtracted:  StatusClassified,
	StatusClassified: StatusCompleted,
}

// CanAdvanceTo reports whether a transition from s to next is legal. Success
// transitions must follow the chain exactly; FAILED is reachable from any
// non-terminal state.
func (s Status) CanAdvanceTo(next Status) bool {
	if s.Terminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	return successor[s] == next
}

// DocumentRecord is the persisted state and result accumulator for one
// submitted document. It is created by ingest and mutated only through the
// record store's conditional update, so each stage's fields are written at
// most once.
type DocumentRecord struct {
	DocumentID               string     `firestore:"documentId" json:"documentId"`
	FileName                 string     `firestore:"fileName" json:"fileName"`
	MediaType                MediaType  `firestore:"mediaType" json:"mediaType"`
	BlobRef                  string     `firestore:"blobRef" json:"blobRef"`
	Status                   Status     `firestore:"status" json:"status"`
	PageCount                int        `firestore:"pageCount,omitempty" json:"pageCount,omitempty"`
	ExtractedData            string     `firestore:"extractedData,omitempty" json:"extractedData,omitempty"`
	Classification           string     `firestore:"classification,omitempty" json:"classification,omitempty"`
	ClassificationConfidence int        `firestore:"classificationConfidence,omitempty" json:"classificationConfidence,omitempty"`
	Summary                  string     `firestore:"summary,omitempty" json:"summary,omitempty"`
	UploadTimestamp          time.Time  `firestore:"uploadTimestamp" json:"uploadTimestamp"`
	CompletionTimestamp      *time.Time `firestore:"completionTimestamp,omitempty" json:"completionTimestamp,omitempty"`
	ErrorMessage             string     `firestore:"errorMessage,omitempty" json:"errorMessage,omitempty"`
}

// Validate checks the internal consistency of a record before it is created.
func (r *DocumentRecord) Validate() error {
	if r.DocumentID == "" {
		return fmt.Errorf("documentId must not be empty")
	}
	if r.FileName == "" {
		return fmt.Errorf("fileName must not be empty")
	}
	if !r.MediaType.Valid() {
		return fmt.Errorf("unsupported media type %q", r.MediaType)
	}
	if r.BlobRef == "" {
		return fmt.Errorf("blobRef must not be empty")
	}
	if r.UploadTimestamp.IsZero() {
		return fmt.Errorf("uploadTimestamp must be set")
	}
	return nil
}
