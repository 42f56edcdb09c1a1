package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/docflowlabs/docproc/internal/blob"
	"github.com/docflowlabs/docproc/internal/models"
	"github.com/docflowlabs/docproc/internal/pipeline"
)

// ErrInvalidInput marks client-visible submission errors: unsupported media
// types, empty content, or PDF bytes that don't parse. Nothing is persisted
// when it is returned.
var ErrInvalidInput = errors.New("invalid input")

// recordCreator is the slice of the record store ingest needs.
type recordCreator interface {
	Create(ctx context.Context, rec *models.DocumentRecord) error
}

// IngestService validates a submission, persists the blob and the initial
// record, and fires the extract stage. It is the only writer of new records.
type IngestService struct {
	records recordCreator
	blobs   blob.Store
	trigger pipeline.Trigger
	now     func() time.Time
}

func NewIngestService(records recordCreator, blobs blob.Store, trigger pipeline.Trigger) *IngestService {
	return &IngestService{records: records, blobs: blobs, trigger: trigger, now: time.Now}
}

// Submit runs the ingest stage synchronously and returns the new document id
// the caller polls with. The extract trigger is fire-and-forget; its failure
// is logged but does not fail the submission, since the sweeper re-fires
// stalled records.
func (s *IngestService) Submit(ctx context.Context, fileName string, content []byte, mediaType models.MediaType) (string, error) {
	if fileName == "" {
		return "", fmt.Errorf("%w: fileName must not be empty", ErrInvalidInput)
	}
	if len(content) == 0 {
		return "", fmt.Errorf("%w: file content must not be empty", ErrInvalidInput)
	}
	if !mediaType.Valid() {
		return "", fmt.Errorf("%w: unsupported media type %q, only JPEG, PNG and PDF are supported", ErrInvalidInput, mediaType)
	}

	pageCount := 0
	if mediaType == models.MediaTypePDF {
		n, err := pdfPageCount(content)
		if err != nil {
			return "", fmt.Errorf("%w: file is not a readable PDF: %v", ErrInvalidInput, err)
		}
		pageCount = n
	}

	documentID := uuid.NewString()
	blobRef := fmt.Sprintf("documents/%s/%s", documentID, fileName)
	logCtx := slog.With("documentId", documentID, "fileName", fileName)

	if err := s.blobs.Put(ctx, blobRef, content, mediaType); err != nil {
		logCtx.Error("Failed to store document bytes.", "error", err)
		return "", fmt.Errorf("failed to store document bytes: %w", err)
	}

	rec := &models.DocumentRecord{
		DocumentID:      documentID,
		FileName:        fileName,
		MediaType:       mediaType,
		BlobRef:         blobRef,
		Status:          models.StatusReceived,
		PageCount:       pageCount,
		UploadTimestamp: s.now().UTC(),
	}
	if err := s.records.Create(ctx, rec); err != nil {
		logCtx.Error("Failed to create document record.", "error", err)
		return "", fmt.Errorf("failed to create document record: %w", err)
	}
	logCtx.Info("Document record created.", "mediaType", string(mediaType), "bytes", len(content))

	payload := &models.StagePayload{
		DocumentID: documentID,
		BlobRef:    blobRef,
		MediaType:  mediaType,
	}
	if err := s.trigger.Trigger(ctx, models.StageExtract, payload); err != nil {
		logCtx.Error("Failed to trigger extract stage.", "error", err)
	}
	return documentID, nil
}

// pdfPageCount validates the PDF structure and returns its page count.
// Validation is relaxed, matching what scanners and phone cameras emit.
func pdfPageCount(content []byte) (int, error) {
	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed
	return api.PageCount(bytes.NewReader(content), conf)
}
