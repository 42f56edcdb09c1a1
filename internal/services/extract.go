package services

import (
	"context"
	"fmt"
	"regexp"

	"github.com/docflowlabs/docproc/internal/blob"
	"github.com/docflowlabs/docproc/internal/inference"
	"github.com/docflowlabs/docproc/internal/models"
	"github.com/docflowlabs/docproc/internal/pipeline"
	"github.com/docflowlabs/docproc/internal/store"
)

// jsonFenceRe matches a model response wrapped in a ```json fence. Only the
// fenced body is stored when it matches.
var jsonFenceRe = regexp.MustCompile("(?s)```json\n(.*?)\n```")

// ExtractStage pulls the raw document from the blob store and asks the model
// for a structured key-value rendition of its content. The output is stored
// as opaque text; downstream stages never parse it.
type ExtractStage struct {
	blobs blob.Store
	model inference.Model
}

var _ pipeline.Stage = (*ExtractStage)(nil)

func NewExtractStage(blobs blob.Store, model inference.Model) *ExtractStage {
	return &ExtractStage{blobs: blobs, model: model}
}

func (s *ExtractStage) Name() models.StageName { return models.StageExtract }
func (s *ExtractStage) Expect() models.Status  { return models.StatusReceived }
func (s *ExtractStage) Result() models.Status  { return models.StatusExtracted }
func (s *ExtractStage) Next() models.StageName { return models.StageClassify }

func (s *ExtractStage) Ready(p *models.StagePayload) bool {
	return p.BlobRef != "" && p.MediaType != ""
}

func (s *ExtractStage) Transform(ctx context.Context, p *models.StagePayload) (store.Fields, *models.StagePayload, error) {
	data, err := s.blobs.Get(ctx, p.BlobRef)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch document bytes: %w", err)
	}

	attachment := inference.Attachment{MediaType: p.MediaType, Data: data}
	response, err := s.model.Infer(ctx, inference.ExtractInstruction, []inference.Attachment{attachment}, inference.ExtractMaxTokens)
	if err != nil {
		return nil, nil, fmt.Errorf("extraction inference failed: %w", err)
	}

	extracted := stripJSONFence(response)

	fields := store.Fields{"extractedData": extracted}
	next := &models.StagePayload{
		DocumentID:    p.DocumentID,
		ExtractedData: extracted,
	}
	return fields, next, nil
}

// stripJSONFence unwraps a fenced code block when present and returns the
// response verbatim otherwise. The result is deliberately not validated as
// JSON.
func stripJSONFence(response string) string {
	if m := jsonFenceRe.FindStringSubmatch(response); m != nil {
		return m[1]
	}
	return response
}
