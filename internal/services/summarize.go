package services

import (
	"context"
	"fmt"
	"time"

	"github.com/docflowlabs/docproc/internal/inference"
	"github.com/docflowlabs/docproc/internal/models"
	"github.com/docflowlabs/docproc/internal/pipeline"
	"github.com/docflowlabs/docproc/internal/store"
)

// SummarizeStage produces the final summary, conditioned on the classified
// document type, and closes the record as COMPLETED.
type SummarizeStage struct {
	model inference.Model
	now   func() time.Time
}

var _ pipeline.Stage = (*SummarizeStage)(nil)

func NewSummarizeStage(model inference.Model) *SummarizeStage {
	return &SummarizeStage{model: model, now: time.Now}
}

func (s *SummarizeStage) Name() models.StageName { return models.StageSummarize }
func (s *SummarizeStage) Expect() models.Status  { return models.StatusClassified }
func (s *SummarizeStage) Result() models.Status  { return models.StatusCompleted }
func (s *SummarizeStage) Next() models.StageName { return "" }

func (s *SummarizeStage) Ready(p *models.StagePayload) bool {
	return p.ExtractedData != "" && p.Classification != ""
}

func (s *SummarizeStage) Transform(ctx context.Context, p *models.StagePayload) (store.Fields, *models.StagePayload, error) {
	prompt := inference.SummarizePrompt(p.Classification, p.ExtractedData)
	summary, err := s.model.Infer(ctx, prompt, nil, inference.SummarizeMaxTokens)
	if err != nil {
		return nil, nil, fmt.Errorf("summarization inference failed: %w", err)
	}

	fields := store.Fields{
		"summary":             summary,
		"completionTimestamp": s.now().UTC(),
	}
	return fields, nil, nil
}
