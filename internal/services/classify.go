package services

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/docflowlabs/docproc/internal/inference"
	"github.com/docflowlabs/docproc/internal/models"
	"github.com/docflowlabs/docproc/internal/pipeline"
	"github.com/docflowlabs/docproc/internal/store"
)

const (
	// DefaultCategory and DefaultConfidence are used when the model's reply
	// doesn't match the expected shape. Malformed output degrades to these
	// defaults instead of failing the stage: classification quality is
	// best-effort, pipeline liveness is not.
	DefaultCategory   = "Other"
	DefaultConfidence = 50
)

var (
	categoryRe   = regexp.MustCompile(`Category: ([^,]+)`)
	confidenceRe = regexp.MustCompile(`Confidence: (\d+)`)
)

// ClassifyStage assigns the extracted text one of the closed categories.
type ClassifyStage struct {
	model inference.Model
}

var _ pipeline.Stage = (*ClassifyStage)(nil)

func NewClassifyStage(model inference.Model) *ClassifyStage {
	return &ClassifyStage{model: model}
}

func (s *ClassifyStage) Name() models.StageName { return models.StageClassify }
func (s *ClassifyStage) Expect() models.Status  { return models.StatusExtracted }
func (s *ClassifyStage) Result() models.Status  { return models.StatusClassified }
func (s *ClassifyStage) Next() models.StageName { return models.StageSummarize }

func (s *ClassifyStage) Ready(p *models.StagePayload) bool {
	return p.ExtractedData != ""
}

func (s *ClassifyStage) Transform(ctx context.Context, p *models.StagePayload) (store.Fields, *models.StagePayload, error) {
	prompt := inference.ClassifyPrompt(p.ExtractedData)
	response, err := s.model.Infer(ctx, prompt, nil, inference.ClassifyMaxTokens)
	if err != nil {
		return nil, nil, fmt.Errorf("classification inference failed: %w", err)
	}

	category, confidence := ParseClassification(response)

	fields := store.Fields{
		"classification":           category,
		"classificationConfidence": confidence,
	}
	next := &models.StagePayload{
		DocumentID:     p.DocumentID,
		ExtractedData:  p.ExtractedData,
		Classification: category,
	}
	return fields, next, nil
}

// ParseClassification extracts the category and confidence from a reply of
// the shape "Category: <name>, Confidence: <0-100>". Either part falling
// outside that shape yields its default; out-of-range confidence values are
// clamped.
func ParseClassification(response string) (string, int) {
	category := DefaultCategory
	if m := categoryRe.FindStringSubmatch(response); m != nil {
		if c := strings.TrimSpace(m[1]); c != "" {
			category = c
		}
	}

	confidence := DefaultConfidence
	if m := confidenceRe.FindStringSubmatch(response); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			if v > 100 {
				v = 100
			}
			confidence = v
		}
	}
	return category, confidence
}
