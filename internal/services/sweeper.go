package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/docflowlabs/docproc/internal/models"
	"github.com/docflowlabs/docproc/internal/pipeline"
	"github.com/docflowlabs/docproc/internal/store"
)

// DefaultStaleAfter is how long a record may sit in a non-terminal status
// before the sweeper considers its chain stalled.
const DefaultStaleAfter = 10 * time.Minute

// stageFor maps a non-terminal status to the stage whose trigger may have
// been lost after that status was written.
var stageFor = map[models.Status]models.StageName{
	models.StatusReceived:   models.StageExtract,
	models.StatusExtracted:  models.StageClassify,
	models.StatusClassified: models.StageSummarize,
}

// SweeperService re-fires the trigger for records stuck in a non-terminal
// status. A stage trigger lost in transport after a successful state write
// would otherwise stall the chain forever; re-triggering is safe because the
// transition guard makes duplicate invocations no-ops.
type SweeperService struct {
	records    store.RecordStore
	trigger    pipeline.Trigger
	staleAfter time.Duration
	now        func() time.Time
}

func NewSweeperService(records store.RecordStore, trigger pipeline.Trigger, staleAfter time.Duration) *SweeperService {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &SweeperService{records: records, trigger: trigger, staleAfter: staleAfter, now: time.Now}
}

// Sweep scans every record and re-triggers the stage implied by each stale
// non-terminal status. Returns the number of re-fired triggers.
func (s *SweeperService) Sweep(ctx context.Context) (int, error) {
	records, err := s.records.ScanAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to scan records: %w", err)
	}

	cutoff := s.now().Add(-s.staleAfter)
	refired := 0
	for _, rec := range records {
		if rec.Status.Terminal() {
			continue
		}
		if rec.UploadTimestamp.After(cutoff) {
			continue
		}
		stage, ok := stageFor[rec.Status]
		if !ok {
			slog.Warn("Record has unknown non-terminal status, skipping.", "documentId", rec.DocumentID, "status", string(rec.Status))
			continue
		}

		// A bare id payload forces the receiving stage to re-read the record,
		// so the sweep never forwards stale field copies.
		payload := &models.StagePayload{DocumentID: rec.DocumentID}
		if err := s.trigger.Trigger(ctx, stage, payload); err != nil {
			slog.Error("Failed to re-trigger stalled stage.", "documentId", rec.DocumentID, "stage", string(stage), "error", err)
			continue
		}
		slog.Info("Re-triggered stalled stage.", "documentId", rec.DocumentID, "stage", string(stage), "status", string(rec.Status))
		refired++
	}
	return refired, nil
}
