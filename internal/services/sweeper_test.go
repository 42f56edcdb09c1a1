package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docflowlabs/docproc/internal/models"
	"github.com/docflowlabs/docproc/internal/store"
)

func seedSweepRecord(t *testing.T, s store.RecordStore, id string, status models.Status, uploaded time.Time) {
	t.Helper()
	ctx := context.Background()
	rec := &models.DocumentRecord{
		DocumentID:      id,
		FileName:        "scan.png",
		MediaType:       models.MediaTypePNG,
		BlobRef:         "documents/" + id + "/scan.png",
		Status:          models.StatusReceived,
		UploadTimestamp: uploaded,
	}
	require.NoError(t, s.Create(ctx, rec))

	cur := models.StatusReceived
	for cur != status {
		next := models.StatusExtracted
		switch cur {
		case models.StatusExtracted:
			next = models.StatusClassified
		case models.StatusClassified:
			next = models.StatusCompleted
		}
		if status == models.StatusFailed {
			next = models.StatusFailed
		}
		require.NoError(t, s.UpdateIf(ctx, id, cur, nil, next))
		cur = next
	}
}

func TestSweeperRefiresStalledRecords(t *testing.T) {
	records := newIngestStore(t)
	trigger := &recordingTrigger{}
	svc := NewSweeperService(records, trigger, 10*time.Minute)

	now := time.Now().UTC()
	svc.now = func() time.Time { return now }
	stale := now.Add(-time.Hour)

	seedSweepRecord(t, records, "stuck-received", models.StatusReceived, stale)
	seedSweepRecord(t, records, "stuck-extracted", models.StatusExtracted, stale)
	seedSweepRecord(t, records, "stuck-classified", models.StatusClassified, stale)
	seedSweepRecord(t, records, "fresh", models.StatusReceived, now.Add(-time.Minute))
	seedSweepRecord(t, records, "done", models.StatusCompleted, stale)
	seedSweepRecord(t, records, "failed", models.StatusFailed, stale)

	refired, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, refired)

	fired := make(map[string]models.StageName)
	for i, stage := range trigger.fired {
		fired[trigger.payloads[i].DocumentID] = stage
	}
	assert.Equal(t, models.StageExtract, fired["stuck-received"])
	assert.Equal(t, models.StageClassify, fired["stuck-extracted"])
	assert.Equal(t, models.StageSummarize, fired["stuck-classified"])

	// Re-fires carry a bare id so the stage re-reads the record.
	for _, p := range trigger.payloads {
		assert.Empty(t, p.BlobRef)
		assert.Empty(t, p.ExtractedData)
	}
}

func TestSweeperTriggerFailureContinues(t *testing.T) {
	records := newIngestStore(t)
	trigger := &recordingTrigger{err: assert.AnError}
	svc := NewSweeperService(records, trigger, 10*time.Minute)

	now := time.Now().UTC()
	svc.now = func() time.Time { return now }
	seedSweepRecord(t, records, "stuck-1", models.StatusReceived, now.Add(-time.Hour))
	seedSweepRecord(t, records, "stuck-2", models.StatusExtracted, now.Add(-time.Hour))

	refired, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Zero(t, refired)
}

func TestSweeperDefaultStaleAfter(t *testing.T) {
	records := newIngestStore(t)
	svc := NewSweeperService(records, &recordingTrigger{}, 0)
	assert.Equal(t, DefaultStaleAfter, svc.staleAfter)
}
