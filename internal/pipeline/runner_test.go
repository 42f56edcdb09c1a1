package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docflowlabs/docproc/internal/models"
	"github.com/docflowlabs/docproc/internal/store"
)

// fakeStage is a scriptable stage for exercising the runner envelope.
type fakeStage struct {
	name      models.StageName
	expect    models.Status
	result    models.Status
	next      models.StageName
	ready     func(p *models.StagePayload) bool
	transform func(ctx context.Context, p *models.StagePayload) (store.Fields, *models.StagePayload, error)
	calls     int
}

func (f *fakeStage) Name() models.StageName { return f.name }
func (f *fakeStage) Expect() models.Status  { return f.expect }
func (f *fakeStage) Result() models.Status  { return f.result }
func (f *fakeStage) Next() models.StageName { return f.next }

func (f *fakeStage) Ready(p *models.StagePayload) bool {
	if f.ready == nil {
		return true
	}
	return f.ready(p)
}

func (f *fakeStage) Transform(ctx context.Context, p *models.StagePayload) (store.Fields, *models.StagePayload, error) {
	f.calls++
	return f.transform(ctx, p)
}

// recordingTrigger captures every hand-off instead of delivering it.
type recordingTrigger struct {
	mu       sync.Mutex
	fired    []models.StageName
	payloads []*models.StagePayload
	err      error
}

func (r *recordingTrigger) Trigger(ctx context.Context, stage models.StageName, payload *models.StagePayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.fired = append(r.fired, stage)
	r.payloads = append(r.payloads, payload)
	return nil
}

func newRunnerStore(t *testing.T) store.RecordStore {
	t.Helper()
	s, err := store.OpenBadgerStore("", true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedRecord(t *testing.T, s store.RecordStore, id string, status models.Status) {
	t.Helper()
	rec := &models.DocumentRecord{
		DocumentID:      id,
		FileName:        "scan.pdf",
		MediaType:       models.MediaTypePDF,
		BlobRef:         "documents/" + id + "/scan.pdf",
		Status:          models.StatusReceived,
		UploadTimestamp: time.Now().UTC(),
	}
	require.NoError(t, s.Create(context.Background(), rec))
	if status == models.StatusReceived {
		return
	}
	cur := models.StatusReceived
	for cur != status {
		next := models.StatusExtracted
		switch cur {
		case models.StatusExtracted:
			next = models.StatusClassified
		case models.StatusClassified:
			next = models.StatusCompleted
		}
		require.NoError(t, s.UpdateIf(context.Background(), id, cur, nil, next))
		cur = next
	}
}

func TestRunnerDispatchAdvancesAndTriggers(t *testing.T) {
	records := newRunnerStore(t)
	seedRecord(t, records, "doc-1", models.StatusReceived)
	trigger := &recordingTrigger{}

	stage := &fakeStage{
		name:   models.StageExtract,
		expect: models.StatusReceived,
		result: models.StatusExtracted,
		next:   models.StageClassify,
		transform: func(ctx context.Context, p *models.StagePayload) (store.Fields, *models.StagePayload, error) {
			fields := store.Fields{"extractedData": `{"total": "10"}`}
			return fields, &models.StagePayload{DocumentID: p.DocumentID, ExtractedData: `{"total": "10"}`}, nil
		},
	}
	runner, err := NewRunner(records, trigger, stage)
	require.NoError(t, err)

	err = runner.Dispatch(context.Background(), models.StageExtract, &models.StagePayload{
		DocumentID: "doc-1",
		BlobRef:    "documents/doc-1/scan.pdf",
		MediaType:  models.MediaTypePDF,
	})
	require.NoError(t, err)

	rec, err := records.Get(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusExtracted, rec.Status)
	assert.Equal(t, `{"total": "10"}`, rec.ExtractedData)

	require.Len(t, trigger.fired, 1)
	assert.Equal(t, models.StageClassify, trigger.fired[0])
	assert.Equal(t, "doc-1", trigger.payloads[0].DocumentID)
	assert.Equal(t, `{"total": "10"}`, trigger.payloads[0].ExtractedData)
}

func TestRunnerDispatchStageErrorMarksFailed(t *testing.T) {
	records := newRunnerStore(t)
	seedRecord(t, records, "doc-1", models.StatusReceived)
	trigger := &recordingTrigger{}

	stage := &fakeStage{
		name:   models.StageExtract,
		expect: models.StatusReceived,
		result: models.StatusExtracted,
		next:   models.StageClassify,
		transform: func(ctx context.Context, p *models.StagePayload) (store.Fields, *models.StagePayload, error) {
			return nil, nil, errors.New("model unreachable")
		},
	}
	runner, err := NewRunner(records, trigger, stage)
	require.NoError(t, err)

	// Stage failures are absorbed: the record is the error channel, not the
	// invocation result.
	err = runner.Dispatch(context.Background(), models.StageExtract, &models.StagePayload{
		DocumentID: "doc-1",
		BlobRef:    "documents/doc-1/scan.pdf",
		MediaType:  models.MediaTypePDF,
	})
	require.NoError(t, err)

	rec, err := records.Get(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, rec.Status)
	assert.Equal(t, "extract stage failed: model unreachable", rec.ErrorMessage)
	assert.Empty(t, rec.ExtractedData)
	assert.Empty(t, trigger.fired)
}

func TestRunnerDispatchStaleInvocationIsNoOp(t *testing.T) {
	records := newRunnerStore(t)
	seedRecord(t, records, "doc-1", models.StatusExtracted)
	trigger := &recordingTrigger{}

	stage := &fakeStage{
		name:   models.StageExtract,
		expect: models.StatusReceived,
		result: models.StatusExtracted,
		next:   models.StageClassify,
		transform: func(ctx context.Context, p *models.StagePayload) (store.Fields, *models.StagePayload, error) {
			return store.Fields{"extractedData": "overwrite attempt"}, nil, nil
		},
	}
	runner, err := NewRunner(records, trigger, stage)
	require.NoError(t, err)

	err = runner.Dispatch(context.Background(), models.StageExtract, &models.StagePayload{
		DocumentID: "doc-1",
		BlobRef:    "documents/doc-1/scan.pdf",
		MediaType:  models.MediaTypePDF,
	})
	require.NoError(t, err)

	rec, err := records.Get(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusExtracted, rec.Status)
	assert.Empty(t, rec.ExtractedData)
	assert.Empty(t, trigger.fired)
}

func TestRunnerDispatchBarePayloadFallsBackToRecord(t *testing.T) {
	records := newRunnerStore(t)
	seedRecord(t, records, "doc-1", models.StatusReceived)
	trigger := &recordingTrigger{}

	var seen *models.StagePayload
	stage := &fakeStage{
		name:   models.StageExtract,
		expect: models.StatusReceived,
		result: models.StatusExtracted,
		next:   "",
		ready:  func(p *models.StagePayload) bool { return p.BlobRef != "" },
		transform: func(ctx context.Context, p *models.StagePayload) (store.Fields, *models.StagePayload, error) {
			seen = p
			return nil, nil, nil
		},
	}
	runner, err := NewRunner(records, trigger, stage)
	require.NoError(t, err)

	// A sweeper re-fire carries only the document id; the runner rehydrates
	// the payload from the record.
	err = runner.Dispatch(context.Background(), models.StageExtract, &models.StagePayload{DocumentID: "doc-1"})
	require.NoError(t, err)

	require.NotNil(t, seen)
	assert.Equal(t, "documents/doc-1/scan.pdf", seen.BlobRef)
	assert.Equal(t, models.MediaTypePDF, seen.MediaType)
}

func TestRunnerDispatchBarePayloadSkipsOnStatusMismatch(t *testing.T) {
	records := newRunnerStore(t)
	seedRecord(t, records, "doc-1", models.StatusExtracted)
	trigger := &recordingTrigger{}

	stage := &fakeStage{
		name:   models.StageExtract,
		expect: models.StatusReceived,
		result: models.StatusExtracted,
		ready:  func(p *models.StagePayload) bool { return false },
		transform: func(ctx context.Context, p *models.StagePayload) (store.Fields, *models.StagePayload, error) {
			return nil, nil, nil
		},
	}
	runner, err := NewRunner(records, trigger, stage)
	require.NoError(t, err)

	err = runner.Dispatch(context.Background(), models.StageExtract, &models.StagePayload{DocumentID: "doc-1"})
	require.NoError(t, err)
	assert.Zero(t, stage.calls)
}

func TestRunnerDispatchUnknownStage(t *testing.T) {
	records := newRunnerStore(t)
	trigger := &recordingTrigger{}
	runner, err := NewRunner(records, trigger)
	require.NoError(t, err)

	err = runner.Dispatch(context.Background(), "compress", &models.StagePayload{DocumentID: "doc-1"})
	assert.Error(t, err)
}

func TestRunnerDispatchMissingDocumentID(t *testing.T) {
	records := newRunnerStore(t)
	trigger := &recordingTrigger{}
	stage := &fakeStage{
		name:   models.StageExtract,
		expect: models.StatusReceived,
		result: models.StatusExtracted,
		transform: func(ctx context.Context, p *models.StagePayload) (store.Fields, *models.StagePayload, error) {
			return nil, nil, nil
		},
	}
	runner, err := NewRunner(records, trigger, stage)
	require.NoError(t, err)

	assert.Error(t, runner.Dispatch(context.Background(), models.StageExtract, nil))
	assert.Error(t, runner.Dispatch(context.Background(), models.StageExtract, &models.StagePayload{}))
}

func TestRunnerDispatchTriggerFailureDoesNotFailRecord(t *testing.T) {
	records := newRunnerStore(t)
	seedRecord(t, records, "doc-1", models.StatusReceived)
	trigger := &recordingTrigger{err: errors.New("endpoint down")}

	stage := &fakeStage{
		name:   models.StageExtract,
		expect: models.StatusReceived,
		result: models.StatusExtracted,
		next:   models.StageClassify,
		transform: func(ctx context.Context, p *models.StagePayload) (store.Fields, *models.StagePayload, error) {
			return store.Fields{"extractedData": "ok"}, nil, nil
		},
	}
	runner, err := NewRunner(records, trigger, stage)
	require.NoError(t, err)

	err = runner.Dispatch(context.Background(), models.StageExtract, &models.StagePayload{
		DocumentID: "doc-1",
		BlobRef:    "documents/doc-1/scan.pdf",
		MediaType:  models.MediaTypePDF,
	})
	require.NoError(t, err)

	// The record advanced even though the hand-off was lost; the stalled
	// chain is the sweeper's problem, not the stage's.
	rec, err := records.Get(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusExtracted, rec.Status)
}
