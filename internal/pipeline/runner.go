// Package pipeline contains the stage execution envelope and the hand-off
// transports that chain the stages together. Stages never call each other;
// every mutation of shared state goes through the record store's
// precondition-guarded transition, which is what makes duplicate or stale
// invocations harmless.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/docflowlabs/docproc/internal/models"
	"github.com/docflowlabs/docproc/internal/store"
)

// Stage is one pure transformation in the pipeline. The runner owns all
// record store writes; a stage only reports the fields it produced and the
// payload to forward.
type Stage interface {
	// Name identifies the stage for dispatch and logging.
	Name() models.StageName
	// Expect is the record status this stage's transition is conditioned on.
	Expect() models.Status
	// Result is the status a successful run advances the record to.
	Result() models.Status
	// Next names the stage to trigger after a successful run, or "" for the
	// last stage.
	Next() models.StageName
	// Ready reports whether the forwarded payload carries everything
	// Transform needs. When false the runner re-reads the record first.
	Ready(p *models.StagePayload) bool
	// Transform runs the stage logic and returns the record fields to persist
	// plus the payload for the next stage.
	Transform(ctx context.Context, p *models.StagePayload) (store.Fields, *models.StagePayload, error)
}

// Trigger hands a payload to a stage without waiting for its outcome.
// Delivery is at-least-once at best; lost triggers are recovered by the
// sweeper.
type Trigger interface {
	Trigger(ctx context.Context, stage models.StageName, payload *models.StagePayload) error
}

// Dispatcher is the receiving side of a trigger transport.
type Dispatcher interface {
	Dispatch(ctx context.Context, stage models.StageName, payload *models.StagePayload) error
}

// Runner is the uniform execution envelope around every stage. Per
// invocation it performs exactly one record store update and at most one
// trigger of the next stage.
type Runner struct {
	records store.RecordStore
	trigger Trigger
	stages  map[models.StageName]Stage
}

func NewRunner(records store.RecordStore, trigger Trigger, stages ...Stage) (*Runner, error) {
	if records == nil {
		return nil, fmt.Errorf("record store must be provided")
	}
	if trigger == nil {
		return nil, fmt.Errorf("trigger must be provided")
	}
	byName := make(map[models.StageName]Stage, len(stages))
	for _, s := range stages {
		if _, dup := byName[s.Name()]; dup {
			return nil, fmt.Errorf("duplicate stage %q", s.Name())
		}
		byName[s.Name()] = s
	}
	return &Runner{records: records, trigger: trigger, stages: byName}, nil
}

// Dispatch executes one stage invocation. Stage failures are converted into a
// terminal FAILED transition and never returned to the caller: the chain must
// not crash or endlessly retry the host. A non-nil error therefore only means
// the invocation itself was unusable (unknown stage, empty payload, record
// store unreachable before any work happened) and is safe for the platform to
// retry.
func (r *Runner) Dispatch(ctx context.Context, name models.StageName, payload *models.StagePayload) error {
	stage, ok := r.stages[name]
	if !ok {
		return fmt.Errorf("unknown stage %q", name)
	}
	if payload == nil || payload.DocumentID == "" {
		return fmt.Errorf("stage %s: payload is missing a document id", name)
	}

	logCtx := slog.With("documentId", payload.DocumentID, "stage", string(name))

	// A forwarded payload normally carries everything the stage needs. Fall
	// back to a record read when it doesn't (lost in transport, re-fired by
	// the sweeper with a bare id).
	if !stage.Ready(payload) {
		rec, err := r.records.Get(ctx, payload.DocumentID)
		if err != nil {
			logCtx.Error("Failed to load record for payload fallback.", "error", err)
			return fmt.Errorf("stage %s: failed to load record: %w", name, err)
		}
		if rec.Status != stage.Expect() {
			logCtx.Info("Record status does not match stage precondition. Skipping.", "status", string(rec.Status))
			return nil
		}
		payload.FillFrom(rec)
	}

	fields, nextPayload, err := stage.Transform(ctx, payload)
	if err != nil {
		r.fail(ctx, logCtx, stage, payload.DocumentID, err)
		return nil
	}

	err = r.records.UpdateIf(ctx, payload.DocumentID, stage.Expect(), fields, stage.Result())
	if errors.Is(err, store.ErrPreconditionFailed) {
		// A faster concurrent execution already advanced the record. The work
		// above was wasted but nothing was written and nothing fires twice.
		logCtx.Info("Stale stage invocation, transition skipped.")
		return nil
	}
	if err != nil {
		r.fail(ctx, logCtx, stage, payload.DocumentID, fmt.Errorf("failed to persist stage output: %w", err))
		return nil
	}
	logCtx.Info("Stage complete.", "status", string(stage.Result()))

	next := stage.Next()
	if next == "" {
		return nil
	}
	if nextPayload == nil {
		nextPayload = &models.StagePayload{DocumentID: payload.DocumentID}
	}
	if err := r.trigger.Trigger(ctx, next, nextPayload); err != nil {
		// The record already advanced, so failing the invocation here would
		// re-run a completed stage for nothing. The sweeper re-fires stalled
		// chains.
		logCtx.Error("Failed to trigger next stage.", "next", string(next), "error", err)
	}
	return nil
}

// fail marks the record terminally FAILED with a human-readable message. The
// transition carries the same precondition as the success path, so a stale
// failure cannot clobber a record another execution already advanced.
func (r *Runner) fail(ctx context.Context, logCtx *slog.Logger, stage Stage, documentID string, cause error) {
	logCtx.Error("Stage failed.", "error", cause)
	msg := fmt.Sprintf("%s stage failed: %v", stage.Name(), cause)
	err := r.records.UpdateIf(ctx, documentID, stage.Expect(), store.Fields{"errorMessage": msg}, models.StatusFailed)
	if errors.Is(err, store.ErrPreconditionFailed) {
		logCtx.Info("Record already advanced, failure transition skipped.")
		return
	}
	if err != nil {
		logCtx.Error("CRITICAL: Failed to mark record FAILED after a stage error.", "updateError", err)
	}
}
