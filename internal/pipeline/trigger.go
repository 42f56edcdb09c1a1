package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/docflowlabs/docproc/internal/models"
)

// EventTypePrefix is the CloudEvent type namespace for stage hand-off events.
// The full type is EventTypePrefix + "." + stage name.
const EventTypePrefix = "com.docflowlabs.docproc.stage"

const eventSource = "//docflowlabs/docproc/pipeline"

// CloudEventsTrigger delivers stage payloads as CloudEvents over HTTP. In
// deployment each stage function sits behind its own trigger endpoint;
// redelivery of undelivered events is the platform's job, not ours.
type CloudEventsTrigger struct {
	client  cloudevents.Client
	targets map[models.StageName]string
	timeout time.Duration
}

// NewCloudEventsTrigger builds the HTTP trigger transport. targets maps each
// stage to the URL its events are posted to.
func NewCloudEventsTrigger(targets map[models.StageName]string) (*CloudEventsTrigger, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("at least one stage target must be configured")
	}
	client, err := cloudevents.NewClientHTTP()
	if err != nil {
		return nil, fmt.Errorf("failed to create cloudevents client: %w", err)
	}
	return &CloudEventsTrigger{
		client:  client,
		targets: targets,
		timeout: 30 * time.Second,
	}, nil
}

func (t *CloudEventsTrigger) Trigger(ctx context.Context, stage models.StageName, payload *models.StagePayload) error {
	target, ok := t.targets[stage]
	if !ok {
		return fmt.Errorf("no target configured for stage %q", stage)
	}

	event := cloudevents.NewEvent()
	event.SetID(uuid.NewString())
	event.SetSource(eventSource)
	event.SetType(fmt.Sprintf("%s.%s", EventTypePrefix, stage))
	if err := event.SetData(cloudevents.ApplicationJSON, payload); err != nil {
		return fmt.Errorf("failed to encode stage payload: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(cloudevents.ContextWithTarget(ctx, target), t.timeout)
	defer cancel()

	if result := t.client.Send(sendCtx, event); cloudevents.IsUndelivered(result) {
		return fmt.Errorf("failed to deliver %s event: %w", stage, result)
	}
	return nil
}

// UnmarshalStagePayload decodes the payload of a stage hand-off event. Shared
// by every CloudEvent function entrypoint.
func UnmarshalStagePayload(e cloudevents.Event) (*models.StagePayload, error) {
	var payload models.StagePayload
	if err := e.DataAs(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode stage payload: %w", err)
	}
	if payload.DocumentID == "" {
		return nil, fmt.Errorf("stage event %s carries no document id", e.ID())
	}
	return &payload, nil
}

// PoolTrigger runs stages on a bounded worker pool inside one process. It is
// the local-mode and test transport: Trigger returns as soon as the
// invocation is queued, preserving the fire-and-forget contract.
type PoolTrigger struct {
	pool       *ants.Pool
	dispatcher Dispatcher
	timeout    time.Duration
}

// NewPoolTrigger creates the in-process transport with the given worker
// count. Bind must be called before the first Trigger.
func NewPoolTrigger(workers int) (*PoolTrigger, error) {
	if workers < 1 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	return &PoolTrigger{pool: pool, timeout: 5 * time.Minute}, nil
}

// Bind wires the dispatcher the pool hands invocations to. Separate from the
// constructor because the runner and its trigger reference each other.
func (t *PoolTrigger) Bind(d Dispatcher) {
	t.dispatcher = d
}

func (t *PoolTrigger) Trigger(ctx context.Context, stage models.StageName, payload *models.StagePayload) error {
	if t.dispatcher == nil {
		return fmt.Errorf("pool trigger is not bound to a dispatcher")
	}
	err := t.pool.Submit(func() {
		// Detached from the triggering stage's context on purpose: the
		// predecessor finishing its request must not cancel the successor.
		runCtx, cancel := context.WithTimeout(context.Background(), t.timeout)
		defer cancel()
		if err := t.dispatcher.Dispatch(runCtx, stage, payload); err != nil {
			slog.Error("Stage dispatch failed.", "stage", string(stage), "documentId", payload.DocumentID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to queue %s stage: %w", stage, err)
	}
	return nil
}

// Release drains the worker pool.
func (t *PoolTrigger) Release() {
	t.pool.Release()
}
