package main

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/docflowlabs/docproc/internal/models"
	"github.com/docflowlabs/docproc/internal/pipeline"
	"github.com/docflowlabs/docproc/internal/services"
)

var (
	runnerInstance *pipeline.Runner
	once           sync.Once
	initErr        error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("ClassifyDocument", classifyDocument)
}

// main is required by the Go Functions Framework.
func main() {}

func classifyDocument(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		runnerInstance, initErr = services.NewCloudRunner(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	payload, err := pipeline.UnmarshalStagePayload(e)
	if err != nil {
		slog.Error("Failed to decode stage event", "eventId", e.ID(), "error", err)
		return err
	}
	return runnerInstance.Dispatch(ctx, models.StageClassify, payload)
}
