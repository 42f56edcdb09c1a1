package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/docflowlabs/docproc/internal/server"
	"github.com/docflowlabs/docproc/internal/services"
)

var (
	ingestInstance *services.IngestService
	once           sync.Once
	initErr        error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("SubmitDocument", submitDocument)
}

// main is required by the Go Functions Framework.
func main() {}

func submitDocument(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		ingestInstance, initErr = services.NewCloudIngest(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	server.SubmitHandler(ingestInstance)(w, r)
}
