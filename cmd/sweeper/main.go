package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/docflowlabs/docproc/internal/services"
)

var (
	sweeperInstance *services.SweeperService
	once            sync.Once
	initErr         error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("SweepStalledDocuments", sweepStalledDocuments)
}

// main is required by the Go Functions Framework.
func main() {}

// sweepStalledDocuments is invoked by Cloud Scheduler. It re-fires triggers
// for records whose chain stalled after a lost hand-off.
func sweepStalledDocuments(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		sweeperInstance, initErr = services.NewCloudSweeper(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	refired, err := sweeperInstance.Sweep(r.Context())
	if err != nil {
		slog.Error("Sweep failed", "error", err)
		http.Error(w, "Internal Server Error: sweep failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]int{"retriggered": refired}); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}
