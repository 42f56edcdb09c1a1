package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/docflowlabs/docproc/internal/server"
	"github.com/docflowlabs/docproc/internal/services"
)

var (
	resultsInstance *services.ResultsService
	once            sync.Once
	initErr         error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("DocumentResults", documentResults)
}

// main is required by the Go Functions Framework.
func main() {}

// documentResults serves both GET /documents and GET /documents/{id} behind
// a single function URL.
func documentResults(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		resultsInstance, initErr = services.NewCloudResults(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	if id := pathDocumentID(r.URL.Path); id != "" {
		server.GetHandler(resultsInstance, func(*http.Request) string { return id })(w, r)
		return
	}
	server.ListHandler(resultsInstance)(w, r)
}

// pathDocumentID extracts the trailing id from /documents/{id}, or returns
// "" for the bare collection path.
func pathDocumentID(path string) string {
	path = strings.Trim(path, "/")
	const prefix = "documents"
	if path == prefix {
		return ""
	}
	if rest, ok := strings.CutPrefix(path, prefix+"/"); ok {
		return rest
	}
	// The function may also be mounted at the root.
	if !strings.Contains(path, "/") {
		return path
	}
	return ""
}
