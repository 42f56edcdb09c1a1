// Package server holds the thin HTTP surface: request/response marshaling
// around the ingest and results services, plus the local-mode router. No
// pipeline logic lives here.
package server

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/docflowlabs/docproc/internal/models"
	"github.com/docflowlabs/docproc/internal/services"
	"github.com/docflowlabs/docproc/internal/store"
)

// writeCORS sets the headers the browser client expects.
func writeCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to write response body.", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// SubmitHandler accepts a document submission and answers with the new
// document id. Invalid media types and undecodable content are rejected with
// 400 before anything is persisted.
func SubmitHandler(ingest *services.IngestService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeCORS(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var req models.SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "could not parse request body")
			return
		}
		content, err := base64.StdEncoding.DecodeString(req.FileContentBase64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "fileContent is not valid base64")
			return
		}

		documentID, err := ingest.Submit(r.Context(), req.FileName, content, models.MediaType(req.MediaType))
		if err != nil {
			if errors.Is(err, services.ErrInvalidInput) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			slog.Error("Submission failed.", "fileName", req.FileName, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		writeJSON(w, http.StatusOK, models.SubmitResponse{
			DocumentID: documentID,
			Message:    "Document uploaded successfully",
		})
	}
}

// GetHandler serves one record by id. The id is resolved by idFromRequest so
// the same handler works behind both the function URL and the mux router.
func GetHandler(results *services.ResultsService, idFromRequest func(*http.Request) string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeCORS(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		documentID := idFromRequest(r)
		if documentID == "" {
			writeError(w, http.StatusBadRequest, "document id is required")
			return
		}

		rec, err := results.Get(r.Context(), documentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "Document not found")
				return
			}
			slog.Error("Failed to read record.", "documentId", documentID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

// ListHandler serves the full, unordered record scan.
func ListHandler(results *services.ResultsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeCORS(w)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		records, err := results.List(r.Context())
		if err != nil {
			slog.Error("Failed to scan records.", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if records == nil {
			records = []*models.DocumentRecord{}
		}
		writeJSON(w, http.StatusOK, models.ListResponse{Documents: records})
	}
}
