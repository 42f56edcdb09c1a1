package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/urfave/negroni"

	"github.com/docflowlabs/docproc/internal/services"
)

// SetupRoutes builds the local-mode router: the same three endpoints the
// deployed functions expose, served from one process.
func SetupRoutes(ingest *services.IngestService, results *services.ResultsService) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/documents", SubmitHandler(ingest)).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/documents", ListHandler(results)).Methods(http.MethodGet)
	r.HandleFunc("/documents/{id}", GetHandler(results, func(req *http.Request) string {
		return mux.Vars(req)["id"]
	})).Methods(http.MethodGet, http.MethodOptions)

	return r
}

// New wraps the router with recovery and request logging middleware and
// returns a server ready to listen.
func New(addr string, ingest *services.IngestService, results *services.ResultsService) *http.Server {
	n := negroni.New()
	n.Use(negroni.NewRecovery())
	n.Use(negroni.NewLogger())
	n.UseHandler(SetupRoutes(ingest, results))

	return &http.Server{
		Addr:         addr,
		Handler:      n,
		IdleTimeout:  time.Minute,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}
