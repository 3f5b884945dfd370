// Package api exposes the estimator registry over HTTP for the host
// engine: construct, feed, query, reset and evaluate engines.
package api

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cardest/cardest/pkg/accuracy"
)

type JSON map[string]any

func RegisterRoutes(r *mux.Router, db *sql.DB) {
	h := &Handler{
		db:      db,
		reg:     NewRegistry(),
		tracker: accuracy.NewTracker(db),
	}

	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	r.HandleFunc("/engines", h.PostCreateEngine).Methods(http.MethodPost)
	r.HandleFunc("/engines", h.GetEngines).Methods(http.MethodGet)
	r.HandleFunc("/engines/{name}/tuples", h.PostInsertTuple).Methods(http.MethodPost)
	r.HandleFunc("/engines/{name}/tuples/delete", h.PostDeleteTuple).Methods(http.MethodPost)
	r.HandleFunc("/engines/{name}/query", h.PostQuery).Methods(http.MethodPost)
	r.HandleFunc("/engines/{name}/prepare", h.PostPrepare).Methods(http.MethodPost)
	r.HandleFunc("/engines/{name}/stats", h.GetStats).Methods(http.MethodGet)
	r.HandleFunc("/engines/{name}/replay", h.PostReplay).Methods(http.MethodPost)
	r.HandleFunc("/engines/{name}/evaluate", h.PostEvaluate).Methods(http.MethodPost)

	r.HandleFunc("/workloads", h.GetWorkloads).Methods(http.MethodGet)
}

type Handler struct {
	db      *sql.DB
	reg     *Registry
	tracker *accuracy.Tracker
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
