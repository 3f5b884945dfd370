package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/cardest/cardest/pkg/estimator"
	"github.com/cardest/cardest/pkg/executer"
	"github.com/cardest/cardest/pkg/storage"
)

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, JSON{"status": "ok"})
}

type CreateEngineRequest struct {
	Name         string  `json:"name"`
	Workload     string  `json:"workload,omitempty"`
	ExpectedRows int64   `json:"expected_rows,omitempty"`
	Columns      int     `json:"columns,omitempty"`
	SamplingRate float64 `json:"sampling_rate,omitempty"`
	Seed         int64   `json:"seed,omitempty"`
}

func (h *Handler) PostCreateEngine(w http.ResponseWriter, r *http.Request) {
	var req CreateEngineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, JSON{"error": "invalid json"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, JSON{"error": "name required"})
		return
	}

	columns := req.Columns
	if columns == 0 {
		columns = estimator.DefaultColumns
	}

	ex, err := executer.NewSQL(h.db, columns)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, JSON{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	expectedRows := req.ExpectedRows
	if expectedRows == 0 && req.Workload != "" {
		expectedRows, err = ex.RowCount(ctx, req.Workload)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, JSON{"error": err.Error()})
			return
		}
	}

	eng, err := estimator.NewWithConfig(estimator.Config{
		ExpectedRows: expectedRows,
		Columns:      req.Columns,
		SamplingRate: req.SamplingRate,
		Seed:         req.Seed,
	}, ex)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, JSON{"error": err.Error()})
		return
	}

	entry, err := h.reg.add(req.Name, req.Workload, eng, ex)
	if err != nil {
		writeJSON(w, http.StatusConflict, JSON{"error": err.Error()})
		return
	}

	if req.Workload != "" {
		if err := storage.UpsertWorkload(ctx, h.db, req.Workload, columns, expectedRows); err != nil {
			log.Printf("upsert workload %s: %v", req.Workload, err)
		}
	}

	writeJSON(w, http.StatusCreated, JSON{
		"id":            entry.id,
		"name":          entry.name,
		"workload":      entry.workload,
		"expected_rows": expectedRows,
		"columns":       eng.Columns(),
		"sampling_rate": eng.SamplingRate(),
	})
}

func (h *Handler) GetEngines(w http.ResponseWriter, r *http.Request) {
	entries := h.reg.list()
	engines := make([]JSON, 0, len(entries))
	for _, e := range entries {
		engines = append(engines, JSON{"id": e.id, "name": e.name, "workload": e.workload})
	}
	writeJSON(w, http.StatusOK, JSON{"engines": engines})
}

// lookup resolves the engine named in the URL, writing a 404 on a miss.
func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*engineEntry, bool) {
	name := mux.Vars(r)["name"]
	entry, ok := h.reg.get(name)
	if !ok {
		writeJSON(w, http.StatusNotFound, JSON{"error": "unknown engine " + name})
	}
	return entry, ok
}

// writeEngineError maps caller mistakes to 400 and everything else to 500.
func writeEngineError(w http.ResponseWriter, err error) {
	if errors.Is(err, estimator.ErrInvalidInput) {
		writeJSON(w, http.StatusBadRequest, JSON{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusInternalServerError, JSON{"error": err.Error()})
}

type TupleRequest struct {
	Tuple []int64 `json:"tuple"`
	RowID int64   `json:"row_id,omitempty"`
}

func (h *Handler) PostInsertTuple(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req TupleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, JSON{"error": "invalid json"})
		return
	}

	entry.mu.Lock()
	err := entry.engine.InsertTuple(req.Tuple)
	entry.mu.Unlock()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, JSON{"status": "ok"})
}

func (h *Handler) PostDeleteTuple(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req TupleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, JSON{"error": "invalid json"})
		return
	}

	entry.mu.Lock()
	err := entry.engine.DeleteTuple(req.Tuple, req.RowID)
	entry.mu.Unlock()
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, JSON{"status": "ok"})
}

type QueryRequest struct {
	Predicates []estimator.Predicate `json:"predicates"`
}

func (h *Handler) PostQuery(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, JSON{"error": "invalid json"})
		return
	}

	entry.mu.Lock()
	est, err := entry.engine.Query(req.Predicates)
	rate := entry.engine.SamplingRate()
	entry.mu.Unlock()
	if err != nil {
		writeEngineError(w, err)
		return
	}

	// Raw sampled-row estimate; consumers rescale by the rate if their
	// contract wants population figures.
	writeJSON(w, http.StatusOK, JSON{
		"estimate":      est,
		"sampling_rate": rate,
	})
}

func (h *Handler) PostPrepare(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}

	entry.mu.Lock()
	entry.engine.Prepare()
	entry.mu.Unlock()

	writeJSON(w, http.StatusOK, JSON{"status": "ok"})
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}

	entry.mu.Lock()
	engineStats := entry.engine.Stats()
	entry.mu.Unlock()

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	accuracyStats, err := h.tracker.Stats(ctx, entry.name)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, JSON{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, JSON{
		"id":       entry.id,
		"name":     entry.name,
		"workload": entry.workload,
		"engine":   engineStats,
		"accuracy": accuracyStats,
	})
}

type ReplayRequest struct {
	Table string `json:"table,omitempty"`
}

func (h *Handler) PostReplay(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req ReplayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, JSON{"error": "invalid json"})
		return
	}
	table := req.Table
	if table == "" {
		table = entry.workload
	}
	if table == "" {
		writeJSON(w, http.StatusBadRequest, JSON{"error": "no table to replay"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	entry.mu.Lock()
	offered, err := entry.executer.Replay(ctx, table, entry.engine)
	entry.mu.Unlock()
	if err != nil {
		writeEngineError(w, err)
		return
	}

	if err := storage.UpsertWorkload(ctx, h.db, table, entry.executer.Columns(), offered); err != nil {
		log.Printf("upsert workload %s: %v", table, err)
	}

	writeJSON(w, http.StatusOK, JSON{"status": "ok", "offered": offered})
}

func (h *Handler) PostEvaluate(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, JSON{"error": "invalid json"})
		return
	}
	if entry.workload == "" {
		writeJSON(w, http.StatusBadRequest, JSON{"error": "engine has no workload for ground truth"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
	defer cancel()

	entry.mu.Lock()
	est, err := entry.engine.Query(req.Predicates)
	rate := entry.engine.SamplingRate()
	entry.mu.Unlock()
	if err != nil {
		writeEngineError(w, err)
		return
	}

	actual, err := entry.executer.ExactCount(ctx, entry.workload, req.Predicates)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, JSON{"error": err.Error()})
		return
	}

	if err := h.tracker.Record(ctx, entry.name, entry.workload, req.Predicates, est, actual, rate); err != nil {
		log.Printf("record accuracy for %s: %v", entry.name, err)
	}

	relError := float64(est-actual) / float64(max(actual, 1))
	writeJSON(w, http.StatusOK, JSON{
		"estimate":      est,
		"actual":        actual,
		"rel_error":     relError,
		"sampling_rate": rate,
	})
}

func (h *Handler) GetWorkloads(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	workloads, err := storage.ListWorkloads(ctx, h.db)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, JSON{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, JSON{"workloads": workloads})
}
