package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	_ "modernc.org/sqlite"

	"github.com/cardest/cardest/pkg/estimator"
	"github.com/cardest/cardest/pkg/storage"
)

func newTestServer(t *testing.T) (*httptest.Server, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// One connection, or each pooled conn gets its own in-memory db.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := storage.EnsureMetaTables(context.Background(), db); err != nil {
		t.Fatalf("ensure meta tables: %v", err)
	}

	r := mux.NewRouter()
	RegisterRoutes(r, db)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, db
}

func postJSON(t *testing.T, url string, body any) (*http.Response, JSON) {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()

	var decoded JSON
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func getJSON(t *testing.T, url string) (*http.Response, JSON) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	var decoded JSON
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, decoded
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := getJSON(t, srv.URL+"/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	if body["status"] != "ok" {
		t.Errorf("body: %v", body)
	}
}

func TestCreateEngine(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := postJSON(t, srv.URL+"/engines", CreateEngineRequest{
		Name:         "orders",
		ExpectedRows: 1000,
		SamplingRate: 1.0,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status: got %d, want 201, body %v", resp.StatusCode, body)
	}
	if body["id"] == "" || body["name"] != "orders" {
		t.Errorf("body: %v", body)
	}

	// Duplicate names conflict.
	resp, _ = postJSON(t, srv.URL+"/engines", CreateEngineRequest{Name: "orders", ExpectedRows: 10})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate create: got %d, want 409", resp.StatusCode)
	}

	// Missing name is a caller error.
	resp, _ = postJSON(t, srv.URL+"/engines", CreateEngineRequest{ExpectedRows: 10})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("nameless create: got %d, want 400", resp.StatusCode)
	}
}

func TestUnknownEngineIs404(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := postJSON(t, srv.URL+"/engines/nope/query", QueryRequest{})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestInsertQueryValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := postJSON(t, srv.URL+"/engines", CreateEngineRequest{
		Name:         "e",
		ExpectedRows: 1000,
		SamplingRate: 1.0,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: got %d", resp.StatusCode)
	}

	// Short tuple -> 400.
	resp, _ = postJSON(t, srv.URL+"/engines/e/tuples", TupleRequest{Tuple: []int64{5}})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("short tuple: got %d, want 400", resp.StatusCode)
	}

	// Empty predicates -> 400.
	resp, _ = postJSON(t, srv.URL+"/engines/e/query", QueryRequest{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty predicates: got %d, want 400", resp.StatusCode)
	}
}

func TestInsertQueryPrepareRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := postJSON(t, srv.URL+"/engines", CreateEngineRequest{
		Name:         "rt",
		ExpectedRows: 1000,
		SamplingRate: 1.0,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: got %d", resp.StatusCode)
	}

	for i := 0; i < 20; i++ {
		resp, _ = postJSON(t, srv.URL+"/engines/rt/tuples", TupleRequest{Tuple: []int64{42, 7}})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("insert: got %d", resp.StatusCode)
		}
	}

	resp, body := postJSON(t, srv.URL+"/engines/rt/query", QueryRequest{
		Predicates: []estimator.Predicate{{Column: 0, Value: 42}},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("query: got %d, body %v", resp.StatusCode, body)
	}
	if est := body["estimate"].(float64); est < 20 {
		t.Errorf("estimate: got %.0f, want >= 20", est)
	}

	resp, _ = postJSON(t, srv.URL+"/engines/rt/prepare", JSON{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("prepare: got %d", resp.StatusCode)
	}

	_, body = postJSON(t, srv.URL+"/engines/rt/query", QueryRequest{
		Predicates: []estimator.Predicate{{Column: 0, Value: 42}},
	})
	if est := body["estimate"].(float64); est != 0 {
		t.Errorf("estimate after prepare: got %.0f, want 0", est)
	}
}

func TestReplayAndEvaluate(t *testing.T) {
	srv, db := newTestServer(t)

	if _, err := db.Exec(`CREATE TABLE purchases (col0 INTEGER, col1 INTEGER)`); err != nil {
		t.Fatalf("create workload: %v", err)
	}
	for i := 0; i < 40; i++ {
		if _, err := db.Exec(`INSERT INTO purchases(col0, col1) VALUES (?, ?)`, 9, i%4); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	resp, body := postJSON(t, srv.URL+"/engines", CreateEngineRequest{
		Name:         "p",
		Workload:     "purchases",
		SamplingRate: 1.0,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: got %d, body %v", resp.StatusCode, body)
	}
	if body["expected_rows"].(float64) != 40 {
		t.Errorf("expected_rows from workload: got %v, want 40", body["expected_rows"])
	}

	resp, body = postJSON(t, srv.URL+"/engines/p/replay", ReplayRequest{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("replay: got %d, body %v", resp.StatusCode, body)
	}
	if body["offered"].(float64) != 40 {
		t.Errorf("offered: got %v, want 40", body["offered"])
	}

	resp, body = postJSON(t, srv.URL+"/engines/p/evaluate", QueryRequest{
		Predicates: []estimator.Predicate{{Column: 0, Value: 9}},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("evaluate: got %d, body %v", resp.StatusCode, body)
	}
	if body["actual"].(float64) != 40 {
		t.Errorf("actual: got %v, want 40", body["actual"])
	}
	if est := body["estimate"].(float64); est < 40 {
		t.Errorf("always-admit estimate: got %.0f, want >= 40", est)
	}

	resp, body = getJSON(t, srv.URL+"/engines/p/stats")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats: got %d", resp.StatusCode)
	}
	acc, ok := body["accuracy"].(map[string]any)
	if !ok {
		t.Fatalf("stats body missing accuracy: %v", body)
	}
	if acc["evaluations"].(float64) != 1 {
		t.Errorf("evaluations: got %v, want 1", acc["evaluations"])
	}

	resp, body = getJSON(t, srv.URL+"/workloads")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("workloads: got %d", resp.StatusCode)
	}
	raw, _ := json.Marshal(body["workloads"])
	if !bytes.Contains(raw, []byte("purchases")) {
		t.Errorf("workloads missing purchases: %s", raw)
	}
}

func TestConcurrentInsertsAreSerialized(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := postJSON(t, srv.URL+"/engines", CreateEngineRequest{
		Name:         "conc",
		ExpectedRows: 1000,
		SamplingRate: 1.0,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: got %d", resp.StatusCode)
	}

	const workers, perWorker = 8, 25
	errc := make(chan error, workers)
	for w := 0; w < workers; w++ {
		go func() {
			for i := 0; i < perWorker; i++ {
				resp, err := http.Post(srv.URL+"/engines/conc/tuples", "application/json",
					bytes.NewReader([]byte(`{"tuple":[1,2]}`)))
				if err != nil {
					errc <- err
					return
				}
				resp.Body.Close()
				if resp.StatusCode != http.StatusOK {
					errc <- fmt.Errorf("insert status %d", resp.StatusCode)
					return
				}
			}
			errc <- nil
		}()
	}
	for w := 0; w < workers; w++ {
		if err := <-errc; err != nil {
			t.Fatalf("worker: %v", err)
		}
	}

	_, body := postJSON(t, srv.URL+"/engines/conc/query", QueryRequest{
		Predicates: []estimator.Predicate{{Column: 0, Value: 1}},
	})
	if est := body["estimate"].(float64); est != workers*perWorker {
		t.Errorf("estimate: got %.0f, want %d", est, workers*perWorker)
	}
}
