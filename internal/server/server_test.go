package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/allanai/rallymetrics/internal/config"
	"github.com/allanai/rallymetrics/internal/engine"
	"github.com/allanai/rallymetrics/internal/jobs"
	"github.com/allanai/rallymetrics/internal/metrics"
	"github.com/allanai/rallymetrics/internal/model"
	"github.com/allanai/rallymetrics/internal/storage"
)

const inferenceJSON = `{
	"source": "MODEL",
	"fps": 120,
	"shots": [
		{"timestampMs": 0, "player": 1, "shotType": "SERVE", "result": "IN", "speed": 55, "confidence": 0.9},
		{"timestampMs": 500, "player": 2, "shotType": "FOREHAND", "result": "OUT", "speed": 48, "confidence": 0.85}
	]
}`

func testServer(t *testing.T) (*httptest.Server, *storage.DB, *jobs.Pool) {
	t.Helper()
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	e := engine.New(config.Default(), nil)
	pool := jobs.NewPool(e, db, nil, metrics.New(), 1, 4)
	pool.Run(context.Background())
	t.Cleanup(func() { pool.Shutdown(context.Background()) })

	h := New(db, pool, nil, metrics.New())
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return srv, db, pool
}

func waitComplete(t *testing.T, db *storage.DB, matchID string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		s, err := db.GetSummary(matchID)
		if err != nil {
			t.Fatal(err)
		}
		if s != nil && s.Status == model.StatusComplete {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("match %s never completed", matchID)
}

func TestProcessEndpoint(t *testing.T) {
	srv, db, _ := testServer(t)

	resp, err := http.Post(srv.URL+"/matches/m1/process", "application/json",
		bytes.NewBufferString(inferenceJSON))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status: got %d, want 202", resp.StatusCode)
	}

	waitComplete(t, db, "m1")

	resp, err = http.Get(srv.URL + "/matches/m1/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get match: got %d", resp.StatusCode)
	}
	var doc model.MatchDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatal(err)
	}
	if doc.Statistics.Player1Score != 1 || doc.Statistics.Player2Score != 0 {
		t.Fatalf("score: %+v", doc.Statistics)
	}
}

func TestProcessRejectsInvalidBody(t *testing.T) {
	srv, _, _ := testServer(t)

	resp, err := http.Post(srv.URL+"/matches/m1/process", "application/json",
		bytes.NewBufferString(`{"shots": []}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("empty input: got %d, want 400", resp.StatusCode)
	}
}

func TestProcessConflictWhenInFlight(t *testing.T) {
	db, err := storage.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	// The pool is never started, so the first submission stays in flight.
	e := engine.New(config.Default(), nil)
	pool := jobs.NewPool(e, db, nil, metrics.New(), 1, 4)
	h := New(db, pool, nil, metrics.New())
	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	for _, want := range []int{http.StatusAccepted, http.StatusConflict} {
		resp, err := http.Post(srv.URL+"/matches/m1/process", "application/json",
			bytes.NewBufferString(inferenceJSON))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Fatalf("got %d, want %d", resp.StatusCode, want)
		}
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv, db, _ := testServer(t)

	if err := db.MarkFailed("m1", "detector produced no shot events"); err != nil {
		t.Fatal(err)
	}
	resp, err := http.Get(srv.URL + "/matches/m1/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status endpoint: got %d", resp.StatusCode)
	}
	var body struct {
		Status        string `json:"status"`
		FailureReason string `json:"failureReason"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "FAILED" || body.FailureReason == "" {
		t.Fatalf("status body: %+v", body)
	}
}

func TestListAndDelete(t *testing.T) {
	srv, db, _ := testServer(t)

	resp, err := http.Post(srv.URL+"/matches/m1/process", "application/json",
		bytes.NewBufferString(inferenceJSON))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	waitComplete(t, db, "m1")

	resp, err = http.Get(srv.URL + "/matches/?status=COMPLETE")
	if err != nil {
		t.Fatal(err)
	}
	var rows []struct {
		MatchID string `json:"matchId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if len(rows) != 1 || rows[0].MatchID != "m1" {
		t.Fatalf("list: %+v", rows)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/matches/m1/", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: got %d, want 204", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/matches/m1/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("deleted match: got %d, want 404", resp.StatusCode)
	}
}

func TestEventsEndpointFiltersImportance(t *testing.T) {
	srv, db, _ := testServer(t)

	resp, err := http.Post(srv.URL+"/matches/m1/process", "application/json",
		bytes.NewBufferString(inferenceJSON))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	waitComplete(t, db, "m1")

	resp, err = http.Get(srv.URL + "/matches/m1/events?min_importance=10")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var rows []storage.EventRow
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		t.Fatal(err)
	}
	for _, r := range rows {
		if r.Importance < 10 {
			t.Fatalf("importance filter leaked: %+v", r)
		}
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	srv, _, _ := testServer(t)

	for _, path := range []string{"/healthz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: got %d", path, resp.StatusCode)
		}
	}
}
