package main

import (
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/assay.report/internal/runstore"
	"github.com/banshee-data/assay.report/internal/testutil"
)

// newRunAPI stands up the run handlers over a throwaway store seeded with one
// finished run: well A1 registered cleanly, well B1 failed.
func newRunAPI(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	store, err := runstore.Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	run, err := store.BeginRun("testdata/plate7", 3, 3, 40, 1)
	if err != nil {
		t.Fatalf("BeginRun: %v", err)
	}
	wells := []runstore.WellResult{
		{
			RunID: run.ID, Well: "A1", SpotCount: 9, Seed: 42,
			Iterations: 21, Converged: true, Quality: "excellent", RMSE: 1.2,
			TX: 100, TY: 100, Scale: 1,
			M: [6]float64{1, 0, 0, 0, 1, 0},
		},
		{
			RunID: run.ID, Well: "B1", Quality: "unknown", RMSE: math.NaN(),
			Error: "detect spots: image has no usable foreground/background contrast",
		},
	}
	for _, w := range wells {
		if err := store.InsertWell(w); err != nil {
			t.Fatalf("InsertWell %s: %v", w.Well, err)
		}
	}
	if err := store.FinishRun(run.ID, "1 of 2 wells failed"); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	h := &runHandlers{store: store}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/runs", h.handleRuns)
	mux.HandleFunc("/api/runs/", h.handleRunByID)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, run.ID
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading %s: %v", url, err)
	}
	return resp, body
}

func TestHandleRuns_ListsRuns(t *testing.T) {
	srv, runID := newRunAPI(t)

	resp, body := get(t, srv.URL+"/api/runs")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	var runs []runstore.Run
	if err := json.Unmarshal(body, &runs); err != nil {
		t.Fatalf("decoding runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != runID {
		t.Errorf("runs = %+v, want the seeded run", runs)
	}
}

func TestHandleRuns_InvalidLimit(t *testing.T) {
	srv, _ := newRunAPI(t)
	resp, _ := get(t, srv.URL+"/api/runs?limit=bogus")
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusBadRequest)
}

func TestHandleRuns_MethodNotAllowed(t *testing.T) {
	srv, _ := newRunAPI(t)
	resp, err := http.Post(srv.URL+"/api/runs", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusMethodNotAllowed)
}

func TestHandleRunByID(t *testing.T) {
	srv, runID := newRunAPI(t)

	resp, body := get(t, srv.URL+"/api/runs/"+runID)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	var run runstore.Run
	if err := json.Unmarshal(body, &run); err != nil {
		t.Fatalf("decoding run: %v", err)
	}
	if run.ID != runID || run.Source != "testdata/plate7" {
		t.Errorf("run = %+v", run)
	}

	resp, _ = get(t, srv.URL+"/api/runs/does-not-exist")
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusNotFound)

	resp, _ = get(t, srv.URL+"/api/runs/"+runID+"/bogus")
	testutil.AssertStatusCode(t, resp.StatusCode, http.StatusNotFound)
}

func TestHandleRunWells_ServesFailedWells(t *testing.T) {
	srv, runID := newRunAPI(t)

	resp, body := get(t, srv.URL+"/api/runs/"+runID+"/wells")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	var wells []runstore.WellResult
	if err := json.Unmarshal(body, &wells); err != nil {
		t.Fatalf("decoding wells: %v", err)
	}
	if len(wells) != 2 {
		t.Fatalf("got %d wells, want 2", len(wells))
	}
	if wells[0].Well != "A1" || wells[1].Well != "B1" {
		t.Errorf("well order = %s, %s", wells[0].Well, wells[1].Well)
	}
	// The failed well's NaN must travel as null, not break encoding.
	if !strings.Contains(string(body), `"rmse_px":null`) {
		t.Errorf("body %s, want null rmse_px for the failed well", body)
	}
}

func TestHandleRunSummary(t *testing.T) {
	srv, runID := newRunAPI(t)

	resp, body := get(t, srv.URL+"/api/runs/"+runID+"/summary")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}
	var summary runstore.RunSummary
	if err := json.Unmarshal(body, &summary); err != nil {
		t.Fatalf("decoding summary: %v", err)
	}
	if summary.Wells != 2 || summary.Converged != 1 || summary.Failed != 1 {
		t.Errorf("summary = %+v, want 2 wells, 1 converged, 1 failed", summary)
	}
	if summary.ByQuality["excellent"] != 1 || summary.ByQuality["unknown"] != 1 {
		t.Errorf("quality buckets = %v", summary.ByQuality)
	}
}

func TestHandleRunReport_RendersHTML(t *testing.T) {
	srv, runID := newRunAPI(t)

	resp, body := get(t, srv.URL+"/api/runs/"+runID+"/report")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q, want text/html", ct)
	}
	html := string(body)
	for _, want := range []string{runID, "A1", "unknown"} {
		if !strings.Contains(html, want) {
			t.Errorf("report missing %q", want)
		}
	}
}
