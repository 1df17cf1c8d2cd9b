package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/assay.report/internal/httputil"
	"github.com/banshee-data/assay.report/internal/register"
	"github.com/banshee-data/assay.report/internal/report"
	"github.com/banshee-data/assay.report/internal/runstore"
)

// serve exposes stored registration runs over HTTP until ctx is cancelled.
func serve(ctx context.Context, addr string, store *runstore.Store) error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status": "ok", "service": "arrayreg", "timestamp": "%s"}`, time.Now().UTC().Format(time.RFC3339))
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `
<!DOCTYPE html>
<html>
<head><title>Assay Registration Runs</title></head>
<body>
	<h1>Assay Registration Runs</h1>
	<p>HTTP server running on %s</p>
	<ul>
		<li><a href="/health">Health check</a></li>
		<li><a href="/api/runs">Recent runs (JSON)</a></li>
		<li><a href="/debug/">Debug</a></li>
	</ul>
</body>
</html>`, addr)
	})

	h := &runHandlers{store: store}
	mux.HandleFunc("/api/runs", h.handleRuns)
	mux.HandleFunc("/api/runs/", h.handleRunByID)

	store.AttachAdminRoutes(mux)

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		log.Printf("Starting HTTP server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	return nil
}

type runHandlers struct {
	store *runstore.Store
}

func (h *runHandlers) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	limit := 0 // store default
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	runs, err := h.store.ListRuns(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to list runs: %v", err))
		return
	}
	httputil.WriteJSONOK(w, runs)
}

// handleRunByID serves /api/runs/{id} and its wells, summary and report
// subresources.
func (h *runHandlers) handleRunByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/runs/"), "/")
	runID := strings.TrimSpace(parts[0])
	if runID == "" {
		httputil.BadRequest(w, "run id is required")
		return
	}

	sub := ""
	if len(parts) > 1 {
		sub = parts[1]
	}

	switch sub {
	case "":
		h.getRun(w, runID)
	case "wells":
		h.getWells(w, runID)
	case "summary":
		h.getSummary(w, runID)
	case "report":
		h.getReport(w, runID)
	default:
		httputil.NotFound(w, fmt.Sprintf("unknown run resource %q", sub))
	}
}

func (h *runHandlers) getRun(w http.ResponseWriter, runID string) {
	run, err := h.store.GetRun(runID)
	if err != nil {
		httputil.NotFound(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, run)
}

func (h *runHandlers) getWells(w http.ResponseWriter, runID string) {
	if _, err := h.store.GetRun(runID); err != nil {
		httputil.NotFound(w, err.Error())
		return
	}
	wells, err := h.store.GetWellResults(runID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to load wells: %v", err))
		return
	}
	httputil.WriteJSONOK(w, wells)
}

func (h *runHandlers) getSummary(w http.ResponseWriter, runID string) {
	if _, err := h.store.GetRun(runID); err != nil {
		httputil.NotFound(w, err.Error())
		return
	}
	summary, err := h.store.GetRunSummary(runID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to summarise run: %v", err))
		return
	}
	httputil.WriteJSONOK(w, summary)
}

func (h *runHandlers) getReport(w http.ResponseWriter, runID string) {
	run, err := h.store.GetRun(runID)
	if err != nil {
		httputil.NotFound(w, err.Error())
		return
	}
	wells, err := h.store.GetWellResults(runID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to load wells: %v", err))
		return
	}

	rep := report.RunReport{
		RunID:       run.ID,
		Source:      run.Source,
		GeneratedAt: time.Now().UTC(),
		Wells:       make([]report.WellRecord, 0, len(wells)),
	}
	for _, wr := range wells {
		rep.Wells = append(rep.Wells, storedWellRecord(wr))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := report.RenderRunReport(w, rep); err != nil {
		log.Printf("render report for run %s: %v", runID, err)
	}
}

// storedWellRecord rebuilds the report row from its persisted form.
func storedWellRecord(wr runstore.WellResult) report.WellRecord {
	return report.WellRecord{
		Well:      wr.Well,
		SpotCount: wr.SpotCount,
		Seed:      wr.Seed,
		TX:        wr.TX,
		TY:        wr.TY,
		ThetaRad:  wr.ThetaRad,
		Scale:     wr.Scale,
		Result: register.Result{
			Transform:  register.Transform{M: wr.M},
			Iterations: wr.Iterations,
			Converged:  wr.Converged,
			RMSE:       wr.RMSE,
			Quality:    register.Quality(wr.Quality),
		},
		Err: wr.Error,
	}
}
