// Command arrayreg registers printed assay grids against detected spots
// in photographed wells. In batch mode it processes a directory of well
// images and writes CSV tables, debug images, and an HTML run report. In
// serve mode it exposes stored runs over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/banshee-data/assay.report/internal/config"
	"github.com/banshee-data/assay.report/internal/runstore"
	"github.com/banshee-data/assay.report/internal/version"
)

func main() {
	// Input and output
	input := flag.String("input", "", "Directory of well images to process (batch mode)")
	output := flag.String("output", "out", "Directory for CSV tables, images and the run report")
	configPath := flag.String("config", "", "Registration config JSON (defaults apply when omitted)")
	dbPath := flag.String("db", "", "SQLite run database (optional in batch mode)")

	// Pipeline behaviour
	workers := flag.Int("workers", runtime.NumCPU(), "Concurrent wells to process")
	seed := flag.Uint64("seed", 1, "Base seed; per-well seeds derive from it and the well name")
	debug := flag.Bool("debug", false, "Write per-well overlay and scatter images")

	// Serve mode
	serveAddr := flag.String("serve", "", "Listen address (e.g. :8080); serves stored runs instead of processing")

	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Parse()

	if *showVersion {
		fmt.Printf("arrayreg %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	cfg := config.EmptyRegistrationConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadRegistrationConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config %s: %v", *configPath, err)
		}
		log.Printf("Loaded config from %s", *configPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *serveAddr != "" {
		if *dbPath == "" {
			log.Fatal("serve mode requires -db")
		}
		store, err := runstore.Open(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open run database %s: %v", *dbPath, err)
		}
		defer store.Close()

		if err := serve(ctx, *serveAddr, store); err != nil {
			log.Fatalf("Server error: %v", err)
		}
		return
	}

	if *input == "" {
		flag.Usage()
		os.Exit(2)
	}

	var store *runstore.Store
	if *dbPath != "" {
		var err error
		store, err = runstore.Open(*dbPath)
		if err != nil {
			log.Fatalf("Failed to open run database %s: %v", *dbPath, err)
		}
		defer store.Close()
	}

	succeeded, err := runBatch(ctx, batchOptions{
		Input:    *input,
		Output:   *output,
		Workers:  *workers,
		BaseSeed: *seed,
		Debug:    *debug,
		Config:   cfg,
		Store:    store,
	})
	if err != nil {
		log.Fatalf("Run failed: %v", err)
	}
	if succeeded == 0 {
		log.Fatal("No wells registered successfully")
	}
}
