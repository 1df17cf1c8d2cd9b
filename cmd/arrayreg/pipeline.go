package main

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/assay.report/internal/config"
	"github.com/banshee-data/assay.report/internal/intensity"
	"github.com/banshee-data/assay.report/internal/register"
	"github.com/banshee-data/assay.report/internal/report"
	"github.com/banshee-data/assay.report/internal/runstore"
	"github.com/banshee-data/assay.report/internal/spots"
)

type batchOptions struct {
	Input    string
	Output   string
	Workers  int
	BaseSeed uint64
	Debug    bool
	Config   *config.RegistrationConfig
	Store    *runstore.Store
}

type wellJob struct {
	Name string
	Path string
}

// wellOutcome carries everything a successful well produces; the image and
// point sets are kept only long enough to render debug artifacts.
type wellOutcome struct {
	Record       report.WellRecord
	Measurements []intensity.Measurement
	Image        *spots.WellImage
	Detected     register.PointSet
	Registered   register.PointSet
}

// runBatch processes every well image under opts.Input and returns how many
// registered successfully. Individual well failures are recorded, not fatal.
func runBatch(ctx context.Context, opts batchOptions) (int, error) {
	jobs, err := scanWells(opts.Input)
	if err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, fmt.Errorf("no well images found in %s", opts.Input)
	}
	log.Printf("Processing %d wells from %s", len(jobs), opts.Input)

	spec := opts.Config.GetGridSpec()
	runID := uuid.New().String()
	if opts.Store != nil {
		run, err := opts.Store.BeginRun(opts.Input, spec.Rows, spec.Cols, spec.Spacing, opts.BaseSeed)
		if err != nil {
			return 0, fmt.Errorf("begin run: %w", err)
		}
		runID = run.ID
	}

	outcomes := make([]*wellOutcome, len(jobs))
	errs := make([]error, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}
	for i, job := range jobs {
		g.Go(func() error {
			outcomes[i], errs[i] = processWell(gctx, job, opts.Config, opts.BaseSeed)
			return nil
		})
	}
	_ = g.Wait() // workers record per-well failures and always return nil

	records := make([]report.WellRecord, 0, len(jobs))
	var measured []report.WellMeasurements
	succeeded := 0
	for i, job := range jobs {
		if errs[i] != nil {
			log.Printf("Well %s failed: %v", job.Name, errs[i])
			records = append(records, report.WellRecord{
				Well: job.Name,
				Seed: wellSeed(opts.BaseSeed, job.Name),
				Err:  errs[i].Error(),
				Result: register.Result{
					RMSE:    math.NaN(),
					Quality: register.QualityUnknown,
				},
			})
			continue
		}
		out := outcomes[i]
		succeeded++
		note := ""
		if !out.Record.Result.Quality.Trustworthy() {
			note = " (review)"
		}
		log.Printf("Well %s: %d spots, %d iterations, rmse %.2fpx, quality %s%s",
			job.Name, out.Record.SpotCount, out.Record.Result.Iterations, out.Record.Result.RMSE, out.Record.Result.Quality, note)
		records = append(records, out.Record)
		measured = append(measured, report.WellMeasurements{Well: job.Name, Points: out.Measurements})
	}

	if err := writeArtifacts(opts, runID, records, measured, jobs, outcomes); err != nil {
		return succeeded, err
	}

	if opts.Store != nil {
		for _, rec := range records {
			if err := opts.Store.InsertWell(toStoreWell(runID, rec)); err != nil {
				log.Printf("Failed to store well %s: %v", rec.Well, err)
			}
		}
		runErr := ""
		if succeeded < len(jobs) {
			runErr = fmt.Sprintf("%d of %d wells failed", len(jobs)-succeeded, len(jobs))
		}
		if err := opts.Store.FinishRun(runID, runErr); err != nil {
			log.Printf("Failed to finish run %s: %v", runID, err)
		}
	}

	log.Printf("Run %s: %d/%d wells registered, artifacts in %s", runID, succeeded, len(jobs), opts.Output)
	return succeeded, nil
}

func writeArtifacts(opts batchOptions, runID string, records []report.WellRecord, measured []report.WellMeasurements, jobs []wellJob, outcomes []*wellOutcome) error {
	artifacts := report.NewArtifacts(opts.Output)

	if err := artifacts.SaveTransforms(records); err != nil {
		return fmt.Errorf("save transforms: %w", err)
	}
	if err := artifacts.SaveMeasurements(measured); err != nil {
		return fmt.Errorf("save measurements: %w", err)
	}
	if err := artifacts.SaveRunReport(report.RunReport{
		RunID:       runID,
		Source:      opts.Input,
		GeneratedAt: time.Now().UTC(),
		Wells:       records,
	}); err != nil {
		return fmt.Errorf("save run report: %w", err)
	}

	if !opts.Debug {
		return nil
	}
	for i, job := range jobs {
		out := outcomes[i]
		if out == nil {
			continue
		}
		if err := artifacts.SaveOverlay(job.Name, out.Image, out.Detected, out.Registered); err != nil {
			log.Printf("Overlay for %s: %v", job.Name, err)
		}
		if err := artifacts.SaveScatter(job.Name, out.Detected, out.Registered); err != nil {
			log.Printf("Scatter for %s: %v", job.Name, err)
		}
	}
	return nil
}

// processWell runs the full pipeline on one image: detect spots, register
// the reference grid's fiducials against them, apply the estimate to the
// whole grid, and measure spot intensities at the registered positions.
func processWell(ctx context.Context, job wellJob, cfg *config.RegistrationConfig, baseSeed uint64) (*wellOutcome, error) {
	img, err := spots.Load(job.Path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", job.Path, err)
	}
	if dim := cfg.GetMaxImageDim(); dim > 0 {
		img = img.ScaleToFit(dim)
	}

	detected, err := spots.Detect(img, cfg.GetDetectConfig())
	if err != nil {
		return nil, fmt.Errorf("detect spots: %w", err)
	}
	observed := spots.Centres(detected)

	spec := cfg.GetGridSpec()
	prior := cfg.GetPrior(observed.Centroid())
	reference := register.ReferenceGrid(prior.Mean, spec)
	fiducials, err := reference.Select(cfg.GetFiducialIndexes())
	if err != nil {
		return nil, fmt.Errorf("select fiducials: %w", err)
	}

	seed := wellSeed(baseSeed, job.Name)
	res, err := register.Register(ctx, fiducials, observed, prior, cfg.GetFilterConfig(seed))
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	registered, err := register.ApplyTransform(res.Transform, reference)
	if err != nil {
		return nil, fmt.Errorf("apply transform: %w", err)
	}

	measurements, err := intensity.MeasureGrid(img, registered, spec, cfg.GetMeasureConfig())
	if err != nil {
		return nil, fmt.Errorf("measure grid: %w", err)
	}

	tx, ty, theta, scale := res.Transform.Params(prior.Mean)
	return &wellOutcome{
		Record: report.WellRecord{
			Well:      job.Name,
			SpotCount: len(detected),
			Seed:      seed,
			TX:        tx,
			TY:        ty,
			ThetaRad:  theta,
			Scale:     scale,
			Result:    res,
		},
		Measurements: measurements,
		Image:        img,
		Detected:     observed,
		Registered:   registered,
	}, nil
}

var wellNameRe = regexp.MustCompile(`^([A-Za-z]+)(\d+)$`)

// scanWells lists the well images under dir, named by filename stem and
// ordered in plate order.
func scanWells(dir string) ([]wellJob, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	var jobs []wellJob
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg", ".tif", ".tiff":
		default:
			continue
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		jobs = append(jobs, wellJob{Name: name, Path: filepath.Join(dir, e.Name())})
	}

	sort.Slice(jobs, func(i, j int) bool { return lessWellName(jobs[i].Name, jobs[j].Name) })
	return jobs, nil
}

// lessWellName orders plate coordinates row letter first, then numerically,
// so A2 comes before A10. Names that are not plate coordinates sort after
// the coordinates, lexicographically.
func lessWellName(a, b string) bool {
	ma := wellNameRe.FindStringSubmatch(a)
	mb := wellNameRe.FindStringSubmatch(b)
	switch {
	case ma == nil && mb == nil:
		return a < b
	case ma == nil:
		return false
	case mb == nil:
		return true
	}
	ra, rb := strings.ToUpper(ma[1]), strings.ToUpper(mb[1])
	if len(ra) != len(rb) {
		// Row AA follows row Z on large plates.
		return len(ra) < len(rb)
	}
	if ra != rb {
		return ra < rb
	}
	na, _ := strconv.Atoi(ma[2])
	nb, _ := strconv.Atoi(mb[2])
	if na != nb {
		return na < nb
	}
	return a < b
}

// wellSeed derives a stable per-well seed so wells are independent of each
// other while the whole run stays reproducible from one base seed.
func wellSeed(base uint64, well string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(well))
	return base ^ h.Sum64()
}

func toStoreWell(runID string, rec report.WellRecord) runstore.WellResult {
	return runstore.WellResult{
		RunID:      runID,
		Well:       rec.Well,
		SpotCount:  rec.SpotCount,
		Seed:       rec.Seed,
		Iterations: rec.Result.Iterations,
		Converged:  rec.Result.Converged,
		Quality:    string(rec.Result.Quality),
		RMSE:       rec.Result.RMSE,
		TX:         rec.TX,
		TY:         rec.TY,
		ThetaRad:   rec.ThetaRad,
		Scale:      rec.Scale,
		M:          rec.Result.Transform.M,
		Error:      rec.Err,
	}
}
