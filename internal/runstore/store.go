// Package runstore persists registration runs and per-well outcomes in
// SQLite so past plates can be queried, summarised, and served without
// re-processing the images.
package runstore

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/assay.report/internal/monitoring"
	"github.com/banshee-data/assay.report/internal/timeutil"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Store struct {
	*sql.DB

	path  string
	clock timeutil.Clock
}

// Run is one invocation of the registration pipeline over a directory of
// well images.
type Run struct {
	ID          string     `json:"id"`
	Source      string     `json:"source"`
	GridRows    int        `json:"grid_rows"`
	GridCols    int        `json:"grid_cols"`
	GridSpacing float64    `json:"grid_spacing"`
	Seed        uint64     `json:"seed"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// WellResult is one well's stored registration outcome. RMSE is NaN for
// wells that never produced an estimate; it is persisted as NULL.
type WellResult struct {
	ID         string     `json:"id"`
	RunID      string     `json:"run_id"`
	Well       string     `json:"well"`
	SpotCount  int        `json:"spot_count"`
	Seed       uint64     `json:"seed"`
	Iterations int        `json:"iterations"`
	Converged  bool       `json:"converged"`
	Quality    string     `json:"quality"`
	RMSE       float64    `json:"rmse_px"`
	TX         float64    `json:"tx"`
	TY         float64    `json:"ty"`
	ThetaRad   float64    `json:"theta_rad"`
	Scale      float64    `json:"scale"`
	M          [6]float64 `json:"matrix"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// MarshalJSON emits a NaN RMSE as null; encoding/json rejects NaN outright.
func (w WellResult) MarshalJSON() ([]byte, error) {
	type alias WellResult
	aux := struct {
		alias
		RMSE *float64 `json:"rmse_px"`
	}{alias: alias(w)}
	if !math.IsNaN(w.RMSE) {
		aux.RMSE = &w.RMSE
	}
	return json.Marshal(aux)
}

// RunSummary aggregates a run's wells for dashboards and the CLI exit path.
type RunSummary struct {
	RunID     string         `json:"run_id"`
	Wells     int            `json:"wells"`
	Converged int            `json:"converged"`
	Failed    int            `json:"failed"`
	ByQuality map[string]int `json:"by_quality"`
	MeanRMSE  float64        `json:"mean_rmse_px"`
}

// MarshalJSON emits a NaN mean as null, mirroring WellResult.
func (s RunSummary) MarshalJSON() ([]byte, error) {
	type alias RunSummary
	aux := struct {
		alias
		MeanRMSE *float64 `json:"mean_rmse_px"`
	}{alias: alias(s)}
	if !math.IsNaN(s.MeanRMSE) {
		aux.MeanRMSE = &s.MeanRMSE
	}
	return json.Marshal(aux)
}

// Open opens (creating if needed) the run database at path and applies any
// pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	s := &Store{DB: db, path: path, clock: timeutil.RealClock{}}
	if err := s.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate applies all pending schema migrations from the embedded set.
func (s *Store) Migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(s.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}

	// Note: the migrate instance is not closed because that would close
	// the underlying DB connection.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{logf: monitoring.Scoped("migrate")}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// migrateLogger adapts the package diagnostic log hook to migrate.Logger.
type migrateLogger struct {
	logf func(format string, v ...interface{})
}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	l.logf(format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

// BeginRun records the start of a pipeline run and returns it with its
// generated ID and start time filled in.
func (s *Store) BeginRun(source string, gridRows, gridCols int, gridSpacing float64, seed uint64) (*Run, error) {
	run := &Run{
		ID:          uuid.New().String(),
		Source:      source,
		GridRows:    gridRows,
		GridCols:    gridCols,
		GridSpacing: gridSpacing,
		Seed:        seed,
		StartedAt:   s.clock.Now().UTC(),
	}

	query := `
		INSERT INTO runs (id, source, grid_rows, grid_cols, grid_spacing, seed, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	err := retryOnBusy(func() error {
		_, err := s.Exec(query,
			run.ID,
			run.Source,
			run.GridRows,
			run.GridCols,
			run.GridSpacing,
			int64(run.Seed),
			run.StartedAt.Format(time.RFC3339),
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("inserting run %s: %w", run.ID, err)
	}
	return run, nil
}

// FinishRun marks a run complete, recording a run-level error if any.
func (s *Store) FinishRun(runID, runErr string) error {
	query := `UPDATE runs SET completed_at = ?, error = ? WHERE id = ?`
	err := retryOnBusy(func() error {
		_, err := s.Exec(query, s.clock.Now().UTC().Format(time.RFC3339), runErr, runID)
		return err
	})
	if err != nil {
		return fmt.Errorf("finishing run %s: %w", runID, err)
	}
	return nil
}

// InsertWell stores one well's outcome. A missing ID is generated.
func (s *Store) InsertWell(w WellResult) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = s.clock.Now().UTC()
	}

	query := `
		INSERT INTO wells (
			id, run_id, well, spot_count, seed, iterations, converged, quality,
			rmse_px, tx, ty, theta_rad, scale,
			m00, m01, m02, m10, m11, m12,
			error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	err := retryOnBusy(func() error {
		_, err := s.Exec(query,
			w.ID,
			w.RunID,
			w.Well,
			w.SpotCount,
			int64(w.Seed),
			w.Iterations,
			w.Converged,
			w.Quality,
			nullFloat(w.RMSE),
			w.TX,
			w.TY,
			w.ThetaRad,
			w.Scale,
			w.M[0], w.M[1], w.M[2], w.M[3], w.M[4], w.M[5],
			w.Error,
			w.CreatedAt.UTC().Format(time.RFC3339),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("inserting well %s for run %s: %w", w.Well, w.RunID, err)
	}
	return nil
}

// GetRun returns a single run by ID.
func (s *Store) GetRun(runID string) (*Run, error) {
	query := `
		SELECT id, source, grid_rows, grid_cols, grid_spacing, seed, started_at, completed_at, error
		FROM runs
		WHERE id = ?
	`
	run, err := scanRun(s.QueryRow(query, runID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s not found", runID)
		}
		return nil, fmt.Errorf("querying run %s: %w", runID, err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, source, grid_rows, grid_cols, grid_spacing, seed, started_at, completed_at, error
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`
	rows, err := s.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetWellResults returns all well outcomes for a run, ordered by well name.
func (s *Store) GetWellResults(runID string) ([]WellResult, error) {
	query := `
		SELECT id, run_id, well, spot_count, seed, iterations, converged, quality,
		       rmse_px, tx, ty, theta_rad, scale,
		       m00, m01, m02, m10, m11, m12,
		       error, created_at
		FROM wells
		WHERE run_id = ?
		ORDER BY well
	`
	rows, err := s.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("querying wells for run %s: %w", runID, err)
	}
	defer rows.Close()

	var results []WellResult
	for rows.Next() {
		var w WellResult
		var seed int64
		var rmse sql.NullFloat64
		var createdAt string
		err := rows.Scan(
			&w.ID, &w.RunID, &w.Well, &w.SpotCount, &seed, &w.Iterations, &w.Converged, &w.Quality,
			&rmse, &w.TX, &w.TY, &w.ThetaRad, &w.Scale,
			&w.M[0], &w.M[1], &w.M[2], &w.M[3], &w.M[4], &w.M[5],
			&w.Error, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning well row: %w", err)
		}
		w.Seed = uint64(seed)
		w.RMSE = math.NaN()
		if rmse.Valid {
			w.RMSE = rmse.Float64
		}
		if w.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
		}
		results = append(results, w)
	}
	return results, rows.Err()
}

// GetRunSummary aggregates a run's wells into counts and the mean RMSE of
// the wells that produced one. MeanRMSE is NaN when none did.
func (s *Store) GetRunSummary(runID string) (*RunSummary, error) {
	summary := &RunSummary{RunID: runID, ByQuality: make(map[string]int)}

	var meanRMSE sql.NullFloat64
	err := s.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(converged), 0),
		       COALESCE(SUM(CASE WHEN error != '' THEN 1 ELSE 0 END), 0),
		       AVG(rmse_px)
		FROM wells
		WHERE run_id = ?
	`, runID).Scan(&summary.Wells, &summary.Converged, &summary.Failed, &meanRMSE)
	if err != nil {
		return nil, fmt.Errorf("summarising run %s: %w", runID, err)
	}
	summary.MeanRMSE = math.NaN()
	if meanRMSE.Valid {
		summary.MeanRMSE = meanRMSE.Float64
	}

	rows, err := s.Query(`SELECT quality, COUNT(*) FROM wells WHERE run_id = ? GROUP BY quality`, runID)
	if err != nil {
		return nil, fmt.Errorf("summarising run %s quality: %w", runID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var quality string
		var n int
		if err := rows.Scan(&quality, &n); err != nil {
			return nil, fmt.Errorf("scanning quality row: %w", err)
		}
		summary.ByQuality[quality] = n
	}
	return summary, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var seed int64
	var startedAt string
	var completedAt sql.NullString
	err := row.Scan(
		&run.ID, &run.Source, &run.GridRows, &run.GridCols, &run.GridSpacing,
		&seed, &startedAt, &completedAt, &run.Error,
	)
	if err != nil {
		return nil, err
	}
	run.Seed = uint64(seed)
	if run.StartedAt, err = time.Parse(time.RFC3339, startedAt); err != nil {
		return nil, fmt.Errorf("parsing started_at %q: %w", startedAt, err)
	}
	if completedAt.Valid {
		t, err := time.Parse(time.RFC3339, completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing completed_at %q: %w", completedAt.String, err)
		}
		run.CompletedAt = &t
	}
	return &run, nil
}

// nullFloat maps NaN to NULL so SQLite never stores a non-numeric float.
func nullFloat(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
