package report

import (
	"bytes"
	"encoding/csv"
	"image/png"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/assay.report/internal/fsutil"
	"github.com/banshee-data/assay.report/internal/register"
)

func memArtifacts(t *testing.T) (*Artifacts, *fsutil.MemoryFileSystem) {
	t.Helper()
	fs := fsutil.NewMemoryFileSystem()
	return &Artifacts{FS: fs, Dir: t.TempDir()}, fs
}

func TestArtifacts_SaveTransforms(t *testing.T) {
	a, fs := memArtifacts(t)
	recs := []WellRecord{
		{Well: "A1", SpotCount: 3, Result: register.Result{Quality: register.QualityGood}},
		{Well: "A2", SpotCount: 5, Result: register.Result{Quality: register.QualityFair}},
	}

	if err := a.SaveTransforms(recs); err != nil {
		t.Fatalf("SaveTransforms: %v", err)
	}

	data, err := fs.ReadFile(filepath.Join(a.Dir, "transforms.csv"))
	if err != nil {
		t.Fatalf("read transforms.csv: %v", err)
	}
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("parse transforms.csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header plus 2 records", len(rows))
	}
	if rows[1][0] != "A1" || rows[2][0] != "A2" {
		t.Errorf("well order = %q, %q", rows[1][0], rows[2][0])
	}
}

func TestArtifacts_SaveOverlaySanitizesWellName(t *testing.T) {
	a, fs := memArtifacts(t)
	img := flatWell(16, 16, 100)

	if err := a.SaveOverlay("../evil", img, nil, nil); err != nil {
		t.Fatalf("SaveOverlay: %v", err)
	}

	data, err := fs.ReadFile(filepath.Join(a.Dir, "wells", "evil_overlay.png"))
	if err != nil {
		t.Fatalf("overlay not at sanitized path: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Fatalf("overlay is not a PNG: %v", err)
	}
}

func TestArtifacts_SaveScatterWritesPNG(t *testing.T) {
	a, fs := memArtifacts(t)
	detected := register.PointSet{{X: 10, Y: 10}, {X: 20, Y: 11}}
	registered := register.PointSet{{X: 10.5, Y: 9.5}, {X: 19.5, Y: 11.5}}

	if err := a.SaveScatter("B3", detected, registered); err != nil {
		t.Fatalf("SaveScatter: %v", err)
	}

	data, err := fs.ReadFile(filepath.Join(a.Dir, "wells", "B3_scatter.png"))
	if err != nil {
		t.Fatalf("read scatter: %v", err)
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Fatalf("scatter is not a PNG: %v", err)
	}
}

func TestArtifacts_SaveRunReport(t *testing.T) {
	a, fs := memArtifacts(t)
	rep := RunReport{RunID: "run-7", GeneratedAt: time.Now(), Wells: []WellRecord{{Well: "A1"}}}

	if err := a.SaveRunReport(rep); err != nil {
		t.Fatalf("SaveRunReport: %v", err)
	}

	data, err := fs.ReadFile(filepath.Join(a.Dir, "report.html"))
	if err != nil {
		t.Fatalf("read report.html: %v", err)
	}
	if !strings.Contains(string(data), "run-7") {
		t.Error("report missing run id")
	}
}

func TestArtifacts_CreateRejectsEscapingPaths(t *testing.T) {
	a, fs := memArtifacts(t)

	f, err := a.create(filepath.Join("..", "escape.csv"))
	if err == nil {
		f.Close()
		t.Fatal("expected traversal rejection")
	}
	if fs.Exists(filepath.Join(filepath.Dir(a.Dir), "escape.csv")) {
		t.Error("escaping file was created outside the artifacts directory")
	}
}
