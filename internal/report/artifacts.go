package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"

	"github.com/banshee-data/assay.report/internal/fsutil"
	"github.com/banshee-data/assay.report/internal/register"
	"github.com/banshee-data/assay.report/internal/security"
	"github.com/banshee-data/assay.report/internal/spots"
)

// Artifacts writes run outputs beneath a single directory. Well names are
// derived from user-supplied filenames, so every path built from one is
// validated against escaping the output root before anything is created.
type Artifacts struct {
	FS  fsutil.FileSystem
	Dir string
}

// NewArtifacts returns an Artifacts writing to dir on the host filesystem.
func NewArtifacts(dir string) *Artifacts {
	return &Artifacts{FS: fsutil.OSFileSystem{}, Dir: dir}
}

// SaveTransforms writes the per-well transform table to transforms.csv.
func (a *Artifacts) SaveTransforms(recs []WellRecord) error {
	f, err := a.create("transforms.csv")
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	WriteTransformHeaders(w)
	for _, rec := range recs {
		WriteTransformRow(w, rec)
	}
	return a.closeCSV("transforms.csv", w, f)
}

// SaveMeasurements writes all wells' grid measurements to measurements.csv.
func (a *Artifacts) SaveMeasurements(wells []WellMeasurements) error {
	f, err := a.create("measurements.csv")
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	WriteMeasurementHeaders(w)
	for _, wm := range wells {
		for _, m := range wm.Points {
			WriteMeasurementRow(w, wm.Well, m)
		}
	}
	return a.closeCSV("measurements.csv", w, f)
}

// SaveOverlay writes the marked-up well image to wells/<well>_overlay.png.
func (a *Artifacts) SaveOverlay(well string, img *spots.WellImage, detected, registered register.PointSet) error {
	name := filepath.Join("wells", security.SanitizeFilename(well)+"_overlay.png")
	f, err := a.create(name)
	if err != nil {
		return err
	}
	if err := EncodeOverlayPNG(f, img, detected, registered); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	return f.Close()
}

// SaveScatter writes the detected-vs-registered plot to wells/<well>_scatter.png.
func (a *Artifacts) SaveScatter(well string, detected, registered register.PointSet) error {
	name := filepath.Join("wells", security.SanitizeFilename(well)+"_scatter.png")
	f, err := a.create(name)
	if err != nil {
		return err
	}
	if err := WriteScatterPNG(f, well, detected, registered); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	return f.Close()
}

// SaveRunReport writes the HTML run summary to report.html.
func (a *Artifacts) SaveRunReport(rep RunReport) error {
	f, err := a.create("report.html")
	if err != nil {
		return err
	}
	if err := RenderRunReport(f, rep); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Path returns the absolute location of a named artifact without creating it.
func (a *Artifacts) Path(name string) string {
	return filepath.Join(a.Dir, name)
}

// create validates and opens an artifact file, making parent directories
// as needed. The output root must exist before validation because symlink
// resolution refuses paths whose safe directory is missing.
func (a *Artifacts) create(name string) (io.WriteCloser, error) {
	if err := a.FS.MkdirAll(a.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("output dir %s: %w", a.Dir, err)
	}
	path := filepath.Join(a.Dir, name)
	if err := security.ValidatePathWithinDirectory(path, a.Dir); err != nil {
		return nil, fmt.Errorf("artifact %q: %w", name, err)
	}
	if dir := filepath.Dir(path); dir != a.Dir {
		if err := a.FS.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("artifact dir for %q: %w", name, err)
		}
	}
	f, err := a.FS.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return f, nil
}

func (a *Artifacts) closeCSV(name string, w *csv.Writer, f io.WriteCloser) error {
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	return nil
}
