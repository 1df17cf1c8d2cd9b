// Package report renders registration run artifacts: CSV tables of
// transforms and spot measurements, overlay and scatter images for
// individual wells, and a self-contained HTML summary for a whole run.
package report

import (
	"encoding/csv"
	"fmt"

	"github.com/banshee-data/assay.report/internal/intensity"
	"github.com/banshee-data/assay.report/internal/register"
)

// WellRecord is one well's registration outcome flattened for reporting.
// TX, TY, ThetaRad and Scale are the decomposed parameters of
// Result.Transform about the well's grid centre; failed wells carry a
// non-empty Err and zero-valued results.
type WellRecord struct {
	Well      string
	SpotCount int
	Seed      uint64
	TX        float64
	TY        float64
	ThetaRad  float64
	Scale     float64
	Result    register.Result
	Err       string
}

// WellMeasurements pairs a well name with its per-position grid measurements.
type WellMeasurements struct {
	Well   string
	Points []intensity.Measurement
}

// WriteTransformHeaders writes the header row for the per-well transform table.
func WriteTransformHeaders(w *csv.Writer) {
	w.Write([]string{
		"well", "spots", "seed", "iterations", "converged", "quality", "rmse_px",
		"tx", "ty", "theta_rad", "scale",
		"m00", "m01", "m02", "m10", "m11", "m12",
		"error",
	})
}

// WriteTransformRow writes a single well's registration outcome.
func WriteTransformRow(w *csv.Writer, rec WellRecord) {
	m := rec.Result.Transform.M
	row := []string{
		rec.Well,
		fmt.Sprintf("%d", rec.SpotCount),
		fmt.Sprintf("%d", rec.Seed),
		fmt.Sprintf("%d", rec.Result.Iterations),
		fmt.Sprintf("%t", rec.Result.Converged),
		string(rec.Result.Quality),
		fmt.Sprintf("%.6f", rec.Result.RMSE),
		fmt.Sprintf("%.6f", rec.TX),
		fmt.Sprintf("%.6f", rec.TY),
		fmt.Sprintf("%.8f", rec.ThetaRad),
		fmt.Sprintf("%.8f", rec.Scale),
	}
	for _, v := range m {
		row = append(row, fmt.Sprintf("%.8f", v))
	}
	row = append(row, rec.Err)

	w.Write(row)
	w.Flush()
}

// WriteMeasurementHeaders writes the header row for the grid measurement table.
func WriteMeasurementHeaders(w *csv.Writer) {
	w.Write([]string{"well", "row", "col", "x", "y", "median", "mean", "background", "od"})
}

// WriteMeasurementRow writes a single grid position's intensity measurement.
func WriteMeasurementRow(w *csv.Writer, well string, m intensity.Measurement) {
	w.Write([]string{
		well,
		fmt.Sprintf("%d", m.Row),
		fmt.Sprintf("%d", m.Col),
		fmt.Sprintf("%.3f", m.Centre.X),
		fmt.Sprintf("%.3f", m.Centre.Y),
		fmt.Sprintf("%.3f", m.Median),
		fmt.Sprintf("%.3f", m.Mean),
		fmt.Sprintf("%.3f", m.Background),
		fmt.Sprintf("%.6f", m.OD),
	})
	w.Flush()
}
