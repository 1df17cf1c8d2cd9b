package report

import (
	"bytes"
	"encoding/csv"
	"math"
	"strconv"
	"testing"

	"github.com/banshee-data/assay.report/internal/intensity"
	"github.com/banshee-data/assay.report/internal/register"
)

func TestWriteTransformRow_Fields(t *testing.T) {
	rec := WellRecord{
		Well:      "A1",
		SpotCount: 34,
		Seed:      12345,
		TX:        620.5,
		TY:        540.25,
		ThetaRad:  0.0523,
		Scale:     1.02,
		Result: register.Result{
			Transform:  register.Transform{M: [6]float64{1, 0, 15, 0, 1, -8}},
			Iterations: 27,
			Converged:  true,
			RMSE:       1.234,
			Quality:    register.QualityExcellent,
		},
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	WriteTransformHeaders(w)
	WriteTransformRow(w, rec)
	w.Flush()

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want header plus one record", len(rows))
	}
	header, row := rows[0], rows[1]
	if len(header) != 18 || len(row) != 18 {
		t.Fatalf("got %d header and %d record columns, want 18", len(header), len(row))
	}

	if row[0] != "A1" || row[1] != "34" || row[2] != "12345" {
		t.Errorf("identity columns = %v", row[:3])
	}
	if row[3] != "27" || row[4] != "true" || row[5] != "excellent" {
		t.Errorf("outcome columns = %v", row[3:6])
	}
	for i, want := range map[int]float64{6: 1.234, 7: 620.5, 8: 540.25, 9: 0.0523, 10: 1.02, 13: 15, 16: -8} {
		got, err := strconv.ParseFloat(row[i], 64)
		if err != nil {
			t.Fatalf("column %d %q: %v", i, row[i], err)
		}
		if math.Abs(got-want) > 1e-6 {
			t.Errorf("column %d = %v, want %v", i, got, want)
		}
	}
}

func TestWriteTransformRow_FailedWell(t *testing.T) {
	rec := WellRecord{
		Well: "C7",
		Err:  "weighting pass 3: registration diverged",
		Result: register.Result{
			RMSE:    math.NaN(),
			Quality: register.QualityUnknown,
		},
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	WriteTransformRow(w, rec)
	w.Flush()

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	row := rows[0]
	if row[5] != "unknown" {
		t.Errorf("quality = %q, want unknown", row[5])
	}
	if row[6] != "NaN" {
		t.Errorf("rmse = %q, want NaN", row[6])
	}
	if row[17] != rec.Err {
		t.Errorf("error column = %q, want %q", row[17], rec.Err)
	}
}

func TestWriteMeasurementRow_Fields(t *testing.T) {
	m := intensity.Measurement{
		Row:        2,
		Col:        3,
		Centre:     register.Point{X: 101.5, Y: 88.25},
		Median:     52,
		Mean:       54.5,
		Background: 201.75,
		OD:         0.583,
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	WriteMeasurementHeaders(w)
	WriteMeasurementRow(w, "B4", m)
	w.Flush()

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	row := rows[1]
	if row[0] != "B4" || row[1] != "2" || row[2] != "3" {
		t.Errorf("position columns = %v", row[:3])
	}
	if row[3] != "101.500" || row[4] != "88.250" {
		t.Errorf("centre columns = %v", row[3:5])
	}
	if row[8] != "0.583000" {
		t.Errorf("od column = %q", row[8])
	}
}

func TestWriteMeasurementRow_NaNSurvivesAsText(t *testing.T) {
	m := intensity.Measurement{Row: 0, Col: 0, Median: math.NaN(), Mean: math.NaN(), OD: math.NaN()}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	WriteMeasurementRow(w, "A1", m)
	w.Flush()

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if rows[0][5] != "NaN" || rows[0][8] != "NaN" {
		t.Errorf("NaN cells = %q, %q", rows[0][5], rows[0][8])
	}
}
