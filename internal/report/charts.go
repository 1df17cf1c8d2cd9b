package report

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/assay.report/internal/register"
)

var viridis = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// RunReport collects per-well outcomes for the HTML run summary.
type RunReport struct {
	RunID       string
	Source      string
	GeneratedAt time.Time
	Wells       []WellRecord
}

// RenderRunReport writes a self-contained HTML page summarising a run:
// per-well alignment error, the quality distribution, and filter effort.
func RenderRunReport(w io.Writer, rep RunReport) error {
	page := components.NewPage()
	page.AddCharts(rmseBar(rep), qualityBar(rep), effortScatter(rep))
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render run report: %w", err)
	}
	return nil
}

// rmseBar charts fiducial RMSE per well. Failed wells carry NaN, which
// the JSON encoder rejects, so they are skipped here and show up in the
// quality chart instead.
func rmseBar(rep RunReport) *charts.Bar {
	x := make([]string, 0, len(rep.Wells))
	y := make([]opts.BarData, 0, len(rep.Wells))
	for _, rec := range rep.Wells {
		if rec.Err != "" || math.IsNaN(rec.Result.RMSE) {
			continue
		}
		x = append(x, rec.Well)
		y = append(y, opts.BarData{Value: rec.Result.RMSE})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Registration Run " + rep.RunID, Theme: "dark", Width: "1200px", Height: "520px"}),
		charts.WithTitleOpts(opts.Title{Title: "Fiducial RMSE by well", Subtitle: fmt.Sprintf("%s %s", rep.Source, rep.GeneratedAt.Format(time.RFC3339))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "rmse (px)"}),
	)
	bar.SetXAxis(x).AddSeries("rmse", y)
	return bar
}

func qualityBar(rep RunReport) *charts.Bar {
	order := []register.Quality{
		register.QualityExcellent,
		register.QualityGood,
		register.QualityFair,
		register.QualityPoor,
		register.QualityUnknown,
	}
	counts := make(map[register.Quality]int, len(order))
	for _, rec := range rep.Wells {
		q := rec.Result.Quality
		if q == "" {
			q = register.QualityUnknown
		}
		counts[q]++
	}

	x := make([]string, 0, len(order))
	y := make([]opts.BarData, 0, len(order))
	for _, q := range order {
		x = append(x, string(q))
		y = append(y, opts.BarData{Value: counts[q]})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "720px", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Registration quality", Subtitle: fmt.Sprintf("%d wells", len(rep.Wells))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("wells", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

// effortScatter plots iterations against RMSE per well, coloured by the
// number of detected spots, to show how hard the filter had to work.
func effortScatter(rep RunReport) *charts.Scatter {
	data := make([]opts.ScatterData, 0, len(rep.Wells))
	maxSpots := 1
	for _, rec := range rep.Wells {
		if rec.Err != "" || math.IsNaN(rec.Result.RMSE) {
			continue
		}
		if rec.SpotCount > maxSpots {
			maxSpots = rec.SpotCount
		}
		data = append(data, opts.ScatterData{
			Name:  rec.Well,
			Value: []interface{}{rec.Result.Iterations, rec.Result.RMSE, rec.SpotCount},
		})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "900px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Filter effort", Subtitle: "iterations vs rmse, colour = detected spots"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "iterations", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "rmse (px)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxSpots),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridis},
		}),
	)
	scatter.AddSeries("wells", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}))
	return scatter
}
