package report

import (
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/assay.report/internal/register"
)

// WriteScatterPNG plots detected centres against the registered grid so
// alignment can be judged without the source image. Y grows downward in
// image coordinates, so the vertical axis is inverted to match the photo.
func WriteScatterPNG(w io.Writer, well string, detected, registered register.PointSet) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s detected vs registered", well)
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "y (px)"

	det, err := plotter.NewScatter(toXYs(detected))
	if err != nil {
		return fmt.Errorf("detected series: %w", err)
	}
	det.GlyphStyle.Color = detectedMark
	det.GlyphStyle.Radius = vg.Points(3)
	det.GlyphStyle.Shape = draw.CrossGlyph{}

	reg, err := plotter.NewScatter(toXYs(registered))
	if err != nil {
		return fmt.Errorf("registered series: %w", err)
	}
	reg.GlyphStyle.Color = registeredMark
	reg.GlyphStyle.Radius = vg.Points(2)
	reg.GlyphStyle.Shape = draw.RingGlyph{}

	p.Add(plotter.NewGrid(), det, reg)
	p.Legend.Add("detected", det)
	p.Legend.Add("registered", reg)
	p.Legend.Top = true

	wt, err := p.WriterTo(6*vg.Inch, 6*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("render scatter: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write scatter: %w", err)
	}
	return nil
}

func toXYs(pts register.PointSet) plotter.XYs {
	xys := make(plotter.XYs, len(pts))
	for i, pt := range pts {
		xys[i].X = pt.X
		xys[i].Y = -pt.Y
	}
	return xys
}
