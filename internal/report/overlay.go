package report

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/banshee-data/assay.report/internal/register"
	"github.com/banshee-data/assay.report/internal/spots"
)

var (
	detectedMark   = color.RGBA{R: 0x2e, G: 0xcc, B: 0x40, A: 0xff}
	registeredMark = color.RGBA{R: 0xff, G: 0x41, B: 0x36, A: 0xff}
)

// RenderOverlay draws detected spot centres as crosses and registered
// grid positions as boxes over the well image. Marks outside the image
// are clipped rather than rejected so partial alignments stay visible.
func RenderOverlay(img *spots.WellImage, detected, registered register.PointSet) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	xdraw.Draw(out, out.Bounds(), img.Gray(), image.Point{}, xdraw.Src)

	for _, p := range detected {
		drawCross(out, p, 5, detectedMark)
	}
	for _, p := range registered {
		drawBox(out, p, 4, registeredMark)
	}
	return out
}

// EncodeOverlayPNG renders the overlay and writes it out as PNG.
func EncodeOverlayPNG(w io.Writer, img *spots.WellImage, detected, registered register.PointSet) error {
	return png.Encode(w, RenderOverlay(img, detected, registered))
}

func drawCross(dst *image.RGBA, at register.Point, arm int, c color.RGBA) {
	cx := int(math.Round(at.X))
	cy := int(math.Round(at.Y))
	for d := -arm; d <= arm; d++ {
		setIfInside(dst, cx+d, cy, c)
		setIfInside(dst, cx, cy+d, c)
	}
}

func drawBox(dst *image.RGBA, at register.Point, half int, c color.RGBA) {
	cx := int(math.Round(at.X))
	cy := int(math.Round(at.Y))
	for d := -half; d <= half; d++ {
		setIfInside(dst, cx+d, cy-half, c)
		setIfInside(dst, cx+d, cy+half, c)
		setIfInside(dst, cx-half, cy+d, c)
		setIfInside(dst, cx+half, cy+d, c)
	}
}

func setIfInside(dst *image.RGBA, x, y int, c color.RGBA) {
	if (image.Point{X: x, Y: y}).In(dst.Bounds()) {
		dst.SetRGBA(x, y, c)
	}
}
