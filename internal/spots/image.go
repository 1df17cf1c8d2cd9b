// Package spots detects assay spot centres in grayscale well photographs.
//
// Detection is intentionally simple: a global luminance threshold separates
// dark printed spots from the light membrane background, connected dark
// regions become candidate spots, and small specks are rejected by area. The
// resulting centroids are the observations consumed by the registration
// estimator; no correspondence to the printed layout is implied.
package spots

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
)

// WellImage is a grayscale well photograph held as a row-major luminance
// buffer, index y*Width+x.
type WellImage struct {
	Width  int
	Height int
	Pix    []uint8
}

// Load reads and decodes a well image (PNG, JPEG or TIFF) into luminance form.
func Load(path string) (*WellImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return FromImage(img), nil
}

// FromImage converts any decoded image to luminance form.
func FromImage(img image.Image) *WellImage {
	b := img.Bounds()
	w := &WellImage{
		Width:  b.Dx(),
		Height: b.Dy(),
		Pix:    make([]uint8, b.Dx()*b.Dy()),
	}

	if g, ok := img.(*image.Gray); ok {
		for y := 0; y < w.Height; y++ {
			copy(w.Pix[y*w.Width:(y+1)*w.Width], g.Pix[y*g.Stride:y*g.Stride+w.Width])
		}
		return w
	}

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			w.Pix[i] = color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y
			i++
		}
	}
	return w
}

// At returns the luminance at (x, y). Callers are expected to stay in bounds.
func (w *WellImage) At(x, y int) uint8 {
	return w.Pix[y*w.Width+x]
}

// Gray exposes the buffer as an image.Gray without copying, for rendering and
// rescaling.
func (w *WellImage) Gray() *image.Gray {
	return &image.Gray{
		Pix:    w.Pix,
		Stride: w.Width,
		Rect:   image.Rect(0, 0, w.Width, w.Height),
	}
}

// ScaleToFit returns the image downscaled so its longest side is at most
// maxDim pixels, or the receiver unchanged if it already fits. Spot
// coordinates detected on a scaled image are in the scaled frame.
func (w *WellImage) ScaleToFit(maxDim int) *WellImage {
	longest := w.Width
	if w.Height > longest {
		longest = w.Height
	}
	if maxDim <= 0 || longest <= maxDim {
		return w
	}

	scale := float64(maxDim) / float64(longest)
	dw := int(float64(w.Width)*scale + 0.5)
	dh := int(float64(w.Height)*scale + 0.5)
	if dw < 1 {
		dw = 1
	}
	if dh < 1 {
		dh = 1
	}

	dst := image.NewGray(image.Rect(0, 0, dw, dh))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), w.Gray(), w.Gray().Bounds(), xdraw.Over, nil)
	return FromImage(dst)
}
