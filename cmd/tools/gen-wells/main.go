// Command gen-wells renders synthetic well photographs with known grid
// transforms, for pipeline testing and demos. Alongside the PNGs it writes
// truth.csv recording each well's true transform parameters.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/assay.report/internal/register"
)

func main() {
	output := flag.String("o", "testdata/wells", "output directory")
	wells := flag.Int("n", 8, "number of wells")
	rows := flag.Int("rows", 6, "grid rows")
	cols := flag.Int("cols", 6, "grid columns")
	spacing := flag.Float64("spacing", 82, "grid spacing in pixels")
	size := flag.Int("size", 1200, "image width and height")
	spotSigma := flag.Float64("spot-sigma", 8, "spot Gaussian sigma in pixels")
	depth := flag.Float64("depth", 120, "spot darkness below the membrane")
	membrane := flag.Float64("membrane", 210, "membrane luminance")
	noise := flag.Float64("noise", 5, "membrane noise sigma")
	maxShift := flag.Float64("max-shift", 40, "max |tx|,|ty| offset from centre")
	maxAngle := flag.Float64("max-angle", 0.04, "max |rotation| in radians")
	maxScaleErr := flag.Float64("max-scale-err", 0.02, "max |scale-1|")
	drop := flag.Float64("drop", 0, "probability of dropping each spot")
	spurious := flag.Int("spurious", 0, "spurious blobs per well")
	seed := flag.Uint64("seed", 1, "generator seed")
	flag.Parse()

	spec := register.GridSpec{Rows: *rows, Cols: *cols, Spacing: *spacing}
	if err := spec.Validate(); err != nil {
		log.Fatalf("bad grid: %v", err)
	}
	if err := os.MkdirAll(*output, 0o755); err != nil {
		log.Fatalf("create %s: %v", *output, err)
	}

	gen := &generator{
		spec:      spec,
		size:      *size,
		spotSigma: *spotSigma,
		depth:     *depth,
		membrane:  *membrane,
		noise:     *noise,
		rng:       rand.New(rand.NewPCG(*seed, *seed)),
		noiseSrc:  rand.NewPCG(*seed+1, *seed+1),
	}

	truthPath := filepath.Join(*output, "truth.csv")
	tf, err := os.Create(truthPath)
	if err != nil {
		log.Fatalf("create %s: %v", truthPath, err)
	}
	defer tf.Close()
	tw := csv.NewWriter(tf)
	tw.Write([]string{"well", "tx", "ty", "theta_rad", "scale", "dropped", "spurious"})

	for i := 0; i < *wells; i++ {
		name := fmt.Sprintf("%c%d", 'A'+i/12, i%12+1)

		truth := gen.drawTruth(*maxShift, *maxAngle, *maxScaleErr)
		img, dropped := gen.render(truth, *drop, *spurious)

		path := filepath.Join(*output, name+".png")
		if err := writePNG(path, img); err != nil {
			log.Fatalf("write %s: %v", path, err)
		}
		tw.Write([]string{
			name,
			fmt.Sprintf("%.4f", truth.tx),
			fmt.Sprintf("%.4f", truth.ty),
			fmt.Sprintf("%.6f", truth.theta),
			fmt.Sprintf("%.6f", truth.scale),
			fmt.Sprintf("%d", dropped),
			fmt.Sprintf("%d", *spurious),
		})
		log.Printf("%s: shift (%.1f, %.1f), theta %.4f, scale %.4f, %d dropped",
			name, truth.tx-float64(*size)/2, truth.ty-float64(*size)/2, truth.theta, truth.scale, dropped)
	}
	tw.Flush()
	if err := tw.Error(); err != nil {
		log.Fatalf("write %s: %v", truthPath, err)
	}
	log.Printf("✓ Created: %d wells in %s", *wells, *output)
}

// wellTruth holds one well's true transform parameters. tx and ty are the
// absolute image position the grid centre maps to, matching the estimator's
// output convention.
type wellTruth struct {
	tx, ty, theta, scale float64
}

type generator struct {
	spec      register.GridSpec
	size      int
	spotSigma float64
	depth     float64
	membrane  float64
	noise     float64
	rng       *rand.Rand
	noiseSrc  rand.Source
}

func (g *generator) drawTruth(maxShift, maxAngle, maxScaleErr float64) wellTruth {
	c := float64(g.size) / 2
	return wellTruth{
		tx:    c + (g.rng.Float64()*2-1)*maxShift,
		ty:    c + (g.rng.Float64()*2-1)*maxShift,
		theta: (g.rng.Float64()*2 - 1) * maxAngle,
		scale: 1 + (g.rng.Float64()*2-1)*maxScaleErr,
	}
}

// render draws the grid under the truth transform onto a noisy membrane and
// returns the image with how many spots were dropped.
func (g *generator) render(truth wellTruth, drop float64, spurious int) (*image.Gray, int) {
	buf := make([]float64, g.size*g.size)
	membrane := distuv.Normal{Mu: g.membrane, Sigma: g.noise, Src: g.noiseSrc}
	if g.noise <= 0 {
		for i := range buf {
			buf[i] = g.membrane
		}
	} else {
		for i := range buf {
			buf[i] = membrane.Rand()
		}
	}

	centre := register.Point{X: float64(g.size) / 2, Y: float64(g.size) / 2}
	t := register.Similarity(centre, truth.tx, truth.ty, truth.theta, truth.scale)

	dropped := 0
	for _, p := range register.ReferenceGrid(centre, g.spec) {
		if drop > 0 && g.rng.Float64() < drop {
			dropped++
			continue
		}
		g.stamp(buf, t.Apply(p), g.spotSigma)
	}

	margin := 2 * g.spec.Spacing
	for i := 0; i < spurious; i++ {
		pos := register.Point{
			X: margin + g.rng.Float64()*(float64(g.size)-2*margin),
			Y: margin + g.rng.Float64()*(float64(g.size)-2*margin),
		}
		g.stamp(buf, pos, 3+g.rng.Float64()*6)
	}

	img := image.NewGray(image.Rect(0, 0, g.size, g.size))
	for i, v := range buf {
		switch {
		case v < 0:
			img.Pix[i] = 0
		case v > 255:
			img.Pix[i] = 255
		default:
			img.Pix[i] = uint8(v + 0.5)
		}
	}
	return img, dropped
}

// stamp subtracts a Gaussian dip of the configured depth at centre.
func (g *generator) stamp(buf []float64, centre register.Point, sigma float64) {
	reach := 4 * sigma
	x0 := int(math.Max(0, math.Floor(centre.X-reach)))
	x1 := int(math.Min(float64(g.size-1), math.Ceil(centre.X+reach)))
	y0 := int(math.Max(0, math.Floor(centre.Y-reach)))
	y1 := int(math.Min(float64(g.size-1), math.Ceil(centre.Y+reach)))
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			dx := float64(x) - centre.X
			dy := float64(y) - centre.Y
			buf[y*g.size+x] -= g.depth * math.Exp(-(dx*dx+dy*dy)/(2*sigma*sigma))
		}
	}
}

func writePNG(path string, img *image.Gray) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
