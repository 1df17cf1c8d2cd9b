package spots

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func TestFromImage_GrayCopiesPixels(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 8, 4))
	for i := range src.Pix {
		src.Pix[i] = uint8(i * 7)
	}

	img := FromImage(src)

	if img.Width != 8 || img.Height != 4 {
		t.Fatalf("dimensions = %dx%d, want 8x4", img.Width, img.Height)
	}
	if img.At(3, 2) != src.GrayAt(3, 2).Y {
		t.Errorf("pixel (3,2) = %d, want %d", img.At(3, 2), src.GrayAt(3, 2).Y)
	}
}

func TestFromImage_ColorConvertsToLuminance(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.Set(0, 0, color.NRGBA{R: 255, A: 255})
	src.Set(1, 0, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	img := FromImage(src)

	// Pure red sits near 0.3 of full luminance; white stays white.
	if v := img.At(0, 0); v < 60 || v > 90 {
		t.Errorf("red luminance = %d, want around 76", v)
	}
	if v := img.At(1, 0); v != 255 {
		t.Errorf("white luminance = %d, want 255", v)
	}
}

func TestScaleToFit_Downscales(t *testing.T) {
	img := uniformImage(400, 200, 180)

	scaled := img.ScaleToFit(100)

	if scaled.Width != 100 || scaled.Height != 50 {
		t.Fatalf("scaled to %dx%d, want 100x50", scaled.Width, scaled.Height)
	}
	if scaled.At(50, 25) != 180 {
		t.Errorf("uniform image changed value to %d after scaling", scaled.At(50, 25))
	}
}

func TestScaleToFit_NoopWhenSmall(t *testing.T) {
	img := uniformImage(80, 60, 90)

	if scaled := img.ScaleToFit(100); scaled != img {
		t.Error("expected the same image back when it already fits")
	}
	if scaled := img.ScaleToFit(0); scaled != img {
		t.Error("expected the same image back when maxDim is disabled")
	}
}

func TestLoad_PNGRoundTrip(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 16, 16))
	for i := range src.Pix {
		src.Pix[i] = uint8(255 - i)
	}
	path := filepath.Join(t.TempDir(), "A1.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating temp png: %v", err)
	}
	if err := png.Encode(f, src); err != nil {
		t.Fatalf("encoding: %v", err)
	}
	f.Close()

	img, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.Width != 16 || img.Height != 16 {
		t.Fatalf("dimensions = %dx%d, want 16x16", img.Width, img.Height)
	}
	if img.At(1, 0) != src.GrayAt(1, 0).Y {
		t.Errorf("pixel mismatch after round trip")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.png")); err == nil {
		t.Error("expected error for missing file")
	}
}
