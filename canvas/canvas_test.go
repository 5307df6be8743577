package canvas

import (
	"image"
	"image/color"
	"os"
	"testing"
	"time"
)

func TestNewSurfaceIsOpaque(t *testing.T) {
	s := NewSurface(32, 16, White)
	for _, p := range []image.Point{{0, 0}, {31, 15}, {16, 8}} {
		_, _, _, a := s.At(p.X, p.Y).RGBA()
		if a != 0xffff {
			t.Fatalf("pixel %v not opaque: alpha=%d", p, a)
		}
	}
}

func TestClearForcesOpaqueAlpha(t *testing.T) {
	s := NewSurface(8, 8, White)
	s.Clear(color.RGBA{R: 10, G: 20, B: 30, A: 0})
	r, g, b, a := s.At(4, 4).RGBA()
	if a != 0xffff {
		t.Errorf("alpha = %d, want opaque", a)
	}
	if r>>8 != 10 || g>>8 != 20 || b>>8 != 30 {
		t.Errorf("fill color = (%d,%d,%d)", r>>8, g>>8, b>>8)
	}
}

func TestStrokeLinePaintsEndpoints(t *testing.T) {
	s := NewSurface(64, 64, White)
	black := color.RGBA{A: 0xff}
	s.StrokeLine(Point{X: 10, Y: 10}, Point{X: 50, Y: 50}, black, 4)

	for _, p := range []image.Point{{10, 10}, {30, 30}, {50, 50}} {
		r, g, b, _ := s.At(p.X, p.Y).RGBA()
		if r != 0 || g != 0 || b != 0 {
			t.Errorf("pixel %v not painted", p)
		}
	}
	// Far corner untouched.
	r, _, _, _ := s.At(63, 0).RGBA()
	if r != 0xffff {
		t.Error("untouched pixel was painted")
	}
}

func TestStrokeLineDot(t *testing.T) {
	s := NewSurface(16, 16, White)
	s.StrokeLine(Point{X: 8, Y: 8}, Point{X: 8, Y: 8}, color.RGBA{A: 0xff}, 2)
	r, _, _, _ := s.At(8, 8).RGBA()
	if r != 0 {
		t.Error("zero-length stroke should paint a dot")
	}
}

func TestEncodeRestoreRoundTrip(t *testing.T) {
	s := NewSurface(32, 32, White)
	s.StrokeLine(Point{X: 4, Y: 4}, Point{X: 28, Y: 28}, color.RGBA{R: 0xff, A: 0xff}, 3)
	snap, err := s.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	s.Clear(White)
	r, _, _, _ := s.At(16, 16).RGBA()
	if r != 0xffff {
		t.Fatal("clear did not reset the stroke")
	}

	if err := s.Restore(snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	r, g, b, _ := s.At(16, 16).RGBA()
	if r != 0xffff || g != 0 || b != 0 {
		t.Errorf("restored pixel = (%d,%d,%d), want red", r>>8, g>>8, b>>8)
	}
}

func TestRestoreRejectsGarbage(t *testing.T) {
	s := NewSurface(8, 8, White)
	if err := s.Restore([]byte("not a png")); err == nil {
		t.Error("expected error for invalid snapshot")
	}
}

func TestDrawImageCentersAndFills(t *testing.T) {
	s := NewSurface(40, 40, White)
	src := image.NewRGBA(image.Rect(0, 0, 10, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 10; x++ {
			src.SetRGBA(x, y, color.RGBA{B: 0xff, A: 0xff})
		}
	}
	s.DrawImage(src)

	// Scaled to 20x40, centered: middle is blue, left band is background.
	_, _, b, _ := s.At(20, 20).RGBA()
	if b != 0xffff {
		t.Error("center pixel should be blue")
	}
	r, g, b2, a := s.At(2, 20).RGBA()
	if r != 0xffff || g != 0xffff || b2 != 0xffff || a != 0xffff {
		t.Error("letterbox band should be opaque background")
	}
}

func TestExportFilename(t *testing.T) {
	at := time.Date(2026, 8, 23, 14, 5, 9, 0, time.UTC)
	got := ExportFilename("sketch", at)
	want := "sketch-2026-08-23T14-05-09.png"
	if got != want {
		t.Errorf("ExportFilename = %q, want %q", got, want)
	}
}

func TestExportPNGWritesFile(t *testing.T) {
	s := NewSurface(8, 8, White)
	path, err := s.ExportPNG(t.TempDir(), "sketch")
	if err != nil {
		t.Fatalf("ExportPNG: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	if err := s.Restore(data); err != nil {
		t.Errorf("exported file is not a decodable PNG: %v", err)
	}
}
