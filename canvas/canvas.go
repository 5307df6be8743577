// Package canvas owns the mutable raster surface being edited. The surface
// is always fully opaque: the background fill happens before any paint op,
// so reads never observe a partially initialized buffer.
package canvas

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	xdraw "golang.org/x/image/draw"
)

const (
	DefaultWidth  = 960
	DefaultHeight = 540
)

// White is the default background fill.
var White = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

type Point struct {
	X, Y float64
}

// Surface is a fixed-size RGBA raster, mutated in place by exactly one
// owner at a time.
type Surface struct {
	img *image.RGBA
}

func NewSurface(width, height int, bg color.Color) *Surface {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	s := &Surface{img: image.NewRGBA(image.Rect(0, 0, width, height))}
	s.Clear(bg)
	return s
}

func (s *Surface) Width() int { return s.img.Rect.Dx() }
func (s *Surface) Height() int { return s.img.Rect.Dy() }

// Clear floods the whole surface with c. Opaque alpha is forced so the
// invariant holds even for translucent inputs.
func (s *Surface) Clear(c color.Color) {
	r, g, b, _ := c.RGBA()
	fill := color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 0xff}
	draw.Draw(s.img, s.img.Rect, image.NewUniform(fill), image.Point{}, draw.Src)
}

// StrokeLine paints a line segment from p0 to p1 as a run of filled discs.
// Zero-length segments paint a single dot.
func (s *Surface) StrokeLine(p0, p1 Point, c color.Color, width float64) {
	if width < 1 {
		width = 1
	}
	dx, dy := p1.X-p0.X, p1.Y-p0.Y
	dist := math.Hypot(dx, dy)
	steps := int(dist) + 1
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		s.fillDisc(p0.X+dx*t, p0.Y+dy*t, width/2, c)
	}
}

func (s *Surface) fillDisc(cx, cy, radius float64, c color.Color) {
	r, g, b, _ := c.RGBA()
	px := color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 0xff}
	minX := int(math.Floor(cx - radius))
	maxX := int(math.Ceil(cx + radius))
	minY := int(math.Floor(cy - radius))
	maxY := int(math.Ceil(cy + radius))
	rr := radius * radius
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			if !(image.Point{X: x, Y: y}).In(s.img.Rect) {
				continue
			}
			ddx, ddy := float64(x)-cx, float64(y)-cy
			if ddx*ddx+ddy*ddy <= rr {
				s.img.SetRGBA(x, y, px)
			}
		}
	}
}

// DrawImage replaces the surface content with img scaled to fit, centered,
// with the background filled first so letterbox bands stay opaque.
func (s *Surface) DrawImage(img image.Image) {
	s.Clear(White)
	sb := s.img.Rect
	ib := img.Bounds()
	if ib.Dx() == 0 || ib.Dy() == 0 {
		return
	}
	scale := math.Min(
		float64(sb.Dx())/float64(ib.Dx()),
		float64(sb.Dy())/float64(ib.Dy()),
	)
	w := int(float64(ib.Dx()) * scale)
	h := int(float64(ib.Dy()) * scale)
	x0 := sb.Min.X + (sb.Dx()-w)/2
	y0 := sb.Min.Y + (sb.Dy()-h)/2
	dst := image.Rect(x0, y0, x0+w, y0+h)
	xdraw.ApproxBiLinear.Scale(s.img, dst, img, ib, xdraw.Over, nil)
}

// Encode serializes the current surface to a PNG blob. The result is
// immutable once handed to the history stacks.
func (s *Surface) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, s.img); err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// Restore decodes a snapshot blob and paints it back onto the surface.
func (s *Surface) Restore(snap []byte) error {
	img, err := png.Decode(bytes.NewReader(snap))
	if err != nil {
		return fmt.Errorf("decoding snapshot: %w", err)
	}
	draw.Draw(s.img, s.img.Rect, image.NewUniform(White), image.Point{}, draw.Src)
	draw.Draw(s.img, s.img.Rect, img, img.Bounds().Min, draw.Over)
	return nil
}

// At reports the pixel at (x, y).
func (s *Surface) At(x, y int) color.Color {
	return s.img.At(x, y)
}

// Image exposes the backing raster for rendering. Callers must not mutate it.
func (s *Surface) Image() image.Image {
	return s.img
}
