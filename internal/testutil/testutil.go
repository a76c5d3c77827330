// Package testutil provides shared fixtures for measurement tests:
// synthetic horizon images and exact horizon geometry helpers.
package testutil

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/UWCubeSat/found-integration-testing/internal/edge"
)

// DiscImage returns a grayscale frame holding a dark disc of radius r
// centred at (cx, cy) on a bright background — the synthetic horizon
// used throughout the tests.
func DiscImage(w, h int, cx, cy, r float64) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	r2 := r * r
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx := float64(x) - cx
			dy := float64(y) - cy
			if dx*dx+dy*dy <= r2 {
				img.SetGray(x, y, color.Gray{Y: 0})
			} else {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

// WriteDiscPNG encodes DiscImage to path, failing the test on error.
func WriteDiscPNG(t *testing.T, path string, w, h int, cx, cy, r float64) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, DiscImage(w, h, cx, cy, r)); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

// TempPNG writes a disc image into the test's temp dir and returns its
// path.
func TempPNG(t *testing.T, w, h int, cx, cy, r float64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "horizon.png")
	WriteDiscPNG(t, path, w, h, cx, cy, r)
	return path
}

// HorizonRadiusPixels returns the projected horizon radius in pixels for
// a body of radius bodyR seen from distance d with the given focal
// length and pixel size (meters). The horizon subtends the tangent cone
// half-angle alpha with sin(alpha) = bodyR/d.
func HorizonRadiusPixels(focalLength, pixelSize, bodyR, d float64) float64 {
	alpha := math.Asin(bodyR / d)
	return focalLength / pixelSize * math.Tan(alpha)
}

// CirclePoints returns n points evenly spaced on a circle, ordered by
// angle.
func CirclePoints(cx, cy, r float64, n int) edge.PointSet {
	pts := make(edge.PointSet, 0, n)
	for i := 0; i < n; i++ {
		theta := 2 * math.Pi * float64(i) / float64(n)
		pts = append(pts, edge.Point{
			X: cx + r*math.Cos(theta),
			Y: cy + r*math.Sin(theta),
		})
	}
	return pts
}
