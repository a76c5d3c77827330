// Package edge defines horizon points and the default scanline edge
// detector used when no external vision library is plugged in.
package edge

import (
	"github.com/UWCubeSat/found-integration-testing/internal/imageio"
)

// Point is a 2-D coordinate in image pixels.
type Point struct {
	X float64
	Y float64
}

// PointSet is an ordered sequence of horizon points. It may be empty
// when no horizon was detected; it is never mutated after creation.
type PointSet []Point

// ThresholdDetector finds horizon points by scanning each row for
// luminance transitions. At most the outermost transition on each side
// of a row is recorded, so a clean body/space boundary yields two points
// per intersecting row, ordered top-to-bottom, left edge before right.
type ThresholdDetector struct {
	// Threshold is the minimum luminance jump between neighbouring
	// pixels that counts as an edge.
	Threshold int

	// Border is the number of rows/columns at the frame boundary to
	// ignore.
	Border int

	// Offset shifts each detected point outward by the given number of
	// pixels along the scan direction.
	Offset int
}

// NewThresholdDetector returns a detector with the stock tuning:
// threshold 10, border 1, offset 0.
func NewThresholdDetector() *ThresholdDetector {
	return &ThresholdDetector{Threshold: 10, Border: 1, Offset: 0}
}

// Extract scans the image for horizon points. The image is read-only;
// the caller keeps ownership of the pixel buffer. A zero-length result
// means no horizon was detected and is not an error.
func (d *ThresholdDetector) Extract(img *imageio.Image) (PointSet, error) {
	var points PointSet

	for y := d.Border; y < img.Height-d.Border; y++ {
		left, right := -1, -1

		for x := d.Border + 1; x < img.Width-d.Border; x++ {
			if jump(img, x, y) >= d.Threshold {
				left = x
				break
			}
		}
		if left < 0 {
			continue
		}
		for x := img.Width - d.Border - 1; x > left; x-- {
			if jump(img, x, y) >= d.Threshold {
				right = x
				break
			}
		}

		points = append(points, Point{X: float64(left - d.Offset), Y: float64(y)})
		if right > left {
			points = append(points, Point{X: float64(right + d.Offset), Y: float64(y)})
		}
	}

	return points, nil
}

// jump is the absolute luminance difference between (x, y) and its left
// neighbour.
func jump(img *imageio.Image, x, y int) int {
	a := int(img.Luminance(x-1, y))
	b := int(img.Luminance(x, y))
	if a > b {
		return a - b
	}
	return b - a
}
