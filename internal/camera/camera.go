// Package camera models the pinhole camera used to convert horizon
// geometry from pixel coordinates into physical units.
package camera

import "fmt"

// Model describes a pinhole camera. FocalLength and PixelSize are in
// meters; Width and Height are the frame resolution in pixels. A Model
// is an immutable value: construct one with New and pass it by value.
type Model struct {
	FocalLength float64
	PixelSize   float64
	Width       int
	Height      int
}

// New validates the parameters and returns a Model. All four fields
// must be strictly positive.
func New(focalLength, pixelSize float64, width, height int) (Model, error) {
	m := Model{
		FocalLength: focalLength,
		PixelSize:   pixelSize,
		Width:       width,
		Height:      height,
	}
	if err := m.Validate(); err != nil {
		return Model{}, err
	}
	return m, nil
}

// Validate checks the positivity invariant on every field.
func (m Model) Validate() error {
	if m.FocalLength <= 0 {
		return fmt.Errorf("focal length must be positive, got %g", m.FocalLength)
	}
	if m.PixelSize <= 0 {
		return fmt.Errorf("pixel size must be positive, got %g", m.PixelSize)
	}
	if m.Width <= 0 {
		return fmt.Errorf("image width must be positive, got %d", m.Width)
	}
	if m.Height <= 0 {
		return fmt.Errorf("image height must be positive, got %d", m.Height)
	}
	return nil
}

// FocalLengthPixels returns the focal length expressed in pixels.
func (m Model) FocalLengthPixels() float64 {
	return m.FocalLength / m.PixelSize
}

// PrincipalPoint returns the optical centre of the frame in pixel
// coordinates.
func (m Model) PrincipalPoint() (x, y float64) {
	return float64(m.Width) / 2, float64(m.Height) / 2
}
