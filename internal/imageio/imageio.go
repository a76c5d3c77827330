// Package imageio decodes input files into the raw pixel layout consumed
// by edge extraction.
//
// PNG, JPEG, BMP and TIFF inputs are supported. The decoded buffer is a
// scoped resource: it is sized width×height×channels bytes and must be
// released by its owner as soon as edge extraction has run, on every
// exit path, so repeated runs in a long-lived process never accumulate
// frame buffers.
package imageio

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/UWCubeSat/found-integration-testing/internal/fsutil"
)

// Image is a decoded frame. Pix holds Width*Height*Channels bytes in
// row-major order with no padding. Grayscale sources decode to one
// channel; everything else decodes to three (RGB, alpha discarded).
type Image struct {
	Width    int
	Height   int
	Channels int
	Pix      []byte
}

// Load opens and decodes the named file through the given filesystem.
func Load(fsys fsutil.FileSystem, name string) (*Image, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", name, err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads an encoded image from r.
func Decode(r io.Reader) (*Image, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return fromImage(src), nil
}

func fromImage(src image.Image) *Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	if gray, ok := src.(*image.Gray); ok {
		img := &Image{Width: w, Height: h, Channels: 1, Pix: make([]byte, w*h)}
		for y := 0; y < h; y++ {
			row := gray.Pix[y*gray.Stride : y*gray.Stride+w]
			copy(img.Pix[y*w:], row)
		}
		return img
	}

	img := &Image{Width: w, Height: h, Channels: 3, Pix: make([]byte, w*h*3)}
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := src.At(x, y).RGBA()
			img.Pix[i] = byte(r >> 8)
			img.Pix[i+1] = byte(g >> 8)
			img.Pix[i+2] = byte(bl >> 8)
			i += 3
		}
	}
	return img
}

// Released reports whether the pixel buffer has been dropped.
func (img *Image) Released() bool { return img.Pix == nil }

// Release drops the pixel buffer. Width, Height and Channels stay valid
// so callers can still derive geometry after the buffer is gone.
func (img *Image) Release() { img.Pix = nil }

// Luminance returns the 8-bit brightness of the pixel at (x, y).
// For multi-channel images this is the mean of the colour channels.
func (img *Image) Luminance(x, y int) uint8 {
	i := (y*img.Width + x) * img.Channels
	if img.Channels == 1 {
		return img.Pix[i]
	}
	sum := 0
	for c := 0; c < img.Channels; c++ {
		sum += int(img.Pix[i+c])
	}
	return uint8(sum / img.Channels)
}
