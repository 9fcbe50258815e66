package entity

import (
	"image"
)

// Frame is an immutable RGBA snapshot of the video at a playback timestamp.
// Pix is packed R,G,B,A, row-major, 4 bytes per pixel.
type Frame struct {
	Width     int
	Height    int
	Pix       []byte
	Timestamp float64
}

func NewFrame(width, height int, timestamp float64) *Frame {
	return &Frame{
		Width:     width,
		Height:    height,
		Pix:       make([]byte, width*height*4),
		Timestamp: timestamp,
	}
}

// FrameFromImage copies img into a Frame captured at the given timestamp.
func FrameFromImage(img image.Image, timestamp float64) *Frame {
	bounds := img.Bounds()
	f := NewFrame(bounds.Dx(), bounds.Dy(), timestamp)

	if rgba, ok := img.(*image.RGBA); ok && rgba.Stride == 4*f.Width {
		copy(f.Pix, rgba.Pix)
		return f
	}

	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			f.Pix[i] = byte(r >> 8)
			f.Pix[i+1] = byte(g >> 8)
			f.Pix[i+2] = byte(b >> 8)
			f.Pix[i+3] = byte(a >> 8)
			i += 4
		}
	}
	return f
}

// ToImage copies the frame back into a standard image for encoding.
func (f *Frame) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	copy(img.Pix, f.Pix)
	return img
}

// RegionOfInterest restricts similarity computation to a sub-rectangle of
// the frame, in pixel coordinates.
type RegionOfInterest struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ClipTo clips the region to a width x height frame. The second return is
// false when the clipped region has zero area, in which case callers must
// fall back to the whole frame.
func (r RegionOfInterest) ClipTo(width, height int) (RegionOfInterest, bool) {
	clipped := r
	if clipped.X < 0 {
		clipped.Width += clipped.X
		clipped.X = 0
	}
	if clipped.Y < 0 {
		clipped.Height += clipped.Y
		clipped.Y = 0
	}
	if clipped.X+clipped.Width > width {
		clipped.Width = width - clipped.X
	}
	if clipped.Y+clipped.Height > height {
		clipped.Height = height - clipped.Y
	}
	if clipped.X >= width || clipped.Y >= height || clipped.Width <= 0 || clipped.Height <= 0 {
		return RegionOfInterest{}, false
	}
	return clipped, true
}
