package slides

import (
	"math"

	"github.com/mentingo/mentingo-slide-service/internal/domain/entity"
)

// Correlation computes a Pearson-style normalized cross-correlation between
// two frames over their luma channel, optionally restricted to a region of
// interest. The score is clamped to [0,1]: 1.0 means identical, 0 means
// maximally dissimilar. Frames of differing dimensions score 0 rather than
// failing, so a dimension mismatch never aborts a run. A region that clips
// to zero area falls back to the whole frame. Both regions being constant
// makes the denominator 0, which scores 1.0.
func Correlation(a, b *entity.Frame, roi *entity.RegionOfInterest) float64 {
	if a == nil || b == nil {
		return 0
	}
	if a.Width != b.Width || a.Height != b.Height {
		return 0
	}

	startX, startY := 0, 0
	width, height := a.Width, a.Height
	if roi != nil {
		if clipped, ok := roi.ClipTo(a.Width, a.Height); ok {
			startX, startY = clipped.X, clipped.Y
			width, height = clipped.Width, clipped.Height
		}
	}

	var sumA, sumB, sumASq, sumBSq, sumAB float64
	n := float64(width * height)
	if n == 0 {
		return 0
	}

	for y := startY; y < startY+height; y++ {
		rowIdx := (y*a.Width + startX) * 4
		for x := 0; x < width; x++ {
			idx := rowIdx + x*4
			lumaA := 0.299*float64(a.Pix[idx]) + 0.587*float64(a.Pix[idx+1]) + 0.114*float64(a.Pix[idx+2])
			lumaB := 0.299*float64(b.Pix[idx]) + 0.587*float64(b.Pix[idx+1]) + 0.114*float64(b.Pix[idx+2])

			sumA += lumaA
			sumB += lumaB
			sumASq += lumaA * lumaA
			sumBSq += lumaB * lumaB
			sumAB += lumaA * lumaB
		}
	}

	cov := sumAB - sumA*sumB/n
	den := math.Sqrt((sumASq - sumA*sumA/n) * (sumBSq - sumB*sumB/n))
	if den == 0 {
		return 1
	}

	return clamp01(cov / den)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
