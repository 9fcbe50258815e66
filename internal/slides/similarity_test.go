package slides

import (
	"testing"

	"github.com/mentingo/mentingo-slide-service/internal/domain/entity"
	"github.com/stretchr/testify/assert"
)

// solidFrame fills a frame with a single RGB color.
func solidFrame(width, height int, r, g, b byte) *entity.Frame {
	f := entity.NewFrame(width, height, 0)
	for i := 0; i < len(f.Pix); i += 4 {
		f.Pix[i] = r
		f.Pix[i+1] = g
		f.Pix[i+2] = b
		f.Pix[i+3] = 0xff
	}
	return f
}

// gradientFrame varies luma across both axes so the signal has nonzero
// variance.
func gradientFrame(width, height int, seed byte) *entity.Frame {
	f := entity.NewFrame(width, height, 0)
	i := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := byte((x*7 + y*13)) + seed
			f.Pix[i] = v
			f.Pix[i+1] = v / 2
			f.Pix[i+2] = 255 - v
			f.Pix[i+3] = 0xff
			i += 4
		}
	}
	return f
}

func TestCorrelationIdenticalFramesScoreExactlyOne(t *testing.T) {
	a := gradientFrame(64, 48, 0)
	b := gradientFrame(64, 48, 0)

	assert.Equal(t, 1.0, Correlation(a, b, nil))
}

func TestCorrelationIsSymmetric(t *testing.T) {
	a := gradientFrame(32, 32, 0)
	b := gradientFrame(32, 32, 40)

	assert.Equal(t, Correlation(a, b, nil), Correlation(b, a, nil))
}

func TestCorrelationStaysInUnitInterval(t *testing.T) {
	a := gradientFrame(32, 32, 0)

	// Inverted luma correlates negatively; the score must clamp to 0.
	inv := entity.NewFrame(32, 32, 0)
	for i := 0; i < len(a.Pix); i += 4 {
		inv.Pix[i] = 255 - a.Pix[i]
		inv.Pix[i+1] = 255 - a.Pix[i+1]
		inv.Pix[i+2] = 255 - a.Pix[i+2]
		inv.Pix[i+3] = 0xff
	}

	score := Correlation(a, inv, nil)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
	assert.Equal(t, 0.0, score)
}

func TestCorrelationDimensionMismatchScoresZero(t *testing.T) {
	a := solidFrame(32, 32, 10, 20, 30)
	b := solidFrame(16, 32, 10, 20, 30)

	assert.Equal(t, 0.0, Correlation(a, b, nil))
}

func TestCorrelationNilFrameScoresZero(t *testing.T) {
	a := solidFrame(8, 8, 0, 0, 0)

	assert.Equal(t, 0.0, Correlation(nil, a, nil))
	assert.Equal(t, 0.0, Correlation(a, nil, nil))
}

func TestCorrelationConstantFramesScoreOne(t *testing.T) {
	// A flat frame has zero variance, so the denominator is 0, defined
	// as a score of 1.0 regardless of the other frame.
	black := solidFrame(16, 16, 0, 0, 0)
	white := solidFrame(16, 16, 255, 255, 255)

	assert.Equal(t, 1.0, Correlation(black, white, nil))
	assert.Equal(t, 1.0, Correlation(white, black, nil))
}

func TestCorrelationRegionOfInterestIsolatesChange(t *testing.T) {
	a := gradientFrame(64, 64, 0)
	b := gradientFrame(64, 64, 0)

	// Perturb only the right half of b.
	for y := 0; y < 64; y++ {
		for x := 32; x < 64; x++ {
			idx := (y*64 + x) * 4
			b.Pix[idx] = 255 - b.Pix[idx]
		}
	}

	left := &entity.RegionOfInterest{X: 0, Y: 0, Width: 32, Height: 64}
	right := &entity.RegionOfInterest{X: 32, Y: 0, Width: 32, Height: 64}

	assert.Equal(t, 1.0, Correlation(a, b, left))
	assert.Less(t, Correlation(a, b, right), 1.0)
}

func TestCorrelationRegionClippedToFrame(t *testing.T) {
	a := gradientFrame(32, 32, 0)
	b := gradientFrame(32, 32, 0)

	// Region extends past the frame; the overlap still compares equal.
	roi := &entity.RegionOfInterest{X: 16, Y: 16, Width: 100, Height: 100}
	assert.Equal(t, 1.0, Correlation(a, b, roi))
}

func TestCorrelationZeroAreaRegionFallsBackToWholeFrame(t *testing.T) {
	a := gradientFrame(32, 32, 0)
	b := gradientFrame(32, 32, 90)

	roi := &entity.RegionOfInterest{X: 200, Y: 200, Width: 10, Height: 10}
	assert.Equal(t, Correlation(a, b, nil), Correlation(a, b, roi))
}
