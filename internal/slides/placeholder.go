package slides

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"

	"github.com/disintegration/imaging"
	"github.com/mentingo/mentingo-slide-service/internal/domain/entity"
)

const (
	placeholderWidth  = 1280
	placeholderHeight = 720
)

// PlaceholderSlides implements the degenerate-input policy: when a source
// yields no frames at all, the run still completes with
// min(floor(estimatedDuration/minInterval), maxSlides) synthetic slides
// spaced at the minimum interval, tagged heuristic so the caller can tell
// them from detected slides.
func PlaceholderSlides(runID string, estimatedDuration float64, settings entity.ExtractionSettings) []entity.Slide {
	if estimatedDuration <= 0 || settings.MinInterval <= 0 {
		return nil
	}

	count := int(math.Floor(estimatedDuration / settings.MinInterval))
	if count > settings.MaxSlides {
		count = settings.MaxSlides
	}

	result := make([]entity.Slide, 0, count)
	for i := 0; i < count; i++ {
		timestamp := float64(i) * settings.MinInterval
		image, err := RenderSyntheticSlide(i, timestamp)
		if err != nil {
			image = nil
		}
		slide := entity.NewSlide(runID, i, timestamp, 0, image)
		slide.Heuristic = true
		result = append(result, slide)
	}
	return result
}

// RenderSyntheticSlide produces placeholder imagery for slides that have no
// captured frame: a bordered white canvas with an ordinal marker band whose
// position encodes the slide index.
func RenderSyntheticSlide(ordinal int, timestamp float64) ([]byte, error) {
	canvas := imaging.New(placeholderWidth, placeholderHeight, color.NRGBA{R: 0xe9, G: 0xec, B: 0xef, A: 0xff})
	inner := imaging.New(placeholderWidth-8, placeholderHeight-8, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
	canvas = imaging.Paste(canvas, inner, image.Pt(4, 4))

	marker := imaging.New(160, 48, color.NRGBA{R: 0x21, G: 0x25, B: 0x29, A: 0xff})
	offset := 48 + (ordinal%12)*52
	canvas = imaging.Paste(canvas, marker, image.Pt(48, offset))

	tick := imaging.New(int(math.Min(math.Max(timestamp, 1), float64(placeholderWidth-96))), 12, color.NRGBA{R: 0x6c, G: 0x75, B: 0x7d, A: 0xff})
	canvas = imaging.Paste(canvas, tick, image.Pt(48, placeholderHeight-72))

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
