package slides

import (
	"bytes"
	"fmt"
	"image/png"
	"math"

	"github.com/mentingo/mentingo-slide-service/internal/domain/entity"
)

// Detector is a single-pass state machine over a sampled frame sequence.
// The first frame becomes the comparison baseline silently; every later
// frame is scored against the current baseline and the baseline is replaced
// after each comparison whether or not a slide was emitted. A score below
// the correlation threshold emits a slide unless an already-emitted slide
// sits within half the minimum interval of the candidate timestamp.
type Detector struct {
	runID    string
	settings entity.ExtractionSettings

	baseline *entity.Frame
	emitted  []float64
	slides   []entity.Slide
}

func NewDetector(runID string, settings entity.ExtractionSettings) *Detector {
	return &Detector{runID: runID, settings: settings}
}

// Observe feeds the next sample, in strictly increasing timestamp order.
func (d *Detector) Observe(sample Sample) error {
	if d.Full() {
		return nil
	}

	if d.baseline == nil {
		d.baseline = sample.Frame
		return nil
	}

	correlation := Correlation(d.baseline, sample.Frame, d.settings.ROI)
	d.baseline = sample.Frame

	if correlation >= d.settings.CorrelationThreshold {
		return nil
	}
	if d.isDuplicate(sample.Timestamp) {
		return nil
	}

	image, err := encodePNG(sample.Frame)
	if err != nil {
		return fmt.Errorf("encode slide at %.2fs: %w", sample.Timestamp, err)
	}

	d.slides = append(d.slides, entity.NewSlide(d.runID, len(d.slides), sample.Timestamp, correlation, image))
	d.emitted = append(d.emitted, sample.Timestamp)
	return nil
}

// Finish closes the run. If at least one slide was detected, the budget
// allows one more, and the duration lies past the last detection, a boundary
// slide is appended at the source duration with correlation 0. The final
// frame is preferred; when it is nil (trailing capture failed) the retained
// baseline stands in.
func (d *Detector) Finish(final *entity.Frame, duration float64) error {
	if len(d.slides) == 0 || d.Full() {
		return nil
	}
	if duration <= d.emitted[len(d.emitted)-1] {
		return nil
	}

	frame := final
	if frame == nil {
		frame = d.baseline
	}
	if frame == nil {
		return nil
	}

	image, err := encodePNG(frame)
	if err != nil {
		return fmt.Errorf("encode boundary slide: %w", err)
	}

	d.slides = append(d.slides, entity.NewSlide(d.runID, len(d.slides), duration, 0, image))
	d.emitted = append(d.emitted, duration)
	return nil
}

// Full reports whether the slide budget is exhausted.
func (d *Detector) Full() bool {
	return len(d.slides) >= d.settings.MaxSlides
}

// Slides returns the emitted slides in timestamp order.
func (d *Detector) Slides() []entity.Slide {
	return d.slides
}

func (d *Detector) isDuplicate(timestamp float64) bool {
	for _, saved := range d.emitted {
		if math.Abs(saved-timestamp) < d.settings.MinInterval*0.5 {
			return true
		}
	}
	return false
}

func encodePNG(frame *entity.Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, frame.ToImage()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
