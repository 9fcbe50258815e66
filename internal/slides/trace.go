package slides

import (
	"github.com/mentingo/mentingo-slide-service/internal/domain/entity"
)

// TracePoint is one pre-computed comparison result: the correlation of the
// frame at Time against its predecessor.
type TracePoint struct {
	Time        float64 `json:"time"`
	Correlation float64 `json:"correlation"`
}

// DetectFromTrace applies the detection rules to a pre-computed correlation
// trace instead of live frame capture. Each point below the threshold emits
// a slide at that point's timestamp, subject to the same duplicate
// suppression and slide budget as live detection, and the run is closed
// with the usual boundary slide when the duration lies past the last
// detection. A duration shorter than the trace (including the zero value
// when the caller omits it) is raised to the last point's timestamp. Slide
// imagery is synthesized since no frames exist.
func DetectFromTrace(runID string, trace []TracePoint, duration float64, settings entity.ExtractionSettings) []entity.Slide {
	var result []entity.Slide
	var emitted []float64

	for _, point := range trace {
		if len(result) >= settings.MaxSlides {
			break
		}
		if point.Correlation >= settings.CorrelationThreshold {
			continue
		}
		if withinHalfInterval(emitted, point.Time, settings.MinInterval) {
			continue
		}

		image, err := RenderSyntheticSlide(len(result), point.Time)
		if err != nil {
			image = nil
		}
		result = append(result, entity.NewSlide(runID, len(result), point.Time, point.Correlation, image))
		emitted = append(emitted, point.Time)
	}

	if len(trace) > 0 && duration < trace[len(trace)-1].Time {
		duration = trace[len(trace)-1].Time
	}

	if len(result) > 0 && len(result) < settings.MaxSlides && duration > emitted[len(emitted)-1] {
		image, err := RenderSyntheticSlide(len(result), duration)
		if err != nil {
			image = nil
		}
		result = append(result, entity.NewSlide(runID, len(result), duration, 0, image))
	}

	return result
}

func withinHalfInterval(emitted []float64, timestamp, minInterval float64) bool {
	for _, saved := range emitted {
		diff := saved - timestamp
		if diff < 0 {
			diff = -diff
		}
		if diff < minInterval*0.5 {
			return true
		}
	}
	return false
}
