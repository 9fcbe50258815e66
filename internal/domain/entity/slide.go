package entity

import "fmt"

// Slide is one detected distinct visual state of the video. Image holds the
// encoded raster snapshot (PNG for captured frames). Correlation is the
// similarity score of the comparison that triggered detection; 0 marks the
// synthetic boundary slide appended at the end of a run. Heuristic slides
// come from the placeholder fallback rather than real frame comparison.
type Slide struct {
	ID          string  `json:"id"`
	Ordinal     int     `json:"ordinal"`
	Title       string  `json:"title"`
	Timestamp   float64 `json:"timestamp"`
	Correlation float64 `json:"correlation"`
	Image       []byte  `json:"image,omitempty"`
	Heuristic   bool    `json:"heuristic,omitempty"`
}

func NewSlide(runID string, ordinal int, timestamp, correlation float64, image []byte) Slide {
	return Slide{
		ID:          fmt.Sprintf("slide-%s-%d", runID, ordinal),
		Ordinal:     ordinal,
		Title:       fmt.Sprintf("Slide %d", ordinal+1),
		Timestamp:   timestamp,
		Correlation: correlation,
		Image:       image,
	}
}
