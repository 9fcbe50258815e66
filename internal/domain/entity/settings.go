package entity

import "fmt"

const (
	DefaultCorrelationThreshold = 0.999
	DefaultMinInterval          = 10.0
	DefaultMaxSlides            = 50
)

// ExtractionSettings control one slide extraction run. A MaxSlides of zero
// is valid and yields an empty slide set.
type ExtractionSettings struct {
	CorrelationThreshold float64           `json:"correlation_threshold"`
	MinInterval          float64           `json:"min_interval"`
	MaxSlides            int               `json:"max_slides"`
	ROI                  *RegionOfInterest `json:"roi,omitempty"`
}

func DefaultSettings() ExtractionSettings {
	return ExtractionSettings{
		CorrelationThreshold: DefaultCorrelationThreshold,
		MinInterval:          DefaultMinInterval,
		MaxSlides:            DefaultMaxSlides,
	}
}

// Normalized fills zero-valued fields with defaults. Explicitly negative
// values are left for Validate to reject.
func (s ExtractionSettings) Normalized() ExtractionSettings {
	out := s
	if out.CorrelationThreshold == 0 {
		out.CorrelationThreshold = DefaultCorrelationThreshold
	}
	if out.MinInterval == 0 {
		out.MinInterval = DefaultMinInterval
	}
	return out
}

func (s ExtractionSettings) Validate() error {
	if s.CorrelationThreshold <= 0 || s.CorrelationThreshold > 1 {
		return fmt.Errorf("correlation threshold must be in (0,1], got %g", s.CorrelationThreshold)
	}
	if s.MinInterval <= 0 {
		return fmt.Errorf("min interval must be positive, got %g", s.MinInterval)
	}
	if s.MaxSlides < 0 {
		return fmt.Errorf("max slides must not be negative, got %d", s.MaxSlides)
	}
	return nil
}
