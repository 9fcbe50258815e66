package slides

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mentingo/mentingo-slide-service/internal/domain/entity"
	"github.com/mentingo/mentingo-slide-service/internal/domain/port"
)

// ErrDone signals the end of the sample sequence.
var ErrDone = errors.New("no more samples")

// Sample is one captured frame with the timestamp it was taken at.
type Sample struct {
	Timestamp float64
	Frame     *entity.Frame
}

// Sampler walks a frame source at a fixed interval, producing samples at
// 0, interval, 2*interval, ... strictly below the source duration. Each
// seek-and-capture is bounded by readyTimeout; a non-positive timeout
// disables the deadline. A Sampler is single use: one instance per
// extraction run.
type Sampler struct {
	source       port.FrameSource
	interval     float64
	readyTimeout time.Duration

	next    float64
	yielded int
}

func NewSampler(source port.FrameSource, interval float64, readyTimeout time.Duration) *Sampler {
	return &Sampler{
		source:       source,
		interval:     interval,
		readyTimeout: readyTimeout,
	}
}

// Next returns the next interior sample, or ErrDone when the sequence is
// exhausted. A source with zero or unknown duration produces no samples.
func (s *Sampler) Next(ctx context.Context) (Sample, error) {
	duration := s.source.Duration()
	if duration <= 0 || s.next >= duration {
		return Sample{}, ErrDone
	}

	sample, err := s.capture(ctx, s.next)
	if err != nil {
		return Sample{}, err
	}

	s.next += s.interval
	s.yielded++
	return sample, nil
}

// Final captures one trailing frame at the source duration. Call it only
// after the interior sequence produced at least one sample.
func (s *Sampler) Final(ctx context.Context) (Sample, error) {
	if s.yielded == 0 {
		return Sample{}, ErrDone
	}
	return s.capture(ctx, s.source.Duration())
}

// Yielded reports how many interior samples have been produced.
func (s *Sampler) Yielded() int {
	return s.yielded
}

func (s *Sampler) capture(ctx context.Context, timestamp float64) (Sample, error) {
	if s.readyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.readyTimeout)
		defer cancel()
	}

	if err := s.source.Seek(ctx, timestamp); err != nil {
		return Sample{}, fmt.Errorf("seek to %.2fs: %w", timestamp, err)
	}
	frame, err := s.source.Capture(ctx)
	if err != nil {
		return Sample{}, fmt.Errorf("capture at %.2fs: %w", timestamp, err)
	}
	frame.Timestamp = timestamp
	return Sample{Timestamp: timestamp, Frame: frame}, nil
}
