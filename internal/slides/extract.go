package slides

import (
	"context"
	"errors"
	"time"

	"github.com/mentingo/mentingo-slide-service/internal/domain/entity"
	"github.com/mentingo/mentingo-slide-service/internal/domain/port"
)

// Result is the outcome of one extraction run. Heuristic marks runs that
// fell back to the placeholder policy because the source produced no frames.
type Result struct {
	Slides    []entity.Slide
	Duration  float64
	Heuristic bool
}

// Options tune one extraction run beyond the caller-supplied settings.
type Options struct {
	// ReadyTimeout bounds each seek-and-capture; a stalled decode fails
	// the sample instead of hanging the run.
	ReadyTimeout time.Duration

	// EstimatedDuration feeds the placeholder fallback when the source
	// reports no usable duration.
	EstimatedDuration float64

	// OnProgress, when set, is called after every consumed sample.
	OnProgress func(sampled int)
}

// Extract drives the sampler and detector over one source. Frames are
// consumed strictly in increasing timestamp order. A source that yields no
// samples at all (zero duration, unseekable, or the first frame timing
// out) degrades to the placeholder policy rather than failing the run. A
// capture failure after at least one sample ends the sequence early and
// the run finishes with what was detected.
func Extract(ctx context.Context, source port.FrameSource, runID string, settings entity.ExtractionSettings, opts Options) (*Result, error) {
	if settings.MaxSlides == 0 {
		return &Result{Duration: source.Duration()}, nil
	}

	sampler := NewSampler(source, settings.MinInterval, opts.ReadyTimeout)
	detector := NewDetector(runID, settings)

	sampled := 0
	for !detector.Full() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sample, err := sampler.Next(ctx)
		if errors.Is(err, ErrDone) {
			break
		}
		if err != nil {
			if sampler.Yielded() == 0 {
				return fallbackResult(runID, source.Duration(), settings, opts), nil
			}
			// Sequence cut short; finish with what we have.
			break
		}

		if err := detector.Observe(sample); err != nil {
			return nil, err
		}
		sampled++
		if opts.OnProgress != nil {
			opts.OnProgress(sampled)
		}
	}

	if sampler.Yielded() == 0 {
		return fallbackResult(runID, source.Duration(), settings, opts), nil
	}

	duration := source.Duration()
	if !detector.Full() {
		var final *entity.Frame
		if sample, err := sampler.Final(ctx); err == nil {
			final = sample.Frame
		}
		if err := detector.Finish(final, duration); err != nil {
			return nil, err
		}
	}

	return &Result{Slides: detector.Slides(), Duration: duration}, nil
}

func fallbackResult(runID string, duration float64, settings entity.ExtractionSettings, opts Options) *Result {
	estimated := duration
	if estimated <= 0 {
		estimated = opts.EstimatedDuration
	}
	return &Result{
		Slides:    PlaceholderSlides(runID, estimated, settings),
		Duration:  estimated,
		Heuristic: true,
	}
}
