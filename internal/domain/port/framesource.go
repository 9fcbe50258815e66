package port

import (
	"context"

	"github.com/mentingo/mentingo-slide-service/internal/domain/entity"
)

// FrameSource abstracts a seekable video: a headless decoder, a GPU-backed
// one, or a test double. Seek blocks until the frame at the timestamp is
// decodable; implementations must honour context deadlines so a stalled
// decode surfaces as an error instead of a hang.
type FrameSource interface {
	// Duration returns the total playback length in seconds. Zero means
	// the source cannot be sampled.
	Duration() float64

	// Seek positions the source at the given timestamp.
	Seek(ctx context.Context, timestamp float64) error

	// Capture snapshots the frame at the current position.
	Capture(ctx context.Context) (*entity.Frame, error)
}

// FrameSourceOpener probes a downloaded video file and hands back a
// seekable source over it.
type FrameSourceOpener interface {
	Open(ctx context.Context, videoPath string) (FrameSource, error)
}
