package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os/exec"
	"strconv"
	"strings"

	"github.com/mentingo/mentingo-slide-service/internal/domain/entity"
	"github.com/mentingo/mentingo-slide-service/internal/domain/port"
	"go.uber.org/zap"
)

// Source is a FrameSource backed by the ffmpeg/ffprobe binaries: duration
// comes from one ffprobe call at open time, and every capture decodes a
// single PNG frame at the seeked timestamp. When ffprobe cannot time the
// video the duration is reported as 0, which the pipeline treats as
// unsampleable.
type Source struct {
	ffmpegPath string
	videoPath  string
	duration   float64
	position   float64
	logger     *zap.Logger
}

type Prober struct {
	ffmpegPath  string
	ffprobePath string
	logger      *zap.Logger
}

func NewProber(ffmpegPath, ffprobePath string, logger *zap.Logger) *Prober {
	return &Prober{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, logger: logger}
}

// Open probes the video and returns a seekable frame source over it.
func (p *Prober) Open(ctx context.Context, videoPath string) (port.FrameSource, error) {
	duration, err := p.probeDuration(ctx, videoPath)
	if err != nil {
		p.logger.Warn("could not probe video duration", zap.String("video", videoPath), zap.Error(err))
		duration = 0
	}

	return &Source{
		ffmpegPath: p.ffmpegPath,
		videoPath:  videoPath,
		duration:   duration,
		logger:     p.logger,
	}, nil
}

func (p *Prober) probeDuration(ctx context.Context, videoPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	durationStr := strings.TrimSpace(string(output))
	duration, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return duration, nil
}

func (s *Source) Duration() float64 {
	return s.duration
}

func (s *Source) Seek(_ context.Context, timestamp float64) error {
	if timestamp < 0 {
		return fmt.Errorf("negative seek timestamp %.2f", timestamp)
	}
	s.position = timestamp
	return nil
}

// Capture decodes exactly one frame at the current position. The context
// deadline set by the sampler bounds the decode, so a stalled ffmpeg is
// killed instead of hanging the run.
func (s *Source) Capture(ctx context.Context) (*entity.Frame, error) {
	cmd := exec.CommandContext(ctx, s.ffmpegPath,
		"-ss", fmt.Sprintf("%.3f", s.position),
		"-i", s.videoPath,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg frame at %.2fs: %w, output: %s", s.position, err, stderr.String())
	}

	img, err := png.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("decode frame at %.2fs: %w", s.position, err)
	}

	return entity.FrameFromImage(img, s.position), nil
}
