package slides

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mentingo/mentingo-slide-service/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource replays frames keyed by seek position. A nil render function
// produces a flat frame. failAfter, when positive, fails every capture
// once that many frames have been captured.
type fakeSource struct {
	duration  float64
	render    func(timestamp float64) *entity.Frame
	failAfter int
	failSeek  bool
	blockSeek bool

	position float64
	captured int
	seeks    []float64
}

func (f *fakeSource) Duration() float64 { return f.duration }

func (f *fakeSource) Seek(ctx context.Context, timestamp float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.blockSeek {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.failSeek {
		return errors.New("seek failed")
	}
	f.position = timestamp
	f.seeks = append(f.seeks, timestamp)
	return nil
}

func (f *fakeSource) Capture(_ context.Context) (*entity.Frame, error) {
	if f.failAfter > 0 && f.captured >= f.failAfter {
		return nil, errors.New("decode failed")
	}
	f.captured++
	if f.render != nil {
		return f.render(f.position), nil
	}
	return solidFrame(8, 8, 0, 0, 0), nil
}

func TestSamplerWalksIntervalBelowDuration(t *testing.T) {
	src := &fakeSource{duration: 35}
	s := NewSampler(src, 10, time.Second)

	var times []float64
	for {
		sample, err := s.Next(context.Background())
		if errors.Is(err, ErrDone) {
			break
		}
		require.NoError(t, err)
		times = append(times, sample.Timestamp)
	}

	assert.Equal(t, []float64{0, 10, 20, 30}, times)
	assert.Equal(t, 4, s.Yielded())
}

func TestSamplerExactMultipleDurationExcludesEndpoint(t *testing.T) {
	src := &fakeSource{duration: 30}
	s := NewSampler(src, 10, time.Second)

	var times []float64
	for {
		sample, err := s.Next(context.Background())
		if errors.Is(err, ErrDone) {
			break
		}
		require.NoError(t, err)
		times = append(times, sample.Timestamp)
	}

	assert.Equal(t, []float64{0, 10, 20}, times)
}

func TestSamplerZeroDurationYieldsNothing(t *testing.T) {
	src := &fakeSource{duration: 0}
	s := NewSampler(src, 10, time.Second)

	_, err := s.Next(context.Background())
	assert.ErrorIs(t, err, ErrDone)
	assert.Zero(t, s.Yielded())
}

func TestSamplerPropagatesCaptureError(t *testing.T) {
	src := &fakeSource{duration: 60, failAfter: 2}
	s := NewSampler(src, 10, time.Second)

	_, err := s.Next(context.Background())
	require.NoError(t, err)
	_, err = s.Next(context.Background())
	require.NoError(t, err)

	_, err = s.Next(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDone)
	assert.Equal(t, 2, s.Yielded())
}

func TestSamplerTimesOutStalledSeek(t *testing.T) {
	src := &fakeSource{duration: 60, blockSeek: true}
	s := NewSampler(src, 10, 20*time.Millisecond)

	_, err := s.Next(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSamplerZeroReadyTimeoutDisablesDeadline(t *testing.T) {
	src := &fakeSource{duration: 35}
	s := NewSampler(src, 10, 0)

	sample, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.0, sample.Timestamp)
	assert.NotNil(t, sample.Frame)
}

func TestSamplerFinalCapturesAtDuration(t *testing.T) {
	src := &fakeSource{duration: 35}
	s := NewSampler(src, 10, time.Second)

	_, err := s.Next(context.Background())
	require.NoError(t, err)

	sample, err := s.Final(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 35.0, sample.Timestamp)
}

func TestSamplerFinalWithoutInteriorSamples(t *testing.T) {
	src := &fakeSource{duration: 0}
	s := NewSampler(src, 10, time.Second)

	_, err := s.Final(context.Background())
	assert.ErrorIs(t, err, ErrDone)
}

func TestSamplerFrameCarriesTimestamp(t *testing.T) {
	src := &fakeSource{duration: 25}
	s := NewSampler(src, 10, time.Second)

	_, err := s.Next(context.Background())
	require.NoError(t, err)
	sample, err := s.Next(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 10.0, sample.Timestamp)
	assert.Equal(t, 10.0, sample.Frame.Timestamp)
}
