// Package capture provides frame and audio sources for the verification
// scheduler. The replay sources wrap pre-captured data handed in over the
// API; live camera and microphone capture stay outside this service.
package capture

import (
	"context"
	"time"

	"github.com/layer-3/presence/core"
)

// ReplayFrameSource delivers a fixed landmark sequence over a channel. The
// channel is pre-filled and closed, so consumers see every frame and then
// channel exhaustion, exactly like a live source that stopped.
type ReplayFrameSource struct {
	ch chan core.LandmarkFrame
}

// NewReplayFrameSource buffers the given frames for replay.
func NewReplayFrameSource(frames []core.LandmarkFrame) *ReplayFrameSource {
	ch := make(chan core.LandmarkFrame, len(frames))
	for _, f := range frames {
		ch <- f
	}
	close(ch)
	return &ReplayFrameSource{ch: ch}
}

// Frames implements ports.FrameSource.
func (s *ReplayFrameSource) Frames() <-chan core.LandmarkFrame {
	return s.ch
}

// Close implements ports.FrameSource. Replay sources hold no resources.
func (s *ReplayFrameSource) Close() error {
	return nil
}

// ReplayAudioSource returns a fixed waveform for any recording window.
type ReplayAudioSource struct {
	samples []float64
}

// NewReplayAudioSource wraps pre-recorded samples.
func NewReplayAudioSource(samples []float64) *ReplayAudioSource {
	return &ReplayAudioSource{samples: samples}
}

// Record implements ports.AudioSource.
func (s *ReplayAudioSource) Record(ctx context.Context, _ time.Duration) ([]float64, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return s.samples, nil
}

// Close implements ports.AudioSource.
func (s *ReplayAudioSource) Close() error {
	return nil
}
