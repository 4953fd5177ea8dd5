package ports

import (
	"context"
	"time"

	"github.com/layer-3/presence/core"
)

// FrameSource delivers landmark frames from an external capture pipeline.
// The channel is closed when the source is exhausted or released.
type FrameSource interface {
	Frames() <-chan core.LandmarkFrame
	Close() error
}

// AudioSource records a waveform for a fixed window. Implementations block
// until the window closes or ctx is cancelled.
type AudioSource interface {
	Record(ctx context.Context, window time.Duration) ([]float64, error)
	Close() error
}

// VoiceEncoder turns a waveform into a compact feature vector (MFCC or
// equivalent). The model behind it is an external black box.
type VoiceEncoder interface {
	Encode(ctx context.Context, samples []float64) ([]float64, error)
}
