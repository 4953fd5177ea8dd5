package service

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/layer-3/presence/core"
	"github.com/layer-3/presence/ports"
)

// Minimum sample counts for building templates.
const (
	minFaceSamples  = 3
	minVoiceSamples = 2
)

// EnrollmentService builds biometric templates from captured sample sets.
// Capture itself happens outside the core: callers hand in pre-extracted
// face embeddings and raw voice clips.
type EnrollmentService struct {
	store   ports.Store
	encoder ports.VoiceEncoder
	logger  *slog.Logger
}

// NewEnrollmentService creates a new enrollment service.
func NewEnrollmentService(store ports.Store, encoder ports.VoiceEncoder, logger *slog.Logger) *EnrollmentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &EnrollmentService{store: store, encoder: encoder, logger: logger}
}

// Enroll averages the face embeddings and per-clip voice features into
// templates, hashes them, and persists the enrollment. Fewer than 3 face
// samples or 2 voice clips yields core.ErrInsufficientSamples.
func (s *EnrollmentService) Enroll(ctx context.Context, userID, walletAddress string, faceSamples [][]float64, voiceClips [][]float64) (core.Enrollment, error) {
	if len(faceSamples) < minFaceSamples {
		return core.Enrollment{}, fmt.Errorf("%d face samples, need %d: %w",
			len(faceSamples), minFaceSamples, core.ErrInsufficientSamples)
	}
	if len(voiceClips) < minVoiceSamples {
		return core.Enrollment{}, fmt.Errorf("%d voice clips, need %d: %w",
			len(voiceClips), minVoiceSamples, core.ErrInsufficientSamples)
	}

	faceTemplate, err := meanVector(faceSamples)
	if err != nil {
		return core.Enrollment{}, fmt.Errorf("face template: %w", err)
	}

	voiceFeatures := make([][]float64, 0, len(voiceClips))
	for i, clip := range voiceClips {
		features, err := s.encoder.Encode(ctx, clip)
		if err != nil {
			return core.Enrollment{}, fmt.Errorf("voice clip %d: %w", i, err)
		}
		voiceFeatures = append(voiceFeatures, features)
	}
	voicePrint, err := meanVector(voiceFeatures)
	if err != nil {
		return core.Enrollment{}, fmt.Errorf("voice template: %w", err)
	}

	enr := core.Enrollment{
		UserID:        userID,
		WalletAddress: walletAddress,
		FaceHash:      hashVector(faceTemplate),
		VoiceHash:     hashVector(voicePrint),
		VoicePrint:    voicePrint,
		CreatedAt:     time.Now(),
	}

	if err := s.store.SaveEnrollment(ctx, enr); err != nil {
		return core.Enrollment{}, fmt.Errorf("failed to save enrollment: %w", err)
	}

	s.logger.Info("user enrolled",
		"user_id", userID,
		"face_samples", len(faceSamples),
		"voice_clips", len(voiceClips))

	return enr, nil
}

// meanVector averages equal-length sample vectors element-wise.
func meanVector(samples [][]float64) ([]float64, error) {
	if len(samples) == 0 {
		return nil, core.ErrInsufficientSamples
	}
	dim := len(samples[0])
	for _, s := range samples {
		if len(s) != dim {
			return nil, fmt.Errorf("sample dimension mismatch: %d vs %d", len(s), dim)
		}
	}

	mean := make([]float64, dim)
	for _, s := range samples {
		for i, v := range s {
			mean[i] += v
		}
	}
	for i := range mean {
		mean[i] /= float64(len(samples))
	}
	return mean, nil
}

// hashVector produces the SHA-256 hex digest of a template's canonical
// little-endian float64 serialization.
func hashVector(v []float64) string {
	h := sha256.New()
	var buf [8]byte
	for _, x := range v {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(x))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
