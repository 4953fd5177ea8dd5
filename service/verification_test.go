package service

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/presence/adapters/capture"
	"github.com/layer-3/presence/adapters/locker"
	"github.com/layer-3/presence/adapters/store"
	"github.com/layer-3/presence/config"
	"github.com/layer-3/presence/core"
	"github.com/layer-3/presence/internal/eth"
	"github.com/layer-3/presence/ports"
)

type stubEncoder struct {
	features []float64
	err      error
}

func (e stubEncoder) Encode(context.Context, []float64) ([]float64, error) {
	return e.features, e.err
}

type recordingEvents struct {
	mu        sync.Mutex
	states    []core.State
	completed []core.VerificationRecord
}

func (e *recordingEvents) PublishStageChanged(_ context.Context, _, _ string, state core.State) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.states = append(e.states, state)
	return nil
}

func (e *recordingEvents) PublishCompleted(_ context.Context, _ string, rec core.VerificationRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.completed = append(e.completed, rec)
	return nil
}

type recordingSubmitter struct {
	mu       sync.Mutex
	payloads []core.AttestationPayload
}

func (s *recordingSubmitter) Submit(_ context.Context, payload core.AttestationPayload) (ports.SubmissionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, payload)
	return ports.SubmissionResult{Success: true, TransactionHash: "0xabc"}, nil
}

// testSettings shrinks every timing window so sessions complete in
// milliseconds.
func testSettings() config.Verification {
	cfg := config.DefaultVerification()
	cfg.SmoothingSigma = 1
	cfg.FaceChallengeTimeout = config.Duration(400 * time.Millisecond)
	cfg.VoiceCountdown = config.Duration(10 * time.Millisecond)
	cfg.RecordingWindow = config.Duration(80 * time.Millisecond)
	cfg.PollInterval = config.Duration(10 * time.Millisecond)
	cfg.SessionTTL = config.Duration(time.Second)
	return cfg
}

func smileFrame() core.LandmarkFrame {
	mouth := make([]core.Point, 12)
	mouth[0] = core.Point{X: 0, Y: 0}
	mouth[6] = core.Point{X: 100, Y: 0}
	mouth[3] = core.Point{X: 50, Y: -5}
	mouth[9] = core.Point{X: 50, Y: 5}
	return core.LandmarkFrame{At: time.Now(), Mouth: mouth}
}

// openEyesFrame has an eye aspect ratio of 0.4, well above the blink
// threshold, so a blink is never detected.
func openEyesFrame(at time.Time) core.LandmarkFrame {
	eye := []core.Point{
		{X: 0, Y: 0}, {X: 2, Y: 2}, {X: 8, Y: 2},
		{X: 10, Y: 0}, {X: 8, Y: -2}, {X: 2, Y: -2},
	}
	return core.LandmarkFrame{At: at, LeftEye: eye, RightEye: eye}
}

// movingLipFrames produce strictly growing inter-frame movement so lip
// motion correlates with a rising audio envelope.
func movingLipFrames(n int) []core.LandmarkFrame {
	frames := make([]core.LandmarkFrame, n)
	for i := range frames {
		offset := float64(i * i)
		mouth := make([]core.Point, 12)
		for j := range mouth {
			mouth[j] = core.Point{X: offset, Y: offset}
		}
		frames[i] = core.LandmarkFrame{At: time.Now(), Mouth: mouth}
	}
	return frames
}

// risingAudio ramps amplitude linearly so windowed energy rises too.
func risingAudio(n int) []float64 {
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = float64(i) / float64(n)
	}
	return samples
}

type fixture struct {
	svc       *VerificationService
	store     *store.MemoryStore
	locker    *locker.MemoryLocker
	events    *recordingEvents
	submitter *recordingSubmitter
	signer    *eth.Signer
	wallet    string
}

func newFixture(t *testing.T, enabled []core.ChallengeKind) *fixture {
	t.Helper()

	key, err := eth.ParseSigningKey("0x47e179ec197488593b187f80a00eb0da91f1b9d0b13f8733639f19c30a34926a")
	require.NoError(t, err)
	signer, err := eth.NewSigner(key, eth.SchemePersonal)
	require.NoError(t, err)

	f := &fixture{
		store:     store.NewMemoryStore(),
		locker:    locker.NewMemoryLocker(),
		events:    &recordingEvents{},
		submitter: &recordingSubmitter{},
		signer:    signer,
		wallet:    "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
	}
	f.svc = NewVerificationService(testSettings(), enabled, Dependencies{
		Store:          f.store,
		Locker:         f.locker,
		Events:         f.events,
		Submitter:      f.submitter,
		Encoder:        stubEncoder{features: []float64{0.5, 1.0, -0.25, 2.0}},
		Signer:         signer,
		FallbackSecret: []byte("test-secret"),
	})
	return f
}

func (f *fixture) enroll(t *testing.T, userID string) {
	t.Helper()
	err := f.store.SaveEnrollment(context.Background(), core.Enrollment{
		UserID:        userID,
		WalletAddress: f.wallet,
		VoicePrint:    []float64{0.5, 1.0, -0.25, 2.0},
		CreatedAt:     time.Now(),
	})
	require.NoError(t, err)
}

func TestRunSessionPassProducesSignedAttestation(t *testing.T) {
	f := newFixture(t, []core.ChallengeKind{core.ChallengeSmile})
	f.enroll(t, "alice")

	frames := append([]core.LandmarkFrame{smileFrame()}, movingLipFrames(12)...)
	audio := risingAudio(1024 + 512*11)

	outcome, err := f.svc.RunSession(context.Background(), "alice", f.wallet,
		capture.NewReplayFrameSource(frames), capture.NewReplayAudioSource(audio))
	require.NoError(t, err)

	require.Equal(t, core.StatePassed, outcome.Session.State)
	require.True(t, outcome.Session.Verdict)
	require.NotNil(t, outcome.Attestation)
	require.NotNil(t, outcome.Payload)

	payload := outcome.Payload
	require.Len(t, payload.BiometricHash, 66)
	require.Len(t, payload.Signature, 132)
	require.Equal(t, common.HexToAddress(f.wallet).Hex(), payload.WalletAddress)
	require.Equal(t, core.VerificationType, payload.VerificationType)

	// The signature must recover to the engine's signing address.
	var digest [32]byte
	raw, err := hex.DecodeString(payload.BiometricHash[2:])
	require.NoError(t, err)
	copy(digest[:], raw)

	var sig [65]byte
	rawSig, err := hex.DecodeString(payload.Signature[2:])
	require.NoError(t, err)
	copy(sig[:], rawSig)

	hash := eth.MessageHash(common.HexToAddress(payload.WalletAddress), digest)
	recovered, err := eth.RecoverPersonal(hash, sig)
	require.NoError(t, err)
	require.Equal(t, f.signer.Address(), recovered)

	// The passed session is persisted with hash and signature.
	history, err := f.store.History(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.True(t, history[0].OverallResult)
	require.Equal(t, payload.BiometricHash, history[0].HashValue)
	require.Equal(t, payload.Signature, history[0].Signature)

	require.Len(t, f.submitter.payloads, 1)
	require.NotNil(t, outcome.Submission)
	require.True(t, outcome.Submission.Success)
	require.Contains(t, f.events.states, core.StatePassed)
	require.Len(t, f.events.completed, 1)
}

func TestRunSessionLipSyncFailureFailsFusion(t *testing.T) {
	f := newFixture(t, []core.ChallengeKind{core.ChallengeSmile})
	f.enroll(t, "bob")

	// Only three lip frames: below the minimum, lip sync must fail even
	// though face and voice pass.
	frames := append([]core.LandmarkFrame{smileFrame()}, movingLipFrames(3)...)
	audio := risingAudio(4096)

	outcome, err := f.svc.RunSession(context.Background(), "bob", f.wallet,
		capture.NewReplayFrameSource(frames), capture.NewReplayAudioSource(audio))
	require.NoError(t, err)

	require.Equal(t, core.StateFailed, outcome.Session.State)
	require.False(t, outcome.Session.Verdict)
	require.Nil(t, outcome.Attestation)
	require.Nil(t, outcome.Payload)

	lip, ok := outcome.Session.StageOutcome(core.StageLipSync)
	require.True(t, ok)
	require.False(t, lip.Passed)
	face, ok := outcome.Session.StageOutcome(core.StageFaceLiveness)
	require.True(t, ok)
	require.True(t, face.Passed)

	// Failed sessions are persisted too, with empty hash and signature.
	history, err := f.store.History(context.Background(), "bob")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.False(t, history[0].OverallResult)
	require.Empty(t, history[0].HashValue)
	require.Empty(t, history[0].Signature)
	require.True(t, history[0].FaceLiveness)
	require.False(t, history[0].LipSync)

	require.Empty(t, f.submitter.payloads)
}

func TestRunSessionFaceChallengeTimeout(t *testing.T) {
	f := newFixture(t, []core.ChallengeKind{core.ChallengeBlink})
	f.enroll(t, "carol")

	// Eyes stay open, so the blink challenge can only time out.
	now := time.Now()
	frames := []core.LandmarkFrame{
		openEyesFrame(now),
		openEyesFrame(now.Add(100 * time.Millisecond)),
		openEyesFrame(now.Add(200 * time.Millisecond)),
	}

	start := time.Now()
	outcome, err := f.svc.RunSession(context.Background(), "carol", f.wallet,
		capture.NewReplayFrameSource(frames), capture.NewReplayAudioSource(risingAudio(4096)))
	require.NoError(t, err)
	require.GreaterOrEqual(t, time.Since(start), 400*time.Millisecond)

	face, ok := outcome.Session.StageOutcome(core.StageFaceLiveness)
	require.True(t, ok)
	require.False(t, face.Passed)
	require.Contains(t, face.Reason, "deadline")

	// The voice stage still ran for diagnostics.
	_, ok = outcome.Session.StageOutcome(core.StageVoiceMatch)
	require.True(t, ok)
	require.Equal(t, core.StateFailed, outcome.Session.State)
}

func TestRunSessionCaptureUnavailable(t *testing.T) {
	f := newFixture(t, []core.ChallengeKind{core.ChallengeSmile})
	f.enroll(t, "dave")

	outcome, err := f.svc.RunSession(context.Background(), "dave", f.wallet,
		capture.NewReplayFrameSource(nil), capture.NewReplayAudioSource(risingAudio(4096)))
	require.ErrorIs(t, err, core.ErrCaptureUnavailable)
	require.Nil(t, outcome)
}

func TestRunSessionRejectsNotEnrolled(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.RunSession(context.Background(), "nobody", f.wallet,
		capture.NewReplayFrameSource(nil), capture.NewReplayAudioSource(nil))
	require.ErrorIs(t, err, core.ErrNotEnrolled)
}

func TestRunSessionRejectsConcurrentSession(t *testing.T) {
	f := newFixture(t, []core.ChallengeKind{core.ChallengeSmile})
	f.enroll(t, "erin")

	acquired, err := f.locker.Acquire(context.Background(), "erin", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	_, err = f.svc.RunSession(context.Background(), "erin", f.wallet,
		capture.NewReplayFrameSource(nil), capture.NewReplayAudioSource(nil))
	require.ErrorIs(t, err, core.ErrSessionActive)
}

func TestRunSessionStoppedByCancellation(t *testing.T) {
	f := newFixture(t, []core.ChallengeKind{core.ChallengeBlink})
	f.enroll(t, "frank")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := f.svc.RunSession(ctx, "frank", f.wallet,
		capture.NewReplayFrameSource([]core.LandmarkFrame{openEyesFrame(time.Now())}),
		capture.NewReplayAudioSource(risingAudio(4096)))
	require.NoError(t, err)
	require.Equal(t, core.StateStopped, outcome.Session.State)
	require.False(t, outcome.Session.Verdict)

	// The stopped session is persisted as failed with empty hash.
	history, err := f.store.History(context.Background(), "frank")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.False(t, history[0].OverallResult)
	require.Empty(t, history[0].HashValue)

	// The lock is released afterwards.
	acquired, err := f.locker.Acquire(context.Background(), "frank", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)
}

func TestRunSessionEncoderFailureFailsVoiceStage(t *testing.T) {
	f := newFixture(t, []core.ChallengeKind{core.ChallengeSmile})
	f.enroll(t, "grace")
	f.svc.deps.Encoder = stubEncoder{err: errors.New("model unavailable")}

	frames := append([]core.LandmarkFrame{smileFrame()}, movingLipFrames(12)...)
	outcome, err := f.svc.RunSession(context.Background(), "grace", f.wallet,
		capture.NewReplayFrameSource(frames), capture.NewReplayAudioSource(risingAudio(1024+512*11)))
	require.NoError(t, err)

	voice, ok := outcome.Session.StageOutcome(core.StageVoiceMatch)
	require.True(t, ok)
	require.False(t, voice.Passed)
	require.Contains(t, voice.Reason, "extraction failed")
	require.Equal(t, core.StateFailed, outcome.Session.State)
}
