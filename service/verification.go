package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/layer-3/presence/analyzer"
	"github.com/layer-3/presence/config"
	"github.com/layer-3/presence/core"
	"github.com/layer-3/presence/internal/eth"
	"github.com/layer-3/presence/ports"
)

// Dependencies are the collaborators of the verification service.
type Dependencies struct {
	Store          ports.Store
	Locker         ports.SessionLocker
	Events         ports.EventPublisher
	Submitter      ports.Submitter
	Encoder        ports.VoiceEncoder
	Notifier       ports.Notifier
	Signer         *eth.Signer
	FallbackSecret []byte
	Logger         *slog.Logger
}

// VerificationService drives challenge-response sessions: it sequences the
// face and voice challenges under their deadlines, fuses the stage results
// into a verdict, and signs the attestation on a pass.
//
// A session is owned by exactly one RunSession call. Frame and audio buffers
// are appended by a single writer each and read only after the producer
// completes, so no per-buffer locking is needed.
type VerificationService struct {
	cfg     config.Verification
	enabled []core.ChallengeKind
	deps    Dependencies
	logger  *slog.Logger

	randMu sync.Mutex
	rng    *rand.Rand
}

// NewVerificationService creates a scheduler with the given configuration.
// A nil enabled set means all challenge kinds.
func NewVerificationService(cfg config.Verification, enabled []core.ChallengeKind, deps Dependencies) *VerificationService {
	if len(enabled) == 0 {
		enabled = core.AllChallengeKinds
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Notifier == nil {
		deps.Notifier = ports.NopNotifier{}
	}
	return &VerificationService{
		cfg:     cfg,
		enabled: enabled,
		deps:    deps,
		logger:  logger,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// VerificationOutcome is the result of one session.
type VerificationOutcome struct {
	Session     *core.VerificationSession
	Attestation *core.Attestation
	Payload     *core.AttestationPayload
	Submission  *ports.SubmissionResult

	// FallbackSignature is set only when secp256k1 signing failed; it is a
	// diagnostic HMAC signature, never submitted to the ledger.
	FallbackSignature string
}

// RunSession executes a full verification session for an enrolled user.
// Cancellation of ctx stops the session cooperatively: the outcome carries
// StateStopped and the session is recorded as failed. A capture source that
// never produces data aborts with core.ErrCaptureUnavailable.
func (s *VerificationService) RunSession(ctx context.Context, userID, walletAddress string, frames ports.FrameSource, audio ports.AudioSource) (*VerificationOutcome, error) {
	enr, err := s.deps.Store.Enrollment(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load enrollment: %w", err)
	}

	acquired, err := s.deps.Locker.Acquire(ctx, userID, s.cfg.SessionTTL.Std())
	if err != nil {
		return nil, fmt.Errorf("failed to acquire session lock: %w", err)
	}
	if !acquired {
		return nil, core.ErrSessionActive
	}
	defer func() {
		if err := s.deps.Locker.Release(context.WithoutCancel(ctx), userID); err != nil {
			s.logger.Warn("failed to release session lock", "user_id", userID, "error", err)
		}
	}()
	defer frames.Close()
	defer audio.Close()

	sess := &core.VerificationSession{
		ID:            uuid.New().String(),
		UserID:        userID,
		WalletAddress: walletAddress,
		State:         core.StateIdle,
		CreatedAt:     time.Now(),
	}
	s.logger.Info("verification session started", "session_id", sess.ID, "user_id", userID)

	s.setState(ctx, sess, core.StateFaceChallenge)
	faceRes, err := s.runFaceChallenge(ctx, sess, frames)
	if err != nil {
		return s.abort(ctx, sess, err)
	}
	sess.RecordStage(faceRes)
	if !faceRes.Passed {
		// The session is destined to fail at fusion, but the voice stage
		// still runs so the full diagnostic log is recorded.
		s.logger.Info("face challenge failed", "session_id", sess.ID, "reason", faceRes.Reason)
	}

	s.setState(ctx, sess, core.StateVoiceChallenge)
	voiceRes, lipRes, err := s.runVoiceChallenge(ctx, sess, enr, frames, audio)
	if err != nil {
		return s.abort(ctx, sess, err)
	}
	sess.RecordStage(voiceRes)
	sess.RecordStage(lipRes)

	s.setState(ctx, sess, core.StateFusion)
	verdict, failedStages := core.Fuse(faceRes.Passed, voiceRes.Passed, lipRes.Passed)
	sess.Verdict = verdict

	now := time.Now()
	outcome := &VerificationOutcome{Session: sess}
	rec := core.VerificationRecord{
		UserID:           userID,
		FaceLiveness:     faceRes.Passed,
		VoiceMatch:       voiceRes.Passed,
		LipSync:          lipRes.Passed,
		OverallResult:    verdict,
		VerificationTime: now,
	}

	if verdict {
		s.setState(ctx, sess, core.StatePassed)
		s.signOutcome(sess, now, outcome, &rec)
	} else {
		s.setState(ctx, sess, core.StateFailed)
		s.logger.Info("verification failed",
			"session_id", sess.ID,
			"user_id", userID,
			"failed_stages", failedStages)
	}

	s.finishSession(ctx, sess, rec)

	if outcome.Payload != nil {
		result, err := s.deps.Submitter.Submit(ctx, *outcome.Payload)
		if err != nil {
			// Non-fatal: the verdict and log stand regardless.
			s.logger.Warn("attestation submission failed", "session_id", sess.ID, "error", err)
		} else {
			outcome.Submission = &result
		}
	}

	return outcome, nil
}

// signOutcome builds and signs the attestation for a passed session,
// falling back to the diagnostic HMAC signature on signing failure.
func (s *VerificationService) signOutcome(sess *core.VerificationSession, now time.Time, outcome *VerificationOutcome, rec *core.VerificationRecord) {
	wallet := common.HexToAddress(sess.WalletAddress)
	digest := biometricDigest(sess, now)
	digestHex := "0x" + hex.EncodeToString(digest[:])

	hash, sig, err := s.deps.Signer.SignAttestation(wallet, digest)
	if err != nil {
		s.logger.Error("attestation signing failed, using diagnostic fallback",
			"session_id", sess.ID, "error", err)
		outcome.FallbackSignature = eth.FallbackSignature(s.deps.FallbackSecret, wallet, digest)
		rec.HashValue = digestHex
		rec.Signature = outcome.FallbackSignature
		return
	}

	att := &core.Attestation{MessageHash: hash}
	copy(att.WalletAddress[:], wallet.Bytes())
	copy(att.Signature[:], sig[:])
	outcome.Attestation = att
	outcome.Payload = &core.AttestationPayload{
		UserID:           sess.UserID,
		BiometricHash:    digestHex,
		Signature:        att.SignatureHex(),
		WalletAddress:    wallet.Hex(),
		Timestamp:        now.Unix(),
		VerificationType: core.VerificationType,
	}
	rec.HashValue = digestHex
	rec.Signature = att.SignatureHex()
}

// abort handles stage errors: cancellation transitions to Stopped and
// records the session; anything else is fatal and surfaces synchronously.
func (s *VerificationService) abort(ctx context.Context, sess *core.VerificationSession, err error) (*VerificationOutcome, error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		s.logger.Info("verification session stopped", "session_id", sess.ID, "reason", err)
		s.setState(ctx, sess, core.StateStopped)
		s.finishSession(ctx, sess, core.VerificationRecord{
			UserID:           sess.UserID,
			OverallResult:    false,
			VerificationTime: time.Now(),
		})
		return &VerificationOutcome{Session: sess}, nil
	}
	return nil, err
}

// finishSession persists the record and publishes the completion event.
// Both are best effort: an audit-path failure never changes the verdict.
func (s *VerificationService) finishSession(ctx context.Context, sess *core.VerificationSession, rec core.VerificationRecord) {
	persistCtx := context.WithoutCancel(ctx)
	if err := s.deps.Store.LogVerification(persistCtx, rec); err != nil {
		s.logger.Error("failed to persist verification record", "session_id", sess.ID, "error", err)
	}
	if err := s.deps.Events.PublishCompleted(persistCtx, sess.ID, rec); err != nil {
		s.logger.Warn("failed to publish completion event", "session_id", sess.ID, "error", err)
	}
}

// setState moves the session state machine and notifies listeners.
func (s *VerificationService) setState(ctx context.Context, sess *core.VerificationSession, state core.State) {
	sess.State = state
	s.deps.Notifier.StageChanged(sess.ID, state)
	if err := s.deps.Events.PublishStageChanged(context.WithoutCancel(ctx), sess.ID, sess.UserID, state); err != nil {
		s.logger.Warn("failed to publish stage event", "session_id", sess.ID, "error", err)
	}
}

// runFaceChallenge picks a random enabled challenge and polls the matching
// analyzer until it reports success or the deadline elapses. A deadline
// without any frame at all is a fatal capture error.
func (s *VerificationService) runFaceChallenge(ctx context.Context, sess *core.VerificationSession, frames ports.FrameSource) (core.StageResult, error) {
	s.randMu.Lock()
	kind := s.enabled[s.rng.Intn(len(s.enabled))]
	s.randMu.Unlock()

	challenge := core.Challenge{
		Kind:     kind,
		Prompt:   kind.Prompt(),
		Deadline: time.Now().Add(s.cfg.FaceChallengeTimeout.Std()),
	}
	s.deps.Notifier.ChallengePrompt(sess.ID, challenge.Prompt)
	s.logger.Info("face challenge issued", "session_id", sess.ID, "kind", kind)

	blinks := analyzer.NewBlinkCounter(s.cfg.BlinkThreshold, s.cfg.BlinkDebounce.Std())

	deadline := time.NewTimer(s.cfg.FaceChallengeTimeout.Std())
	defer deadline.Stop()
	ticker := time.NewTicker(s.cfg.PollInterval.Std())
	defer ticker.Stop()

	frameCh := frames.Frames()
	framesSeen := 0
	var metric float64

	for {
		select {
		case <-ctx.Done():
			return core.StageResult{}, ctx.Err()

		case <-deadline.C:
			if framesSeen == 0 {
				return core.StageResult{}, fmt.Errorf("no frames during face challenge: %w", core.ErrCaptureUnavailable)
			}
			return core.StageResult{
				Stage:  core.StageFaceLiveness,
				Passed: false,
				Metric: metric,
				Reason: fmt.Sprintf("%s: %s", kind, core.ErrChallengeTimeout),
			}, nil

		case frame, ok := <-frameCh:
			if !ok {
				if framesSeen == 0 {
					return core.StageResult{}, fmt.Errorf("frame source closed before face challenge: %w", core.ErrCaptureUnavailable)
				}
				// Source exhausted; wait out the deadline.
				frameCh = nil
				continue
			}
			framesSeen++
			var passed bool
			passed, metric = s.evalFaceFrame(kind, blinks, frame)
			if passed {
				return core.StageResult{Stage: core.StageFaceLiveness, Passed: true, Metric: metric}, nil
			}

		case <-ticker.C:
			// Wall-clock poll tick: cancellation and the deadline are
			// re-checked on every pass through the select.
		}
	}
}

// evalFaceFrame applies the analyzer matching the active challenge kind.
func (s *VerificationService) evalFaceFrame(kind core.ChallengeKind, blinks *analyzer.BlinkCounter, frame core.LandmarkFrame) (bool, float64) {
	switch kind {
	case core.ChallengeBlink:
		blinks.Observe(frame)
		return blinks.Count() >= s.cfg.RequiredBlinks, float64(blinks.Count())

	case core.ChallengeSmile:
		ratio := analyzer.SmileRatio(frame.Mouth)
		return ratio > s.cfg.SmileThreshold, ratio

	case core.ChallengeHeadLeft, core.ChallengeHeadRight, core.ChallengeHeadTilt:
		yaw, pitch, _, err := analyzer.HeadPose(frame)
		if err != nil {
			// Analyzer failure surfaces as "no result", never as an error.
			return false, 0
		}
		metric := math.Max(math.Abs(yaw), math.Abs(pitch))
		return metric > s.cfg.HeadPoseThreshold, metric

	default:
		return false, 0
	}
}

// runVoiceChallenge shows a fresh prompt, records audio for the fixed window
// while buffering lip frames from the same interval, then produces the
// voice-match and lip-sync stage results.
func (s *VerificationService) runVoiceChallenge(ctx context.Context, sess *core.VerificationSession, enr core.Enrollment, frames ports.FrameSource, audio ports.AudioSource) (voiceRes, lipRes core.StageResult, err error) {
	s.randMu.Lock()
	prompt := GenerateVoicePrompt(s.rng)
	s.randMu.Unlock()

	s.deps.Notifier.ChallengePrompt(sess.ID, "Please read the phrase aloud: "+prompt.Phrase)
	s.logger.Info("voice challenge issued",
		"session_id", sess.ID,
		"template", prompt.TemplateID)

	// Countdown before the recording window opens.
	select {
	case <-ctx.Done():
		return voiceRes, lipRes, ctx.Err()
	case <-time.After(s.cfg.VoiceCountdown.Std()):
	}

	window := s.cfg.RecordingWindow.Std()

	type audioResult struct {
		samples []float64
		err     error
	}
	audioCh := make(chan audioResult, 1)
	go func() {
		samples, err := audio.Record(ctx, window)
		audioCh <- audioResult{samples: samples, err: err}
	}()

	// Buffer lip frames for the duration of the window. This loop is the
	// only writer of lipFrames; it is read only after the window closes.
	var lipFrames [][]float64
	windowTimer := time.NewTimer(window)
	defer windowTimer.Stop()
	frameCh := frames.Frames()

collect:
	for {
		select {
		case <-ctx.Done():
			return voiceRes, lipRes, ctx.Err()
		case <-windowTimer.C:
			break collect
		case frame, ok := <-frameCh:
			if !ok {
				frameCh = nil
				continue
			}
			lipFrames = append(lipFrames, analyzer.FlattenPoints(frame.Mouth))
		}
	}

	var recorded audioResult
	select {
	case <-ctx.Done():
		return voiceRes, lipRes, ctx.Err()
	case recorded = <-audioCh:
	}
	if recorded.err != nil {
		return voiceRes, lipRes, fmt.Errorf("audio recording failed: %w", core.ErrCaptureUnavailable)
	}
	if len(recorded.samples) == 0 {
		return voiceRes, lipRes, fmt.Errorf("no audio captured: %w", core.ErrCaptureUnavailable)
	}

	lipRes = s.analyzeLipSync(sess, lipFrames, recorded.samples)
	voiceRes = s.analyzeVoiceMatch(ctx, sess, enr, recorded.samples)
	return voiceRes, lipRes, nil
}

// analyzeLipSync correlates lip movement against audio energy. Fewer than
// the minimum lip frames is an automatic failure without running the
// correlation.
func (s *VerificationService) analyzeLipSync(sess *core.VerificationSession, lipFrames [][]float64, samples []float64) core.StageResult {
	if len(lipFrames) < s.cfg.MinLipFrames {
		return core.StageResult{
			Stage:  core.StageLipSync,
			Passed: false,
			Reason: fmt.Sprintf("%d lip frames, need %d: %s", len(lipFrames), s.cfg.MinLipFrames, core.ErrInsufficientSamples),
		}
	}

	movement := analyzer.LipMovement(lipFrames, s.cfg.SmoothingSigma)
	energy := analyzer.AudioEnergy(samples, s.cfg.EnergyWindow, s.cfg.SmoothingSigma)
	correlation := analyzer.Correlation(energy, movement)

	s.logger.Debug("lip sync analyzed",
		"session_id", sess.ID,
		"correlation", correlation,
		"alignment_cost", analyzer.DTW(energy, movement),
		"lip_frames", len(lipFrames))

	res := core.StageResult{
		Stage:  core.StageLipSync,
		Passed: math.Abs(correlation) > s.cfg.LipSyncThreshold,
		Metric: correlation,
	}
	if !res.Passed {
		res.Reason = fmt.Sprintf("correlation %.3f below threshold %.2f", correlation, s.cfg.LipSyncThreshold)
	}
	return res
}

// analyzeVoiceMatch compares the session voice features against the
// enrolled voiceprint by cosine similarity.
func (s *VerificationService) analyzeVoiceMatch(ctx context.Context, sess *core.VerificationSession, enr core.Enrollment, samples []float64) core.StageResult {
	features, err := s.deps.Encoder.Encode(ctx, samples)
	if err != nil {
		// No result counts as a failed stage.
		return core.StageResult{
			Stage:  core.StageVoiceMatch,
			Passed: false,
			Reason: fmt.Sprintf("voice feature extraction failed: %v", err),
		}
	}

	similarity := analyzer.CosineSimilarity(features, enr.VoicePrint)
	s.logger.Debug("voice match analyzed", "session_id", sess.ID, "similarity", similarity)

	res := core.StageResult{
		Stage:  core.StageVoiceMatch,
		Passed: similarity >= s.cfg.VoiceSimilarityThreshold,
		Metric: similarity,
	}
	if !res.Passed {
		res.Reason = fmt.Sprintf("similarity %.3f below threshold %.2f", similarity, s.cfg.VoiceSimilarityThreshold)
	}
	return res
}

// biometricDigest derives the 32-byte digest bound into the attestation.
// It is a pure function of the session identity and stage outcomes.
func biometricDigest(sess *core.VerificationSession, at time.Time) [32]byte {
	face, _ := sess.StageOutcome(core.StageFaceLiveness)
	voice, _ := sess.StageOutcome(core.StageVoiceMatch)
	lip, _ := sess.StageOutcome(core.StageLipSync)

	data := fmt.Sprintf("user:%s,session:%s,timestamp:%d,face:%t,voice:%t,lip:%t",
		sess.UserID, sess.ID, at.Unix(), face.Passed, voice.Passed, lip.Passed)
	return sha256.Sum256([]byte(data))
}
