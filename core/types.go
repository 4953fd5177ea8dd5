package core

import (
	"encoding/hex"
	"time"
)

// ChallengeKind identifies a face-liveness gesture the user is asked to perform.
type ChallengeKind string

const (
	ChallengeBlink     ChallengeKind = "blink"
	ChallengeSmile     ChallengeKind = "smile"
	ChallengeHeadLeft  ChallengeKind = "head_left"
	ChallengeHeadRight ChallengeKind = "head_right"
	ChallengeHeadTilt  ChallengeKind = "head_tilt"
)

// AllChallengeKinds is the default enabled set.
var AllChallengeKinds = []ChallengeKind{
	ChallengeBlink,
	ChallengeSmile,
	ChallengeHeadLeft,
	ChallengeHeadRight,
	ChallengeHeadTilt,
}

// Prompt returns the instruction shown to the user for this challenge kind.
func (k ChallengeKind) Prompt() string {
	switch k {
	case ChallengeBlink:
		return "Please blink twice"
	case ChallengeSmile:
		return "Please smile"
	case ChallengeHeadLeft:
		return "Please turn your head left"
	case ChallengeHeadRight:
		return "Please turn your head right"
	case ChallengeHeadTilt:
		return "Please tilt your head up"
	default:
		return ""
	}
}

// Challenge is the single active face-liveness challenge of a session.
type Challenge struct {
	Kind     ChallengeKind
	Prompt   string
	Deadline time.Time
}

// VoicePrompt is a freshly generated phrase the user must read aloud.
// Phrases are composed from randomized templates and are not reused
// verbatim across sessions.
type VoicePrompt struct {
	Phrase     string
	TemplateID string
}

// Point is a 2D landmark coordinate in pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LandmarkFrame is a timestamped set of facial landmarks extracted by an
// external detector. Frames are ephemeral: the scheduler owns them for the
// duration of one challenge stage and discards them afterwards.
type LandmarkFrame struct {
	At       time.Time `json:"at"`
	LeftEye  []Point   `json:"left_eye"`  // 6 ordered eyelid points
	RightEye []Point   `json:"right_eye"` // 6 ordered eyelid points
	Mouth    []Point   `json:"mouth"`     // 12 mouth contour points
	PoseRef  []Point   `json:"pose_ref"`  // nose tip, chin, eye corners, mouth corners
	Width    float64   `json:"width"`     // source frame width in pixels
	Height   float64   `json:"height"`    // source frame height in pixels
}

// Stage names one of the three fused verification checks.
type Stage string

const (
	StageFaceLiveness Stage = "face_liveness"
	StageVoiceMatch   Stage = "voice_match"
	StageLipSync      Stage = "lip_sync"
)

// StageResult records the outcome of one verification stage.
// Immutable once recorded.
type StageResult struct {
	Stage  Stage
	Passed bool
	Metric float64
	Reason string // set only when the stage failed
}

// State is the scheduler state of a verification session.
type State string

const (
	StateIdle           State = "idle"
	StateFaceChallenge  State = "face_challenge"
	StateVoiceChallenge State = "voice_challenge"
	StateFusion         State = "fusion"
	StatePassed         State = "passed"
	StateFailed         State = "failed"
	StateStopped        State = "stopped"
)

// Terminal reports whether the state ends a session.
func (s State) Terminal() bool {
	return s == StatePassed || s == StateFailed || s == StateStopped
}

// VerificationSession is the unit of work driven by one scheduler instance.
// Stage results are append-only and ordered; once the session reaches a
// terminal state it is never mutated again.
type VerificationSession struct {
	ID            string
	UserID        string
	WalletAddress string
	State         State
	Stages        []StageResult
	Verdict       bool
	CreatedAt     time.Time
}

// RecordStage appends a stage result. Results are never overwritten.
func (s *VerificationSession) RecordStage(r StageResult) {
	s.Stages = append(s.Stages, r)
}

// StageOutcome returns the recorded result for a stage. A stage with no
// recorded result counts as failed.
func (s *VerificationSession) StageOutcome(stage Stage) (StageResult, bool) {
	for _, r := range s.Stages {
		if r.Stage == stage {
			return r, true
		}
	}
	return StageResult{Stage: stage}, false
}

// Attestation is the signed assertion that a verification session passed.
// It exists if and only if the owning session's verdict is Pass, and is
// never mutated after creation.
type Attestation struct {
	MessageHash   [32]byte
	WalletAddress [20]byte
	Signature     [65]byte // r (32) || s (32) || v (1)
}

// MessageHashHex returns the 0x-prefixed hash (66 characters).
func (a Attestation) MessageHashHex() string {
	return "0x" + hex.EncodeToString(a.MessageHash[:])
}

// SignatureHex returns the 0x-prefixed signature (132 characters).
func (a Attestation) SignatureHex() string {
	return "0x" + hex.EncodeToString(a.Signature[:])
}

// VerificationType tags attestation payloads produced by this engine.
const VerificationType = "face_voice_liveness"

// AttestationPayload is the wire format handed to the external submitter.
type AttestationPayload struct {
	UserID           string `json:"user_id"`
	BiometricHash    string `json:"biometric_hash"`
	Signature        string `json:"signature"`
	WalletAddress    string `json:"wallet_address"`
	Timestamp        int64  `json:"timestamp"`
	VerificationType string `json:"verification_type"`
}

// VerificationRecord is the persisted session record consumed and produced
// by the store collaborator. Failed sessions are recorded too, with empty
// hash and signature.
type VerificationRecord struct {
	UserID           string
	FaceLiveness     bool
	VoiceMatch       bool
	LipSync          bool
	OverallResult    bool
	HashValue        string
	Signature        string
	VerificationTime time.Time
}

// Enrollment holds a user's stored biometric templates. The raw voiceprint
// is kept for cosine comparison at verification time; face and voice
// templates are additionally stored as SHA-256 hashes.
type Enrollment struct {
	UserID        string
	WalletAddress string
	FaceHash      string
	VoiceHash     string
	VoicePrint    []float64
	CreatedAt     time.Time
}
