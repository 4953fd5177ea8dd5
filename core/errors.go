package core

import "errors"

var (
	// ErrNotEnrolled is returned when no enrollment exists for a user
	ErrNotEnrolled = errors.New("user is not enrolled")

	// ErrSessionActive is returned when a user already has a running session
	ErrSessionActive = errors.New("verification session already active for user")

	// ErrCaptureUnavailable is returned when no frames or audio reach the
	// scheduler at all; it aborts the session immediately
	ErrCaptureUnavailable = errors.New("capture source unavailable")

	// ErrChallengeTimeout marks a stage whose deadline elapsed without success
	ErrChallengeTimeout = errors.New("challenge deadline elapsed")

	// ErrInsufficientSamples is returned when too few samples were provided
	// for enrollment or verification
	ErrInsufficientSamples = errors.New("insufficient samples")

	// ErrSigningFailed is returned when key derivation or signing fails
	ErrSigningFailed = errors.New("attestation signing failed")

	// ErrSubmissionFailed is returned when the external submitter rejects an
	// attestation; it never invalidates the verification verdict
	ErrSubmissionFailed = errors.New("attestation submission failed")

	// ErrSessionStopped is returned when a session was cancelled externally
	ErrSessionStopped = errors.New("verification session stopped")

	// ErrStoreOperationFailed is returned when a store operation fails
	ErrStoreOperationFailed = errors.New("store operation failed")
)
