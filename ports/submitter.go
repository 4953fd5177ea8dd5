package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/layer-3/presence/core"
)

// SubmissionResult is the backend's response to an attestation submission.
type SubmissionResult struct {
	Success         bool            `json:"success"`
	TransactionHash string          `json:"transaction_hash,omitempty"`
	ConfidenceScore decimal.Decimal `json:"confidence_score,omitempty"`
	Error           string          `json:"error,omitempty"`
}

// Submitter hands a signed attestation to the external backend. A failed
// submission never invalidates the verification verdict.
type Submitter interface {
	Submit(ctx context.Context, payload core.AttestationPayload) (SubmissionResult, error)
}
