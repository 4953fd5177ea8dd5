package ports

import (
	"context"

	"github.com/layer-3/presence/core"
)

// Store persists enrollments and verification records. Every session
// outcome, pass or fail, is logged for auditability.
type Store interface {
	SaveEnrollment(ctx context.Context, enr core.Enrollment) error

	// Enrollment returns core.ErrNotEnrolled when the user is unknown.
	Enrollment(ctx context.Context, userID string) (core.Enrollment, error)

	LogVerification(ctx context.Context, rec core.VerificationRecord) error

	// History lists a user's verification records, most recent first.
	History(ctx context.Context, userID string) ([]core.VerificationRecord, error)
}
