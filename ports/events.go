package ports

import (
	"context"

	"github.com/layer-3/presence/core"
)

// EventPublisher notifies other instances about session progress
type EventPublisher interface {
	PublishStageChanged(ctx context.Context, sessionID, userID string, state core.State) error
	PublishCompleted(ctx context.Context, sessionID string, rec core.VerificationRecord) error
}
