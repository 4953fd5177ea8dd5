// Package events publishes session progress over Watermill so other
// instances and downstream consumers can observe verification outcomes.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/layer-3/presence/core"
	"github.com/layer-3/presence/ports"
)

const (
	TopicStageChanged = "presence.stage"
	TopicCompleted    = "presence.completed"
)

// StageChangedEvent announces a session state transition.
type StageChangedEvent struct {
	SessionID string     `json:"session_id"`
	UserID    string     `json:"user_id"`
	State     core.State `json:"state"`
	At        time.Time  `json:"at"`
}

// CompletedEvent announces a terminal session outcome.
type CompletedEvent struct {
	SessionID     string    `json:"session_id"`
	UserID        string    `json:"user_id"`
	FaceLiveness  bool      `json:"face_liveness"`
	VoiceMatch    bool      `json:"voice_match"`
	LipSync       bool      `json:"lip_sync"`
	OverallResult bool      `json:"overall_result"`
	At            time.Time `json:"at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishStageChanged publishes a session state transition.
func (p *WatermillPublisher) PublishStageChanged(_ context.Context, sessionID, userID string, state core.State) error {
	return p.publish(TopicStageChanged, StageChangedEvent{
		SessionID: sessionID,
		UserID:    userID,
		State:     state,
		At:        time.Now(),
	})
}

// PublishCompleted publishes a terminal session outcome.
func (p *WatermillPublisher) PublishCompleted(_ context.Context, sessionID string, rec core.VerificationRecord) error {
	return p.publish(TopicCompleted, CompletedEvent{
		SessionID:     sessionID,
		UserID:        rec.UserID,
		FaceLiveness:  rec.FaceLiveness,
		VoiceMatch:    rec.VoiceMatch,
		LipSync:       rec.LipSync,
		OverallResult: rec.OverallResult,
		At:            rec.VerificationTime,
	})
}

func (p *WatermillPublisher) publish(topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), payload)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
