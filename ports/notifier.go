package ports

import "github.com/layer-3/presence/core"

// Notifier receives user-facing session callbacks. The UI layer is a pure
// consumer of these; the scheduler never renders anything itself.
type Notifier interface {
	StageChanged(sessionID string, state core.State)
	ChallengePrompt(sessionID, prompt string)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) StageChanged(string, core.State) {}

func (NopNotifier) ChallengePrompt(string, string) {}
