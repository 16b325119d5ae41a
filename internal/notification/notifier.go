package notification

import "context"

// Control is one actionable button attached to a rendered message. Data is
// the tagged callback payload the front-end echoes back on a press.
type Control struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

// MessageRef is the front-end's opaque handle for a rendered message,
// retained so the engine can later edit or retract it.
type MessageRef string

// Notifier is the outbound half of the front-end collaborator. Both calls are
// best-effort from the engine's point of view: state transitions commit
// regardless of delivery, and callers log-and-swallow failures.
type Notifier interface {
	Render(ctx context.Context, userID int64, text string, controls []Control) (MessageRef, error)
	Edit(ctx context.Context, ref MessageRef, text string, controls []Control) error
}
