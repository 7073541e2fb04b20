// Package notify delivers change notifications for coordinated sessions.
//
// Events are triggers, not data: they tell a subscriber that one of a
// session's streams changed so it can reload from the store. Payloads never
// carry authoritative state, and delivery is best-effort; subscribers must
// pair a subscription with periodic polling to cover missed events.
package notify

import (
	"context"
	"errors"
	"time"
)

// Stream identifies which slice of session state changed.
type Stream string

const (
	// StreamSession signals a session row change (phase, turn, settings, activity).
	StreamSession Stream = "session"
	// StreamMembers signals a membership change (join, leave, ready, character).
	StreamMembers Stream = "members"
	// StreamActions signals a turn-action ledger change.
	StreamActions Stream = "actions"
)

// ErrInvalidConfig indicates the notifier factory was misconfigured.
var ErrInvalidConfig = errors.New("notify: invalid configuration")

// ErrUnknownDriver indicates an unrecognized notifier driver name.
var ErrUnknownDriver = errors.New("notify: unknown driver")

// Event is one change notification for a session stream.
type Event struct {
	Stream    Stream    `json:"stream"`
	SessionID string    `json:"session_id"`
	// Turn is the session's current turn when the event was published,
	// zero when not applicable.
	Turn int       `json:"turn,omitempty"`
	At   time.Time `json:"at"`
}

// Subscription is one subscriber's feed of events for a single session.
type Subscription interface {
	// Events returns the channel events arrive on. The channel is closed
	// when the subscription or its notifier shuts down.
	Events() <-chan Event
	// Close releases the subscription.
	Close() error
}

// Notifier publishes and delivers session change events.
type Notifier interface {
	// Publish fans the event out to the session's subscribers.
	Publish(ctx context.Context, event Event) error
	// Subscribe opens a feed of events for one session.
	Subscribe(ctx context.Context, sessionID string) (Subscription, error)
	// Close shuts the notifier down, closing open subscriptions.
	Close() error
}
