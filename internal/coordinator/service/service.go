// Package service implements the coordinator operations on top of the store.
//
// The coordinator trusts the store's conditional writes for every race-prone
// decision: it reads state only to shape inputs and explain rejections, never
// to authorize a mutation. After each committed mutation it publishes a
// change event; delivery is best-effort and failures never roll anything back.
package service

import (
	"context"
	"log"
	"time"

	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/invite"
	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/notify"
	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/storage"
	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/platform/id"
)

// Coordinator drives session lifecycle, membership, and turn synchronization.
type Coordinator struct {
	store    storage.Store
	notifier notify.Notifier

	grantVerifier *invite.VerifierConfig
	grantSigner   *invite.SignerConfig

	now   func() time.Time
	newID func() (string, error)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock injects the time source. Tests pin it for determinism.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDGenerator injects the identifier source.
func WithIDGenerator(newID func() (string, error)) Option {
	return func(c *Coordinator) {
		if newID != nil {
			c.newID = newID
		}
	}
}

// WithJoinGrantVerifier enables join-grant access to private sessions.
func WithJoinGrantVerifier(cfg invite.VerifierConfig) Option {
	return func(c *Coordinator) {
		c.grantVerifier = &cfg
	}
}

// WithJoinGrantSigner enables hosts to mint join grants for private sessions.
func WithJoinGrantSigner(cfg invite.SignerConfig) Option {
	return func(c *Coordinator) {
		c.grantSigner = &cfg
	}
}

// New builds a Coordinator over the given store and notifier.
func New(store storage.Store, notifier notify.Notifier, opts ...Option) *Coordinator {
	coordinator := &Coordinator{
		store:    store,
		notifier: notifier,
		now:      time.Now,
		newID:    id.NewID,
	}
	for _, opt := range opts {
		opt(coordinator)
	}
	return coordinator
}

// publish emits a change event for one of the session's streams. Events are
// reload triggers only, so a failed publish is logged and dropped; polling
// subscribers recover on their next refresh.
func (c *Coordinator) publish(ctx context.Context, stream notify.Stream, sessionID string, turn int) {
	if c.notifier == nil {
		return
	}
	event := notify.Event{
		Stream:    stream,
		SessionID: sessionID,
		Turn:      turn,
		At:        c.now().UTC(),
	}
	if err := c.notifier.Publish(ctx, event); err != nil {
		log.Printf("notify publish failed stream=%s session_id=%s error=%v", stream, sessionID, err)
	}
}
