// Package reconciler keeps one client's view of a session converged with the
// store.
//
// The reconciler never patches state from notifications: events only trigger
// a reload, and a periodic full refresh covers missed events. Local writes
// are layered on top as an optimistic overlay that either confirms against a
// later snapshot or expires into a failed marker the UI can surface.
package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/notify"
	"github.com/Gaeto95/tavernoftaleslive-sub000/internal/coordinator/storage"
)

const (
	// DefaultRefreshInterval is the periodic full-refresh cadence.
	DefaultRefreshInterval = 30 * time.Second
	// DefaultPendingExpiry bounds how long an optimistic write stays pending
	// before it is marked failed.
	DefaultPendingExpiry = 5 * time.Second
	// DefaultMaxReconnectAttempts caps automatic reconnection before the
	// reconciler goes terminal and waits for Reconnect.
	DefaultMaxReconnectAttempts = 5
)

// ConnState describes the reconciler's link to the store.
type ConnState int

const (
	// ConnUnspecified represents an invalid connection state.
	ConnUnspecified ConnState = iota
	// ConnOnline means snapshots are loading normally.
	ConnOnline
	// ConnReconnecting means loads are failing and retries are in flight.
	ConnReconnecting
	// ConnFailed means the retry budget is exhausted; only Reconnect resumes.
	ConnFailed
)

// String returns a readable connection state name.
func (s ConnState) String() string {
	switch s {
	case ConnOnline:
		return "online"
	case ConnReconnecting:
		return "reconnecting"
	case ConnFailed:
		return "failed"
	default:
		return "unspecified"
	}
}

// FieldStatus tags one mutable field's optimistic overlay.
type FieldStatus int

const (
	// FieldConfirmed means the shown value matches the store.
	FieldConfirmed FieldStatus = iota
	// FieldPending means a local write awaits confirmation.
	FieldPending
	// FieldFailed means the pending write expired unconfirmed.
	FieldFailed
)

// String returns a readable field status name.
func (s FieldStatus) String() string {
	switch s {
	case FieldPending:
		return "pending"
	case FieldFailed:
		return "failed"
	default:
		return "confirmed"
	}
}

// ReadyOverlay is the optimistic overlay for the client's ready flag.
type ReadyOverlay struct {
	Status FieldStatus
	Value  bool
	Since  time.Time
}

// ActionOverlay is the optimistic overlay for the client's submitted action.
type ActionOverlay struct {
	Status FieldStatus
	Text   string
	Since  time.Time
}

// View is one consistent read of the reconciled state.
type View struct {
	Snapshot storage.Snapshot
	Conn     ConnState
	// Attempts counts reconnection attempts since the link last broke.
	Attempts int
	LastSync time.Time
	Ready    ReadyOverlay
	Action   ActionOverlay
}

// Reconciler converges one (session, user) client view with the store.
type Reconciler struct {
	sessionID string
	userID    string
	loader    storage.SnapshotStore
	notifier  notify.Notifier

	refreshInterval time.Duration
	pendingExpiry   time.Duration
	maxAttempts     int
	retryInitial    time.Duration
	now             func() time.Time

	mu   sync.Mutex
	view View

	reconnect chan struct{}
	cancel    context.CancelFunc
	done      chan struct{}
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithRefreshInterval overrides the periodic full-refresh cadence.
func WithRefreshInterval(interval time.Duration) Option {
	return func(r *Reconciler) {
		if interval > 0 {
			r.refreshInterval = interval
		}
	}
}

// WithPendingExpiry overrides how long optimistic writes stay pending.
func WithPendingExpiry(expiry time.Duration) Option {
	return func(r *Reconciler) {
		if expiry > 0 {
			r.pendingExpiry = expiry
		}
	}
}

// WithMaxReconnectAttempts overrides the reconnection budget.
func WithMaxReconnectAttempts(attempts int) Option {
	return func(r *Reconciler) {
		if attempts > 0 {
			r.maxAttempts = attempts
		}
	}
}

// WithRetryInitialInterval overrides the first reconnection delay.
func WithRetryInitialInterval(interval time.Duration) Option {
	return func(r *Reconciler) {
		if interval > 0 {
			r.retryInitial = interval
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// New builds a reconciler for one user's view of one session.
func New(sessionID, userID string, loader storage.SnapshotStore, notifier notify.Notifier, opts ...Option) *Reconciler {
	r := &Reconciler{
		sessionID:       sessionID,
		userID:          userID,
		loader:          loader,
		notifier:        notifier,
		refreshInterval: DefaultRefreshInterval,
		pendingExpiry:   DefaultPendingExpiry,
		maxAttempts:     DefaultMaxReconnectAttempts,
		retryInitial:    500 * time.Millisecond,
		now:             time.Now,
		reconnect:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start loads the baseline snapshot, subscribes for change events, and runs
// the reconciliation loop until ctx is cancelled or Close is called.
func (r *Reconciler) Start(ctx context.Context) error {
	if err := r.reload(ctx); err != nil {
		return fmt.Errorf("baseline snapshot: %w", err)
	}

	sub, err := r.notifier.Subscribe(ctx, r.sessionID)
	if err != nil {
		return fmt.Errorf("subscribe session %s: %w", r.sessionID, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.run(runCtx, sub)
	return nil
}

// Close stops the reconciliation loop.
func (r *Reconciler) Close() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
}

// View returns the current reconciled view. Pending overlays that outlived
// the expiry window are marked failed at read time.
func (r *Reconciler) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expireOverlaysLocked(r.now().UTC())
	return r.view
}

// StageReady records an optimistic ready-flag write awaiting confirmation.
func (r *Reconciler) StageReady(value bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view.Ready = ReadyOverlay{Status: FieldPending, Value: value, Since: r.now().UTC()}
}

// StageAction records an optimistic action submission awaiting confirmation.
func (r *Reconciler) StageAction(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.view.Action = ActionOverlay{Status: FieldPending, Text: text, Since: r.now().UTC()}
}

// Reconnect requests an immediate refresh regardless of the automatic
// schedule: online it reloads right away, during reconnection it skips the
// remaining backoff wait, and after the retry budget was exhausted it
// restarts the retry sequence.
func (r *Reconciler) Reconnect() {
	select {
	case r.reconnect <- struct{}{}:
	default:
	}
}

func (r *Reconciler) run(ctx context.Context, sub notify.Subscription) {
	defer close(r.done)
	defer sub.Close()

	events := sub.Events()
	ticker := time.NewTicker(r.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.reconnect:
			if !r.reloadOrRetry(ctx) {
				return
			}
		case _, open := <-events:
			if !open {
				// The notification plane went away; polling still converges.
				events = nil
				continue
			}
			if !r.reloadOrRetry(ctx) {
				return
			}
		case <-ticker.C:
			if r.connState() == ConnFailed {
				continue
			}
			if !r.reloadOrRetry(ctx) {
				return
			}
		}
	}
}

// reloadOrRetry reloads, falling into the reconnection loop on failure.
// It reports false only when ctx is done.
func (r *Reconciler) reloadOrRetry(ctx context.Context) bool {
	if err := r.reload(ctx); err == nil {
		return true
	}
	if ctx.Err() != nil {
		return false
	}
	r.retryUntilOnline(ctx)
	return ctx.Err() == nil
}

// retryUntilOnline runs exponential-backoff reloads until one succeeds or
// the attempt budget runs out, surfacing the attempt count as it goes.
func (r *Reconciler) retryUntilOnline(ctx context.Context) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.retryInitial

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		r.setConn(ConnReconnecting, attempt)

		wait := policy.NextBackOff()
		select {
		case <-ctx.Done():
			return
		case <-r.reconnect:
			// Manual reconnect skips the rest of the wait.
		case <-time.After(wait):
		}

		if err := r.reload(ctx); err == nil {
			return
		}
		if ctx.Err() != nil {
			return
		}
	}
	r.setConn(ConnFailed, r.maxAttempts)
}

// reload pulls a fresh snapshot and resolves the optimistic overlays
// against it.
func (r *Reconciler) reload(ctx context.Context) error {
	snap, err := r.loader.Snapshot(ctx, r.sessionID)
	if err != nil {
		return err
	}

	now := r.now().UTC()
	r.mu.Lock()
	defer r.mu.Unlock()

	r.view.Snapshot = snap
	r.view.Conn = ConnOnline
	r.view.Attempts = 0
	r.view.LastSync = now
	r.resolveOverlaysLocked(snap, now)
	return nil
}

// resolveOverlaysLocked confirms pending overlays the snapshot now agrees
// with and refreshes confirmed overlays from server state.
func (r *Reconciler) resolveOverlaysLocked(snap storage.Snapshot, now time.Time) {
	serverReady, serverAction, hasAction := r.serverState(snap)

	switch r.view.Ready.Status {
	case FieldPending:
		if serverReady == r.view.Ready.Value {
			r.view.Ready = ReadyOverlay{Status: FieldConfirmed, Value: serverReady}
		}
	case FieldFailed:
		// Leave the failure visible until the caller stages a new write.
	default:
		r.view.Ready = ReadyOverlay{Status: FieldConfirmed, Value: serverReady}
	}

	switch r.view.Action.Status {
	case FieldPending:
		if hasAction && serverAction == r.view.Action.Text {
			r.view.Action = ActionOverlay{Status: FieldConfirmed, Text: serverAction}
		}
	case FieldFailed:
	default:
		r.view.Action = ActionOverlay{Status: FieldConfirmed, Text: serverAction}
	}

	r.expireOverlaysLocked(now)
}

// expireOverlaysLocked fails pending overlays older than the expiry window.
func (r *Reconciler) expireOverlaysLocked(now time.Time) {
	if r.view.Ready.Status == FieldPending && now.Sub(r.view.Ready.Since) > r.pendingExpiry {
		r.view.Ready.Status = FieldFailed
	}
	if r.view.Action.Status == FieldPending && now.Sub(r.view.Action.Since) > r.pendingExpiry {
		r.view.Action.Status = FieldFailed
	}
}

// serverState extracts this user's authoritative ready flag and current-turn
// action text from a snapshot.
func (r *Reconciler) serverState(snap storage.Snapshot) (ready bool, actionText string, hasAction bool) {
	for _, member := range snap.Members {
		if member.UserID == r.userID {
			ready = member.Ready
			break
		}
	}
	for _, action := range snap.Actions {
		if action.UserID == r.userID {
			actionText = action.ActionText
			hasAction = true
			break
		}
	}
	return ready, actionText, hasAction
}

func (r *Reconciler) connState() ConnState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.view.Conn
}

func (r *Reconciler) setConn(state ConnState, attempts int) {
	r.mu.Lock()
	r.view.Conn = state
	r.view.Attempts = attempts
	r.mu.Unlock()
}
