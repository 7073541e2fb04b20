package notify

import (
	"context"
	"sync"
)

const subscriptionBuffer = 16

// memoryNotifier is an in-process hub keyed by session id. It serves
// single-process deployments and tests.
type memoryNotifier struct {
	mu       sync.Mutex
	closed   bool
	sessions map[string]map[*memorySubscription]struct{}
}

// NewMemoryNotifier builds an in-process notifier.
func NewMemoryNotifier() Notifier {
	return &memoryNotifier{
		sessions: make(map[string]map[*memorySubscription]struct{}),
	}
}

type memorySubscription struct {
	notifier  *memoryNotifier
	sessionID string
	events    chan Event
	closeOnce sync.Once
}

func (s *memorySubscription) Events() <-chan Event {
	return s.events
}

func (s *memorySubscription) Close() error {
	s.notifier.remove(s)
	return nil
}

// Publish fans the event out without blocking: a subscriber whose buffer is
// full misses the event and catches up on its next poll.
func (n *memoryNotifier) Publish(_ context.Context, event Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}

	for sub := range n.sessions[event.SessionID] {
		select {
		case sub.events <- event:
		default:
		}
	}
	return nil
}

func (n *memoryNotifier) Subscribe(_ context.Context, sessionID string) (Subscription, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil, ErrInvalidConfig
	}

	sub := &memorySubscription{
		notifier:  n,
		sessionID: sessionID,
		events:    make(chan Event, subscriptionBuffer),
	}
	subs, ok := n.sessions[sessionID]
	if !ok {
		subs = make(map[*memorySubscription]struct{})
		n.sessions[sessionID] = subs
	}
	subs[sub] = struct{}{}
	return sub, nil
}

func (n *memoryNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true

	for _, subs := range n.sessions {
		for sub := range subs {
			sub.closeOnce.Do(func() { close(sub.events) })
		}
	}
	n.sessions = nil
	return nil
}

func (n *memoryNotifier) remove(sub *memorySubscription) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}

	subs, ok := n.sessions[sub.sessionID]
	if !ok {
		return
	}
	if _, member := subs[sub]; !member {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(n.sessions, sub.sessionID)
	}
	sub.closeOnce.Do(func() { close(sub.events) })
}
