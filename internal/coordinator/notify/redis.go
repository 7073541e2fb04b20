package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "tavern:session:"

// redisNotifier publishes events over Redis pub/sub so multiple coordinator
// processes can share one notification plane. Redis pub/sub is fire-and-
// forget, which matches the trigger-only delivery contract.
type redisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier builds a notifier backed by Redis pub/sub.
func NewRedisNotifier(client *redis.Client) (Notifier, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: redis client is required", ErrInvalidConfig)
	}
	return &redisNotifier{client: client}, nil
}

func channelName(sessionID string, stream Stream) string {
	return channelPrefix + sessionID + ":" + string(stream)
}

func (n *redisNotifier) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := n.client.Publish(ctx, channelName(event.SessionID, event.Stream), payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (n *redisNotifier) Subscribe(ctx context.Context, sessionID string) (Subscription, error) {
	pubsub := n.client.Subscribe(ctx,
		channelName(sessionID, StreamSession),
		channelName(sessionID, StreamMembers),
		channelName(sessionID, StreamActions),
	)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe session %s: %w", sessionID, err)
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		events: make(chan Event, subscriptionBuffer),
	}
	go sub.forward()
	return sub, nil
}

func (n *redisNotifier) Close() error {
	return n.client.Close()
}

type redisSubscription struct {
	pubsub *redis.PubSub
	events chan Event
}

func (s *redisSubscription) Events() <-chan Event {
	return s.events
}

func (s *redisSubscription) Close() error {
	return s.pubsub.Close()
}

// forward decodes pub/sub messages into events. Undecodable payloads are
// dropped; the subscriber's polling covers the gap.
func (s *redisSubscription) forward() {
	defer close(s.events)
	for message := range s.pubsub.Channel() {
		var event Event
		if err := json.Unmarshal([]byte(message.Payload), &event); err != nil {
			continue
		}
		select {
		case s.events <- event:
		default:
		}
	}
}
