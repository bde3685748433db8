// Package realtime fans chat messages out to every subscriber of a match.
// Delivery to one subscriber follows publish order.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"lunchly-backend/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const subscriberBuffer = 64

// Subscription is a live feed of messages inserted into one match
type Subscription interface {
	Messages() <-chan models.Message
	Close() error
}

// Broker publishes committed messages and subscribes to a match's channel
type Broker interface {
	Publish(ctx context.Context, msg *models.Message) error
	Subscribe(ctx context.Context, matchID string) (Subscription, error)
}

// ChannelName is the channel carrying a match's messages
func ChannelName(matchID string) string {
	return "messages:" + matchID
}

// LocalBroker delivers in process
type LocalBroker struct {
	mu   sync.Mutex
	subs map[string]map[*localSub]struct{}
}

// NewLocalBroker creates an in-process broker
func NewLocalBroker() *LocalBroker {
	return &LocalBroker{subs: make(map[string]map[*localSub]struct{})}
}

type localSub struct {
	broker  *LocalBroker
	matchID string
	ch      chan models.Message
	done    chan struct{}
	once    sync.Once
}

func (s *localSub) Messages() <-chan models.Message { return s.ch }

func (s *localSub) Close() error {
	s.once.Do(func() {
		s.broker.mu.Lock()
		defer s.broker.mu.Unlock()
		if set, ok := s.broker.subs[s.matchID]; ok {
			delete(set, s)
			if len(set) == 0 {
				delete(s.broker.subs, s.matchID)
			}
		}
		close(s.ch)
		close(s.done)
	})
	return nil
}

// Publish hands msg to every subscriber of its match. A subscriber whose
// buffer is full misses the message rather than blocking the publisher.
func (b *LocalBroker) Publish(_ context.Context, msg *models.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subs[msg.MatchID] {
		select {
		case sub.ch <- *msg:
		default:
			log.Warn().Str("match_id", msg.MatchID).Str("message_id", msg.ID).Msg("Subscriber buffer full, message dropped")
		}
	}
	return nil
}

// Subscribe registers a subscriber; it is closed when ctx ends or Close is called
func (b *LocalBroker) Subscribe(ctx context.Context, matchID string) (Subscription, error) {
	sub := &localSub{
		broker:  b,
		matchID: matchID,
		ch:      make(chan models.Message, subscriberBuffer),
		done:    make(chan struct{}),
	}

	b.mu.Lock()
	set, ok := b.subs[matchID]
	if !ok {
		set = make(map[*localSub]struct{})
		b.subs[matchID] = set
	}
	set[sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()
	return sub, nil
}

// Subscribers returns the number of live subscriptions on a match
func (b *LocalBroker) Subscribers(matchID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[matchID])
}

// RedisBroker relays messages through redis pub/sub so every server instance sees them
type RedisBroker struct {
	client *redis.Client
}

// NewRedisBroker creates a redis backed broker
func NewRedisBroker(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client}
}

// Publish sends msg to its match channel
func (b *RedisBroker) Publish(ctx context.Context, msg *models.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := b.client.Publish(ctx, ChannelName(msg.MatchID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Subscribe returns once redis has confirmed the subscription, so nothing
// published afterwards can be missed
func (b *RedisBroker) Subscribe(ctx context.Context, matchID string) (Subscription, error) {
	pubsub := b.client.Subscribe(ctx, ChannelName(matchID))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to match %s: %w", matchID, err)
	}

	sub := &redisSub{
		pubsub: pubsub,
		ch:     make(chan models.Message, subscriberBuffer),
		done:   make(chan struct{}),
	}
	go sub.run(ctx, matchID)
	return sub, nil
}

type redisSub struct {
	pubsub *redis.PubSub
	ch     chan models.Message
	done   chan struct{}
	once   sync.Once
}

func (s *redisSub) Messages() <-chan models.Message { return s.ch }

func (s *redisSub) run(ctx context.Context, matchID string) {
	defer close(s.ch)
	in := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			s.Close()
			return
		case <-s.done:
			return
		case raw, ok := <-in:
			if !ok {
				return
			}
			var msg models.Message
			if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				log.Error().Err(err).Str("match_id", matchID).Msg("Failed to decode published message")
				continue
			}
			select {
			case s.ch <- msg:
			case <-s.done:
				return
			}
		}
	}
}

func (s *redisSub) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}
