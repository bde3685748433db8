package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"lunchly-backend/internal/metrics"
	"lunchly-backend/internal/models"
	"lunchly-backend/internal/realtime"
	"lunchly-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MaxMessageLength is the longest chat message accepted, in characters
const MaxMessageLength = 500

const conversationBuffer = 64

// ChatService stores and relays messages inside a match
type ChatService struct {
	matches  MatchStore
	messages MessageStore
	broker   realtime.Broker
	now      func() time.Time
}

// NewChatService creates a new chat service
func NewChatService(matches MatchStore, messages MessageStore, broker realtime.Broker) *ChatService {
	return &ChatService{
		matches:  matches,
		messages: messages,
		broker:   broker,
		now:      time.Now,
	}
}

// ValidateContent trims content and checks its length
func ValidateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("%w: message is empty", ErrValidation)
	}
	if utf8.RuneCountInString(content) > MaxMessageLength {
		return "", fmt.Errorf("%w: message longer than %d characters", ErrValidation, MaxMessageLength)
	}
	return content, nil
}

func (s *ChatService) participantMatch(ctx context.Context, viewerID, matchID string) (*models.Match, error) {
	m, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	if !m.HasParticipant(viewerID) {
		return nil, ErrNotFound
	}
	return m, nil
}

// Send stores a message and publishes it to the match channel.
// A failed insert is returned; a failed publish is logged since the message
// is already in history.
func (s *ChatService) Send(ctx context.Context, senderID, matchID, content string) (*models.Message, error) {
	content, err := ValidateContent(content)
	if err != nil {
		return nil, err
	}
	m, err := s.participantMatch(ctx, senderID, matchID)
	if err != nil {
		return nil, err
	}
	if err := authorize(senderID, m, ActionChat); err != nil {
		return nil, err
	}

	msg := &models.Message{
		ID:        uuid.New().String(),
		MatchID:   matchID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: s.now(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	if err := s.broker.Publish(ctx, msg); err != nil {
		log.Warn().Err(err).Str("match_id", matchID).Str("message_id", msg.ID).Msg("Failed to publish message")
	} else {
		metrics.MessagesPublished.Inc()
	}
	return msg, nil
}

// History returns all messages of a match, oldest first
func (s *ChatService) History(ctx context.Context, viewerID, matchID string) ([]*models.Message, error) {
	if _, err := s.participantMatch(ctx, viewerID, matchID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByMatch(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	return msgs, nil
}

// Open enters a conversation. The subscription is taken before history is
// read so no message inserted in between is lost.
func (s *ChatService) Open(ctx context.Context, viewerID, matchID string) (*Conversation, error) {
	if _, err := s.participantMatch(ctx, viewerID, matchID); err != nil {
		return nil, err
	}

	sub, err := s.broker.Subscribe(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	history, err := s.messages.ListByMatch(ctx, matchID)
	if err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	c := &Conversation{
		MatchID: matchID,
		seen:    make(map[string]struct{}, len(history)),
		events:  make(chan models.Message, conversationBuffer),
		sub:     sub,
		done:    make(chan struct{}),
	}
	for _, msg := range history {
		c.append(*msg)
	}
	c.history = c.Messages()
	go c.run(ctx)
	return c, nil
}

// Conversation is an open chat: history followed by live messages in
// arrival order, each message once
type Conversation struct {
	MatchID string

	history []models.Message

	mu       sync.Mutex
	messages []models.Message
	seen     map[string]struct{}

	events    chan models.Message
	sub       realtime.Subscription
	done      chan struct{}
	closeOnce sync.Once
}

func (c *Conversation) append(msg models.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.seen[msg.ID]; dup {
		return false
	}
	c.seen[msg.ID] = struct{}{}
	c.messages = append(c.messages, msg)
	return true
}

func (c *Conversation) run(ctx context.Context) {
	defer close(c.events)
	in := c.sub.Messages()
	for {
		select {
		case <-ctx.Done():
			c.Close()
			return
		case <-c.done:
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			if !c.append(msg) {
				continue
			}
			select {
			case c.events <- msg:
			case <-c.done:
				return
			}
		}
	}
}

// History returns the stored messages as loaded when the conversation opened.
// Every later message arrives on Events exactly once.
func (c *Conversation) History() []models.Message {
	out := make([]models.Message, len(c.history))
	copy(out, c.history)
	return out
}

// Messages returns a snapshot of the conversation so far, live messages included
func (c *Conversation) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Events yields live messages not already in history; closed after Close
func (c *Conversation) Events() <-chan models.Message {
	return c.events
}

// Close releases the subscription; safe to call more than once
func (c *Conversation) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.sub.Close()
	})
	return err
}
