package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"lunchly-backend/internal/models"
	"lunchly-backend/internal/realtime"
)

func newChatFixture(t *testing.T, status models.MatchStatus) (*ChatService, *memMessages, *realtime.LocalBroker) {
	t.Helper()
	matches := newMemMatches()
	matches.put(&models.Match{ID: "m1", UserA: "a", UserB: "b", ProposedBy: "a", Status: status})
	messages := &memMessages{}
	broker := realtime.NewLocalBroker()
	return NewChatService(matches, messages, broker), messages, broker
}

func TestValidateContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{"trimmed", "  cześć  ", "cześć", false},
		{"empty", "   ", "", true},
		{"limit", strings.Repeat("ż", MaxMessageLength), strings.Repeat("ż", MaxMessageLength), false},
		{"too long", strings.Repeat("a", MaxMessageLength+1), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ValidateContent(tt.content)
			if (err != nil) != tt.wantErr {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q want %q", got, tt.want)
			}
		})
	}
}

func TestSendRules(t *testing.T) {
	ctx := context.Background()

	svc, messages, _ := newChatFixture(t, models.MatchAccepted)
	if _, err := svc.Send(ctx, "c", "m1", "hej"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("outsider send: got %v want %v", err, ErrNotFound)
	}
	if _, err := svc.Send(ctx, "a", "m1", " "); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty send: got %v want %v", err, ErrValidation)
	}
	msg, err := svc.Send(ctx, "a", "m1", " hej ")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Content != "hej" || msg.SenderID != "a" {
		t.Fatalf("unexpected message: %+v", msg)
	}

	messages.err = errors.New("insert failed")
	if _, err := svc.Send(ctx, "b", "m1", "hej"); err == nil {
		t.Fatalf("insert failure not surfaced")
	}

	declined, _, _ := newChatFixture(t, models.MatchDeclined)
	if _, err := declined.Send(ctx, "a", "m1", "hej"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("send on declined: got %v want %v", err, ErrInvalidTransition)
	}
}

func TestConversationHistoryThenLiveWithoutDuplicates(t *testing.T) {
	ctx := context.Background()
	svc, messages, broker := newChatFixture(t, models.MatchAccepted)

	base := time.Date(2024, 5, 6, 12, 0, 0, 0, time.UTC)
	old := &models.Message{ID: "old", MatchID: "m1", SenderID: "a", Content: "pierwsza", CreatedAt: base}
	messages.Create(ctx, old)

	conv, err := svc.Open(ctx, "b", "m1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conv.Close()

	if got := conv.Messages(); len(got) != 1 || got[0].ID != "old" {
		t.Fatalf("unexpected history: %+v", got)
	}

	// a replay of a history message must not be appended again
	broker.Publish(ctx, old)
	sent := make([]string, 0, 3)
	for _, text := range []string{"jeden", "dwa", "trzy"} {
		msg, err := svc.Send(ctx, "a", "m1", text)
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		sent = append(sent, msg.ID)
	}

	for i, id := range sent {
		select {
		case msg := <-conv.Events():
			if msg.ID != id {
				t.Fatalf("event %d out of order: got %s want %s", i, msg.ID, id)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("event %d not delivered", i)
		}
	}

	got := conv.Messages()
	if len(got) != 4 || got[0].ID != "old" || got[3].ID != sent[2] {
		t.Fatalf("unexpected conversation: %d messages", len(got))
	}
}

func TestConversationHistoryExcludesLiveMessages(t *testing.T) {
	ctx := context.Background()
	svc, messages, broker := newChatFixture(t, models.MatchAccepted)
	messages.Create(ctx, &models.Message{ID: "stored", MatchID: "m1", SenderID: "a", Content: "hej"})

	conv, err := svc.Open(ctx, "b", "m1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conv.Close()

	broker.Publish(ctx, &models.Message{ID: "live1", MatchID: "m1", SenderID: "a", Content: "jestem"})
	select {
	case msg := <-conv.Events():
		if msg.ID != "live1" {
			t.Fatalf("unexpected event: %s", msg.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("live message not delivered")
	}

	history := conv.History()
	if len(history) != 1 || history[0].ID != "stored" {
		t.Fatalf("history should hold only stored messages: %+v", history)
	}
	if got := conv.Messages(); len(got) != 2 {
		t.Fatalf("transcript should include the live message: %d", len(got))
	}
}

func TestConversationCloseReleasesSubscription(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	svc, _, broker := newChatFixture(t, models.MatchPending)

	closed, err := svc.Open(context.Background(), "a", "m1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	cancelled, err := svc.Open(ctx, "b", "m1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if n := broker.Subscribers("m1"); n != 2 {
		t.Fatalf("unexpected subscribers: got %d want 2", n)
	}

	closed.Close()
	closed.Close()
	cancel()

	for _, conv := range []*Conversation{closed, cancelled} {
		select {
		case _, ok := <-conv.Events():
			if ok {
				t.Fatalf("unexpected event after close")
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("events channel not closed")
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for broker.Subscribers("m1") != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriptions leaked: %d", broker.Subscribers("m1"))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestOpenRejectsOutsider(t *testing.T) {
	svc, _, broker := newChatFixture(t, models.MatchAccepted)
	if _, err := svc.Open(context.Background(), "c", "m1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v want %v", err, ErrNotFound)
	}
	if n := broker.Subscribers("m1"); n != 0 {
		t.Fatalf("outsider left a subscription")
	}
}
