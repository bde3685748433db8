package services

import (
	"context"
	"encoding/json"
	"testing"

	"lunchly-backend/internal/config"
)

func TestBuildPayloadCarriesMatchID(t *testing.T) {
	p := BuildPayload(Notification{Title: "Lunch przypomnienie", Body: "Lunch z Anna za 15 minut!", MatchID: "m1"})
	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	var decoded struct {
		APS struct {
			Alert struct {
				Title string `json:"title"`
				Body  string `json:"body"`
			} `json:"alert"`
			Sound string `json:"sound"`
		} `json:"aps"`
		MatchID string `json:"match_id"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if decoded.MatchID != "m1" || decoded.APS.Alert.Title != "Lunch przypomnienie" || decoded.APS.Sound != "default" {
		t.Fatalf("unexpected payload: %s", raw)
	}
}

func TestNewNotifierWithoutKeyIsNop(t *testing.T) {
	n := NewNotifier(config.APNsConfig{})
	if _, ok := n.(NopNotifier); !ok {
		t.Fatalf("unexpected notifier: %T", n)
	}
	if err := n.Notify(context.Background(), "token", Notification{}); err != nil {
		t.Fatalf("nop notify: %v", err)
	}

	n = NewNotifier(config.APNsConfig{KeyFile: "/nonexistent/key.p8"})
	if _, ok := n.(NopNotifier); !ok {
		t.Fatalf("unreadable key should disable push, got %T", n)
	}
}
