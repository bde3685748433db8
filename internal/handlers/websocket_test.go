package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"lunchly-backend/internal/config"
	"lunchly-backend/internal/middleware"
	"lunchly-backend/internal/models"
	"lunchly-backend/internal/places"
	"lunchly-backend/internal/realtime"
	"lunchly-backend/internal/repository"
	"lunchly-backend/internal/services"

	"github.com/gorilla/websocket"
)

type fakeAuth struct{}

func (fakeAuth) Authenticate(_ context.Context, token string) (*services.Claims, error) {
	if token != "good" {
		return nil, services.ErrUnauthorized
	}
	return &services.Claims{UserID: "u1", SessionID: "s1"}, nil
}

// chatMatches serves one accepted match between u1 and u2
type chatMatches struct{}

func (chatMatches) Create(context.Context, *models.Match) error { return nil }
func (chatMatches) GetByID(_ context.Context, id string) (*models.Match, error) {
	if id != "m1" {
		return nil, repository.ErrNotFound
	}
	return &models.Match{ID: "m1", UserA: "u1", UserB: "u2", ProposedBy: "u2", Status: models.MatchAccepted}, nil
}
func (chatMatches) Respond(context.Context, string, string, models.MatchStatus, time.Time) (*models.Match, error) {
	return nil, repository.ErrNotFound
}
func (chatMatches) DeletePending(context.Context, string, string) error { return repository.ErrNotFound }
func (chatMatches) SetFeedback(context.Context, string, string, *models.Feedback, time.Time) (*models.Match, error) {
	return nil, repository.ErrNotFound
}
func (chatMatches) ListReceived(context.Context, string) ([]*models.Match, error) { return nil, nil }
func (chatMatches) ListSent(context.Context, string) ([]*models.Match, error)     { return nil, nil }
func (chatMatches) ListActive(context.Context, string) ([]*models.Match, error)   { return nil, nil }

type chatMessages struct {
	mu        sync.Mutex
	msgs      []*models.Message
	createErr error
}

func (s *chatMessages) Create(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	cp := *msg
	s.msgs = append(s.msgs, &cp)
	return nil
}

func (s *chatMessages) ListByMatch(_ context.Context, matchID string) ([]*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Message
	for _, m := range s.msgs {
		if m.MatchID == matchID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

type wsReply struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id"`
	MatchID   string          `json:"match_id"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
}

type wsFixture struct {
	client  *places.Client
	cfg     config.PlacesConfig
	chat    *services.ChatService
	limiter *middleware.RateLimiter
}

func newWSServer(t *testing.T, f wsFixture) (*httptest.Server, *services.WSHub) {
	t.Helper()
	if f.client == nil {
		f.cfg = config.Default().Places
		f.cfg.APIKey = ""
		f.client = places.NewClient(f.cfg, nil)
	}
	hub := services.NewWSHub()
	h := NewWebSocketHandler(hub, fakeAuth{}, f.chat, f.client, f.cfg, f.limiter)
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWebSocket))
	t.Cleanup(srv.Close)
	return srv, hub
}

func dialWS(t *testing.T, srv *httptest.Server, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	return websocket.DefaultDialer.Dial(url, nil)
}

func readReply(t *testing.T, conn *websocket.Conn) wsReply {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var reply wsReply
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read: %v", err)
	}
	return reply
}

func TestWebSocketRejectsBadToken(t *testing.T) {
	srv, _ := newWSServer(t, wsFixture{})

	_, resp, err := dialWS(t, srv, "bad")
	if err == nil {
		t.Fatalf("dial with bad token succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unexpected response: %v", resp)
	}
}

func TestWebSocketNearbyAndShowMore(t *testing.T) {
	srv, hub := newWSServer(t, wsFixture{})
	conn, _, err := dialWS(t, srv, "good")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]interface{}{"type": "nearby", "request_id": "r1", "lat": 51.1079, "lon": 17.0385}); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply := readReply(t, conn)
	if reply.Type != services.WSTypeRestaurants || reply.RequestID != "r1" {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	var page places.Page
	if err := json.Unmarshal(reply.Data, &page); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	if page.Total != 6 || len(page.Restaurants) != 6 || page.HasMore {
		t.Fatalf("unexpected page: total %d visible %d more %v", page.Total, len(page.Restaurants), page.HasMore)
	}
	if !hub.IsOnline("u1") {
		t.Fatalf("connection not registered")
	}

	conn.WriteJSON(map[string]interface{}{"type": "nearby", "lat": 51.1079, "lon": 17.0385, "min_rating": 4.6})
	reply = readReply(t, conn)
	json.Unmarshal(reply.Data, &page)
	if page.Total != 2 {
		t.Fatalf("rating filter not applied: total %d", page.Total)
	}

	conn.WriteJSON(map[string]interface{}{"type": "show_more", "request_id": "r3"})
	reply = readReply(t, conn)
	if reply.Type != services.WSTypeRestaurants || reply.RequestID != "r3" {
		t.Fatalf("unexpected show_more reply: %+v", reply)
	}
}

func TestWebSocketErrors(t *testing.T) {
	messages := &chatMessages{createErr: errors.New("pq: connection refused")}
	chat := services.NewChatService(chatMatches{}, messages, realtime.NewLocalBroker())
	srv, _ := newWSServer(t, wsFixture{chat: chat})
	conn, _, err := dialWS(t, srv, "good")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	tests := []struct {
		name string
		msg  string
		want string
	}{
		{"malformed", `{`, "Invalid message format"},
		{"unknown type", `{"type":"dance","request_id":"x"}`, errUnknownType.Error()},
		{"nearby without position", `{"type":"nearby"}`, errCoordinatesRequired.Error()},
		{"nearby bad diet", `{"type":"nearby","lat":51.1,"lon":17.0,"diet":"paleo"}`, `invalid request: unknown diet "paleo"`},
		{"pick without suggestion", `{"type":"pick_suggestion"}`, errSuggestionRequired.Error()},
		{"details without provider", `{"type":"place_details","place_id":"p1"}`, "Places provider not configured"},
		{"unknown match", `{"type":"subscribe","match_id":"m404"}`, services.ErrNotFound.Error()},
		{"storage failure is masked", `{"type":"send_message","match_id":"m1","content":"hej"}`, "Request failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.msg)); err != nil {
				t.Fatalf("write: %v", err)
			}
			reply := readReply(t, conn)
			if reply.Type != services.WSTypeError || reply.Message != tt.want {
				t.Fatalf("unexpected reply: %+v", reply)
			}
		})
	}
}

func TestWebSocketAutocompleteSendsFinalText(t *testing.T) {
	var mu sync.Mutex
	var queries []string
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			TextQuery string `json:"textQuery"`
		}
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &body)
		mu.Lock()
		queries = append(queries, body.TextQuery)
		mu.Unlock()
		w.Write([]byte(`{"places":[{"id":"p1","displayName":{"text":"Restauracja Pod Złotym Psem"},"formattedAddress":"Rynek 41, Wrocław"}]}`))
	}))
	defer provider.Close()

	cfg := config.Default().Places
	cfg.APIKey = "key"
	cfg.BaseURL = provider.URL
	limits := config.Default().RateLimit
	limiter := middleware.NewRateLimiter(limits.PlacesPerSecond, limits.PlacesBurst)
	defer limiter.Stop()

	srv, _ := newWSServer(t, wsFixture{client: places.NewClient(cfg, provider.Client()), cfg: cfg, limiter: limiter})
	conn, _, err := dialWS(t, srv, "good")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	final := "Restauracja Pod Zlot"
	for n := len(final) - 11; n <= len(final); n++ {
		if err := conn.WriteJSON(map[string]string{"type": "autocomplete", "query": final[:n]}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	reply := readReply(t, conn)
	if reply.Type != services.WSTypeSuggestions {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	var data struct {
		Query       string              `json:"query"`
		Suggestions []models.Suggestion `json:"suggestions"`
	}
	if err := json.Unmarshal(reply.Data, &data); err != nil {
		t.Fatalf("decode suggestions: %v", err)
	}
	if data.Query != final || len(data.Suggestions) != 1 {
		t.Fatalf("unexpected suggestions: %+v", data)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(queries) != 1 || queries[0] != final {
		t.Fatalf("unexpected provider queries: got %v want [%s]", queries, final)
	}
}

func TestWebSocketSubscribeDeliversEachMessageOnce(t *testing.T) {
	ctx := context.Background()
	messages := &chatMessages{}
	messages.Create(ctx, &models.Message{ID: "stored", MatchID: "m1", SenderID: "u2", Content: "hej"})
	chat := services.NewChatService(chatMatches{}, messages, realtime.NewLocalBroker())

	srv, _ := newWSServer(t, wsFixture{chat: chat})
	conn, _, err := dialWS(t, srv, "good")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.WriteJSON(map[string]string{"type": "subscribe", "request_id": "s1", "match_id": "m1"})
	reply := readReply(t, conn)
	if reply.Type != services.WSTypeHistory || reply.MatchID != "m1" {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	var history []models.Message
	json.Unmarshal(reply.Data, &history)
	if len(history) != 1 || history[0].ID != "stored" {
		t.Fatalf("unexpected history: %+v", history)
	}

	live, err := chat.Send(ctx, "u2", "m1", "jestem na miejscu")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	reply = readReply(t, conn)
	var got models.Message
	json.Unmarshal(reply.Data, &got)
	if reply.Type != services.WSTypeMessage || got.ID != live.ID {
		t.Fatalf("unexpected live reply: %+v", reply)
	}

	// the next frame is the answer to this request, not a repeat of the live message
	conn.WriteJSON(map[string]string{"type": "dance"})
	if reply = readReply(t, conn); reply.Type != services.WSTypeError {
		t.Fatalf("live message repeated: %+v", reply)
	}
}
