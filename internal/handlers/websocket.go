package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"lunchly-backend/internal/config"
	"lunchly-backend/internal/discovery"
	"lunchly-backend/internal/geo"
	"lunchly-backend/internal/middleware"
	"lunchly-backend/internal/models"
	"lunchly-backend/internal/places"
	"lunchly-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // mobile clients send no Origin
	},
}

// Client to server message types
const (
	wsSubscribe      = "subscribe"
	wsUnsubscribe    = "unsubscribe"
	wsSendMessage    = "send_message"
	wsNearby         = "nearby"
	wsShowMore       = "show_more"
	wsAutocomplete   = "autocomplete"
	wsPickSuggestion = "pick_suggestion"
	wsPlaceDetails   = "place_details"
)

// wsRequest is a client to server WebSocket message
type wsRequest struct {
	Type       string             `json:"type"`
	RequestID  string             `json:"request_id,omitempty"`
	MatchID    string             `json:"match_id,omitempty"`
	Content    string             `json:"content,omitempty"`
	Lat        *float64           `json:"lat,omitempty"`
	Lon        *float64           `json:"lon,omitempty"`
	Radius     int                `json:"radius,omitempty"`
	MinRating  *float64           `json:"min_rating,omitempty"`
	Diet       string             `json:"diet,omitempty"`
	Query      string             `json:"query"`
	Suggestion *models.Suggestion `json:"suggestion,omitempty"`
	PlaceID    string             `json:"place_id,omitempty"`
}

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub          *services.WSHub
	auth         middleware.Authenticator
	chatService  *services.ChatService
	placesClient *places.Client
	placesConfig config.PlacesConfig
	limiter      *middleware.RateLimiter
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	hub *services.WSHub,
	auth middleware.Authenticator,
	chatService *services.ChatService,
	placesClient *places.Client,
	placesConfig config.PlacesConfig,
	limiter *middleware.RateLimiter,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:          hub,
		auth:         auth,
		chatService:  chatService,
		placesClient: placesClient,
		placesConfig: placesConfig,
		limiter:      limiter,
	}
}

// wsConnection is the state owned by one socket; it dies with the socket
type wsConnection struct {
	h             *WebSocketHandler
	userID        string
	client        *services.WSClient
	session       *places.Session
	conversations map[string]*services.Conversation
}

// HandleWebSocket handles GET /ws?token=
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	claims, err := h.auth.Authenticate(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}
	userID := claims.UserID

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := services.NewWSClient(userID, conn)
	h.hub.Register(client)
	defer h.hub.Unregister(client)

	c := &wsConnection{
		h:             h,
		userID:        userID,
		client:        client,
		conversations: make(map[string]*services.Conversation),
	}
	c.session = places.NewSession(ctx, h.placesClient, h.placesConfig.AutocompleteDebounce, func(query string, list []models.Suggestion) {
		if list == nil {
			list = []models.Suggestion{}
		}
		c.send(services.WSMessage{
			Type: services.WSTypeSuggestions,
			Data: map[string]interface{}{"query": query, "suggestions": list},
		})
	})
	if h.limiter != nil {
		c.session.Throttle(func() bool { return h.limiter.Allow(userID) })
	}
	defer c.close()

	log.Info().Str("user_id", userID).Msg("WebSocket connection established")

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("user_id", userID).Msg("WebSocket error")
			}
			break
		}

		var req wsRequest
		if err := json.Unmarshal(messageBytes, &req); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to parse WebSocket message")
			c.sendError("", "Invalid message format")
			continue
		}

		if err := c.handle(ctx, req); err != nil {
			log.Debug().Err(err).Str("user_id", userID).Str("type", req.Type).Msg("WebSocket request failed")
			c.sendError(req.RequestID, clientMessage(err))
		}
	}
}

func (c *wsConnection) close() {
	for id, conv := range c.conversations {
		conv.Close()
		delete(c.conversations, id)
	}
	c.session.Close()
	log.Info().Str("user_id", c.userID).Msg("WebSocket connection closed")
}

func (c *wsConnection) send(msg services.WSMessage) {
	if err := c.client.Send(msg); err != nil {
		log.Warn().Err(err).Str("user_id", c.userID).Str("type", msg.Type).Msg("Failed to write WebSocket message")
	}
}

func (c *wsConnection) sendError(requestID, message string) {
	c.send(services.WSMessage{Type: services.WSTypeError, RequestID: requestID, Message: message})
}

// handle processes one incoming message
func (c *wsConnection) handle(ctx context.Context, req wsRequest) error {
	switch req.Type {
	case wsSubscribe:
		return c.subscribe(ctx, req)
	case wsUnsubscribe:
		if conv, ok := c.conversations[req.MatchID]; ok {
			conv.Close()
			delete(c.conversations, req.MatchID)
		}
		return nil
	case wsSendMessage:
		_, err := c.h.chatService.Send(ctx, c.userID, req.MatchID, req.Content)
		return err
	case wsNearby:
		return c.nearby(req)
	case wsShowMore:
		c.sendPage(req.RequestID, c.session.ShowMore())
		return nil
	case wsAutocomplete:
		c.session.Search(req.Query)
		return nil
	case wsPickSuggestion:
		return c.pick(req)
	case wsPlaceDetails:
		return c.details(req)
	default:
		return errUnknownType
	}
}

// clientMessage is the error text a socket client may see. Unexpected
// failures are logged and replaced so storage internals do not leak.
func clientMessage(err error) string {
	switch {
	case errors.Is(err, errUnknownType), errors.Is(err, errInvalidRequest),
		errors.Is(err, errCoordinatesRequired), errors.Is(err, errSuggestionRequired):
		return err.Error()
	case errors.Is(err, places.ErrNotFound):
		return "Place not found"
	case errors.Is(err, places.ErrNotConfigured):
		return "Places provider not configured"
	}
	if statusFor(err) == http.StatusInternalServerError {
		log.Error().Err(err).Msg("WebSocket request failed")
		return "Request failed"
	}
	return err.Error()
}

func (c *wsConnection) subscribe(ctx context.Context, req wsRequest) error {
	if _, ok := c.conversations[req.MatchID]; ok {
		return nil
	}
	conv, err := c.h.chatService.Open(ctx, c.userID, req.MatchID)
	if err != nil {
		return err
	}
	c.conversations[req.MatchID] = conv

	c.send(services.WSMessage{
		Type:      services.WSTypeHistory,
		RequestID: req.RequestID,
		MatchID:   req.MatchID,
		Data:      conv.History(),
	})
	go func() {
		for msg := range conv.Events() {
			c.send(services.WSMessage{Type: services.WSTypeMessage, MatchID: msg.MatchID, Data: msg})
		}
	}()
	return nil
}

func (c *wsConnection) nearby(req wsRequest) error {
	if req.Lat == nil || req.Lon == nil {
		return errCoordinatesRequired
	}
	origin := models.Coordinate{Lat: *req.Lat, Lon: *req.Lon}
	if err := geo.ValidateCoordinate(origin); err != nil {
		return fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	diet, err := discovery.ParseDiet(req.Diet)
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidRequest, err)
	}
	radius := req.Radius
	if radius <= 0 {
		radius = c.h.placesConfig.ProposalRadiusMeters
	}

	c.session.LoadNearby(origin, radius)
	c.sendPage(req.RequestID, c.session.SetFilter(discovery.RestaurantFilter{MinRating: req.MinRating, Diet: diet}))
	return nil
}

func (c *wsConnection) sendPage(requestID string, page places.Page) {
	if page.Restaurants == nil {
		page.Restaurants = []models.Restaurant{}
	}
	c.send(services.WSMessage{Type: services.WSTypeRestaurants, RequestID: requestID, Data: page})
}

func (c *wsConnection) pick(req wsRequest) error {
	if req.Suggestion == nil {
		return errSuggestionRequired
	}
	restaurant, err := c.session.Pick(*req.Suggestion)
	if err != nil {
		return err
	}
	c.send(services.WSMessage{
		Type:      services.WSTypeRestaurantPicked,
		RequestID: req.RequestID,
		Data: map[string]interface{}{
			"restaurant": restaurant,
			"page":       c.session.Visible(),
		},
	})
	return nil
}

func (c *wsConnection) details(req wsRequest) error {
	d, err := c.session.Details(req.PlaceID)
	if err != nil {
		return err
	}
	c.send(services.WSMessage{
		Type:      services.WSTypePlaceDetails,
		RequestID: req.RequestID,
		Data: map[string]interface{}{
			"details":   d,
			"maps_link": c.session.MapsLink(req.PlaceID),
			"photo_url": c.h.placesClient.PhotoURL(derefString(d.PhotoReference), 0),
		},
	})
	return nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
