package handlers

import (
	"net/http"
	"strconv"

	"lunchly-backend/internal/middleware"
	"lunchly-backend/internal/models"
	"lunchly-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// MatchHandler handles lunch proposals and their chat
type MatchHandler struct {
	proposalService *services.ProposalService
	chatService     *services.ChatService
}

// NewMatchHandler creates a new match handler
func NewMatchHandler(proposalService *services.ProposalService, chatService *services.ChatService) *MatchHandler {
	return &MatchHandler{
		proposalService: proposalService,
		chatService:     chatService,
	}
}

// MatchResponse is a match as seen by one participant
type MatchResponse struct {
	*models.MatchWithUser
	AllowedActions []services.Action `json:"allowed_actions"`
}

func newMatchResponse(viewerID string, m *models.MatchWithUser) MatchResponse {
	actions := services.AllowedActions(viewerID, m.Match)
	if actions == nil {
		actions = []services.Action{}
	}
	return MatchResponse{MatchWithUser: m, AllowedActions: actions}
}

// Create handles POST /api/v1/matches
func (h *MatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.CreateProposalRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	m, err := h.proposalService.Create(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		respondServiceError(w, err, "Failed to create proposal")
		return
	}
	respondJSON(w, http.StatusCreated, m)
}

// List handles GET /api/v1/matches?box=received|sent|active
func (h *MatchHandler) List(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.GetUserID(r.Context())
	matches, err := h.proposalService.List(r.Context(), viewerID, r.URL.Query().Get("box"))
	if err != nil {
		respondServiceError(w, err, "Failed to list proposals")
		return
	}

	out := make([]MatchResponse, 0, len(matches))
	for _, m := range matches {
		out = append(out, newMatchResponse(viewerID, m))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"matches": out})
}

// Get handles GET /api/v1/matches/{match_id}
func (h *MatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.GetUserID(r.Context())
	m, err := h.proposalService.Get(r.Context(), viewerID, chi.URLParam(r, "match_id"))
	if err != nil {
		respondServiceError(w, err, "Failed to get proposal")
		return
	}
	respondJSON(w, http.StatusOK, newMatchResponse(viewerID, m))
}

// Accept handles POST /api/v1/matches/{match_id}/accept
func (h *MatchHandler) Accept(w http.ResponseWriter, r *http.Request) {
	m, err := h.proposalService.Accept(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "match_id"))
	if err != nil {
		respondServiceError(w, err, "Failed to accept proposal")
		return
	}
	respondJSON(w, http.StatusOK, m)
}

// ConfirmRequest carries the explicit confirmation of destructive actions
type ConfirmRequest struct {
	Confirm bool `json:"confirm"`
}

// Decline handles POST /api/v1/matches/{match_id}/decline
func (h *MatchHandler) Decline(w http.ResponseWriter, r *http.Request) {
	var req ConfirmRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			respondError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}
	if !req.Confirm {
		req.Confirm = queryBool(r, "confirm")
	}

	m, err := h.proposalService.Decline(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "match_id"), req.Confirm)
	if err != nil {
		respondServiceError(w, err, "Failed to decline proposal")
		return
	}
	respondJSON(w, http.StatusOK, m)
}

// Cancel handles DELETE /api/v1/matches/{match_id}?confirm=true
func (h *MatchHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	err := h.proposalService.Cancel(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "match_id"), queryBool(r, "confirm"))
	if err != nil {
		respondServiceError(w, err, "Failed to cancel proposal")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Feedback handles POST /api/v1/matches/{match_id}/feedback
func (h *MatchHandler) Feedback(w http.ResponseWriter, r *http.Request) {
	var req services.FeedbackRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	m, err := h.proposalService.SubmitFeedback(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "match_id"), req)
	if err != nil {
		respondServiceError(w, err, "Failed to save feedback")
		return
	}
	respondJSON(w, http.StatusOK, m)
}

// Messages handles GET /api/v1/matches/{match_id}/messages
func (h *MatchHandler) Messages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.chatService.History(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "match_id"))
	if err != nil {
		respondServiceError(w, err, "Failed to load messages")
		return
	}
	if msgs == nil {
		msgs = []*models.Message{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"messages": msgs})
}

// SendMessageRequest is a new chat line
type SendMessageRequest struct {
	Content string `json:"content"`
}

// SendMessage handles POST /api/v1/matches/{match_id}/messages
func (h *MatchHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	msg, err := h.chatService.Send(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "match_id"), req.Content)
	if err != nil {
		respondServiceError(w, err, "Failed to send message")
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

func queryBool(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}
