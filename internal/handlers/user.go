package handlers

import (
	"io"
	"net/http"

	"lunchly-backend/internal/middleware"
	"lunchly-backend/internal/services"
)

// UserHandler handles profile, availability and device requests
type UserHandler struct {
	userService   *services.UserService
	avatarService *services.AvatarService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService, avatarService *services.AvatarService) *UserHandler {
	return &UserHandler{
		userService:   userService,
		avatarService: avatarService,
	}
}

// Me handles GET /api/v1/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.GetUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, err, "Failed to get profile")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// SetupProfile handles POST /api/v1/me/profile
func (h *UserHandler) SetupProfile(w http.ResponseWriter, r *http.Request) {
	var req services.ProfileSetupRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.userService.SetupProfile(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		respondServiceError(w, err, "Failed to create profile")
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

// UpdateProfile handles PATCH /api/v1/me
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req services.ProfileUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		respondServiceError(w, err, "Failed to update profile")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// AvailabilityRequest toggles availability, optionally with a fresh position
type AvailabilityRequest struct {
	Available bool     `json:"available"`
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
}

// SetAvailability handles POST /api/v1/me/availability
func (h *UserHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	var req AvailabilityRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.userService.SetAvailability(r.Context(), middleware.GetUserID(r.Context()), req.Available, req.Lat, req.Lon)
	if err != nil {
		respondServiceError(w, err, "Failed to set availability")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// UploadAvatar handles POST /api/v1/me/avatar; the body is the image itself
func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, services.MaxAvatarBytes+1))
	if err != nil {
		respondError(w, "Failed to read image", http.StatusBadRequest)
		return
	}

	url, err := h.avatarService.Upload(r.Context(), middleware.GetUserID(r.Context()), r.Header.Get("Content-Type"), data)
	if err != nil {
		respondServiceError(w, err, "Failed to upload avatar")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"avatar_url": url})
}

// PushTokenRequest registers a device for push notifications
type PushTokenRequest struct {
	PushToken string `json:"push_token"`
}

// UpdatePushToken handles PUT /api/v1/me/push-token
func (h *UserHandler) UpdatePushToken(w http.ResponseWriter, r *http.Request) {
	var req PushTokenRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.userService.UpdatePushToken(r.Context(), middleware.GetUserID(r.Context()), req.PushToken); err != nil {
		respondServiceError(w, err, "Failed to update push token")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
