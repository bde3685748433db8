package handlers

import (
	"net/http"

	"lunchly-backend/internal/middleware"
	"lunchly-backend/internal/services"
)

// AuthHandler handles sign up, sign in and sign out
type AuthHandler struct {
	authService *services.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// CredentialsRequest is the body of sign up and sign in
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp handles POST /api/v1/auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.authService.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		respondServiceError(w, err, "Failed to sign up")
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

// SignIn handles POST /api/v1/auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req CredentialsRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.authService.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		respondServiceError(w, err, "Failed to sign in")
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// SignOut handles POST /api/v1/auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.SignOut(r.Context(), middleware.GetSessionID(r.Context())); err != nil {
		respondServiceError(w, err, "Failed to sign out")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
