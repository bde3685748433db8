package handlers

import (
	"errors"
	"net/http"
	"strings"

	"lunchly-backend/internal/geo"
	"lunchly-backend/internal/models"
	"lunchly-backend/internal/places"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// PlacesHandler exposes place search, details and links
type PlacesHandler struct {
	client *places.Client
	cache  places.DetailsCache
}

// NewPlacesHandler creates a new places handler; cache may be nil
func NewPlacesHandler(client *places.Client, cache places.DetailsCache) *PlacesHandler {
	return &PlacesHandler{client: client, cache: cache}
}

func respondPlacesError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, places.ErrNotFound):
		respondError(w, "Place not found", http.StatusNotFound)
	case errors.Is(err, places.ErrNotConfigured):
		respondError(w, "Places provider not configured", http.StatusServiceUnavailable)
	default:
		log.Warn().Err(err).Msg("Places provider request failed")
		respondError(w, "Places provider unavailable", http.StatusBadGateway)
	}
}

// Autocomplete handles GET /api/v1/places/autocomplete
func (h *PlacesHandler) Autocomplete(w http.ResponseWriter, r *http.Request) {
	suggestions := h.client.Autocomplete(r.Context(), r.URL.Query().Get("q"))
	if suggestions == nil {
		suggestions = []models.Suggestion{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"suggestions": suggestions})
}

// ResolveRequest turns a suggestion into a full candidate near a position
type ResolveRequest struct {
	Suggestion models.Suggestion `json:"suggestion"`
	Lat        float64           `json:"lat"`
	Lon        float64           `json:"lon"`
}

// Resolve handles POST /api/v1/places/resolve
func (h *PlacesHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	origin := models.Coordinate{Lat: req.Lat, Lon: req.Lon}
	if err := geo.ValidateCoordinate(origin); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	restaurant, err := h.client.Resolve(r.Context(), req.Suggestion, origin)
	if err != nil {
		respondPlacesError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, restaurant)
}

// Details handles GET /api/v1/places/{place_id}
func (h *PlacesHandler) Details(w http.ResponseWriter, r *http.Request) {
	details, err := h.client.CachedDetails(r.Context(), h.cache, chi.URLParam(r, "place_id"))
	if err != nil {
		respondPlacesError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, details)
}

// Link handles GET /api/v1/places/{place_id}/link.
// Cached details supply the maps URI when present; the provider is not called.
func (h *PlacesHandler) Link(w http.ResponseWriter, r *http.Request) {
	placeID := chi.URLParam(r, "place_id")
	var details *models.PlaceDetails
	if h.cache != nil {
		details, _ = h.cache.Get(r.Context(), placeID)
	}
	respondJSON(w, http.StatusOK, map[string]string{"url": places.MapsLink(placeID, details)})
}

// Photo handles GET /api/v1/places/photo by redirecting to the media URL
func (h *PlacesHandler) Photo(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimSpace(r.URL.Query().Get("ref"))
	maxWidth, err := queryInt(r, "max_width", 0)
	if err != nil || maxWidth < 0 {
		respondError(w, "max_width must be a positive integer", http.StatusBadRequest)
		return
	}
	http.Redirect(w, r, h.client.PhotoURL(ref, maxWidth), http.StatusFound)
}
