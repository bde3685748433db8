package handlers

import (
	"net/http"

	"lunchly-backend/internal/config"
	"lunchly-backend/internal/discovery"
	"lunchly-backend/internal/geo"
	"lunchly-backend/internal/middleware"
	"lunchly-backend/internal/models"
	"lunchly-backend/internal/places"
	"lunchly-backend/internal/services"
)

// DiscoveryHandler serves partner and restaurant discovery
type DiscoveryHandler struct {
	discoveryService *services.DiscoveryService
	userService      *services.UserService
	placesClient     *places.Client
	placesConfig     config.PlacesConfig
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(
	discoveryService *services.DiscoveryService,
	userService *services.UserService,
	placesClient *places.Client,
	placesConfig config.PlacesConfig,
) *DiscoveryHandler {
	return &DiscoveryHandler{
		discoveryService: discoveryService,
		userService:      userService,
		placesClient:     placesClient,
		placesConfig:     placesConfig,
	}
}

// Partners handles GET /api/v1/discovery/partners
func (h *DiscoveryHandler) Partners(w http.ResponseWriter, r *http.Request) {
	filter := h.discoveryService.DefaultFilter()
	maxDistance, err := queryFloat(r, "max_distance")
	if err != nil {
		respondError(w, "max_distance must be a number", http.StatusBadRequest)
		return
	}
	if maxDistance != nil {
		filter.MaxDistanceKM = *maxDistance
	}
	if filter.MinAge, err = queryInt(r, "min_age", filter.MinAge); err != nil {
		respondError(w, "min_age must be an integer", http.StatusBadRequest)
		return
	}
	if filter.MaxAge, err = queryInt(r, "max_age", filter.MaxAge); err != nil {
		respondError(w, "max_age must be an integer", http.StatusBadRequest)
		return
	}

	viewer, err := h.userService.GetUser(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, err, "Failed to get profile")
		return
	}

	partners, err := h.discoveryService.FindPartners(r.Context(), viewer, filter)
	if err != nil {
		respondServiceError(w, err, "Failed to find partners")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"partners": partners})
}

// Restaurants handles GET /api/v1/restaurants
func (h *DiscoveryHandler) Restaurants(w http.ResponseWriter, r *http.Request) {
	lat, err := queryFloat(r, "lat")
	if err != nil || lat == nil {
		respondError(w, "lat is required", http.StatusBadRequest)
		return
	}
	lon, err := queryFloat(r, "lon")
	if err != nil || lon == nil {
		respondError(w, "lon is required", http.StatusBadRequest)
		return
	}
	origin := models.Coordinate{Lat: *lat, Lon: *lon}
	if err := geo.ValidateCoordinate(origin); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	radius, err := queryInt(r, "radius", h.placesConfig.MapRadiusMeters)
	if err != nil || radius <= 0 {
		respondError(w, "radius must be a positive integer", http.StatusBadRequest)
		return
	}
	count, err := queryInt(r, "count", discovery.InitialWindow)
	if err != nil {
		respondError(w, "count must be an integer", http.StatusBadRequest)
		return
	}

	var filter discovery.RestaurantFilter
	if filter.MinRating, err = queryFloat(r, "min_rating"); err != nil {
		respondError(w, "min_rating must be a number", http.StatusBadRequest)
		return
	}
	if filter.Diet, err = discovery.ParseDiet(r.URL.Query().Get("diet")); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	filtered := discovery.FilterRestaurants(h.placesClient.Nearby(r.Context(), origin, radius), filter)
	window := discovery.WindowFor(count)
	respondJSON(w, http.StatusOK, places.Page{
		Restaurants: discovery.Apply(window, filtered),
		Total:       len(filtered),
		HasMore:     window.HasMore(len(filtered)),
	})
}
