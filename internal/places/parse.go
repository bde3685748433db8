package places

import (
	"bytes"
	"encoding/json"
	"strings"

	"lunchly-backend/internal/geo"
	"lunchly-backend/internal/models"
)

const (
	defaultName       = "Brak nazwy"
	defaultAddress    = "Brak adresu"
	defaultSuggestion = "Miejsce"
	customCategory    = "custom"
)

// apiPlace is the loose provider shape; only this file reads it
type apiPlace struct {
	ID          string `json:"id"`
	DisplayName *struct {
		Text string `json:"text"`
	} `json:"displayName"`
	FormattedAddress string `json:"formattedAddress"`
	Location         *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
	Rating          *float64        `json:"rating"`
	UserRatingCount int             `json:"userRatingCount"`
	PriceLevel      json.RawMessage `json:"priceLevel"`
	Types           []string        `json:"types"`
	Photos          []struct {
		Name string `json:"name"`
	} `json:"photos"`
	RegularOpeningHours      json.RawMessage `json:"regularOpeningHours"`
	GoogleMapsURI            string          `json:"googleMapsUri"`
	InternationalPhoneNumber string          `json:"internationalPhoneNumber"`
	WebsiteURI               string          `json:"websiteUri"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type searchResponse struct {
	Places []apiPlace `json:"places"`
	Error  *apiError  `json:"error"`
}

type detailsResponse struct {
	apiPlace
	Error *apiError `json:"error"`
}

var priceLevels = map[string]int{
	"PRICE_LEVEL_FREE":           0,
	"PRICE_LEVEL_INEXPENSIVE":    1,
	"PRICE_LEVEL_MODERATE":       2,
	"PRICE_LEVEL_EXPENSIVE":      3,
	"PRICE_LEVEL_VERY_EXPENSIVE": 4,
}

// parsePriceLevel accepts the enum name or a bare number; anything else is unknown
func parsePriceLevel(raw json.RawMessage) *int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n < 0 || n > 4 {
			return nil
		}
		tier := int(n)
		return &tier
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if tier, ok := priceLevels[s]; ok {
			return &tier
		}
	}
	return nil
}

func openingHours(raw json.RawMessage) json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	return raw
}

// detectCategory prefers cafe, then bar, then restaurant, then the first type
func detectCategory(types []string) string {
	for _, want := range []string{"cafe", "bar", "restaurant"} {
		for _, t := range types {
			if t == want {
				return want
			}
		}
	}
	if len(types) > 0 && types[0] != "" {
		return types[0]
	}
	return "restaurant"
}

func (p *apiPlace) name(fallback string) string {
	if p.DisplayName != nil && strings.TrimSpace(p.DisplayName.Text) != "" {
		return p.DisplayName.Text
	}
	return fallback
}

func (p *apiPlace) address(fallback string) string {
	if strings.TrimSpace(p.FormattedAddress) != "" {
		return p.FormattedAddress
	}
	return fallback
}

func (p *apiPlace) photoReference() *string {
	if len(p.Photos) == 0 || p.Photos[0].Name == "" {
		return nil
	}
	ref := p.Photos[0].Name
	return &ref
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// toRestaurant normalizes one provider place. Places without an id are rejected.
// A place without a location is kept at distance zero.
func toRestaurant(p apiPlace, origin models.Coordinate) (models.Restaurant, bool) {
	if p.ID == "" {
		return models.Restaurant{}, false
	}

	r := models.Restaurant{
		PlaceID:          p.ID,
		Name:             p.name(defaultName),
		Address:          p.address(defaultAddress),
		Rating:           p.Rating,
		PriceLevel:       parsePriceLevel(p.PriceLevel),
		CuisineType:      detectCategory(p.Types),
		PhotoReference:   p.photoReference(),
		UserRatingsTotal: p.UserRatingCount,
		OpeningHours:     openingHours(p.RegularOpeningHours),
	}
	if p.Location != nil {
		r.Lat = p.Location.Latitude
		r.Lon = p.Location.Longitude
		r.Distance = geo.RoundKM(geo.DistanceKM(origin, models.Coordinate{Lat: r.Lat, Lon: r.Lon}))
	}
	return r, true
}

// toResolved normalizes a text search hit picked from a suggestion
func toResolved(p apiPlace, s models.Suggestion, origin models.Coordinate) (models.Restaurant, bool) {
	r, ok := toRestaurant(p, origin)
	if !ok {
		return r, false
	}
	r.Name = p.name(s.Primary)
	r.Address = p.address(s.Secondary)
	r.CuisineType = customCategory
	r.PhotoReference = nil
	r.OpeningHours = nil
	return r, true
}

func toDetails(p apiPlace) *models.PlaceDetails {
	return &models.PlaceDetails{
		ID:               p.ID,
		Name:             p.name(defaultName),
		Address:          p.address(defaultAddress),
		GoogleMapsURI:    optional(p.GoogleMapsURI),
		Phone:            optional(p.InternationalPhoneNumber),
		Website:          optional(p.WebsiteURI),
		Rating:           p.Rating,
		UserRatingsTotal: p.UserRatingCount,
		PriceLevel:       parsePriceLevel(p.PriceLevel),
		OpeningHours:     openingHours(p.RegularOpeningHours),
		PhotoReference:   p.photoReference(),
	}
}

func toSuggestion(p apiPlace) (models.Suggestion, bool) {
	if p.ID == "" {
		return models.Suggestion{}, false
	}
	return models.Suggestion{
		ID:        p.ID,
		Primary:   p.name(defaultSuggestion),
		Secondary: p.FormattedAddress,
		QueryText: p.name(""),
	}, true
}
