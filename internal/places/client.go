// Package places talks to the places provider and owns the per-connection
// restaurant discovery state built on top of it.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"lunchly-backend/internal/config"
	"lunchly-backend/internal/metrics"
	"lunchly-backend/internal/models"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNotConfigured is returned when no provider key is set
	ErrNotConfigured = errors.New("places provider not configured")
	// ErrNotFound is returned when the provider has no matching place
	ErrNotFound = errors.New("place not found")
)

// Categories searched by Nearby, in result order
var Categories = []string{"restaurant", "cafe", "bar"}

const (
	nearbyFieldMask = "places.id,places.displayName,places.formattedAddress,places.location," +
		"places.rating,places.userRatingCount,places.priceLevel,places.types,places.photos," +
		"places.regularOpeningHours"
	suggestFieldMask = "places.id,places.displayName,places.formattedAddress,places.location"
	resolveFieldMask = "places.id,places.displayName,places.formattedAddress,places.location," +
		"places.rating,places.userRatingCount,places.priceLevel"
	detailsFieldMask = "id,displayName,formattedAddress,googleMapsUri,internationalPhoneNumber," +
		"websiteUri,rating,userRatingCount,priceLevel,regularOpeningHours,photos"

	mapsSearchURL    = "https://www.google.com/maps/search/?api=1"
	placeholderPhoto = "https://via.placeholder.com/%dx300/1e293b/94a3b8?text=No+Image"
)

// Client is a places provider client
type Client struct {
	httpClient          *http.Client
	baseURL             string
	apiKey              string
	regionCode          string
	maxResults          int
	autocompleteResults int
	photoMaxWidth       int
}

// NewClient creates a new places client. A nil httpClient gets one with the configured timeout.
func NewClient(cfg config.PlacesConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 20
	}
	if cfg.AutocompleteResults <= 0 {
		cfg.AutocompleteResults = 5
	}
	if cfg.PhotoMaxWidth <= 0 {
		cfg.PhotoMaxWidth = 400
	}
	return &Client{
		httpClient:          httpClient,
		baseURL:             strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:              cfg.APIKey,
		regionCode:          cfg.RegionCode,
		maxResults:          cfg.MaxResults,
		autocompleteResults: cfg.AutocompleteResults,
		photoMaxWidth:       cfg.PhotoMaxWidth,
	}
}

// Configured reports whether a provider key is set
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type circle struct {
	Center struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"center"`
	Radius float64 `json:"radius"`
}

type nearbyRequest struct {
	IncludedTypes       []string `json:"includedTypes"`
	MaxResultCount      int      `json:"maxResultCount"`
	LocationRestriction struct {
		Circle circle `json:"circle"`
	} `json:"locationRestriction"`
}

type textRequest struct {
	TextQuery      string `json:"textQuery"`
	RegionCode     string `json:"regionCode,omitempty"`
	MaxResultCount int    `json:"maxResultCount"`
}

// Nearby returns eateries around origin, nearest first, capped at the configured maximum.
// It never fails: a missing key, a transport or decode failure, or an empty
// result yields the fixture list.
func (c *Client) Nearby(ctx context.Context, origin models.Coordinate, radiusMeters int) []models.Restaurant {
	if !c.Configured() {
		log.Warn().Msg("Places API key not configured, using fixture restaurants")
		metrics.ObservePlaces("nearby", metrics.OutcomeFallback)
		return FixtureRestaurants(origin)
	}

	perCategory := make([][]apiPlace, len(Categories))
	g, gctx := errgroup.WithContext(ctx)
	for i, category := range Categories {
		i, category := i, category
		g.Go(func() error {
			found, err := c.searchNearby(gctx, category, origin, radiusMeters)
			if err != nil {
				return fmt.Errorf("failed to search %s: %w", category, err)
			}
			perCategory[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn().Err(err).Msg("Nearby search failed, using fixture restaurants")
		metrics.ObservePlaces("nearby", metrics.OutcomeError)
		return FixtureRestaurants(origin)
	}

	var all []apiPlace
	for _, found := range perCategory {
		all = append(all, found...)
	}
	if len(all) == 0 {
		log.Info().Msg("No places found, using fixture restaurants")
		metrics.ObservePlaces("nearby", metrics.OutcomeFallback)
		return FixtureRestaurants(origin)
	}

	seen := make(map[string]struct{}, len(all))
	out := make([]models.Restaurant, 0, len(all))
	for _, p := range all {
		if _, dup := seen[p.ID]; dup {
			continue
		}
		r, ok := toRestaurant(p, origin)
		if !ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Distance < out[j].Distance
	})
	if len(out) > c.maxResults {
		out = out[:c.maxResults]
	}

	metrics.ObservePlaces("nearby", metrics.OutcomeOK)
	return out
}

// searchNearby queries one category. Provider-reported errors are logged and
// yield nothing; only transport and decode failures are returned.
func (c *Client) searchNearby(ctx context.Context, category string, origin models.Coordinate, radiusMeters int) ([]apiPlace, error) {
	var body nearbyRequest
	body.IncludedTypes = []string{category}
	body.MaxResultCount = c.maxResults
	body.LocationRestriction.Circle.Center.Latitude = origin.Lat
	body.LocationRestriction.Circle.Center.Longitude = origin.Lon
	body.LocationRestriction.Circle.Radius = float64(radiusMeters)

	var resp searchResponse
	status, err := c.do(ctx, http.MethodPost, "/v1/places:searchNearby", nearbyFieldMask, body, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil || status < 200 || status > 299 {
		evt := log.Warn().Str("category", category).Int("status", status)
		if resp.Error != nil {
			evt = evt.Str("provider_error", resp.Error.Message)
		}
		evt.Msg("Places provider rejected nearby search")
		return nil, nil
	}
	if len(resp.Places) == 0 {
		log.Debug().Str("category", category).Msg("No places found for category")
	}
	return resp.Places, nil
}

// Autocomplete returns a few textual suggestions for query.
// A blank query, a missing key, or any failure yields no suggestions.
func (c *Client) Autocomplete(ctx context.Context, query string) []models.Suggestion {
	query = strings.TrimSpace(query)
	if query == "" || !c.Configured() {
		return nil
	}

	var resp searchResponse
	status, err := c.do(ctx, http.MethodPost, "/v1/places:searchText", suggestFieldMask, textRequest{
		TextQuery:      query,
		RegionCode:     c.regionCode,
		MaxResultCount: c.autocompleteResults,
	}, &resp)
	if err != nil || resp.Error != nil || status < 200 || status > 299 {
		log.Warn().Err(err).Str("query", query).Int("status", status).Msg("Autocomplete failed")
		metrics.ObservePlaces("autocomplete", metrics.OutcomeError)
		return nil
	}

	out := make([]models.Suggestion, 0, len(resp.Places))
	for _, p := range resp.Places {
		if s, ok := toSuggestion(p); ok {
			out = append(out, s)
		}
	}
	metrics.ObservePlaces("autocomplete", metrics.OutcomeOK)
	return out
}

// Resolve fetches the full candidate behind a suggestion, annotated with distance from origin
func (c *Client) Resolve(ctx context.Context, s models.Suggestion, origin models.Coordinate) (*models.Restaurant, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	query := strings.TrimSpace(s.Primary)
	if query == "" {
		query = strings.TrimSpace(s.QueryText)
	}
	if query == "" {
		return nil, fmt.Errorf("%w: empty suggestion", ErrNotFound)
	}

	var resp searchResponse
	status, err := c.do(ctx, http.MethodPost, "/v1/places:searchText", resolveFieldMask, textRequest{
		TextQuery:      query,
		RegionCode:     c.regionCode,
		MaxResultCount: 1,
	}, &resp)
	if err != nil {
		metrics.ObservePlaces("resolve", metrics.OutcomeError)
		return nil, fmt.Errorf("failed to resolve suggestion: %w", err)
	}
	if resp.Error != nil || status < 200 || status > 299 {
		metrics.ObservePlaces("resolve", metrics.OutcomeError)
		return nil, fmt.Errorf("failed to resolve suggestion: provider status %d", status)
	}
	if len(resp.Places) == 0 {
		metrics.ObservePlaces("resolve", metrics.OutcomeOK)
		return nil, ErrNotFound
	}

	r, ok := toResolved(resp.Places[0], s, origin)
	if !ok {
		return nil, ErrNotFound
	}
	metrics.ObservePlaces("resolve", metrics.OutcomeOK)
	return &r, nil
}

// Details fetches the rich record for one place
func (c *Client) Details(ctx context.Context, placeID string) (*models.PlaceDetails, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(placeID) == "" {
		return nil, ErrNotFound
	}

	var resp detailsResponse
	status, err := c.do(ctx, http.MethodGet, "/v1/places/"+url.PathEscape(placeID), detailsFieldMask, nil, &resp)
	if err != nil {
		metrics.ObservePlaces("details", metrics.OutcomeError)
		return nil, fmt.Errorf("failed to get place details: %w", err)
	}
	if status == http.StatusNotFound {
		metrics.ObservePlaces("details", metrics.OutcomeOK)
		return nil, ErrNotFound
	}
	if resp.Error != nil || status < 200 || status > 299 {
		metrics.ObservePlaces("details", metrics.OutcomeError)
		return nil, fmt.Errorf("failed to get place details: provider status %d", status)
	}
	if resp.ID == "" {
		resp.ID = placeID
	}

	metrics.ObservePlaces("details", metrics.OutcomeOK)
	return toDetails(resp.apiPlace), nil
}

// CachedDetails consults cache before asking the provider and fills it on success
func (c *Client) CachedDetails(ctx context.Context, cache DetailsCache, placeID string) (*models.PlaceDetails, error) {
	if cache != nil {
		if d, ok := cache.Get(ctx, placeID); ok {
			return d, nil
		}
	}
	d, err := c.Details(ctx, placeID)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		cache.Set(ctx, d)
	}
	return d, nil
}

// PhotoURL builds the media URL for a photo reference, or a placeholder
// when the key or the reference is missing
func (c *Client) PhotoURL(ref string, maxWidth int) string {
	if maxWidth <= 0 {
		maxWidth = c.photoMaxWidth
	}
	if !c.Configured() || ref == "" {
		return fmt.Sprintf(placeholderPhoto, maxWidth)
	}
	q := url.Values{}
	q.Set("maxWidthPx", strconv.Itoa(maxWidth))
	q.Set("key", c.apiKey)
	return c.baseURL + "/v1/" + ref + "/media?" + q.Encode()
}

// MapsLink returns an externally openable link for a place.
// A known maps URI from details wins over the canonical search-by-id link.
func MapsLink(placeID string, details *models.PlaceDetails) string {
	if details != nil && details.GoogleMapsURI != nil && *details.GoogleMapsURI != "" {
		return *details.GoogleMapsURI
	}
	return mapsSearchURL + "&query_place_id=" + url.QueryEscape(placeID)
}

// CoordinatesLink returns a maps link centred on a coordinate
func CoordinatesLink(lat, lon float64) string {
	return mapsSearchURL + "&query=" + strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lon, 'f', -1, 64)
}

// do sends one provider request and decodes the JSON body into out.
// A body that is not JSON is a decode failure regardless of status.
func (c *Client) do(ctx context.Context, method, path, fieldMask string, body any, out any) (int, error) {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	var req *http.Request
	var err error
	if reader != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func (c *Client) timeout() time.Duration {
	if c.httpClient.Timeout > 0 {
		return c.httpClient.Timeout
	}
	return 10 * time.Second
}
