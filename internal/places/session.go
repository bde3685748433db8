package places

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lunchly-backend/internal/discovery"
	"lunchly-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// Page is the visible slice of a session's candidate list
type Page struct {
	Restaurants []models.Restaurant `json:"restaurants"`
	Total       int                 `json:"total"`
	HasMore     bool                `json:"has_more"`
}

// Session holds the restaurant discovery state of one screen visit.
// Every provider call runs under the session context, so nothing is
// applied once Close has been called.
type Session struct {
	client *Client
	cache  *MemoryDetailsCache
	auto   *Autocompleter

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	origin      models.Coordinate
	candidates  []models.Restaurant
	filter      discovery.RestaurantFilter
	window      *discovery.Window
	suggestions []models.Suggestion
	allow       func() bool
}

// NewSession creates a session bound to parent. onSuggestions receives the
// suggestions of the latest query; it may be nil.
func NewSession(parent context.Context, client *Client, debounce time.Duration, onSuggestions DeliverFunc) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		client: client,
		cache:  NewMemoryDetailsCache(),
		ctx:    ctx,
		cancel: cancel,
		window: discovery.NewWindow(),
	}
	s.auto = NewAutocompleter(ctx, debounce, s.suggest, func(query string, list []models.Suggestion) {
		s.mu.Lock()
		s.suggestions = list
		s.mu.Unlock()
		if onSuggestions != nil {
			onSuggestions(query, list)
		}
	})
	return s
}

// Throttle bounds the provider calls autocomplete issues. Keystrokes are never
// refused; a dispatch that allow rejects yields no suggestions.
func (s *Session) Throttle(allow func() bool) {
	s.mu.Lock()
	s.allow = allow
	s.mu.Unlock()
}

func (s *Session) suggest(ctx context.Context, query string) []models.Suggestion {
	s.mu.Lock()
	allow := s.allow
	s.mu.Unlock()
	if allow != nil && !allow() {
		log.Warn().Str("query", query).Msg("Autocomplete throttled")
		return nil
	}
	return s.client.Autocomplete(ctx, query)
}

// LoadNearby replaces the candidate list and resets the window
func (s *Session) LoadNearby(origin models.Coordinate, radiusMeters int) Page {
	list := s.client.Nearby(s.ctx, origin, radiusMeters)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return Page{}
	}
	s.origin = origin
	s.candidates = list
	s.window.Reset()
	return s.pageLocked()
}

// SetFilter changes the rating and diet filters and resets the window
func (s *Session) SetFilter(f discovery.RestaurantFilter) Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filter = f
	s.window.Reset()
	return s.pageLocked()
}

// Visible returns the current page
func (s *Session) Visible() Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pageLocked()
}

// ShowMore grows the window by one step
func (s *Session) ShowMore() Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	filtered := discovery.FilterRestaurants(s.candidates, s.filter)
	s.window.Grow(len(filtered))
	return s.pageLocked()
}

func (s *Session) pageLocked() Page {
	filtered := discovery.FilterRestaurants(s.candidates, s.filter)
	return Page{
		Restaurants: discovery.Apply(s.window, filtered),
		Total:       len(filtered),
		HasMore:     s.window.HasMore(len(filtered)),
	}
}

// Search feeds one keystroke state into the debounced autocomplete
func (s *Session) Search(query string) {
	s.auto.Query(query)
}

// Suggestions returns the last delivered suggestions
func (s *Session) Suggestions() []models.Suggestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suggestions
}

// Pick resolves a suggestion and splices it at the head of the candidate list,
// replacing any entry with the same id. Pending suggestions are cleared.
func (s *Session) Pick(sg models.Suggestion) (*models.Restaurant, error) {
	s.mu.Lock()
	origin := s.origin
	s.mu.Unlock()

	r, err := s.client.Resolve(s.ctx, sg, origin)
	if err != nil {
		return nil, fmt.Errorf("failed to pick suggestion: %w", err)
	}
	if err := s.ctx.Err(); err != nil {
		return nil, err
	}

	s.auto.Query("")

	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]models.Restaurant, 0, len(s.candidates)+1)
	next = append(next, *r)
	for _, c := range s.candidates {
		if c.PlaceID != r.PlaceID {
			next = append(next, c)
		}
	}
	s.candidates = next
	return r, nil
}

// Candidates returns the full unfiltered candidate list
func (s *Session) Candidates() []models.Restaurant {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Restaurant, len(s.candidates))
	copy(out, s.candidates)
	return out
}

// Details returns place details, asking the provider only once per place per session
func (s *Session) Details(placeID string) (*models.PlaceDetails, error) {
	d, err := s.client.CachedDetails(s.ctx, s.cache, placeID)
	if err != nil {
		log.Warn().Err(err).Str("place_id", placeID).Msg("Failed to get place details")
		return nil, err
	}
	return d, nil
}

// MapsLink returns the maps link for a place, using cached details when present
func (s *Session) MapsLink(placeID string) string {
	d, _ := s.cache.Get(s.ctx, placeID)
	return MapsLink(placeID, d)
}

// Close stops the autocomplete timer and cancels in-flight calls
func (s *Session) Close() {
	s.auto.Close()
	s.cancel()
}
