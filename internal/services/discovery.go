package services

import (
	"context"
	"fmt"
	"time"

	"lunchly-backend/internal/config"
	"lunchly-backend/internal/discovery"
	"lunchly-backend/internal/models"
)

// DiscoveryService finds lunch partners near the viewer
type DiscoveryService struct {
	users    UserStore
	defaults config.DiscoveryConfig
	now      func() time.Time
}

// NewDiscoveryService creates a new discovery service
func NewDiscoveryService(users UserStore, defaults config.DiscoveryConfig) *DiscoveryService {
	return &DiscoveryService{users: users, defaults: defaults, now: time.Now}
}

// DefaultFilter returns the configured partner bounds
func (s *DiscoveryService) DefaultFilter() discovery.PartnerFilter {
	return discovery.PartnerFilter{
		MaxDistanceKM: s.defaults.MaxDistanceKM,
		MinAge:        s.defaults.MinAge,
		MaxAge:        s.defaults.MaxAge,
	}
}

// FindPartners returns available partners around the viewer's stored coordinate.
// A viewer who is not available sees nobody.
func (s *DiscoveryService) FindPartners(ctx context.Context, viewer *models.User, f discovery.PartnerFilter) ([]discovery.Partner, error) {
	if f.MinAge > f.MaxAge {
		return nil, fmt.Errorf("%w: min_age must not exceed max_age", ErrValidation)
	}
	if f.MaxDistanceKM < 0 {
		return nil, fmt.Errorf("%w: max_distance must not be negative", ErrValidation)
	}
	if !viewer.IsAvailable {
		return []discovery.Partner{}, nil
	}
	origin, ok := viewer.Location()
	if !ok {
		return nil, fmt.Errorf("%w: location unknown, set availability with coordinates first", ErrValidation)
	}

	if s.defaults.UseFixturePartners {
		return discovery.FilterPartners(discovery.FixturePartners(s.now()), f), nil
	}

	users, err := s.users.ListAvailable(ctx, viewer.ID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to list partners: %w", err)
	}
	return discovery.FilterPartners(discovery.AnnotatePartners(origin, users), f), nil
}
