package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lunchly-backend/internal/geo"
	"lunchly-backend/internal/models"
	"lunchly-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

const (
	minProfileAge = 18
	maxProfileAge = 99
)

var genders = map[string]bool{"male": true, "female": true, "other": true}

// UserService handles user-related business logic
type UserService struct {
	users              UserStore
	availabilityWindow time.Duration
	now                func() time.Time
}

// NewUserService creates a new user service
func NewUserService(users UserStore, availabilityWindow time.Duration) *UserService {
	if availabilityWindow <= 0 {
		availabilityWindow = time.Hour
	}
	return &UserService{
		users:              users,
		availabilityWindow: availabilityWindow,
		now:                time.Now,
	}
}

// ProfileSetupRequest is the first profile submission after sign up
type ProfileSetupRequest struct {
	Name      string   `json:"name"`
	Bio       string   `json:"bio"`
	Interests string   `json:"interests"`
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
}

// ProfileUpdateRequest replaces the editable profile fields.
// Nil coordinates keep the stored ones.
type ProfileUpdateRequest struct {
	Name          string     `json:"name"`
	Bio           string     `json:"bio"`
	Interests     string     `json:"interests"`
	Age           *int       `json:"age"`
	Gender        *string    `json:"gender"`
	Lat           *float64   `json:"lat"`
	Lon           *float64   `json:"lon"`
	AvailableFrom *time.Time `json:"available_from"`
	AvailableTo   *time.Time `json:"available_to"`
}

// ParseInterests splits a comma separated list, trimming and dropping empties
func ParseInterests(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func validateCoordinates(lat, lon *float64) error {
	if (lat == nil) != (lon == nil) {
		return fmt.Errorf("%w: lat and lon must be given together", ErrValidation)
	}
	if lat == nil {
		return nil
	}
	if err := geo.ValidateCoordinate(models.Coordinate{Lat: *lat, Lon: *lon}); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return nil
}

// SetupProfile creates the profile row for an account
func (s *UserService) SetupProfile(ctx context.Context, userID string, req ProfileSetupRequest) (*models.User, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if err := validateCoordinates(req.Lat, req.Lon); err != nil {
		return nil, err
	}

	now := s.now()
	user := &models.User{
		ID:          userID,
		Name:        name,
		Bio:         strings.TrimSpace(req.Bio),
		Interests:   ParseInterests(req.Interests),
		Lat:         req.Lat,
		Lon:         req.Lon,
		IsAvailable: false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: profile already exists", ErrValidation)
		}
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	log.Info().Str("user_id", userID).Msg("Profile created")
	return user, nil
}

// GetUser returns a profile
func (s *UserService) GetUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// UpdateProfile validates and stores profile edits
func (s *UserService) UpdateProfile(ctx context.Context, userID string, req ProfileUpdateRequest) (*models.User, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if req.Age != nil && (*req.Age < minProfileAge || *req.Age > maxProfileAge) {
		return nil, fmt.Errorf("%w: age must be between %d and %d", ErrValidation, minProfileAge, maxProfileAge)
	}
	var gender *string
	if req.Gender != nil && strings.TrimSpace(*req.Gender) != "" {
		g := strings.ToLower(strings.TrimSpace(*req.Gender))
		if !genders[g] {
			return nil, fmt.Errorf("%w: unknown gender %q", ErrValidation, g)
		}
		gender = &g
	}
	if req.AvailableFrom != nil && req.AvailableTo != nil && !req.AvailableFrom.Before(*req.AvailableTo) {
		return nil, fmt.Errorf("%w: available_from must be before available_to", ErrValidation)
	}
	if err := validateCoordinates(req.Lat, req.Lon); err != nil {
		return nil, err
	}

	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.Name = name
	user.Bio = strings.TrimSpace(req.Bio)
	user.Interests = ParseInterests(req.Interests)
	user.Age = req.Age
	user.Gender = gender
	user.AvailableFrom = req.AvailableFrom
	user.AvailableTo = req.AvailableTo
	if req.Lat != nil {
		user.Lat, user.Lon = req.Lat, req.Lon
	}
	user.UpdatedAt = s.now()

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return user, nil
}

// SetAvailability turns availability on for the configured window, refreshing
// coordinates when given, or turns it off
func (s *UserService) SetAvailability(ctx context.Context, userID string, available bool, lat, lon *float64) (*models.User, error) {
	if err := validateCoordinates(lat, lon); err != nil {
		return nil, err
	}

	now := s.now()
	var until *time.Time
	if available {
		u := now.Add(s.availabilityWindow)
		until = &u
	} else {
		lat, lon = nil, nil
	}

	user, err := s.users.SetAvailability(ctx, userID, available, until, lat, lon, now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to set availability: %w", err)
	}

	log.Info().Str("user_id", userID).Bool("available", available).Msg("Availability changed")
	return user, nil
}

// UpdatePushToken registers or clears the device token for push delivery
func (s *UserService) UpdatePushToken(ctx context.Context, userID, token string) error {
	var ptr *string
	if token = strings.TrimSpace(token); token != "" {
		ptr = &token
	}
	if err := s.users.UpdatePushToken(ctx, userID, ptr); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update push token: %w", err)
	}
	return nil
}
