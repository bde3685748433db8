package services

import (
	"context"
	"time"

	"lunchly-backend/internal/models"
)

// AccountStore persists login accounts
type AccountStore interface {
	Create(ctx context.Context, account *models.Account) error
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
}

// SessionStore tracks live auth sessions
type SessionStore interface {
	Create(ctx context.Context, sid, userID string, ttl time.Duration) error
	UserID(ctx context.Context, sid string) (string, error)
	Delete(ctx context.Context, sid string) error
}

// UserStore persists user profiles
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
	Update(ctx context.Context, user *models.User) error
	SetAvailability(ctx context.Context, userID string, available bool, until *time.Time, lat, lon *float64, now time.Time) (*models.User, error)
	ListAvailable(ctx context.Context, excludeID string, now time.Time) ([]*models.User, error)
	UpdateAvatar(ctx context.Context, userID, avatarURL string, now time.Time) error
	UpdatePushToken(ctx context.Context, userID string, pushToken *string) error
}

// MatchStore persists proposals. Transitions return repository.ErrNotFound
// when their actor rule matched no row.
type MatchStore interface {
	Create(ctx context.Context, m *models.Match) error
	GetByID(ctx context.Context, id string) (*models.Match, error)
	Respond(ctx context.Context, id, actorID string, status models.MatchStatus, now time.Time) (*models.Match, error)
	DeletePending(ctx context.Context, id, proposerID string) error
	SetFeedback(ctx context.Context, id, actorID string, feedback *models.Feedback, now time.Time) (*models.Match, error)
	ListReceived(ctx context.Context, userID string) ([]*models.Match, error)
	ListSent(ctx context.Context, userID string) ([]*models.Match, error)
	ListActive(ctx context.Context, userID string) ([]*models.Match, error)
}

// MessageStore persists chat messages
type MessageStore interface {
	Create(ctx context.Context, msg *models.Message) error
	ListByMatch(ctx context.Context, matchID string) ([]*models.Message, error)
}
