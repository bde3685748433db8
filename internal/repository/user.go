package repository

import (
	"context"
	"fmt"
	"time"

	"lunchly-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, name, bio, interests, lat, lon, is_available, available_until,
	available_from, available_to, avatar_url, age, gender, push_token, created_at, updated_at`

// UserRepository handles database operations for user profiles
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID, &user.Name, &user.Bio, &user.Interests, &user.Lat, &user.Lon,
		&user.IsAvailable, &user.AvailableUntil, &user.AvailableFrom, &user.AvailableTo,
		&user.AvatarURL, &user.Age, &user.Gender, &user.PushToken, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if user.Interests == nil {
		user.Interests = []string{}
	}
	return &user, nil
}

// Create inserts a profile; a second profile for the same account yields ErrDuplicate
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, name, bio, interests, lat, lon, is_available, available_until,
			age, gender, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := r.db.Exec(ctx, query,
		user.ID, user.Name, user.Bio, user.Interests, user.Lat, user.Lon, user.IsAvailable,
		user.AvailableUntil, user.Age, user.Gender, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("profile %s: %w", user.ID, ErrDuplicate)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("user not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByIDs retrieves several users keyed by ID; unknown IDs are absent from the map
func (r *UserRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	out := make(map[string]*models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		out[user.ID] = user
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return out, nil
}

// Update writes the editable profile fields
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET name = $2, bio = $3, interests = $4, lat = $5, lon = $6, age = $7, gender = $8,
			available_from = $9, available_to = $10, updated_at = $11
		WHERE id = $1
	`
	result, err := r.db.Exec(ctx, query,
		user.ID, user.Name, user.Bio, user.Interests, user.Lat, user.Lon, user.Age, user.Gender,
		user.AvailableFrom, user.AvailableTo, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %w", ErrNotFound)
	}
	return nil
}

// SetAvailability toggles availability. Coordinates are replaced only when both are given.
func (r *UserRepository) SetAvailability(ctx context.Context, userID string, available bool, until *time.Time, lat, lon *float64, now time.Time) (*models.User, error) {
	query := `
		UPDATE users
		SET is_available = $2,
			available_until = $3,
			lat = CASE WHEN $4::double precision IS NOT NULL AND $5::double precision IS NOT NULL THEN $4 ELSE lat END,
			lon = CASE WHEN $4::double precision IS NOT NULL AND $5::double precision IS NOT NULL THEN $5 ELSE lon END,
			updated_at = $6
		WHERE id = $1
		RETURNING ` + userColumns
	user, err := scanUser(r.db.QueryRow(ctx, query, userID, available, until, lat, lon, now))
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("user not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to set availability: %w", err)
	}
	return user, nil
}

// ListAvailable returns available users with a known location, excluding one user.
// Users whose availability expired before now are left out.
func (r *UserRepository) ListAvailable(ctx context.Context, excludeID string, now time.Time) ([]*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE is_available
			AND id <> $1
			AND lat IS NOT NULL AND lon IS NOT NULL
			AND (available_until IS NULL OR available_until > $2)
	`
	rows, err := r.db.Query(ctx, query, excludeID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list available users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// UpdateAvatar stores the public avatar URL for a user
func (r *UserRepository) UpdateAvatar(ctx context.Context, userID, avatarURL string, now time.Time) error {
	query := `UPDATE users SET avatar_url = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.Exec(ctx, query, avatarURL, now, userID)
	if err != nil {
		return fmt.Errorf("failed to update avatar: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %w", ErrNotFound)
	}
	return nil
}

// UpdatePushToken updates the push token for a user
func (r *UserRepository) UpdatePushToken(ctx context.Context, userID string, pushToken *string) error {
	query := `UPDATE users SET push_token = $1 WHERE id = $2`
	result, err := r.db.Exec(ctx, query, pushToken, userID)
	if err != nil {
		return fmt.Errorf("failed to update push token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user not found: %w", ErrNotFound)
	}
	return nil
}
