package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionPrefix = "sessions:"

// SessionRepository keeps auth sessions in redis; a session outlives no token
// and is gone after sign-out or TTL expiry
type SessionRepository struct {
	client *redis.Client
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(client *redis.Client) *SessionRepository {
	return &SessionRepository{client: client}
}

func sessionKey(sid string) string {
	return sessionPrefix + sid
}

// Create stores sid for userID until ttl elapses
func (r *SessionRepository) Create(ctx context.Context, sid, userID string, ttl time.Duration) error {
	fields := map[string]interface{}{
		"user_id":    userID,
		"created_at": time.Now().Unix(),
	}
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, sessionKey(sid), fields)
	pipe.Expire(ctx, sessionKey(sid), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// UserID returns the owner of sid, or ErrNotFound once the session is gone
func (r *SessionRepository) UserID(ctx context.Context, sid string) (string, error) {
	userID, err := r.client.HGet(ctx, sessionKey(sid), "user_id").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("session not found: %w", ErrNotFound)
		}
		return "", fmt.Errorf("failed to get session: %w", err)
	}
	return userID, nil
}

// Delete removes sid; deleting a missing session is not an error
func (r *SessionRepository) Delete(ctx context.Context, sid string) error {
	if err := r.client.Del(ctx, sessionKey(sid)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
