package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"lunchly-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const matchColumns = `id, user_a, user_b, proposed_by, status, selected_restaurant, meeting_time,
	feedback_a, feedback_b, created_at, updated_at`

// MatchRepository handles database operations for lunch proposals.
// Every transition repeats its actor rule in the WHERE clause, so a rejected
// transition affects no rows and surfaces as ErrNotFound.
type MatchRepository struct {
	db *pgxpool.Pool
}

// NewMatchRepository creates a new match repository
func NewMatchRepository(db *pgxpool.Pool) *MatchRepository {
	return &MatchRepository{db: db}
}

func scanMatch(row pgx.Row) (*models.Match, error) {
	var m models.Match
	var status string
	var restaurant, feedbackA, feedbackB []byte
	err := row.Scan(
		&m.ID, &m.UserA, &m.UserB, &m.ProposedBy, &status, &restaurant, &m.MeetingTime,
		&feedbackA, &feedbackB, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.Status = models.MatchStatus(status)

	if err := decodeJSON(restaurant, &m.SelectedRestaurant); err != nil {
		return nil, fmt.Errorf("failed to decode selected restaurant: %w", err)
	}
	if err := decodeJSON(feedbackA, &m.FeedbackA); err != nil {
		return nil, fmt.Errorf("failed to decode feedback_a: %w", err)
	}
	if err := decodeJSON(feedbackB, &m.FeedbackB); err != nil {
		return nil, fmt.Errorf("failed to decode feedback_b: %w", err)
	}
	return &m, nil
}

func decodeJSON[T any](data []byte, dst **T) error {
	if len(data) == 0 {
		*dst = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*dst = &v
	return nil
}

func encodeJSON[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// Create inserts a pending proposal
func (r *MatchRepository) Create(ctx context.Context, m *models.Match) error {
	restaurant, err := encodeJSON(m.SelectedRestaurant)
	if err != nil {
		return fmt.Errorf("failed to encode selected restaurant: %w", err)
	}

	query := `
		INSERT INTO matches (id, user_a, user_b, proposed_by, status, selected_restaurant,
			meeting_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.db.Exec(ctx, query,
		m.ID, m.UserA, m.UserB, m.ProposedBy, string(m.Status), restaurant,
		m.MeetingTime, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create match: %w", err)
	}
	return nil
}

// GetByID retrieves a match by ID
func (r *MatchRepository) GetByID(ctx context.Context, id string) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	m, err := scanMatch(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("match not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return m, nil
}

// Respond moves a pending match to status on behalf of the non-proposing participant
func (r *MatchRepository) Respond(ctx context.Context, id, actorID string, status models.MatchStatus, now time.Time) (*models.Match, error) {
	query := `
		UPDATE matches
		SET status = $3, updated_at = $4
		WHERE id = $1
			AND status = 'pending'
			AND proposed_by <> $2
			AND (user_a = $2 OR user_b = $2)
		RETURNING ` + matchColumns
	m, err := scanMatch(r.db.QueryRow(ctx, query, id, actorID, string(status), now))
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("match %s not pending for responder: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update match status: %w", err)
	}
	return m, nil
}

// DeletePending removes a pending match on behalf of its proposer
func (r *MatchRepository) DeletePending(ctx context.Context, id, proposerID string) error {
	query := `DELETE FROM matches WHERE id = $1 AND status = 'pending' AND proposed_by = $2`
	result, err := r.db.Exec(ctx, query, id, proposerID)
	if err != nil {
		return fmt.Errorf("failed to delete match: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("match %s not pending for proposer: %w", id, ErrNotFound)
	}
	return nil
}

// SetFeedback writes the actor's feedback slot and marks the match completed
func (r *MatchRepository) SetFeedback(ctx context.Context, id, actorID string, feedback *models.Feedback, now time.Time) (*models.Match, error) {
	payload, err := encodeJSON(feedback)
	if err != nil {
		return nil, fmt.Errorf("failed to encode feedback: %w", err)
	}

	query := `
		UPDATE matches
		SET feedback_a = CASE WHEN user_a = $2 THEN $3::jsonb ELSE feedback_a END,
			feedback_b = CASE WHEN user_b = $2 THEN $3::jsonb ELSE feedback_b END,
			status = 'completed',
			updated_at = $4
		WHERE id = $1
			AND status IN ('accepted', 'completed')
			AND (user_a = $2 OR user_b = $2)
		RETURNING ` + matchColumns
	m, err := scanMatch(r.db.QueryRow(ctx, query, id, actorID, payload, now))
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("match %s not open for feedback: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to set feedback: %w", err)
	}
	return m, nil
}

// ListReceived returns pending proposals awaiting userID, newest first
func (r *MatchRepository) ListReceived(ctx context.Context, userID string) ([]*models.Match, error) {
	return r.list(ctx, `
		WHERE status = 'pending' AND proposed_by <> $1 AND (user_a = $1 OR user_b = $1)
		ORDER BY created_at DESC`, userID)
}

// ListSent returns pending proposals made by userID, newest first
func (r *MatchRepository) ListSent(ctx context.Context, userID string) ([]*models.Match, error) {
	return r.list(ctx, `
		WHERE status = 'pending' AND proposed_by = $1
		ORDER BY created_at DESC`, userID)
}

// ListActive returns pending and accepted matches of userID, most recently updated first
func (r *MatchRepository) ListActive(ctx context.Context, userID string) ([]*models.Match, error) {
	return r.list(ctx, `
		WHERE status IN ('pending', 'accepted') AND (user_a = $1 OR user_b = $1)
		ORDER BY updated_at DESC`, userID)
}

func (r *MatchRepository) list(ctx context.Context, where string, args ...any) ([]*models.Match, error) {
	rows, err := r.db.Query(ctx, `SELECT `+matchColumns+` FROM matches `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	var matches []*models.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate matches: %w", err)
	}
	return matches, nil
}
