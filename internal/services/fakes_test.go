package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"lunchly-backend/internal/models"
	"lunchly-backend/internal/repository"
)

type memAccounts struct {
	mu      sync.Mutex
	byEmail map[string]*models.Account
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byEmail: make(map[string]*models.Account)}
}

func (s *memAccounts) Create(_ context.Context, a *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[a.Email]; ok {
		return fmt.Errorf("email %s: %w", a.Email, repository.ErrDuplicate)
	}
	cp := *a
	s.byEmail[a.Email] = &cp
	return nil
}

func (s *memAccounts) GetByEmail(_ context.Context, email string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemUsers(users ...*models.User) *memUsers {
	s := &memUsers{users: make(map[string]*models.User)}
	for _, u := range users {
		cp := *u
		s.users[u.ID] = &cp
	}
	return s
}

func (s *memUsers) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return repository.ErrDuplicate
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memUsers) GetByIDs(_ context.Context, ids []string) (map[string]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*models.User)
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			cp := *u
			out[id] = &cp
		}
	}
	return out, nil
}

func (s *memUsers) Update(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}

func (s *memUsers) SetAvailability(_ context.Context, userID string, available bool, until *time.Time, lat, lon *float64, now time.Time) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u.IsAvailable = available
	u.AvailableUntil = until
	if lat != nil && lon != nil {
		u.Lat, u.Lon = lat, lon
	}
	u.UpdatedAt = now
	cp := *u
	return &cp, nil
}

func (s *memUsers) ListAvailable(_ context.Context, excludeID string, now time.Time) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.User
	for _, u := range s.users {
		if !u.IsAvailable || u.ID == excludeID || u.Lat == nil || u.Lon == nil {
			continue
		}
		if u.AvailableUntil != nil && !u.AvailableUntil.After(now) {
			continue
		}
		cp := *u
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memUsers) UpdateAvatar(_ context.Context, userID, url string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.AvatarURL = &url
	u.UpdatedAt = now
	return nil
}

func (s *memUsers) UpdatePushToken(_ context.Context, userID string, token *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.PushToken = token
	return nil
}

// memMatches applies the same row guards as the SQL repository
type memMatches struct {
	mu      sync.Mutex
	matches map[string]*models.Match
	writes  int
}

func newMemMatches() *memMatches {
	return &memMatches{matches: make(map[string]*models.Match)}
}

func (s *memMatches) put(m *models.Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.matches[m.ID] = &cp
}

func (s *memMatches) Create(_ context.Context, m *models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	cp := *m
	s.matches[m.ID] = &cp
	return nil
}

func (s *memMatches) GetByID(_ context.Context, id string) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *memMatches) Respond(_ context.Context, id, actorID string, status models.MatchStatus, now time.Time) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	m, ok := s.matches[id]
	if !ok || m.Status != models.MatchPending || m.ProposedBy == actorID || !m.HasParticipant(actorID) {
		return nil, repository.ErrNotFound
	}
	m.Status = status
	m.UpdatedAt = now
	cp := *m
	return &cp, nil
}

func (s *memMatches) DeletePending(_ context.Context, id, proposerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	m, ok := s.matches[id]
	if !ok || m.Status != models.MatchPending || m.ProposedBy != proposerID {
		return repository.ErrNotFound
	}
	delete(s.matches, id)
	return nil
}

func (s *memMatches) SetFeedback(_ context.Context, id, actorID string, f *models.Feedback, now time.Time) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	m, ok := s.matches[id]
	if !ok || !m.HasParticipant(actorID) || (m.Status != models.MatchAccepted && m.Status != models.MatchCompleted) {
		return nil, repository.ErrNotFound
	}
	fb := *f
	if m.UserA == actorID {
		m.FeedbackA = &fb
	} else {
		m.FeedbackB = &fb
	}
	m.Status = models.MatchCompleted
	m.UpdatedAt = now
	cp := *m
	return &cp, nil
}

func (s *memMatches) filter(keep func(*models.Match) bool, less func(a, b *models.Match) bool) []*models.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Match
	for _, m := range s.matches {
		if keep(m) {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func (s *memMatches) ListReceived(_ context.Context, userID string) ([]*models.Match, error) {
	return s.filter(func(m *models.Match) bool {
		return m.Status == models.MatchPending && m.ProposedBy != userID && m.HasParticipant(userID)
	}, func(a, b *models.Match) bool { return a.CreatedAt.After(b.CreatedAt) }), nil
}

func (s *memMatches) ListSent(_ context.Context, userID string) ([]*models.Match, error) {
	return s.filter(func(m *models.Match) bool {
		return m.Status == models.MatchPending && m.ProposedBy == userID
	}, func(a, b *models.Match) bool { return a.CreatedAt.After(b.CreatedAt) }), nil
}

func (s *memMatches) ListActive(_ context.Context, userID string) ([]*models.Match, error) {
	return s.filter(func(m *models.Match) bool {
		return (m.Status == models.MatchPending || m.Status == models.MatchAccepted) && m.HasParticipant(userID)
	}, func(a, b *models.Match) bool { return a.UpdatedAt.After(b.UpdatedAt) }), nil
}

func (s *memMatches) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

type memMessages struct {
	mu   sync.Mutex
	msgs []*models.Message
	err  error
}

func (s *memMessages) Create(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	cp := *msg
	s.msgs = append(s.msgs, &cp)
	return nil
}

func (s *memMessages) ListByMatch(_ context.Context, matchID string) ([]*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Message
	for _, m := range s.msgs {
		if m.MatchID == matchID {
			cp := *m
			out = append(out, &cp)
		}
	}
	return out, nil
}

type recordedEvent struct {
	event   string
	matchID string
}

type recordEvents struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordEvents) PublishMatchEvent(event string, m *models.Match) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{event: event, matchID: m.ID})
}

func (r *recordEvents) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.event)
	}
	return out
}

type sentPush struct {
	token string
	n     Notification
}

type recordNotifier struct {
	mu   sync.Mutex
	sent []sentPush
}

func (r *recordNotifier) Notify(_ context.Context, token string, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentPush{token: token, n: n})
	return nil
}

func (r *recordNotifier) snapshot() []sentPush {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentPush(nil), r.sent...)
}

func strPtr(s string) *string { return &s }

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }

func testUser(id, name string) *models.User {
	return &models.User{ID: id, Name: name, Interests: []string{}}
}
