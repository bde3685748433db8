package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lunchly-backend/internal/models"
	"lunchly-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Action is something a viewer may do with a match
type Action string

const (
	ActionAccept   Action = "accept"
	ActionDecline  Action = "decline"
	ActionCancel   Action = "cancel"
	ActionFeedback Action = "feedback"
	ActionChat     Action = "chat"
)

// Match events pushed to participants after a committed transition
const (
	EventMatchCreated   = "match_created"
	EventMatchAccepted  = "match_accepted"
	EventMatchDeclined  = "match_declined"
	EventMatchCancelled = "match_cancelled"
	EventMatchCompleted = "match_completed"
)

// Mailboxes accepted by List
const (
	BoxReceived = "received"
	BoxSent     = "sent"
	BoxActive   = "active"
)

const notifyTimeout = 10 * time.Second

// AllowedActions returns what viewerID may do with m. The store repeats
// these rules, so this only spares a round trip.
func AllowedActions(viewerID string, m *models.Match) []Action {
	if m == nil || !m.HasParticipant(viewerID) {
		return nil
	}
	switch m.Status {
	case models.MatchPending:
		if m.ProposedBy == viewerID {
			return []Action{ActionCancel, ActionChat}
		}
		return []Action{ActionAccept, ActionDecline, ActionChat}
	case models.MatchAccepted, models.MatchCompleted:
		return []Action{ActionFeedback, ActionChat}
	default:
		return nil
	}
}

// Can reports whether viewerID may perform a on m
func Can(viewerID string, m *models.Match, a Action) bool {
	for _, allowed := range AllowedActions(viewerID, m) {
		if allowed == a {
			return true
		}
	}
	return false
}

// authorize maps a refused capability to the matching sentinel
func authorize(viewerID string, m *models.Match, a Action) error {
	if !m.HasParticipant(viewerID) {
		return ErrNotFound
	}
	if Can(viewerID, m, a) {
		return nil
	}
	if m.Status == models.MatchPending && a != ActionFeedback && a != ActionChat {
		return fmt.Errorf("%w: %s is not allowed for this participant", ErrForbidden, a)
	}
	return fmt.Errorf("%w: cannot %s a %s match", ErrInvalidTransition, a, m.Status)
}

// MatchEventPublisher receives committed match transitions
type MatchEventPublisher interface {
	PublishMatchEvent(event string, m *models.Match)
}

type nopEvents struct{}

func (nopEvents) PublishMatchEvent(string, *models.Match) {}

// CanonicalPair orders two user IDs into slots A and B
func CanonicalPair(x, y string) (string, string) {
	if y < x {
		return y, x
	}
	return x, y
}

// ParseMeetingTime accepts "", "now" or an RFC 3339 timestamp
func ParseMeetingTime(s string, now time.Time) (*time.Time, error) {
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return nil, nil
	case "now":
		return &now, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("%w: meeting_time must be \"now\" or RFC 3339", ErrValidation)
	}
	return &t, nil
}

// CreateProposalRequest is a new lunch invitation
type CreateProposalRequest struct {
	UserID      string             `json:"user_id"`
	Restaurant  *models.Restaurant `json:"restaurant"`
	MeetingTime string             `json:"meeting_time"`
}

// FeedbackRequest is a participant's post-lunch review
type FeedbackRequest struct {
	Rating  string `json:"rating"`
	Comment string `json:"comment"`
}

// ProposalService drives the lunch proposal lifecycle
type ProposalService struct {
	matches   MatchStore
	users     UserStore
	events    MatchEventPublisher
	notifier  Notifier
	reminders *ReminderScheduler
	now       func() time.Time
}

// NewProposalService creates a new proposal service
func NewProposalService(matches MatchStore, users UserStore, events MatchEventPublisher, notifier Notifier, reminders *ReminderScheduler) *ProposalService {
	if events == nil {
		events = nopEvents{}
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if reminders == nil {
		reminders = NewReminderScheduler(15 * time.Minute)
	}
	return &ProposalService{
		matches:   matches,
		users:     users,
		events:    events,
		notifier:  notifier,
		reminders: reminders,
		now:       time.Now,
	}
}

// Create stores a pending proposal from proposerID to req.UserID
func (s *ProposalService) Create(ctx context.Context, proposerID string, req CreateProposalRequest) (*models.Match, error) {
	otherID := strings.TrimSpace(req.UserID)
	if proposerID == "" || otherID == "" {
		return nil, fmt.Errorf("%w: both participants are required", ErrValidation)
	}
	if otherID == proposerID {
		return nil, fmt.Errorf("%w: cannot propose lunch to yourself", ErrValidation)
	}
	if req.Restaurant != nil && strings.TrimSpace(req.Restaurant.PlaceID) == "" {
		return nil, fmt.Errorf("%w: restaurant place_id is required", ErrValidation)
	}
	now := s.now()
	meeting, err := ParseMeetingTime(req.MeetingTime, now)
	if err != nil {
		return nil, err
	}

	users, err := s.users.GetByIDs(ctx, []string{proposerID, otherID})
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}
	if users[proposerID] == nil || users[otherID] == nil {
		return nil, fmt.Errorf("%w: participant profile", ErrNotFound)
	}

	userA, userB := CanonicalPair(proposerID, otherID)
	m := &models.Match{
		ID:                 uuid.New().String(),
		UserA:              userA,
		UserB:              userB,
		ProposedBy:         proposerID,
		Status:             models.MatchPending,
		SelectedRestaurant: req.Restaurant,
		MeetingTime:        meeting,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.matches.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to create proposal: %w", err)
	}

	log.Info().Str("match_id", m.ID).Str("proposed_by", proposerID).Msg("Proposal created")
	s.events.PublishMatchEvent(EventMatchCreated, m)
	s.notify(ctx, users[otherID], Notification{
		Title:   "Nowa propozycja lunchu",
		Body:    fmt.Sprintf("%s zaprasza Cię na lunch", users[proposerID].Name),
		MatchID: m.ID,
	})
	return m, nil
}

// load returns the match when viewerID participates in it
func (s *ProposalService) load(ctx context.Context, viewerID, matchID string) (*models.Match, error) {
	m, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	if !m.HasParticipant(viewerID) {
		return nil, ErrNotFound
	}
	return m, nil
}

// Get returns a match with the counterpart's profile
func (s *ProposalService) Get(ctx context.Context, viewerID, matchID string) (*models.MatchWithUser, error) {
	m, err := s.load(ctx, viewerID, matchID)
	if err != nil {
		return nil, err
	}
	out, err := s.withUsers(ctx, viewerID, []*models.Match{m})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func rejected(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: proposal changed meanwhile", ErrInvalidTransition)
	}
	return err
}

// Accept moves a pending proposal to accepted on behalf of the invitee
func (s *ProposalService) Accept(ctx context.Context, viewerID, matchID string) (*models.Match, error) {
	m, err := s.load(ctx, viewerID, matchID)
	if err != nil {
		return nil, err
	}
	if err := authorize(viewerID, m, ActionAccept); err != nil {
		return nil, err
	}

	m, err = s.matches.Respond(ctx, matchID, viewerID, models.MatchAccepted, s.now())
	if err != nil {
		return nil, rejected(err)
	}

	log.Info().Str("match_id", m.ID).Str("user_id", viewerID).Msg("Proposal accepted")
	s.events.PublishMatchEvent(EventMatchAccepted, m)
	s.notifyUser(ctx, m.ProposedBy, viewerID, m.ID, "Zaakceptowano! 🎉", "%s przyjmuje Twoją propozycję lunchu")
	if m.MeetingTime != nil {
		id := m.ID
		s.reminders.Schedule(id, *m.MeetingTime, func() { s.sendReminder(id) })
	}
	return m, nil
}

// Decline moves a pending proposal to declined; the row is kept
func (s *ProposalService) Decline(ctx context.Context, viewerID, matchID string, confirm bool) (*models.Match, error) {
	if !confirm {
		return nil, fmt.Errorf("%w: declining needs confirm=true", ErrConfirmationRequired)
	}
	m, err := s.load(ctx, viewerID, matchID)
	if err != nil {
		return nil, err
	}
	if err := authorize(viewerID, m, ActionDecline); err != nil {
		return nil, err
	}

	m, err = s.matches.Respond(ctx, matchID, viewerID, models.MatchDeclined, s.now())
	if err != nil {
		return nil, rejected(err)
	}

	log.Info().Str("match_id", m.ID).Str("user_id", viewerID).Msg("Proposal declined")
	s.reminders.Cancel(m.ID)
	s.events.PublishMatchEvent(EventMatchDeclined, m)
	s.notifyUser(ctx, m.ProposedBy, viewerID, m.ID, "Propozycja odrzucona", "%s nie może tym razem")
	return m, nil
}

// Cancel deletes a pending proposal on behalf of its proposer
func (s *ProposalService) Cancel(ctx context.Context, viewerID, matchID string, confirm bool) error {
	if !confirm {
		return fmt.Errorf("%w: cancelling needs confirm=true", ErrConfirmationRequired)
	}
	m, err := s.load(ctx, viewerID, matchID)
	if err != nil {
		return err
	}
	if err := authorize(viewerID, m, ActionCancel); err != nil {
		return err
	}

	if err := s.matches.DeletePending(ctx, matchID, viewerID); err != nil {
		return rejected(err)
	}

	log.Info().Str("match_id", m.ID).Str("user_id", viewerID).Msg("Proposal cancelled")
	s.reminders.Cancel(m.ID)
	s.events.PublishMatchEvent(EventMatchCancelled, m)
	return nil
}

// SubmitFeedback records the viewer's review and completes the match
func (s *ProposalService) SubmitFeedback(ctx context.Context, viewerID, matchID string, req FeedbackRequest) (*models.Match, error) {
	rating := models.FeedbackRating(strings.ToLower(strings.TrimSpace(req.Rating)))
	if rating != models.RatingPositive && rating != models.RatingNegative {
		return nil, fmt.Errorf("%w: rating must be positive or negative", ErrValidation)
	}
	m, err := s.load(ctx, viewerID, matchID)
	if err != nil {
		return nil, err
	}
	if err := authorize(viewerID, m, ActionFeedback); err != nil {
		return nil, err
	}

	now := s.now()
	feedback := &models.Feedback{
		Rating:    rating,
		Comment:   strings.TrimSpace(req.Comment),
		CreatedAt: now,
	}
	m, err = s.matches.SetFeedback(ctx, matchID, viewerID, feedback, now)
	if err != nil {
		return nil, rejected(err)
	}

	log.Info().Str("match_id", m.ID).Str("user_id", viewerID).Msg("Feedback saved")
	s.reminders.Cancel(m.ID)
	s.events.PublishMatchEvent(EventMatchCompleted, m)
	return m, nil
}

// List returns the viewer's proposals in box, each with the counterpart's profile
func (s *ProposalService) List(ctx context.Context, viewerID, box string) ([]*models.MatchWithUser, error) {
	var (
		matches []*models.Match
		err     error
	)
	switch box {
	case BoxReceived:
		matches, err = s.matches.ListReceived(ctx, viewerID)
	case BoxSent:
		matches, err = s.matches.ListSent(ctx, viewerID)
	case BoxActive, "":
		matches, err = s.matches.ListActive(ctx, viewerID)
	default:
		return nil, fmt.Errorf("%w: unknown box %q", ErrValidation, box)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}
	return s.withUsers(ctx, viewerID, matches)
}

func (s *ProposalService) withUsers(ctx context.Context, viewerID string, matches []*models.Match) ([]*models.MatchWithUser, error) {
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.OtherParticipant(viewerID))
	}
	users, err := s.users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}

	out := make([]*models.MatchWithUser, 0, len(matches))
	for _, m := range matches {
		out = append(out, &models.MatchWithUser{Match: m, OtherUser: users[m.OtherParticipant(viewerID)]})
	}
	return out, nil
}

// Reminders exposes the scheduler for shutdown
func (s *ProposalService) Reminders() *ReminderScheduler {
	return s.reminders
}

// Stop cancels all pending reminders
func (s *ProposalService) Stop() {
	s.reminders.Stop()
}

// notifyUser pushes to recipientID a message naming actorID
func (s *ProposalService) notifyUser(ctx context.Context, recipientID, actorID, matchID, title, bodyFormat string) {
	users, err := s.users.GetByIDs(ctx, []string{recipientID, actorID})
	if err != nil {
		log.Warn().Err(err).Str("match_id", matchID).Msg("Failed to load users for push")
		return
	}
	actorName := ""
	if actor := users[actorID]; actor != nil {
		actorName = actor.Name
	}
	s.notify(ctx, users[recipientID], Notification{
		Title:   title,
		Body:    fmt.Sprintf(bodyFormat, actorName),
		MatchID: matchID,
	})
}

func (s *ProposalService) notify(ctx context.Context, recipient *models.User, n Notification) {
	if recipient == nil || recipient.PushToken == nil || *recipient.PushToken == "" {
		return
	}
	if err := s.notifier.Notify(ctx, *recipient.PushToken, n); err != nil {
		log.Warn().Err(err).Str("user_id", recipient.ID).Str("match_id", n.MatchID).Msg("Push delivery failed")
	}
}

// sendReminder runs on the reminder timer, outside any request
func (s *ProposalService) sendReminder(matchID string) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	m, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		log.Warn().Err(err).Str("match_id", matchID).Msg("Reminder skipped, match unavailable")
		return
	}
	if m.Status != models.MatchAccepted {
		return
	}
	users, err := s.users.GetByIDs(ctx, []string{m.UserA, m.UserB})
	if err != nil {
		log.Warn().Err(err).Str("match_id", matchID).Msg("Reminder skipped, users unavailable")
		return
	}

	minutes := int(s.reminders.Lead().Minutes())
	for _, id := range []string{m.UserA, m.UserB} {
		other := users[m.OtherParticipant(id)]
		if other == nil {
			continue
		}
		s.notify(ctx, users[id], Notification{
			Title:   "Lunch przypomnienie",
			Body:    fmt.Sprintf("Lunch z %s za %d minut!", other.Name, minutes),
			MatchID: m.ID,
		})
	}
}
