package services

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ReminderScheduler keeps at most one pending reminder timer per match
type ReminderScheduler struct {
	mu      sync.Mutex
	lead    time.Duration
	timers  map[string]*time.Timer
	stopped bool
	now     func() time.Time
}

// NewReminderScheduler creates a scheduler firing lead before each meeting
func NewReminderScheduler(lead time.Duration) *ReminderScheduler {
	return &ReminderScheduler{
		lead:   lead,
		timers: make(map[string]*time.Timer),
		now:    time.Now,
	}
}

// Lead returns how long before the meeting reminders fire
func (s *ReminderScheduler) Lead() time.Duration {
	return s.lead
}

// Schedule arms fire for lead before meeting, replacing an earlier reminder
// for the same match. Returns false when the reminder time already passed.
func (s *ReminderScheduler) Schedule(matchID string, meeting time.Time, fire func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.timers[matchID]; ok {
		old.Stop()
		delete(s.timers, matchID)
	}
	if s.stopped {
		return false
	}

	delay := meeting.Add(-s.lead).Sub(s.now())
	if delay <= 0 {
		log.Debug().Str("match_id", matchID).Msg("Reminder time already passed, skipped")
		return false
	}

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		s.mu.Lock()
		current, ok := s.timers[matchID]
		if !ok || current != t {
			s.mu.Unlock()
			return
		}
		delete(s.timers, matchID)
		s.mu.Unlock()

		fire()
	})
	s.timers[matchID] = t

	log.Info().Str("match_id", matchID).Time("meeting_time", meeting).Msg("Reminder scheduled")
	return true
}

// Cancel drops the pending reminder of a match, reporting whether one existed
func (s *ReminderScheduler) Cancel(matchID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.timers[matchID]
	if !ok {
		return false
	}
	t.Stop()
	delete(s.timers, matchID)
	return true
}

// Pending returns the number of armed reminders
func (s *ReminderScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels every reminder; later Schedule calls are ignored
func (s *ReminderScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.stopped = true
}
