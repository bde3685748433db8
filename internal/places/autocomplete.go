package places

import (
	"context"
	"strings"
	"sync"
	"time"

	"lunchly-backend/internal/models"
)

// SuggestFunc fetches suggestions for a non-blank query
type SuggestFunc func(ctx context.Context, query string) []models.Suggestion

// DeliverFunc receives the suggestions for the latest query.
// Deliveries never overlap; Query may be called while one is running.
type DeliverFunc func(query string, suggestions []models.Suggestion)

// Autocompleter debounces keystrokes and drops stale responses.
// Every Query restarts the quiet window and issues a new sequence number;
// a response is delivered only while its sequence is still the latest.
type Autocompleter struct {
	mu      sync.Mutex
	dmu     sync.Mutex // serializes deliveries
	ctx     context.Context
	delay   time.Duration
	fetch   SuggestFunc
	deliver DeliverFunc
	timer   *time.Timer
	seq     uint64
	closed  bool
}

// NewAutocompleter creates an autocompleter whose fetches run under ctx
func NewAutocompleter(ctx context.Context, delay time.Duration, fetch SuggestFunc, deliver DeliverFunc) *Autocompleter {
	return &Autocompleter{
		ctx:     ctx,
		delay:   delay,
		fetch:   fetch,
		deliver: deliver,
	}
}

// Query schedules a lookup for q. A blank q clears suggestions at once and
// invalidates anything still pending or in flight.
func (a *Autocompleter) Query(q string) {
	q = strings.TrimSpace(q)

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.seq++
	seq := a.seq
	if q != "" {
		a.timer = time.AfterFunc(a.delay, func() { a.dispatch(seq, q) })
	}
	a.mu.Unlock()

	if q == "" {
		a.deliverIfCurrent(seq, "", nil)
	}
}

func (a *Autocompleter) dispatch(seq uint64, q string) {
	if !a.current(seq) {
		return
	}
	a.deliverIfCurrent(seq, q, a.fetch(a.ctx, q))
}

// deliverIfCurrent hands res to deliver unless a newer query was issued.
// The sequence is checked while holding dmu, so an older result can never
// land after a newer one.
func (a *Autocompleter) deliverIfCurrent(seq uint64, q string, res []models.Suggestion) {
	a.dmu.Lock()
	defer a.dmu.Unlock()
	if !a.current(seq) || a.ctx.Err() != nil {
		return
	}
	a.deliver(q, res)
}

func (a *Autocompleter) current(seq uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.closed && seq == a.seq
}

// Close stops the pending timer; in-flight responses are discarded
func (a *Autocompleter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}
