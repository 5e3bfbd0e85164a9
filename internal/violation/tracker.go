// Package violation counts repeat offenses per group member and decides when
// an offender has crossed the mute threshold.
package violation

import (
	"sync"
	"time"

	"chat-guard/internal/crash"
	"chat-guard/internal/logger"
)

// DefaultWindow is how long a violation count lives after the first offense.
const DefaultWindow = 24 * time.Hour

// Record is a snapshot of one member's violation state.
type Record struct {
	Count     int
	CreatedAt time.Time
	ExpiresAt time.Time
}

type entry struct {
	Record
	timer Timer
}

type key struct {
	groupID string
	userID  string
}

// Tracker holds the violation counters. All methods are safe for concurrent
// use.
type Tracker struct {
	clock   Clock
	window  time.Duration
	records map[key]*entry
	stopped bool
	mu      sync.Mutex
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces the wall clock and timer scheduler.
func WithClock(c Clock) Option {
	return func(t *Tracker) { t.clock = c }
}

// WithWindow sets the decay window. Non-positive values are ignored.
func WithWindow(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.window = d
		}
	}
}

// New creates an empty tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		clock:   realClock{},
		window:  DefaultWindow,
		records: make(map[key]*entry),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Window returns the decay window.
func (t *Tracker) Window() time.Duration {
	return t.window
}

// Register records one violation for the member when triggered is true and
// reports the resulting count and whether it reached threshold. When
// triggered is false the current count is returned unchanged.
//
// The first violation schedules the decay of the record. Later violations do
// not move it.
func (t *Tracker) Register(groupID, userID string, triggered bool, threshold int) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := key{groupID: groupID, userID: userID}
	e, ok := t.records[k]
	if !triggered {
		if !ok {
			return 0, false
		}
		return e.Count, e.Count >= threshold
	}

	if !ok {
		now := t.clock.Now()
		e = &entry{Record: Record{CreatedAt: now, ExpiresAt: now.Add(t.window)}}
		t.records[k] = e
		if !t.stopped {
			e.timer = t.clock.AfterFunc(t.window, func() { t.expire(k, e) })
		}
	}
	e.Count++

	logger.Debugf("Violation registered for user %s in group %s: %d/%d", userID, groupID, e.Count, threshold)
	return e.Count, e.Count >= threshold
}

// Clear removes the member's record and cancels its decay.
func (t *Tracker) Clear(groupID, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := key{groupID: groupID, userID: userID}
	e, ok := t.records[k]
	if !ok {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(t.records, k)
}

// Get returns a snapshot of the member's record.
func (t *Tracker) Get(groupID, userID string) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.records[key{groupID: groupID, userID: userID}]
	if !ok {
		return Record{}, false
	}
	return e.Record, true
}

// Len returns the number of live records.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// Stop cancels every pending decay. Records stay readable, new records are
// no longer scheduled for decay.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	for _, e := range t.records {
		if e.timer != nil {
			e.timer.Stop()
		}
	}
	logger.Infof("Violation tracker stopped with %d live records", len(t.records))
}

func (t *Tracker) expire(k key, e *entry) {
	defer crash.RecoverWithStack("violation-decay")

	t.mu.Lock()
	defer t.mu.Unlock()

	// a cleared record may have been replaced by a newer one
	if cur, ok := t.records[k]; ok && cur == e {
		delete(t.records, k)
		logger.Debugf("Violation record for user %s in group %s expired", k.userID, k.groupID)
	}
}
