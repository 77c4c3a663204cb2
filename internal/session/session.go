// Package session aggregates a stream of per-frame gesture results into
// edge-triggered open/close counters, a rolling label history and elapsed
// time for one capture session.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/mudra/internal/gesture"
)

// EventKind names a counted transition.
type EventKind string

const (
	EventHandOpen   EventKind = "Hand Open"
	EventHandClosed EventKind = "Hand Closed"
)

// Label returns the gesture label whose entry the event marks.
func (k EventKind) Label() gesture.Label {
	if k == EventHandClosed {
		return gesture.LabelFistClosed
	}
	return gesture.LabelHandOpen
}

// Event is emitted on the frame a hand enters the open or closed state.
// Count is the counter value for Kind after this event, starting at 1.
type Event struct {
	SessionID string    `json:"session_id"`
	Kind      EventKind `json:"event"`
	Count     int       `json:"count"`
	At        time.Time `json:"at"`
}

// String renders the event as a log line, e.g. "2024-05-01 09:30:00: Hand Open".
func (e Event) String() string {
	return e.At.Format(time.DateTime) + ": " + string(e.Kind)
}

// Snapshot is what presentation code reads after each frame.
type Snapshot struct {
	SessionID     string        `json:"session_id"`
	Label         gesture.Label `json:"label"`
	FingersRaised int           `json:"fingers_raised"`
	OpenFingers   int           `json:"open_fingers"`
	OpenCount     int           `json:"open_count"`
	ClosedCount   int           `json:"closed_count"`
	Frames        int           `json:"frames"`
	StartedAt     time.Time     `json:"started_at"`
	Elapsed       time.Duration `json:"elapsed_ns"`
	ElapsedText   string        `json:"elapsed"`
	HistoryLen    int           `json:"history_len"`
}

// Option configures a Session.
type Option func(*Session)

// WithHistorySize sets the rolling history capacity.
func WithHistorySize(n int) Option {
	return func(s *Session) {
		s.history = NewHistory(n)
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithID sets the session ID instead of generating one.
func WithID(id string) Option {
	return func(s *Session) {
		s.id = id
	}
}

// Session is the mutable aggregate for one capture session. Observe is
// called by a single pipeline goroutine; the read methods may be called
// from any goroutine.
type Session struct {
	mu          sync.RWMutex
	id          string
	now         func() time.Time
	startedAt   time.Time
	openCount   int
	closedCount int
	frames      int
	lastLabel   gesture.Label
	last        gesture.Result
	history     *History
	maxElapsed  time.Duration
}

// New starts a session. StartedAt is fixed here.
func New(opts ...Option) *Session {
	s := &Session{
		now:       time.Now,
		lastLabel: gesture.LabelNoHand,
		last:      gesture.NoHand,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	if s.history == nil {
		s.history = NewHistory(DefaultHistorySize)
	}
	s.startedAt = s.now()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// StartedAt returns the time the session was created.
func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// Observe folds one frame's result into the session. It returns the
// transition event when the frame enters Hand Open or Fist Closed from any
// other label, and nil otherwise.
func (s *Session) Observe(r gesture.Result) *Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ev *Event
	switch {
	case r.Label == gesture.LabelHandOpen && s.lastLabel != gesture.LabelHandOpen:
		s.openCount++
		ev = &Event{SessionID: s.id, Kind: EventHandOpen, Count: s.openCount, At: s.now()}
	case r.Label == gesture.LabelFistClosed && s.lastLabel != gesture.LabelFistClosed:
		s.closedCount++
		ev = &Event{SessionID: s.id, Kind: EventHandClosed, Count: s.closedCount, At: s.now()}
	}

	s.lastLabel = r.Label
	s.last = r
	s.frames++
	s.history.Add(r.Label)

	return ev
}

// OpenCount returns the number of entries into Hand Open.
func (s *Session) OpenCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.openCount
}

// ClosedCount returns the number of entries into Fist Closed.
func (s *Session) ClosedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closedCount
}

// LastLabel returns the label of the most recent frame.
func (s *Session) LastLabel() gesture.Label {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastLabel
}

// Elapsed returns the time since StartedAt. Successive calls never go
// backwards, even if the clock does.
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsedLocked()
}

func (s *Session) elapsedLocked() time.Duration {
	d := s.now().Sub(s.startedAt)
	if d > s.maxElapsed {
		s.maxElapsed = d
	}
	return s.maxElapsed
}

// History returns a copy of the rolling label window, oldest first.
func (s *Session) History() []gesture.Label {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Labels()
}

// HistoryCounts tallies the labels in the rolling window.
func (s *Session) HistoryCounts() map[gesture.Label]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Counts()
}

// HistoryCap returns the rolling window capacity.
func (s *Session) HistoryCap() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.Cap()
}

// Snapshot returns the current presentation values.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	elapsed := s.elapsedLocked()
	return Snapshot{
		SessionID:     s.id,
		Label:         s.last.Label,
		FingersRaised: s.last.FingersRaised,
		OpenFingers:   s.last.OpenFingers,
		OpenCount:     s.openCount,
		ClosedCount:   s.closedCount,
		Frames:        s.frames,
		StartedAt:     s.startedAt,
		Elapsed:       elapsed,
		ElapsedText:   FormatElapsed(elapsed),
		HistoryLen:    s.history.Len(),
	}
}

// FormatElapsed renders d as HH:MM:SS. Hours are not wrapped at 24.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}
