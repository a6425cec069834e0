// Package reminder implements the per-client poll/dedup/emit loop that
// turns upcoming calendar occurrences into one-time reminder notifications.
package reminder

import (
	"context"
	"time"

	appLog "remindd/internal/log"
	"remindd/internal/model"
)

// EventType is the stream event type tag attached to every notification.
const EventType = "reminder"

// Notification is the payload pushed to a client for one qualifying
// occurrence: the event name and its start instant in RFC 3339 form.
type Notification struct {
	Name  string `json:"name"`
	Start string `json:"start"`
}

// State is the lifecycle state of a Session.
type State string

const (
	// StateActive: the session is polling and emitting.
	StateActive State = "active"
	// StateTerminated: the session has stopped for good; no further
	// fetches occur and the seen-set has been discarded.
	StateTerminated State = "terminated"
)

// FetchFunc returns the occurrences currently inside the reminder window.
// It must never block longer than its per-call bound and must absorb
// upstream failures (empty slice, no error).
type FetchFunc func(ctx context.Context, now time.Time) []model.Occurrence

// EmitFunc delivers one notification downstream. A non-nil error means the
// client can no longer be written to and terminates the session.
type EmitFunc func(Notification) error

// Config assembles a Session's collaborators.
type Config struct {
	// Fetch produces the reminder-window occurrences for a poll instant.
	Fetch FetchFunc
	// Emit pushes one notification to the client.
	Emit EmitFunc
	// Interval is the delay between poll cycles. Zero means 60 seconds.
	Interval time.Duration
	// Name identifies the session in logs (e.g. the client remote address).
	Name string
}

// Session drives the poll, filter, dedup, emit cycle for exactly one client
// connection. Each session owns its seen-set and runs strictly sequentially;
// sessions share nothing, so no locking is involved.
type Session struct {
	fetch    FetchFunc
	emit     EmitFunc
	interval time.Duration
	name     string

	// seen holds the occurrence keys already notified in this session.
	// It grows monotonically and dies with the session.
	seen map[string]struct{}

	// state is written only by the goroutine running Run. Reading it from
	// elsewhere is safe once Run has returned.
	state State
}

// New creates a Session in the Active state. Run must be called on a single
// goroutine to start polling.
func New(cfg Config) *Session {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Session{
		fetch:    cfg.Fetch,
		emit:     cfg.Emit,
		interval: interval,
		name:     cfg.Name,
		seen:     make(map[string]struct{}),
		state:    StateActive,
	}
}

// State returns the session's lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Run executes poll cycles until ctx is cancelled (client disconnect or
// process shutdown) or a downstream write fails. It always leaves the
// session Terminated.
//
// Per cycle: check for cancellation, fetch the reminder-window occurrences,
// emit a notification for every occurrence not yet seen, then sleep one
// interval. The sleep selects on ctx so a disconnect during it is honored
// at the top of the next cycle without a further fetch.
func (s *Session) Run(ctx context.Context) {
	notified := 0
	defer func() {
		s.seen = nil
		s.state = StateTerminated
		appLog.Info("reminder session terminated", "session", s.name, "notified", notified)
	}()

	appLog.Info("reminder session started", "session", s.name, "interval", s.interval)

	for {
		// Cancellation is checked before each fetch so a closed connection
		// never triggers another upstream call.
		if ctx.Err() != nil {
			return
		}

		now := time.Now()
		for _, occ := range s.fetch(ctx, now) {
			key := occ.Key()
			if _, ok := s.seen[key]; ok {
				// Already announced in this session; an occurrence that
				// re-enters the window is deliberately not re-notified.
				continue
			}

			n := Notification{
				Name:  occ.Summary,
				Start: occ.Start.Format(time.RFC3339),
			}
			if err := s.emit(n); err != nil {
				appLog.Warn("reminder emit failed, closing session", "err", err, "session", s.name)
				return
			}
			// Mark seen only after the notification was queued downstream.
			s.seen[key] = struct{}{}
			notified++
			appLog.Debug("reminder sent", "session", s.name, "key", key, "start", n.Start)
		}

		t := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}
