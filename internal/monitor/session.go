package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"projectmonitor/internal/broker"
	"projectmonitor/internal/models"
	"projectmonitor/internal/token"
)

// Session is one running monitor. All subscribers of a session share its
// rounds.
type Session struct {
	id        string
	config    models.MonitorConfig
	interval  time.Duration
	startedAt time.Time

	tokens    token.Session
	broker    *broker.Broker
	listeners []func(models.Event)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}

	// mu guards publishing and the countdown. Once stopped is set nothing
	// more is published.
	mu        sync.Mutex
	stopped   bool
	remaining int
	countdown Ticker
}

func newSession(cfg models.MonitorConfig, interval time.Duration, listeners []func(models.Event)) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:        uuid.NewString(),
		config:    cfg,
		interval:  interval,
		startedAt: time.Now().UTC(),
		broker:    broker.New(broker.DefaultBuffer),
		listeners: listeners,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// ID identifies the session.
func (s *Session) ID() string {
	return s.id
}

// Config returns the configuration the session was started with.
func (s *Session) Config() models.MonitorConfig {
	return s.config
}

// Interval returns the round interval.
func (s *Session) Interval() time.Duration {
	return s.interval
}

// StartedAt returns when the session started.
func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// Subscribe returns a channel of the session's events and a function that
// cancels the subscription. The channel is closed when the session stops.
func (s *Session) Subscribe() (<-chan models.Event, func()) {
	id, ch := s.broker.Subscribe()
	return ch, func() { s.broker.Unsubscribe(id) }
}

// Done is closed once the session has stopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) publish(ev models.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.emitLocked(ev)
	return true
}

func (s *Session) emitLocked(ev models.Event) {
	s.broker.Publish(ev)
	for _, fn := range s.listeners {
		fn(ev)
	}
}

// resetCountdown restarts the countdown at the full interval, one step
// away from the first decrement.
func (s *Session) resetCountdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.remaining = int(s.interval / time.Second)
	if s.countdown != nil {
		s.countdown.Reset(countdownStep)
	}
	remaining := s.remaining
	s.emitLocked(models.CountdownEvent(&remaining))
}

// tickCountdown decrements the countdown. At zero it waits for the next
// round to reset it.
func (s *Session) tickCountdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.remaining <= 0 {
		return
	}
	s.remaining--
	remaining := s.remaining
	s.emitLocked(models.CountdownEvent(&remaining))
}

// halt blocks publishing, cancels in-flight work and waits for both loops.
func (s *Session) halt() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// finish emits the stop acknowledgement and closes all subscriptions.
func (s *Session) finish(message string) {
	s.mu.Lock()
	s.emitLocked(models.StopEvent(message))
	s.emitLocked(models.CountdownEvent(nil))
	s.mu.Unlock()

	s.broker.Close()
	close(s.done)
}
