// Package monitor runs the periodic monitoring session: one round of health
// checks every interval, plus a one-second countdown to the next round.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"projectmonitor/internal/check"
	"projectmonitor/internal/logging"
	"projectmonitor/internal/models"
	"projectmonitor/internal/token"
	"projectmonitor/internal/tree"
)

const (
	// DefaultMinInterval is the shortest accepted round interval.
	DefaultMinInterval = time.Second

	// StoppedMessage is the payload of the stop acknowledgement.
	StoppedMessage = "Monitor stopped"

	countdownStep = time.Second
)

// ConfigurationError rejects a session whose interval is too short.
type ConfigurationError struct {
	Interval time.Duration
	Minimum  time.Duration
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("You must set the intervalLength to at least %d second(s). Send intervalLength in number of seconds, got %d.",
		int(e.Minimum/time.Second), int(e.Interval/time.Second))
}

// RoundRecorder observes rounds and session state.
type RoundRecorder interface {
	ObserveRound(elapsed time.Duration, overview models.StatusOverview)
	SetRunning(running bool)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithMinInterval overrides DefaultMinInterval.
func WithMinInterval(d time.Duration) Option {
	return func(m *Scheduler) {
		if d > 0 {
			m.minInterval = d
		}
	}
}

// WithRecorder attaches a round recorder.
func WithRecorder(r RoundRecorder) Option {
	return func(m *Scheduler) {
		m.recorder = r
	}
}

// WithListener registers fn to receive every event of every session, in
// publish order. fn must not block.
func WithListener(fn func(models.Event)) Option {
	return func(m *Scheduler) {
		m.listeners = append(m.listeners, fn)
	}
}

// WithTicker replaces the ticker factory.
func WithTicker(fn TickerFunc) Option {
	return func(m *Scheduler) {
		m.newTicker = fn
	}
}

// Scheduler owns at most one running Session.
type Scheduler struct {
	executor    *check.Executor
	tokens      *token.Provider
	minInterval time.Duration
	recorder    RoundRecorder
	listeners   []func(models.Event)
	newTicker   TickerFunc
	log         *logrus.Entry

	mu      sync.Mutex
	current *Session
}

// New creates an idle scheduler.
func New(executor *check.Executor, tokens *token.Provider, opts ...Option) *Scheduler {
	m := &Scheduler{
		executor:    executor,
		tokens:      tokens,
		minInterval: DefaultMinInterval,
		newTicker:   NewTicker,
		log:         logging.WithPrefix("monitor"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MinInterval returns the shortest accepted interval.
func (m *Scheduler) MinInterval() time.Duration {
	return m.minInterval
}

// Start begins a session for cfg and reports true. When a session is already
// running it is returned unchanged with false and cfg is ignored. An interval
// below the minimum yields a *ConfigurationError.
func (m *Scheduler) Start(cfg models.MonitorConfig) (*Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		m.log.WithField("session", m.current.id).Debug("monitor already running, joining session")
		return m.current, false, nil
	}

	interval := time.Duration(cfg.IntervalLength) * time.Second
	if interval < m.minInterval {
		return nil, false, &ConfigurationError{Interval: interval, Minimum: m.minInterval}
	}

	s := newSession(cfg, interval, m.listeners)
	roundTicker := m.newTicker(interval)
	countdownTicker := m.newTicker(countdownStep)
	s.countdown = countdownTicker

	s.wg.Add(2)
	go m.runRounds(s, roundTicker)
	go m.runCountdown(s, countdownTicker)

	m.current = s
	if m.recorder != nil {
		m.recorder.SetRunning(true)
	}
	m.log.WithFields(logrus.Fields{
		"session":  s.id,
		"interval": interval,
		"projects": len(cfg.Projects),
	}).Info("monitor started")
	return s, true, nil
}

// Stop ends the running session and reports whether one was running. When
// Stop returns no further snapshot or countdown is emitted, apart from the
// stop acknowledgement and null countdown that Stop itself publishes.
func (m *Scheduler) Stop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.current
	if s == nil {
		return false
	}
	m.current = nil

	s.halt()
	s.finish(StoppedMessage)
	if m.recorder != nil {
		m.recorder.SetRunning(false)
	}
	m.log.WithField("session", s.id).Info("monitor stopped")
	return true
}

// Current returns the running session, or nil when idle.
func (m *Scheduler) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// RunOnce performs a single round for cfg outside of any session.
func (m *Scheduler) RunOnce(ctx context.Context, cfg models.MonitorConfig) models.StatusOverview {
	return m.evaluate(ctx, cfg, &token.Session{})
}

func (m *Scheduler) runRounds(s *Session, t Ticker) {
	defer s.wg.Done()
	defer t.Stop()

	m.round(s)
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-t.C():
			m.round(s)
		}
	}
}

func (m *Scheduler) round(s *Session) {
	if s.ctx.Err() != nil {
		return
	}
	started := time.Now()

	overview := m.evaluate(s.ctx, s.config, &s.tokens)
	if !s.publish(models.MonitorEvent(overview)) {
		return
	}
	elapsed := time.Since(started)
	if m.recorder != nil {
		m.recorder.ObserveRound(elapsed, overview)
	}
	s.resetCountdown()

	m.log.WithFields(logrus.Fields{
		"session": s.id,
		"elapsed": elapsed,
	}).Debug("round complete")
}

// evaluate is one round: refresh the token, then run every check with it.
func (m *Scheduler) evaluate(ctx context.Context, cfg models.MonitorConfig, tokens *token.Session) models.StatusOverview {
	current := m.tokens.Acquire(ctx, cfg.LoginForToken, tokens)
	executions := tree.Flatten(cfg.Projects)
	statuses := m.executor.Dispatch(ctx, executions, current)
	return tree.BuildOverview(statuses, cfg.Projects)
}

func (m *Scheduler) runCountdown(s *Session, t Ticker) {
	defer s.wg.Done()
	defer t.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-t.C():
			s.tickCountdown()
		}
	}
}
