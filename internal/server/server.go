// Package server exposes the monitor over HTTP and websocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"projectmonitor/internal/config"
	"projectmonitor/internal/logging"
	"projectmonitor/internal/metrics"
	"projectmonitor/internal/models"
	"projectmonitor/internal/monitor"
	"projectmonitor/internal/storage"
	"projectmonitor/internal/tree"
)

// HealthMessage is the plain-text body of GET /health.
const HealthMessage = "project-monitor is up and running!"

const maxBodyBytes = 1 << 20

// Server wraps HTTP serving of the REST API, websocket gateway and metrics.
type Server struct {
	httpServer *http.Server
	scheduler  *monitor.Scheduler
	store      *storage.SnapshotStore
	metrics    *metrics.Collector
	log        *logrus.Entry

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

// New creates a configured HTTP server. collector may be nil, in which case
// /metrics is not served.
func New(addr string, scheduler *monitor.Scheduler, store *storage.SnapshotStore, collector *metrics.Collector) *Server {
	s := &Server{
		scheduler: scheduler,
		store:     store,
		metrics:   collector,
		log:       logging.WithPrefix("server"),
		clients:   make(map[*wsClient]struct{}),
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/monitor", s.handleStart).Methods(http.MethodPost)
	api.HandleFunc("/monitor/stop", s.handleStop).Methods(http.MethodPost)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	return r
}

// Run blocks and serves HTTP traffic.
func (s *Server) Run() error {
	s.log.WithField("address", s.httpServer.Addr).Info("listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts the server down and closes open websockets.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.mu.Lock()
	clients := make([]*wsClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
	return err
}

// StartMonitor starts a session for cfg, or joins the running one, and
// attaches every connected websocket client to it.
func (s *Server) StartMonitor(cfg models.MonitorConfig) (*monitor.Session, bool, error) {
	session, started, err := s.scheduler.Start(cfg)
	if err != nil {
		return nil, false, err
	}
	if started {
		s.mu.Lock()
		for c := range s.clients {
			c.attach(session)
		}
		s.mu.Unlock()
	}
	return session, started, nil
}

type startResponse struct {
	SessionID string `json:"sessionId"`
	Joined    bool   `json:"joined"`
}

type statusResponse struct {
	storage.Snapshot
	Summary            []metrics.ProjectSummary `json:"summary"`
	MinIntervalSeconds int                      `json:"minIntervalLength"`
	Session            *sessionInfo             `json:"session"`
}

// sessionInfo describes the running session, if any.
type sessionInfo struct {
	ID             string    `json:"id"`
	IntervalLength int       `json:"intervalLength"`
	StartedAt      time.Time `json:"startedAt"`
	Projects       []string  `json:"projects"`
	HealthChecks   int       `json:"healthChecks"`
}

func describeSession(session *monitor.Session) *sessionInfo {
	if session == nil {
		return nil
	}
	info := &sessionInfo{
		ID:             session.ID(),
		IntervalLength: int(session.Interval() / time.Second),
		StartedAt:      session.StartedAt(),
		Projects:       []string{},
	}
	// A tree with duplicate names reports no project list.
	if idx, err := tree.NewIndex(session.Config().Projects); err == nil {
		info.Projects = idx.Names()
		info.HealthChecks = idx.CheckCount()
	}
	return info
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, HealthMessage)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, rejection(err))
		return
	}
	cfg, err := config.ParseMonitorConfig(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, rejection(err))
		return
	}
	session, started, err := s.StartMonitor(cfg)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, rejection(err))
		return
	}
	writeJSON(w, http.StatusOK, startResponse{SessionID: session.ID(), Joined: !started})
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	if !s.scheduler.Stop() {
		writeJSON(w, http.StatusConflict, models.Rejection{Error: "monitor is not running"})
		return
	}
	writeJSON(w, http.StatusOK, models.StopEvent(monitor.StoppedMessage))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap, _ := s.store.Latest()
	resp := statusResponse{
		Snapshot:           snap,
		Summary:            metrics.Summarize(snap.Overview),
		MinIntervalSeconds: int(s.scheduler.MinInterval() / time.Second),
		Session:            describeSession(s.scheduler.Current()),
	}
	if resp.Overview == nil {
		resp.Overview = models.StatusOverview{}
	}
	if resp.Summary == nil {
		resp.Summary = []metrics.ProjectSummary{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func rejection(err error) models.Rejection {
	return models.Rejection{Error: err.Error(), Status: nil}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}
