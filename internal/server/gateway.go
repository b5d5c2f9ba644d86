package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"projectmonitor/internal/config"
	"projectmonitor/internal/models"
	"projectmonitor/internal/monitor"
)

// Inbound websocket event names.
const (
	EventStart       = models.EventMonitor
	EventStartLegacy = "msgToServer"
	EventStop        = models.EventStopMonitor
)

const (
	wsWriteTimeout = 5 * time.Second
	wsSendBuffer   = 64
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		originHost := strings.ToLower(strings.TrimSpace(u.Host))
		return host == originHost
	},
}

// inboundFrame is a client message. Data is the monitor config for start
// events, either as an object or as a JSON-encoded string.
type inboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// wsClient owns one connection. All writes go through send so that a single
// goroutine writes to the socket.
type wsClient struct {
	srv  *Server
	conn *websocket.Conn
	send chan any
	log  *logrus.Entry

	closed    chan struct{}
	closeOnce sync.Once

	mu          sync.Mutex
	session     *monitor.Session
	unsubscribe func()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Debug("websocket upgrade failed")
		return
	}

	c := &wsClient{
		srv:    s,
		conn:   conn,
		send:   make(chan any, wsSendBuffer),
		log:    s.log.WithField("remote", r.RemoteAddr),
		closed: make(chan struct{}),
	}

	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	go c.writeLoop()
	if session := s.scheduler.Current(); session != nil {
		c.attach(session)
	}
	c.log.Debug("websocket client connected")
	c.readLoop()
}

func (c *wsClient) readLoop() {
	defer c.close()
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			c.log.WithError(err).Debug("ignoring malformed frame")
			continue
		}

		switch frame.Event {
		case EventStart, EventStartLegacy:
			c.handleStart(frame.Data)
		case EventStop:
			// An idle stop is still acknowledged; a running session
			// delivers its own acknowledgement through the stream.
			if !c.srv.scheduler.Stop() {
				c.enqueue(models.StopEvent(monitor.StoppedMessage))
			}
		default:
			c.log.WithField("event", frame.Event).Debug("ignoring unknown event")
		}
	}
}

func (c *wsClient) handleStart(data json.RawMessage) {
	cfg, err := config.ParseMonitorConfig(data)
	if err != nil {
		c.enqueue(rejection(err))
		return
	}
	session, _, err := c.srv.StartMonitor(cfg)
	if err != nil {
		c.enqueue(rejection(err))
		return
	}
	c.attach(session)
}

// attach subscribes the client to session unless it already is or the
// client is closed. The latest stored snapshot is replayed first so a late
// joiner does not wait a full interval.
func (c *wsClient) attach(session *monitor.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.closed:
		return
	default:
	}
	if c.session == session {
		return
	}
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	events, unsubscribe := session.Subscribe()
	c.session = session
	c.unsubscribe = unsubscribe
	go c.forward(events)
}

func (c *wsClient) forward(events <-chan models.Event) {
	if snap, ok := c.srv.store.Latest(); ok && snap.Running {
		c.enqueue(models.MonitorEvent(snap.Overview))
		if snap.Countdown != nil {
			c.enqueue(models.CountdownEvent(snap.Countdown))
		}
	}
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.enqueue(ev)
		case <-c.closed:
			return
		}
	}
}

func (c *wsClient) enqueue(msg any) {
	select {
	case <-c.closed:
	case c.send <- msg:
	default:
		c.log.Warn("websocket send queue full, dropping message")
	}
}

func (c *wsClient) writeLoop() {
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.log.WithError(err).Debug("websocket write failed")
				c.close()
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()

		c.mu.Lock()
		if c.unsubscribe != nil {
			c.unsubscribe()
			c.unsubscribe = nil
		}
		c.mu.Unlock()

		c.srv.mu.Lock()
		delete(c.srv.clients, c)
		c.srv.mu.Unlock()
		c.log.Debug("websocket client disconnected")
	})
}
