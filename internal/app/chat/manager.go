package chat

import (
	"errors"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"chatrelay/internal/app/user"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/metrics"
)

// ErrManagerClosed is returned by Register after Shutdown.
var ErrManagerClosed = errors.New("chat manager is shut down")

// ErrDuplicateConnection is returned by Register for an id that is already live.
var ErrDuplicateConnection = errors.New("connection id already registered")

// Manager owns the live connections and delivers the Router's directives to them.
// Membership itself lives in the Registry; the Manager only maps connection ids to
// send queues.
type Manager struct {
	router  *Router
	metrics *metrics.Metrics

	// mu guards clients and closed. A client's send channel is only closed while
	// mu is held for writing, and only written to while mu is held for reading.
	mu      sync.RWMutex
	clients map[user.ConnectionID]*Client
	closed  bool

	logger zerolog.Logger
}

// NewManager returns a Manager delivering for router. A nil m gets a private
// metrics set.
func NewManager(router *Router, m *metrics.Metrics) *Manager {
	if m == nil {
		m = metrics.New()
	}
	return &Manager{
		router:  router,
		metrics: m,
		clients: make(map[user.ConnectionID]*Client),
		logger:  logx.Component("manager"),
	}
}

// Register makes c addressable by its connection id.
func (m *Manager) Register(c *Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrManagerClosed
	}
	if _, ok := m.clients[c.id]; ok {
		return ErrDuplicateConnection
	}

	m.clients[c.id] = c
	m.metrics.Connections.Inc()

	m.logger.Debug().
		Str("connection_id", string(c.id)).
		Int("connections", len(m.clients)).
		Msg("connection registered")
	return nil
}

// Unregister disconnects c: its user leaves the registry, the room is told, and
// its send queue is closed so the write pump can finish. Safe to call repeatedly.
func (m *Manager) Unregister(c *Client) {
	out := m.router.HandleDisconnect(c.id)

	m.mu.Lock()
	if cur, ok := m.clients[c.id]; ok && cur == c {
		delete(m.clients, c.id)
		close(c.send)
		m.metrics.Connections.Dec()
	}
	m.mu.Unlock()

	m.metrics.JoinedUsers.Set(float64(m.router.Registry().Len()))
	m.Deliver(out.Directives)

	if len(out.Directives) > 0 {
		m.logger.Info().
			Str("connection_id", string(c.id)).
			Msg("user left")
	}
}

// Deliver sends each directive, in order, to the connections its target resolves
// to at this moment. Targets that are no longer connected are skipped.
func (m *Manager) Deliver(directives []Directive) {
	for _, d := range directives {
		frame, err := encodeFrame(d.Type, d.Payload, "")
		if err != nil {
			m.logger.Error().Err(err).Str("type", string(d.Type)).Msg("failed to encode directive")
			continue
		}

		ids := d.Target.Resolve(m.router.Registry())

		m.mu.RLock()
		for _, id := range ids {
			if c, ok := m.clients[id]; ok {
				m.enqueueLocked(c, d.Type, frame)
			}
		}
		m.mu.RUnlock()
	}
}

// send queues one frame for c alone, if c is still registered.
func (m *Manager) send(c *Client, t MessageType, frame []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if cur, ok := m.clients[c.id]; ok && cur == c {
		m.enqueueLocked(c, t, frame)
	}
}

// enqueueLocked must be called with mu held for reading. A full queue means the
// peer is not keeping up: the frame is dropped and the connection is closed.
func (m *Manager) enqueueLocked(c *Client, t MessageType, frame []byte) {
	select {
	case c.send <- frame:
		m.metrics.FramesDelivered.WithLabelValues(string(t)).Inc()
	default:
		m.metrics.FramesDropped.Inc()
		c.logger.Warn().
			Int("queue_len", len(c.send)).
			Msg("send queue full; dropping frame and closing connection")
		c.closeConn()
	}
}

// apply delivers an outcome produced for an inbound event from c, then sends the
// acknowledgement if one is owed and c asked for it.
func (m *Manager) apply(c *Client, t MessageType, tempID string, out Outcome) {
	m.Deliver(out.Directives)

	result := "ok"
	switch {
	case out.Err != nil && out.Ack == nil:
		result = "ignored"
	case out.Err != nil:
		result = "rejected"
		m.metrics.Rejections.WithLabelValues(strconv.Itoa(out.Err.Code)).Inc()
	}
	m.metrics.InboundEvents.WithLabelValues(string(t), result).Inc()

	if t == TypeJoin {
		m.metrics.JoinedUsers.Set(float64(m.router.Registry().Len()))
	}

	logEvent := c.logger.Debug()
	if out.Err != nil {
		logEvent = logEvent.Int("code", out.Err.Code)
	}
	logEvent.Str("type", string(t)).Str("result", result).Msg("inbound event handled")

	if out.Ack != nil && tempID != "" {
		c.sendAck(tempID, AckPayload{Code: out.Ack.Code, Error: out.Ack.Error, Status: out.Ack.Status})
	}
}

// rejectFrame answers a frame that never reached the router.
func (m *Manager) rejectFrame(c *Client, t MessageType, tempID string, err *errs.CustomError) {
	m.countRejected(t, err)

	if tempID != "" {
		c.sendAck(tempID, AckPayload{Code: err.Code, Error: err.Message})
		return
	}
	c.sendError(err)
}

func (m *Manager) countRejected(t MessageType, err *errs.CustomError) {
	m.metrics.InboundEvents.WithLabelValues(string(t), "rejected").Inc()
	m.metrics.Rejections.WithLabelValues(strconv.Itoa(err.Code)).Inc()
}

// ConnectionCount returns the number of registered connections.
func (m *Manager) ConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// Shutdown refuses new connections and closes every send queue. Each write pump
// then sends a close frame, which ends the matching read pump and its cleanup.
func (m *Manager) Shutdown() {
	m.logger.Info().Msg("shutting down manager")

	m.mu.Lock()
	m.closed = true
	n := len(m.clients)
	for id, c := range m.clients {
		delete(m.clients, id)
		close(c.send)
		m.metrics.Connections.Dec()
	}
	m.mu.Unlock()

	m.logger.Info().Int("closed_connections", n).Msg("manager shutdown complete")
}
