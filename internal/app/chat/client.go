package chat

import (
	"bytes"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"chatrelay/internal/app/user"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client. Leaves room
	// for the envelope around a MaxContentBytes message.
	maxMessageSize = 16384

	// capacity of the outbound queue.
	sendQueueSize = 256

	// per-connection inbound frame rate and burst.
	inboundRate  = rate.Limit(5)
	inboundBurst = 10
)

// Client is one WebSocket connection. It has no user until it joins.
type Client struct {
	manager *Manager

	// underlying WebSocket connection; nil in tests that drive the client directly.
	conn *websocket.Conn

	id user.ConnectionID

	// queued outbound frames. Closed only by the Manager.
	send chan []byte

	limiter   *rate.Limiter
	closeOnce sync.Once

	logger zerolog.Logger
}

// NewClient constructs a Client for conn. It is not addressable until it is
// registered with m.
func NewClient(m *Manager, conn *websocket.Conn, id user.ConnectionID, remoteIP string) *Client {
	clientLogger := logx.Logger().With().
		Str("connection_id", string(id)).
		Str("remote_ip", logx.AnonymizeIP(remoteIP)).
		Logger()

	return &Client{
		manager: m,
		conn:    conn,
		id:      id,
		send:    make(chan []byte, sendQueueSize),
		limiter: rate.NewLimiter(inboundRate, inboundBurst),
		logger:  clientLogger,
	}
}

// ID returns the connection id.
func (c *Client) ID() user.ConnectionID {
	return c.id
}

// ReadPump reads frames until the connection fails, then unregisters the client.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("connection closed unexpectedly")
			}
			break
		}

		c.processInboundMessage(frame)
	}
}

func (c *Client) cleanupOnDisconnect() {
	c.logger.Debug().Msg("connection cleanup starting")
	c.manager.Unregister(c)
	c.closeConn()
}

// closeConn closes the socket once. Any blocked read or write then fails and both
// pumps exit.
func (c *Client) closeConn() {
	if c.conn == nil {
		return
	}
	c.closeOnce.Do(func() {
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("connection close error")
		}
	})
}

// processInboundMessage dispatches one raw frame. Every frame, well formed or not,
// spends a token from the connection's limiter first.
func (c *Client) processInboundMessage(frame []byte) {
	if !c.limiter.Allow() {
		c.rejectRateLimited(frame)
		return
	}

	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		c.logger.Warn().Err(err).Int("frame_len", len(frame)).Msg("client sent invalid JSON")
		c.manager.rejectFrame(c, "invalid", "", errs.NewError(errs.ErrInvalidJSONFormat))
		return
	}

	switch env.Type {
	case TypeJoin:
		c.handleJoin(env.Payload, env.TempID)

	case TypeClientMessage:
		c.handleText(env.Payload, env.TempID)

	case TypeLocationData:
		c.handleLocation(env.Payload, env.TempID)

	default:
		c.logger.Warn().Str("msg_type", string(env.Type)).Msg("client sent unsupported message type")
		c.manager.rejectFrame(c, "unsupported", env.TempID, errs.NewError(errs.ErrUnsupportedMessageType, string(env.Type)))
	}
}

func (c *Client) handleJoin(payload json.RawMessage, tempID string) {
	var p JoinPayload
	if err := decodePayload(payload, &p); err != nil {
		c.logger.Warn().Err(err).Msg("client sent invalid join payload")
		c.manager.rejectFrame(c, TypeJoin, tempID, errs.NewError(errs.ErrInvalidParams))
		return
	}

	c.manager.apply(c, TypeJoin, tempID, c.manager.router.HandleJoin(c.id, p.Username, p.Room))
}

func (c *Client) handleText(payload json.RawMessage, tempID string) {
	var text string
	if err := decodePayload(payload, &text); err != nil {
		if c.joined() {
			c.logger.Warn().Err(err).Msg("client sent invalid clientMessage payload")
			c.manager.rejectFrame(c, TypeClientMessage, tempID, errs.NewError(errs.ErrInvalidParams))
		}
		return
	}

	c.manager.apply(c, TypeClientMessage, tempID, c.manager.router.HandleTextMessage(c.id, text))
}

func (c *Client) handleLocation(payload json.RawMessage, tempID string) {
	var coords Coordinates
	if err := decodePayload(payload, &coords); err != nil {
		if c.joined() {
			c.logger.Warn().Err(err).Msg("client sent invalid locationData payload")
			c.manager.rejectFrame(c, TypeLocationData, tempID, errs.NewError(errs.ErrInvalidCoordinates))
		}
		return
	}

	c.manager.apply(c, TypeLocationData, tempID, c.manager.router.HandleLocation(c.id, coords))
}

// rejectRateLimited answers an over-limit frame only when it is valid JSON carrying
// a tempId. Everything else is dropped so a flood cannot fill the send queue with
// error frames.
func (c *Client) rejectRateLimited(frame []byte) {
	err := errs.NewError(errs.ErrRateLimitExceeded)

	var env Envelope
	if json.Unmarshal(frame, &env) != nil || env.TempID == "" {
		c.manager.countRejected("rate_limited", err)
		return
	}
	c.manager.rejectFrame(c, "rate_limited", env.TempID, err)
}

// joined reports whether the connection currently has a user. Frames from
// connections without one are dropped without reply.
func (c *Client) joined() bool {
	_, ok := c.manager.router.Registry().GetUser(c.id)
	return ok
}

// decodePayload unmarshals raw into dst. A missing or null payload leaves dst at
// its zero value.
func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// WritePump writes queued frames and periodic pings until the queue is closed or a
// write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.closeConn()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !c.writeQueuedMessage(frame, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedMessage returns false when the pump should stop.
func (c *Client) writeQueuedMessage(frame []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("failed to set write deadline")
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			c.logger.Debug().Err(err).Msg("error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Warn().Err(err).Msg("error writing message")
		return false
	}

	return true
}

func (c *Client) writePingMessage() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Warn().Err(err).Msg("error writing ping")
		return false
	}

	return true
}

// sendAck queues an acknowledgement for the inbound frame tagged tempID.
func (c *Client) sendAck(tempID string, ack AckPayload) {
	frame, err := encodeFrame(TypeAck, ack, tempID)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to build ack frame")
		return
	}
	c.manager.send(c, TypeAck, frame)
}

// sendError queues an error frame for a frame that carried no tempId.
func (c *Client) sendError(err *errs.CustomError) {
	frame, encErr := encodeFrame(TypeError, ErrorPayload{Code: err.Code, Message: err.Message}, "")
	if encErr != nil {
		c.logger.Error().Err(encErr).Msg("failed to build error frame")
		return
	}
	c.manager.send(c, TypeError, frame)
}
