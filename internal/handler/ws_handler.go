/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains the HandleWebSocket function, which is responsible for rate limiting, the optional
proof-of-work gate, upgrading the HTTP connection to WebSocket, and starting the client pumps.
*/
package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"chatrelay/internal/app/chat"
	"chatrelay/internal/app/user"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/limiter"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/randx"
	"chatrelay/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
// The connection has no user until it sends a join frame.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := limiter.ClientIP(r)

		if !rateLimiter.Allow(ip) {
			logx.Warn("WebSocket connection rejected: rate limit exceeded.", "ip", logx.AnonymizeIP(ip))
			resp.RespondError(w, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		if deps.PoW.Enabled() && !deps.PoW.ConsumeToken(r) {
			logx.Info("WebSocket connection rejected: missing or invalid proof token.", "ip", logx.AnonymizeIP(ip))
			resp.RespondError(w, errs.NewError(errs.ErrPowChallengeRequired))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Warn("failed to upgrade connection to WebSocket", "error", err.Error())
			return
		}

		id := user.ConnectionID(randx.ConnectionID())
		client := chat.NewClient(deps.Manager, conn, id, ip)

		if err := deps.Manager.Register(client); err != nil {
			logx.Warn("WebSocket connection refused", "error", err.Error())
			deadline := time.Now().Add(time.Second)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
			_ = conn.Close()
			return
		}

		logx.Debug("WebSocket connection established", "connection_id", string(client.ID()))

		go client.WritePump()

		client.ReadPump()
	}
}
