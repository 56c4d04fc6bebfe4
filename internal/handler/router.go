/*
Package handler provides the HTTP handlers and routing setup for the chat relay.

This file defines the main Router, applying middleware like logging, CORS, and
IP-based rate limiting before delegating requests to the API and WebSocket handlers.
*/
package handler

import (
	"context"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"chatrelay/internal/pkg/limiter"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/pow"
	"chatrelay/internal/pkg/resp"
)

const (
	JoinRate  = 0.2
	JoinBurst = 5

	ChallengeRate  = 1
	ChallengeBurst = 10
)

// Router sets up the HTTP routing table. The rate limiters' sweep goroutines run
// until ctx is done.
func Router(ctx context.Context, deps *AppDeps) http.Handler {
	joinLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(JoinRate), JoinBurst, 0)
	challengeLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(ChallengeRate), ChallengeBurst, 0)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", pow.TokenHeaderKey},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger("/health", "/metrics"))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, map[string]any{
			"status":      "ok",
			"service":     "chatrelay",
			"connections": deps.Manager.ConnectionCount(),
		})
	})

	r.Handle("/metrics", deps.Metrics.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Get("/rooms", HandleListRooms(deps))

		api.Route("/pow", func(p chi.Router) {
			p.Use(challengeLimiter.Middleware)
			p.Get("/challenge", HandlePowChallenge(deps))
			p.Post("/verify", HandlePowVerify(deps))
		})
	})

	r.Get("/ws", HandleWebSocket(wsUpgrader, joinLimiter, deps))

	if dir := deps.Config.PublicDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			r.Handle("/*", http.FileServer(http.Dir(dir)))
		} else {
			logx.Warn("static file directory not found; serving API only", "dir", dir)
		}
	}

	return r
}
