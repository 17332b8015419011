/*
Package handler provides the HTTP handlers and routing setup for the relay.

This file defines the main Router: logging, CORS and recovery middleware, the public
health and WebSocket endpoints, the admin room API, and static client files.
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

	"voicerelay/internal/pkg/auth/jwt"
	"voicerelay/internal/pkg/limiter"
	"voicerelay/internal/pkg/logx"
	"voicerelay/internal/pkg/resp"
)

const (
	// CodeRate and CodeBurst limit room code generation per IP.
	CodeRate  = 0.5
	CodeBurst = 5
)

// Router builds the application's HTTP handler. ctx bounds the lifetime of the
// rate limiters' cleanup goroutines.
func Router(ctx context.Context, deps *AppDeps) http.Handler {
	joinLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(deps.Config.JoinRate), deps.Config.JoinBurst)
	codeLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(CodeRate), CodeBurst)

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
			if origin == "" {
				return true
			}
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
		AllowedOrigins: corsAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", HandleHealth(deps))

	r.Route("/api/rooms", func(api chi.Router) {
		api.With(codeLimiter.Middleware).Post("/code", HandleNewRoomCode(deps))

		api.Group(func(admin chi.Router) {
			admin.Use(jwt.RequireAdmin(deps.Config.JWTSecret))

			admin.Get("/", HandleListRooms(deps))
			admin.Get("/{code}", HandleGetRoom(deps))
			admin.Get("/{code}/activity", HandleRoomActivity(deps))
		})
	})

	r.Get("/ws", HandleWebSocket(deps, wsUpgrader, joinLimiter))

	if info, err := os.Stat(deps.Config.StaticDir); err == nil && info.IsDir() {
		logx.Info("Serving static client files", "dir", deps.Config.StaticDir)
		r.Handle("/*", http.FileServer(http.Dir(deps.Config.StaticDir)))
	}

	return r
}

// HandleHealth reports liveness plus a few gauges.
func HandleHealth(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := map[string]any{
			"status":   "ok",
			"service":  "voicerelay",
			"rooms":    deps.Coordinator.Registry().Len(),
			"sessions": deps.Coordinator.ActiveSessions(),
		}
		resp.RespondSuccess(w, r, data)
	}
}
