/*
Package handler provides the HTTP handlers and routing setup for the relay.

This file contains HandleWebSocket, which rate limits, upgrades the connection, assigns
the connection identity, and runs the client's read and write loops.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"voicerelay/internal/app/chat"
	"voicerelay/internal/pkg/errs"
	"voicerelay/internal/pkg/limiter"
	"voicerelay/internal/pkg/logx"
	"voicerelay/internal/pkg/randx"
	"voicerelay/internal/pkg/resp"
)

// HandleWebSocket upgrades GET /ws. The handler goroutine runs the read loop and
// returns once the connection is gone.
func HandleWebSocket(deps *AppDeps, upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := limiter.ClientIP(r)

		if !rateLimiter.Allow(ip) {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", logx.AnonymizeIP(ip))
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := chat.NewClient(randx.ConnectionID(), conn, chat.ClientOptions{
			MaxMessageBytes: deps.Config.MaxMessageBytes,
			SendQueueSize:   deps.Config.SendQueueSize,
		})

		go client.WritePump()

		session := deps.Coordinator.Connect(client)

		logx.Info("WebSocket connection established", "conn_id", client.ID())

		client.ReadPump(session)
	}
}
