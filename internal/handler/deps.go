package handler

import (
	"context"

	"voicerelay/internal/app/chat"
	"voicerelay/internal/configs"
)

// ActivityReader serves the activity history endpoint. It is nil when the server
// runs without a database.
type ActivityReader interface {
	RecentActivity(ctx context.Context, roomCode string, limit int) ([]chat.Activity, error)
}

// AppDeps bundles what the HTTP handlers need.
type AppDeps struct {
	Coordinator *chat.Coordinator
	Config      *configs.AppConfig
	Activity    ActivityReader
}
