/*
Package chat contains the room/session coordination core of the relay.

This file defines the Coordinator, which owns the room registry and hands out one
Session per accepted connection.
*/
package chat

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"voicerelay/internal/pkg/logx"
)

const (
	// MaxNameRunes bounds display names.
	MaxNameRunes = 32

	// MaxRoomCodeRunes bounds room codes.
	MaxRoomCodeRunes = 64
)

// Coordinator dispatches session events against a Registry.
type Coordinator struct {
	registry *Registry

	// recorder receives join/leave activity; NoopRecorder by default.
	recorder ActivityRecorder

	// sessions counts connections that have not disconnected yet.
	sessions atomic.Int64

	now func() time.Time

	logger zerolog.Logger
}

// Option customises a Coordinator.
type Option func(*Coordinator)

// WithActivityRecorder sends membership changes to rec.
func WithActivityRecorder(rec ActivityRecorder) Option {
	return func(c *Coordinator) {
		if rec != nil {
			c.recorder = rec
		}
	}
}

// WithClock overrides the time source used for activity timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// NewCoordinator builds a Coordinator around registry.
func NewCoordinator(registry *Registry, opts ...Option) *Coordinator {
	c := &Coordinator{
		registry: registry,
		recorder: NoopRecorder,
		now:      time.Now,
		logger:   logx.For("Coordinator"),
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the registry the coordinator mutates.
func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// ActiveSessions returns the number of connected sessions.
func (c *Coordinator) ActiveSessions() int64 {
	return c.sessions.Load()
}

// Connect starts a session for conn in the Unjoined state and tells the client its identity.
func (c *Coordinator) Connect(conn Conn) *Session {
	s := &Session{
		conn:  conn,
		coord: c,
		state: stateUnjoined,
		logger: c.logger.With().
			Str("conn_id", conn.ID()).
			Logger(),
	}

	c.sessions.Add(1)
	s.send(TypeConnected, ConnectedPayload{ID: conn.ID()})

	s.logger.Debug().Msg("Session started.")
	return s
}

func (c *Coordinator) record(kind ActivityKind, roomCode, connID, name string) {
	c.recorder.Record(Activity{
		Kind:     kind,
		RoomCode: roomCode,
		ConnID:   connID,
		Name:     name,
		At:       c.now(),
	})
}
