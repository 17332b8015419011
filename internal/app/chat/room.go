/*
Package chat contains the room/session coordination core of the relay.

This file defines the Room struct: the member set of one room, kept in join order and
bounded by the room capacity, plus the fan-out primitive used by sessions.
*/
package chat

import (
	"sync"

	"github.com/rs/zerolog"

	"voicerelay/internal/app/user"
	"voicerelay/internal/pkg/errs"
	"voicerelay/internal/pkg/logx"
)

// member pairs a User with the connection that owns it.
type member struct {
	user user.User
	conn Conn
}

// Room represents a single active room.
type Room struct {
	// unique identifier for the room, chosen by the first client to join it.
	Code string

	// maximum number of members allowed in the room.
	MaxMembers int

	// current members, keyed by connection identity.
	members map[string]*member

	// identities in join order.
	order []string

	// set once the registry has dropped the room; a closed room accepts no members.
	closed bool

	// mu protects members, order and closed.
	mu sync.RWMutex

	// structured logger with room context.
	logger zerolog.Logger
}

// NewRoom creates an empty room. It is not registered anywhere; use Registry.GetOrCreate.
func NewRoom(roomCode string, maxMembers int) *Room {
	roomLogger := logx.Logger().With().
		Str("component", "Room").
		Str("room_code", roomCode).
		Logger()

	return &Room{
		Code:       roomCode,
		MaxMembers: maxMembers,
		members:    make(map[string]*member),
		logger:     roomLogger,
	}
}

// TryAdd inserts a new unmuted member for conn. It fails with ErrRoomIsFull when the
// room is at capacity, ErrAlreadyJoined when conn is already a member, and
// ErrRoomClosed when the registry has dropped the room.
func (r *Room) TryAdd(conn Conn, displayName string) (user.User, *errs.CustomError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return user.User{}, errs.NewError(errs.ErrRoomClosed)
	}

	id := conn.ID()
	if _, exists := r.members[id]; exists {
		return user.User{}, errs.NewError(errs.ErrAlreadyJoined, r.Code)
	}

	if len(r.members) >= r.MaxMembers {
		r.logger.Warn().
			Int("max_members", r.MaxMembers).
			Str("conn_id", id).
			Msg("Room is full. Join rejected.")
		return user.User{}, errs.NewError(errs.ErrRoomIsFull, r.MaxMembers)
	}

	u := user.User{ID: id, Name: displayName}
	r.members[id] = &member{user: u, conn: conn}
	r.order = append(r.order, id)

	r.logger.Info().
		Str("conn_id", id).
		Str("name", displayName).
		Int("total_users", len(r.members)).
		Msg("User joined room.")

	return u, nil
}

// Remove deletes the member with the given identity and returns it. A missing member
// is not an error: leave and disconnect may both try to clean up.
func (r *Room) Remove(id string) (user.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[id]
	if !ok {
		return user.User{}, false
	}

	delete(r.members, id)
	for i, memberID := range r.order {
		if memberID == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	r.logger.Info().
		Str("conn_id", id).
		Int("total_users", len(r.members)).
		Msg("User left room.")

	return m.user, true
}

// Snapshot returns the current members in join order.
func (r *Room) Snapshot() []user.User {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]user.User, 0, len(r.order))
	for _, id := range r.order {
		users = append(users, r.members[id].user)
	}
	return users
}

// SetMuted updates a member's mute flag. It fails with ErrUserNotFound for non-members.
func (r *Room) SetMuted(id string, isMuted bool) *errs.CustomError {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[id]
	if !ok {
		return errs.NewError(errs.ErrUserNotFound)
	}

	m.user.Muted = isMuted
	return nil
}

// Broadcast queues data on every member except exceptID (empty means everyone) and
// returns the number of members it was queued for. Sends happen under the read lock,
// so a member removed concurrently is never targeted; a member whose queue is full
// misses this frame.
func (r *Room) Broadcast(exceptID string, data []byte) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	delivered := 0
	for _, id := range r.order {
		if id == exceptID {
			continue
		}

		if err := r.members[id].conn.Send(data); err != nil {
			r.logger.Debug().
				Err(err).
				Str("conn_id", id).
				Msg("Dropping frame for member.")
			continue
		}
		delivered++
	}
	return delivered
}

// Conns returns the member connections in join order.
func (r *Room) Conns() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]Conn, 0, len(r.order))
	for _, id := range r.order {
		conns = append(conns, r.members[id].conn)
	}
	return conns
}

// Has reports whether id is a member.
func (r *Room) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.members[id]
	return ok
}

// Size returns the current number of members.
func (r *Room) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.members)
}

// Capacity returns the member limit.
func (r *Room) Capacity() int {
	return r.MaxMembers
}

// closeIfEmpty marks the room closed when it has no members and reports whether it did.
func (r *Room) closeIfEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.members) > 0 {
		return false
	}
	r.closed = true
	return true
}
