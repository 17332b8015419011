/*
Package chat contains the room/session coordination core of the relay.

This file defines the Registry, which owns every active Room. Rooms are created lazily
on the first join to a code and removed as soon as they become empty.
*/
package chat

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"voicerelay/internal/pkg/logx"
)

// RoomInfo is a point-in-time summary of an active room.
type RoomInfo struct {
	Code     string `json:"code"`
	Members  int    `json:"members"`
	Capacity int    `json:"capacity"`
}

// Registry maps room codes to rooms. It is an owned instance; tests and servers
// may run several independent registries side by side.
type Registry struct {
	// rooms stores all active Room instances, keyed by code.
	rooms map[string]*Room

	// capacity assigned to newly created rooms.
	maxRoomSize int

	// mu protects the rooms map.
	mu sync.RWMutex

	// structured logger with Registry context.
	logger zerolog.Logger
}

// NewRegistry constructs an empty Registry whose rooms hold at most maxRoomSize members.
func NewRegistry(maxRoomSize int) *Registry {
	return &Registry{
		rooms:       make(map[string]*Room),
		maxRoomSize: maxRoomSize,
		logger:      logx.For("Registry"),
	}
}

// GetOrCreate returns the room for code, inserting an empty one if none exists.
func (reg *Registry) GetOrCreate(code string) *Room {
	reg.mu.RLock()
	room, ok := reg.rooms[code]
	reg.mu.RUnlock()
	if ok {
		return room
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if room, ok := reg.rooms[code]; ok {
		return room
	}

	room = NewRoom(code, reg.maxRoomSize)
	reg.rooms[code] = room

	reg.logger.Info().
		Str("room_code", code).
		Int("max_members", reg.maxRoomSize).
		Msg("New room created.")
	return room
}

// Get returns the room for code, or nil.
func (reg *Registry) Get(code string) *Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	return reg.rooms[code]
}

// RemoveIfEmpty deletes the room for code if it has no members and reports whether
// it did. It must be called after every member removal. The dropped room is closed
// under the registry lock, so a join holding a stale pointer fails and retries.
func (reg *Registry) RemoveIfEmpty(code string) bool {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	room, ok := reg.rooms[code]
	if !ok {
		return false
	}

	if !room.closeIfEmpty() {
		return false
	}

	delete(reg.rooms, code)
	reg.logger.Info().Str("room_code", code).Msg("Room is empty. Removed.")
	return true
}

// Len returns the number of active rooms.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	return len(reg.rooms)
}

// Rooms returns a summary of every active room, sorted by code.
func (reg *Registry) Rooms() []RoomInfo {
	reg.mu.RLock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, room := range reg.rooms {
		rooms = append(rooms, room)
	}
	reg.mu.RUnlock()

	infos := make([]RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		infos = append(infos, RoomInfo{
			Code:     room.Code,
			Members:  room.Size(),
			Capacity: room.Capacity(),
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Code < infos[j].Code })
	return infos
}

// Shutdown closes every member connection and forgets all rooms. Each connection's
// own disconnect path then finds its room gone and exits quietly.
func (reg *Registry) Shutdown() {
	reg.logger.Info().Msg("Shutting down registry...")

	reg.mu.Lock()
	rooms := reg.rooms
	reg.rooms = make(map[string]*Room)
	reg.mu.Unlock()

	closed := 0
	for _, room := range rooms {
		room.mu.Lock()
		room.closed = true
		room.mu.Unlock()

		for _, conn := range room.Conns() {
			conn.Close()
			closed++
		}
	}

	reg.logger.Info().
		Int("rooms", len(rooms)).
		Int("connections", closed).
		Msg("Registry shutdown complete.")
}
