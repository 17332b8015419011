package chat

import (
	"encoding/json"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"voicerelay/internal/pkg/errs"
)

type sessionState int

const (
	stateUnjoined sessionState = iota
	stateJoined
	stateDisconnected
)

func (s sessionState) String() string {
	switch s {
	case stateUnjoined:
		return "unjoined"
	case stateJoined:
		return "joined"
	case stateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Session is the per-connection state machine: Unjoined -> Joined(room) -> Disconnected.
// A session belongs to at most one room at a time; leave-room returns it to Unjoined.
// Events for one session are handled one at a time.
type Session struct {
	conn  Conn
	coord *Coordinator

	// mu serialises event handling for this connection.
	mu sync.Mutex

	state sessionState

	// roomCode is the current room while Joined. It is only a lookup key:
	// the registry owns the room.
	roomCode string

	logger zerolog.Logger
}

// ID returns the connection identity.
func (s *Session) ID() string {
	return s.conn.ID()
}

// RoomCode returns the current room code and whether the session is Joined.
func (s *Session) RoomCode() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.roomCode, s.state == stateJoined
}

// Disconnected reports whether the session has ended.
func (s *Session) Disconnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state == stateDisconnected
}

// HandleMessage decodes one client frame and dispatches it. Rejections are reported
// to the sender with an error event, except for audio frames which are dropped quietly.
func (s *Session) HandleMessage(raw []byte) {
	if s.Disconnected() {
		return
	}

	var inbound InboundMessage
	if err := json.Unmarshal(raw, &inbound); err != nil {
		s.logger.Warn().Err(err).Int("bytes", len(raw)).Msg("Client sent invalid JSON")
		s.sendError(errs.NewError(errs.ErrInvalidJSONFormat))
		return
	}

	switch inbound.Type {
	case TypeJoinRoom:
		var payload JoinRoomPayload
		if !s.decodePayload(inbound, &payload) {
			return
		}
		if err := s.Join(payload.Name, payload.RoomCode); err != nil && err.Code != errs.ErrRoomIsFull {
			s.sendError(err)
		}

	case TypeAudioStream:
		var payload AudioStreamPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			s.logger.Debug().Err(err).Msg("Dropping undecodable audio frame")
			return
		}
		if err := s.RelayAudio(payload.RoomCode, payload.AudioData); err != nil {
			s.logger.Debug().Int("code", err.Code).Msg("Dropping audio frame")
		}

	case TypeToggleMute:
		var payload ToggleMutePayload
		if !s.decodePayload(inbound, &payload) {
			return
		}
		if err := s.ToggleMute(payload.RoomCode, payload.IsMuted); err != nil {
			s.sendError(err)
		}

	case TypeLeaveRoom:
		if err := s.Leave(); err != nil {
			s.sendError(err)
		}

	default:
		s.logger.Warn().Str("msg_type", string(inbound.Type)).Msg("Client sent unsupported message type")
		s.sendError(errs.NewError(errs.ErrUnsupportedMessageType, string(inbound.Type)))
	}
}

func (s *Session) decodePayload(inbound InboundMessage, dst any) bool {
	if len(inbound.Payload) == 0 {
		s.sendError(errs.NewError(errs.ErrInvalidParams))
		return false
	}
	if err := json.Unmarshal(inbound.Payload, dst); err != nil {
		s.logger.Warn().Err(err).Str("msg_type", string(inbound.Type)).Msg("Client sent invalid payload")
		s.sendError(errs.NewError(errs.ErrInvalidJSONFormat))
		return false
	}
	return true
}

func validName(value string, maxRunes int) bool {
	return value != "" && utf8.RuneCountInString(value) <= maxRunes
}

// Join adds the session to roomCode, creating the room if needed. On success the
// sender gets room-joined with the member list and every other member gets
// user-joined. A full room answers room-full to the sender only and changes nothing.
func (s *Session) Join(name, roomCode string) *errs.CustomError {
	name = strings.TrimSpace(name)
	roomCode = strings.TrimSpace(roomCode)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateDisconnected:
		return nil
	case stateJoined:
		s.logger.Warn().Str("room_code", s.roomCode).Str("requested_room", roomCode).Msg("Join rejected: already in a room")
		return errs.NewError(errs.ErrAlreadyJoined, s.roomCode)
	}

	if !validName(name, MaxNameRunes) || !validName(roomCode, MaxRoomCodeRunes) {
		return errs.NewError(errs.ErrInvalidParams)
	}

	registry := s.coord.registry
	id := s.conn.ID()

	var room *Room
	for {
		room = registry.GetOrCreate(roomCode)

		_, err := room.TryAdd(s.conn, name)
		if err == nil {
			break
		}

		if err.Code == errs.ErrRoomClosed {
			continue
		}

		registry.RemoveIfEmpty(roomCode)

		if err.Code == errs.ErrRoomIsFull {
			s.send(TypeRoomFull, RoomFullPayload{})
			s.coord.record(ActivityRoomFull, roomCode, id, name)
		}
		return err
	}

	s.state = stateJoined
	s.roomCode = roomCode

	s.send(TypeRoomJoined, RoomJoinedPayload{
		RoomCode: roomCode,
		Users:    room.Snapshot(),
	})

	if data, err := Encode(TypeUserJoined, UserJoinedPayload{ID: id, Name: name}); err != nil {
		s.logger.Error().Err(err).Msg("Failed to build user-joined message.")
	} else {
		room.Broadcast(id, data)
	}

	s.coord.record(ActivityJoin, roomCode, id, name)
	s.logger.Info().Str("room_code", roomCode).Str("name", name).Msg("Session joined room.")
	return nil
}

// RelayAudio forwards one frame to every other member of the session's room. An empty
// roomCode means the current room. Mute state is not checked: clients stop sending
// while muted.
func (s *Session) RelayAudio(roomCode string, audioData json.RawMessage) *errs.CustomError {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkRoom(roomCode); err != nil {
		return err
	}

	if !isJSONArray(audioData) {
		return errs.NewError(errs.ErrInvalidParams)
	}

	room := s.coord.registry.Get(s.roomCode)
	if room == nil {
		return errs.NewError(errs.ErrRoomNotFound)
	}

	id := s.conn.ID()
	data, err := Encode(TypeAudioStream, RelayedAudioPayload{ID: id, AudioData: audioData})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to build audio-stream message.")
		return errs.NewError(errs.ErrUnknown, err)
	}

	room.Broadcast(id, data)
	return nil
}

// ToggleMute records the sender's mute flag and relays it to the other members.
// A sender that is no longer a member is a silent no-op.
func (s *Session) ToggleMute(roomCode string, isMuted bool) *errs.CustomError {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkRoom(roomCode); err != nil {
		return err
	}

	room := s.coord.registry.Get(s.roomCode)
	if room == nil {
		return nil
	}

	id := s.conn.ID()
	if err := room.SetMuted(id, isMuted); err != nil {
		s.logger.Debug().Str("room_code", s.roomCode).Msg("Mute toggle for non-member ignored.")
		return nil
	}

	data, err := Encode(TypeUserMuted, UserMutedPayload{ID: id, IsMuted: isMuted})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to build user-muted message.")
		return errs.NewError(errs.ErrUnknown, err)
	}

	room.Broadcast(id, data)
	return nil
}

// Leave removes the session from its room and returns it to Unjoined.
func (s *Session) Leave() *errs.CustomError {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateDisconnected:
		return nil
	case stateUnjoined:
		return errs.NewError(errs.ErrNotInRoom, "")
	}

	s.leaveRoom()
	s.state = stateUnjoined
	return nil
}

// Disconnect ends the session. It is terminal, idempotent, and valid in any state.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateDisconnected {
		return
	}

	if s.state == stateJoined {
		s.leaveRoom()
	}

	s.state = stateDisconnected
	s.coord.sessions.Add(-1)
	s.logger.Debug().Msg("Session ended.")
}

// leaveRoom removes the member, tells the remaining members, and drops the room if it
// is now empty. Callers hold s.mu and have checked the session is Joined.
func (s *Session) leaveRoom() {
	registry := s.coord.registry
	roomCode := s.roomCode
	id := s.conn.ID()

	s.roomCode = ""

	room := registry.Get(roomCode)
	if room == nil {
		return
	}

	u, ok := room.Remove(id)
	if !ok {
		return
	}

	if data, err := Encode(TypeUserLeft, UserLeftPayload{ID: id}); err != nil {
		s.logger.Error().Err(err).Msg("Failed to build user-left message.")
	} else {
		room.Broadcast(id, data)
	}

	registry.RemoveIfEmpty(roomCode)
	s.coord.record(ActivityLeave, roomCode, id, u.Name)
}

// checkRoom verifies the session is Joined to roomCode (empty matches the current room).
// Callers hold s.mu.
func (s *Session) checkRoom(roomCode string) *errs.CustomError {
	if s.state != stateJoined {
		return errs.NewError(errs.ErrNotInRoom, roomCode)
	}
	if roomCode != "" && roomCode != s.roomCode {
		return errs.NewError(errs.ErrNotInRoom, roomCode)
	}
	return nil
}

func (s *Session) send(msgType MessageType, payload any) {
	data, err := Encode(msgType, payload)
	if err != nil {
		s.logger.Error().Err(err).Str("msg_type", string(msgType)).Msg("Error marshaling message for client")
		return
	}

	if err := s.conn.Send(data); err != nil {
		s.logger.Warn().Err(err).Str("msg_type", string(msgType)).Msg("Failed to queue message for client")
	}
}

func (s *Session) sendError(customErr *errs.CustomError) {
	s.send(TypeError, ErrorPayload{
		Code:    customErr.Code,
		Message: customErr.Message,
	})
}
