/*
Package chat contains the room/session coordination core of the relay: the room
registry, rooms and their members, the per-connection session state machine, and the
WebSocket client that carries events to and from a browser.

This file defines the wire protocol. Every frame in both directions is a JSON envelope
{"type": ..., "payload": {...}}.
*/
package chat

import (
	"bytes"
	"encoding/json"

	"voicerelay/internal/app/user"
)

// MessageType names an event on the wire.
type MessageType string

// Client to server events.
const (
	TypeJoinRoom   MessageType = "join-room"
	TypeLeaveRoom  MessageType = "leave-room"
	TypeToggleMute MessageType = "toggle-mute"
)

// TypeAudioStream is used in both directions: clients send frames with a room code,
// the server relays them tagged with the sender identity.
const TypeAudioStream MessageType = "audio-stream"

// Server to client events.
const (
	TypeConnected  MessageType = "connected"
	TypeRoomFull   MessageType = "room-full"
	TypeRoomJoined MessageType = "room-joined"
	TypeUserJoined MessageType = "user-joined"
	TypeUserLeft   MessageType = "user-left"
	TypeUserMuted  MessageType = "user-muted"
	TypeError      MessageType = "error"
)

// InboundMessage is the envelope of a client frame. The payload is decoded lazily
// by the handler for its type.
type InboundMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message is the envelope of a server frame.
type Message struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload"`
}

// JoinRoomPayload is sent by a client to enter a room.
type JoinRoomPayload struct {
	Name     string `json:"name"`
	RoomCode string `json:"roomCode"`
}

// AudioStreamPayload carries one captured frame from a client. AudioData stays raw
// so samples are relayed without being decoded and re-encoded.
type AudioStreamPayload struct {
	RoomCode  string          `json:"roomCode"`
	AudioData json.RawMessage `json:"audioData"`
}

// ToggleMutePayload reports a client's own mute state.
type ToggleMutePayload struct {
	RoomCode string `json:"roomCode"`
	IsMuted  bool   `json:"isMuted"`
}

// ConnectedPayload tells a new connection its identity.
type ConnectedPayload struct {
	ID string `json:"id"`
}

// RoomFullPayload is intentionally empty on the wire.
type RoomFullPayload struct{}

// RoomJoinedPayload initialises a joining client's view, members in join order.
type RoomJoinedPayload struct {
	RoomCode string      `json:"roomCode"`
	Users    []user.User `json:"users"`
}

// UserJoinedPayload announces a new member to the existing ones.
type UserJoinedPayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UserLeftPayload announces a departure to the remaining members.
type UserLeftPayload struct {
	ID string `json:"id"`
}

// RelayedAudioPayload is an audio frame as delivered to the other members.
type RelayedAudioPayload struct {
	ID        string          `json:"id"`
	AudioData json.RawMessage `json:"audioData"`
}

// UserMutedPayload relays a member's mute toggle.
type UserMutedPayload struct {
	ID      string `json:"id"`
	IsMuted bool   `json:"isMuted"`
}

// ErrorPayload reports a rejected event to its sender.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Encode marshals a server frame.
func Encode(msgType MessageType, payload any) ([]byte, error) {
	return json.Marshal(Message{Type: msgType, Payload: payload})
}

// isJSONArray reports whether raw holds a JSON array. raw has already been
// validated by the envelope decode, so only the shape is checked here.
func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) >= 2 && trimmed[0] == '[' && trimmed[len(trimmed)-1] == ']'
}
