/*
Package errs provides custom error types and application-level error code constants.

These error codes identify specific relay, session, and system errors both inside the
server and in the error messages sent to clients over HTTP and WebSocket.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request or event parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMessageType indicates that a WebSocket event type is not recognised.
	ErrUnsupportedMessageType = 1002

	// ErrInvalidJSONFormat indicates that the request body or event JSON is malformed.
	ErrInvalidJSONFormat = 1003

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Room and Session Errors
const (
	// ErrRoomNotFound indicates that the referenced room is not active.
	ErrRoomNotFound = 2103

	// ErrRoomIsFull indicates that the room being joined has reached its capacity.
	ErrRoomIsFull = 2104

	// ErrRoomClosed indicates the room was removed from the registry while being joined.
	ErrRoomClosed = 2105

	// ErrUserNotFound indicates that the connection is not a member of the room.
	ErrUserNotFound = 2106

	// ErrAlreadyJoined indicates that the connection already belongs to a room.
	ErrAlreadyJoined = 2107

	// ErrNotInRoom indicates an event referenced a room the connection has not joined.
	ErrNotInRoom = 2108
)

// 3xxx: Security Errors
const (
	// ErrUnauthorized indicates a missing or invalid admin token.
	ErrUnauthorized = 3005
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrActivityLogDisabled indicates the server runs without a database.
	ErrActivityLogDisabled = 5001
)
