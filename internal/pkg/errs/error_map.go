/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to the CustomError struct, used to standardize
HTTP responses, WebSocket error events, and internal error handling.
*/
package errs

import "net/http"

// errorMap stores the detailed CustomError struct corresponding to every application error code.
var errorMap = map[int]CustomError{
	// 1xxx: General Request Handling Errors
	ErrInvalidParams:          {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMessageType: {Code: ErrUnsupportedMessageType, Message: "Unsupported message type %q."},
	ErrInvalidJSONFormat:      {Code: ErrInvalidJSONFormat, Message: "Malformed message.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded:      {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: Room and Session Errors
	ErrRoomNotFound:  {Code: ErrRoomNotFound, Message: "Room not found.", Status: http.StatusNotFound},
	ErrRoomIsFull:    {Code: ErrRoomIsFull, Message: "Room is full (max %d users)."},
	ErrRoomClosed:    {Code: ErrRoomClosed, Message: "Room is closing."},
	ErrUserNotFound:  {Code: ErrUserNotFound, Message: "User is not a member of this room."},
	ErrAlreadyJoined: {Code: ErrAlreadyJoined, Message: "Already joined room %q. Leave it first."},
	ErrNotInRoom:     {Code: ErrNotInRoom, Message: "Not a member of room %q."},

	// 3xxx: Security Errors
	ErrUnauthorized: {Code: ErrUnauthorized, Message: "Admin token required.", Status: http.StatusUnauthorized},

	// 5xxx: Internal System Errors
	ErrUnknown:             {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrActivityLogDisabled: {Code: ErrActivityLogDisabled, Message: "Activity log is not enabled.", Status: http.StatusServiceUnavailable},
}
