package chat

import "time"

// ActivityKind classifies a membership change.
type ActivityKind string

const (
	ActivityJoin     ActivityKind = "join"
	ActivityLeave    ActivityKind = "leave"
	ActivityRoomFull ActivityKind = "room_full"
)

// Activity is one membership change, as stored by an ActivityRecorder.
type Activity struct {
	Kind     ActivityKind `json:"kind"`
	RoomCode string       `json:"roomCode"`
	ConnID   string       `json:"id"`
	Name     string       `json:"name"`
	At       time.Time    `json:"at"`
}

// ActivityRecorder receives membership changes. Record is called on the event path
// and must not block on I/O.
type ActivityRecorder interface {
	Record(a Activity)
}

type noopRecorder struct{}

func (noopRecorder) Record(Activity) {}

// NoopRecorder discards all activity.
var NoopRecorder ActivityRecorder = noopRecorder{}
