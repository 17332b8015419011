/*
Package user defines the participant record owned by a room.
*/
package user

// User is a room member as seen by other members.
type User struct {
	// ID is the connection identity the user joined with.
	ID string `json:"id"`

	// Name is the display name chosen at join time.
	Name string `json:"name"`

	// Muted is the self-reported mute flag. The relay does not gate audio on it.
	Muted bool `json:"muted"`
}
