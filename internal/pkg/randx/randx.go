/*
Package randx generates identifiers: UUID v4 connection identities and short
random room codes for clients that want the server to pick one.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the total number of characters in the Base62 character set (62).
	Base62Len = int64(len(Base62Chars))

	// RoomCodeLength is the length of generated room codes.
	RoomCodeLength = 6
)

// ConnectionID returns a fresh UUID v4 string. Identities are never reused.
func ConnectionID() string {
	return uuid.NewString()
}

// IsConnectionID reports whether s parses as a UUID.
func IsConnectionID(s string) bool {
	return uuid.Validate(s) == nil
}

// RoomCode generates a Base62 room code using crypto/rand.
func RoomCode() (string, error) {
	result := make([]byte, RoomCodeLength)

	for i := 0; i < RoomCodeLength; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number for room code: %w", err)
		}

		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}
