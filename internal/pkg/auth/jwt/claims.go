package jwt

import "github.com/golang-jwt/jwt"

// RoleAdmin is the only role accepted by the admin API.
const RoleAdmin = "admin"

// Payload defines the claims of an operator token for the relay's admin API.
type Payload struct {
	// StandardClaims carries expiry, issue time and issuer.
	jwt.StandardClaims `json:"standard_claims"`

	// Operator names who the token was minted for; it shows up in request logs.
	Operator string `json:"operator"`

	// Role must equal RoleAdmin for the admin middleware to accept the token.
	Role string `json:"role"`
}
