package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is what the client can learn about the signed-in user from the
// access token alone.
type Identity struct {
	Username  string
	ExpiresAt time.Time // zero when the token carries no exp claim
}

// IdentityFromToken decodes the backend's JWT without verifying its
// signature and returns the identity it encodes.
//
// WHY UNVERIFIED?
// Verification is the backend's job — the client doesn't hold the signing
// secret and treats the token as opaque for authorization purposes. But the
// backend signs {"sub": <username>} into every token, and decoding that is
// strictly better than the alternative the original client used: fabricating
// a user object with id 0 and an empty email after login. The claims are
// only used for display and proactive expiry detection; the backend's 401
// remains the sole authoritative failure signal.
func IdentityFromToken(token string) (Identity, error) {
	parser := jwt.NewParser()

	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return Identity{}, fmt.Errorf("session: decoding token: %w", err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Identity{}, fmt.Errorf("session: token has no subject claim")
	}

	identity := Identity{Username: sub}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		identity.ExpiresAt = exp.Time
	}
	return identity, nil
}
