// Package auth verifies the join tokens presented at channel-open time.
// Tokens are issued by the external identity service; this core only
// validates them and extracts the participant identity.
package auth

import (
	"errors"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"liveroom/pkg/types"
)

var (
	ErrInvalidToken = errors.New("invalid join token")
	ErrWrongRoom    = errors.New("token not issued for this room")
)

// Claims are the join-token claims. Subject is the participant id.
type Claims struct {
	Role string `json:"role"`
	Room string `json:"room"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 join tokens against a shared secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses the token and checks it grants access to roomID.
// Returns the participant id and role on success.
func (v *Verifier) Verify(token, roomID string) (userID, role string, err error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", "", ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return "", "", ErrInvalidToken
	}
	if !types.IsValidUserID(claims.Subject) || !types.IsValidRole(claims.Role) {
		return "", "", ErrInvalidToken
	}
	if claims.Room != roomID {
		return "", "", ErrWrongRoom
	}
	return claims.Subject, claims.Role, nil
}

// Sign issues a join token. Exists for tests and local tooling; in
// production tokens come from the identity service.
func (v *Verifier) Sign(userID, role, roomID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		Room: roomID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
