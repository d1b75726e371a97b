package utils // package utils provides helper functions for OAuth state handling

import (
	"errors" // sentinel error construction
	"time"   // expiry calculation for state cookies

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
	"github.com/google/uuid"       // random nonce generation for the state value
)

// ErrStateMismatch is returned by VerifyStateCookie when the state echoed
// back by the authorization server does not match the one sealed in the
// visitor's cookie, or when the cookie is expired or tampered with.  The
// caller must treat this as a failed link attempt and perform no side
// effects.
var ErrStateMismatch = errors.New("oauth state mismatch")

// StateCookie holds a freshly minted OAuth state nonce together with the
// signed cookie value that seals it.  The State field is appended to the
// authorization URL; the Cookie field is set on the visitor's browser so
// the callback can verify the round trip.
type StateCookie struct {
	State  string    // random nonce sent to the authorization server
	Cookie string    // signed JWT bound to the same nonce
	Exp    time.Time // UTC expiration of the cookie
}

// NewStateCookie generates a random state nonce and seals it inside a
// short-lived HS256 JWT.  The secret signs the cookie so the callback can
// detect tampering, and ttlMin bounds how long a pending link attempt
// stays valid.
func NewStateCookie(secret string, ttlMin int) (StateCookie, error) {
	state := uuid.NewString()
	exp := time.Now().UTC().Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"state": state,
		"exp":   exp.Unix(),
		"iat":   time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return StateCookie{}, err
	}
	return StateCookie{State: state, Cookie: signed, Exp: exp}, nil
}

// VerifyStateCookie checks that the state parameter returned by the
// authorization server matches the nonce sealed in the signed cookie.
// Any parse failure, signature mismatch, expiry, or nonce mismatch is
// reported as ErrStateMismatch so callers have a single failure path.
func VerifyStateCookie(secret, cookie, state string) error {
	token, err := jwt.Parse(cookie, func(t *jwt.Token) (interface{}, error) {
		// Reject any token not signed with HMAC to prevent algorithm
		// substitution attacks.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return ErrStateMismatch
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ErrStateMismatch
	}
	sealed, ok := claims["state"].(string)
	if !ok || sealed == "" || sealed != state {
		return ErrStateMismatch
	}
	return nil
}
