package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-cookie-secret"

func TestStateCookieRoundTrip(t *testing.T) {
	sc, err := NewStateCookie(testSecret, 5)
	require.NoError(t, err)
	require.NotEmpty(t, sc.State)
	require.NotEmpty(t, sc.Cookie)

	assert.NoError(t, VerifyStateCookie(testSecret, sc.Cookie, sc.State))
}

func TestStateCookieNonceMismatch(t *testing.T) {
	sc, err := NewStateCookie(testSecret, 5)
	require.NoError(t, err)

	err = VerifyStateCookie(testSecret, sc.Cookie, "attacker-chosen-state")
	assert.ErrorIs(t, err, ErrStateMismatch)
}

func TestStateCookieWrongSecret(t *testing.T) {
	sc, err := NewStateCookie(testSecret, 5)
	require.NoError(t, err)

	err = VerifyStateCookie("other-secret", sc.Cookie, sc.State)
	assert.ErrorIs(t, err, ErrStateMismatch)
}

func TestStateCookieExpired(t *testing.T) {
	// A negative TTL mints an already-expired cookie.
	sc, err := NewStateCookie(testSecret, -1)
	require.NoError(t, err)

	err = VerifyStateCookie(testSecret, sc.Cookie, sc.State)
	assert.ErrorIs(t, err, ErrStateMismatch)
}

func TestStateCookieGarbage(t *testing.T) {
	err := VerifyStateCookie(testSecret, "not-a-jwt", "whatever")
	assert.ErrorIs(t, err, ErrStateMismatch)
}

func TestStateCookiesAreUnique(t *testing.T) {
	a, err := NewStateCookie(testSecret, 5)
	require.NoError(t, err)
	b, err := NewStateCookie(testSecret, 5)
	require.NoError(t, err)
	assert.NotEqual(t, a.State, b.State)
}
