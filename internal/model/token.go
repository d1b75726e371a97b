package model

import "time"

// TokenRecord mirrors the `discord_tokens` table.  One row exists per
// linked Discord identity and holds the OAuth credential pair issued by
// the provider.  The row is replaced wholesale on every completed OAuth
// flow and on every refresh; it is never partially updated, so
// ExpiresAt is always consistent with AccessToken.
//
// Fields:
//  IdentityID   – Discord user ID (unique key).
//  AccessToken  – current bearer token for API calls.
//  RefreshToken – long-lived token used to mint new access tokens.
//  ExpiresAt    – UTC instant after which AccessToken is stale.
type TokenRecord struct {
	IdentityID   string    // discord_tokens.identity_id
	AccessToken  string    // discord_tokens.access_token
	RefreshToken string    // discord_tokens.refresh_token
	ExpiresAt    time.Time // discord_tokens.expires_at
}

// Valid reports whether the access token can still be used at the given
// instant.  ExpiresAt is authoritative; callers must not inspect the
// token itself.
func (t TokenRecord) Valid(now time.Time) bool {
	return now.Before(t.ExpiresAt)
}
