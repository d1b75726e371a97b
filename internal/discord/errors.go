// Package discord wraps the handful of Discord HTTP calls the service
// depends on: the OAuth2 token endpoint (code exchange and refresh), the
// profile endpoint, and the per-user role-connection metadata resource.
// Each call performs exactly one request with exactly one bearer token
// and never retries; retry policy belongs to the caller.
//
// Every failure mode of a call maps to that call's error type, including
// transport failures and timeouts where no HTTP response ever arrived:
// those carry Status 0 with the underlying error text in Body.
package discord

import "fmt"

// ExchangeError reports a failed authorization-code exchange.  Status
// and Body carry the upstream response verbatim for diagnostics.
type ExchangeError struct {
	Status int
	Body   string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("discord: code exchange failed: [%d] %s", e.Status, e.Body)
}

// RefreshError reports a failed refresh-token exchange.  Callers must
// treat it as "identity needs to re-authorize" and must not retry the
// same refresh token automatically.
type RefreshError struct {
	Status int
	Body   string
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("discord: token refresh failed: [%d] %s", e.Status, e.Body)
}

// ProfileFetchError reports a failed /oauth2/@me lookup.
type ProfileFetchError struct {
	Status int
	Body   string
}

func (e *ProfileFetchError) Error() string {
	return fmt.Sprintf("discord: profile fetch failed: [%d] %s", e.Status, e.Body)
}

// MetadataWriteError reports a failed role-connection metadata PUT.
type MetadataWriteError struct {
	Status int
	Body   string
}

func (e *MetadataWriteError) Error() string {
	return fmt.Sprintf("discord: metadata write failed: [%d] %s", e.Status, e.Body)
}

// MetadataReadError reports a failed role-connection metadata GET.
type MetadataReadError struct {
	Status int
	Body   string
}

func (e *MetadataReadError) Error() string {
	return fmt.Sprintf("discord: metadata read failed: [%d] %s", e.Status, e.Body)
}
