// Package broker owns the access-token lifecycle for linked identities.
// Handlers and the synchronizer never talk to the token endpoint
// themselves; they hand a stored TokenRecord to the broker and get back
// a currently-valid access token, with refresh and persistence handled
// transparently.
package broker

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/minesa-dev/linked-roles/internal/discord"
	"github.com/minesa-dev/linked-roles/internal/model"
)

// CredentialStore is the persistence surface the broker needs: one
// token record per identity, replaced atomically on refresh.
type CredentialStore interface {
	Get(ctx context.Context, identityID string) (model.TokenRecord, error)
	Put(ctx context.Context, record model.TokenRecord) error
}

// Refresher performs the refresh-token exchange.  *discord.Client
// satisfies it; tests substitute fakes.
type Refresher interface {
	RefreshCredentials(ctx context.Context, refreshToken string) (discord.Credentials, error)
}

// Broker returns valid access tokens, refreshing lazily on expiry.
type Broker struct {
	Store   CredentialStore
	Discord Refresher
	Now     func() time.Time // injectable clock; defaults to time.Now
}

func New(store CredentialStore, d Refresher) *Broker {
	return &Broker{Store: store, Discord: d, Now: time.Now}
}

// AccessToken returns a currently-valid access token for the identity
// in record.  When the stored token is still fresh it is returned
// unchanged with no I/O.  Otherwise the broker exchanges the refresh
// token, persists the full replacement record, and returns the new
// access token.
//
// Two callers may observe the same expired record and race the refresh.
// If Discord treats refresh tokens as single-use, the loser's exchange
// fails; the loser then re-reads the now-updated record and retries
// once before surfacing *discord.RefreshError.
func (b *Broker) AccessToken(ctx context.Context, record model.TokenRecord) (string, error) {
	now := b.now()
	if record.Valid(now) {
		return record.AccessToken, nil
	}

	token, err := b.refresh(ctx, record)
	if err == nil {
		return token, nil
	}
	var refreshErr *discord.RefreshError
	if !errors.As(err, &refreshErr) {
		return "", err
	}

	// The provider rejected the refresh token.  A concurrent refresh may
	// have rotated the stored record already; re-read once and either use
	// the winner's token or retry with the rotated refresh token.
	current, getErr := b.Store.Get(ctx, record.IdentityID)
	if getErr != nil {
		return "", err
	}
	if current.Valid(b.now()) {
		return current.AccessToken, nil
	}
	if current.RefreshToken != record.RefreshToken {
		log.Printf("broker: refresh race detected for identity=%s, retrying with rotated token", record.IdentityID)
		return b.refresh(ctx, current)
	}
	return "", err
}

// refresh performs one refresh exchange and persists the replacement
// record.  The record is replaced wholesale, never merged.
func (b *Broker) refresh(ctx context.Context, record model.TokenRecord) (string, error) {
	creds, err := b.Discord.RefreshCredentials(ctx, record.RefreshToken)
	if err != nil {
		return "", err
	}
	next := model.TokenRecord{
		IdentityID:   record.IdentityID,
		AccessToken:  creds.AccessToken,
		RefreshToken: creds.RefreshToken,
		ExpiresAt:    b.now().Add(time.Duration(creds.ExpiresIn) * time.Second),
	}
	if next.RefreshToken == "" {
		// Some grants omit the rotated refresh token; keep the old one so
		// the identity stays refreshable.
		next.RefreshToken = record.RefreshToken
	}
	if err := b.Store.Put(ctx, next); err != nil {
		return "", err
	}
	return next.AccessToken, nil
}

func (b *Broker) now() time.Time {
	if b.Now != nil {
		return b.Now().UTC()
	}
	return time.Now().UTC()
}
