// Package syncer derives the linked-role metadata payload from ledger
// state and pushes it to Discord.  Each Synchronize call is a fresh
// read-compute-write cycle: nothing is cached between calls, so the
// pushed payload always reflects current counters (last writer wins
// under concurrency, which is acceptable for this data).
package syncer

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/minesa-dev/linked-roles/internal/discord"
	"github.com/minesa-dev/linked-roles/internal/model"
	"github.com/minesa-dev/linked-roles/internal/policy"
	"github.com/minesa-dev/linked-roles/internal/queue"
	"github.com/minesa-dev/linked-roles/internal/repository"
)

// resolvedCountKey is the registered integer metadata key the resolved
// ticket counter is pushed under.
const resolvedCountKey = "issue_tracker"

// CredentialGetter loads the stored token record for an identity.
type CredentialGetter interface {
	Get(ctx context.Context, identityID string) (model.TokenRecord, error)
}

// TokenSource turns a stored record into a currently-valid access token.
type TokenSource interface {
	AccessToken(ctx context.Context, record model.TokenRecord) (string, error)
}

// DiscordAPI is the slice of the Discord client the synchronizer uses.
type DiscordAPI interface {
	Profile(ctx context.Context, accessToken string) (discord.Profile, error)
	PutMetadata(ctx context.Context, accessToken string, payload discord.MetadataPayload) error
}

// LedgerReader exposes the counter snapshot the payload is derived from.
type LedgerReader interface {
	State(ctx context.Context, identityID string) (model.LedgerState, error)
}

// Synchronizer is stateless between calls; all fields are read-only
// after construction.
type Synchronizer struct {
	Credentials  CredentialGetter
	Tokens       TokenSource
	Discord      DiscordAPI
	Ledger       LedgerReader
	Roles        policy.Provider
	PlatformName string

	// Publish, when set, emits an audit event after a successful push.
	// Publishing is best-effort: failures are logged, never returned.
	Publish func(ctx context.Context, ev queue.MetadataSyncedEvent) error
}

// Synchronize recomputes the identity's metadata payload and pushes it.
// Identities with no stored credential are skipped silently: an
// unlinked user simply has nothing to sync.  Discord errors propagate
// unchanged and never mutate ledger data.
func (s *Synchronizer) Synchronize(ctx context.Context, identityID string) error {
	record, err := s.Credentials.Get(ctx, identityID)
	if errors.Is(err, repository.ErrNotLinked) {
		log.Printf("syncer: skip identity=%s, not linked", identityID)
		return nil
	}
	if err != nil {
		return err
	}

	token, err := s.Tokens.AccessToken(ctx, record)
	if err != nil {
		return err
	}
	profile, err := s.Discord.Profile(ctx, token)
	if err != nil {
		return err
	}

	state, err := s.Ledger.State(ctx, identityID)
	if err != nil {
		return err
	}
	metadata, err := s.buildMetadata(ctx, identityID, state)
	if err != nil {
		return err
	}

	payload := discord.MetadataPayload{
		PlatformName:     s.PlatformName,
		PlatformUsername: "@" + profile.Username,
		Metadata:         metadata,
	}
	if err := s.Discord.PutMetadata(ctx, token, payload); err != nil {
		return err
	}
	log.Printf("syncer: pushed metadata | identity=%s resolved=%d", identityID, state.ResolvedCount)

	if s.Publish != nil {
		ev := queue.MetadataSyncedEvent{
			IdentityID:    identityID,
			ResolvedCount: state.ResolvedCount,
			Metadata:      metadata,
			SyncedAt:      time.Now().UTC().Format(time.RFC3339),
		}
		if err := s.Publish(ctx, ev); err != nil {
			log.Printf("syncer: publish sync event failed | identity=%s err=%v", identityID, err)
		}
	}
	return nil
}

// buildMetadata assembles the flat key/value payload: one boolean per
// eligibility role key plus the numeric counters as decimal strings.
func (s *Synchronizer) buildMetadata(ctx context.Context, identityID string, state model.LedgerState) (map[string]any, error) {
	metadata := map[string]any{}
	if s.Roles != nil {
		for _, key := range s.Roles.RoleKeys() {
			eligible, err := s.Roles.Eligible(ctx, identityID, key)
			if err != nil {
				return nil, err
			}
			metadata[key] = eligible
		}
	}
	metadata[resolvedCountKey] = strconv.FormatInt(state.ResolvedCount, 10)
	return metadata, nil
}
