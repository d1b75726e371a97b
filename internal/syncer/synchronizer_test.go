package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minesa-dev/linked-roles/internal/discord"
	"github.com/minesa-dev/linked-roles/internal/model"
	"github.com/minesa-dev/linked-roles/internal/policy"
	"github.com/minesa-dev/linked-roles/internal/queue"
	"github.com/minesa-dev/linked-roles/internal/repository"
)

type fakeCredentials struct {
	record model.TokenRecord
	err    error
}

func (f *fakeCredentials) Get(context.Context, string) (model.TokenRecord, error) {
	return f.record, f.err
}

type fakeTokens struct{ token string }

func (f *fakeTokens) AccessToken(context.Context, model.TokenRecord) (string, error) {
	return f.token, nil
}

type fakeDiscord struct {
	profile    discord.Profile
	putErr     error
	puts       []discord.MetadataPayload
	profileHit int
}

func (f *fakeDiscord) Profile(context.Context, string) (discord.Profile, error) {
	f.profileHit++
	return f.profile, nil
}

func (f *fakeDiscord) PutMetadata(_ context.Context, _ string, payload discord.MetadataPayload) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.puts = append(f.puts, payload)
	return nil
}

type fakeLedger struct{ state model.LedgerState }

func (f *fakeLedger) State(_ context.Context, identityID string) (model.LedgerState, error) {
	s := f.state
	s.IdentityID = identityID
	return s, nil
}

func newTestSynchronizer(dc *fakeDiscord, state model.LedgerState) *Synchronizer {
	return &Synchronizer{
		Credentials: &fakeCredentials{record: model.TokenRecord{
			IdentityID:   "u1",
			AccessToken:  "tok",
			RefreshToken: "r1",
			ExpiresAt:    time.Now().Add(time.Hour),
		}},
		Tokens:       &fakeTokens{token: "tok"},
		Discord:      dc,
		Ledger:       &fakeLedger{state: state},
		Roles:        policy.NewStatic([]string{"is_dev"}, map[string][]string{"is_dev": {"u1"}}),
		PlatformName: "Minesa",
	}
}

func TestSynchronizeNotLinkedIsNoOp(t *testing.T) {
	dc := &fakeDiscord{}
	s := newTestSynchronizer(dc, model.LedgerState{})
	s.Credentials = &fakeCredentials{err: repository.ErrNotLinked}

	require.NoError(t, s.Synchronize(context.Background(), "stranger"))
	assert.Zero(t, dc.profileHit, "no Discord call for unlinked identities")
	assert.Empty(t, dc.puts)
}

func TestSynchronizePushesDerivedPayload(t *testing.T) {
	dc := &fakeDiscord{profile: discord.Profile{ID: "u1", Username: "mina"}}
	s := newTestSynchronizer(dc, model.LedgerState{ResolvedCount: 12, TimelapseCount: 11})

	require.NoError(t, s.Synchronize(context.Background(), "u1"))
	require.Len(t, dc.puts, 1)

	payload := dc.puts[0]
	assert.Equal(t, "Minesa", payload.PlatformName)
	assert.Equal(t, "@mina", payload.PlatformUsername)
	// Counters are pushed as decimal strings, eligibility as booleans.
	assert.Equal(t, "12", payload.Metadata[resolvedCountKey])
	assert.Equal(t, true, payload.Metadata["is_dev"])
}

func TestSynchronizeIneligibleRoleIsFalseNotOmitted(t *testing.T) {
	dc := &fakeDiscord{profile: discord.Profile{ID: "u2", Username: "guest"}}
	s := newTestSynchronizer(dc, model.LedgerState{})

	require.NoError(t, s.Synchronize(context.Background(), "u2"))
	require.Len(t, dc.puts, 1)
	// The PUT is a full replace; a revoked role must be written as false.
	assert.Equal(t, false, dc.puts[0].Metadata["is_dev"])
}

func TestSynchronizeTimeMasterFromLedger(t *testing.T) {
	dc := &fakeDiscord{profile: discord.Profile{ID: "u1", Username: "mina"}}
	state := model.LedgerState{TimelapseCount: 10}
	s := newTestSynchronizer(dc, state)
	s.Roles = policy.NewFromLedger(&fakeLedger{state: state})

	require.NoError(t, s.Synchronize(context.Background(), "u1"))
	require.Len(t, dc.puts, 1)
	assert.Equal(t, true, dc.puts[0].Metadata[policy.TimeMasterKey])
}

func TestSynchronizeWriteErrorPropagates(t *testing.T) {
	dc := &fakeDiscord{
		profile: discord.Profile{ID: "u1", Username: "mina"},
		putErr:  &discord.MetadataWriteError{Status: 401, Body: "Unauthorized"},
	}
	s := newTestSynchronizer(dc, model.LedgerState{})

	err := s.Synchronize(context.Background(), "u1")
	var wErr *discord.MetadataWriteError
	require.ErrorAs(t, err, &wErr)
	assert.Equal(t, 401, wErr.Status)
}

func TestSynchronizePublishesAuditEvent(t *testing.T) {
	dc := &fakeDiscord{profile: discord.Profile{ID: "u1", Username: "mina"}}
	s := newTestSynchronizer(dc, model.LedgerState{ResolvedCount: 3})

	var published []queue.MetadataSyncedEvent
	s.Publish = func(_ context.Context, ev queue.MetadataSyncedEvent) error {
		published = append(published, ev)
		return nil
	}

	require.NoError(t, s.Synchronize(context.Background(), "u1"))
	require.Len(t, published, 1)
	assert.Equal(t, "u1", published[0].IdentityID)
	assert.Equal(t, int64(3), published[0].ResolvedCount)
}

func TestSynchronizePublishFailureIsSwallowed(t *testing.T) {
	dc := &fakeDiscord{profile: discord.Profile{ID: "u1", Username: "mina"}}
	s := newTestSynchronizer(dc, model.LedgerState{})
	s.Publish = func(context.Context, queue.MetadataSyncedEvent) error {
		return errors.New("broker down")
	}

	// The push already landed; a dead broker must not fail the sync.
	require.NoError(t, s.Synchronize(context.Background(), "u1"))
	assert.Len(t, dc.puts, 1)
}
