package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minesa-dev/linked-roles/internal/ledger"
	"github.com/minesa-dev/linked-roles/internal/model"
)

type fakeRecorder struct {
	accepted bool
	err      error
	events   []string
}

func (f *fakeRecorder) RecordEvent(_ context.Context, identityID, guildID, threadID, actorID string, typ model.ResolutionType) (bool, error) {
	f.events = append(f.events, identityID)
	return f.accepted, f.err
}

type fakeSyncer struct{ synced []string }

func (f *fakeSyncer) Synchronize(_ context.Context, identityID string) error {
	f.synced = append(f.synced, identityID)
	return nil
}

func TestHandleMessageAcceptedEventSyncs(t *testing.T) {
	rec := &fakeRecorder{accepted: true}
	syn := &fakeSyncer{}

	body := []byte(`{"identity_id":"u1","guild_id":"g1","thread_id":"t1","resolved_by":"mod-1","resolution_type":"completed"}`)
	require.NoError(t, handleMessage(body, rec, syn))

	assert.Equal(t, []string{"u1"}, rec.events)
	assert.Equal(t, []string{"u1"}, syn.synced)
}

func TestHandleMessageRejectedEventIsAcked(t *testing.T) {
	rec := &fakeRecorder{accepted: false}
	syn := &fakeSyncer{}

	body := []byte(`{"identity_id":"u1","guild_id":"g1","thread_id":"t1","resolved_by":"mod-1","resolution_type":"completed"}`)
	// A policy rejection is a handled outcome, not a processing failure.
	require.NoError(t, handleMessage(body, rec, syn))
	assert.Empty(t, syn.synced, "rejected events must not push metadata")
}

func TestHandleMessageMalformedPayload(t *testing.T) {
	rec := &fakeRecorder{}
	err := handleMessage([]byte("not json"), rec, nil)
	assert.ErrorIs(t, err, errBadPayload)
	assert.Empty(t, rec.events)
}

func TestHandleMessageBadEventIsNotRequeued(t *testing.T) {
	rec := &fakeRecorder{err: ledger.ErrBadEvent}
	body := []byte(`{"identity_id":"","guild_id":"g1"}`)

	err := handleMessage(body, rec, nil)
	assert.ErrorIs(t, err, ledger.ErrBadEvent)
}

func TestHandleMessageStoreErrorPropagates(t *testing.T) {
	storeErr := errors.New("connection reset")
	rec := &fakeRecorder{err: storeErr}
	body := []byte(`{"identity_id":"u1","guild_id":"g1","thread_id":"t1","resolved_by":"m1","resolution_type":"completed"}`)

	err := handleMessage(body, rec, nil)
	assert.ErrorIs(t, err, storeErr)
	assert.NotErrorIs(t, err, ledger.ErrBadEvent)
}
