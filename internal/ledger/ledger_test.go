package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minesa-dev/linked-roles/internal/model"
)

// fakeClock lets tests march time forward deterministically.
type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func testPolicy() Policy {
	return Policy{DailyCap: 5, Cooldown: 10 * time.Minute, MaxGuilds: 3, Day: time.UTC}
}

func newTestLedger(t *testing.T) (*Ledger, *MemoryStore, *fakeClock) {
	t.Helper()
	store := NewMemoryStore()
	clock := &fakeClock{t: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
	l := New(store, testPolicy())
	l.Now = clock.Now
	return l, store, clock
}

func record(t *testing.T, l *Ledger, identity, guild, thread string, typ model.ResolutionType) bool {
	t.Helper()
	accepted, err := l.RecordEvent(context.Background(), identity, guild, thread, "mod-1", typ)
	require.NoError(t, err)
	return accepted
}

func TestRecordEventFirstCompleted(t *testing.T) {
	l, _, _ := newTestLedger(t)

	accepted := record(t, l, "u1", "g1", "t1", model.ResolutionCompleted)
	assert.True(t, accepted)

	state, err := l.State(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), state.ResolvedCount)
	assert.Equal(t, 1, state.ResolutionsToday)
	assert.Equal(t, []string{"g1"}, state.GuildsSeen)
}

func TestRecordEventCooldown(t *testing.T) {
	l, _, clock := newTestLedger(t)

	assert.True(t, record(t, l, "u1", "g1", "t1", model.ResolutionCompleted))

	// 5 minutes later: inside the 10 minute cooldown.
	clock.Advance(5 * time.Minute)
	assert.False(t, record(t, l, "u1", "g1", "t2", model.ResolutionCompleted))

	// 10 minutes after the first event the window has passed.
	clock.Advance(5 * time.Minute)
	assert.True(t, record(t, l, "u1", "g1", "t3", model.ResolutionCompleted))

	state, err := l.State(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), state.ResolvedCount)
	assert.Equal(t, 2, state.ResolutionsToday)
}

func TestRecordEventDailyCap(t *testing.T) {
	l, _, clock := newTestLedger(t)

	for i := 0; i < 5; i++ {
		assert.True(t, record(t, l, "u1", "g1", "t", model.ResolutionCompleted), "event %d", i)
		clock.Advance(11 * time.Minute)
	}

	before, err := l.State(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, 5, before.ResolutionsToday)

	// The sixth event of the day is rejected even though the cooldown has
	// passed, and the rejection leaves the stored state untouched.
	assert.False(t, record(t, l, "u1", "g1", "t6", model.ResolutionCompleted))

	after, err := l.State(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRecordEventDayRollover(t *testing.T) {
	l, _, clock := newTestLedger(t)

	for i := 0; i < 5; i++ {
		assert.True(t, record(t, l, "u1", "g1", "t", model.ResolutionCompleted))
		clock.Advance(11 * time.Minute)
	}
	assert.False(t, record(t, l, "u1", "g1", "t6", model.ResolutionCompleted))

	// Cross midnight in the policy zone; the daily counter resets but the
	// lifetime count carries over.
	clock.t = time.Date(2024, 3, 11, 0, 5, 0, 0, time.UTC)
	assert.True(t, record(t, l, "u1", "g1", "t7", model.ResolutionCompleted))

	state, err := l.State(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, state.ResolutionsToday)
	assert.Equal(t, int64(6), state.ResolvedCount)
}

func TestRecordEventDailyCapHoldsInWesternZone(t *testing.T) {
	// The cap counts per calendar day in the policy zone, not per UTC
	// day.  The local day only rolls over once local midnight passes,
	// even though the UTC date changes partway through.
	store := NewMemoryStore()
	zone := time.FixedZone("UTC-5", -5*60*60)
	clock := &fakeClock{t: time.Date(2024, 3, 10, 22, 0, 0, 0, time.UTC)} // 17:00 local
	l := New(store, Policy{DailyCap: 5, Cooldown: 10 * time.Minute, MaxGuilds: 3, Day: zone})
	l.Now = clock.Now

	for i := 0; i < 5; i++ {
		assert.True(t, record(t, l, "u1", "g1", "t", model.ResolutionCompleted), "event %d", i)
		clock.Advance(30 * time.Minute)
	}

	// 00:30 UTC on March 11 is still 19:30 on March 10 locally.
	assert.False(t, record(t, l, "u1", "g1", "t6", model.ResolutionCompleted))

	state, err := l.State(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 5, state.ResolutionsToday)

	// Local midnight is 05:00 UTC; past it the counter resets.
	clock.t = time.Date(2024, 3, 11, 5, 30, 0, 0, time.UTC)
	assert.True(t, record(t, l, "u1", "g1", "t7", model.ResolutionCompleted))

	state, err = l.State(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, state.ResolutionsToday)
}

func TestApplySameLocalDayKeepsDailyCounter(t *testing.T) {
	// The reset instant carries its time-of-day through storage.  A
	// value collapsed to midnight UTC would read as the previous local
	// day in a western zone, reset the counter on every event and let
	// a capped identity keep earning resolutions.
	zone := time.FixedZone("UTC-5", -5*60*60)
	p := Policy{DailyCap: 5, Cooldown: 10 * time.Minute, MaxGuilds: 3, Day: zone}
	lastResolution := time.Date(2024, 3, 10, 16, 40, 0, 0, time.UTC)
	state := model.LedgerState{
		IdentityID:       "u1",
		ResolvedCount:    5,
		ResolutionsToday: 5,
		LastResolutionAt: &lastResolution,
		LastResetDate:    time.Date(2024, 3, 10, 14, 0, 0, 0, time.UTC), // 09:00 local
		GuildsSeen:       []string{"g1"},
	}
	before := state

	// Noon local on the same day: the cap must hold and the rejection
	// must leave the state untouched.
	now := time.Date(2024, 3, 10, 17, 0, 0, 0, time.UTC)
	ev := Event{IdentityID: "u1", GuildID: "g1", ThreadID: "t6", ActorID: "mod-1", Type: model.ResolutionCompleted}
	accepted, reason := Apply(&state, ev, now, p)
	assert.False(t, accepted)
	assert.Equal(t, RejectDailyCap, reason)
	assert.Equal(t, before.ResolutionsToday, state.ResolutionsToday)
	assert.Equal(t, before.LastResetDate, state.LastResetDate)
}

func TestRecordEventGuildDiversity(t *testing.T) {
	l, _, clock := newTestLedger(t)

	for i, guild := range []string{"g1", "g2", "g3"} {
		assert.True(t, record(t, l, "u1", guild, "t", model.ResolutionCompleted), "guild %d", i)
		clock.Advance(11 * time.Minute)
	}

	// A fourth distinct guild is over the limit.
	assert.False(t, record(t, l, "u1", "g4", "t4", model.ResolutionCompleted))

	// But an already-seen guild is still fine.
	assert.True(t, record(t, l, "u1", "g2", "t5", model.ResolutionCompleted))

	state, err := l.State(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"g1", "g2", "g3"}, state.GuildsSeen)
}

func TestRecordEventOnlyCompletedCounts(t *testing.T) {
	l, _, clock := newTestLedger(t)

	assert.True(t, record(t, l, "u1", "g1", "t1", model.ResolutionDuplicate))
	clock.Advance(11 * time.Minute)
	assert.True(t, record(t, l, "u1", "g1", "t2", model.ResolutionComment))
	clock.Advance(11 * time.Minute)
	assert.True(t, record(t, l, "u1", "g1", "t3", model.ResolutionCompleted))

	state, err := l.State(context.Background(), "u1")
	require.NoError(t, err)
	// All three consumed a daily slot, only the completed one was credited.
	assert.Equal(t, 3, state.ResolutionsToday)
	assert.Equal(t, int64(1), state.ResolvedCount)
}

func TestRecordEventValidation(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := l.RecordEvent(ctx, "", "g1", "t1", "mod-1", model.ResolutionCompleted)
	assert.ErrorIs(t, err, ErrBadEvent)

	_, err = l.RecordEvent(ctx, "u1", "g1", "t1", "mod-1", model.ResolutionType("reopened"))
	assert.ErrorIs(t, err, ErrBadEvent)
}

func TestRecordEventIdentitiesAreIndependent(t *testing.T) {
	l, _, _ := newTestLedger(t)

	assert.True(t, record(t, l, "u1", "g1", "t1", model.ResolutionCompleted))
	// u1 is inside their cooldown; u2 is unaffected by it.
	assert.False(t, record(t, l, "u1", "g1", "t2", model.ResolutionCompleted))
	assert.True(t, record(t, l, "u2", "g1", "t1", model.ResolutionCompleted))
}

func TestHistoryNewestFirst(t *testing.T) {
	l, _, clock := newTestLedger(t)

	for _, thread := range []string{"t1", "t2", "t3"} {
		assert.True(t, record(t, l, "u1", "g1", thread, model.ResolutionCompleted))
		clock.Advance(11 * time.Minute)
	}

	items, err := l.History(context.Background(), "u1", 2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "t3", items[0].ThreadID)
	assert.Equal(t, "t2", items[1].ThreadID)
}

func TestCounters(t *testing.T) {
	l, _, _ := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.IncrementCounter(ctx, "u1", CounterTimelapse))
	require.NoError(t, l.IncrementCounter(ctx, "u1", CounterTimelapse))
	require.NoError(t, l.SetCounter(ctx, "u1", CounterTicket, 7))

	state, err := l.State(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), state.TimelapseCount)
	assert.Equal(t, int64(7), state.TicketCount)

	assert.ErrorIs(t, l.IncrementCounter(ctx, "u1", Counter("karma")), ErrUnknownCounter)
}

func TestResolvedCountUnknownIdentity(t *testing.T) {
	l, _, _ := newTestLedger(t)

	count, err := l.ResolvedCount(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
