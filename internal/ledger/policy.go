package ledger

import (
	"time"

	"github.com/minesa-dev/linked-roles/internal/model"
)

// Policy bundles the anti-abuse thresholds applied to resolution
// events.  It is passed in as configuration rather than hardcoded so
// deployments can tune it and tests can compress the windows.
type Policy struct {
	DailyCap  int            // max accepted events per calendar day
	Cooldown  time.Duration  // min gap between accepted events
	MaxGuilds int            // max distinct guilds per identity
	Day       *time.Location // zone that defines the calendar-day boundary
}

// DefaultPolicy returns the production thresholds: 5 events per day,
// 10 minute cooldown, 3 distinct guilds, server-local day boundary.
func DefaultPolicy() Policy {
	return Policy{
		DailyCap:  5,
		Cooldown:  10 * time.Minute,
		MaxGuilds: 3,
		Day:       time.Local,
	}
}

func (p Policy) location() *time.Location {
	if p.Day != nil {
		return p.Day
	}
	return time.Local
}

// sameDay reports whether a and b fall on the same calendar day in the
// policy's zone.
func (p Policy) sameDay(a, b time.Time) bool {
	loc := p.location()
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// Event is one resolution submitted for crediting.
type Event struct {
	IdentityID string
	GuildID    string
	ThreadID   string
	ActorID    string
	Type       model.ResolutionType
}

// RejectReason names the policy check that rejected an event.  It is
// logged and returned to callers for observability; it is never an
// error.
type RejectReason string

const (
	RejectNone       RejectReason = ""
	RejectDailyCap   RejectReason = "daily_cap"
	RejectCooldown   RejectReason = "cooldown"
	RejectGuildLimit RejectReason = "guild_limit"
)

// Apply runs the policy checks against state and, when the event is
// accepted, applies the state transition in place: bump the daily
// counter, stamp the cooldown, record the guild, and credit
// resolvedCount for "completed" events only.
//
// The day-rollover reset is folded into the same transition: when the
// event lands on a later calendar day than lastResetDate the daily
// counter is zeroed before the cap check.  On rejection the state must
// be discarded by the caller, never persisted — the reset therefore
// only ever lands together with the day's first accepted increment.
func Apply(state *model.LedgerState, ev Event, now time.Time, p Policy) (bool, RejectReason) {
	if !p.sameDay(state.LastResetDate, now) {
		state.ResolutionsToday = 0
		state.LastResetDate = now
	}

	if state.ResolutionsToday >= p.DailyCap {
		return false, RejectDailyCap
	}
	if state.LastResolutionAt != nil && now.Sub(*state.LastResolutionAt) < p.Cooldown {
		return false, RejectCooldown
	}
	if !state.HasGuild(ev.GuildID) && len(state.GuildsSeen) >= p.MaxGuilds {
		return false, RejectGuildLimit
	}

	state.ResolutionsToday++
	ts := now
	state.LastResolutionAt = &ts
	if !state.HasGuild(ev.GuildID) {
		state.GuildsSeen = append(state.GuildsSeen, ev.GuildID)
	}
	if ev.Type == model.ResolutionCompleted {
		state.ResolvedCount++
	}
	return true, RejectNone
}
