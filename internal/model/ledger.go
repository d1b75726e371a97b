package model

import "time"

// ResolutionType classifies a recorded resolution event.  Only
// "completed" resolutions count toward the linked-role eligibility
// counter; "duplicate" and "comment" are kept for audit purposes.
type ResolutionType string

const (
	ResolutionCompleted ResolutionType = "completed"
	ResolutionDuplicate ResolutionType = "duplicate"
	ResolutionComment   ResolutionType = "comment"
)

// KnownResolutionType reports whether t is one of the accepted enum
// values.  Unknown types are rejected at the API boundary before they
// reach the ledger.
func KnownResolutionType(t ResolutionType) bool {
	switch t {
	case ResolutionCompleted, ResolutionDuplicate, ResolutionComment:
		return true
	}
	return false
}

// Resolution models one row in the `resolutions` table.  Rows are
// append-only: once written they are never updated or deleted by the
// service.
//
// Fields:
//  ID             – primary key identifier.
//  IdentityID     – identity credited with the resolution.
//  GuildID        – guild the resolved thread belongs to.
//  ThreadID       – thread that was resolved.
//  ResolvedBy     – identity of the actor who performed the resolution.
//  ResolutionType – completed | duplicate | comment.
//  ResolvedAt     – UTC timestamp of the event.
type Resolution struct {
	ID             uint64         // resolutions.id
	IdentityID     string         // resolutions.identity_id
	GuildID        string         // resolutions.guild_id
	ThreadID       string         // resolutions.thread_id
	ResolvedBy     string         // resolutions.resolved_by
	ResolutionType ResolutionType // resolutions.resolution_type
	ResolvedAt     time.Time      // resolutions.resolved_at
}

// LedgerState mirrors the `ledger_states` table: per-identity abuse
// counters plus the auxiliary counters exposed as linked-role metadata.
// A row is created lazily on the first accepted event (or first counter
// write) and never deleted here.
//
// Fields:
//  IdentityID       – Discord user ID (unique key).
//  ResolvedCount    – accepted "completed" resolutions; monotonically
//                     non-decreasing.
//  ResolutionsToday – accepted events since the last day rollover.
//  LastResolutionAt – timestamp of the last accepted event, nil before
//                     the first one.
//  LastResetDate    – instant of the last daily-counter reset.  Stored
//                     with full time-of-day: a bare calendar date would
//                     read back as midnight UTC and misclassify same-day
//                     events in non-UTC policy zones.
//  GuildsSeen       – distinct guilds this identity has resolved in;
//                     append-only, stored as a JSON array.
//  TimelapseCount   – aux counter backing the time_master role.
//  TicketCount      – legacy aux counter, kept for schema compatibility.
type LedgerState struct {
	IdentityID       string     // ledger_states.identity_id
	ResolvedCount    int64      // ledger_states.resolved_count
	ResolutionsToday int        // ledger_states.resolutions_today
	LastResolutionAt *time.Time // ledger_states.last_resolution_at (nullable)
	LastResetDate    time.Time  // ledger_states.last_reset_date (DATETIME, UTC)
	GuildsSeen       []string   // ledger_states.guilds_seen (JSON array)
	TimelapseCount   int64      // ledger_states.timelapse_count
	TicketCount      int64      // ledger_states.ticket_count
}

// HasGuild reports whether the identity already resolved in the guild.
func (s LedgerState) HasGuild(guildID string) bool {
	for _, g := range s.GuildsSeen {
		if g == guildID {
			return true
		}
	}
	return false
}
