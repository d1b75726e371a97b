// Package queue defines message payloads exchanged over the message broker.
package queue

// ResolutionEvent is published by the support bot whenever a helper
// resolves a ticket thread.  The consumer credits it to the ledger and,
// when accepted, resynchronizes the helper's linked-role metadata.
type ResolutionEvent struct {
	IdentityID     string `json:"identity_id"`
	GuildID        string `json:"guild_id"`
	ThreadID       string `json:"thread_id"`
	ResolvedBy     string `json:"resolved_by"`
	ResolutionType string `json:"resolution_type"`
	ResolvedAt     string `json:"resolved_at"`
}

// MetadataSyncedEvent is published after a successful metadata push so
// downstream consumers (audit log, analytics) can observe role changes
// without querying the primary database.
type MetadataSyncedEvent struct {
	IdentityID    string         `json:"identity_id"`
	ResolvedCount int64          `json:"resolved_count"`
	Metadata      map[string]any `json:"metadata"`
	SyncedAt      string         `json:"synced_at"`
}
