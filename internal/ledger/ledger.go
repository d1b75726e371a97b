// Package ledger records resolution events against per-identity abuse
// counters and derives the numbers the linked-role metadata is built
// from.  Acceptance is decided by a configurable Policy; rejection is a
// normal outcome, not an error, so callers can answer "too many
// requests" instead of "server error".
package ledger

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/minesa-dev/linked-roles/internal/model"
)

// Counter names an auxiliary per-identity counter tracked alongside the
// resolution state.  Counters map to fixed columns; unknown names are
// rejected before they reach SQL.
type Counter string

const (
	CounterTimelapse Counter = "timelapse"
	CounterTicket    Counter = "ticket"
)

// KnownCounter reports whether c is a tracked counter.
func KnownCounter(c Counter) bool {
	return c == CounterTimelapse || c == CounterTicket
}

var (
	// ErrBadEvent is returned when a submitted event is missing required
	// fields or names an unknown resolution type.
	ErrBadEvent = errors.New("ledger: invalid resolution event")
	// ErrUnknownCounter is returned for counter names outside the fixed set.
	ErrUnknownCounter = errors.New("ledger: unknown counter")
)

// Store is the persistence surface of the ledger.  RecordEvent must
// execute load-evaluate-persist as one per-identity transaction so two
// concurrent events for the same identity cannot both read and write
// the same counters (lost update).  Implementations persist state only
// when the event is accepted.
type Store interface {
	RecordEvent(ctx context.Context, ev Event, now time.Time, p Policy) (bool, RejectReason, error)
	State(ctx context.Context, identityID string) (model.LedgerState, error)
	History(ctx context.Context, identityID string, limit int) ([]model.Resolution, error)
	IncrementCounter(ctx context.Context, identityID string, c Counter) error
	SetCounter(ctx context.Context, identityID string, c Counter, value int64) error
}

// Ledger is the application-facing service: it validates events,
// stamps them with the configured clock, and delegates the transactional
// work to the Store.
type Ledger struct {
	store  Store
	policy Policy
	Now    func() time.Time // injectable clock; defaults to time.Now
}

func New(store Store, policy Policy) *Ledger {
	return &Ledger{store: store, policy: policy, Now: time.Now}
}

// RecordEvent submits one resolution for crediting and reports whether
// the policy accepted it.  A false result leaves all persisted state
// untouched.
func (l *Ledger) RecordEvent(ctx context.Context, identityID, guildID, threadID, actorID string, typ model.ResolutionType) (bool, error) {
	if identityID == "" || guildID == "" || threadID == "" || actorID == "" || !model.KnownResolutionType(typ) {
		return false, ErrBadEvent
	}
	ev := Event{
		IdentityID: identityID,
		GuildID:    guildID,
		ThreadID:   threadID,
		ActorID:    actorID,
		Type:       typ,
	}
	accepted, reason, err := l.store.RecordEvent(ctx, ev, l.now(), l.policy)
	if err != nil {
		return false, err
	}
	if !accepted {
		log.Printf("ledger: rejected resolution | identity=%s guild=%s reason=%s", identityID, guildID, reason)
	}
	return accepted, nil
}

// ResolvedCount returns the identity's lifetime count of accepted
// "completed" resolutions.  Identities with no ledger row count as 0.
func (l *Ledger) ResolvedCount(ctx context.Context, identityID string) (int64, error) {
	state, err := l.store.State(ctx, identityID)
	if err != nil {
		return 0, err
	}
	return state.ResolvedCount, nil
}

// State returns the full counter snapshot for an identity.  A zero
// LedgerState (with IdentityID filled in) is returned when the identity
// has no row yet.
func (l *Ledger) State(ctx context.Context, identityID string) (model.LedgerState, error) {
	return l.store.State(ctx, identityID)
}

// History returns the most recent resolution records, newest first.
func (l *Ledger) History(ctx context.Context, identityID string, limit int) ([]model.Resolution, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return l.store.History(ctx, identityID, limit)
}

// IncrementCounter bumps an auxiliary counter by one, creating the
// ledger row if needed.
func (l *Ledger) IncrementCounter(ctx context.Context, identityID string, c Counter) error {
	if !KnownCounter(c) {
		return ErrUnknownCounter
	}
	return l.store.IncrementCounter(ctx, identityID, c)
}

// SetCounter overwrites an auxiliary counter, creating the ledger row
// if needed.
func (l *Ledger) SetCounter(ctx context.Context, identityID string, c Counter, value int64) error {
	if !KnownCounter(c) {
		return ErrUnknownCounter
	}
	return l.store.SetCounter(ctx, identityID, c, value)
}

func (l *Ledger) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}
