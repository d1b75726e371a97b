package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/minesa-dev/linked-roles/internal/model"
)

// MemoryStore is an in-process Store used by tests and by dev mode when
// no database is configured.  A single mutex linearizes all writes,
// which trivially satisfies the per-identity transaction requirement.
type MemoryStore struct {
	mu      sync.Mutex
	states  map[string]model.LedgerState
	history map[string][]model.Resolution
	nextID  uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states:  map[string]model.LedgerState{},
		history: map[string][]model.Resolution{},
	}
}

func (s *MemoryStore) RecordEvent(_ context.Context, ev Event, now time.Time, p Policy) (bool, RejectReason, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[ev.IdentityID]
	if !ok {
		state = model.LedgerState{IdentityID: ev.IdentityID, LastResetDate: now}
	}

	accepted, reason := Apply(&state, ev, now, p)
	if !accepted {
		// Rejected events persist nothing; the loaded copy is discarded.
		return false, reason, nil
	}

	s.nextID++
	s.states[ev.IdentityID] = state
	s.history[ev.IdentityID] = append([]model.Resolution{{
		ID:             s.nextID,
		IdentityID:     ev.IdentityID,
		GuildID:        ev.GuildID,
		ThreadID:       ev.ThreadID,
		ResolvedBy:     ev.ActorID,
		ResolutionType: ev.Type,
		ResolvedAt:     now,
	}}, s.history[ev.IdentityID]...)
	return true, RejectNone, nil
}

func (s *MemoryStore) State(_ context.Context, identityID string) (model.LedgerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[identityID]
	if !ok {
		return model.LedgerState{IdentityID: identityID}, nil
	}
	state.GuildsSeen = append([]string(nil), state.GuildsSeen...)
	return state, nil
}

func (s *MemoryStore) History(_ context.Context, identityID string, limit int) ([]model.Resolution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.history[identityID]
	if len(records) > limit {
		records = records[:limit]
	}
	return append([]model.Resolution(nil), records...), nil
}

func (s *MemoryStore) IncrementCounter(_ context.Context, identityID string, c Counter) error {
	return s.adjust(identityID, c, 1, false)
}

func (s *MemoryStore) SetCounter(_ context.Context, identityID string, c Counter, value int64) error {
	return s.adjust(identityID, c, value, true)
}

func (s *MemoryStore) adjust(identityID string, c Counter, value int64, overwrite bool) error {
	if !KnownCounter(c) {
		return ErrUnknownCounter
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[identityID]
	if !ok {
		state = model.LedgerState{IdentityID: identityID, LastResetDate: time.Now()}
	}
	switch c {
	case CounterTimelapse:
		if overwrite {
			state.TimelapseCount = value
		} else {
			state.TimelapseCount += value
		}
	case CounterTicket:
		if overwrite {
			state.TicketCount = value
		} else {
			state.TicketCount += value
		}
	}
	s.states[identityID] = state
	return nil
}
