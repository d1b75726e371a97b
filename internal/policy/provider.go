// Package policy decides which boolean linked-role keys an identity is
// eligible for.  Eligibility sources are swappable: a static allow-list
// table for hand-curated roles, and ledger-derived rules for roles
// earned through activity.  The synchronizer only sees the Provider
// interface, so eligibility rules can change without touching it.
package policy

import (
	"context"
	"strings"

	"github.com/minesa-dev/linked-roles/internal/model"
)

// Provider answers whether an identity qualifies for a boolean role key.
type Provider interface {
	Eligible(ctx context.Context, identityID, roleKey string) (bool, error)
	// RoleKeys lists every key this provider can answer for, in the
	// order they should appear in the metadata payload.
	RoleKeys() []string
}

// Static grants roles from fixed allow-lists of identity IDs.
type Static struct {
	keys  []string
	allow map[string]map[string]struct{}
}

// NewStatic builds a Static provider.  Map iteration order is not
// stable, so keys are remembered in the order given.
func NewStatic(keys []string, allow map[string][]string) *Static {
	s := &Static{keys: append([]string(nil), keys...), allow: map[string]map[string]struct{}{}}
	for key, ids := range allow {
		set := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if id = strings.TrimSpace(id); id != "" {
				set[id] = struct{}{}
			}
		}
		s.allow[key] = set
	}
	return s
}

// ParseStatic parses the STATIC_ROLES env format:
//
//	is_dev:111|222,is_mod:333
//
// Role keys appear in the payload in declaration order.  An empty spec
// yields a provider with no keys.
func ParseStatic(raw string) *Static {
	keys := []string{}
	allow := map[string][]string{}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key, ids, found := strings.Cut(entry, ":")
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		keys = append(keys, key)
		if found {
			allow[key] = strings.Split(ids, "|")
		}
	}
	return NewStatic(keys, allow)
}

func (s *Static) RoleKeys() []string { return append([]string(nil), s.keys...) }

func (s *Static) Eligible(_ context.Context, identityID, roleKey string) (bool, error) {
	set, ok := s.allow[roleKey]
	if !ok {
		return false, nil
	}
	_, ok = set[identityID]
	return ok, nil
}

// LedgerReader is the slice of the ledger the derived provider needs.
type LedgerReader interface {
	State(ctx context.Context, identityID string) (model.LedgerState, error)
}

// TimeMasterKey is granted once an identity has used the timelapse
// command enough times; the threshold mirrors the registered metadata
// schema description.
const TimeMasterKey = "time_master"

// FromLedger derives boolean role keys from ledger counters.
type FromLedger struct {
	Ledger            LedgerReader
	TimeMasterMinimum int64
}

func NewFromLedger(reader LedgerReader) *FromLedger {
	return &FromLedger{Ledger: reader, TimeMasterMinimum: 10}
}

func (f *FromLedger) RoleKeys() []string { return []string{TimeMasterKey} }

func (f *FromLedger) Eligible(ctx context.Context, identityID, roleKey string) (bool, error) {
	if roleKey != TimeMasterKey {
		return false, nil
	}
	state, err := f.Ledger.State(ctx, identityID)
	if err != nil {
		return false, err
	}
	return state.TimelapseCount >= f.TimeMasterMinimum, nil
}

// Combined chains providers; the first one claiming a key answers it.
type Combined struct {
	providers []Provider
}

func Combine(providers ...Provider) *Combined { return &Combined{providers: providers} }

func (c *Combined) RoleKeys() []string {
	keys := []string{}
	seen := map[string]struct{}{}
	for _, p := range c.providers {
		for _, key := range p.RoleKeys() {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	return keys
}

func (c *Combined) Eligible(ctx context.Context, identityID, roleKey string) (bool, error) {
	for _, p := range c.providers {
		for _, key := range p.RoleKeys() {
			if key == roleKey {
				return p.Eligible(ctx, identityID, roleKey)
			}
		}
	}
	return false, nil
}
