package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/minesa-dev/linked-roles/internal/ledger"
	"github.com/minesa-dev/linked-roles/internal/model"
)

// LedgerRepo provides data access to the ledger_states table and its
// append-only resolutions child table.  All timestamps are stored in
// UTC; the calendar-day policy math happens in the ledger package using
// the configured zone.
type LedgerRepo struct{ DB *sql.DB }

func NewLedgerRepo(db *sql.DB) *LedgerRepo { return &LedgerRepo{DB: db} }

var _ ledger.Store = (*LedgerRepo)(nil)

// RecordEvent executes the whole accept/reject decision as one MySQL
// transaction.  The identity's state row is read under FOR UPDATE so
// two concurrent events for the same identity are linearized at the
// database; distinct identities never contend.  Nothing is written when
// the policy rejects the event.
func (r *LedgerRepo) RecordEvent(ctx context.Context, ev ledger.Event, now time.Time, p ledger.Policy) (bool, ledger.RejectReason, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, ledger.RejectNone, err
	}
	defer func() { _ = tx.Rollback() }()

	state, err := r.stateForUpdateTx(ctx, tx, ev.IdentityID, now)
	if err != nil {
		return false, ledger.RejectNone, err
	}

	accepted, reason := ledger.Apply(&state, ev, now, p)
	if !accepted {
		// Rollback discards the row lock; the loaded copy is never written.
		return false, reason, nil
	}

	if err := r.upsertStateTx(ctx, tx, state); err != nil {
		return false, ledger.RejectNone, err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO resolutions (identity_id, guild_id, thread_id, resolved_by, resolution_type, resolved_at)
		 VALUES (?,?,?,?,?,?)`,
		ev.IdentityID, ev.GuildID, ev.ThreadID, ev.ActorID, string(ev.Type), now.UTC())
	if err != nil {
		return false, ledger.RejectNone, err
	}
	if err := tx.Commit(); err != nil {
		return false, ledger.RejectNone, err
	}
	return true, ledger.RejectNone, nil
}

// State loads the counter snapshot for an identity.  Identities with no
// row yet get a zero state so callers can treat "never resolved" and
// "count is zero" uniformly.
func (r *LedgerRepo) State(ctx context.Context, identityID string) (model.LedgerState, error) {
	const q = `SELECT identity_id, resolved_count, resolutions_today, last_resolution_at,
	                  last_reset_date, guilds_seen, timelapse_count, ticket_count
	           FROM ledger_states WHERE identity_id=? LIMIT 1`
	state, err := scanState(r.DB.QueryRowContext(ctx, q, identityID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.LedgerState{IdentityID: identityID}, nil
	}
	return state, err
}

// History returns the newest resolution records first.
func (r *LedgerRepo) History(ctx context.Context, identityID string, limit int) ([]model.Resolution, error) {
	const q = `SELECT id, identity_id, guild_id, thread_id, resolved_by, resolution_type, resolved_at
	           FROM resolutions WHERE identity_id=? ORDER BY resolved_at DESC, id DESC LIMIT ?`
	rows, err := r.DB.QueryContext(ctx, q, identityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records := make([]model.Resolution, 0, limit)
	for rows.Next() {
		var rec model.Resolution
		var typ string
		if err := rows.Scan(&rec.ID, &rec.IdentityID, &rec.GuildID, &rec.ThreadID,
			&rec.ResolvedBy, &typ, &rec.ResolvedAt); err != nil {
			return nil, err
		}
		rec.ResolutionType = model.ResolutionType(typ)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// IncrementCounter bumps an auxiliary counter atomically, creating the
// ledger row on first use (upsert-with-increment).
func (r *LedgerRepo) IncrementCounter(ctx context.Context, identityID string, c ledger.Counter) error {
	col, err := counterColumn(c)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		`INSERT INTO ledger_states (identity_id, last_reset_date, guilds_seen, `+col+`)
		 VALUES (?,?, '[]', 1)
		 ON DUPLICATE KEY UPDATE `+col+` = `+col+` + 1`,
		identityID, time.Now().UTC())
	return err
}

// SetCounter overwrites an auxiliary counter, creating the row if needed.
func (r *LedgerRepo) SetCounter(ctx context.Context, identityID string, c ledger.Counter, value int64) error {
	col, err := counterColumn(c)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		`INSERT INTO ledger_states (identity_id, last_reset_date, guilds_seen, `+col+`)
		 VALUES (?,?, '[]', ?)
		 ON DUPLICATE KEY UPDATE `+col+` = VALUES(`+col+`)`,
		identityID, time.Now().UTC(), value)
	return err
}

// counterColumn maps a Counter onto its fixed column name.  Only the
// whitelisted names ever reach SQL.
func counterColumn(c ledger.Counter) (string, error) {
	switch c {
	case ledger.CounterTimelapse:
		return "timelapse_count", nil
	case ledger.CounterTicket:
		return "ticket_count", nil
	}
	return "", ledger.ErrUnknownCounter
}

// stateForUpdateTx loads the identity's row under FOR UPDATE, or a
// default state stamped with now when the identity has no row yet.
func (r *LedgerRepo) stateForUpdateTx(ctx context.Context, tx *sql.Tx, identityID string, now time.Time) (model.LedgerState, error) {
	const q = `SELECT identity_id, resolved_count, resolutions_today, last_resolution_at,
	                  last_reset_date, guilds_seen, timelapse_count, ticket_count
	           FROM ledger_states WHERE identity_id=? FOR UPDATE`
	state, err := scanState(tx.QueryRowContext(ctx, q, identityID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.LedgerState{IdentityID: identityID, LastResetDate: now}, nil
	}
	return state, err
}

// upsertStateTx writes the full state row.  last_reset_date keeps its
// time-of-day (DATETIME): truncating it to a date would shift the value
// to midnight UTC and corrupt day comparisons in non-UTC policy zones.
func (r *LedgerRepo) upsertStateTx(ctx context.Context, tx *sql.Tx, state model.LedgerState) error {
	guilds, err := json.Marshal(state.GuildsSeen)
	if err != nil {
		return err
	}
	var lastResolution any
	if state.LastResolutionAt != nil {
		lastResolution = state.LastResolutionAt.UTC()
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO ledger_states
		   (identity_id, resolved_count, resolutions_today, last_resolution_at,
		    last_reset_date, guilds_seen, timelapse_count, ticket_count)
		 VALUES (?,?,?,?,?,?,?,?)
		 ON DUPLICATE KEY UPDATE resolved_count=VALUES(resolved_count),
		                         resolutions_today=VALUES(resolutions_today),
		                         last_resolution_at=VALUES(last_resolution_at),
		                         last_reset_date=VALUES(last_reset_date),
		                         guilds_seen=VALUES(guilds_seen)`,
		state.IdentityID, state.ResolvedCount, state.ResolutionsToday, lastResolution,
		state.LastResetDate.UTC(), string(guilds), state.TimelapseCount, state.TicketCount)
	return err
}

// row abstracts *sql.Row / *sql.Rows scanning for state loads.
type row interface{ Scan(dest ...any) error }

func scanState(r row) (model.LedgerState, error) {
	var (
		state          model.LedgerState
		lastResolution sql.NullTime
		guilds         string
	)
	err := r.Scan(&state.IdentityID, &state.ResolvedCount, &state.ResolutionsToday,
		&lastResolution, &state.LastResetDate, &guilds,
		&state.TimelapseCount, &state.TicketCount)
	if err != nil {
		return model.LedgerState{}, err
	}
	if lastResolution.Valid {
		ts := lastResolution.Time
		state.LastResolutionAt = &ts
	}
	if guilds != "" {
		if err := json.Unmarshal([]byte(guilds), &state.GuildsSeen); err != nil {
			return model.LedgerState{}, err
		}
	}
	return state, nil
}
