package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/minesa-dev/linked-roles/internal/model"
)

// CredentialRepo persists OAuth token records, one row per identity
// (single `identity_id` unique key).
type CredentialRepo struct{ DB *sql.DB }

func NewCredentialRepo(db *sql.DB) *CredentialRepo { return &CredentialRepo{DB: db} }

// Get loads the token record for an identity.  ErrNotLinked is returned
// when the identity never completed the OAuth flow.
func (r *CredentialRepo) Get(ctx context.Context, identityID string) (model.TokenRecord, error) {
	var rec model.TokenRecord
	err := r.DB.QueryRowContext(ctx,
		"SELECT identity_id, access_token, refresh_token, expires_at FROM discord_tokens WHERE identity_id=? LIMIT 1",
		identityID).Scan(&rec.IdentityID, &rec.AccessToken, &rec.RefreshToken, &rec.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.TokenRecord{}, ErrNotLinked
	}
	if err != nil {
		return model.TokenRecord{}, err
	}
	return rec, nil
}

// Put replaces the identity's token record wholesale.  The upsert
// writes every column so a refresh can never leave a row mixing old and
// new credential halves.
func (r *CredentialRepo) Put(ctx context.Context, rec model.TokenRecord) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO discord_tokens (identity_id, access_token, refresh_token, expires_at)
		 VALUES (?,?,?,?)
		 ON DUPLICATE KEY UPDATE access_token=VALUES(access_token),
		                         refresh_token=VALUES(refresh_token),
		                         expires_at=VALUES(expires_at)`,
		rec.IdentityID, rec.AccessToken, rec.RefreshToken, rec.ExpiresAt.UTC())
	return err
}
