// Package repository implements the MySQL persistence layer: one table
// of OAuth token records and one ledger-state table with its append-only
// resolution history.  Sentinel errors declared here let higher layers
// distinguish failure scenarios without inspecting SQL errors.
//
// Expected schema:
//
//	CREATE TABLE discord_tokens (
//	    identity_id   VARCHAR(32)  NOT NULL PRIMARY KEY,
//	    access_token  VARCHAR(512) NOT NULL,
//	    refresh_token VARCHAR(512) NOT NULL,
//	    expires_at    DATETIME     NOT NULL
//	);
//
//	CREATE TABLE ledger_states (
//	    identity_id        VARCHAR(32) NOT NULL PRIMARY KEY,
//	    resolved_count     BIGINT      NOT NULL DEFAULT 0,
//	    resolutions_today  INT         NOT NULL DEFAULT 0,
//	    last_resolution_at DATETIME    NULL,
//	    -- full reset instant, not a DATE: a DATE column reads back as
//	    -- midnight UTC and misclassifies same-day events in non-UTC
//	    -- policy zones, silently bypassing the daily cap
//	    last_reset_date    DATETIME    NOT NULL,
//	    guilds_seen        JSON        NOT NULL,
//	    timelapse_count    BIGINT      NOT NULL DEFAULT 0,
//	    ticket_count       BIGINT      NOT NULL DEFAULT 0
//	);
//
//	CREATE TABLE resolutions (
//	    id              BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
//	    identity_id     VARCHAR(32)     NOT NULL,
//	    guild_id        VARCHAR(32)     NOT NULL,
//	    thread_id       VARCHAR(32)     NOT NULL,
//	    resolved_by     VARCHAR(32)     NOT NULL,
//	    resolution_type VARCHAR(16)     NOT NULL,
//	    resolved_at     DATETIME        NOT NULL,
//	    KEY idx_resolutions_identity (identity_id, resolved_at)
//	);
//
// All DATETIME columns hold UTC instants; the driver DSN pins
// parseTime=true and loc=UTC so they round-trip as time.Time.
package repository

import "errors"

// ErrNotLinked is returned when no token record exists for an identity.
// It means the user never completed (or has revoked) the OAuth link; the
// synchronizer treats it as "skip this identity".
var ErrNotLinked = errors.New("identity not linked")
