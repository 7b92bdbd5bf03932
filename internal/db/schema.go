package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema. Statuses mirror the workflow state and
// asset status enums in internal/model; costs are stored as TEXT and parsed
// as decimals to avoid float money.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'site_clerk' CHECK (role IN (
        'system_admin', 'finance_director', 'asset_director',
        'procurement_officer', 'project_manager', 'warehouseman', 'site_clerk')),
    project_id    INTEGER NOT NULL DEFAULT 0,
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS projects (
    id         INTEGER PRIMARY KEY,
    name       TEXT NOT NULL,
    location   TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at DATETIME
);

CREATE TABLE IF NOT EXISTS assets (
    id               INTEGER PRIMARY KEY,
    tag              TEXT NOT NULL,
    name             TEXT NOT NULL,
    description      TEXT,
    acquisition_cost TEXT NOT NULL DEFAULT '0',
    project_id       INTEGER NOT NULL REFERENCES projects(id),
    photo            BLOB,
    photo_mime       TEXT,
    status           TEXT NOT NULL DEFAULT 'available' CHECK (status IN (
        'available', 'borrowed', 'maintenance', 'retired')),
    created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at       DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_assets_tag_active
    ON assets(tag) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS batches (
    id                   INTEGER PRIMARY KEY,
    reference            TEXT NOT NULL UNIQUE,
    status               TEXT NOT NULL DEFAULT 'draft' CHECK (status IN (
        'draft', 'pending_verification', 'pending_approval', 'approved',
        'released', 'partially_returned', 'returned', 'canceled')),
    project_id           INTEGER NOT NULL REFERENCES projects(id),
    borrower_name        TEXT NOT NULL,
    borrower_contact     TEXT,
    expected_return_date DATETIME NOT NULL,
    created_by           INTEGER NOT NULL REFERENCES users(id),
    version              INTEGER NOT NULL DEFAULT 1,
    created_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_batches_project_status
    ON batches(project_id, status);

CREATE TABLE IF NOT EXISTS batch_items (
    id                 INTEGER PRIMARY KEY,
    batch_id           INTEGER NOT NULL REFERENCES batches(id),
    asset_id           INTEGER NOT NULL REFERENCES assets(id),
    asset_name         TEXT NOT NULL,
    asset_tag          TEXT NOT NULL,
    unit_cost          TEXT NOT NULL DEFAULT '0',
    quantity_requested INTEGER NOT NULL CHECK (quantity_requested > 0),
    quantity_returned  INTEGER NOT NULL DEFAULT 0 CHECK (
        quantity_returned >= 0 AND quantity_returned <= quantity_requested),
    condition_out      TEXT,
    condition_in       TEXT
);

CREATE INDEX IF NOT EXISTS idx_batch_items_batch ON batch_items(batch_id);
CREATE INDEX IF NOT EXISTS idx_batch_items_asset ON batch_items(asset_id);

CREATE TABLE IF NOT EXISTS audit_entries (
    id         INTEGER PRIMARY KEY,
    batch_id   INTEGER NOT NULL REFERENCES batches(id),
    actor_id   INTEGER NOT NULL,
    action     TEXT NOT NULL,
    remarks    TEXT,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_audit_entries_batch ON audit_entries(batch_id, id);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
