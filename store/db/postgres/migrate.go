package postgres

import (
	"context"

	"github.com/pkg/errors"
)

const latestSchema = `
CREATE TABLE IF NOT EXISTS "user" (
	id SERIAL PRIMARY KEY,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'MEMBER',
	created_ts BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS document (
	id SERIAL PRIMARY KEY,
	filename TEXT NOT NULL,
	filepath TEXT NOT NULL,
	file_type TEXT NOT NULL,
	file_size BIGINT NOT NULL DEFAULT 0,
	uploaded_by INTEGER NOT NULL,
	uploaded_ts BIGINT NOT NULL,
	is_deleted BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS query_log (
	id SERIAL PRIMARY KEY,
	uid TEXT NOT NULL UNIQUE,
	user_id INTEGER NOT NULL,
	query TEXT NOT NULL,
	response TEXT NOT NULL,
	operation_type TEXT NOT NULL DEFAULT '',
	document_ids TEXT NOT NULL DEFAULT '[]',
	created_ts BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_query_log_user_id ON query_log (user_id, created_ts DESC);
`

// Migrate creates or updates the schema. Statements are idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, latestSchema); err != nil {
		return errors.Wrap(err, "failed to apply postgres schema")
	}
	return nil
}
