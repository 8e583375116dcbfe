// Package dbschema owns the relational schema for the whole pipeline.
// Upper layers reach Postgres only through internal/store's typed
// methods, never by referencing table names of their own (per
// spec.md §9's "cross-module dynamic require cycles" design note).
package dbschema

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema creates every table used by the pipeline, idempotently.
// Foreign keys cascade per spec.md §3's ownership invariants:
// workspace delete cascades to ocr_data and lab_reports; lab_reports
// delete cascades to lab_report_items.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            BIGSERIAL PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS workspaces (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL,
	owner_id   BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (name, owner_id)
);

CREATE TABLE IF NOT EXISTS ocr_data (
	id            BIGSERIAL PRIMARY KEY,
	workspace_id  BIGINT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
	report_image  TEXT NOT NULL,
	ocr_primitive TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	reserved_at   TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_ocr_data_available
	ON ocr_data (workspace_id, created_at)
	WHERE reserved_at IS NULL;

CREATE INDEX IF NOT EXISTS idx_ocr_data_reserve_order
	ON ocr_data (created_at)
	WHERE reserved_at IS NULL;

CREATE TABLE IF NOT EXISTS lab_reports (
	id            BIGSERIAL PRIMARY KEY,
	workspace_id  BIGINT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
	patient       TEXT NOT NULL,
	report_time   TIMESTAMPTZ NOT NULL,
	doctor        TEXT,
	hospital      TEXT,
	report_image  TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_lab_reports_workspace ON lab_reports (workspace_id, created_at);
CREATE INDEX IF NOT EXISTS idx_lab_reports_patient ON lab_reports (patient);

CREATE TABLE IF NOT EXISTS lab_report_items (
	id              BIGSERIAL PRIMARY KEY,
	report_id       BIGINT NOT NULL REFERENCES lab_reports(id) ON DELETE CASCADE,
	item_name       TEXT NOT NULL,
	result          TEXT NOT NULL,
	unit            TEXT,
	reference_value TEXT
);

CREATE INDEX IF NOT EXISTS idx_lab_report_items_report ON lab_report_items (report_id);
CREATE INDEX IF NOT EXISTS idx_lab_report_items_name ON lab_report_items (item_name);
`

// Apply runs the schema against pool. Safe to call on every process
// start: every statement is IF NOT EXISTS.
func Apply(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
