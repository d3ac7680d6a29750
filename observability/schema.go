package observability

import "database/sql"

// Schema is the DDL of the request journal. Init applies it.
const Schema = `
CREATE TABLE IF NOT EXISTS request_journal (
    request_id TEXT PRIMARY KEY,
    timestamp INTEGER NOT NULL,
    operation TEXT NOT NULL,
    transport TEXT NOT NULL DEFAULT 'http',
    files TEXT NOT NULL DEFAULT '[]',
    state TEXT NOT NULL,
    error_code TEXT,
    error_message TEXT,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    bytes_streamed INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_journal_timestamp
    ON request_journal(timestamp DESC);
CREATE INDEX IF NOT EXISTS idx_journal_operation_state
    ON request_journal(operation, state);

CREATE TABLE IF NOT EXISTS _journal_metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
INSERT OR IGNORE INTO _journal_metadata (key, value) VALUES ('schema_version', '1');
`

// Init applies Schema to db.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
