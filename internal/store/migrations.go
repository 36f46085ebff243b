package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS vendors (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL UNIQUE,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS requests (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'DRAFT',
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS proposals (
	id         TEXT PRIMARY KEY,
	request_id TEXT NOT NULL REFERENCES requests(id) ON DELETE CASCADE,
	vendor_id  TEXT NOT NULL REFERENCES vendors(id) ON DELETE CASCADE,
	raw_text   TEXT NOT NULL DEFAULT '',
	price      TEXT NOT NULL DEFAULT '',
	timeline   TEXT NOT NULL DEFAULT '',
	terms      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(request_id, vendor_id)
);

CREATE INDEX IF NOT EXISTS idx_proposals_request_id ON proposals(request_id);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS sync_runs (
	id              TEXT PRIMARY KEY,
	status          TEXT NOT NULL,
	processed_count INTEGER NOT NULL DEFAULT 0,
	fetched         INTEGER NOT NULL DEFAULT 0,
	acknowledged    INTEGER NOT NULL DEFAULT 0,
	error           TEXT NOT NULL DEFAULT '',
	started_at      DATETIME NOT NULL,
	finished_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sync_runs_started ON sync_runs(started_at);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
