package db

import "database/sql"

// SchemaSQL is the complete schema for fresh installs.
// This schema reflects the current state after all migrations.
//
// # Schema Drift Protection
//
// This is the SINGLE SOURCE OF TRUTH for the database schema. All tests use
// this schema via GetSchemaSQL(), so a repository that references a column
// missing here fails immediately with "no such column".
//
// When adding new columns or tables:
//  1. Add a migration in migrations.go
//  2. Update SchemaSQL here
//  3. Bump the version recorded for fresh installs (latestVersion)
const SchemaSQL = `
-- Content items (never deleted)
CREATE TABLE IF NOT EXISTS content_items (
	id TEXT PRIMARY KEY,
	stage TEXT NOT NULL CHECK(stage IN ('DRAFT', 'BODY_READY', 'APPROVED', 'POSTED')) DEFAULT 'DRAFT',
	safety_class TEXT NOT NULL CHECK(safety_class IN ('SAFE', 'CAUTION', 'DANGER', 'FORBIDDEN')),
	category TEXT NOT NULL DEFAULT '',
	provenance TEXT NOT NULL CHECK(provenance IN ('ORIGINAL', 'AI_GENERATED')) DEFAULT 'ORIGINAL',
	claim_names TEXT NOT NULL DEFAULT '[]',
	claim_symptoms TEXT NOT NULL DEFAULT '[]',
	claim_severity TEXT NOT NULL DEFAULT '',
	revision INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	posted_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_content_items_stage ON content_items(stage);
CREATE INDEX IF NOT EXISTS idx_content_items_category ON content_items(category);

CREATE TABLE IF NOT EXISTS content_captions (
	item_id TEXT NOT NULL,
	platform TEXT NOT NULL CHECK(platform IN ('INSTAGRAM', 'THREADS', 'BLOG')),
	text TEXT NOT NULL,
	PRIMARY KEY (item_id, platform),
	FOREIGN KEY (item_id) REFERENCES content_items(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS content_assets (
	item_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	kind TEXT NOT NULL CHECK(kind IN ('COVER', 'BODY')),
	path TEXT NOT NULL,
	width INTEGER NOT NULL DEFAULT 0,
	height INTEGER NOT NULL DEFAULT 0,
	bytes INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (item_id, position),
	FOREIGN KEY (item_id) REFERENCES content_items(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS generation_meta (
	item_id TEXT NOT NULL,
	asset_path TEXT NOT NULL,
	rule_name TEXT NOT NULL DEFAULT '',
	rule_hash TEXT NOT NULL DEFAULT '',
	generated_at DATETIME,
	PRIMARY KEY (item_id, asset_path),
	FOREIGN KEY (item_id) REFERENCES content_items(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS content_sources (
	item_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	url TEXT NOT NULL,
	grade TEXT NOT NULL CHECK(grade IN ('S', 'A', 'B', 'C')),
	PRIMARY KEY (item_id, position),
	FOREIGN KEY (item_id) REFERENCES content_items(id) ON DELETE CASCADE
);

-- Stage history (append-only)
CREATE TABLE IF NOT EXISTS stage_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	item_id TEXT NOT NULL,
	from_stage TEXT NOT NULL,
	to_stage TEXT NOT NULL,
	actor TEXT NOT NULL DEFAULT '',
	reason TEXT,
	changed_at DATETIME NOT NULL,
	FOREIGN KEY (item_id) REFERENCES content_items(id)
);

CREATE INDEX IF NOT EXISTS idx_stage_history_item ON stage_history(item_id);

-- Conditional passes
CREATE TABLE IF NOT EXISTS conditional_passes (
	id TEXT PRIMARY KEY,
	category TEXT NOT NULL,
	original_source TEXT NOT NULL,
	alternative_source TEXT NOT NULL,
	match_score TEXT NOT NULL,
	granted_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL,
	status TEXT NOT NULL CHECK(status IN ('ACTIVE', 'WARNING', 'EXPIRED', 'RESOLVED')) DEFAULT 'ACTIVE',
	resolved INTEGER NOT NULL DEFAULT 0,
	resolved_at DATETIME,
	last_warned_on TEXT,
	UNIQUE (category, original_source)
);

CREATE INDEX IF NOT EXISTS idx_conditional_passes_status ON conditional_passes(status);

-- Category blocks (at most one per category)
CREATE TABLE IF NOT EXISTS category_blocks (
	category TEXT PRIMARY KEY,
	reason TEXT NOT NULL,
	blocked_at DATETIME NOT NULL,
	scope TEXT NOT NULL DEFAULT 'NEW_ADMISSIONS_ONLY'
);

-- Verification log (immutable, one entry per category per day)
CREATE TABLE IF NOT EXISTS verification_log (
	category TEXT NOT NULL,
	day TEXT NOT NULL,
	outcome TEXT NOT NULL CHECK(outcome IN ('ALL_PASS', 'CONDITIONAL_PASS', 'FAIL')),
	code TEXT NOT NULL,
	match_score TEXT,
	urls TEXT NOT NULL DEFAULT '[]',
	detail TEXT,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (category, day)
);

-- Manual review queue
CREATE TABLE IF NOT EXISTS review_queue (
	id TEXT PRIMARY KEY,
	category TEXT NOT NULL,
	url TEXT NOT NULL,
	outcome TEXT NOT NULL,
	code TEXT NOT NULL,
	detail TEXT,
	resolved INTEGER NOT NULL DEFAULT 0,
	resolution_note TEXT,
	created_at DATETIME NOT NULL,
	resolved_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_review_queue_open ON review_queue(resolved, category);

-- Gate decisions (audit trail of every check)
CREATE TABLE IF NOT EXISTS gate_decisions (
	id TEXT PRIMARY KEY,
	item_id TEXT NOT NULL,
	revision INTEGER NOT NULL,
	target_stage TEXT NOT NULL,
	admitted INTEGER NOT NULL,
	codes TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL,
	decided_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_gate_decisions_item ON gate_decisions(item_id);
`

// InitSchema creates the schema on a fresh database, or runs pending
// migrations on an existing one.
func InitSchema(conn *sql.DB) error {
	var tableCount int
	err := conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableCount)
	if err != nil {
		return err
	}

	if tableCount == 0 {
		// Fresh install - create modern schema directly and mark every
		// migration as applied.
		if _, err := conn.Exec(SchemaSQL); err != nil {
			return err
		}
		if err := createVersionTable(conn); err != nil {
			return err
		}
		for _, m := range migrations {
			if _, err := conn.Exec("INSERT INTO schema_version (version) VALUES (?)", m.Version); err != nil {
				return err
			}
		}
		return nil
	}

	return RunMigrations(conn)
}

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
