package db

import (
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// migrations is the list of all migrations in order
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_content_and_conditional_pass_tables",
		Up:      migrationV1,
	},
	{
		Version: 2,
		Name:    "add_review_queue_and_gate_decisions",
		Up:      migrationV2,
	},
	{
		Version: 3,
		Name:    "add_last_warned_on_to_conditional_passes",
		Up:      migrationV3,
	},
}

func createVersionTable(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}
	return nil
}

// CurrentVersion returns the highest applied migration version.
func CurrentVersion(conn *sql.DB) (int, error) {
	var v int
	if err := conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to get current schema version: %w", err)
	}
	return v, nil
}

// RunMigrations executes all pending migrations, each in its own transaction.
func RunMigrations(conn *sql.DB) error {
	if err := createVersionTable(conn); err != nil {
		return err
	}

	currentVersion, err := CurrentVersion(conn)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, err := conn.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

func execAll(tx *sql.Tx, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// migrationV1 creates the content item tables, stage history, conditional
// passes, category blocks and the verification log.
func migrationV1(tx *sql.Tx) error {
	return execAll(tx,
		`CREATE TABLE IF NOT EXISTS content_items (
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
		)`,
		`CREATE INDEX IF NOT EXISTS idx_content_items_stage ON content_items(stage)`,
		`CREATE INDEX IF NOT EXISTS idx_content_items_category ON content_items(category)`,
		`CREATE TABLE IF NOT EXISTS content_captions (
			item_id TEXT NOT NULL,
			platform TEXT NOT NULL CHECK(platform IN ('INSTAGRAM', 'THREADS', 'BLOG')),
			text TEXT NOT NULL,
			PRIMARY KEY (item_id, platform),
			FOREIGN KEY (item_id) REFERENCES content_items(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS content_assets (
			item_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			kind TEXT NOT NULL CHECK(kind IN ('COVER', 'BODY')),
			path TEXT NOT NULL,
			width INTEGER NOT NULL DEFAULT 0,
			height INTEGER NOT NULL DEFAULT 0,
			bytes INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (item_id, position),
			FOREIGN KEY (item_id) REFERENCES content_items(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS generation_meta (
			item_id TEXT NOT NULL,
			asset_path TEXT NOT NULL,
			rule_name TEXT NOT NULL DEFAULT '',
			rule_hash TEXT NOT NULL DEFAULT '',
			generated_at DATETIME,
			PRIMARY KEY (item_id, asset_path),
			FOREIGN KEY (item_id) REFERENCES content_items(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS content_sources (
			item_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			url TEXT NOT NULL,
			grade TEXT NOT NULL CHECK(grade IN ('S', 'A', 'B', 'C')),
			PRIMARY KEY (item_id, position),
			FOREIGN KEY (item_id) REFERENCES content_items(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS stage_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			item_id TEXT NOT NULL,
			from_stage TEXT NOT NULL,
			to_stage TEXT NOT NULL,
			actor TEXT NOT NULL DEFAULT '',
			reason TEXT,
			changed_at DATETIME NOT NULL,
			FOREIGN KEY (item_id) REFERENCES content_items(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stage_history_item ON stage_history(item_id)`,
		`CREATE TABLE IF NOT EXISTS conditional_passes (
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
			UNIQUE (category, original_source)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conditional_passes_status ON conditional_passes(status)`,
		`CREATE TABLE IF NOT EXISTS category_blocks (
			category TEXT PRIMARY KEY,
			reason TEXT NOT NULL,
			blocked_at DATETIME NOT NULL,
			scope TEXT NOT NULL DEFAULT 'NEW_ADMISSIONS_ONLY'
		)`,
		`CREATE TABLE IF NOT EXISTS verification_log (
			category TEXT NOT NULL,
			day TEXT NOT NULL,
			outcome TEXT NOT NULL CHECK(outcome IN ('ALL_PASS', 'CONDITIONAL_PASS', 'FAIL')),
			code TEXT NOT NULL,
			match_score TEXT,
			urls TEXT NOT NULL DEFAULT '[]',
			detail TEXT,
			created_at DATETIME NOT NULL,
			PRIMARY KEY (category, day)
		)`,
	)
}

// migrationV2 adds the manual review queue and the gate decision audit trail.
func migrationV2(tx *sql.Tx) error {
	return execAll(tx,
		`CREATE TABLE IF NOT EXISTS review_queue (
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
		)`,
		`CREATE INDEX IF NOT EXISTS idx_review_queue_open ON review_queue(resolved, category)`,
		`CREATE TABLE IF NOT EXISTS gate_decisions (
			id TEXT PRIMARY KEY,
			item_id TEXT NOT NULL,
			revision INTEGER NOT NULL,
			target_stage TEXT NOT NULL,
			admitted INTEGER NOT NULL,
			codes TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL,
			decided_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_gate_decisions_item ON gate_decisions(item_id)`,
	)
}

// migrationV3 records the day of the last warning so warnings go out at most
// once per day.
func migrationV3(tx *sql.Tx) error {
	return execAll(tx, `ALTER TABLE conditional_passes ADD COLUMN last_warned_on TEXT`)
}
