package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/contentgate/internal/ports/secondary"
)

// ContentRepository implements secondary.ContentRepository with SQLite.
type ContentRepository struct {
	db *sql.DB
}

// NewContentRepository creates a new SQLite content repository.
func NewContentRepository(db *sql.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

// Save inserts or replaces an item and its children in one transaction.
// On an existing item the stored stage, created_at and posted_at are kept.
func (r *ContentRepository) Save(ctx context.Context, item *secondary.ContentItemRecord) error {
	if item.ID == "" {
		return fmt.Errorf("item ID must be pre-populated by service layer")
	}
	if item.Stage == "" {
		return fmt.Errorf("item Stage must be pre-populated by service layer")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO content_items (id, stage, safety_class, category, provenance, claim_names, claim_symptoms, claim_severity, revision, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			safety_class = excluded.safety_class,
			category = excluded.category,
			provenance = excluded.provenance,
			claim_names = excluded.claim_names,
			claim_symptoms = excluded.claim_symptoms,
			claim_severity = excluded.claim_severity,
			revision = excluded.revision,
			updated_at = excluded.updated_at`,
		item.ID, item.Stage, item.SafetyClass, item.Category, item.Provenance,
		encodeList(item.ClaimNames), encodeList(item.ClaimSymptoms), item.ClaimSeverity,
		item.Revision, nullTime(item.CreatedAt), nullTime(item.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save item: %w", err)
	}

	for _, table := range []string{"content_captions", "content_assets", "generation_meta", "content_sources"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE item_id = ?", item.ID); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for platform, text := range item.Captions {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO content_captions (item_id, platform, text) VALUES (?, ?, ?)",
			item.ID, platform, text,
		); err != nil {
			return fmt.Errorf("failed to save caption: %w", err)
		}
	}
	for i, a := range item.Assets {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO content_assets (item_id, position, kind, path, width, height, bytes) VALUES (?, ?, ?, ?, ?, ?, ?)",
			item.ID, i, a.Kind, a.Path, a.Width, a.Height, a.Bytes,
		); err != nil {
			return fmt.Errorf("failed to save asset: %w", err)
		}
	}
	for _, m := range item.GenerationMeta {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO generation_meta (item_id, asset_path, rule_name, rule_hash, generated_at) VALUES (?, ?, ?, ?, ?)",
			item.ID, m.AssetPath, m.RuleName, m.RuleHash, nullTime(m.GeneratedAt),
		); err != nil {
			return fmt.Errorf("failed to save generation metadata: %w", err)
		}
	}
	for i, s := range item.Sources {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO content_sources (item_id, position, url, grade) VALUES (?, ?, ?, ?)",
			item.ID, i, s.URL, s.Grade,
		); err != nil {
			return fmt.Errorf("failed to save source: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit item: %w", err)
	}
	return nil
}

const contentColumns = "id, stage, safety_class, category, provenance, claim_names, claim_symptoms, claim_severity, revision, created_at, updated_at, posted_at"

func scanContentItem(scan func(dest ...any) error) (*secondary.ContentItemRecord, error) {
	var (
		names, symptoms string
		createdAt       sql.NullTime
		updatedAt       sql.NullTime
		postedAt        sql.NullTime
	)
	record := &secondary.ContentItemRecord{}
	err := scan(&record.ID, &record.Stage, &record.SafetyClass, &record.Category, &record.Provenance,
		&names, &symptoms, &record.ClaimSeverity, &record.Revision, &createdAt, &updatedAt, &postedAt)
	if err != nil {
		return nil, err
	}
	record.ClaimNames = decodeList(names)
	record.ClaimSymptoms = decodeList(symptoms)
	record.CreatedAt = formatTime(createdAt)
	record.UpdatedAt = formatTime(updatedAt)
	record.PostedAt = formatTime(postedAt)
	return record, nil
}

// Exists reports whether an item is stored.
func (r *ContentRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM content_items WHERE id = ?", id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check item existence: %w", err)
	}
	return count > 0, nil
}

// GetByID retrieves an item with its captions, assets, metadata and sources.
func (r *ContentRepository) GetByID(ctx context.Context, id string) (*secondary.ContentItemRecord, error) {
	record, err := scanContentItem(r.db.QueryRowContext(ctx,
		"SELECT "+contentColumns+" FROM content_items WHERE id = ?", id,
	).Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("item %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	if err := r.loadCaptions(ctx, record); err != nil {
		return nil, err
	}
	if err := r.loadAssets(ctx, record); err != nil {
		return nil, err
	}
	if err := r.loadGenerationMeta(ctx, record); err != nil {
		return nil, err
	}
	if err := r.loadSources(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (r *ContentRepository) loadCaptions(ctx context.Context, record *secondary.ContentItemRecord) error {
	rows, err := r.db.QueryContext(ctx, "SELECT platform, text FROM content_captions WHERE item_id = ?", record.ID)
	if err != nil {
		return fmt.Errorf("failed to load captions: %w", err)
	}
	defer rows.Close()

	record.Captions = make(map[string]string)
	for rows.Next() {
		var platform, text string
		if err := rows.Scan(&platform, &text); err != nil {
			return fmt.Errorf("failed to scan caption: %w", err)
		}
		record.Captions[platform] = text
	}
	return rows.Err()
}

func (r *ContentRepository) loadAssets(ctx context.Context, record *secondary.ContentItemRecord) error {
	rows, err := r.db.QueryContext(ctx,
		"SELECT kind, path, width, height, bytes FROM content_assets WHERE item_id = ? ORDER BY position", record.ID)
	if err != nil {
		return fmt.Errorf("failed to load assets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a secondary.ContentAssetRecord
		if err := rows.Scan(&a.Kind, &a.Path, &a.Width, &a.Height, &a.Bytes); err != nil {
			return fmt.Errorf("failed to scan asset: %w", err)
		}
		record.Assets = append(record.Assets, a)
	}
	return rows.Err()
}

func (r *ContentRepository) loadGenerationMeta(ctx context.Context, record *secondary.ContentItemRecord) error {
	rows, err := r.db.QueryContext(ctx,
		"SELECT asset_path, rule_name, rule_hash, generated_at FROM generation_meta WHERE item_id = ? ORDER BY asset_path", record.ID)
	if err != nil {
		return fmt.Errorf("failed to load generation metadata: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			m           secondary.GenerationMetaRecord
			generatedAt sql.NullTime
		)
		if err := rows.Scan(&m.AssetPath, &m.RuleName, &m.RuleHash, &generatedAt); err != nil {
			return fmt.Errorf("failed to scan generation metadata: %w", err)
		}
		m.GeneratedAt = formatTime(generatedAt)
		record.GenerationMeta = append(record.GenerationMeta, m)
	}
	return rows.Err()
}

func (r *ContentRepository) loadSources(ctx context.Context, record *secondary.ContentItemRecord) error {
	rows, err := r.db.QueryContext(ctx,
		"SELECT url, grade FROM content_sources WHERE item_id = ? ORDER BY position", record.ID)
	if err != nil {
		return fmt.Errorf("failed to load sources: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s secondary.ContentSourceRecord
		if err := rows.Scan(&s.URL, &s.Grade); err != nil {
			return fmt.Errorf("failed to scan source: %w", err)
		}
		record.Sources = append(record.Sources, s)
	}
	return rows.Err()
}

// List retrieves item headers matching the given filters, ordered by ID.
func (r *ContentRepository) List(ctx context.Context, filters secondary.ContentFilters) ([]*secondary.ContentItemRecord, error) {
	query := "SELECT " + contentColumns + " FROM content_items WHERE 1=1"
	args := []any{}

	if filters.Stage != "" {
		query += " AND stage = ?"
		args = append(args, filters.Stage)
	}
	if filters.Category != "" {
		query += " AND category = ?"
		args = append(args, filters.Category)
	}

	query += " ORDER BY id"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []*secondary.ContentItemRecord
	for rows.Next() {
		record, err := scanContentItem(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, record)
	}
	return items, rows.Err()
}

// TransitionStage updates the stage with a compare-and-set on the current
// stage, and on the revision when one is given, and appends the history
// entry in the same transaction.
func (r *ContentRepository) TransitionStage(ctx context.Context, change *secondary.StageChangeRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE content_items SET stage = ?, updated_at = ?, posted_at = COALESCE(?, posted_at)
		WHERE id = ? AND stage = ? AND (? = 0 OR revision = ?)`,
		change.ToStage, nullTime(change.ChangedAt), nullTime(change.PostedAt),
		change.ItemID, change.FromStage, change.Revision, change.Revision,
	)
	if err != nil {
		return fmt.Errorf("failed to update stage: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		var current string
		var revision int
		err := tx.QueryRowContext(ctx, "SELECT stage, revision FROM content_items WHERE id = ?", change.ItemID).Scan(&current, &revision)
		if err == sql.ErrNoRows {
			return fmt.Errorf("item %s not found", change.ItemID)
		}
		if err != nil {
			return fmt.Errorf("failed to read stage: %w", err)
		}
		if current != change.FromStage {
			return fmt.Errorf("item %s is at %s, not %s", change.ItemID, current, change.FromStage)
		}
		return fmt.Errorf("item %s is at revision %d, not %d: %w", change.ItemID, revision, change.Revision, secondary.ErrStaleRevision)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO stage_history (item_id, from_stage, to_stage, actor, reason, changed_at) VALUES (?, ?, ?, ?, ?, ?)",
		change.ItemID, change.FromStage, change.ToStage, change.Actor, nullString(change.Reason), nullTime(change.ChangedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record stage history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit stage change: %w", err)
	}
	return nil
}

// History returns the stage history of an item, oldest first.
func (r *ContentRepository) History(ctx context.Context, itemID string) ([]*secondary.StageChangeRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT item_id, from_stage, to_stage, actor, reason, changed_at FROM stage_history WHERE item_id = ? ORDER BY id",
		itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load stage history: %w", err)
	}
	defer rows.Close()

	var history []*secondary.StageChangeRecord
	for rows.Next() {
		var (
			reason    sql.NullString
			changedAt time.Time
		)
		record := &secondary.StageChangeRecord{}
		if err := rows.Scan(&record.ItemID, &record.FromStage, &record.ToStage, &record.Actor, &reason, &changedAt); err != nil {
			return nil, fmt.Errorf("failed to scan stage history: %w", err)
		}
		record.Reason = reason.String
		record.ChangedAt = changedAt.UTC().Format(time.RFC3339)
		history = append(history, record)
	}
	return history, rows.Err()
}

// GetMaxSequence returns the highest numeric ID prefix in use.
func (r *ContentRepository) GetMaxSequence(ctx context.Context) (int, error) {
	var maxSeq int
	err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(CAST(SUBSTR(id, 1, INSTR(id, '-') - 1) AS INTEGER)), 0) FROM content_items",
	).Scan(&maxSeq)
	if err != nil {
		return 0, fmt.Errorf("failed to get max item sequence: %w", err)
	}
	return maxSeq, nil
}

var _ secondary.ContentRepository = (*ContentRepository)(nil)
