package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/contentgate/internal/ports/secondary"
)

// ConditionalPassRepository implements secondary.ConditionalPassRepository
// with SQLite. Category blocks live alongside passes because every block
// change is driven by a pass change.
type ConditionalPassRepository struct {
	db *sql.DB
}

// NewConditionalPassRepository creates a new SQLite conditional pass repository.
func NewConditionalPassRepository(db *sql.DB) *ConditionalPassRepository {
	return &ConditionalPassRepository{db: db}
}

const passColumns = "id, category, original_source, alternative_source, match_score, granted_at, expires_at, status, resolved, resolved_at, last_warned_on"

func scanPass(scan func(dest ...any) error) (*secondary.ConditionalPassRecord, error) {
	var (
		grantedAt    time.Time
		expiresAt    time.Time
		resolved     int
		resolvedAt   sql.NullTime
		lastWarnedOn sql.NullString
	)
	record := &secondary.ConditionalPassRecord{}
	err := scan(&record.ID, &record.Category, &record.OriginalSource, &record.AlternativeSource,
		&record.MatchScore, &grantedAt, &expiresAt, &record.Status, &resolved, &resolvedAt, &lastWarnedOn)
	if err != nil {
		return nil, err
	}
	record.GrantedAt = grantedAt.UTC().Format(time.RFC3339)
	record.ExpiresAt = expiresAt.UTC().Format(time.RFC3339)
	record.Resolved = resolved != 0
	record.ResolvedAt = formatTime(resolvedAt)
	record.LastWarnedOn = lastWarnedOn.String
	return record, nil
}

// Create persists a new conditional pass.
func (r *ConditionalPassRepository) Create(ctx context.Context, record *secondary.ConditionalPassRecord) error {
	if record.ID == "" {
		return fmt.Errorf("pass ID must be pre-populated by service layer")
	}

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO conditional_passes ("+passColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		record.ID, record.Category, record.OriginalSource, record.AlternativeSource, record.MatchScore,
		nullTime(record.GrantedAt), nullTime(record.ExpiresAt), record.Status, boolToInt(record.Resolved),
		nullTime(record.ResolvedAt), nullString(record.LastWarnedOn),
	)
	if err != nil {
		return fmt.Errorf("failed to create conditional pass: %w", err)
	}
	return nil
}

// GetByID retrieves a conditional pass by its ID.
func (r *ConditionalPassRepository) GetByID(ctx context.Context, id string) (*secondary.ConditionalPassRecord, error) {
	record, err := scanPass(r.db.QueryRowContext(ctx,
		"SELECT "+passColumns+" FROM conditional_passes WHERE id = ?", id,
	).Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("conditional pass %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conditional pass: %w", err)
	}
	return record, nil
}

// GetBySource retrieves the pass for (category, original source), or nil.
func (r *ConditionalPassRepository) GetBySource(ctx context.Context, category, originalSource string) (*secondary.ConditionalPassRecord, error) {
	record, err := scanPass(r.db.QueryRowContext(ctx,
		"SELECT "+passColumns+" FROM conditional_passes WHERE category = ? AND original_source = ?",
		category, originalSource,
	).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conditional pass: %w", err)
	}
	return record, nil
}

// FindByURL returns passes whose original or alternative source is url.
func (r *ConditionalPassRepository) FindByURL(ctx context.Context, url string) ([]*secondary.ConditionalPassRecord, error) {
	return r.query(ctx,
		"SELECT "+passColumns+" FROM conditional_passes WHERE original_source = ? OR alternative_source = ? ORDER BY category, id",
		url, url,
	)
}

// List retrieves passes matching the given filters, ordered by category then ID.
func (r *ConditionalPassRepository) List(ctx context.Context, filters secondary.ConditionalPassFilters) ([]*secondary.ConditionalPassRecord, error) {
	query := "SELECT " + passColumns + " FROM conditional_passes WHERE 1=1"
	args := []any{}

	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, filters.Status)
	}
	if filters.Category != "" {
		query += " AND category = ?"
		args = append(args, filters.Category)
	}
	if filters.Unresolved {
		query += " AND resolved = 0"
	}

	query += " ORDER BY category, id"
	return r.query(ctx, query, args...)
}

func (r *ConditionalPassRepository) query(ctx context.Context, query string, args ...any) ([]*secondary.ConditionalPassRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list conditional passes: %w", err)
	}
	defer rows.Close()

	var passes []*secondary.ConditionalPassRecord
	for rows.Next() {
		record, err := scanPass(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conditional pass: %w", err)
		}
		passes = append(passes, record)
	}
	return passes, rows.Err()
}

// Regrant overwrites the pass stored for (category, original source) with a
// fresh grant, keeping the existing ID.
func (r *ConditionalPassRepository) Regrant(ctx context.Context, record *secondary.ConditionalPassRecord) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE conditional_passes SET
			alternative_source = ?, match_score = ?, granted_at = ?, expires_at = ?,
			status = ?, resolved = 0, resolved_at = NULL, last_warned_on = NULL
		WHERE category = ? AND original_source = ?`,
		record.AlternativeSource, record.MatchScore, nullTime(record.GrantedAt), nullTime(record.ExpiresAt),
		record.Status, record.Category, record.OriginalSource,
	)
	if err != nil {
		return fmt.Errorf("failed to regrant conditional pass: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("conditional pass for %s/%s not found", record.Category, record.OriginalSource)
	}
	return nil
}

// GetNextID returns the next available pass ID.
func (r *ConditionalPassRepository) GetNextID(ctx context.Context) (string, error) {
	var maxID int
	err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(CAST(SUBSTR(id, 4) AS INTEGER)), 0) FROM conditional_passes",
	).Scan(&maxID)
	if err != nil {
		return "", fmt.Errorf("failed to get next pass ID: %w", err)
	}
	return fmt.Sprintf("CP-%03d", maxID+1), nil
}

// ListBlocks returns every active category block, ordered by category.
func (r *ConditionalPassRepository) ListBlocks(ctx context.Context) ([]*secondary.CategoryBlockRecord, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT category, reason, blocked_at, scope FROM category_blocks ORDER BY category")
	if err != nil {
		return nil, fmt.Errorf("failed to list category blocks: %w", err)
	}
	defer rows.Close()

	var blocks []*secondary.CategoryBlockRecord
	for rows.Next() {
		block, err := scanBlock(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category block: %w", err)
		}
		blocks = append(blocks, block)
	}
	return blocks, rows.Err()
}

// GetBlock returns the block for a category, or nil.
func (r *ConditionalPassRepository) GetBlock(ctx context.Context, category string) (*secondary.CategoryBlockRecord, error) {
	block, err := scanBlock(r.db.QueryRowContext(ctx,
		"SELECT category, reason, blocked_at, scope FROM category_blocks WHERE category = ?", category,
	).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category block: %w", err)
	}
	return block, nil
}

func scanBlock(scan func(dest ...any) error) (*secondary.CategoryBlockRecord, error) {
	var blockedAt time.Time
	block := &secondary.CategoryBlockRecord{}
	if err := scan(&block.Category, &block.Reason, &blockedAt, &block.Scope); err != nil {
		return nil, err
	}
	block.BlockedAt = blockedAt.UTC().Format(time.RFC3339)
	return block, nil
}

// ApplyMutations applies a sweep or resolution batch atomically.
func (r *ConditionalPassRepository) ApplyMutations(ctx context.Context, m secondary.ExpiryMutations) error {
	if m.Empty() {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, w := range m.MarkWarned {
		if _, err := tx.ExecContext(ctx,
			"UPDATE conditional_passes SET status = CASE WHEN status = 'ACTIVE' THEN 'WARNING' ELSE status END, last_warned_on = ? WHERE id = ?",
			w.Day, w.PassID,
		); err != nil {
			return fmt.Errorf("failed to mark pass %s warned: %w", w.PassID, err)
		}
	}
	for _, id := range m.Expire {
		if _, err := tx.ExecContext(ctx,
			"UPDATE conditional_passes SET status = 'EXPIRED' WHERE id = ? AND status != 'RESOLVED'", id,
		); err != nil {
			return fmt.Errorf("failed to expire pass %s: %w", id, err)
		}
	}
	for _, res := range m.Resolve {
		result, err := tx.ExecContext(ctx,
			"UPDATE conditional_passes SET status = ?, resolved = 1, resolved_at = ? WHERE id = ?",
			res.Status, nullTime(res.ResolvedAt), res.PassID,
		)
		if err != nil {
			return fmt.Errorf("failed to resolve pass %s: %w", res.PassID, err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return fmt.Errorf("conditional pass %s not found", res.PassID)
		}
	}
	for _, b := range m.CreateBlocks {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO category_blocks (category, reason, blocked_at, scope) VALUES (?, ?, ?, ?)",
			b.Category, b.Reason, nullTime(b.BlockedAt), b.Scope,
		); err != nil {
			return fmt.Errorf("failed to block category %s: %w", b.Category, err)
		}
	}
	for _, category := range m.RemoveBlocks {
		if _, err := tx.ExecContext(ctx, "DELETE FROM category_blocks WHERE category = ?", category); err != nil {
			return fmt.Errorf("failed to unblock category %s: %w", category, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit expiry changes: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ secondary.ConditionalPassRepository = (*ConditionalPassRepository)(nil)
