package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/contentgate/internal/ports/secondary"
)

// ReviewQueueRepository implements secondary.ReviewQueueRepository with SQLite.
type ReviewQueueRepository struct {
	db *sql.DB
}

// NewReviewQueueRepository creates a new SQLite review queue repository.
func NewReviewQueueRepository(db *sql.DB) *ReviewQueueRepository {
	return &ReviewQueueRepository{db: db}
}

// Create appends an entry.
func (r *ReviewQueueRepository) Create(ctx context.Context, entry *secondary.ReviewQueueRecord) error {
	if entry.ID == "" {
		return fmt.Errorf("review entry ID must be pre-populated by service layer")
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO review_queue (id, category, url, outcome, code, detail, resolved, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		entry.ID, entry.Category, entry.URL, entry.Outcome, entry.Code,
		nullString(entry.Detail), nullTime(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create review entry: %w", err)
	}
	return nil
}

const reviewColumns = "id, category, url, outcome, code, detail, resolved, resolution_note, created_at, resolved_at"

func scanReview(scan func(dest ...any) error) (*secondary.ReviewQueueRecord, error) {
	var (
		detail     sql.NullString
		resolved   int
		note       sql.NullString
		createdAt  time.Time
		resolvedAt sql.NullTime
	)
	entry := &secondary.ReviewQueueRecord{}
	if err := scan(&entry.ID, &entry.Category, &entry.URL, &entry.Outcome, &entry.Code,
		&detail, &resolved, &note, &createdAt, &resolvedAt); err != nil {
		return nil, err
	}
	entry.Detail = detail.String
	entry.Resolved = resolved != 0
	entry.ResolutionNote = note.String
	entry.CreatedAt = createdAt.UTC().Format(time.RFC3339)
	entry.ResolvedAt = formatTime(resolvedAt)
	return entry, nil
}

// GetByID retrieves an entry.
func (r *ReviewQueueRepository) GetByID(ctx context.Context, id string) (*secondary.ReviewQueueRecord, error) {
	entry, err := scanReview(r.db.QueryRowContext(ctx,
		"SELECT "+reviewColumns+" FROM review_queue WHERE id = ?", id,
	).Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("review entry %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review entry: %w", err)
	}
	return entry, nil
}

// HasOpen reports whether an unresolved entry exists for (category, url).
func (r *ReviewQueueRepository) HasOpen(ctx context.Context, category, url string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM review_queue WHERE category = ? AND url = ? AND resolved = 0",
		category, url,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check review queue: %w", err)
	}
	return count > 0, nil
}

// List returns entries, oldest first.
func (r *ReviewQueueRepository) List(ctx context.Context, filters secondary.ReviewQueueFilters) ([]*secondary.ReviewQueueRecord, error) {
	query := "SELECT " + reviewColumns + " FROM review_queue WHERE 1=1"
	args := []any{}

	if filters.Category != "" {
		query += " AND category = ?"
		args = append(args, filters.Category)
	}
	if filters.OpenOnly {
		query += " AND resolved = 0"
	}

	query += " ORDER BY created_at, id"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list review queue: %w", err)
	}
	defer rows.Close()

	var entries []*secondary.ReviewQueueRecord
	for rows.Next() {
		entry, err := scanReview(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Resolve closes an open entry.
func (r *ReviewQueueRepository) Resolve(ctx context.Context, id, note, resolvedAt string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE review_queue SET resolved = 1, resolution_note = ?, resolved_at = ? WHERE id = ? AND resolved = 0",
		nullString(note), nullTime(resolvedAt), id,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve review entry: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("open review entry %s not found", id)
	}
	return nil
}

var _ secondary.ReviewQueueRepository = (*ReviewQueueRepository)(nil)
