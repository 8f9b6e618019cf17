package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/contentgate/internal/ports/secondary"
)

// VerificationLogRepository implements secondary.VerificationLogRepository with SQLite.
// Entries are write-once per (category, day).
type VerificationLogRepository struct {
	db *sql.DB
}

// NewVerificationLogRepository creates a new SQLite verification log repository.
func NewVerificationLogRepository(db *sql.DB) *VerificationLogRepository {
	return &VerificationLogRepository{db: db}
}

// Record writes the entry unless (category, day) is already logged.
func (r *VerificationLogRepository) Record(ctx context.Context, entry *secondary.VerificationLogRecord) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO verification_log (category, day, outcome, code, match_score, urls, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(category, day) DO NOTHING`,
		entry.Category, entry.Day, entry.Outcome, entry.Code, nullString(entry.MatchScore),
		encodeList(entry.URLs), nullString(entry.Detail), nullTime(entry.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("failed to record verification: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

const verificationColumns = "category, day, outcome, code, match_score, urls, detail, created_at"

func scanVerification(scan func(dest ...any) error) (*secondary.VerificationLogRecord, error) {
	var (
		matchScore sql.NullString
		urls       string
		detail     sql.NullString
		createdAt  time.Time
	)
	entry := &secondary.VerificationLogRecord{}
	if err := scan(&entry.Category, &entry.Day, &entry.Outcome, &entry.Code, &matchScore, &urls, &detail, &createdAt); err != nil {
		return nil, err
	}
	entry.MatchScore = matchScore.String
	entry.URLs = decodeList(urls)
	entry.Detail = detail.String
	entry.CreatedAt = createdAt.UTC().Format(time.RFC3339)
	return entry, nil
}

// Get returns the entry for (category, day), or nil.
func (r *VerificationLogRepository) Get(ctx context.Context, category, day string) (*secondary.VerificationLogRecord, error) {
	entry, err := scanVerification(r.db.QueryRowContext(ctx,
		"SELECT "+verificationColumns+" FROM verification_log WHERE category = ? AND day = ?",
		category, day,
	).Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get verification: %w", err)
	}
	return entry, nil
}

// List returns entries, newest day first.
func (r *VerificationLogRepository) List(ctx context.Context, filters secondary.VerificationLogFilters) ([]*secondary.VerificationLogRecord, error) {
	query := "SELECT " + verificationColumns + " FROM verification_log WHERE 1=1"
	args := []any{}

	if filters.Category != "" {
		query += " AND category = ?"
		args = append(args, filters.Category)
	}

	query += " ORDER BY day DESC, category"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list verifications: %w", err)
	}
	defer rows.Close()

	var entries []*secondary.VerificationLogRecord
	for rows.Next() {
		entry, err := scanVerification(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan verification: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

var _ secondary.VerificationLogRepository = (*VerificationLogRepository)(nil)
