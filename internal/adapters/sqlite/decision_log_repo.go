package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/contentgate/internal/ports/secondary"
)

// DecisionLogRepository implements secondary.DecisionLogRepository with SQLite.
type DecisionLogRepository struct {
	db *sql.DB
}

// NewDecisionLogRepository creates a new SQLite gate decision repository.
func NewDecisionLogRepository(db *sql.DB) *DecisionLogRepository {
	return &DecisionLogRepository{db: db}
}

// Create appends a decision.
func (r *DecisionLogRepository) Create(ctx context.Context, d *secondary.GateDecisionRecord) error {
	if d.ID == "" {
		return fmt.Errorf("decision ID must be pre-populated by service layer")
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO gate_decisions (id, item_id, revision, target_stage, admitted, codes, summary, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.ItemID, d.Revision, d.TargetStage, boolToInt(d.Admitted),
		encodeList(d.Codes), d.Summary, nullTime(d.DecidedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record gate decision: %w", err)
	}
	return nil
}

// ListByItem returns an item's decisions, newest first. A limit of 0 returns all.
func (r *DecisionLogRepository) ListByItem(ctx context.Context, itemID string, limit int) ([]*secondary.GateDecisionRecord, error) {
	query := `SELECT id, item_id, revision, target_stage, admitted, codes, summary, decided_at
		FROM gate_decisions WHERE item_id = ? ORDER BY decided_at DESC, rowid DESC`
	args := []any{itemID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list gate decisions: %w", err)
	}
	defer rows.Close()

	var decisions []*secondary.GateDecisionRecord
	for rows.Next() {
		var (
			d         secondary.GateDecisionRecord
			admitted  int
			codes     string
			decidedAt time.Time
		)
		if err := rows.Scan(&d.ID, &d.ItemID, &d.Revision, &d.TargetStage, &admitted, &codes, &d.Summary, &decidedAt); err != nil {
			return nil, fmt.Errorf("failed to scan gate decision: %w", err)
		}
		d.Admitted = admitted != 0
		d.Codes = decodeList(codes)
		d.DecidedAt = decidedAt.UTC().Format(time.RFC3339)
		decisions = append(decisions, &d)
	}
	return decisions, rows.Err()
}

var _ secondary.DecisionLogRepository = (*DecisionLogRepository)(nil)
