// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import (
	"context"
	"errors"
)

// ErrStaleRevision is returned by TransitionStage when the item was updated
// after the change was decided.
var ErrStaleRevision = errors.New("item revision changed")

// ContentRepository defines the secondary port for content item persistence.
type ContentRepository interface {
	// Save inserts or replaces an item together with its captions, assets,
	// generation metadata and sources. The stored stage is never changed by
	// Save on an existing item.
	Save(ctx context.Context, item *ContentItemRecord) error

	// GetByID retrieves an item with all its children.
	GetByID(ctx context.Context, id string) (*ContentItemRecord, error)

	// Exists reports whether an item with the given ID is stored.
	Exists(ctx context.Context, id string) (bool, error)

	// List retrieves item headers (no children) matching the given filters.
	List(ctx context.Context, filters ContentFilters) ([]*ContentItemRecord, error)

	// TransitionStage moves an item from one stage to another and appends the
	// change to the stage history atomically. Fails if the item is no longer
	// at change.FromStage.
	TransitionStage(ctx context.Context, change *StageChangeRecord) error

	// History returns the stage history of an item, oldest first.
	History(ctx context.Context, itemID string) ([]*StageChangeRecord, error)

	// GetMaxSequence returns the highest numeric ID prefix in use.
	GetMaxSequence(ctx context.Context) (int, error)
}

// ContentItemRecord represents a content item as stored in persistence.
type ContentItemRecord struct {
	ID            string
	Stage         string
	SafetyClass   string
	Category      string
	Provenance    string
	ClaimNames    []string
	ClaimSymptoms []string
	ClaimSeverity string
	Revision      int
	CreatedAt     string
	UpdatedAt     string
	PostedAt      string // Empty until POSTED

	Captions       map[string]string // platform -> text
	Assets         []ContentAssetRecord
	GenerationMeta []GenerationMetaRecord
	Sources        []ContentSourceRecord
}

// ContentAssetRecord is one asset of an item.
type ContentAssetRecord struct {
	Kind   string
	Path   string
	Width  int
	Height int
	Bytes  int64
}

// GenerationMetaRecord is the generation metadata of one asset.
type GenerationMetaRecord struct {
	AssetPath   string
	RuleName    string
	RuleHash    string
	GeneratedAt string
}

// ContentSourceRecord is one cited source of an item.
type ContentSourceRecord struct {
	URL   string
	Grade string
}

// ContentFilters contains filter options for querying items.
type ContentFilters struct {
	Stage    string
	Category string
	Limit    int
}

// StageChangeRecord is one entry of an item's stage history.
type StageChangeRecord struct {
	ItemID    string
	FromStage string
	ToStage   string
	Revision  int // When non-zero, the stored revision must still match
	Actor     string
	Reason    string
	ChangedAt string
	PostedAt  string // Set when ToStage is POSTED
}

// ConditionalPassRepository defines the secondary port for conditional passes
// and the category blocks derived from them.
type ConditionalPassRepository interface {
	// Create persists a new conditional pass.
	Create(ctx context.Context, record *ConditionalPassRecord) error

	// GetByID retrieves a conditional pass by its ID.
	GetByID(ctx context.Context, id string) (*ConditionalPassRecord, error)

	// GetBySource retrieves the pass for (category, original source), or nil
	// if there is none.
	GetBySource(ctx context.Context, category, originalSource string) (*ConditionalPassRecord, error)

	// FindByURL returns passes whose original or alternative source is url.
	FindByURL(ctx context.Context, url string) ([]*ConditionalPassRecord, error)

	// List retrieves passes matching the given filters.
	List(ctx context.Context, filters ConditionalPassFilters) ([]*ConditionalPassRecord, error)

	// Regrant replaces a resolved or expired pass for the same (category,
	// original source) with a fresh grant.
	Regrant(ctx context.Context, record *ConditionalPassRecord) error

	// GetNextID returns the next available pass ID.
	GetNextID(ctx context.Context) (string, error)

	// ListBlocks returns every active category block.
	ListBlocks(ctx context.Context) ([]*CategoryBlockRecord, error)

	// GetBlock returns the block for a category, or nil if it is not blocked.
	GetBlock(ctx context.Context, category string) (*CategoryBlockRecord, error)

	// ApplyMutations applies a batch of pass and block changes in a single
	// transaction.
	ApplyMutations(ctx context.Context, m ExpiryMutations) error
}

// ConditionalPassRecord represents a conditional pass as stored in persistence.
type ConditionalPassRecord struct {
	ID                string
	Category          string
	OriginalSource    string
	AlternativeSource string
	MatchScore        string // "N/3"
	GrantedAt         string
	ExpiresAt         string
	Status            string
	Resolved          bool
	ResolvedAt        string
	LastWarnedOn      string
}

// ConditionalPassFilters contains filter options for querying passes.
type ConditionalPassFilters struct {
	Status     string
	Category   string
	Unresolved bool
}

// CategoryBlockRecord represents a category block as stored in persistence.
type CategoryBlockRecord struct {
	Category  string
	Reason    string
	BlockedAt string
	Scope     string
}

// ExpiryMutations is a batch of changes produced by one sweep or resolution.
type ExpiryMutations struct {
	MarkWarned   []WarnMark
	Expire       []string // pass IDs
	Resolve      []PassResolution
	CreateBlocks []*CategoryBlockRecord
	RemoveBlocks []string // categories
}

// Empty reports whether the batch has no changes.
func (m ExpiryMutations) Empty() bool {
	return len(m.MarkWarned) == 0 && len(m.Expire) == 0 && len(m.Resolve) == 0 &&
		len(m.CreateBlocks) == 0 && len(m.RemoveBlocks) == 0
}

// WarnMark records the day a warning was sent for a pass.
type WarnMark struct {
	PassID string
	Day    string
}

// PassResolution marks a pass resolved, keeping Status.
type PassResolution struct {
	PassID     string
	Status     string
	ResolvedAt string
}

// VerificationLogRepository defines the secondary port for the immutable
// per-day verification log.
type VerificationLogRepository interface {
	// Record writes the entry unless one already exists for (category, day).
	// Returns true when the entry was written.
	Record(ctx context.Context, entry *VerificationLogRecord) (bool, error)

	// Get returns the entry for (category, day), or nil.
	Get(ctx context.Context, category, day string) (*VerificationLogRecord, error)

	// List returns entries, newest first.
	List(ctx context.Context, filters VerificationLogFilters) ([]*VerificationLogRecord, error)
}

// VerificationLogRecord is one day's verification outcome for a category.
type VerificationLogRecord struct {
	Category   string
	Day        string
	Outcome    string
	Code       string
	MatchScore string
	URLs       []string
	Detail     string
	CreatedAt  string
}

// VerificationLogFilters contains filter options for the verification log.
type VerificationLogFilters struct {
	Category string
	Limit    int
}

// ReviewQueueRepository defines the secondary port for the manual review queue.
type ReviewQueueRepository interface {
	// Create appends an entry.
	Create(ctx context.Context, entry *ReviewQueueRecord) error

	// GetByID retrieves an entry.
	GetByID(ctx context.Context, id string) (*ReviewQueueRecord, error)

	// HasOpen reports whether an unresolved entry exists for (category, url).
	HasOpen(ctx context.Context, category, url string) (bool, error)

	// List returns entries, oldest first.
	List(ctx context.Context, filters ReviewQueueFilters) ([]*ReviewQueueRecord, error)

	// Resolve closes an entry.
	Resolve(ctx context.Context, id, note, resolvedAt string) error
}

// ReviewQueueRecord is one item awaiting manual review.
type ReviewQueueRecord struct {
	ID             string
	Category       string
	URL            string
	Outcome        string
	Code           string
	Detail         string
	Resolved       bool
	ResolutionNote string
	CreatedAt      string
	ResolvedAt     string
}

// ReviewQueueFilters contains filter options for the review queue.
type ReviewQueueFilters struct {
	Category string
	OpenOnly bool
	Limit    int
}

// DecisionLogRepository defines the secondary port for the gate decision audit trail.
type DecisionLogRepository interface {
	// Create appends a decision.
	Create(ctx context.Context, decision *GateDecisionRecord) error

	// ListByItem returns an item's decisions, newest first.
	ListByItem(ctx context.Context, itemID string, limit int) ([]*GateDecisionRecord, error)
}

// GateDecisionRecord is one persisted gate decision.
type GateDecisionRecord struct {
	ID          string
	ItemID      string
	Revision    int
	TargetStage string
	Admitted    bool
	Codes       []string
	Summary     string
	DecidedAt   string
}
