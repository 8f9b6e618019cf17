package primary

import "context"

// ContentService defines the primary port for content item operations.
type ContentService interface {
	// ImportManifest creates or updates an item from a manifest document.
	ImportManifest(ctx context.Context, data []byte) (*ImportResult, error)

	// GetItem retrieves an item with its captions, assets and sources.
	GetItem(ctx context.Context, itemID string) (*ContentItem, error)

	// ListItems lists item headers with optional filters.
	ListItems(ctx context.Context, filters ContentFilters) ([]*ContentItem, error)

	// Demote moves an item back to an earlier stage.
	Demote(ctx context.Context, req DemoteRequest) error

	// History returns an item's stage changes, oldest first.
	History(ctx context.Context, itemID string) ([]*StageChange, error)

	// Decisions returns an item's recorded gate decisions, newest first.
	Decisions(ctx context.Context, itemID string, limit int) ([]*GateDecision, error)
}

// ImportResult is the outcome of a manifest import.
type ImportResult struct {
	ItemID   string
	Created  bool
	Revision int
	Stage    string
}

// ContentItem represents an item at the port boundary.
type ContentItem struct {
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
	PostedAt      string // May be empty

	Captions map[string]string
	Assets   []ContentAsset
	Sources  []ContentSource
}

// ContentAsset is one asset and its generation metadata.
type ContentAsset struct {
	Kind     string
	Path     string
	Width    int
	Height   int
	Bytes    int64
	RuleName string // May be empty
	RuleHash string // May be empty
}

// ContentSource is one cited source.
type ContentSource struct {
	URL   string
	Grade string
}

// ContentFilters contains filter options for listing items.
type ContentFilters struct {
	Stage    string
	Category string
	Limit    int
}

// DemoteRequest contains parameters for a manual demotion.
type DemoteRequest struct {
	ItemID  string
	ToStage string
	Actor   string
	Reason  string
}

// StageChange is one entry of an item's stage history.
type StageChange struct {
	FromStage string
	ToStage   string
	Actor     string
	Reason    string
	ChangedAt string
}

// GateDecision is one recorded gate decision.
type GateDecision struct {
	ID          string
	Revision    int
	TargetStage string
	Admitted    bool
	Codes       []string
	Summary     string
	DecidedAt   string
}
