package primary

import "context"

// ExpiryService defines the primary port for conditional-pass lifecycle operations.
type ExpiryService interface {
	// ProcessExpirations warns, expires and blocks as of now. Running it twice
	// on the same day changes nothing the second time.
	ProcessExpirations(ctx context.Context) (*SweepReport, error)

	// Resolve re-verifies url and resolves every conditional pass that names it.
	Resolve(ctx context.Context, url string) (*ResolveResult, error)

	// ListPasses lists conditional passes.
	ListPasses(ctx context.Context, filters PassFilters) ([]*ConditionalPass, error)

	// ListBlocks lists active category blocks.
	ListBlocks(ctx context.Context) ([]*CategoryBlock, error)
}

// SweepReport summarizes one expiry sweep.
type SweepReport struct {
	Day                    string
	Warnings               []*ConditionalPass
	Expired                []*ConditionalPass
	NewlyBlockedCategories []string
	UnblockedCategories    []string
	Notified               int
}

// ResolveResult is the outcome of resolving a URL.
type ResolveResult struct {
	URL               string
	Status            string // URL check status
	Resolved          []string
	AlreadyResolved   []string
	UnblockedCategory []string
}

// ConditionalPass represents a conditional pass at the port boundary.
type ConditionalPass struct {
	ID                string
	Category          string
	OriginalSource    string
	AlternativeSource string
	MatchScore        string
	GrantedAt         string
	ExpiresAt         string
	Status            string
	DaysRemaining     int
	Resolved          bool
	ResolvedAt        string // May be empty
}

// PassFilters contains filter options for listing passes.
type PassFilters struct {
	Status     string
	Category   string
	Unresolved bool
}

// CategoryBlock represents an active block.
type CategoryBlock struct {
	Category  string
	Reason    string
	BlockedAt string
	Scope     string
}
