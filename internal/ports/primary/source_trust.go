package primary

import "context"

// SourceTrustService defines the primary port for source verification and the
// manual review queue.
type SourceTrustService interface {
	// VerifySources checks an item's cited sources and resolves its category.
	VerifySources(ctx context.Context, itemID string) (*SourceVerification, error)

	// ListReview lists review queue entries.
	ListReview(ctx context.Context, filters ReviewFilters) ([]*ReviewEntry, error)

	// ResolveReview closes a review queue entry.
	ResolveReview(ctx context.Context, entryID, note string) error

	// VerificationLog lists recorded daily verifications.
	VerificationLog(ctx context.Context, category string, limit int) ([]*Verification, error)
}

// SourceVerification is the outcome of verifying one item's sources.
type SourceVerification struct {
	ItemID          string
	Category        string
	Outcome         string // ALL_PASS, CONDITIONAL_PASS, FAIL
	Code            string
	Message         string
	MatchScore      string // May be empty
	Checks          []URLCheck
	ConditionalPass *ConditionalPass // Set on CONDITIONAL_PASS
	CategoryBlocked bool
	AlreadyLogged   bool // today's verification for the category was recorded earlier
}

// URLCheck is one checked source.
type URLCheck struct {
	URL    string
	Grade  string
	Status string
	Detail string
}

// ReviewEntry is one item awaiting manual follow-up.
type ReviewEntry struct {
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

// ReviewFilters contains filter options for the review queue.
type ReviewFilters struct {
	Category string
	OpenOnly bool
	Limit    int
}

// Verification is one logged daily verification.
type Verification struct {
	Category   string
	Day        string
	Outcome    string
	Code       string
	MatchScore string
	URLs       []string
	Detail     string
}
