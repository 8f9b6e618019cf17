package primary

import "context"

// GateService defines the primary port for the approval gate.
type GateService interface {
	// Check evaluates every gate for a transition without changing the item.
	// Gate failures are reported in the returned report, never as errors.
	Check(ctx context.Context, req CheckRequest) (*GateReport, error)

	// Advance evaluates the gates and, when admitted, moves the item to the
	// target stage.
	Advance(ctx context.Context, req AdvanceRequest) (*AdvanceResponse, error)

	// CheckAll evaluates every item at a stage concurrently.
	CheckAll(ctx context.Context, req CheckAllRequest) ([]*GateReport, error)
}

// CheckRequest contains parameters for a gate check.
type CheckRequest struct {
	ItemID      string
	TargetStage string
}

// AdvanceRequest contains parameters for advancing an item.
type AdvanceRequest struct {
	ItemID      string
	TargetStage string
	Actor       string
	Reason      string
}

// AdvanceResponse is the outcome of an advance.
type AdvanceResponse struct {
	Report       *GateReport
	Transitioned bool
	FromStage    string
}

// CheckAllRequest contains parameters for a batch check.
type CheckAllRequest struct {
	Stage       string // items currently at this stage
	TargetStage string // defaults to the next stage
	Concurrency int
}

// GateReport is the decision for one item and transition.
type GateReport struct {
	ItemID      string
	Revision    int
	FromStage   string
	TargetStage string
	Admitted    bool
	Summary     string
	Results     []GateResult
	Err         string // set by CheckAll when the item could not be evaluated
}

// GateResult is the outcome of one gate.
type GateResult struct {
	Gate        string
	Passed      bool
	Code        string
	Message     string
	Remediation string   // May be empty
	SideEffects []string // May be empty
}
