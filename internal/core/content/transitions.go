package content

import (
	"fmt"
	"strings"
	"time"
)

// Stage is an item's position in the production lifecycle.
type Stage string

const (
	StageDraft     Stage = "DRAFT"
	StageBodyReady Stage = "BODY_READY"
	StageApproved  Stage = "APPROVED"
	StagePosted    Stage = "POSTED"
)

var stageOrder = []Stage{StageDraft, StageBodyReady, StageApproved, StagePosted}

// ParseStage parses a stage name (case-insensitive, '-' accepted for '_').
func ParseStage(s string) (Stage, error) {
	st := Stage(strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "-", "_"))
	if st.index() < 0 {
		return "", fmt.Errorf("unknown stage %q (want DRAFT, BODY_READY, APPROVED or POSTED)", s)
	}
	return st, nil
}

func (s Stage) index() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Next returns the stage after s, or false if s is terminal.
func (s Stage) Next() (Stage, bool) {
	i := s.index()
	if i < 0 || i == len(stageOrder)-1 {
		return "", false
	}
	return stageOrder[i+1], true
}

// Before reports whether s comes earlier in the lifecycle than other.
func (s Stage) Before(other Stage) bool {
	return s.index() < other.index()
}

// InitialStage returns the stage for a new item.
func InitialStage() Stage {
	return StageDraft
}

// TransitionContext provides context for stage transition guards.
type TransitionContext struct {
	ItemID  string
	Current Stage
	Target  Stage
}

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error returns the guard result as an error if not allowed, nil otherwise.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

// CanAdvance evaluates whether an item may be gated towards the target stage.
// Rule: stages advance one step at a time; POSTED is terminal.
func CanAdvance(ctx TransitionContext) GuardResult {
	if ctx.Current == StagePosted {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("Item %s is already POSTED; posted items never change stage", ctx.ItemID),
		}
	}
	next, _ := ctx.Current.Next()
	if ctx.Target != next {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("Item %s is %s; the only forward transition is to %s (requested %s)", ctx.ItemID, ctx.Current, next, ctx.Target),
		}
	}
	return GuardResult{Allowed: true}
}

// CanDemote evaluates a manual demotion.
// Rule: any earlier stage is allowed, except from POSTED which is irreversible.
func CanDemote(ctx TransitionContext) GuardResult {
	if ctx.Current == StagePosted {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("Item %s is POSTED; reversal from POSTED is not allowed", ctx.ItemID),
		}
	}
	if !ctx.Target.Before(ctx.Current) {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("Cannot demote item %s from %s to %s: target must be an earlier stage", ctx.ItemID, ctx.Current, ctx.Target),
		}
	}
	return GuardResult{Allowed: true}
}

// TransitionResult captures the new stage and its side effects.
type TransitionResult struct {
	NewStage Stage
	PostedAt *time.Time // Set when transitioning to POSTED
}

// ApplyTransition applies a stage transition. The caller passes the current
// time to enable testing.
func ApplyTransition(target Stage, now time.Time) TransitionResult {
	result := TransitionResult{NewStage: target}
	if target == StagePosted {
		result.PostedAt = &now
	}
	return result
}

// GatePlan lists which gates a target stage requires.
type GatePlan struct {
	Captions   bool
	Assets     bool
	Metadata   bool // metadata existence and rule sync
	Provenance bool // source trust and category blocks
}

// RequiredGates returns the gate plan for reaching the target stage.
func RequiredGates(target Stage) GatePlan {
	switch target {
	case StageBodyReady:
		return GatePlan{Assets: true, Metadata: true}
	case StageApproved, StagePosted:
		return GatePlan{Captions: true, Assets: true, Metadata: true, Provenance: true}
	}
	return GatePlan{}
}
