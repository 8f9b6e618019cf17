// Package gate contains the result types shared by every quality gate.
// This is part of the Functional Core - no I/O, only pure functions.
package gate

import (
	"fmt"
	"strings"
)

// Code identifies the outcome of a single gate check.
type Code string

const (
	CodePass Code = "PASS"

	// Lifecycle
	CodeInvalidTransition Code = "INVALID_TRANSITION"

	// Caption/structure
	CodeCaptionMissing         Code = "CAPTION_MISSING"
	CodeTitleNotInterrogative  Code = "TITLE_NOT_INTERROGATIVE"
	CodeLengthOutOfRange       Code = "LENGTH_OUT_OF_RANGE"
	CodeHashtagCount           Code = "HASHTAG_COUNT"
	CodeHashtagRequiredMissing Code = "HASHTAG_REQUIRED_MISSING"
	CodeDosageMissing          Code = "DOSAGE_MISSING"
	CodeDosageForbidden        Code = "DOSAGE_FORBIDDEN"
	CodeForbiddenToken         Code = "FORBIDDEN_TOKEN"
	CodeRequiredTokenMissing   Code = "REQUIRED_TOKEN_MISSING"
	CodeDisclosureMissing      Code = "DISCLOSURE_MISSING"
	CodeUnknownPlatform        Code = "UNKNOWN_PLATFORM"

	// Asset manifest
	CodeAssetCount        Code = "ASSET_COUNT"
	CodeAssetCoverMissing Code = "ASSET_COVER_MISSING"
	CodeAssetResolution   Code = "ASSET_RESOLUTION"
	CodeAssetIncomplete   Code = "ASSET_INCOMPLETE"

	// Metadata and rule sync
	CodeMissingMetadata Code = "MISSING_METADATA"
	CodeInvalidRule     Code = "INVALID_RULE"
	CodeRuleDrift       Code = "RULE_DRIFT"

	// Source trust
	CodeAllPass          Code = "ALL_PASS"
	CodeConditionalPass  Code = "CONDITIONAL_PASS"
	CodeCategoryBlocked  Code = "CATEGORY_BLOCKED"
	CodeNoSources        Code = "NO_SOURCES"
	CodeAllSourcesFailed Code = "ALL_SOURCES_FAILED"
	CodeBlogOnly         Code = "BLOG_ONLY"
	CodeNoTrustedSource  Code = "NO_TRUSTED_SOURCE"
	CodeInfoMismatch     Code = "INFO_MISMATCH"
	CodeUnknownCategory  Code = "UNKNOWN_CATEGORY"
	CodeRetryExhausted   Code = "RETRY_EXHAUSTED"
)

// Result is the outcome of one gate check.
type Result struct {
	Gate        string // e.g. "caption:INSTAGRAM", "assets", "rulesync:cover.png"
	Passed      bool
	Code        Code
	Message     string
	Remediation string   // Human-actionable hint, set on every failure
	SideEffects []string // e.g. "category grapes blocked"
}

// Pass returns a passing result for the named gate.
func Pass(gateName string) Result {
	return Result{Gate: gateName, Passed: true, Code: CodePass}
}

// PassWith returns a passing result carrying a non-PASS informational code,
// e.g. CONDITIONAL_PASS.
func PassWith(gateName string, code Code, message string) Result {
	return Result{Gate: gateName, Passed: true, Code: code, Message: message}
}

// Fail returns a failing result.
func Fail(gateName string, code Code, message, remediation string) Result {
	return Result{
		Gate:        gateName,
		Passed:      false,
		Code:        code,
		Message:     message,
		Remediation: remediation,
	}
}

// Error returns the result as an error if it failed, nil otherwise.
func (r Result) Error() error {
	if r.Passed {
		return nil
	}
	return fmt.Errorf("%s: %s: %s", r.Gate, r.Code, r.Message)
}

// Decision aggregates gate results for one lifecycle transition.
type Decision struct {
	ItemID   string
	Target   string
	Admitted bool
	Results  []Result
}

// Decide builds a Decision. An empty result set is never admitted.
func Decide(itemID, target string, results []Result) Decision {
	admitted := len(results) > 0
	for _, r := range results {
		if !r.Passed {
			admitted = false
			break
		}
	}
	return Decision{
		ItemID:   itemID,
		Target:   target,
		Admitted: admitted,
		Results:  results,
	}
}

// Failures returns the failing results in evaluation order.
func (d Decision) Failures() []Result {
	var out []Result
	for _, r := range d.Results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// Summary returns a one-line description of the decision.
func (d Decision) Summary() string {
	if d.Admitted {
		return fmt.Sprintf("%s admitted to %s (%d gates passed)", d.ItemID, d.Target, len(d.Results))
	}
	failures := d.Failures()
	codes := make([]string, 0, len(failures))
	for _, f := range failures {
		codes = append(codes, string(f.Code))
	}
	return fmt.Sprintf("%s blocked from %s: %s", d.ItemID, d.Target, strings.Join(codes, ", "))
}
