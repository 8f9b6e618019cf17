// Package rulesync detects assets generated under a rule that is no longer current.
// This is part of the Functional Core - no I/O, only pure functions.
package rulesync

import (
	"fmt"
	"strings"

	"github.com/example/contentgate/internal/core/content"
	"github.com/example/contentgate/internal/core/gate"
)

// DefaultMinHashLength is the shortest rule hash accepted as plausible.
const DefaultMinHashLength = 8

// Registry is the read-only view of the rule registry the checker needs.
type Registry interface {
	// RuleHash returns the current hash of a recognized rule.
	RuleHash(name string) (string, bool)
	// ExpectedRule returns the rule currently used to generate assets of a kind.
	ExpectedRule(kind content.AssetKind) (string, bool)
}

// Options tunes the checker.
type Options struct {
	MinHashLength int
	// Strict requires byte-equal hashes. Only meaningful when the generator
	// hashes rules the same way as the registry.
	Strict bool
}

// Result is the outcome of a rule-sync check.
type Result struct {
	InSync bool
	Code   gate.Code
	Reason string
}

// Verify compares an asset's generation metadata against the registry. It fails
// closed: absent or implausible metadata never passes.
func Verify(meta *content.Meta, kind content.AssetKind, reg Registry, opts Options) Result {
	minLen := opts.MinHashLength
	if minLen <= 0 {
		minLen = DefaultMinHashLength
	}

	if meta == nil {
		return Result{Code: gate.CodeMissingMetadata, Reason: "no generation metadata recorded for asset"}
	}
	name := strings.TrimSpace(meta.RuleName)
	hash := strings.TrimSpace(meta.RuleHash)
	if name == "" {
		return Result{Code: gate.CodeMissingMetadata, Reason: "generation metadata has no rule name"}
	}
	if hash == "" {
		return Result{Code: gate.CodeMissingMetadata, Reason: fmt.Sprintf("generation metadata for rule %s has an empty hash", name)}
	}
	if len(hash) < minLen {
		return Result{Code: gate.CodeInvalidRule, Reason: fmt.Sprintf("rule hash %q shorter than %d characters", hash, minLen)}
	}

	currentHash, known := reg.RuleHash(name)
	if !known {
		return Result{Code: gate.CodeInvalidRule, Reason: fmt.Sprintf("rule %s is not a recognized rule", name)}
	}

	expected, ok := reg.ExpectedRule(kind)
	if !ok {
		return Result{Code: gate.CodeInvalidRule, Reason: fmt.Sprintf("no current generation rule for %s assets", kind)}
	}
	if name != expected {
		return Result{Code: gate.CodeInvalidRule, Reason: fmt.Sprintf("asset generated with %s but %s assets are now generated with %s", name, kind, expected)}
	}

	if opts.Strict && !strings.EqualFold(hash, currentHash) {
		return Result{Code: gate.CodeRuleDrift, Reason: fmt.Sprintf("rule %s hash %s differs from current %s", name, short(hash), short(currentHash))}
	}

	return Result{InSync: true, Code: gate.CodePass}
}

// ToGate converts a check result into a gate result for the named asset.
func (r Result) ToGate(assetPath string) gate.Result {
	name := "rulesync:" + assetPath
	if r.InSync {
		return gate.Pass(name)
	}
	return gate.Fail(name, r.Code, r.Reason, "regenerate the asset with the current rule so its metadata is refreshed")
}

func short(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
