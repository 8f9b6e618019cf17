package primary

import "context"

// RuleService defines the primary port for inspecting the rule registry.
type RuleService interface {
	// Describe returns the registry's version, source and generation rules.
	Describe(ctx context.Context) (*RuleSet, error)
}

// RuleSet describes the loaded registry.
type RuleSet struct {
	Version    int
	Source     string
	Rules      []*GenerationRule
	Categories []string
}

// GenerationRule is one named asset-generation rule.
type GenerationRule struct {
	Name        string
	Kind        string
	Current     bool
	Hash        string
	Description string
}
