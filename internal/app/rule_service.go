package app

import (
	"context"

	"github.com/example/contentgate/internal/ports/primary"
	"github.com/example/contentgate/internal/rules"
)

// RuleCatalog is the read side of the rule registry.
type RuleCatalog interface {
	Version() int
	Source() string
	Rules() []rules.GenerationRule
	Categories() []string
}

// RuleServiceImpl implements the RuleService interface.
type RuleServiceImpl struct {
	catalog RuleCatalog
}

// NewRuleService creates a new RuleService.
func NewRuleService(catalog RuleCatalog) *RuleServiceImpl {
	return &RuleServiceImpl{catalog: catalog}
}

// Describe returns the registry's version, source and generation rules.
func (s *RuleServiceImpl) Describe(ctx context.Context) (*primary.RuleSet, error) {
	set := &primary.RuleSet{
		Version:    s.catalog.Version(),
		Source:     s.catalog.Source(),
		Categories: s.catalog.Categories(),
	}
	for _, r := range s.catalog.Rules() {
		set.Rules = append(set.Rules, &primary.GenerationRule{
			Name:        r.Name,
			Kind:        string(r.Kind),
			Current:     r.Current,
			Hash:        r.Hash,
			Description: r.Description,
		})
	}
	return set, nil
}

// Ensure RuleServiceImpl implements the interface
var _ primary.RuleService = (*RuleServiceImpl)(nil)
