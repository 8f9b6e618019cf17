package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/example/contentgate/internal/core/caption"
	"github.com/example/contentgate/internal/core/content"
	"github.com/example/contentgate/internal/core/gate"
	"github.com/example/contentgate/internal/core/rulesync"
	"github.com/example/contentgate/internal/core/sourcetrust"
	"github.com/example/contentgate/internal/ctxutil"
	"github.com/example/contentgate/internal/logging"
	"github.com/example/contentgate/internal/metrics"
	"github.com/example/contentgate/internal/ports/primary"
	"github.com/example/contentgate/internal/ports/secondary"
)

// GateRegistry is the part of the rule registry the approval gate needs.
type GateRegistry interface {
	rulesync.Registry
	CaptionTemplates() caption.Templates
}

// GateOptions tunes the approval gate.
type GateOptions struct {
	Platforms          []content.Platform
	Assets             content.AssetRequirements
	RuleSync           rulesync.Options
	DefaultConcurrency int
}

// GateServiceImpl runs every quality gate for a lifecycle transition.
type GateServiceImpl struct {
	contentRepo  secondary.ContentRepository
	passRepo     secondary.ConditionalPassRepository
	decisionRepo secondary.DecisionLogRepository
	verifier     *SourceVerifier
	registry     GateRegistry
	lock         *BlockLock
	opts         GateOptions
	metrics      *metrics.Metrics
	logger       logging.Logger
	now          func() time.Time
}

// GateServiceConfig wires a GateServiceImpl.
type GateServiceConfig struct {
	ContentRepo  secondary.ContentRepository
	PassRepo     secondary.ConditionalPassRepository
	DecisionRepo secondary.DecisionLogRepository
	Verifier     *SourceVerifier
	Registry     GateRegistry
	Lock         *BlockLock
	Options      GateOptions
	Metrics      *metrics.Metrics
	Logger       logging.Logger
	Now          func() time.Time
}

// NewGateService creates a new GateService with injected dependencies.
func NewGateService(cfg GateServiceConfig) *GateServiceImpl {
	s := &GateServiceImpl{
		contentRepo:  cfg.ContentRepo,
		passRepo:     cfg.PassRepo,
		decisionRepo: cfg.DecisionRepo,
		verifier:     cfg.Verifier,
		registry:     cfg.Registry,
		lock:         cfg.Lock,
		opts:         cfg.Options,
		metrics:      cfg.Metrics,
		logger:       logging.OrDiscard(cfg.Logger),
		now:          cfg.Now,
	}
	if s.lock == nil {
		s.lock = NewBlockLock()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if len(s.opts.Platforms) == 0 {
		s.opts.Platforms = content.AllPlatforms
	}
	if s.opts.DefaultConcurrency <= 0 {
		s.opts.DefaultConcurrency = 4
	}
	return s
}

// Evaluate runs the gates for moving item to target. Every gate runs and every
// failure is reported, except that source verification is skipped for a
// blocked category. The evaluation ignores cancellation of ctx once started.
func (s *GateServiceImpl) Evaluate(ctx context.Context, item *content.Item, target content.Stage) (gate.Decision, error) {
	var decision gate.Decision
	err := s.lock.Read(func() error {
		var err error
		decision, err = s.evaluate(context.WithoutCancel(ctx), item, target)
		return err
	})
	return decision, err
}

func (s *GateServiceImpl) evaluate(ctx context.Context, item *content.Item, target content.Stage) (gate.Decision, error) {
	var results []gate.Result

	guard := content.CanAdvance(content.TransitionContext{ItemID: item.ID, Current: item.Stage, Target: target})
	if !guard.Allowed {
		results = append(results, gate.Fail("transition", gate.CodeInvalidTransition, guard.Reason,
			"request the next stage, or demote the item first"))
	}

	plan := content.RequiredGates(target)

	if plan.Captions {
		templates := s.registry.CaptionTemplates()
		for _, platform := range s.opts.Platforms {
			results = append(results, caption.Validate(caption.Input{
				Text:        item.Captions[platform],
				Platform:    platform,
				SafetyClass: item.SafetyClass,
				Provenance:  item.Provenance,
			}, templates)...)
		}
	}

	if plan.Assets {
		results = append(results, content.CheckAssets(item.Assets, s.opts.Assets)...)
	}

	if plan.Metadata {
		for _, a := range item.Assets {
			results = append(results, rulesync.Verify(item.MetaFor(a.Path), a.Kind, s.registry, s.opts.RuleSync).ToGate(a.Path))
		}
	}

	if plan.Provenance {
		r, err := s.provenance(ctx, item)
		if err != nil {
			return gate.Decision{}, err
		}
		results = append(results, r)
	}

	return gate.Decide(item.ID, string(target), results), nil
}

func (s *GateServiceImpl) provenance(ctx context.Context, item *content.Item) (gate.Result, error) {
	block, err := s.passRepo.GetBlock(ctx, item.Category)
	if err != nil {
		return gate.Result{}, fmt.Errorf("failed to read category block: %w", err)
	}
	if block != nil {
		// Posted items are never touched; every admission that needs provenance fails.
		msg := fmt.Sprintf("category %s blocked since %s: %s", block.Category, block.BlockedAt, block.Reason)
		return gate.Fail("provenance", gate.CodeCategoryBlocked, msg, provenanceRemediation(gate.CodeCategoryBlocked)), nil
	}

	v, err := s.verifier.VerifyCategory(ctx, item)
	if err != nil {
		return gate.Result{}, err
	}
	return provenanceResult(v), nil
}

// provenanceResult turns a category verification into the provenance gate
// result. A failure caused only by sources that stayed unreachable through
// every retry is reported as RETRY_EXHAUSTED rather than as a hard failure.
func provenanceResult(v *Verification) gate.Result {
	res := v.Resolution
	var r gate.Result
	switch res.Outcome {
	case sourcetrust.OutcomeAllPass:
		r = gate.PassWith("provenance", res.Code, res.Message)
	case sourcetrust.OutcomeConditionalPass:
		r = gate.PassWith("provenance", res.Code, res.Message)
		for _, p := range v.Passes {
			r.SideEffects = append(r.SideEffects, fmt.Sprintf("conditional pass %s for %s valid until %s",
				p.ID, p.OriginalSource, p.ExpiresAt.Format("2006-01-02")))
		}
	default:
		code := res.Code
		if onlyExhausted(res.Checks) {
			code = gate.CodeRetryExhausted
		}
		r = gate.Fail("provenance", code, res.Message, provenanceRemediation(code))
	}

	for _, c := range res.Checks {
		if c.Exhausted {
			r.SideEffects = append(r.SideEffects, fmt.Sprintf("retries exhausted for %s: %s", c.URL, c.Detail))
		}
	}
	return r
}

// onlyExhausted reports whether at least one check failed and every failed
// check was a transient failure that exhausted its retries.
func onlyExhausted(checks []sourcetrust.URLCheck) bool {
	failed := 0
	for _, c := range checks {
		if c.Passed() {
			continue
		}
		if !c.Exhausted {
			return false
		}
		failed++
	}
	return failed > 0
}

func provenanceRemediation(code gate.Code) string {
	switch code {
	case gate.CodeNoSources:
		return "cite at least one grade S, A or B source"
	case gate.CodeBlogOnly:
		return "add a grade S, A or B source; blogs cannot stand alone"
	case gate.CodeAllSourcesFailed:
		return "replace the unreachable sources with working ones"
	case gate.CodeNoTrustedSource:
		return "replace the failed source with a reachable grade S, A or B source"
	case gate.CodeInfoMismatch:
		return "cite an alternative that covers the same toxin, symptoms and severity"
	case gate.CodeCategoryBlocked:
		return "fix or replace the expired source, then run `gate resolve <url>`"
	case gate.CodeUnknownCategory:
		return "set the item's category in its manifest"
	case gate.CodeRetryExhausted:
		return "the sources did not respond after every retry; check again once they are reachable"
	}
	return "review the item's sources"
}

// Check evaluates an item without changing it.
func (s *GateServiceImpl) Check(ctx context.Context, req primary.CheckRequest) (*primary.GateReport, error) {
	item, target, err := s.load(ctx, req.ItemID, req.TargetStage)
	if err != nil {
		return nil, err
	}
	decision, err := s.Evaluate(ctx, item, target)
	if err != nil {
		return nil, err
	}
	s.record(ctx, item, decision)
	return toReport(item, decision), nil
}

// Advance evaluates and, when admitted, transitions the item. Evaluation and
// transition run under the same read lock so a sweep cannot block the
// category in between.
func (s *GateServiceImpl) Advance(ctx context.Context, req primary.AdvanceRequest) (*primary.AdvanceResponse, error) {
	item, target, err := s.load(ctx, req.ItemID, req.TargetStage)
	if err != nil {
		return nil, err
	}

	resp := &primary.AdvanceResponse{FromStage: string(item.Stage)}
	err = s.lock.Read(func() error {
		ctx := context.WithoutCancel(ctx)
		decision, err := s.evaluate(ctx, item, target)
		if err != nil {
			return err
		}
		s.record(ctx, item, decision)
		resp.Report = toReport(item, decision)
		if !decision.Admitted {
			return nil
		}

		actor := ctxutil.ResolveActor(ctx, req.Actor)
		now := s.now().UTC()
		transition := content.ApplyTransition(target, now)
		change := &secondary.StageChangeRecord{
			ItemID:    item.ID,
			FromStage: string(item.Stage),
			ToStage:   string(transition.NewStage),
			Revision:  item.Revision,
			Actor:     actor,
			Reason:    req.Reason,
			ChangedAt: formatTimestamp(now),
		}
		if transition.PostedAt != nil {
			change.PostedAt = formatTimestamp(*transition.PostedAt)
		}
		if err := s.contentRepo.TransitionStage(ctx, change); err != nil {
			if errors.Is(err, secondary.ErrStaleRevision) {
				return fmt.Errorf("item %s changed since revision %d was checked; run the check again: %w", item.ID, item.Revision, err)
			}
			return fmt.Errorf("failed to transition item: %w", err)
		}
		resp.Transitioned = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if resp.Transitioned {
		s.logger.WithFields(logging.Fields{
			"item_id": item.ID,
			"from":    resp.FromStage,
			"to":      string(target),
		}).Info("item advanced")
	}
	return resp, nil
}

// CheckAll evaluates every item at a stage. Items are evaluated concurrently;
// a failure to evaluate one item is reported on its report, not returned.
func (s *GateServiceImpl) CheckAll(ctx context.Context, req primary.CheckAllRequest) ([]*primary.GateReport, error) {
	stage, err := content.ParseStage(req.Stage)
	if err != nil {
		return nil, err
	}
	target := req.TargetStage
	if target == "" {
		next, ok := stage.Next()
		if !ok {
			return nil, fmt.Errorf("items at %s have no next stage", stage)
		}
		target = string(next)
	}
	if _, err := content.ParseStage(target); err != nil {
		return nil, err
	}

	items, err := s.contentRepo.List(ctx, secondary.ContentFilters{Stage: string(stage)})
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	limit := req.Concurrency
	if limit <= 0 {
		limit = s.opts.DefaultConcurrency
	}

	reports := make([]*primary.GateReport, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, it := range items {
		i, it := i, it
		g.Go(func() error {
			report, err := s.Check(gctx, primary.CheckRequest{ItemID: it.ID, TargetStage: target})
			if err != nil {
				report = &primary.GateReport{ItemID: it.ID, FromStage: it.Stage, TargetStage: target, Err: err.Error()}
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}

func (s *GateServiceImpl) load(ctx context.Context, itemID, targetStage string) (*content.Item, content.Stage, error) {
	target, err := content.ParseStage(targetStage)
	if err != nil {
		return nil, "", err
	}
	record, err := s.contentRepo.GetByID(ctx, itemID)
	if err != nil {
		return nil, "", err
	}
	item, err := itemFromRecord(record)
	if err != nil {
		return nil, "", fmt.Errorf("item %s: %w", itemID, err)
	}
	return item, target, nil
}

// record appends the decision to the audit trail. A failure to record is
// logged; the decision itself stands.
func (s *GateServiceImpl) record(ctx context.Context, item *content.Item, d gate.Decision) {
	s.metrics.ObserveDecision(d)

	codes := make([]string, 0)
	for _, f := range d.Failures() {
		codes = append(codes, string(f.Code))
	}
	err := s.decisionRepo.Create(ctx, &secondary.GateDecisionRecord{
		ID:          uuid.NewString(),
		ItemID:      item.ID,
		Revision:    item.Revision,
		TargetStage: d.Target,
		Admitted:    d.Admitted,
		Codes:       codes,
		Summary:     d.Summary(),
		DecidedAt:   formatTimestamp(s.now()),
	})
	if err != nil {
		s.logger.WithError(err).WithField("item_id", item.ID).Warn("failed to record gate decision")
	}

	s.logger.WithFields(logging.Fields{
		"item_id":  item.ID,
		"target":   d.Target,
		"admitted": d.Admitted,
		"codes":    strings.Join(codes, ","),
	}).Info("gate decision")
}

func toReport(item *content.Item, d gate.Decision) *primary.GateReport {
	report := &primary.GateReport{
		ItemID:      item.ID,
		Revision:    item.Revision,
		FromStage:   string(item.Stage),
		TargetStage: d.Target,
		Admitted:    d.Admitted,
		Summary:     d.Summary(),
	}
	for _, r := range d.Results {
		report.Results = append(report.Results, primary.GateResult{
			Gate:        r.Gate,
			Passed:      r.Passed,
			Code:        string(r.Code),
			Message:     r.Message,
			Remediation: r.Remediation,
			SideEffects: r.SideEffects,
		})
	}
	return report
}

// Ensure GateServiceImpl implements the interface
var _ primary.GateService = (*GateServiceImpl)(nil)
