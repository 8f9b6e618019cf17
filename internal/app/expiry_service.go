package app

import (
	"context"
	"fmt"
	"time"

	"github.com/example/contentgate/internal/core/expiry"
	"github.com/example/contentgate/internal/logging"
	"github.com/example/contentgate/internal/metrics"
	"github.com/example/contentgate/internal/ports/primary"
	"github.com/example/contentgate/internal/ports/secondary"
)

// ExpiryServiceImpl implements the ExpiryService interface.
type ExpiryServiceImpl struct {
	passRepo    secondary.ConditionalPassRepository
	reviewRepo  secondary.ReviewQueueRepository
	executor    EffectExecutor
	verifier    *SourceVerifier
	lock        *BlockLock
	metrics     *metrics.Metrics
	logger      logging.Logger
	warningDays int
	pushURL     string
	now         func() time.Time
}

// ExpiryServiceConfig wires an ExpiryServiceImpl.
type ExpiryServiceConfig struct {
	PassRepo    secondary.ConditionalPassRepository
	ReviewRepo  secondary.ReviewQueueRepository
	Executor    EffectExecutor
	Verifier    *SourceVerifier
	Lock        *BlockLock
	Metrics     *metrics.Metrics
	Logger      logging.Logger
	WarningDays int
	// PushURL is the Prometheus Pushgateway that receives sweep metrics.
	// Empty disables pushing.
	PushURL string
	Now     func() time.Time
}

// NewExpiryService creates a new ExpiryService with injected dependencies.
func NewExpiryService(cfg ExpiryServiceConfig) *ExpiryServiceImpl {
	s := &ExpiryServiceImpl{
		passRepo:    cfg.PassRepo,
		reviewRepo:  cfg.ReviewRepo,
		executor:    cfg.Executor,
		verifier:    cfg.Verifier,
		lock:        cfg.Lock,
		metrics:     cfg.Metrics,
		logger:      logging.OrDiscard(cfg.Logger),
		warningDays: cfg.WarningDays,
		pushURL:     cfg.PushURL,
		now:         cfg.Now,
	}
	if s.lock == nil {
		s.lock = NewBlockLock()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.warningDays <= 0 {
		s.warningDays = expiry.DefaultWarningDays
	}
	return s
}

// ProcessExpirations runs one sweep under the write side of the block lock.
func (s *ExpiryServiceImpl) ProcessExpirations(ctx context.Context) (*primary.SweepReport, error) {
	start := time.Now()
	now := s.now()

	var plan expiry.SweepPlan
	err := s.lock.Write(func() error {
		passes, blocks, err := s.loadState(ctx, "")
		if err != nil {
			return err
		}
		plan = expiry.PlanSweep(passes, blocks, now, s.warningDays)
		return s.executor.Execute(ctx, plan.Effects)
	})
	if err != nil {
		return nil, err
	}

	s.observe(ctx, time.Since(start))

	s.logger.WithFields(logging.Fields{
		"day":       plan.Report.Day,
		"warnings":  len(plan.Report.Warnings),
		"expired":   len(plan.Report.Expired),
		"blocked":   len(plan.Report.NewlyBlocked),
		"unblocked": len(plan.Report.Unblocked),
	}).Info("expiry sweep complete")

	report := &primary.SweepReport{
		Day:                    plan.Report.Day,
		NewlyBlockedCategories: plan.Report.NewlyBlocked,
		UnblockedCategories:    plan.Report.Unblocked,
		Notified:               plan.Report.Notified,
	}
	for _, r := range plan.Report.Warnings {
		report.Warnings = append(report.Warnings, passToPrimary(r, now))
	}
	for _, r := range plan.Report.Expired {
		report.Expired = append(report.Expired, passToPrimary(r, now))
	}
	return report, nil
}

func (s *ExpiryServiceImpl) loadState(ctx context.Context, category string) ([]expiry.Record, []expiry.Block, error) {
	records, err := s.passRepo.List(ctx, secondary.ConditionalPassFilters{Category: category})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load conditional passes: %w", err)
	}
	passes, err := passesFromRecords(records)
	if err != nil {
		return nil, nil, err
	}
	blockRecords, err := s.passRepo.ListBlocks(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load category blocks: %w", err)
	}
	return passes, blocksFromRecords(blockRecords), nil
}

func (s *ExpiryServiceImpl) observe(ctx context.Context, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	passes, blocks, err := s.loadState(ctx, "")
	if err != nil {
		s.logger.WithError(err).Warn("failed to collect sweep metrics")
		return
	}
	byStatus := map[string]int{}
	for _, p := range passes {
		byStatus[string(p.Status)]++
	}
	s.metrics.ObserveSweep(elapsed, byStatus, len(blocks))

	if s.pushURL == "" {
		return
	}
	if err := s.metrics.Push(ctx, s.pushURL, "contentgate_sweep"); err != nil {
		s.logger.WithError(err).Warn("failed to push sweep metrics")
	}
}

// Resolve re-verifies url and resolves every pass that names it, lifting a
// category block once no unresolved expired pass remains in the category.
func (s *ExpiryServiceImpl) Resolve(ctx context.Context, url string) (*primary.ResolveResult, error) {
	matches, err := s.passRepo.FindByURL(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to find conditional passes: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no conditional pass references %s", url)
	}

	check := s.verifier.CheckURL(ctx, "resolve:"+url, url, s.verifier.registry.GradeForURL(url))
	result := &primary.ResolveResult{URL: url, Status: string(check.Status)}
	if !check.Passed() {
		return result, fmt.Errorf("%s still fails verification (%s %s); nothing resolved", url, check.Status, check.Detail)
	}

	now := s.now()
	err = s.lock.Write(func() error {
		for _, m := range matches {
			current, err := s.passRepo.GetByID(ctx, m.ID)
			if err != nil {
				return err
			}
			target, err := passFromRecord(current)
			if err != nil {
				return err
			}
			siblings, blocks, err := s.loadState(ctx, target.Category)
			if err != nil {
				return err
			}

			plan := expiry.PlanResolve(target, siblings, blocks, now, s.warningDays)
			if plan.AlreadyResolved {
				result.AlreadyResolved = append(result.AlreadyResolved, target.ID)
				continue
			}
			if err := s.executor.Execute(ctx, plan.Effects); err != nil {
				return err
			}
			result.Resolved = append(result.Resolved, target.ID)
			if plan.LiftsBlock {
				result.UnblockedCategory = append(result.UnblockedCategory, target.Category)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.closeReviews(ctx, matches, url, now)
	return result, nil
}

// closeReviews closes open review entries for the resolved source.
func (s *ExpiryServiceImpl) closeReviews(ctx context.Context, passes []*secondary.ConditionalPassRecord, url string, now time.Time) {
	if s.reviewRepo == nil {
		return
	}
	seen := map[string]bool{}
	for _, p := range passes {
		if seen[p.Category] {
			continue
		}
		seen[p.Category] = true

		entries, err := s.reviewRepo.List(ctx, secondary.ReviewQueueFilters{Category: p.Category, OpenOnly: true})
		if err != nil {
			s.logger.WithError(err).Warn("failed to list review queue")
			continue
		}
		for _, e := range entries {
			if e.URL != url {
				continue
			}
			if err := s.reviewRepo.Resolve(ctx, e.ID, "source verified by resolve", formatTimestamp(now)); err != nil {
				s.logger.WithError(err).WithField("review_id", e.ID).Warn("failed to close review entry")
			}
		}
	}
}

// ListPasses lists conditional passes.
func (s *ExpiryServiceImpl) ListPasses(ctx context.Context, filters primary.PassFilters) ([]*primary.ConditionalPass, error) {
	records, err := s.passRepo.List(ctx, secondary.ConditionalPassFilters{
		Status:     filters.Status,
		Category:   filters.Category,
		Unresolved: filters.Unresolved,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list conditional passes: %w", err)
	}
	passes, err := passesFromRecords(records)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]*primary.ConditionalPass, len(passes))
	for i, p := range passes {
		out[i] = passToPrimary(p, now)
	}
	return out, nil
}

// ListBlocks lists active category blocks.
func (s *ExpiryServiceImpl) ListBlocks(ctx context.Context) ([]*primary.CategoryBlock, error) {
	records, err := s.passRepo.ListBlocks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list category blocks: %w", err)
	}
	out := make([]*primary.CategoryBlock, len(records))
	for i, r := range records {
		out[i] = &primary.CategoryBlock{
			Category:  r.Category,
			Reason:    r.Reason,
			BlockedAt: r.BlockedAt,
			Scope:     r.Scope,
		}
	}
	return out, nil
}

func passToPrimary(r expiry.Record, now time.Time) *primary.ConditionalPass {
	p := &primary.ConditionalPass{
		ID:                r.ID,
		Category:          r.Category,
		OriginalSource:    r.OriginalSource,
		AlternativeSource: r.AlternativeSource,
		MatchScore:        r.Score.String(),
		GrantedAt:         formatTimestamp(r.GrantedAt),
		ExpiresAt:         formatTimestamp(r.ExpiresAt),
		Status:            string(r.Status),
		DaysRemaining:     expiry.DaysRemaining(r.ExpiresAt, now),
		Resolved:          r.Resolved,
	}
	if r.ResolvedAt != nil {
		p.ResolvedAt = formatTimestamp(*r.ResolvedAt)
	}
	return p
}

// Ensure ExpiryServiceImpl implements the interface
var _ primary.ExpiryService = (*ExpiryServiceImpl)(nil)
