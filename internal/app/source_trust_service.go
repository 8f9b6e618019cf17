package app

import (
	"context"
	"fmt"
	"time"

	"github.com/example/contentgate/internal/core/gate"
	"github.com/example/contentgate/internal/core/sourcetrust"
	"github.com/example/contentgate/internal/logging"
	"github.com/example/contentgate/internal/ports/primary"
	"github.com/example/contentgate/internal/ports/secondary"
)

// SourceTrustServiceImpl implements the SourceTrustService interface.
type SourceTrustServiceImpl struct {
	contentRepo secondary.ContentRepository
	passRepo    secondary.ConditionalPassRepository
	logRepo     secondary.VerificationLogRepository
	reviewRepo  secondary.ReviewQueueRepository
	verifier    *SourceVerifier
	lock        *BlockLock
	logger      logging.Logger
	now         func() time.Time
}

// SourceTrustServiceConfig wires a SourceTrustServiceImpl.
type SourceTrustServiceConfig struct {
	ContentRepo secondary.ContentRepository
	PassRepo    secondary.ConditionalPassRepository
	LogRepo     secondary.VerificationLogRepository
	ReviewRepo  secondary.ReviewQueueRepository
	Verifier    *SourceVerifier
	Lock        *BlockLock
	Logger      logging.Logger
	Now         func() time.Time
}

// NewSourceTrustService creates a new SourceTrustService with injected dependencies.
func NewSourceTrustService(cfg SourceTrustServiceConfig) *SourceTrustServiceImpl {
	s := &SourceTrustServiceImpl{
		contentRepo: cfg.ContentRepo,
		passRepo:    cfg.PassRepo,
		logRepo:     cfg.LogRepo,
		reviewRepo:  cfg.ReviewRepo,
		verifier:    cfg.Verifier,
		lock:        cfg.Lock,
		logger:      logging.OrDiscard(cfg.Logger),
		now:         cfg.Now,
	}
	if s.lock == nil {
		s.lock = NewBlockLock()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// VerifySources runs source verification for one item outside of a gate
// check. The verification is logged and may grant a conditional pass, exactly
// as during Check.
func (s *SourceTrustServiceImpl) VerifySources(ctx context.Context, itemID string) (*primary.SourceVerification, error) {
	record, err := s.contentRepo.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	item, err := itemFromRecord(record)
	if err != nil {
		return nil, err
	}

	var (
		verification *Verification
		block        *secondary.CategoryBlockRecord
	)
	err = s.lock.Read(func() error {
		if item.Category != "" {
			if block, err = s.passRepo.GetBlock(ctx, item.Category); err != nil {
				return fmt.Errorf("failed to read category block: %w", err)
			}
		}
		verification, err = s.verifier.VerifyCategory(ctx, item)
		return err
	})
	if err != nil {
		return nil, err
	}

	res := verification.Resolution
	out := &primary.SourceVerification{
		ItemID:          item.ID,
		Category:        item.Category,
		Outcome:         string(res.Outcome),
		Code:            string(res.Code),
		Message:         res.Message,
		MatchScore:      scoreString(res.Score),
		CategoryBlocked: block != nil || res.Code == gate.CodeCategoryBlocked,
		AlreadyLogged:   !verification.Logged,
	}
	for _, c := range res.Checks {
		out.Checks = append(out.Checks, urlCheckToPrimary(c))
	}
	if len(verification.Passes) > 0 {
		out.ConditionalPass = passToPrimary(verification.Passes[0], s.now())
	}
	return out, nil
}

// ListReview lists review queue entries.
func (s *SourceTrustServiceImpl) ListReview(ctx context.Context, filters primary.ReviewFilters) ([]*primary.ReviewEntry, error) {
	records, err := s.reviewRepo.List(ctx, secondary.ReviewQueueFilters{
		Category: filters.Category,
		OpenOnly: filters.OpenOnly,
		Limit:    filters.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list review queue: %w", err)
	}

	entries := make([]*primary.ReviewEntry, len(records))
	for i, r := range records {
		entries[i] = &primary.ReviewEntry{
			ID:             r.ID,
			Category:       r.Category,
			URL:            r.URL,
			Outcome:        r.Outcome,
			Code:           r.Code,
			Detail:         r.Detail,
			Resolved:       r.Resolved,
			ResolutionNote: r.ResolutionNote,
			CreatedAt:      r.CreatedAt,
			ResolvedAt:     r.ResolvedAt,
		}
	}
	return entries, nil
}

// ResolveReview closes a review queue entry.
func (s *SourceTrustServiceImpl) ResolveReview(ctx context.Context, entryID, note string) error {
	if note == "" {
		return fmt.Errorf("a resolution note is required")
	}
	if err := s.reviewRepo.Resolve(ctx, entryID, note, formatTimestamp(s.now())); err != nil {
		return err
	}
	s.logger.WithField("review_id", entryID).Info("review entry resolved")
	return nil
}

// VerificationLog lists recorded daily verifications, newest first.
func (s *SourceTrustServiceImpl) VerificationLog(ctx context.Context, category string, limit int) ([]*primary.Verification, error) {
	records, err := s.logRepo.List(ctx, secondary.VerificationLogFilters{Category: category, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list verification log: %w", err)
	}

	out := make([]*primary.Verification, len(records))
	for i, r := range records {
		out[i] = &primary.Verification{
			Category:   r.Category,
			Day:        r.Day,
			Outcome:    r.Outcome,
			Code:       r.Code,
			MatchScore: r.MatchScore,
			URLs:       r.URLs,
			Detail:     r.Detail,
		}
	}
	return out, nil
}

func urlCheckToPrimary(c sourcetrust.URLCheck) primary.URLCheck {
	return primary.URLCheck{
		URL:    c.URL,
		Grade:  string(c.Grade),
		Status: string(c.Status),
		Detail: c.Detail,
	}
}

// Ensure SourceTrustServiceImpl implements the interface
var _ primary.SourceTrustService = (*SourceTrustServiceImpl)(nil)
