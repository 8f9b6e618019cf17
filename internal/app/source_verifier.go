package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/contentgate/internal/core/content"
	"github.com/example/contentgate/internal/core/expiry"
	"github.com/example/contentgate/internal/core/gate"
	"github.com/example/contentgate/internal/core/sourcetrust"
	"github.com/example/contentgate/internal/logging"
	"github.com/example/contentgate/internal/metrics"
	"github.com/example/contentgate/internal/ports/secondary"
)

// SourceRegistry is the part of the rule registry source verification needs.
type SourceRegistry interface {
	KeywordTable(category string) (sourcetrust.Keywords, bool)
	GradeForURL(raw string) sourcetrust.Grade
}

// SourceVerifier checks cited URLs, resolves the category outcome, grants or
// reuses conditional passes, and records the verification log and review queue.
type SourceVerifier struct {
	passRepo   secondary.ConditionalPassRepository
	logRepo    secondary.VerificationLogRepository
	reviewRepo secondary.ReviewQueueRepository
	checker    secondary.URLChecker
	retry      *RetryController
	registry   SourceRegistry
	metrics    *metrics.Metrics
	logger     logging.Logger
	maxRetries int
	now        func() time.Time
	newID      func() string

	// grantMu serializes pass grants; concurrent evaluations share the read
	// side of the block lock.
	grantMu sync.Mutex
}

// SourceVerifierConfig wires a SourceVerifier.
type SourceVerifierConfig struct {
	PassRepo   secondary.ConditionalPassRepository
	LogRepo    secondary.VerificationLogRepository
	ReviewRepo secondary.ReviewQueueRepository
	Checker    secondary.URLChecker
	Retry      *RetryController
	Registry   SourceRegistry
	Metrics    *metrics.Metrics
	Logger     logging.Logger
	// MaxRetries per URL; attempts = MaxRetries + 1.
	MaxRetries int
	Now        func() time.Time
}

// NewSourceVerifier creates a SourceVerifier.
func NewSourceVerifier(cfg SourceVerifierConfig) *SourceVerifier {
	v := &SourceVerifier{
		passRepo:   cfg.PassRepo,
		logRepo:    cfg.LogRepo,
		reviewRepo: cfg.ReviewRepo,
		checker:    cfg.Checker,
		retry:      cfg.Retry,
		registry:   cfg.Registry,
		metrics:    cfg.Metrics,
		logger:     logging.OrDiscard(cfg.Logger),
		maxRetries: cfg.MaxRetries,
		now:        cfg.Now,
		newID:      uuid.NewString,
	}
	if v.now == nil {
		v.now = time.Now
	}
	if v.retry == nil {
		v.retry = NewRetryController(nil, cfg.Metrics, cfg.Logger)
	}
	return v
}

// Verification is the outcome of verifying one category for an item.
type Verification struct {
	Resolution sourcetrust.Resolution
	// Passes are the conditional passes backing a CONDITIONAL_PASS, one per
	// failed source.
	Passes []expiry.Record
	Reused bool
	Logged bool // false when today's verification for the category already existed
}

// CheckURL verifies a single URL through the retry controller. Transient
// statuses are retried; the final status is returned either way.
func (v *SourceVerifier) CheckURL(ctx context.Context, taskID, url string, grade sourcetrust.Grade) sourcetrust.URLCheck {
	var last secondary.URLCheckResult
	err := v.retry.Run(ctx, taskID, v.maxRetries, func(ctx context.Context) error {
		last = v.checker.Check(ctx, url)
		status := sourcetrust.URLStatus(last.Status)
		if status == sourcetrust.StatusPass {
			return nil
		}
		failure := fmt.Errorf("%s %s: %s", url, status, last.Detail)
		if !status.Transient() {
			return Permanent(failure)
		}
		return failure
	})

	check := sourcetrust.URLCheck{
		URL:    url,
		Grade:  grade,
		Status: sourcetrust.URLStatus(last.Status),
		Detail: last.Detail,
	}
	var exhausted *RetryExhaustedError
	if errors.As(err, &exhausted) {
		check.Detail = fmt.Sprintf("%s (after %d attempts)", last.Detail, exhausted.AttemptCount)
		check.Exhausted = check.Status.Transient()
	}
	if check.Status == "" {
		// The context ended before any attempt completed.
		check.Status = sourcetrust.StatusTimeout
		check.Detail = fmt.Sprintf("not checked: %v", err)
	}
	v.metrics.ObserveURLCheck(string(check.Status))
	return check
}

// gradeFor returns the cited grade, or the registry's grade for the URL.
func (v *SourceVerifier) gradeFor(c content.Citation) sourcetrust.Grade {
	if g, err := sourcetrust.ParseGrade(string(c.Grade)); err == nil {
		return g
	}
	return v.registry.GradeForURL(c.URL)
}

// VerifyCategory checks every source the item cites and resolves its category.
func (v *SourceVerifier) VerifyCategory(ctx context.Context, item *content.Item) (*Verification, error) {
	now := v.now()
	logger := v.logger.WithFields(logging.Fields{"item_id": item.ID, "category": item.Category})

	if item.Category == "" {
		res := sourcetrust.Resolution{
			Outcome: sourcetrust.OutcomeFail,
			Code:    gate.CodeUnknownCategory,
			Message: "item has no category; sources cannot be compared against a keyword table",
		}
		return &Verification{Resolution: res}, nil
	}

	checks := make([]sourcetrust.URLCheck, 0, len(item.Sources))
	for _, src := range item.Sources {
		taskID := fmt.Sprintf("urlcheck:%s:%s", item.ID, src.URL)
		checks = append(checks, v.CheckURL(ctx, taskID, src.URL, v.gradeFor(src)))
	}

	reference, ok := v.registry.KeywordTable(item.Category)
	if !ok {
		logger.Warn("no keyword table for category; keyword match score will be 0")
	}
	res := sourcetrust.Resolve(item.Category, checks, item.Claims, reference)
	out := &Verification{Resolution: res}

	if res.Outcome == sourcetrust.OutcomeConditionalPass {
		if err := v.grantPasses(ctx, out, now); err != nil {
			return nil, err
		}
	}

	logged, err := v.logRepo.Record(ctx, &secondary.VerificationLogRecord{
		Category:   item.Category,
		Day:        expiry.Day(now),
		Outcome:    string(out.Resolution.Outcome),
		Code:       string(out.Resolution.Code),
		MatchScore: scoreString(out.Resolution.Score),
		URLs:       checkURLs(checks),
		Detail:     out.Resolution.Message,
		CreatedAt:  formatTimestamp(now),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record verification: %w", err)
	}
	out.Logged = logged

	if out.Resolution.NeedsReview() {
		if err := v.enqueueReview(ctx, out.Resolution, now); err != nil {
			return nil, err
		}
	}

	logger.WithFields(logging.Fields{
		"outcome": out.Resolution.Outcome,
		"code":    out.Resolution.Code,
	}).Info("sources verified")
	return out, nil
}

// grantPasses creates or reuses a conditional pass for each failed source. A
// source whose earlier pass expired unresolved is not re-granted: the category
// is downgraded to CATEGORY_BLOCKED until that pass is resolved.
func (v *SourceVerifier) grantPasses(ctx context.Context, out *Verification, now time.Time) error {
	v.grantMu.Lock()
	defer v.grantMu.Unlock()

	res := out.Resolution
	reusedAll := true

	for _, failed := range res.Failed {
		existing, err := v.passRepo.GetBySource(ctx, res.Category, failed.URL)
		if err != nil {
			return fmt.Errorf("failed to look up conditional pass: %w", err)
		}

		if existing != nil {
			rec, err := passFromRecord(existing)
			if err != nil {
				return err
			}
			switch {
			case rec.Live(now):
				out.Passes = append(out.Passes, rec)
				continue
			case !rec.Resolved:
				out.Resolution.Outcome = sourcetrust.OutcomeFail
				out.Resolution.Code = gate.CodeCategoryBlocked
				out.Resolution.Message = fmt.Sprintf("conditional pass %s for %s expired on %s without resolution",
					rec.ID, rec.OriginalSource, rec.ExpiresAt.Format("2006-01-02"))
				out.Passes = nil
				return nil
			}
		}

		reusedAll = false
		id := ""
		if existing != nil {
			id = existing.ID
		} else if id, err = v.passRepo.GetNextID(ctx); err != nil {
			return fmt.Errorf("failed to allocate pass ID: %w", err)
		}

		rec, err := expiry.Grant(id, res.Category, failed.URL, res.Alternative, res.Score, now)
		if err != nil {
			return err
		}
		if existing != nil {
			err = v.passRepo.Regrant(ctx, passToRecord(rec))
		} else {
			err = v.passRepo.Create(ctx, passToRecord(rec))
		}
		if err != nil {
			return fmt.Errorf("failed to save conditional pass: %w", err)
		}
		v.logger.WithFields(logging.Fields{
			"record_id":  rec.ID,
			"category":   rec.Category,
			"source":     rec.OriginalSource,
			"expires_at": formatTimestamp(rec.ExpiresAt),
		}).Info("conditional pass granted")
		out.Passes = append(out.Passes, rec)
	}

	out.Reused = reusedAll && len(out.Passes) > 0
	return nil
}

func (v *SourceVerifier) enqueueReview(ctx context.Context, res sourcetrust.Resolution, now time.Time) error {
	type pending struct{ url, detail string }
	var entries []pending
	for _, f := range res.Failed {
		entries = append(entries, pending{url: f.URL, detail: fmt.Sprintf("%s %s", f.Status, f.Detail)})
	}
	if len(entries) == 0 {
		entries = append(entries, pending{detail: res.Message})
	}

	for _, e := range entries {
		open, err := v.reviewRepo.HasOpen(ctx, res.Category, e.url)
		if err != nil {
			return fmt.Errorf("failed to check review queue: %w", err)
		}
		if open {
			continue
		}
		err = v.reviewRepo.Create(ctx, &secondary.ReviewQueueRecord{
			ID:        v.newID(),
			Category:  res.Category,
			URL:       e.url,
			Outcome:   string(res.Outcome),
			Code:      string(res.Code),
			Detail:    e.detail,
			CreatedAt: formatTimestamp(now),
		})
		if err != nil {
			return fmt.Errorf("failed to queue review: %w", err)
		}
	}
	return nil
}

func scoreString(s sourcetrust.Score) string {
	if s.Total == 0 {
		return ""
	}
	return s.String()
}

func checkURLs(checks []sourcetrust.URLCheck) []string {
	urls := make([]string, 0, len(checks))
	for _, c := range checks {
		urls = append(urls, c.URL)
	}
	return urls
}
