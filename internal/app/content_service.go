package app

import (
	"context"
	"fmt"
	"time"

	"github.com/example/contentgate/internal/core/content"
	"github.com/example/contentgate/internal/ctxutil"
	"github.com/example/contentgate/internal/logging"
	"github.com/example/contentgate/internal/ports/primary"
	"github.com/example/contentgate/internal/ports/secondary"
)

// ContentServiceImpl implements the ContentService interface.
type ContentServiceImpl struct {
	contentRepo  secondary.ContentRepository
	decisionRepo secondary.DecisionLogRepository
	lock         *BlockLock
	logger       logging.Logger
	now          func() time.Time
}

// NewContentService creates a new ContentService with injected dependencies.
func NewContentService(contentRepo secondary.ContentRepository, decisionRepo secondary.DecisionLogRepository, lock *BlockLock, logger logging.Logger) *ContentServiceImpl {
	if lock == nil {
		lock = NewBlockLock()
	}
	return &ContentServiceImpl{
		contentRepo:  contentRepo,
		decisionRepo: decisionRepo,
		lock:         lock,
		logger:       logging.OrDiscard(logger),
		now:          time.Now,
	}
}

// ImportManifest creates or updates an item from a manifest. The stored stage
// is never changed; each import of an existing item bumps its revision.
func (s *ContentServiceImpl) ImportManifest(ctx context.Context, data []byte) (*primary.ImportResult, error) {
	manifest, err := content.ParseManifest(data)
	if err != nil {
		return nil, err
	}

	var existing *content.Item
	id := manifest.ID
	if id != "" {
		found, err := s.contentRepo.Exists(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to look up item: %w", err)
		}
		if found {
			record, err := s.contentRepo.GetByID(ctx, id)
			if err != nil {
				return nil, err
			}
			if existing, err = itemFromRecord(record); err != nil {
				return nil, err
			}
		}
	}
	if existing != nil && existing.IsPosted() {
		return nil, fmt.Errorf("item %s is POSTED; posted items are immutable", id)
	}

	if id == "" {
		maxSeq, err := s.contentRepo.GetMaxSequence(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to generate item ID: %w", err)
		}
		id = content.GenerateItemID(maxSeq, manifest.SlugSource())
	}

	now := s.now().UTC()
	item := manifest.ToItem(id)
	item.UpdatedAt = now
	if existing != nil {
		item.Stage = existing.Stage
		item.Revision = existing.Revision + 1
		item.CreatedAt = existing.CreatedAt
	} else {
		item.Stage = content.InitialStage()
		item.Revision = 1
		item.CreatedAt = now
	}

	if err := s.contentRepo.Save(ctx, itemToRecord(item)); err != nil {
		return nil, fmt.Errorf("failed to save item: %w", err)
	}

	s.logger.WithFields(logging.Fields{
		"item_id":  item.ID,
		"revision": item.Revision,
		"stage":    item.Stage,
	}).Info("manifest imported")

	return &primary.ImportResult{
		ItemID:   item.ID,
		Created:  existing == nil,
		Revision: item.Revision,
		Stage:    string(item.Stage),
	}, nil
}

// GetItem retrieves an item with its children.
func (s *ContentServiceImpl) GetItem(ctx context.Context, itemID string) (*primary.ContentItem, error) {
	record, err := s.contentRepo.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return recordToContentItem(record), nil
}

// ListItems lists item headers.
func (s *ContentServiceImpl) ListItems(ctx context.Context, filters primary.ContentFilters) ([]*primary.ContentItem, error) {
	if filters.Stage != "" {
		stage, err := content.ParseStage(filters.Stage)
		if err != nil {
			return nil, err
		}
		filters.Stage = string(stage)
	}
	records, err := s.contentRepo.List(ctx, secondary.ContentFilters{
		Stage:    filters.Stage,
		Category: filters.Category,
		Limit:    filters.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	items := make([]*primary.ContentItem, len(records))
	for i, r := range records {
		items[i] = recordToContentItem(r)
	}
	return items, nil
}

// Demote moves an item back to an earlier stage. POSTED items cannot be demoted.
func (s *ContentServiceImpl) Demote(ctx context.Context, req primary.DemoteRequest) error {
	target, err := content.ParseStage(req.ToStage)
	if err != nil {
		return err
	}

	return s.lock.Read(func() error {
		record, err := s.contentRepo.GetByID(ctx, req.ItemID)
		if err != nil {
			return err
		}
		current, err := content.ParseStage(record.Stage)
		if err != nil {
			return err
		}

		guard := content.CanDemote(content.TransitionContext{
			ItemID:  req.ItemID,
			Current: current,
			Target:  target,
		})
		if err := guard.Error(); err != nil {
			return err
		}

		actor := ctxutil.ResolveActor(ctx, req.Actor)
		err = s.contentRepo.TransitionStage(ctx, &secondary.StageChangeRecord{
			ItemID:    req.ItemID,
			FromStage: string(current),
			ToStage:   string(target),
			Revision:  record.Revision,
			Actor:     actor,
			Reason:    req.Reason,
			ChangedAt: formatTimestamp(s.now()),
		})
		if err != nil {
			return fmt.Errorf("failed to demote item: %w", err)
		}

		s.logger.WithFields(logging.Fields{
			"item_id": req.ItemID,
			"from":    current,
			"to":      target,
			"actor":   actor,
		}).Info("item demoted")
		return nil
	})
}

// History returns an item's stage changes, oldest first.
func (s *ContentServiceImpl) History(ctx context.Context, itemID string) ([]*primary.StageChange, error) {
	if _, err := s.contentRepo.GetByID(ctx, itemID); err != nil {
		return nil, err
	}
	records, err := s.contentRepo.History(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to load stage history: %w", err)
	}

	changes := make([]*primary.StageChange, len(records))
	for i, r := range records {
		changes[i] = &primary.StageChange{
			FromStage: r.FromStage,
			ToStage:   r.ToStage,
			Actor:     r.Actor,
			Reason:    r.Reason,
			ChangedAt: r.ChangedAt,
		}
	}
	return changes, nil
}

// Decisions returns an item's recorded gate decisions, newest first.
func (s *ContentServiceImpl) Decisions(ctx context.Context, itemID string, limit int) ([]*primary.GateDecision, error) {
	records, err := s.decisionRepo.ListByItem(ctx, itemID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load gate decisions: %w", err)
	}

	decisions := make([]*primary.GateDecision, len(records))
	for i, r := range records {
		decisions[i] = &primary.GateDecision{
			ID:          r.ID,
			Revision:    r.Revision,
			TargetStage: r.TargetStage,
			Admitted:    r.Admitted,
			Codes:       r.Codes,
			Summary:     r.Summary,
			DecidedAt:   r.DecidedAt,
		}
	}
	return decisions, nil
}

func recordToContentItem(r *secondary.ContentItemRecord) *primary.ContentItem {
	item := &primary.ContentItem{
		ID:            r.ID,
		Stage:         r.Stage,
		SafetyClass:   r.SafetyClass,
		Category:      r.Category,
		Provenance:    r.Provenance,
		ClaimNames:    r.ClaimNames,
		ClaimSymptoms: r.ClaimSymptoms,
		ClaimSeverity: r.ClaimSeverity,
		Revision:      r.Revision,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		PostedAt:      r.PostedAt,
		Captions:      r.Captions,
	}

	meta := make(map[string]secondary.GenerationMetaRecord, len(r.GenerationMeta))
	for _, m := range r.GenerationMeta {
		meta[m.AssetPath] = m
	}
	for _, a := range r.Assets {
		asset := primary.ContentAsset{
			Kind:   a.Kind,
			Path:   a.Path,
			Width:  a.Width,
			Height: a.Height,
			Bytes:  a.Bytes,
		}
		if m, ok := meta[a.Path]; ok {
			asset.RuleName = m.RuleName
			asset.RuleHash = m.RuleHash
		}
		item.Assets = append(item.Assets, asset)
	}
	for _, src := range r.Sources {
		item.Sources = append(item.Sources, primary.ContentSource{URL: src.URL, Grade: src.Grade})
	}
	return item
}

// Ensure ContentServiceImpl implements the interface
var _ primary.ContentService = (*ContentServiceImpl)(nil)
