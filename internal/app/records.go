package app

import (
	"fmt"
	"sort"
	"time"

	"github.com/example/contentgate/internal/core/content"
	"github.com/example/contentgate/internal/core/expiry"
	"github.com/example/contentgate/internal/core/sourcetrust"
	"github.com/example/contentgate/internal/ports/secondary"
)

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// itemFromRecord converts a stored item into the core model.
func itemFromRecord(r *secondary.ContentItemRecord) (*content.Item, error) {
	stage, err := content.ParseStage(r.Stage)
	if err != nil {
		return nil, err
	}
	safety, err := content.ParseSafetyClass(r.SafetyClass)
	if err != nil {
		return nil, err
	}

	item := &content.Item{
		ID:             r.ID,
		Stage:          stage,
		SafetyClass:    safety,
		Category:       r.Category,
		Provenance:     content.Provenance(r.Provenance),
		Captions:       make(map[content.Platform]string, len(r.Captions)),
		GenerationMeta: make(map[string]content.Meta, len(r.GenerationMeta)),
		Claims: sourcetrust.Keywords{
			Names:    r.ClaimNames,
			Symptoms: r.ClaimSymptoms,
			Severity: r.ClaimSeverity,
		},
		Revision: r.Revision,
	}
	if item.CreatedAt, err = parseTimestamp(r.CreatedAt); err != nil {
		return nil, err
	}
	if item.UpdatedAt, err = parseTimestamp(r.UpdatedAt); err != nil {
		return nil, err
	}

	for platform, text := range r.Captions {
		item.Captions[content.Platform(platform)] = text
	}
	for _, a := range r.Assets {
		item.Assets = append(item.Assets, content.Asset{
			Kind:   content.AssetKind(a.Kind),
			Path:   a.Path,
			Width:  a.Width,
			Height: a.Height,
			Bytes:  a.Bytes,
		})
	}
	for _, m := range r.GenerationMeta {
		generatedAt, err := parseTimestamp(m.GeneratedAt)
		if err != nil {
			return nil, err
		}
		item.GenerationMeta[m.AssetPath] = content.Meta{
			RuleName:    m.RuleName,
			RuleHash:    m.RuleHash,
			GeneratedAt: generatedAt,
		}
	}
	for _, s := range r.Sources {
		item.Sources = append(item.Sources, content.Citation{URL: s.URL, Grade: sourcetrust.Grade(s.Grade)})
	}
	return item, nil
}

func passFromRecord(r *secondary.ConditionalPassRecord) (expiry.Record, error) {
	score, err := sourcetrust.ParseScore(r.MatchScore)
	if err != nil {
		return expiry.Record{}, err
	}
	granted, err := parseTimestamp(r.GrantedAt)
	if err != nil {
		return expiry.Record{}, err
	}
	expires, err := parseTimestamp(r.ExpiresAt)
	if err != nil {
		return expiry.Record{}, err
	}
	rec := expiry.Record{
		ID:                r.ID,
		Category:          r.Category,
		OriginalSource:    r.OriginalSource,
		AlternativeSource: r.AlternativeSource,
		Score:             score,
		GrantedAt:         granted,
		ExpiresAt:         expires,
		Status:            expiry.Status(r.Status),
		Resolved:          r.Resolved,
		LastWarnedOn:      r.LastWarnedOn,
	}
	if r.ResolvedAt != "" {
		resolvedAt, err := parseTimestamp(r.ResolvedAt)
		if err != nil {
			return expiry.Record{}, err
		}
		rec.ResolvedAt = &resolvedAt
	}
	return rec, nil
}

func passesFromRecords(records []*secondary.ConditionalPassRecord) ([]expiry.Record, error) {
	out := make([]expiry.Record, 0, len(records))
	for _, r := range records {
		rec, err := passFromRecord(r)
		if err != nil {
			return nil, fmt.Errorf("conditional pass %s: %w", r.ID, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func passToRecord(r expiry.Record) *secondary.ConditionalPassRecord {
	rec := &secondary.ConditionalPassRecord{
		ID:                r.ID,
		Category:          r.Category,
		OriginalSource:    r.OriginalSource,
		AlternativeSource: r.AlternativeSource,
		MatchScore:        r.Score.String(),
		GrantedAt:         formatTimestamp(r.GrantedAt),
		ExpiresAt:         formatTimestamp(r.ExpiresAt),
		Status:            string(r.Status),
		Resolved:          r.Resolved,
		LastWarnedOn:      r.LastWarnedOn,
	}
	if r.ResolvedAt != nil {
		rec.ResolvedAt = formatTimestamp(*r.ResolvedAt)
	}
	return rec
}

func blocksFromRecords(records []*secondary.CategoryBlockRecord) []expiry.Block {
	out := make([]expiry.Block, 0, len(records))
	for _, r := range records {
		blockedAt, _ := parseTimestamp(r.BlockedAt)
		out = append(out, expiry.Block{
			Category:  r.Category,
			Reason:    r.Reason,
			BlockedAt: blockedAt,
			Scope:     r.Scope,
		})
	}
	return out
}

// itemToRecord converts a core item into its stored form. Stage and PostedAt
// are owned by TransitionStage and left to the caller.
func itemToRecord(item *content.Item) *secondary.ContentItemRecord {
	r := &secondary.ContentItemRecord{
		ID:            item.ID,
		Stage:         string(item.Stage),
		SafetyClass:   string(item.SafetyClass),
		Category:      item.Category,
		Provenance:    string(item.Provenance),
		ClaimNames:    item.Claims.Names,
		ClaimSymptoms: item.Claims.Symptoms,
		ClaimSeverity: item.Claims.Severity,
		Revision:      item.Revision,
		CreatedAt:     formatTimestamp(item.CreatedAt),
		UpdatedAt:     formatTimestamp(item.UpdatedAt),
		Captions:      make(map[string]string, len(item.Captions)),
	}
	for platform, text := range item.Captions {
		r.Captions[string(platform)] = text
	}
	for _, a := range item.Assets {
		r.Assets = append(r.Assets, secondary.ContentAssetRecord{
			Kind:   string(a.Kind),
			Path:   a.Path,
			Width:  a.Width,
			Height: a.Height,
			Bytes:  a.Bytes,
		})
	}
	for path, m := range item.GenerationMeta {
		r.GenerationMeta = append(r.GenerationMeta, secondary.GenerationMetaRecord{
			AssetPath:   path,
			RuleName:    m.RuleName,
			RuleHash:    m.RuleHash,
			GeneratedAt: formatTimestamp(m.GeneratedAt),
		})
	}
	sort.Slice(r.GenerationMeta, func(i, j int) bool {
		return r.GenerationMeta[i].AssetPath < r.GenerationMeta[j].AssetPath
	})
	for _, s := range item.Sources {
		r.Sources = append(r.Sources, secondary.ContentSourceRecord{URL: s.URL, Grade: string(s.Grade)})
	}
	return r
}
