package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/example/contentgate/internal/core/sourcetrust"
)

// Manifest is the hand-off document the writer and image generator produce
// for one item.
type Manifest struct {
	ID             string            `json:"id,omitempty"`
	Topic          string            `json:"topic,omitempty"`
	SafetyClass    string            `json:"safety_class"`
	Category       string            `json:"category"`
	Provenance     string            `json:"provenance,omitempty"`
	Captions       map[string]string `json:"captions,omitempty"`
	Assets         []ManifestAsset   `json:"assets,omitempty"`
	GenerationMeta []ManifestMeta    `json:"generation_meta,omitempty"`
	Sources        []ManifestSource  `json:"sources,omitempty"`
	Claims         ManifestClaims    `json:"claims"`
}

type ManifestAsset struct {
	Kind   string `json:"kind"`
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Bytes  int64  `json:"bytes"`
}

type ManifestMeta struct {
	AssetPath   string `json:"asset_path"`
	RuleName    string `json:"rule_name"`
	RuleHash    string `json:"rule_hash"`
	GeneratedAt string `json:"generated_at,omitempty"`
}

type ManifestSource struct {
	URL   string `json:"url"`
	Grade string `json:"grade,omitempty"`
}

type ManifestClaims struct {
	Names    []string `json:"names,omitempty"`
	Symptoms []string `json:"symptoms,omitempty"`
	Severity string   `json:"severity,omitempty"`
}

// ParseManifest decodes and validates a manifest. Unknown fields are rejected
// so that typos in hand-written manifests surface instead of being dropped.
func ParseManifest(data []byte) (*Manifest, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the fields that cannot be repaired by a gate later on.
func (m *Manifest) Validate() error {
	if m.ID == "" && m.Topic == "" && m.Category == "" {
		return fmt.Errorf("manifest needs an id, a topic or a category")
	}
	if m.ID != "" && ParseItemSequence(m.ID) < 0 {
		return fmt.Errorf("invalid item id %q (want NNNN-slug)", m.ID)
	}
	if _, err := ParseSafetyClass(m.SafetyClass); err != nil {
		return err
	}
	switch Provenance(strings.ToUpper(m.Provenance)) {
	case "", ProvenanceOriginal, ProvenanceAIGenerated:
	default:
		return fmt.Errorf("unknown provenance %q", m.Provenance)
	}
	for platform := range m.Captions {
		if _, err := ParsePlatform(platform); err != nil {
			return err
		}
	}
	for _, a := range m.Assets {
		switch AssetKind(strings.ToUpper(a.Kind)) {
		case AssetCover, AssetBody:
		default:
			return fmt.Errorf("asset %s: unknown kind %q", a.Path, a.Kind)
		}
	}
	for _, g := range m.GenerationMeta {
		if g.AssetPath == "" {
			return fmt.Errorf("generation_meta entry without asset_path")
		}
		if g.GeneratedAt != "" {
			if _, err := time.Parse(time.RFC3339, g.GeneratedAt); err != nil {
				return fmt.Errorf("generation_meta %s: invalid generated_at %q", g.AssetPath, g.GeneratedAt)
			}
		}
	}
	for _, s := range m.Sources {
		if s.URL == "" {
			return fmt.Errorf("source without url")
		}
		if s.Grade != "" {
			if _, err := sourcetrust.ParseGrade(s.Grade); err != nil {
				return err
			}
		}
	}
	return nil
}

// SlugSource returns the text a new item ID slug is built from.
func (m *Manifest) SlugSource() string {
	if m.Topic != "" {
		return m.Topic
	}
	return m.Category
}

// ToItem builds the item the manifest describes. Stage, revision and
// timestamps are left for the caller.
func (m *Manifest) ToItem(id string) *Item {
	provenance := Provenance(strings.ToUpper(m.Provenance))
	if provenance == "" {
		provenance = ProvenanceOriginal
	}
	safety, _ := ParseSafetyClass(m.SafetyClass)

	item := &Item{
		ID:             id,
		SafetyClass:    safety,
		Category:       strings.ToLower(strings.TrimSpace(m.Category)),
		Provenance:     provenance,
		Captions:       make(map[Platform]string, len(m.Captions)),
		GenerationMeta: make(map[string]Meta, len(m.GenerationMeta)),
		Claims: sourcetrust.Keywords{
			Names:    m.Claims.Names,
			Symptoms: m.Claims.Symptoms,
			Severity: m.Claims.Severity,
		},
	}
	for platform, text := range m.Captions {
		p, _ := ParsePlatform(platform)
		item.Captions[p] = text
	}
	for _, a := range m.Assets {
		item.Assets = append(item.Assets, Asset{
			Kind:   AssetKind(strings.ToUpper(a.Kind)),
			Path:   a.Path,
			Width:  a.Width,
			Height: a.Height,
			Bytes:  a.Bytes,
		})
	}
	for _, g := range m.GenerationMeta {
		generatedAt, _ := time.Parse(time.RFC3339, g.GeneratedAt)
		item.GenerationMeta[g.AssetPath] = Meta{
			RuleName:    g.RuleName,
			RuleHash:    g.RuleHash,
			GeneratedAt: generatedAt.UTC(),
		}
	}
	for _, s := range m.Sources {
		grade, _ := sourcetrust.ParseGrade(s.Grade)
		item.Sources = append(item.Sources, Citation{URL: s.URL, Grade: grade})
	}
	return item
}
