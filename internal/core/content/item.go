// Package content contains the pure business logic for content items and their lifecycle.
// This is part of the Functional Core - no I/O, only pure functions.
package content

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/contentgate/internal/core/sourcetrust"
)

// SafetyClass drives which structural rules apply to an item.
type SafetyClass string

const (
	SafetySafe      SafetyClass = "SAFE"
	SafetyCaution   SafetyClass = "CAUTION"
	SafetyDanger    SafetyClass = "DANGER"
	SafetyForbidden SafetyClass = "FORBIDDEN"
)

// ParseSafetyClass parses a safety class name (case-insensitive).
func ParseSafetyClass(s string) (SafetyClass, error) {
	c := SafetyClass(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case SafetySafe, SafetyCaution, SafetyDanger, SafetyForbidden:
		return c, nil
	}
	return "", fmt.Errorf("unknown safety class %q", s)
}

// Platform is a publishing destination with its own caption rules.
type Platform string

const (
	PlatformInstagram Platform = "INSTAGRAM"
	PlatformThreads   Platform = "THREADS"
	PlatformBlog      Platform = "BLOG"
)

// AllPlatforms lists every platform in validation order.
var AllPlatforms = []Platform{PlatformInstagram, PlatformThreads, PlatformBlog}

// ParsePlatform parses a platform name (case-insensitive).
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case PlatformInstagram, PlatformThreads, PlatformBlog:
		return p, nil
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// Provenance records where an item's imagery came from.
type Provenance string

const (
	ProvenanceOriginal    Provenance = "ORIGINAL"
	ProvenanceAIGenerated Provenance = "AI_GENERATED"
)

// AssetKind distinguishes generated assets; each kind has its own generation rule.
type AssetKind string

const (
	AssetCover AssetKind = "COVER"
	AssetBody  AssetKind = "BODY"
)

// Asset describes one rendered image.
type Asset struct {
	Kind   AssetKind
	Path   string
	Width  int
	Height int
	Bytes  int64
}

// Meta is the generation metadata recorded by the generator for one asset.
type Meta struct {
	RuleName    string
	RuleHash    string
	GeneratedAt time.Time
}

// Citation is an external source cited by the item.
type Citation struct {
	URL   string
	Grade sourcetrust.Grade
}

// Item is a content item moving through the production line.
type Item struct {
	ID          string
	Stage       Stage
	SafetyClass SafetyClass
	Category    string
	Provenance  Provenance
	Captions    map[Platform]string
	Assets      []Asset
	// GenerationMeta is keyed by asset path.
	GenerationMeta map[string]Meta
	Sources        []Citation
	Claims         sourcetrust.Keywords
	Revision       int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// MetaFor returns the generation metadata for an asset, or nil when absent.
func (i *Item) MetaFor(path string) *Meta {
	m, ok := i.GenerationMeta[path]
	if !ok {
		return nil
	}
	return &m
}

// IsPosted reports whether the item reached the terminal stage.
func (i *Item) IsPosted() bool {
	return i.Stage == StagePosted
}
