// Package rules loads the rule registry: generation rules, caption templates,
// category keyword tables and source grades.
//
// The default registry is embedded in the binary; a YAML file with the same
// shape can replace it at runtime.
package rules

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/example/contentgate/internal/core/caption"
	"github.com/example/contentgate/internal/core/content"
	"github.com/example/contentgate/internal/core/sourcetrust"
)

//go:embed rules.yaml
var defaultRules []byte

// File is the YAML shape of a registry.
type File struct {
	Version         int                    `yaml:"version"`
	GenerationRules []GenerationRuleSpec   `yaml:"generation_rules"`
	Captions        CaptionSpec            `yaml:"captions"`
	Categories      map[string]KeywordSpec `yaml:"categories"`
	TrustedDomains  []DomainGradeSpec      `yaml:"trusted_domains"`
}

// GenerationRuleSpec is one generation rule as written in YAML.
type GenerationRuleSpec struct {
	Name        string `yaml:"name"`
	Kind        string `yaml:"kind"`
	Current     bool   `yaml:"current"`
	Description string `yaml:"description"`
	Definition  string `yaml:"definition"`
}

// CaptionSpec holds the caption templates as written in YAML.
type CaptionSpec struct {
	Platforms      map[string]PlatformSpec `yaml:"platforms"`
	TitlePatterns  []string                `yaml:"title_patterns"`
	DosagePatterns []string                `yaml:"dosage_patterns"`
	Safety         map[string]SafetySpec   `yaml:"safety"`
	Disclosures    map[string]string       `yaml:"disclosures"`
}

// PlatformSpec is one platform template.
type PlatformSpec struct {
	MinHashtags        int      `yaml:"min_hashtags"`
	MaxHashtags        int      `yaml:"max_hashtags"`
	RequiredTags       []string `yaml:"required_tags"`
	MinLength          int      `yaml:"min_length"`
	MaxLength          int      `yaml:"max_length"`
	InterrogativeTitle bool     `yaml:"interrogative_title"`
	DosageSection      bool     `yaml:"dosage_section"`
	ForbiddenTokens    []string `yaml:"forbidden_tokens"`
}

// SafetySpec is the rule set for one safety class.
type SafetySpec struct {
	Dosage          string   `yaml:"dosage"`
	RequiredTokens  []string `yaml:"required_tokens"`
	ForbiddenTokens []string `yaml:"forbidden_tokens"`
}

// KeywordSpec is a category's reference keyword table.
type KeywordSpec struct {
	Names    []string `yaml:"names"`
	Symptoms []string `yaml:"symptoms"`
	Severity string   `yaml:"severity"`
}

// DomainGradeSpec maps a domain suffix to a source grade.
type DomainGradeSpec struct {
	Suffix string `yaml:"suffix"`
	Grade  string `yaml:"grade"`
}

// GenerationRule is a loaded generation rule with its computed hash.
type GenerationRule struct {
	Name        string
	Kind        content.AssetKind
	Current     bool
	Description string
	Hash        string
}

type domainGrade struct {
	suffix string
	grade  sourcetrust.Grade
}

// Registry is the loaded, validated rule registry. It is immutable after load.
type Registry struct {
	version    int
	source     string
	rules      map[string]GenerationRule
	order      []string
	expected   map[content.AssetKind]string
	templates  caption.Templates
	categories map[string]sourcetrust.Keywords
	domains    []domainGrade
}

// Default returns the registry embedded in the binary.
func Default() (*Registry, error) {
	reg, err := Parse(defaultRules)
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded rules: %w", err)
	}
	reg.source = "embedded"
	return reg, nil
}

// Load reads a registry from path, or returns the embedded one when path is empty.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	reg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load rules file %s: %w", path, err)
	}
	reg.source = path
	return reg, nil
}

// Parse builds a registry from YAML, compiling patterns and validating enums.
func Parse(data []byte) (*Registry, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rules: %w", err)
	}

	reg := &Registry{
		version:    f.Version,
		rules:      make(map[string]GenerationRule),
		expected:   make(map[content.AssetKind]string),
		categories: make(map[string]sourcetrust.Keywords),
	}

	if err := reg.loadGenerationRules(f.GenerationRules); err != nil {
		return nil, err
	}
	templates, err := buildTemplates(f.Captions)
	if err != nil {
		return nil, err
	}
	reg.templates = templates

	for name, kw := range f.Categories {
		reg.categories[strings.ToLower(name)] = sourcetrust.Keywords{
			Names:    kw.Names,
			Symptoms: kw.Symptoms,
			Severity: kw.Severity,
		}
	}

	for _, d := range f.TrustedDomains {
		g, err := sourcetrust.ParseGrade(d.Grade)
		if err != nil {
			return nil, fmt.Errorf("trusted domain %s: %w", d.Suffix, err)
		}
		reg.domains = append(reg.domains, domainGrade{suffix: strings.ToLower(strings.TrimPrefix(d.Suffix, ".")), grade: g})
	}
	sort.SliceStable(reg.domains, func(i, j int) bool {
		return len(reg.domains[i].suffix) > len(reg.domains[j].suffix)
	})

	return reg, nil
}

func (r *Registry) loadGenerationRules(specs []GenerationRuleSpec) error {
	for _, s := range specs {
		if s.Name == "" {
			return fmt.Errorf("generation rule without a name")
		}
		if _, dup := r.rules[s.Name]; dup {
			return fmt.Errorf("duplicate generation rule %s", s.Name)
		}
		kind := content.AssetKind(strings.ToUpper(s.Kind))
		if kind != content.AssetCover && kind != content.AssetBody {
			return fmt.Errorf("generation rule %s: unknown asset kind %q", s.Name, s.Kind)
		}
		if strings.TrimSpace(s.Definition) == "" {
			return fmt.Errorf("generation rule %s has an empty definition", s.Name)
		}
		if s.Current {
			if prev, ok := r.expected[kind]; ok {
				return fmt.Errorf("asset kind %s has two current rules: %s and %s", kind, prev, s.Name)
			}
			r.expected[kind] = s.Name
		}
		r.rules[s.Name] = GenerationRule{
			Name:        s.Name,
			Kind:        kind,
			Current:     s.Current,
			Description: s.Description,
			Hash:        HashDefinition(s.Definition),
		}
		r.order = append(r.order, s.Name)
	}
	return nil
}

func buildTemplates(spec CaptionSpec) (caption.Templates, error) {
	t := caption.Templates{
		Platforms:   make(map[content.Platform]caption.PlatformTemplate),
		Safety:      make(map[content.SafetyClass]caption.SafetyRule),
		Disclosures: make(map[content.Provenance]string),
	}

	for name, p := range spec.Platforms {
		platform, err := content.ParsePlatform(name)
		if err != nil {
			return t, err
		}
		if p.MinHashtags > p.MaxHashtags {
			return t, fmt.Errorf("platform %s: min_hashtags %d above max_hashtags %d", platform, p.MinHashtags, p.MaxHashtags)
		}
		t.Platforms[platform] = caption.PlatformTemplate{
			MinHashtags:        p.MinHashtags,
			MaxHashtags:        p.MaxHashtags,
			RequiredTags:       p.RequiredTags,
			MinLength:          p.MinLength,
			MaxLength:          p.MaxLength,
			InterrogativeTitle: p.InterrogativeTitle,
			DosageSection:      p.DosageSection,
			ForbiddenTokens:    p.ForbiddenTokens,
		}
	}

	for name, s := range spec.Safety {
		class, err := content.ParseSafetyClass(name)
		if err != nil {
			return t, err
		}
		rule := caption.DosageRule(strings.ToLower(s.Dosage))
		switch rule {
		case caption.DosageRequired, caption.DosageOptional, caption.DosageForbidden:
		default:
			return t, fmt.Errorf("safety class %s: unknown dosage rule %q", class, s.Dosage)
		}
		t.Safety[class] = caption.SafetyRule{
			Dosage:          rule,
			RequiredTokens:  s.RequiredTokens,
			ForbiddenTokens: s.ForbiddenTokens,
		}
	}

	var err error
	if t.TitlePatterns, err = compileAll(spec.TitlePatterns); err != nil {
		return t, fmt.Errorf("title pattern: %w", err)
	}
	if t.DosagePatterns, err = compileAll(spec.DosagePatterns); err != nil {
		return t, fmt.Errorf("dosage pattern: %w", err)
	}

	for name, phrase := range spec.Disclosures {
		t.Disclosures[content.Provenance(strings.ToUpper(name))] = phrase
	}
	return t, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to compile %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// HashDefinition returns the canonical hash of a rule definition: sha256 over
// the definition with trailing whitespace trimmed from every line.
func HashDefinition(def string) string {
	lines := strings.Split(strings.TrimSpace(def), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t\r")
	}
	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:])
}

// Version returns the registry version.
func (r *Registry) Version() int { return r.version }

// Source names where the registry was loaded from.
func (r *Registry) Source() string { return r.source }

// RuleHash returns the hash of a recognized generation rule.
func (r *Registry) RuleHash(name string) (string, bool) {
	rule, ok := r.rules[name]
	if !ok {
		return "", false
	}
	return rule.Hash, true
}

// ExpectedRule returns the current generation rule for an asset kind.
func (r *Registry) ExpectedRule(kind content.AssetKind) (string, bool) {
	name, ok := r.expected[kind]
	return name, ok
}

// Rules returns every generation rule in file order.
func (r *Registry) Rules() []GenerationRule {
	out := make([]GenerationRule, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.rules[name])
	}
	return out
}

// CaptionTemplates returns the caption rule set.
func (r *Registry) CaptionTemplates() caption.Templates {
	return r.templates
}

// KeywordTable returns a category's reference keywords.
func (r *Registry) KeywordTable(category string) (sourcetrust.Keywords, bool) {
	kw, ok := r.categories[strings.ToLower(category)]
	return kw, ok
}

// Categories returns the known categories, sorted.
func (r *Registry) Categories() []string {
	out := make([]string, 0, len(r.categories))
	for c := range r.categories {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// GradeForURL grades a URL by its host. Unknown or unparseable hosts are grade C.
func (r *Registry) GradeForURL(raw string) sourcetrust.Grade {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return sourcetrust.GradeBlog
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range r.domains {
		if host == d.suffix || strings.HasSuffix(host, "."+d.suffix) {
			return d.grade
		}
	}
	return sourcetrust.GradeBlog
}
