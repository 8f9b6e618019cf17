// Package caption contains the deterministic structure checks for platform captions.
// This is part of the Functional Core - no I/O, only pure functions.
package caption

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/example/contentgate/internal/core/content"
	"github.com/example/contentgate/internal/core/gate"
)

// DosageRule says whether a safety class needs a "how much to feed" section.
type DosageRule string

const (
	DosageRequired  DosageRule = "required"
	DosageOptional  DosageRule = "optional"
	DosageForbidden DosageRule = "forbidden"
)

// PlatformTemplate holds the structural bounds for one platform.
type PlatformTemplate struct {
	MinHashtags        int
	MaxHashtags        int
	RequiredTags       []string
	MinLength          int // in runes; 0 disables
	MaxLength          int // in runes; 0 disables
	InterrogativeTitle bool
	// DosageSection enables the required-dosage check; forbidden dosage is
	// enforced on every platform.
	DosageSection   bool
	ForbiddenTokens []string
}

// SafetyRule holds the rules attached to a safety classification.
type SafetyRule struct {
	Dosage          DosageRule
	RequiredTokens  []string
	ForbiddenTokens []string
}

// Templates is the full caption rule set, loaded from the rule registry.
type Templates struct {
	Platforms      map[content.Platform]PlatformTemplate
	Safety         map[content.SafetyClass]SafetyRule
	TitlePatterns  []*regexp.Regexp
	DosagePatterns []*regexp.Regexp
	Disclosures    map[content.Provenance]string
}

// Input is one caption to validate.
type Input struct {
	Text        string
	Platform    content.Platform
	SafetyClass content.SafetyClass
	Provenance  content.Provenance
}

var hashtagPattern = regexp.MustCompile(`#[\p{L}\p{N}_]+`)

// Hashtags returns every hashtag in the text, in order of appearance.
func Hashtags(text string) []string {
	return hashtagPattern.FindAllString(text, -1)
}

// Title returns the first non-empty line of the caption.
func Title(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if l := strings.TrimSpace(line); l != "" {
			return l
		}
	}
	return ""
}

// Validate runs every check for one caption, in a fixed order, and returns one
// result per check.
func Validate(in Input, t Templates) []gate.Result {
	name := func(check string) string {
		return fmt.Sprintf("caption:%s:%s", in.Platform, check)
	}

	tmpl, ok := t.Platforms[in.Platform]
	if !ok {
		return []gate.Result{gate.Fail(name("platform"), gate.CodeUnknownPlatform,
			fmt.Sprintf("no caption template for platform %s", in.Platform),
			"add a template for this platform to the rule registry")}
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return []gate.Result{gate.Fail(name("present"), gate.CodeCaptionMissing,
			fmt.Sprintf("%s caption is empty", in.Platform),
			"run the caption generator for this platform")}
	}

	safety := t.Safety[in.SafetyClass]
	results := []gate.Result{gate.Pass(name("present"))}
	results = append(results, checkTitle(name("title"), text, tmpl, t.TitlePatterns))
	results = append(results, checkLength(name("length"), text, tmpl))
	results = append(results, checkHashtagCount(name("hashtags"), text, tmpl))
	results = append(results, checkRequiredTags(name("required_tags"), text, tmpl))
	results = append(results, checkDosage(name("dosage"), text, in.SafetyClass, safety, tmpl, t.DosagePatterns))
	results = append(results, checkForbiddenTokens(name("forbidden_tokens"), text, in.SafetyClass, safety, tmpl))
	results = append(results, checkRequiredTokens(name("required_tokens"), text, in.SafetyClass, safety))
	results = append(results, checkDisclosure(name("disclosure"), text, in.Provenance, t.Disclosures))
	return results
}

func checkTitle(gateName, text string, tmpl PlatformTemplate, patterns []*regexp.Regexp) gate.Result {
	if !tmpl.InterrogativeTitle {
		return gate.Pass(gateName)
	}
	title := Title(text)
	for _, p := range patterns {
		if p.MatchString(title) {
			return gate.Pass(gateName)
		}
	}
	return gate.Fail(gateName, gate.CodeTitleNotInterrogative,
		fmt.Sprintf("title %q is not phrased as a question", title),
		"rewrite the first line as a question, e.g. \"Can dogs eat grapes?\"")
}

func checkLength(gateName, text string, tmpl PlatformTemplate) gate.Result {
	n := utf8.RuneCountInString(text)
	if tmpl.MinLength > 0 && n < tmpl.MinLength {
		return gate.Fail(gateName, gate.CodeLengthOutOfRange,
			fmt.Sprintf("caption length %d below minimum %d", n, tmpl.MinLength),
			fmt.Sprintf("expand the caption to at least %d characters", tmpl.MinLength))
	}
	if tmpl.MaxLength > 0 && n > tmpl.MaxLength {
		return gate.Fail(gateName, gate.CodeLengthOutOfRange,
			fmt.Sprintf("caption length %d above maximum %d", n, tmpl.MaxLength),
			fmt.Sprintf("shorten the caption to at most %d characters", tmpl.MaxLength))
	}
	return gate.Pass(gateName)
}

func checkHashtagCount(gateName, text string, tmpl PlatformTemplate) gate.Result {
	n := len(Hashtags(text))
	if n < tmpl.MinHashtags || n > tmpl.MaxHashtags {
		return gate.Fail(gateName, gate.CodeHashtagCount,
			fmt.Sprintf("hashtag count %d outside required range %d-%d", n, tmpl.MinHashtags, tmpl.MaxHashtags),
			fmt.Sprintf("use between %d and %d hashtags", tmpl.MinHashtags, tmpl.MaxHashtags))
	}
	return gate.Pass(gateName)
}

func checkRequiredTags(gateName, text string, tmpl PlatformTemplate) gate.Result {
	present := make(map[string]bool)
	for _, tag := range Hashtags(text) {
		present[strings.ToLower(tag)] = true
	}
	var missing []string
	for _, tag := range tmpl.RequiredTags {
		if !present[strings.ToLower(tag)] {
			missing = append(missing, tag)
		}
	}
	if len(missing) > 0 {
		return gate.Fail(gateName, gate.CodeHashtagRequiredMissing,
			fmt.Sprintf("missing mandatory hashtag(s): %s", strings.Join(missing, " ")),
			"add the mandatory hashtag(s) for this platform")
	}
	return gate.Pass(gateName)
}

func checkDosage(gateName, text string, class content.SafetyClass, rule SafetyRule, tmpl PlatformTemplate, patterns []*regexp.Regexp) gate.Result {
	found := matchAny(text, patterns)
	switch rule.Dosage {
	case DosageForbidden:
		if found != "" {
			return gate.Fail(gateName, gate.CodeDosageForbidden,
				fmt.Sprintf("%s item contains feeding-amount language %q", class, found),
				"remove every serving size or \"how much to feed\" phrase; this item must never be fed")
		}
	case DosageRequired:
		if tmpl.DosageSection && found == "" {
			return gate.Fail(gateName, gate.CodeDosageMissing,
				fmt.Sprintf("%s item has no feeding-amount section", class),
				"add a serving-size section with a concrete amount")
		}
	}
	return gate.Pass(gateName)
}

func checkForbiddenTokens(gateName, text string, class content.SafetyClass, rule SafetyRule, tmpl PlatformTemplate) gate.Result {
	tokens := append(append([]string{}, tmpl.ForbiddenTokens...), rule.ForbiddenTokens...)
	if tok := containsAny(text, tokens); tok != "" {
		return gate.Fail(gateName, gate.CodeForbiddenToken,
			fmt.Sprintf("caption contains forbidden phrase %q for %s", tok, class),
			"remove the phrase; it contradicts the safety classification or platform policy")
	}
	return gate.Pass(gateName)
}

func checkRequiredTokens(gateName, text string, class content.SafetyClass, rule SafetyRule) gate.Result {
	lower := strings.ToLower(text)
	var missing []string
	for _, tok := range rule.RequiredTokens {
		if !strings.Contains(lower, strings.ToLower(tok)) {
			missing = append(missing, tok)
		}
	}
	if len(missing) > 0 {
		return gate.Fail(gateName, gate.CodeRequiredTokenMissing,
			fmt.Sprintf("%s caption is missing %s", class, quoteAll(missing)),
			"add the required safety wording")
	}
	return gate.Pass(gateName)
}

func checkDisclosure(gateName, text string, prov content.Provenance, disclosures map[content.Provenance]string) gate.Result {
	phrase := disclosures[prov]
	if phrase == "" {
		return gate.Pass(gateName)
	}
	if !strings.Contains(strings.ToLower(text), strings.ToLower(phrase)) {
		return gate.Fail(gateName, gate.CodeDisclosureMissing,
			fmt.Sprintf("%s content requires the disclosure %q", prov, phrase),
			fmt.Sprintf("append %q to the caption", phrase))
	}
	return gate.Pass(gateName)
}

func matchAny(text string, patterns []*regexp.Regexp) string {
	for _, p := range patterns {
		if m := p.FindString(text); m != "" {
			return m
		}
	}
	return ""
}

func containsAny(text string, tokens []string) string {
	lower := strings.ToLower(text)
	for _, tok := range tokens {
		if tok != "" && strings.Contains(lower, strings.ToLower(tok)) {
			return tok
		}
	}
	return ""
}

func quoteAll(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return strings.Join(quoted, ", ")
}
