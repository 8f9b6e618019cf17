// Package sourcetrust contains the pure category-resolution rules for cited sources.
// URL reachability is checked elsewhere; this package only decides what a set of
// check results means for a category.
package sourcetrust

import (
	"fmt"
	"strings"

	"github.com/example/contentgate/internal/core/gate"
)

// Grade is the trust grade of a source.
type Grade string

const (
	GradeAcademic Grade = "S"
	GradeVetOrg   Grade = "A"
	GradeGov      Grade = "B"
	GradeBlog     Grade = "C"
)

// ParseGrade parses a grade letter.
func ParseGrade(s string) (Grade, error) {
	g := Grade(strings.ToUpper(strings.TrimSpace(s)))
	switch g {
	case GradeAcademic, GradeVetOrg, GradeGov, GradeBlog:
		return g, nil
	}
	return "", fmt.Errorf("unknown source grade %q (want S, A, B or C)", s)
}

// Standalone reports whether a source of this grade may satisfy a category alone.
func (g Grade) Standalone() bool {
	return g == GradeAcademic || g == GradeVetOrg || g == GradeGov
}

// rank orders grades from most to least trusted.
func (g Grade) rank() int {
	switch g {
	case GradeAcademic:
		return 0
	case GradeVetOrg:
		return 1
	case GradeGov:
		return 2
	case GradeBlog:
		return 3
	}
	return 4
}

// URLStatus is the classification of a single URL check.
type URLStatus string

const (
	StatusPass         URLStatus = "PASS"
	StatusHTTP404      URLStatus = "HTTP_404"
	StatusHTTP403      URLStatus = "HTTP_403"
	StatusHTTP429      URLStatus = "HTTP_429"
	StatusHTTP5XX      URLStatus = "HTTP_5XX"
	StatusHTTPOther    URLStatus = "HTTP_OTHER"
	StatusSSLError     URLStatus = "SSL_ERROR"
	StatusTimeout      URLStatus = "TIMEOUT"
	StatusRedirectLoop URLStatus = "REDIRECT_LOOP"
	StatusInvalidURL   URLStatus = "INVALID_URL"
)

// Transient reports whether a failed status is worth retrying.
func (s URLStatus) Transient() bool {
	switch s {
	case StatusHTTP429, StatusHTTP5XX, StatusTimeout:
		return true
	}
	return false
}

// URLCheck is the verified state of one cited source.
type URLCheck struct {
	URL       string
	Grade     Grade
	Status    URLStatus
	Detail    string
	Exhausted bool // transient failure that outlasted every retry
}

// Passed reports whether the URL verified.
func (c URLCheck) Passed() bool {
	return c.Status == StatusPass
}

// Keywords is one side of the keyword comparison: either the facets a piece of
// content claims, or the category's reference table.
type Keywords struct {
	Names    []string // toxin or topic names
	Symptoms []string
	Severity string
}

// FacetCount is the number of keyword facets that contribute to a match score.
const FacetCount = 3

// MinConditionalScore is the minimum matched facets for a conditional pass.
const MinConditionalScore = 2

// Score counts corroborating keyword facets.
type Score struct {
	Matched int
	Total   int
}

// String renders the score as "N/3".
func (s Score) String() string {
	return fmt.Sprintf("%d/%d", s.Matched, s.Total)
}

// ParseScore parses an "N/M" score.
func ParseScore(s string) (Score, error) {
	var sc Score
	if _, err := fmt.Sscanf(s, "%d/%d", &sc.Matched, &sc.Total); err != nil {
		return Score{}, fmt.Errorf("invalid match score %q: %w", s, err)
	}
	return sc, nil
}

// MatchScore compares content keywords against a reference table. Each facet
// contributes one point when the two sides overlap.
func MatchScore(content, reference Keywords) Score {
	score := Score{Total: FacetCount}
	if overlaps(content.Names, reference.Names) {
		score.Matched++
	}
	if overlaps(content.Symptoms, reference.Symptoms) {
		score.Matched++
	}
	if content.Severity != "" && normalize(content.Severity) == normalize(reference.Severity) {
		score.Matched++
	}
	return score
}

func overlaps(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(b))
	for _, v := range b {
		if n := normalize(v); n != "" {
			set[n] = struct{}{}
		}
	}
	for _, v := range a {
		if _, ok := set[normalize(v)]; ok {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Outcome is the category-level resolution.
type Outcome string

const (
	OutcomeAllPass         Outcome = "ALL_PASS"
	OutcomeConditionalPass Outcome = "CONDITIONAL_PASS"
	OutcomeFail            Outcome = "FAIL"
)

// Resolution is the result of resolving one category's URL checks.
type Resolution struct {
	Category    string
	Outcome     Outcome
	Code        gate.Code
	Score       Score
	Alternative *URLCheck  // trusted passing source backing a conditional pass
	Failed      []URLCheck // failed URLs, recorded for manual follow-up
	Checks      []URLCheck
	Message     string
}

// Passed reports whether the category may proceed (fully or conditionally).
func (r Resolution) Passed() bool {
	return r.Outcome == OutcomeAllPass || r.Outcome == OutcomeConditionalPass
}

// NeedsReview reports whether the resolution goes to the manual-review queue.
func (r Resolution) NeedsReview() bool {
	return r.Outcome != OutcomeAllPass
}

// Resolve applies the category rules to a set of URL checks:
//  1. all PASS -> ALL_PASS (unless every source is grade C -> BLOG_ONLY)
//  2. all FAIL -> FAIL
//  3. mixed -> needs a trusted-grade PASS and a match score of at least 2/3,
//     then CONDITIONAL_PASS; otherwise FAIL.
func Resolve(category string, checks []URLCheck, content, reference Keywords) Resolution {
	res := Resolution{Category: category, Checks: checks, Outcome: OutcomeFail}

	if len(checks) == 0 {
		res.Code = gate.CodeNoSources
		res.Message = fmt.Sprintf("no sources cited for category %s", category)
		return res
	}

	var passed []URLCheck
	for _, c := range checks {
		if c.Passed() {
			passed = append(passed, c)
		} else {
			res.Failed = append(res.Failed, c)
		}
	}

	trusted := bestTrusted(passed)

	switch {
	case len(res.Failed) == 0:
		if trusted == nil {
			res.Code = gate.CodeBlogOnly
			res.Message = fmt.Sprintf("all %d sources verified but none is above grade C", len(checks))
			return res
		}
		res.Outcome = OutcomeAllPass
		res.Code = gate.CodeAllPass
		res.Message = fmt.Sprintf("all %d sources verified", len(checks))
		return res

	case len(passed) == 0:
		res.Code = gate.CodeAllSourcesFailed
		res.Message = fmt.Sprintf("all %d sources failed verification: %s", len(checks), describeFailures(res.Failed))
		return res
	}

	if trusted == nil {
		res.Code = gate.CodeNoTrustedSource
		res.Message = fmt.Sprintf("no grade S/A/B source verified (failed: %s)", describeFailures(res.Failed))
		return res
	}

	res.Score = MatchScore(content, reference)
	if res.Score.Matched < MinConditionalScore {
		res.Code = gate.CodeInfoMismatch
		res.Message = fmt.Sprintf("alternative %s matches only %s keyword facets", trusted.URL, res.Score)
		return res
	}

	res.Outcome = OutcomeConditionalPass
	res.Code = gate.CodeConditionalPass
	res.Alternative = trusted
	res.Message = fmt.Sprintf("%d source(s) failed; %s (grade %s) corroborates %s", len(res.Failed), trusted.URL, trusted.Grade, res.Score)
	return res
}

// bestTrusted returns the highest-graded standalone-eligible check, or nil.
func bestTrusted(passed []URLCheck) *URLCheck {
	var best *URLCheck
	for i := range passed {
		c := passed[i]
		if !c.Grade.Standalone() {
			continue
		}
		if best == nil || c.Grade.rank() < best.Grade.rank() {
			best = &c
		}
	}
	return best
}

func describeFailures(failed []URLCheck) string {
	parts := make([]string, 0, len(failed))
	for _, f := range failed {
		parts = append(parts, fmt.Sprintf("%s=%s", f.URL, f.Status))
	}
	return strings.Join(parts, ", ")
}
