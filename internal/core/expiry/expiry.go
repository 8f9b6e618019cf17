// Package expiry contains the conditional-pass state machine and the pure sweep planner.
// This is part of the Functional Core - no I/O, only pure functions.
package expiry

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/example/contentgate/internal/core/sourcetrust"
)

// ValidityPeriod is how long a conditional pass lasts.
const ValidityPeriod = 30 * 24 * time.Hour

// DefaultWarningDays is the warning window before expiry.
const DefaultWarningDays = 7

// ScopeNewAdmissionsOnly is the only block scope: a block never touches items
// that were already admitted or posted.
const ScopeNewAdmissionsOnly = "NEW_ADMISSIONS_ONLY"

// Status is the lifecycle state of a conditional pass.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusWarning  Status = "WARNING"
	StatusExpired  Status = "EXPIRED"
	StatusResolved Status = "RESOLVED"
)

// Record is a time-boxed conditional pass for one failed source in a category.
type Record struct {
	ID                string
	Category          string
	OriginalSource    string
	AlternativeSource string
	Score             sourcetrust.Score
	GrantedAt         time.Time
	ExpiresAt         time.Time
	Status            Status
	Resolved          bool
	ResolvedAt        *time.Time
	LastWarnedOn      string // YYYY-MM-DD of the last warning notification
}

// Block restricts new admissions for a category.
type Block struct {
	Category  string
	Reason    string
	BlockedAt time.Time
	Scope     string
}

// ErrIneligible is returned when a conditional pass may not be granted.
var ErrIneligible = errors.New("conditional pass not eligible")

// Grant creates a new conditional pass. It refuses to grant without a trusted
// alternative or with fewer than two matching keyword facets.
func Grant(id, category, original string, alternative *sourcetrust.URLCheck, score sourcetrust.Score, now time.Time) (Record, error) {
	if alternative == nil || !alternative.Passed() || !alternative.Grade.Standalone() {
		return Record{}, fmt.Errorf("%w: no verified grade S/A/B alternative for %s", ErrIneligible, category)
	}
	if score.Matched < sourcetrust.MinConditionalScore {
		return Record{}, fmt.Errorf("%w: match score %s below %d/%d", ErrIneligible, score, sourcetrust.MinConditionalScore, sourcetrust.FacetCount)
	}
	granted := now.UTC().Truncate(time.Second)
	return Record{
		ID:                id,
		Category:          category,
		OriginalSource:    original,
		AlternativeSource: alternative.URL,
		Score:             score,
		GrantedAt:         granted,
		ExpiresAt:         granted.Add(ValidityPeriod),
		Status:            StatusActive,
	}, nil
}

// DaysRemaining returns the whole days left before expiry, rounded up.
func DaysRemaining(expiresAt, now time.Time) int {
	return int(math.Ceil(expiresAt.Sub(now).Hours() / 24))
}

// Classify derives the current status of a record at time now. RESOLVED and
// EXPIRED are terminal.
func Classify(r Record, now time.Time, warningDays int) Status {
	if r.Status == StatusResolved || r.Status == StatusExpired {
		return r.Status
	}
	if warningDays <= 0 {
		warningDays = DefaultWarningDays
	}
	days := DaysRemaining(r.ExpiresAt, now)
	switch {
	case days <= 0:
		if r.Resolved {
			return StatusResolved
		}
		return StatusExpired
	case days <= warningDays:
		return StatusWarning
	default:
		return StatusActive
	}
}

// Blocking reports whether a record holds its category blocked.
func (r Record) Blocking() bool {
	return r.Status == StatusExpired && !r.Resolved
}

// Live reports whether a record is an unresolved, unexpired grant that can be reused.
func (r Record) Live(now time.Time) bool {
	if r.Resolved {
		return false
	}
	st := Classify(r, now, DefaultWarningDays)
	return st == StatusActive || st == StatusWarning
}

// Day formats the calendar day used for idempotency keys.
func Day(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}
