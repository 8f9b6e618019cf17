package expiry

import (
	"fmt"
	"sort"
	"time"

	"github.com/example/contentgate/internal/core/effects"
)

// SweepReport summarizes what a sweep found and changed.
type SweepReport struct {
	Day          string
	Warnings     []Record
	Expired      []Record
	NewlyBlocked []string
	Unblocked    []string
	Notified     int
}

// SweepPlan is the outcome of planning a sweep: a report and the effects to apply.
type SweepPlan struct {
	Report  SweepReport
	Effects []effects.Effect
}

// PlanSweep classifies every record at time now and plans the resulting effects.
// Replaying the plan's effects and planning again on the same day yields no new
// notifications, status changes, or blocks.
func PlanSweep(records []Record, blocks []Block, now time.Time, warningDays int) SweepPlan {
	day := Day(now)
	plan := SweepPlan{Report: SweepReport{Day: day}}

	sorted := make([]Record, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Category != sorted[j].Category {
			return sorted[i].Category < sorted[j].Category
		}
		return sorted[i].ID < sorted[j].ID
	})

	blockingByCategory := map[string]bool{}
	for i := range sorted {
		r := &sorted[i]
		if _, seen := blockingByCategory[r.Category]; !seen {
			blockingByCategory[r.Category] = false
		}

		switch Classify(*r, now, warningDays) {
		case StatusExpired:
			if r.Status != StatusExpired {
				r.Status = StatusExpired
				plan.Report.Expired = append(plan.Report.Expired, *r)
				plan.Effects = append(plan.Effects,
					effects.ExpirePassEffect{RecordID: r.ID, Category: r.Category},
					effects.NotifyEffect{
						Severity: "critical",
						Message:  fmt.Sprintf("Conditional pass %s for %s expired; source %s was never fixed", r.ID, r.Category, r.OriginalSource),
					},
					effects.LogEffect{Level: "warn", Message: "conditional pass expired", Fields: map[string]any{"record_id": r.ID, "category": r.Category}},
				)
				plan.Report.Notified++
			}
		case StatusWarning:
			plan.Report.Warnings = append(plan.Report.Warnings, *r)
			if r.LastWarnedOn != day {
				r.LastWarnedOn = day
				left := DaysRemaining(r.ExpiresAt, now)
				plan.Effects = append(plan.Effects,
					effects.MarkWarnedEffect{RecordID: r.ID, Day: day},
					effects.NotifyEffect{
						Severity: "warning",
						Message:  fmt.Sprintf("Conditional pass %s for %s expires in %d day(s); fix %s", r.ID, r.Category, left, r.OriginalSource),
					},
				)
				plan.Report.Notified++
			}
		}

		if r.Blocking() {
			blockingByCategory[r.Category] = true
		}
	}

	blocked := map[string]bool{}
	for _, b := range blocks {
		blocked[b.Category] = true
	}

	categories := make([]string, 0, len(blockingByCategory))
	for c := range blockingByCategory {
		categories = append(categories, c)
	}
	for c := range blocked {
		if _, ok := blockingByCategory[c]; !ok {
			categories = append(categories, c)
		}
	}
	sort.Strings(categories)

	for _, c := range categories {
		switch {
		case blockingByCategory[c] && !blocked[c]:
			plan.Report.NewlyBlocked = append(plan.Report.NewlyBlocked, c)
			plan.Effects = append(plan.Effects,
				effects.CreateBlockEffect{Category: c, Reason: "conditional pass expired without resolution", BlockedAt: now.UTC().Truncate(time.Second)},
				effects.NotifyEffect{Severity: "critical", Message: fmt.Sprintf("Category %s blocked for new admissions", c)},
			)
			plan.Report.Notified++
		case !blockingByCategory[c] && blocked[c]:
			plan.Report.Unblocked = append(plan.Report.Unblocked, c)
			plan.Effects = append(plan.Effects,
				effects.RemoveBlockEffect{Category: c},
				effects.LogEffect{Level: "info", Message: "category block lifted", Fields: map[string]any{"category": c}},
			)
		}
	}

	return plan
}

// ResolvePlan is the outcome of planning a resolution.
type ResolvePlan struct {
	AlreadyResolved bool
	LiftsBlock      bool
	Effects         []effects.Effect
}

// PlanResolve marks target resolved. siblings are every record of the same
// category (target may be among them). A record that has already expired keeps
// status EXPIRED and only gains the resolved flag.
func PlanResolve(target Record, siblings []Record, blocks []Block, now time.Time, warningDays int) ResolvePlan {
	if target.Resolved || target.Status == StatusResolved {
		return ResolvePlan{AlreadyResolved: true}
	}

	status := StatusResolved
	if Classify(target, now, warningDays) == StatusExpired {
		status = StatusExpired
	}

	plan := ResolvePlan{}
	resolvedAt := now.UTC().Truncate(time.Second)
	plan.Effects = append(plan.Effects,
		effects.ResolvePassEffect{RecordID: target.ID, Status: string(status), ResolvedAt: resolvedAt},
		effects.LogEffect{Level: "info", Message: "conditional pass resolved", Fields: map[string]any{"record_id": target.ID, "category": target.Category, "status": string(status)}},
	)

	stillBlocking := false
	for _, s := range siblings {
		if s.ID == target.ID || s.Category != target.Category {
			continue
		}
		if s.Resolved {
			continue
		}
		if s.Status == StatusExpired || Classify(s, now, warningDays) == StatusExpired {
			stillBlocking = true
			break
		}
	}

	isBlocked := false
	for _, b := range blocks {
		if b.Category == target.Category {
			isBlocked = true
			break
		}
	}

	if isBlocked && !stillBlocking {
		plan.LiftsBlock = true
		plan.Effects = append(plan.Effects,
			effects.RemoveBlockEffect{Category: target.Category},
			effects.NotifyEffect{Severity: "info", Message: fmt.Sprintf("Category %s unblocked after resolution of %s", target.Category, target.ID)},
		)
	}
	return plan
}
