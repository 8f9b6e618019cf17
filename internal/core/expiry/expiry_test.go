package expiry

import (
	"errors"
	"testing"
	"time"

	"github.com/example/contentgate/internal/core/effects"
	"github.com/example/contentgate/internal/core/sourcetrust"
)

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func record(id, category string, grantedAgo time.Duration) Record {
	granted := base.Add(-grantedAgo)
	return Record{
		ID:             id,
		Category:       category,
		OriginalSource: "https://example.org/" + category,
		GrantedAt:      granted,
		ExpiresAt:      granted.Add(ValidityPeriod),
		Status:         StatusActive,
	}
}

func countEffects[T effects.Effect](effs []effects.Effect) int {
	n := 0
	for _, e := range effs {
		if _, ok := e.(T); ok {
			n++
		}
	}
	return n
}

func TestGrant(t *testing.T) {
	alt := &sourcetrust.URLCheck{URL: "https://aspca.org/grapes", Grade: sourcetrust.GradeVetOrg, Status: sourcetrust.StatusPass}

	r, err := Grant("cp-1", "grapes", "https://dead.example/grapes", alt, sourcetrust.Score{Matched: 2, Total: 3}, base.Add(500*time.Millisecond))
	if err != nil {
		t.Fatalf("Grant() error = %v", err)
	}
	if got := r.ExpiresAt.Sub(r.GrantedAt); got != ValidityPeriod {
		t.Errorf("validity = %v, want %v", got, ValidityPeriod)
	}
	if r.Status != StatusActive || r.Resolved {
		t.Errorf("new record status = %s resolved=%v", r.Status, r.Resolved)
	}
	if r.AlternativeSource != alt.URL {
		t.Errorf("AlternativeSource = %s", r.AlternativeSource)
	}

	tests := []struct {
		name  string
		alt   *sourcetrust.URLCheck
		score sourcetrust.Score
	}{
		{"no alternative", nil, sourcetrust.Score{Matched: 3, Total: 3}},
		{"grade C alternative", &sourcetrust.URLCheck{URL: "https://blog.example", Grade: sourcetrust.GradeBlog, Status: sourcetrust.StatusPass}, sourcetrust.Score{Matched: 3, Total: 3}},
		{"failing alternative", &sourcetrust.URLCheck{URL: "https://aspca.org", Grade: sourcetrust.GradeVetOrg, Status: sourcetrust.StatusHTTP404}, sourcetrust.Score{Matched: 3, Total: 3}},
		{"score too low", alt, sourcetrust.Score{Matched: 1, Total: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Grant("cp-x", "grapes", "https://dead.example", tt.alt, tt.score, base)
			if !errors.Is(err, ErrIneligible) {
				t.Errorf("Grant() error = %v, want ErrIneligible", err)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		rec    Record
		expect Status
	}{
		{"fresh", record("a", "c", 0), StatusActive},
		{"22 days in", record("a", "c", 22*24*time.Hour), StatusActive},
		{"23 days in enters warning", record("a", "c", 23*24*time.Hour), StatusWarning},
		{"29.5 days in", record("a", "c", 29*24*time.Hour+12*time.Hour), StatusWarning},
		{"exactly 30 days", record("a", "c", 30*24*time.Hour), StatusExpired},
		{"31 days", record("a", "c", 31*24*time.Hour), StatusExpired},
		{"resolved stays resolved", func() Record {
			r := record("a", "c", 40*24*time.Hour)
			r.Status = StatusResolved
			r.Resolved = true
			return r
		}(), StatusResolved},
		{"expired stays expired", func() Record { r := record("a", "c", 0); r.Status = StatusExpired; return r }(), StatusExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.rec, base, DefaultWarningDays); got != tt.expect {
				t.Errorf("Classify() = %s, want %s", got, tt.expect)
			}
		})
	}
}

func TestDaysRemaining(t *testing.T) {
	exp := base.Add(36 * time.Hour)
	if got := DaysRemaining(exp, base); got != 2 {
		t.Errorf("DaysRemaining() = %d, want 2", got)
	}
	if got := DaysRemaining(base.Add(-time.Hour), base); got > 0 {
		t.Errorf("DaysRemaining() past expiry = %d, want <= 0", got)
	}
}

// apply replays a sweep plan onto the input the way the store would.
func apply(records []Record, blocks []Block, effs []effects.Effect) ([]Record, []Block) {
	byID := map[string]int{}
	for i := range records {
		byID[records[i].ID] = i
	}
	for _, e := range effs {
		switch e := e.(type) {
		case effects.ExpirePassEffect:
			records[byID[e.RecordID]].Status = StatusExpired
		case effects.MarkWarnedEffect:
			records[byID[e.RecordID]].Status = StatusWarning
			records[byID[e.RecordID]].LastWarnedOn = e.Day
		case effects.CreateBlockEffect:
			blocks = append(blocks, Block{Category: e.Category, Reason: e.Reason, BlockedAt: e.BlockedAt, Scope: ScopeNewAdmissionsOnly})
		case effects.RemoveBlockEffect:
			kept := blocks[:0]
			for _, b := range blocks {
				if b.Category != e.Category {
					kept = append(kept, b)
				}
			}
			blocks = kept
		case effects.ResolvePassEffect:
			r := &records[byID[e.RecordID]]
			r.Status = Status(e.Status)
			r.Resolved = true
			at := e.ResolvedAt
			r.ResolvedAt = &at
		}
	}
	return records, blocks
}

func TestPlanSweep_ExpiredRecordBlocksCategoryOnce(t *testing.T) {
	records := []Record{record("cp-1", "grapes", 31*24*time.Hour)}

	first := PlanSweep(records, nil, base, DefaultWarningDays)
	if len(first.Report.Expired) != 1 {
		t.Fatalf("expected 1 expired record, got %d", len(first.Report.Expired))
	}
	if countEffects[effects.CreateBlockEffect](first.Effects) != 1 {
		t.Fatalf("expected exactly one block, got effects %+v", first.Effects)
	}
	if len(first.Report.NewlyBlocked) != 1 || first.Report.NewlyBlocked[0] != "grapes" {
		t.Errorf("NewlyBlocked = %v", first.Report.NewlyBlocked)
	}

	records, blocks := apply(records, nil, first.Effects)
	if records[0].Status != StatusExpired {
		t.Fatalf("record status = %s, want EXPIRED", records[0].Status)
	}

	second := PlanSweep(records, blocks, base.Add(2*time.Hour), DefaultWarningDays)
	if len(second.Effects) != 0 {
		t.Errorf("second sweep should be a no-op, got %+v", second.Effects)
	}
	if second.Report.Notified != 0 {
		t.Errorf("second sweep notified %d times", second.Report.Notified)
	}
}

func TestPlanSweep_WarnsOncePerDay(t *testing.T) {
	records := []Record{record("cp-1", "onion", 25*24*time.Hour)}

	first := PlanSweep(records, nil, base, DefaultWarningDays)
	if countEffects[effects.NotifyEffect](first.Effects) != 1 {
		t.Fatalf("expected one warning notification, got %+v", first.Effects)
	}
	records, blocks := apply(records, nil, first.Effects)

	sameDay := PlanSweep(records, blocks, base.Add(3*time.Hour), DefaultWarningDays)
	if countEffects[effects.NotifyEffect](sameDay.Effects) != 0 {
		t.Errorf("same-day sweep should not re-notify, got %+v", sameDay.Effects)
	}
	if len(sameDay.Report.Warnings) != 1 {
		t.Errorf("warning should still be reported, got %d", len(sameDay.Report.Warnings))
	}

	nextDay := PlanSweep(records, blocks, base.Add(24*time.Hour), DefaultWarningDays)
	if countEffects[effects.NotifyEffect](nextDay.Effects) != 1 {
		t.Errorf("next-day sweep should notify again, got %+v", nextDay.Effects)
	}
}

func TestPlanSweep_RemovesStaleBlock(t *testing.T) {
	r := record("cp-1", "xylitol", 40*24*time.Hour)
	r.Status = StatusExpired
	r.Resolved = true
	blocks := []Block{{Category: "xylitol", Scope: ScopeNewAdmissionsOnly}}

	plan := PlanSweep([]Record{r}, blocks, base, DefaultWarningDays)
	if countEffects[effects.RemoveBlockEffect](plan.Effects) != 1 {
		t.Errorf("expected stale block removal, got %+v", plan.Effects)
	}
	if len(plan.Report.Unblocked) != 1 {
		t.Errorf("Unblocked = %v", plan.Report.Unblocked)
	}
}

func TestPlanSweep_ActiveRecordsUntouched(t *testing.T) {
	plan := PlanSweep([]Record{record("cp-1", "carrot", time.Hour)}, nil, base, DefaultWarningDays)
	if len(plan.Effects) != 0 {
		t.Errorf("expected no effects, got %+v", plan.Effects)
	}
}

func TestPlanResolve(t *testing.T) {
	t.Run("active record becomes resolved", func(t *testing.T) {
		r := record("cp-1", "grapes", 3*24*time.Hour)
		plan := PlanResolve(r, []Record{r}, nil, base, DefaultWarningDays)
		recs, _ := apply([]Record{r}, nil, plan.Effects)
		if recs[0].Status != StatusResolved || !recs[0].Resolved {
			t.Errorf("record = %+v", recs[0])
		}
		if plan.LiftsBlock {
			t.Error("no block to lift")
		}
	})

	t.Run("expired record keeps status and lifts block", func(t *testing.T) {
		r := record("cp-1", "grapes", 31*24*time.Hour)
		r.Status = StatusExpired
		blocks := []Block{{Category: "grapes"}}
		plan := PlanResolve(r, []Record{r}, blocks, base, DefaultWarningDays)
		recs, blocks := apply([]Record{r}, blocks, plan.Effects)
		if recs[0].Status != StatusExpired || !recs[0].Resolved {
			t.Errorf("record = %+v", recs[0])
		}
		if !plan.LiftsBlock || len(blocks) != 0 {
			t.Errorf("block should be lifted, remaining %v", blocks)
		}
	})

	t.Run("sibling still expired keeps block", func(t *testing.T) {
		a := record("cp-1", "grapes", 31*24*time.Hour)
		a.Status = StatusExpired
		b := record("cp-2", "grapes", 32*24*time.Hour)
		b.Status = StatusExpired
		plan := PlanResolve(a, []Record{a, b}, []Block{{Category: "grapes"}}, base, DefaultWarningDays)
		if plan.LiftsBlock {
			t.Error("block must stay while another expired record is unresolved")
		}
	})

	t.Run("already resolved", func(t *testing.T) {
		r := record("cp-1", "grapes", 0)
		r.Status = StatusResolved
		r.Resolved = true
		plan := PlanResolve(r, nil, nil, base, DefaultWarningDays)
		if !plan.AlreadyResolved || len(plan.Effects) != 0 {
			t.Errorf("plan = %+v", plan)
		}
	})
}
