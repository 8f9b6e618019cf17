package app

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/example/contentgate/internal/core/content"
	"github.com/example/contentgate/internal/ctxutil"
	"github.com/example/contentgate/internal/ports/primary"
	"github.com/example/contentgate/internal/ports/secondary"
)

func failedCodes(r *primary.GateReport) []string {
	var codes []string
	for _, res := range r.Results {
		if !res.Passed {
			codes = append(codes, res.Code)
		}
	}
	return codes
}

func findResult(r *primary.GateReport, gateName string) *primary.GateResult {
	for i := range r.Results {
		if r.Results[i].Gate == gateName {
			return &r.Results[i]
		}
	}
	return nil
}

func TestCheck_AdmitsCleanItem(t *testing.T) {
	h := newHarness(t, fixedNow)
	h.seed(t, grapesItem("0001-grapes", "BODY_READY"))

	report, err := h.gate.Check(context.Background(), primary.CheckRequest{ItemID: "0001-grapes", TargetStage: "APPROVED"})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	if !report.Admitted {
		t.Fatalf("expected admission, failures: %v", failedCodes(report))
	}
	if p := findResult(report, "provenance"); p == nil || p.Code != "ALL_PASS" {
		t.Errorf("provenance result = %+v", p)
	}
	if h.content.items["0001-grapes"].Stage != "BODY_READY" {
		t.Error("Check must not change the stage")
	}
	if len(h.decisions.decisions) != 1 || !h.decisions.decisions[0].Admitted {
		t.Errorf("decision log = %+v", h.decisions.decisions)
	}
}

func TestCheck_ForbiddenItemWithDosageFails(t *testing.T) {
	h := newHarness(t, fixedNow)
	item := grapesItem("0001-grapes", "BODY_READY")
	item.Captions["THREADS"] = "Never feed grapes, not even 2 grapes a day. Serving size: none. #canmypeteat"
	h.seed(t, item)

	report, err := h.gate.Check(context.Background(), primary.CheckRequest{ItemID: "0001-grapes", TargetStage: "APPROVED"})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	if report.Admitted {
		t.Fatal("FORBIDDEN item with dosage language must be blocked")
	}
	if codes := failedCodes(report); !reflect.DeepEqual(codes, []string{"DOSAGE_FORBIDDEN"}) {
		t.Errorf("failed codes = %v, want only DOSAGE_FORBIDDEN", codes)
	}
}

func TestCheck_ReportsEveryFailure(t *testing.T) {
	h := newHarness(t, fixedNow)
	item := grapesItem("0001-grapes", "DRAFT")
	item.Captions = map[string]string{}
	item.GenerationMeta = item.GenerationMeta[:1] // cover has no metadata
	h.seed(t, item)

	report, err := h.gate.Check(context.Background(), primary.CheckRequest{ItemID: "0001-grapes", TargetStage: "APPROVED"})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	codes := failedCodes(report)
	want := []string{"INVALID_TRANSITION", "CAPTION_MISSING", "MISSING_METADATA"}
	if !reflect.DeepEqual(codes, want) {
		t.Errorf("failed codes = %v, want %v", codes, want)
	}
	if report.Results[0].Gate != "transition" {
		t.Errorf("first result = %s, want transition guard", report.Results[0].Gate)
	}
	for _, r := range report.Results {
		if !r.Passed && r.Remediation == "" {
			t.Errorf("failure %s has no remediation", r.Code)
		}
	}
}

func TestCheck_StaleGenerationRule(t *testing.T) {
	h := newHarness(t, fixedNow)
	item := grapesItem("0001-grapes", "BODY_READY")
	item.GenerationMeta[1].RuleName = "cover_v1"
	h.seed(t, item)

	report, err := h.gate.Check(context.Background(), primary.CheckRequest{ItemID: "0001-grapes", TargetStage: "APPROVED"})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}

	r := findResult(report, "rulesync:0001-grapes/cover.png")
	if r == nil || r.Passed || r.Code != "INVALID_RULE" {
		t.Errorf("rulesync result = %+v, want INVALID_RULE", r)
	}
}

func TestCheck_IsIdempotent(t *testing.T) {
	h := newHarness(t, fixedNow)
	h.checker.script(blogURL, "HTTP_404")
	h.seed(t, grapesItem("0001-grapes", "BODY_READY"))
	req := primary.CheckRequest{ItemID: "0001-grapes", TargetStage: "APPROVED"}

	first, err := h.gate.Check(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := h.gate.Check(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(first.Results, second.Results) || first.Admitted != second.Admitted {
		t.Errorf("repeated checks differ:\n first  %+v\n second %+v", first.Results, second.Results)
	}
	if len(h.passes.passes) != 1 {
		t.Errorf("stored passes = %d, want 1", len(h.passes.passes))
	}
	p := findResult(first, "provenance")
	if p == nil || p.Code != "CONDITIONAL_PASS" || len(p.SideEffects) != 1 {
		t.Errorf("provenance = %+v", p)
	}
}

func TestCheck_BlockedCategory(t *testing.T) {
	h := newHarness(t, fixedNow)
	h.passes.block("grapes")
	h.seed(t, grapesItem("0001-grapes", "BODY_READY"))
	h.seed(t, grapesItem("0002-grapes", "APPROVED"))

	blocked, err := h.gate.Check(context.Background(), primary.CheckRequest{ItemID: "0001-grapes", TargetStage: "APPROVED"})
	if err != nil {
		t.Fatal(err)
	}
	if blocked.Admitted {
		t.Error("new admission into a blocked category must fail")
	}
	if p := findResult(blocked, "provenance"); p == nil || p.Passed || p.Code != "CATEGORY_BLOCKED" {
		t.Errorf("provenance = %+v", p)
	}
	if h.checker.callCount(vetURL) != 0 {
		t.Error("source verification must be skipped for a blocked category")
	}

	approved, err := h.gate.Check(context.Background(), primary.CheckRequest{ItemID: "0002-grapes", TargetStage: "POSTED"})
	if err != nil {
		t.Fatal(err)
	}
	if approved.Admitted {
		t.Error("approved item in a blocked category must not be posted")
	}
	if p := findResult(approved, "provenance"); p == nil || p.Passed || p.Code != "CATEGORY_BLOCKED" {
		t.Errorf("provenance = %+v", p)
	}
}

func TestAdvance_BlockedCategoryKeepsApprovedItem(t *testing.T) {
	h := newHarness(t, fixedNow)
	h.passes.block("grapes")
	h.seed(t, grapesItem("0001-grapes", "APPROVED"))

	resp, err := h.gate.Advance(context.Background(), primary.AdvanceRequest{ItemID: "0001-grapes", TargetStage: "POSTED"})
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if resp.Transitioned || resp.Report.Admitted {
		t.Error("blocked category must not publish")
	}
	item := h.content.items["0001-grapes"]
	if item.Stage != "APPROVED" || item.PostedAt != "" {
		t.Errorf("item = %s posted %q, want APPROVED and unposted", item.Stage, item.PostedAt)
	}
	if len(h.content.history) != 0 {
		t.Errorf("history = %+v", h.content.history)
	}
}

// reimportingRepository stores a new revision of the item right after it is
// read, as an import running concurrently with Advance would.
type reimportingRepository struct {
	*mockContentRepository
	caption string
}

func (r *reimportingRepository) GetByID(ctx context.Context, id string) (*secondary.ContentItemRecord, error) {
	record, err := r.mockContentRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	stored := r.items[id]
	stored.Revision = record.Revision + 1
	stored.Captions = map[string]string{"THREADS": r.caption}
	r.mu.Unlock()
	return record, nil
}

func TestAdvance_RejectsRevisionChangedSinceCheck(t *testing.T) {
	h := newHarness(t, fixedNow)
	h.seed(t, grapesItem("0001-grapes", "APPROVED"))
	repo := &reimportingRepository{
		mockContentRepository: h.content,
		caption:               "How much to feed: 3 grapes is safe to eat #canmypeteat",
	}
	svc := NewGateService(GateServiceConfig{
		ContentRepo:  repo,
		PassRepo:     h.passes,
		DecisionRepo: h.decisions,
		Verifier:     h.verifier,
		Registry:     testRegistry(t),
		Lock:         h.lock,
		Options: GateOptions{
			Platforms: []content.Platform{content.PlatformThreads},
			Assets:    content.AssetRequirements{MinCount: 2, MinWidth: 1024, MinHeight: 1024},
		},
		Now: clockAt(fixedNow),
	})

	_, err := svc.Advance(context.Background(), primary.AdvanceRequest{ItemID: "0001-grapes", TargetStage: "POSTED"})
	if !errors.Is(err, secondary.ErrStaleRevision) {
		t.Fatalf("Advance error = %v, want ErrStaleRevision", err)
	}
	item := h.content.items["0001-grapes"]
	if item.Stage != "APPROVED" || item.Revision != 2 {
		t.Errorf("item = %s rev %d, want APPROVED rev 2", item.Stage, item.Revision)
	}
	if len(h.content.history) != 0 {
		t.Errorf("history = %+v", h.content.history)
	}
	if len(h.decisions.decisions) != 1 || h.decisions.decisions[0].Revision != 1 {
		t.Errorf("decisions = %+v", h.decisions.decisions)
	}
}

func TestAdvance_TransitionsOnAdmission(t *testing.T) {
	h := newHarness(t, fixedNow)
	h.seed(t, grapesItem("0001-grapes", "BODY_READY"))
	ctx := ctxutil.WithActorID(context.Background(), "editor-1")

	resp, err := h.gate.Advance(ctx, primary.AdvanceRequest{ItemID: "0001-grapes", TargetStage: "APPROVED", Reason: "ready"})
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if !resp.Transitioned || resp.FromStage != "BODY_READY" {
		t.Errorf("resp = %+v", resp)
	}
	if got := h.content.items["0001-grapes"].Stage; got != "APPROVED" {
		t.Errorf("stage = %s, want APPROVED", got)
	}
	if len(h.content.history) != 1 || h.content.history[0].Actor != "editor-1" {
		t.Errorf("history = %+v", h.content.history)
	}

	resp, err = h.gate.Advance(ctx, primary.AdvanceRequest{ItemID: "0001-grapes", TargetStage: "POSTED"})
	if err != nil {
		t.Fatalf("Advance to POSTED failed: %v", err)
	}
	if !resp.Transitioned {
		t.Fatalf("POSTED not admitted: %v", failedCodes(resp.Report))
	}
	if h.content.items["0001-grapes"].PostedAt == "" {
		t.Error("PostedAt should be set when the item is posted")
	}
}

func TestAdvance_BlockedItemStaysPut(t *testing.T) {
	h := newHarness(t, fixedNow)
	h.passes.block("grapes")
	h.seed(t, grapesItem("0001-grapes", "BODY_READY"))

	resp, err := h.gate.Advance(context.Background(), primary.AdvanceRequest{ItemID: "0001-grapes", TargetStage: "APPROVED"})
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if resp.Transitioned {
		t.Error("blocked item must not transition")
	}
	if got := h.content.items["0001-grapes"].Stage; got != "BODY_READY" {
		t.Errorf("stage = %s, want BODY_READY", got)
	}
}

func TestAdvance_PostedIsTerminal(t *testing.T) {
	h := newHarness(t, fixedNow)
	h.seed(t, grapesItem("0001-grapes", "POSTED"))

	resp, err := h.gate.Advance(context.Background(), primary.AdvanceRequest{ItemID: "0001-grapes", TargetStage: "APPROVED"})
	if err != nil {
		t.Fatalf("Advance failed: %v", err)
	}
	if resp.Transitioned || resp.Report.Admitted {
		t.Error("POSTED item must not move")
	}
	if codes := failedCodes(resp.Report); len(codes) == 0 || codes[0] != "INVALID_TRANSITION" {
		t.Errorf("failed codes = %v", codes)
	}
	if h.content.items["0001-grapes"].Stage != "POSTED" {
		t.Error("POSTED stage changed")
	}
}

func TestCheckAll_EvaluatesEveryItem(t *testing.T) {
	h := newHarness(t, fixedNow)
	h.seed(t, grapesItem("0001-grapes", "BODY_READY"))
	h.seed(t, grapesItem("0002-grapes", "BODY_READY"))
	broken := grapesItem("0003-grapes", "BODY_READY")
	broken.SafetyClass = "UNHEARD_OF"
	h.seed(t, broken)
	h.seed(t, grapesItem("0004-grapes", "APPROVED"))

	reports, err := h.gate.CheckAll(context.Background(), primary.CheckAllRequest{Stage: "body-ready", Concurrency: 2})
	if err != nil {
		t.Fatalf("CheckAll failed: %v", err)
	}

	if len(reports) != 3 {
		t.Fatalf("reports = %d, want 3", len(reports))
	}
	for i, id := range []string{"0001-grapes", "0002-grapes", "0003-grapes"} {
		if reports[i].ItemID != id {
			t.Errorf("reports[%d] = %s, want %s", i, reports[i].ItemID, id)
		}
		if reports[i].TargetStage != "APPROVED" {
			t.Errorf("reports[%d].TargetStage = %s, want APPROVED", i, reports[i].TargetStage)
		}
	}
	if !reports[0].Admitted || !reports[1].Admitted {
		t.Error("clean items should be admitted")
	}
	if reports[2].Err == "" {
		t.Error("unloadable item should carry its error")
	}
}

func TestCheck_DecisionLogFailureIsNotFatal(t *testing.T) {
	h := newHarness(t, fixedNow)
	h.decisions.createErr = errBoom
	h.seed(t, grapesItem("0001-grapes", "BODY_READY"))

	report, err := h.gate.Check(context.Background(), primary.CheckRequest{ItemID: "0001-grapes", TargetStage: "APPROVED"})
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !report.Admitted {
		t.Error("decision stands even when it cannot be recorded")
	}
}

func TestCheck_UnreachableSourcesReportRetryExhausted(t *testing.T) {
	tests := []struct {
		name      string
		vet       string
		wantCode  string
		notExpect string
	}{
		{name: "every failure transient", vet: "TIMEOUT", wantCode: "RETRY_EXHAUSTED"},
		{name: "hard failure present", vet: "HTTP_404", notExpect: "RETRY_EXHAUSTED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, fixedNow)
			h.checker.script(vetURL, tt.vet)
			h.checker.script(blogURL, "HTTP_5XX")
			h.seed(t, grapesItem("0001-grapes", "BODY_READY"))

			report, err := h.gate.Check(context.Background(), primary.CheckRequest{ItemID: "0001-grapes", TargetStage: "APPROVED"})
			if err != nil {
				t.Fatalf("Check failed: %v", err)
			}
			if report.Admitted {
				t.Fatal("item with no reachable source must be blocked")
			}
			p := findResult(report, "provenance")
			if p == nil || p.Passed {
				t.Fatalf("provenance = %+v", p)
			}
			if tt.wantCode != "" && p.Code != tt.wantCode {
				t.Errorf("code = %s, want %s", p.Code, tt.wantCode)
			}
			if tt.notExpect != "" && p.Code == tt.notExpect {
				t.Errorf("code = %s, want a hard failure code", p.Code)
			}
			if p.Remediation == "" {
				t.Error("failure has no remediation")
			}

			var noted bool
			for _, effect := range p.SideEffects {
				if strings.Contains(effect, "retries exhausted for "+blogURL) {
					noted = true
				}
			}
			if !noted {
				t.Errorf("side effects = %v, want the exhausted blog check", p.SideEffects)
			}
		})
	}
}
