package sqlite_test

import (
	"context"
	"testing"

	"github.com/example/contentgate/internal/adapters/sqlite"
	"github.com/example/contentgate/internal/ports/secondary"
)

func TestVerificationLogRepository_RecordOncePerDay(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewVerificationLogRepository(db)
	ctx := context.Background()

	entry := &secondary.VerificationLogRecord{
		Category:   "grapes",
		Day:        "2026-03-01",
		Outcome:    "CONDITIONAL_PASS",
		Code:       "CONDITIONAL_PASS",
		MatchScore: "2/3",
		URLs:       []string{"https://a.example.com", "https://www.aspca.org/grapes"},
		CreatedAt:  "2026-03-01T08:00:00Z",
	}
	written, err := repo.Record(ctx, entry)
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if !written {
		t.Error("first Record should write")
	}

	again := *entry
	again.Outcome = "FAIL"
	written, err = repo.Record(ctx, &again)
	if err != nil {
		t.Fatal(err)
	}
	if written {
		t.Error("second Record on the same day should not write")
	}

	got, err := repo.Get(ctx, "grapes", "2026-03-01")
	if err != nil || got == nil {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if got.Outcome != "CONDITIONAL_PASS" || len(got.URLs) != 2 || got.MatchScore != "2/3" {
		t.Errorf("stored entry changed: %+v", got)
	}

	missing, err := repo.Get(ctx, "grapes", "2026-03-02")
	if err != nil || missing != nil {
		t.Errorf("Get(missing) = %v, %v", missing, err)
	}
}

func TestVerificationLogRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewVerificationLogRepository(db)
	ctx := context.Background()

	for _, e := range []struct{ category, day string }{
		{"grapes", "2026-03-01"},
		{"grapes", "2026-03-02"},
		{"onion", "2026-03-01"},
	} {
		if _, err := repo.Record(ctx, &secondary.VerificationLogRecord{
			Category: e.category, Day: e.day, Outcome: "ALL_PASS", Code: "OK", CreatedAt: e.day + "T08:00:00Z",
		}); err != nil {
			t.Fatal(err)
		}
	}

	all, err := repo.List(ctx, secondary.VerificationLogFilters{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].Day != "2026-03-02" {
		t.Errorf("List should be newest first, got %+v", all)
	}

	grapes, _ := repo.List(ctx, secondary.VerificationLogFilters{Category: "grapes", Limit: 1})
	if len(grapes) != 1 || grapes[0].Day != "2026-03-02" {
		t.Errorf("filtered list = %+v", grapes)
	}
}
