package app

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/contentgate/internal/core/effects"
	"github.com/example/contentgate/internal/logging"
)

type unknownEffect struct{}

func (unknownEffect) EffectType() string { return "unknown" }

func TestEffectExecutor_AppliesOneBatch(t *testing.T) {
	repo := newMockConditionalPassRepository()
	repo.put(passRecord("CP-001", "grapes", blogURL, "2026-02-07T09:00:00Z", "2026-03-09T09:00:00Z", "ACTIVE"))
	repo.put(passRecord("CP-002", "onion", "https://blog.example.com/onion", "2026-02-11T09:00:00Z", "2026-03-13T09:00:00Z", "ACTIVE"))
	notifier := &mockNotifier{}
	exec := NewEffectExecutor(repo, notifier, nil)

	err := exec.Execute(context.Background(), []effects.Effect{
		effects.ExpirePassEffect{RecordID: "CP-001", Category: "grapes"},
		effects.CompositeEffect{Effects: []effects.Effect{
			effects.MarkWarnedEffect{RecordID: "CP-002", Day: "2026-03-10"},
			effects.NoEffect{},
		}},
		effects.CreateBlockEffect{Category: "grapes", Reason: "expired", BlockedAt: fixedNow},
		effects.NotifyEffect{Message: "Category grapes blocked", Severity: "critical"},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(repo.applied) != 1 {
		t.Fatalf("ApplyMutations calls = %d, want 1", len(repo.applied))
	}
	m := repo.applied[0]
	if len(m.Expire) != 1 || len(m.MarkWarned) != 1 || len(m.CreateBlocks) != 1 {
		t.Errorf("mutations = %+v", m)
	}
	if repo.blocks["grapes"].BlockedAt != "2026-03-10T09:00:00Z" {
		t.Errorf("BlockedAt = %q", repo.blocks["grapes"].BlockedAt)
	}
	if repo.passes["CP-002"].Status != "WARNING" {
		t.Errorf("CP-002 status = %s, want WARNING", repo.passes["CP-002"].Status)
	}
	if len(notifier.notices) != 1 {
		t.Errorf("notifications = %d, want 1", len(notifier.notices))
	}
}

func TestEffectExecutor_NoNotificationWhenCommitFails(t *testing.T) {
	repo := newMockConditionalPassRepository()
	repo.applyErr = errBoom
	notifier := &mockNotifier{}
	exec := NewEffectExecutor(repo, notifier, nil)

	err := exec.Execute(context.Background(), []effects.Effect{
		effects.RemoveBlockEffect{Category: "grapes"},
		effects.NotifyEffect{Message: "Category grapes unblocked", Severity: "info"},
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected errBoom, got %v", err)
	}
	if len(notifier.notices) != 0 {
		t.Error("notification sent for a batch that did not commit")
	}
}

func TestEffectExecutor_NotifyFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewTextLogger(&buf)
	logger.SetLevel(logrus.InfoLevel)
	notifier := &mockNotifier{err: errors.New("telegram down")}
	exec := NewEffectExecutor(newMockConditionalPassRepository(), notifier, logger)

	err := exec.Execute(context.Background(), []effects.Effect{
		effects.NotifyEffect{Message: "hello", Severity: "warning"},
		effects.LogEffect{Level: "warn", Message: "conditional pass expired", Fields: map[string]any{"record_id": "CP-001"}},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "notification failed") {
		t.Errorf("expected delivery failure in log, got %q", out)
	}
	if !strings.Contains(out, "record_id=CP-001") {
		t.Errorf("expected log effect fields, got %q", out)
	}
}

func TestEffectExecutor_UnknownEffect(t *testing.T) {
	repo := newMockConditionalPassRepository()
	exec := NewEffectExecutor(repo, nil, nil)

	err := exec.Execute(context.Background(), []effects.Effect{
		effects.ExpirePassEffect{RecordID: "CP-001"},
		unknownEffect{},
	})
	if err == nil {
		t.Fatal("expected error for unknown effect")
	}
	if len(repo.applied) != 0 {
		t.Error("nothing may be applied when the batch is invalid")
	}
}

func TestEffectExecutor_ResolveTimestamp(t *testing.T) {
	repo := newMockConditionalPassRepository()
	repo.put(passRecord("CP-001", "grapes", blogURL, "2026-02-07T09:00:00Z", "2026-03-09T09:00:00Z", "EXPIRED"))
	exec := NewEffectExecutor(repo, nil, nil)

	resolvedAt := time.Date(2026, 3, 10, 12, 30, 0, 0, time.UTC)
	err := exec.Execute(context.Background(), []effects.Effect{
		effects.ResolvePassEffect{RecordID: "CP-001", Status: "EXPIRED", ResolvedAt: resolvedAt},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if p := repo.passes["CP-001"]; !p.Resolved || p.ResolvedAt != "2026-03-10T12:30:00Z" {
		t.Errorf("pass = %+v", p)
	}
}
