package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"

	"github.com/example/contentgate/internal/logging"
	"github.com/example/contentgate/internal/metrics"
	"github.com/example/contentgate/internal/ports/secondary"
)

func TestTelegramNotifier_Sends(t *testing.T) {
	var got telegramMessage
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier(TelegramConfig{BotToken: "123:abc", ChatID: "-100", APIBase: srv.URL}, nil)
	if err := n.Notify(context.Background(), "category grapes blocked", "critical"); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if path != "/bot123:abc/sendMessage" {
		t.Errorf("path = %s", path)
	}
	if got.ChatID != "-100" || got.Text != "[CRITICAL] category grapes blocked" {
		t.Errorf("message = %+v", got)
	}
}

func TestTelegramNotifier_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
	}))
	defer srv.Close()

	n := NewTelegramNotifier(TelegramConfig{BotToken: "t", ChatID: "c", APIBase: srv.URL}, nil)
	err := n.Notify(context.Background(), "x", "info")
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("expected rejection error, got %v", err)
	}
}

func TestTelegramNotifier_NotConfigured(t *testing.T) {
	n := NewTelegramNotifier(TelegramConfig{}, nil)
	if n.IsConfigured() {
		t.Fatal("empty config should not be configured")
	}
	if err := n.Notify(context.Background(), "x", "info"); err != nil {
		t.Errorf("unconfigured notifier should skip silently, got %v", err)
	}
}

func TestTelegramNotifier_RedactsToken(t *testing.T) {
	n := NewTelegramNotifier(TelegramConfig{BotToken: "secret-token", ChatID: "c", APIBase: "http://127.0.0.1:1"}, nil)
	err := n.Notify(context.Background(), "x", "info")
	if err == nil {
		t.Fatal("expected connection error")
	}
	if strings.Contains(err.Error(), "secret-token") {
		t.Errorf("error leaks token: %v", err)
	}
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewTextLogger(&buf)
	logger.SetLevel(logrus.InfoLevel)

	n := NewLogNotifier(logger)
	_ = n.Notify(context.Background(), "pass CP-001 expires in 3 day(s)", "warning")

	out := buf.String()
	if !strings.Contains(out, "level=warning") || !strings.Contains(out, "CP-001") {
		t.Errorf("log output = %q", out)
	}
}

type recordingNotifier struct {
	messages []string
	err      error
}

func (r *recordingNotifier) Notify(_ context.Context, message, _ string) error {
	r.messages = append(r.messages, message)
	return r.err
}

func TestDispatcher_FansOutAndJoinsErrors(t *testing.T) {
	m := metrics.New()
	ok := &recordingNotifier{}
	broken := &recordingNotifier{err: errors.New("boom")}
	d := NewDispatcher(DispatcherConfig{Channels: []secondary.Notifier{broken, nil, ok}, Metrics: m})

	err := d.Notify(context.Background(), "hello", "info")
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected joined error, got %v", err)
	}
	if len(ok.messages) != 1 || len(broken.messages) != 1 {
		t.Errorf("every channel should receive the message: ok=%d broken=%d", len(ok.messages), len(broken.messages))
	}

	broken.err = nil
	if err := d.Notify(context.Background(), "again", "info"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	expected := `
# HELP contentgate_notifications_total Operator notifications by severity and delivery result
# TYPE contentgate_notifications_total counter
contentgate_notifications_total{result="delivered",severity="info"} 1
contentgate_notifications_total{result="failed",severity="info"} 1
`
	if err := testutil.GatherAndCompare(m.Registry, strings.NewReader(expected), "contentgate_notifications_total"); err != nil {
		t.Error(err)
	}
}
