// Package notify implements the operator notification channel.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/example/contentgate/internal/logging"
	"github.com/example/contentgate/internal/ports/secondary"
)

// DefaultTelegramAPI is the Bot API base URL.
const DefaultTelegramAPI = "https://api.telegram.org"

// TelegramConfig configures the Telegram notifier.
type TelegramConfig struct {
	BotToken string
	ChatID   string
	// APIBase overrides DefaultTelegramAPI; used by tests.
	APIBase string
	Timeout time.Duration
}

// TelegramNotifier posts messages to a chat through the Telegram Bot API.
type TelegramNotifier struct {
	cfg    TelegramConfig
	client *http.Client
	logger logging.Logger
}

// NewTelegramNotifier creates a Telegram notifier.
func NewTelegramNotifier(cfg TelegramConfig, logger logging.Logger) *TelegramNotifier {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultTelegramAPI
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &TelegramNotifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logging.OrDiscard(logger),
	}
}

// IsConfigured reports whether a token and chat are set.
func (n *TelegramNotifier) IsConfigured() bool {
	return n.cfg.BotToken != "" && n.cfg.ChatID != ""
}

type telegramMessage struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Notify sends the message prefixed with its severity.
func (n *TelegramNotifier) Notify(ctx context.Context, message, severity string) error {
	if !n.IsConfigured() {
		n.logger.Warn("Telegram notifier not configured, skipping notification")
		return nil
	}

	body, err := json.Marshal(telegramMessage{
		ChatID: n.cfg.ChatID,
		Text:   fmt.Sprintf("%s %s", severityPrefix(severity), message),
	})
	if err != nil {
		return fmt.Errorf("failed to encode telegram message: %w", err)
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(n.cfg.APIBase, "/"), n.cfg.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		// The token is part of the URL; keep it out of the error.
		return fmt.Errorf("send telegram notification: %s", redact(err.Error(), n.cfg.BotToken))
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var decoded telegramResponse
	_ = json.Unmarshal(raw, &decoded)
	if resp.StatusCode != http.StatusOK || !decoded.OK {
		return fmt.Errorf("telegram rejected notification: HTTP %d %s", resp.StatusCode, decoded.Description)
	}
	return nil
}

func severityPrefix(severity string) string {
	switch severity {
	case secondary.SeverityCritical:
		return "[CRITICAL]"
	case secondary.SeverityWarning:
		return "[WARNING]"
	}
	return "[INFO]"
}

func redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "***")
}

var _ secondary.Notifier = (*TelegramNotifier)(nil)
