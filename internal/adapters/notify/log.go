package notify

import (
	"context"

	"github.com/example/contentgate/internal/logging"
	"github.com/example/contentgate/internal/ports/secondary"
)

// LogNotifier writes notifications to the structured log. It is the channel
// of last resort and never fails.
type LogNotifier struct {
	logger logging.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(logger logging.Logger) *LogNotifier {
	return &LogNotifier{logger: logging.OrDiscard(logger)}
}

// Notify logs the message at a level matching its severity.
func (n *LogNotifier) Notify(_ context.Context, message, severity string) error {
	entry := n.logger.WithField("severity", severity)
	switch severity {
	case secondary.SeverityCritical:
		entry.Error(message)
	case secondary.SeverityWarning:
		entry.Warn(message)
	default:
		entry.Info(message)
	}
	return nil
}

var _ secondary.Notifier = (*LogNotifier)(nil)
