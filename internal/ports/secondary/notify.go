package secondary

import "context"

// Notification severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Notifier defines the secondary port for the operator notification channel.
type Notifier interface {
	// Notify delivers a message. Callers log delivery errors; they are never fatal.
	Notify(ctx context.Context, message, severity string) error
}
