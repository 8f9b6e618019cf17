package notify

import (
	"context"
	"errors"

	"github.com/example/contentgate/internal/logging"
	"github.com/example/contentgate/internal/metrics"
	"github.com/example/contentgate/internal/ports/secondary"
)

// Dispatcher fans a notification out to every configured channel.
type Dispatcher struct {
	channels []secondary.Notifier
	metrics  *metrics.Metrics
	logger   logging.Logger
}

// DispatcherConfig wires a Dispatcher.
type DispatcherConfig struct {
	Channels []secondary.Notifier
	Metrics  *metrics.Metrics
	Logger   logging.Logger
}

// NewDispatcher creates a fan-out notifier. Nil channels are skipped.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	d := &Dispatcher{metrics: cfg.Metrics, logger: logging.OrDiscard(cfg.Logger)}
	for _, ch := range cfg.Channels {
		if ch != nil {
			d.channels = append(d.channels, ch)
		}
	}
	return d
}

// Notify delivers to every channel and joins their errors. A failing channel
// does not stop delivery to the others.
func (d *Dispatcher) Notify(ctx context.Context, message, severity string) error {
	var errs []error
	for _, ch := range d.channels {
		if err := ch.Notify(ctx, message, severity); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		d.metrics.ObserveNotification(severity, false)
		d.logger.WithError(errors.Join(errs...)).WithField("severity", severity).Warn("Notification delivery failed")
		return errors.Join(errs...)
	}
	d.metrics.ObserveNotification(severity, true)
	return nil
}

var _ secondary.Notifier = (*Dispatcher)(nil)
