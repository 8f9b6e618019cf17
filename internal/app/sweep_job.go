package app

import (
	"context"
	"sync"
	"time"

	"github.com/example/contentgate/internal/logging"
	"github.com/example/contentgate/internal/ports/primary"
)

// DefaultSweepInterval is used when SweepJobConfig.Interval is zero.
const DefaultSweepInterval = time.Hour

// SweepJob runs the expiry sweep on a fixed interval. Sweeps are idempotent
// per day, so running more often than daily only shortens the delay between
// a pass expiring and its category being blocked.
type SweepJob struct {
	service  primary.ExpiryService
	logger   logging.Logger
	interval time.Duration
	timeout  time.Duration
	onReport func(*primary.SweepReport)
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// SweepJobConfig holds configuration for the sweep job.
type SweepJobConfig struct {
	Service  primary.ExpiryService
	Logger   logging.Logger
	Interval time.Duration
	// Timeout bounds a single sweep.
	Timeout time.Duration
	// OnReport, if set, receives every successful sweep report.
	OnReport func(*primary.SweepReport)
}

// NewSweepJob creates a new sweep job.
func NewSweepJob(cfg SweepJobConfig) *SweepJob {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &SweepJob{
		service:  cfg.Service,
		logger:   logging.OrDiscard(cfg.Logger),
		interval: interval,
		timeout:  timeout,
		onReport: cfg.OnReport,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background sweep loop. The first sweep runs immediately.
func (j *SweepJob) Start() {
	j.wg.Add(1)
	go j.run()
	j.logger.WithField("interval", j.interval.String()).Info("sweep job started")
}

// Stop stops the loop and waits for an in-flight sweep to finish.
func (j *SweepJob) Stop() {
	close(j.stopCh)
	j.wg.Wait()
	j.logger.Info("sweep job stopped")
}

func (j *SweepJob) run() {
	defer j.wg.Done()
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep()
	for {
		select {
		case <-ticker.C:
			j.sweep()
		case <-j.stopCh:
			return
		}
	}
}

func (j *SweepJob) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	report, err := j.service.ProcessExpirations(ctx)
	if err != nil {
		j.logger.WithError(err).Error("expiry sweep failed")
		return
	}
	if j.onReport != nil {
		j.onReport(report)
	}
}
