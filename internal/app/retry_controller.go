// Package app contains the application layer - service implementations and effect execution.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/example/contentgate/internal/logging"
	"github.com/example/contentgate/internal/metrics"
	"github.com/example/contentgate/internal/ports/secondary"
)

// DefaultMaxRetries is the retry budget when none is configured.
const DefaultMaxRetries = 2

// RetryExhaustedError is returned when an operation failed on every attempt.
type RetryExhaustedError struct {
	TaskID       string
	AttemptCount int
	LastError    error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("task %s failed after %d attempt(s): %v", e.TaskID, e.AttemptCount, e.LastError)
}

func (e *RetryExhaustedError) Unwrap() error { return e.LastError }

// PermanentError marks a failure that no retry can fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the retry controller returns it without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err was wrapped with Permanent.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}

// RetryState is the in-flight retry bookkeeping for one task.
type RetryState struct {
	TaskID       string
	AttemptCount int
	LastError    error
}

// RetryController re-invokes failing operations and escalates when the budget
// runs out. State is in memory only.
type RetryController struct {
	notifier       secondary.Notifier
	metrics        *metrics.Metrics
	logger         logging.Logger
	spacing        time.Duration
	attemptTimeout time.Duration

	mu     sync.Mutex
	states map[string]*RetryState
}

// RetryOption configures a RetryController.
type RetryOption func(*RetryController)

// WithSpacing sets the fixed delay between attempts.
func WithSpacing(d time.Duration) RetryOption {
	return func(c *RetryController) { c.spacing = d }
}

// WithAttemptTimeout bounds each attempt.
func WithAttemptTimeout(d time.Duration) RetryOption {
	return func(c *RetryController) { c.attemptTimeout = d }
}

// NewRetryController creates a RetryController. notifier and m may be nil.
func NewRetryController(notifier secondary.Notifier, m *metrics.Metrics, logger logging.Logger, opts ...RetryOption) *RetryController {
	c := &RetryController{
		notifier: notifier,
		metrics:  m,
		logger:   logging.OrDiscard(logger),
		states:   make(map[string]*RetryState),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes op, retrying up to maxRetries times.
func (c *RetryController) Run(ctx context.Context, taskID string, maxRetries int, op func(ctx context.Context) error) error {
	_, err := RunValue(ctx, c, taskID, maxRetries, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// RunValue executes op through c, retrying up to maxRetries times. On
// exhaustion it logs, notifies the operator once and returns a
// *RetryExhaustedError. Permanent errors are returned as-is after one attempt.
func RunValue[T any](ctx context.Context, c *RetryController, taskID string, maxRetries int, op func(ctx context.Context) (T, error)) (T, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}

	builder := retrypolicy.NewBuilder[T]().
		WithMaxRetries(maxRetries).
		HandleIf(func(_ T, err error) bool {
			return err != nil && !IsPermanent(err)
		})
	if c.spacing > 0 {
		builder = builder.WithDelay(c.spacing)
	}
	policy := builder.Build()

	c.begin(taskID)
	result, err := failsafe.With(policy).WithContext(ctx).Get(func() (T, error) {
		attemptCtx, cancel := c.attemptContext(ctx)
		defer cancel()
		v, err := op(attemptCtx)
		c.record(taskID, err)
		return v, err
	})
	if err == nil {
		c.reset(taskID)
		return result, nil
	}

	state := c.finish(taskID)
	if IsPermanent(err) {
		return result, state.LastError
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, ctxErr
	}

	exhausted := &RetryExhaustedError{
		TaskID:       taskID,
		AttemptCount: state.AttemptCount,
		LastError:    state.LastError,
	}
	c.escalate(ctx, exhausted)
	return result, exhausted
}

func (c *RetryController) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.attemptTimeout > 0 {
		return context.WithTimeout(ctx, c.attemptTimeout)
	}
	return context.WithCancel(ctx)
}

func (c *RetryController) begin(taskID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states[taskID] = &RetryState{TaskID: taskID}
}

func (c *RetryController) record(taskID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.states[taskID]
	if !ok {
		s = &RetryState{TaskID: taskID}
		c.states[taskID] = s
	}
	s.AttemptCount++
	if err != nil {
		s.LastError = err
	}
}

func (c *RetryController) reset(taskID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.states, taskID)
}

func (c *RetryController) finish(taskID string) RetryState {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.states[taskID]
	if !ok {
		return RetryState{TaskID: taskID}
	}
	delete(c.states, taskID)
	return *s
}

// State returns the bookkeeping of a task that is currently running.
func (c *RetryController) State(taskID string) (RetryState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.states[taskID]
	if !ok {
		return RetryState{}, false
	}
	return *s, true
}

func (c *RetryController) escalate(ctx context.Context, exhausted *RetryExhaustedError) {
	c.metrics.ObserveRetryExhausted()
	c.logger.WithFields(logging.Fields{
		"task_id":  exhausted.TaskID,
		"attempts": exhausted.AttemptCount,
	}).WithError(exhausted.LastError).Error("retries exhausted")

	if c.notifier == nil {
		return
	}
	msg := fmt.Sprintf("Task %s failed after %d attempt(s): %v", exhausted.TaskID, exhausted.AttemptCount, exhausted.LastError)
	if err := c.notifier.Notify(context.WithoutCancel(ctx), msg, secondary.SeverityCritical); err != nil {
		c.logger.WithError(err).WithField("task_id", exhausted.TaskID).Warn("failed to notify retry exhaustion")
	}
}
