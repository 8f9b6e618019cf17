package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/example/contentgate/internal/core/effects"
	"github.com/example/contentgate/internal/core/expiry"
	"github.com/example/contentgate/internal/logging"
	"github.com/example/contentgate/internal/ports/secondary"
)

// EffectExecutor interprets and executes effects.
// This is the "Imperative Shell" - the only place expiry I/O happens.
type EffectExecutor interface {
	Execute(ctx context.Context, effs []effects.Effect) error
}

// DefaultEffectExecutor applies all persistence effects of a batch in one
// transaction, then emits logs and notifications. Notifications are only sent
// once the batch has committed.
type DefaultEffectExecutor struct {
	passRepo secondary.ConditionalPassRepository
	notifier secondary.Notifier
	logger   logging.Logger
}

// NewEffectExecutor creates a new DefaultEffectExecutor. notifier may be nil.
func NewEffectExecutor(passRepo secondary.ConditionalPassRepository, notifier secondary.Notifier, logger logging.Logger) *DefaultEffectExecutor {
	return &DefaultEffectExecutor{
		passRepo: passRepo,
		notifier: notifier,
		logger:   logging.OrDiscard(logger),
	}
}

type effectBatch struct {
	mutations secondary.ExpiryMutations
	logs      []effects.LogEffect
	notices   []effects.NotifyEffect
}

// Execute processes a slice of effects.
func (e *DefaultEffectExecutor) Execute(ctx context.Context, effs []effects.Effect) error {
	var batch effectBatch
	if err := e.collect(&batch, effs); err != nil {
		return err
	}

	if !batch.mutations.Empty() {
		if err := e.passRepo.ApplyMutations(ctx, batch.mutations); err != nil {
			return fmt.Errorf("failed to apply expiry changes: %w", err)
		}
	}

	for _, l := range batch.logs {
		e.executeLog(l)
	}
	for _, n := range batch.notices {
		e.executeNotify(ctx, n)
	}
	return nil
}

func (e *DefaultEffectExecutor) collect(batch *effectBatch, effs []effects.Effect) error {
	for _, eff := range effs {
		if err := e.collectOne(batch, eff); err != nil {
			return fmt.Errorf("failed to execute %s effect: %w", eff.EffectType(), err)
		}
	}
	return nil
}

func (e *DefaultEffectExecutor) collectOne(batch *effectBatch, eff effects.Effect) error {
	m := &batch.mutations
	switch typed := eff.(type) {
	case effects.MarkWarnedEffect:
		m.MarkWarned = append(m.MarkWarned, secondary.WarnMark{PassID: typed.RecordID, Day: typed.Day})
	case effects.ExpirePassEffect:
		m.Expire = append(m.Expire, typed.RecordID)
	case effects.ResolvePassEffect:
		m.Resolve = append(m.Resolve, secondary.PassResolution{
			PassID:     typed.RecordID,
			Status:     typed.Status,
			ResolvedAt: formatTimestamp(typed.ResolvedAt),
		})
	case effects.CreateBlockEffect:
		m.CreateBlocks = append(m.CreateBlocks, &secondary.CategoryBlockRecord{
			Category:  typed.Category,
			Reason:    typed.Reason,
			BlockedAt: formatTimestamp(typed.BlockedAt),
			Scope:     expiry.ScopeNewAdmissionsOnly,
		})
	case effects.RemoveBlockEffect:
		m.RemoveBlocks = append(m.RemoveBlocks, typed.Category)
	case effects.NotifyEffect:
		batch.notices = append(batch.notices, typed)
	case effects.LogEffect:
		batch.logs = append(batch.logs, typed)
	case effects.CompositeEffect:
		return e.collect(batch, typed.Effects)
	case effects.NoEffect:
		return nil
	default:
		return fmt.Errorf("unknown effect type: %T", eff)
	}
	return nil
}

func (e *DefaultEffectExecutor) executeLog(eff effects.LogEffect) {
	level, err := logrus.ParseLevel(eff.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	e.logger.WithFields(logging.Fields(eff.Fields)).Log(level, eff.Message)
}

// executeNotify delivers a notification. Delivery failures are logged and
// never undo the committed batch.
func (e *DefaultEffectExecutor) executeNotify(ctx context.Context, eff effects.NotifyEffect) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, eff.Message, eff.Severity); err != nil {
		e.logger.WithError(err).WithField("severity", eff.Severity).Warn("notification failed")
	}
}
