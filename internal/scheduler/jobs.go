package scheduler

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/turnos/internal/apperrors"
	declarationdomain "github.com/smallbiznis/turnos/internal/declaration/domain"
	notificationdomain "github.com/smallbiznis/turnos/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/turnos/internal/observability/metrics"
	reconciliationdomain "github.com/smallbiznis/turnos/internal/reconciliation/domain"
	"go.uber.org/zap"
)

// ReconcilePendingJob checks reviewed declarations that were never
// reconciled, or are still PENDING, against the external schedule. A
// DISCREPANCY is left for manual follow-up. At most BatchSize per run.
func (s *Scheduler) ReconcilePendingJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	pending, err := s.reconciliationSvc.ListAwaitingSource(ctx, s.cfg.BatchSize+1)
	if err != nil {
		return err
	}
	if len(pending) > s.cfg.BatchSize {
		s.metrics.IncBatchDeferred(JobReconcilePending, obsmetrics.SchedulerBatchDeferredReasonBatchLimit)
		s.logger(ctx).Info("scheduler.batch.deferred",
			zap.String("job", JobReconcilePending),
			zap.Int("batch_size", s.cfg.BatchSize),
		)
		pending = pending[:s.cfg.BatchSize]
	}

	var jobErr error
	for _, decl := range pending {
		if err := ctx.Err(); err != nil {
			return errors.Join(jobErr, err)
		}

		record, err := s.reconciliationSvc.ReconcileFromSource(ctx, decl.ID, systemActor)
		if err != nil {
			s.logSchedulerError(ctx, "scheduler.reconcile.failed", JobReconcilePending, decl.ID, err)
			// moved by a concurrent request; the next run sees the new state
			if errors.Is(err, apperrors.ErrConcurrencyConflict) || errors.Is(err, apperrors.ErrIllegalStateTransition) {
				continue
			}
			jobErr = errors.Join(jobErr, err)
			continue
		}

		run.AddProcessed(1)
		s.metrics.AddBatchProcessed(JobReconcilePending, "declaration", 1)
		s.metrics.IncSweepOutcome(string(record.Status))
		s.logger(ctx).Debug("scheduler.reconcile.done",
			zap.String("declaration_id", decl.ID.String()),
			zap.String("status", string(record.Status)),
		)

		if record.Status == reconciliationdomain.StatusOK {
			s.dispatch(ctx, declarationEvent(notificationdomain.EventDeclarationSynchronized, decl, record))
		}
	}
	return jobErr
}

// DiscrepancySweepJob reports declarations whose latest reconciliation
// differs by more than the configured threshold. Each discrepancy record is
// notified once.
func (s *Scheduler) DiscrepancySweepJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	items, err := s.reconciliationSvc.ListDiscrepancies(ctx, s.cfg.DiscrepancyThreshold)
	if err != nil {
		return err
	}
	s.metrics.SetOpenDiscrepancies(len(items))

	open := make(map[snowflake.ID]struct{}, len(items))
	for _, item := range items {
		open[item.RecordID] = struct{}{}
		s.logger(ctx).Warn("scheduler.discrepancy.open",
			zap.String("declaration_id", item.DeclarationID.String()),
			zap.String("professional_id", item.ProfessionalID),
			zap.String("area_id", item.AreaID),
			zap.String("period_code", item.PeriodCode),
			zap.String("declared_hours", item.DeclaredHours.String()),
			zap.String("loaded_hours", item.LoadedHours.String()),
			zap.String("delta", item.Delta.String()),
		)
		run.AddProcessed(1)
		if _, seen := s.notified[item.RecordID]; seen {
			continue
		}
		s.dispatch(ctx, notificationdomain.Event{
			Type:           notificationdomain.EventReconciliationDiscrepancy,
			DeclarationID:  item.DeclarationID.String(),
			ProfessionalID: item.ProfessionalID,
			AreaID:         item.AreaID,
			PeriodCode:     item.PeriodCode,
			Message:        "declared hours differ from the loaded schedule",
			Attributes: map[string]string{
				"declared_hours": item.DeclaredHours.String(),
				"loaded_hours":   item.LoadedHours.String(),
				"delta":          item.Delta.String(),
			},
			OccurredAt: item.CheckedAt,
		})
	}
	s.metrics.AddBatchProcessed(JobDiscrepancySweep, "discrepancy", len(items))
	s.notified = open
	return nil
}

func (s *Scheduler) dispatch(ctx context.Context, event notificationdomain.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.clock.Now()
	}
	if err := s.dispatcher.Dispatch(ctx, event); err != nil {
		s.logger(ctx).Warn("scheduler.notification.failed",
			zap.String("event_type", string(event.Type)),
			zap.String("declaration_id", event.DeclarationID),
			zap.Error(err),
		)
	}
}

func declarationEvent(eventType notificationdomain.EventType, decl declarationdomain.Declaration, record *reconciliationdomain.Record) notificationdomain.Event {
	event := notificationdomain.Event{
		Type:           eventType,
		DeclarationID:  decl.ID.String(),
		ProfessionalID: decl.ProfessionalID,
		AreaID:         decl.AreaID,
		PeriodCode:     decl.PeriodCode,
		OccurredAt:     record.CheckedAt,
	}
	if record.ScheduleRef != nil {
		event.Attributes = map[string]string{"schedule_ref": *record.ScheduleRef}
	}
	return event
}
