package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/turnos/internal/audit/domain"
	"github.com/smallbiznis/turnos/internal/clock"
	"github.com/smallbiznis/turnos/internal/config"
	declarationdomain "github.com/smallbiznis/turnos/internal/declaration/domain"
	"github.com/smallbiznis/turnos/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/turnos/internal/observability/metrics"
	"github.com/smallbiznis/turnos/internal/reconciliation/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const scheduleRefPrefix = "SCH-"

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Rules    config.RulesProvider
	Repo     domain.Repository
	DeclRepo declarationdomain.Repository
	Accessor declarationdomain.Accessor
	Schedule domain.ExternalSchedule
	AuditSvc auditdomain.Service `optional:"true"`
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	rules    config.RulesProvider
	repo     domain.Repository
	declRepo declarationdomain.Repository
	accessor declarationdomain.Accessor
	schedule domain.ExternalSchedule
	auditSvc auditdomain.Service
	metrics  *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("reconciliation.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		rules:    p.Rules,
		repo:     p.Repo,
		declRepo: p.DeclRepo,
		accessor: p.Accessor,
		schedule: p.Schedule,
		auditSvc: p.AuditSvc,
		metrics:  p.Metrics,
	}
}

// Reconcile compares the declared total of a REVIEWED declaration with the
// hours loaded externally. Within tolerance the declaration becomes
// SYNCHRONIZED; otherwise only a DISCREPANCY record is appended.
func (s *Service) Reconcile(ctx context.Context, req domain.ReconcileRequest) (*domain.Record, error) {
	if req.DeclarationID == 0 {
		return nil, declarationdomain.ErrInvalidID
	}
	actor := strings.TrimSpace(req.Actor)
	if req.LoadedHours == nil {
		return s.recordPending(ctx, req.DeclarationID, actor)
	}
	if req.LoadedHours.IsNegative() {
		return nil, domain.ErrInvalidLoadedHours
	}

	loaded := *req.LoadedHours
	tolerance := s.rules.Get().Tolerance()
	var record *domain.Record
	decl, err := s.accessor.Mutate(ctx, req.DeclarationID, req.ExpectedVersion, func(ctx context.Context, agg *declarationdomain.Aggregate) error {
		d := agg.Declaration
		if d.State != declarationdomain.StateReviewed {
			return domain.ErrNotReviewed
		}

		delta := d.TotalHours.Sub(loaded).Abs()
		record = &domain.Record{
			ID:            s.genID.Generate(),
			DeclarationID: d.ID,
			DeclaredHours: d.TotalHours,
			LoadedHours:   decimal.NewNullDecimal(loaded),
			Delta:         decimal.NewNullDecimal(delta),
			Status:        domain.StatusDiscrepancy,
			ScheduleRef:   optionalString(req.ScheduleRef),
			CheckedBy:     actor,
			CheckedAt:     agg.Now,
		}

		if delta.LessThanOrEqual(tolerance) {
			if err := agg.TransitionTo(declarationdomain.StateSynchronized); err != nil {
				return err
			}
			ref := strings.TrimSpace(req.ScheduleRef)
			if ref == "" {
				ref = scheduleRefPrefix + s.genID.Generate().String()
			}
			syncedAt := agg.Now
			d.ScheduleRef = &ref
			d.SynchronizedAt = &syncedAt
			d.LastActor = actor

			record.Status = domain.StatusOK
			record.ScheduleRef = &ref
		}

		return s.repo.Insert(ctx, agg.Tx, record)
	})
	if err != nil {
		return nil, err
	}

	log := logger.WithDeclaration(s.log, decl.ID.String())
	log.Info("declaration reconciled",
		zap.String("status", string(record.Status)),
		zap.String("declared_hours", record.DeclaredHours.String()),
		zap.String("loaded_hours", loaded.String()),
		zap.String("delta", record.Delta.Decimal.String()),
	)
	s.metrics.RecordReconciliation(ctx, string(record.Status))

	metadata := map[string]any{
		"record_id":      record.ID.String(),
		"status":         string(record.Status),
		"declared_hours": record.DeclaredHours.String(),
		"loaded_hours":   loaded.String(),
		"delta":          record.Delta.Decimal.String(),
	}
	s.audit(ctx, actor, auditdomain.ActionDeclarationReconcile, decl.ID, metadata)
	if record.Status == domain.StatusOK {
		s.metrics.RecordDeclarationTransition(ctx, string(declarationdomain.StateReviewed), string(declarationdomain.StateSynchronized))
		s.audit(ctx, actor, auditdomain.ActionDeclarationSynchronize, decl.ID, map[string]any{
			"schedule_ref": *decl.ScheduleRef,
		})
	}
	return record, nil
}

// ReconcileFromSource asks the external schedule for loaded hours. Missing or
// unreadable external data is recorded as PENDING.
func (s *Service) ReconcileFromSource(ctx context.Context, declarationID snowflake.ID, actor string) (*domain.Record, error) {
	if declarationID == 0 {
		return nil, declarationdomain.ErrInvalidID
	}
	decl, err := s.declRepo.FindByID(ctx, s.db, declarationID)
	if err != nil {
		return nil, err
	}
	if decl == nil {
		return nil, declarationdomain.ErrNotFound
	}

	req := domain.ReconcileRequest{
		DeclarationID:   decl.ID,
		ExpectedVersion: decl.Version,
		Actor:           actor,
	}

	report, err := s.schedule.LoadedHours(ctx, domain.ScheduleQuery{
		ProfessionalID: decl.ProfessionalID,
		PeriodCode:     decl.PeriodCode,
		AreaID:         decl.AreaID,
		ServiceID:      decl.ServiceID,
	})
	if err != nil {
		logger.WithDeclaration(s.log, decl.ID.String()).Warn("external schedule unavailable", zap.Error(err))
		report = nil
	}
	if report != nil {
		hours := report.LoadedHours
		req.LoadedHours = &hours
		req.ScheduleRef = report.ScheduleRef
	}
	return s.Reconcile(ctx, req)
}

func (s *Service) ListPendingSync(ctx context.Context) ([]declarationdomain.Declaration, error) {
	return s.repo.ListPendingSync(ctx, s.db, 0)
}

// ListAwaitingSource lists what an automatic sweep may still reconcile.
func (s *Service) ListAwaitingSource(ctx context.Context, limit int) ([]declarationdomain.Declaration, error) {
	return s.repo.ListAwaitingSource(ctx, s.db, limit)
}

func (s *Service) ListDiscrepancies(ctx context.Context, threshold decimal.Decimal) ([]domain.Discrepancy, error) {
	if threshold.IsNegative() {
		return nil, domain.ErrInvalidThreshold
	}
	return s.repo.ListDiscrepancies(ctx, s.db, threshold)
}

func (s *Service) ListRecords(ctx context.Context, declarationID snowflake.ID) ([]domain.Record, error) {
	if declarationID == 0 {
		return nil, declarationdomain.ErrInvalidID
	}
	return s.repo.ListByDeclaration(ctx, s.db, declarationID)
}

// recordPending appends a PENDING record and leaves the declaration untouched.
func (s *Service) recordPending(ctx context.Context, declarationID snowflake.ID, actor string) (*domain.Record, error) {
	decl, err := s.declRepo.FindByID(ctx, s.db, declarationID)
	if err != nil {
		return nil, err
	}
	if decl == nil {
		return nil, declarationdomain.ErrNotFound
	}
	if decl.State != declarationdomain.StateReviewed {
		if decl.State.Terminal() {
			return nil, declarationdomain.ErrSynchronized
		}
		return nil, domain.ErrNotReviewed
	}

	record := &domain.Record{
		ID:            s.genID.Generate(),
		DeclarationID: decl.ID,
		DeclaredHours: decl.TotalHours,
		Status:        domain.StatusPending,
		CheckedBy:     actor,
		CheckedAt:     s.clock.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, s.db, record); err != nil {
		return nil, err
	}

	logger.WithDeclaration(s.log, decl.ID.String()).Info("external schedule data pending")
	s.metrics.RecordReconciliation(ctx, string(record.Status))
	s.audit(ctx, actor, auditdomain.ActionDeclarationReconcile, decl.ID, map[string]any{
		"record_id": record.ID.String(),
		"status":    string(record.Status),
	})
	return record, nil
}

func (s *Service) audit(ctx context.Context, actor, action string, declarationID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.AuditLog(ctx, actor, action, auditdomain.TargetDeclaration, declarationID.String(), metadata); err != nil {
		s.log.Warn("reconciliation audit failed", zap.String("action", action), zap.Error(err))
	}
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
