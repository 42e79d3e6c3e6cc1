package service

import (
	"context"
	"strings"
	"time"

	auditdomain "github.com/smallbiznis/turnos/internal/audit/domain"
	"github.com/smallbiznis/turnos/internal/clock"
	obsmetrics "github.com/smallbiznis/turnos/internal/observability/metrics"
	perioddomain "github.com/smallbiznis/turnos/internal/period/domain"
	"github.com/smallbiznis/turnos/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Repo     perioddomain.Repository
	Counter  perioddomain.DeclarationCounter
	AuditSvc auditdomain.Service `optional:"true"`
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	repo     perioddomain.Repository
	counter  perioddomain.DeclarationCounter
	auditSvc auditdomain.Service
	metrics  *obsmetrics.Metrics
}

func NewService(p Params) perioddomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("period.service"),
		clock:    p.Clock,
		repo:     p.Repo,
		counter:  p.Counter,
		auditSvc: p.AuditSvc,
		metrics:  p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req perioddomain.CreatePeriodRequest) (*perioddomain.ControlPeriod, error) {
	key := perioddomain.Key{AreaID: req.AreaID, Code: req.Code}.Normalize()
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return nil, perioddomain.ErrInvalidDateRange
	}

	start := perioddomain.DateOf(req.StartDate)
	end := perioddomain.DateOf(req.EndDate)
	if start.After(end) {
		return nil, perioddomain.ErrInvalidDateRange
	}

	now := s.clock.Now().UTC()
	period := &perioddomain.ControlPeriod{
		PeriodCode: key.Code,
		AreaID:     key.AreaID,
		State:      perioddomain.PeriodStateOpen,
		StartDate:  start,
		EndDate:    end,
		OpenedAt:   &now,
		LastActor:  strings.TrimSpace(req.Actor),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.Insert(ctx, s.db, period); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, perioddomain.ErrPeriodExists
		}
		return nil, err
	}

	s.log.Info("control period created",
		zap.String("area_id", key.AreaID),
		zap.String("period_code", key.Code),
	)
	s.audit(ctx, period.LastActor, auditdomain.ActionPeriodCreate, key, map[string]any{
		"state":      string(period.State),
		"start_date": start.Format(time.DateOnly),
		"end_date":   end.Format(time.DateOnly),
	})
	return period, nil
}

func (s *Service) Transition(ctx context.Context, req perioddomain.TransitionRequest) (*perioddomain.ControlPeriod, error) {
	key := req.Key.Normalize()
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if !req.Target.Valid() {
		return nil, perioddomain.ErrInvalidState
	}

	period, err := s.repo.FindByKey(ctx, s.db, key)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, perioddomain.ErrNotFound
	}

	from := period.State
	if !perioddomain.IsTransitionAllowed(from, req.Target) {
		return nil, perioddomain.ErrInvalidTransition
	}

	now := s.clock.Now().UTC()
	period.State = req.Target
	period.LastActor = strings.TrimSpace(req.Actor)
	period.UpdatedAt = now
	switch req.Target {
	case perioddomain.PeriodStateClosed:
		period.ClosedAt = &now
	case perioddomain.PeriodStateOpen, perioddomain.PeriodStateReopened:
		if period.OpenedAt == nil {
			period.OpenedAt = &now
		}
	}

	affected, err := s.repo.UpdateState(ctx, s.db, period, from)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, perioddomain.ErrPeriodStateChanged
	}

	s.log.Info("control period transitioned",
		zap.String("area_id", key.AreaID),
		zap.String("period_code", key.Code),
		zap.String("from_state", string(from)),
		zap.String("to_state", string(req.Target)),
	)
	s.metrics.RecordPeriodTransition(ctx, string(from), string(req.Target))
	s.audit(ctx, period.LastActor, auditdomain.ActionPeriodTransition, key, map[string]any{
		"from_state": string(from),
		"to_state":   string(req.Target),
	})
	return period, nil
}

func (s *Service) Get(ctx context.Context, key perioddomain.Key) (*perioddomain.ControlPeriod, error) {
	key = key.Normalize()
	if err := key.Validate(); err != nil {
		return nil, err
	}
	period, err := s.repo.FindByKey(ctx, s.db, key)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, perioddomain.ErrNotFound
	}
	return period, nil
}

func (s *Service) List(ctx context.Context, req perioddomain.ListPeriodRequest) ([]perioddomain.ControlPeriod, error) {
	filter := perioddomain.ListFilter{AreaID: req.AreaID}
	if strings.TrimSpace(req.State) != "" {
		state, err := perioddomain.ParseState(req.State)
		if err != nil {
			return nil, err
		}
		filter.State = state
	}
	return s.repo.List(ctx, s.db, filter)
}

func (s *Service) ListOpen(ctx context.Context) ([]perioddomain.ControlPeriod, error) {
	return s.repo.ListByStates(ctx, s.db, perioddomain.OpenFamily())
}

// ListVigentes returns open-family periods whose range includes the day of now.
func (s *Service) ListVigentes(ctx context.Context, now time.Time) ([]perioddomain.ControlPeriod, error) {
	if now.IsZero() {
		now = s.clock.Now()
	}
	return s.repo.ListCovering(ctx, s.db, perioddomain.OpenFamily(), perioddomain.DateOf(now))
}

// Delete soft-deletes a period that no declaration references yet.
func (s *Service) Delete(ctx context.Context, key perioddomain.Key, actor string) error {
	key = key.Normalize()
	if err := key.Validate(); err != nil {
		return err
	}
	actor = strings.TrimSpace(actor)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		period, err := s.repo.FindByKey(ctx, tx, key)
		if err != nil {
			return err
		}
		if period == nil {
			return perioddomain.ErrNotFound
		}

		// Soft-delete first so the row lock is held before counting. A
		// declaration write racing with this either commits before the count
		// sees it or fails on the deleted row.
		affected, err := s.repo.SoftDelete(ctx, tx, key, actor, s.clock.Now().UTC())
		if err != nil {
			return err
		}
		if affected == 0 {
			return perioddomain.ErrPeriodStateChanged
		}

		count, err := s.counter.CountByPeriod(ctx, tx, key)
		if err != nil {
			return err
		}
		if count > 0 {
			return perioddomain.ErrPeriodInUse
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.audit(ctx, actor, auditdomain.ActionPeriodDelete, key, nil)
	return nil
}

func (s *Service) audit(ctx context.Context, actor, action string, key perioddomain.Key, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.AuditLog(ctx, actor, action, auditdomain.TargetPeriod, key.String(), metadata); err != nil {
		s.log.Warn("period audit failed", zap.String("action", action), zap.Error(err))
	}
}
