package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/turnos/internal/apperrors"
	auditdomain "github.com/smallbiznis/turnos/internal/audit/domain"
	"github.com/smallbiznis/turnos/internal/clock"
	"github.com/smallbiznis/turnos/internal/config"
	"github.com/smallbiznis/turnos/internal/declaration/domain"
	regimedomain "github.com/smallbiznis/turnos/internal/laborregime/domain"
	"github.com/smallbiznis/turnos/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/turnos/internal/observability/metrics"
	perioddomain "github.com/smallbiznis/turnos/internal/period/domain"
	"github.com/smallbiznis/turnos/internal/shifthours"
	"github.com/smallbiznis/turnos/pkg/db"
	"github.com/smallbiznis/turnos/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Rules      config.RulesProvider
	Registry   regimedomain.Registry
	Calculator *shifthours.Calculator
	Repo       domain.Repository
	PeriodRepo perioddomain.Repository
	Accessor   domain.Accessor
	AuditSvc   auditdomain.Service `optional:"true"`
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	rules      config.RulesProvider
	registry   regimedomain.Registry
	calculator *shifthours.Calculator
	repo       domain.Repository
	periodRepo perioddomain.Repository
	accessor   domain.Accessor
	auditSvc   auditdomain.Service
	metrics    *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("declaration.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		rules:      p.Rules,
		registry:   p.Registry,
		calculator: p.Calculator,
		repo:       p.Repo,
		periodRepo: p.PeriodRepo,
		accessor:   p.Accessor,
		auditSvc:   p.AuditSvc,
		metrics:    p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateDeclarationRequest) (*domain.Declaration, error) {
	professionalID := strings.TrimSpace(req.ProfessionalID)
	if professionalID == "" {
		return nil, domain.ErrInvalidProfessional
	}
	serviceID := strings.TrimSpace(req.ServiceID)
	if serviceID == "" {
		return nil, domain.ErrInvalidService
	}
	key := req.Period.Normalize()
	if err := key.Validate(); err != nil {
		return nil, err
	}

	// Resolved before the transaction: the registry reads through its own handle.
	regimeID, err := s.registry.RegimeFor(ctx, professionalID)
	if err != nil {
		return nil, err
	}
	if _, err := s.calculator.Table(regimeID); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	actor := strings.TrimSpace(req.Actor)
	decl := &domain.Declaration{
		ID:             s.genID.Generate(),
		ProfessionalID: professionalID,
		PeriodCode:     key.Code,
		AreaID:         key.AreaID,
		ServiceID:      serviceID,
		RegimeID:       regimeID,
		State:          domain.StateDraft,
		Version:        1,
		LastActor:      actor,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		period, err := s.openPeriod(ctx, tx, key)
		if err != nil {
			return err
		}

		lines, err := s.buildLines(decl, period, req.Lines, actor, now)
		if err != nil {
			return err
		}
		decl.TotalHours = domain.SumHours(lines)

		if err := s.repo.Insert(ctx, tx, decl); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrDuplicateDeclaration
			}
			return err
		}
		if err := s.repo.InsertLines(ctx, tx, lines); err != nil {
			return err
		}

		stored, err := s.repo.SumLineHours(ctx, tx, decl.ID)
		if err != nil {
			return err
		}
		if !stored.Round(2).Equal(decl.TotalHours.Round(2)) {
			return domain.ErrTotalMismatch
		}
		decl.Lines = lines
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.WithDeclaration(s.log, decl.ID.String()).Info("declaration created",
		zap.String("professional_id", professionalID),
		zap.String("period", key.String()),
		zap.String("regime_id", regimeID),
		zap.String("total_hours", decl.TotalHours.String()),
	)
	s.audit(ctx, actor, auditdomain.ActionDeclarationCreate, decl, map[string]any{
		"period":      key.String(),
		"service_id":  serviceID,
		"total_hours": decl.TotalHours.String(),
		"lines":       len(decl.Lines),
	})
	return decl, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateDeclarationRequest) (*domain.Declaration, error) {
	actor := strings.TrimSpace(req.Actor)
	decl, err := s.accessor.Mutate(ctx, req.ID, req.ExpectedVersion, func(ctx context.Context, agg *domain.Aggregate) error {
		d := agg.Declaration
		if d.State != domain.StateDraft {
			return domain.ErrNotEditable
		}

		period, err := s.openPeriod(ctx, agg.Tx, d.PeriodKey())
		if err != nil {
			return err
		}
		lines, err := s.buildLines(d, period, req.Lines, actor, agg.Now)
		if err != nil {
			return err
		}
		agg.ReplaceLines(lines)
		d.LastActor = actor
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, actor, auditdomain.ActionDeclarationUpdate, decl, map[string]any{
		"total_hours": decl.TotalHours.String(),
		"lines":       len(decl.Lines),
		"version":     decl.Version,
	})
	return decl, nil
}

func (s *Service) Submit(ctx context.Context, req domain.SubmitRequest) (*domain.Declaration, error) {
	actor := strings.TrimSpace(req.Actor)
	var regimeID string
	decl, err := s.accessor.Mutate(ctx, req.ID, req.ExpectedVersion, func(ctx context.Context, agg *domain.Aggregate) error {
		d := agg.Declaration
		regimeID = d.RegimeID
		if err := agg.TransitionTo(domain.StateSubmitted); err != nil {
			return err
		}

		required := s.rules.Get().MinimumHours(d.RegimeID)
		total := domain.SumHours(agg.Lines)
		if total.LessThan(required) {
			return apperrors.NewMinimumHoursNotMet(required, total)
		}

		submittedAt := agg.Now
		d.SubmittedAt = &submittedAt
		d.LastActor = actor
		return nil
	})
	if err != nil {
		var minErr *apperrors.MinimumHoursNotMetError
		if errors.As(err, &minErr) {
			s.metrics.RecordMinimumHoursRejected(ctx, regimeID)
			logger.WithDeclaration(s.log, req.ID.String()).Info("declaration below minimum hours",
				zap.String("required_hours", minErr.Required.String()),
				zap.String("total_hours", minErr.Total.String()),
			)
		}
		return nil, err
	}

	s.recordTransition(ctx, decl, domain.StateDraft, actor, auditdomain.ActionDeclarationSubmit, map[string]any{
		"total_hours": decl.TotalHours.String(),
	})
	return decl, nil
}

func (s *Service) MarkReviewed(ctx context.Context, req domain.ReviewRequest) (*domain.Declaration, error) {
	actor := strings.TrimSpace(req.Actor)
	decl, err := s.accessor.Mutate(ctx, req.ID, req.ExpectedVersion, func(ctx context.Context, agg *domain.Aggregate) error {
		d := agg.Declaration
		if d.State != domain.StateSubmitted {
			return domain.ErrInvalidTransition
		}
		if err := agg.TransitionTo(domain.StateReviewed); err != nil {
			return err
		}

		reviewedAt := agg.Now
		d.ReviewedAt = &reviewedAt
		d.ReviewObservations = optionalString(req.Observations)
		d.LastActor = actor
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ctx, decl, domain.StateSubmitted, actor, auditdomain.ActionDeclarationReview, map[string]any{
		"has_observations": decl.ReviewObservations != nil,
	})
	return decl, nil
}

func (s *Service) Reject(ctx context.Context, req domain.RejectRequest) (*domain.Declaration, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, domain.ErrRejectionReason
	}

	actor := strings.TrimSpace(req.Actor)
	var from domain.State
	decl, err := s.accessor.Mutate(ctx, req.ID, req.ExpectedVersion, func(ctx context.Context, agg *domain.Aggregate) error {
		d := agg.Declaration
		from = d.State
		if err := agg.TransitionTo(domain.StateDraft); err != nil {
			return err
		}

		d.SubmittedAt = nil
		d.ReviewedAt = nil
		d.RejectionReason = &reason
		d.LastActor = actor
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ctx, decl, from, actor, auditdomain.ActionDeclarationReject, map[string]any{
		"from_state": string(from),
	})
	return decl, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Declaration, error) {
	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	decl, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if decl == nil {
		return nil, domain.ErrNotFound
	}
	lines, err := s.repo.ListLines(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	decl.Lines = lines
	return decl, nil
}

func (s *Service) List(ctx context.Context, req domain.ListDeclarationRequest) (domain.ListDeclarationResponse, error) {
	filter := domain.ListFilter{
		AreaID:         req.AreaID,
		PeriodCode:     req.PeriodCode,
		ProfessionalID: req.ProfessionalID,
		ServiceID:      req.ServiceID,
		Limit:          req.Limit(),
	}
	if strings.TrimSpace(req.State) != "" {
		state, err := domain.ParseState(req.State)
		if err != nil {
			return domain.ListDeclarationResponse{}, err
		}
		filter.State = state
	}

	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return domain.ListDeclarationResponse{}, domain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return domain.ListDeclarationResponse{}, domain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return domain.ListDeclarationResponse{}, domain.ErrInvalidPageToken
		}
		filter.Cursor = &domain.DeclarationCursor{ID: id, CreatedAt: createdAt}
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListDeclarationResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, filter.Limit, func(item *domain.Declaration) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > filter.Limit {
		items = items[:filter.Limit]
	}

	declarations := make([]domain.Declaration, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		declarations = append(declarations, *item)
	}

	resp := domain.ListDeclarationResponse{Declarations: declarations}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

// openPeriod locks the period row for the rest of tx so a concurrent close or
// delete either waits for this write or makes it fail.
func (s *Service) openPeriod(ctx context.Context, tx *gorm.DB, key perioddomain.Key) (*perioddomain.ControlPeriod, error) {
	locked, err := s.periodRepo.LockOpen(ctx, tx, key, perioddomain.OpenFamily())
	if err != nil {
		return nil, err
	}
	period, err := s.periodRepo.FindByKey(ctx, tx, key)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, perioddomain.ErrNotFound
	}
	if locked == 0 || !period.State.IsOpen() {
		return nil, perioddomain.ErrPeriodNotOpen
	}
	return period, nil
}

// buildLines validates the requested dates against the period and prices
// each shift with the regime table of decl.
func (s *Service) buildLines(decl *domain.Declaration, period *perioddomain.ControlPeriod, inputs []domain.LineInput, actor string, now time.Time) ([]domain.DetailLine, error) {
	seen := make(map[time.Time]struct{}, len(inputs))
	lines := make([]domain.DetailLine, 0, len(inputs))
	for _, input := range inputs {
		if input.WorkDate.IsZero() {
			return nil, domain.ErrInvalidWorkDate
		}
		day := perioddomain.DateOf(input.WorkDate)
		if !period.Covers(day) {
			return nil, domain.ErrWorkDateOutsidePeriod
		}
		if _, ok := seen[day]; ok {
			return nil, domain.ErrDuplicateWorkDate
		}
		seen[day] = struct{}{}

		shift, err := shifthours.ParseShiftType(input.ShiftType)
		if err != nil {
			return nil, err
		}
		hours, err := s.calculator.Hours(decl.RegimeID, shift)
		if err != nil {
			return nil, err
		}

		lines = append(lines, domain.DetailLine{
			ID:            s.genID.Generate(),
			DeclarationID: decl.ID,
			WorkDate:      day,
			ShiftType:     shift,
			ComputedHours: hours,
			UpdatedBy:     actor,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	return lines, nil
}

func (s *Service) recordTransition(ctx context.Context, decl *domain.Declaration, from domain.State, actor, action string, metadata map[string]any) {
	logger.WithDeclaration(s.log, decl.ID.String()).Info("declaration transitioned",
		zap.String("from_state", string(from)),
		zap.String("to_state", string(decl.State)),
		zap.Int64("version", decl.Version),
	)
	s.metrics.RecordDeclarationTransition(ctx, string(from), string(decl.State))

	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["to_state"] = string(decl.State)
	s.audit(ctx, actor, action, decl, metadata)
}

func (s *Service) audit(ctx context.Context, actor, action string, decl *domain.Declaration, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.AuditLog(ctx, actor, action, auditdomain.TargetDeclaration, decl.ID.String(), metadata); err != nil {
		s.log.Warn("declaration audit failed", zap.String("action", action), zap.Error(err))
	}
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
