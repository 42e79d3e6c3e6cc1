package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/turnos/internal/adjustment/domain"
	auditdomain "github.com/smallbiznis/turnos/internal/audit/domain"
	declarationdomain "github.com/smallbiznis/turnos/internal/declaration/domain"
	"github.com/smallbiznis/turnos/internal/observability/logger"
	"github.com/smallbiznis/turnos/internal/shifthours"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log        *zap.Logger
	Calculator *shifthours.Calculator
	Accessor   declarationdomain.Accessor
	AuditSvc   auditdomain.Service `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	calculator *shifthours.Calculator
	accessor   declarationdomain.Accessor
	auditSvc   auditdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		log:        p.Log.Named("adjustment.service"),
		calculator: p.Calculator,
		accessor:   p.Accessor,
		auditSvc:   p.AuditSvc,
	}
}

// AdjustLine reprices one line with the declaration's regime table and keeps
// the coordinator observation on it.
func (s *Service) AdjustLine(ctx context.Context, req domain.AdjustLineRequest) (*declarationdomain.Declaration, error) {
	if req.LineID == 0 {
		return nil, domain.ErrInvalidLineID
	}
	shift, err := shifthours.ParseShiftType(req.ShiftType)
	if err != nil {
		return nil, err
	}

	actor := strings.TrimSpace(req.Actor)
	var previous declarationdomain.DetailLine
	decl, err := s.accessor.Mutate(ctx, req.DeclarationID, req.ExpectedVersion, func(ctx context.Context, agg *declarationdomain.Aggregate) error {
		d := agg.Declaration
		if !declarationdomain.IsAdjustable(d.State) {
			return domain.ErrNotAdjustable
		}

		line, ok := agg.Line(req.LineID)
		if !ok {
			return declarationdomain.ErrLineNotFound
		}
		previous = line

		hours, err := s.calculator.Hours(d.RegimeID, shift)
		if err != nil {
			return err
		}

		line.ShiftType = shift
		line.ComputedHours = hours
		if observation := strings.TrimSpace(req.Observation); observation != "" {
			line.CoordinatorObservation = &observation
		}
		line.UpdatedBy = actor
		line.UpdatedAt = agg.Now

		d.LastActor = actor
		return agg.UpdateLine(line)
	})
	if err != nil {
		return nil, err
	}

	logger.WithDeclaration(s.log, decl.ID.String()).Info("detail line adjusted",
		zap.String("line_id", req.LineID.String()),
		zap.String("from_shift", string(previous.ShiftType)),
		zap.String("to_shift", string(shift)),
		zap.String("total_hours", decl.TotalHours.String()),
	)
	if s.auditSvc != nil {
		err := s.auditSvc.AuditLog(ctx, actor, auditdomain.ActionDeclarationAdjustLine, auditdomain.TargetDeclaration, decl.ID.String(), map[string]any{
			"line_id":     req.LineID.String(),
			"from_shift":  string(previous.ShiftType),
			"to_shift":    string(shift),
			"from_hours":  previous.ComputedHours.String(),
			"total_hours": decl.TotalHours.String(),
		})
		if err != nil {
			s.log.Warn("adjustment audit failed", zap.Error(err))
		}
	}
	return decl, nil
}
