package domain

import (
	"context"
	"time"

	"github.com/smallbiznis/turnos/internal/apperrors"
)

type Service interface {
	Create(ctx context.Context, req CreatePeriodRequest) (*ControlPeriod, error)
	Transition(ctx context.Context, req TransitionRequest) (*ControlPeriod, error)
	Get(ctx context.Context, key Key) (*ControlPeriod, error)
	List(ctx context.Context, req ListPeriodRequest) ([]ControlPeriod, error)
	ListOpen(ctx context.Context) ([]ControlPeriod, error)
	ListVigentes(ctx context.Context, now time.Time) ([]ControlPeriod, error)
	Delete(ctx context.Context, key Key, actor string) error
}

type CreatePeriodRequest struct {
	AreaID    string    `json:"area_id" validate:"required"`
	Code      string    `json:"period_code" validate:"required"`
	StartDate time.Time `json:"start_date" validate:"required"`
	EndDate   time.Time `json:"end_date" validate:"required"`
	Actor     string    `json:"-"`
}

type TransitionRequest struct {
	Key    Key         `json:"-"`
	Target PeriodState `json:"target_state" validate:"required"`
	Actor  string      `json:"-"`
}

type ListPeriodRequest struct {
	AreaID string `form:"area_id"`
	State  string `form:"state"`
}

var (
	ErrInvalidAreaID      = apperrors.NewValidation("invalid_area_id")
	ErrInvalidCode        = apperrors.NewValidation("invalid_period_code")
	ErrInvalidDateRange   = apperrors.NewValidation("invalid_date_range")
	ErrInvalidState       = apperrors.NewValidation("invalid_period_state")
	ErrPeriodExists       = apperrors.NewValidation("period_already_exists")
	ErrNotFound           = apperrors.NewNotFound("period_not_found")
	ErrInvalidTransition  = apperrors.NewIllegalTransition("invalid_period_transition")
	ErrPeriodNotOpen      = apperrors.NewIllegalTransition("period_not_open")
	ErrPeriodInUse        = apperrors.NewIllegalTransition("period_has_declarations")
	ErrPeriodStateChanged = apperrors.NewConflict("period_state_changed")
)
