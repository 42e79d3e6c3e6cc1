package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/turnos/internal/apperrors"
	declarationdomain "github.com/smallbiznis/turnos/internal/declaration/domain"
)

// Service lets coordinators correct individual lines of a declaration that
// is under review, without moving its state.
type Service interface {
	AdjustLine(ctx context.Context, req AdjustLineRequest) (*declarationdomain.Declaration, error)
}

type AdjustLineRequest struct {
	DeclarationID   snowflake.ID `json:"-"`
	LineID          snowflake.ID `json:"-"`
	ShiftType       string       `json:"shift_type" validate:"required,shift_type"`
	Observation     string       `json:"observation"`
	ExpectedVersion int64        `json:"expected_version"`
	Actor           string       `json:"-"`
}

var (
	ErrInvalidLineID = apperrors.NewValidation("invalid_line_id")
	ErrNotAdjustable = apperrors.NewIllegalTransition("declaration_not_adjustable")
)
