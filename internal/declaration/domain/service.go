package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/turnos/internal/apperrors"
	perioddomain "github.com/smallbiznis/turnos/internal/period/domain"
	"github.com/smallbiznis/turnos/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, req CreateDeclarationRequest) (*Declaration, error)
	Update(ctx context.Context, req UpdateDeclarationRequest) (*Declaration, error)
	Submit(ctx context.Context, req SubmitRequest) (*Declaration, error)
	MarkReviewed(ctx context.Context, req ReviewRequest) (*Declaration, error)
	Reject(ctx context.Context, req RejectRequest) (*Declaration, error)
	Get(ctx context.Context, id snowflake.ID) (*Declaration, error)
	List(ctx context.Context, req ListDeclarationRequest) (ListDeclarationResponse, error)
}

// LineInput is one requested work date and shift.
type LineInput struct {
	WorkDate  time.Time `json:"work_date" validate:"required"`
	ShiftType string    `json:"shift_type" validate:"required,shift_type"`
}

type CreateDeclarationRequest struct {
	ProfessionalID string           `json:"professional_id" validate:"required"`
	Period         perioddomain.Key `json:"period"`
	ServiceID      string           `json:"service_id" validate:"required"`
	Lines          []LineInput      `json:"lines" validate:"dive"`
	Actor          string           `json:"-"`
}

type UpdateDeclarationRequest struct {
	ID              snowflake.ID `json:"-"`
	ExpectedVersion int64        `json:"expected_version"`
	Lines           []LineInput  `json:"lines" validate:"dive"`
	Actor           string       `json:"-"`
}

type SubmitRequest struct {
	ID              snowflake.ID `json:"-"`
	ExpectedVersion int64        `json:"expected_version"`
	Actor           string       `json:"-"`
}

type ReviewRequest struct {
	ID              snowflake.ID `json:"-"`
	ExpectedVersion int64        `json:"expected_version"`
	Observations    string       `json:"observations"`
	Actor           string       `json:"-"`
}

type RejectRequest struct {
	ID              snowflake.ID `json:"-"`
	ExpectedVersion int64        `json:"expected_version"`
	Reason          string       `json:"reason" validate:"required"`
	Actor           string       `json:"-"`
}

type ListDeclarationRequest struct {
	pagination.Pagination
	AreaID         string `form:"area_id"`
	PeriodCode     string `form:"period_code"`
	ProfessionalID string `form:"professional_id"`
	ServiceID      string `form:"service_id"`
	State          string `form:"state"`
}

type ListDeclarationResponse struct {
	pagination.PageInfo
	Declarations []Declaration `json:"declarations"`
}

var (
	ErrInvalidID             = apperrors.NewValidation("invalid_declaration_id")
	ErrInvalidProfessional   = apperrors.NewValidation("invalid_professional_id")
	ErrInvalidService        = apperrors.NewValidation("invalid_service_id")
	ErrInvalidState          = apperrors.NewValidation("invalid_declaration_state")
	ErrInvalidWorkDate       = apperrors.NewValidation("invalid_work_date")
	ErrWorkDateOutsidePeriod = apperrors.NewValidation("work_date_outside_period")
	ErrDuplicateWorkDate     = apperrors.NewValidation("duplicate_work_date")
	ErrRejectionReason       = apperrors.NewValidation("rejection_reason_required")
	ErrInvalidPageToken      = apperrors.NewValidation("invalid_page_token")
	ErrDuplicateDeclaration  = apperrors.NewDuplicate("duplicate_declaration")
	ErrNotFound              = apperrors.NewNotFound("declaration_not_found")
	ErrLineNotFound          = apperrors.NewNotFound("detail_line_not_found")
	ErrInvalidTransition     = apperrors.NewIllegalTransition("invalid_declaration_transition")
	ErrNotEditable           = apperrors.NewIllegalTransition("declaration_not_editable")
	ErrSynchronized          = apperrors.NewIllegalTransition("declaration_synchronized")
	ErrVersionConflict       = apperrors.NewConflict("declaration_version_conflict")
	ErrTotalMismatch         = apperrors.NewInternal("declaration_total_mismatch")
)
