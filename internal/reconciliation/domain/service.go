package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/turnos/internal/apperrors"
	declarationdomain "github.com/smallbiznis/turnos/internal/declaration/domain"
)

type Service interface {
	Reconcile(ctx context.Context, req ReconcileRequest) (*Record, error)
	ReconcileFromSource(ctx context.Context, declarationID snowflake.ID, actor string) (*Record, error)
	ListPendingSync(ctx context.Context) ([]declarationdomain.Declaration, error)
	ListAwaitingSource(ctx context.Context, limit int) ([]declarationdomain.Declaration, error)
	ListDiscrepancies(ctx context.Context, threshold decimal.Decimal) ([]Discrepancy, error)
	ListRecords(ctx context.Context, declarationID snowflake.ID) ([]Record, error)
}

// ReconcileRequest compares a declaration with externally loaded hours.
// A nil LoadedHours records that the external data is not available yet.
type ReconcileRequest struct {
	DeclarationID   snowflake.ID     `json:"-"`
	LoadedHours     *decimal.Decimal `json:"loaded_hours"`
	ScheduleRef     string           `json:"schedule_ref"`
	ExpectedVersion int64            `json:"expected_version"`
	Actor           string           `json:"-"`
}

var (
	ErrInvalidLoadedHours = apperrors.NewValidation("invalid_loaded_hours")
	ErrInvalidThreshold   = apperrors.NewValidation("invalid_threshold")
	ErrNotReviewed        = apperrors.NewIllegalTransition("declaration_not_reviewed")
)
