package domain

import (
	"context"
	"time"

	"github.com/smallbiznis/turnos/internal/apperrors"
	"github.com/smallbiznis/turnos/pkg/db/pagination"
)

type ListAuditLogRequest struct {
	pagination.Pagination
	Action     string     `form:"action"`
	TargetType string     `form:"target_type"`
	TargetID   string     `form:"target_id"`
	ActorID    string     `form:"actor_id"`
	StartAt    *time.Time `form:"start_at" time_format:"2006-01-02T15:04:05Z07:00"`
	EndAt      *time.Time `form:"end_at" time_format:"2006-01-02T15:04:05Z07:00"`
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Service interface {
	AuditLog(ctx context.Context, actorID string, action string, targetType string, targetID string, metadata map[string]any) error
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

const (
	ActionPeriodCreate           = "period.create"
	ActionPeriodTransition       = "period.transition"
	ActionPeriodDelete           = "period.delete"
	ActionDeclarationCreate      = "declaration.create"
	ActionDeclarationUpdate      = "declaration.update"
	ActionDeclarationSubmit      = "declaration.submit"
	ActionDeclarationReview      = "declaration.review"
	ActionDeclarationReject      = "declaration.reject"
	ActionDeclarationAdjustLine  = "declaration.adjust_line"
	ActionDeclarationReconcile   = "declaration.reconcile"
	ActionDeclarationSynchronize = "declaration.synchronize"

	TargetPeriod      = "control_period"
	TargetDeclaration = "availability_declaration"
)

var (
	ErrInvalidPageToken = apperrors.NewValidation("invalid_page_token")
	ErrInvalidTimeRange = apperrors.NewValidation("invalid_time_range")
	ErrInvalidAction    = apperrors.NewValidation("invalid_action")
)
