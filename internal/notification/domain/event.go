package domain

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/turnos/internal/apperrors"
)

type EventType string

const (
	EventDeclarationReviewed       EventType = "declaration.reviewed"
	EventDeclarationRejected       EventType = "declaration.rejected"
	EventDeclarationSynchronized   EventType = "declaration.synchronized"
	EventReconciliationDiscrepancy EventType = "reconciliation.discrepancy"
	EventReconciliationPending     EventType = "reconciliation.pending"
)

func (t EventType) Valid() bool {
	switch t {
	case EventDeclarationReviewed,
		EventDeclarationRejected,
		EventDeclarationSynchronized,
		EventReconciliationDiscrepancy,
		EventReconciliationPending:
		return true
	default:
		return false
	}
}

// Event tells a professional or coordinator about a declaration outcome.
type Event struct {
	Type           EventType         `json:"type"`
	DeclarationID  string            `json:"declaration_id"`
	ProfessionalID string            `json:"professional_id,omitempty"`
	AreaID         string            `json:"area_id,omitempty"`
	PeriodCode     string            `json:"period_code,omitempty"`
	Message        string            `json:"message,omitempty"`
	Attributes     map[string]string `json:"attributes,omitempty"`
	OccurredAt     time.Time         `json:"occurred_at"`
}

func (e Event) Validate() error {
	if !e.Type.Valid() {
		return ErrInvalidEventType
	}
	if strings.TrimSpace(e.DeclarationID) == "" {
		return ErrMissingDeclaration
	}
	return nil
}

// Dispatcher hands events off for delivery. Dispatch must not block on the
// delivery itself.
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event) error
}

// Handler delivers one event on the worker side.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

var (
	ErrInvalidEventType   = apperrors.NewValidation("invalid_notification_type")
	ErrMissingDeclaration = apperrors.NewValidation("notification_missing_declaration")
)
