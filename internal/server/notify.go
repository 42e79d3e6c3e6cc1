package server

import (
	"context"

	declarationdomain "github.com/smallbiznis/turnos/internal/declaration/domain"
	notificationdomain "github.com/smallbiznis/turnos/internal/notification/domain"
	obslogger "github.com/smallbiznis/turnos/internal/observability/logger"
	"go.uber.org/zap"
)

// notify never fails the request; a lost notification is logged only.
func (s *Server) notify(ctx context.Context, event notificationdomain.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.clock.Now()
	}
	if err := s.dispatcher.Dispatch(ctx, event); err != nil {
		obslogger.WithContext(ctx, s.log).Warn("notification dispatch failed",
			zap.String("event_type", string(event.Type)),
			zap.String("declaration_id", event.DeclarationID),
			zap.Error(err),
		)
	}
}

func declarationEvent(eventType notificationdomain.EventType, decl *declarationdomain.Declaration, message string) notificationdomain.Event {
	return notificationdomain.Event{
		Type:           eventType,
		DeclarationID:  decl.ID.String(),
		ProfessionalID: decl.ProfessionalID,
		AreaID:         decl.AreaID,
		PeriodCode:     decl.PeriodCode,
		Message:        message,
	}
}
