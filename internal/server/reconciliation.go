package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	notificationdomain "github.com/smallbiznis/turnos/internal/notification/domain"
	reconciliationdomain "github.com/smallbiznis/turnos/internal/reconciliation/domain"
	"go.uber.org/zap"
)

type reconcileRequest struct {
	LoadedHours     *decimal.Decimal `json:"loaded_hours"`
	ScheduleRef     string           `json:"schedule_ref"`
	ExpectedVersion int64            `json:"expected_version"`
}

func (s *Server) ReconcileDeclaration(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req reconcileRequest
	if !s.bindJSON(c, &req) {
		return
	}

	record, err := s.reconciliationSvc.Reconcile(c.Request.Context(), reconciliationdomain.ReconcileRequest{
		DeclarationID:   id,
		LoadedHours:     req.LoadedHours,
		ScheduleRef:     req.ScheduleRef,
		ExpectedVersion: req.ExpectedVersion,
		Actor:           actorFrom(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.notifyReconciliation(c, record)
	c.JSON(http.StatusOK, gin.H{"data": record})
}

func (s *Server) ReconcileDeclarationFromSource(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	record, err := s.reconciliationSvc.ReconcileFromSource(c.Request.Context(), id, actorFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.notifyReconciliation(c, record)
	c.JSON(http.StatusOK, gin.H{"data": record})
}

func (s *Server) ListReconciliationRecords(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	records, err := s.reconciliationSvc.ListRecords(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": records})
}

func (s *Server) ListPendingSync(c *gin.Context) {
	decls, err := s.reconciliationSvc.ListPendingSync(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": decls})
}

func (s *Server) ListDiscrepancies(c *gin.Context) {
	threshold := s.rules.Get().Tolerance()
	parsed, err := parseOptionalDecimal("threshold", c.Query("threshold"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if parsed != nil {
		threshold = *parsed
	}

	items, err := s.reconciliationSvc.ListDiscrepancies(c.Request.Context(), threshold)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) notifyReconciliation(c *gin.Context, record *reconciliationdomain.Record) {
	eventType := notificationdomain.EventReconciliationPending
	switch record.Status {
	case reconciliationdomain.StatusOK:
		eventType = notificationdomain.EventDeclarationSynchronized
	case reconciliationdomain.StatusDiscrepancy:
		eventType = notificationdomain.EventReconciliationDiscrepancy
	}

	decl, err := s.declarationSvc.Get(c.Request.Context(), record.DeclarationID)
	if err != nil {
		s.log.Warn("load declaration for notification",
			zap.String("declaration_id", record.DeclarationID.String()),
			zap.Error(err),
		)
		return
	}

	event := declarationEvent(eventType, decl, "")
	event.OccurredAt = record.CheckedAt
	event.Attributes = map[string]string{
		"status":         string(record.Status),
		"declared_hours": record.DeclaredHours.String(),
	}
	if record.LoadedHours.Valid {
		event.Attributes["loaded_hours"] = record.LoadedHours.Decimal.String()
	}
	if record.Delta.Valid {
		event.Attributes["delta"] = record.Delta.Decimal.String()
	}
	if record.ScheduleRef != nil {
		event.Attributes["schedule_ref"] = *record.ScheduleRef
	}
	s.notify(c.Request.Context(), event)
}
