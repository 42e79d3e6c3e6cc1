package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/turnos/internal/adjustment"
	adjustmentdomain "github.com/smallbiznis/turnos/internal/adjustment/domain"
	"github.com/smallbiznis/turnos/internal/audit"
	auditdomain "github.com/smallbiznis/turnos/internal/audit/domain"
	"github.com/smallbiznis/turnos/internal/clock"
	"github.com/smallbiznis/turnos/internal/config"
	"github.com/smallbiznis/turnos/internal/declaration"
	declarationdomain "github.com/smallbiznis/turnos/internal/declaration/domain"
	"github.com/smallbiznis/turnos/internal/laborregime"
	"github.com/smallbiznis/turnos/internal/notification"
	notificationdomain "github.com/smallbiznis/turnos/internal/notification/domain"
	obslogger "github.com/smallbiznis/turnos/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/turnos/internal/observability/metrics"
	obstracing "github.com/smallbiznis/turnos/internal/observability/tracing"
	"github.com/smallbiznis/turnos/internal/period"
	perioddomain "github.com/smallbiznis/turnos/internal/period/domain"
	"github.com/smallbiznis/turnos/internal/reconciliation"
	reconciliationdomain "github.com/smallbiznis/turnos/internal/reconciliation/domain"
	"github.com/smallbiznis/turnos/internal/shifthours"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	audit.Module,
	laborregime.Module,
	shifthours.Module,
	period.Module,
	declaration.Module,
	adjustment.Module,
	reconciliation.Module,
	notification.Module,
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) {
		s.RegisterRoutes()
	}),
	fx.Invoke(RunHTTP),
)

func NewEngine(cfg config.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           cfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !cfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(cfg, httpMetrics)
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine            *gin.Engine
	log               *zap.Logger
	clock             clock.Clock
	rules             config.RulesProvider
	validate          *validator.Validate
	periodSvc         perioddomain.Service
	declarationSvc    declarationdomain.Service
	adjustmentSvc     adjustmentdomain.Service
	reconciliationSvc reconciliationdomain.Service
	auditSvc          auditdomain.Service
	dispatcher        notificationdomain.Dispatcher
}

type ServerParams struct {
	fx.In

	Gin               *gin.Engine
	Log               *zap.Logger
	Clock             clock.Clock
	Rules             config.RulesProvider
	PeriodSvc         perioddomain.Service
	DeclarationSvc    declarationdomain.Service
	AdjustmentSvc     adjustmentdomain.Service
	ReconciliationSvc reconciliationdomain.Service
	AuditSvc          auditdomain.Service           `optional:"true"`
	Dispatcher        notificationdomain.Dispatcher `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:            p.Gin,
		log:               p.Log.Named("http.server"),
		clock:             p.Clock,
		rules:             p.Rules,
		validate:          newValidator(),
		periodSvc:         p.PeriodSvc,
		declarationSvc:    p.DeclarationSvc,
		adjustmentSvc:     p.AdjustmentSvc,
		reconciliationSvc: p.ReconciliationSvc,
		auditSvc:          p.AuditSvc,
		dispatcher:        p.Dispatcher,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterRoutes() {
	api := s.engine.Group("/api")
	write := ActorRequired()

	// -------- Periods --------
	api.POST("/periods", write, s.CreatePeriod)
	api.GET("/periods", s.ListPeriods)
	api.GET("/periods/open", s.ListOpenPeriods)
	api.GET("/periods/vigentes", s.ListCurrentPeriods)
	api.GET("/periods/:area/:code", s.GetPeriod)
	api.DELETE("/periods/:area/:code", write, s.DeletePeriod)
	api.POST("/periods/:area/:code/transition", write, s.TransitionPeriod)

	// -------- Declarations --------
	api.POST("/declarations", write, s.CreateDeclaration)
	api.GET("/declarations", s.ListDeclarations)
	api.GET("/declarations/:id", s.GetDeclaration)
	api.PUT("/declarations/:id/lines", write, s.UpdateDeclarationLines)
	api.PATCH("/declarations/:id/lines/:line_id", write, s.AdjustDeclarationLine)
	api.POST("/declarations/:id/submit", write, s.SubmitDeclaration)
	api.POST("/declarations/:id/review", write, s.ReviewDeclaration)
	api.POST("/declarations/:id/reject", write, s.RejectDeclaration)

	// -------- Reconciliation --------
	api.POST("/declarations/:id/reconcile", write, s.ReconcileDeclaration)
	api.POST("/declarations/:id/reconcile/source", write, s.ReconcileDeclarationFromSource)
	api.GET("/declarations/:id/reconciliations", s.ListReconciliationRecords)
	api.GET("/reconciliation/pending", s.ListPendingSync)
	api.GET("/reconciliation/discrepancies", s.ListDiscrepancies)

	// -------- Audit --------
	api.GET("/audit-logs", s.ListAuditLogs)
}
