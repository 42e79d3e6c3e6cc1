package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/smallbiznis/turnos/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/turnos/internal/observability/metrics"
	"github.com/smallbiznis/turnos/pkg/telemetry/correlation"
	"go.uber.org/zap"
)

type WorkerConfig struct {
	RedisOpts   asynq.RedisClientOpt
	Queue       string
	Concurrency int
	Handler     domain.Handler
	Log         *zap.Logger
	HTTPMetrics *obsmetrics.HTTPMetrics
}

// Worker consumes notify tasks and hands events to the delivery handler.
type Worker struct {
	server      *asynq.Server
	mux         *asynq.ServeMux
	handler     domain.Handler
	log         *zap.Logger
	httpMetrics *obsmetrics.HTTPMetrics
}

func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Handler == nil {
		return nil, errors.New("notification worker: handler is required")
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	queue := strings.TrimSpace(cfg.Queue)
	if queue == "" {
		queue = QueueDefault
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	w := &Worker{
		handler:     cfg.Handler,
		log:         log.Named("notification.worker"),
		httpMetrics: cfg.HTTPMetrics,
	}
	w.server = asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queue: 1},
		Logger:      w.log.Sugar(),
	})
	w.mux = asynq.NewServeMux()
	w.mux.HandleFunc(TaskTypeNotify, w.HandleTask)
	return w, nil
}

// HandleTask fulfils the asynq.HandlerFunc contract.
func (w *Worker) HandleTask(ctx context.Context, task *asynq.Task) error {
	start := time.Now()
	status := "success"
	defer func() {
		w.httpMetrics.RecordHandler(task.Type(), status, time.Since(start))
	}()

	var payload TaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		status = "invalid_payload"
		w.log.Warn("dropping malformed notify task", zap.Error(err))
		return fmt.Errorf("decode notify payload: %v: %w", err, asynq.SkipRetry)
	}
	if err := payload.Event.Validate(); err != nil {
		status = "invalid_payload"
		return fmt.Errorf("invalid notify event: %v: %w", err, asynq.SkipRetry)
	}

	ctx = correlation.ContextFromMetadata(ctx, payload.Metadata)
	if err := w.handler.Handle(ctx, payload.Event); err != nil {
		status = "error"
		w.log.Warn("notification delivery failed",
			zap.String("event_type", string(payload.Event.Type)),
			zap.String("declaration_id", payload.Event.DeclarationID),
			zap.String("correlation_id", correlation.ExtractCorrelationID(ctx)),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// Start runs the server in the background.
func (w *Worker) Start() error {
	return w.server.Start(w.mux)
}

func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

// Run processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	w.Shutdown()
	return ctx.Err()
}
