package dispatcher

import (
	"context"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/smallbiznis/turnos/internal/clock"
	"github.com/smallbiznis/turnos/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/turnos/internal/observability/metrics"
	"github.com/smallbiznis/turnos/pkg/telemetry/correlation"
	"go.uber.org/zap"
)

// Enqueuer publishes events as asynq tasks.
type Enqueuer struct {
	client      *asynq.Client
	queue       string
	log         *zap.Logger
	clock       clock.Clock
	metrics     *obsmetrics.Metrics
	httpMetrics *obsmetrics.HTTPMetrics
}

type EnqueuerConfig struct {
	Client      *asynq.Client
	Queue       string
	Log         *zap.Logger
	Clock       clock.Clock
	Metrics     *obsmetrics.Metrics
	HTTPMetrics *obsmetrics.HTTPMetrics
}

func NewEnqueuer(cfg EnqueuerConfig) *Enqueuer {
	queue := strings.TrimSpace(cfg.Queue)
	if queue == "" {
		queue = QueueDefault
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Enqueuer{
		client:      cfg.Client,
		queue:       queue,
		log:         log.Named("notification.enqueuer"),
		clock:       clk,
		metrics:     cfg.Metrics,
		httpMetrics: cfg.HTTPMetrics,
	}
}

func (e *Enqueuer) Dispatch(ctx context.Context, event domain.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = e.clock.Now().UTC()
	}

	task, err := NewNotifyTask(TaskPayload{
		Event:    event,
		Metadata: correlation.InjectIntoMetadata(ctx, nil),
	})
	if err != nil {
		return err
	}

	info, err := e.client.EnqueueContext(ctx, task, asynq.Queue(e.queue), asynq.MaxRetry(defaultMaxRetry))
	if err != nil {
		e.httpMetrics.RecordTaskDispatch(TaskTypeNotify, "error")
		e.metrics.RecordNotification(ctx, string(event.Type), "enqueue_failed")
		e.log.Warn("failed to enqueue notification",
			zap.String("event_type", string(event.Type)),
			zap.String("declaration_id", event.DeclarationID),
			zap.Error(err),
		)
		return err
	}

	e.httpMetrics.RecordTaskDispatch(TaskTypeNotify, "success")
	e.metrics.RecordNotification(ctx, string(event.Type), "enqueued")
	e.log.Debug("notification enqueued",
		zap.String("event_type", string(event.Type)),
		zap.String("declaration_id", event.DeclarationID),
		zap.String("task_id", info.ID),
		zap.String("queue", info.Queue),
	)
	return nil
}

func (e *Enqueuer) Close() error {
	return e.client.Close()
}
