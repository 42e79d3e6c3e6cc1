package dispatcher

import (
	"context"

	"github.com/smallbiznis/turnos/internal/notification/domain"
	"github.com/smallbiznis/turnos/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/turnos/internal/observability/metrics"
	"go.uber.org/zap"
)

// LogDispatcher writes events to the log. It is used when no queue is
// configured, and as the worker-side delivery handler.
type LogDispatcher struct {
	log     *zap.Logger
	metrics *obsmetrics.Metrics
}

func NewLogDispatcher(log *zap.Logger, metrics *obsmetrics.Metrics) *LogDispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogDispatcher{log: log.Named("notification"), metrics: metrics}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, event domain.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	d.emit(ctx, event)
	d.metrics.RecordNotification(ctx, string(event.Type), "logged")
	return nil
}

func (d *LogDispatcher) Handle(ctx context.Context, event domain.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	d.emit(ctx, event)
	d.metrics.RecordNotification(ctx, string(event.Type), "delivered")
	return nil
}

func (d *LogDispatcher) emit(ctx context.Context, event domain.Event) {
	fields := []zap.Field{
		zap.String("event_type", string(event.Type)),
		zap.String("professional_id", event.ProfessionalID),
		zap.String("area_id", event.AreaID),
		zap.String("period_code", event.PeriodCode),
	}
	if event.Message != "" {
		fields = append(fields, zap.String("message", event.Message))
	}
	for key, value := range event.Attributes {
		fields = append(fields, zap.String("attr."+key, value))
	}
	logger.WithDeclaration(logger.WithContext(ctx, d.log), event.DeclarationID).Info("notification", fields...)
}
