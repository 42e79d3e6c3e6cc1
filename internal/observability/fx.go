package observability

import (
	"github.com/smallbiznis/turnos/internal/config"
	"github.com/smallbiznis/turnos/internal/observability/logger"
	"github.com/smallbiznis/turnos/internal/observability/metrics"
	"github.com/smallbiznis/turnos/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		telemetryConfigs,
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
	),
	fx.Invoke(func(_ *sdktrace.TracerProvider) {}),
	fx.Invoke(metrics.SchedulerWithConfig),
)

// telemetryConfigs splits the application config into the settings of each
// telemetry signal.
func telemetryConfigs(cfg config.Config) (logger.Config, tracing.Config, metrics.Config) {
	service := cfg.AppName
	if service == "" {
		service = "turnos"
	}
	t := cfg.Telemetry
	debug := cfg.Debug()

	return logger.Config{
			ServiceName:         service,
			Environment:         cfg.Environment,
			Version:             cfg.AppVersion,
			Level:               t.LogLevel,
			Format:              t.LogFormat,
			Debug:               debug,
			IncludeCaller:       true,
			IncludeStackOnError: debug,
		}, tracing.Config{
			Enabled:          t.OtelEnabled,
			ServiceName:      service,
			ServiceVersion:   cfg.AppVersion,
			Environment:      cfg.Environment,
			ExporterEndpoint: t.OTLPEndpoint,
			ExporterProtocol: t.OTLPProtocol,
			SamplingRatio:    t.SamplingRatio,
		}, metrics.Config{
			Enabled:          t.OtelEnabled,
			ExporterEndpoint: t.OTLPEndpoint,
			ExporterProtocol: t.OTLPProtocol,
			ServiceName:      service,
			Environment:      cfg.Environment,
		}
}
