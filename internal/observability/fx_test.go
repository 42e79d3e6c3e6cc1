package observability

import (
	"testing"

	"github.com/smallbiznis/turnos/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestTelemetryConfigs(t *testing.T) {
	cfg := config.Config{
		AppVersion:  "1.2.0",
		Environment: "production",
		Telemetry: config.TelemetryConfig{
			LogLevel:      "info",
			LogFormat:     "json",
			OtelEnabled:   true,
			OTLPEndpoint:  "collector:4317",
			OTLPProtocol:  "grpc",
			SamplingRatio: 0.25,
		},
	}

	logCfg, traceCfg, metricCfg := telemetryConfigs(cfg)

	assert.Equal(t, "turnos", logCfg.ServiceName)
	assert.Equal(t, "info", logCfg.Level)
	assert.False(t, logCfg.Debug)
	assert.False(t, logCfg.IncludeStackOnError)

	assert.True(t, traceCfg.Enabled)
	assert.Equal(t, "1.2.0", traceCfg.ServiceVersion)
	assert.Equal(t, "collector:4317", traceCfg.ExporterEndpoint)
	assert.InDelta(t, 0.25, traceCfg.SamplingRatio, 1e-9)

	assert.Equal(t, "turnos", metricCfg.ServiceName)
	assert.Equal(t, "grpc", metricCfg.ExporterProtocol)
}

func TestTelemetryConfigsDebugInDevelopment(t *testing.T) {
	logCfg, _, _ := telemetryConfigs(config.Config{AppName: "turnos-api", Environment: "local"})
	assert.Equal(t, "turnos-api", logCfg.ServiceName)
	assert.True(t, logCfg.Debug)
	assert.True(t, logCfg.IncludeStackOnError)
}
