package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadTelemetryDefaults(t *testing.T) {
	for _, key := range []string{
		"LOG_LEVEL", "LOG_FORMAT", "OTEL_ENABLED", "OTEL_SAMPLING_RATIO", "OTLP_ENDPOINT",
		"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_PROTOCOL", "OTEL_EXPORTER_OTLP_TRACES_PROTOCOL",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "info", cfg.Telemetry.LogLevel)
	assert.Equal(t, "json", cfg.Telemetry.LogFormat)
	assert.True(t, cfg.Telemetry.OtelEnabled)
	assert.Equal(t, "localhost:4317", cfg.Telemetry.OTLPEndpoint)
	assert.Equal(t, "grpc", cfg.Telemetry.OTLPProtocol)
	assert.InDelta(t, 0.1, cfg.Telemetry.SamplingRatio, 1e-9)
}

func TestLoadTelemetryFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", " WARN ")
	t.Setenv("OTEL_ENABLED", "false")
	t.Setenv("OTLP_ENDPOINT", "legacy:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4318")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "HTTP")
	t.Setenv("OTEL_SAMPLING_RATIO", "0.5")

	cfg := Load()

	assert.Equal(t, "warn", cfg.Telemetry.LogLevel)
	assert.False(t, cfg.Telemetry.OtelEnabled)
	assert.Equal(t, "collector:4318", cfg.Telemetry.OTLPEndpoint)
	assert.Equal(t, "http", cfg.Telemetry.OTLPProtocol)
	assert.InDelta(t, 0.5, cfg.Telemetry.SamplingRatio, 1e-9)
}

func TestDebug(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want bool
	}{
		{name: "production_info", cfg: Config{Environment: "production", Telemetry: TelemetryConfig{LogLevel: "info"}}},
		{name: "production_debug_level", cfg: Config{Environment: "production", Telemetry: TelemetryConfig{LogLevel: "DEBUG"}}, want: true},
		{name: "local_env", cfg: Config{Environment: "local", Telemetry: TelemetryConfig{LogLevel: "warn"}}, want: true},
		{name: "empty", cfg: Config{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.cfg.Debug())
		})
	}
}
