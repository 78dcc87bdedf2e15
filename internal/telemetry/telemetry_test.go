package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/BaSui01/parley/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap/zaptest"
)

// stashGlobals snapshots the global OTel providers and propagator and
// restores them via t.Cleanup, since Init mutates process-wide state.
func stashGlobals(t *testing.T) {
	t.Helper()
	tp := otel.GetTracerProvider()
	mp := otel.GetMeterProvider()
	prop := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
		otel.SetTextMapPropagator(prop)
	})
}

func TestInit(t *testing.T) {
	t.Run("disabled yields noop providers", func(t *testing.T) {
		stashGlobals(t)

		p, err := Init(config.TelemetryConfig{Enabled: false}, "1.0.0", zaptest.NewLogger(t))
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Nil(t, p.tp)
		assert.Nil(t, p.mp)
	})

	t.Run("enabled installs SDK globals", func(t *testing.T) {
		stashGlobals(t)

		cfg := config.TelemetryConfig{
			Enabled:      true,
			OTLPEndpoint: "localhost:4317",
			ServiceName:  "parley-test",
			SampleRate:   0.5,
		}
		p, err := Init(cfg, "1.2.3", zaptest.NewLogger(t))
		require.NoError(t, err)
		require.NotNil(t, p.tp)
		require.NotNil(t, p.mp)
		t.Cleanup(func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = p.Shutdown(ctx)
		})

		_, tpIsSDK := otel.GetTracerProvider().(*sdktrace.TracerProvider)
		_, mpIsSDK := otel.GetMeterProvider().(*sdkmetric.MeterProvider)
		assert.True(t, tpIsSDK, "global tracer provider should be the SDK type")
		assert.True(t, mpIsSDK, "global meter provider should be the SDK type")

		// The composite propagator carries both trace context and baggage.
		fields := otel.GetTextMapPropagator().Fields()
		assert.Contains(t, fields, "traceparent")
		assert.Contains(t, fields, "baggage")
	})
}

func TestProvidersShutdown(t *testing.T) {
	t.Run("nil receiver", func(t *testing.T) {
		var p *Providers
		assert.NoError(t, p.Shutdown(context.Background()))
	})

	t.Run("noop providers", func(t *testing.T) {
		stashGlobals(t)

		p, err := Init(config.TelemetryConfig{Enabled: false}, "", zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.NoError(t, p.Shutdown(context.Background()))
	})

	t.Run("real providers", func(t *testing.T) {
		stashGlobals(t)

		cfg := config.TelemetryConfig{
			Enabled:      true,
			OTLPEndpoint: "localhost:4317",
			ServiceName:  "parley-shutdown-test",
			SampleRate:   1.0,
		}
		p, err := Init(cfg, "", zaptest.NewLogger(t))
		require.NoError(t, err)
		require.NotNil(t, p.tp)
		require.NotNil(t, p.mp)

		// No collector is listening, so the flush may report a connection
		// error. The shutdown itself must not panic or hang.
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		assert.NotPanics(t, func() {
			_ = p.Shutdown(ctx)
		})
	})
}

func TestModuleVersion(t *testing.T) {
	// Test binaries report "(devel)" from build info, which maps to "dev".
	assert.Equal(t, "dev", moduleVersion())
}
