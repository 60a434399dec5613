package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/MorseWayne/cloth_shop/internal/config"
)

func TestSetupTracing_Disabled(t *testing.T) {
	cfg := &config.Config{}
	cfg.Tracing.Enabled = false

	shutdown, err := SetupTracing(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))

	fields := otel.GetTextMapPropagator().Fields()
	assert.Contains(t, fields, "traceparent")
	assert.Contains(t, fields, "baggage")
}

func TestSetupTracing_Enabled(t *testing.T) {
	cfg := &config.Config{}
	cfg.App.Name = "cloth_shop"
	cfg.App.Version = "test"
	cfg.App.Env = "test"
	cfg.Tracing.Enabled = true
	cfg.Tracing.Endpoint = "127.0.0.1:4318"
	cfg.Tracing.URLPath = "/v1/traces"
	cfg.Tracing.Insecure = true

	shutdown, err := SetupTracing(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "probe")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	// 导出失败不影响关闭
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}
