package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestInit_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), "", "vaxmesh", "test", true)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInstruments_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	inst := NewInstruments(mp.Meter("test"))
	inst.Turns.Add(context.Background(), 2)
	inst.Handoffs.Add(context.Background(), 1)
	inst.ToolDuration.Record(context.Background(), 12, metric.WithAttributes())

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	names := map[string]bool{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		names[m.Name] = true
	}

	assert.True(t, names["vaxmesh.turns"])
	assert.True(t, names["vaxmesh.handoffs"])
	assert.True(t, names["vaxmesh.tool.duration"])
}
