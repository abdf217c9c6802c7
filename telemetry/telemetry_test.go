package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestPhaseSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	c := NewTelemetryClientWithExporter(exp)
	require.True(t, c.Enabled())

	ctx, end := c.Phase(context.Background(), PhaseTranslate, Cluster(1))
	_, endJIT := c.Phase(ctx, PhaseJIT)
	endJIT(errors.New("bind failed"))
	end(nil)

	// the syncer exports on End; Shutdown clears the in-memory exporter
	spans := exp.GetSpans()
	require.NoError(t, c.Close(context.Background()))
	require.Len(t, spans, 2)
	jit, tr := spans[0], spans[1]
	assert.Equal(t, PhaseJIT, jit.Name)
	assert.Equal(t, codes.Error, jit.Status.Code)
	assert.Equal(t, tr.SpanContext.SpanID(), jit.Parent.SpanID())
	assert.Equal(t, PhaseTranslate, tr.Name)

	var cluster int64 = -1
	for _, a := range tr.Attributes {
		if a.Key == "cluster" {
			cluster = a.Value.AsInt64()
		}
	}
	assert.EqualValues(t, 1, cluster)
}

func TestNoOpClient(t *testing.T) {
	c := NewNoOpTelemetryClient()
	assert.False(t, c.Enabled())
	_, end := c.Phase(context.Background(), PhaseRun, Hart(3))
	end(nil)
	assert.NoError(t, c.Close(context.Background()))
}
