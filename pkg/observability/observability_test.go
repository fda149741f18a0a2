package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	require.Equal(t, "agora", config.ServiceName)
	require.Equal(t, "localhost:4317", config.OTLPEndpoint)
	require.Equal(t, 1.0, config.SampleRate)
	require.False(t, config.Enabled)
}

func TestNewProviderDisabled(t *testing.T) {
	p, err := New(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, p)
	require.NotNil(t, p.Tracer())

	// Should not panic when disabled
	ctx := context.Background()
	_, finish := p.TrackOperation(ctx, "test.operation", attribute.String("k", "v"))
	finish(errors.New("boom"))
	p.RecordVote(ctx, OutcomeAccepted, "")
	p.RecordAppend(ctx, "VOTE")
	p.RecordCycle(ctx, true)
	require.NoError(t, p.Shutdown(ctx))
}

func TestNilProviderIsNoop(t *testing.T) {
	var p *Provider
	ctx := context.Background()

	newCtx, finish := p.TrackOperation(ctx, "nil.operation")
	require.NotNil(t, newCtx)
	finish(nil)
	p.RecordVote(ctx, OutcomeRejected, "Missing user ID")
	p.RecordError(ctx, errors.New("x"))
	require.NoError(t, p.Shutdown(ctx))
}

func TestGovernanceCounters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	p, err := New(context.Background(), DefaultConfig(), WithMetricReader(reader))
	require.NoError(t, err)
	defer func() { _ = p.Shutdown(context.Background()) }()

	ctx := context.Background()
	p.RecordVote(ctx, OutcomeAccepted, "")
	p.RecordVote(ctx, OutcomeAccepted, "")
	p.RecordVote(ctx, OutcomeRejected, "Suspicious voting pattern detected")
	p.RecordAppend(ctx, "VOTE")
	p.RecordCycle(ctx, false)

	_, finish := p.TrackOperation(ctx, "governance.cast_vote")
	finish(errors.New("store down"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	require.Equal(t, int64(3), sumOf(t, rm, MetricVotes, ""))
	require.Equal(t, int64(2), sumOf(t, rm, MetricVotes, OutcomeAccepted))
	require.Equal(t, int64(1), sumOf(t, rm, MetricVotes, OutcomeRejected))
	require.Equal(t, int64(1), sumOf(t, rm, MetricLedgerAppends, ""))
	require.Equal(t, int64(1), sumOf(t, rm, MetricCycles, OutcomeFailed))
	require.Equal(t, int64(1), sumOf(t, rm, "agora.errors.total", ""))
}

func TestRecordErrorKeepsCallerAttributes(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	p, err := New(context.Background(), DefaultConfig(), WithMetricReader(reader))
	require.NoError(t, err)
	defer func() { _ = p.Shutdown(context.Background()) }()

	backing := make([]attribute.KeyValue, 2)
	attrs := backing[:1]
	attrs[0] = attribute.String("operation", "governance.cast_vote")
	p.RecordError(context.Background(), errors.New("boom"), attrs...)

	require.Equal(t, attribute.KeyValue{}, backing[1], "caller's spare capacity must stay untouched")
}

// sumOf adds the data points of an int64 counter, optionally filtered by
// outcome attribute.
func sumOf(t *testing.T, rm metricdata.ResourceMetrics, name, outcome string) int64 {
	t.Helper()
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				if outcome != "" {
					v, ok := dp.Attributes.Value(AttrOutcome)
					if !ok || v.AsString() != outcome {
						continue
					}
				}
				total += dp.Value
			}
		}
	}
	return total
}
