package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	goSessionAuth "github.com/MrEthical07/goSessionAuth"
	otelexport "github.com/MrEthical07/goSessionAuth/metrics/export/otel"
)

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	tp, shutdown, err := Setup(context.Background(), Config{})
	require.NoError(t, err)
	require.NotNil(t, tp)

	_, span := tp.Tracer("test").Start(context.Background(), "Login")
	assert.False(t, span.SpanContext().IsValid())
	span.End()
	assert.NoError(t, shutdown(context.Background()))
}

func TestProviderRecordsServiceName(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp, err := newProvider(context.Background(), Config{ServiceName: "auth-test"}, sdktrace.WithSpanProcessor(rec))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := tp.Tracer("test").Start(context.Background(), "Refresh")
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "Refresh", ended[0].Name())

	var service string
	for _, kv := range ended[0].Resource().Attributes() {
		if kv.Key == attribute.Key("service.name") {
			service = kv.Value.AsString()
		}
	}
	assert.Equal(t, "auth-test", service)
}

func TestSetupMetricsWithoutEndpointIsNoop(t *testing.T) {
	mp, shutdown, err := SetupMetrics(context.Background(), Config{})
	require.NoError(t, err)
	require.NotNil(t, mp)

	c, err := mp.Meter("test").Int64Counter("gsa_test_total")
	require.NoError(t, err)
	c.Add(context.Background(), 1)
	assert.NoError(t, shutdown(context.Background()))
}

func TestMeterProviderCarriesEngineMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp, err := newMeterProvider(context.Background(), Config{ServiceName: "auth-test"}, reader)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m := goSessionAuth.NewMetrics(goSessionAuth.MetricsConfig{Enabled: true})
	m.Inc(goSessionAuth.MetricLogoutAll)
	exp, err := otelexport.New(mp.Meter("goSessionAuth"), snapshotSource{m})
	require.NoError(t, err)
	t.Cleanup(func() { _ = exp.Close() })

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	service, _ := rm.Resource.Set().Value(attribute.Key("service.name"))
	assert.Equal(t, "auth-test", service.AsString())

	var found bool
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			sum, ok := metric.Data.(metricdata.Sum[int64])
			if metric.Name != "gsa_logout_total" || !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				if v, _ := dp.Attributes.Value("scope"); v.AsString() == "all" {
					found = true
					assert.EqualValues(t, 1, dp.Value)
				}
			}
		}
	}
	assert.True(t, found, "logout-all series not exported")
}

type snapshotSource struct{ m *goSessionAuth.Metrics }

func (s snapshotSource) MetricsSnapshot() goSessionAuth.MetricsSnapshot { return s.m.Snapshot() }
func (s snapshotSource) AuditDropped() uint64                           { return 0 }
