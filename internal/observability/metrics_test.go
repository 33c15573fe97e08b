package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	m.ConnectorCalls.WithLabelValues("stripe", "authorize", "success").Inc()
	m.ConnectorCalls.WithLabelValues("stripe", "authorize", "success").Inc()

	families, err := reg.Gather()
	require.NoError(t, err)

	var found *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == "payrail_connector_calls_total" {
			found = f
		}
	}
	require.NotNil(t, found)
	require.Len(t, found.GetMetric(), 1)
	require.Equal(t, 2.0, found.GetMetric()[0].GetCounter().GetValue())
}

func TestNewMetricsRejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)
	_, err = NewMetrics(reg)
	require.Error(t, err)
}
