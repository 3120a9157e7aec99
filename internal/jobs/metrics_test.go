package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("inventory:reconcile").End(nil))
	err := errors.New("boom")
	require.ErrorIs(t, m.Track("inventory:reconcile").End(err), err)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("inventory:reconcile", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("inventory:reconcile", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("inventory:reconcile")))
}

func TestDiscrepancyAlerts(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddDiscrepancyAlert("ACE2016", "high")
	m.AddDiscrepancyAlert("ACE2016", "high")
	m.AddDiscrepancyAlert("", "low")

	require.Equal(t, 2.0, testutil.ToFloat64(m.alerts.WithLabelValues("ACE2016", "high")))
	require.Equal(t, 1, testutil.CollectAndCount(m.alerts))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	require.NoError(t, m.Track("x").End(nil))
	m.AddDiscrepancyAlert("ACE2016", "low")
}
