package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewMetricsFields(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry())

	assert.NotNil(t, m.CollectionCyclesTotal)
	assert.NotNil(t, m.CollectionCycleDuration)
	assert.NotNil(t, m.ActiveWorkers)
	assert.NotNil(t, m.FetchFailuresTotal)
	assert.NotNil(t, m.OverallScore)
	assert.NotNil(t, m.AlertsSentTotal)
	assert.NotNil(t, m.HTTPRequestsTotal)
	assert.NotNil(t, m.HTTPRequestDuration)
}

func TestRecordWorkerLifecycle(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry())

	m.RecordWorkerStart()
	m.RecordWorkerStart()
	m.RecordWorkerEnd()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveWorkers))
}

func TestRecordCycle(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry())

	m.RecordCycle("success", 4.2)
	m.RecordCycle("success", 3.1)
	m.RecordCycle("error", 0.5)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CollectionCyclesTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CollectionCyclesTotal.WithLabelValues("error")))
}

func TestRecordScoreAndForget(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry())

	m.RecordScore("t-1", 82.5)
	assert.Equal(t, 82.5, testutil.ToFloat64(m.OverallScore.WithLabelValues("t-1")))

	m.ForgetTenant("t-1")
	assert.Equal(t, 0, testutil.CollectAndCount(m.OverallScore))
}

func TestRecordFetchFailureAndAlert(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry())

	m.RecordFetchFailure("guardduty")
	m.RecordAlert("sent")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchFailuresTotal.WithLabelValues("guardduty")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AlertsSentTotal.WithLabelValues("sent")))
}

func TestSeparateRegistriesDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		NewMetricsWith(prometheus.NewRegistry())
		NewMetricsWith(prometheus.NewRegistry())
	})
}
