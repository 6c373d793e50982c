package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.ObserveActivation("ok")
	m.ObserveActivation("ok")
	m.ObserveActivation("device_limit_reached")
	m.ObserveDeactivation()
	m.ObserveWebhook("issued")
	m.ObserveWriteBack(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.activations.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activations.WithLabelValues("device_limit_reached")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deactivations))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.webhookEvents.WithLabelValues("issued")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.writeBacks.WithLabelValues("failed")))
}

func TestSetLicenseCounts(t *testing.T) {
	m := New()

	m.SetLicenseCounts(map[string]int{"active": 4, "revoked": 1}, 7)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.licenses.WithLabelValues("active")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.licenses.WithLabelValues("revoked")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.devicesBound))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveActivation("ok")
	m.ObserveVerification("valid")
	m.SetLicenseCounts(map[string]int{"active": 1}, 1)
	assert.Nil(t, m.Registry())
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveVerification("valid")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `licensegate_verifications_total{outcome="valid"} 1`)
}
