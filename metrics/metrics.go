package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "licensegate"

// Metrics holds every collector the service exports. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	activations   *prometheus.CounterVec
	deactivations prometheus.Counter
	verifications *prometheus.CounterVec
	webhookEvents *prometheus.CounterVec
	writeBacks    *prometheus.CounterVec
	licenses      *prometheus.GaugeVec
	devicesBound  prometheus.Gauge
}

// New registers the collectors on a dedicated registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		activations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activations_total",
			Help:      "Activation attempts by outcome.",
		}, []string{"outcome"}),
		deactivations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deactivations_total",
			Help:      "Deactivation requests handled.",
		}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verifications_total",
			Help:      "Verify requests by outcome.",
		}, []string{"outcome"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Order webhook deliveries by outcome.",
		}, []string{"outcome"}),
		writeBacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_writebacks_total",
			Help:      "License write-backs to the shop by result.",
		}, []string{"result"}),
		licenses: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "licenses",
			Help:      "Licenses in the registry by status.",
		}, []string{"status"}),
		devicesBound: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "devices_bound",
			Help:      "Device slots consumed across all licenses.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.activations,
		m.deactivations,
		m.verifications,
		m.webhookEvents,
		m.writeBacks,
		m.licenses,
		m.devicesBound,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveActivation(outcome string) {
	if m == nil {
		return
	}
	m.activations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveDeactivation() {
	if m == nil {
		return
	}
	m.deactivations.Inc()
}

func (m *Metrics) ObserveVerification(outcome string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveWebhook(outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveWriteBack(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.writeBacks.WithLabelValues(result).Inc()
}

// SetLicenseCounts replaces the per-status license gauge values.
func (m *Metrics) SetLicenseCounts(byStatus map[string]int, devicesBound int) {
	if m == nil {
		return
	}
	m.licenses.Reset()
	for status, n := range byStatus {
		m.licenses.WithLabelValues(status).Set(float64(n))
	}
	m.devicesBound.Set(float64(devicesBound))
}
