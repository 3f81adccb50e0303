// Package metrics exposes the service's Prometheus collectors. All methods are
// safe on a nil *Metrics so components can run without instrumentation.
package metrics

import (
	"net/http"

	"firewatch/internal/events"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "firewatch"

type Metrics struct {
	registry *prometheus.Registry

	ingestEvents       *prometheus.CounterVec
	ingestRejected     *prometheus.CounterVec
	alertsRaised       *prometheus.CounterVec
	alertsResolved     *prometheus.CounterVec
	alertsOpen         prometheus.Gauge
	sessionsConnected  prometheus.Gauge
	sessionDropped     prometheus.Counter
	sessionDisconnects *prometheus.CounterVec
	commands           *prometheus.CounterVec
	sinkDropped        *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		ingestEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "events_total",
			Help:      "Accepted ingest events by event type",
		}, []string{"event_type"}),

		ingestRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "rejected_total",
			Help:      "Rejected ingest events by reason",
		}, []string{"reason"}),

		alertsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "raised_total",
			Help:      "Alerts raised by type and severity",
		}, []string{"alert_type", "severity"}),

		alertsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "resolved_total",
			Help:      "Alerts resolved by type and resolution",
		}, []string{"alert_type", "resolution"}),

		alertsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "open",
			Help:      "Currently open alerts",
		}),

		sessionsConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "connected",
			Help:      "Connected viewer sessions",
		}),

		sessionDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "messages_dropped_total",
			Help:      "Outbound messages dropped from full session queues",
		}),

		sessionDisconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "disconnects_total",
			Help:      "Session disconnects by reason",
		}, []string{"reason"}),

		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "commands_total",
			Help:      "Operator commands by command and result",
		}, []string{"command", "result"}),

		sinkDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sinks",
			Name:      "dropped_total",
			Help:      "Events dropped by full side-output queues",
		}, []string{"sink"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ingestEvents,
		m.ingestRejected,
		m.alertsRaised,
		m.alertsResolved,
		m.alertsOpen,
		m.sessionsConnected,
		m.sessionDropped,
		m.sessionDisconnects,
		m.commands,
		m.sinkDropped,
	)
	return m
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IngestAccepted(eventType string) {
	if m == nil {
		return
	}
	m.ingestEvents.WithLabelValues(eventType).Inc()
}

func (m *Metrics) IngestRejected(reason string) {
	if m == nil {
		return
	}
	m.ingestRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessionsConnected.Inc()
}

func (m *Metrics) SessionClosed(reason string) {
	if m == nil {
		return
	}
	m.sessionsConnected.Dec()
	m.sessionDisconnects.WithLabelValues(reason).Inc()
}

func (m *Metrics) SessionMessageDropped() {
	if m == nil {
		return
	}
	m.sessionDropped.Inc()
}

func (m *Metrics) Command(command, result string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, result).Inc()
}

func (m *Metrics) SinkDropped(sink string) {
	if m == nil {
		return
	}
	m.sinkDropped.WithLabelValues(sink).Inc()
}

// Publish counts alert transitions. It makes Metrics an events.Publisher.
func (m *Metrics) Publish(e events.Event) {
	if m == nil || e.Alert == nil {
		return
	}
	switch e.Kind {
	case events.KindAlertRaised:
		m.alertsRaised.WithLabelValues(string(e.Alert.AlertType), string(e.Alert.Severity)).Inc()
		m.alertsOpen.Inc()
	case events.KindAlertResolved:
		m.alertsResolved.WithLabelValues(string(e.Alert.AlertType), string(e.Alert.Resolution)).Inc()
		m.alertsOpen.Dec()
	}
}
