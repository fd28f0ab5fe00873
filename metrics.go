package auth

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsSink is an ActivitySink that counts events in Prometheus
type MetricsSink struct {
	EventsTotal        *prometheus.CounterVec
	LoginFailuresTotal *prometheus.CounterVec
	TokensSweptTotal   prometheus.Counter
}

var _ ActivitySink = (*MetricsSink)(nil)

// NewMetricsSink registers the auth collectors with reg. A nil reg uses the
// default registerer.
func NewMetricsSink(reg prometheus.Registerer, namespace string) *MetricsSink {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &MetricsSink{
		EventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "events_total",
				Help:      "Authentication activity events by type",
			},
			[]string{"event"},
		),
		LoginFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "login_failures_total",
				Help:      "Rejected logins by error",
			},
			[]string{"error"},
		),
		TokensSweptTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "persistent_logins_swept_total",
				Help:      "Expired persistent logins removed by sweeps",
			},
		),
	}
}

// Record implements ActivitySink.
func (m *MetricsSink) Record(_ context.Context, event ActivityEvent) error {
	m.EventsTotal.WithLabelValues(string(event.EventType)).Inc()

	switch event.EventType {
	case ActivityEventLoginFailure:
		reason := "unknown"
		if v, ok := event.Metadata["error"].(string); ok && v != "" {
			reason = v
		}
		m.LoginFailuresTotal.WithLabelValues(reason).Inc()
	case ActivityEventTokensSwept:
		if n, ok := event.Metadata["count"].(int64); ok && n > 0 {
			m.TokensSweptTotal.Add(float64(n))
		}
	}

	return nil
}
