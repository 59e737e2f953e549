package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes application-level instruments.
type Metrics struct {
	readingsRecorded   *prometheus.CounterVec
	billsGenerated     *prometheus.CounterVec
	paymentsApplied    *prometheus.CounterVec
	activityRetryDepth prometheus.Gauge
	rateLimitAllowed   *prometheus.CounterVec
	rateLimitDenied    *prometheus.CounterVec
}

// New registers the domain instruments on the default registerer.
func New() (*Metrics, error) {
	return newMetrics(prometheus.DefaultRegisterer)
}

// NewForTest registers the instruments on an isolated registry.
func NewForTest() *Metrics {
	m, _ := newMetrics(prometheus.NewRegistry())
	return m
}

func newMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		readingsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tirtabill_meter_readings_total",
			Help: "Meter readings processed, by result.",
		}, []string{"result"}),
		billsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tirtabill_bills_generated_total",
			Help: "Bills generated, by trigger.",
		}, []string{"trigger"}),
		paymentsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tirtabill_payments_applied_total",
			Help: "Payments applied, by resulting bill status.",
		}, []string{"status"}),
		activityRetryDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tirtabill_activity_retry_queue_depth",
			Help: "Activity entries waiting for a retried write.",
		}),
		rateLimitAllowed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tirtabill_rate_limit_allowed_total",
			Help: "Requests allowed by the ingest rate limiter.",
		}, []string{"endpoint"}),
		rateLimitDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tirtabill_rate_limit_denied_total",
			Help: "Requests denied by the ingest rate limiter.",
		}, []string{"endpoint", "reason"}),
	}

	collectors := []prometheus.Collector{
		m.readingsRecorded,
		m.billsGenerated,
		m.paymentsApplied,
		m.activityRetryDepth,
		m.rateLimitAllowed,
		m.rateLimitDenied,
	}
	for _, collector := range collectors {
		if err := registerer.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return nil, err
		}
	}
	return m, nil
}

// RecordReading increments reading ingest counts.
func (m *Metrics) RecordReading(result string) {
	if m == nil {
		return
	}
	m.readingsRecorded.WithLabelValues(normalizeLabel(result)).Inc()
}

// RecordBillGenerated increments bill generation counts.
func (m *Metrics) RecordBillGenerated(trigger string) {
	if m == nil {
		return
	}
	m.billsGenerated.WithLabelValues(normalizeLabel(trigger)).Inc()
}

// RecordPaymentApplied increments payment counts by resulting status.
func (m *Metrics) RecordPaymentApplied(status string) {
	if m == nil {
		return
	}
	m.paymentsApplied.WithLabelValues(normalizeLabel(status)).Inc()
}

// SetActivityRetryDepth reports the retry queue backlog.
func (m *Metrics) SetActivityRetryDepth(depth int) {
	if m == nil {
		return
	}
	m.activityRetryDepth.Set(float64(depth))
}

// RecordRateLimitAllowed increments rate limit allow counts.
func (m *Metrics) RecordRateLimitAllowed(endpoint string) {
	if m == nil {
		return
	}
	m.rateLimitAllowed.WithLabelValues(normalizeLabel(endpoint)).Inc()
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(endpoint, reason string) {
	if m == nil {
		return
	}
	m.rateLimitDenied.WithLabelValues(normalizeLabel(endpoint), normalizeLabel(reason)).Inc()
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
