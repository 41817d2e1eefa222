package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/borzov/photo-validation-service/pkg/schema"
)

// Collector holds the engine's Prometheus instruments and implements the
// engine's Observer interface.
type Collector struct {
	validationsTotal   *prometheus.CounterVec
	validationDuration *prometheus.HistogramVec
	checkOutcomesTotal *prometheus.CounterVec
	checkDuration      *prometheus.HistogramVec
	admissionInUse     prometheus.Gauge
}

// NewCollector creates and registers the instruments on the given registerer.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		validationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "photovalid",
			Name:      "validations_total",
			Help:      "Completed validation runs by verdict status.",
		}, []string{"status"}),
		validationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "photovalid",
			Name:      "validation_duration_seconds",
			Help:      "End-to-end validation run duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		checkOutcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "photovalid",
			Name:      "check_outcomes_total",
			Help:      "Check outcomes by check name and status.",
		}, []string{"check", "status"}),
		checkDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "photovalid",
			Name:      "check_duration_seconds",
			Help:      "Individual check evaluation duration.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"check"}),
		admissionInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "photovalid",
			Name:      "admission_slots_in_use",
			Help:      "Images currently being validated.",
		}),
	}

	reg.MustRegister(
		c.validationsTotal,
		c.validationDuration,
		c.checkOutcomesTotal,
		c.checkDuration,
		c.admissionInUse,
	)
	return c
}

// ValidationCompleted records one finished run.
func (c *Collector) ValidationCompleted(status schema.VerdictStatus, seconds float64) {
	c.validationsTotal.WithLabelValues(string(status)).Inc()
	c.validationDuration.WithLabelValues(string(status)).Observe(seconds)
}

// CheckCompleted records one finished check evaluation.
func (c *Collector) CheckCompleted(check string, status schema.CheckStatus, seconds float64) {
	c.checkOutcomesTotal.WithLabelValues(check, string(status)).Inc()
	c.checkDuration.WithLabelValues(check).Observe(seconds)
}

// AdmissionInUse tracks occupied admission slots.
func (c *Collector) AdmissionInUse(inUse float64) {
	c.admissionInUse.Set(inUse)
}
