package controller

import (
	"errors"
	"time"

	"collectivewatch/internal/controller/informer"
	"collectivewatch/internal/model"
	"collectivewatch/pkg/log"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const metricsNamespace = "collectivewatch"

var _ informer.Reporter = (*MetricsReporter)(nil)

// MetricsReporter 取数和差异计算的失败写日志并计数
type MetricsReporter struct {
	logger *log.Logger

	fetchFailures prometheus.Counter
	diffFailures  *prometheus.CounterVec
	cycles        prometheus.Counter
	events        prometheus.Counter
	cycleDuration prometheus.Histogram
	lastCycle     prometheus.Gauge
}

func NewMetricsReporter(logger *log.Logger) *MetricsReporter {
	return &MetricsReporter{
		logger: logger,
		fetchFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "fetch_failures_total",
				Help:      "The number of snapshot fetches that failed.",
			},
		),
		diffFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "diff_failures_total",
				Help:      "The number of resource type diffs skipped because of a malformed snapshot.",
			}, []string{"type", "reason"},
		),
		cycles: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "cycles_total",
				Help:      "The number of completed poll cycles.",
			},
		),
		events: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "change_events_total",
				Help:      "The number of change events published on the bus.",
			},
		),
		cycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "cycle_duration_seconds",
				Help:      "The time taken to fetch and diff one snapshot.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		),
		lastCycle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "last_cycle",
				Help:      "The number of the last completed poll cycle.",
			},
		),
	}
}

func (r *MetricsReporter) FetchFailed(err error) {
	r.fetchFailures.Inc()
	r.logger.Warn("collective snapshot fetch failed, cycle skipped", zap.Error(err))
}

func (r *MetricsReporter) DiffFailed(t model.ResourceType, err error) {
	reason := "other"
	var integrity *informer.IntegrityError
	switch {
	case errors.Is(err, informer.ErrDuplicateID):
		reason = "duplicate_id"
	case errors.Is(err, informer.ErrMissingField):
		reason = "missing_field"
	case errors.Is(err, informer.ErrNegativeTally):
		reason = "negative_tally"
	case errors.Is(err, informer.ErrTypeMismatch):
		reason = "type_mismatch"
	}
	r.diffFailures.WithLabelValues(string(t), reason).Inc()

	fields := []zap.Field{zap.String("type", string(t)), zap.String("reason", reason), zap.Error(err)}
	if errors.As(err, &integrity) && integrity.ID != "" {
		fields = append(fields, zap.String("id", integrity.ID))
	}
	r.logger.Error("malformed collective snapshot", fields...)
}

func (r *MetricsReporter) CycleCompleted(cycle uint64, events int, elapsed time.Duration) {
	r.cycles.Inc()
	r.events.Add(float64(events))
	r.cycleDuration.Observe(elapsed.Seconds())
	r.lastCycle.Set(float64(cycle))
	if events > 0 {
		r.logger.Info("poll cycle completed",
			zap.Uint64("cycle", cycle),
			zap.Int("events", events),
			zap.Duration("elapsed", elapsed))
	}
}

// Describe is part of the prometheus.Collector interface.
func (r *MetricsReporter) Describe(ch chan<- *prometheus.Desc) {
	r.fetchFailures.Describe(ch)
	r.diffFailures.Describe(ch)
	r.cycles.Describe(ch)
	r.events.Describe(ch)
	r.cycleDuration.Describe(ch)
	r.lastCycle.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (r *MetricsReporter) Collect(ch chan<- prometheus.Metric) {
	r.fetchFailures.Collect(ch)
	r.diffFailures.Collect(ch)
	r.cycles.Collect(ch)
	r.events.Collect(ch)
	r.cycleDuration.Collect(ch)
	r.lastCycle.Collect(ch)
}
