// Package observability carries run metrics and tracing for accesstally.
package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RunSummary is what a finished run reports to metrics.
type RunSummary struct {
	Job           string
	Source        string
	Orders        int
	VisibleOrders int
	Keys          int
	SkippedKeys   int
	Accesses      int64
	Duration      time.Duration
	Success       bool
}

// RunMetrics bundles the gauges written after each run. Every gauge is
// labelled by job so one textfile can hold several jobs.
type RunMetrics struct {
	gatherer prometheus.Gatherer

	Orders        *prometheus.GaugeVec
	VisibleOrders *prometheus.GaugeVec
	Keys          *prometheus.GaugeVec
	SkippedKeys   *prometheus.GaugeVec
	Accesses      *prometheus.GaugeVec
	Duration      *prometheus.GaugeVec
	LastSuccess   *prometheus.GaugeVec
	Runs          *prometheus.CounterVec
}

// NewRunMetrics registers the run metrics against reg, defaulting to the
// global registry when nil.
func NewRunMetrics(reg prometheus.Registerer) (*RunMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	m := &RunMetrics{gatherer: gatherer}
	var err error

	gauges := []struct {
		target **prometheus.GaugeVec
		name   string
		help   string
	}{
		{&m.Orders, "accesstally_orders", "Orders in the orders layer of the last run."},
		{&m.VisibleOrders, "accesstally_visible_orders", "Orders with at least one access in the last run."},
		{&m.Keys, "accesstally_availability_keys", "Spacecraft/day keys with an availability set in the last run."},
		{&m.SkippedKeys, "accesstally_skipped_keys", "Spacecraft/day keys skipped because their source was absent."},
		{&m.Accesses, "accesstally_accesses", "Sum of access counts over all orders in the last run."},
		{&m.Duration, "accesstally_run_duration_seconds", "Duration of the last run in seconds."},
		{&m.LastSuccess, "accesstally_last_success_timestamp_seconds", "Unix time of the last successful run."},
	}
	for _, g := range gauges {
		vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: g.name, Help: g.help}, []string{"job"})
		if *g.target, err = registerGaugeVec(reg, vec, g.name); err != nil {
			return nil, err
		}
	}

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "accesstally_runs_total",
		Help: "Runs by job, availability source and result.",
	}, []string{"job", "source", "result"})
	if m.Runs, err = registerCounterVec(reg, runs, "accesstally_runs_total"); err != nil {
		return nil, err
	}

	return m, nil
}

// Record updates the metrics from a run summary. Failed runs only count
// towards accesstally_runs_total.
func (m *RunMetrics) Record(s RunSummary) {
	result := "success"
	if !s.Success {
		result = "failure"
	}
	m.Runs.WithLabelValues(s.Job, s.Source, result).Inc()
	if !s.Success {
		return
	}

	m.Orders.WithLabelValues(s.Job).Set(float64(s.Orders))
	m.VisibleOrders.WithLabelValues(s.Job).Set(float64(s.VisibleOrders))
	m.Keys.WithLabelValues(s.Job).Set(float64(s.Keys))
	m.SkippedKeys.WithLabelValues(s.Job).Set(float64(s.SkippedKeys))
	m.Accesses.WithLabelValues(s.Job).Set(float64(s.Accesses))
	m.Duration.WithLabelValues(s.Job).Set(s.Duration.Seconds())
	m.LastSuccess.WithLabelValues(s.Job).SetToCurrentTime()
}

// WriteTextfile writes the registry in the node_exporter textfile format.
// An empty path is a no-op.
func (m *RunMetrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.gatherer); err != nil {
		return fmt.Errorf("write metrics textfile %s: %w", path, err)
	}
	return nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
