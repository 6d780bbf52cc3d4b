package daemon

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eliteGoblin/focusd/focusmode/internal/domain"
)

const metricsNamespace = "focusmode"

// Tick result labels besides the skip reasons.
const (
	tickActed = "acted"
	tickIdle  = "idle"
)

// Metrics holds the supervisor's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// ticks counts enforcer ticks by result: acted, idle or a skip reason.
	ticks *prometheus.CounterVec

	// terminations counts quit requests sent to disallowed apps by outcome.
	terminations *prometheus.CounterVec

	// samples counts Activity Monitor observations by kind (process, tab).
	samples *prometheus.CounterVec

	// networkOps counts block table applies and reverts by resulting step status.
	networkOps *prometheus.CounterVec

	active       prometheus.Gauge
	loopsRunning prometheus.Gauge
}

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "enforcer_ticks_total",
			Help:      "Total number of enforcer ticks, labeled by result.",
		}, []string{"result"}),
		terminations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "termination_requests_total",
			Help:      "Total number of quit requests sent to disallowed apps, labeled by outcome.",
		}, []string{"outcome"}),
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "monitor_samples_total",
			Help:      "Total number of activity observations recorded, labeled by kind.",
		}, []string{"kind"}),
		networkOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "network_operations_total",
			Help:      "Total number of hosts file operations, labeled by operation and status.",
		}, []string{"op", "status"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active",
			Help:      "1 while a mode is active, 0 otherwise.",
		}),
		loopsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "loops_running",
			Help:      "Number of enforcement and monitor loops currently running.",
		}),
	}

	m.registry.MustRegister(
		m.ticks,
		m.terminations,
		m.samples,
		m.networkOps,
		m.active,
		m.loopsRunning,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveTick records one enforcer tick.
func (m *Metrics) ObserveTick(r domain.TickResult) {
	switch {
	case r.Skipped:
		m.ticks.WithLabelValues(string(r.SkipReason)).Inc()
	case len(r.Targeted) > 0:
		m.ticks.WithLabelValues(tickActed).Inc()
	default:
		m.ticks.WithLabelValues(tickIdle).Inc()
	}

	failed := len(r.Failed)
	if ok := len(r.Targeted) - failed; ok > 0 {
		m.terminations.WithLabelValues("requested").Add(float64(ok))
	}
	if failed > 0 {
		m.terminations.WithLabelValues("failed").Add(float64(failed))
	}
}

// ObserveSample records one Activity Monitor observation.
func (m *Metrics) ObserveSample(s domain.ActivitySample) {
	m.samples.WithLabelValues("process").Add(float64(len(s.Processes)))
	tabs := 0
	for _, titles := range s.Tabs {
		tabs += len(titles)
	}
	m.samples.WithLabelValues("tab").Add(float64(tabs))
}

// ObserveNetwork records the outcome of an apply or revert.
func (m *Metrics) ObserveNetwork(op string, step *domain.StepReport) {
	if step == nil {
		return
	}
	m.networkOps.WithLabelValues(op, string(step.Status)).Inc()
}

// SetActive sets the active gauge.
func (m *Metrics) SetActive(active bool) {
	if active {
		m.active.Set(1)
		return
	}
	m.active.Set(0)
}

// SetLoops sets the running loops gauge.
func (m *Metrics) SetLoops(n int) {
	m.loopsRunning.Set(float64(n))
}
