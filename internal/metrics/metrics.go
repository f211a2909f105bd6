package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.  Each instance
// owns its registry.
type Metrics struct {
	registry *prometheus.Registry

	Registrations       prometheus.Counter
	AllocationConflicts prometheus.Counter
	AllocationExhausted prometheus.Counter
	PhotoReads          *prometheus.CounterVec
	MailDispatch        *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "directory_registrations_total",
			Help: "Profiles successfully submitted for admission",
		}),
		AllocationConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "directory_id_allocation_conflicts_total",
			Help: "Random profile ids that were already taken",
		}),
		AllocationExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "directory_id_allocation_exhausted_total",
			Help: "Allocations that gave up after the attempt budget",
		}),
		PhotoReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "directory_photo_reads_total",
			Help: "Photo resolutions by outcome",
		}, []string{"outcome"}),
		MailDispatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "directory_mail_dispatch_total",
			Help: "Outbound mail by result (sent, queued, logged, failed)",
		}, []string{"result"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Registrations, m.AllocationConflicts, m.AllocationExhausted, m.PhotoReads, m.MailDispatch,
	)
	return m
}

// Handler serves this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) PhotoRead(outcome string) {
	if m != nil {
		m.PhotoReads.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Mail(result string) {
	if m != nil {
		m.MailDispatch.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) AllocationConflict() {
	if m != nil {
		m.AllocationConflicts.Inc()
	}
}

func (m *Metrics) Exhausted() {
	if m != nil {
		m.AllocationExhausted.Inc()
	}
}

func (m *Metrics) Registered() {
	if m != nil {
		m.Registrations.Inc()
	}
}
