package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "billing"

// Recompute outcomes.
const (
	RecomputeApplied = "applied"
	RecomputeSkipped = "skipped"
	RecomputeFailed  = "failed"
)

// Collector is a prometheus.Collector for the billing services. A nil
// *Collector is valid and records nothing.
type Collector struct {
	invoicesCreated    prometheus.Counter
	stockCompensations *prometheus.CounterVec
	paymentsWritten    *prometheus.CounterVec
	recomputes         *prometheus.CounterVec
	peerFailures       *prometheus.CounterVec
}

// New returns a new Collector.
func New() *Collector {
	return &Collector{
		invoicesCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "invoices_created_total",
				Help:      "The number of invoices persisted by the creation workflow.",
			},
		),
		stockCompensations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "stock_compensations_total",
				Help:      "The number of stock decrements undone after a failed invoice creation.",
			}, []string{"result"},
		),
		paymentsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "payments_written_total",
				Help:      "The number of payment writes, by operation.",
			}, []string{"op"},
		),
		recomputes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "invoice_recomputes_total",
				Help:      "The number of invoice paid-amount recomputes, by outcome.",
			}, []string{"outcome"},
		),
		peerFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "peer_failures_total",
				Help:      "The number of peer calls that ended unavailable.",
			}, []string{"peer"},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.invoicesCreated.Describe(ch)
	c.stockCompensations.Describe(ch)
	c.paymentsWritten.Describe(ch)
	c.recomputes.Describe(ch)
	c.peerFailures.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.invoicesCreated.Collect(ch)
	c.stockCompensations.Collect(ch)
	c.paymentsWritten.Collect(ch)
	c.recomputes.Collect(ch)
	c.peerFailures.Collect(ch)
}

func (c *Collector) InvoiceCreated() {
	if c == nil {
		return
	}
	c.invoicesCreated.Inc()
}

// StockCompensated records one compensating increment and whether it worked.
func (c *Collector) StockCompensated(ok bool) {
	if c == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	c.stockCompensations.WithLabelValues(result).Inc()
}

func (c *Collector) PaymentWritten(op string) {
	if c == nil {
		return
	}
	c.paymentsWritten.WithLabelValues(op).Inc()
}

func (c *Collector) Recomputed(outcome string) {
	if c == nil {
		return
	}
	c.recomputes.WithLabelValues(outcome).Inc()
}

func (c *Collector) PeerFailed(peer string) {
	if c == nil {
		return
	}
	c.peerFailures.WithLabelValues(peer).Inc()
}

// Handler serves c, plus the Go runtime and process collectors, from a
// private registry.
func Handler(c *Collector) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if c != nil {
		reg.MustRegister(c)
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
