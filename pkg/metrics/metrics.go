// Package metrics exposes Prometheus counters for the settlement
// engine. Registered on a dedicated registry so the node serves a
// clean /metrics surface.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	OrdersCreated   prometheus.Counter
	OrdersExecuted  prometheus.Counter
	OrdersFilled    prometheus.Counter
	OrdersCancelled prometheus.Counter
	OrdersUpdated   prometheus.Counter
	Rebalances      prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "yieldswap", Name: "orders_created_total",
			Help: "Orders created.",
		}),
		OrdersExecuted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "yieldswap", Name: "orders_executed_total",
			Help: "Orders settled through a swap handler.",
		}),
		OrdersFilled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "yieldswap", Name: "orders_filled_total",
			Help: "Orders filled directly by a counterparty.",
		}),
		OrdersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "yieldswap", Name: "orders_cancelled_total",
			Help: "Orders cancelled and refunded.",
		}),
		OrdersUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "yieldswap", Name: "orders_updated_total",
			Help: "Orders re-keyed with updated terms.",
		}),
		Rebalances: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "yieldswap", Name: "rebalances_total",
			Help: "Buffer rebalance batches completed.",
		}),
	}
	reg.MustRegister(
		m.OrdersCreated, m.OrdersExecuted, m.OrdersFilled,
		m.OrdersCancelled, m.OrdersUpdated, m.Rebalances,
	)
	return m
}

// Handler serves the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
