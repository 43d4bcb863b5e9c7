// Package metrics exposes engine counters and gauges in the Prometheus
// default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/olyamironova/oms-engine/internal/domain"
)

var (
	ordersSubmitted = prometheus.NewCounter(prometheus.CounterOpts{Name: "oms_orders_submitted_total", Help: "Orders registered with the engine, children included"})
	ordersStatus    = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "oms_order_transitions_total", Help: "Order status transitions by target status"}, []string{"status"})
	fillsTotal      = prometheus.NewCounter(prometheus.CounterOpts{Name: "oms_fills_total", Help: "Executed fills"})
	liveOrders      = prometheus.NewGauge(prometheus.GaugeOpts{Name: "oms_live_orders", Help: "Orders in PENDING or OPEN"})
	netWorth        = prometheus.NewGauge(prometheus.GaugeOpts{Name: "oms_net_worth", Help: "Portfolio net worth in the base instrument"})
	currentStep     = prometheus.NewGauge(prometheus.GaugeOpts{Name: "oms_step", Help: "Last evaluated clock step"})
)

func init() {
	prometheus.MustRegister(
		ordersSubmitted, ordersStatus, fillsTotal,
		liveOrders, netWorth, currentStep,
	)
}

func OrderSubmitted() { ordersSubmitted.Inc() }

func OrderTransition(to domain.OrderStatus) { ordersStatus.WithLabelValues(string(to)).Inc() }

func Fill() { fillsTotal.Inc() }

// StepDone publishes the state observed at the end of a step.
func StepDone(step int64, live int, worth decimal.Decimal) {
	currentStep.Set(float64(step))
	liveOrders.Set(float64(live))
	netWorth.Set(worth.InexactFloat64())
}

func Handler() http.Handler { return promhttp.Handler() }
