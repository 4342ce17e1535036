// Package metrics holds the Prometheus collectors of the funding ledger.
// They are registered with the default registry and exposed by the
// metrics server started in serve.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

const namespace = "wishfund"

// PledgesTotal counts committed pledges by distribution.
var PledgesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "pledges_total",
	Help:      "Total committed pledges by distribution.",
}, []string{"distribution"})

// PledgeRejections counts pledges rejected before commit.
var PledgeRejections = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "pledge_rejections_total",
	Help:      "Total rejected pledges by reason.",
}, []string{"reason"})

// PledgedAmount observes accepted pledge amounts.
var PledgedAmount = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: namespace,
	Name:      "pledged_amount",
	Help:      "Accepted amount per pledge.",
	Buckets:   []float64{100, 250, 500, 1000, 2500, 5000, 10000, 25000, 50000},
})

// CreditUsedAmount sums credit balances spent on pledges.
var CreditUsedAmount = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "credit_used_amount_total",
	Help:      "Total credit amount consumed by pledges.",
})

// CreditDroppedAmount sums credit balances invalidated after use.
var CreditDroppedAmount = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "credit_dropped_amount_total",
	Help:      "Total credit amount dropped after a partial use.",
})

// FundingTransitions counts items that reached their target.
var FundingTransitions = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "funding_transitions_total",
	Help:      "Total items that became fully funded.",
})

// Removals counts item removals by mode.
var Removals = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "removals_total",
	Help:      "Total removed items by mode.",
}, []string{"mode"})

// NotificationFailures counts notifications that could not be delivered.
var NotificationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "notification_failures_total",
	Help:      "Total failed notification deliveries by channel.",
}, []string{"channel"})

// RealtimeConnections tracks open websocket connections.
var RealtimeConnections = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "realtime_connections",
	Help:      "Current number of open realtime connections.",
})

// AddAmount adds a decimal amount to a counter.
func AddAmount(c prometheus.Counter, amount decimal.Decimal) {
	if amount.IsPositive() {
		c.Add(amount.InexactFloat64())
	}
}
