// services/metrics.go
package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Settlement metrics, exposed on /metrics.
var (
	ledgerCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haki_ledger_calls_total",
		Help: "Ledger bridge calls by operation and outcome.",
	}, []string{"operation", "outcome"})

	settlementFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "haki_settlement_failures_total",
		Help: "Failed settlement operations by operation.",
	}, []string{"operation"})

	balanceDivergenceTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "haki_token_balance_divergence_total",
		Help: "Token balances found diverged from their transaction log.",
	})
)

func recordLedgerCall(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		settlementFailuresTotal.WithLabelValues(operation).Inc()
	}
	ledgerCallsTotal.WithLabelValues(operation, outcome).Inc()
}
