// Package metrics exposes Prometheus collectors for ledger activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransactionsConfirmed counts transactions whose balance effects were
	// applied, labeled by kind.
	TransactionsConfirmed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "groupledger",
		Name:      "transactions_confirmed_total",
		Help:      "Transactions confirmed and applied, by kind.",
	}, []string{"kind"})

	// TransactionsRejected counts transactions rejected by validation before
	// persistence.
	TransactionsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "groupledger",
		Name:      "transactions_rejected_total",
		Help:      "Transactions rejected by validation.",
	})

	// TransactionsFailed counts transactions moved to the failed status
	// during confirmation (e.g. missing counterpart membership).
	TransactionsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "groupledger",
		Name:      "transactions_failed_total",
		Help:      "Transactions that failed during confirmation.",
	})
)
