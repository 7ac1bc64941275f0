package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	namespace = "rootcheck"

	// DefaultJobName is the Pushgateway job used when none is configured.
	DefaultJobName = "rootcheck"
)

// Collectors updated by the client and the verifier.
var (
	FetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "fetch_duration_seconds",
		Help:      "Time spent fetching a block from the node, including retries.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	TransactionsVerified = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transactions_verified_total",
		Help:      "Transactions whose canonical encoding was added to a transactions-root.",
	})

	ReceiptRootsVerified = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "receipt_roots_verified_total",
		Help:      "Script transactions whose receipts-root matched.",
	})

	FailedTransactionsSeen = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "failed_transactions_seen_total",
		Help:      "Transactions with a failure status encountered during verification.",
	})

	Verifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verifications_total",
		Help:      "Block verifications by outcome (ok or the error kind).",
	}, []string{"result"})

	VerifiedHeightGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "verified_block_height",
		Help:      "Height of the last block whose commitments were verified successfully.",
	})

	// MetricsItems lists every collector registered by NewMetrics.
	MetricsItems = []prometheus.Collector{
		FetchDuration,
		TransactionsVerified,
		ReceiptRootsVerified,
		FailedTransactionsSeen,
		Verifications,
		VerifiedHeightGauge,
	}
)

// Metrics owns the registry of a single run and pushes it to a Pushgateway when configured.
type Metrics struct {
	registry *prometheus.Registry
	pushURL  string
	job      string
}

// NewMetrics registers the collectors on a fresh registry. An empty pushURL disables pushing.
func NewMetrics(pushURL, job string) *Metrics {
	if job == "" {
		job = DefaultJobName
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(MetricsItems...)
	return &Metrics{
		registry: registry,
		pushURL:  pushURL,
		job:      job,
	}
}

// Registry returns the registry holding the rootcheck collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Enabled reports whether a Pushgateway is configured.
func (m *Metrics) Enabled() bool {
	return m.pushURL != ""
}

// Push sends the collected metrics to the Pushgateway. It is a no-op when none is configured.
func (m *Metrics) Push(ctx context.Context) error {
	if !m.Enabled() {
		return nil
	}
	if err := push.New(m.pushURL, m.job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", m.pushURL, err)
	}
	return nil
}
