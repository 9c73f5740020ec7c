package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RebalancesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "levergate_rebalances_total",
		Help: "Entry-point calls by action, exchange and outcome",
	}, []string{"action", "exchange", "status"})

	RebalanceRejects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "levergate_rebalance_rejects_total",
		Help: "Rejected entry-point calls by error code",
	}, []string{"reason"})

	LeverageRatio = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "levergate_leverage_ratio",
		Help: "Leverage ratio observed on the last read",
	})

	TwapActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "levergate_twap_active",
		Help: "1 while a TWAP rebalance is in progress",
	})

	ChunkNotional = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "levergate_chunk_notional",
		Help:    "Collateral notional traded per chunk",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
	}, []string{"action"})

	BountyPaid = promauto.NewCounter(prometheus.CounterOpts{
		Name: "levergate_ripcord_bounty_paid_total",
		Help: "Total ether paid out to ripcord callers",
	})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "levergate_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)
