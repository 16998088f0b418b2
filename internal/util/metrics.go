package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_completed_total",
		Help: "Total number of orders completed",
	})

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Total number of orders cancelled",
	})

	PointsAwardedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "points_awarded_total",
		Help: "Total points awarded for completed orders",
	})

	PointsSpentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "points_spent_total",
		Help: "Total points spent on reward redemptions",
	})

	RedemptionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "redemptions_total",
		Help: "Total number of successful reward redemptions",
	})

	RedemptionsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "redemptions_failed_total",
		Help: "Total number of failed reward redemptions",
	}, []string{"reason"})

	StockAdjustmentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_adjustments_total",
		Help: "Total number of administrative stock adjustments",
	})

	TxConflictRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tx_conflict_retries_total",
		Help: "Total number of unit-of-work retries after a concurrency conflict",
	})

	RedemptionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "redemption_latency_seconds",
		Help:    "Latency of reward redemption transactions",
		Buckets: prometheus.DefBuckets,
	})

	OrderCompletionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_completion_latency_seconds",
		Help:    "Latency of order completion transactions",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
