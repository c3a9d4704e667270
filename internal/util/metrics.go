package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Total number of webhook events received",
	}, []string{"type", "result"})

	PaymentsVerifiedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_verified_total",
		Help: "Total number of client-triggered payment verifications",
	}, []string{"result"})

	OrdersPaidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_paid_total",
		Help: "Total number of orders reconciled as paid",
	})

	BagConfirmationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bag_confirmations_total",
		Help: "Total number of weekly bag confirmations",
	}, []string{"source"})

	BoxSizeChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "box_size_changes_total",
		Help: "Total number of box-size change requests by decision",
	}, []string{"decision"})

	BagSyncFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bag_sync_failures_total",
		Help: "Total number of failed best-effort bag syncs after order payment",
	})

	OutboxRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_retries_total",
		Help: "Total number of outbox events retried by the poller",
	})

	CheckoutSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_sessions_total",
		Help: "Total number of checkout sessions created",
	}, []string{"box_size"})

	SubscriptionCancelsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "subscription_cancels_total",
		Help: "Total number of subscription cancellations",
	})

	ReconcileLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_reconcile_latency_seconds",
		Help:    "Latency of payment reconciliation",
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
