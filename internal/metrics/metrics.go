package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wapulse",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wapulse",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	OTPIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wapulse",
			Name:      "otp_issued_total",
			Help:      "One-time codes issued.",
		},
		[]string{"purpose"},
	)

	OTPVerified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wapulse",
			Name:      "otp_verified_total",
			Help:      "One-time code verification outcomes.",
		},
		[]string{"purpose", "result"}, // result: ok, invalid, expired, locked
	)

	BroadcastMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wapulse",
			Name:      "broadcast_messages_total",
			Help:      "Broadcast messages by outcome.",
		},
		[]string{"status"},
	)

	DeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wapulse",
			Name:      "delivery_failures_total",
			Help:      "Best-effort deliveries that failed.",
		},
		[]string{"channel"},
	)

	ReapedRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "wapulse",
			Name:      "otp_reaped_total",
			Help:      "Expired one-time codes and pending registrations removed.",
		},
	)
)
