// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailydrop_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dailydrop_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	ChatSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dailydrop_chat_subscribers",
			Help: "Number of live chat message subscriptions",
		},
	)

	ChatMessagesPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dailydrop_chat_messages_published_total",
			Help: "Total number of chat messages fanned out to subscribers",
		},
	)

	OTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailydrop_otp_requests_total",
			Help: "OTP requests by purpose and outcome",
		},
		[]string{"purpose", "outcome"},
	)

	PushFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dailydrop_push_failures_total",
			Help: "Push notification deliveries that failed",
		},
	)
)
