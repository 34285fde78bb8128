package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storefront_api_request_duration_seconds",
		Help:    "Latency of calls to the storefront backend API",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "status"})

	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_api_requests_total",
		Help: "Total number of calls to the storefront backend API",
	}, []string{"method", "status"})

	APIRequestFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_api_request_failures_total",
		Help: "Total number of failed backend API calls",
	}, []string{"category"})

	SessionLoginsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_session_logins_total",
		Help: "Total number of successful logins",
	})

	SessionLoginFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_session_login_failures_total",
		Help: "Total number of failed login attempts",
	})

	SessionChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_session_checks_total",
		Help: "Total number of session checks",
	}, []string{"result"})

	CartMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storefront_cart_mutations_total",
		Help: "Total number of cart mutations",
	}, []string{"op"})

	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_created_total",
		Help: "Total number of orders created through checkout",
	})

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storefront_orders_cancelled_total",
		Help: "Total number of orders cancelled",
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
