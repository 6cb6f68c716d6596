// README: Prometheus collectors for quoting, checkout, horizon and crew activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Quotes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shuttle_quotes_total",
		Help: "Quote requests by availability outcome.",
	}, []string{"availability"})

	Checkouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shuttle_checkouts_total",
		Help: "Checkout attempts by outcome.",
	}, []string{"outcome"})

	HorizonAdjustments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shuttle_horizon_adjustments_total",
		Help: "T-72 adjustments applied, by kind.",
	}, []string{"kind"})

	CrewPicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shuttle_crew_picks_total",
		Help: "Crew rotation results per slot.",
	}, []string{"outcome"})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shuttle_events_published_total",
		Help: "Outbound events by subject and result.",
	}, []string{"subject", "result"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shuttle_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
