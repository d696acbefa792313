package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vetbook",
			Name:      "http_requests_total",
			Help:      "Count of API requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	holds = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vetbook",
			Name:      "reservation_holds_total",
			Help:      "Count of hold attempts by outcome.",
		},
		[]string{"outcome"},
	)

	confirms = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vetbook",
			Name:      "reservation_confirms_total",
			Help:      "Count of reservations promoted to appointments.",
		},
	)

	releases = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vetbook",
			Name:      "reservation_releases_total",
			Help:      "Count of reservations released by their holder.",
		},
	)

	reaped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "vetbook",
			Name:      "reservations_reaped_total",
			Help:      "Count of expired reservations deleted by the reaper.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, holds, confirms, releases, reaped)
	})
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncHold(outcome string) {
	holds.WithLabelValues(outcome).Inc()
}

func IncConfirm() {
	confirms.Inc()
}

func IncRelease() {
	releases.Inc()
}

func AddReaped(n int) {
	reaped.Add(float64(n))
}
