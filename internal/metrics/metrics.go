package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "scams"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status code.",
		},
		[]string{"endpoint", "status"},
	)

	bookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_total",
			Help:      "Booking lifecycle transitions.",
		},
		[]string{"action"},
	)

	conflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_conflicts_total",
			Help:      "Booking attempts rejected because of an overlapping booking.",
		},
	)

	tasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_tasks_total",
			Help:      "Background task outcomes by type.",
		},
		[]string{"type", "outcome"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookings, conflicts, tasks)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string, status int) {
	httpRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
}

// IncBooking records a booking transition: created, updated, cancelled, completed.
func IncBooking(action string) {
	bookings.WithLabelValues(action).Inc()
}

func IncConflict() {
	conflicts.Inc()
}

// IncTask records a worker outcome: done, retry, failed.
func IncTask(taskType, outcome string) {
	tasks.WithLabelValues(taskType, outcome).Inc()
}
