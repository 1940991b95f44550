package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trialdesk",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	searches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trialdesk",
			Name:      "slot_searches_total",
			Help:      "Availability searches performed.",
		},
	)

	bookings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trialdesk",
			Name:      "bookings_total",
			Help:      "Booking attempts by result.",
		},
		[]string{"result"},
	)

	reserveConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trialdesk",
			Name:      "reserve_conflicts_total",
			Help:      "Slot reservations lost to a concurrent booker.",
		},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trialdesk",
			Name:      "status_transitions_total",
			Help:      "Lifecycle transitions by source status and event.",
		},
		[]string{"from", "event"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trialdesk",
			Name:      "notifications_total",
			Help:      "Outbound notifications by result.",
		},
		[]string{"result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, searches, bookings, reserveConflicts, transitions, notifications)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncSearch counts one availability search.
func IncSearch() {
	searches.Inc()
}

// IncBooking counts a booking attempt by result ("booked", "conflict", "error").
func IncBooking(result string) {
	bookings.WithLabelValues(result).Inc()
}

// IncReserveConflict counts one lost reservation race.
func IncReserveConflict() {
	reserveConflicts.Inc()
}

// IncTransition counts a lifecycle transition.
func IncTransition(from, event string) {
	transitions.WithLabelValues(from, event).Inc()
}

// IncNotification counts a delivery attempt by result ("sent", "retried", "dead").
func IncNotification(result string) {
	notifications.WithLabelValues(result).Inc()
}
