package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookings_created_total",
			Help: "Bookings created, by outcome",
		},
		[]string{"status"},
	)

	BookingsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bookings_failed_total",
			Help: "Booking attempts rejected, by reason",
		},
		[]string{"reason"},
	)

	SweepCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweep_cycles_total",
			Help: "Completed sweep cycles per sweep",
		},
		[]string{"sweep"},
	)

	PaymentsReconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_reconciled_total",
			Help: "Payments driven to a terminal state by the reconciliation sweep",
		},
		[]string{"outcome"},
	)

	GatewayVerifyErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_verify_errors_total",
			Help: "Transient gateway verification failures left for the next cycle",
		},
	)

	BookingsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookings_expired_total",
			Help: "Bookings cancelled by the expiry sweep",
		},
	)

	NotificationsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_enqueued_total",
			Help: "Notification requests handed to the dispatcher, by type",
		},
		[]string{"type"},
	)
)
