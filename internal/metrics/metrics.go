package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values
const (
	OutcomeSuccess  = "success"
	OutcomeConflict = "conflict"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
	OutcomeReplay   = "replay"
	OutcomeFailed   = "failed"
	OutcomeInvalid  = "invalid"
)

var (
	// Seat ledger
	SeatHoldAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cineledger_seat_hold_attempts_total",
			Help: "Seat hold attempts by outcome",
		},
		[]string{"outcome"},
	)

	SeatsHeld = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cineledger_seats_held_total",
			Help: "Seats moved from available to held",
		},
	)

	SeatsReaped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cineledger_seats_reaped_total",
			Help: "Expired holds reverted to available by the reaper",
		},
	)

	StalePendingBookings = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cineledger_stale_pending_bookings_total",
			Help: "Pending bookings failed by the reconciliation sweep",
		},
	)

	ReaperRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cineledger_reaper_runs_total",
			Help: "Reaper ticks by outcome",
		},
		[]string{"outcome"},
	)

	// Bookings
	BookingOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cineledger_booking_operations_total",
			Help: "Booking operations by kind and outcome",
		},
		[]string{"operation", "outcome"},
	)

	PaymentCallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cineledger_payment_callbacks_total",
			Help: "Payment callbacks by outcome",
		},
		[]string{"outcome"},
	)

	// Cache
	SeatMapCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cineledger_seat_map_cache_hits_total",
			Help: "Seat map reads served from cache",
		},
	)

	SeatMapCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cineledger_seat_map_cache_misses_total",
			Help: "Seat map reads that went to the database",
		},
	)

	// API
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cineledger_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cineledger_api_requests_total",
			Help: "API requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cineledger_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Database pool
	DBConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cineledger_db_connections_in_use",
			Help: "Database connections currently in use",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cineledger_db_connections_idle",
			Help: "Idle database connections",
		},
	)

	DBQueryRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cineledger_db_query_retries_total",
			Help: "Queries retried after a transient database failure",
		},
	)
)

func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	APIRequestDuration.WithLabelValues(method, route, code).Observe(duration.Seconds())
	APIRequestsTotal.WithLabelValues(method, route, code).Inc()
}

func RecordHold(outcome string, seats int) {
	SeatHoldAttempts.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSuccess {
		SeatsHeld.Add(float64(seats))
	}
}

func RecordBookingOperation(operation, outcome string) {
	BookingOperations.WithLabelValues(operation, outcome).Inc()
}

// RecordReaperRun counts one tick. Work done by a sweep that succeeded is
// counted even when the other one failed.
func RecordReaperRun(reaped, stale int, err error) {
	SeatsReaped.Add(float64(reaped))
	StalePendingBookings.Add(float64(stale))
	if err != nil {
		ReaperRuns.WithLabelValues(OutcomeError).Inc()
		return
	}
	ReaperRuns.WithLabelValues(OutcomeSuccess).Inc()
}

func RecordSeatMapCache(hit bool) {
	if hit {
		SeatMapCacheHits.Inc()
		return
	}
	SeatMapCacheMisses.Inc()
}

// RecordBreakerState takes gobreaker's numeric state: closed, half-open, open
func RecordBreakerState(name string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

func RecordDBPool(inUse, idle int) {
	DBConnectionsInUse.Set(float64(inUse))
	DBConnectionsIdle.Set(float64(idle))
}
