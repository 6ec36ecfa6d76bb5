package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce            sync.Once
	apiRequestsTotal        *prometheus.CounterVec
	apiLatencySeconds       *prometheus.HistogramVec
	apiErrorsTotal          *prometheus.CounterVec
	checkoutsTotal          *prometheus.CounterVec
	checkoutConflictsTotal  prometheus.Counter
	gradesPostedTotal       *prometheus.CounterVec
	reaperActionsTotal      *prometheus.CounterVec
	submissionsExpiredTotal prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used across the core.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_requests_total",
			Help: "Total number of grading API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grading_latency_seconds",
			Help:    "Latency distribution for grading API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_errors_total",
			Help: "Total number of error responses returned by grading endpoints.",
		}, []string{"method", "route", "status"})

		checkoutsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_checkouts_total",
			Help: "Total number of submissions checked out, by grader pool.",
		}, []string{"pool"})

		checkoutConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grading_checkout_conflicts_total",
			Help: "Total number of checkout claims lost to a concurrent requester.",
		})

		gradesPostedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_grades_posted_total",
			Help: "Total number of grade records posted, by pool and status.",
		}, []string{"grader_type", "status"})

		reaperActionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_reaper_actions_total",
			Help: "Total number of submissions acted on by reaper sweeps.",
		}, []string{"sweep"})

		submissionsExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "grading_submissions_expired_total",
			Help: "Total number of submissions force-finished by hard expiration.",
		})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			checkoutsTotal,
			checkoutConflictsTotal,
			gradesPostedTotal,
			reaperActionsTotal,
			submissionsExpiredTotal,
		)
	})
}

// APIRequests exposes the counter for grading API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for grading API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for grading API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// Checkouts exposes the per-pool checkout counter.
func Checkouts() *prometheus.CounterVec {
	RegisterMetrics()
	return checkoutsTotal
}

// CheckoutConflicts exposes the lost-claim counter.
func CheckoutConflicts() prometheus.Counter {
	RegisterMetrics()
	return checkoutConflictsTotal
}

// GradesPosted exposes the posted-grade counter.
func GradesPosted() *prometheus.CounterVec {
	RegisterMetrics()
	return gradesPostedTotal
}

// ReaperActions exposes the per-sweep action counter.
func ReaperActions() *prometheus.CounterVec {
	RegisterMetrics()
	return reaperActionsTotal
}

// SubmissionsExpired exposes the hard-expiration counter.
func SubmissionsExpired() prometheus.Counter {
	RegisterMetrics()
	return submissionsExpiredTotal
}
