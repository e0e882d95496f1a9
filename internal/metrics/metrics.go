package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all VoltGrid metrics
const namespace = "voltgrid"

// Registry is the global Prometheus registry for all metrics
var Registry = prometheus.NewRegistry()

// AppInfo is a gauge that exposes application version information as labels
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always set to 1, version info in labels)",
	},
	[]string{"version", "commit", "build_date"},
)

// ChangeRequestsSubmitted counts submitted change requests by type and
// risk band.
var ChangeRequestsSubmitted = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "change_requests_submitted_total",
		Help:      "Total number of change requests submitted",
	},
	[]string{"type", "risk"}, // type: CREATE|UPDATE, risk: low|high
)

// ChangeRequestsDecided counts terminal change request transitions.
var ChangeRequestsDecided = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "change_requests_decided_total",
		Help:      "Total number of change request decisions",
	},
	[]string{"status"}, // status: APPROVED|REJECTED|AUTO_APPLIED
)

// RiskScores records the distribution of computed risk scores.
var RiskScores = promauto.With(Registry).NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "risk_score",
		Help:      "Distribution of computed risk scores",
		Buckets:   []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
	},
)

// VerificationTransitions counts task state transitions.
var VerificationTransitions = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "verification_transitions_total",
		Help:      "Total number of verification task transitions",
	},
	[]string{"to"}, // to: ASSIGNED|CHECKED_IN|SUBMITTED|REVIEWED
)

// CheckinsRejected counts check-in attempts outside the geofence.
var CheckinsRejected = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkins_rejected_total",
		Help:      "Total number of check-ins rejected for being out of range",
	},
)

// TasksOverdue tracks the number of unfinished tasks past their SLA at
// the last scan.
var TasksOverdue = promauto.With(Registry).NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "verification_tasks_overdue",
		Help:      "Unfinished verification tasks past their SLA due time",
	},
)

// TrustRecomputes counts trust score recomputations.
var TrustRecomputes = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "trust_recomputes_total",
		Help:      "Total number of trust score recomputations",
	},
)

// IssuesReported counts reported station issues by category.
var IssuesReported = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "issues_reported_total",
		Help:      "Total number of station issues reported",
	},
	[]string{"category"},
)

// Init initializes the metrics registry and sets version information
func Init(version, commit, buildDate string) {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	AppInfo.WithLabelValues(version, commit, buildDate).Set(1)
}
