package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the sync server.
type Metrics struct {
	TransitionsApplied  prometheus.Counter
	TransitionConflicts prometheus.Counter
	ReplayedOperations  prometheus.Counter
	EvidenceUploads     prometheus.Counter
	AuditUploads        prometheus.Counter
	DuplicateUploads    prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		TransitionsApplied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caresync_transitions_applied_total",
			Help: "Total number of task transitions applied",
		}),
		TransitionConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caresync_transition_conflicts_total",
			Help: "Total number of transitions rejected on a version mismatch",
		}),
		ReplayedOperations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caresync_replayed_operations_total",
			Help: "Total number of already-applied operations acknowledged from the ledger",
		}),
		EvidenceUploads: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caresync_evidence_uploads_total",
			Help: "Total number of evidence artifacts accepted",
		}),
		AuditUploads: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caresync_audit_uploads_total",
			Help: "Total number of audit events accepted",
		}),
		DuplicateUploads: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caresync_duplicate_uploads_total",
			Help: "Total number of uploads acknowledged as duplicates",
		}),
	}
}

// IncrementTransitionsApplied increments the applied transitions counter.
func (m *Metrics) IncrementTransitionsApplied() {
	m.TransitionsApplied.Inc()
}

// IncrementTransitionConflicts increments the version conflict counter.
func (m *Metrics) IncrementTransitionConflicts() {
	m.TransitionConflicts.Inc()
}

// IncrementReplayedOperations increments the ledger replay counter.
func (m *Metrics) IncrementReplayedOperations() {
	m.ReplayedOperations.Inc()
}

// IncrementEvidenceUploads increments the evidence upload counter.
func (m *Metrics) IncrementEvidenceUploads() {
	m.EvidenceUploads.Inc()
}

// IncrementAuditUploads increments the audit upload counter.
func (m *Metrics) IncrementAuditUploads() {
	m.AuditUploads.Inc()
}

// IncrementDuplicateUploads increments the duplicate upload counter.
func (m *Metrics) IncrementDuplicateUploads() {
	m.DuplicateUploads.Inc()
}
