package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for contact reconciliation. All record
// methods are nil-safe so tests can run without a registry.
type Metrics struct {
	identifyRequests *prometheus.CounterVec
	identifyDuration prometheus.Histogram
	contactsCreated  *prometheus.CounterVec
	clusterMerges    prometheus.Counter
	conflictRetries  prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		identifyRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "coalesce_identify_requests_total",
			Help: "Total identify requests by outcome",
		}, []string{"outcome"}),
		identifyDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "coalesce_identify_duration_seconds",
			Help:    "Latency of identify requests",
			Buckets: prometheus.DefBuckets,
		}),
		contactsCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "coalesce_contacts_created_total",
			Help: "Contacts created by link precedence",
		}, []string{"precedence"}),
		clusterMerges: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coalesce_cluster_merges_total",
			Help: "Clusters merged by demoting a primary",
		}),
		conflictRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coalesce_identify_conflict_retries_total",
			Help: "Identify attempts re-run after a write conflict",
		}),
	}
}

// RecordIdentify observes a finished identify request.
func (m *Metrics) RecordIdentify(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.identifyRequests.WithLabelValues(outcome).Inc()
	m.identifyDuration.Observe(duration.Seconds())
}

// RecordContactCreated counts a newly inserted contact.
func (m *Metrics) RecordContactCreated(precedence string) {
	if m == nil {
		return
	}
	m.contactsCreated.WithLabelValues(precedence).Inc()
}

// RecordMerge counts demotions applied while merging clusters.
func (m *Metrics) RecordMerge(demotions int) {
	if m == nil {
		return
	}
	m.clusterMerges.Add(float64(demotions))
}

// RecordConflictRetry counts a re-run of the identify unit of work.
func (m *Metrics) RecordConflictRetry() {
	if m == nil {
		return
	}
	m.conflictRetries.Inc()
}
