package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CollectionsRegistered counts every collection create_sources has ever
	// installed. The registry never shrinks (spec.md §3 invariant 4: a
	// dropped collection's slot stays, just fully compacted), so this is a
	// counter, not a gauge.
	CollectionsRegistered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "controller_collections_registered_total",
			Help: "Total number of collections installed by create_sources",
		},
	)

	AppendTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "controller_append_total",
			Help: "Total number of append commands processed, by outcome",
		},
		[]string{"outcome"},
	)

	AppendDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "controller_append_duration_seconds",
			Help:    "Time taken to process one append batch",
			Buckets: prometheus.DefBuckets,
		},
	)

	CompareAndAppendMismatchTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "controller_compare_and_append_mismatch_total",
			Help: "Total number of compare-and-append calls rejected for a stale expected upper",
		},
	)

	AllowCompactionTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "controller_allow_compaction_total",
			Help: "Total number of AllowCompaction commands sent to storage workers",
		},
	)

	AllowCompactionBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "controller_allow_compaction_batch_size",
			Help:    "Number of (collection, frontier) pairs carried by each AllowCompaction command",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128, 256},
		},
	)

	SetReadPolicyUnknownIDTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "controller_set_read_policy_unknown_id_total",
			Help: "Total number of set_read_policy entries that referenced an unregistered collection id",
		},
	)

	// Raft metrics, carried for optional HA replication of controller state.
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "controller_raft_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	RaftPeers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "controller_raft_peers_total",
			Help: "Total number of Raft peers in the cluster",
		},
	)

	RaftLogIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "controller_raft_log_index",
			Help: "Current Raft log index",
		},
	)

	RaftAppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "controller_raft_applied_index",
			Help: "Last applied Raft log index",
		},
	)

	RaftApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "controller_raft_apply_duration_seconds",
			Help:    "Time taken to apply a Raft log entry in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RaftCommitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "controller_raft_commit_duration_seconds",
			Help:    "Time taken to commit a Raft log entry in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(CollectionsRegistered)
	prometheus.MustRegister(AppendTotal)
	prometheus.MustRegister(AppendDuration)
	prometheus.MustRegister(CompareAndAppendMismatchTotal)
	prometheus.MustRegister(AllowCompactionTotal)
	prometheus.MustRegister(AllowCompactionBatchSize)
	prometheus.MustRegister(SetReadPolicyUnknownIDTotal)
	prometheus.MustRegister(RaftLeader)
	prometheus.MustRegister(RaftPeers)
	prometheus.MustRegister(RaftLogIndex)
	prometheus.MustRegister(RaftAppliedIndex)
	prometheus.MustRegister(RaftApplyDuration)
	prometheus.MustRegister(RaftCommitDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
