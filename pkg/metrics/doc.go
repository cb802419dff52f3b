/*
Package metrics defines and registers the frontier controller's Prometheus
metrics, exposed over HTTP for scraping.

# Architecture

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │          Prometheus Registry                │          │
	│  │  - Global DefaultRegistry                   │          │
	│  │  - MustRegister at package init             │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Metric Categories                 │          │
	│  │                                              │          │
	│  │  Registry:   collections registered         │          │
	│  │  Append:     append outcome + duration       │          │
	│  │  Compaction: AllowCompaction batches         │          │
	│  │  Policy:     set_read_policy unknown ids     │          │
	│  │  Raft:       leader, peers, log/applied idx  │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          HTTP Metrics Endpoint              │          │
	│  │  - Path: /metrics (Handler())                │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Metrics Catalog

controller_collections_registered_total (Counter):
  Total collections installed by create_sources. The registry never
  shrinks (a dropped collection's slot stays, just fully compacted), so
  this only goes up.

controller_append_total{outcome} (CounterVec):
  Total append commands processed, labeled by outcome: success,
  missing_identifier, update_beyond_upper, invalid_upper, client_error.

controller_append_duration_seconds (Histogram):
  Time to process one append batch.

controller_compare_and_append_mismatch_total (Counter):
  Total compare-and-append calls rejected for a stale expected upper.

controller_allow_compaction_total (Counter):
  Total AllowCompaction commands sent to storage workers.

controller_allow_compaction_batch_size (Histogram):
  Number of (collection, frontier) pairs carried by each AllowCompaction
  command.

controller_set_read_policy_unknown_id_total (Counter):
  Total set_read_policy entries that referenced an unregistered collection
  id, a caller mistake, logged and skipped rather than fatal.

controller_raft_is_leader (Gauge):
  Whether this node is the Raft leader (1 = leader, 0 = follower), carried
  for deployments with pkg/raftlog's optional HA replication enabled.

controller_raft_peers_total, controller_raft_log_index,
controller_raft_applied_index (Gauge):
  Cluster size and replication progress, refreshed by raftlog.Node.Refresh.

controller_raft_apply_duration_seconds, controller_raft_commit_duration_seconds (Histogram):
  Time to apply/commit one Raft log entry.

# Usage

	import "github.com/cuemby/frontier/pkg/metrics"

	metrics.AppendTotal.WithLabelValues("success").Inc()

	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDuration(metrics.AppendDuration)

	http.Handle("/metrics", metrics.Handler())

# Design Patterns

All metrics are registered in init() via MustRegister, so they are safe to
reference from any package without further setup. Label cardinality is kept
low and bounded: append outcomes are a small fixed set, never a collection
id or row key.
*/
package metrics
