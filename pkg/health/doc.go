/*
Package health provides readiness probes for the frontier controller's own
dependencies: the durable shard store, the metadata catalog, the worker
command channel, and (when HA replication is enabled) Raft leadership.

# Architecture

	┌─────────────────────────────────────────────────────────────┐
	│                     Checker Interface                        │
	│  • Check(ctx) Result                                         │
	│  • Type() CheckType                                          │
	└────────┬─────────────────────────────────────────────────────┘
	         │
	    ┌────┴──────┐
	    ▼           ▼
	┌────────┐  ┌──────┐
	│  HTTP  │  │ TCP  │
	│Checker │  │Checker│
	└────────┘  └──────┘

# Usage

	registry := health.NewRegistry()
	registry.Register("worker-channel", health.NewTCPChecker(workerAddr))
	registry.Register("raft-peer", health.NewHTTPChecker(peerHealthURL))

	results := registry.CheckAll(ctx)
	for name, result := range results {
		if !result.Healthy {
			log.Error().Str("check", name).Msg(result.Message)
		}
	}

Status tracks hysteresis across repeated checks: a dependency is only
reported unhealthy after Config.Retries consecutive failures, preventing a
single transient blip from flapping the controller's reported readiness.
*/
package health
