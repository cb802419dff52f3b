// Package raftlog replicates frontier controller state across a cluster of
// controller nodes using Raft (github.com/hashicorp/raft), for deployments
// that want the controller itself to survive a node failure rather than
// relying on an external orchestrator to restart a fresh one against the
// same durable shard store.
//
// ControllerFSM applies committed log entries to a *controller.Controller[T]
// directly, one entry per call to a mutating controller operation
// (create_sources, append, set_read_policy, update_write_frontiers,
// update_read_capabilities, drop_sources). Node wraps raft.NewRaft's
// bootstrap/join lifecycle, and Proposer is the client-facing front door
// that turns a typed controller call into a replicated Command.
//
// Running without raftlog at all is a fully valid deployment: spec.md's
// controller is defined over a single cooperative actor, and HA replication
// is an optional operational concern layered on top, not a requirement of
// its core semantics.
package raftlog
