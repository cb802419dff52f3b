package raftlog

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/rs/zerolog"

	"github.com/cuemby/frontier/pkg/log"
	"github.com/cuemby/frontier/pkg/metrics"
)

// Config holds the parameters for bootstrapping or joining a replicated
// controller node.
type Config struct {
	NodeID   string
	BindAddr string
	DataDir  string
}

// Node wraps a *raft.Raft instance over a ControllerFSM, plus the durable
// log/stable/snapshot stores that back it, tuned for sub-10s failover on a
// LAN/edge deployment.
type Node struct {
	nodeID   string
	bindAddr string
	dataDir  string
	fsm      raft.FSM

	raft   *raft.Raft
	logger zerolog.Logger
}

// NewNode constructs a Node around fsm, without starting Raft. Call
// Bootstrap (first node) or Join (every other node) before serving traffic.
func NewNode(cfg Config, fsm raft.FSM) *Node {
	return &Node{
		nodeID:   cfg.NodeID,
		bindAddr: cfg.BindAddr,
		dataDir:  cfg.DataDir,
		fsm:      fsm,
		logger:   log.WithNodeID(cfg.NodeID),
	}
}

func (n *Node) raftConfig() *raft.Config {
	config := raft.DefaultConfig()
	config.LocalID = raft.ServerID(n.nodeID)

	// Tuned for LAN/edge deployments rather than Raft's WAN-conservative
	// defaults (HeartbeatTimeout=1s, ElectionTimeout=1s,
	// LeaderLeaseTimeout=500ms): target sub-10s failover.
	config.HeartbeatTimeout = 500 * time.Millisecond
	config.ElectionTimeout = 500 * time.Millisecond
	config.CommitTimeout = 50 * time.Millisecond
	config.LeaderLeaseTimeout = 250 * time.Millisecond
	return config
}

func (n *Node) openStores(config *raft.Config) (*raft.Raft, error) {
	if err := os.MkdirAll(n.dataDir, 0755); err != nil {
		return nil, fmt.Errorf("raftlog: create data directory: %w", err)
	}

	addr, err := net.ResolveTCPAddr("tcp", n.bindAddr)
	if err != nil {
		return nil, fmt.Errorf("raftlog: resolve bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(n.bindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("raftlog: create transport: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(n.dataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("raftlog: create snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(n.dataDir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("raftlog: create log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(n.dataDir, "raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("raftlog: create stable store: %w", err)
	}

	r, err := raft.NewRaft(config, n.fsm, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, fmt.Errorf("raftlog: create raft: %w", err)
	}
	return r, nil
}

// Bootstrap initializes a brand-new single-node cluster with this node as
// its only member.
func (n *Node) Bootstrap() error {
	config := n.raftConfig()
	r, err := n.openStores(config)
	if err != nil {
		return err
	}
	n.raft = r

	configuration := raft.Configuration{
		Servers: []raft.Server{{ID: config.LocalID, Address: raft.ServerAddress(n.bindAddr)}},
	}
	future := r.BootstrapCluster(configuration)
	if err := future.Error(); err != nil {
		return fmt.Errorf("raftlog: bootstrap cluster: %w", err)
	}

	n.logger.Info().Str("node_id", n.nodeID).Msg("bootstrapped single-node raft cluster")
	return nil
}

// Join starts Raft on this node, ready to be added as a voter by the
// existing leader via AddVoter. It does not contact the leader itself, and
// cmd/controllerd does not request AddVoter either: the node becomes a
// voter only when the leader's side calls AddVoter for it.
func (n *Node) Join() error {
	config := n.raftConfig()
	r, err := n.openStores(config)
	if err != nil {
		return err
	}
	n.raft = r
	n.logger.Info().Str("node_id", n.nodeID).Msg("raft started, awaiting AddVoter from cluster leader")
	return nil
}

// AddVoter adds nodeID@address to the cluster. Only the leader may call this.
func (n *Node) AddVoter(nodeID, address string) error {
	if n.raft == nil {
		return fmt.Errorf("raftlog: raft not started")
	}
	if !n.IsLeader() {
		return fmt.Errorf("raftlog: not the leader, current leader: %s", n.LeaderAddr())
	}
	future := n.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(address), 0, 10*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("raftlog: add voter %s: %w", nodeID, err)
	}
	return nil
}

// RemoveServer removes nodeID from the cluster. Only the leader may call this.
func (n *Node) RemoveServer(nodeID string) error {
	if n.raft == nil {
		return fmt.Errorf("raftlog: raft not started")
	}
	if !n.IsLeader() {
		return fmt.Errorf("raftlog: not the leader")
	}
	future := n.raft.RemoveServer(raft.ServerID(nodeID), 0, 10*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("raftlog: remove server %s: %w", nodeID, err)
	}
	return nil
}

// Servers returns the current cluster configuration.
func (n *Node) Servers() ([]raft.Server, error) {
	if n.raft == nil {
		return nil, fmt.Errorf("raftlog: raft not started")
	}
	future := n.raft.GetConfiguration()
	if err := future.Error(); err != nil {
		return nil, fmt.Errorf("raftlog: get configuration: %w", err)
	}
	return future.Configuration().Servers, nil
}

// IsLeader reports whether this node currently holds Raft leadership.
func (n *Node) IsLeader() bool {
	return n.raft != nil && n.raft.State() == raft.Leader
}

// LeaderAddr returns the current leader's bind address, or "" if unknown.
func (n *Node) LeaderAddr() string {
	if n.raft == nil {
		return ""
	}
	return string(n.raft.Leader())
}

// Apply proposes data as a new log entry and blocks until it is committed
// and applied, returning the FSM's Apply return value. timeout bounds how
// long to wait for the round trip.
func (n *Node) Apply(data []byte, timeout time.Duration) (any, error) {
	if n.raft == nil {
		return nil, fmt.Errorf("raftlog: raft not started")
	}
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.RaftApplyDuration)

	future := n.raft.Apply(data, timeout)
	if err := future.Error(); err != nil {
		return nil, fmt.Errorf("raftlog: apply: %w", err)
	}
	if resp := future.Response(); resp != nil {
		if err, ok := resp.(error); ok && err != nil {
			return nil, err
		}
		return resp, nil
	}
	return nil, nil
}

// Refresh updates the Raft gauges in pkg/metrics from the node's current
// state. Call this on a timer from cmd/controllerd's serve loop.
func (n *Node) Refresh() {
	if n.raft == nil {
		return
	}
	if n.IsLeader() {
		metrics.RaftLeader.Set(1)
	} else {
		metrics.RaftLeader.Set(0)
	}
	metrics.RaftLogIndex.Set(float64(n.raft.LastIndex()))
	metrics.RaftAppliedIndex.Set(float64(n.raft.AppliedIndex()))
	if servers, err := n.Servers(); err == nil {
		metrics.RaftPeers.Set(float64(len(servers)))
	}
}

// Shutdown gracefully stops Raft.
func (n *Node) Shutdown() error {
	if n.raft == nil {
		return nil
	}
	return n.raft.Shutdown().Error()
}
