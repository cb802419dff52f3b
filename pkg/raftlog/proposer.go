package raftlog

import (
	"time"

	"github.com/cuemby/frontier/pkg/controller"
	"github.com/cuemby/frontier/pkg/ts"
)

// ApplyTimeout bounds how long a Proposer call waits for its command to
// commit and apply.
const ApplyTimeout = 5 * time.Second

// Proposer turns controller operations into replicated Raft log entries. It
// is the HA-enabled front door for callers that want replication instead of
// calling a *controller.Controller[T] directly (cmd/controllerd does not
// construct one): every call here must round-trip through the cluster's
// leader before the local state reflects it.
type Proposer[T comparable] struct {
	dom  ts.Domain[T]
	node *Node
}

// NewProposer wires a Proposer over node for timestamp domain dom.
func NewProposer[T comparable](dom ts.Domain[T], node *Node) *Proposer[T] {
	return &Proposer[T]{dom: dom, node: node}
}

func (p *Proposer[T]) apply(op string, payload any) error {
	data, err := marshalCommand(op, payload)
	if err != nil {
		return err
	}
	resp, err := p.node.Apply(data, ApplyTimeout)
	if err != nil {
		return err
	}
	if respErr, ok := resp.(error); ok && respErr != nil {
		return respErr
	}
	return nil
}

// CreateSources replicates a create_sources batch.
func (p *Proposer[T]) CreateSources(bindings []controller.Binding[T]) error {
	wire := make([]wireBinding, len(bindings))
	for i, b := range bindings {
		wire[i] = wireBinding{
			ID:          uint64(b.ID),
			Description: string(b.Description),
			Since:       encodeAntichain(p.dom, b.Since),
		}
	}
	return p.apply(opCreateSources, wire)
}

// Append replicates an append batch.
func (p *Proposer[T]) Append(commands []controller.AppendCommand[T]) error {
	wire := make([]wireAppendCommand, len(commands))
	for i, c := range commands {
		updates := make([]wireRowUpdate, len(c.Updates))
		for j, u := range c.Updates {
			updates[j] = wireRowUpdate{Row: u.Row, Time: p.dom.Encode(u.Time), Diff: u.Diff}
		}
		wire[i] = wireAppendCommand{ID: uint64(c.ID), Updates: updates, NewUpper: p.dom.Encode(c.NewUpper)}
	}
	return p.apply(opAppend, wire)
}

// SetReadPolicyValidFrom replicates a set_read_policy batch of ValidFrom
// policies, the only policy shape besides LagBy that survives replication
// (CustomPolicy function values cannot be marshaled).
func (p *Proposer[T]) SetReadPolicyValidFrom(ids []controller.CollectionID, frontier ts.Antichain[T]) error {
	wire := make([]wirePolicyBinding, len(ids))
	for i, id := range ids {
		wire[i] = wirePolicyBinding{ID: uint64(id), Kind: policyKindValidFrom, Since: encodeAntichain(p.dom, frontier)}
	}
	return p.apply(opSetReadPolicy, wire)
}

// SetReadPolicyLagBy replicates a set_read_policy batch of LagBy policies
// with a fixed delta in the domain's encoded units.
func (p *Proposer[T]) SetReadPolicyLagBy(ids []controller.CollectionID, delta int64) error {
	wire := make([]wirePolicyBinding, len(ids))
	for i, id := range ids {
		wire[i] = wirePolicyBinding{ID: uint64(id), Kind: policyKindLagBy, Delta: delta}
	}
	return p.apply(opSetReadPolicy, wire)
}

// UpdateWriteFrontiers replicates an external write-frontier update batch.
func (p *Proposer[T]) UpdateWriteFrontiers(updates map[controller.CollectionID]*ts.ChangeBatch[T]) error {
	return p.apply(opUpdateWriteFrontiers, encodeChangeBatch(p.dom, updates))
}

// UpdateReadCapabilities replicates an external read-capability update batch.
func (p *Proposer[T]) UpdateReadCapabilities(updates map[controller.CollectionID]*ts.ChangeBatch[T]) error {
	return p.apply(opUpdateReadCapabilities, encodeChangeBatch(p.dom, updates))
}

// DropSources replicates a drop_sources batch.
func (p *Proposer[T]) DropSources(ids []controller.CollectionID) error {
	wire := make([]uint64, len(ids))
	for i, id := range ids {
		wire[i] = uint64(id)
	}
	return p.apply(opDropSources, wire)
}
