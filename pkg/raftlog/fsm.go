package raftlog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/hashicorp/raft"
	"github.com/rs/zerolog"

	"github.com/cuemby/frontier/pkg/controller"
	"github.com/cuemby/frontier/pkg/ts"
)

// ControllerFSM implements raft.FSM over a *controller.Controller[T]: every
// mutating controller operation becomes a replicated log entry, applied in
// the same order on every node.
type ControllerFSM[T comparable] struct {
	dom    ts.Domain[T]
	ctrl   *controller.Controller[T]
	logger zerolog.Logger
}

// NewControllerFSM wires an FSM over ctrl. ctrl's own mutex already
// serializes every operation, so the FSM itself holds no lock of its own.
func NewControllerFSM[T comparable](dom ts.Domain[T], ctrl *controller.Controller[T], logger zerolog.Logger) *ControllerFSM[T] {
	return &ControllerFSM[T]{dom: dom, ctrl: ctrl, logger: logger}
}

// Apply applies one committed Raft log entry to the controller. Returning a
// non-nil error here (rather than panicking) lets a caller using
// raft.ApplyFuture.Response surface the failure to whichever client proposed
// the command; it does not halt replication.
func (f *ControllerFSM[T]) Apply(log *raft.Log) any {
	var cmd Command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("raftlog: unmarshal command: %w", err)
	}

	ctx := context.Background()

	switch cmd.Op {
	case opCreateSources:
		var wire []wireBinding
		if err := json.Unmarshal(cmd.Data, &wire); err != nil {
			return err
		}
		bindings := make([]controller.Binding[T], len(wire))
		for i, b := range wire {
			bindings[i] = controller.Binding[T]{
				ID:          controller.CollectionID(b.ID),
				Description: controller.Description(b.Description),
				Since:       decodeAntichain(f.dom, b.Since),
			}
		}
		return f.ctrl.CreateSources(ctx, bindings)

	case opAppend:
		var wire []wireAppendCommand
		if err := json.Unmarshal(cmd.Data, &wire); err != nil {
			return err
		}
		cmds := make([]controller.AppendCommand[T], len(wire))
		for i, c := range wire {
			rows := make([]controller.RowUpdate[T], len(c.Updates))
			for j, u := range c.Updates {
				rows[j] = controller.RowUpdate[T]{Row: u.Row, Time: f.dom.Decode(u.Time), Diff: u.Diff}
			}
			cmds[i] = controller.AppendCommand[T]{
				ID:       controller.CollectionID(c.ID),
				Updates:  rows,
				NewUpper: f.dom.Decode(c.NewUpper),
			}
		}
		return f.ctrl.Append(ctx, cmds)

	case opSetReadPolicy:
		var wire []wirePolicyBinding
		if err := json.Unmarshal(cmd.Data, &wire); err != nil {
			return err
		}
		policies := make([]controller.PolicyBinding[T], len(wire))
		for i, p := range wire {
			var policy controller.ReadPolicy[T]
			switch p.Kind {
			case policyKindValidFrom:
				policy = controller.ValidFrom(decodeAntichain(f.dom, p.Since))
			case policyKindLagBy:
				delta := p.Delta
				policy = controller.LagBy(f.dom, func(t T) T {
					encoded := f.dom.Encode(t) - delta
					if encoded < f.dom.Encode(f.dom.Minimum()) {
						encoded = f.dom.Encode(f.dom.Minimum())
					}
					return f.dom.Decode(encoded)
				})
			default:
				return fmt.Errorf("raftlog: unknown read policy kind %q", p.Kind)
			}
			policies[i] = controller.PolicyBinding[T]{ID: controller.CollectionID(p.ID), Policy: policy}
		}
		return f.ctrl.SetReadPolicy(ctx, policies)

	case opUpdateWriteFrontiers:
		var wire wireChangeBatch
		if err := json.Unmarshal(cmd.Data, &wire); err != nil {
			return err
		}
		updates, err := decodeChangeBatch(f.dom, wire)
		if err != nil {
			return err
		}
		return f.ctrl.UpdateWriteFrontiers(ctx, updates)

	case opUpdateReadCapabilities:
		var wire wireChangeBatch
		if err := json.Unmarshal(cmd.Data, &wire); err != nil {
			return err
		}
		updates, err := decodeChangeBatch(f.dom, wire)
		if err != nil {
			return err
		}
		return f.ctrl.UpdateReadCapabilities(ctx, updates)

	case opDropSources:
		var ids []uint64
		if err := json.Unmarshal(cmd.Data, &ids); err != nil {
			return err
		}
		collectionIDs := make([]controller.CollectionID, len(ids))
		for i, id := range ids {
			collectionIDs[i] = controller.CollectionID(id)
		}
		return f.ctrl.DropSources(ctx, collectionIDs)

	default:
		return fmt.Errorf("raftlog: unknown command: %s", cmd.Op)
	}
}

// Snapshot captures every registered collection for Raft's log compaction.
func (f *ControllerFSM[T]) Snapshot() (raft.FSMSnapshot, error) {
	snaps := f.ctrl.Snapshot()
	wire := make([]wireCollectionSnapshot, len(snaps))
	for i, s := range snaps {
		wire[i] = wireCollectionSnapshot{
			ID:                uint64(s.ID),
			Description:       string(s.Description),
			Since:             encodeAntichain(f.dom, s.Since),
			ReadCapabilities:  encodeAntichain(f.dom, s.ReadCapabilities),
			ImpliedCapability: encodeAntichain(f.dom, s.ImpliedCapability),
			WriteFrontier:     encodeAntichain(f.dom, s.WriteFrontier),
			PersistShardID:    s.PersistShardID.String(),
			TimestampShardID:  s.TimestampShardID.String(),
		}
	}
	return &controllerSnapshot{collections: wire}, nil
}

// Restore replaces local controller state with a previously-taken snapshot,
// reopening each collection's durable shard handles.
func (f *ControllerFSM[T]) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var wire []wireCollectionSnapshot
	if err := json.NewDecoder(rc).Decode(&wire); err != nil {
		return fmt.Errorf("raftlog: decode snapshot: %w", err)
	}

	snaps := make([]controller.CollectionSnapshot[T], len(wire))
	for i, s := range wire {
		persistShard, err := parseShardID(s.PersistShardID)
		if err != nil {
			return fmt.Errorf("raftlog: restore collection %d: %w", s.ID, err)
		}
		timestampShard, err := parseShardID(s.TimestampShardID)
		if err != nil {
			return fmt.Errorf("raftlog: restore collection %d: %w", s.ID, err)
		}
		snaps[i] = controller.CollectionSnapshot[T]{
			ID:                controller.CollectionID(s.ID),
			Description:       controller.Description(s.Description),
			Since:             decodeAntichain(f.dom, s.Since),
			ReadCapabilities:  decodeAntichain(f.dom, s.ReadCapabilities),
			ImpliedCapability: decodeAntichain(f.dom, s.ImpliedCapability),
			WriteFrontier:     decodeAntichain(f.dom, s.WriteFrontier),
			PersistShardID:    persistShard,
			TimestampShardID:  timestampShard,
		}
	}

	return f.ctrl.Restore(context.Background(), snaps)
}

// controllerSnapshot implements raft.FSMSnapshot.
type controllerSnapshot struct {
	collections []wireCollectionSnapshot
}

func (s *controllerSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s.collections); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

func (s *controllerSnapshot) Release() {}
