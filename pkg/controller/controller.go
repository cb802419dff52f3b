package controller

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cuemby/frontier/pkg/log"
	"github.com/cuemby/frontier/pkg/metrics"
	"github.com/cuemby/frontier/pkg/storage"
	"github.com/cuemby/frontier/pkg/ts"
)

// Controller is the frontier accounting engine's composition root. It owns
// the registry, frontier engine, append coordinator and command dispatcher,
// and serializes every public operation under one mutex: the
// single-threaded cooperative actor of spec.md §5. No method blocks inside
// the critical section on anything but the durable store and the worker
// channel send, both of which spec.md treats as bounded operations.
type Controller[T comparable] struct {
	mu sync.Mutex

	dom        ts.Domain[T]
	registry   *Registry[T]
	frontier   *FrontierEngine[T]
	append     *AppendCoordinator[T]
	dispatcher *Dispatcher[T]
	shardStore storage.ShardStore[T]
	catalog    storage.Catalog

	logger zerolog.Logger
}

// New wires a Controller over dom, shardStore, catalog and channel.
func New[T comparable](dom ts.Domain[T], shardStore storage.ShardStore[T], catalog storage.Catalog, channel WorkerChannel[T]) *Controller[T] {
	logger := log.WithComponent("controller")
	registry := NewRegistry[T]()
	dispatcher := NewDispatcher[T](channel, logger)
	frontier := NewFrontierEngine[T](registry, dispatcher, logger)
	appendCoord := NewAppendCoordinator[T](registry, frontier, dom, logger)

	return &Controller[T]{
		dom:        dom,
		registry:   registry,
		frontier:   frontier,
		append:     appendCoord,
		dispatcher: dispatcher,
		shardStore: shardStore,
		catalog:    catalog,
		logger:     logger,
	}
}

// CreateSources validates and installs a batch of new collection bindings,
// then sends one CreateSources command for the collections this call
// actually installed (spec.md §4.A, §4.D).
func (c *Controller[T]) CreateSources(ctx context.Context, bindings []Binding[T]) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	accepted, err := c.registry.ValidateBindings(bindings)
	if err != nil {
		return err
	}

	cmds := make([]CreateSourceCommand[T], 0, len(accepted))
	for _, b := range accepted {
		persistShard := storage.NewShardID()
		handles, err := c.shardStore.Open(ctx, persistShard)
		if err != nil {
			return &IOError{Cause: fmt.Errorf("open persist shard for %s: %w", b.ID, err)}
		}

		timestampShardID, err := c.catalog.InsertWithoutOverwrite(ctx, "timestamp-shard-id", b.ID.String(), storage.NewShardID())
		if err != nil {
			return &IOError{Cause: fmt.Errorf("insert timestamp shard id for %s: %w", b.ID, err)}
		}

		cs := NewCollectionState(c.dom, b.Description, b.Since, persistShard, timestampShardID, handles)
		c.registry.Install(b.ID, cs)
		metrics.CollectionsRegistered.Inc()

		cmds = append(cmds, CreateSourceCommand[T]{
			ID:          b.ID,
			Description: b.Description,
			Since:       b.Since,
			Metadata: CollectionMetadata{
				PersistShard:     persistShard,
				TimestampShardID: timestampShardID,
			},
		})
	}

	return c.dispatcher.CreateSources(ctx, cmds)
}

// DropSources is sugar for setting every listed collection's read policy to
// ValidFrom(the empty frontier), which drives its implied capability (and
// hence its read capabilities) all the way to "all times reached"
// (spec.md §4.A).
func (c *Controller[T]) DropSources(ctx context.Context, ids []CollectionID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	policies := make([]PolicyBinding[T], len(ids))
	empty := ts.EmptyAntichain(c.dom)
	for i, id := range ids {
		policies[i] = PolicyBinding[T]{ID: id, Policy: ValidFrom(empty)}
	}
	return c.setReadPolicyLocked(ctx, policies)
}

// Append durably extends the listed collections (spec.md §4.C).
func (c *Controller[T]) Append(ctx context.Context, commands []AppendCommand[T]) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.append.Append(ctx, commands)
}

// UpdateWriteFrontiers folds external write-frontier changes in and
// propagates their effect (spec.md §4.B).
func (c *Controller[T]) UpdateWriteFrontiers(ctx context.Context, updates map[CollectionID]*ts.ChangeBatch[T]) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frontier.UpdateWriteFrontiers(ctx, updates)
}

// UpdateReadCapabilities folds external read-capability changes in and
// propagates their effect (spec.md §4.B).
func (c *Controller[T]) UpdateReadCapabilities(ctx context.Context, updates map[CollectionID]*ts.ChangeBatch[T]) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frontier.UpdateReadCapabilities(ctx, updates)
}

// SetReadPolicy installs a new read policy for each listed collection, in
// the order given: an id this call repeats takes its last policy, and each
// occurrence's ratchet is applied in turn, exactly as the underlying
// storage protocol this was ported from behaves. An id the registry does
// not recognize is logged and skipped, unlike every other collection
// reference in this package: set_read_policy treats an unknown id as a
// caller mistake, not a fatal inconsistency (spec.md §9).
func (c *Controller[T]) SetReadPolicy(ctx context.Context, policies []PolicyBinding[T]) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.setReadPolicyLocked(ctx, policies)
}

func (c *Controller[T]) setReadPolicyLocked(ctx context.Context, policies []PolicyBinding[T]) error {
	changes := map[CollectionID]*ts.ChangeBatch[T]{}
	for _, pb := range policies {
		cs, err := c.registry.Get(pb.ID)
		if err != nil {
			metrics.SetReadPolicyUnknownIDTotal.Inc()
			log.WithCollectionID(pb.ID.String()).Error().Msg("set_read_policy: reference to unregistered collection id")
			continue
		}
		cs.ReadPolicy = pb.Policy
		if delta := c.frontier.recomputeImpliedCapability(cs); delta != nil {
			if existing, ok := changes[pb.ID]; ok {
				existing.Extend(delta.Drain())
			} else {
				changes[pb.ID] = delta
			}
		}
	}
	if len(changes) == 0 {
		return nil
	}
	return c.frontier.propagate(ctx, changes)
}

// Collection returns the current state of a registered collection.
func (c *Controller[T]) Collection(id CollectionID) (*CollectionState[T], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.Get(id)
}

// CollectionMetadata returns the wire-level location record for a
// registered collection (spec.md §6).
func (c *Controller[T]) CollectionMetadata(id CollectionID) (CollectionMetadata, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cs, err := c.registry.Get(id)
	if err != nil {
		return CollectionMetadata{}, err
	}
	return CollectionMetadata{
		PersistShard:     cs.PersistShardID,
		TimestampShardID: cs.TimestampShardID,
	}, nil
}

// LinearizeSources is not yet implemented: the underlying protocol this
// controller was ported from stubs it out pending a decision on how
// read-then-write linearizability should be exposed across collections, and
// this port preserves that open question rather than inventing an answer
// for it (spec.md §9). It is a benign success: callers see their operation
// complete, not an error, until a later revision defines real semantics.
func (c *Controller[T]) LinearizeSources(ctx context.Context, ids []CollectionID) error {
	c.logger.Debug().Int("count", len(ids)).Msg("linearize_sources: not yet implemented, returning benign success")
	return nil
}

// Snapshot returns a description of every registered collection, in
// ascending id order, suitable for Raft snapshotting (pkg/raftlog). It does
// not capture in-flight dispatcher state or read-policy function values:
// a restored collection's read policy is reset to ValidFrom(its implied
// capability) until a fresh set_read_policy call overrides it.
func (c *Controller[T]) Snapshot() []CollectionSnapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := c.registry.IDs()
	out := make([]CollectionSnapshot[T], 0, len(ids))
	for _, id := range ids {
		cs, err := c.registry.Get(id)
		if err != nil {
			continue
		}
		out = append(out, CollectionSnapshot[T]{
			ID:                id,
			Description:       cs.Description,
			Since:             cs.Since,
			ReadCapabilities:  cs.ReadCapabilities.Frontier(),
			ImpliedCapability: cs.ImpliedCapability,
			WriteFrontier:     cs.WriteFrontier.Frontier(),
			PersistShardID:    cs.PersistShardID,
			TimestampShardID:  cs.TimestampShardID,
		})
	}
	return out
}

// Restore reinstalls a set of collections captured by Snapshot, reopening
// each persist shard's durable handles. It bypasses create_sources'
// id-reuse validation and dispatcher notification: a restoring node is
// catching its local registry up to state the cluster already agreed on,
// not proposing new collections.
func (c *Controller[T]) Restore(ctx context.Context, snaps []CollectionSnapshot[T]) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, snap := range snaps {
		handles, err := c.shardStore.Open(ctx, snap.PersistShardID)
		if err != nil {
			return &IOError{Cause: fmt.Errorf("reopen persist shard for %s: %w", snap.ID, err)}
		}
		cs := NewCollectionState(c.dom, snap.Description, snap.Since, snap.PersistShardID, snap.TimestampShardID, handles)
		cs.ReadCapabilities = ts.NewMutableAntichain(c.dom)
		cs.ReadCapabilities.UpdateIter(sinceAsUpdates(snap.ReadCapabilities))
		cs.ImpliedCapability = snap.ImpliedCapability
		cs.ReadPolicy = ValidFrom(snap.ImpliedCapability)
		cs.WriteFrontier = ts.NewMutableAntichain(c.dom)
		cs.WriteFrontier.UpdateIter(sinceAsUpdates(snap.WriteFrontier))
		c.registry.Install(snap.ID, cs)
	}
	return nil
}

// Shutdown releases the controller's worker channel, if it supports being
// closed.
func (c *Controller[T]) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if closer, ok := c.dispatcher.channel.(interface{ Close() }); ok {
		closer.Close()
	}
}
