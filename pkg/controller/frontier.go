package controller

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/cuemby/frontier/pkg/ts"
)

// FrontierEngine is the frontier engine of spec.md §4.B: it folds write and
// read-capability changes into each collection's mutable antichains,
// ratchets the implied capability forward under each collection's read
// policy, and propagates the net effect into AllowCompaction commands and
// reader-handle downgrades.
type FrontierEngine[T comparable] struct {
	registry   *Registry[T]
	dispatcher *Dispatcher[T]
	logger     zerolog.Logger
	// fatal is invoked for programmer-error conditions that spec.md §7
	// treats as unconditionally fatal (an id vanishing mid-propagation);
	// tests override it to observe instead of exiting.
	fatal func(err error)
}

// NewFrontierEngine returns a FrontierEngine wired to registry and
// dispatcher.
func NewFrontierEngine[T comparable](registry *Registry[T], dispatcher *Dispatcher[T], logger zerolog.Logger) *FrontierEngine[T] {
	e := &FrontierEngine[T]{registry: registry, dispatcher: dispatcher, logger: logger}
	e.fatal = func(err error) {
		e.logger.Fatal().Err(err).Msg("frontier engine encountered an inconsistent registry")
	}
	return e
}

// recomputeImpliedCapability re-evaluates cs's read policy against its
// current write frontier and, if the proposed capability is at or beyond
// the current implied capability (the ratchet only ever moves forward),
// installs it and returns the resulting change batch. It returns nil if the
// policy's proposal would regress the implied capability, or if the
// resulting change batch would be empty.
func (e *FrontierEngine[T]) recomputeImpliedCapability(cs *CollectionState[T]) *ts.ChangeBatch[T] {
	proposed := cs.ReadPolicy.Frontier(cs.WriteFrontier.Frontier())
	if !cs.ImpliedCapability.LessEqual(proposed) {
		return nil
	}

	batch := ts.NewChangeBatch[T]()
	for _, t := range proposed.Elements() {
		batch.Add(t, 1)
	}
	for _, t := range cs.ImpliedCapability.Elements() {
		batch.Add(t, -1)
	}
	cs.ImpliedCapability = proposed
	if batch.IsEmpty() {
		return nil
	}
	return batch
}

// UpdateWriteFrontiers folds per-collection write-frontier changes in, then
// re-ratchets each touched collection's implied capability and propagates
// the net effect (spec.md §4.B).
func (e *FrontierEngine[T]) UpdateWriteFrontiers(ctx context.Context, updates map[CollectionID]*ts.ChangeBatch[T]) error {
	capChanges := map[CollectionID]*ts.ChangeBatch[T]{}
	for id, batch := range updates {
		cs, err := e.registry.Get(id)
		if err != nil {
			e.fatal(err)
			return err
		}
		cs.WriteFrontier.UpdateIter(batch.Drain())
		if delta := e.recomputeImpliedCapability(cs); delta != nil {
			capChanges[id] = delta
		}
	}
	if len(capChanges) == 0 {
		return nil
	}
	return e.propagate(ctx, capChanges)
}

// UpdateReadCapabilities folds external read-capability changes straight
// into propagation, with no write-frontier or policy step in between
// (spec.md §4.B).
func (e *FrontierEngine[T]) UpdateReadCapabilities(ctx context.Context, updates map[CollectionID]*ts.ChangeBatch[T]) error {
	return e.propagate(ctx, updates)
}

// propagate folds a set of per-collection read-capability changes into
// each collection's ReadCapabilities multiset, processing ids in
// descending order exactly as spec.md §4.B and §9 require, and commits
// whatever net compaction follows.
//
// An id in updates that the registry no longer recognizes is a programmer
// error in the caller (every id reaching this point should have come from
// either create_sources' own installation or an earlier successful lookup),
// so it is treated as fatal rather than silently skipped, unlike
// set_read_policy's unknown-id handling.
func (e *FrontierEngine[T]) propagate(ctx context.Context, updates map[CollectionID]*ts.ChangeBatch[T]) error {
	ids := make([]CollectionID, 0, len(updates))
	for id := range updates {
		ids = append(ids, id)
	}
	sort.Sort(sort.Reverse(collectionIDs(ids)))

	netDeltas := map[CollectionID]*ts.ChangeBatch[T]{}
	for _, id := range ids {
		cs, err := e.registry.Get(id)
		if err != nil {
			e.fatal(err)
			return err
		}
		delta := cs.ReadCapabilities.UpdateIter(updates[id].Drain())
		if len(delta) == 0 {
			continue
		}
		nb := ts.NewChangeBatch[T]()
		nb.Extend(delta)
		netDeltas[id] = nb
	}

	return e.commitCompaction(ctx, netDeltas)
}

// commitCompaction downgrades each touched collection's reader handle to
// its new read-capabilities frontier and sends a single AllowCompaction
// command carrying every (id, frontier) pair, in the same descending-id
// order the downgrades happened in (spec.md §4.B invariant: downgrade_since
// is called with exactly the frontiers the emitted command carries).
func (e *FrontierEngine[T]) commitCompaction(ctx context.Context, netDeltas map[CollectionID]*ts.ChangeBatch[T]) error {
	ids := make([]CollectionID, 0, len(netDeltas))
	for id, batch := range netDeltas {
		if !batch.IsEmpty() {
			ids = append(ids, id)
		}
	}
	sort.Sort(sort.Reverse(collectionIDs(ids)))

	var cmds []AllowCompactionCommand[T]
	for _, id := range ids {
		cs, err := e.registry.Get(id)
		if err != nil {
			e.fatal(err)
			return err
		}
		frontier := cs.ReadCapabilities.Frontier()
		if err := cs.Handles.Reader.DowngradeSince(ctx, frontier); err != nil {
			e.fatal(err)
			return err
		}
		cmds = append(cmds, AllowCompactionCommand[T]{ID: id, Frontier: frontier})
	}

	if len(cmds) == 0 {
		return nil
	}
	return e.dispatcher.AllowCompaction(ctx, cmds)
}

type collectionIDs []CollectionID

func (c collectionIDs) Len() int           { return len(c) }
func (c collectionIDs) Less(i, j int) bool { return c[i] < c[j] }
func (c collectionIDs) Swap(i, j int)      { c[i], c[j] = c[j], c[i] }
