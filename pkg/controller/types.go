// Package controller implements the frontier accounting engine: the
// registry of live collections, the read/write frontier bookkeeping over
// them, the append coordinator that durably extends collections, and the
// command dispatcher that keeps storage workers in sync with compaction
// decisions.
package controller

import (
	"fmt"

	"github.com/cuemby/frontier/pkg/storage"
	"github.com/cuemby/frontier/pkg/ts"
)

// CollectionID is the opaque, globally-unique identifier a caller mints for
// a collection before calling CreateSources. It must total-order so the
// registry and frontier engine can process batches in a fixed, deterministic
// order regardless of map iteration.
type CollectionID uint64

// Description is the opaque source-description payload carried alongside a
// collection's binding. Two bindings for the same id are the same binding
// only if their descriptions compare equal.
type Description string

// Binding is one entry of a create_sources batch: a collection id, its
// opaque description, and its initial since frontier.
type Binding[T comparable] struct {
	ID          CollectionID
	Description Description
	Since       ts.Antichain[T]
}

// CollectionMetadata is the wire-level location record handed to storage
// workers alongside a CreateSources command (spec.md §6).
type CollectionMetadata struct {
	BlobURI          string
	ConsensusURI     string
	PersistShard     storage.ShardID
	TimestampShardID storage.ShardID
}

// CollectionState is everything the controller tracks for one live
// collection (spec.md §3).
type CollectionState[T comparable] struct {
	Description Description
	Since       ts.Antichain[T]

	ReadCapabilities  *ts.MutableAntichain[T]
	ImpliedCapability ts.Antichain[T]
	ReadPolicy        ReadPolicy[T]
	WriteFrontier     *ts.MutableAntichain[T]

	PersistShardID   storage.ShardID
	TimestampShardID storage.ShardID

	Handles storage.Handles[T]
}

// NewCollectionState builds the initial state for a freshly-bound
// collection: read_capabilities seeded at since with count 1, implied
// capability equal to since, read policy ValidFrom(since), and write
// frontier seeded at the timestamp domain's minimum.
func NewCollectionState[T comparable](dom ts.Domain[T], desc Description, since ts.Antichain[T], persistShard, timestampShardID storage.ShardID, handles storage.Handles[T]) *CollectionState[T] {
	readCaps := ts.NewMutableAntichain(dom)
	readCaps.UpdateIter(sinceAsUpdates(since))

	return &CollectionState[T]{
		Description:       desc,
		Since:             since,
		ReadCapabilities:  readCaps,
		ImpliedCapability: since,
		ReadPolicy:        ValidFrom(since),
		WriteFrontier:     ts.NewMutableAntichainBottom(dom),
		PersistShardID:    persistShard,
		TimestampShardID:  timestampShardID,
		Handles:           handles,
	}
}

func sinceAsUpdates[T comparable](since ts.Antichain[T]) []ts.Update[T] {
	elems := since.Elements()
	out := make([]ts.Update[T], 0, len(elems))
	for _, t := range elems {
		out = append(out, ts.Update[T]{Time: t, Diff: 1})
	}
	return out
}

// PolicyBinding is one entry of a set_read_policy batch.
type PolicyBinding[T comparable] struct {
	ID     CollectionID
	Policy ReadPolicy[T]
}

// AppendCommand is one entry of an append batch: the updates to durably
// commit to collection ID, and the new upper the collection should advance
// to once they land (spec.md §4.C).
type AppendCommand[T comparable] struct {
	ID       CollectionID
	Updates  []RowUpdate[T]
	NewUpper T
}

// RowUpdate is a single differential row change staged for append.
type RowUpdate[T comparable] struct {
	Row  []byte
	Time T
	Diff int64
}

func (id CollectionID) String() string { return fmt.Sprintf("%d", uint64(id)) }

// CollectionSnapshot is a point-in-time description of one registered
// collection, complete enough to reinstall it into a fresh registry without
// re-running create_sources validation. Used by pkg/raftlog to take and
// restore Raft snapshots of controller state.
//
// It carries the current read-capabilities and write-frontier antichains,
// not the underlying multiset counts: only the frontier participates in
// later propagation, so a restored collection starts with a single hold at
// each frontier element rather than reproducing the exact hold count the
// original accumulated.
type CollectionSnapshot[T comparable] struct {
	ID                CollectionID
	Description       Description
	Since             ts.Antichain[T]
	ReadCapabilities  ts.Antichain[T]
	ImpliedCapability ts.Antichain[T]
	WriteFrontier     ts.Antichain[T]
	PersistShardID    storage.ShardID
	TimestampShardID  storage.ShardID
}
