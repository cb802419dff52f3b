package storage

import (
	"context"
	"errors"

	"github.com/cuemby/frontier/pkg/ts"
)

// ErrUpperMismatch is returned by Writer.CompareAndAppend when the caller's
// expected upper does not match the shard's actual upper. The append
// coordinator (pkg/controller) surfaces this as the invalid-upper error of
// spec.md §7; any other error returned from this package is a client/IO
// fault: the append coordinator returns it to the caller as ClientError,
// create_sources returns a shard-open failure as IOError, and a
// DowngradeSince failure during compaction is fatal to the controller.
var ErrUpperMismatch = errors.New("storage: compare-and-append upper mismatch")

// KeyedUpdate is a single update staged for compare-and-append: a
// (key, value) pair paired with a timestamp and differential count, mirrors
// the `((key, value), timestamp, diff)` triples of spec.md §6. Value is
// typically empty (the controller shapes row updates as `(row, unit)`).
type KeyedUpdate[T comparable] struct {
	Key   []byte
	Value []byte
	Time  T
	Diff  int64
}

// Writer is the durable store's per-collection write handle.
type Writer[T comparable] interface {
	// CompareAndAppend durably commits updates and advances the shard's
	// upper from expectedUpper to newUpper, or returns ErrUpperMismatch if
	// the shard's actual upper has moved on. Any other error is a fault in
	// the underlying client or storage medium.
	CompareAndAppend(ctx context.Context, updates []KeyedUpdate[T], expectedUpper, newUpper ts.Antichain[T]) error
}

// Reader is the durable store's per-collection read handle. DowngradeSince
// is monotone: implementations need only tolerate equal-or-forward moves.
type Reader[T comparable] interface {
	DowngradeSince(ctx context.Context, since ts.Antichain[T]) error
}

// Handles is the owned (reader, writer) pair for one live collection
// (spec.md §3's "Persist handle pair"), acquired at creation and released
// when the collection's slot is reclaimed.
type Handles[T comparable] struct {
	Writer Writer[T]
	Reader Reader[T]
}

// ShardStore is the durable shard store: the external collaborator of
// spec.md §6 assumed to offer compare-and-append and downgrade-since
// primitives. Open is idempotent on shard id.
type ShardStore[T comparable] interface {
	Open(ctx context.Context, shard ShardID) (Handles[T], error)
}
