package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuemby/frontier/pkg/ts"
)

// MemShardStore is an in-memory ShardStore used by controller tests and by
// single-process demos; it implements the same compare-and-append /
// downgrade-since contract as BoltShardStore without touching disk.
type MemShardStore[T comparable] struct {
	dom ts.Domain[T]
	mu  sync.Mutex
	// DowngradeLog records, in call order, every since frontier this store
	// has observed via DowngradeSince, per shard (used by tests asserting
	// property 6 of spec.md §8: downgrade_since called with exactly the
	// emitted AllowCompaction frontiers, in the same order).
	DowngradeLog map[ShardID][]ts.Antichain[T]

	shards map[ShardID]*memShard[T]
}

type memShard[T comparable] struct {
	upper ts.Antichain[T]
	since ts.Antichain[T]
	log   []KeyedUpdate[T]
}

// NewMemShardStore returns an empty in-memory shard store.
func NewMemShardStore[T comparable](dom ts.Domain[T]) *MemShardStore[T] {
	return &MemShardStore[T]{
		dom:          dom,
		shards:       make(map[ShardID]*memShard[T]),
		DowngradeLog: make(map[ShardID][]ts.Antichain[T]),
	}
}

func (s *MemShardStore[T]) Open(ctx context.Context, shard ShardID) (Handles[T], error) {
	s.mu.Lock()
	if _, ok := s.shards[shard]; !ok {
		s.shards[shard] = &memShard[T]{
			upper: ts.NewAntichain(s.dom, s.dom.Minimum()),
			since: ts.EmptyAntichain(s.dom),
		}
	}
	s.mu.Unlock()

	return Handles[T]{
		Writer: &memWriter[T]{store: s, shard: shard},
		Reader: &memReader[T]{store: s, shard: shard},
	}, nil
}

type memWriter[T comparable] struct {
	store *MemShardStore[T]
	shard ShardID
}

func (w *memWriter[T]) CompareAndAppend(ctx context.Context, updates []KeyedUpdate[T], expectedUpper, newUpper ts.Antichain[T]) error {
	w.store.mu.Lock()
	defer w.store.mu.Unlock()

	sh, ok := w.store.shards[w.shard]
	if !ok {
		return fmt.Errorf("storage: unknown shard %s", w.shard)
	}
	if !sh.upper.Equal(expectedUpper) {
		return ErrUpperMismatch
	}
	sh.log = append(sh.log, updates...)
	sh.upper = newUpper
	return nil
}

type memReader[T comparable] struct {
	store *MemShardStore[T]
	shard ShardID
}

func (r *memReader[T]) DowngradeSince(ctx context.Context, since ts.Antichain[T]) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	sh, ok := r.store.shards[r.shard]
	if !ok {
		return fmt.Errorf("storage: unknown shard %s", r.shard)
	}
	sh.since = since
	r.store.DowngradeLog[r.shard] = append(r.store.DowngradeLog[r.shard], since)
	return nil
}

// MemCatalog is an in-memory Catalog used by tests.
type MemCatalog struct {
	mu   sync.Mutex
	data map[string]map[string]ShardID
}

// NewMemCatalog returns an empty in-memory catalog.
func NewMemCatalog() *MemCatalog {
	return &MemCatalog{data: make(map[string]map[string]ShardID)}
}

func (c *MemCatalog) InsertWithoutOverwrite(ctx context.Context, collection, key string, value ShardID) (ShardID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	bucket, ok := c.data[collection]
	if !ok {
		bucket = make(map[string]ShardID)
		c.data[collection] = bucket
	}
	if existing, ok := bucket[key]; ok {
		return existing, nil
	}
	bucket[key] = value
	return value, nil
}
