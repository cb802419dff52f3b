package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/frontier/pkg/ts"
)

var (
	keyUpper = []byte("upper")
	keySince = []byte("since")
	keyLog   = []byte("log")
)

// BoltShardStore backs the durable shard store on a local BoltDB file: one
// top-level bucket per shard, holding the shard's current upper, its
// reader's last downgraded since, and an append-only log of committed
// updates keyed by a monotonic sequence number.
type BoltShardStore[T comparable] struct {
	db  *bolt.DB
	dom ts.Domain[T]
}

// NewBoltShardStore opens (creating if absent) the BoltDB file at path.
func NewBoltShardStore[T comparable](path string, dom ts.Domain[T]) (*BoltShardStore[T], error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: open shard store: %w", err)
	}
	return &BoltShardStore[T]{db: db, dom: dom}, nil
}

// Close closes the underlying BoltDB file.
func (s *BoltShardStore[T]) Close() error {
	return s.db.Close()
}

// Open is idempotent on shard id: the shard's bucket, and its initial
// upper ({minimum}, matching the write frontier a fresh collection starts
// with) and empty since, are created on first use and reused thereafter.
func (s *BoltShardStore[T]) Open(ctx context.Context, shard ShardID) (Handles[T], error) {
	err := s.db.Update(func(tx *bolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists([]byte(shard.String()))
		if err != nil {
			return err
		}
		if root.Get(keyUpper) == nil {
			encoded, err := encodeAntichain(s.dom, ts.NewAntichain(s.dom, s.dom.Minimum()))
			if err != nil {
				return err
			}
			if err := root.Put(keyUpper, encoded); err != nil {
				return err
			}
		}
		if root.Get(keySince) == nil {
			encoded, err := encodeAntichain(s.dom, ts.EmptyAntichain(s.dom))
			if err != nil {
				return err
			}
			if err := root.Put(keySince, encoded); err != nil {
				return err
			}
		}
		_, err = root.CreateBucketIfNotExists(keyLog)
		return err
	})
	if err != nil {
		return Handles[T]{}, fmt.Errorf("storage: open shard %s: %w", shard, err)
	}

	return Handles[T]{
		Writer: &boltWriter[T]{db: s.db, shard: shard, dom: s.dom},
		Reader: &boltReader[T]{db: s.db, shard: shard, dom: s.dom},
	}, nil
}

type boltWriter[T comparable] struct {
	db    *bolt.DB
	shard ShardID
	dom   ts.Domain[T]
}

// CompareAndAppend implements Writer. It is all-or-nothing within a single
// BoltDB transaction: either the expected upper matches and every update is
// durably appended with the upper advanced, or nothing changes.
func (w *boltWriter[T]) CompareAndAppend(ctx context.Context, updates []KeyedUpdate[T], expectedUpper, newUpper ts.Antichain[T]) error {
	return w.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket([]byte(w.shard.String()))
		if root == nil {
			return fmt.Errorf("storage: unknown shard %s", w.shard)
		}

		stored, err := decodeAntichain(w.dom, root.Get(keyUpper))
		if err != nil {
			return err
		}
		if !stored.Equal(expectedUpper) {
			return ErrUpperMismatch
		}

		log := root.Bucket(keyLog)
		for _, u := range updates {
			seq, err := log.NextSequence()
			if err != nil {
				return err
			}
			data, err := json.Marshal(wireUpdate{
				Key:   u.Key,
				Value: u.Value,
				Time:  w.dom.Encode(u.Time),
				Diff:  u.Diff,
			})
			if err != nil {
				return err
			}
			key := make([]byte, 8)
			binary.BigEndian.PutUint64(key, seq)
			if err := log.Put(key, data); err != nil {
				return err
			}
		}

		encoded, err := encodeAntichain(w.dom, newUpper)
		if err != nil {
			return err
		}
		return root.Put(keyUpper, encoded)
	})
}

type boltReader[T comparable] struct {
	db    *bolt.DB
	shard ShardID
	dom   ts.Domain[T]
}

// DowngradeSince implements Reader. Per spec.md §6 the durable store need
// only tolerate equal-or-forward moves; it does not itself reject a
// regression, since the controller's invariants (spec.md §3, invariant 3)
// already guarantee monotonicity before this is ever called.
func (r *boltReader[T]) DowngradeSince(ctx context.Context, since ts.Antichain[T]) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		root := tx.Bucket([]byte(r.shard.String()))
		if root == nil {
			return fmt.Errorf("storage: unknown shard %s", r.shard)
		}
		encoded, err := encodeAntichain(r.dom, since)
		if err != nil {
			return err
		}
		return root.Put(keySince, encoded)
	})
}
