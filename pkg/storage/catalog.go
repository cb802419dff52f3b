package storage

import (
	"context"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// BoltCatalog is a BoltDB-backed Catalog: one bucket per collection name,
// mapping key -> shard id string, following the same create-bucket-per-kind
// idiom as BoltShardStore.
type BoltCatalog struct {
	db *bolt.DB
}

// NewBoltCatalog opens (creating if absent) the BoltDB file at path.
func NewBoltCatalog(path string) (*BoltCatalog, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: open catalog: %w", err)
	}
	return &BoltCatalog{db: db}, nil
}

// Close closes the underlying BoltDB file.
func (c *BoltCatalog) Close() error {
	return c.db.Close()
}

// InsertWithoutOverwrite implements Catalog.
func (c *BoltCatalog) InsertWithoutOverwrite(ctx context.Context, collection, key string, value ShardID) (ShardID, error) {
	var result ShardID
	err := c.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(collection))
		if err != nil {
			return err
		}
		if existing := bucket.Get([]byte(key)); existing != nil {
			result, err = ParseShardID(string(existing))
			return err
		}
		if err := bucket.Put([]byte(key), []byte(value.String())); err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return ShardID{}, fmt.Errorf("storage: insert-without-overwrite %s/%s: %w", collection, key, err)
	}
	return result, nil
}
