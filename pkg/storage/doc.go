/*
Package storage implements the two durable external collaborators the
frontier controller depends on (spec.md §6): the per-collection shard store
(compare-and-append, downgrade-since) and the metadata catalog
(insert-without-overwrite). Both are BoltDB-backed by default
(BoltShardStore, BoltCatalog), with in-memory equivalents (MemShardStore,
MemCatalog) used by controller tests so the frontier algebra can be
exercised without touching disk.

Shard ids are opaque 128-bit UUIDs serialized with a fixed "s" prefix
(ShardID), matching the wire format spec.md §6 requires; a malformed id
surfaces as InvalidShardIDError.
*/
package storage
