package raftlog

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cuemby/frontier/pkg/controller"
	"github.com/cuemby/frontier/pkg/storage"
	"github.com/cuemby/frontier/pkg/ts"
)

// Command is one entry in the Raft log: an operation name plus its
// JSON-encoded payload, covering the frontier controller's six mutating
// operations.
type Command struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

const (
	opCreateSources          = "create_sources"
	opAppend                 = "append"
	opSetReadPolicy          = "set_read_policy"
	opUpdateWriteFrontiers   = "update_write_frontiers"
	opUpdateReadCapabilities = "update_read_capabilities"
	opDropSources            = "drop_sources"
)

// The controller is generic over its timestamp domain, but a Raft log entry
// is a flat byte slice. These wire types carry every timestamp as the
// domain's int64 encoding (ts.Domain.Encode/Decode) so Command payloads stay
// plain JSON regardless of which concrete T the running daemon uses.

type wireBinding struct {
	ID          uint64  `json:"id"`
	Description string  `json:"description"`
	Since       []int64 `json:"since"`
}

type wireAppendCommand struct {
	ID       uint64          `json:"id"`
	Updates  []wireRowUpdate `json:"updates"`
	NewUpper int64           `json:"new_upper"`
}

type wireRowUpdate struct {
	Row  []byte `json:"row"`
	Time int64  `json:"time"`
	Diff int64  `json:"diff"`
}

// wirePolicyBinding supports the two read policies that survive
// replication: a fixed frontier (ValidFrom) and a fixed lag behind the
// write frontier (LagBy). A CustomPolicy function value cannot be
// marshaled, so set_read_policy calls carrying one are a client error on
// the Raft-backed path and must be issued directly against the local
// Controller instead (pkg/raftlog/proposer.go documents this).
type wirePolicyBinding struct {
	ID    uint64  `json:"id"`
	Kind  string  `json:"kind"`
	Since []int64 `json:"since,omitempty"` // valid_from
	Delta int64   `json:"delta,omitempty"` // lag_by
}

const (
	policyKindValidFrom = "valid_from"
	policyKindLagBy     = "lag_by"
)

// wireChangeBatch maps a collection id (as a decimal string, since JSON
// object keys must be strings) to its batch of (encoded time, diff) updates.
type wireChangeBatch map[string][]wireRowUpdate

type wireCollectionSnapshot struct {
	ID                uint64   `json:"id"`
	Description       string   `json:"description"`
	Since             []int64  `json:"since"`
	ReadCapabilities  []int64  `json:"read_capabilities"`
	ImpliedCapability []int64  `json:"implied_capability"`
	WriteFrontier     []int64  `json:"write_frontier"`
	PersistShardID    string   `json:"persist_shard_id"`
	TimestampShardID  string   `json:"timestamp_shard_id"`
}

func encodeAntichain[T comparable](dom ts.Domain[T], a ts.Antichain[T]) []int64 {
	elems := a.Elements()
	out := make([]int64, len(elems))
	for i, t := range elems {
		out[i] = dom.Encode(t)
	}
	return out
}

func decodeAntichain[T comparable](dom ts.Domain[T], encoded []int64) ts.Antichain[T] {
	elems := make([]T, len(encoded))
	for i, v := range encoded {
		elems[i] = dom.Decode(v)
	}
	return ts.NewAntichain(dom, elems...)
}

func encodeChangeBatch[T comparable](dom ts.Domain[T], updates map[controller.CollectionID]*ts.ChangeBatch[T]) wireChangeBatch {
	out := make(wireChangeBatch, len(updates))
	for id, batch := range updates {
		wireUpdates := make([]wireRowUpdate, 0)
		for _, u := range batch.Updates() {
			wireUpdates = append(wireUpdates, wireRowUpdate{Time: dom.Encode(u.Time), Diff: u.Diff})
		}
		out[strconv.FormatUint(uint64(id), 10)] = wireUpdates
	}
	return out
}

func decodeChangeBatch[T comparable](dom ts.Domain[T], wire wireChangeBatch) (map[controller.CollectionID]*ts.ChangeBatch[T], error) {
	out := make(map[controller.CollectionID]*ts.ChangeBatch[T], len(wire))
	for key, updates := range wire {
		id, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("raftlog: invalid collection id %q in change batch: %w", key, err)
		}
		batch := ts.NewChangeBatch[T]()
		for _, u := range updates {
			batch.Add(dom.Decode(u.Time), u.Diff)
		}
		out[controller.CollectionID(id)] = batch
	}
	return out, nil
}

func marshalCommand(op string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("raftlog: marshal %s payload: %w", op, err)
	}
	return json.Marshal(Command{Op: op, Data: data})
}

func parseShardID(s string) (storage.ShardID, error) {
	if s == "" {
		return storage.ShardID{}, nil
	}
	return storage.ParseShardID(s)
}
