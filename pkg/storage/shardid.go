package storage

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ShardID is an opaque shard identifier in the durable store: a fixed
// prefix "s" followed by a 128-bit UUID in canonical form (spec.md §6).
type ShardID struct {
	id uuid.UUID
}

// NewShardID mints a fresh shard id.
func NewShardID() ShardID {
	return ShardID{id: uuid.New()}
}

// String renders the shard id in its wire form, e.g. "s5a2c...".
func (s ShardID) String() string {
	return "s" + s.id.String()
}

// IsZero reports whether this is the unset ShardID value.
func (s ShardID) IsZero() bool {
	return s.id == uuid.Nil
}

// InvalidShardIDError reports a shard id string that failed to parse.
type InvalidShardIDError struct {
	Value string
}

func (e *InvalidShardIDError) Error() string {
	return fmt.Sprintf("invalid shard id: %q", e.Value)
}

// ParseShardID parses the "s"+UUID wire form of spec.md §6.
func ParseShardID(value string) (ShardID, error) {
	rest, ok := strings.CutPrefix(value, "s")
	if !ok {
		return ShardID{}, &InvalidShardIDError{Value: value}
	}
	id, err := uuid.Parse(rest)
	if err != nil {
		return ShardID{}, &InvalidShardIDError{Value: value}
	}
	return ShardID{id: id}, nil
}
