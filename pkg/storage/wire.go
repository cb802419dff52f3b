package storage

import (
	"encoding/json"

	"github.com/cuemby/frontier/pkg/ts"
)

// wireFrontier is the durable encoding of an antichain: the encoded
// timestamps of its elements, using the domain's 64-bit encoding
// (spec.md §3's "encoding to/from a 64-bit integer for durability"). A nil
// or empty slice encodes the empty (fully-advanced) antichain.
type wireFrontier struct {
	Elements []int64 `json:"elements"`
}

func encodeAntichain[T comparable](dom ts.Domain[T], a ts.Antichain[T]) ([]byte, error) {
	w := wireFrontier{}
	for _, t := range a.Elements() {
		w.Elements = append(w.Elements, dom.Encode(t))
	}
	return json.Marshal(w)
}

func decodeAntichain[T comparable](dom ts.Domain[T], data []byte) (ts.Antichain[T], error) {
	if len(data) == 0 {
		return ts.EmptyAntichain(dom), nil
	}
	var w wireFrontier
	if err := json.Unmarshal(data, &w); err != nil {
		return ts.Antichain[T]{}, err
	}
	elems := make([]T, len(w.Elements))
	for i, e := range w.Elements {
		elems[i] = dom.Decode(e)
	}
	return ts.NewAntichain(dom, elems...), nil
}

// wireUpdate is the durable encoding of one appended KeyedUpdate.
type wireUpdate struct {
	Key   []byte `json:"key"`
	Value []byte `json:"value"`
	Time  int64  `json:"time"`
	Diff  int64  `json:"diff"`
}
