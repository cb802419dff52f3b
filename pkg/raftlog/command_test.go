package raftlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/frontier/pkg/controller"
	"github.com/cuemby/frontier/pkg/ts"
)

func TestEncodeDecodeAntichainRoundTrip(t *testing.T) {
	a := ts.NewAntichain(ts.Int64Domain, int64(3), int64(7))
	wire := encodeAntichain(ts.Int64Domain, a)
	back := decodeAntichain(ts.Int64Domain, wire)
	assert.True(t, a.Equal(back))
}

func TestEncodeDecodeChangeBatchRoundTrip(t *testing.T) {
	batch := ts.NewChangeBatch[int64]()
	batch.Add(5, 1)
	batch.Add(9, -1)
	updates := map[controller.CollectionID]*ts.ChangeBatch[int64]{3: batch}

	wire := encodeChangeBatch(ts.Int64Domain, updates)
	back, err := decodeChangeBatch(ts.Int64Domain, wire)
	require.NoError(t, err)

	gotBatch, ok := back[3]
	require.True(t, ok)
	assert.ElementsMatch(t, batch.Updates(), gotBatch.Updates())
}

func TestMarshalCommandWrapsOpAndPayload(t *testing.T) {
	data, err := marshalCommand(opDropSources, []uint64{1, 2})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"op":"drop_sources"`)
}
