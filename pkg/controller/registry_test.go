package controller

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/frontier/pkg/storage"
	"github.com/cuemby/frontier/pkg/ts"
)

func TestRegistryValidateBindingsExactDuplicateCoalesces(t *testing.T) {
	r := NewRegistry[int64]()
	since := ts.NewAntichain(ts.Int64Domain, int64(5))

	accepted, err := r.ValidateBindings([]Binding[int64]{
		{ID: 7, Description: "desc_A", Since: since},
		{ID: 7, Description: "desc_A", Since: since},
	})
	require.NoError(t, err)
	assert.Len(t, accepted, 1)
}

func TestRegistryValidateBindingsSortsByID(t *testing.T) {
	r := NewRegistry[int64]()
	since := ts.NewAntichain(ts.Int64Domain, int64(1))

	accepted, err := r.ValidateBindings([]Binding[int64]{
		{ID: 9, Description: "d9", Since: since},
		{ID: 3, Description: "d3", Since: since},
		{ID: 5, Description: "d5", Since: since},
	})
	require.NoError(t, err)
	require.Len(t, accepted, 3)
	assert.Equal(t, []CollectionID{3, 5, 9}, []CollectionID{accepted[0].ID, accepted[1].ID, accepted[2].ID})
}

func TestRegistryValidateBindingsAgainstExistingCollection(t *testing.T) {
	r := NewRegistry[int64]()
	since5 := ts.NewAntichain(ts.Int64Domain, int64(5))
	store := storage.NewMemShardStore(ts.Int64Domain)
	persistShard := storage.NewShardID()
	handles, err := store.Open(context.Background(), persistShard)
	require.NoError(t, err)
	r.Install(7, NewCollectionState(ts.Int64Domain, "desc_A", since5, persistShard, storage.NewShardID(), handles))

	_, err = r.ValidateBindings([]Binding[int64]{{ID: 7, Description: "desc_B", Since: since5}})
	var reused *IDReusedError
	require.ErrorAs(t, err, &reused)

	accepted, err := r.ValidateBindings([]Binding[int64]{{ID: 7, Description: "desc_A", Since: since5}})
	require.NoError(t, err)
	assert.Len(t, accepted, 1)
}

func TestRegistryGetMissingIdentifier(t *testing.T) {
	r := NewRegistry[int64]()
	_, err := r.Get(42)
	var missing *MissingIdentifierError
	require.ErrorAs(t, err, &missing)
}
