package controller

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/frontier/pkg/storage"
	"github.com/cuemby/frontier/pkg/ts"
)

func newTestController(t *testing.T) (*Controller[int64], *ChannelWorkerChannel[int64]) {
	t.Helper()
	channel := NewChannelWorkerChannel[int64](16)
	c := New[int64](ts.Int64Domain, storage.NewMemShardStore(ts.Int64Domain), storage.NewMemCatalog(), channel)
	return c, channel
}

func since(elems ...int64) ts.Antichain[int64] { return ts.NewAntichain(ts.Int64Domain, elems...) }

// S1: create + query.
func TestCreateSourcesThenQuery(t *testing.T) {
	c, channel := newTestController(t)
	ctx := context.Background()

	err := c.CreateSources(ctx, []Binding[int64]{{ID: 7, Description: "desc_A", Since: since(5)}})
	require.NoError(t, err)

	cmd := <-channel.Outbound()
	require.Len(t, cmd.CreateSources, 1)
	assert.Equal(t, CollectionID(7), cmd.CreateSources[0].ID)

	meta, err := c.CollectionMetadata(7)
	require.NoError(t, err)
	assert.Equal(t, cmd.CreateSources[0].Metadata.PersistShard, meta.PersistShard)

	cs, err := c.Collection(7)
	require.NoError(t, err)
	assert.True(t, cs.ReadCapabilities.Frontier().Equal(since(5)))
	assert.True(t, cs.WriteFrontier.Frontier().Equal(since(0)))
}

// S2: duplicate creation in one batch fails id-reused and touches nothing.
func TestCreateSourcesDuplicateInBatchFails(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	err := c.CreateSources(ctx, []Binding[int64]{
		{ID: 7, Description: "desc_A", Since: since(5)},
		{ID: 7, Description: "desc_B", Since: since(5)},
	})
	var reused *IDReusedError
	require.ErrorAs(t, err, &reused)
	assert.Equal(t, CollectionID(7), reused.ID)

	_, err = c.Collection(7)
	var missing *MissingIdentifierError
	require.ErrorAs(t, err, &missing)
}

// Rebinding a dropped id fails id-reused even with the same description and
// since: a dropped id's slot stays id-reused forever (invariant 4).
func TestCreateSourcesRebindAfterDropStillReused(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()

	require.NoError(t, c.CreateSources(ctx, []Binding[int64]{{ID: 7, Description: "desc_A", Since: since(5)}}))
	require.NoError(t, c.DropSources(ctx, []CollectionID{7}))

	err := c.CreateSources(ctx, []Binding[int64]{{ID: 7, Description: "desc_A", Since: since(5)}})
	var reused *IDReusedError
	require.ErrorAs(t, err, &reused)
}

// S3: append advances the upper; a stale upper request fails update-beyond-upper.
func TestAppendAdvancesUpperAndRejectsBeyondUpper(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()
	require.NoError(t, c.CreateSources(ctx, []Binding[int64]{{ID: 7, Description: "desc_A", Since: since(5)}}))

	err := c.Append(ctx, []AppendCommand[int64]{
		{ID: 7, Updates: []RowUpdate[int64]{{Row: []byte("row_r"), Time: 5, Diff: 1}}, NewUpper: 6},
	})
	require.NoError(t, err)

	cs, err := c.Collection(7)
	require.NoError(t, err)
	assert.True(t, cs.WriteFrontier.Frontier().Equal(since(6)))

	err = c.Append(ctx, []AppendCommand[int64]{
		{ID: 7, Updates: []RowUpdate[int64]{{Row: []byte("row_r"), Time: 6, Diff: 1}}, NewUpper: 6},
	})
	var beyond *UpdateBeyondUpperError
	require.ErrorAs(t, err, &beyond)
}

// Invariant 5: a stale new_upper against the durable store's actual upper
// fails invalid-upper and leaves the write frontier unchanged.
func TestAppendStaleUpperFailsInvalidUpper(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()
	require.NoError(t, c.CreateSources(ctx, []Binding[int64]{{ID: 7, Description: "desc_A", Since: since(5)}}))

	require.NoError(t, c.Append(ctx, []AppendCommand[int64]{
		{ID: 7, Updates: []RowUpdate[int64]{{Row: []byte("row_r"), Time: 5, Diff: 1}}, NewUpper: 6},
	}))

	// Replaying the same NewUpper a second time: the durable upper has
	// already moved to 6, so this append must fail.
	err := c.Append(ctx, []AppendCommand[int64]{
		{ID: 7, Updates: []RowUpdate[int64]{{Row: []byte("row_s"), Time: 5, Diff: 1}}, NewUpper: 6},
	})
	var invalidUpper *InvalidUpperError
	require.ErrorAs(t, err, &invalidUpper)

	cs, err := c.Collection(7)
	require.NoError(t, err)
	assert.True(t, cs.WriteFrontier.Frontier().Equal(since(6)))
}

// S4: LagBy(2) ratchets compaction forward but never regresses.
func TestLagByRatchetsCompactionWithoutRegression(t *testing.T) {
	c, channel := newTestController(t)
	ctx := context.Background()
	require.NoError(t, c.CreateSources(ctx, []Binding[int64]{{ID: 7, Description: "desc_A", Since: since(5)}}))
	drainOne(t, channel) // CreateSources command

	require.NoError(t, c.SetReadPolicy(ctx, []PolicyBinding[int64]{{ID: 7, Policy: LagByInt64(2)}}))

	err := c.UpdateWriteFrontiers(ctx, map[CollectionID]*ts.ChangeBatch[int64]{
		7: batchOf(ts.Update[int64]{Time: 10, Diff: 1}, ts.Update[int64]{Time: 0, Diff: -1}),
	})
	require.NoError(t, err)

	cmd := drainOne(t, channel)
	require.Len(t, cmd.AllowCompaction, 1)
	assert.Equal(t, CollectionID(7), cmd.AllowCompaction[0].ID)
	assert.True(t, cmd.AllowCompaction[0].Frontier.Equal(since(8)))

	// A regression attempt: write frontier retracts to 9, which would
	// propose LagBy(2) => 7, behind the already-held 8. Must emit nothing.
	err = c.UpdateWriteFrontiers(ctx, map[CollectionID]*ts.ChangeBatch[int64]{
		7: batchOf(ts.Update[int64]{Time: 9, Diff: 1}, ts.Update[int64]{Time: 10, Diff: -1}),
	})
	require.NoError(t, err)
	assertNoPendingCommand(t, channel)
}

// S5: drop emits AllowCompaction to the empty frontier and downgrades the
// reader handle to empty.
func TestDropSourcesCompactsToEmpty(t *testing.T) {
	c, channel := newTestController(t)
	ctx := context.Background()
	store := storage.NewMemShardStore(ts.Int64Domain)
	catalog := storage.NewMemCatalog()
	c = New[int64](ts.Int64Domain, store, catalog, channel)

	require.NoError(t, c.CreateSources(ctx, []Binding[int64]{{ID: 7, Description: "desc_A", Since: since(5)}}))
	createCmd := drainOne(t, channel)
	shard := createCmd.CreateSources[0].Metadata.PersistShard

	require.NoError(t, c.DropSources(ctx, []CollectionID{7}))

	cmd := drainOne(t, channel)
	require.Len(t, cmd.AllowCompaction, 1)
	assert.Equal(t, CollectionID(7), cmd.AllowCompaction[0].ID)
	assert.True(t, cmd.AllowCompaction[0].Frontier.IsEmpty())

	downgrades := store.DowngradeLog[shard]
	require.NotEmpty(t, downgrades)
	assert.True(t, downgrades[len(downgrades)-1].IsEmpty())
}

// S6: update_read_capabilities processes ids in descending order and emits
// one AllowCompaction command carrying every affected pair.
func TestUpdateReadCapabilitiesBatchOrdering(t *testing.T) {
	c, channel := newTestController(t)
	ctx := context.Background()

	for _, id := range []CollectionID{3, 5, 9} {
		require.NoError(t, c.CreateSources(ctx, []Binding[int64]{{ID: id, Description: "desc", Since: since(1)}}))
		drainOne(t, channel)
	}

	err := c.UpdateReadCapabilities(ctx, map[CollectionID]*ts.ChangeBatch[int64]{
		3: batchOf(ts.Update[int64]{Time: 5, Diff: 1}, ts.Update[int64]{Time: 1, Diff: -1}),
		9: batchOf(ts.Update[int64]{Time: 2, Diff: 1}, ts.Update[int64]{Time: 1, Diff: -1}),
		5: batchOf(ts.Update[int64]{Time: 4, Diff: 1}, ts.Update[int64]{Time: 1, Diff: -1}),
	})
	require.NoError(t, err)

	cmd := drainOne(t, channel)
	require.Len(t, cmd.AllowCompaction, 3)
	gotIDs := []CollectionID{cmd.AllowCompaction[0].ID, cmd.AllowCompaction[1].ID, cmd.AllowCompaction[2].ID}
	assert.Equal(t, []CollectionID{9, 5, 3}, gotIDs)
}

// set_read_policy logs and continues past an unknown id instead of failing
// the whole batch (the documented asymmetry with update_read_capabilities).
func TestSetReadPolicyUnknownIDIsNonFatal(t *testing.T) {
	c, _ := newTestController(t)
	ctx := context.Background()
	require.NoError(t, c.CreateSources(ctx, []Binding[int64]{{ID: 7, Description: "desc_A", Since: since(5)}}))

	err := c.SetReadPolicy(ctx, []PolicyBinding[int64]{
		{ID: 404, Policy: ValidFrom(since(1))},
		{ID: 7, Policy: ValidFrom(since(9))},
	})
	require.NoError(t, err)

	cs, err := c.Collection(7)
	require.NoError(t, err)
	assert.True(t, cs.ImpliedCapability.Equal(since(9)))
}

// linearize_sources is an intentional stub: a benign success, not an error.
func TestLinearizeSourcesIsBenignStub(t *testing.T) {
	c, _ := newTestController(t)
	assert.NoError(t, c.LinearizeSources(context.Background(), []CollectionID{7}))
}

// A send failure on the worker channel is fatal; this test overrides the
// dispatcher's fatal hook instead of letting it exit the test binary.
func TestDispatcherSendFailureIsFatal(t *testing.T) {
	c, channel := newTestController(t)
	ctx := context.Background()
	channel.Close()

	var gotErr error
	c.dispatcher.fatal = func(err error) { gotErr = err }

	err := c.CreateSources(ctx, []Binding[int64]{{ID: 1, Description: "d", Since: since(0)}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWorkerChannelClosed))
	assert.NotNil(t, gotErr)
}

func batchOf[T comparable](updates ...ts.Update[T]) *ts.ChangeBatch[T] {
	b := ts.NewChangeBatch[T]()
	b.Extend(updates)
	return b
}

func drainOne(t *testing.T, channel *ChannelWorkerChannel[int64]) WorkerCommand[int64] {
	t.Helper()
	select {
	case cmd := <-channel.Outbound():
		return cmd
	default:
		t.Fatal("expected a pending worker command, found none")
		return WorkerCommand[int64]{}
	}
}

func assertNoPendingCommand(t *testing.T, channel *ChannelWorkerChannel[int64]) {
	t.Helper()
	select {
	case cmd := <-channel.Outbound():
		t.Fatalf("expected no pending worker command, got %+v", cmd)
	default:
	}
}
