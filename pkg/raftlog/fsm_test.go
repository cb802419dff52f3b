package raftlog

import (
	"testing"

	"github.com/hashicorp/raft"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/frontier/pkg/controller"
	"github.com/cuemby/frontier/pkg/storage"
	"github.com/cuemby/frontier/pkg/ts"
)

func newTestFSM(t *testing.T) (*ControllerFSM[int64], *controller.Controller[int64]) {
	t.Helper()
	store := storage.NewMemShardStore(ts.Int64Domain)
	catalog := storage.NewMemCatalog()
	channel := controller.NewChannelWorkerChannel[int64](16)
	ctrl := controller.New[int64](ts.Int64Domain, store, catalog, channel)
	return NewControllerFSM(ts.Int64Domain, ctrl, zerolog.Nop()), ctrl
}

func applyCommand(t *testing.T, fsm *ControllerFSM[int64], op string, payload any) any {
	t.Helper()
	data, err := marshalCommand(op, payload)
	require.NoError(t, err)
	return fsm.Apply(&raft.Log{Data: data})
}

func TestFSMApplyCreateSourcesThenAppend(t *testing.T) {
	fsm, ctrl := newTestFSM(t)

	resp := applyCommand(t, fsm, opCreateSources, []wireBinding{
		{ID: 1, Description: "orders", Since: []int64{0}},
	})
	assert.Nil(t, resp)

	cs, err := ctrl.Collection(1)
	require.NoError(t, err)
	assert.Equal(t, controller.Description("orders"), cs.Description)

	resp = applyCommand(t, fsm, opAppend, []wireAppendCommand{
		{ID: 1, Updates: []wireRowUpdate{{Row: []byte("r1"), Time: 0, Diff: 1}}, NewUpper: 5},
	})
	assert.Nil(t, resp)
}

func TestFSMApplyUnknownOpReturnsError(t *testing.T) {
	fsm, _ := newTestFSM(t)
	resp := applyCommand(t, fsm, "not_a_real_op", []int{})
	require.Error(t, resp.(error))
}

func TestFSMSnapshotRestoreRoundTrip(t *testing.T) {
	fsm, ctrl := newTestFSM(t)

	resp := applyCommand(t, fsm, opCreateSources, []wireBinding{
		{ID: 7, Description: "clicks", Since: []int64{2}},
	})
	require.Nil(t, resp)

	snap, err := fsm.Snapshot()
	require.NoError(t, err)
	cSnap := snap.(*controllerSnapshot)
	require.Len(t, cSnap.collections, 1)
	assert.Equal(t, uint64(7), cSnap.collections[0].ID)

	// A fresh FSM over a fresh controller restores from the captured bytes.
	store := storage.NewMemShardStore(ts.Int64Domain)
	catalog := storage.NewMemCatalog()
	channel := controller.NewChannelWorkerChannel[int64](16)
	fresh := controller.New[int64](ts.Int64Domain, store, catalog, channel)
	freshFSM := NewControllerFSM(ts.Int64Domain, fresh, zerolog.Nop())

	pr, pw := newPipe(t)
	go func() {
		err := cSnap.Persist(&fakeSink{WriteCloser: pw})
		require.NoError(t, err)
	}()
	require.NoError(t, freshFSM.Restore(pr))

	restored, err := fresh.Collection(7)
	require.NoError(t, err)
	assert.Equal(t, controller.Description("clicks"), restored.Description)
}
