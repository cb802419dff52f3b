package storage

import (
	"context"
	"testing"

	"github.com/cuemby/frontier/pkg/ts"
)

func TestMemShardStoreCompareAndAppend(t *testing.T) {
	ctx := context.Background()
	store := NewMemShardStore(ts.Int64Domain)
	shard := NewShardID()

	handles, err := store.Open(ctx, shard)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	// A fresh shard's upper starts at {minimum}, not empty: empty means
	// closed, and a brand-new shard is open for writes.
	initialUpper := ts.NewAntichain(ts.Int64Domain, ts.Int64Domain.Minimum())
	upperAt6 := ts.NewAntichain(ts.Int64Domain, int64(6))

	if err := handles.Writer.CompareAndAppend(ctx, []KeyedUpdate[int64]{
		{Key: []byte("row"), Time: 5, Diff: 1},
	}, initialUpper, upperAt6); err != nil {
		t.Fatalf("CompareAndAppend() error = %v", err)
	}

	// A stale expected upper is rejected without mutating state.
	err = handles.Writer.CompareAndAppend(ctx, []KeyedUpdate[int64]{
		{Key: []byte("row"), Time: 6, Diff: 1},
	}, initialUpper, ts.NewAntichain(ts.Int64Domain, int64(7)))
	if err != ErrUpperMismatch {
		t.Fatalf("CompareAndAppend() with stale upper error = %v, want ErrUpperMismatch", err)
	}

	upperAt7 := ts.NewAntichain(ts.Int64Domain, int64(7))
	if err := handles.Writer.CompareAndAppend(ctx, nil, upperAt6, upperAt7); err != nil {
		t.Fatalf("CompareAndAppend() with correct upper error = %v", err)
	}
}

func TestMemShardStoreDowngradeSinceLog(t *testing.T) {
	ctx := context.Background()
	store := NewMemShardStore(ts.Int64Domain)
	shard := NewShardID()
	handles, _ := store.Open(ctx, shard)

	for _, since := range []int64{3, 8} {
		if err := handles.Reader.DowngradeSince(ctx, ts.NewAntichain(ts.Int64Domain, since)); err != nil {
			t.Fatalf("DowngradeSince(%d) error = %v", since, err)
		}
	}

	log := store.DowngradeLog[shard]
	if len(log) != 2 || log[0].Elements()[0] != 3 || log[1].Elements()[0] != 8 {
		t.Fatalf("DowngradeLog = %v, want [{3} {8}] in order", log)
	}
}

func TestMemCatalogInsertWithoutOverwrite(t *testing.T) {
	ctx := context.Background()
	cat := NewMemCatalog()
	id := NewShardID()

	got, err := cat.InsertWithoutOverwrite(ctx, "timestamp-shard-id", "7", id)
	if err != nil {
		t.Fatalf("first insert error = %v", err)
	}
	if got != id {
		t.Fatalf("first insert returned %v, want %v", got, id)
	}

	other := NewShardID()
	got, err = cat.InsertWithoutOverwrite(ctx, "timestamp-shard-id", "7", other)
	if err != nil {
		t.Fatalf("second insert error = %v", err)
	}
	if got != id {
		t.Fatalf("second insert returned %v, want the original %v (no overwrite)", got, id)
	}
}

func TestShardIDRoundTrip(t *testing.T) {
	id := NewShardID()
	parsed, err := ParseShardID(id.String())
	if err != nil {
		t.Fatalf("ParseShardID(%s) error = %v", id, err)
	}
	if parsed != id {
		t.Fatalf("round-tripped shard id = %v, want %v", parsed, id)
	}

	if _, err := ParseShardID("not-a-shard-id"); err == nil {
		t.Fatal("ParseShardID(garbage) expected InvalidShardIDError, got nil")
	}
}
