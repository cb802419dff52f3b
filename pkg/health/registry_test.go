package health

import (
	"context"
	"testing"
	"time"
)

type fakeChecker struct {
	result Result
}

func (f fakeChecker) Check(ctx context.Context) Result { return f.result }
func (f fakeChecker) Type() CheckType                  { return CheckTypeTCP }

func TestRegistryCheckAll(t *testing.T) {
	r := NewRegistry()
	r.Register("store", fakeChecker{result: Result{Healthy: true, CheckedAt: time.Now()}})
	r.Register("channel", fakeChecker{result: Result{Healthy: false, Message: "unreachable", CheckedAt: time.Now()}})

	results := r.CheckAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if Healthy(results) {
		t.Fatal("Healthy(results) = true, want false (channel is unhealthy)")
	}
	if !results["store"].Healthy {
		t.Fatal("store checker reported unhealthy, want healthy")
	}
}

func TestHealthyVacuouslyTrueForEmptyResults(t *testing.T) {
	if !Healthy(map[string]Result{}) {
		t.Fatal("Healthy(empty) = false, want true")
	}
}
