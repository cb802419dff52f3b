package ts

import "testing"

func TestAntichainLessEqual(t *testing.T) {
	dom := Int64Domain
	cases := []struct {
		name string
		a, b []int64
		want bool
	}{
		{"equal singletons", []int64{5}, []int64{5}, true},
		{"behind is less-equal ahead", []int64{3}, []int64{5}, true},
		{"ahead is not less-equal behind", []int64{5}, []int64{3}, false},
		{"anything less-equal empty", []int64{5}, nil, true},
		{"empty not less-equal nonempty", nil, []int64{5}, false},
		{"empty less-equal empty", nil, nil, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			a := NewAntichain(dom, c.a...)
			b := NewAntichain(dom, c.b...)
			if got := a.LessEqual(b); got != c.want {
				t.Errorf("LessEqual(%v, %v) = %v, want %v", c.a, c.b, got, c.want)
			}
		})
	}
}

func TestAntichainJoin(t *testing.T) {
	dom := Int64Domain

	j := NewAntichain(dom, int64(3)).Join(NewAntichain(dom, int64(5)))
	if got := j.Elements(); len(got) != 1 || got[0] != 5 {
		t.Errorf("Join({3},{5}) = %v, want {5}", got)
	}

	if got := NewAntichain(dom, int64(3)).Join(EmptyAntichain(dom)); !got.IsEmpty() {
		t.Errorf("Join({3}, {}) = %v, want {}", got.Elements())
	}
}

func TestMutableAntichainUpdateIter(t *testing.T) {
	dom := Int64Domain
	m := NewMutableAntichain(dom)

	delta := m.UpdateIter([]Update[int64]{{Time: 5, Diff: 1}})
	if len(delta) != 1 || delta[0] != (Update[int64]{Time: 5, Diff: 1}) {
		t.Fatalf("first update delta = %v, want [{5 +1}]", delta)
	}
	if got := m.Frontier().Elements(); len(got) != 1 || got[0] != 5 {
		t.Fatalf("frontier = %v, want {5}", got)
	}

	// A second hold at the same time changes counts but not the frontier.
	delta = m.UpdateIter([]Update[int64]{{Time: 5, Diff: 1}})
	if len(delta) != 0 {
		t.Fatalf("redundant hold delta = %v, want none", delta)
	}

	// Dropping one of the two holds at 5 still leaves the frontier at 5.
	delta = m.UpdateIter([]Update[int64]{{Time: 5, Diff: -1}})
	if len(delta) != 0 {
		t.Fatalf("partial release delta = %v, want none", delta)
	}

	// Advancing past 5 to 10 retracts 5 and adds 10.
	delta = m.UpdateIter([]Update[int64]{{Time: 10, Diff: 1}, {Time: 5, Diff: -1}})
	hasPlus10, hasMinus5 := false, false
	for _, u := range delta {
		if u == (Update[int64]{Time: 10, Diff: 1}) {
			hasPlus10 = true
		}
		if u == (Update[int64]{Time: 5, Diff: -1}) {
			hasMinus5 = true
		}
	}
	if !hasPlus10 || !hasMinus5 {
		t.Fatalf("advance delta = %v, want +10 and -5", delta)
	}
	if got := m.Frontier().Elements(); len(got) != 1 || got[0] != 10 {
		t.Fatalf("frontier after advance = %v, want {10}", got)
	}
}

func TestMutableAntichainBottom(t *testing.T) {
	m := NewMutableAntichainBottom(Int64Domain)
	if got := m.Frontier().Elements(); len(got) != 1 || got[0] != 0 {
		t.Fatalf("bottom frontier = %v, want {0}", got)
	}
}

func TestChangeBatchCompaction(t *testing.T) {
	cb := NewChangeBatch[int64]()
	cb.Add(5, 1)
	cb.Add(5, 1)
	cb.Add(5, -2)
	cb.Add(7, 3)
	if !cb.IsEmpty() && len(cb.Updates()) != 1 {
		t.Fatalf("expected only the {7: 3} entry to survive, got %v", cb.Updates())
	}
	updates := cb.Drain()
	if len(updates) != 1 || updates[0] != (Update[int64]{Time: 7, Diff: 3}) {
		t.Fatalf("Drain() = %v, want [{7 3}]", updates)
	}
	if !cb.IsEmpty() {
		t.Fatalf("batch should be empty after Drain")
	}
}
