package ts

// MutableAntichain is a multiset of (timestamp, signed count) whose
// positive-support antichain can be queried. It is the core bookkeeping
// structure behind both read_capabilities and write_frontier (spec.md §3):
// many outstanding holds accumulate into one multiset, and the frontier is
// the antichain of minima among the entries with positive net count.
type MutableAntichain[T comparable] struct {
	dom      Domain[T]
	counts   map[T]int64
	frontier Antichain[T]
}

// NewMutableAntichain returns an empty mutable antichain (frontier: empty,
// "all times reached").
func NewMutableAntichain[T comparable](dom Domain[T]) *MutableAntichain[T] {
	return &MutableAntichain[T]{dom: dom, counts: make(map[T]int64), frontier: EmptyAntichain(dom)}
}

// NewMutableAntichainBottom seeds the multiset with a single count at the
// domain's minimum element, as write_frontier is seeded at creation
// (spec.md §4.D step 3: "write_frontier seeded at the timestamp minimum").
func NewMutableAntichainBottom[T comparable](dom Domain[T]) *MutableAntichain[T] {
	m := NewMutableAntichain(dom)
	m.UpdateIter([]Update[T]{{Time: dom.Minimum(), Diff: 1}})
	return m
}

// Frontier returns the current antichain of minima among positively-held
// timestamps.
func (m *MutableAntichain[T]) Frontier() Antichain[T] { return m.frontier }

// UpdateIter folds a batch of (timestamp, diff) changes into the multiset
// and returns the net delta on the reported frontier: +1 for each time that
// entered the positive-support antichain, -1 for each time that left it.
// This is the primitive spec.md §9 calls out as first-class: the engine
// depends on this delta, not a recomputed frontier, to drive compaction.
func (m *MutableAntichain[T]) UpdateIter(updates []Update[T]) []Update[T] {
	touched := false
	for _, u := range updates {
		if u.Diff == 0 {
			continue
		}
		m.counts[u.Time] += u.Diff
		if m.counts[u.Time] == 0 {
			delete(m.counts, u.Time)
		}
		touched = true
	}
	if !touched {
		return nil
	}

	positives := make([]T, 0, len(m.counts))
	for t, c := range m.counts {
		if c > 0 {
			positives = append(positives, t)
		}
	}
	newFrontier := NewAntichain(m.dom, positives...)
	delta := frontierDelta(m.dom, m.frontier, newFrontier)
	m.frontier = newFrontier
	return delta
}

// frontierDelta expresses the move from `from` to `to` as a change batch:
// +1 for elements gained, -1 for elements lost.
func frontierDelta[T comparable](dom Domain[T], from, to Antichain[T]) []Update[T] {
	var delta []Update[T]
	for _, t := range to.Elements() {
		if !contains(from.Elements(), t) {
			delta = append(delta, Update[T]{Time: t, Diff: 1})
		}
	}
	for _, t := range from.Elements() {
		if !contains(to.Elements(), t) {
			delta = append(delta, Update[T]{Time: t, Diff: -1})
		}
	}
	return delta
}
