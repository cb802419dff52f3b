package ts

// Update is a single differential change: a signed adjustment to the count
// of timestamp Time.
type Update[T comparable] struct {
	Time T
	Diff int64
}

// ChangeBatch is a compact multiset of (timestamp, diff) updates used to
// describe differential changes to a mutable antichain. Updates to the same
// timestamp are compacted as they are added; zero-net entries are dropped.
type ChangeBatch[T comparable] struct {
	counts map[T]int64
	// order preserves first-seen insertion order so Drain is deterministic,
	// which matters for tests asserting on emitted update sequences.
	order []T
}

// NewChangeBatch returns an empty change batch.
func NewChangeBatch[T comparable]() *ChangeBatch[T] {
	return &ChangeBatch[T]{counts: make(map[T]int64)}
}

// Add folds a single update into the batch.
func (c *ChangeBatch[T]) Add(t T, diff int64) {
	if diff == 0 {
		return
	}
	if _, ok := c.counts[t]; !ok {
		c.order = append(c.order, t)
	}
	c.counts[t] += diff
	if c.counts[t] == 0 {
		delete(c.counts, t)
		for i, o := range c.order {
			if o == t {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
}

// Extend folds a slice of updates into the batch.
func (c *ChangeBatch[T]) Extend(updates []Update[T]) {
	for _, u := range updates {
		c.Add(u.Time, u.Diff)
	}
}

// IsEmpty reports whether the batch has no net-nonzero entries.
func (c *ChangeBatch[T]) IsEmpty() bool { return len(c.counts) == 0 }

// Updates returns the batch's net-nonzero entries without clearing it, in
// first-seen order.
func (c *ChangeBatch[T]) Updates() []Update[T] {
	out := make([]Update[T], 0, len(c.counts))
	for _, t := range c.order {
		if d, ok := c.counts[t]; ok {
			out = append(out, Update[T]{Time: t, Diff: d})
		}
	}
	return out
}

// Drain returns the batch's net-nonzero entries and empties the batch.
func (c *ChangeBatch[T]) Drain() []Update[T] {
	out := c.Updates()
	c.counts = make(map[T]int64)
	c.order = nil
	return out
}
