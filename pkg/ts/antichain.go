package ts

import "sort"

// Antichain is a set of pairwise-incomparable timestamps: the boundary of a
// downward-closed set of times. An empty antichain means "all times
// reached", the fully advanced, fully compacted frontier.
type Antichain[T comparable] struct {
	dom   Domain[T]
	elems []T
}

// NewAntichain builds an antichain from the given elements, reducing them
// to their minimal (pairwise-incomparable) representatives.
func NewAntichain[T comparable](dom Domain[T], elems ...T) Antichain[T] {
	return Antichain[T]{dom: dom, elems: minimalElements(dom, elems)}
}

// EmptyAntichain is the fully-advanced frontier: all times reached.
func EmptyAntichain[T comparable](dom Domain[T]) Antichain[T] {
	return Antichain[T]{dom: dom}
}

// IsEmpty reports whether this is the fully-advanced frontier.
func (a Antichain[T]) IsEmpty() bool { return len(a.elems) == 0 }

// Elements returns the antichain's members in a stable order. The returned
// slice must not be mutated by callers.
func (a Antichain[T]) Elements() []T { return a.elems }

// Equal reports whether two antichains contain the same elements.
func (a Antichain[T]) Equal(b Antichain[T]) bool {
	if len(a.elems) != len(b.elems) {
		return false
	}
	for _, t := range a.elems {
		if !contains(b.elems, t) {
			return false
		}
	}
	return true
}

// LessEqual reports A ≤ B in the frontier order: every time in B is at or
// beyond some time in A. The empty antichain is the top of this order (any
// A is ≤ the empty frontier, and only the empty frontier is ≤ itself when A
// is also empty).
func (a Antichain[T]) LessEqual(b Antichain[T]) bool {
	for _, tb := range b.elems {
		ok := false
		for _, ta := range a.elems {
			if a.dom.LessEqual(ta, tb) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// Join computes the least upper bound of two antichains: the pointwise
// lattice join of every pair of elements, reduced to minimal form. Joining
// with the empty (fully-advanced) antichain yields the empty antichain.
func (a Antichain[T]) Join(b Antichain[T]) Antichain[T] {
	if a.IsEmpty() || b.IsEmpty() {
		return EmptyAntichain(a.dom)
	}
	candidates := make([]T, 0, len(a.elems)*len(b.elems))
	for _, ta := range a.elems {
		for _, tb := range b.elems {
			candidates = append(candidates, a.dom.Join(ta, tb))
		}
	}
	return Antichain[T]{dom: a.dom, elems: minimalElements(a.dom, candidates)}
}

func contains[T comparable](elems []T, t T) bool {
	for _, e := range elems {
		if e == t {
			return true
		}
	}
	return false
}

// minimalElements reduces a set of timestamps to its pairwise-incomparable
// minimal members: any element dominated by (>=) another is dropped.
func minimalElements[T comparable](dom Domain[T], elems []T) []T {
	var uniq []T
	for _, t := range elems {
		if !contains(uniq, t) {
			uniq = append(uniq, t)
		}
	}
	var out []T
	for i, t := range uniq {
		dominated := false
		for j, u := range uniq {
			if i == j {
				continue
			}
			// u dominates t if u <= t and u != t (u is strictly "behind" t).
			if u != t && dom.LessEqual(u, t) {
				dominated = true
				break
			}
		}
		if !dominated {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return dom.Less(out[i], out[j]) })
	return out
}
