package controller

import "github.com/cuemby/frontier/pkg/ts"

// ReadPolicy computes a proposed read capability frontier from a
// collection's current write frontier (spec.md §3). It is a function value
// rather than an interface so the common ValidFrom and LagBy shapes, plus
// any caller-supplied policy, all share one representation.
type ReadPolicy[T comparable] struct {
	frontier func(write ts.Antichain[T]) ts.Antichain[T]
}

// Frontier applies the policy to a write frontier, yielding the capability
// it would like to hold.
func (p ReadPolicy[T]) Frontier(write ts.Antichain[T]) ts.Antichain[T] {
	return p.frontier(write)
}

// ValidFrom is the read policy that holds a fixed frontier regardless of
// write progress, used both directly and as drop_sources' "hold the empty
// frontier forever" policy (spec.md §4.A).
func ValidFrom[T comparable](frontier ts.Antichain[T]) ReadPolicy[T] {
	return ReadPolicy[T]{frontier: func(ts.Antichain[T]) ts.Antichain[T] { return frontier }}
}

// LagBy is the read policy that trails the write frontier by a fixed
// caller-defined step, applied pointwise to every element of the write
// frontier. step must be monotone and must not cross the domain's minimum.
func LagBy[T comparable](dom ts.Domain[T], step func(T) T) ReadPolicy[T] {
	return ReadPolicy[T]{
		frontier: func(write ts.Antichain[T]) ts.Antichain[T] {
			elems := write.Elements()
			stepped := make([]T, len(elems))
			for i, t := range elems {
				stepped[i] = step(t)
			}
			return ts.NewAntichain(dom, stepped...)
		},
	}
}

// LagByInt64 is the int64-domain convenience form of LagBy: trails the
// write frontier by delta, floored at zero.
func LagByInt64(delta int64) ReadPolicy[int64] {
	return LagBy(ts.Int64Domain, func(t int64) int64 {
		if t < delta {
			return 0
		}
		return t - delta
	})
}

// CustomPolicy wraps an arbitrary write-frontier-to-capability function as a
// ReadPolicy, for callers that need neither ValidFrom nor LagBy exactly
// (spec.md §3: "or a caller-supplied function of the write frontier").
func CustomPolicy[T comparable](f func(write ts.Antichain[T]) ts.Antichain[T]) ReadPolicy[T] {
	return ReadPolicy[T]{frontier: f}
}
