package controller

import "sort"

// Registry is the collection registry of spec.md §4.A: the authoritative
// map from collection id to collection state, plus the id-reuse validation
// that guards it. It is not safe for concurrent use on its own (Controller
// serializes all access under its own mutex, matching the single-threaded
// cooperative actor model of spec.md §5).
type Registry[T comparable] struct {
	collections map[CollectionID]*CollectionState[T]
}

// NewRegistry returns an empty registry.
func NewRegistry[T comparable]() *Registry[T] {
	return &Registry[T]{collections: make(map[CollectionID]*CollectionState[T])}
}

// Get looks up a collection's state, or reports MissingIdentifierError.
func (r *Registry[T]) Get(id CollectionID) (*CollectionState[T], error) {
	cs, ok := r.collections[id]
	if !ok {
		return nil, &MissingIdentifierError{ID: id}
	}
	return cs, nil
}

// Install records cs as the state for id, overwriting any prior state.
// create_sources calls this after ValidateBindings has accepted the id;
// Restore calls it to reinstall snapshotted collections without validation.
func (r *Registry[T]) Install(id CollectionID, cs *CollectionState[T]) {
	r.collections[id] = cs
}

// IDs returns every registered collection id, in ascending order. Used by
// Raft snapshotting (pkg/raftlog) to walk the full registry deterministically.
func (r *Registry[T]) IDs() []CollectionID {
	ids := make([]CollectionID, 0, len(r.collections))
	for id := range r.collections {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ValidateBindings sorts a create_sources batch by id, collapses exact
// duplicates, and rejects any id that is bound (within this batch or
// already in the registry) to a different description or initial since,
// and any id already in the registry whose implied capability has reached
// the empty antichain (a dropped collection: its slot is never reused).
// It returns the deduplicated batch, still in id order, ready to install.
//
// The whole batch is validated before any of it is installed: a later
// binding's conflict must not leave earlier bindings in this call
// half-installed (spec.md §4.A).
func (r *Registry[T]) ValidateBindings(bindings []Binding[T]) ([]Binding[T], error) {
	sorted := append([]Binding[T](nil), bindings...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	deduped := sorted[:0]
	for i, b := range sorted {
		if i > 0 && len(deduped) > 0 && deduped[len(deduped)-1].ID == b.ID {
			prev := deduped[len(deduped)-1]
			if prev.Description == b.Description && prev.Since.Equal(b.Since) {
				continue
			}
			return nil, &IDReusedError{ID: b.ID}
		}
		deduped = append(deduped, b)
	}

	for _, b := range deduped {
		if existing, ok := r.collections[b.ID]; ok {
			if existing.ImpliedCapability.IsEmpty() || existing.Description != b.Description || !existing.Since.Equal(b.Since) {
				return nil, &IDReusedError{ID: b.ID}
			}
		}
	}

	return deduped, nil
}
