package controller

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/cuemby/frontier/pkg/metrics"
	"github.com/cuemby/frontier/pkg/storage"
	"github.com/cuemby/frontier/pkg/ts"
)

// AppendCoordinator is the append coordinator of spec.md §4.C: it validates
// each update against its batch's declared upper, durably commits via
// compare-and-append, and feeds the resulting upper movement into the
// frontier engine as a write-frontier change.
type AppendCoordinator[T comparable] struct {
	registry *Registry[T]
	frontier *FrontierEngine[T]
	dom      ts.Domain[T]
	logger   zerolog.Logger
}

// NewAppendCoordinator returns an AppendCoordinator wired to registry and
// frontier.
func NewAppendCoordinator[T comparable](registry *Registry[T], frontier *FrontierEngine[T], dom ts.Domain[T], logger zerolog.Logger) *AppendCoordinator[T] {
	return &AppendCoordinator[T]{registry: registry, frontier: frontier, dom: dom, logger: logger}
}

// Append processes each command in order: every update must carry a
// timestamp strictly less than its command's new upper, or the command
// fails with UpdateBeyondUpperError before any durable call is made. A new
// upper that does not advance past the collection's current upper fails
// with InvalidUpperError, also before any durable call. The
// durable store's compare-and-append then either succeeds (advancing the
// collection's write frontier and propagating the effect) or the
// collection's actual upper has moved past what this command expected, in
// which case it fails with InvalidUpperError. Commands earlier in the batch
// that already committed are not rolled back: spec.md §4.C treats each
// command as independently atomic, not the batch as a whole.
func (a *AppendCoordinator[T]) Append(ctx context.Context, commands []AppendCommand[T]) error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.AppendDuration)

	for _, cmd := range commands {
		for _, u := range cmd.Updates {
			if !a.dom.Less(u.Time, cmd.NewUpper) {
				metrics.AppendTotal.WithLabelValues("update_beyond_upper").Inc()
				return &UpdateBeyondUpperError{ID: cmd.ID}
			}
		}

		cs, err := a.registry.Get(cmd.ID)
		if err != nil {
			metrics.AppendTotal.WithLabelValues("missing_identifier").Inc()
			return err
		}

		oldUpper := cs.WriteFrontier.Frontier()
		newUpper := ts.NewAntichain(a.dom, cmd.NewUpper)
		if newUpper.LessEqual(oldUpper) {
			metrics.AppendTotal.WithLabelValues("invalid_upper").Inc()
			return &InvalidUpperError{ID: cmd.ID}
		}

		keyed := make([]storage.KeyedUpdate[T], len(cmd.Updates))
		for i, u := range cmd.Updates {
			keyed[i] = storage.KeyedUpdate[T]{Key: u.Row, Time: u.Time, Diff: u.Diff}
		}

		if err := cs.Handles.Writer.CompareAndAppend(ctx, keyed, oldUpper, newUpper); err != nil {
			if errors.Is(err, storage.ErrUpperMismatch) {
				metrics.CompareAndAppendMismatchTotal.Inc()
				metrics.AppendTotal.WithLabelValues("invalid_upper").Inc()
				return &InvalidUpperError{ID: cmd.ID}
			}
			metrics.AppendTotal.WithLabelValues("client_error").Inc()
			a.logger.Error().Err(err).Uint64("collection_id", uint64(cmd.ID)).Msg("compare-and-append failed against the durable store")
			return &ClientError{ID: cmd.ID, Cause: err}
		}

		batch := ts.NewChangeBatch[T]()
		for _, t := range newUpper.Elements() {
			batch.Add(t, 1)
		}
		for _, t := range oldUpper.Elements() {
			batch.Add(t, -1)
		}
		if batch.IsEmpty() {
			metrics.AppendTotal.WithLabelValues("success").Inc()
			continue
		}
		if err := a.frontier.UpdateWriteFrontiers(ctx, map[CollectionID]*ts.ChangeBatch[T]{cmd.ID: batch}); err != nil {
			metrics.AppendTotal.WithLabelValues("client_error").Inc()
			return err
		}
		metrics.AppendTotal.WithLabelValues("success").Inc()
	}
	return nil
}
