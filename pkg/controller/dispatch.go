package controller

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"

	"github.com/cuemby/frontier/pkg/metrics"
	"github.com/cuemby/frontier/pkg/ts"
)

// CreateSourceCommand is the outbound command that installs a newly bound
// collection on storage workers (spec.md §4.D, §6).
type CreateSourceCommand[T comparable] struct {
	ID          CollectionID
	Description Description
	Since       ts.Antichain[T]
	Metadata    CollectionMetadata
}

// AllowCompactionCommand is the outbound command that tells a storage
// worker it may compact collection ID up to Frontier (spec.md §4.D, §6).
type AllowCompactionCommand[T comparable] struct {
	ID       CollectionID
	Frontier ts.Antichain[T]
}

// WorkerCommand carries exactly one command kind per send: either a batch
// of newly bound collections, or a batch of compaction allowances. It
// mirrors spec.md §6's single opaque "worker command channel" without
// committing to a wire encoding: the worker channel is free to serialize
// it however its transport requires.
type WorkerCommand[T comparable] struct {
	CreateSources   []CreateSourceCommand[T]
	AllowCompaction []AllowCompactionCommand[T]
}

// WorkerResponse is opaque to the controller: spec.md §6 describes recv as
// surfacing worker responses verbatim, with no structure this package needs
// to interpret.
type WorkerResponse any

// ErrWorkerChannelClosed is returned by Send/Recv once Close has been
// called on the channel.
var ErrWorkerChannelClosed = errors.New("controller: worker channel closed")

// WorkerChannel is the opaque command channel to storage workers of
// spec.md §6. Send failures are protocol-fatal (spec.md §7): the dispatcher
// never retries a failed send, since a lost command leaves the worker's
// view of the world silently behind the controller's.
type WorkerChannel[T comparable] interface {
	Send(ctx context.Context, cmd WorkerCommand[T]) error
	Recv(ctx context.Context) (WorkerResponse, error)
}

// ChannelWorkerChannel is an in-process WorkerChannel backed by buffered Go
// channels, suitable for a single-process deployment or for tests that want
// to observe exactly what the dispatcher sent.
type ChannelWorkerChannel[T comparable] struct {
	outbound chan WorkerCommand[T]
	inbound  chan WorkerResponse
	closed   chan struct{}
}

// NewChannelWorkerChannel returns a ChannelWorkerChannel with the given
// buffer depth on both directions.
func NewChannelWorkerChannel[T comparable](buffer int) *ChannelWorkerChannel[T] {
	return &ChannelWorkerChannel[T]{
		outbound: make(chan WorkerCommand[T], buffer),
		inbound:  make(chan WorkerResponse, buffer),
		closed:   make(chan struct{}),
	}
}

func (c *ChannelWorkerChannel[T]) Send(ctx context.Context, cmd WorkerCommand[T]) error {
	select {
	case <-c.closed:
		return ErrWorkerChannelClosed
	default:
	}
	select {
	case c.outbound <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return ErrWorkerChannelClosed
	}
}

func (c *ChannelWorkerChannel[T]) Recv(ctx context.Context) (WorkerResponse, error) {
	select {
	case <-c.closed:
		return nil, ErrWorkerChannelClosed
	default:
	}
	select {
	case r, ok := <-c.inbound:
		if !ok {
			return nil, io.EOF
		}
		return r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, ErrWorkerChannelClosed
	}
}

// Outbound exposes the outbound command stream for a test double or local
// worker loop to drain.
func (c *ChannelWorkerChannel[T]) Outbound() <-chan WorkerCommand[T] { return c.outbound }

// Reply delivers a worker response to the next Recv call.
func (c *ChannelWorkerChannel[T]) Reply(r WorkerResponse) { c.inbound <- r }

// Close unblocks any pending Send/Recv with ErrWorkerChannelClosed.
func (c *ChannelWorkerChannel[T]) Close() { close(c.closed) }

// Dispatcher is the command dispatcher of spec.md §4.D: it owns the worker
// channel and turns a failed send into the fatal condition spec.md §7
// requires, rather than letting the controller's state and the workers'
// state silently diverge.
type Dispatcher[T comparable] struct {
	channel WorkerChannel[T]
	logger  zerolog.Logger
	// fatal is invoked instead of terminating the process when a send
	// fails; tests override it to observe the failure instead of exiting.
	fatal func(err error)
}

// NewDispatcher returns a Dispatcher over channel, whose default fatal
// handler logs at Fatal level (terminating the process, per zerolog).
func NewDispatcher[T comparable](channel WorkerChannel[T], logger zerolog.Logger) *Dispatcher[T] {
	d := &Dispatcher[T]{channel: channel, logger: logger}
	d.fatal = func(err error) {
		d.logger.Fatal().Err(err).Msg("failed to send storage command; controller and workers have diverged")
	}
	return d
}

// CreateSources sends one CreateSources command carrying every newly bound
// collection from this create_sources call, if any.
func (d *Dispatcher[T]) CreateSources(ctx context.Context, cmds []CreateSourceCommand[T]) error {
	if len(cmds) == 0 {
		return nil
	}
	if err := d.channel.Send(ctx, WorkerCommand[T]{CreateSources: cmds}); err != nil {
		d.fatal(err)
		return err
	}
	return nil
}

// AllowCompaction sends one AllowCompaction command carrying every
// (id, frontier) pair computed by this round of frontier propagation, if
// any (spec.md §4.B: "a single command carrying all pairs").
func (d *Dispatcher[T]) AllowCompaction(ctx context.Context, cmds []AllowCompactionCommand[T]) error {
	if len(cmds) == 0 {
		return nil
	}
	if err := d.channel.Send(ctx, WorkerCommand[T]{AllowCompaction: cmds}); err != nil {
		d.fatal(err)
		return err
	}
	metrics.AllowCompactionTotal.Inc()
	metrics.AllowCompactionBatchSize.Observe(float64(len(cmds)))
	return nil
}

// Recv surfaces the next worker response verbatim.
func (d *Dispatcher[T]) Recv(ctx context.Context) (WorkerResponse, error) {
	return d.channel.Recv(ctx)
}
