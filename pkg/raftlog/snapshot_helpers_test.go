package raftlog

import (
	"io"
	"testing"
)

// fakeSink adapts an io.WriteCloser (one end of an io.Pipe in tests) to
// raft.SnapshotSink, which additionally requires ID and Cancel.
type fakeSink struct {
	io.WriteCloser
}

func (f *fakeSink) ID() string    { return "test-snapshot" }
func (f *fakeSink) Cancel() error { return f.Close() }

func newPipe(t *testing.T) (*io.PipeReader, *io.PipeWriter) {
	t.Helper()
	return io.Pipe()
}
