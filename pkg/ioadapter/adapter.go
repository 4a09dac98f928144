// Package ioadapter translates between seekable byte sources and the
// read/seek callbacks that decoding engines pull from.
package ioadapter

import (
	"errors"
	"fmt"
	"io"

	"github.com/user/imgbridge/pkg/ports"
)

// ErrDetached is returned by callbacks invoked after the owning session has
// detached the adapter.
var ErrDetached = errors.New("ioadapter: adapter detached")

// Adapter binds one Source to a ReadFunc/SeekFunc pair. It holds no decoded
// data and forwards every call to the source.
//
// The first failure reported by the source is latched so the owning session
// can tell an I/O failure apart from a format failure the engine reports as a
// consequence of it. End of stream is not a failure.
type Adapter struct {
	src      ports.Source
	err      error
	detached bool
}

// New returns an adapter over src.
func New(src ports.Source) *Adapter {
	return &Adapter{src: src}
}

// Read fills p from the source. It keeps reading until p is full, the source
// reports end of stream, or the source fails, so it returns fewer than
// len(p) bytes only at end of stream or on error. It never reports more
// bytes than len(p).
func (a *Adapter) Read(p []byte) (int, error) {
	if a.detached {
		return 0, ErrDetached
	}
	n, err := io.ReadFull(a.src, p)
	if n > len(p) {
		n = len(p)
	}
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return n, io.EOF
	default:
		a.latch(fmt.Errorf("read %d bytes: %w", len(p), err))
		return n, err
	}
}

// Seek repositions the source and returns the new absolute offset.
func (a *Adapter) Seek(offset int64, whence int) (int64, error) {
	if a.detached {
		return 0, ErrDetached
	}
	switch whence {
	case io.SeekStart, io.SeekCurrent, io.SeekEnd:
	default:
		err := fmt.Errorf("ioadapter: invalid whence %d", whence)
		a.latch(err)
		return 0, err
	}
	pos, err := a.src.Seek(offset, whence)
	if err != nil {
		a.latch(fmt.Errorf("seek %d/%d: %w", offset, whence, err))
		return 0, err
	}
	return pos, nil
}

// Callbacks returns the adapter's methods as engine callbacks.
func (a *Adapter) Callbacks() (ports.ReadFunc, ports.SeekFunc) {
	return a.Read, a.Seek
}

// Err returns the first I/O failure observed, or nil.
func (a *Adapter) Err() error {
	return a.err
}

// Detach stops forwarding to the source. Callbacks invoked afterwards fail
// with ErrDetached instead of touching a source the caller may have closed.
func (a *Adapter) Detach() {
	a.detached = true
	a.src = nil
}

func (a *Adapter) latch(err error) {
	if a.err == nil {
		a.err = err
	}
}
