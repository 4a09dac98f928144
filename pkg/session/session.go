// Package session drives one decoding engine through a single image: open,
// describe, fill a caller buffer, copy out metadata, close.
//
// A Session is not safe for concurrent use. Independent sessions over
// independent sources may run in parallel.
package session

import (
	"errors"
	"fmt"

	"github.com/user/imgbridge/pkg/formats"
	"github.com/user/imgbridge/pkg/ioadapter"
	"github.com/user/imgbridge/pkg/logsink"
	"github.com/user/imgbridge/pkg/metadata"
	"github.com/user/imgbridge/pkg/pixel"
	"github.com/user/imgbridge/pkg/ports"
)

// State is a session's position in its lifecycle.
type State int

const (
	// StateClosed is both the initial and the terminal state.
	StateClosed State = iota
	// StateOpen holds an engine handle bound to one source.
	StateOpen
	// StateInfo is StateOpen with the image descriptor known.
	StateInfo
	// StateFilled is StateInfo after a successful pixel fill.
	StateFilled
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateInfo:
		return "info"
	case StateFilled:
		return "filled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	errAlreadyOpen = errors.New("session already open")
	errNotOpen     = errors.New("session not open")
	errNoInfo      = errors.New("image info not queried")
	errNilSource   = errors.New("nil source")
	errNilEngine   = errors.New("no engine for format")
)

// Session owns at most one engine handle and the adapter bound to it. The
// adapter lives exactly as long as the handle.
type Session struct {
	format formats.Tag
	engine ports.Engine

	state   State
	adapter *ioadapter.Adapter
	handle  ports.EngineHandle
	native  ports.NativeImageInfo
	desc    ImageDescriptor
}

// New returns a closed session that will open images of format with
// engine.
func New(format formats.Tag, engine ports.Engine) *Session {
	return &Session{format: format, engine: engine}
}

// Format returns the container format the session decodes.
func (s *Session) Format() formats.Tag {
	return s.format
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Open binds src to a new engine context. On failure the session stays
// closed; calling Close afterwards is still allowed.
func (s *Session) Open(src ports.Source) error {
	if s.state != StateClosed {
		return s.errorf("open", KindInvalidParameter, errAlreadyOpen)
	}
	if src == nil {
		return s.errorf("open", KindInvalidParameter, errNilSource)
	}
	if s.engine == nil {
		return s.errorf("open", KindInvalidParameter, errNilEngine)
	}

	adapter := ioadapter.New(src)
	read, seek := adapter.Callbacks()
	handle, err := s.engine.Open(read, seek)
	if err != nil {
		adapter.Detach()
		if handle != nil {
			s.release(handle)
		}
		return s.fail("open", err, adapter.Err())
	}
	if handle == nil {
		adapter.Detach()
		return s.errorf("open", KindInternal, errors.New("engine returned no handle"))
	}

	s.adapter = adapter
	s.handle = handle
	s.state = StateOpen
	logsink.Logf(logsink.Debug, "session: opened %s", s.format)
	return nil
}

// Info queries the engine for the image descriptor. The result is cached
// for the rest of the session.
func (s *Session) Info() (ImageDescriptor, error) {
	switch s.state {
	case StateClosed:
		return ImageDescriptor{}, s.errorf("info", KindInvalidParameter, errNotOpen)
	case StateInfo, StateFilled:
		return s.desc, nil
	}

	native, err := s.handle.ImageInfo()
	if err != nil {
		return ImageDescriptor{}, s.fail("info", err, s.adapter.Err())
	}
	desc, err := describe(s.format, native)
	if err != nil {
		return ImageDescriptor{}, s.fail("info", err, nil)
	}

	s.native = native
	s.desc = desc
	s.state = StateInfo
	return desc, nil
}

// FetchPixels decodes the image into dst, which must be exactly
// ImageDescriptor.BufferSize bytes long. The size is checked before the
// engine is called. On failure the contents of dst are undefined.
func (s *Session) FetchPixels(dst []byte) error {
	switch s.state {
	case StateClosed:
		return s.errorf("fetch", KindInvalidParameter, errNotOpen)
	case StateOpen:
		return s.errorf("fetch", KindInvalidParameter, errNoInfo)
	}

	if err := pixel.CheckBuffer(dst, s.desc.Width, s.desc.Height, s.desc.Layout); err != nil {
		return s.fail("fetch", err, nil)
	}
	if err := s.handle.ImageData(dst); err != nil {
		return s.fail("fetch", err, s.adapter.Err())
	}
	if err := s.adapter.Err(); err != nil {
		return s.fail("fetch", err, err)
	}

	s.state = StateFilled
	return nil
}

// ExtractMetadata returns caller-owned copies of the image's metadata. It
// queries the descriptor first if Info has not been called.
func (s *Session) ExtractMetadata() (metadata.Blobs, error) {
	if s.state == StateClosed {
		return metadata.Blobs{}, s.errorf("metadata", KindInvalidParameter, errNotOpen)
	}
	if s.state == StateOpen {
		if _, err := s.Info(); err != nil {
			return metadata.Blobs{}, err
		}
	}
	return metadata.Extract(s.native), nil
}

// Close releases the engine handle and detaches the adapter. It is
// idempotent and never fails; a release error is reported to the log sink.
func (s *Session) Close() {
	if s.state == StateClosed {
		return
	}
	handle := s.handle
	s.handle = nil
	s.native = ports.NativeImageInfo{}
	s.desc = ImageDescriptor{}
	s.state = StateClosed

	s.release(handle)
	s.adapter.Detach()
	s.adapter = nil
	logsink.Logf(logsink.Debug, "session: closed %s", s.format)
}

func (s *Session) release(h ports.EngineHandle) {
	if err := h.Close(); err != nil {
		logsink.Logf(logsink.Warning, "session: release %s handle: %v", s.format, err)
	}
}

func (s *Session) fail(op string, err, ioErr error) error {
	kind, cause := classify(err, ioErr)
	return &Error{Kind: kind, Op: op, Format: s.format, Err: cause}
}

func (s *Session) errorf(op string, kind Kind, err error) error {
	return &Error{Kind: kind, Op: op, Format: s.format, Err: err}
}

// With opens a session over src, runs fn and closes the session on every
// path, including a panic in fn.
func With(format formats.Tag, engine ports.Engine, src ports.Source, fn func(*Session) error) error {
	s := New(format, engine)
	defer s.Close()
	if err := s.Open(src); err != nil {
		return err
	}
	return fn(s)
}
