package mocks

import (
	"io"
	"sync"

	"github.com/user/imgbridge/pkg/ports"
)

// Engine is a mock implementation of ports.Engine. By default Open reads
// ReadOnOpen bytes through the bound callbacks and returns a Handle built
// from Info.
type Engine struct {
	mu sync.Mutex

	// Info is what handles report from ImageInfo.
	Info ports.NativeImageInfo
	// Fill is the byte written to every destination byte by ImageData.
	Fill byte
	// ReadOnOpen is the number of bytes read through the callbacks during
	// Open. A failing read makes Open fail with ErrEngineBadFormat, as a
	// real engine that cannot parse a truncated container would.
	ReadOnOpen int

	OpenFunc      func(read ports.ReadFunc, seek ports.SeekFunc) (ports.EngineHandle, error)
	InfoFunc      func() (ports.NativeImageInfo, error)
	ImageDataFunc func(read ports.ReadFunc, dst []byte) error
	CloseFunc     func() error

	OpenCalls int
	Handles   []*Handle
}

// NewEngine creates a mock Engine reporting info.
func NewEngine(info ports.NativeImageInfo) *Engine {
	return &Engine{Info: info}
}

func (m *Engine) Open(read ports.ReadFunc, seek ports.SeekFunc) (ports.EngineHandle, error) {
	m.mu.Lock()
	m.OpenCalls++
	m.mu.Unlock()

	if m.OpenFunc != nil {
		return m.OpenFunc(read, seek)
	}
	if read == nil || seek == nil {
		return nil, ports.ErrEngineInvalidParameter
	}
	if m.ReadOnOpen > 0 {
		buf := make([]byte, m.ReadOnOpen)
		if n, err := read(buf); (err != nil && err != io.EOF) || n < len(buf) {
			return nil, ports.ErrEngineBadFormat
		}
	}

	info := m.Info
	info.Exif = clone(info.Exif)
	info.XMP = clone(info.XMP)
	info.ICC = clone(info.ICC)

	h := &Handle{engine: m, info: info, read: read, seek: seek}
	m.mu.Lock()
	m.Handles = append(m.Handles, h)
	m.mu.Unlock()
	return h, nil
}

// Handle is a mock implementation of ports.EngineHandle. Closing it
// overwrites the engine-owned metadata so that callers still holding
// references observe garbage, as they would with a real engine.
type Handle struct {
	engine *Engine
	info   ports.NativeImageInfo
	read   ports.ReadFunc
	seek   ports.SeekFunc

	InfoCalls  int
	DataCalls  int
	CloseCalls int
	closed     bool
}

func (h *Handle) ImageInfo() (ports.NativeImageInfo, error) {
	h.InfoCalls++
	if h.closed {
		return ports.NativeImageInfo{}, ports.ErrEngineInvalidParameter
	}
	if h.engine.InfoFunc != nil {
		return h.engine.InfoFunc()
	}
	return h.info, nil
}

func (h *Handle) ImageData(dst []byte) error {
	h.DataCalls++
	if h.closed {
		return ports.ErrEngineInvalidParameter
	}
	if h.engine.ImageDataFunc != nil {
		return h.engine.ImageDataFunc(h.read, dst)
	}
	for i := range dst {
		dst[i] = h.engine.Fill
	}
	return nil
}

func (h *Handle) Close() error {
	h.CloseCalls++
	if !h.closed {
		scribble(h.info.Exif)
		scribble(h.info.XMP)
		scribble(h.info.ICC)
		h.closed = true
	}
	if h.engine.CloseFunc != nil {
		return h.engine.CloseFunc()
	}
	return nil
}

// Closed reports whether Close has been called.
func (h *Handle) Closed() bool {
	return h.closed
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func scribble(b []byte) {
	for i := range b {
		b[i] = 0xDD
	}
}

var (
	_ ports.Engine       = (*Engine)(nil)
	_ ports.EngineHandle = (*Handle)(nil)
)
