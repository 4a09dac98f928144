package ioadapter

import (
	"errors"
	"io"

	"github.com/user/imgbridge/pkg/ports"
)

// Stream is the engine-side view of a callback pair: an io.ReadSeeker and
// io.ReaderAt that forward to ReadFunc and SeekFunc. Engines use it to hand
// callbacks to libraries that expect standard readers.
//
// Every ReadAt is a seek followed by a read, so a Stream must not be shared
// between goroutines.
type Stream struct {
	read ports.ReadFunc
	seek ports.SeekFunc
}

// NewStream wraps read and seek.
func NewStream(read ports.ReadFunc, seek ports.SeekFunc) *Stream {
	return &Stream{read: read, seek: seek}
}

// Read forwards to the read callback.
func (s *Stream) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := s.read(p)
	if n == 0 && err == nil {
		return 0, io.EOF
	}
	return n, err
}

// Seek forwards to the seek callback.
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	return s.seek(offset, whence)
}

// ReadAt seeks to off and reads len(p) bytes. A short read is reported as
// io.ErrUnexpectedEOF, or io.EOF when nothing was read.
func (s *Stream) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("ioadapter: negative offset")
	}
	if _, err := s.seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	return io.ReadFull(readerFunc(s.read), p)
}

// Size returns the total length of the stream and leaves the position at
// the start.
func (s *Stream) Size() (int64, error) {
	end, err := s.seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := s.seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	return end, nil
}

type readerFunc ports.ReadFunc

func (f readerFunc) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := f(p)
	if n == 0 && err == nil {
		return 0, io.EOF
	}
	return n, err
}
