package mocks

import (
	"bytes"
	"errors"
	"io"
	"sync"

	"github.com/user/imgbridge/pkg/ports"
)

// ErrForced is the error a Source returns once a forced failure triggers.
var ErrForced = errors.New("mocks: forced source failure")

// Source is a mock implementation of ports.SourceFile over an in-memory
// byte slice. Failures can be forced after a number of bytes or on seek.
type Source struct {
	mu     sync.Mutex
	r      *bytes.Reader
	name   string
	served int64

	// FailAfter makes reads fail once this many bytes have been served.
	// Negative disables the failure.
	FailAfter int64
	// FailSeek makes every seek fail.
	FailSeek bool
	// Err overrides ErrForced.
	Err error
	// MaxChunk caps the bytes returned per Read call when positive.
	MaxChunk int

	ReadCalls  int
	SeekCalls  int
	CloseCalls int
}

// NewSource creates a mock Source serving data.
func NewSource(data []byte) *Source {
	return &Source{r: bytes.NewReader(data), name: "mock", FailAfter: -1}
}

// NewNamedSource creates a mock Source that reports name from Name().
func NewNamedSource(name string, data []byte) *Source {
	s := NewSource(data)
	s.name = name
	return s
}

func (s *Source) forced() error {
	if s.Err != nil {
		return s.Err
	}
	return ErrForced
}

func (s *Source) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ReadCalls++

	if s.FailAfter >= 0 {
		left := s.FailAfter - s.served
		if left <= 0 {
			return 0, s.forced()
		}
		if int64(len(p)) > left {
			p = p[:left]
		}
	}
	if s.MaxChunk > 0 && len(p) > s.MaxChunk {
		p = p[:s.MaxChunk]
	}
	n, err := s.r.Read(p)
	s.served += int64(n)
	return n, err
}

func (s *Source) Seek(offset int64, whence int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SeekCalls++
	if s.FailSeek {
		return 0, s.forced()
	}
	return s.r.Seek(offset, whence)
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCalls++
	return nil
}

func (s *Source) Name() string {
	return s.name
}

// Served returns the number of bytes handed out so far.
func (s *Source) Served() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.served
}

var (
	_ ports.SourceFile = (*Source)(nil)
	_ io.ReadSeeker    = (*Source)(nil)
)
