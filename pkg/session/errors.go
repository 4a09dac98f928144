package session

import (
	"errors"
	"fmt"

	"github.com/user/imgbridge/pkg/formats"
	"github.com/user/imgbridge/pkg/pixel"
	"github.com/user/imgbridge/pkg/ports"
)

// Kind classifies a session failure.
type Kind int

const (
	// KindUnknown is the zero Kind. KindOf reports it for errors that did
	// not come from a session.
	KindUnknown Kind = iota
	// KindInvalidParameter is a caller error: a nil source, a wrong buffer
	// size or a call out of order.
	KindInvalidParameter
	// KindBadFormat means the stream is not a valid file of the format.
	KindBadFormat
	// KindInternal is an unexpected or unclassified engine failure.
	KindInternal
	// KindImageTooLarge means the dimensions exceed the engine or the
	// configured pixel limit.
	KindImageTooLarge
	// KindUnimplemented is a native layout or feature with no mapping.
	KindUnimplemented
	// KindIoFailure means the source failed to read or seek.
	KindIoFailure
)

func (k Kind) String() string {
	switch k {
	case KindInvalidParameter:
		return "invalid parameter"
	case KindBadFormat:
		return "bad format"
	case KindInternal:
		return "internal error"
	case KindImageTooLarge:
		return "image too large"
	case KindUnimplemented:
		return "unimplemented"
	case KindIoFailure:
		return "i/o failure"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is, one per kind.
var (
	ErrInvalidParameter = errors.New("session: invalid parameter")
	ErrBadFormat        = errors.New("session: bad format")
	ErrInternal         = errors.New("session: internal error")
	ErrImageTooLarge    = errors.New("session: image too large")
	ErrUnimplemented    = errors.New("session: unimplemented")
	ErrIoFailure        = errors.New("session: i/o failure")
)

func (k Kind) sentinel() error {
	switch k {
	case KindInvalidParameter:
		return ErrInvalidParameter
	case KindBadFormat:
		return ErrBadFormat
	case KindInternal:
		return ErrInternal
	case KindImageTooLarge:
		return ErrImageTooLarge
	case KindUnimplemented:
		return ErrUnimplemented
	case KindIoFailure:
		return ErrIoFailure
	default:
		return nil
	}
}

// Error is returned by every failing session operation.
type Error struct {
	Kind   Kind
	Op     string
	Format formats.Tag
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Format, e.Kind)
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Format, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of e's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindUnknown.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnknown
}

// classify maps an engine or mapper failure onto a kind. A latched I/O
// failure takes precedence because the engine usually reports it as a
// format error.
func classify(err, ioErr error) (Kind, error) {
	if ioErr != nil {
		return KindIoFailure, ioErr
	}
	switch {
	case errors.Is(err, ports.ErrEngineInvalidParameter), errors.Is(err, pixel.ErrBufferSize):
		return KindInvalidParameter, err
	case errors.Is(err, ports.ErrEngineBadFormat):
		return KindBadFormat, err
	case errors.Is(err, ports.ErrEngineImageTooLarge), errors.Is(err, pixel.ErrTooLarge):
		return KindImageTooLarge, err
	case errors.Is(err, pixel.ErrUnimplemented):
		return KindUnimplemented, err
	default:
		return KindInternal, err
	}
}
