// Package logsink holds the process-wide diagnostic sink that decoding
// engines report through.
//
// At most one sink is registered at a time. When none is registered,
// messages are dropped; they are never buffered.
package logsink

import (
	"fmt"
	"sync"

	"github.com/user/imgbridge/pkg/ports"
)

// Level is the severity of an engine diagnostic.
type Level int

const (
	Debug Level = iota
	Info
	Warning
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "debug"
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Sink receives engine diagnostics. It may be called from any goroutine
// that drives a decode session.
type Sink func(level Level, message string)

var (
	mu   sync.RWMutex
	sink Sink
)

// Set registers s as the process-wide sink and returns the previously
// registered one. Passing nil is equivalent to Clear.
func Set(s Sink) Sink {
	mu.Lock()
	defer mu.Unlock()
	prev := sink
	sink = s
	return prev
}

// Clear deregisters the current sink.
func Clear() {
	Set(nil)
}

// Enabled reports whether a sink is registered.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return sink != nil
}

// Log delivers message to the registered sink, if any. The sink runs
// outside the registration lock so it may itself call Set.
func Log(level Level, message string) {
	mu.RLock()
	s := sink
	mu.RUnlock()
	if s != nil {
		s(level, message)
	}
}

// Logf formats and delivers a message. Formatting is skipped when no sink is
// registered.
func Logf(level Level, format string, args ...interface{}) {
	mu.RLock()
	s := sink
	mu.RUnlock()
	if s != nil {
		s(level, fmt.Sprintf(format, args...))
	}
}

// ToLogger returns a sink that forwards to l, mapping levels one to one.
func ToLogger(l ports.Logger) Sink {
	return func(level Level, message string) {
		switch level {
		case Debug:
			l.Debug("%s", message)
		case Info:
			l.Info("%s", message)
		case Warning:
			l.Warn("%s", message)
		default:
			l.Error("%s", message)
		}
	}
}
