// Package summarizer provides summary generation for identify runs.
package summarizer

import (
	"errors"
	"time"

	"github.com/user/imgbridge/pkg/session"
)

// Summary contains all data collected during an identify run.
type Summary struct {
	// Metadata
	GeneratedAt time.Time

	// Run settings
	Settings Settings

	// Per-file results in input order
	Files []FileEntry
}

// Settings contains the configuration the run used.
type Settings struct {
	ProbeOrder   []string
	Workers      int
	SkipMetadata bool
	// MaxPixels is zero when unlimited.
	MaxPixels    uint64
}

// FileEntry is the outcome for one input file. Exactly one of Image and
// Error is set.
type FileEntry struct {
	Path      string
	Size      int64
	Image     *session.ImageDescriptor
	Error     string
	ErrorKind string
}

// Succeeded returns the number of files identified.
func (s *Summary) Succeeded() int {
	n := 0
	for _, f := range s.Files {
		if f.Image != nil {
			n++
		}
	}
	return n
}

// Failed returns the number of files that could not be identified.
func (s *Summary) Failed() int {
	return len(s.Files) - s.Succeeded()
}

// NewSummary creates a new Summary with the current timestamp.
func NewSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Now(),
	}
}

// Builder provides a fluent interface for building a Summary.
type Builder struct {
	summary *Summary
}

// NewBuilder creates a new Builder.
func NewBuilder() *Builder {
	return &Builder{
		summary: NewSummary(),
	}
}

// WithSettings sets run settings.
func (b *Builder) WithSettings(settings Settings) *Builder {
	b.summary.Settings = settings
	return b
}

// AddImage records an identified file.
func (b *Builder) AddImage(path string, size int64, desc session.ImageDescriptor) *Builder {
	b.summary.Files = append(b.summary.Files, FileEntry{
		Path:  path,
		Size:  size,
		Image: &desc,
	})
	return b
}

// AddFailure records a file that could not be identified.
func (b *Builder) AddFailure(path string, err error) *Builder {
	entry := FileEntry{Path: path, Error: err.Error()}
	var se *session.Error
	if errors.As(err, &se) {
		entry.ErrorKind = se.Kind.String()
	}
	b.summary.Files = append(b.summary.Files, entry)
	return b
}

// Build returns the constructed Summary.
func (b *Builder) Build() *Summary {
	return b.summary
}
