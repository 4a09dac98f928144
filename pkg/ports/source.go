package ports

import "io"

// Source is a seekable byte source that a decode session pulls from. Reads
// may block; the session never reads concurrently from one source.
type Source interface {
	io.Reader
	io.Seeker
}

// SourceFile is a Source backed by an open file.
type SourceFile interface {
	Source
	io.Closer

	// Name returns the path the file was opened with.
	Name() string
}
