package ports

// FileSystem abstracts file system operations.
type FileSystem interface {
	// Open opens a file for decoding.
	Open(path string) (SourceFile, error)

	// ReadFile reads the entire contents of a file.
	ReadFile(path string) ([]byte, error)

	// WriteFile writes data to a file, creating it and any missing parent
	// directories if necessary.
	WriteFile(path string, data []byte) error
}
