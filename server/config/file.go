package config

import "errors"

// File is a configuration file stored in a plugin's data directory.
type File interface {
	// Name returns the name of the file without its extension.
	Name() string
	// Extension returns the extension of the file, including the dot.
	Extension() string
	// DataDirectory returns the directory containing the file.
	DataDirectory() string
	// Path returns the full path of the file.
	Path() string
	// Create materialises the file on disk if it does not exist yet and loads
	// it.
	Create() error
	// Reload reads the file from disk again.
	Reload() error
}

var (
	// ErrParentDirectory is returned when the directory holding a file could
	// not be created.
	ErrParentDirectory = errors.New("parent directory unavailable")
	// ErrTemplateMissing is returned when a file must be created but no bundled
	// template exists for it.
	ErrTemplateMissing = errors.New("bundled template missing")
	// ErrMalformed is returned when a file could not be parsed. The values
	// loaded before are kept.
	ErrMalformed = errors.New("malformed configuration")
)
