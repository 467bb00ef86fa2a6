package adapter

import "os"

// FileSystem defines an interface for file operations to enable mocking
//
//go:generate mockgen -source=filesystem.go -destination=../mocks/filesystem.go -package=mocks -mock_names=FileSystem=MockFileSystem
type FileSystem interface {
	ReadFile(name string) ([]byte, error)
}

// RealFileSystem implements FileSystem using the standard os package
type RealFileSystem struct{}

// NewFileSystem creates a new real file system implementation
func NewFileSystem() FileSystem {
	return &RealFileSystem{}
}

func (f *RealFileSystem) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}
