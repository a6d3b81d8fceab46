package fileutil

import (
	"io"
	"io/ioutil"
	"os"
)

// WriteFile is a file opened for writing by FileSystem.Create.
type WriteFile interface {
	io.Writer
	Sync() error
	Close() error
}

// FileSystem is everything the bag engine asks of the operating
// system. Tests substitute their own implementation to count reads
// or to make a particular write fail.
type FileSystem interface {
	Lstat(name string) (os.FileInfo, error)
	Stat(name string) (os.FileInfo, error)
	// ReadDir returns the entries of a directory sorted by name. Entry
	// info must describe the entry itself, not what a link points to.
	ReadDir(name string) ([]os.FileInfo, error)
	Open(name string) (io.ReadCloser, error)
	// Create makes a new file, failing if it already exists.
	Create(name string) (WriteFile, error)
	Rename(oldpath, newpath string) error
	Remove(name string) error
}

// OSFileSystem is the FileSystem backed by package os.
type OSFileSystem struct{}

// OS is the default FileSystem.
var OS FileSystem = OSFileSystem{}

func (OSFileSystem) Lstat(name string) (os.FileInfo, error) {
	return os.Lstat(name)
}

func (OSFileSystem) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

func (OSFileSystem) ReadDir(name string) ([]os.FileInfo, error) {
	return ioutil.ReadDir(name)
}

func (OSFileSystem) Open(name string) (io.ReadCloser, error) {
	return os.Open(name)
}

func (OSFileSystem) Create(name string) (WriteFile, error) {
	return os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
}

func (OSFileSystem) Rename(oldpath, newpath string) error {
	return os.Rename(oldpath, newpath)
}

func (OSFileSystem) Remove(name string) error {
	return os.Remove(name)
}
