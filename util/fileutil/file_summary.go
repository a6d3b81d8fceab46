package fileutil

import (
	"os"
	"time"
)

// FileSummary describes one regular file found by a Walker.
type FileSummary struct {
	// RelPath is relative to the bag root and always uses "/".
	RelPath string
	AbsPath string
	Mode    os.FileMode
	Size    int64
	ModTime time.Time
}

func newFileSummary(relPath, absPath string, info os.FileInfo) *FileSummary {
	return &FileSummary{
		RelPath: relPath,
		AbsPath: absPath,
		Mode:    info.Mode(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
}
