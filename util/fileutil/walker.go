package fileutil

import (
	"fmt"
	"github.com/APTrust/bagr/bagerr"
	"github.com/APTrust/bagr/constants"
	"github.com/pkg/errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
)

type WarningKind int

const (
	SkippedSymlink WarningKind = iota + 1
	SkippedIrregular
)

func (kind WarningKind) String() string {
	switch kind {
	case SkippedSymlink:
		return "SkippedSymlink"
	case SkippedIrregular:
		return "SkippedIrregular"
	}
	return fmt.Sprintf("WarningKind(%d)", int(kind))
}

// Warning records something the walker chose not to include.
type Warning struct {
	Kind WarningKind
	Path string
}

type dirFrame struct {
	relPath string
	entries []os.FileInfo
	next    int
}

// Walker lists the regular files of one scope of a bag, one at a
// time, in byte order of their slash-separated relative paths.
//
// Payload scope covers everything under data/. Tag scope covers
// everything else at the bag root. Symlinks are never followed; they
// and any other non-regular files are skipped and show up in
// Warnings instead. Directories are read only when the walk reaches
// them, so the full file list is never held in memory.
type Walker struct {
	// Exclude, if set, is called with the relative path of every file
	// and directory. Returning true leaves it out of the walk.
	Exclude func(relPath string) bool

	fs       FileSystem
	root     string
	scope    constants.Scope
	stack    []*dirFrame
	started  bool
	warnings []Warning
}

// NewWalker returns a Walker over scope of the bag at root.
func NewWalker(fs FileSystem, root string, scope constants.Scope) *Walker {
	return &Walker{
		fs:    fs,
		root:  root,
		scope: scope,
	}
}

// Next returns the next file, or io.EOF when there are no more. A
// payload walk of a bag with no data directory is simply empty.
func (walker *Walker) Next() (*FileSummary, error) {
	if !walker.started {
		walker.started = true
		startRel := ""
		if walker.scope == constants.ScopePayload {
			startRel = constants.DataDir
		}
		if err := walker.push(startRel); err != nil {
			if errors.Is(err, os.ErrNotExist) && startRel != "" {
				return nil, io.EOF
			}
			return nil, err
		}
	}
	for len(walker.stack) > 0 {
		frame := walker.stack[len(walker.stack)-1]
		if frame.next >= len(frame.entries) {
			walker.stack = walker.stack[:len(walker.stack)-1]
			continue
		}
		info := frame.entries[frame.next]
		frame.next++

		relPath := path.Join(frame.relPath, info.Name())
		if walker.skip(frame, info, relPath) {
			continue
		}
		mode := info.Mode()
		switch {
		case mode&os.ModeSymlink != 0:
			walker.warnings = append(walker.warnings, Warning{Kind: SkippedSymlink, Path: relPath})
		case mode.IsDir():
			if err := walker.push(relPath); err != nil {
				return nil, err
			}
		case mode.IsRegular():
			return newFileSummary(relPath, walker.absPath(relPath), info), nil
		default:
			walker.warnings = append(walker.warnings, Warning{Kind: SkippedIrregular, Path: relPath})
		}
	}
	return nil, io.EOF
}

func (walker *Walker) skip(frame *dirFrame, info os.FileInfo, relPath string) bool {
	if walker.scope == constants.ScopeTag && frame.relPath == "" && info.Name() == constants.DataDir {
		return true
	}
	return walker.Exclude != nil && walker.Exclude(relPath)
}

func (walker *Walker) push(relPath string) error {
	absPath := walker.absPath(relPath)
	entries, err := walker.fs.ReadDir(absPath)
	if err != nil {
		return bagerr.IO("read directory", absPath, err)
	}
	// A directory sorts as if its name ended in "/", which puts every
	// file under it in the right place relative to its siblings.
	sort.SliceStable(entries, func(i, j int) bool {
		return sortKey(entries[i]) < sortKey(entries[j])
	})
	walker.stack = append(walker.stack, &dirFrame{relPath: relPath, entries: entries})
	return nil
}

func (walker *Walker) absPath(relPath string) string {
	if relPath == "" {
		return walker.root
	}
	return filepath.Join(walker.root, filepath.FromSlash(relPath))
}

func sortKey(info os.FileInfo) string {
	if info.IsDir() {
		return info.Name() + "/"
	}
	return info.Name()
}

// Reset rewinds the walker to the beginning. Warnings are cleared.
func (walker *Walker) Reset() {
	walker.stack = nil
	walker.started = false
	walker.warnings = nil
}

// Warnings returns what was skipped so far.
func (walker *Walker) Warnings() []Warning {
	return walker.warnings
}
