package bagit

import (
	"github.com/APTrust/bagr/constants"
	"github.com/APTrust/bagr/digest"
	"github.com/APTrust/bagr/util/fileutil"
	"github.com/satori/go.uuid"
	"path/filepath"
	"runtime"
	"time"
)

// Options are shared by Builder, Validator and Updater. The zero value
// is usable: it reads and writes the real filesystem, supports the
// standard algorithms, discards events and hashes on one worker per
// CPU.
type Options struct {
	// FS is used for all access to the bag itself.
	FS fileutil.FileSystem

	// Registry lists the algorithms that may be requested or found
	// in a bag.
	Registry *digest.Registry

	// Sink receives progress events.
	Sink EventSink

	// Workers is the number of files hashed at once.
	Workers int

	// Now supplies the Bagging-Date for new bags.
	Now func() time.Time

	// CacheDir holds fixity caches, one per bag, and is created when
	// needed. When empty, a bag's cache is a file next to the bag named
	// <bag dir>.bagdb. The cache never goes through FS.
	CacheDir string

	// NoCache turns off the fixity cache. Fast updates then rehash
	// every file.
	NoCache bool
}

func (options Options) withDefaults() Options {
	if options.FS == nil {
		options.FS = fileutil.OS
	}
	if options.Registry == nil {
		options.Registry = digest.Default()
	}
	if options.Sink == nil {
		options.Sink = DiscardSink{}
	}
	if options.Workers < 1 {
		options.Workers = runtime.NumCPU()
	}
	if options.Now == nil {
		options.Now = time.Now
	}
	return options
}

// CachePath returns the path of the fixity cache for the bag at bagDir.
// Under CacheDir the file name carries a short id derived from the
// absolute bag path, so bags with the same name do not share a cache.
func (options Options) CachePath(bagDir string) string {
	clean := filepath.Clean(bagDir)
	if options.CacheDir == "" {
		return clean + constants.CacheSuffix
	}
	if absDir, err := filepath.Abs(clean); err == nil {
		clean = absDir
	}
	id := uuid.NewV5(uuid.NamespaceURL, "file://"+filepath.ToSlash(clean)).String()[:8]
	return filepath.Join(options.CacheDir, filepath.Base(clean)+"-"+id+constants.CacheSuffix)
}
