package bagit

import (
	"context"
	"github.com/APTrust/bagr/bagerr"
	"github.com/APTrust/bagr/constants"
	"github.com/APTrust/bagr/digest"
	"github.com/APTrust/bagr/manifest"
	"github.com/APTrust/bagr/util/fileutil"
	"github.com/APTrust/bagr/util/storage"
	"os"
	"path/filepath"
	"strings"
)

// controlFile is a file at the bag root that an operation is about to
// write.
type controlFile struct {
	name string
	data []byte
}

// isManagedName is true for root-level names that the engine writes
// and rewrites itself: manifests, tag manifests and staged temp files.
func isManagedName(relPath string) bool {
	if strings.Contains(relPath, "/") {
		return false
	}
	return constants.ManifestPattern.MatchString(relPath) ||
		constants.TagManifestPattern.MatchString(relPath) ||
		constants.TempFilePattern.MatchString(relPath)
}

// buildTagManifests computes the tag manifests for a bag whose control
// files are about to be replaced by files. The new control files are
// hashed from memory; every other tag file is read from disk.
func buildTagManifests(ctx context.Context, options Options, bagDir string, algs []digest.Algorithm,
	files []controlFile) ([]*manifest.Manifest, []Warning, error) {
	set := manifest.NewEntrySet(constants.ScopeTag)
	staged := make(map[string]bool, len(files))
	for _, file := range files {
		staged[file.name] = true
		set.Put(&manifest.Entry{
			Path:    file.name,
			Size:    int64(len(file.data)),
			Digests: digest.Sum(algs, file.data),
		})
	}
	walker := fileutil.NewWalker(options.FS, bagDir, constants.ScopeTag)
	walker.Exclude = func(relPath string) bool {
		return staged[relPath] || isManagedName(relPath)
	}
	next := func() (*hashJob, error) {
		summary, err := walker.Next()
		if err != nil {
			return nil, err
		}
		return &hashJob{summary: summary, algs: algs}, nil
	}
	err := hashFiles(ctx, options, next, func(result hashed) {
		set.Put(&manifest.Entry{Path: result.summary.RelPath, Size: result.size, Digests: result.digests})
	})
	if err != nil {
		return nil, nil, err
	}
	manifests, err := set.Manifests(algs)
	return manifests, walkerWarnings(walker), err
}

// commitControlFiles stages files and renames them into place in
// order. Nothing is renamed unless every file was staged.
func commitControlFiles(options Options, bagDir string, files []controlFile) error {
	tx := fileutil.NewTransaction(options.FS, bagDir)
	for _, file := range files {
		if err := tx.Stage(file.name, file.data); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// removeManaged deletes root-level manifests and temp files that are
// not in keep.
func removeManaged(options Options, bagDir string, keep map[string]bool) error {
	entries, err := options.FS.ReadDir(bagDir)
	if err != nil {
		return bagerr.IO("read directory", bagDir, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || keep[name] || !isManagedName(name) {
			continue
		}
		path := filepath.Join(bagDir, name)
		if err := options.FS.Remove(path); err != nil {
			return bagerr.IO("remove", path, err)
		}
	}
	return nil
}

// saveFixityCache replaces the bag's fixity cache with records.
func saveFixityCache(options Options, bagDir string, records map[string]*storage.FileRecord) error {
	absDir, err := filepath.Abs(bagDir)
	if err != nil {
		return err
	}
	if options.CacheDir != "" {
		if err = os.MkdirAll(options.CacheDir, 0755); err != nil {
			return bagerr.IO("create directory", options.CacheDir, err)
		}
	}
	cache, err := storage.NewBoltDB(options.CachePath(absDir))
	if err != nil {
		return err
	}
	defer cache.Close()
	if err = cache.Clear(); err != nil {
		return err
	}
	if err = cache.SetBagRoot(absDir); err != nil {
		return err
	}
	return cache.SaveFileRecords(records)
}

// openFixityCache opens the cache for reading. It returns nil and no
// error if the cache is turned off, has not been written yet, or
// belongs to another bag.
func openFixityCache(options Options, bagDir string) (*storage.BoltDB, error) {
	if options.NoCache {
		return nil, nil
	}
	absDir, err := filepath.Abs(bagDir)
	if err != nil {
		return nil, err
	}
	path := options.CachePath(absDir)
	if !fileutil.FileExists(path) {
		return nil, nil
	}
	cache, err := storage.NewBoltDB(path)
	if err != nil {
		return nil, err
	}
	if cache.BagRoot() != absDir {
		cache.Close()
		return nil, nil
	}
	return cache, nil
}

func newFileRecord(result hashed) *storage.FileRecord {
	return &storage.FileRecord{
		Size:    result.size,
		ModTime: result.summary.ModTime.UnixNano(),
		Digests: result.digests,
	}
}

func manifestFiles(manifests []*manifest.Manifest) []controlFile {
	files := make([]controlFile, len(manifests))
	for i, m := range manifests {
		files[i] = controlFile{name: m.FileName(), data: m.Bytes()}
	}
	return files
}
