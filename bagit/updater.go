package bagit

import (
	"context"
	"github.com/APTrust/bagr/bagerr"
	"github.com/APTrust/bagr/constants"
	"github.com/APTrust/bagr/digest"
	"github.com/APTrust/bagr/manifest"
	"github.com/APTrust/bagr/util"
	"github.com/APTrust/bagr/util/fileutil"
	"github.com/APTrust/bagr/util/storage"
	"path/filepath"
	"sync"
)

// Updater brings an existing bag's manifests and Payload-Oxum back in
// line with its payload after files under data/ were added, changed
// or removed.
type Updater struct {
	options Options
}

// NewUpdater returns an Updater. See Options for the defaults.
func NewUpdater(options Options) *Updater {
	return &Updater{options: options.withDefaults()}
}

// priorBag is what the updater reads from the bag before it walks.
type priorBag struct {
	payloadAlgs []digest.Algorithm
	tagAlgs     []digest.Algorithm
	manifests   []*manifest.Manifest
	info        *BagInfo
	fetch       *FetchList
}

// Update rewrites the payload manifests, tag manifests and
// bag-info.txt of the bag at bagDir. The bag keeps the algorithms it
// already uses. bagit.txt is left as it is, and so is every tag in
// bag-info.txt except Payload-Oxum and Bag-Size.
//
// In constants.UpdateFull mode every payload file is hashed again. In
// constants.UpdateFast mode a file keeps the digests the manifests
// already give it if its size and modification time are unchanged
// since the fixity cache last saw it. This is a trust boundary: fast
// mode cannot notice a file whose content changed while its size and
// modification time stayed the same. Files the cache has no record of
// are always hashed.
//
// Like Build, Update stages every new control file before renaming
// any of them. A failure before the first rename leaves the bag as it
// was. A failure after it leaves the unrenamed temp files behind,
// which Validate reports as IncompleteCommit. A successful update
// removes temp files left by earlier runs.
func (updater *Updater) Update(ctx context.Context, bagDir string, mode string) error {
	tracker := newTracker(OpUpdate, bagDir, updater.options.Sink)
	if !util.StringListContains(constants.UpdateModes, mode) {
		return tracker.fail(bagerr.New(bagerr.InvalidOption, "", "unknown update mode '%s'", mode))
	}
	if _, err := ReadDeclaration(updater.options.FS, bagDir); err != nil {
		return tracker.fail(err)
	}
	prior, err := updater.readPrior(bagDir)
	if err != nil {
		return tracker.fail(err)
	}

	var cache *storage.BoltDB
	if mode == constants.UpdateFast {
		cache, err = openFixityCache(updater.options, bagDir)
		if err != nil {
			tracker.emit(Event{Kind: WarningRecorded, Warning: &Warning{
				Kind:    CacheUnavailable,
				Path:    updater.options.CachePath(bagDir),
				Message: err.Error(),
			}})
		}
	}
	defer func() {
		if cache != nil {
			cache.Close()
		}
	}()

	tracker.enter(PhaseWalking)
	payload := manifest.NewEntrySet(constants.ScopePayload)
	records := make(map[string]*storage.FileRecord)
	oxum := Oxum{}
	// keep is called both from the walk and from the hashing workers.
	var mutex sync.Mutex
	keep := func(result hashed) {
		mutex.Lock()
		defer mutex.Unlock()
		payload.Put(&manifest.Entry{Path: result.summary.RelPath, Size: result.size, Digests: result.digests})
		records[result.summary.RelPath] = newFileRecord(result)
		oxum.Add(result.size)
	}
	walker := fileutil.NewWalker(updater.options.FS, bagDir, constants.ScopePayload)
	next := func() (*hashJob, error) {
		summary, err := walker.Next()
		if err != nil {
			return nil, err
		}
		if digests := updater.reusable(cache, prior, summary); digests != nil {
			keep(hashed{summary: summary, size: summary.Size, digests: digests})
			return nil, nil
		}
		return &hashJob{summary: summary, algs: prior.payloadAlgs}, nil
	}

	tracker.enter(PhaseHashing)
	err = hashFiles(ctx, updater.options, next, func(result hashed) {
		keep(result)
		tracker.emit(Event{Kind: FileHashed, Path: result.summary.RelPath})
	})
	if err != nil {
		return tracker.fail(err)
	}
	emitWarnings(tracker, walkerWarnings(walker))
	updater.keepDeferred(prior, payload, &oxum)
	if payload.Len() == 0 {
		return tracker.fail(bagerr.New(bagerr.EmptyPayload, constants.DataDir, "no files left in the payload"))
	}

	tracker.enter(PhaseWriting)
	prior.info.UpdatePayload(oxum)
	payloadManifests, err := payload.Manifests(prior.payloadAlgs)
	if err != nil {
		return tracker.fail(err)
	}
	files := []controlFile{{name: constants.BagInfoTxt, data: prior.info.Bytes()}}
	files = append(files, manifestFiles(payloadManifests)...)
	tagManifests, tagWarnings, err := buildTagManifests(ctx, updater.options, bagDir, prior.tagAlgs, files)
	if err != nil {
		return tracker.fail(err)
	}
	emitWarnings(tracker, tagWarnings)
	files = append(files, manifestFiles(tagManifests)...)
	if err = commitControlFiles(updater.options, bagDir, files); err != nil {
		return tracker.fail(err)
	}
	committed := make(map[string]bool, len(files))
	for _, file := range files {
		committed[file.name] = true
	}
	if err = removeManaged(updater.options, bagDir, committed); err != nil {
		return tracker.fail(err)
	}

	if !updater.options.NoCache {
		if cache != nil {
			cache.Close()
			cache = nil
		}
		if err = saveFixityCache(updater.options, bagDir, records); err != nil {
			tracker.emit(Event{Kind: WarningRecorded, Warning: &Warning{
				Kind:    CacheUnavailable,
				Path:    updater.options.CachePath(bagDir),
				Message: err.Error(),
			}})
		}
	}
	tracker.done()
	return nil
}

// readPrior reads the manifests, bag-info.txt and fetch.txt of the
// bag as they are before the update.
func (updater *Updater) readPrior(bagDir string) (*priorBag, error) {
	fs := updater.options.FS
	registry := updater.options.Registry
	prior := &priorBag{}
	entries, err := fs.ReadDir(bagDir)
	if err != nil {
		return nil, bagerr.IO("read directory", bagDir, err)
	}
	for _, entry := range entries {
		scope, suffix, ok := manifest.ParseFileName(entry.Name())
		if !ok || entry.IsDir() {
			continue
		}
		alg, err := registry.BySuffix(suffix)
		if err != nil {
			return nil, err
		}
		if scope == constants.ScopeTag {
			prior.tagAlgs = append(prior.tagAlgs, alg)
			continue
		}
		prior.payloadAlgs = append(prior.payloadAlgs, alg)
		path := filepath.Join(bagDir, entry.Name())
		file, err := fs.Open(path)
		if err != nil {
			return nil, bagerr.IO("open", path, err)
		}
		parsed, err := manifest.Parse(file, scope, alg)
		file.Close()
		// An unreadable manifest only means its digests cannot be
		// reused; the algorithm stays.
		if err == nil {
			prior.manifests = append(prior.manifests, parsed)
		}
	}
	if len(prior.payloadAlgs) == 0 {
		return nil, bagerr.New(bagerr.NoAlgorithms, bagDir, "bag has no payload manifests")
	}
	digest.Sort(prior.payloadAlgs)
	if len(prior.tagAlgs) == 0 {
		prior.tagAlgs = prior.payloadAlgs
	}
	digest.Sort(prior.tagAlgs)

	if prior.info, err = ReadBagInfo(fs, bagDir); err != nil {
		return nil, err
	}
	if prior.info == nil {
		prior.info = NewBagInfo()
	}
	if prior.fetch, err = ReadFetch(fs, bagDir); err != nil {
		return nil, err
	}
	return prior, nil
}

// reusable returns the prior digests of a file that fast mode may
// skip, or nil if it must be hashed. Every payload algorithm must
// have a prior digest for the file.
func (updater *Updater) reusable(cache *storage.BoltDB, prior *priorBag, summary *fileutil.FileSummary) map[string]string {
	if cache == nil || len(prior.manifests) != len(prior.payloadAlgs) {
		return nil
	}
	record, err := cache.GetFileRecord(summary.RelPath)
	if err != nil || record == nil || !record.Matches(summary.Size, summary.ModTime) {
		return nil
	}
	digests := make(map[string]string, len(prior.manifests))
	for _, m := range prior.manifests {
		value, ok := m.Digest(summary.RelPath)
		if !ok {
			return nil
		}
		digests[m.Algorithm.Suffix] = value
	}
	return digests
}

// keepDeferred carries over the prior manifest lines of files that
// fetch.txt lists and that have not been fetched yet.
func (updater *Updater) keepDeferred(prior *priorBag, payload *manifest.EntrySet, oxum *Oxum) {
	if prior.fetch == nil || len(prior.manifests) != len(prior.payloadAlgs) {
		return
	}
	for _, entry := range prior.fetch.Entries {
		if _, onDisk := payload.Get(entry.Path); onDisk {
			continue
		}
		digests := make(map[string]string)
		for _, m := range prior.manifests {
			if value, ok := m.Digest(entry.Path); ok {
				digests[m.Algorithm.Suffix] = value
			}
		}
		if len(digests) != len(prior.payloadAlgs) {
			continue
		}
		length := entry.Length
		if length < 0 {
			length = 0
		}
		payload.Put(&manifest.Entry{Path: entry.Path, Size: length, Digests: digests})
		oxum.Add(length)
	}
}
