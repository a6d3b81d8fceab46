package bagit

import (
	"context"
	"github.com/APTrust/bagr/bagerr"
	"github.com/APTrust/bagr/constants"
	"github.com/APTrust/bagr/manifest"
	"github.com/APTrust/bagr/tagfile"
	"github.com/APTrust/bagr/util/fileutil"
	"github.com/APTrust/bagr/util/storage"
	"github.com/pkg/errors"
	"os"
	"path/filepath"
)

// Builder turns a directory that holds a data/ subtree into a bag.
type Builder struct {
	options Options
}

// NewBuilder returns a Builder. See Options for the defaults.
func NewBuilder(options Options) *Builder {
	return &Builder{options: options.withDefaults()}
}

// Build writes bagit.txt, bag-info.txt, one payload manifest per
// algorithm and one tag manifest per algorithm into bagDir, which
// must already contain the payload under data/. Payload files are
// never modified.
//
// metadata goes into bag-info.txt ahead of the tags Build adds itself:
// Bagging-Date (unless metadata has one), Bag-Software-Agent (likewise),
// Payload-Oxum and Bag-Size.
//
// All control files are written to temp files first and renamed into
// place only once every one of them is complete, bagit.txt last. If
// Build fails before the first rename, the bag directory holds the
// control files it had before or none at all. If a later rename fails,
// the temp files not yet renamed stay behind and Validate reports them
// as IncompleteCommit. Manifests and temp files left over from an
// earlier build are removed after the new files are in place.
func (builder *Builder) Build(ctx context.Context, bagDir string, algorithms []string, metadata []tagfile.Tag) error {
	tracker := newTracker(OpBuild, bagDir, builder.options.Sink)
	algs, err := builder.options.Registry.Resolve(algorithms)
	if err != nil {
		return tracker.fail(err)
	}
	if err = builder.checkSource(bagDir); err != nil {
		return tracker.fail(err)
	}
	info, err := builder.bagInfo(metadata)
	if err != nil {
		return tracker.fail(err)
	}

	tracker.enter(PhaseWalking)
	walker := fileutil.NewWalker(builder.options.FS, bagDir, constants.ScopePayload)
	next := func() (*hashJob, error) {
		summary, err := walker.Next()
		if err != nil {
			return nil, err
		}
		return &hashJob{summary: summary, algs: algs}, nil
	}

	tracker.enter(PhaseHashing)
	payload := manifest.NewEntrySet(constants.ScopePayload)
	records := make(map[string]*storage.FileRecord)
	oxum := Oxum{}
	err = hashFiles(ctx, builder.options, next, func(result hashed) {
		payload.Put(&manifest.Entry{Path: result.summary.RelPath, Size: result.size, Digests: result.digests})
		records[result.summary.RelPath] = newFileRecord(result)
		oxum.Add(result.size)
		tracker.emit(Event{Kind: FileHashed, Path: result.summary.RelPath})
	})
	if err != nil {
		return tracker.fail(err)
	}
	emitWarnings(tracker, walkerWarnings(walker))
	if payload.Len() == 0 {
		return tracker.fail(bagerr.New(bagerr.EmptyPayload, constants.DataDir, "no files to bag"))
	}

	tracker.enter(PhaseWriting)
	info.SetPayload(oxum)
	payloadManifests, err := payload.Manifests(algs)
	if err != nil {
		return tracker.fail(err)
	}
	declaration := controlFile{name: constants.BagItTxt, data: NewDeclaration().Bytes()}
	files := []controlFile{{name: constants.BagInfoTxt, data: info.Bytes()}}
	files = append(files, manifestFiles(payloadManifests)...)
	tagManifests, tagWarnings, err := buildTagManifests(ctx, builder.options, bagDir, algs,
		append([]controlFile{declaration}, files...))
	if err != nil {
		return tracker.fail(err)
	}
	emitWarnings(tracker, tagWarnings)
	files = append(files, manifestFiles(tagManifests)...)
	files = append(files, declaration)
	if err = commitControlFiles(builder.options, bagDir, files); err != nil {
		return tracker.fail(err)
	}

	keep := make(map[string]bool)
	for _, file := range files {
		keep[file.name] = true
	}
	if err = removeManaged(builder.options, bagDir, keep); err != nil {
		return tracker.fail(err)
	}
	if !builder.options.NoCache {
		if err = saveFixityCache(builder.options, bagDir, records); err != nil {
			tracker.emit(Event{Kind: WarningRecorded, Warning: &Warning{
				Kind:    CacheUnavailable,
				Path:    builder.options.CachePath(bagDir),
				Message: err.Error(),
			}})
		}
	}
	tracker.done()
	return nil
}

func (builder *Builder) checkSource(bagDir string) error {
	info, err := builder.options.FS.Stat(bagDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return bagerr.New(bagerr.SourceNotFound, bagDir, "directory does not exist")
		}
		return bagerr.IO("stat", bagDir, err)
	}
	if !info.IsDir() {
		return bagerr.New(bagerr.SourceNotFound, bagDir, "not a directory")
	}
	dataDir := filepath.Join(bagDir, constants.DataDir)
	info, err = builder.options.FS.Stat(dataDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return bagerr.New(bagerr.SourceNotFound, dataDir, "payload directory does not exist")
		}
		return bagerr.IO("stat", dataDir, err)
	}
	if !info.IsDir() {
		return bagerr.New(bagerr.SourceNotFound, dataDir, "payload directory is not a directory")
	}
	return nil
}

func (builder *Builder) bagInfo(metadata []tagfile.Tag) (*BagInfo, error) {
	info := NewBagInfo()
	for _, tag := range metadata {
		if err := info.Add(tag.Label, tag.Value); err != nil {
			return nil, err
		}
	}
	if _, ok := info.Get(constants.LabelBaggingDate); !ok {
		info.Add(constants.LabelBaggingDate, builder.options.Now().Format("2006-01-02"))
	}
	if _, ok := info.Get(constants.LabelBagSoftwareAgent); !ok {
		info.Add(constants.LabelBagSoftwareAgent, constants.SoftwareAgent)
	}
	return info, nil
}
