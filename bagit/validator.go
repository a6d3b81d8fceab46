package bagit

import (
	"context"
	"github.com/APTrust/bagr/bagerr"
	"github.com/APTrust/bagr/constants"
	"github.com/APTrust/bagr/digest"
	"github.com/APTrust/bagr/manifest"
	"github.com/APTrust/bagr/util/fileutil"
	"github.com/pkg/errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Validator checks a bag against its own manifests and metadata.
type Validator struct {
	options Options
}

// NewValidator returns a Validator. See Options for the defaults.
func NewValidator(options Options) *Validator {
	return &Validator{options: options.withDefaults()}
}

// declaredFiles maps each path in one scope to the manifests that
// list it.
type declaredFiles map[string][]*manifest.Manifest

func (declared declaredFiles) paths() []string {
	paths := make([]string, 0, len(declared))
	for path := range declared {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// bagState is what the validator learned from reading the bag's own
// control files.
type bagState struct {
	payload      []*manifest.Manifest
	tag          []*manifest.Manifest
	declaredAlgs map[string]bool
	fetch        *FetchList
	oxum         Oxum
	hasOxum      bool
}

// Validate checks the bag at bagDir. If algorithms is empty every
// algorithm the bag has manifests for is checked; otherwise only the
// named ones, each of which the bag must have a payload manifest for.
//
// Problems with the bag's content are findings in the returned report,
// never errors, and all of them are collected: validation does not
// stop at the first one. The bag is valid if the report has no
// findings. An error is returned only when validation cannot go on:
// bagit.txt is missing or invalid, an algorithm is unknown or not in
// the bag, the bag cannot be read, or ctx is cancelled. The report
// returned with an error holds whatever was found before it, with
// Phase set to PhaseFailed.
//
// Validate never writes to the bag.
func (validator *Validator) Validate(ctx context.Context, bagDir string, algorithms []string) (*Report, error) {
	tracker := newTracker(OpValidate, bagDir, validator.options.Sink)
	report := &Report{
		BagDir:     bagDir,
		Phase:      PhaseInit,
		Algorithms: make([]string, 0),
		Findings:   make([]Finding, 0),
		Warnings:   make([]Warning, 0),
	}
	fail := func(err error) (*Report, error) {
		tracker.fail(err)
		report.Phase = PhaseFailed
		report.sort()
		return report, err
	}

	if err := validator.checkBagDir(bagDir); err != nil {
		return fail(err)
	}
	if _, err := ReadDeclaration(validator.options.FS, bagDir); err != nil {
		return fail(err)
	}
	requested, err := validator.requested(algorithms)
	if err != nil {
		return fail(err)
	}

	tracker.enter(PhaseWalking)
	state, err := validator.readBag(bagDir, requested, report)
	if err != nil {
		return fail(err)
	}
	for suffix := range requested {
		if !state.declaredAlgs[suffix] {
			return fail(&bagerr.Error{
				Kind:      bagerr.UndeclaredAlgorithm,
				Path:      bagDir,
				Algorithm: suffix,
				Message:   "bag has no payload manifest for this algorithm",
			})
		}
	}
	if len(state.payload) == 0 {
		report.add(Finding{Kind: NoPayloadManifest, Scope: constants.ScopePayload})
	}
	report.Algorithms = usedAlgorithms(state)
	payloadDeclared := crossCheck(constants.ScopePayload, state.payload, report)
	tagDeclared := crossCheck(constants.ScopeTag, state.tag, report)

	tracker.enter(PhaseHashing)
	payloadFound, err := validator.scan(ctx, bagDir, constants.ScopePayload, payloadDeclared, report)
	if err != nil {
		return fail(err)
	}
	tagFound, err := validator.scan(ctx, bagDir, constants.ScopeTag, tagDeclared, report)
	if err != nil {
		return fail(err)
	}

	tracker.enter(PhaseReconciling)
	observed := Oxum{}
	for _, result := range payloadFound {
		observed.Add(result.size)
	}
	reconcile(constants.ScopePayload, payloadDeclared, payloadFound, state.fetch, len(state.payload) > 0, report, &observed)
	reconcile(constants.ScopeTag, tagDeclared, tagFound, nil, len(state.tag) > 0, report, nil)
	report.Oxum = observed
	if state.hasOxum && state.oxum != observed {
		report.add(Finding{
			Kind:     OxumMismatch,
			Scope:    constants.ScopePayload,
			Path:     constants.BagInfoTxt,
			Expected: state.oxum.String(),
			Actual:   observed.String(),
		})
	}

	report.sort()
	for i := range report.Findings {
		tracker.emit(Event{Kind: FindingRecorded, Finding: &report.Findings[i]})
	}
	emitWarnings(tracker, report.Warnings)
	tracker.done()
	report.Phase = PhaseDone
	return report, nil
}

func (validator *Validator) checkBagDir(bagDir string) error {
	info, err := validator.options.FS.Stat(bagDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return bagerr.New(bagerr.SourceNotFound, bagDir, "bag does not exist")
		}
		return bagerr.IO("stat", bagDir, err)
	}
	if !info.IsDir() {
		return bagerr.New(bagerr.SourceNotFound, bagDir, "bag is not a directory")
	}
	return nil
}

// requested resolves the caller's algorithm restriction to a set of
// suffixes. A nil set means no restriction.
func (validator *Validator) requested(algorithms []string) (map[string]bool, error) {
	if len(algorithms) == 0 {
		return nil, nil
	}
	suffixes := make(map[string]bool)
	for _, id := range algorithms {
		alg, err := validator.options.Registry.Lookup(id)
		if err != nil {
			return nil, err
		}
		suffixes[alg.Suffix] = true
	}
	return suffixes, nil
}

// readBag parses the manifests, fetch.txt and bag-info.txt. Anything
// wrong with them is recorded in report. Only a failure to list the
// bag root is returned as an error.
func (validator *Validator) readBag(bagDir string, requested map[string]bool, report *Report) (*bagState, error) {
	fs := validator.options.FS
	state := &bagState{declaredAlgs: make(map[string]bool)}
	entries, err := fs.ReadDir(bagDir)
	if err != nil {
		return nil, bagerr.IO("read directory", bagDir, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			continue
		}
		if constants.TempFilePattern.MatchString(name) {
			report.warn(Warning{Kind: IncompleteCommit, Path: name,
				Message: "an earlier operation on this bag did not finish"})
			continue
		}
		scope, suffix, ok := manifest.ParseFileName(name)
		if !ok {
			continue
		}
		alg, err := validator.options.Registry.BySuffix(suffix)
		if err != nil {
			if requested == nil {
				report.add(Finding{Kind: ManifestError, Scope: scope, Path: name, Err: err})
			}
			continue
		}
		if scope == constants.ScopePayload {
			state.declaredAlgs[alg.Suffix] = true
		}
		if requested != nil && !requested[alg.Suffix] {
			continue
		}
		parsed, err := validator.readManifest(bagDir, name, scope, alg)
		if err != nil {
			report.add(Finding{Kind: ManifestError, Scope: scope, Path: name, Algorithm: alg.Suffix, Err: err})
			continue
		}
		if scope == constants.ScopePayload {
			state.payload = append(state.payload, parsed)
		} else {
			state.tag = append(state.tag, parsed)
		}
	}

	state.fetch, err = ReadFetch(fs, bagDir)
	if err != nil {
		report.add(Finding{Kind: InvalidFetchFile, Path: constants.FetchTxt, Err: err})
	}
	info, err := ReadBagInfo(fs, bagDir)
	if err != nil {
		report.add(Finding{Kind: InvalidBagInfo, Path: constants.BagInfoTxt, Err: err})
	} else if info != nil {
		state.oxum, state.hasOxum, err = info.PayloadOxum()
		if err != nil {
			state.hasOxum = false
			report.add(Finding{Kind: InvalidBagInfo, Path: constants.BagInfoTxt, Err: err})
		}
	}
	return state, nil
}

func (validator *Validator) readManifest(bagDir, name string, scope constants.Scope, alg digest.Algorithm) (*manifest.Manifest, error) {
	path := filepath.Join(bagDir, name)
	file, err := validator.options.FS.Open(path)
	if err != nil {
		return nil, bagerr.IO("open", path, err)
	}
	defer file.Close()
	return manifest.Parse(file, scope, alg)
}

// crossCheck merges the manifests of one scope and records every path
// that some of them list and others do not.
func crossCheck(scope constants.Scope, manifests []*manifest.Manifest, report *Report) declaredFiles {
	declared := make(declaredFiles)
	for _, m := range manifests {
		for _, path := range m.Paths() {
			declared[path] = append(declared[path], m)
		}
	}
	for _, path := range declared.paths() {
		if len(declared[path]) == len(manifests) {
			continue
		}
		for _, m := range manifests {
			if !m.Has(path) {
				report.add(Finding{
					Kind:      InconsistentManifestScope,
					Scope:     scope,
					Path:      path,
					Algorithm: m.Algorithm.Suffix,
					Err:       errors.Errorf("listed in other %s manifests but not in %s", scope, m.FileName()),
				})
			}
		}
	}
	return declared
}

// scan walks one scope and hashes each declared file with the
// algorithms of the manifests that list it. Undeclared files are not
// read; only their size is recorded.
func (validator *Validator) scan(ctx context.Context, bagDir string, scope constants.Scope,
	declared declaredFiles, report *Report) (map[string]hashed, error) {
	walker := fileutil.NewWalker(validator.options.FS, bagDir, scope)
	if scope == constants.ScopeTag {
		walker.Exclude = func(relPath string) bool {
			return !strings.Contains(relPath, "/") &&
				(constants.TagManifestPattern.MatchString(relPath) ||
					constants.TempFilePattern.MatchString(relPath))
		}
	}
	next := func() (*hashJob, error) {
		summary, err := walker.Next()
		if err != nil {
			return nil, err
		}
		job := &hashJob{summary: summary}
		for _, m := range declared[summary.RelPath] {
			job.algs = append(job.algs, m.Algorithm)
		}
		return job, nil
	}
	found := make(map[string]hashed)
	err := hashFiles(ctx, validator.options, next, func(result hashed) {
		found[result.summary.RelPath] = result
	})
	if err != nil {
		return nil, err
	}
	for _, warning := range walkerWarnings(walker) {
		report.warn(warning)
	}
	return found, nil
}

// reconcile compares what the manifests of one scope declare against
// what is on disk. Files in fetch that are declared but absent are
// deferred, not missing, and are counted into observed.
func reconcile(scope constants.Scope, declared declaredFiles, found map[string]hashed, fetch *FetchList,
	reportUndeclared bool, report *Report, observed *Oxum) {
	for _, path := range declared.paths() {
		result, onDisk := found[path]
		if !onDisk {
			if entry, deferred := fetch.Get(path); deferred && observed != nil {
				report.warn(Warning{Kind: DeferredFetch, Path: path, Message: entry.URL})
				length := entry.Length
				if length < 0 {
					length = 0
				}
				observed.Add(length)
				continue
			}
			report.add(Finding{Kind: MissingFile, Scope: scope, Path: path})
			continue
		}
		for _, m := range declared[path] {
			expected, _ := m.Digest(path)
			actual := result.digests[m.Algorithm.Suffix]
			if !strings.EqualFold(expected, actual) {
				report.add(Finding{
					Kind:      ChecksumMismatch,
					Scope:     scope,
					Path:      path,
					Algorithm: m.Algorithm.Suffix,
					Expected:  expected,
					Actual:    actual,
				})
			}
		}
	}
	if !reportUndeclared {
		return
	}
	for path := range found {
		if _, ok := declared[path]; !ok {
			report.add(Finding{Kind: UndeclaredFile, Scope: scope, Path: path})
		}
	}
}

func usedAlgorithms(state *bagState) []string {
	seen := make(map[string]bool)
	for _, m := range append(append([]*manifest.Manifest{}, state.payload...), state.tag...) {
		seen[m.Algorithm.Suffix] = true
	}
	suffixes := make([]string, 0, len(seen))
	for suffix := range seen {
		suffixes = append(suffixes, suffix)
	}
	sort.Strings(suffixes)
	return suffixes
}
