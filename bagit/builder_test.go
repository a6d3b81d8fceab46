package bagit_test

import (
	"context"
	"github.com/APTrust/bagr/bagerr"
	"github.com/APTrust/bagr/bagit"
	"github.com/APTrust/bagr/constants"
	"github.com/APTrust/bagr/digest"
	"github.com/APTrust/bagr/manifest"
	"github.com/APTrust/bagr/tagfile"
	"github.com/APTrust/bagr/testhelper"
	"github.com/APTrust/bagr/util/fileutil"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestBuildThenValidate(t *testing.T) {
	tempDir, bagDir, files := buildBag(t, 12, "sha256", "md5")
	defer testhelper.RemoveTempDir(tempDir)

	root := rootFiles(t, bagDir)
	assert.Equal(t, []string{
		"bag-info.txt",
		"bagit.txt",
		"manifest-md5.txt",
		"manifest-sha256.txt",
		"tagmanifest-md5.txt",
		"tagmanifest-sha256.txt",
	}, names(root))
	assert.Equal(t, "BagIt-Version: 1.0\nTag-File-Character-Encoding: UTF-8\n", root["bagit.txt"])
	assert.FileExists(t, filepath.Join(tempDir, "bag"+constants.CacheSuffix))

	// Payload files are untouched.
	for relPath, content := range files {
		assert.Equal(t, content, readFile(t, filepath.Join(bagDir, filepath.FromSlash(relPath))))
	}

	report := validate(t, bagDir)
	assert.True(t, report.Valid(), "%v", report.Findings)
	assert.Empty(t, report.Findings)
	assert.Equal(t, bagit.PhaseDone, report.Phase)
	assert.Equal(t, []string{"md5", "sha256"}, report.Algorithms)
	assert.EqualValues(t, 12, report.Oxum.Files)
}

func TestBuildBagInfo(t *testing.T) {
	tempDir, bagDir, files, err := testhelper.MakeSourceDir(3)
	require.Nil(t, err)
	defer testhelper.RemoveTempDir(tempDir)

	var total int64
	for _, content := range files {
		total += int64(len(content))
	}
	metadata := []tagfile.Tag{
		{Label: "Contact-Name", Value: "Ann"},
		{Label: "Contact-Name", Value: "Bob"},
		{Label: constants.LabelBaggingDate, Value: "1999-12-31"},
	}
	builder := bagit.NewBuilder(bagit.Options{Now: testhelper.FixedClock()})
	require.Nil(t, builder.Build(context.Background(), bagDir, []string{"md5"}, metadata))

	info, err := bagit.ReadBagInfo(fileutil.OS, bagDir)
	require.Nil(t, err)
	require.NotNil(t, info)
	assert.Equal(t, []string{"Ann", "Bob"}, info.GetAll("Contact-Name"))
	date, _ := info.Get(constants.LabelBaggingDate)
	assert.Equal(t, "1999-12-31", date)
	agent, _ := info.Get(constants.LabelBagSoftwareAgent)
	assert.Equal(t, constants.SoftwareAgent, agent)
	oxum, ok, err := info.PayloadOxum()
	require.Nil(t, err)
	require.True(t, ok)
	assert.Equal(t, bagit.Oxum{Bytes: total, Files: 3}, oxum)
	_, ok = info.Get(constants.LabelBagSize)
	assert.True(t, ok)
}

func TestBuildUsesClock(t *testing.T) {
	tempDir, bagDir, _ := buildBag(t, 1, "md5")
	defer testhelper.RemoveTempDir(tempDir)
	assert.Contains(t, readFile(t, filepath.Join(bagDir, "bag-info.txt")), "Bagging-Date: 2021-06-15\n")
}

func TestBuildIsDeterministic(t *testing.T) {
	tempDir, bagDir, _ := buildBag(t, 20, "md5", "sha1", "sha512")
	defer testhelper.RemoveTempDir(tempDir)
	first := rootFiles(t, bagDir)

	builder := bagit.NewBuilder(bagit.Options{Now: testhelper.FixedClock(), Workers: 7})
	require.Nil(t, builder.Build(context.Background(), bagDir, []string{"sha512", "sha1", "md5"}, nil))
	second := rootFiles(t, bagDir)
	assert.Equal(t, first, second)
}

func TestBuildManifestsAgree(t *testing.T) {
	tempDir, bagDir, files := buildBag(t, 15, "md5", "sha1", "sha256", "blake2b")
	defer testhelper.RemoveTempDir(tempDir)

	registry := digest.Default()
	var expected []string
	for _, suffix := range []string{"md5", "sha1", "sha256", "blake2b512"} {
		alg, err := registry.BySuffix(suffix)
		require.Nil(t, err)
		file, err := os.Open(filepath.Join(bagDir, "manifest-"+suffix+".txt"))
		require.Nil(t, err)
		m, err := manifest.Parse(file, constants.ScopePayload, alg)
		file.Close()
		require.Nil(t, err)
		if expected == nil {
			expected = m.Paths()
		}
		assert.Equal(t, expected, m.Paths(), suffix)
	}
	assert.Equal(t, names(files), expected)
}

func TestBuildReadsEachFileOnce(t *testing.T) {
	tempDir, bagDir, files, err := testhelper.MakeSourceDir(10)
	require.Nil(t, err)
	defer testhelper.RemoveTempDir(tempDir)

	fs := testhelper.NewCountingFS()
	builder := bagit.NewBuilder(bagit.Options{FS: fs, Workers: 4})
	require.Nil(t, builder.Build(context.Background(), bagDir, []string{"md5", "sha1", "sha256", "sha512"}, nil))
	for relPath, content := range files {
		absPath := filepath.Join(bagDir, filepath.FromSlash(relPath))
		assert.Equal(t, 1, fs.Opens(absPath), relPath)
		assert.EqualValues(t, len(content), fs.BytesRead(absPath), relPath)
	}
}

func TestBuildErrors(t *testing.T) {
	builder := bagit.NewBuilder(bagit.Options{})
	ctx := context.Background()

	tempDir, bagDir, err := testhelper.TempBagDir()
	require.Nil(t, err)
	defer testhelper.RemoveTempDir(tempDir)

	err = builder.Build(ctx, filepath.Join(tempDir, "nope"), []string{"md5"}, nil)
	assert.True(t, bagerr.Is(err, bagerr.SourceNotFound), "%v", err)

	// No data directory
	err = builder.Build(ctx, bagDir, []string{"md5"}, nil)
	assert.True(t, bagerr.Is(err, bagerr.SourceNotFound), "%v", err)

	// Empty data directory
	require.Nil(t, os.MkdirAll(filepath.Join(bagDir, "data", "empty"), 0755))
	err = builder.Build(ctx, bagDir, []string{"md5"}, nil)
	assert.True(t, bagerr.Is(err, bagerr.EmptyPayload), "%v", err)
	category, _ := bagerr.CategoryOf(err)
	assert.Equal(t, bagerr.Configuration, category)
	assert.Empty(t, rootFiles(t, bagDir))

	err = builder.Build(ctx, bagDir, []string{"crc32"}, nil)
	assert.True(t, bagerr.Is(err, bagerr.UnsupportedAlgorithm), "%v", err)
	err = builder.Build(ctx, bagDir, nil, nil)
	assert.True(t, bagerr.Is(err, bagerr.NoAlgorithms), "%v", err)

	writeFile(t, filepath.Join(bagDir, "data", "file.txt"), "content")
	err = builder.Build(ctx, bagDir, []string{"md5"}, []tagfile.Tag{{Label: "Bad:Label", Value: "x"}})
	assert.True(t, bagerr.Is(err, bagerr.InvalidTagFile), "%v", err)
	assert.Empty(t, rootFiles(t, bagDir))
}

func TestBuildFailureLeavesNoTrace(t *testing.T) {
	tempDir, bagDir, files, err := testhelper.MakeSourceDir(5)
	require.Nil(t, err)
	defer testhelper.RemoveTempDir(tempDir)

	// The payload manifest is staged, then the tag manifest fails.
	fs := testhelper.FailingFS{FailCreate: "tagmanifest-sha256"}
	builder := bagit.NewBuilder(bagit.Options{FS: fs})
	err = builder.Build(context.Background(), bagDir, []string{"sha256"}, nil)
	require.NotNil(t, err)
	assert.True(t, bagerr.Is(err, bagerr.IoFailure))

	// Not a bag: no declaration, no manifests, no temp files.
	assert.Empty(t, rootFiles(t, bagDir))
	for relPath, content := range files {
		assert.Equal(t, content, readFile(t, filepath.Join(bagDir, filepath.FromSlash(relPath))))
	}
	_, err = bagit.NewValidator(bagit.Options{}).Validate(context.Background(), bagDir, nil)
	assert.True(t, bagerr.Is(err, bagerr.InvalidDeclaration))
}

func TestRebuildFailureKeepsPriorBag(t *testing.T) {
	tempDir, bagDir, _ := buildBag(t, 5, "sha256")
	defer testhelper.RemoveTempDir(tempDir)
	before := rootFiles(t, bagDir)

	writeFile(t, filepath.Join(bagDir, "data", "new.txt"), "new file")
	fs := testhelper.FailingFS{FailCreate: "tagmanifest-sha256"}
	builder := bagit.NewBuilder(bagit.Options{FS: fs, Now: testhelper.FixedClock()})
	require.NotNil(t, builder.Build(context.Background(), bagDir, []string{"sha256"}, nil))
	assert.Equal(t, before, rootFiles(t, bagDir))

	// The prior manifest set is complete; validation sees only the
	// new payload file.
	report := validate(t, bagDir)
	require.Len(t, report.Findings, 2)
	assert.Equal(t, 1, report.Count(bagit.UndeclaredFile))
	assert.Equal(t, 1, report.Count(bagit.OxumMismatch))
}

func TestBuildRenameFailure(t *testing.T) {
	tempDir, bagDir, _, err := testhelper.MakeSourceDir(3)
	require.Nil(t, err)
	defer testhelper.RemoveTempDir(tempDir)
	ctx := context.Background()

	// bag-info.txt and the payload manifest are renamed into place.
	// The declaration comes last, so this is still not a bag.
	fs := testhelper.FailingFS{FailRename: "tagmanifest"}
	err = bagit.NewBuilder(bagit.Options{FS: fs}).Build(ctx, bagDir, []string{"md5"}, nil)
	require.NotNil(t, err)
	assert.True(t, bagerr.Is(err, bagerr.IoFailure), "%v", err)
	_, err = bagit.NewValidator(bagit.Options{}).Validate(ctx, bagDir, nil)
	assert.True(t, bagerr.Is(err, bagerr.InvalidDeclaration), "%v", err)

	// A second build clears the leftovers.
	require.Nil(t, bagit.NewBuilder(bagit.Options{}).Build(ctx, bagDir, []string{"md5"}, nil))
	assert.Equal(t, []string{
		"bag-info.txt",
		"bagit.txt",
		"manifest-md5.txt",
		"tagmanifest-md5.txt",
	}, names(rootFiles(t, bagDir)))
	report := validate(t, bagDir)
	assert.True(t, report.Valid(), "%v", report.Findings)
	assert.Empty(t, report.Warnings)
}

func TestRebuildRenameFailureIsVisible(t *testing.T) {
	tempDir, bagDir, _ := buildBag(t, 5, "sha256")
	defer testhelper.RemoveTempDir(tempDir)
	writeFile(t, filepath.Join(bagDir, "data", "new.txt"), "new file")

	fs := testhelper.FailingFS{FailRename: "tagmanifest"}
	builder := bagit.NewBuilder(bagit.Options{FS: fs, Now: testhelper.FixedClock()})
	err := builder.Build(context.Background(), bagDir, []string{"sha256"}, nil)
	require.NotNil(t, err)
	assert.True(t, bagerr.Is(err, bagerr.IoFailure), "%v", err)

	// The new payload manifest is in place next to the old tag
	// manifest. The staged tag manifest and declaration are still
	// there, so the bag reads as an unfinished commit.
	report := validate(t, bagDir)
	assert.False(t, report.Valid())
	assert.Equal(t, 2, warningCount(report, bagit.IncompleteCommit), "%v", report.Warnings)
	assert.Equal(t, 2, report.Count(bagit.ChecksumMismatch), "%v", report.Findings)
}

func TestBuildRefusesTagFileWithLeadingSpace(t *testing.T) {
	tempDir, bagDir, _, err := testhelper.MakeSourceDir(2)
	require.Nil(t, err)
	defer testhelper.RemoveTempDir(tempDir)
	writeFile(t, filepath.Join(bagDir, " notes.txt"), "notes")

	err = bagit.NewBuilder(bagit.Options{}).Build(context.Background(), bagDir, []string{"md5"}, nil)
	require.NotNil(t, err)
	assert.True(t, bagerr.Is(err, bagerr.MalformedManifestLine), "%v", err)
	assert.Contains(t, err.Error(), " notes.txt")
	assert.Equal(t, []string{" notes.txt"}, names(rootFiles(t, bagDir)))
}

func TestRebuildRemovesOldManifests(t *testing.T) {
	tempDir, bagDir, _ := buildBag(t, 4, "md5", "sha1")
	defer testhelper.RemoveTempDir(tempDir)

	builder := bagit.NewBuilder(bagit.Options{})
	require.Nil(t, builder.Build(context.Background(), bagDir, []string{"sha256"}, nil))
	assert.Equal(t, []string{
		"bag-info.txt",
		"bagit.txt",
		"manifest-sha256.txt",
		"tagmanifest-sha256.txt",
	}, names(rootFiles(t, bagDir)))
	assert.True(t, validate(t, bagDir).Valid())
}

func TestBuildIncludesOtherTagFiles(t *testing.T) {
	tempDir, bagDir, _, err := testhelper.MakeSourceDir(2)
	require.Nil(t, err)
	defer testhelper.RemoveTempDir(tempDir)
	writeFile(t, filepath.Join(bagDir, "metadata", "mods.xml"), "<mods/>")

	require.Nil(t, bagit.NewBuilder(bagit.Options{}).Build(context.Background(), bagDir, []string{"md5"}, nil))
	tagManifest := readFile(t, filepath.Join(bagDir, "tagmanifest-md5.txt"))
	lines := strings.Split(strings.TrimSpace(tagManifest), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasSuffix(lines[0], "  bag-info.txt"))
	assert.True(t, strings.HasSuffix(lines[1], "  bagit.txt"))
	assert.True(t, strings.HasSuffix(lines[2], "  manifest-md5.txt"))
	assert.True(t, strings.HasSuffix(lines[3], "  metadata/mods.xml"))
	assert.True(t, validate(t, bagDir).Valid())
}

func TestBuildSkipsSymlinks(t *testing.T) {
	tempDir, bagDir, files, err := testhelper.MakeSourceDir(2)
	require.Nil(t, err)
	defer testhelper.RemoveTempDir(tempDir)
	outside := filepath.Join(tempDir, "outside.txt")
	writeFile(t, outside, "outside the bag")
	if err := os.Symlink(outside, filepath.Join(bagDir, "data", "link.txt")); err != nil {
		t.Skip("Symlinks not supported here:", err)
	}

	var mutex sync.Mutex
	warnings := make([]bagit.Warning, 0)
	sink := bagit.SinkFunc(func(event bagit.Event) {
		if event.Kind == bagit.WarningRecorded {
			mutex.Lock()
			warnings = append(warnings, *event.Warning)
			mutex.Unlock()
		}
	})
	require.Nil(t, bagit.NewBuilder(bagit.Options{Sink: sink}).Build(context.Background(), bagDir, []string{"md5"}, nil))
	require.Len(t, warnings, 1)
	assert.Equal(t, bagit.SkippedSymlink, warnings[0].Kind)
	assert.Equal(t, "data/link.txt", warnings[0].Path)
	assert.NotContains(t, readFile(t, filepath.Join(bagDir, "manifest-md5.txt")), "link.txt")

	report := validate(t, bagDir)
	assert.True(t, report.Valid())
	assert.EqualValues(t, len(files), report.Oxum.Files)
	require.Len(t, report.Warnings, 1)
	assert.Equal(t, bagit.SkippedSymlink, report.Warnings[0].Kind)
}

func TestBuildEvents(t *testing.T) {
	tempDir, bagDir, _, err := testhelper.MakeSourceDir(6)
	require.Nil(t, err)
	defer testhelper.RemoveTempDir(tempDir)

	phases := make([]bagit.Phase, 0)
	hashedCount := 0
	sink := bagit.SinkFunc(func(event bagit.Event) {
		assert.Equal(t, bagit.OpBuild, event.Operation)
		assert.Equal(t, bagDir, event.BagDir)
		switch event.Kind {
		case bagit.PhaseChanged:
			phases = append(phases, event.Phase)
		case bagit.FileHashed:
			hashedCount++
		}
	})
	require.Nil(t, bagit.NewBuilder(bagit.Options{Sink: sink}).Build(context.Background(), bagDir, []string{"md5"}, nil))
	assert.Equal(t, []bagit.Phase{
		bagit.PhaseWalking,
		bagit.PhaseHashing,
		bagit.PhaseWriting,
		bagit.PhaseDone,
	}, phases)
	assert.Equal(t, 6, hashedCount)
}

func TestBuildCancel(t *testing.T) {
	tempDir, bagDir, _, err := testhelper.MakeSourceDir(12)
	require.Nil(t, err)
	defer testhelper.RemoveTempDir(tempDir)

	slow := testhelper.SlowAlgorithm(50 * time.Millisecond)
	registry := digest.NewRegistry(append(digest.Standard(), slow)...)
	var lastPhase bagit.Phase
	sink := bagit.SinkFunc(func(event bagit.Event) {
		if event.Kind == bagit.PhaseChanged {
			lastPhase = event.Phase
		}
	})
	builder := bagit.NewBuilder(bagit.Options{Registry: registry, Workers: 2, Sink: sink})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err = builder.Build(ctx, bagDir, []string{"slow", "md5"}, nil)
	require.NotNil(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "%v", err)
	assert.Equal(t, bagit.PhaseFailed, lastPhase)
	assert.Empty(t, rootFiles(t, bagDir))
}
