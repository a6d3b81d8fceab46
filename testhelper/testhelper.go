package testhelper

import (
	"fmt"
	"github.com/APTrust/bagr/digest"
	"github.com/APTrust/bagr/util/fileutil"
	"github.com/icrowley/fake"
	"hash"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// TempBagDir creates a temp directory holding an empty directory
// named "bag". The fixity cache for the bag goes next to it, so
// removing tempDir cleans up everything.
func TempBagDir() (tempDir string, bagDir string, err error) {
	tempDir, err = ioutil.TempDir("", "bagr_test")
	if err != nil {
		return "", "", fmt.Errorf("Cannot create temp dir: %v", err)
	}
	bagDir = filepath.Join(tempDir, "bag")
	if err = os.Mkdir(bagDir, 0755); err != nil {
		return "", "", fmt.Errorf("Cannot create bag dir: %v", err)
	}
	return tempDir, bagDir, nil
}

// RemoveTempDir deletes a directory made by TempBagDir, as long as
// the path doesn't look like something that matters.
func RemoveTempDir(tempDir string) {
	if fileutil.LooksSafeToDelete(tempDir, 8, 2) {
		os.RemoveAll(tempDir)
	}
}

// WriteFiles writes each relPath -> content pair under dir, creating
// directories as needed.
func WriteFiles(dir string, files map[string]string) error {
	for relPath, content := range files {
		absPath := filepath.Join(dir, filepath.FromSlash(relPath))
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			return err
		}
		if err := ioutil.WriteFile(absPath, []byte(content), 0644); err != nil {
			return err
		}
	}
	return nil
}

// FakePayload returns count payload files with made-up names and
// content, spread over a few subdirectories of data/.
func FakePayload(count int) map[string]string {
	dirs := []string{"", "docs/", "images/raw/", "notes/"}
	files := make(map[string]string, count)
	for i := 0; i < count; i++ {
		name := fmt.Sprintf("data/%s%03d_%s.txt", dirs[i%len(dirs)], i, fake.Word())
		files[name] = fake.Paragraph()
	}
	return files
}

// SortedKeys returns the paths of files in order.
func SortedKeys(files map[string]string) []string {
	keys := make([]string, 0, len(files))
	for key := range files {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MakeSourceDir creates a bag directory whose data/ holds a fake
// payload of count files.
func MakeSourceDir(count int) (tempDir string, bagDir string, files map[string]string, err error) {
	tempDir, bagDir, err = TempBagDir()
	if err != nil {
		return "", "", nil, err
	}
	files = FakePayload(count)
	if err = WriteFiles(bagDir, files); err != nil {
		RemoveTempDir(tempDir)
		return "", "", nil, err
	}
	return tempDir, bagDir, files, nil
}

// FixedClock returns a clock that always says the same time.
func FixedClock() func() time.Time {
	fixed := time.Date(2021, 6, 15, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return fixed }
}

// CountingFS is the real filesystem, plus a count of how many times
// each file was opened and how many bytes were read from it.
type CountingFS struct {
	fileutil.OSFileSystem
	mutex     sync.Mutex
	opens     map[string]int
	bytesRead map[string]int64
}

func NewCountingFS() *CountingFS {
	return &CountingFS{
		opens:     make(map[string]int),
		bytesRead: make(map[string]int64),
	}
}

func (fs *CountingFS) Open(name string) (io.ReadCloser, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	fs.mutex.Lock()
	fs.opens[name]++
	fs.mutex.Unlock()
	return &countingReader{fs: fs, name: name, file: file}, nil
}

// Opens returns how many times name was opened.
func (fs *CountingFS) Opens(name string) int {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	return fs.opens[name]
}

// BytesRead returns how many bytes were read from name.
func (fs *CountingFS) BytesRead(name string) int64 {
	fs.mutex.Lock()
	defer fs.mutex.Unlock()
	return fs.bytesRead[name]
}

type countingReader struct {
	fs   *CountingFS
	name string
	file *os.File
}

func (reader *countingReader) Read(p []byte) (int, error) {
	n, err := reader.file.Read(p)
	reader.fs.mutex.Lock()
	reader.fs.bytesRead[reader.name] += int64(n)
	reader.fs.mutex.Unlock()
	return n, err
}

func (reader *countingReader) Close() error {
	return reader.file.Close()
}

// FailingFS is the real filesystem, except that creating a file whose
// name contains FailCreate, or renaming onto a name that contains
// FailRename, fails.
type FailingFS struct {
	fileutil.OSFileSystem
	FailCreate string
	FailRename string
}

func (fs FailingFS) Create(name string) (fileutil.WriteFile, error) {
	if fs.FailCreate != "" && strings.Contains(filepath.Base(name), fs.FailCreate) {
		return nil, fmt.Errorf("simulated failure creating %s", name)
	}
	return fs.OSFileSystem.Create(name)
}

func (fs FailingFS) Rename(oldpath, newpath string) error {
	if fs.FailRename != "" && strings.Contains(filepath.Base(newpath), fs.FailRename) {
		return fmt.Errorf("simulated failure renaming %s", newpath)
	}
	return fs.OSFileSystem.Rename(oldpath, newpath)
}

// SlowAlgorithm is an md5 that sleeps on every write. It is for
// testing cancellation.
func SlowAlgorithm(delay time.Duration) digest.Algorithm {
	return digest.Algorithm{
		Name:   "slow",
		Suffix: "slow",
		Size:   16,
		New: func() hash.Hash {
			return &slowHash{Hash: digest.Standard()[0].New(), delay: delay}
		},
	}
}

type slowHash struct {
	hash.Hash
	delay time.Duration
}

func (h *slowHash) Write(p []byte) (int, error) {
	time.Sleep(h.delay)
	return h.Hash.Write(p)
}
