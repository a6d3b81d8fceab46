package bagit

import (
	"bufio"
	"github.com/APTrust/bagr/bagerr"
	"github.com/APTrust/bagr/constants"
	"github.com/APTrust/bagr/manifest"
	"github.com/APTrust/bagr/util"
	"github.com/APTrust/bagr/util/fileutil"
	"github.com/pkg/errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FetchEntry is one line of fetch.txt: a payload file that is not in
// the bag yet and where to get it. Length is -1 when the line says "-".
type FetchEntry struct {
	URL    string
	Length int64
	Path   string
}

// FetchList is the content of fetch.txt. The engine never downloads
// anything. A file listed here that is missing from disk is deferred,
// not missing.
type FetchList struct {
	Entries []FetchEntry
	byPath  map[string]int
}

// Get returns the entry for a payload path.
func (list *FetchList) Get(path string) (FetchEntry, bool) {
	if list == nil {
		return FetchEntry{}, false
	}
	i, ok := list.byPath[path]
	if !ok {
		return FetchEntry{}, false
	}
	return list.Entries[i], true
}

// ParseFetch reads "<url> <length> <encoded path>" lines.
func ParseFetch(r io.Reader) (*FetchList, error) {
	list := &FetchList{
		Entries: make([]FetchEntry, 0),
		byPath:  make(map[string]int),
	}
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, bagerr.Line(bagerr.InvalidTagFile, constants.FetchTxt, lineNum,
				"expected '<url> <length> <path>'")
		}
		if !util.LooksLikeURL(fields[0]) {
			return nil, bagerr.Line(bagerr.InvalidTagFile, constants.FetchTxt, lineNum,
				"'%s' is not a URL", fields[0])
		}
		length := int64(-1)
		if fields[1] != "-" {
			n, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil || n < 0 {
				return nil, bagerr.Line(bagerr.InvalidTagFile, constants.FetchTxt, lineNum,
					"bad length '%s'", fields[1])
			}
			length = n
		}
		// The path is everything after the length, spaces included.
		rest := strings.TrimLeft(line, " \t")
		rest = strings.TrimLeft(rest[len(fields[0]):], " \t")
		rest = strings.TrimLeft(rest[len(fields[1]):], " \t")
		path, err := manifest.DecodePath(rest)
		if err == nil {
			err = manifest.CheckPath(constants.ScopePayload, path)
		}
		if err != nil {
			return nil, bagerr.Line(bagerr.InvalidTagFile, constants.FetchTxt, lineNum, "%s", err.Error())
		}
		if _, dup := list.byPath[path]; dup {
			return nil, bagerr.Line(bagerr.InvalidTagFile, constants.FetchTxt, lineNum,
				"%q is listed more than once", path)
		}
		list.byPath[path] = len(list.Entries)
		list.Entries = append(list.Entries, FetchEntry{URL: fields[0], Length: length, Path: path})
	}
	if err := scanner.Err(); err != nil {
		return nil, bagerr.IO("read", constants.FetchTxt, err)
	}
	return list, nil
}

// ReadFetch reads fetch.txt. A bag without one returns nil and no
// error.
func ReadFetch(fs fileutil.FileSystem, bagDir string) (*FetchList, error) {
	path := filepath.Join(bagDir, constants.FetchTxt)
	file, err := fs.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, bagerr.IO("open", path, err)
	}
	defer file.Close()
	return ParseFetch(file)
}
