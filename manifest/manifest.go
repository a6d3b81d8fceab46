// Package manifest reads and writes BagIt manifests.
//
// A Manifest holds the lines of one manifest file: one algorithm, one
// scope. Lines are kept in an arena in the order they were added, with
// a path index for lookups; serialization sorts an index list by the
// encoded path so the same content always produces the same bytes.
package manifest

import (
	"bytes"
	"fmt"
	"github.com/APTrust/bagr/bagerr"
	"github.com/APTrust/bagr/constants"
	"github.com/APTrust/bagr/digest"
	"io"
	"sort"
	"strings"
)

// Line is one manifest record.
type Line struct {
	// Path is the decoded, bag-relative path.
	Path string
	// Digest is the lowercase hex digest.
	Digest string
}

// Manifest is the in-memory form of manifest-<alg>.txt or
// tagmanifest-<alg>.txt.
type Manifest struct {
	Scope     constants.Scope
	Algorithm digest.Algorithm
	lines     []Line
	index     map[string]int
}

// New returns an empty manifest.
func New(scope constants.Scope, alg digest.Algorithm) *Manifest {
	return &Manifest{
		Scope:     scope,
		Algorithm: alg,
		lines:     make([]Line, 0),
		index:     make(map[string]int),
	}
}

// FileName returns the name of the file this manifest is stored in.
func (manifest *Manifest) FileName() string {
	return FileName(manifest.Scope, manifest.Algorithm)
}

// Add records digest for path. The digest is stored lowercase and
// must have the length the algorithm calls for. A path may only be
// added once. A path that begins with a space or tab is refused, since
// readers strip that whitespace along with the separator.
func (manifest *Manifest) Add(path, hexDigest string) error {
	if strings.IndexAny(path, " \t") == 0 {
		return bagerr.New(bagerr.MalformedManifestLine, manifest.FileName(),
			"%q begins with whitespace and cannot be listed in a manifest", path)
	}
	if _, exists := manifest.index[path]; exists {
		return bagerr.New(bagerr.DuplicateManifestEntry, manifest.FileName(),
			"%q is listed more than once", path)
	}
	if err := checkDigest(manifest.Algorithm, hexDigest); err != nil {
		return bagerr.New(bagerr.MalformedManifestLine, manifest.FileName(), "%s", err.Error())
	}
	manifest.index[path] = len(manifest.lines)
	manifest.lines = append(manifest.lines, Line{Path: path, Digest: strings.ToLower(hexDigest)})
	return nil
}

// Digest returns the digest recorded for path.
func (manifest *Manifest) Digest(path string) (string, bool) {
	i, ok := manifest.index[path]
	if !ok {
		return "", false
	}
	return manifest.lines[i].Digest, true
}

// Has reports whether path is listed.
func (manifest *Manifest) Has(path string) bool {
	_, ok := manifest.index[path]
	return ok
}

// Len returns the number of lines.
func (manifest *Manifest) Len() int {
	return len(manifest.lines)
}

// Paths returns every listed path in sorted (serialization) order.
func (manifest *Manifest) Paths() []string {
	order := manifest.sortedIndex()
	paths := make([]string, len(order))
	for i, idx := range order {
		paths[i] = manifest.lines[idx].Path
	}
	return paths
}

// Lines returns the lines in sorted order.
func (manifest *Manifest) Lines() []Line {
	order := manifest.sortedIndex()
	lines := make([]Line, len(order))
	for i, idx := range order {
		lines[i] = manifest.lines[idx]
	}
	return lines
}

func (manifest *Manifest) sortedIndex() []int {
	encoded := make([]string, len(manifest.lines))
	order := make([]int, len(manifest.lines))
	for i := range manifest.lines {
		encoded[i] = EncodePath(manifest.lines[i].Path)
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return encoded[order[a]] < encoded[order[b]]
	})
	return order
}

// WriteTo writes the manifest in canonical form: one
// "<digest>  <encoded path>\n" line per entry, sorted by encoded path.
func (manifest *Manifest) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, idx := range manifest.sortedIndex() {
		line := manifest.lines[idx]
		n, err := fmt.Fprintf(w, "%s  %s\n", line.Digest, EncodePath(line.Path))
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Bytes returns the canonical serialization.
func (manifest *Manifest) Bytes() []byte {
	var buf bytes.Buffer
	manifest.WriteTo(&buf)
	return buf.Bytes()
}

func checkDigest(alg digest.Algorithm, hexDigest string) error {
	if len(hexDigest) != alg.HexLen() {
		return fmt.Errorf("%s digest should have %d hex digits, not %d",
			alg.Suffix, alg.HexLen(), len(hexDigest))
	}
	for i := 0; i < len(hexDigest); i++ {
		c := hexDigest[i]
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return fmt.Errorf("digest '%s' is not hex", hexDigest)
		}
	}
	return nil
}

// FileName returns "manifest-<suffix>.txt" for payload scope and
// "tagmanifest-<suffix>.txt" for tag scope.
func FileName(scope constants.Scope, alg digest.Algorithm) string {
	prefix := constants.PayloadManifestPrefix
	if scope == constants.ScopeTag {
		prefix = constants.TagManifestPrefix
	}
	return fmt.Sprintf("%s-%s.txt", prefix, alg.Suffix)
}

// ParseFileName tells whether name is a payload or tag manifest and
// returns the algorithm suffix. The suffix is not checked against any
// registry.
func ParseFileName(name string) (constants.Scope, string, bool) {
	if m := constants.ManifestPattern.FindStringSubmatch(name); m != nil {
		return constants.ScopePayload, m[1], true
	}
	if m := constants.TagManifestPattern.FindStringSubmatch(name); m != nil {
		return constants.ScopeTag, m[1], true
	}
	return "", "", false
}

// IsManifestName reports whether name is any kind of manifest file.
func IsManifestName(name string) bool {
	_, _, ok := ParseFileName(name)
	return ok
}
