package manifest

import (
	"github.com/APTrust/bagr/constants"
	"github.com/APTrust/bagr/digest"
	"sort"
)

// Entry is one file with its digests under every algorithm in use.
type Entry struct {
	Path    string
	Size    int64
	Digests map[string]string // algorithm suffix -> hex digest
}

// EntrySet collects hashed files for one scope and splits them into
// one manifest per algorithm.
type EntrySet struct {
	Scope   constants.Scope
	entries map[string]*Entry
}

// NewEntrySet returns an empty set.
func NewEntrySet(scope constants.Scope) *EntrySet {
	return &EntrySet{
		Scope:   scope,
		entries: make(map[string]*Entry),
	}
}

// Put adds or replaces the entry for entry.Path.
func (set *EntrySet) Put(entry *Entry) {
	set.entries[entry.Path] = entry
}

// Get returns the entry for path.
func (set *EntrySet) Get(path string) (*Entry, bool) {
	entry, ok := set.entries[path]
	return entry, ok
}

// Len returns the number of entries.
func (set *EntrySet) Len() int {
	return len(set.entries)
}

// Paths returns all paths, sorted.
func (set *EntrySet) Paths() []string {
	paths := make([]string, 0, len(set.entries))
	for path := range set.entries {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// TotalSize returns the sum of all entry sizes.
func (set *EntrySet) TotalSize() int64 {
	var total int64
	for _, entry := range set.entries {
		total += entry.Size
	}
	return total
}

// Manifest builds the manifest for alg. Every entry must carry a
// digest for alg.
func (set *EntrySet) Manifest(alg digest.Algorithm) (*Manifest, error) {
	manifest := New(set.Scope, alg)
	for _, path := range set.Paths() {
		entry := set.entries[path]
		if err := manifest.Add(path, entry.Digests[alg.Suffix]); err != nil {
			return nil, err
		}
	}
	return manifest, nil
}

// Manifests builds one manifest per algorithm, in the order of algs.
func (set *EntrySet) Manifests(algs []digest.Algorithm) ([]*Manifest, error) {
	manifests := make([]*Manifest, 0, len(algs))
	for _, alg := range algs {
		manifest, err := set.Manifest(alg)
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, manifest)
	}
	return manifests, nil
}
