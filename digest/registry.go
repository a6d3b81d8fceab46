// Package digest knows which checksum algorithms a bag may use and how
// to compute them.
//
// A Registry is an immutable table of algorithms. There is no package
// level registry: callers build one with NewRegistry or Default and pass
// it to whatever needs to hash, which lets tests substitute their own
// algorithms.
package digest

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"github.com/APTrust/bagr/bagerr"
	"golang.org/x/crypto/blake2b"
	"hash"
	"sort"
	"strings"
)

// Algorithm describes one checksum algorithm.
type Algorithm struct {
	// Name is the short name used on the command line, e.g. "sha256"
	// or "blake2b".
	Name string

	// Suffix is the token that appears in manifest file names, between
	// "manifest-" and ".txt".
	Suffix string

	// Size is the digest length in bytes.
	Size int

	// New returns a fresh accumulator.
	New func() hash.Hash
}

// HexLen is the number of hex characters in a digest.
func (alg Algorithm) HexLen() int {
	return alg.Size * 2
}

func (alg Algorithm) String() string {
	return alg.Suffix
}

// Registry is an immutable lookup table of algorithms.
type Registry struct {
	bySuffix map[string]Algorithm
	byName   map[string]Algorithm
	suffixes []string
}

// NewRegistry builds a registry from algs. Later entries replace
// earlier ones that have the same suffix or name.
func NewRegistry(algs ...Algorithm) *Registry {
	registry := &Registry{
		bySuffix: make(map[string]Algorithm),
		byName:   make(map[string]Algorithm),
	}
	for _, alg := range algs {
		suffix := strings.ToLower(alg.Suffix)
		if _, exists := registry.bySuffix[suffix]; !exists {
			registry.suffixes = append(registry.suffixes, suffix)
		}
		registry.bySuffix[suffix] = alg
		registry.byName[strings.ToLower(alg.Name)] = alg
	}
	sort.Strings(registry.suffixes)
	return registry
}

func newBlake2b(size int) func() hash.Hash {
	return func() hash.Hash {
		// New only fails for bad key or size, and we pass neither.
		h, _ := blake2b.New(size, nil)
		return h
	}
}

// Standard returns the algorithms every default registry supports.
func Standard() []Algorithm {
	return []Algorithm{
		{Name: "md5", Suffix: "md5", Size: md5.Size, New: md5.New},
		{Name: "sha1", Suffix: "sha1", Size: sha1.Size, New: sha1.New},
		{Name: "sha224", Suffix: "sha224", Size: sha256.Size224, New: sha256.New224},
		{Name: "sha256", Suffix: "sha256", Size: sha256.Size, New: sha256.New},
		{Name: "sha384", Suffix: "sha384", Size: sha512.Size384, New: sha512.New384},
		{Name: "sha512", Suffix: "sha512", Size: sha512.Size, New: sha512.New},
		{Name: "blake2b-256", Suffix: "blake2b256", Size: blake2b.Size256, New: newBlake2b(blake2b.Size256)},
		{Name: "blake2b", Suffix: "blake2b512", Size: blake2b.Size, New: newBlake2b(blake2b.Size)},
	}
}

// Default returns a new registry holding the Standard algorithms.
func Default() *Registry {
	return NewRegistry(Standard()...)
}

// BySuffix finds an algorithm by its manifest file suffix.
func (registry *Registry) BySuffix(suffix string) (Algorithm, error) {
	if alg, ok := registry.bySuffix[strings.ToLower(suffix)]; ok {
		return alg, nil
	}
	return Algorithm{}, bagerr.Unsupported(suffix)
}

// ByName finds an algorithm by its short name.
func (registry *Registry) ByName(name string) (Algorithm, error) {
	if alg, ok := registry.byName[strings.ToLower(name)]; ok {
		return alg, nil
	}
	return Algorithm{}, bagerr.Unsupported(name)
}

// Lookup accepts either a short name or a suffix. This is what the
// command line uses, so "blake2b" and "blake2b512" both work.
func (registry *Registry) Lookup(id string) (Algorithm, error) {
	if alg, err := registry.ByName(id); err == nil {
		return alg, nil
	}
	return registry.BySuffix(id)
}

// Resolve looks up each id and returns the algorithms sorted by suffix,
// with duplicates removed. An empty list is a NoAlgorithms error.
func (registry *Registry) Resolve(ids []string) ([]Algorithm, error) {
	if len(ids) == 0 {
		return nil, bagerr.New(bagerr.NoAlgorithms, "", "at least one checksum algorithm is required")
	}
	seen := make(map[string]bool)
	algs := make([]Algorithm, 0, len(ids))
	for _, id := range ids {
		alg, err := registry.Lookup(id)
		if err != nil {
			return nil, err
		}
		if seen[alg.Suffix] {
			continue
		}
		seen[alg.Suffix] = true
		algs = append(algs, alg)
	}
	Sort(algs)
	return algs, nil
}

// Suffixes lists the registered suffixes in sorted order.
func (registry *Registry) Suffixes() []string {
	list := make([]string, len(registry.suffixes))
	copy(list, registry.suffixes)
	return list
}

// Sort orders algs by suffix.
func Sort(algs []Algorithm) {
	sort.Slice(algs, func(i, j int) bool { return algs[i].Suffix < algs[j].Suffix })
}
