package digest

import (
	"encoding/hex"
	"hash"
	"io"
)

// MultiHasher computes several digests over a single stream of bytes.
// Everything written to it goes to every accumulator, so a file only
// has to be read once no matter how many algorithms a bag uses.
type MultiHasher struct {
	w      io.Writer
	algs   []Algorithm
	hashes []hash.Hash
	count  int64
}

// NewMultiHasher returns a MultiHasher for algs.
func NewMultiHasher(algs []Algorithm) *MultiHasher {
	hasher := &MultiHasher{
		algs:   algs,
		hashes: make([]hash.Hash, len(algs)),
	}
	writers := make([]io.Writer, len(algs))
	for i, alg := range algs {
		hasher.hashes[i] = alg.New()
		writers[i] = hasher.hashes[i]
	}
	hasher.w = io.MultiWriter(writers...)
	return hasher
}

func (hasher *MultiHasher) Write(p []byte) (int, error) {
	n, err := hasher.w.Write(p)
	hasher.count += int64(n)
	return n, err
}

// ReadFrom copies r into every accumulator.
func (hasher *MultiHasher) ReadFrom(r io.Reader) (int64, error) {
	return io.Copy(struct{ io.Writer }{hasher}, r)
}

// Count returns the number of bytes written so far.
func (hasher *MultiHasher) Count() int64 {
	return hasher.count
}

// Sums returns the lowercase hex digests keyed by algorithm suffix.
func (hasher *MultiHasher) Sums() map[string]string {
	sums := make(map[string]string, len(hasher.algs))
	for i, alg := range hasher.algs {
		sums[alg.Suffix] = hex.EncodeToString(hasher.hashes[i].Sum(nil))
	}
	return sums
}

// Sum is a convenience for hashing a byte slice with algs.
func Sum(algs []Algorithm, data []byte) map[string]string {
	hasher := NewMultiHasher(algs)
	hasher.Write(data)
	return hasher.Sums()
}
