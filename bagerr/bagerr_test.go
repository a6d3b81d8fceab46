package bagerr_test

import (
	"github.com/APTrust/bagr/bagerr"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"testing"
)

func TestCategories(t *testing.T) {
	assert.Equal(t, bagerr.Structural, bagerr.InvalidDeclaration.Category())
	assert.Equal(t, bagerr.Structural, bagerr.MalformedManifestLine.Category())
	assert.Equal(t, bagerr.Structural, bagerr.DuplicateManifestEntry.Category())
	assert.Equal(t, bagerr.Structural, bagerr.PathTraversal.Category())
	assert.Equal(t, bagerr.Configuration, bagerr.EmptyPayload.Category())
	assert.Equal(t, bagerr.Configuration, bagerr.UnsupportedAlgorithm.Category())
	assert.Equal(t, bagerr.Configuration, bagerr.NoAlgorithms.Category())
	assert.Equal(t, bagerr.IOError, bagerr.IoFailure.Category())
	assert.Equal(t, "IoFailure", bagerr.IOError.String())
}

func TestErrorString(t *testing.T) {
	err := bagerr.Line(bagerr.MalformedManifestLine, "manifest-md5.txt", 7, "expected %d hex digits", 32)
	assert.Equal(t, "MalformedManifestLine 'manifest-md5.txt' line 7: expected 32 hex digits", err.Error())

	err2 := bagerr.Unsupported("crc32")
	assert.Equal(t, "UnsupportedAlgorithm [crc32]: no such checksum algorithm", err2.Error())
}

func TestKindOfWrapped(t *testing.T) {
	inner := bagerr.New(bagerr.PathTraversal, "data/../x", "path leaves the bag")
	wrapped := errors.Wrap(inner, "parsing manifest")

	kind, ok := bagerr.KindOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, bagerr.PathTraversal, kind)
	assert.True(t, bagerr.Is(wrapped, bagerr.PathTraversal))
	assert.False(t, bagerr.Is(wrapped, bagerr.IoFailure))

	_, ok = bagerr.KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestIOKeepsCause(t *testing.T) {
	err := bagerr.IO("open", "/no/such/file", os.ErrNotExist)
	require.NotNil(t, err)
	assert.True(t, bagerr.Is(err, bagerr.IoFailure))
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Contains(t, err.Error(), "/no/such/file")
	assert.Contains(t, err.Error(), "open")

	assert.Nil(t, bagerr.IO("open", "x", nil))
	assert.Nil(t, bagerr.Wrap(bagerr.IoFailure, "x", nil))

	category, ok := bagerr.CategoryOf(err)
	require.True(t, ok)
	assert.Equal(t, bagerr.IOError, category)
}
