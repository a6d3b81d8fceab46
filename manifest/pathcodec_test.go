package manifest_test

import (
	"github.com/APTrust/bagr/bagerr"
	"github.com/APTrust/bagr/constants"
	"github.com/APTrust/bagr/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestEncodePath(t *testing.T) {
	assert.Equal(t, "data/plain.txt", manifest.EncodePath("data/plain.txt"))
	assert.Equal(t, "data/a%0Db", manifest.EncodePath("data/a\rb"))
	assert.Equal(t, "data/a%0Ab", manifest.EncodePath("data/a\nb"))
	assert.Equal(t, "data/100%", manifest.EncodePath("data/100%"))
	assert.Equal(t, "data/50%off", manifest.EncodePath("data/50%off"))
	assert.Equal(t, "data/%250D", manifest.EncodePath("data/%0D"))
	assert.Equal(t, "data/%250a", manifest.EncodePath("data/%0a"))
	assert.Equal(t, "data/%2525", manifest.EncodePath("data/%25"))
}

func TestDecodePath(t *testing.T) {
	cases := map[string]string{
		"data/plain.txt": "data/plain.txt",
		"data/a%0Db":     "data/a\rb",
		"data/a%0db":     "data/a\rb",
		"data/a%0Ab":     "data/a\nb",
		"data/100%":      "data/100%",
		"data/%41":       "data/%41",
		"data/%250D":     "data/%0D",
		"data/%25":       "data/%",
	}
	for encoded, expected := range cases {
		decoded, err := manifest.DecodePath(encoded)
		require.Nil(t, err, encoded)
		assert.Equal(t, expected, decoded, encoded)
	}

	_, err := manifest.DecodePath("data/a\nb")
	require.NotNil(t, err)
	assert.True(t, bagerr.Is(err, bagerr.MalformedManifestLine))
	_, err = manifest.DecodePath("data/a\rb")
	assert.True(t, bagerr.Is(err, bagerr.MalformedManifestLine))
}

// Every string over a small alphabet heavy in escape characters must
// come back unchanged.
func TestPathRoundTrip(t *testing.T) {
	alphabet := []byte{'a', '/', '%', '\r', '\n', '0', 'D', 'A', '2', '5'}
	var walk func(prefix []byte, depth int)
	walk = func(prefix []byte, depth int) {
		s := string(prefix)
		decoded, err := manifest.DecodePath(manifest.EncodePath(s))
		require.Nil(t, err, "%q", s)
		require.Equal(t, s, decoded, "%q", s)
		if depth == 0 {
			return
		}
		for _, c := range alphabet {
			walk(append(prefix, c), depth-1)
		}
	}
	walk([]byte{}, 4)
}

func TestEncodedPathHasNoLineBreaks(t *testing.T) {
	encoded := manifest.EncodePath("data/one\r\ntwo\n")
	assert.NotContains(t, encoded, "\r")
	assert.NotContains(t, encoded, "\n")
}

func TestCheckPath(t *testing.T) {
	good := []string{
		"data/file.txt",
		"data/dir/sub/file",
		"data/..hidden",
		"data/file..txt",
	}
	for _, path := range good {
		assert.Nil(t, manifest.CheckPath(constants.ScopePayload, path), path)
	}

	bad := []string{
		"",
		"/etc/passwd",
		"data/../../etc/passwd",
		"data/./file",
		"data//file",
		"data/dir/",
		"C:/windows",
		"c:file",
		"bag-info.txt",
		"data",
	}
	for _, path := range bad {
		err := manifest.CheckPath(constants.ScopePayload, path)
		require.NotNil(t, err, path)
		assert.True(t, bagerr.Is(err, bagerr.PathTraversal), path)
	}

	assert.Nil(t, manifest.CheckPath(constants.ScopeTag, "bag-info.txt"))
	assert.Nil(t, manifest.CheckPath(constants.ScopeTag, "metadata/extra.xml"))
	assert.True(t, bagerr.Is(manifest.CheckPath(constants.ScopeTag, "data/file.txt"), bagerr.PathTraversal))
	assert.True(t, bagerr.Is(manifest.CheckPath(constants.ScopeTag, "../bag-info.txt"), bagerr.PathTraversal))
}
