package main

import (
	"bytes"
	"context"
	"encoding/json"
	"github.com/APTrust/bagr/testhelper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

// writeConfig writes a config that logs into tempDir.
func writeConfig(t *testing.T, tempDir string) string {
	path := filepath.Join(tempDir, "bagr.toml")
	data := "algorithms = [\"md5\"]\nlog_directory = \"" + filepath.Join(tempDir, "log") + "\"\n" +
		"cache_directory = \"" + filepath.Join(tempDir, "cache") + "\"\n" +
		"[[bag_info]]\nlabel = \"Source-Organization\"\nvalue = \"Example University\"\n"
	require.Nil(t, ioutil.WriteFile(path, []byte(data), 0644))
	return path
}

func runBagr(args ...string) (int, string, string) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	code := run(context.Background(), args, stdout, stderr)
	return code, stdout.String(), stderr.String()
}

func TestBagValidateRebag(t *testing.T) {
	tempDir, bagDir, files, err := testhelper.MakeSourceDir(5)
	require.Nil(t, err)
	defer testhelper.RemoveTempDir(tempDir)
	configFile := writeConfig(t, tempDir)

	code, stdout, stderr := runBagr("bag", bagDir, "--config", configFile, "-a", "sha256", "-t", "Contact-Name: Ann")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "Created bag")
	assert.FileExists(t, filepath.Join(bagDir, "manifest-sha256.txt"))
	info, err := ioutil.ReadFile(filepath.Join(bagDir, "bag-info.txt"))
	require.Nil(t, err)
	assert.Contains(t, string(info), "Source-Organization: Example University\nContact-Name: Ann\n")

	// The fixity cache goes to cache_directory, not next to the bag.
	caches, err := filepath.Glob(filepath.Join(tempDir, "cache", "*.bagdb"))
	require.Nil(t, err)
	assert.Len(t, caches, 1)
	beside, err := filepath.Glob(filepath.Join(tempDir, "*.bagdb"))
	require.Nil(t, err)
	assert.Empty(t, beside)

	code, stdout, _ = runBagr("validate", bagDir, "--config", configFile)
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "Bag is valid")

	first := testhelper.SortedKeys(files)[0]
	require.Nil(t, os.Remove(filepath.Join(bagDir, filepath.FromSlash(first))))
	reportFile := filepath.Join(tempDir, "report.json")
	code, stdout, _ = runBagr("validate", bagDir, "--config", configFile, "-o", reportFile)
	assert.Equal(t, exitInvalid, code)
	assert.Contains(t, stdout, first)
	data, err := ioutil.ReadFile(reportFile)
	require.Nil(t, err)
	report := jsonReport{}
	require.Nil(t, json.Unmarshal(data, &report))
	assert.False(t, report.Valid)
	assert.Len(t, report.Findings, 2)

	code, _, stderr = runBagr("rebag", bagDir, "--config", configFile, "--fast")
	require.Equal(t, exitOK, code, stderr)
	code, _, _ = runBagr("validate", bagDir, "--config", configFile)
	assert.Equal(t, exitOK, code)
}

func TestFatalErrors(t *testing.T) {
	tempDir, bagDir, err := testhelper.TempBagDir()
	require.Nil(t, err)
	defer testhelper.RemoveTempDir(tempDir)
	configFile := writeConfig(t, tempDir)

	code, _, stderr := runBagr("validate", bagDir, "--config", configFile)
	assert.Equal(t, exitFatal, code)
	assert.Contains(t, stderr, "InvalidDeclaration")

	code, _, _ = runBagr("bag", bagDir, "--config", configFile, "-a", "crc32")
	assert.Equal(t, exitFatal, code)

	code, _, stderr = runBagr("bag", bagDir, "--config", configFile, "-t", "no colon")
	assert.Equal(t, exitFatal, code)
	assert.Contains(t, stderr, "Label: value")

	code, _, _ = runBagr("validate", bagDir, "--config", filepath.Join(tempDir, "missing.toml"))
	assert.Equal(t, exitFatal, code)
}

func TestParseTagArg(t *testing.T) {
	tag, err := parseTagArg("External-Identifier:  abc:123 ")
	require.Nil(t, err)
	assert.Equal(t, "External-Identifier", tag.Label)
	assert.Equal(t, "abc:123", tag.Value)
	_, err = parseTagArg(": value")
	assert.NotNil(t, err)
}
