package bagit_test

import (
	"context"
	"github.com/APTrust/bagr/bagit"
	"github.com/APTrust/bagr/testhelper"
	"github.com/stretchr/testify/require"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

// buildBag makes a fake payload of count files and bags it.
func buildBag(t *testing.T, count int, algorithms ...string) (tempDir, bagDir string, files map[string]string) {
	tempDir, bagDir, files, err := testhelper.MakeSourceDir(count)
	require.Nil(t, err)
	builder := bagit.NewBuilder(bagit.Options{Now: testhelper.FixedClock()})
	require.Nil(t, builder.Build(context.Background(), bagDir, algorithms, nil))
	return tempDir, bagDir, files
}

func validate(t *testing.T, bagDir string, algorithms ...string) *bagit.Report {
	report, err := bagit.NewValidator(bagit.Options{}).Validate(context.Background(), bagDir, algorithms)
	require.Nil(t, err)
	require.NotNil(t, report)
	return report
}

// rootFiles returns the content of every file at the top of dir.
func rootFiles(t *testing.T, dir string) map[string]string {
	infos, err := ioutil.ReadDir(dir)
	require.Nil(t, err)
	files := make(map[string]string)
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		data, err := ioutil.ReadFile(filepath.Join(dir, info.Name()))
		require.Nil(t, err)
		files[info.Name()] = string(data)
	}
	return files
}

func warningCount(report *bagit.Report, kind bagit.WarningKind) int {
	count := 0
	for _, warning := range report.Warnings {
		if warning.Kind == kind {
			count++
		}
	}
	return count
}

func names(files map[string]string) []string {
	return testhelper.SortedKeys(files)
}

func readFile(t *testing.T, path string) string {
	data, err := ioutil.ReadFile(path)
	require.Nil(t, err)
	return string(data)
}

func writeFile(t *testing.T, path, content string) {
	require.Nil(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.Nil(t, ioutil.WriteFile(path, []byte(content), 0644))
}

// firstPayloadFile returns the alphabetically first payload path.
func firstPayloadFile(files map[string]string) string {
	paths := names(files)
	return paths[0]
}
