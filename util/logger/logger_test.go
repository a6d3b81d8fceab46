package logger_test

import (
	"bytes"
	"github.com/APTrust/bagr/bagit"
	"github.com/APTrust/bagr/config"
	"github.com/APTrust/bagr/util/fileutil"
	"github.com/APTrust/bagr/util/logger"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"
)

// Get a barebones config object with just enough info to
// set up logging. Log to a temp dir.
func getLoggingTestConfig(t *testing.T) *config.Config {
	logDir, err := ioutil.TempDir("", "bagr_log_test")
	require.Nil(t, err)
	cfg := config.Default()
	cfg.LogDirectory = logDir
	cfg.LogLevel = "ERROR"
	return cfg
}

func TestInitLogger(t *testing.T) {
	cfg := getLoggingTestConfig(t)
	defer os.RemoveAll(cfg.LogDirectory)
	log, err := logger.InitLogger(cfg)
	require.Nil(t, err)
	log.Info("Below the level")
	log.Error("Test Message")
	logFile := filepath.Join(cfg.LogDirectory, path.Base(os.Args[0])+".log")
	require.True(t, fileutil.FileExists(logFile), logFile)
	data, err := ioutil.ReadFile(logFile)
	require.Nil(t, err)
	assert.True(t, strings.HasSuffix(string(data), "Test Message\n"))
	assert.NotContains(t, string(data), "Below the level")
}

func TestInitLoggerBadLevel(t *testing.T) {
	cfg := getLoggingTestConfig(t)
	defer os.RemoveAll(cfg.LogDirectory)
	cfg.LogLevel = "LOUD"
	_, err := logger.InitLogger(cfg)
	assert.NotNil(t, err)
}

func TestDiscardLogger(t *testing.T) {
	log := logger.DiscardLogger("logger_test")
	require.NotNil(t, log)
	log.Info("This should not cause an error!")
}

func TestEventSink(t *testing.T) {
	buf := &bytes.Buffer{}
	log := logging.MustGetLogger("sink_test")
	backend := logging.AddModuleLevel(logging.NewLogBackend(buf, "", 0))
	backend.SetLevel(logging.INFO, "sink_test")
	log.SetBackend(backend)

	sink := logger.NewEventSink(log)
	sink.Emit(bagit.Event{Kind: bagit.PhaseChanged, Operation: bagit.OpValidate, BagDir: "/bags/one", Phase: bagit.PhaseHashing})
	sink.Emit(bagit.Event{Kind: bagit.FileHashed, BagDir: "/bags/one", Path: "data/quiet.txt"})
	sink.Emit(bagit.Event{Kind: bagit.FindingRecorded, BagDir: "/bags/one",
		Finding: &bagit.Finding{Kind: bagit.MissingFile, Path: "data/gone.txt"}})
	sink.Emit(bagit.Event{Kind: bagit.WarningRecorded, BagDir: "/bags/one",
		Warning: &bagit.Warning{Kind: bagit.SkippedSymlink, Path: "data/link"}})
	sink.Emit(bagit.Event{Kind: bagit.PhaseChanged, Operation: bagit.OpValidate, BagDir: "/bags/one",
		Phase: bagit.PhaseFailed, Err: errors.New("disk on fire")})

	out := buf.String()
	assert.Contains(t, out, "validate: Hashing")
	assert.NotContains(t, out, "quiet.txt")
	assert.Contains(t, out, "data/gone.txt")
	assert.Contains(t, out, "data/link")
	assert.Contains(t, out, "disk on fire")
}
