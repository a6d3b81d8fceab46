package logger

import (
	"fmt"
	"github.com/APTrust/bagr/bagit"
	"github.com/APTrust/bagr/config"
	"github.com/op/go-logging"
	"io/ioutil"
	stdlog "log"
	"os"
	"path"
	"path/filepath"
)

/*
InitLogger creates and returns a logger suitable for logging
human-readable messages to <LogDirectory>/<process>.log, and to
stderr as well if the config says so.
*/
func InitLogger(cfg *config.Config) (*logging.Logger, error) {
	processName := path.Base(os.Args[0])
	logDir, err := cfg.AbsLogDirectory()
	if err != nil {
		return nil, err
	}
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	filename := filepath.Join(logDir, fmt.Sprintf("%s.log", processName))
	writer, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("Cannot open log file '%s': %v", filename, err)
	}

	log := logging.MustGetLogger(processName)
	format := logging.MustStringFormatter("%{time} [%{level}] %{message}")
	logging.SetFormatter(format)

	fileBackend := logging.AddModuleLevel(logging.NewLogBackend(writer, "", 0))
	fileBackend.SetLevel(level, processName)
	if cfg.LogToStderr {
		// Log to BOTH file and stderr
		stderrBackend := logging.NewLogBackend(os.Stderr, "", stdlog.LstdFlags)
		stderrBackend.Color = true
		leveled := logging.AddModuleLevel(stderrBackend)
		leveled.SetLevel(level, processName)
		logging.SetBackend(fileBackend, leveled)
	} else {
		// Log to file only
		logging.SetBackend(fileBackend)
	}
	logging.SetLevel(level, processName)
	return log, nil
}

/*
DiscardLogger returns a logger that writes to dev/null.
Suitable for use in testing.
*/
func DiscardLogger(module string) *logging.Logger {
	log := logging.MustGetLogger(module)
	devnull := logging.NewLogBackend(ioutil.Discard, "", 0)
	logging.SetBackend(devnull)
	logging.SetLevel(logging.INFO, module)
	return log
}

// EventSink writes engine events to a go-logging logger. Phase
// changes go out at INFO, findings and warnings at WARNING and
// per-file progress at DEBUG.
type EventSink struct {
	log *logging.Logger
}

// NewEventSink returns a sink that logs to log.
func NewEventSink(log *logging.Logger) *EventSink {
	return &EventSink{log: log}
}

// Emit logs one event.
func (sink *EventSink) Emit(event bagit.Event) {
	switch event.Kind {
	case bagit.PhaseChanged:
		if event.Phase == bagit.PhaseFailed {
			sink.log.Errorf("[%s] %s failed: %v", event.BagDir, event.Operation, event.Err)
			return
		}
		sink.log.Infof("[%s] %s: %s", event.BagDir, event.Operation, event.Phase)
	case bagit.FileHashed:
		sink.log.Debugf("[%s] hashed %s", event.BagDir, event.Path)
	case bagit.FindingRecorded:
		sink.log.Warningf("[%s] %s", event.BagDir, event.Finding)
	case bagit.WarningRecorded:
		sink.log.Warningf("[%s] %s", event.BagDir, event.Warning)
	}
}
