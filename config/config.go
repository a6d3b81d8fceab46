// Package config holds the settings bagr reads from a TOML or JSON
// file. Command-line flags override them.
package config

import (
	"fmt"
	"github.com/APTrust/bagr/constants"
	"github.com/APTrust/bagr/digest"
	"github.com/APTrust/bagr/util"
	"github.com/APTrust/bagr/util/fileutil"
	"github.com/BurntSushi/toml"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// BagInfoTag is a default tag for the bag-info.txt of new bags.
type BagInfoTag struct {
	Label string `toml:"label" json:"label"`
	Value string `toml:"value" json:"value"`
}

type Config struct {
	// Algorithms are the checksum algorithms new bags get when none
	// are given on the command line. Short names or manifest
	// suffixes, e.g. "sha256" or "blake2b512".
	Algorithms []string `toml:"algorithms" json:"algorithms"`

	// Workers is the number of files hashed at once. Zero means one
	// per CPU.
	Workers int `toml:"workers" json:"workers"`

	// UpdateMode is the default for rebag: "fast" or "full-rescan".
	UpdateMode string `toml:"update_mode" json:"update_mode"`

	// LogDirectory is where we'll write our log files.
	LogDirectory string `toml:"log_directory" json:"log_directory"`

	// LogLevel is one of the go-logging level names: CRITICAL,
	// ERROR, WARNING, NOTICE, INFO or DEBUG.
	LogLevel string `toml:"log_level" json:"log_level"`

	// If true, log to STDERR in addition to the log file.
	LogToStderr bool `toml:"log_to_stderr" json:"log_to_stderr"`

	// UseFixityCache turns on the bolt database that lets fast
	// updates skip unchanged files.
	UseFixityCache bool `toml:"use_fixity_cache" json:"use_fixity_cache"`

	// CacheDirectory holds the fixity caches. When empty, each
	// bag's cache sits next to the bag, outside its directory.
	CacheDirectory string `toml:"cache_directory" json:"cache_directory"`

	// BagInfo tags are added to every new bag, ahead of any given
	// on the command line.
	BagInfo []BagInfoTag `toml:"bag_info" json:"bag_info"`
}

// Default returns the settings used when there is no config file.
func Default() *Config {
	return &Config{
		Algorithms:     []string{"sha512"},
		Workers:        runtime.NumCPU(),
		UpdateMode:     constants.UpdateFull,
		LogDirectory:   "~/.bagr/log",
		LogLevel:       "INFO",
		LogToStderr:    false,
		UseFixityCache: true,
		CacheDirectory: "~/.bagr/cache",
		BagInfo:        make([]BagInfoTag, 0),
	}
}

// Load reads the config file at path on top of Default. Files ending
// in .toml are TOML; anything else is parsed as JSON.
func Load(path string) (*Config, error) {
	config := Default()
	var err error
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		_, err = toml.DecodeFile(path, config)
	} else {
		err = fileutil.JsonFileToObject(path, config)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "Error reading config file '%s'", path)
	}
	config.ExpandFilePaths()
	return config, nil
}

// Validate returns everything wrong with the config. An empty list
// means it is usable.
func (config *Config) Validate() []error {
	errs := make([]error, 0)
	if len(config.Algorithms) == 0 {
		errs = append(errs, fmt.Errorf("Config must list at least one algorithm"))
	}
	registry := digest.Default()
	for _, id := range config.Algorithms {
		if _, err := registry.Lookup(id); err != nil {
			errs = append(errs, fmt.Errorf("Algorithm '%s' is not supported", id))
		}
	}
	if config.Workers < 0 {
		errs = append(errs, fmt.Errorf("Workers must not be negative"))
	}
	if !util.StringListContains(constants.UpdateModes, config.UpdateMode) {
		errs = append(errs, fmt.Errorf("UpdateMode must be one of %s",
			strings.Join(constants.UpdateModes, ", ")))
	}
	if _, err := config.Level(); err != nil {
		errs = append(errs, fmt.Errorf("LogLevel '%s' is not a valid log level", config.LogLevel))
	}
	for i, tag := range config.BagInfo {
		if strings.TrimSpace(tag.Label) == "" {
			errs = append(errs, fmt.Errorf("BagInfo tag %d has no label", i+1))
		}
	}
	return errs
}

// Level returns LogLevel as a go-logging level.
func (config *Config) Level() (logging.Level, error) {
	return logging.LogLevel(config.LogLevel)
}

// AbsLogDirectory returns the absolute path of the log directory,
// creating it if needed.
func (config *Config) AbsLogDirectory() (string, error) {
	config.ExpandFilePaths()
	absPath, err := filepath.Abs(config.LogDirectory)
	if err != nil {
		return "", errors.Wrapf(err, "Cannot get absolute path to log directory '%s'", config.LogDirectory)
	}
	if !fileutil.FileExists(absPath) {
		if err = os.MkdirAll(absPath, 0755); err != nil {
			return "", err
		}
	}
	return absPath, nil
}

// Expands ~ file paths
func (config *Config) ExpandFilePaths() {
	expanded, err := fileutil.ExpandTilde(config.LogDirectory)
	if err == nil {
		config.LogDirectory = expanded
	}
	expanded, err = fileutil.ExpandTilde(config.CacheDirectory)
	if err == nil {
		config.CacheDirectory = expanded
	}
}
