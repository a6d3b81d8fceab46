package bagit

import (
	"fmt"
	"github.com/APTrust/bagr/constants"
	"sort"
)

// FindingKind names a way in which a bag is not what it says it is.
type FindingKind int

const (
	MissingFile FindingKind = iota + 1
	UndeclaredFile
	ChecksumMismatch
	OxumMismatch
	InconsistentManifestScope
	ManifestError
	NoPayloadManifest
	InvalidBagInfo
	InvalidFetchFile
)

var findingNames = map[FindingKind]string{
	MissingFile:               "MissingFile",
	UndeclaredFile:            "UndeclaredFile",
	ChecksumMismatch:          "ChecksumMismatch",
	OxumMismatch:              "OxumMismatch",
	InconsistentManifestScope: "InconsistentManifestScope",
	ManifestError:             "ManifestError",
	NoPayloadManifest:         "NoPayloadManifest",
	InvalidBagInfo:            "InvalidBagInfo",
	InvalidFetchFile:          "InvalidFetchFile",
}

func (kind FindingKind) String() string {
	if name, ok := findingNames[kind]; ok {
		return name
	}
	return fmt.Sprintf("FindingKind(%d)", int(kind))
}

// Finding is one discrepancy found by the Validator.
type Finding struct {
	Kind  FindingKind
	Scope constants.Scope
	// Path is the bag-relative file the finding is about. For
	// ManifestError it is the manifest file.
	Path      string
	Algorithm string
	Expected  string
	Actual    string
	Err       error
}

func (finding Finding) String() string {
	msg := finding.Kind.String()
	if finding.Path != "" {
		msg += fmt.Sprintf(" %q", finding.Path)
	}
	if finding.Algorithm != "" {
		msg += fmt.Sprintf(" [%s]", finding.Algorithm)
	}
	if finding.Expected != "" || finding.Actual != "" {
		msg += fmt.Sprintf(": expected %s, got %s", finding.Expected, finding.Actual)
	}
	if finding.Err != nil {
		msg += ": " + finding.Err.Error()
	}
	return msg
}

type WarningKind int

const (
	SkippedSymlink WarningKind = iota + 1
	SkippedIrregular
	DeferredFetch
	IncompleteCommit
	CacheUnavailable
)

var warningNames = map[WarningKind]string{
	SkippedSymlink:   "SkippedSymlink",
	SkippedIrregular: "SkippedIrregular",
	DeferredFetch:    "DeferredFetch",
	IncompleteCommit: "IncompleteCommit",
	CacheUnavailable: "CacheUnavailable",
}

func (kind WarningKind) String() string {
	if name, ok := warningNames[kind]; ok {
		return name
	}
	return fmt.Sprintf("WarningKind(%d)", int(kind))
}

// Warning is something worth telling the user that does not make a
// bag invalid.
type Warning struct {
	Kind    WarningKind
	Path    string
	Message string
}

func (warning Warning) String() string {
	msg := warning.Kind.String()
	if warning.Path != "" {
		msg += fmt.Sprintf(" %q", warning.Path)
	}
	if warning.Message != "" {
		msg += ": " + warning.Message
	}
	return msg
}

// Report is the result of validating a bag. The bag is valid if and
// only if Findings is empty.
type Report struct {
	BagDir string
	Phase  Phase
	// Algorithms lists the suffixes of the algorithms that were checked.
	Algorithms []string
	// Oxum is what the payload on disk adds up to, deferred fetch
	// entries included.
	Oxum     Oxum
	Findings []Finding
	Warnings []Warning
}

// Valid is true when there are no findings.
func (report *Report) Valid() bool {
	return len(report.Findings) == 0
}

// Count returns the number of findings of kind.
func (report *Report) Count(kind FindingKind) int {
	return len(report.Filter(kind))
}

// Filter returns the findings of kind.
func (report *Report) Filter(kind FindingKind) []Finding {
	found := make([]Finding, 0)
	for _, finding := range report.Findings {
		if finding.Kind == kind {
			found = append(found, finding)
		}
	}
	return found
}

func (report *Report) add(finding Finding) {
	report.Findings = append(report.Findings, finding)
}

func (report *Report) warn(warning Warning) {
	report.Warnings = append(report.Warnings, warning)
}

// sort orders findings by kind, path and algorithm, and warnings by
// kind and path, so that two runs over the same bag print the same
// report.
func (report *Report) sort() {
	sort.SliceStable(report.Findings, func(i, j int) bool {
		a, b := report.Findings[i], report.Findings[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Algorithm < b.Algorithm
	})
	sort.SliceStable(report.Warnings, func(i, j int) bool {
		a, b := report.Warnings[i], report.Warnings[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Path < b.Path
	})
}
