// Common vars and constants, shared by many parts of the bagr library.
package constants

import (
	"regexp"
)

// BagIt versions this engine knows how to read. New bags are always
// written with DefaultBagItVersion.
const (
	BagItVersion097     = "0.97"
	BagItVersion10      = "1.0"
	DefaultBagItVersion = BagItVersion10
)

var BagItVersions []string = []string{
	BagItVersion097,
	BagItVersion10,
}

// UTF8 is the only tag file character encoding we read or write.
const UTF8 = "UTF-8"

// File and directory names at the top level of a bag.
const (
	BagItTxt              = "bagit.txt"
	BagInfoTxt            = "bag-info.txt"
	FetchTxt              = "fetch.txt"
	DataDir               = "data"
	PayloadManifestPrefix = "manifest"
	TagManifestPrefix     = "tagmanifest"
)

// Labels used in bagit.txt.
const (
	LabelBagItVersion = "BagIt-Version"
	LabelFileEncoding = "Tag-File-Character-Encoding"
)

// Reserved labels used in bag-info.txt.
const (
	LabelBaggingDate              = "Bagging-Date"
	LabelBagCount                 = "Bag-Count"
	LabelBagGroupIdentifier       = "Bag-Group-Identifier"
	LabelBagItProfileIdentifier   = "BagIt-Profile-Identifier"
	LabelBagSize                  = "Bag-Size"
	LabelBagSoftwareAgent         = "Bag-Software-Agent"
	LabelContactEmail             = "Contact-Email"
	LabelContactName              = "Contact-Name"
	LabelContactPhone             = "Contact-Phone"
	LabelExternalDescription      = "External-Description"
	LabelExternalIdentifier       = "External-Identifier"
	LabelInternalSenderDesc       = "Internal-Sender-Description"
	LabelInternalSenderIdentifier = "Internal-Sender-Identifier"
	LabelOrganizationAddress      = "Organization-Address"
	LabelPayloadOxum              = "Payload-Oxum"
	LabelSourceOrganization       = "Source-Organization"
)

// NonRepeatableLabels lists the bag-info.txt labels that may appear at
// most once. Setting one of these replaces any existing value.
var NonRepeatableLabels []string = []string{
	LabelBaggingDate,
	LabelBagCount,
	LabelBagGroupIdentifier,
	LabelBagSize,
	LabelPayloadOxum,
	LabelBagSoftwareAgent,
}

// Scope says which part of a bag a manifest or a directory walk covers.
type Scope string

const (
	// ScopePayload covers everything under data/.
	ScopePayload Scope = "payload"
	// ScopeTag covers everything at the bag root except data/.
	ScopeTag Scope = "tag"
)

// ManifestPattern matches payload manifest file names and captures
// the algorithm suffix.
var ManifestPattern = regexp.MustCompile("^manifest-([A-Za-z0-9]+)\\.txt$")

// TagManifestPattern matches tag manifest file names and captures
// the algorithm suffix.
var TagManifestPattern = regexp.MustCompile("^tagmanifest-([A-Za-z0-9]+)\\.txt$")

// TempFilePattern matches the temp files we stage control files in
// before renaming them into place.
var TempFilePattern = regexp.MustCompile("^\\..+\\.[0-9a-f\\-]{36}\\.tmp$")

// Update modes
const (
	UpdateFast = "fast"
	UpdateFull = "full-rescan"
)

var UpdateModes []string = []string{
	UpdateFast,
	UpdateFull,
}

// DefaultAlgorithms are used when the caller does not ask for any
// particular set of checksum algorithms.
var DefaultAlgorithms = []string{"md5", "sha256"}

// CacheSuffix is appended to the bag directory path to name the fixity
// cache that sits next to the bag.
const CacheSuffix = ".bagdb"

// SoftwareAgent is written to Bag-Software-Agent in new bags.
const SoftwareAgent = "bagr v0.1.0 <https://github.com/APTrust/bagr>"
