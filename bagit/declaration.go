package bagit

import (
	"github.com/APTrust/bagr/bagerr"
	"github.com/APTrust/bagr/constants"
	"github.com/APTrust/bagr/tagfile"
	"github.com/APTrust/bagr/util"
	"github.com/APTrust/bagr/util/fileutil"
	"github.com/pkg/errors"
	"os"
	"path/filepath"
	"strings"
)

// Declaration is the content of bagit.txt.
type Declaration struct {
	Version  string
	Encoding string
}

// NewDeclaration returns the declaration written into new bags.
func NewDeclaration() Declaration {
	return Declaration{
		Version:  constants.DefaultBagItVersion,
		Encoding: constants.UTF8,
	}
}

// TagList returns the declaration as tags, version first.
func (declaration Declaration) TagList() *tagfile.TagList {
	list := tagfile.NewTagList(constants.LabelBagItVersion, constants.LabelFileEncoding)
	list.Add(constants.LabelBagItVersion, declaration.Version)
	list.Add(constants.LabelFileEncoding, declaration.Encoding)
	return list
}

// Bytes returns the bagit.txt file content.
func (declaration Declaration) Bytes() []byte {
	return declaration.TagList().Bytes()
}

// ParseDeclaration checks the tags read from bagit.txt. Both tags must
// be present exactly once, the version must be one we know, and the
// encoding must be UTF-8.
func ParseDeclaration(list *tagfile.TagList) (Declaration, error) {
	versions := list.GetAll(constants.LabelBagItVersion)
	encodings := list.GetAll(constants.LabelFileEncoding)
	if len(versions) != 1 {
		return Declaration{}, bagerr.New(bagerr.InvalidDeclaration, constants.BagItTxt,
			"expected one %s tag, found %d", constants.LabelBagItVersion, len(versions))
	}
	if len(encodings) != 1 {
		return Declaration{}, bagerr.New(bagerr.InvalidDeclaration, constants.BagItTxt,
			"expected one %s tag, found %d", constants.LabelFileEncoding, len(encodings))
	}
	declaration := Declaration{
		Version:  strings.TrimSpace(versions[0]),
		Encoding: strings.TrimSpace(encodings[0]),
	}
	if !util.StringListContains(constants.BagItVersions, declaration.Version) {
		return Declaration{}, bagerr.New(bagerr.InvalidDeclaration, constants.BagItTxt,
			"unsupported BagIt version '%s'", declaration.Version)
	}
	if !strings.EqualFold(declaration.Encoding, constants.UTF8) {
		return Declaration{}, bagerr.New(bagerr.InvalidDeclaration, constants.BagItTxt,
			"unsupported tag file encoding '%s'", declaration.Encoding)
	}
	return declaration, nil
}

// ReadDeclaration reads and checks bagit.txt. A missing or unreadable
// declaration is InvalidDeclaration.
func ReadDeclaration(fs fileutil.FileSystem, bagDir string) (Declaration, error) {
	path := filepath.Join(bagDir, constants.BagItTxt)
	list, err := tagfile.ParseFile(fs, path, constants.BagItTxt)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Declaration{}, bagerr.New(bagerr.InvalidDeclaration, constants.BagItTxt, "file not found")
		}
		if bagerr.Is(err, bagerr.InvalidTagFile) {
			return Declaration{}, &bagerr.Error{
				Kind: bagerr.InvalidDeclaration,
				Path: constants.BagItTxt,
				Err:  err,
			}
		}
		return Declaration{}, err
	}
	return ParseDeclaration(list)
}
