package bagit

import (
	"fmt"
	"github.com/APTrust/bagr/bagerr"
	"github.com/APTrust/bagr/constants"
	"github.com/APTrust/bagr/tagfile"
	"github.com/APTrust/bagr/util/fileutil"
	"github.com/pkg/errors"
	"os"
	"path/filepath"
)

// BagInfo is the content of bag-info.txt. The reserved labels that
// may appear only once are replaced rather than repeated when added.
type BagInfo struct {
	*tagfile.TagList
}

// NewBagInfo returns an empty BagInfo.
func NewBagInfo() *BagInfo {
	return &BagInfo{tagfile.NewTagList(constants.NonRepeatableLabels...)}
}

// ReadBagInfo reads bag-info.txt. If the bag has none, it returns
// nil and no error.
func ReadBagInfo(fs fileutil.FileSystem, bagDir string) (*BagInfo, error) {
	path := filepath.Join(bagDir, constants.BagInfoTxt)
	list, err := tagfile.ParseFile(fs, path, constants.BagInfoTxt, constants.NonRepeatableLabels...)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return &BagInfo{list}, nil
}

// PayloadOxum returns the parsed Payload-Oxum. The bool is false if
// the tag is absent.
func (info *BagInfo) PayloadOxum() (Oxum, bool, error) {
	value, ok := info.Get(constants.LabelPayloadOxum)
	if !ok {
		return Oxum{}, false, nil
	}
	oxum, err := ParseOxum(value)
	if err != nil {
		return Oxum{}, true, bagerr.New(bagerr.InvalidTagFile, constants.BagInfoTxt, "%s", err.Error())
	}
	return oxum, true, nil
}

// SetPayload records the Payload-Oxum and Bag-Size for a payload.
func (info *BagInfo) SetPayload(oxum Oxum) {
	info.Set(constants.LabelPayloadOxum, oxum.String())
	info.Set(constants.LabelBagSize, humansize(oxum.Bytes))
}

// UpdatePayload replaces Payload-Oxum, and Bag-Size if the bag
// already has one.
func (info *BagInfo) UpdatePayload(oxum Oxum) {
	info.Set(constants.LabelPayloadOxum, oxum.String())
	if _, ok := info.Get(constants.LabelBagSize); ok {
		info.Set(constants.LabelBagSize, humansize(oxum.Bytes))
	}
}

// Metric constants for humansize. Lowercased so as to be unexported.
const (
	kb int64 = 1000
	mb       = 1000 * kb
	gb       = 1000 * mb
	tb       = 1000 * gb
)

func humansize(size int64) string {
	var units string
	switch {
	case size < kb:
		units = "Bytes"
	case size < mb:
		size /= kb
		units = "KB"
	case size < gb:
		size /= mb
		units = "MB"
	case size < tb:
		size /= gb
		units = "GB"
	default:
		size /= tb
		units = "TB"
	}
	return fmt.Sprintf("%d %s", size, units)
}
