package manifest

import (
	"bufio"
	"github.com/APTrust/bagr/bagerr"
	"github.com/APTrust/bagr/constants"
	"github.com/APTrust/bagr/digest"
	"io"
	"strings"
)

// Parse reads a manifest. Each non-blank line must hold a hex digest,
// whitespace, and an encoded path. Any amount of space or tab between
// the two fields is accepted; a trailing CR (CRLF line endings) is
// dropped. Errors carry the manifest's file name and the line number.
func Parse(r io.Reader, scope constants.Scope, alg digest.Algorithm) (*Manifest, error) {
	manifest := New(scope, alg)
	name := manifest.FileName()
	reader := bufio.NewReader(r)
	lineNum := 0
	for {
		text, readErr := reader.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return nil, bagerr.IO("read", name, readErr)
		}
		if text == "" && readErr == io.EOF {
			break
		}
		lineNum++
		text = strings.TrimSuffix(text, "\n")
		text = strings.TrimSuffix(text, "\r")
		if strings.TrimSpace(text) != "" {
			if err := manifest.parseLine(text, name, lineNum); err != nil {
				return nil, err
			}
		}
		if readErr == io.EOF {
			break
		}
	}
	return manifest, nil
}

func (manifest *Manifest) parseLine(text, name string, lineNum int) error {
	sep := strings.IndexAny(text, " \t")
	if sep <= 0 {
		return bagerr.Line(bagerr.MalformedManifestLine, name, lineNum,
			"expected '<digest> <path>'")
	}
	hexDigest := text[:sep]
	encoded := strings.TrimLeft(text[sep:], " \t")
	if encoded == "" {
		return bagerr.Line(bagerr.MalformedManifestLine, name, lineNum,
			"line has a digest but no path")
	}
	if err := checkDigest(manifest.Algorithm, hexDigest); err != nil {
		return bagerr.Line(bagerr.MalformedManifestLine, name, lineNum, "%s", err.Error())
	}
	path, err := DecodePath(encoded)
	if err != nil {
		return bagerr.Line(bagerr.MalformedManifestLine, name, lineNum, "%s", err.Error())
	}
	if err := CheckPath(manifest.Scope, path); err != nil {
		e := err.(*bagerr.Error)
		e.Line = lineNum
		e.Message = name + ": " + e.Message
		return e
	}
	if manifest.Has(path) {
		return bagerr.Line(bagerr.DuplicateManifestEntry, name, lineNum,
			"%q is listed more than once", path)
	}
	return manifest.Add(path, hexDigest)
}
