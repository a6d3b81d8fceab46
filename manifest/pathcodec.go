package manifest

import (
	"github.com/APTrust/bagr/bagerr"
	"github.com/APTrust/bagr/constants"
	"path/filepath"
	"strings"
)

// EncodePath converts a bag-relative file path into the form written in
// a manifest line. OS separators become "/", CR becomes %0D, LF becomes
// %0A, and a "%" that would otherwise read as one of our escapes (%0D,
// %0A or %25, in any case) becomes %25.
func EncodePath(path string) string {
	path = filepath.ToSlash(path)
	var b strings.Builder
	b.Grow(len(path))
	for i := 0; i < len(path); i++ {
		switch c := path[i]; c {
		case '\r':
			b.WriteString("%0D")
		case '\n':
			b.WriteString("%0A")
		case '%':
			if escapeAt(path, i) != 0 {
				b.WriteString("%25")
			} else {
				b.WriteByte(c)
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// DecodePath reverses EncodePath. Text holding a raw CR or LF was not
// produced by an encoder and is rejected as MalformedManifestLine.
func DecodePath(text string) (string, error) {
	if strings.ContainsAny(text, "\r\n") {
		return "", bagerr.New(bagerr.MalformedManifestLine, "", "path contains a raw line break")
	}
	if !strings.Contains(text, "%") {
		return text, nil
	}
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(text); i++ {
		if text[i] == '%' {
			if c := escapeAt(text, i); c != 0 {
				b.WriteByte(c)
				i += 2
				continue
			}
		}
		b.WriteByte(text[i])
	}
	return b.String(), nil
}

// escapeAt returns the byte an escape sequence starting at s[i] stands
// for, or zero if s[i:] does not start with one.
func escapeAt(s string, i int) byte {
	if i+3 > len(s) {
		return 0
	}
	switch strings.ToUpper(s[i+1 : i+3]) {
	case "0D":
		return '\r'
	case "0A":
		return '\n'
	case "25":
		return '%'
	}
	return 0
}

// CheckPath makes sure a decoded manifest path stays inside the part of
// the bag that scope covers. Payload paths must be under data/, tag
// paths must not be. Absolute paths and "." or ".." segments are
// rejected with PathTraversal.
func CheckPath(scope constants.Scope, path string) error {
	if path == "" {
		return bagerr.New(bagerr.PathTraversal, path, "empty path")
	}
	if strings.HasPrefix(path, "/") || filepath.IsAbs(path) || hasDriveLetter(path) {
		return bagerr.New(bagerr.PathTraversal, path, "absolute path")
	}
	for _, segment := range strings.Split(path, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return bagerr.New(bagerr.PathTraversal, path, "illegal path segment %q", segment)
		}
	}
	inData := strings.HasPrefix(path, constants.DataDir+"/")
	if scope == constants.ScopePayload && !inData {
		return bagerr.New(bagerr.PathTraversal, path, "payload path outside %s/", constants.DataDir)
	}
	if scope == constants.ScopeTag && (inData || path == constants.DataDir) {
		return bagerr.New(bagerr.PathTraversal, path, "tag path inside %s/", constants.DataDir)
	}
	return nil
}

func hasDriveLetter(path string) bool {
	return len(path) >= 2 && path[1] == ':' &&
		((path[0] >= 'a' && path[0] <= 'z') || (path[0] >= 'A' && path[0] <= 'Z'))
}
