package util

import (
	"regexp"
	"strings"
)

var reURL *regexp.Regexp = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*://[^\s/?#]+[^\s]*$`)

// Returns true if url looks like an absolute URL with a scheme and a
// host, e.g. https://example.com/bag/data/file.txt
func LooksLikeURL(url string) bool {
	return reURL.MatchString(url)
}

// Cleans a string we might find on the command line or in a config
// file, trimming leading and trailing spaces, single quotes and double
// quotes. Note that leading and trailing spaces inside the quotes are
// not trimmed.
func CleanString(str string) string {
	cleanStr := strings.TrimSpace(str)
	// Strip leading and traling quotes, but only if string has matching
	// quotes at both ends.
	if len(cleanStr) > 1 &&
		(strings.HasPrefix(cleanStr, "'") && strings.HasSuffix(cleanStr, "'") ||
			strings.HasPrefix(cleanStr, "\"") && strings.HasSuffix(cleanStr, "\"")) {
		return cleanStr[1 : len(cleanStr)-1]
	}
	return cleanStr
}

// Returns true if the list of strings contains item.
func StringListContains(list []string, item string) bool {
	for i := range list {
		if list[i] == item {
			return true
		}
	}
	return false
}
