package bagit

import (
	"fmt"
	"strconv"
	"strings"
)

// Oxum is the Payload-Oxum of a bag: total payload bytes and number
// of payload files, written as "<bytes>.<files>".
type Oxum struct {
	Bytes int64
	Files int64
}

func (oxum Oxum) String() string {
	return fmt.Sprintf("%d.%d", oxum.Bytes, oxum.Files)
}

// Add counts one more file of size bytes.
func (oxum *Oxum) Add(size int64) {
	oxum.Bytes += size
	oxum.Files++
}

// ParseOxum parses "<bytes>.<files>".
func ParseOxum(value string) (Oxum, error) {
	parts := strings.Split(strings.TrimSpace(value), ".")
	if len(parts) != 2 {
		return Oxum{}, fmt.Errorf("Payload-Oxum '%s' is not <bytes>.<files>", value)
	}
	byteCount, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || byteCount < 0 {
		return Oxum{}, fmt.Errorf("Payload-Oxum '%s' has a bad byte count", value)
	}
	fileCount, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || fileCount < 0 {
		return Oxum{}, fmt.Errorf("Payload-Oxum '%s' has a bad file count", value)
	}
	return Oxum{Bytes: byteCount, Files: fileCount}, nil
}
