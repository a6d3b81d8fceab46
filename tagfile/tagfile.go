// Package tagfile reads and writes BagIt tag files: bagit.txt,
// bag-info.txt and any other file made of "Label: value" lines.
package tagfile

import (
	"bufio"
	"bytes"
	"fmt"
	"github.com/APTrust/bagr/bagerr"
	"github.com/APTrust/bagr/util/fileutil"
	"io"
	"strings"
)

// Tag is one label and value.
type Tag struct {
	Label string
	Value string
}

// NewTag returns a validated tag.
func NewTag(label, value string) (Tag, error) {
	if err := ValidateLabel(label); err != nil {
		return Tag{}, err
	}
	if err := ValidateValue(label, value); err != nil {
		return Tag{}, err
	}
	return Tag{Label: label, Value: value}, nil
}

// ValidateLabel rejects labels that could not be written to a tag
// file and read back as the same label.
func ValidateLabel(label string) error {
	if label == "" {
		return bagerr.New(bagerr.InvalidTagFile, "", "label must not be empty")
	}
	if isSpaceOrTab(label[0]) || isSpaceOrTab(label[len(label)-1]) {
		return bagerr.New(bagerr.InvalidTagFile, "", "label '%s' must not start or end with whitespace", label)
	}
	if strings.ContainsAny(label, "\r\n:") {
		return bagerr.New(bagerr.InvalidTagFile, "", "label %q must not contain CR, LF or ':'", label)
	}
	return nil
}

// ValidateValue rejects values holding line breaks.
func ValidateValue(label, value string) error {
	if strings.ContainsAny(value, "\r\n") {
		return bagerr.New(bagerr.InvalidTagFile, "", "value of '%s' must not contain CR or LF", label)
	}
	return nil
}

func isSpaceOrTab(c byte) bool {
	return c == ' ' || c == '\t'
}

// TagList is an ordered list of tags. Labels are matched without
// regard to case. Labels named as non-repeatable are replaced, not
// duplicated, when added.
type TagList struct {
	tags          []Tag
	nonRepeatable map[string]bool
}

// NewTagList returns an empty list. Any labels passed in may appear
// only once.
func NewTagList(nonRepeatable ...string) *TagList {
	list := &TagList{
		tags:          make([]Tag, 0),
		nonRepeatable: make(map[string]bool),
	}
	for _, label := range nonRepeatable {
		list.nonRepeatable[strings.ToLower(label)] = true
	}
	return list
}

// Add appends a tag, or replaces the existing value if the label
// is non-repeatable.
func (list *TagList) Add(label, value string) error {
	if list.nonRepeatable[strings.ToLower(label)] {
		return list.Set(label, value)
	}
	tag, err := NewTag(label, value)
	if err != nil {
		return err
	}
	list.tags = append(list.tags, tag)
	return nil
}

// Set gives label exactly one value. The tag keeps the position of
// the first existing tag with that label, or goes at the end.
func (list *TagList) Set(label, value string) error {
	tag, err := NewTag(label, value)
	if err != nil {
		return err
	}
	kept := list.tags[:0]
	placed := false
	for _, existing := range list.tags {
		if !strings.EqualFold(existing.Label, label) {
			kept = append(kept, existing)
		} else if !placed {
			kept = append(kept, tag)
			placed = true
		}
	}
	list.tags = kept
	if !placed {
		list.tags = append(list.tags, tag)
	}
	return nil
}

// Get returns the value of the first tag with label.
func (list *TagList) Get(label string) (string, bool) {
	for _, tag := range list.tags {
		if strings.EqualFold(tag.Label, label) {
			return tag.Value, true
		}
	}
	return "", false
}

// GetAll returns every value of label, in order.
func (list *TagList) GetAll(label string) []string {
	values := make([]string, 0)
	for _, tag := range list.tags {
		if strings.EqualFold(tag.Label, label) {
			values = append(values, tag.Value)
		}
	}
	return values
}

// Remove deletes every tag with label and returns how many there were.
func (list *TagList) Remove(label string) int {
	kept := list.tags[:0]
	for _, tag := range list.tags {
		if !strings.EqualFold(tag.Label, label) {
			kept = append(kept, tag)
		}
	}
	removed := len(list.tags) - len(kept)
	list.tags = kept
	return removed
}

// Tags returns a copy of the tags in order.
func (list *TagList) Tags() []Tag {
	tags := make([]Tag, len(list.tags))
	copy(tags, list.tags)
	return tags
}

func (list *TagList) Len() int {
	return len(list.tags)
}

// WriteTo writes one "Label: value" line per tag.
func (list *TagList) WriteTo(w io.Writer) (int64, error) {
	var total int64
	for _, tag := range list.tags {
		n, err := fmt.Fprintf(w, "%s: %s\n", tag.Label, tag.Value)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Bytes returns the serialized tag file.
func (list *TagList) Bytes() []byte {
	var buf bytes.Buffer
	list.WriteTo(&buf)
	return buf.Bytes()
}

// Parse reads a tag file. name is used in error messages. Lines that
// start with a space or tab continue the value of the previous tag
// and are joined to it with a single space. Blank lines are skipped.
// Tags are appended exactly as found; non-repeatable labels are
// only enforced by later calls to Add.
func Parse(r io.Reader, name string, nonRepeatable ...string) (*TagList, error) {
	list := NewTagList(nonRepeatable...)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	tagLine := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if isSpaceOrTab(line[0]) {
			if len(list.tags) == 0 {
				return nil, bagerr.Line(bagerr.InvalidTagFile, name, lineNum,
					"continuation line with no tag before it")
			}
			last := &list.tags[len(list.tags)-1]
			last.Value = last.Value + " " + strings.TrimSpace(line)
			continue
		}
		colon := strings.Index(line, ":")
		if colon < 0 {
			return nil, bagerr.Line(bagerr.InvalidTagFile, name, lineNum,
				"missing ':' between label and value")
		}
		label := line[:colon]
		value := strings.TrimLeft(line[colon+1:], " \t")
		tag, err := NewTag(label, value)
		if err != nil {
			e := err.(*bagerr.Error)
			e.Path = name
			e.Line = lineNum
			return nil, e
		}
		list.tags = append(list.tags, tag)
		tagLine = lineNum
	}
	if err := scanner.Err(); err != nil {
		return nil, bagerr.Wrap(bagerr.InvalidTagFile, name, fmt.Errorf("Error after line %d: %v", tagLine, err))
	}
	return list, nil
}

// ParseFile opens path through fs and parses it.
func ParseFile(fs fileutil.FileSystem, path, name string, nonRepeatable ...string) (*TagList, error) {
	file, err := fs.Open(path)
	if err != nil {
		return nil, bagerr.IO("open", path, err)
	}
	defer file.Close()
	return Parse(file, name, nonRepeatable...)
}
