package marc

import "fmt"

const (
	directoryEntrySize = 12
	entryTagWidth      = 3
	entryLengthWidth   = 4
	entryOffsetWidth   = 5
)

// DirectoryEntry pairs a tag with its field content.
type DirectoryEntry struct {
	Tag     Tag
	Content Content
}

// NewEntry builds an entry from in-memory text.
func NewEntry(tag Tag, text string) DirectoryEntry {
	return DirectoryEntry{Tag: tag, Content: NewContent(text)}
}

// DataLength is the encoded length of the field including its terminator.
func (e DirectoryEntry) DataLength() int {
	return e.Content.Len() + 1
}

// String renders the entry as one MRK line.
func (e DirectoryEntry) String() string {
	return fmt.Sprintf("=%s  %s", e.Tag, e.Content.MRK(e.Tag))
}

// appendDirectoryEntry writes tag(3) length(4) offset(5).
func appendDirectoryEntry(dir []byte, e DirectoryEntry, offset int) []byte {
	return fmt.Appendf(dir, "%s%0*d%0*d", e.Tag, entryLengthWidth, e.DataLength(), entryOffsetWidth, offset)
}
