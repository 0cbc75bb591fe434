package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/poiesic/retrievit/core"
)

// Key prefixes for different data types
const (
	chunkRecordPrefix = "chkrec"
	chunkSourcePrefix = "chksrc"
)

// makeChunkKey generates a key for a chunk by ID.
func makeChunkKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", chunkRecordPrefix, id))
}

// makeChunkSourceKey generates a composite key for the source index.
// Format: prefix:source\x00id
// The NUL byte terminates the source so "a" never prefixes "ab".
func makeChunkSourceKey(source string, id core.ID) []byte {
	prefix := chunkSourcePrefix + ":"
	totalSize := len(prefix) + len(source) + 1 + 8
	buf := make([]byte, totalSize)
	offset := copy(buf, prefix)
	offset += copy(buf[offset:], source)
	buf[offset] = 0
	offset++
	// Write in BigEndian order so lexicographic sort works correctly
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makePartialChunkSourceKey generates the iteration prefix for one source.
func makePartialChunkSourceKey(source string) []byte {
	prefix := chunkSourcePrefix + ":"
	buf := make([]byte, len(prefix)+len(source)+1)
	offset := copy(buf, prefix)
	offset += copy(buf[offset:], source)
	buf[offset] = 0
	return buf
}
