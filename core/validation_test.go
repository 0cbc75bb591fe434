package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateChunk(t *testing.T) {
	t.Run("valid chunk", func(t *testing.T) {
		chunk := &Chunk{
			Text:       "some content",
			Source:     "doc.txt",
			Metadata:   map[string]string{"category": "manual"},
			InsertedAt: time.Now().UTC(),
		}
		assert.NoError(t, ValidateChunk(chunk))
	})

	t.Run("valid without vector or id", func(t *testing.T) {
		chunk := &Chunk{Text: "content", Source: "doc.txt"}
		assert.NoError(t, ValidateChunk(chunk))
	})

	t.Run("nil chunk", func(t *testing.T) {
		err := ValidateChunk(nil)
		assert.ErrorIs(t, err, ErrInvalidChunk)
	})

	t.Run("empty text", func(t *testing.T) {
		err := ValidateChunk(&Chunk{Source: "doc.txt"})
		assert.ErrorIs(t, err, ErrEmptyText)
	})

	t.Run("empty source", func(t *testing.T) {
		err := ValidateChunk(&Chunk{Text: "content"})
		assert.ErrorIs(t, err, ErrEmptySource)
	})

	t.Run("empty metadata key", func(t *testing.T) {
		chunk := &Chunk{
			Text:     "content",
			Source:   "doc.txt",
			Metadata: map[string]string{"": "value"},
		}
		err := ValidateChunk(chunk)
		assert.ErrorIs(t, err, ErrInvalidMetadata)
	})

	t.Run("future timestamp", func(t *testing.T) {
		chunk := &Chunk{
			Text:       "content",
			Source:     "doc.txt",
			InsertedAt: time.Now().Add(time.Hour),
		}
		err := ValidateChunk(chunk)
		assert.ErrorIs(t, err, ErrInvalidTimestamp)
	})
}
