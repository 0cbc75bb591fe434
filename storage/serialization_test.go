package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/retrievit/core"
)

func TestMarshalUnmarshalID(t *testing.T) {
	tests := []struct {
		name string
		id   core.ID
	}{
		{"zero ID", core.ID(0)},
		{"small ID", core.ID(42)},
		{"large ID", core.ID(18446744073709551615)}, // max uint64
		{"content-based ID", core.IDFromContent("test content")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalID(tt.id)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalID(data)
			require.NoError(t, err)
			assert.Equal(t, tt.id, decoded)
		})
	}
}

func TestUnmarshalID_Invalid(t *testing.T) {
	_, err := UnmarshalID([]byte{})
	assert.Error(t, err)
}

func TestMarshalUnmarshalChunk(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	chunk := &core.Chunk{
		Id:     core.ChunkID("tickets/1042.txt", "kurye teslimat gecikti"),
		Text:   "kurye teslimat gecikti",
		Vector: []float32{0.1, -0.2, 0.3, 0.4},
		Source: "tickets/1042.txt",
		Metadata: map[string]string{
			core.MetadataProviderKey: "gemini",
			"lang":                   "tr",
		},
		InsertedAt: now,
		UpdatedAt:  now,
	}

	data := MarshalChunk(chunk)
	require.NotEmpty(t, data)

	decoded, err := UnmarshalChunk(data)
	require.NoError(t, err)
	assert.Equal(t, chunk, decoded)
	assert.Equal(t, 4, decoded.Dimension())
}

func TestUnmarshalChunk_Truncated(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	chunk := &core.Chunk{
		Id:         core.ID(7),
		Text:       "text",
		Vector:     []float32{1, 2, 3},
		Source:     "src",
		InsertedAt: now,
		UpdatedAt:  now,
	}

	data := MarshalChunk(chunk)
	_, err := UnmarshalChunk(data[:len(data)/2])
	assert.Error(t, err)
}
