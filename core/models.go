package core

//go:generate go run ../cmd/musgen

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is derived from content via BLAKE2b hashing so that identical
// (source, text) pairs always map to the same chunk.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// ChunkID derives the ID for a chunk from its source and text.
// Source participates in the hash so the same paragraph appearing in two
// documents yields two distinct chunks.
func ChunkID(source, text string) ID {
	return IDFromContent(source + "\x00" + text)
}

// SearchType identifies which retrieval signal produced a result.
type SearchType int

const (
	// SearchTypeLexical means the result came from keyword (BM25) search only.
	SearchTypeLexical SearchType = iota + 1
	// SearchTypeSemantic means the result came from vector similarity only.
	SearchTypeSemantic
	// SearchTypeHybrid means both signals agreed on the result.
	SearchTypeHybrid
)

// String returns the wire name of the search type.
func (t SearchType) String() string {
	switch t {
	case SearchTypeLexical:
		return "lexical"
	case SearchTypeSemantic:
		return "semantic"
	case SearchTypeHybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

// MetadataProviderKey is the chunk metadata key recording which embedding
// provider produced the chunk's vector.
const MetadataProviderKey = "provider"

// Chunk is an immutable unit of retrievable text plus its embedding.
// The embedding dimension is fixed at creation (len(Vector)) and a chunk
// is only ever compared against query vectors of the same dimension.
type Chunk struct {
	Id         ID
	Text       string
	Vector     []float32 // Embedding vector (populated during ingestion)
	Source     string    // Logical document identifier
	Metadata   map[string]string
	InsertedAt time.Time // When the chunk was first stored
	UpdatedAt  time.Time // When the chunk was last updated
}

// Dimension returns the embedding dimension of the chunk.
// Zero means the chunk has not been embedded.
func (c *Chunk) Dimension() int {
	return len(c.Vector)
}

// SearchResult is a retrieved chunk with its relevance score.
// Score is normalized to [0,1] after fusion. CrossScore is only
// meaningful when Reranked is true.
type SearchResult struct {
	Chunk      *Chunk
	Score      float32
	SearchType SearchType
	MultiMatch bool    // Found by more than one query variant
	Reranked   bool    // Passed through the cross-encoder
	CrossScore float32 // Pairwise relevance score from the re-ranker
}
