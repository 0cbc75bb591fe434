// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package hash provides a deterministic, dependency-free embedding provider
// derived from a blake2b digest of the text.
//
// Hash vectors carry no semantic signal; two texts are "similar" only when
// identical. The provider exists as the last rung of the fallback ladder:
// it never fails, so ingestion keeps working when every real provider is
// down, and the chunks it produces remain exactly retrievable.
package hash

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/go-crypt/x/blake2b"
)

// DefaultDimension matches the default remote embedding width so that
// hash-embedded chunks share a dimension bucket with real ones.
const DefaultDimension = 768

// ProviderName identifies hash embeddings in chunk metadata. Chunks carrying
// it are candidates for re-embedding once a real provider recovers.
const ProviderName = "hash"

// Embedder derives fixed-dimension unit vectors from text digests.
// The zero-value is not usable; construct with New.
type Embedder struct {
	dim int
}

// New creates a hash embedder producing vectors of the given dimension.
// A non-positive dimension selects DefaultDimension.
func New(dim int) *Embedder {
	if dim < 1 {
		dim = DefaultDimension
	}
	return &Embedder{dim: dim}
}

// Name returns the provider identifier.
func (e *Embedder) Name() string { return ProviderName }

// Dimension returns the configured vector width.
func (e *Embedder) Dimension() int { return e.dim }

// EmbedText derives a deterministic unit vector from the text digest.
// It never returns an error.
func (e *Embedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	return e.derive(text), nil
}

// EmbedTexts derives one vector per text. It never returns an error.
func (e *Embedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = e.derive(text)
	}
	return vectors, nil
}

// derive expands the text digest into dim floats in [-1, 1] and normalizes
// to unit length so cosine similarity against the result is well defined.
func (e *Embedder) derive(text string) []float32 {
	seed := blake2b.Sum256([]byte(text))

	vector := make([]float32, e.dim)
	var block [32]byte
	var counter [8]byte
	for i := 0; i < e.dim; i++ {
		if i%8 == 0 {
			binary.BigEndian.PutUint64(counter[:], uint64(i/8))
			block = blake2b.Sum256(append(seed[:], counter[:]...))
		}
		bits := binary.BigEndian.Uint32(block[(i%8)*4:])
		vector[i] = float32(bits)/float32(math.MaxUint32)*2 - 1
	}

	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares > 0 {
		norm := float32(1 / math.Sqrt(sumSquares))
		for i := range vector {
			vector[i] *= norm
		}
	}
	return vector
}
