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


package core

import (
	"fmt"
	"time"
)

// ValidateChunk validates a Chunk according to domain rules.
//
// Validation rules:
//   - Text must not be empty
//   - Source must not be empty
//   - Metadata keys must not be empty
//   - InsertedAt must not be in the future when set
//
// NOT validated (populated during ingestion):
//   - Vector (empty until the orchestrator embeds the chunk)
//   - ID (0 is valid before ChunkID assignment)
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if chunk.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyText)
	}

	if chunk.Source == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptySource)
	}

	for key := range chunk.Metadata {
		if key == "" {
			return fmt.Errorf("%w: %w: empty key", ErrInvalidChunk, ErrInvalidMetadata)
		}
	}

	if !chunk.InsertedAt.IsZero() && !IsValidTimestamp(chunk.InsertedAt) {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrInvalidTimestamp)
	}

	return nil
}

// IsValidTimestamp checks if a timestamp is valid (not in the future).
func IsValidTimestamp(ts time.Time) bool {
	return !ts.After(time.Now())
}
