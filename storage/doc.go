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


// Package storage provides the vector storage layer for retrievit.
//
// This package defines the ChunkRepository interface that decouples the
// storage implementation from retrieval logic, plus two layers built on it:
//
//   - Mirror: an in-process repository holding the full corpus in memory,
//     with an incremental dimension histogram and per-source index
//   - Store: the write-through composition of a durable repository
//     (storage/badger) and a Mirror
//
// # Write-through and degradation
//
// Every upsert lands in both layers. Reads prefer the durable backend and
// degrade to the mirror when the backend errors; only when both layers fail
// does an operation surface ErrStoreUnreachable. Callers observe degradation
// per search via the response's Degraded flag, not as an error.
//
// # Mixed dimensions
//
// A corpus may hold chunks embedded at different dimensions. Similarity is
// only ever computed between vectors of equal dimension; chunks of other
// dimensions are silently excluded from a search rather than scored zero.
// The mirror's dimension histogram gives the orchestrator an O(1) signal
// for choosing a query provider.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
