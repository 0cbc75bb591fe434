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


// Package ai provides embedding providers and the orchestrator that
// coordinates them.
//
// This package defines the interfaces the rest of Retrievit depends on,
// following the dependency inversion principle so the storage and search
// layers never couple to a concrete provider.
//
// # Design Principles
//
// The package is designed around three key interfaces:
//
//   - Embedder: Generates vector embeddings from text
//   - EmbeddingProvider: An Embedder with a stable name and fixed dimension
//   - RelevanceScorer: Scores query/text pairs for re-ranking
//
// # Implementation Packages
//
// The ai package includes four implementation sub-packages:
//
//   - ai/openai: OpenAI-compatible APIs (remote or local inference servers)
//   - ai/gemini: Gemini embeddings with credential rotation
//   - ai/hash: Deterministic digest-derived vectors, the last-resort fallback
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Orchestrator
//
// The Orchestrator walks an ordered provider slice. Writes fall through the
// order until a provider serves the batch; queries first force the provider
// whose dimension matches the store's predominant stored dimension, because
// a query embedded at the wrong dimension silently matches nothing.
package ai
