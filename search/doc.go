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


// Package search provides hybrid lexical and semantic retrieval.
//
// The Engine type runs each query as a pipeline:
//
//	Expand -> Lexical || Semantic -> Fuse -> Rerank (optional) -> Truncate
//
// Lexical search scores against an in-memory BM25 index built over
// domain-normalized tokens (case and diacritic folding, English and
// Turkish stop words, token-level synonyms). Semantic search embeds the
// expanded query variants and runs a multi-vector store search. Fusion
// boosts results both signals agree on and marks them hybrid.
//
// Search never fails just because a stage degraded: a dead embedding
// provider, a mirror-only store, or a failed re-ranker each set the
// response's Degraded flag while the remaining signals still serve.
package search
