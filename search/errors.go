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


package search

import "errors"

var (
	// ErrStoreRequired is returned when a vector store is not provided.
	ErrStoreRequired = errors.New("vector store required")

	// ErrOrchestratorRequired is returned when an embedding orchestrator is not provided.
	ErrOrchestratorRequired = errors.New("embedding orchestrator required")

	// ErrLexicalIndexRequired is returned when a lexical index is not provided.
	ErrLexicalIndexRequired = errors.New("lexical index required")

	// ErrInvalidWeights is returned for out-of-range tuning options.
	ErrInvalidWeights = errors.New("invalid search tuning")
)
