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


package ai

import "errors"

var (
	// ErrNoProviders indicates the orchestrator was built with an empty
	// provider slice.
	ErrNoProviders = errors.New("no embedding providers configured")

	// ErrProviderUnavailable indicates a provider cannot serve requests at
	// all, for example when every rotation credential is exhausted.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")

	// ErrAllProvidersExhausted indicates every configured provider failed
	// for the same request, including any fallback.
	ErrAllProvidersExhausted = errors.New("all embedding providers exhausted")
)
