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


package rotation

import "errors"

var (
	// ErrNoCredentials is returned when a manager is created without keys.
	ErrNoCredentials = errors.New("no credentials configured")

	// ErrUnavailable is returned by Acquire when every credential in the
	// ring is quota exhausted or invalid.
	ErrUnavailable = errors.New("no usable credential available")

	// ErrInvalidCooldown is returned for non-positive cool-down durations.
	ErrInvalidCooldown = errors.New("cool-down must be positive")
)
