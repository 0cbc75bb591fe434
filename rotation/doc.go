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


// Package rotation manages a ring of remote-provider credentials with
// quota-exhaustion failover.
//
// A Manager hands out credentials via Acquire and learns about request
// outcomes via ReportSuccess and ReportFailure. Quota-exhausted credentials
// leave the ring temporarily and return after a cool-down window, checked
// lazily at acquire time rather than by background timers. Credentials that
// fail authentication are removed permanently.
//
// The Manager is the only shared mutable state in the embedding path and is
// safe for use from any number of concurrent callers.
package rotation
