// Copyright 2026 The Ghostgate Authors
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

// Package ratelimit provides bounded-window abuse control keyed by
// (identifier, action). Counts are kept in fixed-granularity buckets and
// summed over a sliding lookback window.
package ratelimit

import (
	"context"
	"time"
)

// ActionIssueToken keys the per-(user, tenant) issuance budget. Other abuse
// surfaces (revocation, registration) are covered by the transport-level
// per-IP limiter and carry no per-action budget.
const ActionIssueToken = "issue_token"

// Result reports the outcome of a rate-limit check
type Result struct {
	Allowed      bool
	CurrentCount int64
	// ResetAt is when the oldest contributing bucket leaves the window,
	// i.e. the earliest time a denied caller may succeed.
	ResetAt time.Time
}

// Limiter checks and counts in one operation. On allow, the current bucket
// is incremented as part of the same check; on deny, no increment occurs.
// The increment and the count-read are atomic with respect to concurrent
// callers sharing the same identifier, action and window.
type Limiter interface {
	Check(ctx context.Context, identifier, action string, max int, window time.Duration) (Result, error)
}

// Purger removes buckets older than the lookback window. Purge failures
// must never block the check path.
type Purger interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
