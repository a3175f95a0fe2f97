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

package audit

import (
	"context"
	"log/slog"
	"time"
)

// Store defines the interface for audit event persistence
type Store interface {
	// Append appends an event to the audit trail
	Append(ctx context.Context, event *Event) error

	// DeleteOlderThan purges events past the retention window
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Recorder implements Logger by persisting events and mirroring them to
// slog. Persistence is best-effort: a store failure is logged and never
// propagated to the caller, so an audit outage cannot abort the primary
// operation.
type Recorder struct {
	store Store
	slog  *SlogLogger
}

// NewRecorder creates a store-backed audit logger
func NewRecorder(store Store) *Recorder {
	return &Recorder{
		store: store,
		slog:  NewSlogLogger(),
	}
}

// Log records an audit event
func (r *Recorder) Log(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	r.slog.Log(ctx, event)

	if err := r.store.Append(ctx, &event); err != nil {
		slog.ErrorContext(ctx, "failed to persist audit event",
			slog.String("component", "audit"),
			slog.String("audit_action", event.Action),
			slog.String("error", err.Error()),
		)
	}
}
