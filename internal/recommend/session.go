// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

package recommend

import (
	"context"
	"sync"
)

// sessionTracker enforces last-request-wins per session: beginning a
// computation cancels the previous in-flight one for the same session.
type sessionTracker struct {
	mu       sync.Mutex
	inflight map[string]*sessionEntry
}

type sessionEntry struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func newSessionTracker() *sessionTracker {
	return &sessionTracker{inflight: make(map[string]*sessionEntry)}
}

// begin cancels the session's previous computation and registers a new
// cancellable context. The returned done func deregisters it.
func (t *sessionTracker) begin(parent context.Context, session string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)
	entry := &sessionEntry{ctx: ctx, cancel: cancel}

	t.mu.Lock()
	if prev, ok := t.inflight[session]; ok {
		prev.cancel()
	}
	t.inflight[session] = entry
	t.mu.Unlock()

	return ctx, func() {
		t.mu.Lock()
		if t.inflight[session] == entry {
			delete(t.inflight, session)
		}
		t.mu.Unlock()
		cancel()
	}
}

// isCurrent reports whether ctx is still the session's registered
// computation. A canceled, replaced context means it was superseded.
func (t *sessionTracker) isCurrent(session string, ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.inflight[session]
	return ok && entry.ctx == ctx
}
