// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package session provides session marker storage backends.
//
// The auth core only needs a narrow key-value contract per platform; real
// deployments implement it over the web framework's cookie or bearer-token
// session. MemoryBackend serves single-process deployments and tests.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// DefaultTTL is how long a marker lives without being rewritten.
const DefaultTTL = 24 * time.Hour

type entry struct {
	value     string
	expiresAt time.Time
}

// MemoryBackend implements auth.SessionBackend with an in-process map.
// Markers expire lazily on read; no background goroutine runs.
type MemoryBackend struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
}

// NewMemoryBackend creates a MemoryBackend. A non-positive ttl falls back
// to DefaultTTL.
func NewMemoryBackend(ttl time.Duration) *MemoryBackend {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryBackend{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// Set stores value under key, resetting its expiry.
func (b *MemoryBackend) Set(_ context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[key] = entry{
		value:     value,
		expiresAt: b.now().Add(b.ttl),
	}
	return nil
}

// Get returns the value stored under key, or auth.ErrNoTag if the key is
// absent or its marker has expired.
func (b *MemoryBackend) Get(_ context.Context, key string) (string, error) {
	b.mu.RLock()
	e, ok := b.entries[key]
	b.mu.RUnlock()

	if !ok {
		return "", auth.ErrNoTag
	}
	if b.now().After(e.expiresAt) {
		b.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have
		// refreshed the marker.
		if cur, ok := b.entries[key]; ok && b.now().After(cur.expiresAt) {
			delete(b.entries, key)
		}
		b.mu.Unlock()
		return "", auth.ErrNoTag
	}
	return e.value, nil
}

// Remove deletes the marker under key. Removing an absent key is not an
// error.
func (b *MemoryBackend) Remove(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.entries, key)
	return nil
}

// Sweep deletes all expired markers and returns how many were removed.
// Callers that keep a backend alive for a long time run this periodically.
func (b *MemoryBackend) Sweep() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	removed := 0
	for key, e := range b.entries {
		if now.After(e.expiresAt) {
			delete(b.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of markers currently stored, expired or not.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}
