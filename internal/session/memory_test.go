// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/gatehouse/gatehouse/internal/auth"
)

func TestMemoryBackend_SetGetRemove(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(0)

	_, err := b.Get(ctx, "admin_login_tag")
	assert.ErrorIs(t, err, auth.ErrNoTag)

	require.NoError(t, b.Set(ctx, "admin_login_tag", "01HZXW"))

	got, err := b.Get(ctx, "admin_login_tag")
	require.NoError(t, err)
	assert.Equal(t, "01HZXW", got)

	require.NoError(t, b.Remove(ctx, "admin_login_tag"))

	_, err = b.Get(ctx, "admin_login_tag")
	assert.ErrorIs(t, err, auth.ErrNoTag)
}

func TestMemoryBackend_RemoveAbsentKey(t *testing.T) {
	b := NewMemoryBackend(0)
	require.NoError(t, b.Remove(context.Background(), "missing"))
}

func TestMemoryBackend_Expiry(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(time.Minute)

	current := time.Now()
	b.now = func() time.Time { return current }

	require.NoError(t, b.Set(ctx, "web_login_tag", "01HZXW"))

	// Still valid just before the deadline
	current = current.Add(59 * time.Second)
	got, err := b.Get(ctx, "web_login_tag")
	require.NoError(t, err)
	assert.Equal(t, "01HZXW", got)

	// Expired past the deadline, and the entry is dropped
	current = current.Add(2 * time.Second)
	_, err = b.Get(ctx, "web_login_tag")
	assert.ErrorIs(t, err, auth.ErrNoTag)
	assert.Equal(t, 0, b.Len())
}

func TestMemoryBackend_Sweep(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(time.Minute)

	current := time.Now()
	b.now = func() time.Time { return current }

	require.NoError(t, b.Set(ctx, "a", "1"))
	require.NoError(t, b.Set(ctx, "b", "2"))

	current = current.Add(30 * time.Second)
	require.NoError(t, b.Set(ctx, "c", "3"))

	current = current.Add(45 * time.Second)
	assert.Equal(t, 2, b.Sweep())
	assert.Equal(t, 1, b.Len())
}

func TestMemoryBackend_ConcurrentAccess(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	b := NewMemoryBackend(time.Minute)

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := fmt.Sprintf("platform%d_login_tag", i%4)
			for range 100 {
				_ = b.Set(ctx, key, "v")
				_, _ = b.Get(ctx, key)
				_ = b.Remove(ctx, key)
			}
		}()
	}
	wg.Wait()
}
