// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth_test

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/auth"
)

func TestCurrentAuth(t *testing.T) {
	ctx := context.Background()

	_, ok := auth.CurrentAuth(ctx)
	assert.False(t, ok)

	ua := &auth.UserAuth{ID: ulid.Make()}
	ctx = auth.WithCurrentAuth(ctx, ua)

	got, ok := auth.CurrentAuth(ctx)
	require.True(t, ok)
	assert.Same(t, ua, got)

	// A nil record does not count as an authenticated request.
	_, ok = auth.CurrentAuth(auth.WithCurrentAuth(context.Background(), nil))
	assert.False(t, ok)
}

func TestCurrentSubject(t *testing.T) {
	ctx := context.Background()

	_, ok := auth.CurrentSubject(ctx)
	assert.False(t, ok)

	subject := &stubSubject{id: ulid.Make()}
	ctx = auth.WithCurrentSubject(ctx, subject)

	got, ok := auth.CurrentSubject(ctx)
	require.True(t, ok)
	assert.Same(t, subject, got.(*stubSubject))
}

func TestContextValuesAreRequestScoped(t *testing.T) {
	base := context.Background()
	first := auth.WithCurrentAuth(base, &auth.UserAuth{ID: ulid.Make()})

	// Deriving from base again must not see the first request's identity.
	_, ok := auth.CurrentAuth(base)
	assert.False(t, ok)
	_, ok = auth.CurrentAuth(first)
	assert.True(t, ok)
}

func TestPostLoginRedirect(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, auth.PostLoginRedirect(ctx))

	ctx = auth.WithPostLoginRedirect(ctx, "/dashboard")
	assert.Equal(t, "/dashboard", auth.PostLoginRedirect(ctx))
}

func TestClientIP(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, auth.ClientIP(ctx))

	ctx = auth.WithClientIP(ctx, "203.0.113.7")
	assert.Equal(t, "203.0.113.7", auth.ClientIP(ctx))
}
