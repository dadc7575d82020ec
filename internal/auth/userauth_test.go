// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth_test

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/pkg/errutil"
)

func TestNewUserAuth(t *testing.T) {
	subjectID := ulid.Make()
	ua, err := auth.NewUserAuth(subjectID, "admin", "alice", "digest", "123456")
	require.NoError(t, err)

	assert.NotEqual(t, ulid.ULID{}, ua.ID)
	assert.Equal(t, subjectID, ua.SubjectID)
	assert.Equal(t, auth.SubjectType("admin"), ua.SubjectType)
	assert.Equal(t, "alice", ua.Account)
	assert.Equal(t, "digest", ua.PasswordHash)
	assert.Equal(t, "123456", ua.Salt)
	assert.Nil(t, ua.LastLoginAt)
}

func TestNewUserAuth_GeneratesUniqueIDs(t *testing.T) {
	subjectID := ulid.Make()
	a, err := auth.NewUserAuth(subjectID, "admin", "alice", "digest", "salt")
	require.NoError(t, err)
	b, err := auth.NewUserAuth(subjectID, "admin", "alice", "digest", "salt")
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
}

func TestUserAuth_Validate(t *testing.T) {
	valid := func() *auth.UserAuth {
		return &auth.UserAuth{
			ID:           ulid.Make(),
			SubjectID:    ulid.Make(),
			SubjectType:  "member",
			Account:      "bob",
			PasswordHash: "digest",
			Salt:         "salt",
		}
	}

	tests := []struct {
		name   string
		mutate func(*auth.UserAuth)
	}{
		{name: "zero subject ID", mutate: func(u *auth.UserAuth) { u.SubjectID = ulid.ULID{} }},
		{name: "empty subject type", mutate: func(u *auth.UserAuth) { u.SubjectType = "" }},
		{name: "empty account", mutate: func(u *auth.UserAuth) { u.Account = "" }},
		{name: "empty password hash", mutate: func(u *auth.UserAuth) { u.PasswordHash = "" }},
		{name: "empty salt", mutate: func(u *auth.UserAuth) { u.Salt = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ua := valid()
			require.NoError(t, ua.Validate())

			tt.mutate(ua)
			err := ua.Validate()
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "AUTH_INVALID_RECORD")
		})
	}
}
