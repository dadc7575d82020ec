// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/pkg/errutil"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *UserAuthRepository) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	return mock, NewUserAuthRepository(mock)
}

func sampleUserAuth(t *testing.T) *auth.UserAuth {
	t.Helper()

	ua, err := auth.NewUserAuth(ulid.Make(), "admin", "alice", "digest", "123456")
	require.NoError(t, err)
	ua.CreatedAt = time.Now()
	return ua
}

func TestUserAuthRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts record", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		ua := sampleUserAuth(t)

		mock.ExpectExec("INSERT INTO user_auth").
			WithArgs(
				ua.ID.String(), ua.SubjectID.String(), "admin", "alice",
				"digest", "123456", ua.CreatedAt, ua.LastLoginAt, "",
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, repo.Create(ctx, ua))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation maps to already exists", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		ua := sampleUserAuth(t)

		mock.ExpectExec("INSERT INTO user_auth").
			WithArgs(
				ua.ID.String(), ua.SubjectID.String(), "admin", "alice",
				"digest", "123456", ua.CreatedAt, ua.LastLoginAt, "",
			).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

		err := repo.Create(ctx, ua)
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "USERAUTH_ALREADY_EXISTS")
	})
}

func userAuthColumns() []string {
	return []string{
		"id", "subject_id", "subject_type", "account",
		"password_hash", "salt", "created_at", "last_login_at", "last_login_ip",
	}
}

func TestUserAuthRepository_FindOne(t *testing.T) {
	ctx := context.Background()

	t.Run("finds by account and subject type", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		id := ulid.Make()
		subjectID := ulid.Make()
		created := time.Now()

		rows := pgxmock.NewRows(userAuthColumns()).
			AddRow(id.String(), subjectID.String(), "admin", "alice",
				"digest", "123456", created, nil, "")

		mock.ExpectQuery("SELECT (.+) FROM user_auth").
			WithArgs("alice", "admin").
			WillReturnRows(rows)

		ua, err := repo.FindOne(ctx, auth.Criteria{
			"subject_type": auth.SubjectType("admin"),
			"account":      "alice",
		})
		require.NoError(t, err)
		assert.Equal(t, id, ua.ID)
		assert.Equal(t, subjectID, ua.SubjectID)
		assert.Equal(t, auth.SubjectType("admin"), ua.SubjectType)
		assert.Nil(t, ua.LastLoginAt)
	})

	t.Run("no rows maps to ErrNotFound", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		id := ulid.Make()

		mock.ExpectQuery("SELECT (.+) FROM user_auth").
			WithArgs(id.String()).
			WillReturnRows(pgxmock.NewRows(userAuthColumns()))

		_, err := repo.FindOne(ctx, auth.Criteria{"id": id})
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("unknown criteria column rejected", func(t *testing.T) {
		_, repo := newMockRepo(t)

		_, err := repo.FindOne(ctx, auth.Criteria{"password_hash": "x"})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "USERAUTH_BAD_CRITERIA")
	})

	t.Run("empty criteria rejected", func(t *testing.T) {
		_, repo := newMockRepo(t)

		_, err := repo.FindOne(ctx, auth.Criteria{})
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "USERAUTH_BAD_CRITERIA")
	})
}

func TestUserAuthRepository_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("stamps login metadata", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		ua := sampleUserAuth(t)
		now := time.Now()
		ua.LastLoginAt = &now
		ua.LastLoginIP = "203.0.113.7"

		mock.ExpectExec("UPDATE user_auth").
			WithArgs(ua.ID.String(), ua.LastLoginAt, "203.0.113.7").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.Update(ctx, ua))
	})

	t.Run("missing record maps to ErrNotFound", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		ua := sampleUserAuth(t)

		mock.ExpectExec("UPDATE user_auth").
			WithArgs(ua.ID.String(), ua.LastLoginAt, ua.LastLoginIP).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.Update(ctx, ua)
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestUserAuthRepository_UpdatePassword(t *testing.T) {
	ctx := context.Background()

	t.Run("updates hash only", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		id := ulid.Make()

		mock.ExpectExec("UPDATE user_auth SET password_hash").
			WithArgs(id.String(), "newdigest").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.UpdatePassword(ctx, id, "newdigest"))
	})

	t.Run("exec failure is wrapped", func(t *testing.T) {
		mock, repo := newMockRepo(t)
		id := ulid.Make()

		mock.ExpectExec("UPDATE user_auth SET password_hash").
			WithArgs(id.String(), "newdigest").
			WillReturnError(errors.New("connection reset"))

		err := repo.UpdatePassword(ctx, id, "newdigest")
		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "USERAUTH_UPDATE_PASSWORD_FAILED")
	})
}

func TestUserAuthRepository_Refresh(t *testing.T) {
	ctx := context.Background()

	mock, repo := newMockRepo(t)
	ua := sampleUserAuth(t)
	created := time.Now()

	rows := pgxmock.NewRows(userAuthColumns()).
		AddRow(ua.ID.String(), ua.SubjectID.String(), "admin", "alice",
			"freshdigest", "123456", created, nil, "198.51.100.1")

	mock.ExpectQuery("SELECT (.+) FROM user_auth").
		WithArgs(ua.ID.String()).
		WillReturnRows(rows)

	require.NoError(t, repo.Refresh(ctx, ua))
	assert.Equal(t, "freshdigest", ua.PasswordHash)
	assert.Equal(t, "198.51.100.1", ua.LastLoginIP)
}
