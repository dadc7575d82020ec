// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package postgres implements auth repositories using PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
)

// poolIface is the subset of pgxpool.Pool the repository uses.
// pgxmock implements it for tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// criteriaColumns are the only columns FindOne may filter on. Anything else
// in the criteria map is a caller bug, not a query to run.
var criteriaColumns = map[string]struct{}{
	"id":           {},
	"subject_id":   {},
	"subject_type": {},
	"account":      {},
}

// UserAuthRepository implements auth.UserAuthRepository using PostgreSQL.
type UserAuthRepository struct {
	pool poolIface
}

// NewUserAuthRepository creates a new UserAuthRepository.
func NewUserAuthRepository(pool poolIface) *UserAuthRepository {
	return &UserAuthRepository{pool: pool}
}

// Create stores a new credential record.
func (r *UserAuthRepository) Create(ctx context.Context, ua *auth.UserAuth) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_auth (
			id, subject_id, subject_type, account,
			password_hash, salt, created_at, last_login_at, last_login_ip
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		ua.ID.String(),
		ua.SubjectID.String(),
		string(ua.SubjectType),
		ua.Account,
		ua.PasswordHash,
		ua.Salt,
		ua.CreatedAt,
		ua.LastLoginAt,
		ua.LastLoginIP,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("USERAUTH_ALREADY_EXISTS").
				With("account", ua.Account).
				With("subject_type", string(ua.SubjectType)).
				Errorf("credential record already exists")
		}
		return oops.Code("USERAUTH_CREATE_FAILED").
			With("operation", "insert user_auth").
			With("account", ua.Account).
			Wrap(err)
	}
	return nil
}

// FindOne retrieves the single record matching criteria.
func (r *UserAuthRepository) FindOne(ctx context.Context, criteria auth.Criteria) (*auth.UserAuth, error) {
	where, args, err := buildWhere(criteria)
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, `
		SELECT id, subject_id, subject_type, account,
		       password_hash, salt, created_at, last_login_at, last_login_ip
		FROM user_auth
		WHERE `+where, args...)

	ua, err := scanUserAuth(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("USERAUTH_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USERAUTH_FIND_FAILED").
			With("operation", "find user_auth").
			Wrap(err)
	}
	return ua, nil
}

// Update persists login metadata mutations on an existing record.
func (r *UserAuthRepository) Update(ctx context.Context, ua *auth.UserAuth) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE user_auth
		SET last_login_at = $2, last_login_ip = $3
		WHERE id = $1
	`, ua.ID.String(), ua.LastLoginAt, ua.LastLoginIP)
	if err != nil {
		return oops.Code("USERAUTH_UPDATE_FAILED").
			With("operation", "update user_auth").
			With("id", ua.ID.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USERAUTH_NOT_FOUND").
			With("id", ua.ID.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// UpdatePassword updates only the password hash for a record.
func (r *UserAuthRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE user_auth SET password_hash = $2
		WHERE id = $1
	`, id.String(), passwordHash)
	if err != nil {
		return oops.Code("USERAUTH_UPDATE_PASSWORD_FAILED").
			With("operation", "update password_hash").
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USERAUTH_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// Refresh reloads the record in place from storage.
func (r *UserAuthRepository) Refresh(ctx context.Context, ua *auth.UserAuth) error {
	fresh, err := r.FindOne(ctx, auth.Criteria{"id": ua.ID})
	if err != nil {
		return err
	}
	*ua = *fresh
	return nil
}

// buildWhere turns criteria into a deterministic WHERE clause. Keys are
// sorted so the same criteria always produce the same SQL.
func buildWhere(criteria auth.Criteria) (string, []any, error) {
	if len(criteria) == 0 {
		return "", nil, oops.Code("USERAUTH_BAD_CRITERIA").Errorf("criteria cannot be empty")
	}

	keys := make([]string, 0, len(criteria))
	for k := range criteria {
		if _, ok := criteriaColumns[k]; !ok {
			return "", nil, oops.Code("USERAUTH_BAD_CRITERIA").
				With("column", k).
				Errorf("unknown criteria column %q", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for i, k := range keys {
		clauses = append(clauses, fmt.Sprintf("%s = $%d", k, i+1))
		args = append(args, normalize(criteria[k]))
	}
	return strings.Join(clauses, " AND "), args, nil
}

// normalize converts domain-typed criteria values into their column
// representation.
func normalize(v any) any {
	switch t := v.(type) {
	case ulid.ULID:
		return t.String()
	case auth.SubjectType:
		return string(t)
	default:
		return v
	}
}

func scanUserAuth(row pgx.Row) (*auth.UserAuth, error) {
	var (
		ua          auth.UserAuth
		idStr       string
		subjectStr  string
		subjectType string
	)
	if err := row.Scan(
		&idStr,
		&subjectStr,
		&subjectType,
		&ua.Account,
		&ua.PasswordHash,
		&ua.Salt,
		&ua.CreatedAt,
		&ua.LastLoginAt,
		&ua.LastLoginIP,
	); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with operation context
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("USERAUTH_CORRUPT_ID").With("id", idStr).Wrap(err)
	}
	subjectID, err := ulid.Parse(subjectStr)
	if err != nil {
		return nil, oops.Code("USERAUTH_CORRUPT_ID").With("subject_id", subjectStr).Wrap(err)
	}

	ua.ID = id
	ua.SubjectID = subjectID
	ua.SubjectType = auth.SubjectType(subjectType)
	return &ua, nil
}
