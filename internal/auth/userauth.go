// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// UserAuth is a credential record. It authenticates into exactly one Subject,
// referenced by (SubjectID, SubjectType). The core mutates PasswordHash and
// login metadata; it never creates subject records.
//
// Invariant: PasswordHash == codec.Encrypt(plaintext, Salt) is the sole
// authentication predicate. Salt is immutable once set; rotating it requires
// writing a new salt and a new hash together.
type UserAuth struct {
	ID           ulid.ULID
	SubjectID    ulid.ULID
	SubjectType  SubjectType
	Account      string
	PasswordHash string
	Salt         string
	CreatedAt    time.Time
	LastLoginAt  *time.Time
	LastLoginIP  string
}

// NewUserAuth creates a validated UserAuth with a fresh ID. The password hash
// and salt must already be derived through a PasswordCodec.
func NewUserAuth(subjectID ulid.ULID, subjectType SubjectType, account, passwordHash, salt string) (*UserAuth, error) {
	ua := &UserAuth{
		ID:           ulid.Make(),
		SubjectID:    subjectID,
		SubjectType:  subjectType,
		Account:      account,
		PasswordHash: passwordHash,
		Salt:         salt,
	}
	if err := ua.Validate(); err != nil {
		return nil, err
	}
	return ua, nil
}

// Validate checks that the record can be persisted.
func (u *UserAuth) Validate() error {
	if u.SubjectID.Compare(ulid.ULID{}) == 0 {
		return oops.Code("AUTH_INVALID_RECORD").Errorf("subject ID cannot be zero")
	}
	if u.SubjectType == "" {
		return oops.Code("AUTH_INVALID_RECORD").Errorf("subject type cannot be empty")
	}
	if u.Account == "" {
		return oops.Code("AUTH_INVALID_RECORD").Errorf("account cannot be empty")
	}
	if u.PasswordHash == "" {
		return oops.Code("AUTH_INVALID_RECORD").Errorf("password hash cannot be empty")
	}
	if u.Salt == "" {
		return oops.Code("AUTH_INVALID_RECORD").Errorf("salt cannot be empty")
	}
	return nil
}

// Criteria is a column-to-value filter for lookups. Implementations restrict
// keys to a known column set and reject anything else.
type Criteria map[string]any

// UserAuthRepository manages credential record persistence.
type UserAuthRepository interface {
	// Create stores a new credential record.
	Create(ctx context.Context, ua *UserAuth) error

	// FindOne retrieves the single record matching criteria.
	// Returns ErrNotFound if no record matches.
	FindOne(ctx context.Context, criteria Criteria) (*UserAuth, error)

	// Update persists login metadata mutations on an existing record.
	Update(ctx context.Context, ua *UserAuth) error

	// UpdatePassword updates only the password hash for a record.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// Refresh reloads the record in place from storage, discarding any
	// stale in-memory state.
	Refresh(ctx context.Context, ua *UserAuth) error
}
