// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/observability"
	"github.com/gatehouse/gatehouse/pkg/errutil"
)

// DefaultAccountField is the credential column consulted when the caller
// does not name one. The display title defaults to the field name.
const DefaultAccountField = "account"

// Service orchestrates the authentication state machine: credential
// verification, subject status gating, session tag lifecycle, and password
// change and recovery.
//
// Every operation returns a success value or a structured failure; callers
// check the error explicitly. Persistence failures are converted to
// AUTH_NETWORK_ERROR results at the I/O call and logged, never re-thrown.
type Service struct {
	repo      UserAuthRepository
	providers *ProviderRegistry
	tags      *TagStore
	codec     PasswordCodec
	logger    *slog.Logger
}

// NewService creates a new Service.
func NewService(repo UserAuthRepository, providers *ProviderRegistry, tags *TagStore, codec PasswordCodec) (*Service, error) {
	return NewServiceWithLogger(repo, providers, tags, codec, slog.Default())
}

// NewServiceWithLogger creates a new Service with a custom logger.
func NewServiceWithLogger(repo UserAuthRepository, providers *ProviderRegistry, tags *TagStore, codec PasswordCodec, logger *slog.Logger) (*Service, error) {
	if repo == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("user auth repository is required")
	}
	if providers == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("provider registry is required")
	}
	if tags == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("tag store is required")
	}
	if codec == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("password codec is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("logger is required")
	}
	return &Service{
		repo:      repo,
		providers: providers,
		tags:      tags,
		codec:     codec,
		logger:    logger,
	}, nil
}

// AccountCheck verifies a submitted account and password against the stored
// credential record without side effects. field names the credential column
// to match on and title is its user-facing name; both default to "account".
//
// The two rejection messages are deliberately distinct ("<title> not found"
// vs. "bad password") and stable; nothing else about the account leaks.
func (s *Service) AccountCheck(ctx context.Context, account, password string, subjectType SubjectType, field, title string) (*UserAuth, error) {
	if field == "" {
		field = DefaultAccountField
	}
	if title == "" {
		title = field
	}

	if account == "" {
		return nil, oops.Code("AUTH_VALIDATION").Errorf("%s required", title)
	}
	if password == "" {
		return nil, oops.Code("AUTH_VALIDATION").Errorf("password required")
	}

	provider, err := s.providers.Resolve(subjectType)
	if err != nil {
		return nil, err
	}

	subject, err := provider.FindSubject(ctx, Criteria{field: account})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_NOT_FOUND").Errorf("%s not found", title)
		}
		return nil, s.networkError(err, "find subject")
	}

	ua, err := s.repo.FindOne(ctx, Criteria{
		"subject_id":   subject.SubjectID(),
		"subject_type": subjectType,
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_NOT_FOUND").Errorf("%s not found", title)
		}
		return nil, s.networkError(err, "find user auth")
	}

	digest := s.codec.Encrypt(password, ua.Salt)
	if subtle.ConstantTimeCompare([]byte(digest), []byte(ua.PasswordHash)) != 1 {
		return nil, oops.Code("AUTH_VALIDATION").Errorf("bad password")
	}

	return ua, nil
}

// Login records a successful authentication for an already verified
// credential record: it re-checks subject status, stamps last-login
// metadata, attaches the identity to the returned context, and writes the
// platform's session marker.
//
// On any failure the context is returned unchanged and no marker is written.
func (s *Service) Login(ctx context.Context, ua *UserAuth, platform Platform) (context.Context, string, error) {
	if ua == nil || ua.ID.Compare(ulid.ULID{}) == 0 {
		observability.RecordLogin(string(platform), "failure")
		return ctx, "", oops.Code("AUTH_VALIDATION").Errorf("account not found")
	}

	subject, err := s.CheckStatus(ctx, Criteria{"id": ua.SubjectID}, ua.SubjectType)
	if err != nil {
		observability.RecordLogin(string(platform), "failure")
		return ctx, "", err
	}

	now := time.Now()
	ua.LastLoginAt = &now
	ua.LastLoginIP = ClientIP(ctx)
	if err := s.repo.Update(ctx, ua); err != nil {
		observability.RecordLogin(string(platform), "failure")
		return ctx, "", s.networkError(err, "update last login")
	}

	ctx = WithCurrentAuth(ctx, ua)
	ctx = WithCurrentSubject(ctx, subject)

	tag, err := s.tags.Set(ctx, platform, ua.ID)
	if err != nil {
		observability.RecordLogin(string(platform), "failure")
		return ctx, "", err
	}

	observability.RecordLogin(string(platform), "success")
	s.logger.Info("login",
		"user_auth_id", ua.ID.String(),
		"subject_type", string(ua.SubjectType),
		"platform", string(platform),
	)
	return ctx, tag, nil
}

// AccountLogin composes AccountCheck and Login, short-circuiting on the
// first failure.
func (s *Service) AccountLogin(ctx context.Context, account, password string, subjectType SubjectType, platform Platform, field, title string) (context.Context, string, error) {
	ua, err := s.AccountCheck(ctx, account, password, subjectType, field, title)
	if err != nil {
		observability.RecordLogin(string(platform), "failure")
		return ctx, "", err
	}
	return s.Login(ctx, ua, platform)
}

// CheckStatus resolves the subject matching criteria and gates on its
// status. Returns the live subject, AUTH_NOT_FOUND if absent, or
// AUTH_STATUS_REJECTED if the provider refuses it.
func (s *Service) CheckStatus(ctx context.Context, criteria Criteria, subjectType SubjectType) (Subject, error) {
	provider, err := s.providers.Resolve(subjectType)
	if err != nil {
		return nil, err
	}

	subject, err := provider.FindSubject(ctx, criteria)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_NOT_FOUND").Errorf("account not found")
		}
		return nil, s.networkError(err, "find subject")
	}

	if !provider.CheckStatus(subject) {
		return nil, oops.Code("AUTH_STATUS_REJECTED").
			With("subject_type", string(subjectType)).
			Errorf("account is disabled")
	}

	return subject, nil
}

// IsLogin re-authenticates the current session. It reads the platform's
// session marker, re-gates subject status, reloads the credential record
// fresh from storage, and attaches both to the returned context. This runs
// on every protected request.
//
// An absent marker fails with AUTH_SESSION_EXPIRED before any credential
// read happens.
func (s *Service) IsLogin(ctx context.Context, platform Platform) (context.Context, *UserAuth, error) {
	id, err := s.tags.Get(ctx, platform)
	if err != nil {
		if errors.Is(err, ErrNoTag) {
			observability.RecordSessionCheck("expired")
			return ctx, nil, oops.Code("AUTH_SESSION_EXPIRED").Errorf("login timeout")
		}
		observability.RecordSessionCheck("error")
		return ctx, nil, err
	}

	ua, err := s.repo.FindOne(ctx, Criteria{"id": id})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			observability.RecordSessionCheck("expired")
			return ctx, nil, oops.Code("AUTH_SESSION_EXPIRED").Errorf("login timeout")
		}
		observability.RecordSessionCheck("error")
		return ctx, nil, s.networkError(err, "find user auth")
	}

	subject, err := s.CheckStatus(ctx, Criteria{"id": ua.SubjectID}, ua.SubjectType)
	if err != nil {
		observability.RecordSessionCheck("rejected")
		return ctx, nil, err
	}

	// Discard any state mutated since the marker was written.
	if err := s.repo.Refresh(ctx, ua); err != nil {
		observability.RecordSessionCheck("error")
		return ctx, nil, s.networkError(err, "refresh user auth")
	}

	ctx = WithCurrentAuth(ctx, ua)
	ctx = WithCurrentSubject(ctx, subject)

	observability.RecordSessionCheck("ok")
	return ctx, ua, nil
}

// Logout removes the platform's session marker.
func (s *Service) Logout(ctx context.Context, platform Platform) error {
	return s.tags.Remove(ctx, platform)
}

// ChangePassword replaces a credential record's password after verifying
// the old one.
func (s *Service) ChangePassword(ctx context.Context, ua *UserAuth, oldPassword, newPassword string) error {
	if ua == nil {
		return oops.Code("AUTH_VALIDATION").Errorf("account not found")
	}
	if oldPassword == "" {
		return oops.Code("AUTH_VALIDATION").Errorf("original password required")
	}
	if newPassword == "" {
		return oops.Code("AUTH_VALIDATION").Errorf("new password required")
	}

	digest := s.codec.Encrypt(oldPassword, ua.Salt)
	if subtle.ConstantTimeCompare([]byte(digest), []byte(ua.PasswordHash)) != 1 {
		return oops.Code("AUTH_VALIDATION").Errorf("original password incorrect")
	}

	return s.updatePassword(ctx, ua, newPassword, "change")
}

// RetrievePassword replaces a credential record's password without an
// old-password check. It only verifies the confirmation matches; the
// forgot-password flow that calls it must gate on an upstream identity
// proof (an emailed reset token or similar) first.
func (s *Service) RetrievePassword(ctx context.Context, ua *UserAuth, newPassword, confirmPassword string) error {
	if ua == nil {
		return oops.Code("AUTH_VALIDATION").Errorf("account not found")
	}
	if newPassword == "" {
		return oops.Code("AUTH_VALIDATION").Errorf("new password required")
	}
	if newPassword != confirmPassword {
		return oops.Code("AUTH_VALIDATION").Errorf("passwords do not match")
	}

	return s.updatePassword(ctx, ua, newPassword, "reset")
}

// UpdatePassword derives and persists a new password hash. The stored salt
// is reused, not rotated.
func (s *Service) UpdatePassword(ctx context.Context, ua *UserAuth, newPassword string) error {
	return s.updatePassword(ctx, ua, newPassword, "update")
}

func (s *Service) updatePassword(ctx context.Context, ua *UserAuth, newPassword, flow string) error {
	if ua == nil {
		return oops.Code("AUTH_VALIDATION").Errorf("account not found")
	}
	if newPassword == "" {
		return oops.Code("AUTH_VALIDATION").Errorf("new password required")
	}

	digest := s.codec.Encrypt(newPassword, ua.Salt)
	if err := s.repo.UpdatePassword(ctx, ua.ID, digest); err != nil {
		return s.networkError(err, "update password")
	}

	ua.PasswordHash = digest
	observability.RecordPasswordChange(flow)
	return nil
}

// Create persists a new credential record, stamping CreatedAt.
func (s *Service) Create(ctx context.Context, ua *UserAuth) error {
	if ua == nil {
		return oops.Code("AUTH_VALIDATION").Errorf("account not found")
	}

	ua.CreatedAt = time.Now()
	if err := ua.Validate(); err != nil {
		return err
	}

	if err := s.repo.Create(ctx, ua); err != nil {
		return s.networkError(err, "create user auth")
	}
	return nil
}

// networkError converts a persistence failure into a reported result. The
// request keeps running; the caller sees a structured error.
func (s *Service) networkError(err error, op string) error {
	wrapped := oops.Code("AUTH_NETWORK_ERROR").
		With("operation", op).
		Wrap(err)
	errutil.LogError(s.logger, "persistence failure", wrapped)
	return wrapped
}
