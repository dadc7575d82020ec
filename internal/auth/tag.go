// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"errors"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// DefaultTagSuffix is appended to the platform name to form the session key
// when no suffix is configured.
const DefaultTagSuffix = "_login_tag"

// Platform discriminates which session storage strategy serves a request
// origin (admin console vs. public site vs. mobile API). The set of valid
// platforms is fixed at startup by backend registration; each platform may
// need a structurally different mechanism, so this is a closed dispatch.
type Platform string

// SessionBackend is the narrow key-value contract a platform's session
// storage must satisfy. Get returns ErrNoTag when the key is absent.
type SessionBackend interface {
	Set(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, error)
	Remove(ctx context.Context, key string) error
}

// TagStore writes, reads, and removes the session marker recording which
// credential record is authenticated for the current session. Markers are
// session-scoped and never reach durable storage.
type TagStore struct {
	suffix string

	mu       sync.RWMutex
	backends map[Platform]SessionBackend
}

// NewTagStore creates a TagStore. An empty suffix falls back to
// DefaultTagSuffix.
func NewTagStore(suffix string) *TagStore {
	if suffix == "" {
		suffix = DefaultTagSuffix
	}
	return &TagStore{
		suffix:   suffix,
		backends: make(map[Platform]SessionBackend),
	}
}

// Register binds a session backend to a platform.
func (s *TagStore) Register(p Platform, backend SessionBackend) error {
	if p == "" {
		return oops.Code("AUTH_INVALID_PLATFORM").Errorf("platform cannot be empty")
	}
	if backend == nil {
		return oops.Code("AUTH_INVALID_BACKEND").
			With("platform", string(p)).
			Errorf("session backend cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.backends[p]; ok {
		return oops.Code("AUTH_DUPLICATE_PLATFORM").
			With("platform", string(p)).
			Errorf("platform %q already registered", p)
	}
	s.backends[p] = backend
	return nil
}

// Set writes the credential record ID under the platform's session key and
// returns the opaque tag. The tag is empty when the marker is purely
// session-based; callers must not read meaning into its content.
func (s *TagStore) Set(ctx context.Context, p Platform, userAuthID ulid.ULID) (string, error) {
	backend, err := s.resolve(p)
	if err != nil {
		return "", err
	}
	if err := backend.Set(ctx, s.key(p), userAuthID.String()); err != nil {
		return "", oops.Code("AUTH_TAG_SET_FAILED").
			With("platform", string(p)).
			Wrap(err)
	}
	return "", nil
}

// Get reads the credential record ID stored under the platform's session
// key. Returns ErrNoTag when nothing is stored.
func (s *TagStore) Get(ctx context.Context, p Platform) (ulid.ULID, error) {
	backend, err := s.resolve(p)
	if err != nil {
		return ulid.ULID{}, err
	}

	value, err := backend.Get(ctx, s.key(p))
	if err != nil {
		if errors.Is(err, ErrNoTag) {
			return ulid.ULID{}, err
		}
		return ulid.ULID{}, oops.Code("AUTH_TAG_GET_FAILED").
			With("platform", string(p)).
			Wrap(err)
	}
	if value == "" {
		return ulid.ULID{}, ErrNoTag
	}

	id, err := ulid.Parse(value)
	if err != nil {
		return ulid.ULID{}, oops.Code("AUTH_TAG_CORRUPT").
			With("platform", string(p)).
			Wrap(err)
	}
	return id, nil
}

// Remove deletes the platform's session marker.
func (s *TagStore) Remove(ctx context.Context, p Platform) error {
	backend, err := s.resolve(p)
	if err != nil {
		return err
	}
	if err := backend.Remove(ctx, s.key(p)); err != nil {
		return oops.Code("AUTH_TAG_REMOVE_FAILED").
			With("platform", string(p)).
			Wrap(err)
	}
	return nil
}

func (s *TagStore) key(p Platform) string {
	return string(p) + s.suffix
}

func (s *TagStore) resolve(p Platform) (SessionBackend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	backend, ok := s.backends[p]
	if !ok {
		return nil, oops.Code("AUTH_UNSUPPORTED_PLATFORM").
			With("platform", string(p)).
			Errorf("no session backend registered for platform %q", p)
	}
	return backend, nil
}
