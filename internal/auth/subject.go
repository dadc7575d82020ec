// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// SubjectType discriminates which subject store implements login for a
// credential record (admin console accounts vs. public site users, and so
// on). The set of valid types is fixed at startup by provider registration.
type SubjectType string

// Subject is the underlying account entity a credential record
// authenticates into. The core only needs its identity; everything else
// about the account belongs to the owning platform.
type Subject interface {
	// SubjectID returns the account's identifier.
	SubjectID() ulid.ULID
}

// SubjectAuthProvider exposes one platform's subject store to the core.
// One implementation is registered per SubjectType.
type SubjectAuthProvider interface {
	// FindSubject retrieves the subject matching criteria.
	// Returns ErrNotFound if no subject matches.
	FindSubject(ctx context.Context, criteria Criteria) (Subject, error)

	// CheckStatus reports whether the subject may log in (not disabled,
	// banned, or otherwise rejected).
	CheckStatus(subject Subject) bool
}

// ProviderFunc constructs a SubjectAuthProvider on first resolution.
type ProviderFunc func() SubjectAuthProvider

// ProviderRegistry maps subject types to their auth providers. Registration
// happens once at startup; resolution is read-mostly afterwards and safe for
// concurrent use. An unregistered type is a configuration defect, never
// silently defaulted.
type ProviderRegistry struct {
	mu        sync.RWMutex
	providers map[SubjectType]SubjectAuthProvider
	factories map[SubjectType]ProviderFunc
}

// NewProviderRegistry creates an empty ProviderRegistry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[SubjectType]SubjectAuthProvider),
		factories: make(map[SubjectType]ProviderFunc),
	}
}

// Register binds a provider to a subject type. Registering the same type
// twice is a configuration defect and fails.
func (r *ProviderRegistry) Register(t SubjectType, provider SubjectAuthProvider) error {
	if t == "" {
		return oops.Code("AUTH_INVALID_SUBJECT_TYPE").Errorf("subject type cannot be empty")
	}
	if provider == nil {
		return oops.Code("AUTH_INVALID_PROVIDER").
			With("subject_type", string(t)).
			Errorf("provider cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[t]; ok {
		return oops.Code("AUTH_DUPLICATE_SUBJECT_TYPE").
			With("subject_type", string(t)).
			Errorf("subject type %q already registered", t)
	}
	if _, ok := r.factories[t]; ok {
		return oops.Code("AUTH_DUPLICATE_SUBJECT_TYPE").
			With("subject_type", string(t)).
			Errorf("subject type %q already registered", t)
	}

	r.providers[t] = provider
	return nil
}

// RegisterFunc binds a lazily constructed provider to a subject type. The
// factory runs once, on first Resolve, and the result is memoized.
func (r *ProviderRegistry) RegisterFunc(t SubjectType, factory ProviderFunc) error {
	if t == "" {
		return oops.Code("AUTH_INVALID_SUBJECT_TYPE").Errorf("subject type cannot be empty")
	}
	if factory == nil {
		return oops.Code("AUTH_INVALID_PROVIDER").
			With("subject_type", string(t)).
			Errorf("provider factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[t]; ok {
		return oops.Code("AUTH_DUPLICATE_SUBJECT_TYPE").
			With("subject_type", string(t)).
			Errorf("subject type %q already registered", t)
	}
	if _, ok := r.factories[t]; ok {
		return oops.Code("AUTH_DUPLICATE_SUBJECT_TYPE").
			With("subject_type", string(t)).
			Errorf("subject type %q already registered", t)
	}

	r.factories[t] = factory
	return nil
}

// Resolve returns the provider for a subject type. Lazily registered
// providers are constructed on first call and cached.
func (r *ProviderRegistry) Resolve(t SubjectType) (SubjectAuthProvider, error) {
	r.mu.RLock()
	provider, ok := r.providers[t]
	r.mu.RUnlock()
	if ok {
		return provider, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another goroutine may have materialized the factory in between.
	if provider, ok := r.providers[t]; ok {
		return provider, nil
	}
	factory, ok := r.factories[t]
	if !ok {
		return nil, oops.Code("AUTH_UNKNOWN_SUBJECT_TYPE").
			With("subject_type", string(t)).
			Errorf("no auth provider registered for subject type %q", t)
	}

	provider = factory()
	if provider == nil {
		return nil, oops.Code("AUTH_INVALID_PROVIDER").
			With("subject_type", string(t)).
			Errorf("provider factory for subject type %q returned nil", t)
	}
	r.providers[t] = provider
	delete(r.factories, t)
	return provider, nil
}

// Types returns all registered subject types.
func (r *ProviderRegistry) Types() []SubjectType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]SubjectType, 0, len(r.providers)+len(r.factories))
	for t := range r.providers {
		types = append(types, t)
	}
	for t := range r.factories {
		types = append(types, t)
	}
	return types
}
