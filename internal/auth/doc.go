// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

// Package auth provides the authentication core for Gatehouse.
//
// # Domain Types
//
// UserAuth is the credential record (hashed password, salt, login metadata)
// bound to exactly one Subject via (subject_id, subject_type). Subjects are
// the underlying account entities (an admin row, an end-user row) owned by
// the enclosing application; the core reaches them only through a
// SubjectAuthProvider registered per SubjectType.
//
// # Services
//
// Service orchestrates the login state machine: credential verification,
// subject status gating, session tag lifecycle, and password change and
// recovery. The authenticated identity for a request is carried on the
// request context (see WithCurrentAuth and friends), never in package state,
// so concurrent requests cannot observe each other's identity.
//
// Session markers are stored per Platform through a TagStore. Each platform
// registers its own SessionBackend; an unregistered platform is a
// configuration defect and always fails hard.
package auth
