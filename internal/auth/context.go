// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package auth

import "context"

// ctxKey is the private type for context keys in this package.
type ctxKey int

const (
	currentAuthKey ctxKey = iota
	currentSubjectKey
	postLoginRedirectKey
	clientIPKey
)

// WithCurrentAuth returns a context carrying the authenticated credential
// record. The value lives only as long as the request context that set it;
// concurrent requests never share it.
func WithCurrentAuth(ctx context.Context, ua *UserAuth) context.Context {
	return context.WithValue(ctx, currentAuthKey, ua)
}

// CurrentAuth returns the credential record for the current request, if any.
func CurrentAuth(ctx context.Context) (*UserAuth, bool) {
	ua, ok := ctx.Value(currentAuthKey).(*UserAuth)
	return ua, ok && ua != nil
}

// WithCurrentSubject returns a context carrying the authenticated subject.
func WithCurrentSubject(ctx context.Context, subject Subject) context.Context {
	return context.WithValue(ctx, currentSubjectKey, subject)
}

// CurrentSubject returns the subject for the current request, if any.
func CurrentSubject(ctx context.Context) (Subject, bool) {
	subject, ok := ctx.Value(currentSubjectKey).(Subject)
	return subject, ok && subject != nil
}

// WithPostLoginRedirect returns a context carrying the URL to redirect to
// after a successful login.
func WithPostLoginRedirect(ctx context.Context, url string) context.Context {
	return context.WithValue(ctx, postLoginRedirectKey, url)
}

// PostLoginRedirect returns the post-login redirect URL, or "" if unset.
func PostLoginRedirect(ctx context.Context) string {
	url, _ := ctx.Value(postLoginRedirectKey).(string)
	return url
}

// WithClientIP returns a context carrying the request's client IP. The web
// layer sets this before calling into the core; Login records it as the
// last-login origin.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIP returns the request's client IP, or "" if unset.
func ClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}
