// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

package auth

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/watif-social/recommender/internal/fault"
)

// Principal is the authenticated caller attached to the request context.
type Principal struct {
	Username  string
	Role      string
	Anonymous bool
}

type contextKey int

const principalKey contextKey = iota

// WithPrincipal returns a context carrying the principal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the principal set by the middleware.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// Middleware authenticates requests. With auth disabled it injects an
// anonymous principal instead of checking tokens, so handlers never need to
// know which mode the server runs in.
type Middleware struct {
	manager  *Manager
	disabled bool
	reject   func(w http.ResponseWriter, r *http.Request, err error)
}

// NewMiddleware creates the bearer-token middleware. reject writes the
// error response; it must set the status code itself.
func NewMiddleware(manager *Manager, disabled bool, reject func(http.ResponseWriter, *http.Request, error)) *Middleware {
	return &Middleware{manager: manager, disabled: disabled, reject: reject}
}

// RequireToken wraps a handler so it only runs with a valid bearer token
// (or always, with an anonymous principal, when auth is disabled).
func (m *Middleware) RequireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.disabled {
			ctx := WithPrincipal(r.Context(), Principal{Username: "anonymous", Anonymous: true})
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		token, err := BearerToken(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			m.reject(w, r, err)
			return
		}
		claims, err := m.manager.ValidateToken(token)
		if err != nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			m.reject(w, r, err)
			return
		}

		ctx := WithPrincipal(r.Context(), Principal{Username: claims.Subject, Role: claims.Role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fault.New(fault.Unauthorized, "not authenticated")
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", fault.New(fault.Unauthorized, "invalid authorization header")
	}
	return strings.TrimSpace(token), nil
}

// ClientIP returns the caller's address for rate limiting and audit logs.
// chi's RealIP middleware has already folded X-Forwarded-For into RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
