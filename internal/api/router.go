// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/watif-social/recommender/internal/auth"
	"github.com/watif-social/recommender/internal/config"
	"github.com/watif-social/recommender/internal/fault"
	"github.com/watif-social/recommender/internal/middleware"
)

// Router assembles the HTTP surface from its collaborators.
type Router struct {
	handler      *Handler
	authMW       *auth.Middleware
	loginLimiter *auth.RateLimiter
	cfg          *config.Config
}

// NewRouter creates a router. loginLimiter may be nil to disable the
// dedicated login throttle (tests, DISABLE_RATE_LIMIT).
func NewRouter(handler *Handler, authMW *auth.Middleware, loginLimiter *auth.RateLimiter, cfg *config.Config) *Router {
	return &Router{handler: handler, authMW: authMW, loginLimiter: loginLimiter, cfg: cfg}
}

// Setup builds the chi handler tree.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: rt.cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         86400,
	}))
	r.Use(middleware.Prometheus)
	r.Use(chimiddleware.Timeout(rt.cfg.Server.Timeout))

	// Health and metrics stay reachable in maintenance mode.
	r.Get("/health", rt.handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(rt.maintenanceGate)

		// The token endpoint is the brute-force target: its own per-IP
		// limiter on top of the shared one.
		r.With(rt.loginThrottle).Post("/token", rt.handler.Token)

		r.Group(func(r chi.Router) {
			if !rt.cfg.Auth.RateLimitDisabled {
				r.Use(httprate.Limit(rt.cfg.Auth.RateLimitReqs, rt.cfg.Auth.RateLimitWindow,
					httprate.WithKeyFuncs(httprate.KeyByIP),
					httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
						WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
					})))
			}
			r.Use(rt.authMW.RequireToken)

			r.Get("/recommend/{engine}/{kind}", rt.handler.Recommend)
			r.Get("/me", rt.handler.Me)
		})
	})

	return r
}

// maintenanceGate answers 503 on every route behind it while the server
// runs in maintenance mode.
func (rt *Router) maintenanceGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rt.handler.mode == config.ModeMaintenance {
			WriteError(w, http.StatusServiceUnavailable, "maintenance", "service is under maintenance")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loginThrottle applies the per-IP token-endpoint limiter.
func (rt *Router) loginThrottle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rt.loginLimiter != nil && !rt.loginLimiter.Allow(auth.ClientIP(r)) {
			WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many login attempts")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rejectUnauthorized is the auth middleware's error writer.
func rejectUnauthorized(w http.ResponseWriter, r *http.Request, err error) {
	if fault.KindOf(err) != fault.Unauthorized {
		err = fault.Wrap(fault.Unauthorized, "not authenticated", err)
	}
	WriteFault(w, r, err)
}

// NewAuthMiddleware builds the bearer-token middleware with the API's
// error envelope as its rejection writer.
func NewAuthMiddleware(manager *auth.Manager, disabled bool) *auth.Middleware {
	return auth.NewMiddleware(manager, disabled, rejectUnauthorized)
}
