// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

// Package middleware provides HTTP middleware shared by the API router:
// request-id propagation into the logging context and Prometheus request
// instrumentation. Rate limiting and CORS come from the chi ecosystem and
// are wired directly in internal/api.
package middleware
