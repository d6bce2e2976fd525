// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

// Package api exposes the recommendation service over HTTP.
//
// Routes:
//
//	GET  /recommend/{engine}/{kind}  ranked ids for a user
//	GET  /health                     server mode probe
//	POST /token                      credential exchange for a JWT
//	GET  /me                         the authenticated user's document
//	GET  /metrics                    prometheus
//
// Engines are selected by code (JA, MC, EM, case-insensitive) and kinds are
// users, posts or threads. Every recommendation response is a single-key
// object, e.g. {"recommended_users": [...]}; errors use the envelope
// {"error": {"code": ..., "message": ...}}.
package api
