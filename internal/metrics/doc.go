// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

// Package metrics exposes the service's Prometheus collectors.
//
// Collectors register on the default registry at import time via promauto;
// the API serves them on GET /metrics. Callers go through the Record*
// helpers rather than touching collectors directly.
package metrics
