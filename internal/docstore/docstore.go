// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

// Package docstore adapts the MongoDB document database that holds the
// social data (users, posts, threads, interests, keys, roles).
//
// MongoDB is the source of truth: the recommendation engines read documents
// through this package, the embedding builder caches profile vectors back
// into it, and the projector streams it into the graph store.
//
// Store is the low-level surface; Entities layers typed accessors for the
// domain documents on top. Mongo is the production implementation, Memory
// the map-backed one for tests and local runs.
package docstore

import (
	"context"
	"time"

	"github.com/watif-social/recommender/internal/fault"
	"github.com/watif-social/recommender/internal/logging"
	"github.com/watif-social/recommender/internal/metrics"
)

// Cursor iterates a result set lazily. It matches the shape of
// *mongo.Cursor so the Mongo adapter can return driver cursors directly.
type Cursor interface {
	Next(ctx context.Context) bool
	Decode(v interface{}) error
	Err() error
	Close(ctx context.Context) error
}

// Store is the low-level document store surface.
type Store interface {
	// Get loads the document with the given _id into v.
	// Returns a fault.NotFound error when the document is absent.
	Get(ctx context.Context, collection, id string, v interface{}) error

	// Find returns a cursor over documents matching filter. A nil filter
	// matches everything; a nil projection returns full documents.
	Find(ctx context.Context, collection string, filter, projection interface{}) (Cursor, error)

	// UpdateEmbedding atomically replaces the embedding sub-document of the
	// identified document. Returns fault.NotFound when the document is absent.
	UpdateEmbedding(ctx context.Context, collection, id string, vector []float64, at time.Time) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}

// retrySchedule is the backoff applied between attempts of a transient
// store failure: first retry after 100ms, second after 400ms.
var retrySchedule = []time.Duration{100 * time.Millisecond, 400 * time.Millisecond}

// retryable reports whether an error indicates a transient store problem.
// Business outcomes (missing documents, bad input, auth) and context ends
// are never retried.
func retryable(err error) bool {
	switch fault.KindOf(err) {
	case fault.NotFound, fault.InvalidParam, fault.InvalidWeights,
		fault.ShapeMismatch, fault.Unauthorized, fault.Cancelled, fault.Timeout:
		return false
	}
	return true
}

// retryWithBackoff executes fn, retrying transient failures per
// retrySchedule. The context is checked before each attempt and during
// backoff waits.
func retryWithBackoff(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err = fn()
		if err == nil {
			return nil
		}
		if !retryable(err) || attempt >= len(retrySchedule) {
			return err
		}

		delay := retrySchedule[attempt]
		metrics.RecordStoreRetry("mongo")
		logging.Warn().Err(err).Int("attempt", attempt+1).Dur("delay", delay).
			Msg("Retrying document store operation")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
