// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

package docstore

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/watif-social/recommender/internal/fault"
)

// Mongo implements Store over a MongoDB database. Every call retries
// transient failures per retrySchedule inside a circuit breaker, so a dead
// database degrades into fast StoreFault errors instead of piled-up waits.
type Mongo struct {
	db      *mongo.Database
	breaker *gobreaker.CircuitBreaker[interface{}]
}

// Interface compliance check.
var _ Store = (*Mongo)(nil)

// NewMongo wraps an already connected database handle.
func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{
		db:      db,
		breaker: newBreaker("mongo"),
	}
}

// Connect dials MongoDB, pings it, and returns the adapter plus a disconnect
// function for shutdown.
func Connect(ctx context.Context, uri, database string) (*Mongo, func(context.Context) error, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fault.Wrap(fault.StoreFault, "mongo connect", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fault.Wrap(fault.StoreFault, "mongo ping", err)
	}
	return NewMongo(client.Database(database)), client.Disconnect, nil
}

// newBreaker builds the store circuit breaker. Business outcomes such as
// NotFound do not count against store health.
func newBreaker(name string) *gobreaker.CircuitBreaker[interface{}] {
	return gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !retryable(err)
		},
	})
}

// guard runs fn with retry inside the circuit breaker and maps breaker
// rejections onto StoreFault.
func (m *Mongo) guard(ctx context.Context, fn func() error) error {
	_, err := m.breaker.Execute(func() (interface{}, error) {
		return nil, retryWithBackoff(ctx, fn)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fault.Wrap(fault.StoreFault, "document store unavailable", err)
	}
	return err
}

// Get implements Store.
func (m *Mongo) Get(ctx context.Context, collection, id string, v interface{}) error {
	return m.guard(ctx, func() error {
		res := m.db.Collection(collection).FindOne(ctx, bson.M{"_id": id})
		if err := res.Err(); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return fault.Errorf(fault.NotFound, "%s/%s not found", collection, id)
			}
			return fault.Wrap(fault.StoreFault, "find one", err)
		}
		if err := res.Decode(v); err != nil {
			return fault.Wrap(fault.StoreFault, "decode document", err)
		}
		return nil
	})
}

// Find implements Store.
func (m *Mongo) Find(ctx context.Context, collection string, filter, projection interface{}) (Cursor, error) {
	if filter == nil {
		filter = bson.M{}
	}
	var cur Cursor
	err := m.guard(ctx, func() error {
		opts := options.Find()
		if projection != nil {
			opts.SetProjection(projection)
		}
		c, err := m.db.Collection(collection).Find(ctx, filter, opts)
		if err != nil {
			return fault.Wrap(fault.StoreFault, "find", err)
		}
		cur = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cur, nil
}

// UpdateEmbedding implements Store.
func (m *Mongo) UpdateEmbedding(ctx context.Context, collection, id string, vector []float64, at time.Time) error {
	return m.guard(ctx, func() error {
		update := bson.M{"$set": bson.M{"embedding": bson.M{
			"date":   at.UTC().Format(time.RFC3339Nano),
			"vector": vector,
		}}}
		res, err := m.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, update)
		if err != nil {
			return fault.Wrap(fault.StoreFault, "update embedding", err)
		}
		if res.MatchedCount == 0 {
			return fault.Errorf(fault.NotFound, "%s/%s not found", collection, id)
		}
		return nil
	})
}

// Ping implements Store.
func (m *Mongo) Ping(ctx context.Context) error {
	return m.guard(ctx, func() error {
		if err := m.db.Client().Ping(ctx, nil); err != nil {
			return fault.Wrap(fault.StoreFault, "mongo ping", err)
		}
		return nil
	})
}
