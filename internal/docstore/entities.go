// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

package docstore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/watif-social/recommender/internal/fault"
	"github.com/watif-social/recommender/internal/social"
)

// Entities layers typed accessors for the domain documents over a Store.
// Every reader in the service (engines, embedding builder, projector, auth)
// goes through this type rather than decoding raw documents itself.
type Entities struct {
	store Store
}

// NewEntities wraps a store.
func NewEntities(store Store) *Entities {
	return &Entities{store: store}
}

// Store exposes the underlying low-level store.
func (e *Entities) Store() Store { return e.store }

// User loads one user document.
func (e *Entities) User(ctx context.Context, id social.ID) (*social.User, error) {
	var u social.User
	if err := e.store.Get(ctx, social.CollectionUsers, string(id), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// UserByUsername loads the user document matching a login name. Used by the
// token endpoint only.
func (e *Entities) UserByUsername(ctx context.Context, username string) (*social.User, error) {
	cur, err := e.store.Find(ctx, social.CollectionUsers, bson.M{"username": username}, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cur.Close(ctx) }()

	if !cur.Next(ctx) {
		if err := cur.Err(); err != nil {
			return nil, fault.Wrap(fault.StoreFault, "user lookup", err)
		}
		return nil, fault.Errorf(fault.NotFound, "user %q not found", username)
	}
	var u social.User
	if err := cur.Decode(&u); err != nil {
		return nil, fault.Wrap(fault.StoreFault, "decode user", err)
	}
	return &u, nil
}

// Post loads one post document.
func (e *Entities) Post(ctx context.Context, id social.ID) (*social.Post, error) {
	var p social.Post
	if err := e.store.Get(ctx, social.CollectionPosts, string(id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Thread loads one thread document.
func (e *Entities) Thread(ctx context.Context, id social.ID) (*social.Thread, error) {
	var t social.Thread
	if err := e.store.Get(ctx, social.CollectionThreads, string(id), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Interest loads one interest document.
func (e *Entities) Interest(ctx context.Context, id social.ID) (*social.Interest, error) {
	var i social.Interest
	if err := e.store.Get(ctx, social.CollectionInterests, string(id), &i); err != nil {
		return nil, err
	}
	return &i, nil
}

// Key loads one tag document.
func (e *Entities) Key(ctx context.Context, id social.ID) (*social.Key, error) {
	var k social.Key
	if err := e.store.Get(ctx, social.CollectionKeys, string(id), &k); err != nil {
		return nil, err
	}
	return &k, nil
}

// PostsByThread streams the posts published in a thread.
func (e *Entities) PostsByThread(ctx context.Context, thread social.ID, fn func(*social.Post) error) error {
	return e.each(ctx, social.CollectionPosts, bson.M{"id_thread": string(thread)}, nil, func(decode func(interface{}) error) error {
		var p social.Post
		if err := decode(&p); err != nil {
			return err
		}
		return fn(&p)
	})
}

// EachUser streams every user document.
func (e *Entities) EachUser(ctx context.Context, fn func(*social.User) error) error {
	return e.each(ctx, social.CollectionUsers, nil, nil, func(decode func(interface{}) error) error {
		var u social.User
		if err := decode(&u); err != nil {
			return err
		}
		return fn(&u)
	})
}

// EachPost streams every post document.
func (e *Entities) EachPost(ctx context.Context, fn func(*social.Post) error) error {
	return e.each(ctx, social.CollectionPosts, nil, nil, func(decode func(interface{}) error) error {
		var p social.Post
		if err := decode(&p); err != nil {
			return err
		}
		return fn(&p)
	})
}

// EachThread streams every thread document.
func (e *Entities) EachThread(ctx context.Context, fn func(*social.Thread) error) error {
	return e.each(ctx, social.CollectionThreads, nil, nil, func(decode func(interface{}) error) error {
		var t social.Thread
		if err := decode(&t); err != nil {
			return err
		}
		return fn(&t)
	})
}

// candidateProjection limits candidate scans to the id and the cached
// embedding. Scorers recompute anything else they need by id, so shipping
// the full documents (password hashes included) through the cursor would be
// pure overhead.
var candidateProjection = bson.M{"_id": 1, "embedding": 1}

// EachUserCandidate streams every user as a scoring candidate, projected to
// id and cached embedding.
func (e *Entities) EachUserCandidate(ctx context.Context, fn func(*social.User) error) error {
	return e.each(ctx, social.CollectionUsers, nil, candidateProjection, func(decode func(interface{}) error) error {
		var u social.User
		if err := decode(&u); err != nil {
			return err
		}
		return fn(&u)
	})
}

// EachPostCandidate streams every post as a scoring candidate, projected to
// id and cached embedding.
func (e *Entities) EachPostCandidate(ctx context.Context, fn func(*social.Post) error) error {
	return e.each(ctx, social.CollectionPosts, nil, candidateProjection, func(decode func(interface{}) error) error {
		var p social.Post
		if err := decode(&p); err != nil {
			return err
		}
		return fn(&p)
	})
}

// EachThreadCandidate streams every thread as a scoring candidate, projected
// to id and cached embedding.
func (e *Entities) EachThreadCandidate(ctx context.Context, fn func(*social.Thread) error) error {
	return e.each(ctx, social.CollectionThreads, nil, candidateProjection, func(decode func(interface{}) error) error {
		var t social.Thread
		if err := decode(&t); err != nil {
			return err
		}
		return fn(&t)
	})
}

// EachInterest streams every interest document.
func (e *Entities) EachInterest(ctx context.Context, fn func(*social.Interest) error) error {
	return e.each(ctx, social.CollectionInterests, nil, nil, func(decode func(interface{}) error) error {
		var i social.Interest
		if err := decode(&i); err != nil {
			return err
		}
		return fn(&i)
	})
}

// EachKey streams every tag document.
func (e *Entities) EachKey(ctx context.Context, fn func(*social.Key) error) error {
	return e.each(ctx, social.CollectionKeys, nil, nil, func(decode func(interface{}) error) error {
		var k social.Key
		if err := decode(&k); err != nil {
			return err
		}
		return fn(&k)
	})
}

// EachRole streams every role document.
func (e *Entities) EachRole(ctx context.Context, fn func(*social.Role) error) error {
	return e.each(ctx, social.CollectionRoles, nil, nil, func(decode func(interface{}) error) error {
		var r social.Role
		if err := decode(&r); err != nil {
			return err
		}
		return fn(&r)
	})
}

// Sentinel returned by streaming callbacks to stop iteration early without
// surfacing an error to the caller.
var ErrStopIteration = fault.New(fault.Unknown, "stop iteration")

// each drives a cursor over a collection, decoding each document through the
// supplied adapter. A callback returning ErrStopIteration ends the walk
// cleanly.
func (e *Entities) each(ctx context.Context, collection string, filter, projection interface{}, fn func(decode func(interface{}) error) error) error {
	cur, err := e.store.Find(ctx, collection, filter, projection)
	if err != nil {
		return err
	}
	defer func() { _ = cur.Close(ctx) }()

	for cur.Next(ctx) {
		if err := fn(cur.Decode); err != nil {
			if err == ErrStopIteration {
				return nil
			}
			return err
		}
	}
	if err := cur.Err(); err != nil {
		return fault.Wrap(fault.StoreFault, collection+" cursor", err)
	}
	return nil
}
