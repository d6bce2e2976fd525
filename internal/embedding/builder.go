// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

// Package embedding builds entity profile vectors over the social graph.
//
// An entity's embedding summarizes its own content plus its neighborhood:
// a user is blended from their interests, description and followed users; a
// post from its tags, title, content and author; a thread from its owner,
// name, members and posts. Every blend is a scaled average (vecmath.ScaledAvg)
// of (weight, subvector) pairs; pairs whose neighbor set is empty are dropped
// and the pair count shrinks accordingly.
//
// The follow graph is cyclic, so the user composition is guarded by a
// per-operation reentrance set: when the recursion re-enters a user already
// on the stack, that call returns the base embedding (interests and
// description only, weights renormalized) instead of recursing further.
//
// Computed vectors are cached in the owning document under the "embedding"
// key with a TTL. Concurrent recomputation of the same entity is allowed;
// the vector is a pure function of its inputs, so last-writer-wins is safe.
package embedding

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/watif-social/recommender/internal/docstore"
	"github.com/watif-social/recommender/internal/encoder"
	"github.com/watif-social/recommender/internal/fault"
	"github.com/watif-social/recommender/internal/logging"
	"github.com/watif-social/recommender/internal/metrics"
	"github.com/watif-social/recommender/internal/social"
	"github.com/watif-social/recommender/internal/vecmath"
)

// Text prefixes distinguish the encoded fields of an entity; they keep the
// title and body of a post from colliding in feature space.
const (
	titlePrefix   = "Title:\n"
	contentPrefix = "Content:\n"
	threadPrefix  = "Discussion name:\n"
)

// writeStripes is the number of mutexes the write-back path shards document
// writes over. Striping replaces a single global write mutex; two concurrent
// cache writes only contend when their ids hash to the same stripe.
const writeStripes = 64

// Builder computes and caches entity embeddings. Safe for concurrent use;
// each public call owns its reentrance set.
type Builder struct {
	docs    *docstore.Entities
	enc     *encoder.Encoder
	ttl     time.Duration
	weights Weights
	now     func() time.Time

	stripes [writeStripes]sync.Mutex
}

// New creates a builder. Weights are validated here so that every later
// computation can assume a coherent policy.
func New(docs *docstore.Entities, enc *encoder.Encoder, ttl time.Duration, weights Weights) (*Builder, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Builder{
		docs:    docs,
		enc:     enc,
		ttl:     ttl,
		weights: weights,
		now:     time.Now,
	}, nil
}

// Dim returns the vector width of the underlying encoder.
func (b *Builder) Dim() int { return b.enc.Dim() }

// reentrance is the per-operation set of user ids currently on the recursion
// stack. It is created once per public call and never shared.
type reentrance map[social.ID]struct{}

// User returns the embedding of a user, from cache when fresh.
func (b *Builder) User(ctx context.Context, id social.ID) ([]float64, error) {
	return b.userVec(ctx, id, make(reentrance))
}

// Post returns the embedding of a post, from cache when fresh.
func (b *Builder) Post(ctx context.Context, id social.ID) ([]float64, error) {
	return b.postVec(ctx, id, make(reentrance))
}

// Thread returns the embedding of a thread, from cache when fresh.
func (b *Builder) Thread(ctx context.Context, id social.ID) ([]float64, error) {
	return b.threadVec(ctx, id, make(reentrance))
}

// Interest returns the embedding of an interest, from cache when fresh.
func (b *Builder) Interest(ctx context.Context, id social.ID) ([]float64, error) {
	return b.interestVec(ctx, id)
}

// Key returns the embedding of a tag, from cache when fresh.
func (b *Builder) Key(ctx context.Context, id social.ID) ([]float64, error) {
	return b.keyVec(ctx, id)
}

// Fresh reports whether a cached embedding is still valid under the
// builder's TTL.
func (b *Builder) Fresh(e *social.Embedding) bool {
	return e.Fresh(b.now(), b.ttl)
}

// userVec computes E(u). When id is already on the reentrance stack the call
// returns the base embedding instead of recursing: interests and description
// only, weights renormalized to sum to 1, and nothing cached.
func (b *Builder) userVec(ctx context.Context, id social.ID, seen reentrance) ([]float64, error) {
	if ctx.Err() != nil {
		return nil, fault.FromContext(ctx)
	}

	u, err := b.docs.User(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Fresh(u.Embedding) {
		metrics.RecordEmbeddingCacheHit(social.CollectionUsers)
		return u.Embedding.Vector, nil
	}
	metrics.RecordEmbeddingCacheMiss(social.CollectionUsers)

	if _, cycling := seen[id]; cycling {
		return b.userBase(ctx, u)
	}
	seen[id] = struct{}{}
	defer delete(seen, id)

	pairs := make([]vecmath.WeightedVec, 0, 3)

	interestsMean, err := b.interestMean(ctx, u.Interests)
	if err != nil {
		return nil, err
	}
	if interestsMean != nil {
		pairs = append(pairs, vecmath.WeightedVec{Weight: b.weights.User.Interests, Vec: interestsMean})
	}

	pairs = append(pairs, vecmath.WeightedVec{Weight: b.weights.User.Description, Vec: b.enc.Encode(u.Description)})

	followVecs := make([][]float64, 0, len(u.Follow))
	for _, f := range u.Follow {
		if ctx.Err() != nil {
			return nil, fault.FromContext(ctx)
		}
		v, err := b.userVec(ctx, f, seen)
		if err != nil {
			if fault.Is(err, fault.NotFound) {
				continue
			}
			return nil, err
		}
		followVecs = append(followVecs, v)
	}
	if len(followVecs) > 0 {
		mean, err := vecmath.Mean(followVecs)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, vecmath.WeightedVec{Weight: b.weights.User.Follows, Vec: mean})
	}

	vec, err := vecmath.ScaledAvg(pairs)
	if err != nil {
		return nil, err
	}
	b.writeBack(ctx, social.CollectionUsers, id, vec)
	return vec, nil
}

// userBase is the cycle fallback: the follow term is omitted and the two
// remaining weights are renormalized to sum to 1. Base vectors are never
// cached; they are valid only relative to the operation that hit the cycle.
func (b *Builder) userBase(ctx context.Context, u *social.User) ([]float64, error) {
	wInt := b.weights.User.Interests
	wDesc := b.weights.User.Description
	total := wInt + wDesc

	pairs := make([]vecmath.WeightedVec, 0, 2)
	interestsMean, err := b.interestMean(ctx, u.Interests)
	if err != nil {
		return nil, err
	}
	if interestsMean != nil {
		pairs = append(pairs, vecmath.WeightedVec{Weight: wInt / total, Vec: interestsMean})
	}
	pairs = append(pairs, vecmath.WeightedVec{Weight: wDesc / total, Vec: b.enc.Encode(u.Description)})
	return vecmath.ScaledAvg(pairs)
}

// interestMean averages the embeddings of an interest set. Missing interests
// are dropped; an empty or fully-dangling set yields (nil, nil) so the caller
// can drop the pair.
func (b *Builder) interestMean(ctx context.Context, ids []social.ID) ([]float64, error) {
	vecs := make([][]float64, 0, len(ids))
	for _, id := range ids {
		if ctx.Err() != nil {
			return nil, fault.FromContext(ctx)
		}
		v, err := b.interestVec(ctx, id)
		if err != nil {
			if fault.Is(err, fault.NotFound) {
				continue
			}
			return nil, err
		}
		vecs = append(vecs, v)
	}
	if len(vecs) == 0 {
		return nil, nil
	}
	return vecmath.Mean(vecs)
}

// postVec computes E(p).
func (b *Builder) postVec(ctx context.Context, id social.ID, seen reentrance) ([]float64, error) {
	if ctx.Err() != nil {
		return nil, fault.FromContext(ctx)
	}

	p, err := b.docs.Post(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Fresh(p.Embedding) {
		metrics.RecordEmbeddingCacheHit(social.CollectionPosts)
		return p.Embedding.Vector, nil
	}
	metrics.RecordEmbeddingCacheMiss(social.CollectionPosts)

	pairs := make([]vecmath.WeightedVec, 0, 4)

	keyVecs := make([][]float64, 0, len(p.Keys))
	for _, k := range p.Keys {
		if ctx.Err() != nil {
			return nil, fault.FromContext(ctx)
		}
		v, err := b.keyVec(ctx, k)
		if err != nil {
			if fault.Is(err, fault.NotFound) {
				continue
			}
			return nil, err
		}
		keyVecs = append(keyVecs, v)
	}
	if len(keyVecs) > 0 {
		mean, err := vecmath.Mean(keyVecs)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, vecmath.WeightedVec{Weight: b.weights.Post.Keys, Vec: mean})
	}

	pairs = append(pairs,
		vecmath.WeightedVec{Weight: b.weights.Post.Title, Vec: b.enc.Encode(titlePrefix + p.Title)},
		vecmath.WeightedVec{Weight: b.weights.Post.Content, Vec: b.enc.Encode(contentPrefix + p.Content)},
	)

	author, err := b.userVec(ctx, p.Author, seen)
	switch {
	case err == nil:
		pairs = append(pairs, vecmath.WeightedVec{Weight: b.weights.Post.Author, Vec: author})
	case fault.Is(err, fault.NotFound):
		// dangling author, term dropped
	default:
		return nil, err
	}

	vec, err := vecmath.ScaledAvg(pairs)
	if err != nil {
		return nil, err
	}
	b.writeBack(ctx, social.CollectionPosts, id, vec)
	return vec, nil
}

// threadVec computes E(t).
func (b *Builder) threadVec(ctx context.Context, id social.ID, seen reentrance) ([]float64, error) {
	if ctx.Err() != nil {
		return nil, fault.FromContext(ctx)
	}

	t, err := b.docs.Thread(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Fresh(t.Embedding) {
		metrics.RecordEmbeddingCacheHit(social.CollectionThreads)
		return t.Embedding.Vector, nil
	}
	metrics.RecordEmbeddingCacheMiss(social.CollectionThreads)

	pairs := make([]vecmath.WeightedVec, 0, 4)

	owner, err := b.userVec(ctx, t.Owner, seen)
	switch {
	case err == nil:
		pairs = append(pairs, vecmath.WeightedVec{Weight: b.weights.Thread.Owner, Vec: owner})
	case fault.Is(err, fault.NotFound):
		// dangling owner, term dropped
	default:
		return nil, err
	}

	pairs = append(pairs, vecmath.WeightedVec{Weight: b.weights.Thread.Name, Vec: b.enc.Encode(threadPrefix + t.Name)})

	memberVecs := make([][]float64, 0, len(t.Members))
	for _, m := range t.Members {
		if ctx.Err() != nil {
			return nil, fault.FromContext(ctx)
		}
		v, err := b.userVec(ctx, m, seen)
		if err != nil {
			if fault.Is(err, fault.NotFound) {
				continue
			}
			return nil, err
		}
		memberVecs = append(memberVecs, v)
	}
	if len(memberVecs) > 0 {
		mean, err := vecmath.Mean(memberVecs)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, vecmath.WeightedVec{Weight: b.weights.Thread.Members, Vec: mean})
	}

	var postVecs [][]float64
	err = b.docs.PostsByThread(ctx, id, func(p *social.Post) error {
		if ctx.Err() != nil {
			return fault.FromContext(ctx)
		}
		v, err := b.postVec(ctx, p.ID, seen)
		if err != nil {
			if fault.Is(err, fault.NotFound) {
				return nil
			}
			return err
		}
		postVecs = append(postVecs, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(postVecs) > 0 {
		mean, err := vecmath.Mean(postVecs)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, vecmath.WeightedVec{Weight: b.weights.Thread.Posts, Vec: mean})
	}

	vec, err := vecmath.ScaledAvg(pairs)
	if err != nil {
		return nil, err
	}
	b.writeBack(ctx, social.CollectionThreads, id, vec)
	return vec, nil
}

// interestVec computes E(i) = encode(name).
func (b *Builder) interestVec(ctx context.Context, id social.ID) ([]float64, error) {
	i, err := b.docs.Interest(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Fresh(i.Embedding) {
		metrics.RecordEmbeddingCacheHit(social.CollectionInterests)
		return i.Embedding.Vector, nil
	}
	metrics.RecordEmbeddingCacheMiss(social.CollectionInterests)

	vec := b.enc.Encode(i.Name)
	b.writeBack(ctx, social.CollectionInterests, id, vec)
	return vec, nil
}

// keyVec computes E(k) = encode(name).
func (b *Builder) keyVec(ctx context.Context, id social.ID) ([]float64, error) {
	k, err := b.docs.Key(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Fresh(k.Embedding) {
		metrics.RecordEmbeddingCacheHit(social.CollectionKeys)
		return k.Embedding.Vector, nil
	}
	metrics.RecordEmbeddingCacheMiss(social.CollectionKeys)

	vec := b.enc.Encode(k.Name)
	b.writeBack(ctx, social.CollectionKeys, id, vec)
	return vec, nil
}

// writeBack caches a computed vector in its owning document. Writes to the
// same record serialize through a striped mutex; a failed write only costs a
// recomputation on the next read, so it is logged and swallowed.
func (b *Builder) writeBack(ctx context.Context, collection string, id social.ID, vec []float64) {
	lock := &b.stripes[stripeFor(collection, id)]
	lock.Lock()
	defer lock.Unlock()

	if err := b.docs.Store().UpdateEmbedding(ctx, collection, string(id), vec, b.now()); err != nil {
		logging.Warn().Err(err).
			Str("collection", collection).
			Str("id", string(id)).
			Msg("Embedding cache write failed")
	}
}

// stripeFor hashes (collection, id) onto a write stripe.
func stripeFor(collection string, id social.ID) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(collection))
	_, _ = h.Write([]byte{'/'})
	_, _ = h.Write([]byte(id))
	return int(h.Sum32() % writeStripes)
}
