// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

package recommend

import (
	"context"

	"github.com/watif-social/recommender/internal/docstore"
	"github.com/watif-social/recommender/internal/embedding"
	"github.com/watif-social/recommender/internal/fault"
	"github.com/watif-social/recommender/internal/social"
	"github.com/watif-social/recommender/internal/vecmath"
)

// Cosine is the EM engine: candidates score by cosine similarity between
// their profile embedding and the requester's. Candidates stream from the
// document store; a fresh cached vector is used directly, anything stale or
// absent is recomputed through the builder on the way past.
type Cosine struct {
	builder *embedding.Builder
	docs    *docstore.Entities
}

// Interface compliance check.
var _ Engine = (*Cosine)(nil)

// NewCosine creates the EM engine.
func NewCosine(builder *embedding.Builder, docs *docstore.Entities) *Cosine {
	return &Cosine{builder: builder, docs: docs}
}

// Code implements Engine.
func (c *Cosine) Code() string { return "EM" }

// DefaultWeights implements Engine. Blend weights are the embedding
// builder's policy, not a request parameter, so EM takes none.
func (c *Cosine) DefaultWeights(Kind) map[string]float64 { return nil }

// Score implements Engine. A requester with no document yields an empty
// result rather than an error; candidates that cannot produce a vector are
// skipped.
func (c *Cosine) Score(ctx context.Context, kind Kind, user social.ID, p Params) ([]Scored, error) {
	root, err := c.builder.User(ctx, user)
	if err != nil {
		if fault.Is(err, fault.NotFound) {
			return []Scored{}, nil
		}
		return nil, err
	}

	switch kind {
	case KindUsers:
		return c.scoreUsers(ctx, user, root)
	case KindPosts:
		return c.scorePosts(ctx, root)
	case KindThreads:
		return c.scoreThreads(ctx, root)
	default:
		return nil, fault.Errorf(fault.InvalidParam, "EM engine does not rank %s", kind)
	}
}

func (c *Cosine) scoreUsers(ctx context.Context, user social.ID, root []float64) ([]Scored, error) {
	var scored []Scored
	err := c.docs.EachUserCandidate(ctx, func(u *social.User) error {
		if u.ID == user {
			return nil
		}
		vec, err := c.candidateVec(ctx, u.Embedding, func() ([]float64, error) {
			return c.builder.User(ctx, u.ID)
		})
		if err != nil {
			return err
		}
		if vec == nil {
			return nil
		}
		scored = append(scored, Scored{ID: u.ID, Score: vecmath.Cosine(root, vec)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return scored, nil
}

func (c *Cosine) scorePosts(ctx context.Context, root []float64) ([]Scored, error) {
	var scored []Scored
	err := c.docs.EachPostCandidate(ctx, func(p *social.Post) error {
		vec, err := c.candidateVec(ctx, p.Embedding, func() ([]float64, error) {
			return c.builder.Post(ctx, p.ID)
		})
		if err != nil {
			return err
		}
		if vec == nil {
			return nil
		}
		scored = append(scored, Scored{ID: p.ID, Score: vecmath.Cosine(root, vec)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return scored, nil
}

func (c *Cosine) scoreThreads(ctx context.Context, root []float64) ([]Scored, error) {
	var scored []Scored
	err := c.docs.EachThreadCandidate(ctx, func(t *social.Thread) error {
		vec, err := c.candidateVec(ctx, t.Embedding, func() ([]float64, error) {
			return c.builder.Thread(ctx, t.ID)
		})
		if err != nil {
			return err
		}
		if vec == nil {
			return nil
		}
		scored = append(scored, Scored{ID: t.ID, Score: vecmath.Cosine(root, vec)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return scored, nil
}

// candidateVec returns a candidate's vector: the cached one when fresh,
// otherwise whatever compute produces. A candidate that disappears between
// the stream and the recompute is skipped with a nil vector.
func (c *Cosine) candidateVec(ctx context.Context, cached *social.Embedding, compute func() ([]float64, error)) ([]float64, error) {
	if c.builder.Fresh(cached) {
		return cached.Vector, nil
	}
	vec, err := compute()
	if err != nil {
		if fault.Is(err, fault.NotFound) {
			return nil, nil
		}
		return nil, err
	}
	return vec, nil
}

// PostRank implements Engine. EM has no post-ranking policy.
func (c *Cosine) PostRank(_ Kind, ids []social.ID, _ Params) []social.ID {
	return ids
}
