// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

package recommend

import (
	"context"
	"math/rand"

	"github.com/watif-social/recommender/internal/fault"
	"github.com/watif-social/recommender/internal/graphstore"
	"github.com/watif-social/recommender/internal/social"
)

// Weight parameter names shared by the JA and MC engines.
const (
	WeightFollow      = "follow_weight"
	WeightInterest    = "interest_weight"
	WeightInteraction = "interaction_weight"
	WeightMember      = "member_weight"
)

// shuffleProbability is the per-position chance the JA post shuffle replaces
// a ranked post with the tail one.
const shuffleProbability = 0.2

// Jaccard is the JA engine: set-overlap similarity over the graph view.
type Jaccard struct {
	graph          graphstore.Reader
	candidateLimit int
}

// Interface compliance check.
var _ Engine = (*Jaccard)(nil)

// NewJaccard creates the JA engine. candidateLimit bounds the user
// candidates sampled per request.
func NewJaccard(graph graphstore.Reader, candidateLimit int) *Jaccard {
	return &Jaccard{graph: graph, candidateLimit: candidateLimit}
}

// Code implements Engine.
func (j *Jaccard) Code() string { return "JA" }

// DefaultWeights implements Engine. Posts score by a single Jaccard term, so
// only the user kind takes weights; threads are not offered.
func (j *Jaccard) DefaultWeights(kind Kind) map[string]float64 {
	if kind == KindUsers {
		return map[string]float64{WeightFollow: 0.4, WeightInterest: 0.6}
	}
	return nil
}

// Score implements Engine.
func (j *Jaccard) Score(ctx context.Context, kind Kind, user social.ID, p Params) ([]Scored, error) {
	switch kind {
	case KindUsers:
		return j.scoreUsers(ctx, user, p)
	case KindPosts:
		return j.scorePosts(ctx, user, p)
	default:
		return nil, fault.Errorf(fault.InvalidParam, "JA engine does not rank %s", kind)
	}
}

// scoreUsers scores each sampled candidate v by
//
//	(w_f · J(F(u), F(v)) + w_i · J(I(u), I(v))) / 2
//
// where F is the followed set and I the interest set. The trailing division
// by 2 is a compatibility constant inherited from the first deployment of
// this scoring; weights already sum to 1, so it scales every candidate
// equally and never changes the order.
func (j *Jaccard) scoreUsers(ctx context.Context, user social.ID, p Params) ([]Scored, error) {
	wf := p.Weights[WeightFollow]
	wi := p.Weights[WeightInterest]

	follows, err := j.graph.FollowedIDs(ctx, user)
	if err != nil {
		return nil, err
	}
	interests, err := j.graph.InterestIDs(ctx, user)
	if err != nil {
		return nil, err
	}
	fu := social.NewIDSet(follows)
	iu := social.NewIDSet(interests)

	candidates, err := j.graph.CandidateUserIDs(ctx, user, j.candidateLimit)
	if err != nil {
		return nil, err
	}

	scored := make([]Scored, 0, len(candidates))
	for _, v := range candidates {
		vFollows, err := j.graph.FollowedIDs(ctx, v)
		if err != nil {
			return nil, err
		}
		vInterests, err := j.graph.InterestIDs(ctx, v)
		if err != nil {
			return nil, err
		}
		score := (wf*social.Jaccard(fu, social.NewIDSet(vFollows)) +
			wi*social.Jaccard(iu, social.NewIDSet(vInterests))) / 2
		scored = append(scored, Scored{ID: v, Score: score})
	}
	return scored, nil
}

// scorePosts scores one (skip, limit) page of posts by tag overlap with the
// requester's authored tags. A requester who has never tagged a post falls
// back to interest overlap with each post's author.
func (j *Jaccard) scorePosts(ctx context.Context, user social.ID, p Params) ([]Scored, error) {
	page, err := j.graph.PostIDPage(ctx, p.Skip, p.Limit)
	if err != nil {
		return nil, err
	}

	authored, err := j.graph.AuthoredTagIDs(ctx, user)
	if err != nil {
		return nil, err
	}

	if len(authored) > 0 {
		tagsU := social.NewIDSet(authored)
		scored := make([]Scored, 0, len(page))
		for _, post := range page {
			tags, err := j.graph.PostTagIDs(ctx, post)
			if err != nil {
				return nil, err
			}
			scored = append(scored, Scored{ID: post, Score: social.Jaccard(tagsU, social.NewIDSet(tags))})
		}
		return scored, nil
	}

	interests, err := j.graph.InterestIDs(ctx, user)
	if err != nil {
		return nil, err
	}
	iu := social.NewIDSet(interests)
	scored := make([]Scored, 0, len(page))
	for _, post := range page {
		score := 0.0
		author, err := j.graph.PostAuthorID(ctx, post)
		switch {
		case err == nil:
			authorInterests, err := j.graph.InterestIDs(ctx, author)
			if err != nil {
				return nil, err
			}
			score = social.Jaccard(iu, social.NewIDSet(authorInterests))
		case fault.Is(err, fault.NotFound):
			// authorless post scores 0
		default:
			return nil, err
		}
		scored = append(scored, Scored{ID: post, Score: score})
	}
	return scored, nil
}

// PostRank implements Engine. For posts it runs the tail shuffle: walking
// positions from the front, each position has an independent 20% chance of
// having the current last element moved in front of it, shifting the rest
// right. Length and membership are preserved; only the order changes. The
// pass trades a little ranking fidelity for variety between pages. Seeded
// runs are reproducible; unseeded runs draw a random seed.
func (j *Jaccard) PostRank(kind Kind, ids []social.ID, p Params) []social.ID {
	if kind != KindPosts || len(ids) == 0 {
		return ids
	}

	seed := rand.Int63()
	if p.Seed != nil {
		seed = *p.Seed
	}
	rng := rand.New(rand.NewSource(seed))

	out := append([]social.ID(nil), ids...)
	for s := 0; s < len(out); s++ {
		if rng.Float64() < shuffleProbability {
			last := out[len(out)-1]
			copy(out[s+1:], out[s:len(out)-1])
			out[s] = last
		}
	}
	return out
}
