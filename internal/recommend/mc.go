// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

package recommend

import (
	"context"

	"github.com/watif-social/recommender/internal/fault"
	"github.com/watif-social/recommender/internal/graphstore"
	"github.com/watif-social/recommender/internal/social"
)

// WeightedCount is the MC engine: candidates score by weighted counts of
// shared graph neighbors. The counting happens inside the graph store as one
// parameterized query per request, so the engine itself only carries the
// weight plumbing.
type WeightedCount struct {
	graph graphstore.Reader
}

// Interface compliance check.
var _ Engine = (*WeightedCount)(nil)

// NewWeightedCount creates the MC engine.
func NewWeightedCount(graph graphstore.Reader) *WeightedCount {
	return &WeightedCount{graph: graph}
}

// Code implements Engine.
func (m *WeightedCount) Code() string { return "MC" }

// DefaultWeights implements Engine.
func (m *WeightedCount) DefaultWeights(kind Kind) map[string]float64 {
	switch kind {
	case KindUsers:
		return map[string]float64{WeightFollow: 0.5, WeightInterest: 0.5}
	case KindPosts:
		return map[string]float64{WeightInterest: 0.7, WeightInteraction: 0.3}
	case KindThreads:
		return map[string]float64{WeightMember: 0.6, WeightInterest: 0.4}
	default:
		return nil
	}
}

// Score implements Engine.
//
// Users: w_f · |users both follow| + w_i · |common interests|. The follow
// term counts mutual targets, not mutual followers.
//
// Posts: w_i · |interests(u) ∩ tags(p)| + w_x · |LIKES/HAS_COMMENT edges
// from u to p|.
//
// Threads: w_m · |shared members with threads the user is in| + w_i ·
// |interests(u) ∩ tags(t)|. Threads never receive HAS_KEY edges from the
// projector, so the interest term matches nothing; it stays in the query for
// compatibility with clients that tune its weight.
func (m *WeightedCount) Score(ctx context.Context, kind Kind, user social.ID, p Params) ([]Scored, error) {
	var (
		scored []graphstore.Scored
		err    error
	)
	switch kind {
	case KindUsers:
		scored, err = m.graph.ScoreUsersByCounts(ctx, user, p.Weights[WeightFollow], p.Weights[WeightInterest], p.Limit)
	case KindPosts:
		scored, err = m.graph.ScorePostsByCounts(ctx, user, p.Weights[WeightInterest], p.Weights[WeightInteraction], p.Limit)
	case KindThreads:
		scored, err = m.graph.ScoreThreadsByCounts(ctx, user, p.Weights[WeightMember], p.Weights[WeightInterest], p.Limit)
	default:
		return nil, fault.Errorf(fault.InvalidParam, "MC engine does not rank %s", kind)
	}
	if err != nil {
		return nil, err
	}

	out := make([]Scored, len(scored))
	for i, s := range scored {
		out[i] = Scored{ID: s.ID, Score: s.Score}
	}
	return out, nil
}

// PostRank implements Engine. MC has no post-ranking policy.
func (m *WeightedCount) PostRank(_ Kind, ids []social.ID, _ Params) []social.ID {
	return ids
}
