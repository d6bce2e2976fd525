// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

// Package recommend ranks users, posts and threads for a requesting user.
//
// Three engines implement the same Engine interface over different signals:
//
//   - JA scores candidates by Jaccard similarity of follow/interest (users)
//     or tag (posts) sets read from the graph store.
//   - MC scores candidates by weighted common-neighbor counts, pushed into
//     the graph store as a single parameterized query.
//   - EM scores candidates by cosine similarity of profile embeddings.
//
// A single Ranker drives whichever engine the request selects: it validates
// weights before any store access, obtains (id, score) pairs from the
// engine, orders them by descending score with ascending-id ties, truncates
// to the requested limit and finally applies the engine's post-ranking pass
// (only JA posts has one, a seeded thinning shuffle).
package recommend

import (
	"context"
	"sort"
	"time"

	"github.com/watif-social/recommender/internal/fault"
	"github.com/watif-social/recommender/internal/metrics"
	"github.com/watif-social/recommender/internal/social"
	"github.com/watif-social/recommender/internal/vecmath"
)

// Kind selects the entity type being recommended.
type Kind string

// Recommendation kinds.
const (
	KindUsers   Kind = "users"
	KindPosts   Kind = "posts"
	KindThreads Kind = "threads"
)

// ParseKind validates a kind string from the API path.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindUsers, KindPosts, KindThreads:
		return Kind(s), nil
	default:
		return "", fault.Errorf(fault.InvalidParam, "unknown recommendation kind %q", s)
	}
}

// Params carries per-request tuning. Weights are keyed by the engine's
// parameter names; absent entries take the engine defaults. Seed drives the
// JA post shuffle; nil draws a process-random seed.
type Params struct {
	Weights map[string]float64
	Limit   int
	Skip    int
	Seed    *int64
}

// Scored pairs a candidate id with its score.
type Scored struct {
	ID    social.ID
	Score float64
}

// Engine is one recommendation strategy.
type Engine interface {
	// Code is the engine selector used in API paths: JA, MC or EM.
	Code() string

	// DefaultWeights returns the weight tuple for a kind, or nil when the
	// engine takes no weights for it. The returned map is a fresh copy.
	DefaultWeights(kind Kind) map[string]float64

	// Score produces candidate scores. Weights in p are complete and
	// validated by the Ranker before this is called.
	Score(ctx context.Context, kind Kind, user social.ID, p Params) ([]Scored, error)

	// PostRank optionally reorders the final id list. Engines without a
	// post-ranking policy return ids unchanged.
	PostRank(kind Kind, ids []social.ID, p Params) []social.ID
}

// Registry maps engine codes to engines.
type Registry map[string]Engine

// NewRegistry builds a registry keyed by engine code.
func NewRegistry(engines ...Engine) Registry {
	r := make(Registry, len(engines))
	for _, e := range engines {
		r[e.Code()] = e
	}
	return r
}

// Get looks up an engine by code.
func (r Registry) Get(code string) (Engine, bool) {
	e, ok := r[code]
	return e, ok
}

// weightTolerance bounds |Σw − 1| for a valid weight tuple.
const weightTolerance = 1e-9

// mergeWeights overlays request weights on the engine defaults and validates
// the result: no unknown names, no negative entries, sum within tolerance
// of 1. A nil defaults map means the engine takes no weights for the kind
// and any supplied weight is rejected.
func mergeWeights(defaults, supplied map[string]float64) (map[string]float64, error) {
	if defaults == nil {
		if len(supplied) > 0 {
			return nil, fault.New(fault.InvalidParam, "engine takes no weights for this kind")
		}
		return nil, nil
	}

	merged := make(map[string]float64, len(defaults))
	for name, w := range defaults {
		merged[name] = w
	}
	for name, w := range supplied {
		if _, ok := merged[name]; !ok {
			return nil, fault.Errorf(fault.InvalidParam, "unknown weight %q", name)
		}
		merged[name] = w
	}

	sum := 0.0
	for name, w := range merged {
		if w < 0 {
			return nil, fault.Errorf(fault.InvalidWeights, "weight %q is negative", name)
		}
		sum += w
	}
	diff := sum - 1
	if diff < 0 {
		diff = -diff
	}
	if diff > weightTolerance {
		return nil, fault.Errorf(fault.InvalidWeights, "weights sum to %v, want 1", sum)
	}
	return merged, nil
}

// Ranker validates requests, runs an engine and orders its output.
type Ranker struct {
	defaultLimit int
	maxLimit     int
}

// NewRanker creates a ranker with the service's limit policy.
func NewRanker(defaultLimit, maxLimit int) *Ranker {
	return &Ranker{defaultLimit: defaultLimit, maxLimit: maxLimit}
}

// Recommend returns the ranked candidate ids, highest score first, ties
// broken by ascending id. Weight and limit validation happens before the
// engine touches any store.
func (r *Ranker) Recommend(ctx context.Context, engine Engine, kind Kind, user social.ID, p Params) ([]social.ID, error) {
	started := time.Now()
	ids, err := r.recommend(ctx, engine, kind, user, p)
	metrics.RecordEngineRequest(engine.Code(), string(kind), err, time.Since(started))
	return ids, err
}

func (r *Ranker) recommend(ctx context.Context, engine Engine, kind Kind, user social.ID, p Params) ([]social.ID, error) {
	if user == "" {
		return nil, fault.New(fault.InvalidParam, "user_id is required")
	}
	merged, err := mergeWeights(engine.DefaultWeights(kind), p.Weights)
	if err != nil {
		return nil, err
	}
	p.Weights = merged

	if p.Limit == 0 {
		p.Limit = r.defaultLimit
	}
	if p.Limit < 1 || p.Limit > r.maxLimit {
		return nil, fault.Errorf(fault.InvalidParam, "limit %d out of range [1, %d]", p.Limit, r.maxLimit)
	}
	if p.Skip < 0 {
		return nil, fault.Errorf(fault.InvalidParam, "skip %d is negative", p.Skip)
	}

	scored, err := engine.Score(ctx, kind, user, p)
	if err != nil {
		return nil, err
	}

	// Candidates sort by id first so that equal scores rank by ascending id
	// through the stable argsort.
	sort.Slice(scored, func(a, b int) bool { return scored[a].ID < scored[b].ID })
	scores := make([]float64, len(scored))
	for i, s := range scored {
		scores[i] = s.Score
	}
	top := vecmath.ArgsortTopK(scores, p.Limit)
	ids := make([]social.ID, len(top))
	for i, idx := range top {
		ids[i] = scored[idx].ID
	}
	return engine.PostRank(kind, ids, p), nil
}
