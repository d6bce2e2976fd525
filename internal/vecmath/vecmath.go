// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

// Package vecmath is the vector kernel shared by the embedding builder and
// the cosine recommender. All operations work on fixed-dimension float64
// slices and never mutate their inputs.
package vecmath

import (
	"math"
	"sort"

	"github.com/watif-social/recommender/internal/fault"
)

// WeightedVec pairs a scalar weight with a vector for ScaledAvg.
type WeightedVec struct {
	Weight float64
	Vec    []float64
}

// ScaledAvg computes Σ wᵢ·vᵢ / N where N is the number of pairs.
//
// The denominator is the pair count, not the weight sum; rankings across the
// service depend on this exact form. All vectors must share one dimension or
// the call fails with a shape_mismatch fault. An empty input is a caller bug
// and fails with invalid_param.
func ScaledAvg(pairs []WeightedVec) ([]float64, error) {
	if len(pairs) == 0 {
		return nil, fault.New(fault.InvalidParam, "scaled average of zero vectors")
	}
	dim := len(pairs[0].Vec)
	if dim == 0 {
		return nil, fault.New(fault.ShapeMismatch, "zero-dimension vector")
	}
	out := make([]float64, dim)
	for i, p := range pairs {
		if len(p.Vec) != dim {
			return nil, fault.Errorf(fault.ShapeMismatch,
				"vector %d has dimension %d, want %d", i, len(p.Vec), dim)
		}
		for j, v := range p.Vec {
			out[j] += p.Weight * v
		}
	}
	n := float64(len(pairs))
	for j := range out {
		out[j] /= n
	}
	return out, nil
}

// Mean averages a non-empty set of equal-dimension vectors. It is ScaledAvg
// with unit weights and shares its error rules.
func Mean(vectors [][]float64) ([]float64, error) {
	pairs := make([]WeightedVec, len(vectors))
	for i, v := range vectors {
		pairs[i] = WeightedVec{Weight: 1, Vec: v}
	}
	return ScaledAvg(pairs)
}

// Scale returns w·v as a new vector.
func Scale(v []float64, w float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = w * x
	}
	return out
}

// Cosine returns (u·v)/(‖u‖·‖v‖). Vectors with an undefined norm, and
// vectors of different dimensions, score 0 rather than erroring: a candidate
// with a degenerate embedding simply never ranks.
func Cosine(u, v []float64) float64 {
	if len(u) != len(v) || len(u) == 0 {
		return 0
	}
	var dot, nu, nv float64
	for i := range u {
		dot += u[i] * v[i]
		nu += u[i] * u[i]
		nv += v[i] * v[i]
	}
	if nu == 0 || nv == 0 {
		return 0
	}
	return dot / (math.Sqrt(nu) * math.Sqrt(nv))
}

// ArgsortTopK returns the indices of the k highest scores, descending.
// Equal scores keep ascending index order, so results are stable across
// calls. The result has length min(k, len(scores)); k <= 0 yields an empty
// slice.
func ArgsortTopK(scores []float64, k int) []int {
	if k <= 0 || len(scores) == 0 {
		return []int{}
	}
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})
	if k > len(idx) {
		k = len(idx)
	}
	return idx[:k]
}
