// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

package embedding

import (
	"github.com/watif-social/recommender/internal/fault"
)

// WeightTolerance is the numeric tolerance for "sums to 1" checks on weight
// tuples. Shared with the recommendation engines.
const WeightTolerance = 1e-9

// UserWeights blends the three components of a user embedding.
type UserWeights struct {
	Interests   float64
	Description float64
	Follows     float64
}

// PostWeights blends the four components of a post embedding.
type PostWeights struct {
	Keys    float64
	Title   float64
	Content float64
	Author  float64
}

// ThreadWeights blends the four components of a thread embedding.
type ThreadWeights struct {
	Owner   float64
	Name    float64
	Members float64
	Posts   float64
}

// Weights is the full composition policy of a Builder.
type Weights struct {
	User   UserWeights
	Post   PostWeights
	Thread ThreadWeights
}

// DefaultWeights returns the composition defaults.
func DefaultWeights() Weights {
	return Weights{
		User:   UserWeights{Interests: 0.4, Description: 0.2, Follows: 0.4},
		Post:   PostWeights{Keys: 0.35, Title: 0.35, Content: 0.2, Author: 0.1},
		Thread: ThreadWeights{Owner: 0.1, Name: 0.1, Members: 0.4, Posts: 0.4},
	}
}

// SumsToOne reports whether the tuple sums to 1 within WeightTolerance and
// has no negative entry.
func SumsToOne(weights ...float64) bool {
	sum := 0.0
	for _, w := range weights {
		if w < 0 {
			return false
		}
		sum += w
	}
	diff := sum - 1
	if diff < 0 {
		diff = -diff
	}
	return diff <= WeightTolerance
}

// Validate checks every tuple. Builders refuse invalid weights before any
// store access.
func (w Weights) Validate() error {
	if !SumsToOne(w.User.Interests, w.User.Description, w.User.Follows) {
		return fault.Errorf(fault.InvalidWeights,
			"user weights (%v, %v, %v) must be non-negative and sum to 1",
			w.User.Interests, w.User.Description, w.User.Follows)
	}
	if !SumsToOne(w.Post.Keys, w.Post.Title, w.Post.Content, w.Post.Author) {
		return fault.Errorf(fault.InvalidWeights,
			"post weights (%v, %v, %v, %v) must be non-negative and sum to 1",
			w.Post.Keys, w.Post.Title, w.Post.Content, w.Post.Author)
	}
	if !SumsToOne(w.Thread.Owner, w.Thread.Name, w.Thread.Members, w.Thread.Posts) {
		return fault.Errorf(fault.InvalidWeights,
			"thread weights (%v, %v, %v, %v) must be non-negative and sum to 1",
			w.Thread.Owner, w.Thread.Name, w.Thread.Members, w.Thread.Posts)
	}
	return nil
}
