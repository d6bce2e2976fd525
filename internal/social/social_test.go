// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

package social

import (
	"testing"
	"time"
)

func TestJaccard(t *testing.T) {
	tests := []struct {
		name string
		a    []ID
		b    []ID
		want float64
	}{
		{
			name: "both empty",
			a:    nil,
			b:    nil,
			want: 0,
		},
		{
			name: "one empty",
			a:    []ID{"x"},
			b:    nil,
			want: 0,
		},
		{
			name: "identical",
			a:    []ID{"a", "b"},
			b:    []ID{"a", "b"},
			want: 1,
		},
		{
			name: "disjoint",
			a:    []ID{"a"},
			b:    []ID{"b"},
			want: 0,
		},
		{
			name: "one third overlap",
			a:    []ID{"u2", "u3"},
			b:    []ID{"u3", "u4"},
			want: 1.0 / 3.0,
		},
		{
			name: "duplicates collapse",
			a:    []ID{"a", "a", "b"},
			b:    []ID{"b"},
			want: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Jaccard(NewIDSet(tt.a), NewIDSet(tt.b))
			if diff := got - tt.want; diff > 1e-12 || diff < -1e-12 {
				t.Errorf("Jaccard(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestJaccardSymmetric(t *testing.T) {
	a := NewIDSet([]ID{"a", "b", "c"})
	b := NewIDSet([]ID{"b", "c", "d", "e"})
	if Jaccard(a, b) != Jaccard(b, a) {
		t.Errorf("Jaccard must be symmetric: %v vs %v", Jaccard(a, b), Jaccard(b, a))
	}
}

func TestEmbeddingFresh(t *testing.T) {
	now := time.Date(2026, 4, 12, 10, 0, 0, 0, time.UTC)
	ttl := 2 * time.Hour

	tests := []struct {
		name string
		emb  *Embedding
		want bool
	}{
		{
			name: "nil embedding",
			emb:  nil,
			want: false,
		},
		{
			name: "empty vector",
			emb:  &Embedding{Date: now.Format(time.RFC3339Nano)},
			want: false,
		},
		{
			name: "created just now",
			emb:  &Embedding{Date: now.Format(time.RFC3339Nano), Vector: []float64{1}},
			want: true,
		},
		{
			name: "within ttl",
			emb:  &Embedding{Date: now.Add(-time.Hour).Format(time.RFC3339Nano), Vector: []float64{1}},
			want: true,
		},
		{
			name: "exactly at ttl boundary",
			emb:  &Embedding{Date: now.Add(-ttl).Format(time.RFC3339Nano), Vector: []float64{1}},
			want: false,
		},
		{
			name: "expired",
			emb:  &Embedding{Date: now.Add(-3 * time.Hour).Format(time.RFC3339Nano), Vector: []float64{1}},
			want: false,
		},
		{
			name: "unparseable date is stale",
			emb:  &Embedding{Date: "yesterday-ish", Vector: []float64{1}},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.emb.Fresh(now, ttl); got != tt.want {
				t.Errorf("Fresh() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIDSetContains(t *testing.T) {
	s := NewIDSet([]ID{"u1", "u2"})
	if !s.Contains("u1") {
		t.Error("expected u1 in set")
	}
	if s.Contains("u3") {
		t.Error("did not expect u3 in set")
	}
}
