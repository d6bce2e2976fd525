// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

package docstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/watif-social/recommender/internal/fault"
	"github.com/watif-social/recommender/internal/social"
)

func TestMemoryGetRoundtrip(t *testing.T) {
	store := NewMemory()
	want := social.User{ID: "u1", Username: "alice", Name: "Alice"}
	if err := store.Put(social.CollectionUsers, "u1", want); err != nil {
		t.Fatalf("Put: %v", err)
	}

	var got social.User
	if err := store.Get(context.Background(), social.CollectionUsers, "u1", &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != want.ID || got.Username != want.Username || got.Name != want.Name {
		t.Errorf("Get = %+v, want %+v", got, want)
	}
}

func TestMemoryGetMissing(t *testing.T) {
	store := NewMemory()
	var got social.User
	err := store.Get(context.Background(), social.CollectionUsers, "nope", &got)
	if fault.KindOf(err) != fault.NotFound {
		t.Errorf("Get missing = %v, want NotFound", err)
	}
}

func TestMemoryFindFilter(t *testing.T) {
	store := NewMemory()
	posts := []social.Post{
		{ID: "p1", Thread: "t1", Author: "u1"},
		{ID: "p2", Thread: "t2", Author: "u1"},
		{ID: "p3", Thread: "t1", Author: "u2"},
	}
	for _, p := range posts {
		if err := store.Put(social.CollectionPosts, string(p.ID), p); err != nil {
			t.Fatalf("Put %s: %v", p.ID, err)
		}
	}

	tests := []struct {
		name   string
		filter interface{}
		want   []social.ID
	}{
		{name: "nil filter returns all, id ascending", filter: nil, want: []social.ID{"p1", "p2", "p3"}},
		{name: "equality filter", filter: bson.M{"id_thread": "t1"}, want: []social.ID{"p1", "p3"}},
		{name: "no match", filter: bson.M{"id_thread": "t9"}, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cur, err := store.Find(context.Background(), social.CollectionPosts, tt.filter, nil)
			if err != nil {
				t.Fatalf("Find: %v", err)
			}
			defer func() { _ = cur.Close(context.Background()) }()

			var got []social.ID
			for cur.Next(context.Background()) {
				var p social.Post
				if err := cur.Decode(&p); err != nil {
					t.Fatalf("Decode: %v", err)
				}
				got = append(got, p.ID)
			}
			if cur.Err() != nil {
				t.Fatalf("cursor error: %v", cur.Err())
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestMemoryFindUnsupportedFilter(t *testing.T) {
	store := NewMemory()
	_, err := store.Find(context.Background(), social.CollectionPosts, 42, nil)
	if fault.KindOf(err) != fault.InvalidParam {
		t.Errorf("Find = %v, want InvalidParam", err)
	}
}

func TestMemoryUpdateEmbedding(t *testing.T) {
	store := NewMemory()
	if err := store.Put(social.CollectionUsers, "u1", social.User{ID: "u1", Username: "alice"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := store.UpdateEmbedding(context.Background(), social.CollectionUsers, "u1", []float64{0.5, -0.25}, at); err != nil {
		t.Fatalf("UpdateEmbedding: %v", err)
	}

	var got social.User
	if err := store.Get(context.Background(), social.CollectionUsers, "u1", &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Embedding == nil {
		t.Fatal("embedding not written")
	}
	if got.Embedding.CreatedAt() != at {
		t.Errorf("embedding date = %v, want %v", got.Embedding.CreatedAt(), at)
	}
	if len(got.Embedding.Vector) != 2 || got.Embedding.Vector[0] != 0.5 || got.Embedding.Vector[1] != -0.25 {
		t.Errorf("embedding vector = %v", got.Embedding.Vector)
	}

	err := store.UpdateEmbedding(context.Background(), social.CollectionUsers, "ghost", []float64{1}, at)
	if fault.KindOf(err) != fault.NotFound {
		t.Errorf("UpdateEmbedding missing = %v, want NotFound", err)
	}
}

func TestRetryWithBackoffTransient(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), func() error {
		calls++
		if calls < 3 {
			return fault.New(fault.StoreFault, "flaky")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("retryWithBackoff: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryWithBackoffExhausted(t *testing.T) {
	calls := 0
	err := retryWithBackoff(context.Background(), func() error {
		calls++
		return fault.New(fault.StoreFault, "down")
	})
	if fault.KindOf(err) != fault.StoreFault {
		t.Errorf("err = %v, want StoreFault", err)
	}
	if calls != len(retrySchedule)+1 {
		t.Errorf("calls = %d, want %d", calls, len(retrySchedule)+1)
	}
}

func TestRetryWithBackoffBusinessOutcomesNotRetried(t *testing.T) {
	tests := []struct {
		name string
		kind fault.Kind
	}{
		{name: "not found", kind: fault.NotFound},
		{name: "invalid param", kind: fault.InvalidParam},
		{name: "invalid weights", kind: fault.InvalidWeights},
		{name: "unauthorized", kind: fault.Unauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := retryWithBackoff(context.Background(), func() error {
				calls++
				return fault.New(tt.kind, "final")
			})
			if fault.KindOf(err) != tt.kind {
				t.Errorf("err = %v, want kind %v", err, tt.kind)
			}
			if calls != 1 {
				t.Errorf("calls = %d, want 1", calls)
			}
		})
	}
}

func TestRetryWithBackoffCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := retryWithBackoff(ctx, func() error {
		t.Fatal("fn must not run on a dead context")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
