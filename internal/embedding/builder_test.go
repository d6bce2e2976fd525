// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

package embedding

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/watif-social/recommender/internal/docstore"
	"github.com/watif-social/recommender/internal/encoder"
	"github.com/watif-social/recommender/internal/fault"
	"github.com/watif-social/recommender/internal/social"
	"github.com/watif-social/recommender/internal/vecmath"
)

const testDim = 16

func newTestBuilder(t *testing.T) (*Builder, *docstore.Memory, *encoder.Encoder) {
	t.Helper()
	mem := docstore.NewMemory()
	enc := encoder.New("test-model", testDim)
	b, err := New(docstore.NewEntities(mem), enc, 2*time.Hour, DefaultWeights())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b, mem, enc
}

func putUser(t *testing.T, mem *docstore.Memory, u social.User) {
	t.Helper()
	if err := mem.Put(social.CollectionUsers, string(u.ID), u); err != nil {
		t.Fatalf("put user %s: %v", u.ID, err)
	}
}

func putInterest(t *testing.T, mem *docstore.Memory, i social.Interest) {
	t.Helper()
	if err := mem.Put(social.CollectionInterests, string(i.ID), i); err != nil {
		t.Fatalf("put interest %s: %v", i.ID, err)
	}
}

func TestNewRejectsInvalidWeights(t *testing.T) {
	mem := docstore.NewMemory()
	enc := encoder.New("test-model", testDim)

	tests := []struct {
		name    string
		mutate  func(*Weights)
		wantErr bool
	}{
		{name: "defaults valid", mutate: func(*Weights) {}, wantErr: false},
		{name: "user sum too high", mutate: func(w *Weights) { w.User.Follows = 0.5 }, wantErr: true},
		{name: "negative weight", mutate: func(w *Weights) { w.Post.Author = -0.1; w.Post.Keys = 0.55 }, wantErr: true},
		{name: "thread off by epsilon above tolerance", mutate: func(w *Weights) { w.Thread.Posts += 1e-6 }, wantErr: true},
		{name: "within tolerance", mutate: func(w *Weights) { w.Thread.Posts += 1e-12 }, wantErr: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := DefaultWeights()
			tt.mutate(&w)
			_, err := New(docstore.NewEntities(mem), enc, time.Hour, w)
			if tt.wantErr && fault.KindOf(err) != fault.InvalidWeights {
				t.Fatalf("want InvalidWeights, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestInterestEmbeddingIsEncodedName(t *testing.T) {
	b, mem, enc := newTestBuilder(t)
	putInterest(t, mem, social.Interest{ID: "i1", Name: "astronomy"})

	got, err := b.Interest(context.Background(), "i1")
	if err != nil {
		t.Fatalf("Interest: %v", err)
	}
	if want := enc.Encode("astronomy"); !reflect.DeepEqual(got, want) {
		t.Errorf("interest embedding differs from encoded name")
	}

	// Write-back landed in the document.
	var i social.Interest
	if err := mem.Get(context.Background(), social.CollectionInterests, "i1", &i); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if i.Embedding == nil || len(i.Embedding.Vector) != testDim {
		t.Errorf("embedding not cached: %+v", i.Embedding)
	}
}

func TestUserEmbeddingCachedWithinTTL(t *testing.T) {
	b, mem, _ := newTestBuilder(t)
	t0 := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return t0 }

	putInterest(t, mem, social.Interest{ID: "i1", Name: "chess"})
	putUser(t, mem, social.User{ID: "u1", Description: "plays chess", Interests: []social.ID{"i1"}})

	first, err := b.User(context.Background(), "u1")
	if err != nil {
		t.Fatalf("first User: %v", err)
	}

	// Within TTL: the stored vector comes back bit-identically, even though
	// the underlying interest document changed.
	putInterest(t, mem, social.Interest{ID: "i1", Name: "checkers"})
	b.now = func() time.Time { return t0.Add(time.Hour) }
	second, err := b.User(context.Background(), "u1")
	if err != nil {
		t.Fatalf("second User: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("cached embedding differs within TTL")
	}

	// Past TTL: recomputed, so the interest rename shows up.
	b.now = func() time.Time { return t0.Add(3 * time.Hour) }
	third, err := b.User(context.Background(), "u1")
	if err != nil {
		t.Fatalf("third User: %v", err)
	}
	if reflect.DeepEqual(first, third) {
		t.Errorf("stale embedding was not recomputed")
	}
}

func TestUserEmbeddingComposition(t *testing.T) {
	b, mem, enc := newTestBuilder(t)
	putInterest(t, mem, social.Interest{ID: "i1", Name: "hiking"})
	putInterest(t, mem, social.Interest{ID: "i2", Name: "camping"})
	putUser(t, mem, social.User{ID: "u2", Description: "mountains"})
	putUser(t, mem, social.User{
		ID: "u1", Description: "outdoors", Interests: []social.ID{"i1", "i2"},
		Follow: []social.ID{"u2"},
	})

	got, err := b.User(context.Background(), "u1")
	if err != nil {
		t.Fatalf("User: %v", err)
	}

	interestMean, err := vecmath.Mean([][]float64{enc.Encode("hiking"), enc.Encode("camping")})
	if err != nil {
		t.Fatalf("Mean: %v", err)
	}
	// u2 has no interests and no follows: its embedding is the scaled
	// average of the lone description pair.
	u2, err := vecmath.ScaledAvg([]vecmath.WeightedVec{{Weight: 0.2, Vec: enc.Encode("mountains")}})
	if err != nil {
		t.Fatalf("ScaledAvg: %v", err)
	}
	want, err := vecmath.ScaledAvg([]vecmath.WeightedVec{
		{Weight: 0.4, Vec: interestMean},
		{Weight: 0.2, Vec: enc.Encode("outdoors")},
		{Weight: 0.4, Vec: u2},
	})
	if err != nil {
		t.Fatalf("ScaledAvg: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("user embedding composition mismatch")
	}
}

func TestUserEmbeddingFollowCycleTerminates(t *testing.T) {
	b, mem, enc := newTestBuilder(t)
	putInterest(t, mem, social.Interest{ID: "i1", Name: "music"})
	putUser(t, mem, social.User{
		ID: "u1", Description: "first", Interests: []social.ID{"i1"},
		Follow: []social.ID{"u2"},
	})
	putUser(t, mem, social.User{ID: "u2", Description: "second", Follow: []social.ID{"u1"}})

	done := make(chan struct{})
	var got []float64
	var err error
	go func() {
		got, err = b.User(context.Background(), "u1")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("cycle did not terminate")
	}
	if err != nil {
		t.Fatalf("User: %v", err)
	}

	// Expected: E(u2) sees u1 on the stack and uses u1's base embedding
	// (interests and description renormalized to 2/3 and 1/3).
	i1 := enc.Encode("music")
	base1, err := vecmath.ScaledAvg([]vecmath.WeightedVec{
		{Weight: 0.4 / 0.6, Vec: i1},
		{Weight: 0.2 / 0.6, Vec: enc.Encode("first")},
	})
	if err != nil {
		t.Fatalf("ScaledAvg: %v", err)
	}
	u2, err := vecmath.ScaledAvg([]vecmath.WeightedVec{
		{Weight: 0.2, Vec: enc.Encode("second")},
		{Weight: 0.4, Vec: base1},
	})
	if err != nil {
		t.Fatalf("ScaledAvg: %v", err)
	}
	want, err := vecmath.ScaledAvg([]vecmath.WeightedVec{
		{Weight: 0.4, Vec: i1},
		{Weight: 0.2, Vec: enc.Encode("first")},
		{Weight: 0.4, Vec: u2},
	})
	if err != nil {
		t.Fatalf("ScaledAvg: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("cycle fallback composition mismatch")
	}
}

func TestDanglingNeighborsAreSkipped(t *testing.T) {
	b, mem, enc := newTestBuilder(t)
	putUser(t, mem, social.User{
		ID: "u1", Description: "loner",
		Interests: []social.ID{"missing-interest"},
		Follow:    []social.ID{"missing-user"},
	})

	got, err := b.User(context.Background(), "u1")
	if err != nil {
		t.Fatalf("User: %v", err)
	}
	// Both neighbor sets resolve empty, leaving only the description pair.
	want, err := vecmath.ScaledAvg([]vecmath.WeightedVec{{Weight: 0.2, Vec: enc.Encode("loner")}})
	if err != nil {
		t.Fatalf("ScaledAvg: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("dangling neighbors should be dropped from the composition")
	}
}

func TestRootNotFoundSurfaces(t *testing.T) {
	b, _, _ := newTestBuilder(t)
	_, err := b.User(context.Background(), "ghost")
	if fault.KindOf(err) != fault.NotFound {
		t.Fatalf("want NotFound, got %v", err)
	}
}

func TestPostEmbeddingComposition(t *testing.T) {
	b, mem, enc := newTestBuilder(t)
	if err := mem.Put(social.CollectionKeys, "k1", social.Key{ID: "k1", Name: "golang"}); err != nil {
		t.Fatalf("put key: %v", err)
	}
	putUser(t, mem, social.User{ID: "author", Description: "writes"})
	if err := mem.Put(social.CollectionPosts, "p1", social.Post{
		ID: "p1", Author: "author", Title: "hello", Content: "world",
		Keys: []social.ID{"k1"},
	}); err != nil {
		t.Fatalf("put post: %v", err)
	}

	got, err := b.Post(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Post: %v", err)
	}

	authorVec, err := vecmath.ScaledAvg([]vecmath.WeightedVec{{Weight: 0.2, Vec: enc.Encode("writes")}})
	if err != nil {
		t.Fatalf("ScaledAvg: %v", err)
	}
	want, err := vecmath.ScaledAvg([]vecmath.WeightedVec{
		{Weight: 0.35, Vec: enc.Encode("golang")},
		{Weight: 0.35, Vec: enc.Encode("Title:\nhello")},
		{Weight: 0.2, Vec: enc.Encode("Content:\nworld")},
		{Weight: 0.1, Vec: authorVec},
	})
	if err != nil {
		t.Fatalf("ScaledAvg: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("post embedding composition mismatch")
	}
}

func TestThreadEmbeddingIncludesPosts(t *testing.T) {
	b, mem, _ := newTestBuilder(t)
	putUser(t, mem, social.User{ID: "owner", Description: "runs it"})
	putUser(t, mem, social.User{ID: "member", Description: "joins it"})
	if err := mem.Put(social.CollectionThreads, "t1", social.Thread{
		ID: "t1", Name: "general", Owner: "owner", Members: []social.ID{"member"},
	}); err != nil {
		t.Fatalf("put thread: %v", err)
	}
	if err := mem.Put(social.CollectionPosts, "p1", social.Post{
		ID: "p1", Thread: "t1", Author: "member", Title: "hi", Content: "there",
	}); err != nil {
		t.Fatalf("put post: %v", err)
	}

	got, err := b.Thread(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Thread: %v", err)
	}
	if len(got) != testDim {
		t.Fatalf("dimension = %d, want %d", len(got), testDim)
	}

	// The post vector was cached on the way through.
	var p social.Post
	if err := mem.Get(context.Background(), social.CollectionPosts, "p1", &p); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.Embedding == nil {
		t.Errorf("post embedding not cached during thread build")
	}
}

func TestCancelledContextStopsTheWalk(t *testing.T) {
	b, mem, _ := newTestBuilder(t)
	putUser(t, mem, social.User{ID: "u1", Description: "x"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.User(ctx, "u1")
	if kind := fault.KindOf(err); kind != fault.Cancelled {
		t.Fatalf("want Cancelled, got kind %v (%v)", kind, err)
	}
}
