// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

package docstore

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/watif-social/recommender/internal/fault"
	"github.com/watif-social/recommender/internal/social"
)

func seedEntities(t *testing.T) *Entities {
	t.Helper()
	store := NewMemory()
	docs := []struct {
		collection string
		id         string
		doc        interface{}
	}{
		{social.CollectionUsers, "u1", social.User{ID: "u1", Username: "alice", Follow: []social.ID{"u2"}}},
		{social.CollectionUsers, "u2", social.User{ID: "u2", Username: "bob"}},
		{social.CollectionThreads, "t1", social.Thread{ID: "t1", Name: "general", Owner: "u1"}},
		{social.CollectionPosts, "p1", social.Post{ID: "p1", Thread: "t1", Author: "u1", Keys: []social.ID{"k1"}}},
		{social.CollectionPosts, "p2", social.Post{ID: "p2", Thread: "t1", Author: "u2"}},
		{social.CollectionPosts, "p3", social.Post{ID: "p3", Thread: "t2", Author: "u2"}},
		{social.CollectionInterests, "i1", social.Interest{ID: "i1", Name: "music"}},
		{social.CollectionKeys, "k1", social.Key{ID: "k1", Name: "jazz"}},
	}
	for _, d := range docs {
		if err := store.Put(d.collection, d.id, d.doc); err != nil {
			t.Fatalf("Put %s/%s: %v", d.collection, d.id, err)
		}
	}
	return NewEntities(store)
}

func TestEntitiesTypedGets(t *testing.T) {
	e := seedEntities(t)
	ctx := context.Background()

	user, err := e.User(ctx, "u1")
	if err != nil {
		t.Fatalf("User: %v", err)
	}
	if user.Username != "alice" || len(user.Follow) != 1 {
		t.Errorf("User = %+v", user)
	}

	thread, err := e.Thread(ctx, "t1")
	if err != nil {
		t.Fatalf("Thread: %v", err)
	}
	if thread.Owner != "u1" {
		t.Errorf("Thread.Owner = %s, want u1", thread.Owner)
	}

	post, err := e.Post(ctx, "p1")
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if post.Thread != "t1" || post.Author != "u1" {
		t.Errorf("Post = %+v", post)
	}

	if _, err := e.User(ctx, "ghost"); fault.KindOf(err) != fault.NotFound {
		t.Errorf("User(ghost) = %v, want NotFound", err)
	}
}

func TestUserByUsername(t *testing.T) {
	e := seedEntities(t)
	ctx := context.Background()

	user, err := e.UserByUsername(ctx, "bob")
	if err != nil {
		t.Fatalf("UserByUsername: %v", err)
	}
	if user.ID != "u2" {
		t.Errorf("ID = %s, want u2", user.ID)
	}

	_, err = e.UserByUsername(ctx, "carol")
	if fault.KindOf(err) != fault.NotFound {
		t.Errorf("UserByUsername(carol) = %v, want NotFound", err)
	}
}

func TestPostsByThread(t *testing.T) {
	e := seedEntities(t)

	var got []social.ID
	err := e.PostsByThread(context.Background(), "t1", func(p *social.Post) error {
		got = append(got, p.ID)
		return nil
	})
	if err != nil {
		t.Fatalf("PostsByThread: %v", err)
	}
	want := []social.ID{"p1", "p2"}
	if len(got) != len(want) {
		t.Fatalf("posts = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("posts = %v, want %v", got, want)
		}
	}
}

func TestEachUserStopIteration(t *testing.T) {
	e := seedEntities(t)

	seen := 0
	err := e.EachUser(context.Background(), func(*social.User) error {
		seen++
		return ErrStopIteration
	})
	if err != nil {
		t.Fatalf("EachUser: %v", err)
	}
	if seen != 1 {
		t.Errorf("seen = %d, want 1", seen)
	}
}

// recordingStore captures the projection each Find receives.
type recordingStore struct {
	Store
	projections []interface{}
}

func (r *recordingStore) Find(ctx context.Context, collection string, filter, projection interface{}) (Cursor, error) {
	r.projections = append(r.projections, projection)
	return r.Store.Find(ctx, collection, filter, projection)
}

func TestCandidateScansProjectIDAndEmbedding(t *testing.T) {
	store := NewMemory()
	if err := store.Put(social.CollectionUsers, "u1", social.User{ID: "u1", Username: "alice"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	rec := &recordingStore{Store: store}
	e := NewEntities(rec)
	ctx := context.Background()

	if err := e.EachUserCandidate(ctx, func(*social.User) error { return nil }); err != nil {
		t.Fatalf("EachUserCandidate: %v", err)
	}
	if err := e.EachUser(ctx, func(*social.User) error { return nil }); err != nil {
		t.Fatalf("EachUser: %v", err)
	}

	if len(rec.projections) != 2 {
		t.Fatalf("recorded %d Find calls, want 2", len(rec.projections))
	}
	got, ok := rec.projections[0].(bson.M)
	if !ok {
		t.Fatalf("candidate projection = %#v, want bson.M", rec.projections[0])
	}
	if len(got) != 2 || got["_id"] != 1 || got["embedding"] != 1 {
		t.Errorf("candidate projection = %v, want {_id: 1, embedding: 1}", got)
	}
	if rec.projections[1] != nil {
		t.Errorf("full scan projection = %#v, want nil", rec.projections[1])
	}
}

func TestEachUserCallbackError(t *testing.T) {
	e := seedEntities(t)

	wantErr := fault.New(fault.StoreFault, "downstream")
	err := e.EachUser(context.Background(), func(*social.User) error {
		return wantErr
	})
	if err != wantErr {
		t.Errorf("EachUser = %v, want %v", err, wantErr)
	}
}
