// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

package projector

import (
	"context"
	"strings"
	"testing"

	"github.com/watif-social/recommender/internal/docstore"
	"github.com/watif-social/recommender/internal/fault"
	"github.com/watif-social/recommender/internal/graphstore"
	"github.com/watif-social/recommender/internal/social"
)

// fixture seeds the document store with a small but fully-connected social
// graph: four users, a role, interests, a thread and posts with tags.
func fixture(t *testing.T) *docstore.Memory {
	t.Helper()
	mem := docstore.NewMemory()
	put := func(collection, id string, doc interface{}) {
		t.Helper()
		if err := mem.Put(collection, id, doc); err != nil {
			t.Fatalf("put %s/%s: %v", collection, id, err)
		}
	}

	put(social.CollectionRoles, "member", social.Role{Name: "member"})
	put(social.CollectionRoles, "admin", social.Role{Name: "admin", Extend: []string{"member"}})
	put(social.CollectionInterests, "i1", social.Interest{ID: "i1", Name: "astronomy"})
	put(social.CollectionInterests, "i2", social.Interest{ID: "i2", Name: "hiking"})
	put(social.CollectionInterests, "i3", social.Interest{ID: "i3", Name: "chess"})
	put(social.CollectionKeys, "k1", social.Key{ID: "k1", Name: "telescope"})

	put(social.CollectionUsers, "u1", social.User{
		ID: "u1", Username: "ada", Name: "Ada", Description: "first",
		Role: "admin", Interests: []social.ID{"i1"},
		Follow: []social.ID{"u2", "u3", "u1"}, // self-follow must be skipped
		Password: "bcrypt-hash",
	})
	put(social.CollectionUsers, "u2", social.User{
		ID: "u2", Username: "bob", Interests: []social.ID{"i1", "i2"},
		Follow: []social.ID{"u3", "u4"},
	})
	put(social.CollectionUsers, "u3", social.User{
		ID: "u3", Username: "cam", Interests: []social.ID{"i3"},
		Follow: []social.ID{"u4"}, Blocked: []social.ID{"ghost"}, // dangling block target
	})
	put(social.CollectionUsers, "u4", social.User{
		ID: "u4", Username: "dee", Interests: []social.ID{"i1"},
	})

	put(social.CollectionThreads, "t1", social.Thread{
		ID: "t1", Name: "stargazing", Owner: "u1",
		Members: []social.ID{"u1", "u2"}, Admins: []social.ID{"u1"},
	})
	put(social.CollectionPosts, "p1", social.Post{
		ID: "p1", Thread: "t1", Author: "u2", Title: "lens advice",
		Content: "which lens?", Keys: []social.ID{"k1"},
		Likes: []social.ID{"u1"}, Comments: []social.ID{"u3"},
	})
	return mem
}

func runFixture(t *testing.T, opts Options) (*graphstore.Memory, *Report) {
	t.Helper()
	graph := graphstore.NewMemory()
	p := New(docstore.NewEntities(fixture(t)), graph)
	report, err := p.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return graph, report
}

func TestRunProjectsNodesAndEdges(t *testing.T) {
	graph, report := runFixture(t, Options{})

	for _, id := range []string{"u1", "u2", "u3", "u4"} {
		if !graph.HasNode(graphstore.LabelUser, id) {
			t.Errorf("missing User node %s", id)
		}
	}
	if !graph.HasNode(graphstore.LabelRole, "admin") || !graph.HasNode(graphstore.LabelRole, "member") {
		t.Error("missing Role nodes")
	}
	if !graph.HasNode(graphstore.LabelThread, "t1") || !graph.HasNode(graphstore.LabelPost, "p1") {
		t.Error("missing Thread or Post node")
	}

	edges := []struct {
		fromLabel, from, rel, toLabel, to string
	}{
		{graphstore.LabelRole, "admin", graphstore.RelExtends, graphstore.LabelRole, "member"},
		{graphstore.LabelUser, "u1", graphstore.RelHasRole, graphstore.LabelRole, "admin"},
		{graphstore.LabelUser, "u1", graphstore.RelFollows, graphstore.LabelUser, "u2"},
		{graphstore.LabelUser, "u1", graphstore.RelFollows, graphstore.LabelUser, "u3"},
		{graphstore.LabelUser, "u2", graphstore.RelFollows, graphstore.LabelUser, "u4"},
		{graphstore.LabelUser, "u1", graphstore.RelInterestedBy, graphstore.LabelInterest, "i1"},
		{graphstore.LabelUser, "u1", graphstore.RelOwns, graphstore.LabelThread, "t1"},
		{graphstore.LabelUser, "u2", graphstore.RelMemberOf, graphstore.LabelThread, "t1"},
		{graphstore.LabelUser, "u1", graphstore.RelAdminOf, graphstore.LabelThread, "t1"},
		{graphstore.LabelUser, "u2", graphstore.RelWritedBy, graphstore.LabelPost, "p1"},
		{graphstore.LabelPost, "p1", graphstore.RelPostedIn, graphstore.LabelThread, "t1"},
		{graphstore.LabelPost, "p1", graphstore.RelHasKey, graphstore.LabelKey, "k1"},
		{graphstore.LabelUser, "u1", graphstore.RelLikes, graphstore.LabelPost, "p1"},
		{graphstore.LabelUser, "u3", graphstore.RelHasComment, graphstore.LabelPost, "p1"},
	}
	for _, e := range edges {
		if !graph.HasEdge(e.fromLabel, e.from, e.rel, e.toLabel, e.to) {
			t.Errorf("missing edge (%s:%s)-[%s]->(%s:%s)", e.fromLabel, e.from, e.rel, e.toLabel, e.to)
		}
	}

	// Irreflexive: the self-follow in the fixture is dropped.
	if graph.HasEdge(graphstore.LabelUser, "u1", graphstore.RelFollows, graphstore.LabelUser, "u1") {
		t.Error("self FOLLOWS edge projected")
	}
	// Dangling block target resolves to no edge, not a failure.
	if graph.HasEdge(graphstore.LabelUser, "u3", graphstore.RelBlocks, graphstore.LabelUser, "ghost") {
		t.Error("dangling BLOCKS edge projected")
	}

	if len(report.Steps) == 0 || report.NodeCount == 0 || report.EdgeCount == 0 {
		t.Errorf("report not populated: %+v", report)
	}
}

func TestNodePropsExcludeSensitiveFields(t *testing.T) {
	graph, _ := runFixture(t, Options{})

	props := graph.NodeProps(graphstore.LabelUser, "u1")
	for _, forbidden := range []string{"password", "embedding", "follow", "blocked", "interests", "role"} {
		if _, ok := props[forbidden]; ok {
			t.Errorf("User node carries %q property", forbidden)
		}
	}
	if props["username"] != "ada" {
		t.Errorf("username prop = %v, want ada", props["username"])
	}
}

func TestRunIsIdempotent(t *testing.T) {
	graph := graphstore.NewMemory()
	p := New(docstore.NewEntities(fixture(t)), graph)

	if _, err := p.Run(context.Background(), Options{}); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	nodes1, _ := graph.CountNodes(context.Background())
	edges1, _ := graph.CountEdges(context.Background())

	if _, err := p.Run(context.Background(), Options{}); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	nodes2, _ := graph.CountNodes(context.Background())
	edges2, _ := graph.CountEdges(context.Background())

	if nodes1 != nodes2 || edges1 != edges2 {
		t.Errorf("second run changed the graph: nodes %d -> %d, edges %d -> %d",
			nodes1, nodes2, edges1, edges2)
	}
}

func TestEraseRebuildsFromScratch(t *testing.T) {
	graph := graphstore.NewMemory()
	// A node left over from an earlier projection of since-deleted data.
	if err := graph.MergeNode(context.Background(), graphstore.LabelUser, "stale", nil); err != nil {
		t.Fatalf("MergeNode: %v", err)
	}

	p := New(docstore.NewEntities(fixture(t)), graph)
	if _, err := p.Run(context.Background(), Options{Erase: true}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if graph.HasNode(graphstore.LabelUser, "stale") {
		t.Error("erase mode kept a stale node")
	}
	if !graph.HasNode(graphstore.LabelUser, "u1") {
		t.Error("erase mode lost current data")
	}
}

// failingWriter makes MergeNode fail for one label to exercise the per-step
// abort contract.
type failingWriter struct {
	graphstore.Writer
	failLabel string
}

func (w *failingWriter) MergeNode(ctx context.Context, label, key string, props map[string]interface{}) error {
	if label == w.failLabel {
		return fault.Errorf(fault.StoreFault, "injected failure on %s/%s", label, key)
	}
	return w.Writer.MergeNode(ctx, label, key, props)
}

func TestStepFailureAbortsRun(t *testing.T) {
	graph := graphstore.NewMemory()
	p := New(docstore.NewEntities(fixture(t)), &failingWriter{Writer: graph, failLabel: graphstore.LabelThread})

	report, err := p.Run(context.Background(), Options{})
	if fault.KindOf(err) != fault.ProjectorStepFailed {
		t.Fatalf("want ProjectorStepFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), StepThreads) {
		t.Errorf("error does not name the failing step: %v", err)
	}
	// Earlier steps completed and stay in place for the next run.
	for _, sr := range report.Steps {
		if sr.Name == StepThreads || sr.Name == StepPosts {
			t.Errorf("aborted step %s reported as complete", sr.Name)
		}
	}
	if !graph.HasNode(graphstore.LabelUser, "u1") {
		t.Error("completed user step was rolled back")
	}
}

func TestCancelledContextAbortsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := New(docstore.NewEntities(fixture(t)), graphstore.NewMemory())
	if _, err := p.Run(ctx, Options{}); fault.KindOf(err) != fault.Cancelled {
		t.Fatalf("want Cancelled, got %v", err)
	}
}
