// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

// Package projector rebuilds the Neo4j graph view from the MongoDB
// documents.
//
// The run order is load-bearing: edges can only be MERGEd once both
// endpoints exist, so roles, interests and keys go first, then users, then
// threads, then posts. Every write uses MERGE semantics, which makes a run
// idempotent: projecting an unchanged document store twice yields the same
// graph. Dangling references are skipped silently; a failing step aborts the
// whole run and the partially-updated graph is left for the next run to
// converge.
package projector

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/watif-social/recommender/internal/docstore"
	"github.com/watif-social/recommender/internal/fault"
	"github.com/watif-social/recommender/internal/graphstore"
	"github.com/watif-social/recommender/internal/logging"
	"github.com/watif-social/recommender/internal/metrics"
	"github.com/watif-social/recommender/internal/social"
)

// Step names, in execution order. They appear in logs, metrics and
// ProjectorStepFailed errors.
const (
	StepConstraints = "constraints"
	StepErase       = "erase"
	StepRoles       = "roles"
	StepInterests   = "interests"
	StepKeys        = "keys"
	StepUsers       = "users"
	StepThreads     = "threads"
	StepPosts       = "posts"
)

// Options controls a single run.
type Options struct {
	// Erase detach-deletes every node before projecting (full rebuild).
	Erase bool
}

// StepReport carries per-step progress counts.
type StepReport struct {
	Name     string        `json:"name"`
	Nodes    int           `json:"nodes"`
	Edges    int           `json:"edges"`
	Duration time.Duration `json:"duration"`
}

// Report summarizes a completed run.
type Report struct {
	Steps      []StepReport  `json:"steps"`
	NodeCount  int64         `json:"node_count"`
	EdgeCount  int64         `json:"edge_count"`
	Duration   time.Duration `json:"duration"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Projector streams the document store into the graph store.
type Projector struct {
	docs  *docstore.Entities
	graph graphstore.Writer
	log   zerolog.Logger
}

// New creates a projector.
func New(docs *docstore.Entities, graph graphstore.Writer) *Projector {
	return &Projector{
		docs:  docs,
		graph: graph,
		log:   logging.WithComponent("projector"),
	}
}

// Run executes the projection. On failure the returned error is a
// ProjectorStepFailed naming the step; the report covers the steps that
// completed.
func (p *Projector) Run(ctx context.Context, opts Options) (*Report, error) {
	started := time.Now()
	report := &Report{StartedAt: started}

	steps := []struct {
		name string
		skip bool
		fn   func(context.Context, *StepReport) error
	}{
		{name: StepConstraints, fn: p.ensureConstraints},
		{name: StepErase, skip: !opts.Erase, fn: p.erase},
		{name: StepRoles, fn: p.projectRoles},
		{name: StepInterests, fn: p.projectInterests},
		{name: StepKeys, fn: p.projectKeys},
		{name: StepUsers, fn: p.projectUsers},
		{name: StepThreads, fn: p.projectThreads},
		{name: StepPosts, fn: p.projectPosts},
	}

	for _, step := range steps {
		if step.skip {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, fault.FromContext(ctx)
		}

		sr := StepReport{Name: step.name}
		stepStart := time.Now()
		err := step.fn(ctx, &sr)
		sr.Duration = time.Since(stepStart)
		metrics.RecordProjectorStep(step.name, err)
		if err != nil {
			p.log.Error().Err(err).Str("step", step.name).Msg("Projection step failed")
			return report, fault.Wrap(fault.ProjectorStepFailed, "step "+step.name, err)
		}
		report.Steps = append(report.Steps, sr)
		p.log.Info().
			Str("step", step.name).
			Int("nodes", sr.Nodes).
			Int("edges", sr.Edges).
			Dur("duration", sr.Duration).
			Msg("Projection step complete")
	}

	if n, err := p.graph.CountNodes(ctx); err == nil {
		report.NodeCount = n
	}
	if n, err := p.graph.CountEdges(ctx); err == nil {
		report.EdgeCount = n
	}
	report.FinishedAt = time.Now()
	report.Duration = report.FinishedAt.Sub(started)
	metrics.RecordProjectorRun(report.Duration)
	p.log.Info().
		Int64("node_count", report.NodeCount).
		Int64("edge_count", report.EdgeCount).
		Dur("duration", report.Duration).
		Msg("Projection complete")
	return report, nil
}

func (p *Projector) ensureConstraints(ctx context.Context, _ *StepReport) error {
	return p.graph.EnsureConstraints(ctx, graphstore.DefaultConstraints)
}

func (p *Projector) erase(ctx context.Context, _ *StepReport) error {
	return p.graph.EraseAll(ctx)
}

// projectRoles writes Role nodes and the EXTENDS edges between them.
func (p *Projector) projectRoles(ctx context.Context, sr *StepReport) error {
	var roles []social.Role
	err := p.docs.EachRole(ctx, func(r *social.Role) error {
		if err := p.graph.MergeNode(ctx, graphstore.LabelRole, r.Name, nil); err != nil {
			return stepItemErr(r.Name, err)
		}
		sr.Nodes++
		roles = append(roles, *r)
		return nil
	})
	if err != nil {
		return err
	}
	// Second pass so EXTENDS targets exist regardless of document order.
	for _, r := range roles {
		for _, parent := range r.Extend {
			if err := p.graph.MergeEdge(ctx, graphstore.LabelRole, social.ID(r.Name),
				graphstore.RelExtends, graphstore.LabelRole, social.ID(parent)); err != nil {
				return stepItemErr(r.Name, err)
			}
			sr.Edges++
		}
	}
	return nil
}

func (p *Projector) projectInterests(ctx context.Context, sr *StepReport) error {
	return p.docs.EachInterest(ctx, func(i *social.Interest) error {
		props := map[string]interface{}{"name": i.Name}
		if err := p.graph.MergeNode(ctx, graphstore.LabelInterest, string(i.ID), props); err != nil {
			return stepItemErr(string(i.ID), err)
		}
		sr.Nodes++
		return nil
	})
}

func (p *Projector) projectKeys(ctx context.Context, sr *StepReport) error {
	return p.docs.EachKey(ctx, func(k *social.Key) error {
		props := map[string]interface{}{"name": k.Name}
		if err := p.graph.MergeNode(ctx, graphstore.LabelKey, string(k.ID), props); err != nil {
			return stepItemErr(string(k.ID), err)
		}
		sr.Nodes++
		return nil
	})
}

// projectUsers writes User nodes and their outgoing edges. Node properties
// exclude relationship fields, the password hash and the cached embedding.
func (p *Projector) projectUsers(ctx context.Context, sr *StepReport) error {
	var users []social.User
	err := p.docs.EachUser(ctx, func(u *social.User) error {
		props := map[string]interface{}{
			"username":    u.Username,
			"name":        u.Name,
			"description": u.Description,
		}
		if err := p.graph.MergeNode(ctx, graphstore.LabelUser, string(u.ID), props); err != nil {
			return stepItemErr(string(u.ID), err)
		}
		sr.Nodes++
		users = append(users, *u)
		return nil
	})
	if err != nil {
		return err
	}

	// Second pass: every User node exists, so user-to-user edges resolve.
	for _, u := range users {
		var edges []edge
		if u.Role != "" {
			edges = append(edges, edge{graphstore.LabelUser, u.ID, graphstore.RelHasRole, graphstore.LabelRole, social.ID(u.Role)})
		}
		for _, f := range u.Follow {
			if f == u.ID {
				continue // irreflexive
			}
			edges = append(edges, edge{graphstore.LabelUser, u.ID, graphstore.RelFollows, graphstore.LabelUser, f})
		}
		for _, bl := range u.Blocked {
			if bl == u.ID {
				continue // irreflexive
			}
			edges = append(edges, edge{graphstore.LabelUser, u.ID, graphstore.RelBlocks, graphstore.LabelUser, bl})
		}
		for _, i := range u.Interests {
			edges = append(edges, edge{graphstore.LabelUser, u.ID, graphstore.RelInterestedBy, graphstore.LabelInterest, i})
		}
		if err := p.mergeEdges(ctx, sr, string(u.ID), edges); err != nil {
			return err
		}
	}
	return nil
}

// edge is one relationship to MERGE.
type edge struct {
	fromLabel string
	from      social.ID
	rel       string
	toLabel   string
	to        social.ID
}

// mergeEdges writes a batch of edges, skipping those with an empty endpoint
// and attributing failures to the owning document.
func (p *Projector) mergeEdges(ctx context.Context, sr *StepReport, owner string, edges []edge) error {
	for _, e := range edges {
		if e.from == "" || e.to == "" {
			continue
		}
		if err := p.graph.MergeEdge(ctx, e.fromLabel, e.from, e.rel, e.toLabel, e.to); err != nil {
			return stepItemErr(owner, err)
		}
		sr.Edges++
	}
	return nil
}

func (p *Projector) projectThreads(ctx context.Context, sr *StepReport) error {
	return p.docs.EachThread(ctx, func(t *social.Thread) error {
		props := map[string]interface{}{"name": t.Name}
		if err := p.graph.MergeNode(ctx, graphstore.LabelThread, string(t.ID), props); err != nil {
			return stepItemErr(string(t.ID), err)
		}
		sr.Nodes++

		edges := []edge{
			{graphstore.LabelUser, t.Owner, graphstore.RelOwns, graphstore.LabelThread, t.ID},
		}
		for _, m := range t.Members {
			edges = append(edges, edge{graphstore.LabelUser, m, graphstore.RelMemberOf, graphstore.LabelThread, t.ID})
		}
		for _, a := range t.Admins {
			edges = append(edges, edge{graphstore.LabelUser, a, graphstore.RelAdminOf, graphstore.LabelThread, t.ID})
		}
		return p.mergeEdges(ctx, sr, string(t.ID), edges)
	})
}

func (p *Projector) projectPosts(ctx context.Context, sr *StepReport) error {
	return p.docs.EachPost(ctx, func(post *social.Post) error {
		props := map[string]interface{}{
			"title":   post.Title,
			"content": post.Content,
		}
		if err := p.graph.MergeNode(ctx, graphstore.LabelPost, string(post.ID), props); err != nil {
			return stepItemErr(string(post.ID), err)
		}
		sr.Nodes++

		edges := []edge{
			{graphstore.LabelUser, post.Author, graphstore.RelWritedBy, graphstore.LabelPost, post.ID},
			{graphstore.LabelPost, post.ID, graphstore.RelPostedIn, graphstore.LabelThread, post.Thread},
		}
		for _, k := range post.Keys {
			edges = append(edges, edge{graphstore.LabelPost, post.ID, graphstore.RelHasKey, graphstore.LabelKey, k})
		}
		for _, liker := range post.Likes {
			edges = append(edges, edge{graphstore.LabelUser, liker, graphstore.RelLikes, graphstore.LabelPost, post.ID})
		}
		for _, commenter := range post.Comments {
			edges = append(edges, edge{graphstore.LabelUser, commenter, graphstore.RelHasComment, graphstore.LabelPost, post.ID})
		}
		return p.mergeEdges(ctx, sr, string(post.ID), edges)
	})
}

// stepItemErr attaches the offending document id to a step failure.
func stepItemErr(id string, err error) error {
	return fault.Wrap(fault.KindOf(err), "document "+id, err)
}
