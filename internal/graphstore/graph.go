// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

// Package graphstore adapts the Neo4j graph database holding the projected
// social graph.
//
// The graph is a derived view: the projector writes it from the document
// store, and the graph-backed recommendation engines read it. All queries
// are parameterized; node labels and relationship types come from the fixed
// vocabulary below and are validated before they reach a query string.
//
// Neo4j is the production implementation, Memory the adjacency-map fake used
// in tests.
package graphstore

import (
	"context"
	"time"

	"github.com/watif-social/recommender/internal/fault"
	"github.com/watif-social/recommender/internal/logging"
	"github.com/watif-social/recommender/internal/metrics"
	"github.com/watif-social/recommender/internal/social"
)

// Node labels.
const (
	LabelUser     = "User"
	LabelPost     = "Post"
	LabelThread   = "Thread"
	LabelKey      = "Key"
	LabelRole     = "Role"
	LabelInterest = "Interest"
)

// Relationship types.
const (
	RelHasRole      = "HAS_ROLE"
	RelFollows      = "FOLLOWS"
	RelBlocks       = "BLOCKS"
	RelInterestedBy = "INTERESTED_BY"
	RelOwns         = "OWNS"
	RelMemberOf     = "MEMBER_OF"
	RelAdminOf      = "ADMIN_OF"
	RelWritedBy     = "WRITED_BY"
	RelPostedIn     = "POSTED_IN"
	RelHasKey       = "HAS_KEY"
	RelLikes        = "LIKES"
	RelHasComment   = "HAS_COMMENT"
	RelExtends      = "EXTENDS"
)

// keyProperty maps each label to the property that identifies its nodes.
// Roles are keyed by name; everything else by id.
var keyProperty = map[string]string{
	LabelUser:     "id",
	LabelPost:     "id",
	LabelThread:   "id",
	LabelKey:      "id",
	LabelRole:     "name",
	LabelInterest: "id",
}

// validRels guards relationship-type interpolation: relationship types
// cannot be bound as query parameters, so only vocabulary entries may reach
// a query string.
var validRels = map[string]struct{}{
	RelHasRole: {}, RelFollows: {}, RelBlocks: {}, RelInterestedBy: {},
	RelOwns: {}, RelMemberOf: {}, RelAdminOf: {}, RelWritedBy: {},
	RelPostedIn: {}, RelHasKey: {}, RelLikes: {}, RelHasComment: {},
	RelExtends: {},
}

// Constraint declares a per-label uniqueness constraint.
type Constraint struct {
	Name     string
	Label    string
	Property string
}

// DefaultConstraints is the full uniqueness schema of the projected graph.
var DefaultConstraints = []Constraint{
	{Name: "c_user_id", Label: LabelUser, Property: "id"},
	{Name: "c_post_id", Label: LabelPost, Property: "id"},
	{Name: "c_thread_id", Label: LabelThread, Property: "id"},
	{Name: "c_key_id", Label: LabelKey, Property: "id"},
	{Name: "c_interest_id", Label: LabelInterest, Property: "id"},
	{Name: "c_role_name", Label: LabelRole, Property: "name"},
}

// Scored pairs a candidate id with its computed score. Results from the
// store arrive ordered by descending score, ascending id.
type Scored struct {
	ID    social.ID
	Score float64
}

// Reader is the query surface the recommendation engines consume.
type Reader interface {
	// FollowedIDs returns the ids the user follows, ascending.
	FollowedIDs(ctx context.Context, user social.ID) ([]social.ID, error)

	// InterestIDs returns the user's declared interest ids, ascending.
	InterestIDs(ctx context.Context, user social.ID) ([]social.ID, error)

	// CandidateUserIDs returns up to limit user ids excluding the given one,
	// ascending.
	CandidateUserIDs(ctx context.Context, exclude social.ID, limit int) ([]social.ID, error)

	// PostIDPage returns one id-ascending page of post ids.
	PostIDPage(ctx context.Context, skip, limit int) ([]social.ID, error)

	// AuthoredTagIDs returns the distinct tag ids on posts the user wrote.
	AuthoredTagIDs(ctx context.Context, user social.ID) ([]social.ID, error)

	// PostTagIDs returns the tag ids attached to a post, ascending.
	PostTagIDs(ctx context.Context, post social.ID) ([]social.ID, error)

	// PostAuthorID returns the author of a post, or NotFound.
	PostAuthorID(ctx context.Context, post social.ID) (social.ID, error)

	// ScoreUsersByCounts ranks users by weighted mutual-follow-target and
	// common-interest counts.
	ScoreUsersByCounts(ctx context.Context, user social.ID, wFollow, wInterest float64, limit int) ([]Scored, error)

	// ScorePostsByCounts ranks posts by weighted interest-tag overlap and
	// LIKES/HAS_COMMENT interaction counts.
	ScorePostsByCounts(ctx context.Context, user social.ID, wInterest, wInteraction float64, limit int) ([]Scored, error)

	// ScoreThreadsByCounts ranks threads by weighted shared-member and
	// interest-tag counts.
	ScoreThreadsByCounts(ctx context.Context, user social.ID, wMember, wInterest float64, limit int) ([]Scored, error)
}

// Writer is the mutation surface the projector consumes.
type Writer interface {
	// EnsureConstraints creates any missing uniqueness constraints.
	EnsureConstraints(ctx context.Context, constraints []Constraint) error

	// EraseAll detach-deletes every node. Full-rebuild mode only.
	EraseAll(ctx context.Context) error

	// MergeNode upserts a node and overlays props on it. The node key
	// property per label is fixed by the schema; props must not contain it.
	MergeNode(ctx context.Context, label string, key string, props map[string]interface{}) error

	// MergeEdge upserts an edge between two existing nodes. A missing
	// endpoint makes the call a silent no-op.
	MergeEdge(ctx context.Context, fromLabel string, from social.ID, rel string, toLabel string, to social.ID) error

	// CountNodes returns the total node count.
	CountNodes(ctx context.Context) (int64, error)

	// CountEdges returns the total relationship count.
	CountEdges(ctx context.Context) (int64, error)
}

// checkLabel validates a label against the schema and returns its key
// property.
func checkLabel(label string) (string, error) {
	prop, ok := keyProperty[label]
	if !ok {
		return "", fault.Errorf(fault.InvalidParam, "unknown node label %q", label)
	}
	return prop, nil
}

// checkRel validates a relationship type against the vocabulary.
func checkRel(rel string) error {
	if _, ok := validRels[rel]; !ok {
		return fault.Errorf(fault.InvalidParam, "unknown relationship type %q", rel)
	}
	return nil
}

// retrySchedule matches the document store policy: retry transient failures
// after 100ms, then 400ms.
var retrySchedule = []time.Duration{100 * time.Millisecond, 400 * time.Millisecond}

// retryable reports whether an error indicates a transient graph problem.
func retryable(err error) bool {
	switch fault.KindOf(err) {
	case fault.NotFound, fault.InvalidParam, fault.InvalidWeights,
		fault.ShapeMismatch, fault.Unauthorized, fault.Cancelled, fault.Timeout:
		return false
	}
	return true
}

// retryWithBackoff executes fn, retrying transient failures per
// retrySchedule with the context checked before each attempt.
func retryWithBackoff(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err = fn()
		if err == nil {
			return nil
		}
		if !retryable(err) || attempt >= len(retrySchedule) {
			return err
		}

		delay := retrySchedule[attempt]
		metrics.RecordStoreRetry("neo4j")
		logging.Warn().Err(err).Int("attempt", attempt+1).Dur("delay", delay).
			Msg("Retrying graph store operation")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
