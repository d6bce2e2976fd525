// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

package graphstore

import (
	"context"
	"sort"
	"sync"

	"github.com/watif-social/recommender/internal/fault"
	"github.com/watif-social/recommender/internal/social"
)

// Memory implements Reader and Writer over adjacency maps. It reproduces
// the ordering and zero-score semantics of the Cypher queries so engine and
// projector tests exercise the same contracts the production adapter
// honors.
type Memory struct {
	mu    sync.RWMutex
	nodes map[nodeKey]map[string]interface{}
	edges map[edgeKey]struct{}
}

type nodeKey struct {
	label string
	key   string
}

type edgeKey struct {
	fromLabel string
	from      string
	rel       string
	toLabel   string
	to        string
}

// Interface compliance checks.
var (
	_ Reader = (*Memory)(nil)
	_ Writer = (*Memory)(nil)
)

// NewMemory returns an empty in-memory graph.
func NewMemory() *Memory {
	return &Memory{
		nodes: make(map[nodeKey]map[string]interface{}),
		edges: make(map[edgeKey]struct{}),
	}
}

// EnsureConstraints implements Writer. Uniqueness is inherent in the map
// representation; only the schema validation is kept.
func (m *Memory) EnsureConstraints(ctx context.Context, constraints []Constraint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, c := range constraints {
		if _, err := checkLabel(c.Label); err != nil {
			return err
		}
	}
	return nil
}

// EraseAll implements Writer.
func (m *Memory) EraseAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes = make(map[nodeKey]map[string]interface{})
	m.edges = make(map[edgeKey]struct{})
	return nil
}

// MergeNode implements Writer.
func (m *Memory) MergeNode(ctx context.Context, label string, key string, props map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := checkLabel(label); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	nk := nodeKey{label: label, key: key}
	existing, ok := m.nodes[nk]
	if !ok {
		existing = make(map[string]interface{})
		m.nodes[nk] = existing
	}
	for k, v := range props {
		existing[k] = v
	}
	return nil
}

// MergeEdge implements Writer. Missing endpoints make the call a no-op,
// matching the MATCH/MATCH/MERGE query.
func (m *Memory) MergeEdge(ctx context.Context, fromLabel string, from social.ID, rel string, toLabel string, to social.ID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := checkLabel(fromLabel); err != nil {
		return err
	}
	if _, err := checkLabel(toLabel); err != nil {
		return err
	}
	if err := checkRel(rel); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[nodeKey{label: fromLabel, key: string(from)}]; !ok {
		return nil
	}
	if _, ok := m.nodes[nodeKey{label: toLabel, key: string(to)}]; !ok {
		return nil
	}
	m.edges[edgeKey{
		fromLabel: fromLabel, from: string(from),
		rel:       rel,
		toLabel:   toLabel, to: string(to),
	}] = struct{}{}
	return nil
}

// CountNodes implements Writer.
func (m *Memory) CountNodes(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.nodes)), nil
}

// CountEdges implements Writer.
func (m *Memory) CountEdges(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.edges)), nil
}

// HasNode reports whether a node exists. Test helper.
func (m *Memory) HasNode(label, key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.nodes[nodeKey{label: label, key: key}]
	return ok
}

// HasEdge reports whether an edge exists. Test helper.
func (m *Memory) HasEdge(fromLabel, from, rel, toLabel, to string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.edges[edgeKey{fromLabel: fromLabel, from: from, rel: rel, toLabel: toLabel, to: to}]
	return ok
}

// NodeProps returns a copy of a node's properties. Test helper.
func (m *Memory) NodeProps(label, key string) map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	props, ok := m.nodes[nodeKey{label: label, key: key}]
	if !ok {
		return nil
	}
	out := make(map[string]interface{}, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}

// targets returns the sorted targets of edges (fromLabel,from)-[rel]->.
// Caller holds at least a read lock.
func (m *Memory) targets(fromLabel, from, rel string) []string {
	var out []string
	for e := range m.edges {
		if e.fromLabel == fromLabel && e.from == from && e.rel == rel {
			out = append(out, e.to)
		}
	}
	sort.Strings(out)
	return out
}

// keysByLabel returns the sorted node keys of one label. Caller holds at
// least a read lock.
func (m *Memory) keysByLabel(label string) []string {
	var out []string
	for nk := range m.nodes {
		if nk.label == label {
			out = append(out, nk.key)
		}
	}
	sort.Strings(out)
	return out
}

func toIDs(keys []string) []social.ID {
	ids := make([]social.ID, len(keys))
	for i, k := range keys {
		ids[i] = social.ID(k)
	}
	return ids
}

func intersectCount(a, b []string) int {
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	n := 0
	for _, s := range b {
		if _, ok := set[s]; ok {
			n++
		}
	}
	return n
}

// FollowedIDs implements Reader.
func (m *Memory) FollowedIDs(ctx context.Context, user social.ID) ([]social.ID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return toIDs(m.targets(LabelUser, string(user), RelFollows)), nil
}

// InterestIDs implements Reader.
func (m *Memory) InterestIDs(ctx context.Context, user social.ID) ([]social.ID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return toIDs(m.targets(LabelUser, string(user), RelInterestedBy)), nil
}

// CandidateUserIDs implements Reader.
func (m *Memory) CandidateUserIDs(ctx context.Context, exclude social.ID, limit int) ([]social.ID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []social.ID
	for _, key := range m.keysByLabel(LabelUser) {
		if key == string(exclude) {
			continue
		}
		out = append(out, social.ID(key))
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// PostIDPage implements Reader.
func (m *Memory) PostIDPage(ctx context.Context, skip, limit int) ([]social.ID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := m.keysByLabel(LabelPost)
	if skip >= len(keys) {
		return nil, nil
	}
	keys = keys[skip:]
	if limit < len(keys) {
		keys = keys[:limit]
	}
	return toIDs(keys), nil
}

// AuthoredTagIDs implements Reader.
func (m *Memory) AuthoredTagIDs(ctx context.Context, user social.ID) ([]social.ID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, post := range m.targets(LabelUser, string(user), RelWritedBy) {
		for _, tag := range m.targets(LabelPost, post, RelHasKey) {
			seen[tag] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return toIDs(keys), nil
}

// PostTagIDs implements Reader.
func (m *Memory) PostTagIDs(ctx context.Context, post social.ID) ([]social.ID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return toIDs(m.targets(LabelPost, string(post), RelHasKey)), nil
}

// PostAuthorID implements Reader.
func (m *Memory) PostAuthorID(ctx context.Context, post social.ID) (social.ID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var authors []string
	for e := range m.edges {
		if e.rel == RelWritedBy && e.to == string(post) {
			authors = append(authors, e.from)
		}
	}
	if len(authors) == 0 {
		return "", fault.Errorf(fault.NotFound, "post %s has no author in the graph", post)
	}
	sort.Strings(authors)
	return social.ID(authors[0]), nil
}

// rankCounts sorts (id, score) pairs descending by score with ascending-id
// ties and truncates to limit, matching ORDER BY score DESC, id ASC LIMIT.
func rankCounts(out []Scored, limit int) []Scored {
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if limit >= 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

// ScoreUsersByCounts implements Reader.
func (m *Memory) ScoreUsersByCounts(ctx context.Context, user social.ID, wFollow, wInterest float64, limit int) ([]Scored, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.nodes[nodeKey{label: LabelUser, key: string(user)}]; !ok {
		return nil, nil
	}
	uFollows := m.targets(LabelUser, string(user), RelFollows)
	uInterests := m.targets(LabelUser, string(user), RelInterestedBy)

	var out []Scored
	for _, v := range m.keysByLabel(LabelUser) {
		if v == string(user) {
			continue
		}
		cf := intersectCount(uFollows, m.targets(LabelUser, v, RelFollows))
		ci := intersectCount(uInterests, m.targets(LabelUser, v, RelInterestedBy))
		out = append(out, Scored{
			ID:    social.ID(v),
			Score: wFollow*float64(cf) + wInterest*float64(ci),
		})
	}
	return rankCounts(out, limit), nil
}

// ScorePostsByCounts implements Reader.
func (m *Memory) ScorePostsByCounts(ctx context.Context, user social.ID, wInterest, wInteraction float64, limit int) ([]Scored, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.nodes[nodeKey{label: LabelUser, key: string(user)}]; !ok {
		return nil, nil
	}
	uInterests := m.targets(LabelUser, string(user), RelInterestedBy)

	var out []Scored
	for _, p := range m.keysByLabel(LabelPost) {
		overlap := intersectCount(uInterests, m.targets(LabelPost, p, RelHasKey))
		interactions := 0
		for _, rel := range []string{RelLikes, RelHasComment} {
			if _, ok := m.edges[edgeKey{
				fromLabel: LabelUser, from: string(user),
				rel:       rel,
				toLabel:   LabelPost, to: p,
			}]; ok {
				interactions++
			}
		}
		out = append(out, Scored{
			ID:    social.ID(p),
			Score: wInterest*float64(overlap) + wInteraction*float64(interactions),
		})
	}
	return rankCounts(out, limit), nil
}

// ScoreThreadsByCounts implements Reader.
func (m *Memory) ScoreThreadsByCounts(ctx context.Context, user social.ID, wMember, wInterest float64, limit int) ([]Scored, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.nodes[nodeKey{label: LabelUser, key: string(user)}]; !ok {
		return nil, nil
	}
	uThreads := m.targets(LabelUser, string(user), RelMemberOf)
	uInterests := m.targets(LabelUser, string(user), RelInterestedBy)

	var out []Scored
	for _, t := range m.keysByLabel(LabelThread) {
		// Distinct users sharing a thread membership with u that are also
		// members of t.
		members := make(map[string]struct{})
		for _, shared := range uThreads {
			for e := range m.edges {
				if e.rel != RelMemberOf || e.to != shared || e.from == string(user) {
					continue
				}
				if _, ok := m.edges[edgeKey{
					fromLabel: LabelUser, from: e.from,
					rel:       RelMemberOf,
					toLabel:   LabelThread, to: t,
				}]; ok {
					members[e.from] = struct{}{}
				}
			}
		}
		overlap := intersectCount(uInterests, m.targets(LabelThread, t, RelHasKey))
		out = append(out, Scored{
			ID:    social.ID(t),
			Score: wMember*float64(len(members)) + wInterest*float64(overlap),
		})
	}
	return rankCounts(out, limit), nil
}
