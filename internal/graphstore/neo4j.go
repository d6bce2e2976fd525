// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

package graphstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/watif-social/recommender/internal/fault"
	"github.com/watif-social/recommender/internal/social"
)

// Neo4j implements Reader and Writer over a bolt driver. One session is
// opened per logical unit of work and closed before the method returns.
// Calls retry transient failures inside a circuit breaker, mirroring the
// document store adapter.
type Neo4j struct {
	driver  neo4j.DriverWithContext
	breaker *gobreaker.CircuitBreaker[interface{}]
}

// Interface compliance checks.
var (
	_ Reader = (*Neo4j)(nil)
	_ Writer = (*Neo4j)(nil)
)

// NewNeo4j wraps an already connected driver.
func NewNeo4j(driver neo4j.DriverWithContext) *Neo4j {
	return &Neo4j{
		driver: driver,
		breaker: gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
			Name:        "neo4j",
			MaxRequests: 3,
			Interval:    30 * time.Second,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			IsSuccessful: func(err error) bool {
				return err == nil || !retryable(err)
			},
		}),
	}
}

// Connect dials Neo4j, verifies connectivity, and returns the adapter plus
// a close function for shutdown. An empty username disables authentication.
func Connect(ctx context.Context, uri, username, password string) (*Neo4j, func(context.Context) error, error) {
	auth := neo4j.NoAuth()
	if username != "" {
		auth = neo4j.BasicAuth(username, password, "")
	}
	driver, err := neo4j.NewDriverWithContext(uri, auth)
	if err != nil {
		return nil, nil, fault.Wrap(fault.StoreFault, "neo4j driver", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, nil, fault.Wrap(fault.StoreFault, "neo4j connectivity", err)
	}
	return NewNeo4j(driver), driver.Close, nil
}

// guard runs fn with retry inside the circuit breaker and maps breaker
// rejections onto StoreFault.
func (g *Neo4j) guard(ctx context.Context, fn func() error) error {
	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, retryWithBackoff(ctx, fn)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fault.Wrap(fault.StoreFault, "graph store unavailable", err)
	}
	return err
}

// run opens a session, executes one parameterized query, and feeds each
// record to collect. The session is closed before run returns.
func (g *Neo4j) run(ctx context.Context, mode neo4j.AccessMode, cypher string, params map[string]interface{}, collect func(*neo4j.Record) error) error {
	return g.guard(ctx, func() error {
		session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode})
		defer func() { _ = session.Close(ctx) }()

		result, err := session.Run(ctx, cypher, params)
		if err != nil {
			return fault.Wrap(fault.StoreFault, "graph query", err)
		}
		for result.Next(ctx) {
			if collect == nil {
				continue
			}
			if err := collect(result.Record()); err != nil {
				return err
			}
		}
		if err := result.Err(); err != nil {
			return fault.Wrap(fault.StoreFault, "graph result", err)
		}
		return nil
	})
}

// recordString extracts a string field by name.
func recordString(record *neo4j.Record, key string) (string, error) {
	v, ok := record.Get(key)
	if !ok {
		return "", fault.Errorf(fault.StoreFault, "graph record missing field %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fault.Errorf(fault.StoreFault, "graph field %q is %T, want string", key, v)
	}
	return s, nil
}

// recordFloat extracts a numeric field by name. Neo4j returns int64 for
// integer expressions and float64 once a float weight enters the arithmetic.
func recordFloat(record *neo4j.Record, key string) (float64, error) {
	v, ok := record.Get(key)
	if !ok {
		return 0, fault.Errorf(fault.StoreFault, "graph record missing field %q", key)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	default:
		return 0, fault.Errorf(fault.StoreFault, "graph field %q is %T, want number", key, v)
	}
}

// queryIDs runs a query returning a single "id" column.
func (g *Neo4j) queryIDs(ctx context.Context, cypher string, params map[string]interface{}) ([]social.ID, error) {
	var ids []social.ID
	err := g.run(ctx, neo4j.AccessModeRead, cypher, params, func(record *neo4j.Record) error {
		s, err := recordString(record, "id")
		if err != nil {
			return err
		}
		ids = append(ids, social.ID(s))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// queryScored runs a query returning "id" and "score" columns.
func (g *Neo4j) queryScored(ctx context.Context, cypher string, params map[string]interface{}) ([]Scored, error) {
	var out []Scored
	err := g.run(ctx, neo4j.AccessModeRead, cypher, params, func(record *neo4j.Record) error {
		id, err := recordString(record, "id")
		if err != nil {
			return err
		}
		score, err := recordFloat(record, "score")
		if err != nil {
			return err
		}
		out = append(out, Scored{ID: social.ID(id), Score: score})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FollowedIDs implements Reader.
func (g *Neo4j) FollowedIDs(ctx context.Context, user social.ID) ([]social.ID, error) {
	return g.queryIDs(ctx,
		`MATCH (:User {id: $id})-[:FOLLOWS]->(f:User)
		 RETURN f.id AS id ORDER BY id ASC`,
		map[string]interface{}{"id": string(user)})
}

// InterestIDs implements Reader.
func (g *Neo4j) InterestIDs(ctx context.Context, user social.ID) ([]social.ID, error) {
	return g.queryIDs(ctx,
		`MATCH (:User {id: $id})-[:INTERESTED_BY]->(i:Interest)
		 RETURN i.id AS id ORDER BY id ASC`,
		map[string]interface{}{"id": string(user)})
}

// CandidateUserIDs implements Reader.
func (g *Neo4j) CandidateUserIDs(ctx context.Context, exclude social.ID, limit int) ([]social.ID, error) {
	return g.queryIDs(ctx,
		`MATCH (u:User) WHERE u.id <> $id
		 RETURN u.id AS id ORDER BY id ASC LIMIT $limit`,
		map[string]interface{}{"id": string(exclude), "limit": limit})
}

// PostIDPage implements Reader.
func (g *Neo4j) PostIDPage(ctx context.Context, skip, limit int) ([]social.ID, error) {
	return g.queryIDs(ctx,
		`MATCH (p:Post)
		 RETURN p.id AS id ORDER BY id ASC SKIP $skip LIMIT $limit`,
		map[string]interface{}{"skip": skip, "limit": limit})
}

// AuthoredTagIDs implements Reader.
func (g *Neo4j) AuthoredTagIDs(ctx context.Context, user social.ID) ([]social.ID, error) {
	return g.queryIDs(ctx,
		`MATCH (:User {id: $id})-[:WRITED_BY]->(:Post)-[:HAS_KEY]->(k:Key)
		 RETURN DISTINCT k.id AS id ORDER BY id ASC`,
		map[string]interface{}{"id": string(user)})
}

// PostTagIDs implements Reader.
func (g *Neo4j) PostTagIDs(ctx context.Context, post social.ID) ([]social.ID, error) {
	return g.queryIDs(ctx,
		`MATCH (:Post {id: $id})-[:HAS_KEY]->(k:Key)
		 RETURN k.id AS id ORDER BY id ASC`,
		map[string]interface{}{"id": string(post)})
}

// PostAuthorID implements Reader.
func (g *Neo4j) PostAuthorID(ctx context.Context, post social.ID) (social.ID, error) {
	ids, err := g.queryIDs(ctx,
		`MATCH (u:User)-[:WRITED_BY]->(:Post {id: $id})
		 RETURN u.id AS id LIMIT 1`,
		map[string]interface{}{"id": string(post)})
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", fault.Errorf(fault.NotFound, "post %s has no author in the graph", post)
	}
	return ids[0], nil
}

// ScoreUsersByCounts implements Reader. OPTIONAL MATCH keeps zero-score
// candidates in the result so low-data users still get a full page.
func (g *Neo4j) ScoreUsersByCounts(ctx context.Context, user social.ID, wFollow, wInterest float64, limit int) ([]Scored, error) {
	return g.queryScored(ctx,
		`MATCH (u:User {id: $id})
		 MATCH (v:User) WHERE v.id <> u.id
		 OPTIONAL MATCH (u)-[:FOLLOWS]->(t:User)<-[:FOLLOWS]-(v)
		 WITH u, v, count(DISTINCT t) AS commonFollows
		 OPTIONAL MATCH (u)-[:INTERESTED_BY]->(i:Interest)<-[:INTERESTED_BY]-(v)
		 WITH v, commonFollows, count(DISTINCT i) AS commonInterests
		 RETURN v.id AS id,
		        $wf * commonFollows + $wi * commonInterests AS score
		 ORDER BY score DESC, id ASC LIMIT $limit`,
		map[string]interface{}{
			"id": string(user), "wf": wFollow, "wi": wInterest, "limit": limit,
		})
}

// ScorePostsByCounts implements Reader. Interests and tags share an id
// space, so the overlap joins Interest and Key nodes on id.
func (g *Neo4j) ScorePostsByCounts(ctx context.Context, user social.ID, wInterest, wInteraction float64, limit int) ([]Scored, error) {
	return g.queryScored(ctx,
		`MATCH (u:User {id: $id})
		 MATCH (p:Post)
		 OPTIONAL MATCH (u)-[:INTERESTED_BY]->(i:Interest), (p)-[:HAS_KEY]->(k:Key)
		 WHERE k.id = i.id
		 WITH u, p, count(DISTINCT i) AS interestScore
		 OPTIONAL MATCH (u)-[r:LIKES|HAS_COMMENT]->(p)
		 WITH p, interestScore, count(r) AS interactionScore
		 RETURN p.id AS id,
		        $wi * interestScore + $wx * interactionScore AS score
		 ORDER BY score DESC, id ASC LIMIT $limit`,
		map[string]interface{}{
			"id": string(user), "wi": wInterest, "wx": wInteraction, "limit": limit,
		})
}

// ScoreThreadsByCounts implements Reader. The projector never writes thread
// HAS_KEY edges, so the interest term matches nothing and contributes 0;
// the query keeps it for when threads grow tags.
func (g *Neo4j) ScoreThreadsByCounts(ctx context.Context, user social.ID, wMember, wInterest float64, limit int) ([]Scored, error) {
	return g.queryScored(ctx,
		`MATCH (u:User {id: $id})
		 MATCH (t:Thread)
		 OPTIONAL MATCH (u)-[:MEMBER_OF]->(:Thread)<-[:MEMBER_OF]-(m:User)-[:MEMBER_OF]->(t)
		 WHERE m.id <> u.id
		 WITH u, t, count(DISTINCT m) AS memberScore
		 OPTIONAL MATCH (u)-[:INTERESTED_BY]->(i:Interest), (t)-[:HAS_KEY]->(k:Key)
		 WHERE k.id = i.id
		 WITH t, memberScore, count(DISTINCT i) AS interestScore
		 RETURN t.id AS id,
		        $wm * memberScore + $wi * interestScore AS score
		 ORDER BY score DESC, id ASC LIMIT $limit`,
		map[string]interface{}{
			"id": string(user), "wm": wMember, "wi": wInterest, "limit": limit,
		})
}

// EnsureConstraints implements Writer. Constraint DDL cannot bind labels or
// properties as parameters; both come from the static schema table only.
func (g *Neo4j) EnsureConstraints(ctx context.Context, constraints []Constraint) error {
	for _, c := range constraints {
		if _, err := checkLabel(c.Label); err != nil {
			return err
		}
		cypher := fmt.Sprintf(
			"CREATE CONSTRAINT %s IF NOT EXISTS FOR (n:%s) REQUIRE n.%s IS UNIQUE",
			c.Name, c.Label, c.Property)
		if err := g.run(ctx, neo4j.AccessModeWrite, cypher, nil, nil); err != nil {
			return err
		}
	}
	return nil
}

// EraseAll implements Writer.
func (g *Neo4j) EraseAll(ctx context.Context) error {
	return g.run(ctx, neo4j.AccessModeWrite, `MATCH (n) DETACH DELETE n`, nil, nil)
}

// MergeNode implements Writer.
func (g *Neo4j) MergeNode(ctx context.Context, label string, key string, props map[string]interface{}) error {
	prop, err := checkLabel(label)
	if err != nil {
		return err
	}
	if props == nil {
		props = map[string]interface{}{}
	}
	cypher := fmt.Sprintf(
		"MERGE (n:%s {%s: $key}) SET n += $props", label, prop)
	return g.run(ctx, neo4j.AccessModeWrite, cypher, map[string]interface{}{
		"key": key, "props": props,
	}, nil)
}

// MergeEdge implements Writer. MATCH on both endpoints means a dangling id
// matches nothing and the MERGE never runs, which is the required
// skip-silently behavior.
func (g *Neo4j) MergeEdge(ctx context.Context, fromLabel string, from social.ID, rel string, toLabel string, to social.ID) error {
	fromProp, err := checkLabel(fromLabel)
	if err != nil {
		return err
	}
	toProp, err := checkLabel(toLabel)
	if err != nil {
		return err
	}
	if err := checkRel(rel); err != nil {
		return err
	}
	cypher := fmt.Sprintf(
		"MATCH (a:%s {%s: $from}) MATCH (b:%s {%s: $to}) MERGE (a)-[:%s]->(b)",
		fromLabel, fromProp, toLabel, toProp, rel)
	return g.run(ctx, neo4j.AccessModeWrite, cypher, map[string]interface{}{
		"from": string(from), "to": string(to),
	}, nil)
}

// CountNodes implements Writer.
func (g *Neo4j) CountNodes(ctx context.Context) (int64, error) {
	return g.count(ctx, `MATCH (n) RETURN count(n) AS c`)
}

// CountEdges implements Writer.
func (g *Neo4j) CountEdges(ctx context.Context) (int64, error) {
	return g.count(ctx, `MATCH ()-[r]->() RETURN count(r) AS c`)
}

func (g *Neo4j) count(ctx context.Context, cypher string) (int64, error) {
	var n int64
	err := g.run(ctx, neo4j.AccessModeRead, cypher, nil, func(record *neo4j.Record) error {
		v, ok := record.Get("c")
		if !ok {
			return fault.New(fault.StoreFault, "count record missing field")
		}
		c, ok := v.(int64)
		if !ok {
			return fault.Errorf(fault.StoreFault, "count field is %T, want int64", v)
		}
		n = c
		return nil
	})
	return n, err
}
