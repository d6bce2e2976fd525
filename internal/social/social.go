// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

// Package social defines the platform entities this service reads.
//
// Entities are created and mutated by upstream systems; the recommender only
// reads them and writes back cached embeddings. All ids are opaque stable
// strings regardless of how upstream systems mint them.
package social

import "time"

// ID is the single id representation used throughout the service. Values
// arriving as integers or binary ids are normalized to their string form at
// the decoding boundary.
type ID string

// String returns the raw id.
func (id ID) String() string { return string(id) }

// Collection names in the document store.
const (
	CollectionUsers     = "users"
	CollectionPosts     = "posts"
	CollectionThreads   = "threads"
	CollectionInterests = "interests"
	CollectionKeys      = "keys"
	CollectionRoles     = "roles"
)

// Embedding is a cached entity vector persisted under the document key
// "embedding". Date is RFC 3339; the vector dimension is fixed per deployed
// encoder model.
type Embedding struct {
	Date   string    `bson:"date" json:"date"`
	Vector []float64 `bson:"vector" json:"vector"`
}

// CreatedAt parses the embedding timestamp. A parse failure returns the zero
// time, which callers treat as stale.
func (e *Embedding) CreatedAt() time.Time {
	if e == nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, e.Date)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Fresh reports whether the embedding was created within ttl of now.
func (e *Embedding) Fresh(now time.Time, ttl time.Duration) bool {
	if e == nil || len(e.Vector) == 0 {
		return false
	}
	created := e.CreatedAt()
	if created.IsZero() {
		return false
	}
	return now.Sub(created) < ttl
}

// User is a platform account. Password holds the bcrypt hash verified by the
// token endpoint; it never leaves the service and is excluded from the graph
// projection.
type User struct {
	ID          ID         `bson:"_id" json:"id"`
	Username    string     `bson:"username" json:"username"`
	Name        string     `bson:"name" json:"name"`
	Description string     `bson:"description" json:"description"`
	Password    string     `bson:"password,omitempty" json:"-"`
	Role        string     `bson:"role,omitempty" json:"role,omitempty"`
	Interests   []ID       `bson:"interests,omitempty" json:"interests,omitempty"`
	Follow      []ID       `bson:"follow,omitempty" json:"follow,omitempty"`
	Blocked     []ID       `bson:"blocked,omitempty" json:"blocked,omitempty"`
	Embedding   *Embedding `bson:"embedding,omitempty" json:"-"`
}

// Thread is a discussion space owned by a user.
type Thread struct {
	ID        ID         `bson:"_id" json:"id"`
	Name      string     `bson:"name" json:"name"`
	Owner     ID         `bson:"id_owner" json:"id_owner"`
	Members   []ID       `bson:"members,omitempty" json:"members,omitempty"`
	Admins    []ID       `bson:"admins,omitempty" json:"admins,omitempty"`
	Embedding *Embedding `bson:"embedding,omitempty" json:"-"`
}

// Post is a message published in a thread. Keys are the tag ids attached by
// the author; Likes and Comments hold the ids of interacting users.
type Post struct {
	ID        ID         `bson:"_id" json:"id"`
	Thread    ID         `bson:"id_thread" json:"id_thread"`
	Author    ID         `bson:"id_author" json:"id_author"`
	Title     string     `bson:"title" json:"title"`
	Content   string     `bson:"content" json:"content"`
	Keys      []ID       `bson:"keys,omitempty" json:"keys,omitempty"`
	Likes     []ID       `bson:"likes,omitempty" json:"likes,omitempty"`
	Comments  []ID       `bson:"comments,omitempty" json:"comments,omitempty"`
	Embedding *Embedding `bson:"embedding,omitempty" json:"-"`
}

// Interest is a topic users declare interest in.
type Interest struct {
	ID        ID         `bson:"_id" json:"id"`
	Name      string     `bson:"name" json:"name"`
	Embedding *Embedding `bson:"embedding,omitempty" json:"-"`
}

// Key is a tag attached to posts. The document store calls these "keys";
// the API and the graph label both use that name.
type Key struct {
	ID        ID         `bson:"_id" json:"id"`
	Name      string     `bson:"name" json:"name"`
	Embedding *Embedding `bson:"embedding,omitempty" json:"-"`
}

// Role is a named permission bundle; Extend lists the role names it
// inherits from.
type Role struct {
	Name   string   `bson:"name" json:"name"`
	Extend []string `bson:"extend,omitempty" json:"extend,omitempty"`
}

// IDSet is a convenience set over ids, used by the Jaccard scorer.
type IDSet map[ID]struct{}

// NewIDSet builds a set from a slice, dropping duplicates.
func NewIDSet(ids []ID) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports set membership.
func (s IDSet) Contains(id ID) bool {
	_, ok := s[id]
	return ok
}

// Jaccard returns |a∩b| / |a∪b|, and 0 when the union is empty.
func Jaccard(a, b IDSet) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for id := range a {
		if b.Contains(id) {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
