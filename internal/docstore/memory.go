// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

package docstore

import (
	"context"
	"reflect"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/watif-social/recommender/internal/fault"
)

// Memory implements Store over in-process maps. Documents are stored as
// marshaled BSON so decoding behaves exactly like the Mongo adapter.
// Find supports nil filters and top-level equality filters, which covers
// every query this service issues.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string]bson.Raw
}

// Interface compliance check.
var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string]bson.Raw)}
}

// Put inserts or replaces a document. The document must marshal to BSON
// with an _id field matching id (structs using the social model do).
func (m *Memory) Put(collection, id string, doc interface{}) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return fault.Wrap(fault.StoreFault, "marshal document", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[collection] == nil {
		m.data[collection] = make(map[string]bson.Raw)
	}
	m.data[collection][id] = raw
	return nil
}

// Delete removes a document if present.
func (m *Memory) Delete(collection, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[collection], id)
}

// Get implements Store.
func (m *Memory) Get(ctx context.Context, collection, id string, v interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.RLock()
	raw, ok := m.data[collection][id]
	m.mu.RUnlock()
	if !ok {
		return fault.Errorf(fault.NotFound, "%s/%s not found", collection, id)
	}
	if err := bson.Unmarshal(raw, v); err != nil {
		return fault.Wrap(fault.StoreFault, "decode document", err)
	}
	return nil
}

// Find implements Store. Projection is accepted but ignored; tests decode
// whole documents.
func (m *Memory) Find(ctx context.Context, collection string, filter, projection interface{}) (Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	want, err := filterMap(filter)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.data[collection]))
	for id := range m.data[collection] {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var docs []bson.Raw
	for _, id := range ids {
		raw := m.data[collection][id]
		if len(want) > 0 {
			var doc bson.M
			if err := bson.Unmarshal(raw, &doc); err != nil {
				return nil, fault.Wrap(fault.StoreFault, "decode document", err)
			}
			if !matches(doc, want) {
				continue
			}
		}
		docs = append(docs, raw)
	}
	return &memoryCursor{docs: docs}, nil
}

// filterMap normalizes a filter into a comparable bson.M.
func filterMap(filter interface{}) (bson.M, error) {
	if filter == nil {
		return nil, nil
	}
	switch f := filter.(type) {
	case bson.M:
		return f, nil
	case map[string]interface{}:
		return bson.M(f), nil
	default:
		return nil, fault.Errorf(fault.InvalidParam, "unsupported filter type %T", filter)
	}
}

// matches reports whether every filter entry equals the document's
// top-level field.
func matches(doc, want bson.M) bool {
	for k, v := range want {
		got, ok := doc[k]
		if !ok || !reflect.DeepEqual(normalize(got), normalize(v)) {
			return false
		}
	}
	return true
}

// normalize maps bson decode artifacts onto comparable values.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case int32:
		return int64(t)
	case int:
		return int64(t)
	default:
		if s, ok := v.(interface{ String() string }); ok {
			return s.String()
		}
		if rv := reflect.ValueOf(v); rv.IsValid() && rv.Kind() == reflect.String {
			return rv.String()
		}
		return v
	}
}

// UpdateEmbedding implements Store.
func (m *Memory) UpdateEmbedding(ctx context.Context, collection, id string, vector []float64, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	raw, ok := m.data[collection][id]
	if !ok {
		return fault.Errorf(fault.NotFound, "%s/%s not found", collection, id)
	}

	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return fault.Wrap(fault.StoreFault, "decode document", err)
	}
	doc["embedding"] = bson.M{
		"date":   at.UTC().Format(time.RFC3339Nano),
		"vector": vector,
	}
	updated, err := bson.Marshal(doc)
	if err != nil {
		return fault.Wrap(fault.StoreFault, "marshal document", err)
	}
	m.data[collection][id] = updated
	return nil
}

// Ping implements Store.
func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}

// memoryCursor iterates a snapshot of matching documents.
type memoryCursor struct {
	docs []bson.Raw
	idx  int
	cur  bson.Raw
	err  error
}

func (c *memoryCursor) Next(ctx context.Context) bool {
	if err := ctx.Err(); err != nil {
		c.err = err
		return false
	}
	if c.idx >= len(c.docs) {
		return false
	}
	c.cur = c.docs[c.idx]
	c.idx++
	return true
}

func (c *memoryCursor) Decode(v interface{}) error {
	return bson.Unmarshal(c.cur, v)
}

func (c *memoryCursor) Err() error { return c.err }

func (c *memoryCursor) Close(ctx context.Context) error { return nil }
