package docstore

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store. It backs dry runs against fixtures and tests.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string]map[string]interface{}

	writes []Write
}

// Write is one recorded mutation, kept so callers can inspect side effects.
type Write struct {
	Collection string
	ID         string
	Fields     map[string]interface{}
	Merge      bool
	Create     bool
	Update     bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]map[string]map[string]interface{})}
}

// Put seeds a document without recording a write.
func (m *Memory) Put(collection, id string, fields map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collection(collection)[id] = copyFields(fields)
}

// Writes returns every Set, Create and Update applied so far, in order.
func (m *Memory) Writes() []Write {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Write, len(m.writes))
	copy(out, m.writes)
	return out
}

func (m *Memory) Get(ctx context.Context, collection, id string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	fields, ok := m.data[collection][id]
	if !ok {
		return nil, nil
	}
	return &Document{ID: id, Data: copyFields(fields)}, nil
}

func (m *Memory) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var docs []Document
	for id, fields := range m.data[collection] {
		matched := true
		for _, f := range filters {
			ok, err := match(fields[f.Field], f)
			if err != nil {
				return nil, err
			}
			if !ok {
				matched = false
				break
			}
		}
		if matched {
			docs = append(docs, Document{ID: id, Data: copyFields(fields)})
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (m *Memory) Subcollection(ctx context.Context, collection, id, name string) ([]Document, error) {
	return m.Query(ctx, SubPath(collection, id, name))
}

func (m *Memory) Set(ctx context.Context, collection, id string, fields map[string]interface{}, merge bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	col := m.collection(collection)
	existing, ok := col[id]
	if !merge || !ok {
		existing = make(map[string]interface{})
	}
	for k, v := range fields {
		existing[k] = v
	}
	col[id] = existing
	m.writes = append(m.writes, Write{Collection: collection, ID: id, Fields: copyFields(fields), Merge: merge})
	return nil
}

func (m *Memory) Create(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	col := m.collection(collection)
	if _, ok := col[id]; ok {
		return fmt.Errorf("create %s/%s: %w", collection, id, ErrAlreadyExists)
	}
	col[id] = copyFields(fields)
	m.writes = append(m.writes, Write{Collection: collection, ID: id, Fields: copyFields(fields), Create: true})
	return nil
}

func (m *Memory) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.data[collection][id]
	if !ok {
		return fmt.Errorf("update %s/%s: %w", collection, id, ErrNotFound)
	}
	for k, v := range fields {
		existing[k] = v
	}
	m.writes = append(m.writes, Write{Collection: collection, ID: id, Fields: copyFields(fields), Update: true})
	return nil
}

func (m *Memory) collection(name string) map[string]map[string]interface{} {
	col, ok := m.data[name]
	if !ok {
		col = make(map[string]map[string]interface{})
		m.data[name] = col
	}
	return col
}

func copyFields(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func match(value interface{}, f Filter) (bool, error) {
	switch f.Op {
	case OpEqual:
		return equal(value, f.Value), nil
	case OpIn:
		for _, candidate := range toSlice(f.Value) {
			if equal(value, candidate) {
				return true, nil
			}
		}
		return false, nil
	case OpArrayContains:
		for _, item := range toSlice(value) {
			if equal(item, f.Value) {
				return true, nil
			}
		}
		return false, nil
	case OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		c, ok := compare(value, f.Value)
		if !ok {
			return false, nil
		}
		switch f.Op {
		case OpLess:
			return c < 0, nil
		case OpLessEqual:
			return c <= 0, nil
		case OpGreater:
			return c > 0, nil
		default:
			return c >= 0, nil
		}
	}
	return false, fmt.Errorf("unsupported operator %q", f.Op)
}

func equal(a, b interface{}) bool {
	if c, ok := compare(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

func toSlice(v interface{}) []interface{} {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

// compare orders times, strings and numbers. ok is false for mixed or
// unsupported types, which never satisfy a range predicate.
func compare(a, b interface{}) (int, bool) {
	switch av := a.(type) {
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		switch {
		case av.Before(bv):
			return -1, true
		case av.After(bv):
			return 1, true
		}
		return 0, true
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	}
	return 0, true
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
