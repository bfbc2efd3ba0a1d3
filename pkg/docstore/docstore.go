// Package docstore is the document database boundary used by the dispatch
// engine. Collections hold documents addressed by id; nested collections are
// addressed with a slash-separated path ("users/u1/devices").
package docstore

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned by Update when the target document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyExists is returned by Create when the document exists.
	ErrAlreadyExists = errors.New("document already exists")
)

// Document is a single stored document.
type Document struct {
	ID   string
	Data map[string]interface{}
}

// Op is a field predicate operator.
type Op string

const (
	OpEqual         Op = "=="
	OpIn            Op = "in"
	OpLess          Op = "<"
	OpLessEqual     Op = "<="
	OpGreater       Op = ">"
	OpGreaterEqual  Op = ">="
	OpArrayContains Op = "array-contains"
)

// Filter is a single field predicate of a query. All filters of a query are ANDed.
type Filter struct {
	Field string
	Op    Op
	Value interface{}
}

// Where is shorthand for building a Filter.
func Where(field string, op Op, value interface{}) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// Store reads and writes documents.
type Store interface {
	// Get returns the document or nil when it does not exist.
	Get(ctx context.Context, collection, id string) (*Document, error)
	// Query returns documents matching every filter, ordered by document id.
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	// Subcollection returns every document of a nested collection.
	Subcollection(ctx context.Context, collection, id, name string) ([]Document, error)
	// Set writes fields to a document, creating it if needed. With merge the
	// existing fields not named in fields are kept.
	Set(ctx context.Context, collection, id string, fields map[string]interface{}, merge bool) error
	// Create writes a new document and fails with ErrAlreadyExists when the
	// id is taken.
	Create(ctx context.Context, collection, id string, fields map[string]interface{}) error
	// Update changes fields of an existing document. A nil value stores null.
	Update(ctx context.Context, collection, id string, fields map[string]interface{}) error
}

// SubPath joins a parent document path and a nested collection name.
func SubPath(collection, id, name string) string {
	return strings.Join([]string{collection, id, name}, "/")
}
