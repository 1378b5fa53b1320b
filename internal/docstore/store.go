// Package docstore is the document-database seam used by every repository.
//
// Documents live at slash-separated paths that alternate collection and
// document ids, e.g. "users/u1/projects/p1". Repositories build paths with
// Path and never see the concrete backend: Firestore in production, Redis for
// local development and tests.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound    = errors.New("document not found")
	ErrInvalidPath = errors.New("invalid document path")
)

type Direction int

const (
	Asc Direction = iota
	Desc
)

// Filter is an equality predicate on a top-level field.
type Filter struct {
	Field string
	Value any
}

// Query narrows a collection listing. The zero value lists everything.
type Query struct {
	Where   []Filter
	OrderBy string
	Dir     Direction
	Limit   int
}

// Doc is one document returned by a query.
type Doc interface {
	ID() string
	DataTo(dst any) error
}

type Store interface {
	// Get decodes the document at path into dst. Returns ErrNotFound if absent.
	Get(ctx context.Context, path string, dst any) error
	// Set creates or fully overwrites the document at path.
	Set(ctx context.Context, path string, src any) error
	// Merge updates the given top-level fields of an existing document.
	// Returns ErrNotFound if the document does not exist.
	Merge(ctx context.Context, path string, fields map[string]any) error
	// Delete removes the document. Deleting a missing document is not an error.
	Delete(ctx context.Context, path string) error
	// Query lists documents of a collection path.
	Query(ctx context.Context, collection string, q Query) ([]Doc, error)
	// Increment atomically adds delta to a counter field and returns the new
	// value. Counters start at zero and are only readable through Increment.
	Increment(ctx context.Context, path, field string, delta int64) (int64, error)
}

// Path joins path segments with "/".
func Path(segments ...string) string {
	return strings.Join(segments, "/")
}

// splitDocPath returns (collection path, document id).
func splitDocPath(path string) (string, string, error) {
	parts := strings.Split(path, "/")
	if len(parts) < 2 || len(parts)%2 != 0 {
		return "", "", ErrInvalidPath
	}
	for _, p := range parts {
		if p == "" {
			return "", "", ErrInvalidPath
		}
	}
	return strings.Join(parts[:len(parts)-1], "/"), parts[len(parts)-1], nil
}

// DecodeAll decodes query results into a slice of T.
func DecodeAll[T any](docs []Doc) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := d.DataTo(&v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", d.ID(), err)
		}
		out = append(out, v)
	}
	return out, nil
}
