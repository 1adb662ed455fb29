// Package doctest provides an in-memory document.Store for exercising
// catalog, job queue, and worker logic without a real Postgres instance.
package doctest

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/linegrid/linegrid/pkg/store/document"
)

// Store is a goroutine-safe, in-memory implementation of document.Store.
type Store struct {
	mu   sync.Mutex
	docs map[string]map[string]map[string]any // collection -> id -> doc
}

// New returns an empty Store.
func New() *Store {
	return &Store{docs: map[string]map[string]map[string]any{}}
}

func (s *Store) collection(name string) map[string]map[string]any {
	if s.docs[name] == nil {
		s.docs[name] = map[string]map[string]any{}
	}
	return s.docs[name]
}

func (s *Store) InsertOne(_ context.Context, collection string, doc map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	cp := cloneDoc(doc)
	cp["id"] = id
	s.collection(collection)[id] = cp
	return id, nil
}

func (s *Store) BulkInsertUnordered(ctx context.Context, collection string, docs []map[string]any) (int, error) {
	for _, d := range docs {
		if _, err := s.InsertOne(ctx, collection, d); err != nil {
			return 0, err
		}
	}
	return len(docs), nil
}

func (s *Store) FindOne(_ context.Context, collection string, filter document.Filter, sort document.Sort) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	match := s.findMatch(collection, filter, sort)
	if match == nil {
		return nil, document.ErrNoDocuments
	}
	return cloneDoc(match), nil
}

func (s *Store) FindOneAndUpdate(_ context.Context, collection string, filter document.Filter, update document.Update, sort document.Sort) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	match := s.findMatch(collection, filter, sort)
	if match == nil {
		return nil, document.ErrNoDocuments
	}
	applyUpdate(match, update)
	return cloneDoc(match), nil
}

func (s *Store) UpdateMany(_ context.Context, collection string, filter document.Filter, update document.Update) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := 0
	for _, doc := range s.collection(collection) {
		if matches(doc, filter) {
			applyUpdate(doc, update)
			matched++
		}
	}
	return matched, nil
}

func (s *Store) Ping(context.Context) error          { return nil }
func (s *Store) EnsureIndexes(context.Context) error { return nil }

func (s *Store) findMatch(collection string, filter document.Filter, sort document.Sort) map[string]any {
	candidates := make([]map[string]any, 0)
	for _, doc := range s.collection(collection) {
		if matches(doc, filter) {
			candidates = append(candidates, doc)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sortDocs(candidates, sort)
	return candidates[0]
}
