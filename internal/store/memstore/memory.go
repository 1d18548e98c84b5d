package memstore

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/dgallion1/docannot/internal/store"
)

// Store is an in-memory implementation of store.Store for tests and
// one-shot command line runs.
type Store struct {
	mu     sync.RWMutex
	nextID int64
	docs   map[string]store.Document
	// annotations by document, then by set name
	anns map[string]map[string][]store.Annotation
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		nextID: 1,
		docs:   make(map[string]store.Document),
		anns:   make(map[string]map[string][]store.Annotation),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// PutDocument inserts or replaces a document, keyed by ID.
func (s *Store) PutDocument(ctx context.Context, d store.Document) error {
	if d.ID == "" {
		return fmt.Errorf("put document: empty id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[d.ID] = d
	return nil
}

// GetDocument returns a document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[id]
	if !ok {
		return store.Document{}, fmt.Errorf("document %s: %w", id, store.ErrNotFound)
	}
	return d, nil
}

// ListDocuments returns all documents, newest first.
func (s *Store) ListDocuments(ctx context.Context) ([]store.DocumentInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.DocumentInfo, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, store.DocumentInfo{
			ID:        d.ID,
			Name:      d.Name,
			Language:  d.Language,
			Length:    len(d.Content),
			CreatedAt: d.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// DeleteDocument removes a document and all its annotations.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return fmt.Errorf("document %s: %w", id, store.ErrNotFound)
	}
	delete(s.docs, id)
	delete(s.anns, id)
	return nil
}

// AddAnnotation stores a copy of a under a fresh id.
func (s *Store) AddAnnotation(ctx context.Context, a store.Annotation) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[a.DocID]
	if !ok {
		return 0, fmt.Errorf("document %s: %w", a.DocID, store.ErrNotFound)
	}
	if err := store.CheckSpan(a.Start, a.End, len(d.Content)); err != nil {
		return 0, err
	}

	a.ID = s.nextID
	s.nextID++
	a.Features = maps.Clone(a.Features)

	sets := s.anns[a.DocID]
	if sets == nil {
		sets = make(map[string][]store.Annotation)
		s.anns[a.DocID] = sets
	}
	sets[a.Set] = append(sets[a.Set], a)
	return a.ID, nil
}

// AnnotationsByType returns the annotations of one set, filtered by type.
func (s *Store) AnnotationsByType(ctx context.Context, docID, set, typ string) ([]store.Annotation, error) {
	return s.filter(docID, set, func(a store.Annotation) bool {
		return typ == "" || a.Type == typ
	})
}

// AnnotationsOverlapping returns the annotations of one set intersecting
// [start, end).
func (s *Store) AnnotationsOverlapping(ctx context.Context, docID, set string, start, end uint64) ([]store.Annotation, error) {
	return s.filter(docID, set, func(a store.Annotation) bool {
		return a.Overlaps(start, end)
	})
}

func (s *Store) filter(docID, set string, keep func(store.Annotation) bool) ([]store.Annotation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.docs[docID]; !ok {
		return nil, fmt.Errorf("document %s: %w", docID, store.ErrNotFound)
	}
	var out []store.Annotation
	for _, a := range s.anns[docID][set] {
		if keep(a) {
			a.Features = maps.Clone(a.Features)
			out = append(out, a)
		}
	}
	store.SortAnnotations(out)
	return out, nil
}

// AnnotationSets lists the non-empty annotation sets of a document.
func (s *Store) AnnotationSets(ctx context.Context, docID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.docs[docID]; !ok {
		return nil, fmt.Errorf("document %s: %w", docID, store.ErrNotFound)
	}
	var out []string
	for name, anns := range s.anns[docID] {
		if len(anns) > 0 {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

// RemoveAnnotationSet deletes a set and reports how many annotations it held.
func (s *Store) RemoveAnnotationSet(ctx context.Context, docID, set string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[docID]; !ok {
		return 0, fmt.Errorf("document %s: %w", docID, store.ErrNotFound)
	}
	n := len(s.anns[docID][set])
	delete(s.anns[docID], set)
	return n, nil
}
