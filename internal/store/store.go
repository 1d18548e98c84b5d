// Package store defines the document and annotation substrate the
// annotation pipeline writes into.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidSpan = errors.New("invalid span")
)

// Store persists documents and their span annotations.
type Store interface {
	Close() error

	// Documents
	PutDocument(ctx context.Context, d Document) error
	GetDocument(ctx context.Context, id string) (Document, error)
	ListDocuments(ctx context.Context) ([]DocumentInfo, error)
	DeleteDocument(ctx context.Context, id string) error

	// Annotations. AddAnnotation assigns and returns the annotation id;
	// a span outside the document content fails with ErrInvalidSpan.
	AddAnnotation(ctx context.Context, a Annotation) (int64, error)
	// AnnotationsByType returns the annotations of set with type typ, all
	// types when typ is empty, ordered by start, end and id.
	AnnotationsByType(ctx context.Context, docID, set, typ string) ([]Annotation, error)
	// AnnotationsOverlapping returns annotations of set intersecting
	// [start, end), ordered like AnnotationsByType.
	AnnotationsOverlapping(ctx context.Context, docID, set string, start, end uint64) ([]Annotation, error)
	AnnotationSets(ctx context.Context, docID string) ([]string, error)
	RemoveAnnotationSet(ctx context.Context, docID, set string) (int, error)
}

// Document is a stored text. Offsets are byte offsets into Content.
type Document struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Language  string    `json:"language,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// DocumentInfo is a document without its content.
type DocumentInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Language  string    `json:"language,omitempty"`
	Length    int       `json:"length"`
	CreatedAt time.Time `json:"created_at"`
}

// Annotation is a typed, feature-bearing span in one annotation set.
type Annotation struct {
	ID       int64          `json:"id"`
	DocID    string         `json:"doc_id"`
	Set      string         `json:"set"`
	Type     string         `json:"type"`
	Start    uint64         `json:"start"`
	End      uint64         `json:"end"`
	Features map[string]any `json:"features,omitempty"`
}

// Overlaps reports whether a intersects [start, end). Zero-width
// annotations overlap any range whose half-open interval holds their offset.
func (a Annotation) Overlaps(start, end uint64) bool {
	if a.Start == a.End {
		return start <= a.Start && a.Start < end
	}
	return a.Start < end && start < a.End
}

// CheckSpan validates an annotation span against a content length.
func CheckSpan(start, end uint64, length int) error {
	if start > end || end > uint64(length) {
		return fmt.Errorf("%w: [%d,%d) in content of length %d", ErrInvalidSpan, start, end, length)
	}
	return nil
}

// SortAnnotations orders anns by start, end, then id.
func SortAnnotations(anns []Annotation) {
	sort.Slice(anns, func(i, j int) bool {
		a, b := anns[i], anns[j]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.End != b.End {
			return a.End < b.End
		}
		return a.ID < b.ID
	})
}

// IntFeature reads a numeric feature regardless of how the backend decoded
// it.
func IntFeature(f map[string]any, key string) (int64, bool) {
	switch v := f[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case uint64:
		return int64(v), true
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	}
	return 0, false
}
