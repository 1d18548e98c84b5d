// Package storetest holds behaviour checks shared by every store backend.
package storetest

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/dgallion1/docannot/internal/store"
)

// Run exercises a backend. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("Documents", func(t *testing.T) { testDocuments(t, newStore(t)) })
	t.Run("AnnotationOrder", func(t *testing.T) { testAnnotationOrder(t, newStore(t)) })
	t.Run("InvalidSpan", func(t *testing.T) { testInvalidSpan(t, newStore(t)) })
	t.Run("Overlap", func(t *testing.T) { testOverlap(t, newStore(t)) })
	t.Run("Sets", func(t *testing.T) { testSets(t, newStore(t)) })
}

const content = "The new car has bigger windows."

func seed(t *testing.T, st store.Store, id string, created time.Time) {
	t.Helper()
	err := st.PutDocument(context.Background(), store.Document{
		ID: id, Name: id + ".txt", Language: "eng", Content: content, CreatedAt: created,
	})
	if err != nil {
		t.Fatalf("PutDocument: %v", err)
	}
}

func add(t *testing.T, st store.Store, a store.Annotation) int64 {
	t.Helper()
	id, err := st.AddAnnotation(context.Background(), a)
	if err != nil {
		t.Fatalf("AddAnnotation %+v: %v", a, err)
	}
	return id
}

func testDocuments(t *testing.T, st store.Store) {
	defer st.Close()
	ctx := context.Background()
	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	seed(t, st, "doc-a", t0)
	seed(t, st, "doc-b", t0.Add(time.Minute))

	d, err := st.GetDocument(ctx, "doc-a")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if d.Content != content || d.Name != "doc-a.txt" || d.Language != "eng" {
		t.Errorf("unexpected document %+v", d)
	}
	if !d.CreatedAt.Equal(t0) {
		t.Errorf("expected created_at %v, got %v", t0, d.CreatedAt)
	}

	list, err := st.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments: %v", err)
	}
	if len(list) != 2 || list[0].ID != "doc-b" || list[1].Length != len(content) {
		t.Errorf("unexpected listing %+v", list)
	}

	if _, err := st.GetDocument(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	add(t, st, store.Annotation{DocID: "doc-a", Set: "s", Type: "Token", Start: 0, End: 3})
	if err := st.DeleteDocument(ctx, "doc-a"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if _, err := st.GetDocument(ctx, "doc-a"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected deleted document to be gone, got %v", err)
	}
	if err := st.DeleteDocument(ctx, "doc-a"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
	seed(t, st, "doc-a", t0)
	if anns, _ := st.AnnotationsByType(ctx, "doc-a", "s", ""); len(anns) != 0 {
		t.Errorf("expected annotations to be deleted with their document, got %d", len(anns))
	}
}

func testAnnotationOrder(t *testing.T, st store.Store) {
	defer st.Close()
	ctx := context.Background()
	seed(t, st, "d", time.Now().UTC())

	chunk := add(t, st, store.Annotation{DocID: "d", Set: "Analysis", Type: "Chunk", Start: 16, End: 30,
		Features: map[string]any{"label": "sn", "isChunk": true}})
	windows := add(t, st, store.Annotation{DocID: "d", Set: "Analysis", Type: "Token", Start: 23, End: 30,
		Features: map[string]any{"lemma": "window", "position": int64(5)}})
	bigger := add(t, st, store.Annotation{DocID: "d", Set: "Analysis", Type: "Token", Start: 16, End: 22,
		Features: map[string]any{"lemma": "big"}})
	add(t, st, store.Annotation{DocID: "d", Set: "Other", Type: "Token", Start: 0, End: 3})

	if chunk == windows || windows == bigger {
		t.Fatal("expected distinct annotation ids")
	}

	tokens, err := st.AnnotationsByType(ctx, "d", "Analysis", "Token")
	if err != nil {
		t.Fatalf("AnnotationsByType: %v", err)
	}
	if len(tokens) != 2 || tokens[0].ID != bigger || tokens[1].ID != windows {
		t.Fatalf("expected tokens ordered by offset, got %+v", tokens)
	}
	w := tokens[1]
	if w.DocID != "d" || w.Set != "Analysis" || w.Type != "Token" || w.Start != 23 || w.End != 30 {
		t.Errorf("unexpected annotation %+v", w)
	}
	if w.Features["lemma"] != "window" {
		t.Errorf("expected lemma feature, got %v", w.Features)
	}
	if n, ok := store.IntFeature(w.Features, "position"); !ok || n != 5 {
		t.Errorf("expected position 5, got %v", w.Features["position"])
	}

	all, err := st.AnnotationsByType(ctx, "d", "Analysis", "")
	if err != nil {
		t.Fatalf("AnnotationsByType all: %v", err)
	}
	ids := []int64{all[0].ID, all[1].ID, all[2].ID}
	if !reflect.DeepEqual(ids, []int64{bigger, chunk, windows}) {
		t.Errorf("expected start/end ordering, got %v", ids)
	}
	if all[1].Features["isChunk"] != true {
		t.Errorf("expected bool feature, got %v", all[1].Features)
	}

	if _, err := st.AnnotationsByType(ctx, "nope", "Analysis", ""); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown document, got %v", err)
	}
}

func testInvalidSpan(t *testing.T, st store.Store) {
	defer st.Close()
	ctx := context.Background()
	seed(t, st, "d", time.Now().UTC())

	for _, a := range []store.Annotation{
		{DocID: "d", Set: "s", Type: "Token", Start: 5, End: 4},
		{DocID: "d", Set: "s", Type: "Token", Start: 0, End: uint64(len(content)) + 1},
	} {
		if _, err := st.AddAnnotation(ctx, a); !errors.Is(err, store.ErrInvalidSpan) {
			t.Errorf("span [%d,%d): expected ErrInvalidSpan, got %v", a.Start, a.End, err)
		}
	}
	if _, err := st.AddAnnotation(ctx, store.Annotation{DocID: "x", Set: "s", Type: "Token"}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown document, got %v", err)
	}
	// Full-length and zero-width spans are valid.
	add(t, st, store.Annotation{DocID: "d", Set: "s", Type: "Sentence", Start: 0, End: uint64(len(content))})
	add(t, st, store.Annotation{DocID: "d", Set: "s", Type: "Mark", Start: 7, End: 7})
}

func testOverlap(t *testing.T, st store.Store) {
	defer st.Close()
	ctx := context.Background()
	seed(t, st, "d", time.Now().UTC())

	the := add(t, st, store.Annotation{DocID: "d", Set: "s", Type: "Token", Start: 0, End: 3})
	car := add(t, st, store.Annotation{DocID: "d", Set: "s", Type: "Token", Start: 8, End: 11})
	add(t, st, store.Annotation{DocID: "d", Set: "s", Type: "Token", Start: 12, End: 15})

	got, err := st.AnnotationsOverlapping(ctx, "d", "s", 2, 9)
	if err != nil {
		t.Fatalf("AnnotationsOverlapping: %v", err)
	}
	if len(got) != 2 || got[0].ID != the || got[1].ID != car {
		t.Errorf("expected the and car, got %+v", got)
	}
	got, _ = st.AnnotationsOverlapping(ctx, "d", "s", 3, 8)
	if len(got) != 0 {
		t.Errorf("expected touching spans not to overlap, got %+v", got)
	}
}

func testSets(t *testing.T, st store.Store) {
	defer st.Close()
	ctx := context.Background()
	seed(t, st, "d", time.Now().UTC())

	add(t, st, store.Annotation{DocID: "d", Set: "Analysis", Type: "Token", Start: 0, End: 3})
	add(t, st, store.Annotation{DocID: "d", Set: "Analysis", Type: "Chunk", Start: 0, End: 11})
	add(t, st, store.Annotation{DocID: "d", Set: "Original markups", Type: "Section", Start: 0, End: 31})

	sets, err := st.AnnotationSets(ctx, "d")
	if err != nil {
		t.Fatalf("AnnotationSets: %v", err)
	}
	if !reflect.DeepEqual(sets, []string{"Analysis", "Original markups"}) {
		t.Errorf("unexpected sets %v", sets)
	}

	n, err := st.RemoveAnnotationSet(ctx, "d", "Analysis")
	if err != nil || n != 2 {
		t.Fatalf("expected 2 removed, got %d, %v", n, err)
	}
	sets, _ = st.AnnotationSets(ctx, "d")
	if !reflect.DeepEqual(sets, []string{"Original markups"}) {
		t.Errorf("unexpected sets after removal %v", sets)
	}
	if n, _ := st.RemoveAnnotationSet(ctx, "d", "Analysis"); n != 0 {
		t.Errorf("expected nothing left to remove, got %d", n)
	}
}
