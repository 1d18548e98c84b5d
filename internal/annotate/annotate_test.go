package annotate

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/docannot/internal/analysis"
	"github.com/dgallion1/docannot/internal/analyzer"
	"github.com/dgallion1/docannot/internal/analyzer/rulebased"
	"github.com/dgallion1/docannot/internal/flatten"
	"github.com/dgallion1/docannot/internal/resource"
	"github.com/dgallion1/docannot/internal/store"
	"github.com/dgallion1/docannot/internal/store/memstore"
)

const dataDir = "../../data"

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// failingTagger rejects any sentence containing the word "explode".
type failingTagger struct{ inner analyzer.Tagger }

func (f failingTagger) Tag(words []*analyzer.Word) error {
	for _, w := range words {
		if w.Form == "explode" {
			return errors.New("tagger rejected input")
		}
	}
	return f.inner.Tag(words)
}

func loader(failing bool) analyzer.Loader {
	base := rulebased.NewLoader(dataDir)
	return func(ctx context.Context, lang string) (*analyzer.Stages, error) {
		st, err := base(ctx, lang)
		if err != nil || !failing {
			return st, err
		}
		st.Tagger = failingTagger{inner: st.Tagger}
		return st, nil
	}
}

func newAnnotator(t *testing.T, failing bool) (*Annotator, store.Store) {
	t.Helper()
	reg := resource.NewRegistry(loader(failing), discard(), time.Hour)
	t.Cleanup(func() { reg.Close() })
	st := memstore.New()
	a := New(analysis.New(reg, discard()), st, discard(), Defaults{Language: "spa", Workers: 3})
	return a, st
}

func putDoc(t *testing.T, st store.Store, id, lang, text string) {
	t.Helper()
	err := st.PutDocument(context.Background(), store.Document{ID: id, Name: id, Language: lang, Content: text, CreatedAt: time.Now()})
	if err != nil {
		t.Fatalf("PutDocument: %v", err)
	}
}

func byType(t *testing.T, st store.Store, docID, set, typ string) []store.Annotation {
	t.Helper()
	anns, err := st.AnnotationsByType(context.Background(), docID, set, typ)
	if err != nil {
		t.Fatalf("AnnotationsByType: %v", err)
	}
	return anns
}

func featureWithPrefix(f map[string]any, prefix string) (string, any, bool) {
	for k, v := range f {
		if strings.HasPrefix(k, prefix) {
			return k, v, true
		}
	}
	return "", nil, false
}

func TestAnnotate_WholeDocumentEnglish(t *testing.T) {
	a, st := newAnnotator(t, false)
	text := "The new car has bigger windows."
	putDoc(t, st, "d", "eng", text)

	rep, err := a.Annotate(context.Background(), "d", Options{})
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if rep.Sentences != 1 || rep.Parsed != 1 || rep.Unparsed != 0 || len(rep.Failures) != 0 {
		t.Fatalf("unexpected report %+v", rep)
	}
	if rep.OutputSet != "Analysis" || rep.Language != "eng" {
		t.Errorf("unexpected set/lang %q %q", rep.OutputSet, rep.Language)
	}

	tokens := byType(t, st, "d", "Analysis", "Token")
	want := []string{"the", "new", "car", "have", "big", "window", "."}
	if len(tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %d", len(want), len(tokens))
	}
	var prevEnd uint64
	for i, tok := range tokens {
		if tok.Features[flatten.FeatLemma] != want[i] {
			t.Errorf("token %d: expected lemma %q, got %v", i, want[i], tok.Features[flatten.FeatLemma])
		}
		if tok.End > uint64(len(text)) || tok.Start < prevEnd {
			t.Errorf("token %d: span [%d,%d) overlaps or exceeds content", i, tok.Start, tok.End)
		}
		prevEnd = tok.End
	}

	sentences := byType(t, st, "d", "Analysis", "Sentence")
	if len(sentences) != 1 || sentences[0].Start != 0 || sentences[0].End != uint64(len(text)) {
		t.Errorf("unexpected sentence annotations %+v", sentences)
	}

	found := false
	for _, c := range byType(t, st, "d", "Analysis", "Chunk") {
		if text[c.Start:c.End] != "bigger windows" {
			continue
		}
		if _, head, ok := featureWithPrefix(c.Features, "headWordString_"); ok && head == "windows" {
			found = true
		}
	}
	if !found {
		t.Error(`expected a chunk over "bigger windows" headed by "windows"`)
	}
	if rep.Annotations != len(tokens)+len(sentences)+len(byType(t, st, "d", "Analysis", "Chunk")) {
		t.Errorf("report counts %d annotations", rep.Annotations)
	}
}

func TestAnnotate_ChunkIDsUniqueAcrossSentences(t *testing.T) {
	a, st := newAnnotator(t, false)
	putDoc(t, st, "d", "eng", "The new car has bigger windows. The dog runs.")

	if _, err := a.Annotate(context.Background(), "d", Options{}); err != nil {
		t.Fatalf("Annotate: %v", err)
	}

	chunks := byType(t, st, "d", "Analysis", "Chunk")
	tokens := byType(t, st, "d", "Analysis", "Token")
	seen := map[string]bool{}
	for _, c := range chunks {
		key, _, ok := featureWithPrefix(c.Features, "chunkHeadId_")
		if !ok {
			t.Fatalf("chunk without id %+v", c)
		}
		if seen[key] {
			t.Errorf("chunk id %s reused", key)
		}
		seen[key] = true

		holders := 0
		for _, tok := range tokens {
			if _, ok := tok.Features[key]; ok {
				holders++
				if tok.Start < c.Start || tok.End > c.End {
					t.Errorf("head token of %s lies outside the chunk", key)
				}
			}
		}
		if holders != 1 {
			t.Errorf("%s: expected one head token, got %d", key, holders)
		}
	}

	views, err := SentenceTokens(context.Background(), st, "d", "Analysis", "Analysis")
	if err != nil {
		t.Fatalf("SentenceTokens: %v", err)
	}
	if len(views) != 2 || len(views[0].Tokens) != 7 || len(views[1].Tokens) != 4 {
		t.Fatalf("unexpected sentence views %+v", views)
	}
	if views[1].Tokens[1].Features[flatten.FeatLemma] != "dog" {
		t.Errorf("expected dog in second sentence, got %v", views[1].Tokens[1].Features)
	}
}

func TestAnnotate_PreSegmented(t *testing.T) {
	a, st := newAnnotator(t, false)
	text := "The dog runs. The car has windows."
	putDoc(t, st, "d", "eng", text)
	ctx := context.Background()
	for _, sp := range []analyzer.Span{{Start: 0, End: 13}, {Start: 14, End: 34}} {
		if _, err := st.AddAnnotation(ctx, store.Annotation{DocID: "d", Set: "Original markups", Type: "Sentence", Start: sp.Start, End: sp.End}); err != nil {
			t.Fatal(err)
		}
	}

	var parsed int
	rep, err := a.Annotate(ctx, "d", Options{
		SentenceSet:    "Original markups",
		SentenceType:   "Sentence",
		OutputSet:      "FreeLing",
		AppendLanguage: true,
		OnSentence:     func(ok bool) {
			if ok {
				parsed++
			}
		},
	})
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if rep.OutputSet != "FreeLing_eng" || rep.Parsed != 2 || parsed != 2 {
		t.Fatalf("unexpected report %+v (callbacks %d)", rep, parsed)
	}

	copied := byType(t, st, "d", "FreeLing_eng", "Sentence")
	if len(copied) != 2 {
		t.Fatalf("expected sentences copied into the output set, got %d", len(copied))
	}
	for _, tok := range byType(t, st, "d", "FreeLing_eng", "Token") {
		form, _ := tok.Features[flatten.FeatForm].(string)
		if text[tok.Start:tok.End] != form {
			t.Errorf("token %q translated to [%d,%d) = %q", form, tok.Start, tok.End, text[tok.Start:tok.End])
		}
		if form == "car" && tok.Start != 18 {
			t.Errorf("expected car at 18, got %d", tok.Start)
		}
	}
}

func TestAnnotate_PreSegmentedSkipsFailedSentence(t *testing.T) {
	a, st := newAnnotator(t, true)
	text := "The dog runs. Please explode now."
	putDoc(t, st, "d", "eng", text)
	ctx := context.Background()
	for _, sp := range []analyzer.Span{{Start: 0, End: 13}, {Start: 14, End: 33}} {
		if _, err := st.AddAnnotation(ctx, store.Annotation{DocID: "d", Set: "Analysis", Type: "Sentence", Start: sp.Start, End: sp.End}); err != nil {
			t.Fatal(err)
		}
	}

	rep, err := a.Annotate(ctx, "d", Options{SentenceSet: "Analysis", SentenceType: "Sentence"})
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if rep.Sentences != 2 || rep.Parsed != 1 || rep.Unparsed != 1 {
		t.Fatalf("unexpected report %+v", rep)
	}
	if got := len(byType(t, st, "d", "Analysis", "Sentence")); got != 2 {
		t.Errorf("sentences must not be copied into their own set, got %d", got)
	}
	for _, tok := range byType(t, st, "d", "Analysis", "Token") {
		if tok.Start >= 14 {
			t.Errorf("no annotation may be committed for the failed sentence, got %+v", tok)
		}
	}
}

func TestAnnotate_WholeDocumentStageFailure(t *testing.T) {
	a, st := newAnnotator(t, true)
	putDoc(t, st, "d", "eng", "The dog runs. Please explode now.")

	_, err := a.Annotate(context.Background(), "d", Options{})
	if !errors.Is(err, analysis.ErrStageAnalysis) {
		t.Fatalf("expected stage error, got %v", err)
	}
	sets, _ := st.AnnotationSets(context.Background(), "d")
	if len(sets) != 0 {
		t.Errorf("expected nothing committed, got sets %v", sets)
	}
}

func TestAnnotate_LanguageResolution(t *testing.T) {
	a, st := newAnnotator(t, false)
	putDoc(t, st, "d", "", "El coche nuevo tiene ventanas más grandes.")

	rep, err := a.Annotate(context.Background(), "d", Options{})
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if rep.Language != "spa" {
		t.Errorf("expected default language spa, got %q", rep.Language)
	}

	_, err = a.Annotate(context.Background(), "d", Options{Language: "tlh"})
	if !errors.Is(err, resource.ErrResourceInit) {
		t.Errorf("expected init error, got %v", err)
	}
	if _, err := a.Annotate(context.Background(), "missing", Options{}); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestResetAnnotations(t *testing.T) {
	a, st := newAnnotator(t, false)
	putDoc(t, st, "d", "eng", "The dog runs.")
	rep, err := a.Annotate(context.Background(), "d", Options{})
	if err != nil {
		t.Fatal(err)
	}
	n, err := a.ResetAnnotations(context.Background(), "d", "")
	if err != nil || n != rep.Annotations {
		t.Fatalf("expected %d removed, got %d, %v", rep.Annotations, n, err)
	}
}

func TestTranslate(t *testing.T) {
	d := flatten.Draft{Span: analyzer.Span{Start: 4, End: 7}}
	if got := Translate(d, 100, true); got != (analyzer.Span{Start: 104, End: 107}) {
		t.Errorf("useBase: got %+v", got)
	}
	if got := Translate(d, 100, false); got != d.Span {
		t.Errorf("no base: got %+v", got)
	}
}

func TestMaterialize_BestEffort(t *testing.T) {
	st := memstore.New()
	putDoc(t, st, "d", "eng", "short")
	pending := TranslateAll([]flatten.Draft{
		{LocalID: 0, Kind: flatten.KindToken, Span: analyzer.Span{Start: 0, End: 5}},
		{LocalID: 1, Kind: flatten.KindToken, Span: analyzer.Span{Start: 3, End: 9}},
		{LocalID: 2, Kind: flatten.KindChunk, Span: analyzer.Span{Start: 0, End: 5}},
	}, 0, false)

	c := Materialize(context.Background(), st, "d", "Analysis", pending)
	if len(c.IDs) != 2 || len(c.Failures) != 1 {
		t.Fatalf("expected 2 committed and 1 failure, got %d / %d", len(c.IDs), len(c.Failures))
	}
	f := c.Failures[0]
	if f.LocalID != 1 || !errors.Is(f, store.ErrInvalidSpan) {
		t.Errorf("unexpected failure %v", f)
	}
	if _, ok := c.IDs[2]; !ok {
		t.Error("expected sibling after the failure to be committed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c = Materialize(ctx, st, "d", "Analysis", pending[:1])
	if len(c.Failures) != 1 || !errors.Is(c.Failures[0], context.Canceled) {
		t.Errorf("expected cancellation failure, got %+v", c.Failures)
	}
}
