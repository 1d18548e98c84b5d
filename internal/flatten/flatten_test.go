package flatten

import (
	"reflect"
	"testing"

	"github.com/dgallion1/docannot/internal/analyzer"
)

func word(form, lemma, tag string, pos uint32, start uint64) *analyzer.Word {
	return &analyzer.Word{
		Form:     form,
		Lemma:    lemma,
		Tag:      tag,
		Position: pos,
		Span:     analyzer.Span{Start: start, End: start + uint64(len(form))},
		DepHead:  -1,
	}
}

func leaf(w *analyzer.Word, head bool) *analyzer.Node {
	return &analyzer.Node{Word: w, IsHead: head}
}

// "The car runs ." as S[ sn[The car*] grup-verb*[runs*] F[.*] ]
func sampleSentence() *analyzer.Sentence {
	the := word("The", "the", "DT", 0, 0)
	car := word("car", "car", "NN", 1, 4)
	runs := word("runs", "run", "VBZ", 2, 8)
	dot := word(".", ".", "Fp", 3, 12)
	tree := &analyzer.Node{Label: "S", Children: []*analyzer.Node{
		{Label: "sn", IsChunk: true, Children: []*analyzer.Node{leaf(the, false), leaf(car, true)}},
		{Label: "grup-verb", IsChunk: true, IsHead: true, Children: []*analyzer.Node{leaf(runs, true)}},
		{Label: "F", IsChunk: true, Children: []*analyzer.Node{leaf(dot, true)}},
	}}
	return &analyzer.Sentence{Words: []*analyzer.Word{the, car, runs, dot}, Tree: tree}
}

func byID(drafts []Draft) map[uint64]Draft {
	out := make(map[uint64]Draft, len(drafts))
	for _, d := range drafts {
		out[d.LocalID] = d
	}
	return out
}

func TestFlatten_TokensThenChunks(t *testing.T) {
	res := Flatten(sampleSentence(), 0, nil)

	if len(res.Drafts) != 8 {
		t.Fatalf("expected 4 tokens + 4 chunks, got %d drafts", len(res.Drafts))
	}
	for i, d := range res.Drafts {
		if d.LocalID != uint64(i) {
			t.Errorf("draft %d: expected id %d, got %d", i, i, d.LocalID)
		}
		wantKind := KindToken
		if i >= 4 {
			wantKind = KindChunk
		}
		if d.Kind != wantKind {
			t.Errorf("draft %d: expected %s, got %s", i, wantKind, d.Kind)
		}
	}
	if res.Next != 8 {
		t.Errorf("expected next id 8, got %d", res.Next)
	}
	if res.Anomalies != 0 {
		t.Errorf("expected no anomalies, got %d", res.Anomalies)
	}
	if !res.HasSentence || res.Sentence != (analyzer.Span{Start: 0, End: 13}) {
		t.Errorf("unexpected sentence span %+v", res.Sentence)
	}

	root := res.Drafts[4]
	if root.Features[FeatLabel] != "S" || root.Features[FeatIsChunk] != false {
		t.Errorf("unexpected root features %v", root.Features)
	}
	if root.Span != (analyzer.Span{Start: 0, End: 13}) {
		t.Errorf("expected root to span the sentence, got %+v", root.Span)
	}
	if root.Features[HeadWordKey(4)] != "runs" {
		t.Errorf("expected root head word runs, got %v", root.Features[HeadWordKey(4)])
	}

	sn := res.Drafts[5]
	if sn.Features[FeatLabel] != "sn" || sn.Span != (analyzer.Span{Start: 0, End: 7}) {
		t.Errorf("unexpected sn draft %+v", sn)
	}
	if sn.Features[ChunkHeadKey(5)] != int64(5) || sn.Features[HeadWordKey(5)] != "car" {
		t.Errorf("unexpected sn head features %v", sn.Features)
	}

	the := res.Drafts[0].Features
	if the[FeatLemma] != "the" || the[FeatPOS] != "DT" || the[FeatForm] != "The" {
		t.Errorf("unexpected token features %v", the)
	}
	if the[FeatStartSpan] != int64(0) || the[FeatEndSpan] != int64(3) || the[FeatPosition] != int64(0) {
		t.Errorf("unexpected token offsets %v", the)
	}
	if _, ok := the[FeatPhForm]; ok {
		t.Error("expected empty phonetic form to be omitted")
	}

	runs := res.Drafts[2].Features
	for _, k := range []string{ChunkHeadKey(4), ChunkHeadKey(6), LabelKey(6)} {
		if _, ok := runs[k]; !ok {
			t.Errorf("expected %s on head token, got %v", k, runs)
		}
	}
	if runs[LabelKey(6)] != "grup-verb" {
		t.Errorf("expected label_6 grup-verb, got %v", runs[LabelKey(6)])
	}
	if _, ok := runs[LabelKey(4)]; ok {
		t.Error("label is only set by the immediate chunk")
	}
}

func TestFlatten_HeadUniqueness(t *testing.T) {
	res := Flatten(sampleSentence(), 0, nil)
	for _, c := range res.Drafts {
		if c.Kind != KindChunk {
			continue
		}
		key := ChunkHeadKey(c.LocalID)
		holders := 0
		for _, tok := range res.Drafts {
			if tok.Kind != KindToken {
				continue
			}
			if _, ok := tok.Features[key]; ok {
				holders++
			}
		}
		if holders != 1 {
			t.Errorf("chunk %d: expected exactly one head token, got %d", c.LocalID, holders)
		}
	}
}

func TestFlatten_ChunkSpanCoversTokens(t *testing.T) {
	s := sampleSentence()
	res := Flatten(s, 0, nil)
	chunks := res.Drafts[4:]
	for i, n := range []*analyzer.Node{s.Tree, s.Tree.Children[0], s.Tree.Children[1], s.Tree.Children[2]} {
		for _, w := range analyzer.Leaves(n) {
			if !chunks[i].Span.Contains(w.Span) {
				t.Errorf("chunk %d %+v does not contain %q %+v", chunks[i].LocalID, chunks[i].Span, w.Form, w.Span)
			}
		}
	}
}

func TestFlatten_Deterministic(t *testing.T) {
	s := sampleSentence()
	a := Flatten(s, 0, nil)
	b := Flatten(s, 0, nil)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("expected identical drafts for the same tree")
	}
}

func TestFlatten_FirstID(t *testing.T) {
	res := Flatten(sampleSentence(), 100, nil)
	if res.Drafts[0].LocalID != 100 || res.Next != 108 {
		t.Fatalf("expected ids 100..107, got first %d next %d", res.Drafts[0].LocalID, res.Next)
	}
	if _, ok := res.Drafts[1].Features[ChunkHeadKey(105)]; !ok {
		t.Errorf("expected car to head chunk 105, got %v", res.Drafts[1].Features)
	}
}

func TestFlatten_DegenerateChunkSkipped(t *testing.T) {
	empty := &analyzer.Word{Form: "", Lemma: "ø", Span: analyzer.Span{Start: 5, End: 5}}
	s := &analyzer.Sentence{
		Words: []*analyzer.Word{empty},
		Tree: &analyzer.Node{Label: "S", Children: []*analyzer.Node{
			{Label: "sn", IsChunk: true, IsHead: true, Children: []*analyzer.Node{leaf(empty, true)}},
		}},
	}
	res := Flatten(s, 0, nil)
	for _, d := range res.Drafts {
		if d.Kind == KindChunk {
			t.Errorf("expected no chunk drafts, got %+v", d)
		}
	}
	if len(res.Drafts) != 1 || res.Next != 1 {
		t.Errorf("expected the token draft only, got %d drafts next=%d", len(res.Drafts), res.Next)
	}
	if res.Anomalies != 0 {
		t.Errorf("a zero-width chunk is not an anomaly, got %d", res.Anomalies)
	}
}

func TestFlatten_Anomalies(t *testing.T) {
	a := word("a", "a", "DT", 0, 0)
	dog := word("dog", "dog", "NN", 1, 2)
	s := &analyzer.Sentence{
		Words: []*analyzer.Word{a, dog},
		Tree: &analyzer.Node{Label: "S", Children: []*analyzer.Node{
			nil,
			{Label: "sn", IsChunk: true, Children: []*analyzer.Node{
				leaf(a, false), leaf(dog, false), {IsHead: true},
			}},
		}},
	}
	res := Flatten(s, 0, nil)
	// nil child, wordless leaf, and an unresolved head on both S and sn.
	if res.Anomalies != 4 {
		t.Fatalf("expected 4 anomalies, got %d", res.Anomalies)
	}
	chunks := 0
	for _, d := range res.Drafts {
		if d.Kind != KindChunk {
			continue
		}
		chunks++
		if _, ok := d.Features[HeadWordKey(d.LocalID)]; ok {
			t.Errorf("chunk %d: expected no head word", d.LocalID)
		}
	}
	if chunks != 2 {
		t.Errorf("expected both chunks to be emitted, got %d", chunks)
	}
}

func TestFlatten_DropsWordsWithoutLemma(t *testing.T) {
	the := word("The", "the", "DT", 0, 0)
	odd := word("@@", "", "", 1, 4)
	dog := word("dog", "dog", "NN", 2, 7)
	s := &analyzer.Sentence{
		Words: []*analyzer.Word{the, odd, dog},
		Tree: &analyzer.Node{Label: "S", IsChunk: true, Children: []*analyzer.Node{
			leaf(the, false), leaf(odd, true), leaf(dog, false),
		}},
	}
	res := Flatten(s, 0, nil)
	tokens := 0
	for _, d := range res.Drafts {
		if d.Kind == KindToken {
			tokens++
		}
	}
	if tokens != 2 {
		t.Errorf("expected 2 tokens, got %d", tokens)
	}
	if res.Sentence != (analyzer.Span{Start: 0, End: 10}) {
		t.Errorf("unexpected sentence span %+v", res.Sentence)
	}
	root := res.Drafts[2]
	if root.Span != (analyzer.Span{Start: 0, End: 10}) || root.Features[HeadWordKey(2)] != "@@" {
		t.Errorf("unexpected root draft %+v", root)
	}
	if res.Anomalies != 1 {
		t.Errorf("expected the token-less head to be reported, got %d", res.Anomalies)
	}
}

func TestFlatten_NoTree(t *testing.T) {
	s := &analyzer.Sentence{Words: []*analyzer.Word{word("Hi", "hi", "UH", 0, 0)}}
	res := Flatten(s, 3, nil)
	if len(res.Drafts) != 1 || res.Next != 4 {
		t.Fatalf("unexpected result %+v", res)
	}

	res = Flatten(&analyzer.Sentence{}, 0, nil)
	if res.HasSentence || len(res.Drafts) != 0 {
		t.Errorf("expected nothing for an empty sentence, got %+v", res)
	}
}
