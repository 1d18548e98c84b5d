package annotate

import (
	"context"

	"github.com/dgallion1/docannot/internal/analyzer"
	"github.com/dgallion1/docannot/internal/flatten"
	"github.com/dgallion1/docannot/internal/store"
)

// SentenceView is one sentence and the tokens it contains, in document
// order.
type SentenceView struct {
	SentenceID int64              `json:"sentence_id"`
	Span       analyzer.Span      `json:"span"`
	Tokens     []store.Annotation `json:"tokens"`
}

// SentenceTokens joins the Token annotations of tokenSet with the Sentence
// annotations of sentenceSet by containment. Tokens outside every sentence
// and tokens without a lemma are left out.
func SentenceTokens(ctx context.Context, st store.Store, docID, sentenceSet, tokenSet string) ([]SentenceView, error) {
	sentences, err := st.AnnotationsByType(ctx, docID, sentenceSet, string(flatten.KindSentence))
	if err != nil {
		return nil, err
	}
	tokens, err := st.AnnotationsByType(ctx, docID, tokenSet, string(flatten.KindToken))
	if err != nil {
		return nil, err
	}

	out := make([]SentenceView, len(sentences))
	for i, s := range sentences {
		out[i] = SentenceView{SentenceID: s.ID, Span: analyzer.Span{Start: s.Start, End: s.End}}
	}

	// Both slices are ordered by start offset.
	j := 0
	for _, tok := range tokens {
		if lemma, _ := tok.Features[flatten.FeatLemma].(string); lemma == "" {
			continue
		}
		span := analyzer.Span{Start: tok.Start, End: tok.End}
		for j < len(out) && out[j].Span.End <= tok.Start && !out[j].Span.Contains(span) {
			j++
		}
		for k := j; k < len(out) && out[k].Span.Start <= tok.Start; k++ {
			if out[k].Span.Contains(span) {
				out[k].Tokens = append(out[k].Tokens, tok)
				break
			}
		}
	}
	return out, nil
}
