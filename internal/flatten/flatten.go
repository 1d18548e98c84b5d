package flatten

import (
	"log/slog"

	"github.com/dgallion1/docannot/internal/analyzer"
)

// Result is the flattened form of one sentence.
type Result struct {
	// Drafts holds token drafts in word order followed by chunk drafts in
	// pre-order.
	Drafts []Draft
	// Sentence spans every word that produced a token. It is only valid
	// when HasSentence is set.
	Sentence    analyzer.Span
	HasSentence bool
	// Anomalies counts malformed nodes that were skipped.
	Anomalies int
	// Next is the first id not used by this sentence.
	Next uint64
}

// builder is the state of one Flatten call. It never outlives the call.
type builder struct {
	log       *slog.Logger
	drafts    []Draft
	tokens    map[*analyzer.Word]int
	anomalies int
}

type chunkRef struct {
	id    uint64
	label string
	head  *analyzer.Word
}

// Flatten emits one Token draft per word with a lemma, then walks the tree
// emitting a Chunk draft for every internal node of non-zero width. Ids
// start at first and increase in emission order, so the same input always
// yields the same drafts. Head tokens receive a chunkHeadId_<id> feature
// for every chunk they head, plus label_<id> for their immediate chunk.
func Flatten(s *analyzer.Sentence, first uint64, log *slog.Logger) Result {
	b := &builder{log: log, tokens: make(map[*analyzer.Word]int, len(s.Words))}
	next := first

	var res Result
	for _, w := range s.Words {
		if w == nil || w.Lemma == "" {
			continue
		}
		b.tokens[w] = len(b.drafts)
		b.drafts = append(b.drafts, Draft{
			LocalID:  next,
			Kind:     KindToken,
			Span:     w.Span,
			Features: tokenFeatures(w),
		})
		next++

		if !res.HasSentence {
			res.Sentence, res.HasSentence = w.Span, true
			continue
		}
		res.Sentence.Start = min(res.Sentence.Start, w.Span.Start)
		res.Sentence.End = max(res.Sentence.End, w.Span.End)
	}

	if s.Tree != nil {
		next = b.walk(s.Tree, nil, next)
	}

	res.Drafts = b.drafts
	res.Anomalies = b.anomalies
	res.Next = next
	return res
}

func tokenFeatures(w *analyzer.Word) map[string]any {
	f := map[string]any{
		FeatStartSpan: int64(w.Span.Start),
		FeatEndSpan:   int64(w.Span.End),
		FeatLemma:     w.Lemma,
		FeatPosition:  int64(w.Position),
	}
	optional := map[string]string{
		FeatForm:   w.Form,
		FeatPOS:    w.Tag,
		FeatPhForm: w.PhForm,
		FeatNE:     w.NEClass,
		FeatSense:  w.Sense,
	}
	for k, v := range optional {
		if v != "" {
			f[k] = v
		}
	}
	if w.DepLabel != "" {
		f[FeatDepLabel] = w.DepLabel
		f[FeatDepHead] = int64(w.DepHead)
	}
	return f
}

// walk visits n in pre-order and returns the next free id. parent is the
// chunk emitted for n's parent, nil when the parent emitted nothing.
func (b *builder) walk(n *analyzer.Node, parent *chunkRef, next uint64) uint64 {
	if n.IsLeaf() {
		b.leaf(n, parent)
		return next
	}

	var self *chunkRef
	if span, ok := n.Span(); ok && span.Start < span.End {
		id := next
		next++
		self = b.chunk(n, id, span)
	}

	for _, c := range n.Children {
		if c == nil {
			b.anomaly("nil child", "label", n.Label)
			continue
		}
		next = b.walk(c, self, next)
	}
	return next
}

func (b *builder) chunk(n *analyzer.Node, id uint64, span analyzer.Span) *chunkRef {
	f := map[string]any{
		FeatIsChunk:      n.IsChunk,
		ChunkHeadKey(id): int64(id),
	}
	if n.Label != "" {
		f[FeatLabel] = n.Label
	}

	head := analyzer.HeadWord(n)
	switch {
	case head == nil:
		b.anomaly("unresolved head word", "label", n.Label, "chunk_id", id)
	default:
		f[HeadWordKey(id)] = head.Form
		if tok := b.token(head); tok != nil {
			tok.Features[ChunkHeadKey(id)] = int64(id)
		} else {
			b.anomaly("head word has no token", "label", n.Label, "chunk_id", id, "form", head.Form)
		}
	}

	b.drafts = append(b.drafts, Draft{LocalID: id, Kind: KindChunk, Span: span, Features: f})
	return &chunkRef{id: id, label: n.Label, head: head}
}

func (b *builder) leaf(n *analyzer.Node, parent *chunkRef) {
	if n.Word == nil {
		b.anomaly("leaf without word")
		return
	}
	if !n.IsHead || parent == nil {
		return
	}
	if parent.head != n.Word {
		b.anomaly("head leaf is not the head word of its chunk", "chunk_id", parent.id, "form", n.Word.Form)
		return
	}
	tok := b.token(n.Word)
	if tok == nil {
		return
	}
	tok.Features[ChunkHeadKey(parent.id)] = int64(parent.id)
	if parent.label != "" {
		tok.Features[LabelKey(parent.id)] = parent.label
	}
}

func (b *builder) token(w *analyzer.Word) *Draft {
	i, ok := b.tokens[w]
	if !ok {
		return nil
	}
	return &b.drafts[i]
}

func (b *builder) anomaly(msg string, args ...any) {
	b.anomalies++
	if b.log != nil {
		b.log.Warn("structural anomaly: "+msg, args...)
	}
}
