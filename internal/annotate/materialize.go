package annotate

import (
	"context"
	"fmt"

	"github.com/dgallion1/docannot/internal/analyzer"
	"github.com/dgallion1/docannot/internal/flatten"
	"github.com/dgallion1/docannot/internal/store"
)

// Translate maps a draft span to document coordinates. With useBase the
// draft is relative to an externally supplied sentence starting at base;
// otherwise it is already document-absolute.
func Translate(d flatten.Draft, base uint64, useBase bool) analyzer.Span {
	if !useBase {
		return d.Span
	}
	return analyzer.Span{Start: base + d.Span.Start, End: base + d.Span.End}
}

// Pending is a draft with its translated span.
type Pending struct {
	Draft flatten.Draft
	Span  analyzer.Span
}

// TranslateAll translates every draft with the same base.
func TranslateAll(drafts []flatten.Draft, base uint64, useBase bool) []Pending {
	out := make([]Pending, len(drafts))
	for i, d := range drafts {
		out[i] = Pending{Draft: d, Span: Translate(d, base, useBase)}
	}
	return out
}

// MaterializationError reports a draft the store refused.
type MaterializationError struct {
	LocalID uint64
	Kind    flatten.Kind
	Span    analyzer.Span
	Err     error
}

func (e *MaterializationError) Error() string {
	return fmt.Sprintf("commit %s %d [%d,%d): %v", e.Kind, e.LocalID, e.Span.Start, e.Span.End, e.Err)
}

func (e *MaterializationError) Unwrap() error { return e.Err }

// Commit is the outcome of one Materialize call.
type Commit struct {
	// IDs maps draft ids to committed annotation ids.
	IDs      map[uint64]int64
	Failures []*MaterializationError
}

// Materialize inserts pending drafts into set in order. A failed insert is
// recorded and the rest of the batch is still attempted; nothing already
// committed is rolled back. Once ctx is done the remaining drafts fail
// with its error.
func Materialize(ctx context.Context, st store.Store, docID, set string, pending []Pending) Commit {
	c := Commit{IDs: make(map[uint64]int64, len(pending))}
	for _, p := range pending {
		err := ctx.Err()
		if err == nil {
			var id int64
			id, err = st.AddAnnotation(ctx, store.Annotation{
				DocID:    docID,
				Set:      set,
				Type:     string(p.Draft.Kind),
				Start:    p.Span.Start,
				End:      p.Span.End,
				Features: p.Draft.Features,
			})
			if err == nil {
				c.IDs[p.Draft.LocalID] = id
				continue
			}
		}
		c.Failures = append(c.Failures, &MaterializationError{
			LocalID: p.Draft.LocalID,
			Kind:    p.Draft.Kind,
			Span:    p.Span,
			Err:     err,
		})
	}
	return c
}
