package annotate

import (
	"context"
	"fmt"

	"github.com/dgallion1/docannot/internal/doctree"
	"github.com/dgallion1/docannot/internal/store"
)

// MarkupSet receives the outline of imported files.
const MarkupSet = "Original markups"

// AddSections records a rendered outline as Section annotations, or
// Paragraph annotations for untitled nodes, in MarkupSet.
func AddSections(ctx context.Context, st store.Store, docID string, sections []doctree.Section) (int, error) {
	for i, sec := range sections {
		typ := "Section"
		features := map[string]any{"depth": int64(sec.Depth)}
		if sec.Title != "" {
			features["title"] = sec.Title
		} else {
			typ = "Paragraph"
		}
		if sec.Page > 0 {
			features["page"] = int64(sec.Page)
		}
		_, err := st.AddAnnotation(ctx, store.Annotation{
			DocID:    docID,
			Set:      MarkupSet,
			Type:     typ,
			Start:    sec.Start,
			End:      sec.End,
			Features: features,
		})
		if err != nil {
			return i, fmt.Errorf("section %d: %w", i, err)
		}
	}
	return len(sections), nil
}
