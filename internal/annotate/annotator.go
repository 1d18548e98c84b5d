// Package annotate analyzes stored documents and commits the results as
// span annotations.
package annotate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docannot/internal/analysis"
	"github.com/dgallion1/docannot/internal/analyzer"
	"github.com/dgallion1/docannot/internal/flatten"
	"github.com/dgallion1/docannot/internal/profile"
	"github.com/dgallion1/docannot/internal/store"
)

// DefaultOutputSet receives annotations when no set is configured.
const DefaultOutputSet = "Analysis"

// Options controls one Annotate call. Zero values fall back to the
// annotator defaults.
type Options struct {
	// Language overrides the document language.
	Language string `json:"language,omitempty"`
	// SentenceSet and SentenceType name existing sentence annotations.
	// When both are set the splitter is skipped and each sentence is
	// analyzed on its own.
	SentenceSet  string `json:"sentence_set,omitempty"`
	SentenceType string `json:"sentence_type,omitempty"`
	OutputSet    string `json:"output_set,omitempty"`
	// AppendLanguage suffixes the output set with "_<lang>".
	AppendLanguage bool `json:"append_language,omitempty"`
	Workers        int  `json:"workers,omitempty"`

	// OnSentence is called once per sentence in document order.
	OnSentence func(parsed bool) `json:"-"`
}

// Defaults are applied to empty Options fields.
type Defaults struct {
	Language       string
	OutputSet      string
	AppendLanguage bool
	Workers        int
}

// Report summarizes one annotated document.
type Report struct {
	DocID        string                  `json:"doc_id"`
	Language     string                  `json:"language"`
	OutputSet    string                  `json:"output_set"`
	Sentences    int                     `json:"sentences"`
	Parsed       int                     `json:"parsed"`
	Unparsed     int                     `json:"unparsed"`
	Annotations  int                     `json:"annotations"`
	Anomalies    int                     `json:"anomalies"`
	Failures     []*MaterializationError `json:"-"`
	LocalSeconds float64                 `json:"local_seconds"`
}

// Annotator ties the analysis pipeline to a store.
type Annotator struct {
	pipe     *analysis.Pipeline
	st       store.Store
	log      *slog.Logger
	defaults Defaults
}

// New creates an Annotator.
func New(pipe *analysis.Pipeline, st store.Store, log *slog.Logger, defaults Defaults) *Annotator {
	if defaults.OutputSet == "" {
		defaults.OutputSet = DefaultOutputSet
	}
	if defaults.Workers <= 0 {
		defaults.Workers = 1
	}
	return &Annotator{pipe: pipe, st: st, log: log, defaults: defaults}
}

// Store returns the store annotations are written to.
func (a *Annotator) Store() store.Store { return a.st }

// Annotate analyzes document docID and commits Token, Chunk and, for
// self-segmented documents, Sentence annotations. A stage failure on the
// whole-document path fails the call; on the pre-segmented path it only
// marks that sentence unparsed.
func (a *Annotator) Annotate(ctx context.Context, docID string, opts Options) (Report, error) {
	rep := Report{DocID: docID}
	doc, err := a.st.GetDocument(ctx, docID)
	if err != nil {
		return rep, err
	}

	lang := opts.Language
	if lang == "" {
		lang = doc.Language
	}
	if lang == "" {
		lang = a.defaults.Language
	}
	set, err := a.pipe.Registry().GetOrInit(ctx, lang)
	if err != nil {
		return rep, err
	}
	rep.Language = string(set.Lang)
	rep.OutputSet = a.outputSet(opts, rep.Language)

	log := a.log.With("doc_id", docID, "lang", rep.Language, "set", rep.OutputSet)
	start := time.Now()
	var local profile.Counter

	if opts.SentenceSet != "" && opts.SentenceType != "" {
		err = a.annotateSentences(ctx, doc, opts, &rep, &local, log)
	} else {
		err = a.annotateDocument(ctx, doc, opts, &rep, &local, log)
	}
	rep.LocalSeconds = local.Seconds()
	if err != nil {
		log.Error("annotation failed", "error", err)
		return rep, err
	}

	log.Info("document annotated",
		"sentences", rep.Sentences,
		"parsed", rep.Parsed,
		"unparsed", rep.Unparsed,
		"annotations", rep.Annotations,
		"failures", len(rep.Failures),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return rep, nil
}

func (a *Annotator) outputSet(opts Options, lang string) string {
	name := opts.OutputSet
	if name == "" {
		name = a.defaults.OutputSet
	}
	if opts.AppendLanguage || a.defaults.AppendLanguage {
		name += "_" + lang
	}
	return name
}

func (a *Annotator) annotateDocument(ctx context.Context, doc store.Document, opts Options, rep *Report, local *profile.Counter, log *slog.Logger) error {
	sentences, err := a.pipe.AnalyzeDocument(ctx, doc.Content, rep.Language, local)
	if err != nil {
		return err
	}

	var next uint64
	for _, s := range sentences {
		sentenceID := next
		res := flatten.Flatten(s, next+1, log)
		next = res.Next

		pending := make([]Pending, 0, len(res.Drafts)+1)
		if res.HasSentence {
			sd := flatten.Draft{LocalID: sentenceID, Kind: flatten.KindSentence, Span: res.Sentence}
			pending = append(pending, Pending{Draft: sd, Span: Translate(sd, 0, false)})
		}
		pending = append(pending, TranslateAll(res.Drafts, 0, false)...)

		a.commit(ctx, doc.ID, pending, res.Anomalies, rep, log)
		rep.Sentences++
		rep.Parsed++
		notify(opts, true)
	}
	return ctx.Err()
}

type sentenceSlot struct {
	done     chan struct{}
	sentence *analyzer.Sentence
	err      error
}

func (a *Annotator) annotateSentences(ctx context.Context, doc store.Document, opts Options, rep *Report, local *profile.Counter, log *slog.Logger) error {
	sentences, err := a.st.AnnotationsByType(ctx, doc.ID, opts.SentenceSet, opts.SentenceType)
	if err != nil {
		return fmt.Errorf("load sentences: %w", err)
	}
	if opts.SentenceSet != rep.OutputSet {
		for _, s := range sentences {
			s.Set = rep.OutputSet
			if _, err := a.st.AddAnnotation(ctx, s); err != nil {
				return fmt.Errorf("copy sentence %d: %w", s.ID, err)
			}
			rep.Annotations++
		}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = a.defaults.Workers
	}

	// Analysis runs ahead on the worker pool; commits happen here, in
	// document order, so draft ids only depend on the document.
	slots := make([]sentenceSlot, len(sentences))
	for i := range slots {
		slots[i].done = make(chan struct{})
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	waited := make(chan error, 1)
	go func() {
		for i, s := range sentences {
			slot := &slots[i]
			g.Go(func() error {
				defer close(slot.done)
				if err := gctx.Err(); err != nil {
					slot.err = err
					return err
				}
				if s.End > uint64(len(doc.Content)) || s.Start > s.End {
					slot.err = fmt.Errorf("sentence %d [%d,%d) outside content", s.ID, s.Start, s.End)
					return nil
				}
				slot.sentence, slot.err = a.pipe.AnalyzeSentence(gctx, doc.Content[s.Start:s.End], rep.Language, local)
				return nil
			})
		}
		waited <- g.Wait()
	}()

	var next uint64
	var abort error
	for i, s := range sentences {
		slot := &slots[i]
		<-slot.done
		rep.Sentences++
		if slot.err != nil {
			if ctx.Err() != nil {
				abort = ctx.Err()
				break
			}
			rep.Unparsed++
			log.Warn("sentence not analyzed", "sentence_id", s.ID, "start", s.Start, "end", s.End, "error", slot.err)
			notify(opts, false)
			continue
		}

		res := flatten.Flatten(slot.sentence, next, log)
		next = res.Next
		slot.sentence = nil
		a.commit(ctx, doc.ID, TranslateAll(res.Drafts, s.Start, true), res.Anomalies, rep, log)
		rep.Parsed++
		notify(opts, true)
	}

	if err := <-waited; abort == nil && err != nil && !errors.Is(err, context.Canceled) {
		abort = err
	}
	if abort == nil {
		abort = ctx.Err()
	}
	return abort
}

func (a *Annotator) commit(ctx context.Context, docID string, pending []Pending, anomalies int, rep *Report, log *slog.Logger) {
	c := Materialize(ctx, a.st, docID, rep.OutputSet, pending)
	rep.Annotations += len(c.IDs)
	rep.Anomalies += anomalies
	for _, f := range c.Failures {
		log.Warn("annotation not committed", "local_id", f.LocalID, "kind", string(f.Kind), "start", f.Span.Start, "end", f.Span.End, "error", f.Err)
	}
	rep.Failures = append(rep.Failures, c.Failures...)
}

func notify(opts Options, parsed bool) {
	if opts.OnSentence != nil {
		opts.OnSentence(parsed)
	}
}

// ResetAnnotations removes an output set from a document.
func (a *Annotator) ResetAnnotations(ctx context.Context, docID, set string) (int, error) {
	if set == "" {
		set = a.defaults.OutputSet
	}
	return a.st.RemoveAnnotationSet(ctx, docID, set)
}
