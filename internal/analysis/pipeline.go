// Package analysis drives the ordered analyzer stages over a document or a
// single sentence.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docannot/internal/analyzer"
	"github.com/dgallion1/docannot/internal/profile"
	"github.com/dgallion1/docannot/internal/resource"
)

// Pipeline runs split, tokenize, morph, tag, ner, senses, disambiguate and
// parse against the shared per-language sets of a Registry.
type Pipeline struct {
	reg *resource.Registry
	log *slog.Logger
}

// New creates a Pipeline backed by reg.
func New(reg *resource.Registry, log *slog.Logger) *Pipeline {
	return &Pipeline{reg: reg, log: log}
}

// Registry returns the registry the pipeline draws its stages from.
func (p *Pipeline) Registry() *resource.Registry { return p.reg }

// AnalyzeDocument splits text into sentences and analyzes each one. Word
// spans are byte offsets into text. Sentences without words are dropped.
// Time spent inside stages is added to local, which may be nil.
func (p *Pipeline) AnalyzeDocument(ctx context.Context, text, lang string, local *profile.Counter) ([]*analyzer.Sentence, error) {
	set, err := p.reg.GetOrInit(ctx, lang)
	if err != nil {
		return nil, err
	}
	start := time.Now()

	var spans []analyzer.Span
	err = runStage(ctx, set.Lang, set.Splitter, local, func(s analyzer.Splitter) error {
		var err error
		spans, err = s.Split(text)
		if err != nil {
			return err
		}
		for _, sp := range spans {
			if sp.Start > sp.End || sp.End > uint64(len(text)) {
				return fmt.Errorf("sentence span [%d,%d) outside text of length %d", sp.Start, sp.End, len(text))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(spans) == 0 {
		return nil, nil
	}

	sentences, err := p.run(ctx, set, text, spans, local)
	if err != nil {
		return nil, err
	}
	p.log.Debug("document analyzed",
		"lang", string(set.Lang),
		"sentences", len(sentences),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return sentences, nil
}

// AnalyzeSentence analyzes text as one sentence, skipping the splitter.
// Word spans are relative to text. A sentence without words is returned
// with no tree.
func (p *Pipeline) AnalyzeSentence(ctx context.Context, text, lang string, local *profile.Counter) (*analyzer.Sentence, error) {
	set, err := p.reg.GetOrInit(ctx, lang)
	if err != nil {
		return nil, err
	}
	sentences, err := p.run(ctx, set, text, []analyzer.Span{{End: uint64(len(text))}}, local)
	if err != nil {
		return nil, err
	}
	if len(sentences) == 0 {
		return &analyzer.Sentence{}, nil
	}
	return sentences[0], nil
}

// run takes each stage once for the whole batch of sentences so that a
// document holds no more than one stage at a time.
func (p *Pipeline) run(ctx context.Context, set *resource.Set, text string, spans []analyzer.Span, local *profile.Counter) ([]*analyzer.Sentence, error) {
	var sentences []*analyzer.Sentence
	err := runStage(ctx, set.Lang, set.Tokenizer, local, func(tk analyzer.Tokenizer) error {
		for _, sp := range spans {
			words, err := tk.Tokenize(text[sp.Start:sp.End], sp.Start)
			if err != nil {
				return err
			}
			if len(words) > 0 {
				sentences = append(sentences, &analyzer.Sentence{Words: words})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(sentences) == 0 {
		return nil, nil
	}

	each := func(fn func([]*analyzer.Word) error) error {
		for _, s := range sentences {
			if err := fn(s.Words); err != nil {
				return err
			}
		}
		return nil
	}
	steps := []func() error{
		func() error {
			return runStage(ctx, set.Lang, set.Morph, local, func(m analyzer.MorphAnalyzer) error { return each(m.Analyze) })
		},
		func() error {
			return runStage(ctx, set.Lang, set.Tagger, local, func(t analyzer.Tagger) error { return each(t.Tag) })
		},
		func() error {
			return runStage(ctx, set.Lang, set.NEClassifier, local, func(c analyzer.NEClassifier) error { return each(c.Classify) })
		},
		func() error {
			return runStage(ctx, set.Lang, set.SenseTagger, local, func(st analyzer.SenseTagger) error { return each(st.AddSenses) })
		},
		func() error {
			return runStage(ctx, set.Lang, set.Disambiguate, local, func(d analyzer.SenseDisambiguator) error { return each(d.Disambiguate) })
		},
		func() error {
			return runStage(ctx, set.Lang, set.Parser, local, func(ps analyzer.Parser) error {
				for _, s := range sentences {
					tree, err := ps.Parse(s.Words)
					if err != nil {
						return err
					}
					s.Tree = tree
				}
				return nil
			})
		},
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	return sentences, nil
}

// runStage checks ctx, then holds g while fn runs. Errors and panics from
// fn become a StageError; a cancelled wait is returned as is.
func runStage[T any](ctx context.Context, lang resource.Language, g *resource.Guard[T], local *profile.Counter, fn func(T) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var stageErr error
	err := g.Do(ctx, local, func(v T) error {
		stageErr = protect(fn, v)
		return stageErr
	})
	if stageErr != nil {
		return &StageError{Stage: g.Stage(), Lang: lang, Err: stageErr}
	}
	return err
}

func protect[T any](fn func(T) error, v T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(v)
}
