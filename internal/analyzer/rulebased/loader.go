// Package rulebased is a deterministic reference implementation of the
// analysis stages driven by per-language resource files:
//
//	<dir>/<lang>/analyzer.yaml   splitter, tokenizer, tagging and grammar rules
//	<dir>/<lang>/lexicon.txt     "form lemma tag [lemma tag...]" lines
//	<dir>/<lang>/senses.txt      "lemma tagprefix sense:weight..." lines
package rulebased

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docannot/internal/analyzer"
)

const (
	manifestFile = "analyzer.yaml"
	lexiconFile  = "lexicon.txt"
	sensesFile   = "senses.txt"
)

// NewLoader returns a loader reading language resources under dir.
func NewLoader(dir string) analyzer.Loader {
	return func(ctx context.Context, lang string) (*analyzer.Stages, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return Load(filepath.Join(dir, lang))
	}
}

// Load builds all stages from one language directory.
func Load(langDir string) (*analyzer.Stages, error) {
	m, err := LoadManifest(filepath.Join(langDir, manifestFile))
	if err != nil {
		return nil, err
	}
	lex, err := openDictionary(filepath.Join(langDir, lexiconFile))
	if err != nil {
		return nil, fmt.Errorf("lexicon: %w", err)
	}
	senses, err := openDictionary(filepath.Join(langDir, sensesFile))
	if err != nil {
		lex.Close()
		return nil, fmt.Errorf("senses: %w", err)
	}
	if lex.size() == 0 {
		lex.Close()
		senses.Close()
		return nil, fmt.Errorf("lexicon %s has no entries", filepath.Join(langDir, lexiconFile))
	}
	parser, err := newGrammarParser(m.Parser)
	if err != nil {
		lex.Close()
		senses.Close()
		return nil, fmt.Errorf("grammar: %w", err)
	}

	abbrevs := make(map[string]bool, len(m.Tokenizer.Abbreviations))
	for _, a := range m.Tokenizer.Abbreviations {
		abbrevs[strings.ToLower(a)] = true
	}

	return &analyzer.Stages{
		Splitter:     newSplitter(m.Splitter, abbrevs),
		Tokenizer:    newTokenizer(m.Tokenizer),
		Morph:        &morphAnalyzer{lexicon: lex, rules: m.Morphology},
		Tagger:       &tagger{rules: m.Tagger.Rules},
		NEClassifier: &neClassifier{rules: m.NER},
		SenseTagger:  &senseTagger{senses: senses},
		Disambiguate: disambiguator{},
		Parser:       parser,
		Closer:       closers{lex, senses},
	}, nil
}

type closers []interface{ Close() error }

func (c closers) Close() error {
	var errs []error
	for _, cl := range c {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
