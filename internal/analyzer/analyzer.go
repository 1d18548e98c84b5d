// Package analyzer defines the linguistic stage contracts and the in-memory
// parse structure those stages produce for one sentence.
package analyzer

import (
	"context"
	"io"
)

// Span is a half-open [Start, End) byte range.
type Span struct {
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

// Len returns the width of the span.
func (s Span) Len() uint64 {
	if s.End < s.Start {
		return 0
	}
	return s.End - s.Start
}

// Contains reports whether o lies entirely within s.
func (s Span) Contains(o Span) bool {
	return s.Start <= o.Start && o.End <= s.End
}

// Analysis is one morphological reading of a word form.
type Analysis struct {
	Lemma string
	Tag   string
}

// Sense is a candidate word sense with its dictionary weight.
type Sense struct {
	ID     string
	Weight float64
}

// Word is a token as it moves through the stages. Each stage fills in
// its own fields; Lemma stays empty when no reading could be resolved.
type Word struct {
	Form     string
	Lemma    string
	Tag      string
	PhForm   string
	Span     Span
	Position uint32

	Analyses []Analysis
	NEClass  string
	Senses   []Sense
	Sense    string

	// DepHead is the Position of the governing word, -1 for the root.
	DepHead  int
	DepLabel string
}

// Sentence is the output of a full analysis of one sentence.
type Sentence struct {
	Words []*Word
	Tree  *Node
}

// Splitter finds sentence boundaries in raw text. Returned spans are
// relative to text.
type Splitter interface {
	Split(text string) ([]Span, error)
}

// Tokenizer turns one sentence into words. Word spans are text offsets
// shifted by offset.
type Tokenizer interface {
	Tokenize(text string, offset uint64) ([]*Word, error)
}

// MorphAnalyzer attaches candidate readings to each word.
type MorphAnalyzer interface {
	Analyze(words []*Word) error
}

// Tagger picks one reading per word, setting Tag and Lemma.
type Tagger interface {
	Tag(words []*Word) error
}

// NEClassifier labels proper nouns with an entity class.
type NEClassifier interface {
	Classify(words []*Word) error
}

// SenseTagger attaches candidate senses.
type SenseTagger interface {
	AddSenses(words []*Word) error
}

// SenseDisambiguator picks one sense per word.
type SenseDisambiguator interface {
	Disambiguate(words []*Word) error
}

// Parser builds the chunk tree and fills dependency fields.
type Parser interface {
	Parse(words []*Word) (*Node, error)
}

// Stages is the complete chain for one language. Implementations are not
// safe for concurrent use.
type Stages struct {
	Splitter     Splitter
	Tokenizer    Tokenizer
	Morph        MorphAnalyzer
	Tagger       Tagger
	NEClassifier NEClassifier
	SenseTagger  SenseTagger
	Disambiguate SenseDisambiguator
	Parser       Parser

	// Closer releases backing resources, may be nil.
	Closer io.Closer
}

// Loader constructs the stages of one language from its static resources.
type Loader func(ctx context.Context, lang string) (*Stages, error)
