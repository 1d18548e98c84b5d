package resource

import (
	"io"

	"github.com/dgallion1/docannot/internal/analyzer"
	"github.com/dgallion1/docannot/internal/profile"
)

// Set is the analyzer chain of one language, one guard per stage.
type Set struct {
	Lang Language

	Splitter     *Guard[analyzer.Splitter]
	Tokenizer    *Guard[analyzer.Tokenizer]
	Morph        *Guard[analyzer.MorphAnalyzer]
	Tagger       *Guard[analyzer.Tagger]
	NEClassifier *Guard[analyzer.NEClassifier]
	SenseTagger  *Guard[analyzer.SenseTagger]
	Disambiguate *Guard[analyzer.SenseDisambiguator]
	Parser       *Guard[analyzer.Parser]

	closer io.Closer
}

func newSet(lang Language, st *analyzer.Stages, total *profile.Counter, lat *profile.StageLatency) *Set {
	key := func(s Stage) *profile.Latency { return lat.For(string(lang) + "." + string(s)) }
	return &Set{
		Lang:         lang,
		Splitter:     newGuard(StageSplit, st.Splitter, total, key(StageSplit)),
		Tokenizer:    newGuard(StageTokenize, st.Tokenizer, total, key(StageTokenize)),
		Morph:        newGuard(StageMorph, st.Morph, total, key(StageMorph)),
		Tagger:       newGuard(StageTag, st.Tagger, total, key(StageTag)),
		NEClassifier: newGuard(StageNER, st.NEClassifier, total, key(StageNER)),
		SenseTagger:  newGuard(StageSenses, st.SenseTagger, total, key(StageSenses)),
		Disambiguate: newGuard(StageDisambiguate, st.Disambiguate, total, key(StageDisambiguate)),
		Parser:       newGuard(StageParse, st.Parser, total, key(StageParse)),
		closer:       st.Closer,
	}
}
