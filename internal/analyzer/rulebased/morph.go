package rulebased

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/docannot/internal/analyzer"
)

type morphAnalyzer struct {
	lexicon *dictionary
	rules   MorphologyRules
}

func (m *morphAnalyzer) Analyze(words []*analyzer.Word) error {
	for _, w := range words {
		w.Analyses = m.readings(w.Form)
	}
	return nil
}

func (m *morphAnalyzer) readings(form string) []analyzer.Analysis {
	if isPunctuation(form) {
		tag, ok := m.rules.Punctuation[form]
		if !ok {
			tag = m.rules.DefaultPunctuation
		}
		return []analyzer.Analysis{{Lemma: form, Tag: tag}}
	}
	if isNumber(form) {
		return []analyzer.Analysis{{Lemma: form, Tag: m.rules.NumberTag}}
	}

	lower := strings.ToLower(form)
	if entries := m.lexicon.lookup(lower); len(entries) > 0 {
		var out []analyzer.Analysis
		for _, fields := range entries {
			for i := 0; i+1 < len(fields); i += 2 {
				out = append(out, analyzer.Analysis{Lemma: fields[i], Tag: fields[i+1]})
			}
		}
		return out
	}

	if r, _ := utf8.DecodeRuneInString(form); unicode.IsUpper(r) && m.rules.ProperTag != "" {
		return []analyzer.Analysis{{Lemma: lower, Tag: m.rules.ProperTag}}
	}

	for _, sr := range m.rules.Suffixes {
		if len(lower) <= len(sr.Suffix)+1 || !strings.HasSuffix(lower, sr.Suffix) {
			continue
		}
		strip := sr.Strip
		if strip > len(lower) {
			strip = len(lower)
		}
		return []analyzer.Analysis{{Lemma: lower[:len(lower)-strip] + sr.Add, Tag: sr.Tag}}
	}

	if m.rules.UnknownLemma == "none" {
		return nil
	}
	return []analyzer.Analysis{{Lemma: lower, Tag: m.rules.UnknownTag}}
}

func isPunctuation(form string) bool {
	for _, r := range form {
		if !unicode.IsPunct(r) && !unicode.IsSymbol(r) {
			return false
		}
	}
	return form != ""
}

func isNumber(form string) bool {
	clean := strings.ReplaceAll(form, ",", "")
	if r, _ := utf8.DecodeRuneInString(clean); !unicode.IsDigit(r) {
		return false
	}
	_, err := strconv.ParseFloat(clean, 64)
	return err == nil
}

type tagger struct {
	rules []PreferRule
}

func (t *tagger) Tag(words []*analyzer.Word) error {
	prev := ""
	for _, w := range words {
		if len(w.Analyses) == 0 {
			w.Tag, w.Lemma = "", ""
			prev = ""
			continue
		}
		pick := w.Analyses[0]
		if prev != "" {
			pick = t.prefer(prev, w.Analyses, pick)
		}
		w.Tag, w.Lemma = pick.Tag, pick.Lemma
		prev = w.Tag
	}
	return nil
}

func (t *tagger) prefer(prev string, readings []analyzer.Analysis, def analyzer.Analysis) analyzer.Analysis {
	for _, r := range t.rules {
		if !strings.HasPrefix(prev, r.Prev) {
			continue
		}
		for _, a := range readings {
			if strings.HasPrefix(a.Tag, r.Prefer) {
				return a
			}
		}
	}
	return def
}

type neClassifier struct {
	rules NERRules
}

func (c *neClassifier) Classify(words []*analyzer.Word) error {
	if c.rules.ProperPrefix == "" {
		return nil
	}
	for _, w := range words {
		if !strings.HasPrefix(w.Tag, c.rules.ProperPrefix) {
			continue
		}
		class, ok := c.rules.Gazetteer[strings.ToLower(w.Form)]
		if !ok {
			class = c.rules.DefaultClass
		}
		w.NEClass = class
	}
	return nil
}

// senseTagger reads senses.txt lines of the form
// "lemma tagprefix sense:weight [sense:weight...]".
type senseTagger struct {
	senses *dictionary
}

func (s *senseTagger) AddSenses(words []*analyzer.Word) error {
	for _, w := range words {
		w.Senses = nil
		if w.Lemma == "" {
			continue
		}
		for _, fields := range s.senses.lookup(w.Lemma) {
			if len(fields) < 2 || !strings.HasPrefix(w.Tag, fields[0]) {
				continue
			}
			for _, f := range fields[1:] {
				id, weight, _ := strings.Cut(f, ":")
				wt, err := strconv.ParseFloat(weight, 64)
				if err != nil {
					wt = 0
				}
				w.Senses = append(w.Senses, analyzer.Sense{ID: id, Weight: wt})
			}
		}
	}
	return nil
}

type disambiguator struct{}

func (disambiguator) Disambiguate(words []*analyzer.Word) error {
	for _, w := range words {
		w.Sense = ""
		best := -1.0
		for _, s := range w.Senses {
			if s.Weight > best {
				best = s.Weight
				w.Sense = s.ID
			}
		}
	}
	return nil
}
