package rulebased

import (
	"errors"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/docannot/internal/analyzer"
)

var errInvalidUTF8 = errors.New("input is not valid UTF-8")

type splitter struct {
	endMarks   map[rune]bool
	closers    map[rune]bool
	blankLines bool
	abbrevs    map[string]bool
}

func newSplitter(r SplitterRules, abbrevs map[string]bool) *splitter {
	s := &splitter{
		endMarks:   runeSet(r.EndMarks),
		closers:    runeSet(r.Closers),
		blankLines: r.BlankLineBreaks,
		abbrevs:    abbrevs,
	}
	return s
}

func (s *splitter) Split(text string) ([]analyzer.Span, error) {
	if !utf8.ValidString(text) {
		return nil, errInvalidUTF8
	}
	var out []analyzer.Span
	start := -1
	emit := func(end int) {
		end = trimRightSpace(text, start, end)
		if end > start {
			out = append(out, analyzer.Span{Start: uint64(start), End: uint64(end)})
		}
		start = -1
	}

	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if start < 0 {
			if !unicode.IsSpace(r) {
				start = i
			}
			i += size
			continue
		}
		if r == '\n' && s.blankLines && blankLineAt(text, i+size) {
			emit(i)
			i += size
			continue
		}
		if s.endMarks[r] {
			j := i + size
			for j < len(text) {
				r2, n := utf8.DecodeRuneInString(text[j:])
				if !s.endMarks[r2] && !s.closers[r2] {
					break
				}
				j += n
			}
			atBoundary := j == len(text)
			if !atBoundary {
				r2, _ := utf8.DecodeRuneInString(text[j:])
				atBoundary = unicode.IsSpace(r2)
			}
			if atBoundary && !(r == '.' && s.isAbbreviation(text, start, i)) {
				emit(j)
				i = j
				continue
			}
		}
		i += size
	}
	if start >= 0 {
		emit(len(text))
	}
	return out, nil
}

// isAbbreviation reports whether the word ending at the period at dot is a
// known abbreviation or a single-letter initial.
func (s *splitter) isAbbreviation(text string, from, dot int) bool {
	k := dot
	for k > from {
		r, n := utf8.DecodeLastRuneInString(text[:k])
		if unicode.IsSpace(r) {
			break
		}
		k -= n
	}
	word := text[k:dot]
	if s.abbrevs[strings.ToLower(word+".")] {
		return true
	}
	r, n := utf8.DecodeRuneInString(word)
	return n == len(word) && unicode.IsUpper(r)
}

func blankLineAt(text string, i int) bool {
	for i < len(text) {
		r, n := utf8.DecodeRuneInString(text[i:])
		if r == '\n' {
			return true
		}
		if !unicode.IsSpace(r) {
			return false
		}
		i += n
	}
	return false
}

func trimRightSpace(text string, start, end int) int {
	for end > start {
		r, n := utf8.DecodeLastRuneInString(text[:end])
		if !unicode.IsSpace(r) {
			break
		}
		end -= n
	}
	return end
}

type tokenizer struct {
	abbrevs []string
	joiners map[rune]bool
}

func newTokenizer(r TokenizerRules) *tokenizer {
	abbrevs := make([]string, 0, len(r.Abbreviations))
	for _, a := range r.Abbreviations {
		abbrevs = append(abbrevs, strings.ToLower(a))
	}
	// Longest first so "e.g." wins over "e.".
	sort.Slice(abbrevs, func(i, j int) bool { return len(abbrevs[i]) > len(abbrevs[j]) })
	return &tokenizer{abbrevs: abbrevs, joiners: runeSet(r.Joiners)}
}

func (t *tokenizer) Tokenize(text string, offset uint64) ([]*analyzer.Word, error) {
	if !utf8.ValidString(text) {
		return nil, errInvalidUTF8
	}
	var words []*analyzer.Word
	add := func(start, end int) {
		words = append(words, &analyzer.Word{
			Form:     text[start:end],
			Span:     analyzer.Span{Start: offset + uint64(start), End: offset + uint64(end)},
			Position: uint32(len(words)),
			DepHead:  -1,
		})
	}

	i := 0
	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		switch {
		case unicode.IsSpace(r):
			i += size
		case isWordRune(r):
			j := t.abbreviationAt(text, i)
			if j == 0 {
				j = t.scanWord(text, i)
			}
			add(i, j)
			i = j
		default:
			j := i + size
			for r == '.' && j < len(text) && text[j] == '.' {
				j++
			}
			add(i, j)
			i = j
		}
	}
	return words, nil
}

func (t *tokenizer) abbreviationAt(text string, i int) int {
	for _, a := range t.abbrevs {
		j := i + len(a)
		if j > len(text) || !strings.EqualFold(text[i:j], a) {
			continue
		}
		if j == len(text) {
			return j
		}
		if r, _ := utf8.DecodeRuneInString(text[j:]); !isWordRune(r) {
			return j
		}
	}
	return 0
}

func (t *tokenizer) scanWord(text string, i int) int {
	_, size := utf8.DecodeRuneInString(text[i:])
	j := i + size
	for j < len(text) {
		r, n := utf8.DecodeRuneInString(text[j:])
		if isWordRune(r) {
			j += n
			continue
		}
		if j+n >= len(text) {
			break
		}
		prev, _ := utf8.DecodeLastRuneInString(text[:j])
		next, _ := utf8.DecodeRuneInString(text[j+n:])
		if t.joiners[r] && isWordRune(next) {
			j += n
			continue
		}
		if (r == '.' || r == ',') && unicode.IsDigit(prev) && unicode.IsDigit(next) {
			j += n
			continue
		}
		break
	}
	return j
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

func runeSet(items []string) map[rune]bool {
	m := make(map[rune]bool, len(items))
	for _, it := range items {
		r, _ := utf8.DecodeRuneInString(it)
		if r != utf8.RuneError {
			m[r] = true
		}
	}
	return m
}
