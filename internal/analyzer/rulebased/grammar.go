package rulebased

import (
	"fmt"
	"strings"

	"github.com/dgallion1/docannot/internal/analyzer"
)

type element struct {
	prefix   string
	min, max int // max < 0 means unbounded
}

func compilePattern(pattern []string) ([]element, error) {
	out := make([]element, 0, len(pattern))
	for _, p := range pattern {
		el := element{prefix: p, min: 1, max: 1}
		if n := len(p); n > 1 {
			switch p[n-1] {
			case '?':
				el = element{prefix: p[:n-1], min: 0, max: 1}
			case '*':
				el = element{prefix: p[:n-1], min: 0, max: -1}
			case '+':
				el = element{prefix: p[:n-1], min: 1, max: -1}
			}
		}
		if el.prefix == "" {
			return nil, fmt.Errorf("empty tag in pattern %v", pattern)
		}
		out = append(out, el)
	}
	return out, nil
}

type compiledChunk struct {
	ChunkRule
	elems []element
}

// match returns how many words starting at i the rule consumes, 0 if none.
// Quantified elements are greedy and give words back when a later element
// would otherwise fail.
func (c *compiledChunk) match(words []*analyzer.Word, i int) int {
	end := matchFrom(c.elems, words, i)
	if end <= i {
		return 0
	}
	return end - i
}

func matchFrom(elems []element, words []*analyzer.Word, j int) int {
	if len(elems) == 0 {
		return j
	}
	el := elems[0]
	n := 0
	for j+n < len(words) && (el.max < 0 || n < el.max) {
		tag := words[j+n].Tag
		if tag == "" || !strings.HasPrefix(tag, el.prefix) {
			break
		}
		n++
	}
	for k := n; k >= el.min; k-- {
		if end := matchFrom(elems[1:], words, j+k); end >= 0 {
			return end
		}
	}
	return -1
}

func (c *compiledChunk) head(words []*analyzer.Word) int {
	first := strings.EqualFold(c.Head.From, "first")
	idx := func(k int) int {
		if first {
			return k
		}
		return len(words) - 1 - k
	}
	for _, tag := range c.Head.Tags {
		for k := range words {
			if strings.HasPrefix(words[idx(k)].Tag, tag) {
				return idx(k)
			}
		}
	}
	return idx(0)
}

// grammarParser is a greedy left-to-right chunker with a flat
// chunk-to-main-verb dependency labeller.
type grammarParser struct {
	rules  GrammarRules
	chunks []compiledChunk
}

func newGrammarParser(r GrammarRules) (*grammarParser, error) {
	p := &grammarParser{rules: r}
	for _, c := range r.Chunks {
		elems, err := compilePattern(c.Pattern)
		if err != nil {
			return nil, err
		}
		p.chunks = append(p.chunks, compiledChunk{ChunkRule: c, elems: elems})
	}
	return p, nil
}

type chunk struct {
	node  *analyzer.Node
	words []*analyzer.Word
	head  int
}

func (p *grammarParser) Parse(words []*analyzer.Word) (*analyzer.Node, error) {
	if len(words) == 0 {
		return nil, nil
	}

	var chunks []chunk
	for i := 0; i < len(words); {
		label, n, head := p.nextChunk(words, i)
		span := words[i : i+n]
		node := &analyzer.Node{Label: label, IsChunk: true}
		for k, w := range span {
			node.Children = append(node.Children, &analyzer.Node{Word: w, IsHead: k == head})
		}
		chunks = append(chunks, chunk{node: node, words: span, head: head})
		i += n
	}

	rootIdx := 0
	for k, c := range chunks {
		if containsFold(p.rules.RootHead, c.node.Label) {
			rootIdx = k
			break
		}
	}
	root := &analyzer.Node{Label: p.rules.RootLabel}
	for k, c := range chunks {
		c.node.IsHead = k == rootIdx
		root.Children = append(root.Children, c.node)
	}

	p.attach(chunks, rootIdx)
	return root, nil
}

func (p *grammarParser) nextChunk(words []*analyzer.Word, i int) (label string, n, head int) {
	for k := range p.chunks {
		c := &p.chunks[k]
		if m := c.match(words, i); m > 0 {
			return c.Label, m, c.head(words[i : i+m])
		}
	}
	return p.fallbackLabel(words[i].Tag), 1, 0
}

func (p *grammarParser) fallbackLabel(tag string) string {
	if l, ok := longestPrefix(p.rules.Fallback, tag); ok {
		return l
	}
	return p.rules.DefaultLabel
}

func (p *grammarParser) attach(chunks []chunk, rootIdx int) {
	deps := p.rules.Dependencies
	rootWord := chunks[rootIdx].words[chunks[rootIdx].head]
	for k, c := range chunks {
		h := c.words[c.head]
		switch {
		case k == rootIdx:
			h.DepHead, h.DepLabel = -1, deps.Root
		case k < rootIdx:
			h.DepHead, h.DepLabel = int(rootWord.Position), lookupOr(deps.BeforeHead, c.node.Label, deps.Default)
		default:
			h.DepHead, h.DepLabel = int(rootWord.Position), lookupOr(deps.AfterHead, c.node.Label, deps.Default)
		}
		for i, w := range c.words {
			if i == c.head {
				continue
			}
			w.DepHead = int(h.Position)
			w.DepLabel = deps.Default
			if l, ok := longestPrefix(deps.InChunk, w.Tag); ok {
				w.DepLabel = l
			}
		}
	}
}

// longestPrefix finds the value of the longest key that prefixes tag.
func longestPrefix(m map[string]string, tag string) (string, bool) {
	best, val, ok := "", "", false
	for prefix, v := range m {
		if strings.HasPrefix(tag, prefix) && (!ok || len(prefix) > len(best)) {
			best, val, ok = prefix, v, true
		}
	}
	return val, ok
}

func lookupOr(m map[string]string, key, def string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return def
}

func containsFold(list []string, s string) bool {
	for _, it := range list {
		if strings.EqualFold(it, s) {
			return true
		}
	}
	return false
}
