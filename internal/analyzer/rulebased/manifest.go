package rulebased

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest is the per-language analyzer.yaml.
type Manifest struct {
	Language   string          `yaml:"language"`
	Splitter   SplitterRules   `yaml:"splitter"`
	Tokenizer  TokenizerRules  `yaml:"tokenizer"`
	Morphology MorphologyRules `yaml:"morphology"`
	Tagger     TaggerRules     `yaml:"tagger"`
	NER        NERRules        `yaml:"ner"`
	Parser     GrammarRules    `yaml:"parser"`
}

type SplitterRules struct {
	EndMarks        []string `yaml:"end_marks"`
	Closers         []string `yaml:"closers"`
	BlankLineBreaks bool     `yaml:"blank_line_breaks"`
}

type TokenizerRules struct {
	Abbreviations []string `yaml:"abbreviations"`
	Joiners       []string `yaml:"joiners"`
}

type SuffixRule struct {
	Suffix string `yaml:"suffix"`
	Tag    string `yaml:"tag"`
	Strip  int    `yaml:"strip"`
	Add    string `yaml:"add"`
}

type MorphologyRules struct {
	Punctuation        map[string]string `yaml:"punctuation"`
	DefaultPunctuation string            `yaml:"default_punctuation"`
	NumberTag          string            `yaml:"number_tag"`
	ProperTag          string            `yaml:"proper_tag"`
	UnknownTag         string            `yaml:"unknown_tag"`
	// UnknownLemma is "lowercase" or "none".
	UnknownLemma string       `yaml:"unknown_lemma"`
	Suffixes     []SuffixRule `yaml:"suffixes"`
}

type PreferRule struct {
	Prev   string `yaml:"prev"`
	Prefer string `yaml:"prefer"`
}

type TaggerRules struct {
	Rules []PreferRule `yaml:"rules"`
}

type NERRules struct {
	ProperPrefix string            `yaml:"proper_prefix"`
	DefaultClass string            `yaml:"default_class"`
	Gazetteer    map[string]string `yaml:"gazetteer"`
}

type HeadRule struct {
	From string   `yaml:"from"`
	Tags []string `yaml:"tags"`
}

type ChunkRule struct {
	Label   string   `yaml:"label"`
	Pattern []string `yaml:"pattern"`
	Head    HeadRule `yaml:"head"`
}

type DependencyRules struct {
	Root       string            `yaml:"root"`
	Default    string            `yaml:"default"`
	BeforeHead map[string]string `yaml:"before_head"`
	AfterHead  map[string]string `yaml:"after_head"`
	InChunk    map[string]string `yaml:"in_chunk"`
}

type GrammarRules struct {
	RootLabel    string            `yaml:"root_label"`
	RootHead     []string          `yaml:"root_head"`
	Chunks       []ChunkRule       `yaml:"chunks"`
	Fallback     map[string]string `yaml:"fallback"`
	DefaultLabel string            `yaml:"default_label"`
	Dependencies DependencyRules   `yaml:"dependencies"`
}

// LoadManifest reads and validates an analyzer.yaml file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return &m, nil
}

func (m *Manifest) validate() error {
	if len(m.Splitter.EndMarks) == 0 {
		return fmt.Errorf("splitter.end_marks is empty")
	}
	switch m.Morphology.UnknownLemma {
	case "", "lowercase", "none":
	default:
		return fmt.Errorf("morphology.unknown_lemma: unknown policy %q", m.Morphology.UnknownLemma)
	}
	if m.Parser.RootLabel == "" {
		return fmt.Errorf("parser.root_label is empty")
	}
	for i, c := range m.Parser.Chunks {
		if c.Label == "" || len(c.Pattern) == 0 {
			return fmt.Errorf("parser.chunks[%d]: label and pattern are required", i)
		}
		if _, err := compilePattern(c.Pattern); err != nil {
			return fmt.Errorf("parser.chunks[%d]: %w", i, err)
		}
		switch strings.ToLower(c.Head.From) {
		case "", "first", "last":
		default:
			return fmt.Errorf("parser.chunks[%d]: head.from must be first or last", i)
		}
	}
	return nil
}
