package source

import (
	"strings"
	"testing"
)

func TestTextParser_BasicParagraphSplitting(t *testing.T) {
	input := "First paragraph line one.\nFirst paragraph line two.\n\nSecond paragraph.\n\nThird paragraph."
	p := &TextParser{}
	tree, err := p.Parse(strings.NewReader(input), "notes.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tree.Title != "notes" {
		t.Errorf("expected title %q, got %q", "notes", tree.Title)
	}
	want := []string{
		"First paragraph line one.\nFirst paragraph line two.",
		"Second paragraph.",
		"Third paragraph.",
	}
	if len(tree.Children) != len(want) {
		t.Fatalf("expected %d children, got %d", len(want), len(tree.Children))
	}
	for i, w := range want {
		if tree.Children[i].Text != w {
			t.Errorf("child[%d]: expected %q, got %q", i, w, tree.Children[i].Text)
		}
	}
}

func TestTextParser_EmptyInput(t *testing.T) {
	p := &TextParser{}
	tree, err := p.Parse(strings.NewReader(""), "dir/empty.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.Title != "empty" {
		t.Errorf("expected title %q, got %q", "empty", tree.Title)
	}
	if len(tree.Children) != 0 {
		t.Errorf("expected 0 children for empty input, got %d", len(tree.Children))
	}
}

func TestTextParser_BlankLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"consecutive", "Para one.\n\n\n\nPara two."},
		{"whitespace only", "Para one.\n   \nPara two."},
	}
	p := &TextParser{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := p.Parse(strings.NewReader(tt.input), "gaps.txt")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(tree.Children) != 2 {
				t.Fatalf("expected 2 children, got %d", len(tree.Children))
			}
		})
	}
}
