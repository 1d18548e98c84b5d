// Package doctree holds the outline of an uploaded file and flattens it
// into the linear text that gets annotated.
package doctree

import "strings"

// Tree is the root of a parsed file.
type Tree struct {
	Title    string  // From metadata or the file name
	Children []*Node // Top-level sections
}

// Node is a section of the outline.
type Node struct {
	Title    string  // Heading, empty for bare paragraphs
	Text     string  // Body text before the first child
	Page     int     // Source page, 0 if not paged
	Children []*Node // Subsections
}

// Builder assembles a Tree from headings and paragraphs in reading order.
// A heading closes every open section at the same or a deeper level.
type Builder struct {
	title string
	root  Node
	stack []open
	text  []string
}

type open struct {
	node  *Node
	level int
}

// NewBuilder starts a Tree with the given title.
func NewBuilder(title string) *Builder {
	b := &Builder{title: title}
	b.root.Title = title
	b.stack = []open{{node: &b.root}}
	return b
}

// Heading opens a section at level (1 is outermost).
func (b *Builder) Heading(level int, title string) {
	b.flush()
	n := &Node{Title: strings.TrimSpace(title)}
	for len(b.stack) > 1 && b.stack[len(b.stack)-1].level >= level {
		b.stack = b.stack[:len(b.stack)-1]
	}
	parent := b.stack[len(b.stack)-1].node
	parent.Children = append(parent.Children, n)
	b.stack = append(b.stack, open{node: n, level: level})
}

// Paragraph adds body text to the innermost open section.
func (b *Builder) Paragraph(text string) {
	if t := strings.TrimSpace(text); t != "" {
		b.text = append(b.text, t)
	}
}

func (b *Builder) flush() {
	if len(b.text) == 0 {
		return
	}
	top := b.stack[len(b.stack)-1].node
	body := strings.Join(b.text, "\n\n")
	if top.Text != "" {
		top.Text += "\n\n" + body
	} else {
		top.Text = body
	}
	b.text = b.text[:0]
}

// Tree finishes the outline. Text without any heading becomes a single
// untitled section.
func (b *Builder) Tree() *Tree {
	b.flush()
	t := &Tree{Title: b.title, Children: b.root.Children}
	if len(t.Children) == 0 && b.root.Text != "" {
		t.Children = []*Node{{Text: b.root.Text}}
	}
	return t
}

// Section locates one outline node inside rendered text.
type Section struct {
	Title string `json:"title,omitempty"`
	Depth int    `json:"depth"`
	Page  int    `json:"page,omitempty"`
	Start uint64 `json:"start"`
	End   uint64 `json:"end"`
}

// Rendered is a Tree flattened to text. Section spans are byte offsets
// into Text and nest the way the outline does.
type Rendered struct {
	Text     string
	Sections []Section
}

// Render writes headings and paragraphs in pre-order, separated by blank
// lines. Sections with no text are omitted.
func Render(t *Tree) Rendered {
	var r renderer
	for _, n := range t.Children {
		r.node(n, 1)
	}
	return Rendered{Text: r.buf.String(), Sections: r.sections}
}

type renderer struct {
	buf      strings.Builder
	sections []Section
}

func (r *renderer) write(s string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	if r.buf.Len() > 0 {
		r.buf.WriteString("\n\n")
	}
	r.buf.WriteString(s)
}

func (r *renderer) node(n *Node, depth int) {
	mark := r.buf.Len()
	i := len(r.sections)
	r.sections = append(r.sections, Section{Title: n.Title, Depth: depth, Page: n.Page})

	r.write(n.Title)
	r.write(n.Text)
	for _, c := range n.Children {
		if c != nil {
			r.node(c, depth+1)
		}
	}

	if r.buf.Len() == mark {
		r.sections = r.sections[:i]
		return
	}
	start := mark
	if mark > 0 {
		start += 2
	}
	r.sections[i].Start = uint64(start)
	r.sections[i].End = uint64(r.buf.Len())
}
