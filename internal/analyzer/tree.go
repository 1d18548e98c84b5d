package analyzer

// Node is one node of a chunk tree. A node without children is a leaf
// and wraps exactly one word.
type Node struct {
	Label    string
	IsChunk  bool
	IsHead   bool
	Word     *Word
	Children []*Node
}

// IsLeaf reports whether n has no children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// Span returns the min start and max end over all descendant leaves.
// ok is false when the subtree holds no word.
func (n *Node) Span() (s Span, ok bool) {
	if n == nil {
		return Span{}, false
	}
	if n.IsLeaf() {
		if n.Word == nil {
			return Span{}, false
		}
		return n.Word.Span, true
	}
	for _, c := range n.Children {
		cs, cok := c.Span()
		if !cok {
			continue
		}
		if !ok {
			s, ok = cs, true
			continue
		}
		if cs.Start < s.Start {
			s.Start = cs.Start
		}
		if cs.End > s.End {
			s.End = cs.End
		}
	}
	return s, ok
}

// HeadWord follows the head chain down from n: at each level the first
// child marked as head is taken. It returns nil when some level has no
// head-marked child.
func HeadWord(n *Node) *Word {
	for n != nil {
		if n.IsLeaf() {
			return n.Word
		}
		var next *Node
		for _, c := range n.Children {
			if c != nil && c.IsHead {
				next = c
				break
			}
		}
		n = next
	}
	return nil
}

// Leaves returns the words under n in left-to-right order.
func Leaves(n *Node) []*Word {
	var out []*Word
	var walk func(*Node)
	walk = func(n *Node) {
		if n == nil {
			return
		}
		if n.IsLeaf() {
			if n.Word != nil {
				out = append(out, n.Word)
			}
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(n)
	return out
}
