package richtext

import (
	"github.com/rivo/uniseg"
)

// Node is one node of a rich text tree: either a text leaf or an element.
type Node interface {
	// Clone returns a deep copy of the node.
	Clone() Node

	isNode()
}

// Text is a leaf node: a string plus a set of boolean format marks
// (bold, italic, underline, code, ...).
type Text struct {
	Text  string
	Marks map[string]bool
}

// NewText creates a text leaf with the given content and no marks.
func NewText(s string) *Text {
	return &Text{Text: s}
}

func (t *Text) isNode() {}

// Clone returns a deep copy of the leaf.
func (t *Text) Clone() Node {
	c := &Text{Text: t.Text}
	if t.Marks != nil {
		c.Marks = make(map[string]bool, len(t.Marks))
		for k, v := range t.Marks {
			c.Marks[k] = v
		}
	}
	return c
}

// HasMark reports whether the leaf carries the named mark.
func (t *Text) HasMark(name string) bool {
	return t.Marks[name]
}

// SetMark adds or removes the named mark.
func (t *Text) SetMark(name string, on bool) {
	if on {
		if t.Marks == nil {
			t.Marks = make(map[string]bool)
		}
		t.Marks[name] = true
		return
	}
	delete(t.Marks, name)
}

// Length returns the leaf length in grapheme clusters, which is the unit
// cursor offsets are measured in.
func (t *Text) Length() int {
	return uniseg.GraphemeClusterCount(t.Text)
}

// IsEmpty reports whether the leaf contains no text.
func (t *Text) IsEmpty() bool {
	return t.Text == ""
}

// splitAt splits the leaf text at the given grapheme offset and returns
// the two halves as strings.
func (t *Text) splitAt(offset int) (string, string) {
	if offset <= 0 {
		return "", t.Text
	}
	g := uniseg.NewGraphemes(t.Text)
	n := 0
	for g.Next() {
		n++
		if n == offset {
			_, to := g.Positions()
			return t.Text[:to], t.Text[to:]
		}
	}
	return t.Text, ""
}

// Element is an interior node: a type tag (heading, list, link, upload, ...)
// plus an ordered sequence of child nodes. Attrs holds type-specific data
// such as a link URL or a relationship target.
type Element struct {
	Type     string
	Children []Node
	Attrs    map[string]any
}

// NewElement creates an element of the given type. An element is never
// left without children; callers that pass none get an empty text
// placeholder.
func NewElement(typ string, children ...Node) *Element {
	if len(children) == 0 {
		children = []Node{NewText("")}
	}
	return &Element{Type: typ, Children: children}
}

func (e *Element) isNode() {}

// Clone returns a deep copy of the element and its subtree.
func (e *Element) Clone() Node {
	c := &Element{Type: e.Type, Children: make([]Node, len(e.Children))}
	for i, ch := range e.Children {
		c.Children[i] = ch.Clone()
	}
	if e.Attrs != nil {
		c.Attrs = make(map[string]any, len(e.Attrs))
		for k, v := range e.Attrs {
			c.Attrs[k] = v
		}
	}
	return c
}

// IsEmpty reports whether the element contains only empty text leaves.
func (e *Element) IsEmpty() bool {
	for _, ch := range e.Children {
		switch n := ch.(type) {
		case *Text:
			if !n.IsEmpty() {
				return false
			}
		case *Element:
			if !n.IsEmpty() {
				return false
			}
		}
	}
	return true
}

// DefaultType is the element type used for plain paragraph blocks and for
// blocks created by break-out editing.
const DefaultType = "p"

// Document is the root of a rich text tree. Its children are always
// block-level elements.
type Document struct {
	Children []Node
}

// DefaultDocument returns the empty document: a single default block
// holding one empty text leaf.
func DefaultDocument() *Document {
	return &Document{Children: []Node{NewElement(DefaultType)}}
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	c := &Document{Children: make([]Node, len(d.Children))}
	for i, ch := range d.Children {
		c.Children[i] = ch.Clone()
	}
	return c
}

// NodeAt returns the node addressed by the given path.
func (d *Document) NodeAt(p Path) (Node, bool) {
	if len(p) == 0 {
		return nil, false
	}
	children := d.Children
	var cur Node
	for depth, idx := range p {
		if idx < 0 || idx >= len(children) {
			return nil, false
		}
		cur = children[idx]
		if depth == len(p)-1 {
			return cur, true
		}
		el, ok := cur.(*Element)
		if !ok {
			return nil, false
		}
		children = el.Children
	}
	return cur, true
}

// ElementAt returns the element addressed by the given path.
func (d *Document) ElementAt(p Path) (*Element, bool) {
	n, ok := d.NodeAt(p)
	if !ok {
		return nil, false
	}
	el, ok := n.(*Element)
	return el, ok
}

// TextAt returns the text leaf addressed by the given path.
func (d *Document) TextAt(p Path) (*Text, bool) {
	n, ok := d.NodeAt(p)
	if !ok {
		return nil, false
	}
	t, ok := n.(*Text)
	return t, ok
}

// childrenAt returns the child slice holding the node at path p, along
// with the node's index in it. A path of length 1 addresses the root
// child slice.
func (d *Document) childrenAt(p Path) (*[]Node, int, bool) {
	if len(p) == 0 {
		return nil, 0, false
	}
	if len(p) == 1 {
		if p[0] < 0 || p[0] > len(d.Children) {
			return nil, 0, false
		}
		return &d.Children, p[0], true
	}
	parent, ok := d.ElementAt(p.Parent())
	if !ok {
		return nil, 0, false
	}
	idx := p.Last()
	if idx < 0 || idx > len(parent.Children) {
		return nil, 0, false
	}
	return &parent.Children, idx, true
}

// Normalize restores the structural invariant after an edit: every element
// has at least one child, inserting an empty text placeholder where a
// subtree was emptied out. An emptied root gets the default block.
func (d *Document) Normalize() {
	if len(d.Children) == 0 {
		d.Children = []Node{NewElement(DefaultType)}
		return
	}
	for _, ch := range d.Children {
		if el, ok := ch.(*Element); ok {
			normalizeElement(el)
		}
	}
}

func normalizeElement(e *Element) {
	if len(e.Children) == 0 {
		e.Children = []Node{NewText("")}
		return
	}
	for _, ch := range e.Children {
		if el, ok := ch.(*Element); ok {
			normalizeElement(el)
		}
	}
}
