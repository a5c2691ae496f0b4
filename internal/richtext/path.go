package richtext

import (
	"strconv"
	"strings"
)

// Path addresses a node in the tree as a sequence of child indexes from
// the root. The empty path is the root itself and never addresses a node.
type Path []int

// Clone returns a copy of the path.
func (p Path) Clone() Path {
	c := make(Path, len(p))
	copy(c, p)
	return c
}

// Parent returns the path of the enclosing node. The parent of a
// top-level path is the empty path.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1].Clone()
}

// Last returns the final index of the path, or -1 for the empty path.
func (p Path) Last() int {
	if len(p) == 0 {
		return -1
	}
	return p[len(p)-1]
}

// Child returns the path extended by one child index.
func (p Path) Child(i int) Path {
	c := make(Path, len(p)+1)
	copy(c, p)
	c[len(p)] = i
	return c
}

// Next returns the path of the following sibling.
func (p Path) Next() Path {
	c := p.Clone()
	c[len(c)-1]++
	return c
}

// Equals reports whether two paths address the same node.
func (p Path) Equals(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// IsAncestorOf reports whether p strictly contains o.
func (p Path) IsAncestorOf(o Path) bool {
	if len(p) >= len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}

// Compare orders paths in document order: -1 if p comes before o, 1 if
// after, 0 if equal. An ancestor sorts before its descendants.
func (p Path) Compare(o Path) int {
	n := len(p)
	if len(o) < n {
		n = len(o)
	}
	for i := 0; i < n; i++ {
		if p[i] != o[i] {
			if p[i] < o[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(p) < len(o):
		return -1
	case len(p) > len(o):
		return 1
	default:
		return 0
	}
}

// String renders the path as dot-joined indexes, e.g. "0.2.1".
func (p Path) String() string {
	if len(p) == 0 {
		return ""
	}
	parts := make([]string, len(p))
	for i, idx := range p {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, ".")
}

// Point is a cursor position: a text leaf path plus a grapheme offset
// within the leaf.
type Point struct {
	Path   Path
	Offset int
}

// Equals reports whether two points are the same position.
func (pt Point) Equals(o Point) bool {
	return pt.Path.Equals(o.Path) && pt.Offset == o.Offset
}

// Range is a selection between two points. Anchor is where the selection
// started, Focus where it ends; Focus may precede Anchor in document
// order.
type Range struct {
	Anchor Point
	Focus  Point
}

// Collapsed reports whether the selection is a bare cursor.
func (r Range) Collapsed() bool {
	return r.Anchor.Equals(r.Focus)
}

// Ordered returns the range's points in document order.
func (r Range) Ordered() (Point, Point) {
	c := r.Anchor.Path.Compare(r.Focus.Path)
	if c > 0 || (c == 0 && r.Anchor.Offset > r.Focus.Offset) {
		return r.Focus, r.Anchor
	}
	return r.Anchor, r.Focus
}

// Collapse returns a collapsed range at the given point.
func Collapse(pt Point) Range {
	return Range{Anchor: pt, Focus: pt}
}
