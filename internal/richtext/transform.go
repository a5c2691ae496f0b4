package richtext

import (
	"errors"
	"fmt"

	"github.com/rivo/uniseg"
)

// ErrBadPath reports a path that does not address a node of the expected
// kind.
var ErrBadPath = errors.New("richtext: path does not address a node")

// Transforms are pure: they clone the input document, apply the edit to
// the clone, re-normalize, and return the new tree together with the
// updated selection. The input document is never mutated.

// InsertNode inserts a node at the given path, shifting later siblings.
// The path may address one past the end of a child list (append).
func InsertNode(d *Document, at Path, n Node) (*Document, error) {
	out := d.Clone()
	slice, idx, ok := out.childrenAt(at)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBadPath, at)
	}
	*slice = insertAt(*slice, idx, n.Clone())
	out.Normalize()
	return out, nil
}

// RemoveNode removes the node at the given path. Emptied ancestors are
// refilled with a text placeholder by normalization.
func RemoveNode(d *Document, at Path) (*Document, error) {
	out := d.Clone()
	slice, idx, ok := out.childrenAt(at)
	if !ok || idx >= len(*slice) {
		return nil, fmt.Errorf("%w: %s", ErrBadPath, at)
	}
	*slice = removeAt(*slice, idx)
	out.Normalize()
	return out, nil
}

// InsertText inserts a string into the leaf at the given point and
// returns the point after the inserted text.
func InsertText(d *Document, at Point, s string) (*Document, Point, error) {
	out := d.Clone()
	leaf, ok := out.TextAt(at.Path)
	if !ok {
		return nil, Point{}, fmt.Errorf("%w: %s is not a text leaf", ErrBadPath, at.Path)
	}
	before, after := leaf.splitAt(at.Offset)
	leaf.Text = before + s + after
	return out, Point{Path: at.Path.Clone(), Offset: at.Offset + uniseg.GraphemeClusterCount(s)}, nil
}

// InsertLineBreak inserts a literal line break at the point, keeping the
// cursor inside the same leaf. This is the Shift+Enter behavior.
func InsertLineBreak(d *Document, at Point) (*Document, Point, error) {
	return InsertText(d, at, "\n")
}

// DeleteBackward removes the grapheme cluster before the point within its
// leaf. At offset zero it is a no-op; structural deletions (voids, list
// unwrapping) are decided by the editor, not here.
func DeleteBackward(d *Document, at Point) (*Document, Point, error) {
	if at.Offset == 0 {
		return d.Clone(), at, nil
	}
	out := d.Clone()
	leaf, ok := out.TextAt(at.Path)
	if !ok {
		return nil, Point{}, fmt.Errorf("%w: %s is not a text leaf", ErrBadPath, at.Path)
	}
	head, tail := leaf.splitAt(at.Offset)
	keep, _ := (&Text{Text: head}).splitAt(at.Offset - 1)
	leaf.Text = keep + tail
	return out, Point{Path: at.Path.Clone(), Offset: at.Offset - 1}, nil
}

// SplitBlock splits the element enclosing the point into two siblings at
// the cursor. The second element keeps the original type and attrs; when
// the cursor sat at the end of the element's text, the fresh leading leaf
// of the second element carries no marks, so formatting does not bleed
// into the new block.
func SplitBlock(d *Document, at Point) (*Document, Point, error) {
	out := d.Clone()
	leaf, ok := out.TextAt(at.Path)
	if !ok {
		return nil, Point{}, fmt.Errorf("%w: %s is not a text leaf", ErrBadPath, at.Path)
	}
	parentPath := at.Path.Parent()
	if len(parentPath) == 0 {
		return nil, Point{}, fmt.Errorf("%w: leaf %s has no enclosing element", ErrBadPath, at.Path)
	}
	parent, ok := out.ElementAt(parentPath)
	if !ok {
		return nil, Point{}, fmt.Errorf("%w: %s", ErrBadPath, parentPath)
	}
	leafIdx := at.Path.Last()

	before, after := leaf.splitAt(at.Offset)

	firstKids := make([]Node, 0, leafIdx+1)
	for _, n := range parent.Children[:leafIdx] {
		firstKids = append(firstKids, n)
	}
	firstLeaf := leaf.Clone().(*Text)
	firstLeaf.Text = before
	firstKids = append(firstKids, firstLeaf)

	secondLeaf := leaf.Clone().(*Text)
	secondLeaf.Text = after
	if after == "" {
		secondLeaf.Marks = nil
	}
	secondKids := []Node{Node(secondLeaf)}
	secondKids = append(secondKids, parent.Children[leafIdx+1:]...)

	second := &Element{Type: parent.Type, Children: secondKids}
	if parent.Attrs != nil {
		second.Attrs = make(map[string]any, len(parent.Attrs))
		for k, v := range parent.Attrs {
			second.Attrs[k] = v
		}
	}
	parent.Children = firstKids

	slice, idx, ok := out.childrenAt(parentPath)
	if !ok {
		return nil, Point{}, fmt.Errorf("%w: %s", ErrBadPath, parentPath)
	}
	*slice = insertAt(*slice, idx+1, Node(second))
	out.Normalize()
	return out, Point{Path: parentPath.Next().Child(0), Offset: 0}, nil
}

// InsertBreakOut inserts a fresh default block directly after the
// top-level block containing the path, leaving that block's children
// untouched. The cursor moves to the start of the new block. This is the
// Enter behavior for break-out-capable elements such as headings.
func InsertBreakOut(d *Document, at Path) (*Document, Path, error) {
	if len(at) == 0 {
		return nil, nil, ErrBadPath
	}
	out := d.Clone()
	top := at[0]
	if top < 0 || top >= len(out.Children) {
		return nil, nil, fmt.Errorf("%w: %s", ErrBadPath, at)
	}
	out.Children = insertAt(out.Children, top+1, Node(NewElement(DefaultType)))
	return out, Path{top + 1}, nil
}

// UnwrapListItem promotes the list item at the given path out of its
// enclosing list. A single-item list is replaced entirely; a first or
// last item is hoisted before or after the list; a middle item splits the
// list in two around the promoted block. Sibling items are never removed.
func UnwrapListItem(d *Document, itemPath Path) (*Document, Path, error) {
	listPath := itemPath.Parent()
	if len(listPath) == 0 {
		return nil, nil, fmt.Errorf("%w: %s is not inside a list", ErrBadPath, itemPath)
	}
	out := d.Clone()
	list, ok := out.ElementAt(listPath)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrBadPath, listPath)
	}
	idx := itemPath.Last()
	if idx < 0 || idx >= len(list.Children) {
		return nil, nil, fmt.Errorf("%w: %s", ErrBadPath, itemPath)
	}
	item, ok := list.Children[idx].(*Element)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s is not an element", ErrBadPath, itemPath)
	}

	promoted := &Element{Type: DefaultType, Children: item.Children}

	slice, listIdx, ok := out.childrenAt(listPath)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrBadPath, listPath)
	}

	var newPath Path
	switch {
	case len(list.Children) == 1:
		(*slice)[listIdx] = promoted
		newPath = listPath.Clone()
	case idx == 0:
		list.Children = removeAt(list.Children, 0)
		*slice = insertAt(*slice, listIdx, Node(promoted))
		newPath = listPath.Clone()
	case idx == len(list.Children)-1:
		list.Children = removeAt(list.Children, idx)
		*slice = insertAt(*slice, listIdx+1, Node(promoted))
		newPath = listPath.Next()
	default:
		tailKids := make([]Node, len(list.Children)-idx-1)
		copy(tailKids, list.Children[idx+1:])
		tail := &Element{Type: list.Type, Children: tailKids}
		if list.Attrs != nil {
			tail.Attrs = make(map[string]any, len(list.Attrs))
			for k, v := range list.Attrs {
				tail.Attrs[k] = v
			}
		}
		list.Children = list.Children[:idx]
		*slice = insertAt(*slice, listIdx+1, Node(promoted))
		*slice = insertAt(*slice, listIdx+2, Node(tail))
		newPath = listPath.Next()
	}
	out.Normalize()
	return out, newPath, nil
}

// ToggleMark toggles a format mark across the leaves covered by the
// range. If every non-empty covered leaf already carries the mark it is
// removed, otherwise it is added. Leaves partially covered at the range
// boundaries are split first so formatting never spills outside the
// selection. The returned range covers the same text in the new tree.
func ToggleMark(d *Document, r Range, mark string) (*Document, Range, error) {
	if r.Collapsed() {
		return d.Clone(), r, nil
	}
	start, end := r.Ordered()

	out := d.Clone()

	// Split the end boundary first so the start split cannot shift it.
	if leaf, ok := out.TextAt(end.Path); ok && end.Offset > 0 && end.Offset < leaf.Length() {
		if err := splitLeaf(out, end.Path, end.Offset); err != nil {
			return nil, Range{}, err
		}
	}
	if leaf, ok := out.TextAt(start.Path); ok && start.Offset > 0 && start.Offset < leaf.Length() {
		if err := splitLeaf(out, start.Path, start.Offset); err != nil {
			return nil, Range{}, err
		}
		// Later siblings of the split leaf shift by one.
		switch {
		case end.Path.Equals(start.Path):
			end = Point{Path: start.Path.Next(), Offset: end.Offset - start.Offset}
		case end.Path.Parent().Equals(start.Path.Parent()) && end.Path.Last() > start.Path.Last():
			end = Point{Path: end.Path.Parent().Child(end.Path.Last() + 1), Offset: end.Offset}
		}
		start = Point{Path: start.Path.Next(), Offset: 0}
	}

	covered := coveredLeaves(out, start, end)
	if len(covered) == 0 {
		return out, Range{Anchor: start, Focus: end}, nil
	}

	all := true
	for _, p := range covered {
		leaf, _ := out.TextAt(p)
		if leaf.IsEmpty() {
			continue
		}
		if !leaf.HasMark(mark) {
			all = false
			break
		}
	}
	for _, p := range covered {
		leaf, _ := out.TextAt(p)
		leaf.SetMark(mark, !all)
	}

	first := covered[0]
	last := covered[len(covered)-1]
	lastLeaf, _ := out.TextAt(last)
	sel := Range{
		Anchor: Point{Path: first.Clone(), Offset: 0},
		Focus:  Point{Path: last.Clone(), Offset: lastLeaf.Length()},
	}
	return out, sel, nil
}

// splitLeaf splits a text leaf in place at the given offset into two
// sibling leaves with identical marks.
func splitLeaf(d *Document, at Path, offset int) error {
	leaf, ok := d.TextAt(at)
	if !ok {
		return fmt.Errorf("%w: %s is not a text leaf", ErrBadPath, at)
	}
	before, after := leaf.splitAt(offset)
	second := leaf.Clone().(*Text)
	second.Text = after
	leaf.Text = before
	slice, idx, ok := d.childrenAt(at)
	if !ok {
		return fmt.Errorf("%w: %s", ErrBadPath, at)
	}
	*slice = insertAt(*slice, idx+1, Node(second))
	return nil
}

// coveredLeaves returns, in document order, the paths of the text leaves
// between the two points. A leaf at the end path with offset zero is
// excluded: the selection stops before it.
func coveredLeaves(d *Document, start, end Point) []Path {
	var covered []Path
	walkLeaves(d, func(p Path, t *Text) {
		if p.Compare(start.Path) < 0 {
			return
		}
		if c := p.Compare(end.Path); c > 0 || (c == 0 && end.Offset == 0) {
			return
		}
		covered = append(covered, p)
	})
	return covered
}

// walkLeaves visits every text leaf in document order.
func walkLeaves(d *Document, fn func(p Path, t *Text)) {
	var walk func(base Path, children []Node)
	walk = func(base Path, children []Node) {
		for i, ch := range children {
			p := base.Child(i)
			switch n := ch.(type) {
			case *Text:
				fn(p, n)
			case *Element:
				walk(p, n.Children)
			}
		}
	}
	walk(nil, d.Children)
}

// FirstLeaf returns the path and leaf of the first text leaf under the
// given path (or of the whole document when the path is empty).
func FirstLeaf(d *Document, base Path) (Path, *Text, bool) {
	var children []Node
	if len(base) == 0 {
		children = d.Children
	} else {
		el, ok := d.ElementAt(base)
		if !ok {
			if t, ok := d.TextAt(base); ok {
				return base.Clone(), t, true
			}
			return nil, nil, false
		}
		children = el.Children
	}
	p := base.Clone()
	for {
		if len(children) == 0 {
			return nil, nil, false
		}
		p = p.Child(0)
		switch n := children[0].(type) {
		case *Text:
			return p, n, true
		case *Element:
			children = n.Children
		}
	}
}

// LastLeaf returns the path and leaf of the last text leaf under the
// given path.
func LastLeaf(d *Document, base Path) (Path, *Text, bool) {
	var children []Node
	if len(base) == 0 {
		children = d.Children
	} else {
		el, ok := d.ElementAt(base)
		if !ok {
			if t, ok := d.TextAt(base); ok {
				return base.Clone(), t, true
			}
			return nil, nil, false
		}
		children = el.Children
	}
	p := base.Clone()
	for {
		if len(children) == 0 {
			return nil, nil, false
		}
		last := len(children) - 1
		p = p.Child(last)
		switch n := children[last].(type) {
		case *Text:
			return p, n, true
		case *Element:
			children = n.Children
		}
	}
}

func insertAt(s []Node, i int, n Node) []Node {
	s = append(s, nil)
	copy(s[i+1:], s[i:])
	s[i] = n
	return s
}

func removeAt(s []Node, i int) []Node {
	return append(s[:i], s[i+1:]...)
}
