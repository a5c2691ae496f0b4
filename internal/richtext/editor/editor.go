// Package editor binds a rich text document tree to a single form field
// and implements the editing rules on top of the pure tree transforms:
// break-out Enter, list unwrapping and void deletion on Backspace, and
// format hotkeys. The editor owns the live tree during an edit session
// and synchronizes it into the field binding on every change.
package editor

import (
	"fmt"
	"html"
	"sync"

	"github.com/rs/zerolog"

	"github.com/plumecms/plume/internal/form/field"
	"github.com/plumecms/plume/internal/richtext"
	"github.com/plumecms/plume/internal/richtext/feature"
	"github.com/plumecms/plume/internal/richtext/hotkey"
)

// Control is an interactive toolbar or in-document control the editor
// enables and disables as read-only mode toggles.
type Control interface {
	SetEnabled(enabled bool)
}

// Config configures one editor instance.
type Config struct {
	// Binding is the field the tree synchronizes into. Required.
	Binding *field.Binding
	// Registry resolves element and leaf types; nil uses the builtins.
	Registry *feature.Registry
	// Elements and Leaves are the enabled type tags for this field.
	Elements []string
	Leaves   []string
	// Hotkeys is the format chord table; nil uses the default table.
	Hotkeys *hotkey.Table

	Logger zerolog.Logger
}

// Editor is the engine for one rich text field.
type Editor struct {
	binding *field.Binding
	reg     *feature.Registry
	hotkeys *hotkey.Table
	leaves  map[string]bool
	log     zerolog.Logger

	mu       sync.Mutex
	doc      *richtext.Document
	sel      richtext.Range
	initial  string
	readOnly bool
	controls []Control
	closed   bool
}

// New validates the enabled types against the registry and builds the
// editor from the binding's current value. A value that fails to parse
// falls back to the default empty document; the failure is logged, not
// surfaced.
func New(cfg Config) (*Editor, error) {
	if cfg.Binding == nil {
		return nil, fmt.Errorf("editor: nil field binding")
	}
	if cfg.Registry == nil {
		cfg.Registry = feature.Defaults()
	}
	if cfg.Hotkeys == nil {
		cfg.Hotkeys = hotkey.Default()
	}
	if err := cfg.Registry.CheckEnabled(cfg.Elements, cfg.Leaves); err != nil {
		return nil, err
	}

	e := &Editor{
		binding: cfg.Binding,
		reg:     cfg.Registry,
		hotkeys: cfg.Hotkeys,
		leaves:  make(map[string]bool, len(cfg.Leaves)),
		log:     cfg.Logger,
	}
	for _, l := range cfg.Leaves {
		e.leaves[l] = true
	}

	e.doc = e.parseOrDefault(cfg.Binding.Value())
	e.initial = serializeInitial(cfg.Binding.InitialValue())
	e.resetSelection()
	return e, nil
}

// parseOrDefault decodes a field value, silently falling back to the
// default document. The fallback is deliberate; the log hook keeps it
// observable.
func (e *Editor) parseOrDefault(value any) *richtext.Document {
	d, err := richtext.Parse(value)
	if err != nil {
		e.log.Debug().Err(err).Msg("rich text value unparsable; using default document")
		return richtext.DefaultDocument()
	}
	return d
}

func serializeInitial(value any) string {
	d, err := richtext.Parse(value)
	if err != nil {
		return richtext.DefaultDocument().Serialize()
	}
	return d.Serialize()
}

// resetSelection collapses the cursor at the document start.
func (e *Editor) resetSelection() {
	if p, _, ok := richtext.FirstLeaf(e.doc, nil); ok {
		e.sel = richtext.Collapse(richtext.Point{Path: p})
		return
	}
	e.sel = richtext.Range{}
}

// Document returns a copy of the live tree.
func (e *Editor) Document() *richtext.Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc.Clone()
}

// Selection returns the current selection.
func (e *Editor) Selection() richtext.Range {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sel
}

// Select moves the selection. Both points must address text leaves.
func (e *Editor) Select(r richtext.Range) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, pt := range []richtext.Point{r.Anchor, r.Focus} {
		if _, ok := e.doc.TextAt(pt.Path); !ok {
			return fmt.Errorf("editor: selection point %s is not a text leaf", pt.Path)
		}
	}
	e.sel = r
	return nil
}

// commit swaps in a new tree and selection and pushes the tree into the
// field binding, which schedules validation.
func (e *Editor) commit(doc *richtext.Document, sel richtext.Range) {
	e.doc = doc
	e.sel = sel
	e.binding.SetValue(doc)
}

// HandleKey applies one keyboard event to the document. It returns true
// when the event was consumed, in which case the host must suppress its
// default action. Read-only editors consume nothing.
func (e *Editor) HandleKey(ev hotkey.Event) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.readOnly {
		return false
	}

	switch ev.Key {
	case hotkey.KeyEnter:
		return e.handleEnter(ev)
	case hotkey.KeyBackspace:
		return e.handleBackspace()
	default:
		if mark, ok := e.hotkeys.Match(ev); ok {
			return e.toggleMark(mark)
		}
		if ev.Ctrl || ev.Alt || ev.Meta {
			return false
		}
		return e.insertRune(ev.Rune)
	}
}

func (e *Editor) handleEnter(ev hotkey.Event) bool {
	focus := e.sel.Focus

	if ev.Shift {
		doc, pt, err := richtext.InsertLineBreak(e.doc, focus)
		if err != nil {
			return false
		}
		e.commit(doc, richtext.Collapse(pt))
		return true
	}

	// Break-out: inside a break-out-capable element, Enter on the
	// trailing edge inserts a fresh sibling block instead of splitting.
	if e.breakOutApplies(focus) {
		doc, blockPath, err := richtext.InsertBreakOut(e.doc, focus.Path)
		if err != nil {
			return false
		}
		if p, _, ok := richtext.FirstLeaf(doc, blockPath); ok {
			e.commit(doc, richtext.Collapse(richtext.Point{Path: p}))
		} else {
			e.commit(doc, richtext.Collapse(richtext.Point{Path: blockPath.Child(0)}))
		}
		return true
	}

	// Default: split at the cursor; the new block drops carried-over
	// formatting.
	doc, pt, err := richtext.SplitBlock(e.doc, focus)
	if err != nil {
		return false
	}
	e.commit(doc, richtext.Collapse(pt))
	return true
}

// breakOutApplies reports whether the cursor sits on the trailing edge
// of a break-out-capable element: last leaf, cursor at its end.
func (e *Editor) breakOutApplies(focus richtext.Point) bool {
	parentPath := focus.Path.Parent()
	if len(parentPath) == 0 {
		return false
	}
	parent, ok := e.doc.ElementAt(parentPath)
	if !ok {
		return false
	}
	def, _ := e.reg.Element(parent.Type)
	if !def.BreakOut {
		return false
	}
	leaf, ok := e.doc.TextAt(focus.Path)
	if !ok {
		return false
	}
	if focus.Path.Last() != len(parent.Children)-1 {
		return false
	}
	return focus.Offset >= leaf.Length()
}

func (e *Editor) handleBackspace() bool {
	focus := e.sel.Focus

	// Cursor on a void element deletes the whole element.
	if voidPath, ok := e.voidAncestor(focus.Path); ok {
		doc, err := richtext.RemoveNode(e.doc, voidPath)
		if err != nil {
			return false
		}
		e.doc = doc
		e.resetSelectionNear(voidPath)
		e.binding.SetValue(doc)
		return true
	}

	// Deleting the last remaining character of a list item promotes the
	// item out of its list.
	if focus.Offset == 1 {
		if itemPath, ok := e.listItemAncestor(focus.Path); ok {
			doc, pt, err := richtext.DeleteBackward(e.doc, focus)
			if err != nil {
				return false
			}
			doc, promoted, err := richtext.UnwrapListItem(doc, itemPath)
			if err != nil {
				return false
			}
			if p, _, ok := richtext.FirstLeaf(doc, promoted); ok {
				e.commit(doc, richtext.Collapse(richtext.Point{Path: p}))
			} else {
				e.commit(doc, richtext.Collapse(pt))
			}
			return true
		}
	}

	if focus.Offset == 0 {
		// Block merging is the host's default behavior.
		return false
	}

	doc, pt, err := richtext.DeleteBackward(e.doc, focus)
	if err != nil {
		return false
	}
	e.commit(doc, richtext.Collapse(pt))
	return true
}

func (e *Editor) insertRune(r rune) bool {
	if r == 0 {
		return false
	}
	doc, pt, err := richtext.InsertText(e.doc, e.sel.Focus, string(r))
	if err != nil {
		return false
	}
	e.commit(doc, richtext.Collapse(pt))
	return true
}

func (e *Editor) toggleMark(mark string) bool {
	if len(e.leaves) > 0 && !e.leaves[mark] {
		return false
	}
	doc, sel, err := richtext.ToggleMark(e.doc, e.sel, mark)
	if err != nil {
		return false
	}
	e.commit(doc, sel)
	return true
}

// voidAncestor finds the nearest enclosing void element of a leaf path.
func (e *Editor) voidAncestor(p richtext.Path) (richtext.Path, bool) {
	for prefix := p.Parent(); len(prefix) > 0; prefix = prefix.Parent() {
		el, ok := e.doc.ElementAt(prefix)
		if !ok {
			continue
		}
		if def, _ := e.reg.Element(el.Type); def.Void {
			return prefix, true
		}
	}
	return nil, false
}

// listItemAncestor finds the nearest enclosing list-item element of a
// leaf path.
func (e *Editor) listItemAncestor(p richtext.Path) (richtext.Path, bool) {
	for prefix := p.Parent(); len(prefix) > 0; prefix = prefix.Parent() {
		el, ok := e.doc.ElementAt(prefix)
		if !ok {
			continue
		}
		if def, _ := e.reg.Element(el.Type); def.ListItem {
			return prefix, true
		}
	}
	return nil, false
}

// resetSelectionNear places the cursor at the block before the removed
// path, or at the document start.
func (e *Editor) resetSelectionNear(removed richtext.Path) {
	if len(removed) > 0 && removed[0] > 0 {
		prev := richtext.Path{removed[0] - 1}
		if p, leaf, ok := richtext.LastLeaf(e.doc, prev); ok {
			e.sel = richtext.Collapse(richtext.Point{Path: p, Offset: leaf.Length()})
			return
		}
	}
	e.resetSelection()
}

// SetReadOnly toggles read-only mode. All registered controls are
// disabled on entry and re-enabled on exit; the toggle is symmetric and
// idempotent.
func (e *Editor) SetReadOnly(on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.readOnly == on {
		return
	}
	e.readOnly = on
	for _, c := range e.controls {
		c.SetEnabled(!on)
	}
}

// ReadOnly reports whether the editor is read-only.
func (e *Editor) ReadOnly() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.readOnly
}

// RegisterControl attaches an interactive control, immediately applying
// the current read-only state to it.
func (e *Editor) RegisterControl(c Control) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.controls = append(e.controls, c)
	c.SetEnabled(!e.readOnly)
}

// SetInitialValue compares a new initial value against the one the
// editor was built from, by serialized identity. On a change the whole
// editor state is torn down and rebuilt so nothing leaks across
// documents. It reports whether a re-initialization happened.
func (e *Editor) SetInitialValue(value any) bool {
	serialized := serializeInitial(value)
	e.mu.Lock()
	defer e.mu.Unlock()
	if serialized == e.initial {
		return false
	}
	e.initial = serialized
	e.doc = e.parseOrDefault(value)
	e.resetSelection()
	return true
}

// Close releases the editor. Controls disabled by read-only mode are
// re-enabled so the disable/enable pairing stays symmetric on every
// exit path.
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	if e.readOnly {
		for _, c := range e.controls {
			c.SetEnabled(true)
		}
	}
	e.controls = nil
}

// RenderHTML renders the tree through the registry's render
// capabilities: leaves wrapped by their enabled mark renderers, elements
// by their type renderers, unknown types as generic containers.
func (e *Editor) RenderHTML() string {
	e.mu.Lock()
	doc := e.doc.Clone()
	e.mu.Unlock()

	var renderNodes func(base richtext.Path, nodes []richtext.Node) string
	renderNodes = func(base richtext.Path, nodes []richtext.Node) string {
		var out string
		for idx, n := range nodes {
			p := base.Child(idx)
			switch v := n.(type) {
			case *richtext.Text:
				out += e.renderLeaf(p, v)
			case *richtext.Element:
				def, _ := e.reg.Element(v.Type)
				out += def.Render(feature.ElementContext{
					Children: renderNodes(p, v.Children),
					Type:     v.Type,
					Attrs:    v.Attrs,
					Path:     p.String(),
				})
			}
		}
		return out
	}
	return renderNodes(nil, doc.Children)
}

func (e *Editor) renderLeaf(p richtext.Path, t *richtext.Text) string {
	out := html.EscapeString(t.Text)
	for _, mark := range sortedMarks(t) {
		if len(e.leaves) > 0 && !e.leaves[mark] {
			continue
		}
		leaf, ok := e.reg.Leaf(mark)
		if !ok {
			continue
		}
		out = leaf.Render(feature.LeafContext{Children: out, Mark: mark, Path: p.String()})
	}
	return out
}

func sortedMarks(t *richtext.Text) []string {
	if len(t.Marks) == 0 {
		return nil
	}
	marks := make([]string, 0, len(t.Marks))
	for m, on := range t.Marks {
		if on {
			marks = append(marks, m)
		}
	}
	// Stable output keeps renders deterministic.
	for i := 1; i < len(marks); i++ {
		for j := i; j > 0 && marks[j] < marks[j-1]; j-- {
			marks[j], marks[j-1] = marks[j-1], marks[j]
		}
	}
	return marks
}
