// Package feature holds the registry of rich text element and leaf types.
// Types are user-extensible, so they are keyed by string tag and resolved
// at render time through a small capability interface rather than a
// closed set of variants. The registry is validated when an editor is
// built: duplicate tags are rejected at registration, unknown enabled
// tags at startup.
package feature

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrDuplicate reports a tag registered twice.
	ErrDuplicate = errors.New("feature: duplicate tag")
	// ErrUnknown reports an enabled tag with no registration.
	ErrUnknown = errors.New("feature: unknown tag")
)

// ElementContext is passed to element render functions.
type ElementContext struct {
	// Attributes are container attributes the host rendering layer
	// requires on the element's wrapper.
	Attributes map[string]string
	// Children is the already-rendered child content.
	Children string
	// Type is the element's type tag.
	Type string
	// Attrs carries the element's type-specific data (link URL, ...).
	Attrs map[string]any
	// Path addresses the element in the tree, dot-joined.
	Path string
}

// LeafContext is passed to leaf render functions.
type LeafContext struct {
	Attributes map[string]string
	Children   string
	// Mark is the leaf mark being rendered (bold, italic, ...).
	Mark string
	Path string
}

// RenderElementFunc renders one element.
type RenderElementFunc func(ctx ElementContext) string

// RenderLeafFunc wraps leaf content for one mark.
type RenderLeafFunc func(ctx LeafContext) string

// Button describes a toolbar button for a feature. The registry only
// carries the descriptor; the host UI decides how to draw it.
type Button struct {
	Label  string
	Icon   string
	Format string
}

// Element is a registered element type: a render capability plus the
// editing policy flags the engine consults for keyboard semantics.
type Element struct {
	// Type is the unique tag, e.g. "h1", "ul", "li", "link", "upload".
	Type   string
	Render RenderElementFunc
	Button *Button

	// BreakOut marks elements where Enter on an empty trailing leaf
	// inserts a new sibling block instead of splitting (headings).
	BreakOut bool
	// Void marks elements with no editable text content (uploads,
	// relationships). The cursor never enters them; Backspace on them
	// deletes the whole element.
	Void bool
	// ListItem marks elements that Backspace-at-offset-1 unwraps out of
	// their enclosing list.
	ListItem bool
}

// Leaf is a registered leaf mark type.
type Leaf struct {
	// Name is the unique mark name, e.g. "bold".
	Name   string
	Render RenderLeafFunc
	Button *Button
}

// Registry maps type tags to element and leaf capabilities.
type Registry struct {
	mu       sync.RWMutex
	elements map[string]Element
	leaves   map[string]Leaf
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		elements: make(map[string]Element),
		leaves:   make(map[string]Leaf),
	}
}

// RegisterElement adds an element type. Registering a tag twice fails.
func (r *Registry) RegisterElement(e Element) error {
	if e.Type == "" {
		return fmt.Errorf("feature: element with empty type tag")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.elements[e.Type]; exists {
		return fmt.Errorf("%w: element %q", ErrDuplicate, e.Type)
	}
	r.elements[e.Type] = e
	return nil
}

// RegisterLeaf adds a leaf mark type. Registering a name twice fails.
func (r *Registry) RegisterLeaf(l Leaf) error {
	if l.Name == "" {
		return fmt.Errorf("feature: leaf with empty name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.leaves[l.Name]; exists {
		return fmt.Errorf("%w: leaf %q", ErrDuplicate, l.Name)
	}
	r.leaves[l.Name] = l
	return nil
}

// Element resolves an element tag. Unregistered tags resolve to a
// generic container so unknown content still renders.
func (r *Registry) Element(tag string) (Element, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.elements[tag]
	if !ok {
		return genericElement(tag), false
	}
	return e, true
}

// Leaf resolves a leaf mark name.
func (r *Registry) Leaf(name string) (Leaf, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.leaves[name]
	return l, ok
}

// ElementTags returns all registered element tags, sorted.
func (r *Registry) ElementTags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.elements))
	for t := range r.elements {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// LeafNames returns all registered leaf names, sorted.
func (r *Registry) LeafNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.leaves))
	for n := range r.leaves {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CheckEnabled verifies that every enabled tag resolves. Editors call
// this at startup so a typo in a field config fails fast instead of
// rendering generic containers silently.
func (r *Registry) CheckEnabled(elements, leaves []string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, tag := range elements {
		if _, ok := r.elements[tag]; !ok {
			return fmt.Errorf("%w: element %q", ErrUnknown, tag)
		}
	}
	for _, name := range leaves {
		if _, ok := r.leaves[name]; !ok {
			return fmt.Errorf("%w: leaf %q", ErrUnknown, name)
		}
	}
	return nil
}

// genericElement is the fallback for unregistered tags: a plain
// container that renders its children unchanged.
func genericElement(tag string) Element {
	return Element{
		Type: tag,
		Render: func(ctx ElementContext) string {
			return ctx.Children
		},
	}
}

// Defaults returns a registry preloaded with the built-in element and
// leaf types.
func Defaults() *Registry {
	r := NewRegistry()
	for _, e := range builtinElements() {
		if err := r.RegisterElement(e); err != nil {
			panic(err)
		}
	}
	for _, l := range builtinLeaves() {
		if err := r.RegisterLeaf(l); err != nil {
			panic(err)
		}
	}
	return r
}

func wrapTag(tag string) RenderElementFunc {
	return func(ctx ElementContext) string {
		return "<" + tag + ">" + ctx.Children + "</" + tag + ">"
	}
}

func builtinElements() []Element {
	headings := []string{"h1", "h2", "h3", "h4", "h5", "h6"}
	out := make([]Element, 0, len(headings)+6)
	for _, h := range headings {
		out = append(out, Element{
			Type:     h,
			Render:   wrapTag(h),
			Button:   &Button{Label: h, Format: h},
			BreakOut: true,
		})
	}
	out = append(out,
		Element{Type: "p", Render: wrapTag("p")},
		Element{Type: "blockquote", Render: wrapTag("blockquote"), Button: &Button{Label: "quote", Format: "blockquote"}},
		Element{Type: "ul", Render: wrapTag("ul"), Button: &Button{Label: "ul", Format: "ul"}},
		Element{Type: "ol", Render: wrapTag("ol"), Button: &Button{Label: "ol", Format: "ol"}},
		Element{Type: "li", Render: wrapTag("li"), ListItem: true},
		Element{
			Type: "link",
			Render: func(ctx ElementContext) string {
				url, _ := ctx.Attrs["url"].(string)
				return `<a href="` + url + `">` + ctx.Children + "</a>"
			},
			Button: &Button{Label: "link", Format: "link"},
		},
		Element{Type: "upload", Render: func(ctx ElementContext) string { return "" }, Button: &Button{Label: "upload", Format: "upload"}, Void: true},
		Element{Type: "relationship", Render: func(ctx ElementContext) string { return "" }, Button: &Button{Label: "relationship", Format: "relationship"}, Void: true},
	)
	return out
}

func wrapMark(tag string) RenderLeafFunc {
	return func(ctx LeafContext) string {
		return "<" + tag + ">" + ctx.Children + "</" + tag + ">"
	}
}

func builtinLeaves() []Leaf {
	return []Leaf{
		{Name: "bold", Render: wrapMark("strong"), Button: &Button{Label: "B", Format: "bold"}},
		{Name: "italic", Render: wrapMark("em"), Button: &Button{Label: "I", Format: "italic"}},
		{Name: "underline", Render: wrapMark("u"), Button: &Button{Label: "U", Format: "underline"}},
		{Name: "strikethrough", Render: wrapMark("s"), Button: &Button{Label: "S", Format: "strikethrough"}},
		{Name: "code", Render: wrapMark("code"), Button: &Button{Label: "</>", Format: "code"}},
	}
}
