package editor

import (
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/plumecms/plume/internal/form"
	"github.com/plumecms/plume/internal/form/field"
	"github.com/plumecms/plume/internal/richtext"
	"github.com/plumecms/plume/internal/richtext/feature"
	"github.com/plumecms/plume/internal/richtext/hotkey"
)

func newEditor(t *testing.T, initial any, mutate ...func(*Config)) (*Editor, *field.Binding) {
	t.Helper()
	store := form.NewStore(zerolog.Nop())
	b, err := field.New(store, field.Options{Path: "content", Initial: initial, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("field.New() failed: %v", err)
	}
	t.Cleanup(b.Close)

	cfg := Config{Binding: b, Logger: zerolog.Nop()}
	for _, m := range mutate {
		m(&cfg)
	}
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return e, b
}

func doc(children ...richtext.Node) *richtext.Document {
	return &richtext.Document{Children: children}
}

func el(typ string, children ...richtext.Node) *richtext.Element {
	return &richtext.Element{Type: typ, Children: children}
}

func text(s string) *richtext.Text { return &richtext.Text{Text: s} }

func cursor(t *testing.T, e *Editor, p richtext.Path, offset int) {
	t.Helper()
	if err := e.Select(richtext.Collapse(richtext.Point{Path: p, Offset: offset})); err != nil {
		t.Fatalf("Select() failed: %v", err)
	}
}

func TestNew_RejectsUnknownEnabledTags(t *testing.T) {
	store := form.NewStore(zerolog.Nop())
	b, err := field.New(store, field.Options{Path: "content", Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("field.New() failed: %v", err)
	}
	defer b.Close()

	_, err = New(Config{Binding: b, Elements: []string{"marquee"}})
	if !errors.Is(err, feature.ErrUnknown) {
		t.Errorf("New() with unknown element tag = %v, want ErrUnknown", err)
	}
	_, err = New(Config{Binding: b, Leaves: []string{"sparkle"}})
	if !errors.Is(err, feature.ErrUnknown) {
		t.Errorf("New() with unknown leaf name = %v, want ErrUnknown", err)
	}
}

func TestNew_UnparsableValueFallsBackToDefault(t *testing.T) {
	e, _ := newEditor(t, "not valid json")
	if got, want := e.Document().Serialize(), richtext.DefaultDocument().Serialize(); got != want {
		t.Errorf("Document() = %s, want default document", got)
	}
}

func TestHandleKey_EnterSplitsBlock(t *testing.T) {
	e, _ := newEditor(t, doc(el("p", text("hello world"))))
	cursor(t, e, richtext.Path{0, 0}, 5)

	if !e.HandleKey(hotkey.Event{Key: hotkey.KeyEnter}) {
		t.Fatal("Enter not handled")
	}

	d := e.Document()
	if len(d.Children) != 2 {
		t.Fatalf("blocks after split = %d, want 2", len(d.Children))
	}
	first, _ := d.TextAt(richtext.Path{0, 0})
	second, _ := d.TextAt(richtext.Path{1, 0})
	if first.Text != "hello" || second.Text != " world" {
		t.Errorf("split halves = %q / %q", first.Text, second.Text)
	}
	wantSel := richtext.Point{Path: richtext.Path{1, 0}, Offset: 0}
	if !e.Selection().Focus.Equals(wantSel) {
		t.Errorf("selection after split = %+v", e.Selection().Focus)
	}
}

func TestHandleKey_EnterBreaksOutOfHeading(t *testing.T) {
	e, _ := newEditor(t, doc(el("h2", text("Title"))))
	cursor(t, e, richtext.Path{0, 0}, 5)

	if !e.HandleKey(hotkey.Event{Key: hotkey.KeyEnter}) {
		t.Fatal("Enter not handled")
	}

	d := e.Document()
	if len(d.Children) != 2 {
		t.Fatalf("blocks after break-out = %d, want 2", len(d.Children))
	}
	heading, _ := d.ElementAt(richtext.Path{0})
	if heading.Type != "h2" || len(heading.Children) != 1 {
		t.Errorf("original heading changed: %+v", heading)
	}
	if leaf, _ := d.TextAt(richtext.Path{0, 0}); leaf.Text != "Title" {
		t.Errorf("heading text changed to %q", leaf.Text)
	}
	fresh, _ := d.ElementAt(richtext.Path{1})
	if fresh.Type != richtext.DefaultType {
		t.Errorf("new block type = %q, want %q", fresh.Type, richtext.DefaultType)
	}
	if !e.Selection().Focus.Equals(richtext.Point{Path: richtext.Path{1, 0}, Offset: 0}) {
		t.Errorf("selection after break-out = %+v", e.Selection().Focus)
	}
}

func TestHandleKey_EnterMidHeadingSplitsInstead(t *testing.T) {
	e, _ := newEditor(t, doc(el("h2", text("Title"))))
	cursor(t, e, richtext.Path{0, 0}, 2)

	if !e.HandleKey(hotkey.Event{Key: hotkey.KeyEnter}) {
		t.Fatal("Enter not handled")
	}

	d := e.Document()
	second, _ := d.ElementAt(richtext.Path{1})
	if second.Type != "h2" {
		t.Errorf("mid-heading Enter produced %q block, want split heading", second.Type)
	}
}

func TestHandleKey_ShiftEnterInsertsLineBreak(t *testing.T) {
	e, _ := newEditor(t, doc(el("p", text("ab"))))
	cursor(t, e, richtext.Path{0, 0}, 1)

	if !e.HandleKey(hotkey.Event{Key: hotkey.KeyEnter, Shift: true}) {
		t.Fatal("Shift+Enter not handled")
	}

	d := e.Document()
	if len(d.Children) != 1 {
		t.Fatalf("Shift+Enter created a new block")
	}
	if leaf, _ := d.TextAt(richtext.Path{0, 0}); leaf.Text != "a\nb" {
		t.Errorf("leaf text = %q, want %q", leaf.Text, "a\nb")
	}
}

func TestHandleKey_BackspaceUnwrapsLastListItemChar(t *testing.T) {
	e, _ := newEditor(t, doc(el("ul", el("li", text("x")))))
	cursor(t, e, richtext.Path{0, 0, 0}, 1)

	if !e.HandleKey(hotkey.Event{Key: hotkey.KeyBackspace}) {
		t.Fatal("Backspace not handled")
	}

	d := e.Document()
	if len(d.Children) != 1 {
		t.Fatalf("top-level blocks = %d, want 1", len(d.Children))
	}
	block, ok := d.ElementAt(richtext.Path{0})
	if !ok || block.Type != richtext.DefaultType {
		t.Fatalf("list not replaced by default block: %+v", d.Children[0])
	}
}

func TestHandleKey_BackspaceMidListItemDeletesChar(t *testing.T) {
	e, _ := newEditor(t, doc(el("ul", el("li", text("ab")))))
	cursor(t, e, richtext.Path{0, 0, 0}, 2)

	if !e.HandleKey(hotkey.Event{Key: hotkey.KeyBackspace}) {
		t.Fatal("Backspace not handled")
	}

	d := e.Document()
	if list, _ := d.ElementAt(richtext.Path{0}); list.Type != "ul" {
		t.Errorf("list unwrapped on a plain character delete")
	}
	if leaf, _ := d.TextAt(richtext.Path{0, 0, 0}); leaf.Text != "a" {
		t.Errorf("leaf text = %q, want %q", leaf.Text, "a")
	}
}

func TestHandleKey_BackspaceRemovesVoidElement(t *testing.T) {
	e, _ := newEditor(t, doc(
		el("p", text("before")),
		el("upload", text("")),
		el("p", text("after")),
	))
	cursor(t, e, richtext.Path{1, 0}, 0)

	if !e.HandleKey(hotkey.Event{Key: hotkey.KeyBackspace}) {
		t.Fatal("Backspace not handled")
	}

	d := e.Document()
	if len(d.Children) != 2 {
		t.Fatalf("blocks after void removal = %d, want 2", len(d.Children))
	}
	for i, want := range []string{"before", "after"} {
		if leaf, _ := d.TextAt(richtext.Path{i, 0}); leaf.Text != want {
			t.Errorf("block %d text = %q, want %q", i, leaf.Text, want)
		}
	}
	// Cursor lands at the end of the preceding block.
	want := richtext.Point{Path: richtext.Path{0, 0}, Offset: 6}
	if !e.Selection().Focus.Equals(want) {
		t.Errorf("selection after void removal = %+v", e.Selection().Focus)
	}
}

func TestHandleKey_BackspaceAtBlockStartUnhandled(t *testing.T) {
	e, _ := newEditor(t, doc(el("p", text("a")), el("p", text("b"))))
	cursor(t, e, richtext.Path{1, 0}, 0)

	if e.HandleKey(hotkey.Event{Key: hotkey.KeyBackspace}) {
		t.Error("Backspace at block start claimed handled; block merging belongs to the host")
	}
}

func TestHandleKey_HotkeyTogglesMark(t *testing.T) {
	e, _ := newEditor(t, doc(el("p", text("hello"))))
	if err := e.Select(richtext.Range{
		Anchor: richtext.Point{Path: richtext.Path{0, 0}, Offset: 0},
		Focus:  richtext.Point{Path: richtext.Path{0, 0}, Offset: 5},
	}); err != nil {
		t.Fatalf("Select() failed: %v", err)
	}

	ev := hotkey.Event{Key: hotkey.KeyRune, Rune: 'b', Ctrl: true}
	if !e.HandleKey(ev) {
		t.Fatal("mod+b not handled")
	}
	d := e.Document()
	if leaf, _ := d.TextAt(richtext.Path{0, 0}); !leaf.HasMark("bold") {
		t.Error("bold not applied")
	}

	// Same chord again removes it.
	if !e.HandleKey(ev) {
		t.Fatal("second mod+b not handled")
	}
	d = e.Document()
	if leaf, _ := d.TextAt(richtext.Path{0, 0}); leaf.HasMark("bold") {
		t.Error("bold not removed on second toggle")
	}
}

func TestHandleKey_DisabledLeafHotkeyUnhandled(t *testing.T) {
	e, _ := newEditor(t, doc(el("p", text("hello"))), func(c *Config) {
		c.Leaves = []string{"italic"}
	})
	if err := e.Select(richtext.Range{
		Anchor: richtext.Point{Path: richtext.Path{0, 0}, Offset: 0},
		Focus:  richtext.Point{Path: richtext.Path{0, 0}, Offset: 5},
	}); err != nil {
		t.Fatalf("Select() failed: %v", err)
	}

	if e.HandleKey(hotkey.Event{Key: hotkey.KeyRune, Rune: 'b', Ctrl: true}) {
		t.Error("hotkey for a disabled leaf was handled")
	}
}

func TestHandleKey_RuneInsertsAndSyncsBinding(t *testing.T) {
	e, b := newEditor(t, doc(el("p", text("ab"))))
	cursor(t, e, richtext.Path{0, 0}, 1)

	if !e.HandleKey(hotkey.Event{Key: hotkey.KeyRune, Rune: 'X'}) {
		t.Fatal("rune not handled")
	}

	if leaf, _ := e.Document().TextAt(richtext.Path{0, 0}); leaf.Text != "aXb" {
		t.Errorf("leaf text = %q, want %q", leaf.Text, "aXb")
	}
	synced, ok := b.Value().(*richtext.Document)
	if !ok {
		t.Fatalf("binding value is %T, want *richtext.Document", b.Value())
	}
	if !strings.Contains(synced.Serialize(), "aXb") {
		t.Errorf("binding not synced: %s", synced.Serialize())
	}
}

type fakeControl struct {
	enabled bool
	toggles int
}

func (c *fakeControl) SetEnabled(on bool) {
	c.enabled = on
	c.toggles++
}

func TestReadOnly_DisablesControlsAndIgnoresKeys(t *testing.T) {
	e, _ := newEditor(t, doc(el("p", text("ab"))))
	cursor(t, e, richtext.Path{0, 0}, 1)

	c := &fakeControl{}
	e.RegisterControl(c)
	if !c.enabled {
		t.Fatal("control not enabled on registration")
	}

	e.SetReadOnly(true)
	if c.enabled {
		t.Error("control still enabled in read-only mode")
	}
	if e.HandleKey(hotkey.Event{Key: hotkey.KeyRune, Rune: 'x'}) {
		t.Error("read-only editor handled a key")
	}

	// Repeated sets are idempotent; the exit re-enables exactly once.
	e.SetReadOnly(true)
	e.SetReadOnly(false)
	if !c.enabled {
		t.Error("control not re-enabled after read-only exit")
	}
	if c.toggles != 3 {
		t.Errorf("control toggled %d times, want 3", c.toggles)
	}
}

func TestClose_ReenablesControlsDisabledByReadOnly(t *testing.T) {
	e, _ := newEditor(t, doc(el("p", text("ab"))))
	c := &fakeControl{}
	e.RegisterControl(c)
	e.SetReadOnly(true)

	e.Close()
	if !c.enabled {
		t.Error("Close() left read-only control disabled")
	}
	e.Close() // idempotent
}

func TestSetInitialValue_ReinitializesOnIdentityChange(t *testing.T) {
	e, _ := newEditor(t, doc(el("p", text("one"))))
	cursor(t, e, richtext.Path{0, 0}, 3)

	// The same content in a different physical shape is the same identity.
	if e.SetInitialValue(`[{"children":[{"text":"one"}],"type":"p"}]`) {
		t.Error("equivalent initial value forced a reinit")
	}
	if e.Selection().Focus.Offset != 3 {
		t.Error("selection lost without a reinit")
	}

	if !e.SetInitialValue(doc(el("p", text("two")))) {
		t.Fatal("changed initial value did not reinit")
	}
	if leaf, _ := e.Document().TextAt(richtext.Path{0, 0}); leaf.Text != "two" {
		t.Errorf("document after reinit = %q, want %q", leaf.Text, "two")
	}
	if e.Selection().Focus.Offset != 0 {
		t.Error("selection not reset on reinit")
	}
}

func TestRenderHTML(t *testing.T) {
	d := doc(
		el("h1", text("Title")),
		el("p", &richtext.Text{Text: "bold bit", Marks: map[string]bool{"bold": true}}),
	)
	e, _ := newEditor(t, d)

	got := e.RenderHTML()
	want := "<h1>Title</h1><p><strong>bold bit</strong></p>"
	if got != want {
		t.Errorf("RenderHTML() = %q, want %q", got, want)
	}
}
