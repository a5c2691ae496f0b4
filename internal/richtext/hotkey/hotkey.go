// Package hotkey maps keyboard chords to format marks. The table is
// static: it is built once per editor from parsed chord strings like
// "mod+b", and matched against incoming key events during editing.
package hotkey

import (
	"fmt"
	"strings"
	"unicode"
)

// Key identifies a non-rune key the editor cares about.
type Key int

const (
	// KeyRune is a printable character key.
	KeyRune Key = iota
	// KeyEnter is the Enter/Return key.
	KeyEnter
	// KeyBackspace is the Backspace key.
	KeyBackspace
)

// Event is one keyboard event as delivered by the host UI layer.
type Event struct {
	Key   Key
	Rune  rune
	Ctrl  bool
	Alt   bool
	Shift bool
	Meta  bool
}

// String returns a readable chord representation, e.g. "ctrl+shift+b".
func (e Event) String() string {
	var parts []string
	if e.Ctrl {
		parts = append(parts, "ctrl")
	}
	if e.Meta {
		parts = append(parts, "meta")
	}
	if e.Alt {
		parts = append(parts, "alt")
	}
	if e.Shift {
		parts = append(parts, "shift")
	}
	switch e.Key {
	case KeyEnter:
		parts = append(parts, "enter")
	case KeyBackspace:
		parts = append(parts, "backspace")
	default:
		parts = append(parts, string(e.Rune))
	}
	return strings.Join(parts, "+")
}

// Chord is a parsed key combination. Mod matches either Ctrl or Meta so
// one table serves both conventions.
type Chord struct {
	Rune  rune
	Ctrl  bool
	Alt   bool
	Shift bool
	Meta  bool
	Mod   bool
}

// Parse parses a chord string such as "mod+b", "ctrl+shift+x" or
// "mod+`". Modifier names are case-insensitive; the final part must be a
// single printable rune.
func Parse(s string) (Chord, error) {
	parts := strings.Split(s, "+")
	if len(parts) == 0 || parts[len(parts)-1] == "" {
		return Chord{}, fmt.Errorf("hotkey: empty chord %q", s)
	}
	var c Chord
	for _, p := range parts[:len(parts)-1] {
		switch strings.ToLower(strings.TrimSpace(p)) {
		case "mod":
			c.Mod = true
		case "ctrl", "control":
			c.Ctrl = true
		case "alt", "opt", "option":
			c.Alt = true
		case "shift":
			c.Shift = true
		case "meta", "cmd", "super":
			c.Meta = true
		default:
			return Chord{}, fmt.Errorf("hotkey: unknown modifier %q in %q", p, s)
		}
	}
	last := []rune(parts[len(parts)-1])
	if len(last) != 1 {
		return Chord{}, fmt.Errorf("hotkey: chord %q must end in a single key", s)
	}
	c.Rune = unicode.ToLower(last[0])
	return c, nil
}

// MustParse parses a chord and panics on error. Use only for the static
// defaults.
func MustParse(s string) Chord {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Matches reports whether the event triggers the chord.
func (c Chord) Matches(e Event) bool {
	if e.Key != KeyRune {
		return false
	}
	if unicode.ToLower(e.Rune) != c.Rune {
		return false
	}
	if c.Mod {
		if !e.Ctrl && !e.Meta {
			return false
		}
	} else if e.Ctrl != c.Ctrl || e.Meta != c.Meta {
		return false
	}
	return e.Alt == c.Alt && e.Shift == c.Shift
}

type entry struct {
	chord  Chord
	format string
}

// Table maps chords to mark names.
type Table struct {
	entries []entry
}

// NewTable builds a table from chord-string to mark-name pairs.
func NewTable(bindings map[string]string) (*Table, error) {
	t := &Table{}
	for chord, format := range bindings {
		c, err := Parse(chord)
		if err != nil {
			return nil, err
		}
		t.entries = append(t.entries, entry{chord: c, format: format})
	}
	return t, nil
}

// Match returns the mark bound to the event's chord, if any. A match
// means the host must suppress the default browser/terminal action.
func (t *Table) Match(e Event) (string, bool) {
	for _, en := range t.entries {
		if en.chord.Matches(e) {
			return en.format, true
		}
	}
	return "", false
}

// Default returns the built-in format hotkey table.
func Default() *Table {
	return &Table{entries: []entry{
		{chord: MustParse("mod+b"), format: "bold"},
		{chord: MustParse("mod+i"), format: "italic"},
		{chord: MustParse("mod+u"), format: "underline"},
		{chord: MustParse("mod+`"), format: "code"},
	}}
}
