package form

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// State is the store-owned state of one field. Value and InitialValue
// are distinct: edits move Value, Fill and Reset move both.
type State struct {
	Value        any
	InitialValue any
	Valid        bool
	ErrorMessage string
}

// Action is a dispatched field update. Value changes and validation
// results share the same action shape: a value change sets SetValue, a
// validation result sets SetValidity. A validation action never
// overwrites the field's value.
type Action struct {
	Path         string
	Value        any
	SetValue     bool
	Valid        bool
	ErrorMessage string
	SetValidity  bool
}

// ValidateFunc runs one field's validation synchronously and reports the
// result. Bindings register these so the store can validate everything
// on submit.
type ValidateFunc func(ctx context.Context) (valid bool, message string)

// Store holds all field state for one document edit.
type Store struct {
	mu         sync.Mutex
	fields     map[string]*State
	validators map[string]ValidateFunc
	order      []string
	submitted  bool
	modified   bool
	log        zerolog.Logger
}

// NewStore creates an empty store.
func NewStore(log zerolog.Logger) *Store {
	return &Store{
		fields:     make(map[string]*State),
		validators: make(map[string]ValidateFunc),
		log:        log,
	}
}

// Register creates the state for a field path on first mount. Fields
// start pristine and valid. Registering an existing path is a no-op so a
// re-mounted field keeps its state.
func (s *Store) Register(path string, initial any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.fields[path]; ok {
		return
	}
	s.fields[path] = &State{Value: initial, InitialValue: initial, Valid: true}
	s.order = append(s.order, path)
	sort.Strings(s.order)
}

// Deregister destroys a field's state when the field unmounts.
func (s *Store) Deregister(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.fields, path)
	delete(s.validators, path)
	for i, p := range s.order {
		if p == path {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// RegisterValidator attaches the synchronous validator the submit path
// runs for this field.
func (s *Store) RegisterValidator(path string, fn ValidateFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validators[path] = fn
}

// Dispatch applies an update action to the addressed field. Actions
// against unknown paths are dropped.
func (s *Store) Dispatch(a Action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.fields[a.Path]
	if !ok {
		s.log.Debug().Str("path", a.Path).Msg("dropped action for unknown field")
		return
	}
	if a.SetValue {
		st.Value = a.Value
	}
	if a.SetValidity {
		st.Valid = a.Valid
		st.ErrorMessage = a.ErrorMessage
	}
}

// Get returns a copy of the field's state.
func (s *Store) Get(path string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.fields[path]
	if !ok {
		return State{}, false
	}
	return *st, true
}

// Paths returns all registered field paths in sorted order.
func (s *Store) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Fill initializes every registered field from a fetched document
// snapshot, setting both value and initial value, and returns the form
// to a pristine unsubmitted state. Paths absent from the snapshot keep
// their registered initial value.
func (s *Store) Fill(doc map[string]any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for path, st := range s.fields {
		if v := gjson.GetBytes(raw, path); v.Exists() {
			st.Value = v.Value()
			st.InitialValue = v.Value()
		}
		st.Valid = true
		st.ErrorMessage = ""
	}
	s.submitted = false
	s.modified = false
	return nil
}

// Reset returns every field to its initial value and clears the
// modified and submitted flags.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.fields {
		st.Value = st.InitialValue
		st.Valid = true
		st.ErrorMessage = ""
	}
	s.submitted = false
	s.modified = false
}

// SetModified marks the form as modified. The first edit sets this; it
// stays set until Fill or Reset.
func (s *Store) SetModified() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modified = true
}

// Modified reports whether any field has been edited.
func (s *Store) Modified() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modified
}

// SetSubmitted records a submission attempt. Field errors are only
// shown to the user after this is set.
func (s *Store) SetSubmitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted = true
}

// Submitted reports whether submission has been attempted.
func (s *Store) Submitted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitted
}

// DataJSON assembles the nested document from the flat path map. Paths
// are applied in sorted order so sibling array indexes land in sequence.
func (s *Store) DataJSON() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dataJSONLocked()
}

func (s *Store) dataJSONLocked() []byte {
	doc := []byte(`{}`)
	for _, path := range s.order {
		st := s.fields[path]
		out, err := sjson.SetBytes(doc, path, st.Value)
		if err != nil {
			s.log.Debug().Str("path", path).Err(err).Msg("skipped field during document assembly")
			continue
		}
		doc = out
	}
	return doc
}

// Data returns the assembled document as a generic map.
func (s *Store) Data() map[string]any {
	m, _ := decodeObject(s.DataJSON())
	return m
}

// SiblingData returns the slice of the document at the field's parent
// path: the data the field shares with its immediate siblings. For a
// top-level field this is the whole document.
func (s *Store) SiblingData(path string) map[string]any {
	raw := s.DataJSON()
	idx := strings.LastIndex(path, ".")
	if idx < 0 {
		m, _ := decodeObject(raw)
		return m
	}
	parent := gjson.GetBytes(raw, path[:idx])
	if m, ok := parent.Value().(map[string]any); ok {
		return m
	}
	return nil
}

// ValidateAll marks the form submitted and runs every registered
// validator synchronously, committing each result. It reports whether
// the whole form is valid. Fields without validators keep their current
// validity.
func (s *Store) ValidateAll(ctx context.Context) bool {
	s.mu.Lock()
	s.submitted = true
	paths := make([]string, len(s.order))
	copy(paths, s.order)
	validators := make(map[string]ValidateFunc, len(s.validators))
	for p, fn := range s.validators {
		validators[p] = fn
	}
	s.mu.Unlock()

	all := true
	for _, path := range paths {
		fn, ok := validators[path]
		if !ok {
			continue
		}
		valid, message := fn(ctx)
		s.Dispatch(Action{Path: path, SetValidity: true, Valid: valid, ErrorMessage: message})
		if !valid {
			all = false
		}
	}
	if !all {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.fields {
		if !st.Valid {
			return false
		}
	}
	return true
}

func decodeObject(raw []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
