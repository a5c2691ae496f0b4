package form

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

func newTestStore() *Store {
	return NewStore(zerolog.Nop())
}

func TestStore_SetValueKeepsInitial(t *testing.T) {
	s := newTestStore()
	s.Register("title", "first")

	s.Dispatch(Action{Path: "title", Value: "second", SetValue: true})

	st, ok := s.Get("title")
	if !ok {
		t.Fatal("field missing")
	}
	if st.Value != "second" {
		t.Errorf("Value = %v, want second", st.Value)
	}
	if st.InitialValue != "first" {
		t.Errorf("InitialValue = %v, want first", st.InitialValue)
	}
}

func TestStore_ValidityActionDoesNotOverwriteValue(t *testing.T) {
	s := newTestStore()
	s.Register("title", "keep me")

	s.Dispatch(Action{Path: "title", SetValidity: true, Valid: false, ErrorMessage: "too short"})

	st, _ := s.Get("title")
	if st.Value != "keep me" {
		t.Errorf("validation action overwrote value: %v", st.Value)
	}
	if st.Valid || st.ErrorMessage != "too short" {
		t.Errorf("validity not applied: %+v", st)
	}
}

func TestStore_RegisterTwiceKeepsState(t *testing.T) {
	s := newTestStore()
	s.Register("x", 1)
	s.Dispatch(Action{Path: "x", Value: 2, SetValue: true})
	s.Register("x", 99)

	st, _ := s.Get("x")
	if st.Value != 2 {
		t.Errorf("re-registration reset the field: %v", st.Value)
	}
}

func TestStore_DeregisterDestroysState(t *testing.T) {
	s := newTestStore()
	s.Register("x", 1)
	s.Deregister("x")
	if _, ok := s.Get("x"); ok {
		t.Error("field state survived deregistration")
	}
}

func TestStore_FillAndReset(t *testing.T) {
	s := newTestStore()
	s.Register("title", "")
	s.Register("meta.description", "")
	s.SetModified()
	s.SetSubmitted()

	err := s.Fill(map[string]any{
		"title": "Hello",
		"meta":  map[string]any{"description": "world"},
	})
	if err != nil {
		t.Fatalf("Fill() failed: %v", err)
	}

	if st, _ := s.Get("title"); st.Value != "Hello" || st.InitialValue != "Hello" {
		t.Errorf("title after fill = %+v", st)
	}
	if st, _ := s.Get("meta.description"); st.Value != "world" {
		t.Errorf("nested field after fill = %+v", st)
	}
	if s.Modified() || s.Submitted() {
		t.Error("fill must clear modified and submitted")
	}

	s.Dispatch(Action{Path: "title", Value: "edited", SetValue: true})
	s.SetModified()
	s.Reset()

	if st, _ := s.Get("title"); st.Value != "Hello" {
		t.Errorf("reset did not restore initial value: %v", st.Value)
	}
	if s.Modified() {
		t.Error("reset must clear modified")
	}
}

func TestStore_DataAssemblesNestedDocument(t *testing.T) {
	s := newTestStore()
	s.Register("title", "Hello")
	s.Register("meta.description", "desc")
	s.Register("tags.0", "go")
	s.Register("tags.1", "cms")

	data := s.Data()
	if data["title"] != "Hello" {
		t.Errorf("title = %v", data["title"])
	}
	meta, ok := data["meta"].(map[string]any)
	if !ok || meta["description"] != "desc" {
		t.Errorf("meta = %v", data["meta"])
	}
	tags, ok := data["tags"].([]any)
	if !ok || len(tags) != 2 || tags[0] != "go" || tags[1] != "cms" {
		t.Errorf("tags = %v", data["tags"])
	}
}

func TestStore_SiblingData(t *testing.T) {
	s := newTestStore()
	s.Register("title", "t")
	s.Register("meta.description", "d")
	s.Register("meta.keywords", "k")

	sibling := s.SiblingData("meta.description")
	if sibling["keywords"] != "k" || sibling["description"] != "d" {
		t.Errorf("sibling data = %v", sibling)
	}
	if _, ok := sibling["title"]; ok {
		t.Error("sibling data leaked parent scope")
	}

	top := s.SiblingData("title")
	if top["title"] != "t" {
		t.Errorf("top-level sibling data = %v, want whole document", top)
	}
}

func TestStore_ValidateAll(t *testing.T) {
	s := newTestStore()
	s.Register("a", "")
	s.Register("b", "ok")
	s.RegisterValidator("a", func(context.Context) (bool, string) {
		return false, "required"
	})
	s.RegisterValidator("b", func(context.Context) (bool, string) {
		return true, ""
	})

	if s.ValidateAll(context.Background()) {
		t.Error("ValidateAll() = true with an invalid field")
	}
	if !s.Submitted() {
		t.Error("ValidateAll must mark the form submitted")
	}
	if st, _ := s.Get("a"); st.Valid || st.ErrorMessage != "required" {
		t.Errorf("field a after validate = %+v", st)
	}

	s.Dispatch(Action{Path: "a", Value: "filled", SetValue: true})
	s.RegisterValidator("a", func(context.Context) (bool, string) {
		return true, ""
	})
	if !s.ValidateAll(context.Background()) {
		t.Error("ValidateAll() = false with all fields valid")
	}
}
