package app

import (
	"context"
	"encoding/json"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/plumecms/plume/internal/config"
	"github.com/plumecms/plume/internal/document"
	"github.com/plumecms/plume/internal/form"
	"github.com/plumecms/plume/internal/form/field"
	"github.com/plumecms/plume/internal/form/validate"
	"github.com/plumecms/plume/internal/prefs"
	"github.com/plumecms/plume/internal/richtext/editor"
)

// OpenRequest names the document to edit. Exactly one of Collection or
// Global must be set; ID applies to collections only and is empty for a
// new document.
type OpenRequest struct {
	Collection string
	Global     string
	ID         string

	// User is the authenticated user document handed to validators.
	User map[string]any

	// Conditions gates fields by path; a gated-off field skips
	// validation.
	Conditions map[string]field.Condition

	// Validators are custom per-path validators run after the
	// schema-derived ones.
	Validators map[string]validate.Func
}

// DocumentSession is one open document: its fetched state, the form
// store, and the per-field machinery built from the schema.
type DocumentSession struct {
	Info *document.Info
	Form *form.Store

	bindings map[string]*field.Binding
	editors  map[string]*editor.Editor
	prefs    *prefs.Store
}

// Open loads a document and builds its editing session. For an existing
// document the published snapshot, version list, and drafts are fetched
// and the form is filled from the snapshot; a new document starts with
// empty fields and the create operation.
func (s *Session) Open(ctx context.Context, req OpenRequest) (*DocumentSession, error) {
	desc, fields, err := s.resolve(req)
	if err != nil {
		return nil, err
	}

	info := document.NewInfo(s.Client, desc, s.log)
	if err := info.RefreshVersions(ctx); err != nil {
		return nil, fmt.Errorf("app: open %s: %w", desc.Slug, err)
	}

	op := validate.OperationUpdate
	if desc.Type == document.TypeCollection && desc.ID == "" {
		op = validate.OperationCreate
	}

	ds := &DocumentSession{
		Info:     info,
		Form:     form.NewStore(s.log),
		bindings: make(map[string]*field.Binding),
		editors:  make(map[string]*editor.Editor),
		prefs:    s.Prefs,
	}
	if err := ds.buildFields("", fields, s, req, op); err != nil {
		ds.Close()
		return nil, err
	}

	if pub := info.PublishedDoc(); pub != nil {
		if err := ds.Form.Fill(pub); err != nil {
			ds.Close()
			return nil, fmt.Errorf("app: fill %s: %w", desc.Slug, err)
		}
	}

	if err := ds.buildEditors(fields, "", s); err != nil {
		ds.Close()
		return nil, err
	}
	return ds, nil
}

func (s *Session) resolve(req OpenRequest) (document.Descriptor, []config.Field, error) {
	switch {
	case req.Collection != "" && req.Global != "":
		return document.Descriptor{}, nil, fmt.Errorf("app: request names both a collection and a global")
	case req.Collection != "":
		col, ok := s.Config.Collection(req.Collection)
		if !ok {
			return document.Descriptor{}, nil, fmt.Errorf("app: unknown collection %q", req.Collection)
		}
		return document.Descriptor{
			Type:     document.TypeCollection,
			Slug:     col.Slug,
			ID:       req.ID,
			Versions: col.Versions,
		}, col.Fields, nil
	case req.Global != "":
		g, ok := s.Config.Global(req.Global)
		if !ok {
			return document.Descriptor{}, nil, fmt.Errorf("app: unknown global %q", req.Global)
		}
		return document.Descriptor{
			Type:     document.TypeGlobal,
			Slug:     g.Slug,
			Versions: g.Versions,
		}, g.Fields, nil
	default:
		return document.Descriptor{}, nil, fmt.Errorf("app: request names no document")
	}
}

// buildFields creates one binding per leaf field. Group fields nest
// into dotted paths and get no binding of their own.
func (ds *DocumentSession) buildFields(prefix string, fields []config.Field, s *Session, req OpenRequest, op validate.Operation) error {
	for _, f := range fields {
		path := f.Name
		if prefix != "" {
			path = prefix + "." + f.Name
		}
		if f.Type == config.TypeGroup {
			if err := ds.buildFields(path, f.Fields, s, req, op); err != nil {
				return err
			}
			continue
		}

		b, err := field.New(ds.Form, field.Options{
			Path:       path,
			Validate:   fieldValidator(f, req.Validators[path]),
			Condition:  req.Conditions[path],
			DocumentID: ds.Info.Descriptor().ID,
			User:       req.User,
			Operation:  op,
			Logger:     s.log,
		})
		if err != nil {
			return fmt.Errorf("app: field %s: %w", path, err)
		}
		ds.bindings[path] = b
	}
	return nil
}

// buildEditors creates a rich text editor for every richText field,
// after the form has been filled so editors see the fetched value.
func (ds *DocumentSession) buildEditors(fields []config.Field, prefix string, s *Session) error {
	for _, f := range fields {
		path := f.Name
		if prefix != "" {
			path = prefix + "." + f.Name
		}
		switch f.Type {
		case config.TypeGroup:
			if err := ds.buildEditors(f.Fields, path, s); err != nil {
				return err
			}
		case config.TypeRichText:
			ed, err := editor.New(editor.Config{
				Binding:  ds.bindings[path],
				Registry: s.Registry,
				Elements: f.Elements,
				Leaves:   f.Leaves,
				Logger:   s.log,
			})
			if err != nil {
				return fmt.Errorf("app: editor %s: %w", path, err)
			}
			ds.editors[path] = ed
		}
	}
	return nil
}

// fieldValidator derives a validator from the schema constraints, then
// chains any custom validator after it.
func fieldValidator(f config.Field, custom validate.Func) validate.Func {
	var fns []validate.Func
	if f.Required {
		fns = append(fns, validate.Required())
	}
	switch f.Type {
	case config.TypeText, config.TypeTextarea:
		if f.MinLength > 0 || f.MaxLength > 0 {
			fns = append(fns, optional(validate.Length(f.MinLength, f.MaxLength)))
		}
	case config.TypeEmail:
		fns = append(fns, optional(validate.FromRules(is.Email)))
	case config.TypeSelect:
		opts := make([]any, len(f.Options))
		for i, o := range f.Options {
			opts[i] = o
		}
		fns = append(fns, optional(validate.FromRules(validation.In(opts...))))
	}
	if custom != nil {
		fns = append(fns, custom)
	}
	if len(fns) == 0 {
		return nil
	}
	return validate.All(fns...)
}

// optional skips a constraint for unset values; Required decides
// whether emptiness itself is an error.
func optional(fn validate.Func) validate.Func {
	return func(ctx context.Context, value any, args validate.Args) (validate.Result, error) {
		if value == nil || value == "" {
			return validate.OK(), nil
		}
		return fn(ctx, value, args)
	}
}

// Binding returns the field binding at a path.
func (ds *DocumentSession) Binding(path string) (*field.Binding, bool) {
	b, ok := ds.bindings[path]
	return b, ok
}

// Editor returns the rich text editor at a path.
func (ds *DocumentSession) Editor(path string) (*editor.Editor, bool) {
	ed, ok := ds.editors[path]
	return ed, ok
}

// Paths returns the bound field paths.
func (ds *DocumentSession) Paths() []string {
	return ds.Form.Paths()
}

// Preferences returns the document's cached UI preferences. A new
// unsaved document has no preference key and resolves to nil.
func (ds *DocumentSession) Preferences(ctx context.Context) (json.RawMessage, error) {
	return ds.prefs.Get(ctx, ds.Info.PreferenceKey())
}

// Submit validates every field synchronously and reports whether the
// document may be saved. The assembled document is available from
// Form.DataJSON regardless of the outcome.
func (ds *DocumentSession) Submit(ctx context.Context) bool {
	return ds.Form.ValidateAll(ctx)
}

// Close tears the session down: editors first, then bindings.
func (ds *DocumentSession) Close() {
	for _, ed := range ds.editors {
		ed.Close()
	}
	for _, b := range ds.bindings {
		b.Close()
	}
	ds.editors = nil
	ds.bindings = nil
}
