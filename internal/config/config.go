// Package config defines the admin runtime configuration: the API the
// admin talks to, logging, and the collection and global schemas whose
// fields the form and rich text engines are built from. Files are TOML
// or YAML, selected by extension, with ${VAR} environment expansion
// applied before parsing.
package config

import (
	"fmt"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

var slugPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// Config is the root configuration.
type Config struct {
	API         API          `toml:"api" yaml:"api"`
	Log         Log          `toml:"log" yaml:"log"`
	Collections []Collection `toml:"collections" yaml:"collections"`
	Globals     []Global     `toml:"globals" yaml:"globals"`
}

// API locates the content API.
type API struct {
	BaseURL string   `toml:"base_url" yaml:"base_url"`
	Timeout Duration `toml:"timeout" yaml:"timeout"`
}

// Log configures logging output.
type Log struct {
	// Level is a zerolog level name; empty means info.
	Level string `toml:"level" yaml:"level"`
	// Format is "json" or "console".
	Format string `toml:"format" yaml:"format"`
}

// Collection is a multi-document content type.
type Collection struct {
	Slug     string  `toml:"slug" yaml:"slug"`
	Label    string  `toml:"label" yaml:"label"`
	Versions bool    `toml:"versions" yaml:"versions"`
	Fields   []Field `toml:"fields" yaml:"fields"`
}

// Global is a single-document content type.
type Global struct {
	Slug     string  `toml:"slug" yaml:"slug"`
	Label    string  `toml:"label" yaml:"label"`
	Versions bool    `toml:"versions" yaml:"versions"`
	Fields   []Field `toml:"fields" yaml:"fields"`
}

// Field types understood by the form builder.
const (
	TypeText     = "text"
	TypeTextarea = "textarea"
	TypeEmail    = "email"
	TypeNumber   = "number"
	TypeCheckbox = "checkbox"
	TypeSelect   = "select"
	TypeRichText = "richText"
	TypeGroup    = "group"
	TypeArray    = "array"
)

// Field describes one field of a collection or global.
type Field struct {
	Name     string `toml:"name" yaml:"name"`
	Type     string `toml:"type" yaml:"type"`
	Label    string `toml:"label" yaml:"label"`
	Required bool   `toml:"required" yaml:"required"`
	// Localized marks the field as per-locale; the editing runtime
	// carries the flag through to the host UI.
	Localized bool `toml:"localized" yaml:"localized"`

	// Text constraints.
	MinLength int `toml:"min_length" yaml:"min_length"`
	MaxLength int `toml:"max_length" yaml:"max_length"`

	// Select options.
	Options []string `toml:"options" yaml:"options"`

	// Rich text: enabled element and leaf tags; empty means the
	// built-in defaults.
	Elements []string `toml:"elements" yaml:"elements"`
	Leaves   []string `toml:"leaves" yaml:"leaves"`

	// Group and array fields nest.
	Fields []Field `toml:"fields" yaml:"fields"`
}

// Validate checks the whole configuration tree.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.API),
		validation.Field(&c.Log),
	); err != nil {
		return err
	}
	seen := make(map[string]bool)
	for i := range c.Collections {
		col := &c.Collections[i]
		if err := col.Validate(); err != nil {
			return fmt.Errorf("collection %q: %w", col.Slug, err)
		}
		if seen[col.Slug] {
			return fmt.Errorf("collection %q: duplicate slug", col.Slug)
		}
		seen[col.Slug] = true
	}
	seen = make(map[string]bool)
	for i := range c.Globals {
		g := &c.Globals[i]
		if err := g.Validate(); err != nil {
			return fmt.Errorf("global %q: %w", g.Slug, err)
		}
		if seen[g.Slug] {
			return fmt.Errorf("global %q: duplicate slug", g.Slug)
		}
		seen[g.Slug] = true
	}
	return nil
}

// Validate checks the API section.
func (a API) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.BaseURL, validation.Required, is.URL),
		validation.Field(&a.Timeout, validation.Min(Duration(0))),
	)
}

// Validate checks the log section.
func (l Log) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.In("", "trace", "debug", "info", "warn", "error")),
		validation.Field(&l.Format, validation.In("", "json", "console")),
	)
}

// Validate checks one collection.
func (c Collection) Validate() error {
	if err := validation.ValidateStruct(&c,
		validation.Field(&c.Slug, validation.Required, validation.Match(slugPattern)),
	); err != nil {
		return err
	}
	return validateFields(c.Fields)
}

// Validate checks one global.
func (g Global) Validate() error {
	if err := validation.ValidateStruct(&g,
		validation.Field(&g.Slug, validation.Required, validation.Match(slugPattern)),
	); err != nil {
		return err
	}
	return validateFields(g.Fields)
}

func validateFields(fields []Field) error {
	seen := make(map[string]bool)
	for i := range fields {
		f := &fields[i]
		if err := f.Validate(); err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
		if seen[f.Name] {
			return fmt.Errorf("field %q: duplicate name", f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

// Validate checks one field definition.
func (f Field) Validate() error {
	err := validation.ValidateStruct(&f,
		validation.Field(&f.Name, validation.Required, validation.Match(regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`))),
		validation.Field(&f.Type, validation.Required, validation.In(
			TypeText, TypeTextarea, TypeEmail, TypeNumber,
			TypeCheckbox, TypeSelect, TypeRichText, TypeGroup, TypeArray,
		)),
		validation.Field(&f.MinLength, validation.Min(0)),
		validation.Field(&f.MaxLength, validation.Min(0)),
	)
	if err != nil {
		return err
	}
	if f.MaxLength > 0 && f.MinLength > f.MaxLength {
		return fmt.Errorf("min_length %d exceeds max_length %d", f.MinLength, f.MaxLength)
	}
	if f.Type == TypeSelect && len(f.Options) == 0 {
		return fmt.Errorf("select field needs options")
	}
	if (f.Type == TypeGroup || f.Type == TypeArray) && len(f.Fields) == 0 {
		return fmt.Errorf("%s field needs nested fields", f.Type)
	}
	if f.Type != TypeGroup && f.Type != TypeArray && len(f.Fields) > 0 {
		return fmt.Errorf("%s field cannot nest fields", f.Type)
	}
	return validateFields(f.Fields)
}
