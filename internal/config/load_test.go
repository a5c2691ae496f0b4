package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const tomlConfig = `
[api]
base_url = "https://cms.example.com/api"
timeout = "5s"

[log]
level = "debug"
format = "console"

[[collections]]
slug = "posts"
label = "Posts"
versions = true

[[collections.fields]]
name = "title"
type = "text"
required = true
min_length = 3

[[collections.fields]]
name = "body"
type = "richText"
elements = ["h2", "p", "ul", "li"]
leaves = ["bold", "italic"]

[[globals]]
slug = "settings"

[[globals.fields]]
name = "siteName"
type = "text"
required = true
`

const yamlConfig = `
api:
  base_url: https://cms.example.com/api
  timeout: 5s
log:
  level: debug
collections:
  - slug: posts
    versions: true
    fields:
      - name: title
        type: text
        required: true
globals:
  - slug: settings
    fields:
      - name: siteName
        type: text
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_TOML(t *testing.T) {
	cfg, err := Load(writeFile(t, "plume.toml", tomlConfig))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.API.BaseURL != "https://cms.example.com/api" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout.Std() != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.API.Timeout.Std())
	}
	posts, ok := cfg.Collection("posts")
	if !ok || !posts.Versions || len(posts.Fields) != 2 {
		t.Fatalf("Collection(posts) = %+v, %v", posts, ok)
	}
	body := posts.Fields[1]
	if body.Type != TypeRichText || len(body.Elements) != 4 || body.Leaves[0] != "bold" {
		t.Errorf("richText field = %+v", body)
	}
	if _, ok := cfg.Global("settings"); !ok {
		t.Error("Global(settings) missing")
	}
	if _, ok := cfg.Collection("nope"); ok {
		t.Error("Collection(nope) found")
	}
}

func TestLoad_YAML(t *testing.T) {
	cfg, err := Load(writeFile(t, "plume.yaml", yamlConfig))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.API.Timeout.Std() != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.API.Timeout.Std())
	}
	if len(cfg.Collections) != 1 || cfg.Collections[0].Slug != "posts" {
		t.Errorf("Collections = %+v", cfg.Collections)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("PLUME_API_URL", "https://env.example.com")
	cfg, err := Parse([]byte(`
api:
  base_url: ${PLUME_API_URL}
`), ".yaml")
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if cfg.API.BaseURL != "https://env.example.com" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("[api]\nbase_url = \"https://x.example.com\"\n"), ".toml")
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	if cfg.API.Timeout.Std() != DefaultTimeout {
		t.Errorf("default timeout = %v", cfg.API.Timeout.Std())
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("log defaults = %+v", cfg.Log)
	}
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	if _, err := Parse([]byte("{}"), ".ini"); err == nil {
		t.Error("unsupported extension accepted")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "missing base url",
			cfg:  Config{},
			want: "base_url",
		},
		{
			name: "bad slug",
			cfg: Config{
				API:         API{BaseURL: "https://x.example.com"},
				Collections: []Collection{{Slug: "Bad Slug"}},
			},
			want: "slug",
		},
		{
			name: "duplicate collection slug",
			cfg: Config{
				API:         API{BaseURL: "https://x.example.com"},
				Collections: []Collection{{Slug: "posts"}, {Slug: "posts"}},
			},
			want: "duplicate",
		},
		{
			name: "unknown field type",
			cfg: Config{
				API: API{BaseURL: "https://x.example.com"},
				Collections: []Collection{{
					Slug:   "posts",
					Fields: []Field{{Name: "x", Type: "blob"}},
				}},
			},
			want: "x",
		},
		{
			name: "select without options",
			cfg: Config{
				API: API{BaseURL: "https://x.example.com"},
				Collections: []Collection{{
					Slug:   "posts",
					Fields: []Field{{Name: "x", Type: TypeSelect}},
				}},
			},
			want: "options",
		},
		{
			name: "group without nested fields",
			cfg: Config{
				API: API{BaseURL: "https://x.example.com"},
				Globals: []Global{{
					Slug:   "settings",
					Fields: []Field{{Name: "meta", Type: TypeGroup}},
				}},
			},
			want: "nested",
		},
		{
			name: "min exceeds max",
			cfg: Config{
				API: API{BaseURL: "https://x.example.com"},
				Collections: []Collection{{
					Slug:   "posts",
					Fields: []Field{{Name: "x", Type: TypeText, MinLength: 9, MaxLength: 3}},
				}},
			},
			want: "min_length",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if err == nil {
				t.Fatal("Validate() accepted a bad config")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %q, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestValidate_NestedGroupFields(t *testing.T) {
	cfg := Config{
		API: API{BaseURL: "https://x.example.com"},
		Collections: []Collection{{
			Slug: "posts",
			Fields: []Field{{
				Name: "meta",
				Type: TypeGroup,
				Fields: []Field{
					{Name: "description", Type: TypeTextarea},
					{Name: "keywords", Type: "bogus"},
				},
			}},
		}},
	}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "keywords") {
		t.Errorf("nested field error = %v", err)
	}
}
