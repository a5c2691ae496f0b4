// Package app assembles the editing runtime: it turns the configured
// collection and global schemas into live document sessions with a form
// store, debounced field bindings, rich text editors, and per-document
// preferences.
package app

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/plumecms/plume/internal/api"
	"github.com/plumecms/plume/internal/config"
	"github.com/plumecms/plume/internal/plugin/lua"
	"github.com/plumecms/plume/internal/prefs"
	"github.com/plumecms/plume/internal/richtext/feature"
)

// Session is one admin editing session. It owns the API client, the
// preference cache, and the rich text type registry (builtins plus
// whatever plugins register).
type Session struct {
	ID       string
	Config   *config.Config
	Client   *api.Client
	Prefs    *prefs.Store
	Registry *feature.Registry

	plugins *lua.Engine
	log     zerolog.Logger
}

// NewSession builds a session from a validated configuration.
func NewSession(cfg *config.Config, log zerolog.Logger) *Session {
	client := api.NewClient(
		cfg.API.BaseURL,
		&http.Client{Timeout: cfg.API.Timeout.Std()},
		log,
	)
	return &Session{
		ID:       uuid.NewString(),
		Config:   cfg,
		Client:   client,
		Prefs:    prefs.NewStore(client, log),
		Registry: feature.Defaults(),
		log:      log,
	}
}

// LoadPlugins runs rich text extension scripts against the session
// registry. The first failing script aborts the load.
func (s *Session) LoadPlugins(paths ...string) error {
	if s.plugins == nil {
		s.plugins = lua.NewEngine(s.Registry, s.log)
	}
	for _, p := range paths {
		if err := s.plugins.LoadFile(p); err != nil {
			return fmt.Errorf("session: %w", err)
		}
	}
	return nil
}

// LoadPluginScript runs one plugin from source, for embedded or tested
// plugins.
func (s *Session) LoadPluginScript(name, src string) error {
	if s.plugins == nil {
		s.plugins = lua.NewEngine(s.Registry, s.log)
	}
	return s.plugins.LoadScript(name, src)
}

// Close releases session resources. Open document sessions must be
// closed first; their editors may hold plugin render functions.
func (s *Session) Close() {
	if s.plugins != nil {
		s.plugins.Close()
		s.plugins = nil
	}
}
