package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plume.toml")
	if err := os.WriteFile(path, []byte("[api]\nbase_url = \"https://one.example.com\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Config, 4)
	w, err := Watch(path, 20*time.Millisecond, func(cfg *Config) {
		reloaded <- cfg
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Watch() failed: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("[api]\nbase_url = \"https://two.example.com\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.API.BaseURL != "https://two.example.com" {
			t.Errorf("reloaded BaseURL = %q", cfg.API.BaseURL)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload after write")
	}
}

func TestWatch_InvalidReloadKeepsPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plume.toml")
	if err := os.WriteFile(path, []byte("[api]\nbase_url = \"https://one.example.com\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	reloaded := make(chan *Config, 4)
	w, err := Watch(path, 20*time.Millisecond, func(cfg *Config) {
		reloaded <- cfg
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Watch() failed: %v", err)
	}
	defer w.Close()

	// Broken TOML must not reach the callback.
	if err := os.WriteFile(path, []byte("[api\nnope"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-reloaded:
		t.Fatal("broken config delivered to callback")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatch_CloseStopsLoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plume.toml")
	if err := os.WriteFile(path, []byte("[api]\nbase_url = \"https://one.example.com\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := Watch(path, 20*time.Millisecond, func(*Config) {}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Watch() failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
	// Second close of the underlying watcher channel must not hang.
	done := make(chan struct{})
	go func() { w.Close(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("double Close() hung")
	}
}
