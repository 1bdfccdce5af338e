package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonasBoss/key-mapper/internal/app"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "no-such-file.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	if cfg.LogLevel != want.LogLevel || cfg.MacroPacingMs != want.MacroPacingMs {
		t.Errorf("got %+v, want defaults %+v", cfg, want)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
log_level = "debug"
preset_dir = "/tmp/presets"
active_preset = "gaming"
macro_pacing_ms = 5

[[device]]
name = "foo keyboard"
preset = "typing"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.MacroPacingMs != 5 {
		t.Errorf("MacroPacingMs = %d, want 5", cfg.MacroPacingMs)
	}
	if got := cfg.PresetFor("foo keyboard"); got != "typing" {
		t.Errorf("PresetFor(foo keyboard) = %q, want typing", got)
	}
	if got := cfg.PresetFor("other"); got != "gaming" {
		t.Errorf("PresetFor(other) = %q, want the active preset", got)
	}
	if got := cfg.PresetPath("gaming"); got != "/tmp/presets/gaming.toml" {
		t.Errorf("PresetPath = %q", got)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("KEYMAPPER_LOG_LEVEL", "error")
	t.Setenv("KEYMAPPER_ACTIVE_PRESET", "travel")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q, want the env override", cfg.LogLevel)
	}
	if cfg.ActivePreset != "travel" {
		t.Errorf("ActivePreset = %q, want the env override", cfg.ActivePreset)
	}
}

func TestPresetWatcher(t *testing.T) {
	dir := t.TempDir()

	changed := make(chan string, 8)
	w, err := NewPresetWatcher(dir, func(path string) { changed <- path }, app.NopLogger())
	if err != nil {
		t.Fatalf("NewPresetWatcher: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	path := filepath.Join(dir, "gaming.toml")
	if err := os.WriteFile(path, []byte("name = \"gaming\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changed:
		if got != path {
			t.Errorf("handler got %q, want %q", got, path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the change notification")
	}

	// a non-preset file never triggers
	other := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(other, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-changed:
		t.Errorf("handler fired for %q", got)
	case <-time.After(300 * time.Millisecond):
	}
}
