package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/evanschultz/sprinter/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default("/tmp/sprinter.db")
	if cfg.Database.Path != "/tmp/sprinter.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Planning.Bounds() != domain.DefaultStoryPointBounds() {
		t.Fatalf("unexpected bounds %#v", cfg.Planning.Bounds())
	}
	if cfg.Capacity.Settings() != domain.DefaultExceptionSettings() {
		t.Fatalf("unexpected capacity settings %#v", cfg.Capacity.Settings())
	}
	interval, err := cfg.Planning.Autosave()
	if err != nil || interval != 30*time.Second {
		t.Fatalf("Autosave() = %v, %v", interval, err)
	}
	if cfg.Import.Enabled() {
		t.Fatal("expected import disabled without url")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	defaults := Default("/tmp/sprinter.db")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"), defaults)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != defaults.Database.Path {
		t.Fatalf("expected default db path, got %q", cfg.Database.Path)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[database]
path = "/custom/sprinter.db"

[logging]
level = "debug"

[planning]
max_story_points = 13
default_priority = "high"
autosave_interval = "0s"

[capacity]
target_sp_per_person = 18
on_call_reduction_sp = 4
suggestion_factor = 0.8

[import]
url = "https://tasks.example.test/list"
timeout = "3s"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(path, Default("/tmp/default.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/custom/sprinter.db" {
		t.Fatalf("unexpected db path %q", cfg.Database.Path)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected log level %q", cfg.Logging.Level)
	}
	if got := cfg.Planning.Bounds(); got.Min != 1 || got.Max != 13 {
		t.Fatalf("unexpected bounds %#v", got)
	}
	if interval, _ := cfg.Planning.Autosave(); interval != 0 {
		t.Fatalf("expected autosave disabled, got %v", interval)
	}
	opts := cfg.Capacity.PlanOptions()
	if opts.Settings.TargetStoryPointsPerPerson != 18 || opts.Settings.OnCallReductionSP != 4 || opts.SuggestionFactor != 0.8 {
		t.Fatalf("unexpected plan options %#v", opts)
	}
	if opts.WorkingDays != 5 {
		t.Fatalf("expected default working days preserved, got %d", opts.WorkingDays)
	}
	if !cfg.Import.Enabled() {
		t.Fatal("expected import enabled")
	}
	if timeout, _ := cfg.Import.TimeoutDuration(); timeout != 3*time.Second {
		t.Fatalf("unexpected import timeout %v", timeout)
	}
	if cfg.Server.APIEndpoint != "/api/v1" {
		t.Fatalf("expected untouched server defaults, got %#v", cfg.Server)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "level", content: "[logging]\nlevel = \"loud\"\n", wantErr: "logging.level"},
		{name: "min story points", content: "[planning]\nmin_story_points = 0\n", wantErr: "min_story_points"},
		{name: "max below min", content: "[planning]\nmin_story_points = 5\nmax_story_points = 3\n", wantErr: "max_story_points"},
		{name: "priority", content: "[planning]\ndefault_priority = \"urgent\"\n", wantErr: "default_priority"},
		{name: "autosave", content: "[planning]\nautosave_interval = \"soon\"\n", wantErr: "autosave_interval"},
		{name: "working days", content: "[capacity]\nsprint_working_days = 0\n", wantErr: "capacity settings"},
		{name: "suggestion factor", content: "[capacity]\nsuggestion_factor = 1.5\n", wantErr: "suggestion_factor"},
		{name: "timeout", content: "[import]\ntimeout = \"-1s\"\n", wantErr: "import.timeout"},
		{name: "syntax", content: "[planning\n", wantErr: "decode toml"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tc.content), 0o644); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}
			_, err := Load(path, Default("/tmp/default.db"))
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Load() error = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestEnsureConfigDir(t *testing.T) {
	target := filepath.Join(t.TempDir(), "a", "b", "config.toml")
	if err := EnsureConfigDir(target); err != nil {
		t.Fatalf("EnsureConfigDir() error = %v", err)
	}
	if _, err := os.Stat(filepath.Dir(target)); err != nil {
		t.Fatalf("expected dir to exist, stat error %v", err)
	}
}

// TestWriteDefaultRoundTrip verifies a written default loads back unchanged and is never overwritten.
func TestWriteDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "config.toml")
	defaults := Default("/tmp/sprinter.db")
	written, err := WriteDefault(path, defaults)
	if err != nil || !written {
		t.Fatalf("WriteDefault() = %v, %v", written, err)
	}
	loaded, err := Load(path, Default("/other.db"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded != defaults {
		t.Fatalf("round trip mismatch\n got %#v\nwant %#v", loaded, defaults)
	}
	written, err = WriteDefault(path, Default("/changed.db"))
	if err != nil || written {
		t.Fatalf("second WriteDefault() = %v, %v", written, err)
	}
}
