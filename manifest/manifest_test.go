package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadManifest(t *testing.T) {
	// Create a temporary directory with a plc0.toml
	dir := t.TempDir()
	tomlContent := `
[build]
format = "cbor"
output-dir = "out"

[run]
trace = true

[log]
verbosity = 2
file = "plc0.log"

[cache]
enabled = false
path = "/tmp/plc0.db"
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Build.Format != FormatCBOR {
		t.Errorf("build format = %q, want cbor", m.Build.Format)
	}
	if m.OutputDir() != filepath.Join(m.Dir, "out") {
		t.Errorf("output dir = %q, want %q", m.OutputDir(), filepath.Join(m.Dir, "out"))
	}
	if !m.Run.Trace {
		t.Error("run trace = false, want true")
	}
	if m.Log.Verbosity != 2 {
		t.Errorf("log verbosity = %d, want 2", m.Log.Verbosity)
	}
	if m.LogFile() != filepath.Join(m.Dir, "plc0.log") {
		t.Errorf("log file = %q", m.LogFile())
	}
	if m.Cache.Enabled {
		t.Error("cache enabled = true, want false")
	}
	if m.CachePath() != "/tmp/plc0.db" {
		t.Errorf("cache path = %q, want /tmp/plc0.db", m.CachePath())
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("[run]\ntrace = false\n"), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Build.Format != FormatText {
		t.Errorf("default format = %q, want text", m.Build.Format)
	}
	if m.OutputDir() != "" {
		t.Errorf("default output dir = %q, want empty", m.OutputDir())
	}
	if !m.Cache.Enabled {
		t.Error("cache should be enabled by default")
	}
	if m.CachePath() != filepath.Join(m.Dir, ".plc0", "cache.db") {
		t.Errorf("default cache path = %q", m.CachePath())
	}
	if m.LogFile() != "" {
		t.Errorf("default log file = %q, want empty", m.LogFile())
	}
}

func TestLoadManifestInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown format", "[build]\nformat = \"json\"\n", "build.format"},
		{"negative verbosity", "[log]\nverbosity = -1\n", "log.verbosity"},
		{"syntax", "[build\n", "parse error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(dir)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load error = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestFindAndLoad(t *testing.T) {
	// Create nested directory structure
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}

	tomlContent := `[build]
format = "cbor"
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(tomlContent), 0644); err != nil {
		t.Fatal(err)
	}

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Build.Format != FormatCBOR {
		t.Errorf("build format = %q, want cbor", m.Build.Format)
	}
	abs, _ := filepath.Abs(dir)
	if m.Dir != abs {
		t.Errorf("Dir = %q, want %q", m.Dir, abs)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no plc0.toml exists")
	}
}

func TestWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()

	m := Default()
	m.Build.OutputDir = "build"
	m.Log.Verbosity = 1
	if err := Write(dir, m); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Build != m.Build || loaded.Run != m.Run || loaded.Log != m.Log || loaded.Cache != m.Cache {
		t.Errorf("loaded = %+v, want %+v", loaded, m)
	}

	// Existing files are left alone
	if err := Write(dir, m); err == nil {
		t.Error("second Write should fail")
	}
}
