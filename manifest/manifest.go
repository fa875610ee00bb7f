// Package manifest handles plc0.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the configuration file.
const FileName = "plc0.toml"

// Artifact formats accepted in [build] format.
const (
	FormatText = "text"
	FormatCBOR = "cbor"
)

// Manifest represents a plc0.toml project configuration.
type Manifest struct {
	Build BuildConfig `toml:"build"`
	Run   RunConfig   `toml:"run"`
	Log   LogConfig   `toml:"log"`
	Cache CacheConfig `toml:"cache"`

	// Dir is the directory containing the plc0.toml file (set at load time).
	Dir string `toml:"-"`
}

// BuildConfig configures artifact output.
type BuildConfig struct {
	Format    string `toml:"format"`
	OutputDir string `toml:"output-dir"`
}

// RunConfig configures execution.
type RunConfig struct {
	Trace bool `toml:"trace"`
}

// LogConfig configures logging.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// CacheConfig configures the compiled-artifact cache.
type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Default returns the configuration used when no plc0.toml exists.
func Default() *Manifest {
	m := &Manifest{
		Cache: CacheConfig{Enabled: true},
	}
	m.applyDefaults()
	if wd, err := os.Getwd(); err == nil {
		m.Dir = wd
	}
	return m
}

func (m *Manifest) applyDefaults() {
	if m.Build.Format == "" {
		m.Build.Format = FormatText
	}
	if m.Cache.Path == "" {
		m.Cache.Path = filepath.Join(".plc0", "cache.db")
	}
}

// Load parses a plc0.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m := Manifest{Cache: CacheConfig{Enabled: true}}
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a plc0.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Write stores m as dir/plc0.toml. An existing file is not overwritten.
func Write(dir string, m *Manifest) error {
	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", path, err)
	}
	if err := toml.NewEncoder(f).Encode(m); err != nil {
		f.Close()
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	return f.Close()
}

// Validate checks field values.
func (m *Manifest) Validate() error {
	switch m.Build.Format {
	case FormatText, FormatCBOR:
	default:
		return fmt.Errorf("build.format: unknown format %q (want %q or %q)", m.Build.Format, FormatText, FormatCBOR)
	}
	if m.Log.Verbosity < 0 {
		return fmt.Errorf("log.verbosity: must not be negative, got %d", m.Log.Verbosity)
	}
	return nil
}

// OutputDir returns the absolute artifact output directory. An empty
// value means next to each source file and yields "".
func (m *Manifest) OutputDir() string {
	return m.resolve(m.Build.OutputDir)
}

// CachePath returns the absolute path of the cache database.
func (m *Manifest) CachePath() string {
	return m.resolve(m.Cache.Path)
}

// LogFile returns the absolute log file path, or "" for stderr.
func (m *Manifest) LogFile() string {
	return m.resolve(m.Log.File)
}

func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
