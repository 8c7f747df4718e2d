// Package manifest handles lox.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the manifest file looked for in a project directory.
const FileName = "lox.toml"

// Defaults applied to settings a manifest leaves out.
const (
	DefaultStackSize   = 128
	DefaultPrompt      = "> "
	DefaultExitCommand = ":q"
	DefaultCachePath   = ".lox/cache.db"
)

// Manifest represents a lox.toml project configuration.
type Manifest struct {
	Project Project     `toml:"project"`
	Source  Source      `toml:"source"`
	VM      VMConfig    `toml:"vm"`
	REPL    REPLConfig  `toml:"repl"`
	Cache   CacheConfig `toml:"cache"`

	// Dir is the directory containing the lox.toml file (set at load time).
	// Empty for the built-in defaults.
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures which script runs when none is given.
type Source struct {
	Entry string `toml:"entry"`
}

// VMConfig configures the virtual machine.
type VMConfig struct {
	StackSize int  `toml:"stack-size"`
	Trace     bool `toml:"trace"`
}

// REPLConfig configures the interactive prompt.
type REPLConfig struct {
	Prompt      string `toml:"prompt"`
	ExitCommand string `toml:"exit-command"`
}

// CacheConfig configures the compiled-chunk cache.
type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Default returns the configuration used when no lox.toml exists. The
// cache then lives in the user cache directory, or is off if there is none.
func Default() *Manifest {
	m := &Manifest{}
	if dir, err := os.UserCacheDir(); err == nil {
		m.Cache.Path = filepath.Join(dir, "lox", "cache.db")
	}
	m.applyDefaults(toml.MetaData{})
	if m.Cache.Path == DefaultCachePath {
		m.Cache.Enabled = false
	}
	return m
}

// Load parses a lox.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %q in %s", undecoded[0].String(), path)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults(md)
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a lox.toml file, then loads
// and returns the manifest. Returns nil if no manifest is found.
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

// applyDefaults fills unset fields. The cache is on unless the manifest
// turns it off explicitly.
func (m *Manifest) applyDefaults(md toml.MetaData) {
	if m.VM.StackSize == 0 {
		m.VM.StackSize = DefaultStackSize
	}
	if m.REPL.Prompt == "" {
		m.REPL.Prompt = DefaultPrompt
	}
	if m.REPL.ExitCommand == "" {
		m.REPL.ExitCommand = DefaultExitCommand
	}
	if m.Cache.Path == "" {
		m.Cache.Path = DefaultCachePath
	}
	if !md.IsDefined("cache", "enabled") {
		m.Cache.Enabled = true
	}
}

// Validate checks settings that have no sensible fallback.
func (m *Manifest) Validate() error {
	if m.VM.StackSize < 0 {
		return fmt.Errorf("vm.stack-size must be positive, got %d", m.VM.StackSize)
	}
	return nil
}

// EntryPath returns the absolute path of the entry script, or "" if none
// is configured.
func (m *Manifest) EntryPath() string {
	if m.Source.Entry == "" {
		return ""
	}
	return m.resolve(m.Source.Entry)
}

// CachePath returns the location of the chunk cache database.
func (m *Manifest) CachePath() string {
	return m.resolve(m.Cache.Path)
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}
