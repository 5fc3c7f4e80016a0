// Package manifest handles lenschain.toml configuration and the pass
// plans it points to.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the configuration file.
const FileName = "lenschain.toml"

// DefaultArrayCacheSize is the array-type memo size per lens when the
// configuration does not set one.
const DefaultArrayCacheSize = 1024

// Manifest represents a lenschain.toml configuration.
type Manifest struct {
	Project Project       `toml:"project"`
	Lens    LensConfig    `toml:"lens"`
	Rewrite RewriteConfig `toml:"rewrite"`
	Log     LogConfig     `toml:"log"`

	// Dir is the directory containing the lenschain.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name string `toml:"name"`
	// Plan is the pass plan, relative to Dir.
	Plan string `toml:"plan"`
	// Snapshot is where the naming snapshot is written, relative to Dir.
	// Empty means no snapshot.
	Snapshot string `toml:"snapshot"`
}

// LensConfig configures the lens chain.
type LensConfig struct {
	Verify         bool `toml:"verify"`
	ArrayCacheSize int  `toml:"array-cache-size"`
	FlattenDepth   int  `toml:"flatten-depth"`
}

// RewriteConfig configures code rewriting.
type RewriteConfig struct {
	// Workers bounds the goroutines rewriting method bodies; zero means
	// GOMAXPROCS.
	Workers int `toml:"workers"`
}

// LogConfig configures logging.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Load parses a lenschain.toml file from the given directory.
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
		return nil, fmt.Errorf("parse error in %s: unknown key %s", path, undecoded[0])
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	// Defaults
	if m.Project.Plan == "" {
		m.Project.Plan = "plan.toml"
	}
	if !md.IsDefined("lens", "array-cache-size") {
		m.Lens.ArrayCacheSize = DefaultArrayCacheSize
	}
	if !md.IsDefined("log", "verbosity") {
		m.Log.Verbosity = 1
	}
	if m.Lens.ArrayCacheSize < 0 || m.Lens.FlattenDepth < 0 || m.Rewrite.Workers < 0 {
		return nil, fmt.Errorf("invalid %s: sizes and counts must not be negative", path)
	}

	return &m, nil
}

// FindAndLoad walks up from startDir to find a lenschain.toml file,
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

// PlanPath returns the absolute path of the pass plan.
func (m *Manifest) PlanPath() string {
	return m.resolve(m.Project.Plan)
}

// SnapshotPath returns the absolute path of the naming snapshot, or "" when
// none is configured.
func (m *Manifest) SnapshotPath() string {
	if m.Project.Snapshot == "" {
		return ""
	}
	return m.resolve(m.Project.Snapshot)
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
