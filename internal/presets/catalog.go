// Package presets loads named analysis profiles from embedded defaults
// and an optional override directory.
package presets

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	yaml "gopkg.in/yaml.v3"

	"github.com/deskchess/deskchess/internal/uci"
)

//go:embed presets.yaml
var defaultFiles embed.FS

// DefaultProfile is the profile used when no name is configured.
const DefaultProfile = "default"

// Profile is one engine configuration: how many candidate lines to track,
// how many search threads to allow and an optional hash table size.
type Profile struct {
	MultiPV int `yaml:"multipv"`
	Threads int `yaml:"threads"`
	HashMB  int `yaml:"hash_mb"`
}

// Options converts the profile into session options.
func (p Profile) Options() uci.Options {
	return uci.Options{MultiPV: p.MultiPV, Threads: p.Threads, HashMB: p.HashMB}
}

type fileProfiles struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

// Catalog holds the merged profile set.
type Catalog struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// New loads the embedded default profiles and then applies overrides from
// dir if provided. Override files may redefine embedded names but not
// collide with each other.
func New(overrideDir string) (*Catalog, error) {
	c := &Catalog{profiles: make(map[string]Profile)}
	if err := c.loadEmbedded(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(overrideDir) != "" {
		if err := c.applyDir(overrideDir); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) loadEmbedded() error {
	raw, err := fs.ReadFile(defaultFiles, "presets.yaml")
	if err != nil {
		return fmt.Errorf("read embedded presets: %w", err)
	}
	return c.applyYAML(raw)
}

func (c *Catalog) applyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read preset dir: %w", err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	seen := make(map[string]string) // profile name -> filename
	for _, name := range files {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		var parsed fileProfiles
		if err := yaml.Unmarshal(b, &parsed); err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		for k := range parsed.Profiles {
			if prev, ok := seen[k]; ok {
				return fmt.Errorf("duplicate override profile %q in %s and %s", k, prev, name)
			}
			seen[k] = name
		}
		c.mu.Lock()
		for k, v := range parsed.Profiles {
			c.profiles[k] = v
		}
		c.mu.Unlock()
	}
	return nil
}

func (c *Catalog) applyYAML(b []byte) error {
	var parsed fileProfiles
	if err := yaml.Unmarshal(b, &parsed); err != nil {
		return fmt.Errorf("parse presets: %w", err)
	}
	c.mu.Lock()
	for k, v := range parsed.Profiles {
		c.profiles[k] = v
	}
	c.mu.Unlock()
	return nil
}

// Profile looks up a profile by name.
func (c *Catalog) Profile(name string) (Profile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.profiles[strings.TrimSpace(name)]
	return p, ok
}

// Names returns the sorted profile names.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.profiles))
	for name := range c.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
