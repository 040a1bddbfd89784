package manifest

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// FileEntry declares one file's membership in a layer.
type FileEntry struct {
	Path     string `yaml:"path"`
	Kind     string `yaml:"kind"`
	Critical bool   `yaml:"critical"`
}

// Layer is a named grouping of files contributing one aggregate hash.
type Layer struct {
	Name  string      `yaml:"name"`
	Files []FileEntry `yaml:"files"`
}

// Config is the operator-authored layer configuration. It is the single
// source of truth for which files are fingerprinted, under which kind, in
// which layers, and with what criticality.
type Config struct {
	Layers []Layer `yaml:"layers"`
}

// ParseConfig parses and validates a YAML layer configuration.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("layer config: %w", err)
	}
	if len(cfg.Layers) == 0 {
		return nil, fmt.Errorf("layer config: no layers declared")
	}
	seen := map[string]bool{}
	for _, l := range cfg.Layers {
		if l.Name == "" {
			return nil, fmt.Errorf("layer config: layer with empty name")
		}
		if seen[l.Name] {
			return nil, fmt.Errorf("layer config: duplicate layer %q", l.Name)
		}
		seen[l.Name] = true
		if len(l.Files) == 0 {
			return nil, fmt.Errorf("layer config: layer %q has no files", l.Name)
		}
		paths := map[string]bool{}
		for _, f := range l.Files {
			if f.Path == "" {
				return nil, fmt.Errorf("layer config: layer %q has a file with empty path", l.Name)
			}
			if paths[f.Path] {
				return nil, fmt.Errorf("layer config: layer %q lists %q twice", l.Name, f.Path)
			}
			paths[f.Path] = true
		}
	}
	return &cfg, nil
}

// LoadConfig reads and parses a layer configuration file.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(b)
}

// FileSpec is the merged, layer-independent view of one configured file.
// Critical is true if any layer declares the file critical.
type FileSpec struct {
	Path     string
	Kind     string
	Layers   []string
	Critical bool
}

// Files merges all layer entries into per-path specs, sorted by path.
// Conflicting kind declarations for the same path are an error.
func (c *Config) Files() ([]FileSpec, error) {
	byPath := map[string]*FileSpec{}
	for _, l := range c.Layers {
		for _, f := range l.Files {
			spec, ok := byPath[f.Path]
			if !ok {
				spec = &FileSpec{Path: f.Path, Kind: f.Kind}
				byPath[f.Path] = spec
			} else if spec.Kind != f.Kind {
				return nil, fmt.Errorf("layer config: %q declared with kinds %q and %q", f.Path, spec.Kind, f.Kind)
			}
			spec.Layers = append(spec.Layers, l.Name)
			if f.Critical {
				spec.Critical = true
			}
		}
	}
	out := make([]FileSpec, 0, len(byPath))
	for _, s := range byPath {
		sort.Strings(s.Layers)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
