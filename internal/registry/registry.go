// Package registry holds the list of feeds the pipeline ingests from.
//
// The list is fixed for the lifetime of the process: either the built-in
// defaults or a TOML/YAML file handed over at startup.
package registry

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/jdholdren/newsroom/internal/newsroom"
)

//go:embed defaults.toml
var defaultsFile []byte

// Registry is an immutable, priority-ordered set of sources.
type Registry struct {
	sources []newsroom.FeedSource
}

type file struct {
	Feeds []newsroom.FeedSource `toml:"feeds" yaml:"feeds"`
}

// Default returns the built-in list of sources.
func Default() Registry {
	var f file
	if _, err := toml.Decode(string(defaultsFile), &f); err != nil {
		panic(fmt.Sprintf("built-in registry is invalid: %s", err))
	}
	r, err := New(f.Feeds)
	if err != nil {
		panic(fmt.Sprintf("built-in registry is invalid: %s", err))
	}

	return r
}

// Load reads a registry file, picking the decoder from its extension.
//
// An empty path yields the defaults.
func Load(path string) (Registry, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Registry{}, fmt.Errorf("error reading registry file: %w", err)
	}

	var f file
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if err := toml.Unmarshal(data, &f); err != nil {
			return Registry{}, fmt.Errorf("error parsing registry file: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return Registry{}, fmt.Errorf("error parsing registry file: %w", err)
		}
	default:
		return Registry{}, fmt.Errorf("unsupported registry file extension %q", ext)
	}

	return New(f.Feeds)
}

// New validates the sources and orders them by priority.
func New(sources []newsroom.FeedSource) (Registry, error) {
	seen := make(map[string]struct{}, len(sources))
	out := make([]newsroom.FeedSource, 0, len(sources))
	for i, src := range sources {
		src.Name = strings.TrimSpace(src.Name)
		src.URL = strings.TrimSpace(src.URL)
		if src.Priority == "" {
			src.Priority = newsroom.PriorityMedium
		}
		if src.Category == "" {
			src.Category = "General"
		}

		if src.Name == "" {
			return Registry{}, fmt.Errorf("feed %d: name is required", i)
		}
		u, err := url.Parse(src.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return Registry{}, fmt.Errorf("feed %q: url must be an absolute http(s) url", src.Name)
		}
		if !src.Priority.Valid() {
			return Registry{}, fmt.Errorf("feed %q: unknown priority %q", src.Name, src.Priority)
		}
		if _, ok := seen[src.Name]; ok {
			return Registry{}, fmt.Errorf("feed %q: duplicate name", src.Name)
		}
		seen[src.Name] = struct{}{}

		out = append(out, src)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority.Rank() < out[j].Priority.Rank()
	})

	return Registry{sources: out}, nil
}

// Sources returns a copy of the sources, high priority first.
func (r Registry) Sources() []newsroom.FeedSource {
	out := make([]newsroom.FeedSource, len(r.sources))
	copy(out, r.sources)
	return out
}

func (r Registry) Len() int {
	return len(r.sources)
}
