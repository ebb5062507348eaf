// Package registry reads the package index that backs registry-origin
// references.
//
// The index is a YAML file:
//
//	packages:
//	  - name: com.example.tools
//	    url: https://example.com/org/tools.git
//	    tag_prefix: v
//	    versions:
//	      - version: 2.1.0
//	        engine: ">=2022.3"
//	      - version: 3.0.0
//	        engine: ">=2023.1"
//
// A version without an engine constraint is compatible with every engine.
package registry

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/sahilm/fuzzy"
	"gopkg.in/yaml.v3"
)

// ErrUnknownPackage is returned when a name is not listed in the index.
var ErrUnknownPackage = errors.New("package not found in registry")

// Index is a parsed registry index.
type Index struct {
	Packages []Entry `yaml:"packages"`
}

// Entry is one package listed in the index.
type Entry struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description,omitempty"`
	URL         string    `yaml:"url"`
	TagPrefix   string    `yaml:"tag_prefix,omitempty"`
	Versions    []Version `yaml:"versions"`
}

// Version is one published version of an entry.
type Version struct {
	Version string `yaml:"version"`
	Engine  string `yaml:"engine,omitempty"`
}

// Load reads the index at path. A missing file yields an empty index.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Index{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read registry index: %w", err)
	}
	return Parse(data)
}

// Parse decodes an index and validates every entry.
func Parse(data []byte) (*Index, error) {
	var idx Index
	if err := yaml.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("failed to parse registry index: %w", err)
	}

	for i, e := range idx.Packages {
		if strings.TrimSpace(e.Name) == "" {
			return nil, fmt.Errorf("registry entry %d: missing name", i)
		}
		if strings.TrimSpace(e.URL) == "" {
			return nil, fmt.Errorf("registry entry %s: missing url", e.Name)
		}
		for _, v := range e.Versions {
			if _, err := semver.NewVersion(v.Version); err != nil {
				return nil, fmt.Errorf("registry entry %s: invalid version %q: %w", e.Name, v.Version, err)
			}
			if v.Engine != "" {
				if _, err := semver.NewConstraint(v.Engine); err != nil {
					return nil, fmt.Errorf("registry entry %s: invalid engine constraint %q: %w", e.Name, v.Engine, err)
				}
			}
		}
	}

	return &idx, nil
}

// Find returns the entry whose name matches case-insensitively.
func (idx *Index) Find(name string) (*Entry, error) {
	for i := range idx.Packages {
		if strings.EqualFold(idx.Packages[i].Name, name) {
			return &idx.Packages[i], nil
		}
	}
	return nil, fmt.Errorf("%s: %w", name, ErrUnknownPackage)
}

// Search returns the entries matching query. An exact name match comes first,
// followed by fuzzy matches ranked by score.
func (idx *Index) Search(query string) []Entry {
	query = strings.TrimSpace(query)
	if query == "" {
		return append([]Entry(nil), idx.Packages...)
	}

	var out []Entry
	exact := -1
	if e, err := idx.Find(query); err == nil {
		out = append(out, *e)
		exact = indexOf(idx.Packages, e.Name)
	}

	for _, m := range fuzzy.FindFrom(strings.ToLower(query), names(idx.Packages)) {
		if m.Index == exact {
			continue
		}
		out = append(out, idx.Packages[m.Index])
	}
	return out
}

// names adapts entry names to fuzzy.Source.
type names []Entry

func (n names) String(i int) string { return strings.ToLower(n[i].Name) }
func (n names) Len() int            { return len(n) }

func indexOf(entries []Entry, name string) int {
	for i, e := range entries {
		if e.Name == name {
			return i
		}
	}
	return -1
}

// All returns every published version, highest first.
func (e *Entry) All() []string {
	vs := e.parsed()
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Original()
	}
	return out
}

// Latest returns the highest published version, or "" when none is published.
func (e *Entry) Latest() string {
	vs := e.parsed()
	if len(vs) == 0 {
		return ""
	}
	return vs[0].Original()
}

// LatestCompatible returns the highest version whose engine constraint
// accepts engine. An empty or unparsable engine accepts only unconstrained
// versions.
func (e *Entry) LatestCompatible(engine string) string {
	ev, engineErr := semver.NewVersion(engine)

	var best *semver.Version
	for _, v := range e.Versions {
		pv, err := semver.NewVersion(v.Version)
		if err != nil {
			continue
		}
		if v.Engine != "" {
			if engineErr != nil {
				continue
			}
			c, err := semver.NewConstraint(v.Engine)
			if err != nil || !c.Check(ev) {
				continue
			}
		}
		if best == nil || pv.GreaterThan(best) {
			best = pv
		}
	}

	if best == nil {
		return ""
	}
	return best.Original()
}

// Resolve returns the clone URL and tag for version. An empty version
// resolves to the latest published one.
func (e *Entry) Resolve(version string) (url, tag string, err error) {
	if version == "" {
		version = e.Latest()
		if version == "" {
			return "", "", fmt.Errorf("%s has no published versions", e.Name)
		}
	}

	want, err := semver.NewVersion(version)
	if err != nil {
		return "", "", fmt.Errorf("invalid version %q for %s: %w", version, e.Name, err)
	}
	for _, v := range e.parsed() {
		if v.Equal(want) {
			return e.URL, e.TagPrefix + v.Original(), nil
		}
	}
	return "", "", fmt.Errorf("%s@%s: %w", e.Name, version, ErrUnknownPackage)
}

// parsed returns the valid versions sorted highest first.
func (e *Entry) parsed() []*semver.Version {
	vs := make([]*semver.Version, 0, len(e.Versions))
	for _, v := range e.Versions {
		pv, err := semver.NewVersion(v.Version)
		if err != nil {
			continue
		}
		vs = append(vs, pv)
	}
	sort.Sort(sort.Reverse(semver.Collection(vs)))
	return vs
}
