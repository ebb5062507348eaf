package upm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blackwell-systems/gitpm/internal/log"
	"github.com/blackwell-systems/gitpm/internal/manifest"
	"github.com/blackwell-systems/gitpm/internal/registry"
	"github.com/blackwell-systems/gitpm/internal/source"
	"github.com/blackwell-systems/gitpm/internal/store"
)

// DefaultOperationTimeout bounds a single clone or checkout.
const DefaultOperationTimeout = 5 * time.Minute

// LocalOptions configures a LocalClient.
type LocalOptions struct {
	// PackagesDir receives one directory per installed package.
	PackagesDir string
	Store       *store.Store
	Registry    *registry.Index
	// EngineVersion selects Versions.LatestCompatible for registry packages.
	EngineVersion string
	Git           Git
	Timeout       time.Duration
}

// LocalClient installs packages into a directory on disk and keeps an index
// of them in sqlite. Git references are cloned, registry references are
// resolved to a git URL and tag through the registry index, and local paths
// are indexed in place.
type LocalClient struct {
	mu sync.Mutex

	dir      string
	store    *store.Store
	registry *registry.Index
	engine   string
	git      Git
	timeout  time.Duration
}

// NewLocalClient returns a LocalClient. A nil Git selects ExecGit and a nil
// Registry an empty index.
func NewLocalClient(opts LocalOptions) *LocalClient {
	c := &LocalClient{
		dir:      opts.PackagesDir,
		store:    opts.Store,
		registry: opts.Registry,
		engine:   opts.EngineVersion,
		git:      opts.Git,
		timeout:  opts.Timeout,
	}
	if c.git == nil {
		c.git = ExecGit{}
	}
	if c.registry == nil {
		c.registry = &registry.Index{}
	}
	if c.timeout <= 0 {
		c.timeout = DefaultOperationTimeout
	}
	return c
}

// List implements Client. With refresh set, index rows whose directory no
// longer exists are pruned first.
func (c *LocalClient) List(refresh bool) *Request[[]Package] {
	return Go(func() ([]Package, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.list(refresh)
	})
}

// Add implements Client.
func (c *LocalClient) Add(ref string) *Request[Package] {
	return Go(func() (Package, error) {
		c.mu.Lock()
		defer c.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		return c.add(ctx, ref)
	})
}

// Remove implements Client. It returns the name of the removed package.
func (c *LocalClient) Remove(idOrName string) *Request[string] {
	return Go(func() (string, error) {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.remove(idOrName)
	})
}

// Search implements Client using the registry index.
func (c *LocalClient) Search(name string) *Request[[]Package] {
	return Go(func() ([]Package, error) {
		entries := c.registry.Search(name)
		out := make([]Package, 0, len(entries))
		for i := range entries {
			e := &entries[i]
			versions := c.versions(e)
			out = append(out, Package{
				Name:      e.Name,
				Version:   versions.Latest,
				Origin:    OriginRegistry,
				PackageID: e.Name + "@" + versions.Latest,
				Versions:  versions,
			})
		}
		return out, nil
	})
}

func (c *LocalClient) list(refresh bool) ([]Package, error) {
	rows, err := c.store.ListPackages()
	if err != nil {
		return nil, err
	}

	out := make([]Package, 0, len(rows))
	for _, row := range rows {
		if refresh {
			if _, err := os.Stat(row.ResolvedPath); errors.Is(err, os.ErrNotExist) {
				log.Info("pruning %s: %s no longer exists", row.Name, row.ResolvedPath)
				if err := c.store.DeletePackage(row.Name); err != nil {
					return nil, err
				}
				continue
			}
		}
		out = append(out, c.toPackage(row))
	}
	return out, nil
}

func (c *LocalClient) add(ctx context.Context, ref string) (Package, error) {
	spec := source.Parse(ref)
	if spec.Raw == "" {
		return Package{}, errors.New("empty package reference")
	}

	switch spec.Kind {
	case source.KindGit:
		ref := spec.Ref
		if ref == "" {
			// A bare URL reinstalls whatever branch or tag the package tracks.
			if prev := c.installedFrom(spec.URL); prev != nil {
				ref = prev.Ref
			}
		}
		return c.install(ctx, cloneURL(spec.URL), spec.URL, ref, "", OriginGit)

	case source.KindRegistry:
		entry, err := c.registry.Find(spec.Name)
		if err != nil {
			return Package{}, err
		}
		url, tag, err := entry.Resolve(spec.Ref)
		if err != nil {
			return Package{}, err
		}
		return c.install(ctx, cloneURL(url), url, tag, entry.Name, OriginRegistry)

	default:
		return c.addLocal(spec)
	}
}

// install clones url at ref and indexes the result. When wantName is set the
// descriptor must declare that name.
func (c *LocalClient) install(ctx context.Context, url, sourceRef, ref, wantName string, origin Origin) (Package, error) {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return Package{}, fmt.Errorf("failed to create packages directory: %w", err)
	}

	tmp, err := os.MkdirTemp(c.dir, ".clone-")
	if err != nil {
		return Package{}, fmt.Errorf("failed to create clone directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	work := filepath.Join(tmp, "repo")
	if err := c.git.Clone(ctx, url, ref, work); err != nil {
		return Package{}, err
	}

	commit, err := c.git.HeadCommit(ctx, work)
	if err != nil {
		return Package{}, err
	}

	desc, err := readDescriptor(work)
	if err != nil {
		return Package{}, err
	}
	if wantName != "" && !strings.EqualFold(desc.Name, wantName) {
		return Package{}, fmt.Errorf("registry package %s resolved to a repository declaring %q", wantName, desc.Name)
	}

	target := filepath.Join(c.dir, desc.Name)
	if err := os.RemoveAll(target); err != nil {
		return Package{}, fmt.Errorf("failed to replace %s: %w", target, err)
	}
	if err := os.Rename(work, target); err != nil {
		return Package{}, fmt.Errorf("failed to move %s into place: %w", desc.Name, err)
	}

	id := desc.Name + "@" + sourceRef + "#" + commit
	if origin == OriginRegistry {
		id = desc.Name + "@" + desc.Version
	}

	// Checking out a pinned commit keeps the branch or tag tracked so far.
	tracked := ref
	if origin == OriginGit && ref != "" && strings.HasPrefix(commit, ref) {
		tracked = ""
		if prev := c.installedFrom(sourceRef); prev != nil {
			tracked = prev.Ref
		}
	}

	row := &store.Package{
		Name:         desc.Name,
		Version:      desc.Version,
		Origin:       origin.String(),
		PackageID:    id,
		ResolvedPath: target,
		SourceRef:    sourceRef,
		Ref:          tracked,
		Commit:       commit,
		InstalledAt:  time.Now().UTC().Truncate(time.Second),
	}
	if err := c.index(row); err != nil {
		return Package{}, err
	}

	log.Debug("installed %s %s from %s at %s", desc.Name, desc.Version, sourceRef, commit)
	return c.toPackage(row), nil
}

// installedFrom returns the indexed git package cloned from url, if any.
func (c *LocalClient) installedFrom(url string) *store.Package {
	row, err := c.store.GetPackageBySource(url)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warn("looking up package installed from %s: %v", url, err)
		}
		return nil
	}
	return row
}

func (c *LocalClient) addLocal(spec source.Spec) (Package, error) {
	path, err := filepath.Abs(spec.URL)
	if err != nil {
		return Package{}, fmt.Errorf("resolving path %s: %w", spec.URL, err)
	}
	if _, err := os.Stat(path); err != nil {
		return Package{}, fmt.Errorf("source path %s: %w", path, err)
	}

	desc, err := readDescriptor(path)
	if err != nil {
		return Package{}, err
	}

	row := &store.Package{
		Name:         desc.Name,
		Version:      desc.Version,
		Origin:       OriginOther.String(),
		PackageID:    desc.Name + "@file:" + path,
		ResolvedPath: path,
		InstalledAt:  time.Now().UTC().Truncate(time.Second),
	}
	if err := c.index(row); err != nil {
		return Package{}, err
	}
	return c.toPackage(row), nil
}

// index stores row and the gitdependencies its descriptor declares.
func (c *LocalClient) index(row *store.Package) error {
	if err := c.store.UpsertPackage(row); err != nil {
		return err
	}

	links, _ := manifest.ReadGitDependencies(row.ResolvedPath)
	deps := make([]store.Dependency, 0, len(links))
	for _, link := range links {
		spec := source.Parse(link)
		deps = append(deps, store.Dependency{Link: link, Source: spec.URL})
	}
	return c.store.SetDependencies(row.Name, deps)
}

func (c *LocalClient) remove(idOrName string) (string, error) {
	row, err := c.store.GetPackage(strings.TrimSpace(idOrName))
	if errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("%s: %w", idOrName, ErrNotFound)
	}
	if err != nil {
		return "", err
	}

	// Only directories this client created are deleted.
	if c.owns(row.ResolvedPath) {
		if err := os.RemoveAll(row.ResolvedPath); err != nil {
			return "", fmt.Errorf("removing %s: %w", row.Name, err)
		}
	}

	if err := c.store.DeletePackage(row.Name); err != nil {
		return "", err
	}
	return row.Name, nil
}

func (c *LocalClient) owns(path string) bool {
	dir, err := filepath.Abs(c.dir)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, "..")
}

func (c *LocalClient) toPackage(row *store.Package) Package {
	pkg := Package{
		Name:         row.Name,
		Version:      row.Version,
		Origin:       ParseOrigin(row.Origin),
		PackageID:    row.PackageID,
		ResolvedPath: row.ResolvedPath,
		InstalledAt:  row.InstalledAt,
	}
	if pkg.Origin == OriginRegistry {
		if e, err := c.registry.Find(row.Name); err == nil {
			pkg.Versions = c.versions(e)
		}
	}
	return pkg
}

func (c *LocalClient) versions(e *registry.Entry) Versions {
	return Versions{
		Latest:           e.Latest(),
		LatestCompatible: e.LatestCompatible(c.engine),
		All:              e.All(),
	}
}

// descriptor holds the identity fields of a package descriptor.
type descriptor struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

func readDescriptor(dir string) (descriptor, error) {
	path := filepath.Join(dir, manifest.DescriptorFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return descriptor{}, fmt.Errorf("reading %s: %w", manifest.DescriptorFile, err)
	}

	var d descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return descriptor{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if strings.TrimSpace(d.Name) == "" {
		return descriptor{}, fmt.Errorf("%s declares no name", path)
	}
	if strings.ContainsAny(d.Name, `/\`) || d.Name == "." || d.Name == ".." {
		return descriptor{}, fmt.Errorf("%s declares an invalid name %q", path, d.Name)
	}
	return d, nil
}
