package upm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blackwell-systems/gitpm/internal/registry"
	"github.com/blackwell-systems/gitpm/internal/source"
	"github.com/blackwell-systems/gitpm/internal/store"
)

// fakeGit "clones" by writing the descriptor registered for a URL.
type fakeGit struct {
	repos  map[string]string // url -> package.json
	clones []string
}

func (g *fakeGit) Clone(ctx context.Context, url, ref, dir string) error {
	g.clones = append(g.clones, url+"#"+ref)
	body, ok := g.repos[url]
	if !ok {
		return fmt.Errorf("git clone failed: repository %s not found", url)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "package.json"), []byte(body), 0644)
}

func (g *fakeGit) HeadCommit(ctx context.Context, dir string) (string, error) {
	return "c0ffee", nil
}

func wait[T any](t *testing.T, r *Request[T]) (T, error) {
	t.Helper()
	select {
	case <-r.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("request did not complete")
	}
	return r.Result(), r.Err()
}

func newTestClient(t *testing.T, git *fakeGit) (*LocalClient, *store.Store) {
	t.Helper()

	db, err := store.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.CreateSchema(); err != nil {
		t.Fatal(err)
	}

	idx, err := registry.Parse([]byte(`
packages:
  - name: com.example.tools
    url: https://h/tools.git
    tag_prefix: v
    versions:
      - version: 1.0.0
      - version: 2.0.0
        engine: ">=2030.1"
`))
	if err != nil {
		t.Fatal(err)
	}

	c := NewLocalClient(LocalOptions{
		PackagesDir:   filepath.Join(t.TempDir(), "packages"),
		Store:         db,
		Registry:      idx,
		EngineVersion: "2023.1.0",
		Git:           git,
	})
	return c, db
}

func TestLocalClient_AddGit(t *testing.T) {
	git := &fakeGit{repos: map[string]string{
		"https://h/core.git": `{"name": "com.example.core", "version": "1.2.0",
			"gitdependencies": ["https://h/net.git#v2"]}`,
	}}
	c, db := newTestClient(t, git)

	pkg, err := wait(t, c.Add("https://h/core.git#main"))
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if pkg.Name != "com.example.core" || pkg.Version != "1.2.0" || pkg.Origin != OriginGit {
		t.Errorf("Add() = %+v", pkg)
	}
	if pkg.PackageID != "com.example.core@https://h/core.git#c0ffee" {
		t.Errorf("PackageID = %q", pkg.PackageID)
	}
	if git.clones[0] != "https://h/core.git#main" {
		t.Errorf("clones = %v", git.clones)
	}
	row, err := db.GetPackage(pkg.Name)
	if err != nil {
		t.Fatal(err)
	}
	if row.SourceRef != "https://h/core.git" || row.Ref != "main" {
		t.Errorf("indexed source = %q, ref = %q", row.SourceRef, row.Ref)
	}
	if _, err := os.Stat(filepath.Join(pkg.ResolvedPath, "package.json")); err != nil {
		t.Errorf("package not moved into place: %v", err)
	}

	dependents, err := db.GetDependents("https://h/net.git")
	if err != nil {
		t.Fatal(err)
	}
	if len(dependents) != 1 || dependents[0] != "com.example.core" {
		t.Errorf("GetDependents() = %v", dependents)
	}
}

func TestLocalClient_ReinstallKeepsTrackedRef(t *testing.T) {
	git := &fakeGit{repos: map[string]string{
		"https://h/core.git": `{"name": "core", "version": "1.0.0"}`,
	}}
	c, _ := newTestClient(t, git)

	pkg, err := wait(t, c.Add("https://h/core.git#develop"))
	if err != nil {
		t.Fatal(err)
	}

	src, ok := source.ExtractGitSourceFromID(pkg.PackageID)
	if !ok || src != "https://h/core.git" {
		t.Fatalf("ExtractGitSourceFromID(%q) = %q, %v", pkg.PackageID, src, ok)
	}

	steps := []struct {
		name string
		ref  string
		want string
	}{
		{"reinstall from extracted source", src, "https://h/core.git#develop"},
		{"pinned commit", "https://h/core.git#c0ffee", "https://h/core.git#c0ffee"},
		{"reinstall after pinning", src, "https://h/core.git#develop"},
		{"explicit ref switches branch", "https://h/core.git#release", "https://h/core.git#release"},
		{"reinstall follows new branch", src, "https://h/core.git#release"},
	}

	for _, step := range steps {
		if _, err := wait(t, c.Add(step.ref)); err != nil {
			t.Fatalf("%s: Add(%q) error = %v", step.name, step.ref, err)
		}
		if got := git.clones[len(git.clones)-1]; got != step.want {
			t.Errorf("%s: cloned %q, want %q", step.name, got, step.want)
		}
	}
}

func TestLocalClient_AddGitReplacesExisting(t *testing.T) {
	git := &fakeGit{repos: map[string]string{
		"https://h/core.git": `{"name": "core", "version": "1.0.0"}`,
	}}
	c, _ := newTestClient(t, git)

	if _, err := wait(t, c.Add("https://h/core.git")); err != nil {
		t.Fatal(err)
	}
	git.repos["https://h/core.git"] = `{"name": "core", "version": "1.1.0"}`
	pkg, err := wait(t, c.Add("https://h/core.git"))
	if err != nil {
		t.Fatalf("second Add() error = %v", err)
	}
	if pkg.Version != "1.1.0" {
		t.Errorf("Version = %s, want 1.1.0", pkg.Version)
	}

	list, _ := wait(t, c.List(false))
	if len(list) != 1 {
		t.Errorf("List() = %d packages, want 1", len(list))
	}
}

func TestLocalClient_AddRegistry(t *testing.T) {
	git := &fakeGit{repos: map[string]string{
		"https://h/tools.git": `{"name": "com.example.tools", "version": "1.0.0"}`,
	}}
	c, _ := newTestClient(t, git)

	pkg, err := wait(t, c.Add("com.example.tools@1.0.0"))
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if pkg.Origin != OriginRegistry || pkg.PackageID != "com.example.tools@1.0.0" {
		t.Errorf("Add() = %+v", pkg)
	}
	if git.clones[0] != "https://h/tools.git#v1.0.0" {
		t.Errorf("clones = %v", git.clones)
	}
	if pkg.Versions.Latest != "2.0.0" || pkg.Versions.LatestCompatible != "1.0.0" {
		t.Errorf("Versions = %+v", pkg.Versions)
	}
}

func TestLocalClient_AddFailures(t *testing.T) {
	git := &fakeGit{repos: map[string]string{
		"https://h/noname.git":   `{"version": "1.0.0"}`,
		"https://h/traverse.git": `{"name": "../escape", "version": "1.0.0"}`,
		"https://h/tools.git":    `{"name": "com.other", "version": "1.0.0"}`,
	}}
	c, _ := newTestClient(t, git)

	tests := []struct {
		name string
		ref  string
	}{
		{"clone failure", "https://h/missing.git"},
		{"descriptor without name", "https://h/noname.git"},
		{"descriptor name escapes directory", "https://h/traverse.git"},
		{"unknown registry package", "com.unknown@1.0.0"},
		{"unknown registry version", "com.example.tools@9.9.9"},
		{"registry name mismatch", "com.example.tools@1.0.0"},
		{"empty reference", "  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := wait(t, c.Add(tt.ref)); err == nil {
				t.Errorf("Add(%q) should fail", tt.ref)
			}
		})
	}

	list, _ := wait(t, c.List(true))
	if len(list) != 0 {
		t.Errorf("failed adds left %d packages indexed", len(list))
	}
}

func TestLocalClient_AddLocal(t *testing.T) {
	c, _ := newTestClient(t, &fakeGit{})

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{"name": "local.pkg", "version": "0.1.0"}`), 0644); err != nil {
		t.Fatal(err)
	}

	pkg, err := wait(t, c.Add("file:"+dir))
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if pkg.Origin != OriginOther || pkg.ResolvedPath != dir {
		t.Errorf("Add() = %+v", pkg)
	}

	// Removing a local package leaves its source alone.
	if _, err := wait(t, c.Remove("local.pkg")); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("local source directory was deleted: %v", err)
	}
}

func TestLocalClient_Remove(t *testing.T) {
	git := &fakeGit{repos: map[string]string{
		"https://h/core.git": `{"name": "core", "version": "1.0.0"}`,
	}}
	c, _ := newTestClient(t, git)

	pkg, err := wait(t, c.Add("https://h/core.git"))
	if err != nil {
		t.Fatal(err)
	}

	name, err := wait(t, c.Remove(pkg.PackageID))
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if name != "core" {
		t.Errorf("Remove() = %q, want core", name)
	}
	if _, err := os.Stat(pkg.ResolvedPath); !os.IsNotExist(err) {
		t.Error("package directory should be removed")
	}

	if _, err := wait(t, c.Remove("core")); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Remove() error = %v, want ErrNotFound", err)
	}
}

func TestLocalClient_ListRefreshPrunes(t *testing.T) {
	git := &fakeGit{repos: map[string]string{
		"https://h/a.git": `{"name": "a", "version": "1.0.0"}`,
		"https://h/b.git": `{"name": "b", "version": "1.0.0"}`,
	}}
	c, _ := newTestClient(t, git)

	a, _ := wait(t, c.Add("https://h/a.git"))
	if _, err := wait(t, c.Add("https://h/b.git")); err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(a.ResolvedPath); err != nil {
		t.Fatal(err)
	}

	list, err := wait(t, c.List(false))
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Errorf("List(false) = %d packages, want 2", len(list))
	}

	list, err = wait(t, c.List(true))
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Name != "b" {
		t.Errorf("List(true) = %+v, want only b", list)
	}
}

func TestLocalClient_Search(t *testing.T) {
	c, _ := newTestClient(t, &fakeGit{})

	results, err := wait(t, c.Search("com.example.tools"))
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("Search() = %d results, want 1", len(results))
	}
	got := results[0]
	if got.Version != "2.0.0" || got.Versions.LatestCompatible != "1.0.0" || len(got.Versions.All) != 2 {
		t.Errorf("Search() = %+v", got)
	}
}

func TestCloneURL(t *testing.T) {
	tests := map[string]string{
		"github.com/org/repo":    "https://github.com/org/repo",
		"https://h/org/repo.git": "https://h/org/repo.git",
		"git@h:org/repo.git":     "git@h:org/repo.git",
		"/srv/git/repo.git":      "/srv/git/repo.git",
	}
	for in, want := range tests {
		if got := cloneURL(in); got != want {
			t.Errorf("cloneURL(%q) = %q, want %q", in, got, want)
		}
	}
}
