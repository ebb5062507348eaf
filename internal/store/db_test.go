package store

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// Helper function to create an in-memory store for testing
func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := store.CreateSchema(); err != nil {
		t.Fatalf("CreateSchema() failed: %v", err)
	}
	return store
}

func gitPackage(name string, installedAt time.Time) *Package {
	return &Package{
		Name:         name,
		Version:      "1.0.0",
		Origin:       "git",
		PackageID:    name + "@https://example.com/" + name + ".git#abc123",
		ResolvedPath: "/pkgs/" + name,
		SourceRef:    "https://example.com/" + name + ".git",
		Ref:          "main",
		Commit:       "abc123",
		InstalledAt:  installedAt,
	}
}

func TestListPackages_NoSchema_ReturnsErrNotInitialized(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer s.Close()

	_, err = s.ListPackages()
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("ListPackages() error = %v; want ErrNotInitialized", err)
	}

	_, err = s.GetPackage("somepackage")
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("GetPackage() error = %v; want ErrNotInitialized", err)
	}
}

func TestErrNotInitialized_ErrorMessage(t *testing.T) {
	if !strings.Contains(ErrNotInitialized.Error(), "gitpm") {
		t.Errorf("ErrNotInitialized message %q should mention gitpm", ErrNotInitialized.Error())
	}
}

func TestOpen_CreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gitpm.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := s.ListPackages(); err != nil {
		t.Errorf("ListPackages() after Open() failed: %v", err)
	}
}

func TestCreateSchema_Idempotent(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	if err := store.CreateSchema(); err != nil {
		t.Errorf("second CreateSchema() failed: %v", err)
	}
}

func TestUpsertAndGetPackage(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	now := time.Now().UTC().Truncate(time.Second)
	pkg := gitPackage("com.example.tools", now)

	if err := store.UpsertPackage(pkg); err != nil {
		t.Fatalf("UpsertPackage() failed: %v", err)
	}

	tests := []struct {
		name   string
		lookup string
	}{
		{"by name", "com.example.tools"},
		{"by name ignoring case", "COM.Example.Tools"},
		{"by package id", pkg.PackageID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.GetPackage(tt.lookup)
			if err != nil {
				t.Fatalf("GetPackage(%q) failed: %v", tt.lookup, err)
			}
			if !got.InstalledAt.Equal(pkg.InstalledAt) {
				t.Errorf("InstalledAt = %v, want %v", got.InstalledAt, pkg.InstalledAt)
			}
			got.InstalledAt = pkg.InstalledAt
			if *got != *pkg {
				t.Errorf("GetPackage(%q) = %+v, want %+v", tt.lookup, got, pkg)
			}
		})
	}
}

func TestUpsertPackage_Replace(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	now := time.Now().UTC().Truncate(time.Second)
	pkg := gitPackage("tools", now)
	if err := store.UpsertPackage(pkg); err != nil {
		t.Fatal(err)
	}

	pkg.Version = "1.1.0"
	pkg.Commit = "def456"
	if err := store.UpsertPackage(pkg); err != nil {
		t.Fatalf("UpsertPackage() (update) failed: %v", err)
	}

	got, err := store.GetPackage("tools")
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != "1.1.0" || got.Commit != "def456" {
		t.Errorf("got %s@%s, want 1.1.0@def456", got.Version, got.Commit)
	}

	all, _ := store.ListPackages()
	if len(all) != 1 {
		t.Errorf("ListPackages() returned %d rows, want 1", len(all))
	}
}

func TestGetPackage_NotFound(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	_, err := store.GetPackage("nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPackage() error = %v, want ErrNotFound", err)
	}
}

func TestGetPackageBySource(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	now := time.Now().UTC().Truncate(time.Second)
	pkg := gitPackage("core", now)
	pkg.Ref = "develop"
	if err := store.UpsertPackage(pkg); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetPackageBySource("HTTPS://example.com/core.git")
	if err != nil {
		t.Fatalf("GetPackageBySource() failed: %v", err)
	}
	if got.Name != "core" || got.Ref != "develop" {
		t.Errorf("GetPackageBySource() = %+v", got)
	}

	if _, err := store.GetPackageBySource("https://example.com/other.git"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetPackageBySource() error = %v, want ErrNotFound", err)
	}
}

func TestCreateSchema_AddsRefColumnToOlderIndex(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	old := `CREATE TABLE packages (
		name TEXT PRIMARY KEY,
		version TEXT NOT NULL,
		origin TEXT NOT NULL,
		package_id TEXT NOT NULL,
		resolved_path TEXT NOT NULL,
		source_ref TEXT,
		commit_hash TEXT,
		installed_at TIMESTAMP NOT NULL
	)`
	if _, err := s.DB().Exec(old); err != nil {
		t.Fatal(err)
	}

	if err := s.CreateSchema(); err != nil {
		t.Fatalf("CreateSchema() on an older index failed: %v", err)
	}

	pkg := gitPackage("core", time.Now().UTC().Truncate(time.Second))
	if err := s.UpsertPackage(pkg); err != nil {
		t.Fatalf("UpsertPackage() after migration failed: %v", err)
	}
	got, err := s.GetPackage("core")
	if err != nil {
		t.Fatal(err)
	}
	if got.Ref != "main" {
		t.Errorf("Ref = %q, want main", got.Ref)
	}
}

func TestListPackages_SortedByName(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	now := time.Now().UTC().Truncate(time.Second)
	for _, name := range []string{"zeta", "Alpha", "beta"} {
		if err := store.UpsertPackage(gitPackage(name, now)); err != nil {
			t.Fatal(err)
		}
	}

	pkgs, err := store.ListPackages()
	if err != nil {
		t.Fatalf("ListPackages() failed: %v", err)
	}

	var names []string
	for _, p := range pkgs {
		names = append(names, p.Name)
	}
	if strings.Join(names, ",") != "Alpha,beta,zeta" {
		t.Errorf("ListPackages() order = %v", names)
	}
}

func TestDeletePackage(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	if err := store.UpsertPackage(gitPackage("tools", time.Now())); err != nil {
		t.Fatal(err)
	}
	if err := store.SetDependencies("tools", []Dependency{{Link: "https://h/dep.git", Source: "https://h/dep.git"}}); err != nil {
		t.Fatal(err)
	}

	if err := store.DeletePackage("tools"); err != nil {
		t.Fatalf("DeletePackage() failed: %v", err)
	}
	if _, err := store.GetPackage("tools"); !errors.Is(err, ErrNotFound) {
		t.Errorf("package still present after delete: %v", err)
	}

	deps, err := store.GetDependencies("tools")
	if err != nil {
		t.Fatal(err)
	}
	if len(deps) != 0 {
		t.Errorf("dependencies should cascade on delete, got %v", deps)
	}

	if err := store.DeletePackage("tools"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeletePackage() error = %v, want ErrNotFound", err)
	}
}

func TestDependencies(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	now := time.Now()
	for _, name := range []string{"app", "ui"} {
		if err := store.UpsertPackage(gitPackage(name, now)); err != nil {
			t.Fatal(err)
		}
	}

	core := Dependency{Link: "https://h/core.git#v1", Source: "https://h/core.git"}
	net := Dependency{Link: "https://h/net.git", Source: "https://h/net.git"}

	if err := store.SetDependencies("app", []Dependency{core, net}); err != nil {
		t.Fatalf("SetDependencies() failed: %v", err)
	}
	if err := store.SetDependencies("ui", []Dependency{core}); err != nil {
		t.Fatal(err)
	}

	deps, err := store.GetDependencies("app")
	if err != nil {
		t.Fatal(err)
	}
	if len(deps) != 2 {
		t.Errorf("GetDependencies(app) = %v, want 2", deps)
	}

	dependents, err := store.GetDependents("HTTPS://H/CORE.GIT")
	if err != nil {
		t.Fatalf("GetDependents() failed: %v", err)
	}
	if strings.Join(dependents, ",") != "app,ui" {
		t.Errorf("GetDependents() = %v, want [app ui]", dependents)
	}

	// Replacing drops stale entries.
	if err := store.SetDependencies("app", []Dependency{net}); err != nil {
		t.Fatal(err)
	}
	dependents, _ = store.GetDependents("https://h/core.git")
	if strings.Join(dependents, ",") != "ui" {
		t.Errorf("GetDependents() after replace = %v, want [ui]", dependents)
	}
}

func TestOperations(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	start := time.Now().UTC()
	ops := []*Operation{
		{SessionID: "s1", Kind: "list", Success: true, Message: "Loaded 0 installed package(s)."},
		{SessionID: "s1", Kind: "add", Target: "https://h/a.git", Success: false, Message: "Add failed: boom"},
		{SessionID: "s2", Kind: "remove", Target: "a", Success: true, Message: "Removed: a"},
	}
	for i, op := range ops {
		op.StartedAt = start.Add(time.Duration(i) * time.Second)
		op.FinishedAt = op.StartedAt.Add(250 * time.Millisecond)
		if _, err := store.InsertOperation(op); err != nil {
			t.Fatalf("InsertOperation() failed: %v", err)
		}
	}

	all, err := store.ListOperations("", 0)
	if err != nil {
		t.Fatalf("ListOperations() failed: %v", err)
	}
	if len(all) != 3 || all[0].Kind != "remove" {
		t.Fatalf("ListOperations() should return newest first, got %d rows", len(all))
	}
	if !all[2].FinishedAt.Equal(ops[0].FinishedAt) {
		t.Errorf("FinishedAt = %v, want %v", all[2].FinishedAt, ops[0].FinishedAt)
	}

	s1, _ := store.ListOperations("s1", 0)
	if len(s1) != 2 {
		t.Errorf("session filter returned %d rows, want 2", len(s1))
	}
	if s1[0].Success || s1[0].Message != "Add failed: boom" {
		t.Errorf("unexpected operation %+v", s1[0])
	}

	limited, _ := store.ListOperations("", 1)
	if len(limited) != 1 {
		t.Errorf("limit returned %d rows, want 1", len(limited))
	}
}

func TestSnapshots(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	id, err := store.InsertSnapshot("update all", 2, "/tmp/snap.json")
	if err != nil {
		t.Fatalf("InsertSnapshot() failed: %v", err)
	}

	for _, p := range []*SnapshotPackage{
		{PackageName: "b", Version: "1.0.0", Ref: "https://h/b.git#222"},
		{PackageName: "a", Version: "2.0.0", Ref: "https://h/a.git#111"},
	} {
		if err := store.InsertSnapshotPackage(id, p); err != nil {
			t.Fatalf("InsertSnapshotPackage() failed: %v", err)
		}
	}

	snap, err := store.GetSnapshot(id)
	if err != nil {
		t.Fatalf("GetSnapshot() failed: %v", err)
	}
	if snap.Reason != "update all" || snap.PackageCount != 2 {
		t.Errorf("GetSnapshot() = %+v", snap)
	}

	pkgs, err := store.GetSnapshotPackages(id)
	if err != nil {
		t.Fatal(err)
	}
	if len(pkgs) != 2 || pkgs[0].PackageName != "a" || pkgs[0].Ref != "https://h/a.git#111" {
		t.Errorf("GetSnapshotPackages() = %+v", pkgs)
	}

	second, _ := store.InsertSnapshot("remove", 0, "/tmp/snap2.json")
	list, err := store.ListSnapshots()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != second {
		t.Errorf("ListSnapshots() should return newest first")
	}

	if _, err := store.GetSnapshot(999); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSnapshot(999) error = %v, want ErrNotFound", err)
	}
}
