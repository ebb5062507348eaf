package snapshots

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blackwell-systems/gitpm/internal/store"
)

// PinnedRef returns the reference that reinstalls pkg exactly as installed:
// url#commit for git packages and name@version for registry packages. It
// returns "" for packages that cannot be reinstalled from a reference.
func PinnedRef(pkg *store.Package) string {
	switch pkg.Origin {
	case "git":
		if pkg.SourceRef == "" {
			return ""
		}
		if pkg.Commit == "" {
			return pkg.SourceRef
		}
		return pkg.SourceRef + "#" + pkg.Commit
	case "registry":
		if pkg.Version == "" {
			return pkg.Name
		}
		return pkg.Name + "@" + pkg.Version
	default:
		return ""
	}
}

// CreateSnapshot records the pinned references of the specified packages and
// returns the snapshot ID. If packages is empty, every installed package is
// included. Packages without a pinned reference are skipped.
func (m *Manager) CreateSnapshot(packages []string, reason string) (int64, error) {
	if err := os.MkdirAll(m.snapshotDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	var rows []*store.Package
	if len(packages) == 0 {
		all, err := m.store.ListPackages()
		if err != nil {
			return 0, fmt.Errorf("failed to list packages: %w", err)
		}
		rows = all
	} else {
		for _, name := range packages {
			pkg, err := m.store.GetPackage(name)
			if err != nil {
				return 0, fmt.Errorf("failed to get package %s: %w", name, err)
			}
			rows = append(rows, pkg)
		}
	}

	snapshotData := &SnapshotData{
		CreatedAt:     time.Now(),
		Reason:        reason,
		Packages:      make([]*PackageSnapshot, 0, len(rows)),
		EngineVersion: m.engineVersion,
	}

	for _, pkg := range rows {
		ref := PinnedRef(pkg)
		if ref == "" {
			continue
		}

		deps, err := m.store.GetDependencies(pkg.Name)
		if err != nil {
			return 0, fmt.Errorf("failed to get dependencies for %s: %w", pkg.Name, err)
		}
		links := make([]string, len(deps))
		for i, d := range deps {
			links[i] = d.Link
		}

		snapshotData.Packages = append(snapshotData.Packages, &PackageSnapshot{
			Name:         pkg.Name,
			Version:      pkg.Version,
			Origin:       pkg.Origin,
			Ref:          ref,
			Dependencies: links,
		})
	}

	// YYYY-MM-DD-HHMMSS.000000000.json keeps rapid snapshots distinct
	timestamp := snapshotData.CreatedAt.Format("2006-01-02-150405.000000000")
	snapshotPath := filepath.Join(m.snapshotDir, timestamp+".json")

	jsonData, err := json.MarshalIndent(snapshotData, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("failed to marshal snapshot data: %w", err)
	}

	if err := os.WriteFile(snapshotPath, jsonData, 0644); err != nil {
		return 0, fmt.Errorf("failed to write snapshot file: %w", err)
	}

	snapshotID, err := m.store.InsertSnapshot(reason, len(snapshotData.Packages), snapshotPath)
	if err != nil {
		os.Remove(snapshotPath)
		return 0, fmt.Errorf("failed to insert snapshot into database: %w", err)
	}

	for _, pkg := range snapshotData.Packages {
		snapshotPkg := &store.SnapshotPackage{
			SnapshotID:  snapshotID,
			PackageName: pkg.Name,
			Version:     pkg.Version,
			Ref:         pkg.Ref,
		}

		if err := m.store.InsertSnapshotPackage(snapshotID, snapshotPkg); err != nil {
			return 0, fmt.Errorf("failed to insert snapshot package %s: %w", pkg.Name, err)
		}
	}

	return snapshotID, nil
}

// ListSnapshots returns all snapshots from the database, newest first.
func (m *Manager) ListSnapshots() ([]*store.Snapshot, error) {
	snapshots, err := m.store.ListSnapshots()
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return snapshots, nil
}

// CleanupOldSnapshots removes snapshot files older than maxAge and returns
// how many were removed. Database rows are kept as an audit log.
func (m *Manager) CleanupOldSnapshots(maxAge time.Duration) (int, error) {
	snapshots, err := m.store.ListSnapshots()
	if err != nil {
		return 0, fmt.Errorf("failed to list snapshots: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	deleted := 0

	for _, snapshot := range snapshots {
		if !snapshot.CreatedAt.Before(cutoff) {
			continue
		}
		if err := os.Remove(snapshot.SnapshotPath); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return deleted, fmt.Errorf("failed to delete snapshot file %s: %w", snapshot.SnapshotPath, err)
		}
		deleted++
	}

	return deleted, nil
}
