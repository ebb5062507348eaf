package snapshots

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/blackwell-systems/gitpm/internal/log"
	"github.com/blackwell-systems/gitpm/internal/store"
)

// ErrNoSnapshots is returned by Latest when nothing has been snapshotted.
var ErrNoSnapshots = errors.New("no snapshots available")

// Latest returns the ID of the most recent snapshot.
func (m *Manager) Latest() (int64, error) {
	snapshots, err := m.store.ListSnapshots()
	if err != nil {
		return 0, fmt.Errorf("failed to list snapshots: %w", err)
	}
	if len(snapshots) == 0 {
		return 0, ErrNoSnapshots
	}
	return snapshots[0].ID, nil
}

// RestoreSnapshot returns the pinned references recorded in a snapshot, in
// the order they should be reinstalled. The snapshot file is preferred; when
// it is gone the database rows are used instead.
func (m *Manager) RestoreSnapshot(id int64) ([]string, error) {
	snapshot, err := m.store.GetSnapshot(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	snapshotData, err := loadSnapshotFile(snapshot.SnapshotPath)
	if err != nil {
		log.Warn("snapshot file %s unreadable, using index: %v", snapshot.SnapshotPath, err)
		return m.refsFromStore(id)
	}

	if m.engineVersion != "" && snapshotData.EngineVersion != "" && snapshotData.EngineVersion != m.engineVersion {
		log.Warn("snapshot %d was created with engine %s, current engine is %s",
			id, snapshotData.EngineVersion, m.engineVersion)
	}

	refs := make([]string, 0, len(snapshotData.Packages))
	for _, pkg := range snapshotData.Packages {
		if pkg.Ref != "" {
			refs = append(refs, pkg.Ref)
		}
	}
	return refs, nil
}

func (m *Manager) refsFromStore(id int64) ([]string, error) {
	pkgs, err := m.store.GetSnapshotPackages(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot packages: %w", err)
	}

	refs := make([]string, 0, len(pkgs))
	for _, p := range pkgs {
		refs = append(refs, p.Ref)
	}
	return refs, nil
}

// loadSnapshotFile reads and parses a snapshot JSON file.
func loadSnapshotFile(path string) (*SnapshotData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot file: %w", err)
	}

	var snapshotData SnapshotData
	if err := json.Unmarshal(data, &snapshotData); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot JSON: %w", err)
	}

	return &snapshotData, nil
}

// Packages returns the packages recorded in a snapshot.
func (m *Manager) Packages(id int64) ([]*store.SnapshotPackage, error) {
	return m.store.GetSnapshotPackages(id)
}
