package snapshots

import (
	"time"

	"github.com/blackwell-systems/gitpm/internal/store"
)

// SnapshotData represents the JSON structure stored in snapshot files.
type SnapshotData struct {
	CreatedAt     time.Time
	Reason        string
	Packages      []*PackageSnapshot
	EngineVersion string
}

// PackageSnapshot represents a package in a snapshot file.
type PackageSnapshot struct {
	Name         string
	Version      string
	Origin       string
	Ref          string // reference that reinstalls this exact package
	Dependencies []string
}

// Manager manages snapshot creation, restoration, and cleanup.
type Manager struct {
	store         *store.Store
	snapshotDir   string
	engineVersion string
}

// New creates a new snapshot Manager. engineVersion is recorded in every
// snapshot and compared on restore.
func New(store *store.Store, snapshotDir, engineVersion string) *Manager {
	return &Manager{
		store:         store,
		snapshotDir:   snapshotDir,
		engineVersion: engineVersion,
	}
}
