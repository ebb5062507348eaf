package store

import "time"

// Package is a row of the installed-package index.
type Package struct {
	Name         string
	Version      string
	Origin       string // registry, git or other
	PackageID    string
	ResolvedPath string
	SourceRef    string // clone URL the package was installed from
	Ref          string // branch or tag requested at install, empty for the default branch
	Commit       string
	InstalledAt  time.Time
}

// Operation is one completed package service call.
type Operation struct {
	ID         int64
	SessionID  string
	Kind       string // list, search, add or remove
	Target     string
	Success    bool
	Message    string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Snapshot represents a point-in-time record of pinned git packages.
type Snapshot struct {
	ID           int64
	CreatedAt    time.Time
	Reason       string
	PackageCount int
	SnapshotPath string
}

// SnapshotPackage represents a package in a snapshot.
type SnapshotPackage struct {
	SnapshotID  int64
	PackageName string
	Version     string
	Ref         string // url#commit
}

// Dependency is a gitdependency declared by an installed package.
type Dependency struct {
	Package string
	Link    string
	Source  string // clone URL of Link, used to look up dependents
}
