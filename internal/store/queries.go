package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Package operations

// UpsertPackage inserts a package into the index or updates the existing row.
func (s *Store) UpsertPackage(pkg *Package) error {
	query := `
		INSERT INTO packages
		(name, version, origin, package_id, resolved_path, source_ref, git_ref, commit_hash, installed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			version = excluded.version,
			origin = excluded.origin,
			package_id = excluded.package_id,
			resolved_path = excluded.resolved_path,
			source_ref = excluded.source_ref,
			git_ref = excluded.git_ref,
			commit_hash = excluded.commit_hash,
			installed_at = excluded.installed_at
	`

	_, err := s.db.Exec(query,
		pkg.Name,
		pkg.Version,
		pkg.Origin,
		pkg.PackageID,
		pkg.ResolvedPath,
		pkg.SourceRef,
		pkg.Ref,
		pkg.Commit,
		pkg.InstalledAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return wrap(err, "failed to insert package %s", pkg.Name)
	}

	return nil
}

// GetPackage retrieves a package by name or package id, ignoring case.
func (s *Store) GetPackage(nameOrID string) (*Package, error) {
	query := `
		SELECT name, version, origin, package_id, resolved_path, source_ref, git_ref, commit_hash, installed_at
		FROM packages
		WHERE name = ? COLLATE NOCASE OR package_id = ? COLLATE NOCASE
		LIMIT 1
	`

	pkg, err := scanPackage(s.db.QueryRow(query, nameOrID, nameOrID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("package %s: %w", nameOrID, ErrNotFound)
	}
	if err != nil {
		return nil, wrap(err, "failed to get package %s", nameOrID)
	}

	return pkg, nil
}

// GetPackageBySource retrieves the git package most recently installed from
// the given clone URL, ignoring case.
func (s *Store) GetPackageBySource(sourceURL string) (*Package, error) {
	query := `
		SELECT name, version, origin, package_id, resolved_path, source_ref, git_ref, commit_hash, installed_at
		FROM packages
		WHERE source_ref = ? COLLATE NOCASE AND origin = 'git'
		ORDER BY installed_at DESC
		LIMIT 1
	`

	pkg, err := scanPackage(s.db.QueryRow(query, sourceURL))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("package from %s: %w", sourceURL, ErrNotFound)
	}
	if err != nil {
		return nil, wrap(err, "failed to get package from %s", sourceURL)
	}

	return pkg, nil
}

// ListPackages returns all packages ordered by name.
func (s *Store) ListPackages() ([]*Package, error) {
	query := `
		SELECT name, version, origin, package_id, resolved_path, source_ref, git_ref, commit_hash, installed_at
		FROM packages
		ORDER BY name COLLATE NOCASE
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, wrap(err, "failed to list packages")
	}
	defer rows.Close()

	var packages []*Package
	for rows.Next() {
		pkg, err := scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan package row: %w", err)
		}
		packages = append(packages, pkg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating packages: %w", err)
	}

	return packages, nil
}

// DeletePackage removes a package and its declared dependencies.
func (s *Store) DeletePackage(name string) error {
	result, err := s.db.Exec(`DELETE FROM packages WHERE name = ?`, name)
	if err != nil {
		return wrap(err, "failed to delete package %s", name)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("package %s: %w", name, ErrNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPackage(row rowScanner) (*Package, error) {
	var pkg Package
	var sourceRef, ref, commit sql.NullString
	var installedAt string

	err := row.Scan(
		&pkg.Name,
		&pkg.Version,
		&pkg.Origin,
		&pkg.PackageID,
		&pkg.ResolvedPath,
		&sourceRef,
		&ref,
		&commit,
		&installedAt,
	)
	if err != nil {
		return nil, err
	}

	pkg.SourceRef = sourceRef.String
	pkg.Ref = ref.String
	pkg.Commit = commit.String
	pkg.InstalledAt, err = time.Parse(time.RFC3339, installedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse installed_at for %s: %w", pkg.Name, err)
	}

	return &pkg, nil
}

// Dependency operations

// SetDependencies replaces the gitdependencies recorded for pkg.
func (s *Store) SetDependencies(pkg string, deps []Dependency) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM dependencies WHERE package = ?`, pkg); err != nil {
		return wrap(err, "failed to clear dependencies for %s", pkg)
	}

	for _, d := range deps {
		_, err := tx.Exec(
			`INSERT OR IGNORE INTO dependencies (package, link, source) VALUES (?, ?, ?)`,
			pkg, d.Link, d.Source,
		)
		if err != nil {
			return fmt.Errorf("failed to insert dependency %s -> %s: %w", pkg, d.Link, err)
		}
	}

	return tx.Commit()
}

// GetDependencies returns the gitdependencies declared by pkg.
func (s *Store) GetDependencies(pkg string) ([]Dependency, error) {
	rows, err := s.db.Query(
		`SELECT package, link, source FROM dependencies WHERE package = ? ORDER BY link`, pkg)
	if err != nil {
		return nil, wrap(err, "failed to get dependencies for %s", pkg)
	}
	defer rows.Close()

	var deps []Dependency
	for rows.Next() {
		var d Dependency
		if err := rows.Scan(&d.Package, &d.Link, &d.Source); err != nil {
			return nil, fmt.Errorf("failed to scan dependency: %w", err)
		}
		deps = append(deps, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dependencies: %w", err)
	}

	return deps, nil
}

// GetDependents returns the installed packages that declare a gitdependency
// on the given clone URL.
func (s *Store) GetDependents(sourceURL string) ([]string, error) {
	query := `
		SELECT DISTINCT package
		FROM dependencies
		WHERE source = ? COLLATE NOCASE
		ORDER BY package
	`

	rows, err := s.db.Query(query, sourceURL)
	if err != nil {
		return nil, wrap(err, "failed to get dependents of %s", sourceURL)
	}
	defer rows.Close()

	var dependents []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan dependent: %w", err)
		}
		dependents = append(dependents, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dependents: %w", err)
	}

	return dependents, nil
}

// Operation history

// InsertOperation records a completed operation and returns its ID.
func (s *Store) InsertOperation(op *Operation) (int64, error) {
	query := `
		INSERT INTO operations (session_id, kind, target, success, message, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(query,
		op.SessionID,
		op.Kind,
		op.Target,
		op.Success,
		op.Message,
		op.StartedAt.UTC().Format(time.RFC3339Nano),
		op.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, wrap(err, "failed to insert %s operation", op.Kind)
	}

	return result.LastInsertId()
}

// ListOperations returns the most recent operations, newest first. A
// non-empty sessionID restricts the result to that session; limit <= 0
// returns everything.
func (s *Store) ListOperations(sessionID string, limit int) ([]*Operation, error) {
	query := `
		SELECT id, session_id, kind, target, success, message, started_at, finished_at
		FROM operations
		WHERE (? = '' OR session_id = ?)
		ORDER BY id DESC
	`
	args := []any{sessionID, sessionID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, wrap(err, "failed to list operations")
	}
	defer rows.Close()

	var ops []*Operation
	for rows.Next() {
		var op Operation
		var target, message sql.NullString
		var startedAt, finishedAt string

		err := rows.Scan(
			&op.ID,
			&op.SessionID,
			&op.Kind,
			&target,
			&op.Success,
			&message,
			&startedAt,
			&finishedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation row: %w", err)
		}

		op.Target = target.String
		op.Message = message.String
		if op.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("failed to parse started_at for operation %d: %w", op.ID, err)
		}
		if op.FinishedAt, err = time.Parse(time.RFC3339Nano, finishedAt); err != nil {
			return nil, fmt.Errorf("failed to parse finished_at for operation %d: %w", op.ID, err)
		}

		ops = append(ops, &op)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operations: %w", err)
	}

	return ops, nil
}

// Snapshot operations

// InsertSnapshot creates a new snapshot record and returns its ID.
func (s *Store) InsertSnapshot(reason string, pkgCount int, path string) (int64, error) {
	query := `
		INSERT INTO snapshots (created_at, reason, package_count, snapshot_path)
		VALUES (?, ?, ?, ?)
	`

	result, err := s.db.Exec(query,
		time.Now().UTC().Format(time.RFC3339),
		reason,
		pkgCount,
		path,
	)
	if err != nil {
		return 0, wrap(err, "failed to insert snapshot")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get snapshot ID: %w", err)
	}

	return id, nil
}

// GetSnapshot retrieves a snapshot by ID.
func (s *Store) GetSnapshot(id int64) (*Snapshot, error) {
	query := `
		SELECT id, created_at, reason, package_count, snapshot_path
		FROM snapshots
		WHERE id = ?
	`

	snapshot, err := scanSnapshot(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("snapshot %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, wrap(err, "failed to get snapshot %d", id)
	}

	return snapshot, nil
}

// ListSnapshots returns all snapshots, newest first.
func (s *Store) ListSnapshots() ([]*Snapshot, error) {
	query := `
		SELECT id, created_at, reason, package_count, snapshot_path
		FROM snapshots
		ORDER BY id DESC
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, wrap(err, "failed to list snapshots")
	}
	defer rows.Close()

	var snapshots []*Snapshot
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		snapshots = append(snapshots, snapshot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return snapshots, nil
}

func scanSnapshot(row rowScanner) (*Snapshot, error) {
	var snapshot Snapshot
	var createdAt string
	var reason sql.NullString

	err := row.Scan(
		&snapshot.ID,
		&createdAt,
		&reason,
		&snapshot.PackageCount,
		&snapshot.SnapshotPath,
	)
	if err != nil {
		return nil, err
	}

	snapshot.Reason = reason.String
	snapshot.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at for snapshot %d: %w", snapshot.ID, err)
	}

	return &snapshot, nil
}

// InsertSnapshotPackage adds a package to a snapshot.
func (s *Store) InsertSnapshotPackage(snapshotID int64, pkg *SnapshotPackage) error {
	query := `
		INSERT INTO snapshot_packages (snapshot_id, package_name, version, ref)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.Exec(query, snapshotID, pkg.PackageName, pkg.Version, pkg.Ref)
	if err != nil {
		return wrap(err, "failed to insert snapshot package %s", pkg.PackageName)
	}

	return nil
}

// GetSnapshotPackages returns all packages in a snapshot.
func (s *Store) GetSnapshotPackages(snapshotID int64) ([]*SnapshotPackage, error) {
	query := `
		SELECT snapshot_id, package_name, version, ref
		FROM snapshot_packages
		WHERE snapshot_id = ?
		ORDER BY package_name
	`

	rows, err := s.db.Query(query, snapshotID)
	if err != nil {
		return nil, wrap(err, "failed to get snapshot packages")
	}
	defer rows.Close()

	var packages []*SnapshotPackage
	for rows.Next() {
		var pkg SnapshotPackage
		if err := rows.Scan(&pkg.SnapshotID, &pkg.PackageName, &pkg.Version, &pkg.Ref); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot package row: %w", err)
		}
		packages = append(packages, &pkg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot packages: %w", err)
	}

	return packages, nil
}
