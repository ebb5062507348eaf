package store

const schema = `
CREATE TABLE IF NOT EXISTS packages (
    name TEXT PRIMARY KEY,
    version TEXT NOT NULL,
    origin TEXT NOT NULL,
    package_id TEXT NOT NULL,
    resolved_path TEXT NOT NULL,
    source_ref TEXT,
    git_ref TEXT,
    commit_hash TEXT,
    installed_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS dependencies (
    package TEXT NOT NULL,
    link TEXT NOT NULL,
    source TEXT NOT NULL,
    PRIMARY KEY (package, link),
    FOREIGN KEY (package) REFERENCES packages(name) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS operations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    target TEXT,
    success BOOLEAN NOT NULL,
    message TEXT,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at TIMESTAMP NOT NULL,
    reason TEXT,
    package_count INTEGER,
    snapshot_path TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshot_packages (
    snapshot_id INTEGER NOT NULL,
    package_name TEXT NOT NULL,
    version TEXT NOT NULL,
    ref TEXT NOT NULL,
    FOREIGN KEY (snapshot_id) REFERENCES snapshots(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_packages_source ON packages(source_ref);
CREATE INDEX IF NOT EXISTS idx_deps_source ON dependencies(source);
CREATE INDEX IF NOT EXISTS idx_operations_session ON operations(session_id);
CREATE INDEX IF NOT EXISTS idx_operations_finished ON operations(finished_at);
CREATE INDEX IF NOT EXISTS idx_snapshot_packages ON snapshot_packages(snapshot_id);
`
